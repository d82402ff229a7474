package models

// TemplateText is one wording of a template
type TemplateText struct {
	Title   string `json:"title" yaml:"title"`
	Message string `json:"message" yaml:"message"`
	Icon    string `json:"icon" yaml:"icon"`
}

// MessageTemplate is a static, condition-gated message blueprint
type MessageTemplate struct {
	ID         string             `json:"id"`
	Type       MessageType        `json:"type"`
	Category   MessageCategory    `json:"category"`
	Variants   []TemplateText     `json:"variants"`
	Conditions []MessageCondition `json:"conditions"`
	Tags       []string           `json:"tags"`
	Weight     float64            `json:"weight"`
}
