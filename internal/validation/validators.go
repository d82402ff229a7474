package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/smart-nudge/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	if err := Validate.RegisterValidation("message_type", validateMessageType); err != nil {
		panic(fmt.Sprintf("failed to register message_type validator: %v", err))
	}
	if err := Validate.RegisterValidation("interaction_action", validateInteractionAction); err != nil {
		panic(fmt.Sprintf("failed to register interaction_action validator: %v", err))
	}
}

// validateMessageType validates that a string is a valid MessageType enum value
func validateMessageType(fl validator.FieldLevel) bool {
	return models.MessageType(fl.Field().String()).IsValid()
}

// validateInteractionAction validates that a string is a valid InteractionAction enum value
func validateInteractionAction(fl validator.FieldLevel) bool {
	return models.InteractionAction(fl.Field().String()).IsValid()
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateMessageType validates a MessageType string value
func ValidateMessageType(value string) error {
	if models.MessageType(value).IsValid() {
		return nil
	}
	names := make([]string, len(models.AllMessageTypes))
	for i, t := range models.AllMessageTypes {
		names[i] = string(t)
	}
	return fmt.Errorf("invalid message_type: %s (must be one of %s)", value, strings.Join(names, ", "))
}

// ValidateInteractionAction validates an InteractionAction string value
func ValidateInteractionAction(value string) error {
	if models.InteractionAction(value).IsValid() {
		return nil
	}
	return fmt.Errorf("invalid action: %s (must be 'viewed', 'clicked', 'dismissed', or 'rated')", value)
}

// FieldErrors flattens validator errors into "field: rule" messages
func FieldErrors(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return out
}
