package models

// User is the authenticated principal of an API request
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Issuer string `json:"issuer,omitempty"`
}
