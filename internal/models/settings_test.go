package models

import (
	"slices"
	"testing"
)

func TestParseOrigins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{" , ,", nil},
		{"https://app.example.com", []string{"https://app.example.com"}},
		{" https://a.example.com ,https://b.example.com,https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}},
	}
	for _, tt := range tests {
		if got := ParseOrigins(tt.raw); !slices.Equal(got, tt.want) {
			t.Errorf("ParseOrigins(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestCorsConfig_Normalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     CorsConfig
		want    []string
		wantErr bool
	}{
		{name: "trims and dedupes", cfg: CorsConfig{AllowedOrigins: []string{" https://a.example.com", "https://a.example.com", ""}}, want: []string{"https://a.example.com"}},
		{name: "comma inside an entry", cfg: CorsConfig{AllowedOrigins: []string{"https://a.example.com,https://b.example.com"}}, want: []string{"https://a.example.com", "https://b.example.com"}},
		{name: "empty", cfg: CorsConfig{AllowedOrigins: []string{" "}}, wantErr: true},
		{name: "negative max age", cfg: CorsConfig{AllowedOrigins: []string{"https://a.example.com"}, MaxAge: -1}, wantErr: true},
		{name: "wildcard with credentials", cfg: CorsConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true}, wantErr: true},
		{name: "wildcard", cfg: CorsConfig{AllowedOrigins: []string{"*"}}, want: []string{"*"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			err := cfg.Normalize()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !slices.Equal(cfg.AllowedOrigins, tt.want) {
				t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, tt.want)
			}
		})
	}
}

func TestRatelimitConfig_Normalize(t *testing.T) {
	t.Parallel()

	c := RatelimitConfig{Rate: " 100-M "}
	if err := c.Normalize(); err != nil || c.Rate != "100-M" {
		t.Errorf("Normalize() = %v, rate %q", err, c.Rate)
	}
	empty := RatelimitConfig{Rate: "  "}
	if err := empty.Normalize(); err == nil {
		t.Error("Expected an error for an empty rate")
	}
}
