package errors

import (
	"strings"
	"testing"
)

func TestValidateProvider(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "openai", false},
		{"with dash", "open-router", false},
		{"with dot", "groq.v2", false},
		{"digits", "gpt4all", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 65), true},
		{"uppercase", "OpenAI", true},
		{"slash", "open/ai", true},
		{"path traversal", "../openai", true},
		{"space", "open ai", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProvider(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProvider(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidProvider) {
				t.Errorf("ValidateProvider(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidProvider)
			}
		})
	}
}

func TestValidateOutputPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"relative file", "documentation.pdf", false},
		{"nested file", "out/docs/documentation.md", false},
		{"absolute file", "/tmp/documentation.pdf", false},

		{"empty", "", true},
		{"directory", "out/", true},
		{"null byte", "doc\x00.pdf", true},
		{"newline", "doc\n.pdf", true},
		{"too long", strings.Repeat("a", 501), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputPath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOutputPath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"https://api.example.com/generate", false},
		{"http://localhost:8080/generate", false},
		{"", true},
		{"ftp://example.com", true},
		{"example.com/generate", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
