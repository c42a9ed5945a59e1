package errors

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// providerRegex matches provider identifiers such as "openai" or "open-router".
var providerRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ValidateProvider validates a generation provider identifier.
// Provider ids become part of persisted keys (apiKey_<provider>) and of file
// names in the file store, so they are kept to a conservative alphabet.
func ValidateProvider(provider string) error {
	if provider == "" {
		return New(ErrCodeInvalidProvider, "provider cannot be empty")
	}
	if len(provider) > 64 {
		return New(ErrCodeInvalidProvider, "provider too long (max 64 characters)")
	}
	if !providerRegex.MatchString(provider) {
		return New(ErrCodeInvalidProvider, "invalid provider: %q", provider)
	}
	return nil
}

// ValidateOutputPath validates a path an export is about to be written to.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - Must not name a directory (trailing separator)
func ValidateOutputPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "output path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator)) {
		return New(ErrCodeInvalidPath, "output path must name a file, not a directory")
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
