package errors

import (
	"strconv"
	"strings"
	"unicode"
)

// maxTextLength bounds free-text fields submitted through the dashboard
// (assignment subject, chapter, topic, login number).
const maxTextLength = 256

// ValidateID parses and validates a numeric resource identifier taken from
// a URL path or query string. Identifiers must be non-negative integers.
func ValidateID(kind, raw string) (int64, error) {
	if raw == "" {
		return 0, New(ErrCodeInvalidID, "%s id cannot be empty", kind)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, New(ErrCodeInvalidID, "%s id must be an integer: %q", kind, raw)
	}
	if id < 0 {
		return 0, New(ErrCodeInvalidID, "%s id must not be negative: %d", kind, id)
	}
	return id, nil
}

// ValidateText validates a required free-text field.
//
// The validation rules are intentionally conservative:
//   - No empty or whitespace-only values
//   - No control characters (newlines and tabs are allowed)
//   - Maximum length of 256 characters
func ValidateText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return New(ErrCodeInvalidInput, "%s cannot be empty", field)
	}
	if len(value) > maxTextLength {
		return New(ErrCodeInvalidInput, "%s too long (max %d characters)", field, maxTextLength)
	}
	for _, r := range value {
		if r == '\n' || r == '\t' {
			continue
		}
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "%s contains invalid control characters", field)
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
