package utils

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Request size limits (in bytes)
const (
	MaxBodySize = 64 * 1024 // 64KB - largest accepted JSON request body
)

// String length limits (in runes)
const (
	MaxNameLength      = 256
	MaxReferenceLength = 8192
)

// ValidateString validates a string field with length and content checks.
// It rejects NUL bytes and invalid UTF-8; everything else, quotes and markup
// included, passes untouched.
func ValidateString(value, fieldName string, maxLen int, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("%s is not valid UTF-8", fieldName)
	}
	if n := utf8.RuneCountInString(value); n > maxLen {
		return fmt.Errorf("%s must not exceed %d characters, got %d", fieldName, maxLen, n)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ValidateReference checks an image reference. Empty is allowed.
func ValidateReference(ref string) error {
	return ValidateString(ref, "fileUrl", MaxReferenceLength, false)
}

// ValidateName checks a display name. Empty is allowed.
func ValidateName(name string) error {
	return ValidateString(name, "name", MaxNameLength, false)
}
