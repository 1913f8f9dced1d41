package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateEmail checks basic email shape; directory usernames are emails
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateCompanyID validates company ID format
func ValidateCompanyID(id string) error {
	if id == "" {
		return fmt.Errorf("company ID cannot be empty")
	}
	pattern := `^[a-zA-Z0-9_-]{1,64}$`
	matched, _ := regexp.MatchString(pattern, id)
	if !matched {
		return fmt.Errorf("invalid company ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateReportID validates report ID format (UUID)
func ValidateReportID(id string) error {
	if id == "" {
		return fmt.Errorf("report ID cannot be empty")
	}
	pattern := `^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`
	matched, _ := regexp.MatchString(pattern, id)
	if !matched {
		return fmt.Errorf("invalid report ID format")
	}
	return nil
}

// ValidatePhotoKey blocks traversal and shell metacharacters in storage keys
func ValidatePhotoKey(key string) error {
	if key == "" {
		return fmt.Errorf("photo key cannot be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("path traversal detected")
	}
	dangerous := []string{"$(", "`", "&", "|", ";", "\n", "\r"}
	for _, d := range dangerous {
		if strings.Contains(key, d) {
			return fmt.Errorf("invalid characters in photo key")
		}
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 50 // default
	}
	if limit > 200 {
		return 200 // max limit
	}
	return limit
}
