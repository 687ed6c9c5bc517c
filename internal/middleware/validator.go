package middleware

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

// maxQuestionBytes caps the question text. Anything larger is almost
// certainly a file uploaded into the wrong part.
const maxQuestionBytes = 64 * 1024

// ValidateQuestion checks the analysis question text
func ValidateQuestion(question string) error {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if len(question) > maxQuestionBytes {
		return fmt.Errorf("question exceeds %d bytes", maxQuestionBytes)
	}
	return nil
}

// ValidateFilename validates uploaded file names (for security)
func ValidateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	// Uploads must be bare names, never paths
	cleaned := filepath.Clean(name)
	if strings.Contains(cleaned, "..") || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("path traversal detected in filename")
	}

	// Block dangerous patterns
	dangerous := []string{"$(", "`", "&", "|", ";", "\n", "\r", "\x00"}
	for _, d := range dangerous {
		if strings.Contains(name, d) {
			return fmt.Errorf("invalid characters in filename")
		}
	}

	if len(name) > 255 {
		return fmt.Errorf("filename too long")
	}

	return nil
}

// ValidateTaskID validates task ID format
func ValidateTaskID(taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}

	// UUID pattern
	pattern := `^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`
	matched, _ := regexp.MatchString(pattern, taskID)
	if !matched {
		return fmt.Errorf("invalid task ID format")
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
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
