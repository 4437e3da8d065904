package utils

import (
	"regexp"
	"strings"
)

// SanitizeFilename strips path separators and non-portable characters from
// an uploaded filename before it is used as a source identifier, and caps
// its length. Grounded on the teacher's utils/validation.go helper of the
// same name.
func SanitizeFilename(filename string) string {
	sanitized := strings.Trim(filename, " .")
	sanitized = strings.ReplaceAll(sanitized, "..", "")
	reg := regexp.MustCompile(`[^a-zA-Z0-9._\s-]`)
	sanitized = reg.ReplaceAllString(sanitized, "")
	if len(sanitized) > 255 {
		sanitized = sanitized[:255]
	}
	return sanitized
}
