package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Content limits for user supplied text.
const (
	MaxProfileNameLength     = 64
	MaxQuestionContentLength = 280
	MaxPostContentLength     = 1000
)

var profileTagRegex = regexp.MustCompile(`^[a-z0-9_]{3,32}$`)

// Tags that would shadow API routes or impersonate the service.
var reservedProfileTags = map[string]struct{}{
	"admin":     {},
	"api":       {},
	"askbox":    {},
	"auth":      {},
	"health":    {},
	"login":     {},
	"logout":    {},
	"metrics":   {},
	"posts":     {},
	"profiles":  {},
	"questions": {},
	"self":      {},
	"signup":    {},
	"support":   {},
	"swagger":   {},
	"users":     {},
}

// NormalizeTag lowercases and trims a tag before it is validated or stored.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// ValidateProfileTag validates tag format and reserved names. Callers normalize first.
func ValidateProfileTag(tag string) error {
	if !profileTagRegex.MatchString(tag) {
		return fmt.Errorf("tag must be 3-32 characters and contain only lowercase letters, numbers, and underscores")
	}

	if strings.HasPrefix(tag, "_") || strings.HasSuffix(tag, "_") {
		return fmt.Errorf("tag cannot start or end with an underscore")
	}

	if _, exists := reservedProfileTags[tag]; exists {
		return fmt.Errorf("tag is reserved")
	}

	return nil
}

// ValidateProfileName checks the display name length in runes.
func ValidateProfileName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 {
		return fmt.Errorf("name is required")
	}
	if n > MaxProfileNameLength {
		return fmt.Errorf("name must not exceed %d characters", MaxProfileNameLength)
	}
	return nil
}

// ValidateProfileID checks that id is a well-formed profile identifier.
func ValidateProfileID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid profile id %q", id)
	}
	return nil
}

// ValidateQuestionContent enforces 1..280 characters.
func ValidateQuestionContent(content string) error {
	return validateContent("question", content, MaxQuestionContentLength)
}

// ValidatePostContent enforces 1..1000 characters.
func ValidatePostContent(content string) error {
	return validateContent("post", content, MaxPostContentLength)
}

func validateContent(kind, content string, maxLen int) error {
	n := utf8.RuneCountInString(content)
	if n == 0 || strings.TrimSpace(content) == "" {
		return fmt.Errorf("%s content is required", kind)
	}
	if n > maxLen {
		return fmt.Errorf("%s content must be between 1 and %d characters", kind, maxLen)
	}
	return nil
}
