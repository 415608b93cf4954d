// Package validation checks user-supplied profile and content fields.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxCommentLength     = 10000
	MaxDisplayNameLength = 50
	MaxBioLength         = 160
	MaxCaptionLength     = 2200
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]{1,28}[a-zA-Z0-9]$`)

// ValidateUsername checks length and allowed characters.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 3-30 characters of letters, numbers, '.', '_' or '-', and start and end with a letter or number")
	}
	return nil
}

// ValidateCommentContent returns the trimmed content, or an error when it is
// empty or too long.
func ValidateCommentContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", fmt.Errorf("content is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxCommentLength {
		return "", fmt.Errorf("comment too long (max %d characters)", MaxCommentLength)
	}
	return trimmed, nil
}

// ValidateDisplayName allows 1-50 characters after trimming.
func ValidateDisplayName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 {
		return fmt.Errorf("display name cannot be empty")
	}
	if n > MaxDisplayNameLength {
		return fmt.Errorf("display name too long (max %d characters)", MaxDisplayNameLength)
	}
	return nil
}

// ValidateBio allows an empty bio.
func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return fmt.Errorf("bio too long (max %d characters)", MaxBioLength)
	}
	return nil
}

// ValidateCaption limits post captions.
func ValidateCaption(caption string) error {
	if utf8.RuneCountInString(caption) > MaxCaptionLength {
		return fmt.Errorf("caption too long (max %d characters)", MaxCaptionLength)
	}
	return nil
}

// ValidateMediaURL requires an absolute http(s) URL.
func ValidateMediaURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("media url must be an absolute http(s) URL")
	}
	return nil
}
