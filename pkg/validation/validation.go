package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// EntityIDRegex validates camera and employee id format
	EntityIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

	streamSchemes = map[string]bool{
		"rtsp":  true,
		"rtsps": true,
		"rtmp":  true,
		"http":  true,
		"https": true,
		"file":  true,
	}
)

// ValidateStreamAddress checks that a camera address can be handed to the
// capture pipeline. Bare device indexes ("0") and scheme-less paths are
// accepted; URLs must use a known scheme and carry a host.
func ValidateStreamAddress(address string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("stream address is required")
	}
	if address != strings.TrimSpace(address) {
		return fmt.Errorf("stream address has surrounding whitespace")
	}
	for _, r := range address {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("stream address contains whitespace or control characters")
		}
	}
	u, err := url.Parse(address)
	if err != nil {
		return fmt.Errorf("invalid stream address: %w", err)
	}
	if u.Scheme == "" {
		return nil
	}
	if !streamSchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("unsupported stream scheme %q", u.Scheme)
	}
	if u.Scheme != "file" && u.Host == "" {
		return fmt.Errorf("stream address must have a host")
	}
	return nil
}

// ValidateEntityID validates camera and employee ids supplied by operators.
func ValidateEntityID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if len(id) > 100 {
		return fmt.Errorf("id is too long (max 100 characters)")
	}
	if !EntityIDRegex.MatchString(id) {
		return fmt.Errorf("invalid id format")
	}
	return nil
}

// ValidateDisplayName validates camera and employee names
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if utf8.RuneCountInString(name) > 100 {
		return fmt.Errorf("name is too long (max 100 characters)")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("name contains invalid characters")
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme (must be http, https, ws, or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
