package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// IdentifierRegex matches the public player/streamer IDs a client may
// supply on an identify message — alphanumeric plus underscore/dash,
// matching the original's Pixel Streaming ID conventions.
var IdentifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidatePlayerID validates a client-supplied playerId field. Empty is
// allowed — the transport falls back to the internal connection ID.
func ValidatePlayerID(playerID string) error {
	if playerID == "" {
		return nil
	}
	return validateIdentifier(playerID, "player ID")
}

// ValidateStreamerID validates a client-supplied streamerId/sfuId field.
// Empty is allowed — the transport falls back to the auto-assigned
// "streamer_<id prefix>" form.
func ValidateStreamerID(streamerID string) error {
	if streamerID == "" {
		return nil
	}
	return validateIdentifier(streamerID, "streamer ID")
}

func validateIdentifier(id, fieldName string) error {
	if len(id) > 100 {
		return fmt.Errorf("%s is too long (max 100 characters)", fieldName)
	}
	if !IdentifierRegex.MatchString(id) {
		return fmt.Errorf("invalid %s format", fieldName)
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming.
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length in runes.
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
