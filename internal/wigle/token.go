package wigle

import (
	"errors"
	"regexp"
)

// ErrInvalidToken is returned when the API credential contains characters
// outside the accepted set.
var ErrInvalidToken = errors.New("invalid token")

var tokenPattern = regexp.MustCompile(`^[\w\-_=]+$`)

// IsValidToken reports whether s is made only of word characters, hyphens,
// underscores and equals signs.
func IsValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}
