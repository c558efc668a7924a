package wigle

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidAfterDate is returned for dates that are not YYYYMMDD calendar dates.
var ErrInvalidAfterDate = errors.New("invalid after date")

// DefaultAfterDate is the lastupdt bound used when none is given.
const DefaultAfterDate = "20200319"

// ValidateAfterDate checks that s is an eight-digit YYYYMMDD calendar date.
func ValidateAfterDate(s string) error {
	if len(s) != 8 {
		return fmt.Errorf("%w: %q must have 8 digits", ErrInvalidAfterDate, s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %q must be numeric", ErrInvalidAfterDate, s)
		}
	}
	if _, err := time.Parse("20060102", s); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidAfterDate, s, err)
	}
	return nil
}
