package wigle

import (
	"errors"
	"strings"
)

// RCOIsField is the result field holding Roaming Consortium Organization Identifiers.
const RCOIsField = "rcois"

// DefaultOrgCodes are the OpenRoaming consortium identifiers.
var DefaultOrgCodes = []string{"4096", "5a03ba0000"}

// OrgFilter keeps records whose rcois mention one of the configured codes.
type OrgFilter struct {
	codes []string
}

// NewOrgFilter builds a filter over codes. Blank codes are ignored.
func NewOrgFilter(codes []string) (*OrgFilter, error) {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code != "" {
			out = append(out, code)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("org filter needs at least one code")
	}
	return &OrgFilter{codes: out}, nil
}

// Codes returns the configured organization codes.
func (f *OrgFilter) Codes() []string {
	return append([]string(nil), f.codes...)
}

// Match reports whether the record's rcois contain any configured code as a
// substring. A string value is checked directly; for a list every element is
// checked. Absent, null or other values never match.
func (f *OrgFilter) Match(rec Record) bool {
	values, ok := rec.Strings(RCOIsField)
	if !ok {
		return false
	}
	for _, v := range values {
		for _, code := range f.codes {
			if strings.Contains(v, code) {
				return true
			}
		}
	}
	return false
}

// Apply returns the matching records in input order.
func (f *OrgFilter) Apply(records []Record) []Record {
	var out []Record
	for _, rec := range records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}
