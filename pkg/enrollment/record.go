// Package enrollment reads the authoritative member list from the ERP and
// turns each member into a canonical Record.
package enrollment

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Record is one enrolled member, as the rest of the job sees it.
type Record struct {
	// ExternalID is the normalized student number; empty when the ERP has none.
	ExternalID  string `json:"externalId,omitempty" yaml:"externalId,omitempty"`
	FirstName   string `json:"firstName" yaml:"firstName"`
	LastName    string `json:"lastName" yaml:"lastName"`
	Login       string `json:"login,omitempty" yaml:"login,omitempty"`
	Email       string `json:"email" yaml:"email"`
	Contributor bool   `json:"contributor" yaml:"contributor"`
}

// HasExternalID reports whether the record carries a student number.
func (r Record) HasExternalID() bool {
	return r.ExternalID != ""
}

// Key identifies the record in logs and errors.
func (r Record) Key() string {
	if r.ExternalID != "" {
		return r.ExternalID
	}
	return r.Email
}

// IsContributor derives contributor status from the subscription expiry
// (unix seconds, possibly empty) and the ERP's need-subscription flag:
//
//	(expiry is set AND expiry >= now) OR needSubscription == 0
//
// now must be taken once per run so every record is judged against the
// same instant.
func IsContributor(expiry, needSubscription string, now time.Time) bool {
	if flag, err := strconv.ParseInt(strings.TrimSpace(needSubscription), 10, 64); err == nil && flag == 0 {
		return true
	}

	expiry = strings.TrimSpace(expiry)
	if expiry == "" {
		return false
	}
	ts, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return false
	}
	return ts >= now.Unix()
}

// NormalizeExternalID strips separators from a student number. It returns
// "" when the input is empty or not numeric.
func NormalizeExternalID(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '.':
		default:
			return ""
		}
	}
	return b.String()
}
