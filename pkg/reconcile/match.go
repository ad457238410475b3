package reconcile

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/agentstation/membersync/pkg/enrollment"
	"github.com/agentstation/membersync/pkg/errors"
)

// MatchBy names the strategy that paired a record with an account.
type MatchBy string

// Matching strategies, in the order they are tried.
const (
	MatchNone       MatchBy = ""
	MatchExternalID MatchBy = "externalId"
	MatchEmail      MatchBy = "email"
)

// Match is the outcome of matching one record.
type Match struct {
	Account *Account
	By      MatchBy
	// Conflict is set when the winning key also matched other accounts.
	Conflict *errors.ConflictError
}

// Matcher finds the directory account for an enrollment record. It indexes
// the accounts once; matching never mutates them.
type Matcher struct {
	accounts     []*Account
	byExternalID map[string][]int
	byEmail      map[string][]int
}

// NewMatcher indexes accounts by bound wallet identity and by email.
// Index entries keep collection order so the first account wins.
func NewMatcher(accounts []*Account) *Matcher {
	m := &Matcher{
		accounts:     accounts,
		byExternalID: make(map[string][]int),
		byEmail:      make(map[string][]int),
	}
	for i, acc := range accounts {
		u := acc.User()
		seen := make(map[string]bool, len(u.Wallets))
		for _, w := range u.Wallets {
			if !w.Bound() || seen[w.LogicalID] {
				continue
			}
			seen[w.LogicalID] = true
			m.byExternalID[w.LogicalID] = append(m.byExternalID[w.LogicalID], i)
		}
		if key := EmailKey(u.Email); key != "" {
			m.byEmail[key] = append(m.byEmail[key], i)
		}
	}
	return m
}

// Match tries the external identity first, then the email. A record
// that matches neither is unmatched and should be created.
func (m *Matcher) Match(rec enrollment.Record) Match {
	if rec.HasExternalID() {
		if hits := m.byExternalID[rec.ExternalID]; len(hits) > 0 {
			return m.result(MatchExternalID, "externalId:"+rec.ExternalID, hits)
		}
	}
	if key := EmailKey(rec.Email); key != "" {
		if hits := m.byEmail[key]; len(hits) > 0 {
			return m.result(MatchEmail, "email:"+key, hits)
		}
	}
	return Match{}
}

func (m *Matcher) result(by MatchBy, key string, hits []int) Match {
	match := Match{Account: m.accounts[hits[0]], By: by}
	if len(hits) > 1 {
		candidates := make([]string, 0, len(hits))
		for _, i := range hits {
			candidates = append(candidates, m.accounts[i].Ref())
		}
		match.Conflict = &errors.ConflictError{Key: key, Candidates: candidates}
	}
	return match
}

// EmailKey folds an email for comparison: trimmed, case-folded and NFC
// normalized. It returns "" for an empty address, which never matches.
func EmailKey(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	return norm.NFC.String(cases.Fold().String(email))
}
