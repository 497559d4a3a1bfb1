package engine

import (
	"strings"

	"dealer_portal_backend/platform/phone"
)

// Policy selects the rule set a Matcher applies.
type Policy int

const (
	// PolicyStandard applies exact, word-boundary and fuzzy matching.
	PolicyStandard Policy = iota
	// PolicySingleChar only accepts a name starting with the letter, or a
	// contact-name word starting with it.
	PolicySingleChar
)

// PolicyFor picks the policy for a trimmed term.
func PolicyFor(term string) Policy {
	if len([]rune(term)) == 1 {
		return PolicySingleChar
	}
	return PolicyStandard
}

// Matcher decides whether a record matches a term and at which tier.
type Matcher struct {
	threshold float64
	policy    Policy
}

// NewMatcher returns a Matcher. A threshold outside (0, 1] falls back to DefaultThreshold.
func NewMatcher(threshold float64, policy Policy) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold, policy: policy}
}

// Match evaluates term against rec and returns the best tier reached.
func (m *Matcher) Match(term string, rec Record) (bool, MatchTier) {
	raw := strings.TrimSpace(term)
	t := normalize(raw)
	if t == "" {
		return false, TierNone
	}

	if m.policy == PolicySingleChar {
		tier := matchSingleChar(t, rec)
		return tier != TierNone, tier
	}

	if tier := matchExact(t, raw, rec); tier != TierNone {
		return true, tier
	}
	if matchWordBoundary(t, rec) {
		return true, TierWordBoundary
	}
	if m.matchFuzzy(t, rec) {
		return true, TierFuzzy
	}
	return false, TierNone
}

func matchSingleChar(t string, rec Record) MatchTier {
	if strings.HasPrefix(normalize(rec.CompanyName), t) {
		return TierExactPrefix
	}
	contact := normalize(deref(rec.ContactName))
	if contact == "" {
		return TierNone
	}
	if strings.HasPrefix(contact, t) {
		return TierExactPrefix
	}
	if strings.Contains(contact, " "+t) {
		return TierWordBoundary
	}
	return TierNone
}

func matchExact(t, raw string, rec Record) MatchTier {
	best := TierNone
	if company := normalize(rec.CompanyName); company != "" {
		if strings.HasPrefix(company, t) {
			return TierExactPrefix
		}
		if strings.Contains(company, t) {
			best = TierExactContains
		}
	}
	if contact := normalize(deref(rec.ContactName)); contact != "" {
		if strings.HasPrefix(contact, t) {
			return TierExactPrefix
		}
		// A hit on a later word start is reported by the word-boundary stage.
		if strings.Contains(contact, t) && !startsWord(contact, t) {
			best = TierExactContains
		}
	}
	if best != TierNone {
		return best
	}

	others := []string{
		deref(rec.Email),
		deref(rec.BuyingGroupLabel),
		strings.Join(rec.GroupNames, " "),
		strings.Join(rec.ActiveBuyingGroupNames, " "),
	}
	for _, value := range others {
		if n := normalize(value); n != "" && strings.Contains(n, t) {
			return TierExactContains
		}
	}

	if p := deref(rec.Phone); p != "" {
		if strings.Contains(p, raw) {
			return TierExactContains
		}
		if digits, ok := phone.DigitQuery(raw); ok && phone.ContainsDigits(p, digits) {
			return TierExactContains
		}
	}
	return TierNone
}

func matchWordBoundary(t string, rec Record) bool {
	for _, word := range strings.Fields(normalize(deref(rec.ContactName))) {
		if word == t || strings.Contains(word, t) || strings.Contains(t, word) {
			return true
		}
	}
	return false
}

func startsWord(s, t string) bool {
	for _, word := range strings.Fields(s) {
		if strings.HasPrefix(word, t) {
			return true
		}
	}
	return false
}

func (m *Matcher) matchFuzzy(t string, rec Record) bool {
	group := deref(rec.BuyingGroupLabel)
	if strings.TrimSpace(group) == "" {
		group = strings.Join(rec.ActiveBuyingGroupNames, " ")
	}
	fields := []string{
		rec.CompanyName,
		deref(rec.ContactName),
		deref(rec.Email),
		deref(rec.Phone),
		group,
	}
	for _, field := range fields {
		if similarityNormalized(t, normalize(field)) >= m.threshold {
			return true
		}
	}
	return false
}

// NameContains reports whether the company or contact name contains term.
// It is the primary ranking key.
func NameContains(term string, rec Record) bool {
	t := normalize(term)
	if t == "" {
		return false
	}
	return strings.Contains(normalize(rec.CompanyName), t) ||
		strings.Contains(normalize(deref(rec.ContactName)), t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
