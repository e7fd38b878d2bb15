package phone

import (
	"fmt"
	"strings"
)

// Number is a successfully normalized phone number. Canonical is the fully
// qualified digit-only identifier including the country code.
type Number struct {
	Original      string
	Canonical     string
	CountryCode   string
	MatchedLength int
}

// RejectError explains why a raw number could not be normalized.
type RejectError struct {
	Original string
	Reason   string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("cannot normalize %q: %s", e.Original, e.Reason)
}

const (
	minCanonicalLen = 10
	maxCanonicalLen = 15
)

// Normalizer converts messy user-supplied phone strings into canonical
// international numbers. It is immutable and safe for concurrent use.
type Normalizer struct {
	defaultCode string
	codes       []countryCode
}

func NewNormalizer(defaultCountryCode string) *Normalizer {
	return &Normalizer{
		defaultCode: defaultCountryCode,
		codes:       codesByLength(),
	}
}

// Normalize cleans raw, disambiguates it against the country-code table and
// returns the canonical number. Rejections are returned as *RejectError.
func (n *Normalizer) Normalize(raw string) (Number, error) {
	cleaned := clean(raw)
	if cleaned == "" {
		return Number{}, &RejectError{Original: raw, Reason: "no significant digits"}
	}

	// bare local numbers get the deployment's domestic code
	if len(cleaned) == 10 && !strings.HasPrefix(cleaned, n.defaultCode) {
		cleaned = n.defaultCode + cleaned
	}

	if len(cleaned) < minCanonicalLen {
		return Number{}, &RejectError{
			Original: raw,
			Reason:   fmt.Sprintf("too short: %d digits, need at least %d", len(cleaned), minCanonicalLen),
		}
	}
	if len(cleaned) > maxCanonicalLen {
		return Number{}, &RejectError{
			Original: raw,
			Reason:   fmt.Sprintf("too long: %d digits, allow at most %d", len(cleaned), maxCanonicalLen),
		}
	}

	for _, cc := range n.codes {
		if !strings.HasPrefix(cleaned, cc.code) {
			continue
		}
		if len(cleaned)-len(cc.code) != cc.subscriberLen {
			return Number{}, &RejectError{
				Original: raw,
				Reason:   fmt.Sprintf("invalid length for %s", cc.country),
			}
		}
		return Number{
			Original:      raw,
			Canonical:     cleaned,
			CountryCode:   cc.code,
			MatchedLength: len(cc.code),
		}, nil
	}

	// unknown prefix but a plain 10-digit number: treat as domestic
	if len(cleaned) == 10 {
		canonical := n.defaultCode + cleaned
		if len(canonical) > maxCanonicalLen {
			return Number{}, &RejectError{
				Original: raw,
				Reason:   fmt.Sprintf("too long: %d digits, allow at most %d", len(canonical), maxCanonicalLen),
			}
		}
		return Number{
			Original:      raw,
			Canonical:     canonical,
			CountryCode:   n.defaultCode,
			MatchedLength: len(n.defaultCode),
		}, nil
	}

	return Number{}, &RejectError{Original: raw, Reason: "unrecognized country code"}
}

// clean keeps only digits (dropping any leading +) and strips leading zeros.
func clean(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return strings.TrimLeft(b.String(), "0")
}
