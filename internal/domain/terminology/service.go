package terminology

import (
	"strings"
)

// priorityCodes are clinically mandated overrides: when the query matches,
// the row carrying this code wins the primary slot regardless of match order.
var priorityCodes = map[string]string{
	"visarpa":    "1C13",
	"udara roga": "MB41",
}

// Service performs synonym-aware deterministic lookup against the seed table.
type Service struct {
	repo SeedRepository
}

func NewService(repo SeedRepository) *Service {
	return &Service{repo: repo}
}

// variantKeys generates the comparison keys for a row term: the full term,
// the term with spaces removed, and, for parenthesized terms, the prefix and
// the parenthetical content, each with and without spaces.
// "Shvitra (Shwetakustha)" -> {"shvitra (shwetakustha)", "shvitra", "shwetakustha", ...}
func variantKeys(value string) map[string]bool {
	base := strings.TrimSpace(strings.ToLower(value))
	keys := map[string]bool{}
	add := func(k string) {
		if k != "" {
			keys[k] = true
			keys[strings.ReplaceAll(k, " ", "")] = true
		}
	}
	add(base)
	if open := strings.Index(base, "("); open >= 0 {
		if close := strings.Index(base[open:], ")"); close >= 0 {
			add(strings.TrimSpace(base[:open]))
			add(strings.TrimSpace(base[open+1 : open+close]))
		}
	}
	return keys
}

// Lookup returns every seed row whose variant-key set contains the query,
// with the primary match tie-broken by priority override, then exact match,
// then first alias. Nil when nothing matches.
func (s *Service) Lookup(term string) *LookupResult {
	t := strings.TrimSpace(strings.ToLower(term))
	if t == "" {
		return nil
	}

	var matches []Match
	for _, row := range s.repo.All() {
		if row.AyushTerm == "" {
			continue
		}
		if variantKeys(row.AyushTerm)[t] {
			mt := MatchAlias
			if strings.TrimSpace(strings.ToLower(row.AyushTerm)) == t {
				mt = MatchExact
			}
			matches = append(matches, Match{
				AyushTerm: row.AyushTerm,
				ICDCode:   row.ICDCode,
				ICDTitle:  row.ICDTitle,
				MatchType: mt,
			})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	var primary *Match
	if code, ok := priorityCodes[t]; ok {
		for i := range matches {
			if matches[i].ICDCode == code {
				primary = &matches[i]
				break
			}
		}
	}
	if primary == nil {
		for i := range matches {
			if matches[i].MatchType == MatchExact {
				primary = &matches[i]
				break
			}
		}
	}
	if primary == nil {
		primary = &matches[0]
	}

	codes := map[string]bool{}
	for _, m := range matches {
		if m.ICDCode != "" {
			codes[m.ICDCode] = true
		}
	}

	result := &LookupResult{Primary: primary, Matches: matches}
	if len(matches) > 1 && len(codes) > 1 {
		result.NeedsReview = true
		result.ReviewReason = "Multiple deterministic mappings found for this term. Please select the correct ICD-11 code."
	} else if len(matches) > 1 {
		result.ReviewReason = "Alternate spellings detected for this term. Confirm the ICD-11 code before pushing to ABDM."
	}
	return result
}

// FindTermInText scans the raw note for any seed term, or one of its
// parenthetical variants, present as a literal case-insensitive substring
// and returns the first hit.
func (s *Service) FindTermInText(text string) string {
	lowered := strings.ToLower(text)
	if lowered == "" {
		return ""
	}
	for _, row := range s.repo.All() {
		if row.AyushTerm == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(row.AyushTerm)) {
			return row.AyushTerm
		}
		for key := range variantKeys(row.AyushTerm) {
			if strings.Contains(key, " ") || len(key) >= 4 {
				if strings.Contains(lowered, key) {
					return row.AyushTerm
				}
			}
		}
	}
	return ""
}
