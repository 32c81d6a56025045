package terminology

// SeedMapping is one row of the local AYUSH→ICD-11 synonym table.
type SeedMapping struct {
	AyushTerm string `json:"ayush_term"`
	ICDCode   string `json:"icd_code"`
	ICDTitle  string `json:"icd_title"`
}

// MatchType distinguishes a literal row-term hit from a parenthetical-alias hit.
type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchAlias MatchType = "alias"
)

// Match is one deterministic hit for a query term.
type Match struct {
	AyushTerm string    `json:"ayush_term"`
	ICDCode   string    `json:"icd_code"`
	ICDTitle  string    `json:"icd_title"`
	MatchType MatchType `json:"match_type"`
}

// LookupResult carries every matching row plus the tie-broken primary match
// and the manual-review signal for ambiguous mappings.
type LookupResult struct {
	Primary      *Match  `json:"primary"`
	Matches      []Match `json:"matches"`
	NeedsReview  bool    `json:"needs_review"`
	ReviewReason string  `json:"review_reason,omitempty"`
}
