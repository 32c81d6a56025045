package pipeline

// MappingSource records which path produced the candidate list.
type MappingSource string

const (
	SourceICDSearch     MappingSource = "icd_search"
	SourceDeterministic MappingSource = "deterministic"
	SourceUnknown       MappingSource = "unknown"
	SourceError         MappingSource = "error"
)

// Candidate origin values.
const (
	CandidateSourceCSV    = "csv"
	CandidateSourceICDAPI = "icd_api"
)

// Candidate is a proposed ICD-11 code with its supporting metadata. Once
// appended to State.Candidates it is never mutated, only copied or reordered.
type Candidate struct {
	Code        string  `json:"code"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score"`
	Source      string  `json:"source"`
	SourceTerm  string  `json:"source_term,omitempty"`

	EnglishTerm  string `json:"english_term,omitempty"`
	DetailedTerm string `json:"detailed_term,omitempty"`

	LLMEnriched bool   `json:"llm_enriched,omitempty"`
	LLMMatch    *bool  `json:"llm_match,omitempty"`
	LLMReason   string `json:"llm_reason,omitempty"`
}

// ProvenanceEntry records what one stage did or failed to do. Exactly one
// entry is appended per stage invocation.
type ProvenanceEntry struct {
	Step  string      `json:"step"`
	Value interface{} `json:"value,omitempty"`
	Error string      `json:"error,omitempty"`
}

// State is the single record threaded through all four stages. RawText,
// PatientRef and AutoPush are immutable after creation; NeedsHumanReview is a
// one-way latch.
type State struct {
	RawText    string `json:"raw_text"`
	PatientRef string `json:"patient_ref"`
	AutoPush   bool   `json:"auto_push"`

	AyushTerm string `json:"ayush_term,omitempty"`

	Candidates    []Candidate   `json:"candidates"`
	MappingSource MappingSource `json:"mapping_source,omitempty"`

	Best       *Candidate `json:"best,omitempty"`
	Confidence float64    `json:"confidence"`
	Reason     string     `json:"reason,omitempty"`

	NeedsHumanReview       bool        `json:"needs_human_review"`
	ManualReviewCandidates []Candidate `json:"manual_review_candidates,omitempty"`
	ReviewReasons          []string    `json:"review_reasons,omitempty"`

	EnglishTranslation  string `json:"english_translation,omitempty"`
	DetailedTranslation string `json:"detailed_translation,omitempty"`

	FHIR         interface{} `json:"fhir,omitempty"`
	Pushed       bool        `json:"pushed"`
	PushResponse interface{} `json:"push_response,omitempty"`

	Provenance []ProvenanceEntry `json:"provenance"`
}

// NewState builds the initial state for one invocation.
func NewState(rawText, patientRef string, autoPush bool) *State {
	return &State{
		RawText:    rawText,
		PatientRef: patientRef,
		AutoPush:   autoPush,
	}
}

// addProvenance appends a success entry.
func (s *State) addProvenance(step string, value interface{}) {
	s.Provenance = append(s.Provenance, ProvenanceEntry{Step: step, Value: value})
}

// addProvenanceError appends a failure entry.
func (s *State) addProvenanceError(step string, err error) {
	s.Provenance = append(s.Provenance, ProvenanceEntry{Step: step, Error: err.Error()})
}

// forceReview latches the manual-review flag. It is never cleared.
func (s *State) forceReview() {
	s.NeedsHumanReview = true
}

// addReviewReason appends to the ordered review-reason list.
func (s *State) addReviewReason(reason string) {
	if reason != "" {
		s.ReviewReasons = append(s.ReviewReasons, reason)
	}
}

// truncate returns at most n characters of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
