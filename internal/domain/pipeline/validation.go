package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const validateMaxTokens = 200

type validationVerdict struct {
	BestIndex  int     `json:"best_index"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// stripCodeFence removes surrounding markdown code-fence markers from an LLM
// reply, including a leading "json" language tag.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return s
	}
	inner := parts[1]
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}

// validate selects the best candidate. The LLM picks the index and supplies
// the rationale; the final confidence is always the candidate's own
// originating score, never the LLM's confidence claim.
func (p *Pipeline) validate(ctx context.Context, st *State) {
	defer func() {
		if r := recover(); r != nil {
			if len(st.Candidates) > 0 {
				best := st.Candidates[0]
				st.Best = &best
			} else {
				st.Best = &Candidate{Code: "UNK", Title: "Error"}
			}
			st.Confidence = 0.0
			st.Reason = fmt.Sprintf("Validation failed: %v", r)
			st.forceReview()
			st.addProvenanceError("validation", fmt.Errorf("panic: %v", r))
		}
	}()

	if len(st.Candidates) == 0 {
		st.Best = &Candidate{Code: "UNK", Title: "Unknown"}
		st.Confidence = 0.0
		st.Reason = "No mapping candidates found"
		st.forceReview()
		st.addProvenance("validation", st.Reason)
		return
	}

	serialized, err := json.MarshalIndent(st.Candidates, "", "  ")
	if err != nil {
		serialized = []byte("[]")
	}

	prompt := fmt.Sprintf(`You are a medical coding expert. Given an AYUSH term %q and clinical context: %q,
evaluate these ICD-11 mapping candidates and return ONLY valid JSON:
{
    "best_index": <0-based index of best match>,
    "confidence": <0.0-1.0>,
    "reason": "<brief explanation>"
}

Candidates:
%s

Return ONLY the JSON object, no other text.`, st.AyushTerm, truncate(st.RawText, 200), serialized)

	resp, err := p.complete(ctx, prompt, validateMaxTokens)
	if err != nil {
		best := st.Candidates[0]
		st.Best = &best
		st.Confidence = scoreOrDefault(best, 0.80)
		st.Reason = fmt.Sprintf("LLM validation failed: %s. Using candidate without LLM validation.", truncate(err.Error(), 50))
		st.forceReview()
		st.addProvenanceError("validation", err)
		return
	}

	var verdict validationVerdict
	if err := json.Unmarshal([]byte(stripCodeFence(resp)), &verdict); err != nil {
		best := st.Candidates[0]
		st.Best = &best
		st.Confidence = scoreOrDefault(best, 0.7)
		st.Reason = "LLM validation failed: JSON parse error. Using first candidate."
		st.forceReview()
		st.addProvenanceError("validation", fmt.Errorf("parse verdict: %w", err))
		return
	}

	idx := verdict.BestIndex
	if idx < 0 || idx >= len(st.Candidates) {
		idx = 0
	}
	best := st.Candidates[idx]
	st.Best = &best
	// The LLM confirms the selection; the confidence stays the candidate's
	// originating score.
	st.Confidence = scoreOrDefault(best, 0.80)
	st.Reason = verdict.Reason
	if st.Reason == "" {
		st.Reason = "Validated by LLM"
	}
	if st.Confidence < 0.9 {
		st.forceReview()
	}

	st.addProvenance("validation", map[string]interface{}{
		"best_index": idx,
		"code":       best.Code,
		"confidence": st.Confidence,
		"reason":     st.Reason,
	})
}

func scoreOrDefault(c Candidate, def float64) float64 {
	if c.Score > 0 {
		return c.Score
	}
	return def
}
