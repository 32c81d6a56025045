package pipeline

import (
	"context"
	"fmt"

	"github.com/ayushmap/ayushmap/internal/platform/fhir"
)

// output constructs the FHIR Condition record and, when the caller requested
// auto-push and nothing flagged the run for review, forwards it to the
// exchange. Push failures are recorded and never fail the stage.
func (p *Pipeline) output(ctx context.Context, st *State) {
	defer func() {
		if r := recover(); r != nil {
			st.FHIR = nil
			st.Pushed = false
			st.PushResponse = map[string]interface{}{"error": fmt.Sprintf("%v", r)}
			st.addProvenanceError("output", fmt.Errorf("panic: %v", r))
		}
	}()

	var cond *fhir.Condition
	if st.Best != nil {
		cond = fhir.NewCondition(st.Best.Code, st.Best.Title, st.AyushTerm, st.PatientRef, st.Reason, st.Confidence)
		st.FHIR = cond
	}

	if st.AutoPush && cond != nil && !st.NeedsHumanReview {
		resp, err := p.push(ctx, cond)
		if err != nil {
			p.log.Warn().Err(err).Msg("abdm push failed")
			st.PushResponse = map[string]interface{}{"error": err.Error()}
		} else {
			st.Pushed = true
			st.PushResponse = resp
		}
	}

	st.addProvenance("output", map[string]interface{}{
		"fhir":   cond != nil,
		"pushed": st.Pushed,
	})
}
