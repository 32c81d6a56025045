package pipeline

import (
	"context"
	"fmt"
)

const extractMaxTokens = 20

// extract derives the AYUSH term from the raw note. It always tries the LLM
// first, then falls back to a literal scan of the seed table against the raw
// text, then to the first 50 characters of the note.
func (p *Pipeline) extract(ctx context.Context, st *State) {
	defer func() {
		if r := recover(); r != nil {
			st.AyushTerm = truncate(st.RawText, 50)
			st.addProvenanceError("extract", fmt.Errorf("panic: %v", r))
		}
	}()

	prompt := fmt.Sprintf("Extract only the AYUSH disease term from this text: %s", st.RawText)
	term, err := p.complete(ctx, prompt, extractMaxTokens)
	if err == nil && term != "" {
		st.AyushTerm = term
		st.addProvenance("extract", term)
		return
	}
	if err != nil {
		p.log.Warn().Err(err).Msg("llm extraction failed, falling back to seed scan")
	}

	if hit := p.terms.FindTermInText(st.RawText); hit != "" {
		st.AyushTerm = hit
		st.addProvenance("extract", hit)
		return
	}

	st.AyushTerm = truncate(st.RawText, 50)
	st.addProvenance("extract", st.AyushTerm)
}
