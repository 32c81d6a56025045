package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtractUsesLLMReply(t *testing.T) {
	p := newTestPipeline(&fakeLLM{extract: "Vataja Jwara"}, &fakeSearcher{}, &fakePusher{})
	st := NewState("Patient has high fever with body ache", "Patient/E-1", false)

	p.extract(context.Background(), st)

	if st.AyushTerm != "Vataja Jwara" {
		t.Errorf("ayush_term = %q", st.AyushTerm)
	}
	if len(st.Provenance) != 1 || st.Provenance[0].Step != "extract" {
		t.Errorf("provenance = %+v", st.Provenance)
	}
}

func TestExtractFallsBackToSeedScan(t *testing.T) {
	p := newTestPipeline(&fakeLLM{err: errors.New("llm unavailable")}, &fakeSearcher{}, &fakePusher{})
	st := NewState("Skin depigmentation consistent with Shvitra observed", "Patient/E-2", false)

	p.extract(context.Background(), st)

	if st.AyushTerm != "Shvitra (Shwetakustha)" {
		t.Errorf("ayush_term = %q, want the seed row term", st.AyushTerm)
	}
}

func TestExtractFallsBackToTruncatedNote(t *testing.T) {
	p := newTestPipeline(&fakeLLM{err: errors.New("llm unavailable")}, &fakeSearcher{}, &fakePusher{})
	long := strings.Repeat("no known terms here ", 10)
	st := NewState(long, "Patient/E-3", false)

	p.extract(context.Background(), st)

	if len([]rune(st.AyushTerm)) != 50 {
		t.Errorf("ayush_term length = %d, want 50", len([]rune(st.AyushTerm)))
	}
	if !strings.HasPrefix(long, st.AyushTerm) {
		t.Errorf("ayush_term %q is not a prefix of the note", st.AyushTerm)
	}
}

func TestExtractEmptyLLMReplyFallsBack(t *testing.T) {
	p := newTestPipeline(&fakeLLM{extract: ""}, &fakeSearcher{}, &fakePusher{})
	st := NewState("Pandu with fatigue", "Patient/E-4", false)

	p.extract(context.Background(), st)

	if st.AyushTerm != "Pandu" {
		t.Errorf("ayush_term = %q, want seed scan hit", st.AyushTerm)
	}
}
