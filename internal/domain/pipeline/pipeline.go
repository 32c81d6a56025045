// Package pipeline implements the four-stage AYUSH→ICD-11 mapping pipeline:
// term extraction, candidate mapping, validation and structured-record
// output. Stages run strictly in order over one shared state; a failure in
// any stage degrades the state instead of propagating, so Run always returns
// a structurally valid result.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ayushmap/ayushmap/internal/domain/terminology"
	"github.com/ayushmap/ayushmap/internal/platform/fhir"
	"github.com/ayushmap/ayushmap/internal/platform/icd"
	"github.com/ayushmap/ayushmap/internal/platform/workpool"
)

// Completer is the LLM completion service: one prompt, a bounded output
// token budget, zero sampling temperature.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Searcher is the external terminology search service.
type Searcher interface {
	Search(ctx context.Context, query string) ([]icd.Entity, error)
}

// Pusher forwards a constructed record to the health-record exchange.
type Pusher interface {
	PushCondition(ctx context.Context, cond *fhir.Condition) (map[string]interface{}, error)
}

// TermTable is the local deterministic synonym table.
type TermTable interface {
	Lookup(term string) *terminology.LookupResult
	FindTermInText(text string) string
}

type Pipeline struct {
	llm   Completer
	icd   Searcher
	abdm  Pusher
	terms TermTable
	pool  *workpool.Pool
	log   zerolog.Logger
}

func New(llm Completer, searcher Searcher, pusher Pusher, terms TermTable, pool *workpool.Pool, logger zerolog.Logger) *Pipeline {
	if pool == nil {
		pool = workpool.New(6)
	}
	return &Pipeline{
		llm:   llm,
		icd:   searcher,
		abdm:  pusher,
		terms: terms,
		pool:  pool,
		log:   logger,
	}
}

// Run drives the four stages in fixed order and returns the final state
// unconditionally. If the orchestrator itself faults, the returned state is
// a terminal degraded one: truncated term, UNK code, zero confidence, forced
// review.
func (p *Pipeline) Run(ctx context.Context, rawText, patientRef string, autoPush bool) (st *State) {
	st = NewState(rawText, patientRef, autoPush)

	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("pipeline fault")
			st.AyushTerm = truncate(rawText, 50)
			st.Best = &Candidate{Code: "UNK", Title: "Error"}
			st.Confidence = 0.0
			st.Reason = fmt.Sprintf("Pipeline failed: %v", r)
			st.forceReview()
		}
	}()

	p.extract(ctx, st)
	p.mapTerm(ctx, st)
	p.validate(ctx, st)
	p.output(ctx, st)
	return st
}

// complete runs one LLM call through the bounded worker pool.
func (p *Pipeline) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var out string
	err := p.pool.Do(ctx, func() error {
		var callErr error
		out, callErr = p.llm.Complete(ctx, prompt, maxTokens)
		return callErr
	})
	return out, err
}

// search runs one terminology search through the bounded worker pool.
func (p *Pipeline) search(ctx context.Context, query string) ([]icd.Entity, error) {
	var out []icd.Entity
	err := p.pool.Do(ctx, func() error {
		var callErr error
		out, callErr = p.icd.Search(ctx, query)
		return callErr
	})
	return out, err
}

// push runs one record forward through the bounded worker pool.
func (p *Pipeline) push(ctx context.Context, cond *fhir.Condition) (map[string]interface{}, error) {
	var out map[string]interface{}
	err := p.pool.Do(ctx, func() error {
		var callErr error
		out, callErr = p.abdm.PushCondition(ctx, cond)
		return callErr
	})
	return out, err
}
