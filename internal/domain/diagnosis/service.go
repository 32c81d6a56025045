package diagnosis

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushmap/ayushmap/internal/domain/audit"
	"github.com/ayushmap/ayushmap/internal/domain/pipeline"
)

// Runner is the mapping pipeline entry point.
type Runner interface {
	Run(ctx context.Context, rawText, patientRef string, autoPush bool) *pipeline.State
}

// Service runs the pipeline under the configured deadline and hands the
// result to the persistence and audit collaborators. A persistence or audit
// failure never rolls back the computed result.
type Service struct {
	runner  Runner
	repo    Repository
	audit   audit.Repository
	timeout time.Duration
	log     zerolog.Logger
}

func NewService(runner Runner, repo Repository, auditRepo audit.Repository, timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Service{
		runner:  runner,
		repo:    repo,
		audit:   auditRepo,
		timeout: timeout,
		log:     logger,
	}
}

// Run executes one pipeline invocation and persists the projection.
func (s *Service) Run(ctx context.Context, patientRef, rawText string, autoPush bool) (*pipeline.State, *Diagnosis) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	state := s.runner.Run(runCtx, rawText, patientRef, autoPush)

	code := "UNK"
	if state.Best != nil && state.Best.Code != "" {
		code = state.Best.Code
	}
	term := state.AyushTerm
	if term == "" {
		term = "Unknown"
	}

	diag := &Diagnosis{
		PatientRef: patientRef,
		AyushTerm:  term,
		ICDCode:    code,
		Confidence: state.Confidence,
		RawText:    rawText,
	}
	if err := s.repo.Create(ctx, diag); err != nil {
		s.log.Error().Err(err).Str("patient_ref", patientRef).Msg("failed to persist diagnosis")
		diag = nil
	}

	details := map[string]interface{}{
		"patient_ref":    patientRef,
		"pipeline_state": state,
	}
	if diag != nil {
		details["diagnosis_id"] = diag.ID
	}
	if err := s.audit.Record(ctx, "run_pipeline", details); err != nil {
		s.log.Error().Err(err).Msg("failed to record audit event")
	}

	return state, diag
}

// List returns stored diagnoses for a patient reference.
func (s *Service) List(ctx context.Context, patientRef string, limit int) ([]*Diagnosis, error) {
	return s.repo.ListByPatient(ctx, patientRef, limit)
}
