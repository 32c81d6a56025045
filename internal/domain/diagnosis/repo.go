package diagnosis

import "context"

// Repository persists diagnosis projections.
type Repository interface {
	Create(ctx context.Context, d *Diagnosis) error
	ListByPatient(ctx context.Context, patientRef string, limit int) ([]*Diagnosis, error)
}
