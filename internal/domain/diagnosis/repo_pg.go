package diagnosis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Create(ctx context.Context, d *Diagnosis) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO diagnoses (id, patient_ref, ayush_term, icd_code, confidence_score, raw_text)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		d.ID, d.PatientRef, d.AyushTerm, d.ICDCode, d.Confidence, d.RawText).
		Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert diagnosis: %w", err)
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientRef string, limit int) ([]*Diagnosis, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, patient_ref, ayush_term, icd_code, confidence_score, raw_text, created_at
		 FROM diagnoses WHERE patient_ref = $1
		 ORDER BY created_at DESC LIMIT $2`, patientRef, limit)
	if err != nil {
		return nil, fmt.Errorf("list diagnoses: %w", err)
	}
	defer rows.Close()

	var results []*Diagnosis
	for rows.Next() {
		var d Diagnosis
		if err := rows.Scan(&d.ID, &d.PatientRef, &d.AyushTerm, &d.ICDCode, &d.Confidence, &d.RawText, &d.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}
