package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) Record(ctx context.Context, action string, details interface{}) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_events (action, details) VALUES ($1, $2)`, action, payload)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
