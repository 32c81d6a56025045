package audit

import "context"

// Repository is the audit sink. Failures to record must never affect the
// result being audited.
type Repository interface {
	Record(ctx context.Context, action string, details interface{}) error
}
