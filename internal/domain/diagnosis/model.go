package diagnosis

import (
	"time"

	"github.com/google/uuid"
)

// Diagnosis is the stored projection of one pipeline run: term, code,
// confidence and the source note.
type Diagnosis struct {
	ID         uuid.UUID `json:"id"`
	PatientRef string    `json:"patient_ref"`
	AyushTerm  string    `json:"ayush_term"`
	ICDCode    string    `json:"icd_code"`
	Confidence float64   `json:"confidence_score"`
	RawText    string    `json:"raw_text"`
	CreatedAt  time.Time `json:"created_at"`
}
