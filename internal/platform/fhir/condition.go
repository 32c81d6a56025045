// Package fhir holds the FHIR resource shapes this service produces.
package fhir

import (
	"time"

	"github.com/google/uuid"
)

const (
	SystemICD11 = "ICD-11"
	SystemAYUSH = "AYUSH"
)

type Coding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding"`
}

type Reference struct {
	Reference string `json:"reference"`
}

type Annotation struct {
	Text string `json:"text"`
}

// Condition is the structured clinical record the pipeline emits. It carries
// a dual coding: the mapped ICD-11 code and the original AYUSH term.
type Condition struct {
	ResourceType  string          `json:"resourceType"`
	ID            string          `json:"id"`
	Code          CodeableConcept `json:"code"`
	Subject       Reference       `json:"subject"`
	OnsetDateTime string          `json:"onsetDateTime"`
	Note          []Annotation    `json:"note,omitempty"`
	Confidence    float64         `json:"confidence"`
}

// NewCondition builds a Condition resource for the mapped diagnosis.
func NewCondition(icdCode, icdTitle, ayushTerm, patientRef, reason string, confidence float64) *Condition {
	cond := &Condition{
		ResourceType: "Condition",
		ID:           uuid.NewString(),
		Code: CodeableConcept{
			Coding: []Coding{
				{System: SystemICD11, Code: icdCode, Display: icdTitle},
				{System: SystemAYUSH, Code: ayushTerm},
			},
		},
		Subject:       Reference{Reference: patientRef},
		OnsetDateTime: time.Now().UTC().Format(time.RFC3339),
		Confidence:    confidence,
	}
	if reason != "" {
		cond.Note = []Annotation{{Text: reason}}
	}
	return cond
}
