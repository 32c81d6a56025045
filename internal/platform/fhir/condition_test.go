package fhir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewConditionDualCoding(t *testing.T) {
	cond := NewCondition("ED63.0", "Vitiligo", "Shvitra", "Patient/F-1", "Validated by LLM", 0.9)

	if cond.ResourceType != "Condition" {
		t.Errorf("resourceType = %q", cond.ResourceType)
	}
	if _, err := uuid.Parse(cond.ID); err != nil {
		t.Errorf("id %q is not a UUID: %v", cond.ID, err)
	}
	if len(cond.Code.Coding) != 2 {
		t.Fatalf("got %d codings, want 2", len(cond.Code.Coding))
	}
	icd := cond.Code.Coding[0]
	if icd.System != SystemICD11 || icd.Code != "ED63.0" || icd.Display != "Vitiligo" {
		t.Errorf("icd coding = %+v", icd)
	}
	ayush := cond.Code.Coding[1]
	if ayush.System != SystemAYUSH || ayush.Code != "Shvitra" {
		t.Errorf("ayush coding = %+v", ayush)
	}
	if cond.Subject.Reference != "Patient/F-1" {
		t.Errorf("subject = %+v", cond.Subject)
	}
	if len(cond.Note) != 1 || cond.Note[0].Text != "Validated by LLM" {
		t.Errorf("note = %+v", cond.Note)
	}
	if cond.Confidence != 0.9 {
		t.Errorf("confidence = %f", cond.Confidence)
	}
	if _, err := time.Parse(time.RFC3339, cond.OnsetDateTime); err != nil {
		t.Errorf("onsetDateTime %q: %v", cond.OnsetDateTime, err)
	}
}

func TestNewConditionOmitsEmptyNote(t *testing.T) {
	cond := NewCondition("UNK", "Unknown", "Jwara", "Patient/F-2", "", 0.0)
	if cond.Note != nil {
		t.Errorf("note = %+v, want none", cond.Note)
	}

	raw, err := json.Marshal(cond)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["note"]; ok {
		t.Error("note serialized despite being empty")
	}
}
