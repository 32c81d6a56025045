package diagnosis

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newHandler() (*Handler, *fakeRepo) {
	repo := &fakeRepo{}
	svc := NewService(&fakeRunner{}, repo, &fakeAudit{}, 30*time.Second, zerolog.Nop())
	return NewHandler(svc), repo
}

func TestRunPipelineEndpoint(t *testing.T) {
	h, repo := newHandler()
	e := echo.New()

	body := `{"patient_ref": "Patient/H-1", "raw_text": "Jwara noted", "auto_push": false}`
	req := httptest.NewRequest(http.MethodPost, "/pipeline/run", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.RunPipeline(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Diagnosis map[string]interface{} `json:"diagnosis"`
		Result    map[string]interface{} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Result == nil {
		t.Fatal("response missing pipeline result")
	}
	if resp.Diagnosis["icd_code"] != "1C62" {
		t.Errorf("diagnosis icd_code = %v", resp.Diagnosis["icd_code"])
	}
	if len(repo.created) != 1 {
		t.Errorf("created %d rows, want 1", len(repo.created))
	}
}

func TestRunPipelineMissingFields(t *testing.T) {
	h, _ := newHandler()
	e := echo.New()

	for _, body := range []string{
		`{"raw_text": "Jwara"}`,
		`{"patient_ref": "Patient/H-2"}`,
		`{}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/pipeline/run", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := h.RunPipeline(c)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusBadRequest {
			t.Errorf("body %s: err = %v, want 400", body, err)
		}
	}
}

func TestListDiagnosesEndpoint(t *testing.T) {
	h, repo := newHandler()
	repo.listed = []*Diagnosis{{PatientRef: "Patient/H-3", ICDCode: "ED63.0"}}
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/diagnoses?patient_ref=Patient%2FH-3", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListDiagnoses(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var rows []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["icd_code"] != "ED63.0" {
		t.Errorf("rows = %v", rows)
	}
}

func TestListDiagnosesRequiresPatientRef(t *testing.T) {
	h, _ := newHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/diagnoses", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.ListDiagnoses(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestListDiagnosesEmptyIsArray(t *testing.T) {
	h, _ := newHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/diagnoses?patient_ref=Patient%2FH-4", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListDiagnoses(c); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %s, want empty array", got)
	}
}
