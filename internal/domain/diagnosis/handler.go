package diagnosis

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler exposes the pipeline run endpoint and stored diagnosis listing.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/pipeline/run", h.RunPipeline)
	api.GET("/diagnoses", h.ListDiagnoses)
}

type runRequest struct {
	PatientRef string `json:"patient_ref"`
	RawText    string `json:"raw_text"`
	AutoPush   bool   `json:"auto_push"`
}

type runResponse struct {
	Diagnosis interface{} `json:"diagnosis,omitempty"`
	Result    interface{} `json:"result"`
}

// RunPipeline handles POST /api/v1/pipeline/run.
func (h *Handler) RunPipeline(c echo.Context) error {
	var req runRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.PatientRef == "" || req.RawText == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "fields 'patient_ref' and 'raw_text' are required")
	}

	state, diag := h.svc.Run(c.Request().Context(), req.PatientRef, req.RawText, req.AutoPush)

	resp := runResponse{Result: state}
	if diag != nil {
		resp.Diagnosis = diag
	}
	return c.JSON(http.StatusOK, resp)
}

// ListDiagnoses handles GET /api/v1/diagnoses?patient_ref=...
func (h *Handler) ListDiagnoses(c echo.Context) error {
	patientRef := c.QueryParam("patient_ref")
	if patientRef == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter 'patient_ref' is required")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	results, err := h.svc.List(c.Request().Context(), patientRef, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list diagnoses")
	}
	if results == nil {
		results = []*Diagnosis{}
	}
	return c.JSON(http.StatusOK, results)
}
