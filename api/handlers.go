/*
handlers.go - HTTP API handlers for the forecast engine

PURPOSE:
  Exposes the engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Projects:
    POST   /api/projects                              Create project metadata
    GET    /api/projects/{id}/forecast                Forecast grid
    GET    /api/projects/{id}/rubros                  Baseline-scoped line items
  Baselines:
    POST   /api/projects/{id}/baselines               Store a draft baseline
    POST   /api/projects/{id}/baselines/{bid}/handoff Hand off for acceptance
    POST   /api/projects/{id}/baselines/{bid}/accept  Accept + materialize
  Payroll:
    POST   /api/projects/{id}/payroll                 Ingest one entry (201)
    POST   /api/projects/{id}/payroll/bulk            Bulk ingest (partial success)
    GET    /api/projects/{id}/payroll                 Query by kind/period
    GET    /api/projects/{id}/payroll/summary         Labor-vs-indirect series
  Dashboard:
    GET    /api/dashboard/mod-by-month                Portfolio by start month
  Reference:
    GET    /api/taxonomy                              Canonical codes
    GET    /api/health                                Liveness

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, taxonomy violations, unknown rubro references
  - 404: Project/baseline not found
  - 500: Store failures on write paths

SEE ALSO:
  - dto.go:    Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/finz/forecast-engine/docstore"
	"github.com/finz/forecast-engine/forecast"
	"github.com/finz/forecast-engine/payroll"
	"github.com/finz/forecast-engine/rubro"
	"github.com/finz/forecast-engine/taxonomy"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        docstore.Store
	Ledger       *payroll.Ledger
	Aggregator   *forecast.Aggregator
	Materializer *rubro.Materializer
}

// NewHandler wires every component to one store.
func NewHandler(store docstore.Store) *Handler {
	return &Handler{
		Store:        store,
		Ledger:       payroll.NewLedger(store),
		Aggregator:   forecast.New(store),
		Materializer: &rubro.Materializer{Store: store},
	}
}

// =============================================================================
// PROJECTS AND BASELINES
// =============================================================================

// CreateProject stores the project metadata document.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	p := rubro.Project{
		ID:       rubro.ProjectID(req.ID),
		Name:     req.Name,
		Currency: req.Currency,
		Statuses: map[rubro.BaselineID]rubro.BaselineStatus{},
	}
	if req.StartDate != "" {
		t, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", err)
			return
		}
		p.StartDate = t
	}

	if err := rubro.SaveProject(r.Context(), h.Store, p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
}

// CreateBaseline stores a draft baseline with its estimates.
func (h *Handler) CreateBaseline(w http.ResponseWriter, r *http.Request) {
	projectID := rubro.ProjectID(chi.URLParam(r, "id"))
	var req CreateBaselineRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}

	p, err := rubro.LoadProject(r.Context(), h.Store, projectID)
	if err != nil {
		writeDomainError(w, "Failed to load project", err)
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = p.Currency
	}
	b := rubro.Baseline{
		ID:        rubro.BaselineID(req.ID),
		ProjectID: projectID,
		Currency:  currency,
		Status:    rubro.StatusDraft,
	}
	for _, le := range req.Labor {
		b.Labor = append(b.Labor, rubro.LaborEstimate{
			Role:          le.Role,
			RubroID:       le.RubroID,
			FTECount:      decimal.NewFromFloat(le.FTECount),
			HoursPerMonth: decimal.NewFromFloat(le.HoursPerMonth),
			HourlyRate:    decimal.NewFromFloat(le.HourlyRate),
			OnCostPct:     decimal.NewFromFloat(le.OnCostPct),
			StartMonth:    le.StartMonth,
			EndMonth:      le.EndMonth,
		})
	}
	for _, ne := range req.NonLabor {
		b.NonLabor = append(b.NonLabor, rubro.NonLaborEstimate{
			RubroID:     ne.RubroID,
			Category:    ne.Category,
			Description: ne.Description,
			Vendor:      ne.Vendor,
			Amount:      decimal.NewFromFloat(ne.Amount),
			OneTime:     ne.OneTime,
			StartMonth:  ne.StartMonth,
			EndMonth:    ne.EndMonth,
		})
	}

	if err := rubro.SaveBaseline(r.Context(), h.Store, b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save baseline", err)
		return
	}

	if p.Statuses == nil {
		p.Statuses = map[rubro.BaselineID]rubro.BaselineStatus{}
	}
	p.Statuses[b.ID] = rubro.StatusDraft
	if err := rubro.SaveProject(r.Context(), h.Store, p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update project", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID, "status": string(rubro.StatusDraft)})
}

// HandoffBaseline moves a draft baseline to handed_off.
func (h *Handler) HandoffBaseline(w http.ResponseWriter, r *http.Request) {
	projectID := rubro.ProjectID(chi.URLParam(r, "id"))
	baselineID := rubro.BaselineID(chi.URLParam(r, "bid"))

	p, err := rubro.LoadProject(r.Context(), h.Store, projectID)
	if err != nil {
		writeDomainError(w, "Failed to load project", err)
		return
	}
	b, err := rubro.LoadBaseline(r.Context(), h.Store, projectID, baselineID)
	if err != nil {
		writeDomainError(w, "Failed to load baseline", err)
		return
	}

	b.Status = rubro.StatusHandedOff
	if err := rubro.SaveBaseline(r.Context(), h.Store, b); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save baseline", err)
		return
	}
	if p.Statuses == nil {
		p.Statuses = map[rubro.BaselineID]rubro.BaselineStatus{}
	}
	p.Statuses[baselineID] = rubro.StatusHandedOff
	if err := rubro.SaveProject(r.Context(), h.Store, p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update project", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": string(baselineID), "status": string(rubro.StatusHandedOff)})
}

// AcceptBaseline transitions the baseline to accepted and materializes
// its line items. Acceptance is the only materialization trigger.
func (h *Handler) AcceptBaseline(w http.ResponseWriter, r *http.Request) {
	projectID := rubro.ProjectID(chi.URLParam(r, "id"))
	baselineID := rubro.BaselineID(chi.URLParam(r, "bid"))

	_, b, err := rubro.AcceptBaseline(r.Context(), h.Store, projectID, baselineID)
	if err != nil {
		writeDomainError(w, "Failed to accept baseline", err)
		return
	}

	report, err := h.Materializer.Materialize(r.Context(), projectID, b)
	if err != nil {
		writeDomainError(w, "Materialization failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// ListRubros returns the baseline-scoped line items plus their total.
func (h *Handler) ListRubros(w http.ResponseWriter, r *http.Request) {
	projectID := rubro.ProjectID(chi.URLParam(r, "id"))
	baselineID := rubro.BaselineID(r.URL.Query().Get("baselineId"))

	items, err := rubro.QueryLineItems(r.Context(), h.Store, projectID, baselineID)
	if err != nil {
		writeDomainError(w, "Failed to query line items", err)
		return
	}

	dtos := make([]RubroDTO, len(items))
	for i, li := range items {
		dtos[i] = toRubroDTO(li)
	}
	writeJSON(w, http.StatusOK, RubrosResponse{
		Data:      dtos,
		ProjectID: string(projectID),
		TotalCost: rubro.CalculateTotalCost(items).InexactFloat64(),
	})
}

// =============================================================================
// FORECAST
// =============================================================================

// GetForecast returns the forecast grid for a project.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	projectID := rubro.ProjectID(chi.URLParam(r, "id"))

	months := forecast.DefaultMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := parseInt(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "months must be an integer", err)
			return
		}
		months = n
	}

	cells, err := h.Aggregator.Aggregate(r.Context(), projectID, months)
	if err != nil {
		writeDomainError(w, "Failed to aggregate forecast", err)
		return
	}

	dtos := make([]ForecastCellDTO, len(cells))
	for i, c := range cells {
		dtos[i] = toCellDTO(c)
	}
	writeJSON(w, http.StatusOK, ForecastResponse{
		Data:        dtos,
		ProjectID:   string(projectID),
		Months:      months,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// PAYROLL
// =============================================================================

// CreatePayroll ingests one payroll entry.
func (h *Handler) CreatePayroll(w http.ResponseWriter, r *http.Request) {
	projectID := rubro.ProjectID(chi.URLParam(r, "id"))
	var req CreatePayrollRequest
	if !readJSON(w, r, &req) {
		return
	}

	entry, err := h.Ledger.Put(r.Context(), payroll.Entry{
		ProjectID:     projectID,
		Period:        req.Period,
		Kind:          payroll.Kind(req.Kind),
		Amount:        decimal.NewFromFloat(req.Amount),
		Currency:      req.Currency,
		RubroID:       req.RubroID,
		AllocationID:  req.AllocationID,
		ResourceCount: req.ResourceCount,
		Notes:         req.Notes,
	})
	if err != nil {
		writeDomainError(w, "Failed to ingest payroll entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayrollDTO(entry))
}

// BulkPayroll ingests entries with the partial-success policy.
func (h *Handler) BulkPayroll(w http.ResponseWriter, r *http.Request) {
	projectID := rubro.ProjectID(chi.URLParam(r, "id"))
	var req BulkPayrollRequest
	if !readJSON(w, r, &req) {
		return
	}

	entries := make([]payroll.Entry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = payroll.Entry{
			ProjectID:     projectID,
			Period:        e.Period,
			Kind:          payroll.Kind(e.Kind),
			Amount:        decimal.NewFromFloat(e.Amount),
			Currency:      e.Currency,
			RubroID:       e.RubroID,
			AllocationID:  e.AllocationID,
			ResourceCount: e.ResourceCount,
			Notes:         e.Notes,
		}
	}
	writeJSON(w, http.StatusOK, h.Ledger.PutBulk(r.Context(), entries))
}

// ListPayroll queries the ledger by kind and optionally by period.
func (h *Handler) ListPayroll(w http.ResponseWriter, r *http.Request) {
	projectID := rubro.ProjectID(chi.URLParam(r, "id"))
	kind := payroll.Kind(r.URL.Query().Get("kind"))
	period := r.URL.Query().Get("period")

	if kind != "" {
		if _, err := payroll.ParseKind(string(kind)); err != nil {
			writeDomainError(w, "Invalid kind", err)
			return
		}
	}

	var (
		entries []payroll.Entry
		err     error
	)
	if period != "" {
		entries, err = h.Ledger.QueryByPeriod(r.Context(), projectID, period, kind)
	} else {
		entries, err = h.Ledger.QueryByProject(r.Context(), projectID, kind)
	}
	if err != nil {
		writeDomainError(w, "Failed to query payroll", err)
		return
	}

	dtos := make([]PayrollEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toPayrollDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPayrollSummary returns the labor-vs-indirect time series.
func (h *Handler) GetPayrollSummary(w http.ResponseWriter, r *http.Request) {
	projectID := rubro.ProjectID(chi.URLParam(r, "id"))

	rows, err := h.Ledger.Summarize(r.Context(), projectID)
	if err != nil {
		writeDomainError(w, "Failed to summarize payroll", err)
		return
	}

	dtos := make([]SummaryRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toSummaryDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// DASHBOARD AND REFERENCE DATA
// =============================================================================

// DashboardMODByMonth returns the portfolio grouped by project start month.
func (h *Handler) DashboardMODByMonth(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.Ledger.AggregateByStartMonth(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to aggregate dashboard", err)
		return
	}

	dtos := make([]MODProjectionDTO, len(buckets))
	for i, b := range buckets {
		dtos[i] = toProjectionDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListTaxonomy returns the canonical cost-line vocabulary.
func (h *Handler) ListTaxonomy(w http.ResponseWriter, _ *http.Request) {
	entries := taxonomy.Codes()
	dtos := make([]TaxonomyEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toTaxonomyDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health is the liveness stub.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, rubro.ErrValidation),
		errors.Is(err, taxonomy.ErrTaxonomyViolation),
		errors.Is(err, payroll.ErrUnknownRubro):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, rubro.ErrProjectNotFound),
		errors.Is(err, rubro.ErrBaselineNotFound),
		errors.Is(err, docstore.ErrNotFound):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// readJSON decodes a bounded request body; on failure it writes the 400
// itself and returns false.
func readJSON(w http.ResponseWriter, r *http.Request, data any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(data); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
