/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model (decimal amounts, typed ids) from the external
  API contract (plain JSON numbers and strings).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers and the domain packages, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/finz/forecast-engine/forecast"
	"github.com/finz/forecast-engine/payroll"
	"github.com/finz/forecast-engine/rubro"
	"github.com/finz/forecast-engine/taxonomy"
)

// =============================================================================
// FORECAST
// =============================================================================

// ForecastCellDTO is one (line item, month) cell of the grid.
type ForecastCellDTO struct {
	LineItemID string  `json:"line_item_id"`
	Month      int     `json:"month"`
	Planned    float64 `json:"planned"`
	Forecast   float64 `json:"forecast"`
	Actual     float64 `json:"actual"`
	Variance   float64 `json:"variance"`
	Source     string  `json:"source"`
}

// ForecastResponse wraps a forecast grid.
type ForecastResponse struct {
	Data        []ForecastCellDTO `json:"data"`
	ProjectID   string            `json:"projectId"`
	Months      int               `json:"months"`
	GeneratedAt string            `json:"generatedAt"`
}

func toCellDTO(c forecast.Cell) ForecastCellDTO {
	return ForecastCellDTO{
		LineItemID: c.LineItemID,
		Month:      c.Month,
		Planned:    c.Planned.InexactFloat64(),
		Forecast:   c.Forecast.InexactFloat64(),
		Actual:     c.Actual.InexactFloat64(),
		Variance:   c.Variance.InexactFloat64(),
		Source:     string(c.Source),
	}
}

// =============================================================================
// PAYROLL
// =============================================================================

// CreatePayrollRequest is the ingestion body for one payroll entry.
type CreatePayrollRequest struct {
	Period        string  `json:"period"`
	Kind          string  `json:"kind"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	RubroID       string  `json:"rubroId,omitempty"`
	AllocationID  string  `json:"allocationId,omitempty"`
	ResourceCount int     `json:"resourceCount,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

// BulkPayrollRequest carries multiple entries for partial-success ingestion.
type BulkPayrollRequest struct {
	Entries []CreatePayrollRequest `json:"entries"`
}

// PayrollEntryDTO is one ledger entry in responses.
type PayrollEntryDTO struct {
	ID            string  `json:"id"`
	ProjectID     string  `json:"project_id"`
	Period        string  `json:"period"`
	Kind          string  `json:"kind"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	RubroID       string  `json:"rubro_id,omitempty"`
	AllocationID  string  `json:"allocation_id,omitempty"`
	ResourceCount int     `json:"resource_count,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	CreatedAt     string  `json:"created_at,omitempty"`
}

func toPayrollDTO(e payroll.Entry) PayrollEntryDTO {
	dto := PayrollEntryDTO{
		ID:            e.ID,
		ProjectID:     string(e.ProjectID),
		Period:        e.Period,
		Kind:          string(e.Kind),
		Amount:        e.Amount.InexactFloat64(),
		Currency:      e.Currency,
		RubroID:       e.RubroID,
		AllocationID:  e.AllocationID,
		ResourceCount: e.ResourceCount,
		Notes:         e.Notes,
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return dto
}

// SummaryRowDTO is one period of the labor-vs-indirect time series.
type SummaryRowDTO struct {
	Period             string  `json:"period"`
	PlanMOD            float64 `json:"planMOD"`
	ForecastMOD        float64 `json:"forecastMOD"`
	ActualMOD          float64 `json:"actualMOD"`
	IndirectPlan       float64 `json:"indirectPlan"`
	IndirectActual     float64 `json:"indirectActual"`
	TotalPlan          float64 `json:"totalPlan"`
	TotalForecast      float64 `json:"totalForecast"`
	TotalActual        float64 `json:"totalActual"`
	LaborSharePlan     float64 `json:"laborSharePlan"`
	LaborShareForecast float64 `json:"laborShareForecast"`
	LaborShareActual   float64 `json:"laborShareActual"`
}

func toSummaryDTO(row payroll.TimeSeriesRow) SummaryRowDTO {
	return SummaryRowDTO{
		Period:             row.Period,
		PlanMOD:            row.PlanMOD.InexactFloat64(),
		ForecastMOD:        row.ForecastMOD.InexactFloat64(),
		ActualMOD:          row.ActualMOD.InexactFloat64(),
		IndirectPlan:       row.IndirectPlan.InexactFloat64(),
		IndirectActual:     row.IndirectActual.InexactFloat64(),
		TotalPlan:          row.TotalPlan.InexactFloat64(),
		TotalForecast:      row.TotalForecast.InexactFloat64(),
		TotalActual:        row.TotalActual.InexactFloat64(),
		LaborSharePlan:     row.LaborSharePlan.InexactFloat64(),
		LaborShareForecast: row.LaborShareForecast.InexactFloat64(),
		LaborShareActual:   row.LaborShareActual.InexactFloat64(),
	}
}

// MODProjectionDTO is one start-month bucket of the dashboard.
type MODProjectionDTO struct {
	Month         string   `json:"month"`
	Projects      int      `json:"projects"`
	Plan          float64  `json:"plan"`
	Forecast      float64  `json:"forecast"`
	Actual        float64  `json:"actual"`
	PayrollTarget *float64 `json:"payrollTarget,omitempty"`
}

func toProjectionDTO(p payroll.MODProjection) MODProjectionDTO {
	dto := MODProjectionDTO{
		Month:    p.Month,
		Projects: p.Projects,
		Plan:     p.Plan.InexactFloat64(),
		Forecast: p.Forecast.InexactFloat64(),
		Actual:   p.Actual.InexactFloat64(),
	}
	if p.PayrollTarget != nil {
		t := p.PayrollTarget.InexactFloat64()
		dto.PayrollTarget = &t
	}
	return dto
}

// =============================================================================
// RUBROS AND BASELINES
// =============================================================================

// RubroDTO is one materialized line item.
type RubroDTO struct {
	ID         string  `json:"id"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	UnitCost   float64 `json:"unit_cost"`
	Currency   string  `json:"currency"`
	Recurring  bool    `json:"recurring"`
	OneTime    bool    `json:"one_time"`
	StartMonth int     `json:"start_month"`
	EndMonth   int     `json:"end_month"`
	TotalCost  float64 `json:"total_cost"`
	BaselineID string  `json:"baseline_id,omitempty"`
}

func toRubroDTO(li rubro.LineItem) RubroDTO {
	return RubroDTO{
		ID:         li.ID,
		Code:       string(li.Code),
		Name:       li.Name,
		Quantity:   li.Quantity.InexactFloat64(),
		UnitCost:   li.UnitCost.InexactFloat64(),
		Currency:   li.Currency,
		Recurring:  li.Recurring,
		OneTime:    li.OneTime,
		StartMonth: li.StartMonth,
		EndMonth:   li.EndMonth,
		TotalCost:  li.TotalCost.InexactFloat64(),
		BaselineID: string(li.BaselineTag()),
	}
}

// RubrosResponse wraps a baseline-scoped line item listing.
type RubrosResponse struct {
	Data      []RubroDTO `json:"data"`
	ProjectID string     `json:"projectId"`
	TotalCost float64    `json:"totalCost"`
}

// CreateProjectRequest creates the project metadata document.
type CreateProjectRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	StartDate string `json:"start_date"` // YYYY-MM-DD, first day of month 1
}

// LaborEstimateDTO mirrors rubro.LaborEstimate on the wire.
type LaborEstimateDTO struct {
	Role          string  `json:"role"`
	RubroID       string  `json:"rubroId"`
	FTECount      float64 `json:"fte_count"`
	HoursPerMonth float64 `json:"hours_per_month"`
	HourlyRate    float64 `json:"hourly_rate"`
	OnCostPct     float64 `json:"on_cost_percentage"`
	StartMonth    int     `json:"start_month"`
	EndMonth      int     `json:"end_month"`
}

// NonLaborEstimateDTO mirrors rubro.NonLaborEstimate on the wire.
type NonLaborEstimateDTO struct {
	RubroID     string  `json:"rubroId"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	Vendor      string  `json:"vendor,omitempty"`
	Amount      float64 `json:"amount"`
	OneTime     bool    `json:"one_time"`
	StartMonth  int     `json:"start_month"`
	EndMonth    int     `json:"end_month"`
}

// CreateBaselineRequest stores a draft baseline with its estimates.
type CreateBaselineRequest struct {
	ID       string                `json:"id"`
	Currency string                `json:"currency,omitempty"`
	Labor    []LaborEstimateDTO    `json:"labor"`
	NonLabor []NonLaborEstimateDTO `json:"non_labor"`
}

// MaterializationErrorDTO is one failed estimate of a materialization.
type MaterializationErrorDTO struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// MaterializationReportDTO is the outcome of accepting a baseline.
type MaterializationReportDTO struct {
	Seeded  int                       `json:"seeded"`
	Skipped bool                      `json:"skipped"`
	Reason  string                    `json:"reason,omitempty"`
	Errors  []MaterializationErrorDTO `json:"errors,omitempty"`
}

func toReportDTO(r rubro.Report) MaterializationReportDTO {
	dto := MaterializationReportDTO{Seeded: r.Seeded, Skipped: r.Skipped, Reason: r.Reason}
	for _, ie := range r.Errors {
		dto.Errors = append(dto.Errors, MaterializationErrorDTO{Index: ie.Index, Message: ie.Err.Error()})
	}
	return dto
}

// =============================================================================
// TAXONOMY AND ERRORS
// =============================================================================

// TaxonomyEntryDTO is one canonical cost-line code.
type TaxonomyEntryDTO struct {
	Code         string `json:"code"`
	Category     string `json:"category"`
	CategoryCode string `json:"category_code"`
	Description  string `json:"description"`
}

func toTaxonomyDTO(e taxonomy.Entry) TaxonomyEntryDTO {
	return TaxonomyEntryDTO{
		Code:         string(e.Code),
		Category:     e.Category,
		CategoryCode: e.CategoryCode,
		Description:  e.Description,
	}
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
