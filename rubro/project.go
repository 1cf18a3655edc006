/*
project.go - Project metadata and baseline lifecycle

PURPOSE:
  Each project has one META document in its partition carrying currency,
  start date, the active-baseline pointer, and per-baseline statuses.
  Baselines themselves are stored as BASELINE#{id} documents holding the
  full estimate set.

LIFECYCLE:
  draft -> handed_off -> accepted. Accepting a baseline moves the active
  pointer and is the trigger for materialization (wired in the API
  layer). Superseded baselines keep their status history; their line
  items stay tagged with the original baseline id.

SEE ALSO:
  - materializer.go: Runs on acceptance
  - query.go:        Resolves "" baseline ids via the active pointer
*/
package rubro

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finz/forecast-engine/docstore"
)

// Project is the per-project metadata document.
type Project struct {
	ID             ProjectID
	Name           string
	Currency       string
	StartDate      time.Time // first day of month 1
	ActiveBaseline BaselineID
	Statuses       map[BaselineID]BaselineStatus
}

// BaselineStatusOf returns the lifecycle status of a baseline, defaulting
// to draft for unknown ids.
func (p Project) BaselineStatusOf(id BaselineID) BaselineStatus {
	if s, ok := p.Statuses[id]; ok {
		return s
	}
	return StatusDraft
}

const startDateLayout = "2006-01-02"

// =============================================================================
// PROJECT PERSISTENCE
// =============================================================================

// SaveProject writes the project META document.
func SaveProject(ctx context.Context, s docstore.Store, p Project) error {
	statuses := make(map[string]any, len(p.Statuses))
	for id, st := range p.Statuses {
		statuses[string(id)] = string(st)
	}
	startDate := ""
	if !p.StartDate.IsZero() {
		startDate = p.StartDate.Format(startDateLayout)
	}
	item := docstore.Item{
		Key: docstore.Key{PartitionID: PartitionKey(p.ID), SortID: SortProjectMeta},
		Doc: map[string]any{
			"id":                string(p.ID),
			"name":              p.Name,
			"currency":          p.Currency,
			"start_date":        startDate,
			"active_baseline":   string(p.ActiveBaseline),
			"baseline_statuses": statuses,
		},
	}
	return s.Put(ctx, item, docstore.Unconditional)
}

// LoadProject reads the project META document.
func LoadProject(ctx context.Context, s docstore.Store, projectID ProjectID) (Project, error) {
	item, err := s.Get(ctx, docstore.Key{PartitionID: PartitionKey(projectID), SortID: SortProjectMeta})
	if errors.Is(err, docstore.ErrNotFound) {
		return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	if err != nil {
		return Project{}, err
	}

	p := Project{
		ID:             ProjectID(docstore.String(item.Doc, "id")),
		Name:           docstore.String(item.Doc, "name"),
		Currency:       docstore.String(item.Doc, "currency"),
		ActiveBaseline: BaselineID(docstore.String(item.Doc, "active_baseline")),
		Statuses:       make(map[BaselineID]BaselineStatus),
	}
	if p.ID == "" {
		p.ID = projectID
	}
	if raw := docstore.String(item.Doc, "start_date"); raw != "" {
		if t, err := time.Parse(startDateLayout, raw); err == nil {
			p.StartDate = t
		}
	}
	for id, v := range docstore.Child(item.Doc, "baseline_statuses") {
		if st, ok := v.(string); ok {
			p.Statuses[BaselineID(id)] = BaselineStatus(st)
		}
	}
	return p, nil
}

// =============================================================================
// BASELINE PERSISTENCE
// =============================================================================

// SaveBaseline writes a baseline document with its full estimate set.
func SaveBaseline(ctx context.Context, s docstore.Store, b Baseline) error {
	labor := make([]any, len(b.Labor))
	for i, le := range b.Labor {
		labor[i] = map[string]any{
			"role":            le.Role,
			"rubro_id":        le.RubroID,
			"fte_count":       le.FTECount.String(),
			"hours_per_month": le.HoursPerMonth.String(),
			"hourly_rate":     le.HourlyRate.String(),
			"on_cost_pct":     le.OnCostPct.String(),
			"start_month":     le.StartMonth,
			"end_month":       le.EndMonth,
		}
	}
	nonLabor := make([]any, len(b.NonLabor))
	for i, ne := range b.NonLabor {
		nonLabor[i] = map[string]any{
			"rubro_id":    ne.RubroID,
			"category":    ne.Category,
			"description": ne.Description,
			"vendor":      ne.Vendor,
			"amount":      ne.Amount.String(),
			"one_time":    ne.OneTime,
			"start_month": ne.StartMonth,
			"end_month":   ne.EndMonth,
		}
	}
	item := docstore.Item{
		Key: docstore.Key{PartitionID: PartitionKey(b.ProjectID), SortID: SortPrefixBaseline + string(b.ID)},
		Doc: map[string]any{
			"id":         string(b.ID),
			"project_id": string(b.ProjectID),
			"currency":   b.Currency,
			"status":     string(b.Status),
			"labor":      labor,
			"non_labor":  nonLabor,
		},
	}
	return s.Put(ctx, item, docstore.Unconditional)
}

// LoadBaseline reads one baseline with its estimates.
func LoadBaseline(ctx context.Context, s docstore.Store, projectID ProjectID, baselineID BaselineID) (Baseline, error) {
	item, err := s.Get(ctx, docstore.Key{
		PartitionID: PartitionKey(projectID),
		SortID:      SortPrefixBaseline + string(baselineID),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return Baseline{}, fmt.Errorf("%w: %s", ErrBaselineNotFound, baselineID)
	}
	if err != nil {
		return Baseline{}, err
	}

	b := Baseline{
		ID:        BaselineID(docstore.String(item.Doc, "id")),
		ProjectID: ProjectID(docstore.String(item.Doc, "project_id")),
		Currency:  docstore.String(item.Doc, "currency"),
		Status:    BaselineStatus(docstore.String(item.Doc, "status")),
	}
	if b.ID == "" {
		b.ID = baselineID
	}
	if b.ProjectID == "" {
		b.ProjectID = projectID
	}

	if raw, ok := item.Doc["labor"].([]any); ok {
		for _, entry := range raw {
			doc, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			le := LaborEstimate{
				Role:    docstore.String(doc, "role"),
				RubroID: docstore.String(doc, "rubro_id"),
			}
			le.FTECount, _ = docstore.Decimal(doc, "fte_count")
			le.HoursPerMonth, _ = docstore.Decimal(doc, "hours_per_month")
			le.HourlyRate, _ = docstore.Decimal(doc, "hourly_rate")
			le.OnCostPct, _ = docstore.Decimal(doc, "on_cost_pct")
			le.StartMonth, _ = docstore.Int(doc, "start_month")
			le.EndMonth, _ = docstore.Int(doc, "end_month")
			b.Labor = append(b.Labor, le)
		}
	}
	if raw, ok := item.Doc["non_labor"].([]any); ok {
		for _, entry := range raw {
			doc, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			ne := NonLaborEstimate{
				RubroID:     docstore.String(doc, "rubro_id"),
				Category:    docstore.String(doc, "category"),
				Description: docstore.String(doc, "description"),
				Vendor:      docstore.String(doc, "vendor"),
				OneTime:     docstore.Bool(doc, "one_time"),
			}
			ne.Amount, _ = docstore.Decimal(doc, "amount")
			ne.StartMonth, _ = docstore.Int(doc, "start_month")
			ne.EndMonth, _ = docstore.Int(doc, "end_month")
			b.NonLabor = append(b.NonLabor, ne)
		}
	}
	return b, nil
}

// AcceptBaseline transitions a baseline to accepted and moves the
// project's active pointer. The caller is expected to materialize next.
func AcceptBaseline(ctx context.Context, s docstore.Store, projectID ProjectID, baselineID BaselineID) (Project, Baseline, error) {
	p, err := LoadProject(ctx, s, projectID)
	if err != nil {
		return Project{}, Baseline{}, err
	}
	b, err := LoadBaseline(ctx, s, projectID, baselineID)
	if err != nil {
		return Project{}, Baseline{}, err
	}

	b.Status = StatusAccepted
	if err := SaveBaseline(ctx, s, b); err != nil {
		return Project{}, Baseline{}, err
	}

	if p.Statuses == nil {
		p.Statuses = make(map[BaselineID]BaselineStatus)
	}
	p.Statuses[baselineID] = StatusAccepted
	p.ActiveBaseline = baselineID
	if err := SaveProject(ctx, s, p); err != nil {
		return Project{}, Baseline{}, err
	}
	return p, b, nil
}
