// Package inspection is the QC checklist engine: it instantiates per-request
// checklists from the template catalog, accepts item verdicts, and derives
// the aggregate pass/fail/in-progress verdict on every save.
package inspection

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/store"

	"github.com/google/uuid"
)

type Engine struct {
	inspections store.InspectionStore
	catalog     store.CatalogStore
	now         func() time.Time
}

func NewEngine(inspections store.InspectionStore, catalog store.CatalogStore) *Engine {
	return &Engine{
		inspections: inspections,
		catalog:     catalog,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// OpenOrCreate returns the live inspection for a request, creating it lazily
// on first open. Idempotent: an existing inspection is returned as-is, and
// an existing inspection with zero items is backfilled from its own stored
// template name, not the caller's hint (covers out-of-order template
// seeding). A missing or empty template degrades to an empty checklist with
// a warning; it never blocks the inspection flow.
func (e *Engine) OpenOrCreate(ctx context.Context, requestCode string, jobType models.JobType) (models.Inspection, []models.InspectionItem, error) {
	inspection, err := e.inspections.GetInspectionByRequest(ctx, requestCode)
	if err == nil {
		items, err := e.inspections.ListItems(ctx, inspection.InspectionID)
		if err != nil {
			return models.Inspection{}, nil, err
		}
		if len(items) > 0 {
			return inspection, items, nil
		}
		items, err = e.instantiateItems(ctx, inspection.InspectionID, inspection.TemplateName)
		if err != nil {
			return models.Inspection{}, nil, err
		}
		return inspection, items, nil
	}
	if !errors.Is(err, store.ErrInspectionNotFound) {
		return models.Inspection{}, nil, err
	}

	inspection = models.Inspection{
		InspectionID:    uuid.NewString(),
		RequestCode:     requestCode,
		TemplateName:    models.TemplateFor(jobType),
		AggregateStatus: models.InspectionPending,
		CreatedAt:       e.now(),
	}
	// The store resolves create races on request_code; continue with
	// whichever inspection actually persisted.
	inspection, err = e.inspections.CreateInspection(ctx, inspection)
	if err != nil {
		return models.Inspection{}, nil, err
	}
	items, err := e.inspections.ListItems(ctx, inspection.InspectionID)
	if err != nil {
		return models.Inspection{}, nil, err
	}
	if len(items) > 0 {
		return inspection, items, nil
	}
	items, err = e.instantiateItems(ctx, inspection.InspectionID, inspection.TemplateName)
	if err != nil {
		return models.Inspection{}, nil, err
	}
	return inspection, items, nil
}

func (e *Engine) instantiateItems(ctx context.Context, inspectionID, templateName string) ([]models.InspectionItem, error) {
	template, err := e.catalog.GetTemplate(ctx, templateName)
	if err != nil {
		if errors.Is(err, store.ErrTemplateNotFound) {
			log.Printf("inspection %s: template %q not found, presenting empty checklist", inspectionID, templateName)
			return []models.InspectionItem{}, nil
		}
		return nil, err
	}
	if len(template.Items) == 0 {
		log.Printf("inspection %s: template %q has no checklist items", inspectionID, templateName)
		return []models.InspectionItem{}, nil
	}

	categories := make(map[string]string, len(template.Categories))
	for _, category := range template.Categories {
		categories[category.CategoryID] = category.Name
	}

	items := make([]models.InspectionItem, 0, len(template.Items))
	for _, entry := range template.Items {
		items = append(items, models.InspectionItem{
			ItemID:          uuid.NewString(),
			InspectionID:    inspectionID,
			ChecklistItemID: entry.ItemID,
			CategoryName:    categories[entry.CategoryID],
			Name:            entry.Name,
			Description:     entry.Description,
			Sequence:        entry.Sequence,
			Verdict:         models.VerdictPending,
		})
	}
	if err := e.inspections.InsertItems(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Load fetches an inspection and its items by inspection ID.
func (e *Engine) Load(ctx context.Context, inspectionID string) (models.Inspection, []models.InspectionItem, error) {
	inspection, err := e.inspections.GetInspection(ctx, inspectionID)
	if err != nil {
		return models.Inspection{}, nil, err
	}
	items, err := e.inspections.ListItems(ctx, inspection.InspectionID)
	if err != nil {
		return models.Inspection{}, nil, err
	}
	return inspection, items, nil
}

// SaveResult is returned to the caller so dependent views can update the
// request badge without a full reload.
type SaveResult struct {
	AggregateStatus models.InspectionStatus `json:"aggregate_status"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
}

// Save persists every item's current verdict and comment, recomputes the
// aggregate, and stamps completed_at exactly when the aggregate leaves
// pending/in-progress (cleared again while in progress). Request status and
// inspection completion are independent writes; there is no cross-record
// transaction between them.
func (e *Engine) Save(ctx context.Context, inspectionID string, updates []ItemUpdate, inspectorIdentity string) (SaveResult, error) {
	inspection, err := e.inspections.GetInspection(ctx, inspectionID)
	if err != nil {
		return SaveResult{}, err
	}
	items, err := e.inspections.ListItems(ctx, inspection.InspectionID)
	if err != nil {
		return SaveResult{}, err
	}

	merged := ApplyUpdates(items, updates)
	aggregate := AggregateItems(merged)

	var completedAt *time.Time
	if aggregate != models.InspectionPending && aggregate != models.InspectionInProgress {
		now := e.now()
		completedAt = &now
	}

	input := store.SaveInspectionInput{
		InspectionID:    inspection.InspectionID,
		Inspector:       inspectorIdentity,
		AggregateStatus: aggregate,
		CompletedAt:     completedAt,
		Items:           merged,
	}
	if err := e.inspections.SaveInspection(ctx, input); err != nil {
		return SaveResult{}, err
	}
	return SaveResult{AggregateStatus: aggregate, CompletedAt: completedAt}, nil
}
