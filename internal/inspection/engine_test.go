package inspection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/store"
)

// memoryInspections is an in-memory InspectionStore; the engine tests drive
// full open/save cycles through it.
type memoryInspections struct {
	inspections map[string]models.Inspection // by inspection id
	byRequest   map[string]string            // request code -> inspection id
	items       map[string][]models.InspectionItem
	saved       *store.SaveInspectionInput
}

func newMemoryInspections() *memoryInspections {
	return &memoryInspections{
		inspections: make(map[string]models.Inspection),
		byRequest:   make(map[string]string),
		items:       make(map[string][]models.InspectionItem),
	}
}

func (m *memoryInspections) GetInspectionByRequest(ctx context.Context, requestCode string) (models.Inspection, error) {
	id, ok := m.byRequest[requestCode]
	if !ok {
		return models.Inspection{}, store.ErrInspectionNotFound
	}
	return m.inspections[id], nil
}

func (m *memoryInspections) GetInspection(ctx context.Context, inspectionID string) (models.Inspection, error) {
	inspection, ok := m.inspections[inspectionID]
	if !ok {
		return models.Inspection{}, store.ErrInspectionNotFound
	}
	return inspection, nil
}

func (m *memoryInspections) CreateInspection(ctx context.Context, inspection models.Inspection) (models.Inspection, error) {
	if id, ok := m.byRequest[inspection.RequestCode]; ok {
		return m.inspections[id], nil
	}
	m.inspections[inspection.InspectionID] = inspection
	m.byRequest[inspection.RequestCode] = inspection.InspectionID
	return inspection, nil
}

func (m *memoryInspections) ListItems(ctx context.Context, inspectionID string) ([]models.InspectionItem, error) {
	return m.items[inspectionID], nil
}

func (m *memoryInspections) InsertItems(ctx context.Context, items []models.InspectionItem) error {
	for _, item := range items {
		m.items[item.InspectionID] = append(m.items[item.InspectionID], item)
	}
	return nil
}

func (m *memoryInspections) SaveInspection(ctx context.Context, input store.SaveInspectionInput) error {
	inspection, ok := m.inspections[input.InspectionID]
	if !ok {
		return store.ErrInspectionNotFound
	}
	inspection.Inspector = input.Inspector
	inspection.AggregateStatus = input.AggregateStatus
	inspection.CompletedAt = input.CompletedAt
	m.inspections[input.InspectionID] = inspection
	m.items[input.InspectionID] = input.Items
	m.saved = &input
	return nil
}

type fakeCatalog struct {
	getTemplateFn func(ctx context.Context, templateName string) (models.InspectionTemplate, error)
}

func (f fakeCatalog) GetTemplate(ctx context.Context, templateName string) (models.InspectionTemplate, error) {
	if f.getTemplateFn == nil {
		return models.InspectionTemplate{}, store.ErrTemplateNotFound
	}
	return f.getTemplateFn(ctx, templateName)
}

func lifterTemplate() models.InspectionTemplate {
	return models.InspectionTemplate{
		TemplateName: "wheelchair_lifter",
		Categories: []models.TemplateCategory{
			{CategoryID: "wl-mounting", Name: "Mounting", Sequence: 1},
			{CategoryID: "wl-electrical", Name: "Electrical", Sequence: 2},
		},
		Items: []models.TemplateItem{
			{ItemID: "wl-01", CategoryID: "wl-mounting", Name: "Frame bolts torqued", Sequence: 1},
			{ItemID: "wl-02", CategoryID: "wl-mounting", Name: "Platform clearance", Sequence: 2},
			{ItemID: "wl-03", CategoryID: "wl-electrical", Name: "Harness secured", Sequence: 3},
		},
	}
}

func newTestEngine(inspections store.InspectionStore, catalog store.CatalogStore, at time.Time) *Engine {
	engine := NewEngine(inspections, catalog)
	engine.now = func() time.Time { return at }
	return engine
}

func TestOpenOrCreateInstantiatesChecklist(t *testing.T) {
	mem := newMemoryInspections()
	catalog := fakeCatalog{
		getTemplateFn: func(ctx context.Context, templateName string) (models.InspectionTemplate, error) {
			if templateName != "wheelchair_lifter" {
				t.Fatalf("looked up template %q", templateName)
			}
			return lifterTemplate(), nil
		},
	}
	engine := newTestEngine(mem, catalog, time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))

	inspection, items, err := engine.OpenOrCreate(context.Background(), "WL-20260110-AB12", models.JobTypeWheelchairLifter)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	if inspection.AggregateStatus != models.InspectionPending {
		t.Fatalf("fresh inspection aggregate = %s", inspection.AggregateStatus)
	}
	if inspection.CompletedAt != nil {
		t.Fatal("fresh inspection must not be completed")
	}
	if len(items) != 3 {
		t.Fatalf("instantiated %d items, want 3", len(items))
	}
	if items[0].CategoryName != "Mounting" || items[2].CategoryName != "Electrical" {
		t.Fatalf("category names not denormalized: %+v", items)
	}
	for _, item := range items {
		if item.Verdict != models.VerdictPending {
			t.Fatalf("item %s starts with verdict %s", item.ChecklistItemID, item.Verdict)
		}
	}
}

func TestOpenOrCreateIsIdempotent(t *testing.T) {
	mem := newMemoryInspections()
	calls := 0
	catalog := fakeCatalog{
		getTemplateFn: func(ctx context.Context, templateName string) (models.InspectionTemplate, error) {
			calls++
			return lifterTemplate(), nil
		},
	}
	engine := newTestEngine(mem, catalog, time.Now().UTC())

	first, _, err := engine.OpenOrCreate(context.Background(), "WL-20260110-AB12", models.JobTypeWheelchairLifter)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	second, items, err := engine.OpenOrCreate(context.Background(), "WL-20260110-AB12", models.JobTypeWheelchairLifter)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if first.InspectionID != second.InspectionID {
		t.Fatal("reopening must return the same inspection")
	}
	if len(items) != 3 {
		t.Fatalf("second open returned %d items", len(items))
	}
	if calls != 1 {
		t.Fatalf("template instantiated %d times, want 1", calls)
	}
}

func TestOpenOrCreateBackfillsFromStoredTemplate(t *testing.T) {
	// An inspection created before its template was seeded has zero items;
	// reopening backfills from the inspection's own stored template name,
	// not from the caller's job-type hint.
	mem := newMemoryInspections()
	_, _ = mem.CreateInspection(context.Background(), models.Inspection{
		InspectionID:    "11111111-1111-1111-1111-111111111111",
		RequestCode:     "TS-20260110-CD34",
		TemplateName:    "turney_seat",
		AggregateStatus: models.InspectionPending,
	})
	var lookedUp string
	catalog := fakeCatalog{
		getTemplateFn: func(ctx context.Context, templateName string) (models.InspectionTemplate, error) {
			lookedUp = templateName
			return models.InspectionTemplate{
				TemplateName: templateName,
				Items:        []models.TemplateItem{{ItemID: "ts-01", Name: "Swivel lock engages", Sequence: 1}},
			}, nil
		},
	}
	engine := newTestEngine(mem, catalog, time.Now().UTC())

	_, items, err := engine.OpenOrCreate(context.Background(), "TS-20260110-CD34", models.JobTypeWheelchairLifter)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	if lookedUp != "turney_seat" {
		t.Fatalf("backfilled from template %q, want stored turney_seat", lookedUp)
	}
	if len(items) != 1 {
		t.Fatalf("backfilled %d items", len(items))
	}
}

// racingInspections makes the first existence check miss, as when another
// open creates the inspection between this caller's lookup and insert.
type racingInspections struct {
	*memoryInspections
	misses int
}

func (r *racingInspections) GetInspectionByRequest(ctx context.Context, requestCode string) (models.Inspection, error) {
	if r.misses > 0 {
		r.misses--
		return models.Inspection{}, store.ErrInspectionNotFound
	}
	return r.memoryInspections.GetInspectionByRequest(ctx, requestCode)
}

func TestOpenOrCreateLosesCreateRace(t *testing.T) {
	mem := newMemoryInspections()
	winner, _ := mem.CreateInspection(context.Background(), models.Inspection{
		InspectionID:    "33333333-3333-3333-3333-333333333333",
		RequestCode:     "WL-20260110-AB12",
		TemplateName:    "wheelchair_lifter",
		AggregateStatus: models.InspectionPending,
	})
	_ = mem.InsertItems(context.Background(), []models.InspectionItem{
		{ItemID: "item-1", InspectionID: winner.InspectionID, ChecklistItemID: "wl-01", Verdict: models.VerdictPending},
	})

	engine := newTestEngine(&racingInspections{memoryInspections: mem, misses: 1}, fakeCatalog{}, time.Now().UTC())

	inspection, items, err := engine.OpenOrCreate(context.Background(), "WL-20260110-AB12", models.JobTypeWheelchairLifter)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	if inspection.InspectionID != winner.InspectionID {
		t.Fatalf("loser kept its own inspection id %s, want winner %s", inspection.InspectionID, winner.InspectionID)
	}
	if len(items) != 1 || items[0].InspectionID != winner.InspectionID {
		t.Fatalf("items not taken from the winning inspection: %+v", items)
	}
	if len(mem.inspections) != 1 {
		t.Fatalf("race left %d inspections stored", len(mem.inspections))
	}
}

func TestOpenOrCreateMissingTemplateDegrades(t *testing.T) {
	mem := newMemoryInspections()
	engine := newTestEngine(mem, fakeCatalog{}, time.Now().UTC())

	inspection, items, err := engine.OpenOrCreate(context.Background(), "DS-20260110-EF56", models.JobTypeDivingSolution)
	if err != nil {
		t.Fatalf("missing template must not block the inspection: %v", err)
	}
	if inspection.InspectionID == "" {
		t.Fatal("inspection should still be created")
	}
	if len(items) != 0 {
		t.Fatalf("expected empty checklist, got %d items", len(items))
	}
}

func TestSaveDerivesAggregateAndCompletion(t *testing.T) {
	savedAt := time.Date(2026, 1, 12, 14, 30, 0, 0, time.UTC)
	mem := newMemoryInspections()
	catalog := fakeCatalog{
		getTemplateFn: func(ctx context.Context, templateName string) (models.InspectionTemplate, error) {
			return lifterTemplate(), nil
		},
	}
	engine := newTestEngine(mem, catalog, savedAt)

	inspection, items, err := engine.OpenOrCreate(context.Background(), "WL-20260110-AB12", models.JobTypeWheelchairLifter)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}

	// Partial save: one verdict still pending keeps it in progress.
	result, err := engine.Save(context.Background(), inspection.InspectionID, []ItemUpdate{
		{ItemID: items[0].ItemID, Verdict: models.VerdictPass},
		{ItemID: items[1].ItemID, Verdict: models.VerdictPass},
	}, "inspector-1")
	if err != nil {
		t.Fatalf("partial save: %v", err)
	}
	if result.AggregateStatus != models.InspectionInProgress {
		t.Fatalf("partial aggregate = %s", result.AggregateStatus)
	}
	if result.CompletedAt != nil {
		t.Fatal("in-progress inspection must not be stamped complete")
	}

	// Failing the last item completes the inspection with a failed verdict.
	result, err = engine.Save(context.Background(), inspection.InspectionID, []ItemUpdate{
		{ItemID: items[2].ItemID, Verdict: models.VerdictFail, Comment: "harness chafing at bulkhead"},
	}, "inspector-1")
	if err != nil {
		t.Fatalf("failing save: %v", err)
	}
	if result.AggregateStatus != models.InspectionFailed {
		t.Fatalf("aggregate = %s, want failed", result.AggregateStatus)
	}
	if result.CompletedAt == nil || !result.CompletedAt.Equal(savedAt) {
		t.Fatalf("completed_at = %v, want %v", result.CompletedAt, savedAt)
	}

	// Rework: passing the failed item flips the completed verdict.
	result, err = engine.Save(context.Background(), inspection.InspectionID, []ItemUpdate{
		{ItemID: items[2].ItemID, Verdict: models.VerdictPass, Comment: "rerouted"},
	}, "inspector-2")
	if err != nil {
		t.Fatalf("rework save: %v", err)
	}
	if result.AggregateStatus != models.InspectionPassed {
		t.Fatalf("aggregate after rework = %s", result.AggregateStatus)
	}
	if mem.saved.Inspector != "inspector-2" {
		t.Fatalf("inspector not updated: %s", mem.saved.Inspector)
	}
}

func TestSaveClearsCompletionOnReopenedVerdict(t *testing.T) {
	mem := newMemoryInspections()
	catalog := fakeCatalog{
		getTemplateFn: func(ctx context.Context, templateName string) (models.InspectionTemplate, error) {
			return models.InspectionTemplate{
				TemplateName: templateName,
				Items: []models.TemplateItem{
					{ItemID: "ug-01", Name: "Conversion spec check", Sequence: 1},
				},
			}, nil
		},
	}
	engine := newTestEngine(mem, catalog, time.Now().UTC())

	inspection, items, err := engine.OpenOrCreate(context.Background(), "UG-20260110-GH78", models.JobTypeUltimateG24)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	if _, err := engine.Save(context.Background(), inspection.InspectionID, []ItemUpdate{{ItemID: items[0].ItemID, Verdict: models.VerdictPass}}, "inspector-1"); err != nil {
		t.Fatalf("completing save: %v", err)
	}

	result, err := engine.Save(context.Background(), inspection.InspectionID, []ItemUpdate{{ItemID: items[0].ItemID, Verdict: models.VerdictPending}}, "inspector-1")
	if err != nil {
		t.Fatalf("reopening save: %v", err)
	}
	if result.AggregateStatus != models.InspectionInProgress {
		t.Fatalf("aggregate = %s", result.AggregateStatus)
	}
	if result.CompletedAt != nil {
		t.Fatal("completed_at must clear when the inspection reopens")
	}
	if mem.inspections[inspection.InspectionID].CompletedAt != nil {
		t.Fatal("stored completed_at must clear as well")
	}
}

func TestSaveUnknownInspection(t *testing.T) {
	engine := newTestEngine(newMemoryInspections(), fakeCatalog{}, time.Now().UTC())
	_, err := engine.Save(context.Background(), "22222222-2222-2222-2222-222222222222", nil, "inspector-1")
	if !errors.Is(err, store.ErrInspectionNotFound) {
		t.Fatalf("expected ErrInspectionNotFound, got %v", err)
	}
}
