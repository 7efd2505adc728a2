package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/store"
)

type fakeRequests struct {
	mu          sync.Mutex
	rows        map[string][]store.RequestRow // by table, newest first
	subscribeFn func(ctx context.Context, onInsert, onUpdate func(store.RequestRow)) (store.Subscription, error)
}

func (f *fakeRequests) setRows(table string, rows ...store.RequestRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		f.rows = make(map[string][]store.RequestRow)
	}
	f.rows[table] = rows
}

func (f *fakeRequests) ReadOne(ctx context.Context, table, requestCode string) (store.RequestRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows[table] {
		if row.RequestCode == requestCode {
			return row, nil
		}
	}
	return store.RequestRow{}, store.ErrRequestNotFound
}

func (f *fakeRequests) WriteStatus(ctx context.Context, table, requestCode string, status models.Status) error {
	return nil
}

func (f *fakeRequests) ListNewest(ctx context.Context, table string, limit int) ([]store.RequestRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.rows[table]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]store.RequestRow, len(rows))
	copy(out, rows)
	return out, nil
}

func (f *fakeRequests) CreateRequest(ctx context.Context, input store.CreateRequestInput) (store.RequestRow, bool, error) {
	return store.RequestRow{}, false, nil
}

func (f *fakeRequests) Subscribe(ctx context.Context, onInsert, onUpdate func(store.RequestRow)) (store.Subscription, error) {
	if f.subscribeFn == nil {
		return nil, errors.New("no change feed")
	}
	return f.subscribeFn(ctx, onInsert, onUpdate)
}

type fakeDismissals struct {
	mu        sync.Mutex
	dismissed map[string]map[string]bool // viewer -> request code
}

func (f *fakeDismissals) ListDismissed(ctx context.Context, viewer string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.dismissed[viewer]))
	for code, v := range f.dismissed[viewer] {
		out[code] = v
	}
	return out, nil
}

func (f *fakeDismissals) Dismiss(ctx context.Context, viewer, requestCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dismissed == nil {
		f.dismissed = make(map[string]map[string]bool)
	}
	if f.dismissed[viewer] == nil {
		f.dismissed[viewer] = make(map[string]bool)
	}
	f.dismissed[viewer][requestCode] = true
	return nil
}

func lifterRow(requestCode string, status models.Status, createdBy string) store.RequestRow {
	payload, _ := json.Marshal(map[string]interface{}{
		"job_type": "wheelchair_lifter",
		"customer": map[string]string{"name": "A. Larsen"},
	})
	return store.RequestRow{
		RequestCode: requestCode,
		JobType:     "wheelchair_lifter",
		Status:      string(status),
		CreatedBy:   createdBy,
		Payload:     payload,
	}
}

func newTestReconciler() *Reconciler {
	return New(&fakeRequests{}, &fakeDismissals{}, Config{})
}

func drainEvents(r *Reconciler) []Event {
	var out []Event
	for {
		select {
		case event := <-r.Events():
			out = append(out, event)
		default:
			return out
		}
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	r := newTestReconciler()
	row := lifterRow("WL-20260110-AB12", models.StatusRequested, "rep-1")

	r.applyInsert(row, true)
	r.applyInsert(row, true) // double-delivered push event
	r.applyInsert(row, true) // and the poll saw it too

	if got := len(r.Snapshot("")); got != 1 {
		t.Fatalf("snapshot has %d rows, want 1", got)
	}
	notes, err := r.NotificationsFor(context.Background(), models.Actor{Identity: "qc-1", Role: models.RoleFactory})
	if err != nil {
		t.Fatalf("NotificationsFor: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("raised %d notifications, want exactly 1", len(notes))
	}
}

func TestOptimisticCreateDeduplicatesAgainstPush(t *testing.T) {
	tests := []struct {
		name  string
		first func(r *Reconciler, row store.RequestRow)
		then  func(r *Reconciler, row store.RequestRow)
	}{
		{
			"local write lands first",
			func(r *Reconciler, row store.RequestRow) {
				r.ApplyLocal(rowToRequest(row))
			},
			func(r *Reconciler, row store.RequestRow) { r.applyInsert(row, true) },
		},
		{
			"push event lands first",
			func(r *Reconciler, row store.RequestRow) { r.applyInsert(row, true) },
			func(r *Reconciler, row store.RequestRow) {
				r.ApplyLocal(rowToRequest(row))
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestReconciler()
			row := lifterRow("WL-20260110-AB12", models.StatusRequested, "rep-1")
			tc.first(r, row)
			tc.then(r, row)

			if got := len(r.Snapshot("")); got != 1 {
				t.Fatalf("snapshot has %d rows, want 1", got)
			}
			notes, _ := r.NotificationsFor(context.Background(), models.Actor{Identity: "qc-1", Role: models.RoleFactory})
			if len(notes) != 1 {
				t.Fatalf("raised %d notifications, want exactly 1", len(notes))
			}
		})
	}
}

func TestUpdateMergesInsteadOfClobbering(t *testing.T) {
	r := newTestReconciler()
	r.applyInsert(lifterRow("WL-20260110-AB12", models.StatusRequested, "rep-1"), false)

	// The delta carries only a status; the customer block must survive.
	delta, _ := json.Marshal(map[string]string{"job_type": "wheelchair_lifter"})
	r.applyUpdate(store.RequestRow{
		RequestCode: "WL-20260110-AB12",
		JobType:     "wheelchair_lifter",
		Status:      string(models.StatusApproved),
		Payload:     delta,
	})

	request, ok := r.Get("WL-20260110-AB12")
	if !ok {
		t.Fatal("request disappeared")
	}
	if request.Status != models.StatusApproved {
		t.Fatalf("status = %s, want approved", request.Status)
	}
	if request.Payload.Customer.Name != "A. Larsen" {
		t.Fatalf("sparse update erased the customer block: %+v", request.Payload.Customer)
	}
	if request.CreatedBy != "rep-1" {
		t.Fatalf("sparse update erased created_by: %q", request.CreatedBy)
	}
}

func TestUpdateWithoutStatusKeepsLocalStatus(t *testing.T) {
	r := newTestReconciler()
	row := lifterRow("WL-20260110-AB12", models.StatusApproved, "rep-1")
	r.applyInsert(row, false)

	// A delta row that carries no status at all must not reset the local
	// approved back to the normalizer's requested default.
	payload, _ := json.Marshal(map[string]string{"job_type": "wheelchair_lifter"})
	r.applyUpdate(store.RequestRow{
		RequestCode: "WL-20260110-AB12",
		JobType:     "wheelchair_lifter",
		Status:      "",
		Payload:     payload,
	})

	request, _ := r.Get("WL-20260110-AB12")
	if request.Status != models.StatusApproved {
		t.Fatalf("status-less delta clobbered local status: got %s, want approved", request.Status)
	}

	// An unparseable status is treated the same as an absent one.
	r.applyUpdate(store.RequestRow{
		RequestCode: "WL-20260110-AB12",
		JobType:     "wheelchair_lifter",
		Status:      "teleported",
	})
	request, _ = r.Get("WL-20260110-AB12")
	if request.Status != models.StatusApproved {
		t.Fatalf("garbage status clobbered local status: got %s", request.Status)
	}
}

func TestRefreshDoesNotAnnounceOldRequests(t *testing.T) {
	r := newTestReconciler()
	drainEvents(r)

	// A status write on a request outside the seeded window: the refresh
	// adopts it without raising a new-job alert.
	r.Refresh(models.Request{
		RequestCode: "WL-20250101-OLD1",
		JobType:     models.JobTypeWheelchairLifter,
		Status:      models.StatusCompleted,
		CreatedBy:   "rep-1",
	})

	if _, ok := r.Get("WL-20250101-OLD1"); !ok {
		t.Fatal("refresh must adopt the unknown request")
	}
	notes, _ := r.NotificationsFor(context.Background(), models.Actor{Identity: "qc-1", Role: models.RoleFactory})
	if len(notes) != 0 {
		t.Fatalf("status change on an old request raised %d new-job notifications: %+v", len(notes), notes)
	}
	for _, event := range drainEvents(r) {
		if event.Type == EventNewJob {
			t.Fatalf("refresh emitted %s", event.Type)
		}
	}

	// Refresh on a known request stays a plain update.
	r.Refresh(models.Request{
		RequestCode: "WL-20250101-OLD1",
		JobType:     models.JobTypeWheelchairLifter,
		Status:      models.StatusRequested,
	})
	request, _ := r.Get("WL-20250101-OLD1")
	if request.Status != models.StatusRequested {
		t.Fatalf("refresh of known request not applied: %s", request.Status)
	}
	if got := len(r.Snapshot("")); got != 1 {
		t.Fatalf("refresh duplicated the row: %d entries", got)
	}
}

func TestUpdateForUnknownCodeAdoptsSilently(t *testing.T) {
	r := newTestReconciler()
	drainEvents(r)

	r.applyUpdate(lifterRow("WL-20260110-ZZ99", models.StatusInReview, "rep-2"))

	if _, ok := r.Get("WL-20260110-ZZ99"); !ok {
		t.Fatal("update for unknown code should insert it")
	}
	notes, _ := r.NotificationsFor(context.Background(), models.Actor{Identity: "qc-1", Role: models.RoleFactory})
	if len(notes) != 0 {
		t.Fatalf("adopting an unknown update must not announce a new job, got %d", len(notes))
	}
}

func TestRollbackRestoresPreviousValue(t *testing.T) {
	r := newTestReconciler()
	r.applyInsert(lifterRow("WL-20260110-AB12", models.StatusRequested, "rep-1"), false)

	previous, _ := r.Get("WL-20260110-AB12")
	optimistic := previous
	optimistic.Status = models.StatusCompleted
	r.ApplyLocal(optimistic)
	r.Rollback(previous)

	request, _ := r.Get("WL-20260110-AB12")
	if request.Status != models.StatusRequested {
		t.Fatalf("status = %s after rollback, want requested", request.Status)
	}
}

func TestSnapshotOrdersNewestFirstAndFilters(t *testing.T) {
	r := newTestReconciler()
	r.applyInsert(lifterRow("WL-20260108-AA11", models.StatusRequested, "rep-1"), false)
	r.applyInsert(lifterRow("WL-20260109-BB22", models.StatusRequested, "rep-1"), false)
	tsRow := lifterRow("TS-20260110-CC33", models.StatusRequested, "rep-2")
	tsRow.JobType = "turney_seat"
	tsRow.Payload, _ = json.Marshal(map[string]string{"job_type": "turney_seat"})
	r.applyInsert(tsRow, false)

	all := r.Snapshot("")
	if len(all) != 3 {
		t.Fatalf("snapshot has %d rows", len(all))
	}
	if all[0].RequestCode != "TS-20260110-CC33" || all[2].RequestCode != "WL-20260108-AA11" {
		t.Fatalf("not newest first: %s .. %s", all[0].RequestCode, all[2].RequestCode)
	}

	lifters := r.Snapshot(models.JobTypeWheelchairLifter)
	if len(lifters) != 2 {
		t.Fatalf("filtered snapshot has %d rows", len(lifters))
	}
}

func TestNotificationVisibilityAndDismissal(t *testing.T) {
	dismissals := &fakeDismissals{}
	r := New(&fakeRequests{}, dismissals, Config{})
	r.applyInsert(lifterRow("WL-20260110-AB12", models.StatusRequested, "rep-1"), true)
	r.applyInsert(lifterRow("WL-20260110-CD34", models.StatusRequested, "rep-2"), true)

	factory := models.Actor{Identity: "qc-1", Role: models.RoleFactory}
	repOne := models.Actor{Identity: "rep-1", Role: models.RoleSales}
	repTwo := models.Actor{Identity: "rep-2", Role: models.RoleSales}

	notes, _ := r.NotificationsFor(context.Background(), factory)
	if len(notes) != 2 {
		t.Fatalf("factory sees %d notes, want 2", len(notes))
	}
	notes, _ = r.NotificationsFor(context.Background(), repOne)
	if len(notes) != 1 || notes[0].RequestCode != "WL-20260110-AB12" {
		t.Fatalf("sales rep sees %+v, want only their own submission", notes)
	}

	// Dismissal is durable and scoped to the dismissing viewer.
	if err := r.Dismiss(context.Background(), repOne, "WL-20260110-AB12"); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	notes, _ = r.NotificationsFor(context.Background(), repOne)
	if len(notes) != 0 {
		t.Fatalf("rep-1 still sees %d notes after dismissing", len(notes))
	}
	notes, _ = r.NotificationsFor(context.Background(), factory)
	if len(notes) != 2 {
		t.Fatalf("rep-1's dismissal leaked to factory: %d notes", len(notes))
	}
	notes, _ = r.NotificationsFor(context.Background(), repTwo)
	if len(notes) != 1 {
		t.Fatalf("rep-1's dismissal leaked to rep-2: %d notes", len(notes))
	}
}

func TestRunDegradesToPollingWhenFeedUnavailable(t *testing.T) {
	requests := &fakeRequests{}
	requests.setRows("wheelchair_lifter_requests", lifterRow("WL-20260110-AB12", models.StatusRequested, "rep-1"))
	r := New(requests, &fakeDismissals{}, Config{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Seed picks the existing row up even though Subscribe failed.
	waitFor(t, func() bool {
		_, ok := r.Get("WL-20260110-AB12")
		return ok
	})

	// A row that appears later is caught by the poll fallback.
	requests.setRows("wheelchair_lifter_requests",
		lifterRow("WL-20260111-EF56", models.StatusRequested, "rep-2"),
		lifterRow("WL-20260110-AB12", models.StatusRequested, "rep-1"),
	)
	waitFor(t, func() bool {
		_, ok := r.Get("WL-20260111-EF56")
		return ok
	})
}

func TestRunUsesPushSubscription(t *testing.T) {
	attached := make(chan func(store.RequestRow), 1)
	requests := &fakeRequests{
		subscribeFn: func(ctx context.Context, onInsert, onUpdate func(store.RequestRow)) (store.Subscription, error) {
			attached <- onInsert
			return nopSubscription{}, nil
		},
	}
	r := New(requests, &fakeDismissals{}, Config{PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	var pushInsert func(store.RequestRow)
	select {
	case pushInsert = <-attached:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription never attached")
	}
	pushInsert(lifterRow("WL-20260110-AB12", models.StatusRequested, "rep-1"))

	waitFor(t, func() bool {
		_, ok := r.Get("WL-20260110-AB12")
		return ok
	})
}

type nopSubscription struct{}

func (nopSubscription) Close() {}

func rowToRequest(row store.RequestRow) models.Request {
	var payload models.Payload
	_ = json.Unmarshal(row.Payload, &payload)
	return models.Request{
		RequestCode: row.RequestCode,
		JobType:     models.JobType(row.JobType),
		Status:      models.Status(row.Status),
		CreatedBy:   row.CreatedBy,
		Payload:     payload,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
