// Package reconcile keeps the dashboard's view of all requests consistent
// across three concurrent update sources: push events from the store change
// feed, a fixed-interval polling fallback, and locally-optimistic writes.
// All three feed the same reducer with idempotent merge rules, so a
// double-delivered event can never duplicate a row and a partial update can
// never erase fields it did not touch.
package reconcile

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/normalize"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/store"
)

type EventType string

const (
	EventInserted EventType = "request.inserted"
	EventUpdated  EventType = "request.updated"
	EventNewJob   EventType = "job.new"
)

// Event is one change fanned out to connected dashboard sessions.
type Event struct {
	Type     EventType      `json:"type"`
	Request  models.Request `json:"request"`
	RaisedAt time.Time      `json:"raised_at"`
}

// Notification is one "new job" alert. Visibility is resolved per viewer at
// read time: factory staff see every new job, sales staff only their own
// submissions, and dismissals are durable per viewer.
type Notification struct {
	RequestCode string         `json:"request_code"`
	JobType     models.JobType `json:"job_type"`
	CreatedBy   string         `json:"created_by"`
	RaisedAt    time.Time      `json:"raised_at"`
}

type Config struct {
	PollInterval time.Duration
	SeedLimit    int
	EventBuffer  int
	PushBuffer   int
}

type Reconciler struct {
	requests   store.RequestStore
	dismissals store.DismissalStore
	cfg        Config
	now        func() time.Time

	mu     sync.RWMutex
	order  []string // request codes, newest first
	byCode map[string]models.Request
	notes  []Notification // newest first

	events      chan Event
	pushInserts chan store.RequestRow
	pushUpdates chan store.RequestRow
}

func New(requests store.RequestStore, dismissals store.DismissalStore, cfg Config) *Reconciler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.SeedLimit <= 0 {
		cfg.SeedLimit = 50
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if cfg.PushBuffer <= 0 {
		cfg.PushBuffer = 64
	}
	return &Reconciler{
		requests:    requests,
		dismissals:  dismissals,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		byCode:      make(map[string]models.Request),
		events:      make(chan Event, cfg.EventBuffer),
		pushInserts: make(chan store.RequestRow, cfg.PushBuffer),
		pushUpdates: make(chan store.RequestRow, cfg.PushBuffer),
	}
}

// Events is the fan-out stream consumed by the realtime hub.
func (r *Reconciler) Events() <-chan Event {
	return r.events
}

// Run seeds the local view, attaches the push subscription, and drives the
// reducer loop until the context is cancelled. Loss of the push channel is
// never fatal: the loop logs and degrades to polling only. A cancelled run
// applies no further results (the loop exits before the next apply).
func (r *Reconciler) Run(ctx context.Context) {
	r.seed(ctx)

	sub, err := r.requests.Subscribe(ctx,
		func(row store.RequestRow) { r.enqueue(r.pushInserts, row) },
		func(row store.RequestRow) { r.enqueue(r.pushUpdates, row) },
	)
	if err != nil {
		log.Printf("reconcile: change feed unavailable, polling only: %v", err)
	} else {
		defer sub.Close()
	}

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case row := <-r.pushInserts:
			r.applyInsert(row, true)
		case row := <-r.pushUpdates:
			r.applyUpdate(row)
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

func (r *Reconciler) enqueue(ch chan store.RequestRow, row store.RequestRow) {
	select {
	case ch <- row:
	default:
		log.Printf("reconcile: push backlog full, dropping event for %s", row.RequestCode)
	}
}

// seed loads the newest rows of every job-type table without raising
// notifications, so a restart does not re-announce old jobs.
func (r *Reconciler) seed(ctx context.Context) {
	for _, jobType := range models.JobTypes {
		table, err := store.TableFor(jobType)
		if err != nil {
			continue
		}
		rows, err := r.requests.ListNewest(ctx, table, r.cfg.SeedLimit)
		if err != nil {
			log.Printf("reconcile: seed %s: %v", table, err)
			continue
		}
		for _, row := range rows {
			r.applyInsert(row, false)
		}
	}
}

// poll fetches only the single newest row per job-type table; the
// insert-or-ignore rule makes re-delivery harmless while still catching
// anything the push channel missed.
func (r *Reconciler) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, jobType := range models.JobTypes {
		table, err := store.TableFor(jobType)
		if err != nil {
			continue
		}
		rows, err := r.requests.ListNewest(pollCtx, table, 1)
		if err != nil {
			log.Printf("reconcile: poll %s: %v", table, err)
			continue
		}
		for _, row := range rows {
			r.applyInsert(row, true)
		}
	}
}

func (r *Reconciler) applyInsert(row store.RequestRow, notify bool) {
	request := normalize.FromRow(row, models.JobType(row.JobType))

	r.mu.Lock()
	if _, known := r.byCode[request.RequestCode]; known {
		r.mu.Unlock()
		return
	}
	r.byCode[request.RequestCode] = request
	r.order = append([]string{request.RequestCode}, r.order...)
	var note Notification
	if notify {
		note = Notification{
			RequestCode: request.RequestCode,
			JobType:     request.JobType,
			CreatedBy:   request.CreatedBy,
			RaisedAt:    r.now(),
		}
		r.notes = append([]Notification{note}, r.notes...)
	}
	r.mu.Unlock()

	r.emit(Event{Type: EventInserted, Request: request, RaisedAt: r.now()})
	if notify {
		r.emit(Event{Type: EventNewJob, Request: request, RaisedAt: note.RaisedAt})
	}
}

func (r *Reconciler) applyUpdate(row store.RequestRow) {
	r.mu.Lock()
	local, known := r.byCode[row.RequestCode]
	if !known {
		r.mu.Unlock()
		// An update for a row we never saw inserted; adopt it silently.
		r.applyInsert(row, false)
		return
	}
	delta := normalize.FromRow(row, local.JobType)
	// Normalization defaults an absent status to requested; that default must
	// not masquerade as an update. Only a status the row actually carried may
	// replace the local one.
	if _, carried := models.ParseStatus(row.Status); !carried {
		delta.Status = ""
	}
	merged := mergeRequest(local, delta)
	r.byCode[row.RequestCode] = merged
	r.mu.Unlock()

	r.emit(Event{Type: EventUpdated, Request: merged, RaisedAt: r.now()})
}

// ApplyLocal records an optimistic local write. New codes go through the
// same insert path as push events, so whichever source lands first wins and
// the other is deduplicated.
func (r *Reconciler) ApplyLocal(request models.Request) {
	r.mu.Lock()
	_, known := r.byCode[request.RequestCode]
	if known {
		r.byCode[request.RequestCode] = request
		r.mu.Unlock()
		r.emit(Event{Type: EventUpdated, Request: request, RaisedAt: r.now()})
		return
	}
	r.byCode[request.RequestCode] = request
	r.order = append([]string{request.RequestCode}, r.order...)
	note := Notification{
		RequestCode: request.RequestCode,
		JobType:     request.JobType,
		CreatedBy:   request.CreatedBy,
		RaisedAt:    r.now(),
	}
	r.notes = append([]Notification{note}, r.notes...)
	r.mu.Unlock()

	r.emit(Event{Type: EventInserted, Request: request, RaisedAt: r.now()})
	r.emit(Event{Type: EventNewJob, Request: request, RaisedAt: note.RaisedAt})
}

// Refresh records the authoritative post-write state of a request. Unlike
// ApplyLocal it never raises a new-job notification: a code outside the
// seeded window is adopted silently, because a status correction on an old
// request is not a new job.
func (r *Reconciler) Refresh(request models.Request) {
	r.mu.Lock()
	_, known := r.byCode[request.RequestCode]
	r.byCode[request.RequestCode] = request
	if !known {
		r.order = append([]string{request.RequestCode}, r.order...)
	}
	r.mu.Unlock()

	if known {
		r.emit(Event{Type: EventUpdated, Request: request, RaisedAt: r.now()})
		return
	}
	r.emit(Event{Type: EventInserted, Request: request, RaisedAt: r.now()})
}

// Rollback restores a request to its pre-write value after a failed
// optimistic write.
func (r *Reconciler) Rollback(previous models.Request) {
	r.mu.Lock()
	if _, known := r.byCode[previous.RequestCode]; !known {
		r.mu.Unlock()
		return
	}
	r.byCode[previous.RequestCode] = previous
	r.mu.Unlock()
	r.emit(Event{Type: EventUpdated, Request: previous, RaisedAt: r.now()})
}

// Get returns the current merged view of one request.
func (r *Reconciler) Get(requestCode string) (models.Request, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	request, ok := r.byCode[requestCode]
	return request, ok
}

// Snapshot returns the merged list, newest first, optionally filtered by
// job type.
func (r *Reconciler) Snapshot(filter models.JobType) []models.Request {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Request, 0, len(r.order))
	for _, code := range r.order {
		request, ok := r.byCode[code]
		if !ok {
			continue
		}
		if filter != "" && request.JobType != filter {
			continue
		}
		out = append(out, request)
	}
	return out
}

// NotificationsFor resolves the viewer's visible, undismissed new-job
// alerts. Factory staff see every job; sales staff only their own.
func (r *Reconciler) NotificationsFor(ctx context.Context, viewer models.Actor) ([]Notification, error) {
	dismissed, err := r.dismissals.ListDismissed(ctx, viewer.Identity)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Notification, 0, len(r.notes))
	for _, note := range r.notes {
		if dismissed[note.RequestCode] {
			continue
		}
		if viewer.Role != models.RoleFactory && note.CreatedBy != viewer.Identity {
			continue
		}
		out = append(out, note)
	}
	return out, nil
}

// Dismiss durably hides a notification for this viewer only.
func (r *Reconciler) Dismiss(ctx context.Context, viewer models.Actor, requestCode string) error {
	return r.dismissals.Dismiss(ctx, viewer.Identity, requestCode)
}

func (r *Reconciler) emit(event Event) {
	select {
	case r.events <- event:
	default:
		log.Printf("reconcile: event stream full, dropping %s for %s", event.Type, event.Request.RequestCode)
	}
}
