package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
)

// RequestRow is a raw stored row before normalization. JobType is the
// row-level label column and may be empty on legacy rows; the payload may
// be arbitrarily sparse.
type RequestRow struct {
	RequestCode string          `json:"request_code"`
	JobType     string          `json:"job_type"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by"`
	Payload     json.RawMessage `json:"payload"`
}

type CreateRequestInput struct {
	RequestCode string
	JobType     models.JobType
	CreatedBy   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// Subscription is a live change-feed handle. Close releases the underlying
// listener; it is safe to call more than once.
type Subscription interface {
	Close()
}

// RequestStore is the record-store surface for the four request tables.
// WriteStatus acknowledgements are provisional; callers re-read to verify.
type RequestStore interface {
	ReadOne(ctx context.Context, table, requestCode string) (RequestRow, error)
	WriteStatus(ctx context.Context, table, requestCode string, status models.Status) error
	ListNewest(ctx context.Context, table string, limit int) ([]RequestRow, error)
	// CreateRequest reports created=false when the request code was already
	// taken, handing back the existing row instead.
	CreateRequest(ctx context.Context, input CreateRequestInput) (RequestRow, bool, error)
	Subscribe(ctx context.Context, onInsert, onUpdate func(RequestRow)) (Subscription, error)
}

// CatalogStore reads the checklist template catalog. Templates are seed
// data, read-only here.
type CatalogStore interface {
	GetTemplate(ctx context.Context, templateName string) (models.InspectionTemplate, error)
}

type SaveInspectionInput struct {
	InspectionID    string
	Inspector       string
	AggregateStatus models.InspectionStatus
	CompletedAt     *time.Time
	Items           []models.InspectionItem
}

type InspectionStore interface {
	GetInspectionByRequest(ctx context.Context, requestCode string) (models.Inspection, error)
	GetInspection(ctx context.Context, inspectionID string) (models.Inspection, error)
	// CreateInspection returns the persisted inspection: the given one when
	// the insert won, or the pre-existing row when another create for the
	// same request code got there first.
	CreateInspection(ctx context.Context, inspection models.Inspection) (models.Inspection, error)
	ListItems(ctx context.Context, inspectionID string) ([]models.InspectionItem, error)
	InsertItems(ctx context.Context, items []models.InspectionItem) error
	SaveInspection(ctx context.Context, input SaveInspectionInput) error
}

type LedgerStore interface {
	ListDeliveryNotes(ctx context.Context, requestCode string, jobType models.JobType) ([]models.DeliveryNote, error)
	AddDeliveryNote(ctx context.Context, note models.DeliveryNote) error
	DeleteDeliveryNote(ctx context.Context, noteID string) error
	ListWorkHours(ctx context.Context, requestCode string, jobType models.JobType) ([]models.WorkHourEntry, error)
	AddWorkHours(ctx context.Context, entry models.WorkHourEntry) error
	DeleteWorkHours(ctx context.Context, entryID string) error
	TotalHours(ctx context.Context, requestCode string, jobType models.JobType) (float64, error)
}

// DismissalStore persists which new-job notifications a viewer has
// dismissed. Dismissals are per viewer; one viewer's dismissal never hides
// the notification from another.
type DismissalStore interface {
	ListDismissed(ctx context.Context, viewerIdentity string) (map[string]bool, error)
	Dismiss(ctx context.Context, viewerIdentity, requestCode string) error
}

type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
}
