// Package ledger holds the delivery-note and work-hour collaborator logs.
// Entries are keyed by (requestCode, jobType) and feed reporting; they carry
// no request invariants beyond the derived total-hours read model.
package ledger

import (
	"context"
	"time"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/store"

	"github.com/google/uuid"
)

type Service struct {
	store store.LedgerStore
	now   func() time.Time
}

func NewService(ledgerStore store.LedgerStore) *Service {
	return &Service{
		store: ledgerStore,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type DeliveryInput struct {
	RequestCode string
	JobType     models.JobType
	DeliveredAt time.Time
	Carrier     string
	Recipient   string
	Note        string
}

func (s *Service) AddDelivery(ctx context.Context, input DeliveryInput) (models.DeliveryNote, error) {
	if _, err := store.TableFor(input.JobType); err != nil {
		return models.DeliveryNote{}, err
	}
	deliveredAt := input.DeliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = s.now()
	}
	note := models.DeliveryNote{
		NoteID:      uuid.NewString(),
		RequestCode: input.RequestCode,
		JobType:     input.JobType,
		DeliveredAt: deliveredAt,
		Carrier:     input.Carrier,
		Recipient:   input.Recipient,
		Note:        input.Note,
		CreatedAt:   s.now(),
	}
	if err := s.store.AddDeliveryNote(ctx, note); err != nil {
		return models.DeliveryNote{}, err
	}
	return note, nil
}

func (s *Service) ListDeliveries(ctx context.Context, requestCode string, jobType models.JobType) ([]models.DeliveryNote, error) {
	return s.store.ListDeliveryNotes(ctx, requestCode, jobType)
}

func (s *Service) DeleteDelivery(ctx context.Context, noteID string) error {
	return s.store.DeleteDeliveryNote(ctx, noteID)
}

type WorkHoursInput struct {
	RequestCode string
	JobType     models.JobType
	Worker      string
	Hours       float64
	WorkedOn    time.Time
	Note        string
}

func (s *Service) AddWorkHours(ctx context.Context, input WorkHoursInput) (models.WorkHourEntry, error) {
	if _, err := store.TableFor(input.JobType); err != nil {
		return models.WorkHourEntry{}, err
	}
	workedOn := input.WorkedOn
	if workedOn.IsZero() {
		workedOn = s.now()
	}
	entry := models.WorkHourEntry{
		EntryID:     uuid.NewString(),
		RequestCode: input.RequestCode,
		JobType:     input.JobType,
		Worker:      input.Worker,
		Hours:       input.Hours,
		WorkedOn:    workedOn,
		Note:        input.Note,
		CreatedAt:   s.now(),
	}
	if err := s.store.AddWorkHours(ctx, entry); err != nil {
		return models.WorkHourEntry{}, err
	}
	return entry, nil
}

func (s *Service) ListWorkHours(ctx context.Context, requestCode string, jobType models.JobType) ([]models.WorkHourEntry, error) {
	return s.store.ListWorkHours(ctx, requestCode, jobType)
}

func (s *Service) DeleteWorkHours(ctx context.Context, entryID string) error {
	return s.store.DeleteWorkHours(ctx, entryID)
}

// TotalHours is the derived read model consumed by the request detail view.
func (s *Service) TotalHours(ctx context.Context, requestCode string, jobType models.JobType) (float64, error) {
	return s.store.TotalHours(ctx, requestCode, jobType)
}
