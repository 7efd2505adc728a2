// Package workflow owns the request status state machine. Statuses form a
// display sequence but moves are deliberately permissive: any authorized
// actor may set any known status from any other, including backwards moves
// used for corrections. The only gates are the role capability and the
// status enum itself.
package workflow

import (
	"context"
	"fmt"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/normalize"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/store"
)

// StatusVerifyError reports that the post-write read-back disagrees with
// the intended status. The write response alone is treated as provisional;
// a silent policy failure in the store shows up here. Callers roll back
// optimistic state and surface the warning.
type StatusVerifyError struct {
	RequestCode string
	Want        models.Status
	Got         models.Status
}

func (e *StatusVerifyError) Error() string {
	return fmt.Sprintf("status verify mismatch for %s: wrote %s, store has %s", e.RequestCode, e.Want, e.Got)
}

type Service struct {
	requests store.RequestStore
}

func NewService(requests store.RequestStore) *Service {
	return &Service{requests: requests}
}

// Authorized reports whether the actor may mutate request status. Only the
// factory role carries the capability; sales reads status but never writes it.
func Authorized(actor models.Actor) bool {
	return actor.Role == models.RoleFactory
}

// SetStatus writes the new status and verifies it with a confirmation read
// before reporting success. On success the verified canonical request is
// returned so callers can refresh without a second round trip.
func (s *Service) SetStatus(ctx context.Context, requestCode string, jobType models.JobType, newStatus models.Status, actor models.Actor) (models.Request, error) {
	if !Authorized(actor) {
		return models.Request{}, store.ErrNotAuthorized
	}
	if _, ok := models.ParseStatus(string(newStatus)); !ok {
		return models.Request{}, store.ErrUnknownStatus
	}

	table, err := store.TableFor(jobType)
	if err != nil {
		return models.Request{}, err
	}

	if err := s.requests.WriteStatus(ctx, table, requestCode, newStatus); err != nil {
		return models.Request{}, fmt.Errorf("write status: %w", err)
	}

	row, err := s.requests.ReadOne(ctx, table, requestCode)
	if err != nil {
		return models.Request{}, fmt.Errorf("verify status: %w", err)
	}

	request := normalize.FromRow(row, jobType)
	if request.Status != newStatus {
		return request, &StatusVerifyError{RequestCode: requestCode, Want: newStatus, Got: request.Status}
	}
	return request, nil
}

// GetRequest resolves the canonical view of one request.
func (s *Service) GetRequest(ctx context.Context, requestCode string, jobType models.JobType) (models.Request, error) {
	table, err := store.TableFor(jobType)
	if err != nil {
		return models.Request{}, err
	}
	row, err := s.requests.ReadOne(ctx, table, requestCode)
	if err != nil {
		return models.Request{}, err
	}
	return normalize.FromRow(row, jobType), nil
}
