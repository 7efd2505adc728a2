// Package normalize maps heterogeneous per-job-type rows into the one
// canonical Request shape. It is the single place that performs tag-based
// payload defaulting: downstream code never null-checks optional blocks.
package normalize

import (
	"encoding/json"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/store"
)

// FromRow produces the canonical Request for a raw stored row. It is a pure
// function and never fails: an unreadable payload yields an empty-but-typed
// payload, an unknown status defaults to requested.
//
// Job type precedence: explicit payload field, then the fallback parameter,
// then wheelchair lifter. Every view depends on this order. The row label
// column is consulted only when both of the first two are unusable.
func FromRow(row store.RequestRow, fallback models.JobType) models.Request {
	var payload models.Payload
	if len(row.Payload) > 0 {
		// Best effort: a malformed payload leaves the zero value.
		_ = json.Unmarshal(row.Payload, &payload)
	}

	jobType := resolveJobType(payload.JobType, fallback, row.JobType)
	payload.JobType = jobType
	defaultBlocks(&payload, jobType)

	status, ok := models.ParseStatus(row.Status)
	if !ok {
		status = models.StatusRequested
	}

	return models.Request{
		RequestCode: row.RequestCode,
		JobType:     jobType,
		Status:      status,
		CreatedAt:   row.CreatedAt,
		CreatedBy:   row.CreatedBy,
		Payload:     payload,
	}
}

func resolveJobType(fromPayload, fallback models.JobType, rowLabel string) models.JobType {
	if jt, ok := models.ParseJobType(string(fromPayload)); ok {
		return jt
	}
	if jt, ok := models.ParseJobType(string(fallback)); ok {
		return jt
	}
	if jt, ok := models.ParseJobType(rowLabel); ok {
		return jt
	}
	return models.JobTypeWheelchairLifter
}

// defaultBlocks guarantees every documented sub-block is present and
// well-typed. The extension block for the active job type is materialized;
// the other three stay nil so they are omitted from JSON.
func defaultBlocks(payload *models.Payload, jobType models.JobType) {
	if payload.Attachments == nil {
		payload.Attachments = []models.Attachment{}
	}
	if payload.FloorAddOns.Items == nil {
		payload.FloorAddOns.Items = []string{}
	}

	switch jobType {
	case models.JobTypeUltimateG24:
		if payload.UltimateG24 == nil {
			payload.UltimateG24 = &models.UltimateG24Spec{}
		}
	case models.JobTypeDivingSolution:
		if payload.Diving == nil {
			payload.Diving = &models.DivingSolutionSpec{}
		}
	case models.JobTypeTurneySeat:
		if payload.TurneySeat == nil {
			payload.TurneySeat = &models.TurneySeatSpec{}
		}
	default:
		if payload.Lifter == nil {
			payload.Lifter = &models.WheelchairLifterSpec{}
		}
	}
}
