package store

import "errors"

var (
	ErrRequestNotFound    = errors.New("request not found")
	ErrInspectionNotFound = errors.New("inspection not found")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrUnknownStatus      = errors.New("unknown status")
	ErrUnknownJobType     = errors.New("unknown job type")
	ErrDeliveryNotFound   = errors.New("delivery note not found")
	ErrWorkHourNotFound   = errors.New("work hour entry not found")
)
