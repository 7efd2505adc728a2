package reconcile

import "github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"

// mergeRequest folds an incoming delta into the local record. Merge, not
// replace: a field the delta did not carry (zero after normalization) keeps
// its local value. No cross-field atomicity beyond what the store gave the
// delta itself.
func mergeRequest(local, delta models.Request) models.Request {
	out := local
	if delta.Status != "" {
		out.Status = delta.Status
	}
	if !delta.CreatedAt.IsZero() {
		out.CreatedAt = delta.CreatedAt
	}
	if delta.CreatedBy != "" {
		out.CreatedBy = delta.CreatedBy
	}
	out.Payload = mergePayload(local.Payload, delta.Payload)
	return out
}

func mergePayload(local, delta models.Payload) models.Payload {
	out := local
	if delta.Customer != (models.Customer{}) {
		out.Customer = delta.Customer
	}
	if delta.Vehicle != (models.Vehicle{}) {
		out.Vehicle = delta.Vehicle
	}
	if delta.UserInfo != (models.UserInfo{}) {
		out.UserInfo = delta.UserInfo
	}
	if delta.Measurements != (models.VehicleMeasurements{}) {
		out.Measurements = delta.Measurements
	}
	if delta.ProductModel != (models.ProductModel{}) {
		out.ProductModel = delta.ProductModel
	}
	if delta.SecondRowSeat != (models.SeatPosition{}) {
		out.SecondRowSeat = delta.SecondRowSeat
	}
	if delta.TieDown != (models.TieDown{}) {
		out.TieDown = delta.TieDown
	}
	if len(delta.FloorAddOns.Items) > 0 || delta.FloorAddOns.Note != "" {
		out.FloorAddOns = delta.FloorAddOns
	}
	if delta.Training != (models.Training{}) {
		out.Training = delta.Training
	}
	if delta.Signature != (models.Signature{}) {
		out.Signature = delta.Signature
	}
	if len(delta.Attachments) > 0 {
		out.Attachments = delta.Attachments
	}
	if delta.Lifter != nil && *delta.Lifter != (models.WheelchairLifterSpec{}) {
		out.Lifter = delta.Lifter
	}
	if delta.UltimateG24 != nil && *delta.UltimateG24 != (models.UltimateG24Spec{}) {
		out.UltimateG24 = delta.UltimateG24
	}
	if delta.Diving != nil && *delta.Diving != (models.DivingSolutionSpec{}) {
		out.Diving = delta.Diving
	}
	if delta.TurneySeat != nil && *delta.TurneySeat != (models.TurneySeatSpec{}) {
		out.TurneySeat = delta.TurneySeat
	}
	return out
}
