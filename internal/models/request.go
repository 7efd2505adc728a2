package models

import "time"

// JobType is the closed set of installation categories. Each type has its
// own request table and its own payload extension block.
type JobType string

const (
	JobTypeWheelchairLifter JobType = "wheelchair_lifter"
	JobTypeUltimateG24      JobType = "ultimate_g24"
	JobTypeDivingSolution   JobType = "diving_solution"
	JobTypeTurneySeat       JobType = "turney_seat"
)

// JobTypes lists every job type in display order.
var JobTypes = []JobType{
	JobTypeWheelchairLifter,
	JobTypeUltimateG24,
	JobTypeDivingSolution,
	JobTypeTurneySeat,
}

func ParseJobType(value string) (JobType, bool) {
	switch JobType(value) {
	case JobTypeWheelchairLifter, JobTypeUltimateG24, JobTypeDivingSolution, JobTypeTurneySeat:
		return JobType(value), true
	default:
		return "", false
	}
}

// RequestCodePrefix returns the short code used in human-readable request
// codes, e.g. WL-20250101-AB12.
func RequestCodePrefix(jobType JobType) string {
	switch jobType {
	case JobTypeUltimateG24:
		return "UG"
	case JobTypeDivingSolution:
		return "DS"
	case JobTypeTurneySeat:
		return "TS"
	default:
		return "WL"
	}
}

type Status string

const (
	StatusRequested        Status = "requested"
	StatusInReview         Status = "in_review"
	StatusApproved         Status = "approved"
	StatusReadyForDelivery Status = "ready_for_delivery"
	StatusCompleted        Status = "completed"
)

// StatusOrder is the display sequence. It is an ordering hint only; any
// known status may be set from any other (corrections are allowed).
var StatusOrder = []Status{
	StatusRequested,
	StatusInReview,
	StatusApproved,
	StatusReadyForDelivery,
	StatusCompleted,
}

func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusRequested, StatusInReview, StatusApproved, StatusReadyForDelivery, StatusCompleted:
		return Status(value), true
	default:
		return "", false
	}
}

const (
	RoleFactory = "factory"
	RoleSales   = "sales"
)

// Actor identifies who is performing a mutation.
type Actor struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

// Request is the canonical view of a stored request row, independent of
// which job-type table it came from.
type Request struct {
	RequestCode string    `json:"request_code"`
	JobType     JobType   `json:"job_type"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
	Payload     Payload   `json:"payload"`
}

// Payload is the job-type-tagged union. The shared blocks are always
// present; exactly one extension block is populated per job type.
type Payload struct {
	JobType       JobType             `json:"job_type,omitempty"`
	Customer      Customer            `json:"customer"`
	Vehicle       Vehicle             `json:"vehicle"`
	UserInfo      UserInfo            `json:"user_info"`
	Measurements  VehicleMeasurements `json:"vehicle_measurements"`
	ProductModel  ProductModel        `json:"product_model"`
	SecondRowSeat SeatPosition        `json:"second_row_seat_position"`
	TieDown       TieDown             `json:"tie_down"`
	FloorAddOns   FloorAddOns         `json:"floor_add_ons"`
	Training      Training            `json:"training"`
	Signature     Signature           `json:"signature"`
	Attachments   []Attachment        `json:"attachments"`

	Lifter      *WheelchairLifterSpec `json:"wheelchair_lifter,omitempty"`
	UltimateG24 *UltimateG24Spec      `json:"ultimate_g24,omitempty"`
	Diving      *DivingSolutionSpec   `json:"diving_solution,omitempty"`
	TurneySeat  *TurneySeatSpec       `json:"turney_seat,omitempty"`
}

type Customer struct {
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type Vehicle struct {
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	Year         string `json:"year,omitempty"`
	VIN          string `json:"vin,omitempty"`
	LicensePlate string `json:"license_plate,omitempty"`
}

type UserInfo struct {
	Name           string `json:"name,omitempty"`
	HeightCm       int    `json:"height_cm,omitempty"`
	WeightKg       int    `json:"weight_kg,omitempty"`
	WheelchairType string `json:"wheelchair_type,omitempty"`
}

type VehicleMeasurements struct {
	DoorOpeningHeightMm int `json:"door_opening_height_mm,omitempty"`
	DoorOpeningWidthMm  int `json:"door_opening_width_mm,omitempty"`
	FloorToGroundMm     int `json:"floor_to_ground_mm,omitempty"`
	InteriorHeightMm    int `json:"interior_height_mm,omitempty"`
}

type ProductModel struct {
	Name    string `json:"name,omitempty"`
	Code    string `json:"code,omitempty"`
	Variant string `json:"variant,omitempty"`
}

type SeatPosition struct {
	Row  string `json:"row,omitempty"`
	Side string `json:"side,omitempty"`
}

type TieDown struct {
	Type  string `json:"type,omitempty"`
	Count int    `json:"count,omitempty"`
}

type FloorAddOns struct {
	Items []string `json:"items"`
	Note  string   `json:"note,omitempty"`
}

type Training struct {
	Provided  bool   `json:"provided,omitempty"`
	TrainedOn string `json:"trained_on,omitempty"`
	Note      string `json:"note,omitempty"`
}

type Signature struct {
	ImageRef string `json:"image_ref,omitempty"`
	SignedBy string `json:"signed_by,omitempty"`
	SignedAt string `json:"signed_at,omitempty"`
}

type Attachment struct {
	Name string `json:"name,omitempty"`
	Ref  string `json:"ref,omitempty"`
}

type WheelchairLifterSpec struct {
	LifterModel  string `json:"lifter_model,omitempty"`
	CapacityKg   int    `json:"capacity_kg,omitempty"`
	MountingSide string `json:"mounting_side,omitempty"`
}

type UltimateG24Spec struct {
	SeatBase     string `json:"seat_base,omitempty"`
	ControlSide  string `json:"control_side,omitempty"`
	BackrestType string `json:"backrest_type,omitempty"`
}

type DivingSolutionSpec struct {
	HandControlType string `json:"hand_control_type,omitempty"`
	PedalGuard      bool   `json:"pedal_guard,omitempty"`
	SteeringAid     string `json:"steering_aid,omitempty"`
}

type TurneySeatSpec struct {
	SeatModel    string `json:"seat_model,omitempty"`
	RotationSide string `json:"rotation_side,omitempty"`
	LoweringType string `json:"lowering_type,omitempty"`
}
