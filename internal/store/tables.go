package store

import "github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"

// TableFor maps a job type to the request table that stores it. Total over
// the closed job-type enum; anything else is ErrUnknownJobType.
func TableFor(jobType models.JobType) (string, error) {
	switch jobType {
	case models.JobTypeWheelchairLifter:
		return "wheelchair_lifter_requests", nil
	case models.JobTypeUltimateG24:
		return "ultimate_g24_requests", nil
	case models.JobTypeDivingSolution:
		return "diving_solution_requests", nil
	case models.JobTypeTurneySeat:
		return "turney_seat_requests", nil
	default:
		return "", ErrUnknownJobType
	}
}

// JobTypeForTable is the inverse mapping, used when change-feed events carry
// only the table name.
func JobTypeForTable(table string) (models.JobType, bool) {
	switch table {
	case "wheelchair_lifter_requests":
		return models.JobTypeWheelchairLifter, true
	case "ultimate_g24_requests":
		return models.JobTypeUltimateG24, true
	case "diving_solution_requests":
		return models.JobTypeDivingSolution, true
	case "turney_seat_requests":
		return models.JobTypeTurneySeat, true
	default:
		return "", false
	}
}
