package models

import "time"

// InspectionStatus is the derived overall verdict of an inspection. It is
// recomputed from item verdicts on every save and never stored incrementally.
type InspectionStatus string

const (
	InspectionPending    InspectionStatus = "pending"
	InspectionInProgress InspectionStatus = "in_progress"
	InspectionPassed     InspectionStatus = "passed"
	InspectionFailed     InspectionStatus = "failed"
)

type Verdict string

const (
	VerdictPending Verdict = "pending"
	VerdictPass    Verdict = "pass"
	VerdictFail    Verdict = "fail"
)

func ParseVerdict(value string) (Verdict, bool) {
	switch Verdict(value) {
	case VerdictPending, VerdictPass, VerdictFail:
		return Verdict(value), true
	default:
		return "", false
	}
}

// Inspection is the quality-control record attached to a request. At most
// one exists per request code. TemplateName is captured at creation and
// does not follow later catalog edits.
type Inspection struct {
	InspectionID    string           `json:"inspection_id"`
	RequestCode     string           `json:"request_code"`
	TemplateName    string           `json:"template_name"`
	Inspector       string           `json:"inspector,omitempty"`
	AggregateStatus InspectionStatus `json:"aggregate_status"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// InspectionItem is one checklist criterion instantiated for an inspection.
// CategoryName is denormalized so later template renames do not rewrite
// history.
type InspectionItem struct {
	ItemID          string  `json:"item_id"`
	InspectionID    string  `json:"inspection_id"`
	ChecklistItemID string  `json:"checklist_item_id"`
	CategoryName    string  `json:"category_name"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Sequence        int     `json:"sequence"`
	Verdict         Verdict `json:"verdict"`
	Comment         string  `json:"comment,omitempty"`
}

// InspectionTemplate is a read-only checklist definition from the catalog.
type InspectionTemplate struct {
	TemplateName string             `json:"template_name"`
	Categories   []TemplateCategory `json:"categories"`
	Items        []TemplateItem     `json:"checklist_items"`
}

type TemplateCategory struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Sequence   int    `json:"sequence"`
}

type TemplateItem struct {
	ItemID      string `json:"item_id"`
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Sequence    int    `json:"sequence"`
}

// TemplateFor maps a job type to its checklist template name.
func TemplateFor(jobType JobType) string {
	switch jobType {
	case JobTypeUltimateG24:
		return "ultimate_g24"
	case JobTypeDivingSolution:
		return "diving_solution"
	case JobTypeTurneySeat:
		return "turney_seat"
	default:
		return "wheelchair_lifter"
	}
}
