package inspection

import "github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"

// AggregateItems derives the overall inspection verdict from item verdicts.
// A single fail wins over any number of pending items; passed requires zero
// pending and zero fail. Hoisted here so every call site shares one rule.
func AggregateItems(items []models.InspectionItem) models.InspectionStatus {
	hasFail := false
	hasPending := false
	for _, item := range items {
		switch item.Verdict {
		case models.VerdictFail:
			hasFail = true
		case models.VerdictPass:
		default:
			hasPending = true
		}
	}
	if hasFail {
		return models.InspectionFailed
	}
	if hasPending {
		return models.InspectionInProgress
	}
	return models.InspectionPassed
}

// ItemUpdate is one pending local edit to an inspection item. Edits are
// pure until Save persists them and recomputes the aggregate.
type ItemUpdate struct {
	ItemID  string         `json:"item_id"`
	Verdict models.Verdict `json:"verdict"`
	Comment string         `json:"comment"`
}

// ApplyUpdates merges local edits into a copy of the item list. Updates for
// unknown item ids are ignored; items without an update are unchanged.
func ApplyUpdates(items []models.InspectionItem, updates []ItemUpdate) []models.InspectionItem {
	byID := make(map[string]ItemUpdate, len(updates))
	for _, update := range updates {
		byID[update.ItemID] = update
	}
	merged := make([]models.InspectionItem, len(items))
	copy(merged, items)
	for i, item := range merged {
		update, ok := byID[item.ItemID]
		if !ok {
			continue
		}
		if _, valid := models.ParseVerdict(string(update.Verdict)); valid {
			merged[i].Verdict = update.Verdict
		}
		merged[i].Comment = update.Comment
	}
	return merged
}
