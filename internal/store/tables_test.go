package store

import (
	"errors"
	"testing"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
)

func TestTableForRoundTrip(t *testing.T) {
	for _, jobType := range models.JobTypes {
		table, err := TableFor(jobType)
		if err != nil {
			t.Fatalf("TableFor(%s): %v", jobType, err)
		}
		back, ok := JobTypeForTable(table)
		if !ok || back != jobType {
			t.Fatalf("JobTypeForTable(%s) = %s, %v", table, back, ok)
		}
	}
}

func TestTableForUnknownJobType(t *testing.T) {
	if _, err := TableFor(models.JobType("jetpack")); !errors.Is(err, ErrUnknownJobType) {
		t.Fatalf("expected ErrUnknownJobType, got %v", err)
	}
	if _, ok := JobTypeForTable("jetpack_requests"); ok {
		t.Fatal("unknown table must not map")
	}
}
