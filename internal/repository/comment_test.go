package repository

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/yong-jelly/usemap-sub002/internal/model"
	"github.com/yong-jelly/usemap-sub002/internal/thread"
)

// Roots created in the same instant must come back from Structure in the
// order the query pages them, or a page boundary reorders on screen.
func TestRootPageOrder_MatchesThreadOrder(t *testing.T) {
	if rootPageOrder != "created_at DESC, id ASC" {
		t.Fatalf("rootPageOrder = %q", rootPageOrder)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	page := []model.Comment{
		{ID: "a0000000-0000-4000-8000-00000000000b", CreatedAt: at},
		{ID: "a0000000-0000-4000-8000-00000000000a", CreatedAt: at},
		{ID: "a0000000-0000-4000-8000-000000000009", CreatedAt: at.Add(time.Second)},
	}

	var got []string
	for _, c := range thread.Structure(page, nil) {
		got = append(got, c.ID)
	}
	want := []string{
		"a0000000-0000-4000-8000-000000000009",
		"a0000000-0000-4000-8000-00000000000a",
		"a0000000-0000-4000-8000-00000000000b",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}
