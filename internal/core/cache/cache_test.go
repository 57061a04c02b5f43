package cache

import (
	"testing"

	"github.com/kirillkom/scanreader/internal/core/domain"
)

func TestPutComputesNormalizedTextAndOrigin(t *testing.T) {
	c := New()
	rec := c.Put(3, "  Hello  World ")
	if rec.PageNumber != 3 {
		t.Fatalf("page number = %d", rec.PageNumber)
	}
	if rec.NormalizedText != "hello world" {
		t.Fatalf("normalized = %q", rec.NormalizedText)
	}
	if rec.Origin != domain.OriginFresh {
		t.Fatalf("origin = %q", rec.Origin)
	}

	got, ok := c.Get(3)
	if !ok || got.RawText != "  Hello  World " {
		t.Fatalf("Get(3) = %+v, %v", got, ok)
	}
}

func TestGetAbsent(t *testing.T) {
	c := New()
	if _, ok := c.Get(1); ok {
		t.Fatalf("expected absent record")
	}
}

func TestLoadAllMarksOriginAndBackfillsNormalized(t *testing.T) {
	c := New()
	c.LoadAll([]domain.PageTextRecord{
		{PageNumber: 1, RawText: "Alpha"},
		{PageNumber: 2, RawText: ""},
	})

	rec, ok := c.Get(1)
	if !ok {
		t.Fatalf("page 1 missing after LoadAll")
	}
	if rec.Origin != domain.OriginFromStore {
		t.Fatalf("origin = %q", rec.Origin)
	}
	if rec.NormalizedText != "alpha" {
		t.Fatalf("normalized not backfilled: %q", rec.NormalizedText)
	}
}

func TestSizeWithTextCountsOnlyNonEmpty(t *testing.T) {
	c := New()
	c.Put(1, "text")
	c.Put(2, "")
	c.Put(5, "more")
	if n := c.SizeWithText(); n != 2 {
		t.Fatalf("SizeWithText() = %d, want 2", n)
	}
}

func TestSnapshotWithTextIsOrdered(t *testing.T) {
	c := New()
	c.Put(9, "z")
	c.Put(2, "a")
	c.Put(4, "")
	c.Put(5, "m")

	snap := c.SnapshotWithText()
	if len(snap) != 3 {
		t.Fatalf("snapshot length = %d", len(snap))
	}
	want := []int{2, 5, 9}
	for i, rec := range snap {
		if rec.PageNumber != want[i] {
			t.Fatalf("snapshot order = %v", snap)
		}
	}
}

func TestPutOverwritesWholesale(t *testing.T) {
	c := New()
	c.Put(1, "old")
	rec := c.Put(1, "new")
	if rec.RawText != "new" || rec.NormalizedText != "new" {
		t.Fatalf("overwrite failed: %+v", rec)
	}
	got, _ := c.Get(1)
	if got.RawText != "new" {
		t.Fatalf("cache kept stale record: %+v", got)
	}
}
