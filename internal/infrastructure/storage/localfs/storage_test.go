package localfs

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Save(context.Background(), "doc-1.pdf", bytes.NewReader([]byte("%PDF-1.7"))); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := s.Open(context.Background(), "doc-1.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) != "%PDF-1.7" {
		t.Fatalf("content = %q", raw)
	}
}

func TestOpenMissingKey(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.Open(context.Background(), "missing.pdf"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, key := range []string{"", "../escape.pdf", "a/b.pdf", `a\b.pdf`} {
		if err := s.Save(context.Background(), key, bytes.NewReader(nil)); err == nil {
			t.Errorf("Save(%q) accepted invalid key", key)
		}
		if _, err := s.Open(context.Background(), key); err == nil {
			t.Errorf("Open(%q) accepted invalid key", key)
		}
	}
}
