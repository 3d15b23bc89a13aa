package memory

import (
	"context"
	"testing"

	"pocketbook/internal/sheets"
)

func TestMemoryStoreAppendRow(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.AppendRow(ctx, sheets.EventRow{EventID: "a", Type: "transaction.created"})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	ref, err = s.AppendRow(ctx, sheets.EventRow{EventID: "b", Type: "transaction.deleted"})
	if err != nil || ref != "mem:2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	rows := s.Rows()
	if len(rows) != 2 || rows[1].Type != "transaction.deleted" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestMemoryStoreDedupesRedelivery(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, _ := s.AppendRow(ctx, sheets.EventRow{EventID: "same"})
	second, _ := s.AppendRow(ctx, sheets.EventRow{EventID: "same"})

	if first != second {
		t.Errorf("redelivered event got ref %q, want %q", second, first)
	}
	if got := len(s.Rows()); got != 1 {
		t.Errorf("stored %d rows, want 1", got)
	}
}
