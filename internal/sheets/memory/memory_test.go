package memory

import (
	"context"
	"errors"
	"testing"

	"nestegg/internal/core"
)

func testExpense(id uint64) core.Expense {
	return core.Expense{
		ID:          id,
		User:        "alice",
		Amount:      500,
		Category:    core.CategoryFood,
		Description: "groceries",
		Period:      core.Period{Month: 1, Year: 2024},
	}
}

func TestAppendAndItems(t *testing.T) {
	ctx := context.Background()
	s := New()

	ref, err := s.Append(ctx, testExpense(1))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "mem:1" {
		t.Fatalf("row ref = %q, want mem:1", ref)
	}
	if _, err := s.Append(ctx, testExpense(2)); err != nil {
		t.Fatalf("append: %v", err)
	}

	items := s.Items()
	if len(items) != 2 || items[0].ID != 1 || items[1].ID != 2 {
		t.Fatalf("items = %+v", items)
	}
}

func TestAppendRejectsInvalid(t *testing.T) {
	s := New()
	bad := testExpense(1)
	bad.Description = ""
	if _, err := s.Append(context.Background(), bad); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFailNext(t *testing.T) {
	s := New()
	boom := errors.New("sheet unavailable")
	s.FailNext = boom

	if _, err := s.Append(context.Background(), testExpense(1)); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	// The failure is one-shot.
	if _, err := s.Append(context.Background(), testExpense(1)); err != nil {
		t.Fatalf("append after injected failure: %v", err)
	}
}
