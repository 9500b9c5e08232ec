package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"nestegg/internal/clock"
	"nestegg/internal/core"
	"nestegg/internal/custody"
	"nestegg/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nestegg.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testExpense(id uint64) core.Expense {
	return core.Expense{
		ID:          id,
		User:        "alice",
		Amount:      1500,
		Category:    core.CategoryFood,
		Description: "groceries",
		RecordedAt:  42,
		Period:      core.Period{Month: 1, Year: 2024},
	}
}

func TestAppendAndGetExpense(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	want := testExpense(1)
	if err := repo.AppendExpense(ctx, want); err != nil {
		t.Fatalf("append expense: %v", err)
	}

	got, err := repo.GetExpense(ctx, 1)
	if err != nil {
		t.Fatalf("get expense: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}

	if _, err := repo.GetExpense(ctx, 99); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing expense: got %v", err)
	}
}

func TestSyncLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for id := uint64(1); id <= 3; id++ {
		if err := repo.AppendExpense(ctx, testExpense(id)); err != nil {
			t.Fatalf("append expense %d: %v", id, err)
		}
	}

	ids, err := repo.PendingSyncExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("pending ids = %v, want [1 2 3]", ids)
	}

	if err := repo.MarkSynced(ctx, 1, 100); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, 2); err != nil {
		t.Fatalf("mark sync error: %v", err)
	}

	ids, err = repo.PendingSyncExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("pending after marks: %v", err)
	}
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("pending ids = %v, want [3]", ids)
	}

	// Limit caps the batch.
	if err := repo.MarkSynced(ctx, 3, 101); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := repo.AppendExpense(ctx, testExpense(4)); err != nil {
		t.Fatalf("append expense: %v", err)
	}
	if err := repo.AppendExpense(ctx, testExpense(5)); err != nil {
		t.Fatalf("append expense: %v", err)
	}
	ids, err = repo.PendingSyncExpenses(ctx, 1)
	if err != nil {
		t.Fatalf("pending with limit: %v", err)
	}
	if len(ids) != 1 || ids[0] != 4 {
		t.Fatalf("pending ids = %v, want [4]", ids)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	snap := ledger.Snapshot{
		Balances: map[core.Principal]int64{"alice": 8400, "bob": 150},
		Budgets: []core.Budget{{
			Owner:      "alice",
			Period:     core.Period{Month: 1, Year: 2024},
			Total:      10000,
			Limits:     [core.NumCategories]int64{3000, 2000, 1000, 1000, 1000, 1000, 1000},
			Spent:      [core.NumCategories]int64{500, 0, 0, 0, 0, 0, 0},
			TotalSpent: 500,
			CreatedAt:  10,
			Active:     true,
		}},
		Journal: []core.Expense{testExpense(1)},
		Goals: []core.Goal{{
			ID:           1,
			Owner:        "alice",
			Title:        "vacation",
			Target:       5000,
			Current:      5000,
			DeadlineTick: 300,
			CreatedAt:    20,
			Completed:    true,
		}},
		RewardPool: 750,
		Stats: map[core.Principal]core.UserStats{
			"alice": {GoalsAchieved: 1, TotalSaved: 5000, LastActivityTick: 42},
		},
		NextGoalID: 2,
	}

	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	got, err := repo.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}

	if got.Balances["alice"] != 8400 || got.Balances["bob"] != 150 {
		t.Fatalf("balances = %v", got.Balances)
	}
	if len(got.Budgets) != 1 {
		t.Fatalf("budgets = %d, want 1", len(got.Budgets))
	}
	if got.Budgets[0] != snap.Budgets[0] {
		t.Fatalf("budget mismatch: got %+v, want %+v", got.Budgets[0], snap.Budgets[0])
	}
	if len(got.Journal) != 1 || got.Journal[0] != snap.Journal[0] {
		t.Fatalf("journal mismatch: %+v", got.Journal)
	}
	if len(got.Goals) != 1 || got.Goals[0] != snap.Goals[0] {
		t.Fatalf("goals mismatch: %+v", got.Goals)
	}
	if got.RewardPool != 750 {
		t.Fatalf("reward pool = %d, want 750", got.RewardPool)
	}
	if got.Stats["alice"] != snap.Stats["alice"] {
		t.Fatalf("stats mismatch: %+v", got.Stats["alice"])
	}
	if got.NextGoalID != 2 {
		t.Fatalf("next goal id = %d, want 2", got.NextGoalID)
	}

	// The loaded snapshot must satisfy the engine's restore checks.
	l, err := ledger.New(ledger.Params{
		MinBudgetAmount:  1000,
		MinGoalAmount:    500,
		AchievementBonus: 250,
		Admin:            "admin",
	}, clock.NewManualSource(0), clock.NewSchedule(100), custody.NewVault())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := l.Restore(got); err != nil {
		t.Fatalf("restore loaded snapshot: %v", err)
	}
	if l.Balance("alice") != 8400 {
		t.Fatalf("restored balance = %d", l.Balance("alice"))
	}
}

func TestSaveSnapshotKeepsSyncMarkers(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	e := testExpense(1)
	if err := repo.AppendExpense(ctx, e); err != nil {
		t.Fatalf("append expense: %v", err)
	}
	if err := repo.MarkSynced(ctx, 1, 50); err != nil {
		t.Fatalf("mark synced: %v", err)
	}

	snap := ledger.Snapshot{
		Balances:   map[core.Principal]int64{"alice": 100},
		Journal:    []core.Expense{e},
		NextGoalID: 1,
	}
	if err := repo.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	ids, err := repo.PendingSyncExpenses(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("snapshot save reset sync markers: %v", ids)
	}
}

func TestLoadSnapshotEmptyDatabase(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	snap, err := repo.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if len(snap.Balances) != 0 || len(snap.Journal) != 0 || len(snap.Goals) != 0 {
		t.Fatalf("fresh database not empty: %+v", snap)
	}
	if snap.RewardPool != 0 {
		t.Fatalf("reward pool = %d, want 0", snap.RewardPool)
	}
	if snap.NextGoalID != 1 {
		t.Fatalf("next goal id = %d, want 1", snap.NextGoalID)
	}
}
