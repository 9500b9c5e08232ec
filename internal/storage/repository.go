package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"nestegg/internal/core"
	"nestegg/internal/ledger"

	_ "modernc.org/sqlite"
)

// Sync lifecycle of a journal row, in write order.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

// SQLiteRepository persists ledger state behind the in-memory engine. The
// engine commits first; the repository is written after, so a crash loses at
// most the transitions since the last save, never the ordering of what it kept.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AppendExpense writes a freshly journaled record with a pending sync marker.
func (r *SQLiteRepository) AppendExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, user, amount, category, description, recorded_at, month, year, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.User), e.Amount, e.Category, e.Description, e.RecordedAt, e.Period.Month, e.Period.Year, SyncPending)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"user", e.User,
		"amount", e.Amount,
		"category", e.Category.Name())
	return nil
}

// GetExpense retrieves a single journal record by id.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id uint64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user, amount, category, description, recorded_at, month, year
		FROM expenses WHERE id = ?`, id)

	var e core.Expense
	var user string
	err := row.Scan(&e.ID, &user, &e.Amount, &e.Category, &e.Description, &e.RecordedAt, &e.Period.Month, &e.Period.Year)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("%w: expense %d", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	e.User = core.Principal(user)
	return e, nil
}

// PendingSyncExpenses returns journal ids still waiting for the sheet mirror,
// oldest first.
func (r *SQLiteRepository) PendingSyncExpenses(ctx context.Context, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM expenses WHERE sync_status = ? ORDER BY id LIMIT ?`,
		SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync expenses: %w", err)
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending expense: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkSynced records a successful mirror of a journal row.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id uint64, atTick uint64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET sync_status = ?, synced_at = ? WHERE id = ?`,
		SyncSynced, atTick, id); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	slog.InfoContext(ctx, "Expense marked as synced", "id", id)
	return nil
}

// MarkSyncError flags a journal row whose mirror attempt failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id uint64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET sync_status = ? WHERE id = ?`,
		SyncError, id); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	slog.WarnContext(ctx, "Expense marked with sync error", "id", id)
	return nil
}

// SaveSnapshot writes the full logical state in one transaction. Journal rows
// are insert-or-ignore so existing sync markers survive repeated saves.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap ledger.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM balances",
		"DELETE FROM budget_categories",
		"DELETE FROM budgets",
		"DELETE FROM goals",
		"DELETE FROM user_stats",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear table: %w", err)
		}
	}

	for principal, amount := range snap.Balances {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO balances (principal, amount) VALUES (?, ?)",
			string(principal), amount); err != nil {
			return fmt.Errorf("insert balance: %w", err)
		}
	}

	for _, b := range snap.Budgets {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO budgets (owner, month, year, total, total_spent, created_at, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(b.Owner), b.Period.Month, b.Period.Year, b.Total, b.TotalSpent, b.CreatedAt, b.Active); err != nil {
			return fmt.Errorf("insert budget: %w", err)
		}
		for i := range b.Limits {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO budget_categories (owner, month, year, category, cap_amount, spent_amount)
				VALUES (?, ?, ?, ?, ?, ?)`,
				string(b.Owner), b.Period.Month, b.Period.Year, i+1, b.Limits[i], b.Spent[i]); err != nil {
				return fmt.Errorf("insert budget category: %w", err)
			}
		}
	}

	for _, e := range snap.Journal {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO expenses (id, user, amount, category, description, recorded_at, month, year, sync_status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, string(e.User), e.Amount, e.Category, e.Description, e.RecordedAt, e.Period.Month, e.Period.Year, SyncPending); err != nil {
			return fmt.Errorf("insert journal expense: %w", err)
		}
	}

	for _, g := range snap.Goals {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO goals (id, owner, title, target, current, deadline_tick, created_at, completed, reward_claimed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.ID, string(g.Owner), g.Title, g.Target, g.Current, g.DeadlineTick, g.CreatedAt, g.Completed, g.RewardClaimed); err != nil {
			return fmt.Errorf("insert goal: %w", err)
		}
	}

	for principal, s := range snap.Stats {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_stats (principal, goals_achieved, total_saved, last_activity_tick)
			VALUES (?, ?, ?, ?)`,
			string(principal), s.GoalsAchieved, s.TotalSaved, s.LastActivityTick); err != nil {
			return fmt.Errorf("insert user stats: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE reward_pool SET amount = ? WHERE id = 1", snap.RewardPool); err != nil {
		return fmt.Errorf("update reward pool: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}

	slog.InfoContext(ctx, "Ledger snapshot saved",
		"balances", len(snap.Balances),
		"budgets", len(snap.Budgets),
		"journal", len(snap.Journal),
		"goals", len(snap.Goals))
	return nil
}

// LoadSnapshot reads the full logical state back out.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (ledger.Snapshot, error) {
	snap := ledger.Snapshot{
		Balances: make(map[core.Principal]int64),
		Stats:    make(map[core.Principal]core.UserStats),
	}

	rows, err := r.db.QueryContext(ctx, "SELECT principal, amount FROM balances")
	if err != nil {
		return snap, fmt.Errorf("load balances: %w", err)
	}
	for rows.Next() {
		var principal string
		var amount int64
		if err := rows.Scan(&principal, &amount); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan balance: %w", err)
		}
		snap.Balances[core.Principal(principal)] = amount
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return snap, fmt.Errorf("load balances: %w", err)
	}
	rows.Close()

	budgets, err := r.loadBudgets(ctx)
	if err != nil {
		return snap, err
	}
	snap.Budgets = budgets

	journal, err := r.loadJournal(ctx)
	if err != nil {
		return snap, err
	}
	snap.Journal = journal

	goals, maxGoalID, err := r.loadGoals(ctx)
	if err != nil {
		return snap, err
	}
	snap.Goals = goals
	snap.NextGoalID = maxGoalID + 1

	rows, err = r.db.QueryContext(ctx,
		"SELECT principal, goals_achieved, total_saved, last_activity_tick FROM user_stats")
	if err != nil {
		return snap, fmt.Errorf("load user stats: %w", err)
	}
	for rows.Next() {
		var principal string
		var s core.UserStats
		if err := rows.Scan(&principal, &s.GoalsAchieved, &s.TotalSaved, &s.LastActivityTick); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan user stats: %w", err)
		}
		snap.Stats[core.Principal(principal)] = s
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return snap, fmt.Errorf("load user stats: %w", err)
	}
	rows.Close()

	if err := r.db.QueryRowContext(ctx,
		"SELECT amount FROM reward_pool WHERE id = 1").Scan(&snap.RewardPool); err != nil {
		return snap, fmt.Errorf("load reward pool: %w", err)
	}

	return snap, nil
}

func (r *SQLiteRepository) loadBudgets(ctx context.Context) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT owner, month, year, total, total_spent, created_at, is_active
		FROM budgets ORDER BY year, month, owner`)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	defer rows.Close()

	var budgets []core.Budget
	for rows.Next() {
		var b core.Budget
		var owner string
		if err := rows.Scan(&owner, &b.Period.Month, &b.Period.Year, &b.Total, &b.TotalSpent, &b.CreatedAt, &b.Active); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Owner = core.Principal(owner)

		catRows, err := r.db.QueryContext(ctx, `
			SELECT category, cap_amount, spent_amount FROM budget_categories
			WHERE owner = ? AND month = ? AND year = ?`,
			owner, b.Period.Month, b.Period.Year)
		if err != nil {
			return nil, fmt.Errorf("load budget categories: %w", err)
		}
		for catRows.Next() {
			var category int
			var limit, spent int64
			if err := catRows.Scan(&category, &limit, &spent); err != nil {
				catRows.Close()
				return nil, fmt.Errorf("scan budget category: %w", err)
			}
			if category < 1 || category > core.NumCategories {
				catRows.Close()
				return nil, fmt.Errorf("%w: stored category %d", core.ErrInvalidInput, category)
			}
			b.Limits[category-1] = limit
			b.Spent[category-1] = spent
		}
		if err := catRows.Err(); err != nil {
			catRows.Close()
			return nil, fmt.Errorf("load budget categories: %w", err)
		}
		catRows.Close()

		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *SQLiteRepository) loadJournal(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user, amount, category, description, recorded_at, month, year
		FROM expenses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	defer rows.Close()

	var journal []core.Expense
	for rows.Next() {
		var e core.Expense
		var user string
		if err := rows.Scan(&e.ID, &user, &e.Amount, &e.Category, &e.Description, &e.RecordedAt, &e.Period.Month, &e.Period.Year); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.User = core.Principal(user)
		journal = append(journal, e)
	}
	return journal, rows.Err()
}

func (r *SQLiteRepository) loadGoals(ctx context.Context) ([]core.Goal, uint64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner, title, target, current, deadline_tick, created_at, completed, reward_claimed
		FROM goals ORDER BY id`)
	if err != nil {
		return nil, 0, fmt.Errorf("load goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	var maxID uint64
	for rows.Next() {
		var g core.Goal
		var owner string
		if err := rows.Scan(&g.ID, &owner, &g.Title, &g.Target, &g.Current, &g.DeadlineTick, &g.CreatedAt, &g.Completed, &g.RewardClaimed); err != nil {
			return nil, 0, fmt.Errorf("scan goal: %w", err)
		}
		g.Owner = core.Principal(owner)
		if g.ID > maxID {
			maxID = g.ID
		}
		goals = append(goals, g)
	}
	return goals, maxID, rows.Err()
}
