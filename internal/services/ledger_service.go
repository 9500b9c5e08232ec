// Package services orchestrates the ledger engine, durable storage, and the
// journal sync queue.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"nestegg/internal/core"
	"nestegg/internal/ledger"
)

// Repository is the durable side of the service: the journal table plus full
// state snapshots.
type Repository interface {
	AppendExpense(ctx context.Context, e core.Expense) error
	SaveSnapshot(ctx context.Context, snap ledger.Snapshot) error
	Close() error
}

// SyncPublisher hands journal records to the mirror worker's queue.
type SyncPublisher interface {
	PublishJournalSync(ctx context.Context, id, recordedAt uint64) error
	Close() error
}

// LedgerService applies operations to the in-memory engine first, then writes
// behind to storage and the sync queue. The engine commit is authoritative: a
// storage or publish failure is logged, never surfaced to the caller.
type LedgerService struct {
	engine    *ledger.Ledger
	storage   Repository
	publisher SyncPublisher
}

func NewLedgerService(engine *ledger.Ledger, repo Repository, publisher SyncPublisher) *LedgerService {
	return &LedgerService{
		engine:    engine,
		storage:   repo,
		publisher: publisher,
	}
}

func (s *LedgerService) Deposit(ctx context.Context, caller core.Principal, amount int64) error {
	if err := s.engine.Deposit(ctx, caller, amount); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

func (s *LedgerService) Withdraw(ctx context.Context, caller core.Principal, amount int64) error {
	if err := s.engine.Withdraw(ctx, caller, amount); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

func (s *LedgerService) Balance(principal core.Principal) int64 {
	return s.engine.Balance(principal)
}

func (s *LedgerService) CreateBudget(ctx context.Context, caller core.Principal, total int64, limits [core.NumCategories]int64) (core.Budget, error) {
	b, err := s.engine.CreateBudget(ctx, caller, total, limits)
	if err != nil {
		return core.Budget{}, err
	}
	s.persist(ctx)
	return b, nil
}

func (s *LedgerService) CurrentBudget(caller core.Principal) (core.Budget, error) {
	return s.engine.CurrentBudget(caller)
}

// AddExpense journals the record in the engine, then writes it to SQLite and
// queues it for the sheet mirror. The snapshot follows the journal append so
// the budget spend committed in the same transition is durable too. All
// follow-ups are best effort: the record is committed once the engine accepts
// it.
func (s *LedgerService) AddExpense(ctx context.Context, caller core.Principal, amount int64, category core.Category, description string) (core.Expense, error) {
	e, err := s.engine.AddExpense(ctx, caller, amount, category, description)
	if err != nil {
		return core.Expense{}, err
	}

	if s.storage != nil {
		if err := s.storage.AppendExpense(ctx, e); err != nil {
			slog.ErrorContext(ctx, "Failed to persist journal record",
				"id", e.ID, "error", err)
		}
	}
	s.persist(ctx)
	if err := s.publishSyncMessage(ctx, e.ID, e.RecordedAt); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", e.ID, "error", err)
	}
	return e, nil
}

func (s *LedgerService) Expenses(caller core.Principal, period core.Period) []core.Expense {
	return s.engine.Expenses(caller, period)
}

func (s *LedgerService) CurrentPeriod() core.Period {
	return s.engine.CurrentPeriod()
}

func (s *LedgerService) Now() uint64 {
	return s.engine.Now()
}

func (s *LedgerService) CreateGoal(ctx context.Context, caller core.Principal, title string, target int64, deadlineMonths int) (core.Goal, error) {
	g, err := s.engine.CreateGoal(ctx, caller, title, target, deadlineMonths)
	if err != nil {
		return core.Goal{}, err
	}
	s.persist(ctx)
	return g, nil
}

func (s *LedgerService) Goal(id uint64) (core.Goal, error) {
	return s.engine.Goal(id)
}

func (s *LedgerService) Contribute(ctx context.Context, caller core.Principal, goalID uint64, amount int64) (bool, error) {
	completed, err := s.engine.Contribute(ctx, caller, goalID, amount)
	if err != nil {
		return false, err
	}
	s.persist(ctx)
	return completed, nil
}

func (s *LedgerService) ClaimReward(ctx context.Context, caller core.Principal, goalID uint64) (int64, error) {
	bonus, err := s.engine.ClaimReward(ctx, caller, goalID)
	if err != nil {
		return 0, err
	}
	s.persist(ctx)
	return bonus, nil
}

func (s *LedgerService) FundRewards(ctx context.Context, caller core.Principal, amount int64) error {
	if err := s.engine.FundRewards(ctx, caller, amount); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

func (s *LedgerService) RewardPool() int64 {
	return s.engine.RewardPool()
}

func (s *LedgerService) Stats(principal core.Principal) core.UserStats {
	return s.engine.Stats(principal)
}

// persist snapshots the engine state behind the committed transition.
func (s *LedgerService) persist(ctx context.Context) {
	if s.storage == nil {
		return
	}
	if err := s.storage.SaveSnapshot(ctx, s.engine.Snapshot()); err != nil {
		slog.ErrorContext(ctx, "Failed to save ledger snapshot", "error", err)
	}
}

func (s *LedgerService) publishSyncMessage(ctx context.Context, id, recordedAt uint64) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishJournalSync(ctx, id, recordedAt)
}

// Close releases storage and queue connections.
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}
	return nil
}
