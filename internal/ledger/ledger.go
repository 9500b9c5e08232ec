// Package ledger implements the deterministic state-transition engine behind
// the nestegg service: per-principal balances, period budgets, the expense
// journal, savings goals, the reward pool, and the derived user stats.
//
// Every operation runs under a single mutex, so transitions apply one at a
// time in the order the host hands them in. Each operation checks all of its
// preconditions before touching state and mutates only after the last check
// passes, so a failed call leaves the ledger exactly as it found it.
package ledger

import (
	"context"
	"fmt"
	"sync"

	"nestegg/internal/clock"
	"nestegg/internal/core"
	"nestegg/internal/custody"
)

// Params are the protocol constants that shape the ledger's economics. They
// come from configuration; the engine never assumes defaults silently.
type Params struct {
	// MinBudgetAmount is the smallest allowed budget total.
	MinBudgetAmount int64
	// MinGoalAmount is the smallest allowed goal target.
	MinGoalAmount int64
	// AchievementBonus is the fixed reward paid per completed goal claim.
	AchievementBonus int64
	// Admin is the only principal allowed to fund the reward pool.
	Admin core.Principal
}

func (p Params) Validate() error {
	if p.MinBudgetAmount <= 0 {
		return fmt.Errorf("%w: min budget amount must be positive", core.ErrInvalidInput)
	}
	if p.MinGoalAmount <= 0 {
		return fmt.Errorf("%w: min goal amount must be positive", core.ErrInvalidInput)
	}
	if p.AchievementBonus <= 0 {
		return fmt.Errorf("%w: achievement bonus must be positive", core.ErrInvalidInput)
	}
	return p.Admin.Validate()
}

type budgetKey struct {
	owner  core.Principal
	period core.Period
}

// Ledger owns all logical ledger state. Construct with New, drive with the
// operation methods; reads return copies, never internal pointers.
type Ledger struct {
	mu       sync.Mutex
	params   Params
	ticks    clock.Source
	schedule clock.Schedule
	mover    custody.Transfer

	balances   map[core.Principal]int64
	budgets    map[budgetKey]*core.Budget
	journal    []core.Expense
	goals      map[uint64]*core.Goal
	nextGoalID uint64
	rewardPool int64
	stats      map[core.Principal]*core.UserStats
}

func New(params Params, ticks clock.Source, schedule clock.Schedule, mover custody.Transfer) (*Ledger, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("ledger params: %w", err)
	}
	if ticks == nil || mover == nil {
		return nil, fmt.Errorf("%w: ledger requires a tick source and a custody mover", core.ErrInvalidInput)
	}
	if schedule.TicksPerMonth == 0 {
		return nil, fmt.Errorf("%w: schedule month width must be positive", core.ErrInvalidInput)
	}
	return &Ledger{
		params:     params,
		ticks:      ticks,
		schedule:   schedule,
		mover:      mover,
		balances:   make(map[core.Principal]int64),
		budgets:    make(map[budgetKey]*core.Budget),
		goals:      make(map[uint64]*core.Goal),
		nextGoalID: 1,
		stats:      make(map[core.Principal]*core.UserStats),
	}, nil
}

// Params returns the protocol constants the ledger was built with.
func (l *Ledger) Params() Params {
	return l.params
}

// CurrentPeriod returns the budgeting period at the current tick.
func (l *Ledger) CurrentPeriod() core.Period {
	return l.schedule.PeriodAt(l.ticks.Now())
}

// Now returns the current tick.
func (l *Ledger) Now() uint64 {
	return l.ticks.Now()
}

// Deposit pulls amount from the caller's external holdings into custody and
// credits the caller's balance. Transfer first, credit second: the balance
// only moves once the value is actually held.
func (l *Ledger) Deposit(ctx context.Context, caller core.Principal, amount int64) error {
	if err := caller.Validate(); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("%w: deposit amount must be positive", core.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.mover.In(ctx, caller, amount); err != nil {
		return fmt.Errorf("custody transfer in: %w", err)
	}
	l.balances[caller] += amount
	l.touch(caller)
	return nil
}

// Withdraw releases amount from custody back to the caller. The balance is
// debited before the external transfer is attempted; if the transfer fails
// the debit is rolled back so the operation has no effect.
func (l *Ledger) Withdraw(ctx context.Context, caller core.Principal, amount int64) error {
	if err := caller.Validate(); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("%w: withdraw amount must be positive", core.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[caller] < amount {
		return fmt.Errorf("%w: balance %d below withdrawal %d", core.ErrInsufficientFunds, l.balances[caller], amount)
	}

	l.balances[caller] -= amount
	if err := l.mover.Out(ctx, caller, amount); err != nil {
		l.balances[caller] += amount
		return fmt.Errorf("custody transfer out: %w", err)
	}
	l.touch(caller)
	return nil
}

// Balance returns the caller's available balance. Unknown principals read as
// zero, never an error.
func (l *Ledger) Balance(principal core.Principal) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[principal]
}

// Stats returns the derived gamification counters for a principal. Unknown
// principals read as the zero aggregate.
func (l *Ledger) Stats(principal core.Principal) core.UserStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.stats[principal]; ok {
		return *s
	}
	return core.UserStats{}
}

// touch records generic activity for a principal. Callers must hold l.mu.
func (l *Ledger) touch(p core.Principal) {
	s, ok := l.stats[p]
	if !ok {
		s = &core.UserStats{}
		l.stats[p] = s
	}
	s.LastActivityTick = l.ticks.Now()
}
