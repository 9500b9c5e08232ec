package ledger

import (
	"fmt"

	"nestegg/internal/core"
)

// Snapshot is a deep copy of the full logical state, used by the storage
// layer to persist and reload the ledger across restarts.
type Snapshot struct {
	Balances   map[core.Principal]int64
	Budgets    []core.Budget
	Journal    []core.Expense
	Goals      []core.Goal
	RewardPool int64
	Stats      map[core.Principal]core.UserStats
	NextGoalID uint64
}

// TotalHeld reports the custody total implied by the snapshot: user balances,
// locked goal contributions and the reward pool.
func (s Snapshot) TotalHeld() int64 {
	var total int64
	for _, amount := range s.Balances {
		total += amount
	}
	for _, g := range s.Goals {
		total += g.Current
	}
	return total + s.RewardPool
}

// Snapshot copies out the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Balances:   make(map[core.Principal]int64, len(l.balances)),
		Budgets:    make([]core.Budget, 0, len(l.budgets)),
		Journal:    append([]core.Expense(nil), l.journal...),
		Goals:      make([]core.Goal, 0, len(l.goals)),
		RewardPool: l.rewardPool,
		Stats:      make(map[core.Principal]core.UserStats, len(l.stats)),
		NextGoalID: l.nextGoalID,
	}
	for p, amount := range l.balances {
		snap.Balances[p] = amount
	}
	for _, b := range l.budgets {
		snap.Budgets = append(snap.Budgets, *b)
	}
	for _, g := range l.goals {
		snap.Goals = append(snap.Goals, *g)
	}
	for p, s := range l.stats {
		snap.Stats[p] = *s
	}
	return snap
}

// Restore replaces the ledger's state with a previously captured snapshot.
// The snapshot is verified against the ledger invariants first; a snapshot
// that fails verification leaves the current state untouched.
func (l *Ledger) Restore(snap Snapshot) error {
	balances := make(map[core.Principal]int64, len(snap.Balances))
	for p, amount := range snap.Balances {
		if amount < 0 {
			return fmt.Errorf("%w: negative balance %d for %s", core.ErrInvalidInput, amount, p)
		}
		balances[p] = amount
	}

	budgets := make(map[budgetKey]*core.Budget, len(snap.Budgets))
	for _, b := range snap.Budgets {
		if err := b.CheckConsistent(); err != nil {
			return fmt.Errorf("budget %s/%s: %w", b.Owner, b.Period, err)
		}
		key := budgetKey{owner: b.Owner, period: b.Period}
		if _, ok := budgets[key]; ok {
			return fmt.Errorf("%w: duplicate budget %s/%s", core.ErrAlreadyExists, b.Owner, b.Period)
		}
		copied := b
		budgets[key] = &copied
	}

	journal := append([]core.Expense(nil), snap.Journal...)
	for i, e := range journal {
		if e.ID != uint64(i)+1 {
			return fmt.Errorf("%w: journal id %d at position %d", core.ErrInvalidInput, e.ID, i)
		}
	}

	if snap.RewardPool < 0 {
		return fmt.Errorf("%w: negative reward pool %d", core.ErrInvalidInput, snap.RewardPool)
	}

	nextGoalID := snap.NextGoalID
	if nextGoalID == 0 {
		nextGoalID = 1
	}
	goals := make(map[uint64]*core.Goal, len(snap.Goals))
	for _, g := range snap.Goals {
		if g.ID == 0 || g.ID >= nextGoalID {
			return fmt.Errorf("%w: goal id %d outside counter %d", core.ErrInvalidInput, g.ID, nextGoalID)
		}
		if _, ok := goals[g.ID]; ok {
			return fmt.Errorf("%w: duplicate goal %d", core.ErrAlreadyExists, g.ID)
		}
		copied := g
		goals[g.ID] = &copied
	}

	stats := make(map[core.Principal]*core.UserStats, len(snap.Stats))
	for p, s := range snap.Stats {
		copied := s
		stats[p] = &copied
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = balances
	l.budgets = budgets
	l.journal = journal
	l.goals = goals
	l.nextGoalID = nextGoalID
	l.rewardPool = snap.RewardPool
	l.stats = stats
	return nil
}
