package ledger

import (
	"context"
	"fmt"

	"nestegg/internal/core"
)

// CreateGoal opens a savings goal owned by the caller. The deadline is a
// whole number of months from now, bounded to keep goals finite.
func (l *Ledger) CreateGoal(ctx context.Context, caller core.Principal, title string, target int64, deadlineMonths int) (core.Goal, error) {
	if deadlineMonths < core.MinDeadlineMonths || deadlineMonths > core.MaxDeadlineMonths {
		return core.Goal{}, fmt.Errorf("%w: deadline %d months outside %d..%d", core.ErrInvalidInput, deadlineMonths, core.MinDeadlineMonths, core.MaxDeadlineMonths)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.ticks.Now()
	g := core.Goal{
		ID:           l.nextGoalID,
		Owner:        caller,
		Title:        title,
		Target:       target,
		DeadlineTick: l.schedule.DeadlineAfter(now, deadlineMonths),
		CreatedAt:    now,
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	if target < l.params.MinGoalAmount {
		return core.Goal{}, fmt.Errorf("%w: goal target %d below minimum %d", core.ErrInvalidInput, target, l.params.MinGoalAmount)
	}

	l.goals[g.ID] = &g
	l.nextGoalID++
	l.touch(caller)
	return g, nil
}

// Goal returns a goal by id.
func (l *Ledger) Goal(id uint64) (core.Goal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.goals[id]
	if !ok {
		return core.Goal{}, fmt.Errorf("%w: goal %d", core.ErrNotFound, id)
	}
	return *g, nil
}

// Contribute moves amount from the caller's balance into the goal. When the
// running total reaches the target the goal completes in the same transition
// and the caller's stats are updated with it. Reports whether this
// contribution completed the goal.
//
// A goal that is already done wins over one that is merely late: the
// completed check runs before the deadline check.
func (l *Ledger) Contribute(ctx context.Context, caller core.Principal, goalID uint64, amount int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.goals[goalID]
	if !ok {
		return false, fmt.Errorf("%w: goal %d", core.ErrNotFound, goalID)
	}
	if g.Owner != caller {
		return false, fmt.Errorf("%w: goal %d belongs to another principal", core.ErrUnauthorized, goalID)
	}
	if g.Completed {
		return false, fmt.Errorf("%w: goal %d is already completed", core.ErrAlreadyExists, goalID)
	}
	now := l.ticks.Now()
	if now > g.DeadlineTick {
		return false, fmt.Errorf("%w: goal %d deadline passed at tick %d", core.ErrGoalExpired, goalID, g.DeadlineTick)
	}
	if amount <= 0 {
		return false, fmt.Errorf("%w: contribution amount must be positive", core.ErrInvalidInput)
	}
	if l.balances[caller] < amount {
		return false, fmt.Errorf("%w: balance %d below contribution %d", core.ErrInsufficientFunds, l.balances[caller], amount)
	}

	l.balances[caller] -= amount
	g.Current += amount
	l.touch(caller)

	if g.Current >= g.Target {
		g.Completed = true
		s := l.stats[caller]
		s.GoalsAchieved++
		s.TotalSaved += g.Target
		return true, nil
	}
	return false, nil
}

// ClaimReward pays the fixed achievement bonus for a completed goal out of
// the reward pool. A claim is a one-way door: it succeeds at most once per
// goal and can never be reversed. Returns the bonus credited.
func (l *Ledger) ClaimReward(ctx context.Context, caller core.Principal, goalID uint64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	g, ok := l.goals[goalID]
	if !ok {
		return 0, fmt.Errorf("%w: goal %d", core.ErrNotFound, goalID)
	}
	if g.Owner != caller {
		return 0, fmt.Errorf("%w: goal %d belongs to another principal", core.ErrUnauthorized, goalID)
	}
	if !g.Completed {
		return 0, fmt.Errorf("%w: goal %d has %d of %d", core.ErrGoalNotMet, goalID, g.Current, g.Target)
	}
	if g.RewardClaimed {
		return 0, fmt.Errorf("%w: reward for goal %d already claimed", core.ErrAlreadyExists, goalID)
	}
	bonus := l.params.AchievementBonus
	if l.rewardPool < bonus {
		return 0, fmt.Errorf("%w: reward pool %d below bonus %d", core.ErrInsufficientFunds, l.rewardPool, bonus)
	}

	l.rewardPool -= bonus
	l.balances[caller] += bonus
	g.RewardClaimed = true
	l.touch(caller)
	return bonus, nil
}

// FundRewards tops up the shared reward pool. Only the configured admin
// principal may fund it; the value moves into custody before the pool is
// credited, same ordering as Deposit.
func (l *Ledger) FundRewards(ctx context.Context, caller core.Principal, amount int64) error {
	if caller != l.params.Admin {
		return fmt.Errorf("%w: only the admin principal funds the reward pool", core.ErrUnauthorized)
	}
	if amount <= 0 {
		return fmt.Errorf("%w: funding amount must be positive", core.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.mover.In(ctx, caller, amount); err != nil {
		return fmt.Errorf("custody transfer in: %w", err)
	}
	l.rewardPool += amount
	return nil
}

// RewardPool returns the current pool balance.
func (l *Ledger) RewardPool() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rewardPool
}
