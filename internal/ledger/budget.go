package ledger

import (
	"context"
	"fmt"

	"nestegg/internal/core"
)

// CreateBudget opens the caller's spending plan for the current period. The
// seven category limits must sum exactly to the total: no slack, no implicit
// remainder bucket. One budget per (caller, period), forever: a period's
// budget is never reopened or replaced.
func (l *Ledger) CreateBudget(ctx context.Context, caller core.Principal, total int64, limits [core.NumCategories]int64) (core.Budget, error) {
	if err := caller.Validate(); err != nil {
		return core.Budget{}, err
	}
	if total < l.params.MinBudgetAmount {
		return core.Budget{}, fmt.Errorf("%w: budget total %d below minimum %d", core.ErrInvalidInput, total, l.params.MinBudgetAmount)
	}
	var sum int64
	for i, lim := range limits {
		if lim < 0 {
			return core.Budget{}, fmt.Errorf("%w: negative limit for category %s", core.ErrInvalidInput, core.Category(i+1).Name())
		}
		sum += lim
	}
	if sum != total {
		return core.Budget{}, fmt.Errorf("%w: category limits sum %d != total %d", core.ErrInvalidInput, sum, total)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.ticks.Now()
	period := l.schedule.PeriodAt(now)
	key := budgetKey{owner: caller, period: period}
	if _, ok := l.budgets[key]; ok {
		return core.Budget{}, fmt.Errorf("%w: budget for %s already exists", core.ErrAlreadyExists, period)
	}

	b := &core.Budget{
		Owner:     caller,
		Period:    period,
		Total:     total,
		Limits:    limits,
		CreatedAt: now,
		Active:    true,
	}
	l.budgets[key] = b
	l.touch(caller)
	return *b, nil
}

// CurrentBudget returns the caller's budget for the current period.
func (l *Ledger) CurrentBudget(caller core.Principal) (core.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	period := l.schedule.PeriodAt(l.ticks.Now())
	b, ok := l.budgets[budgetKey{owner: caller, period: period}]
	if !ok {
		return core.Budget{}, fmt.Errorf("%w: no budget for %s", core.ErrNotFound, period)
	}
	return *b, nil
}

// AddExpense appends an immutable record to the journal. If the caller has a
// budget for the current period the record must fit inside the remaining
// total; when it does not, nothing is written. The journal append and the
// budget check are one transition, not two. Returns the new record's id.
func (l *Ledger) AddExpense(ctx context.Context, caller core.Principal, amount int64, category core.Category, description string) (core.Expense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.ticks.Now()
	e := core.Expense{
		ID:          uint64(len(l.journal)) + 1,
		User:        caller,
		Amount:      amount,
		Category:    category,
		Description: description,
		RecordedAt:  now,
		Period:      l.schedule.PeriodAt(now),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	// Budget-less expenses are still journaled; they just run unconstrained.
	b, hasBudget := l.budgets[budgetKey{owner: caller, period: e.Period}]
	if hasBudget {
		if b.TotalSpent+amount > b.Total {
			return core.Expense{}, fmt.Errorf("%w: spend %d + %d exceeds budget %d", core.ErrBudgetExceeded, b.TotalSpent, amount, b.Total)
		}
	}

	l.journal = append(l.journal, e)
	if hasBudget {
		b.Spent[category.Index()] += amount
		b.TotalSpent += amount
	}
	l.touch(caller)
	return e, nil
}

// Expense returns a journal record by id.
func (l *Ledger) Expense(id uint64) (core.Expense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if id == 0 || id > uint64(len(l.journal)) {
		return core.Expense{}, fmt.Errorf("%w: expense %d", core.ErrNotFound, id)
	}
	return l.journal[id-1], nil
}

// Expenses returns the caller's journal records for a period, in record order.
func (l *Ledger) Expenses(caller core.Principal, period core.Period) []core.Expense {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []core.Expense
	for _, e := range l.journal {
		if e.User == caller && e.Period == period {
			out = append(out, e)
		}
	}
	return out
}

// JournalLen reports the number of records ever journaled.
func (l *Ledger) JournalLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.journal)
}
