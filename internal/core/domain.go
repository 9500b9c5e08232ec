package core

import (
	"fmt"
	"strings"
)

const (
	// MaxDescriptionLen bounds expense descriptions.
	MaxDescriptionLen = 200
	// MaxTitleLen bounds goal titles.
	MaxTitleLen = 100
	// MaxPrincipalLen bounds principal identifiers.
	MaxPrincipalLen = 64

	// Goal deadlines are expressed in whole months from creation.
	MinDeadlineMonths = 1
	MaxDeadlineMonths = 60
)

// Principal is a unique, authenticated caller identity. Authentication itself
// happens upstream; the ledger only cares that the identity is well-formed.
type Principal string

func (p Principal) Validate() error {
	s := strings.TrimSpace(string(p))
	if s == "" || s != string(p) {
		return fmt.Errorf("%w: empty or padded principal", ErrInvalidInput)
	}
	if len(p) > MaxPrincipalLen {
		return fmt.Errorf("%w: principal longer than %d characters", ErrInvalidInput, MaxPrincipalLen)
	}
	return nil
}

// Category is one of the seven fixed spending categories. The numeric codes
// are part of the public contract and must not be reassigned.
type Category uint8

const (
	CategoryFood Category = iota + 1
	CategoryTransport
	CategoryEntertainment
	CategoryUtilities
	CategoryHealthcare
	CategoryShopping
	CategoryOther

	NumCategories = 7
)

var categoryNames = [NumCategories]string{
	"Food", "Transport", "Entertainment", "Utilities", "Healthcare", "Shopping", "Other",
}

func (c Category) Valid() bool {
	return c >= CategoryFood && c <= CategoryOther
}

func (c Category) Name() string {
	if !c.Valid() {
		return "Unknown"
	}
	return categoryNames[c-1]
}

// Index returns the position of the category in a limits/spent array.
func (c Category) Index() int {
	return int(c) - 1
}

// Period is a budgeting window derived from the tick counter.
type Period struct {
	Month int
	Year  int
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Budget is a per-(principal, period) spending plan. The category limits must
// sum exactly to the total; spent counters never exceed their budget.
type Budget struct {
	Owner      Principal
	Period     Period
	Total      int64
	Limits     [NumCategories]int64
	Spent      [NumCategories]int64
	TotalSpent int64
	CreatedAt  uint64
	Active     bool
}

// Remaining returns the unspent part of the total budget.
func (b Budget) Remaining() int64 {
	return b.Total - b.TotalSpent
}

// CheckConsistent verifies the internal budget invariants. Used by tests and
// the storage layer when reloading state.
func (b Budget) CheckConsistent() error {
	var limitSum, spentSum int64
	for i := 0; i < NumCategories; i++ {
		limitSum += b.Limits[i]
		spentSum += b.Spent[i]
	}
	if limitSum != b.Total {
		return fmt.Errorf("%w: category limits sum %d != total %d", ErrInvalidInput, limitSum, b.Total)
	}
	if spentSum != b.TotalSpent {
		return fmt.Errorf("%w: category spent sum %d != total spent %d", ErrInvalidInput, spentSum, b.TotalSpent)
	}
	if b.TotalSpent > b.Total {
		return fmt.Errorf("%w: total spent %d exceeds total %d", ErrBudgetExceeded, b.TotalSpent, b.Total)
	}
	return nil
}

// Expense is one immutable journal entry. There is no update or delete; the
// journal is a permanent audit trail.
type Expense struct {
	ID          uint64
	User        Principal
	Amount      int64
	Category    Category
	Description string
	RecordedAt  uint64
	Period      Period
}

func (e Expense) Validate() error {
	if err := e.User.Validate(); err != nil {
		return err
	}
	if e.Amount <= 0 {
		return fmt.Errorf("%w: expense amount must be positive", ErrInvalidInput)
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: category code %d out of range 1..%d", ErrInvalidInput, e.Category, NumCategories)
	}
	if strings.TrimSpace(e.Description) == "" {
		return fmt.Errorf("%w: empty description", ErrInvalidInput)
	}
	if len(e.Description) > MaxDescriptionLen {
		return fmt.Errorf("%w: description longer than %d characters", ErrInvalidInput, MaxDescriptionLen)
	}
	return nil
}

// GoalState is the derived lifecycle state of a savings goal.
type GoalState string

const (
	GoalOpen         GoalState = "open"
	GoalContributing GoalState = "contributing"
	GoalCompleted    GoalState = "completed"
	GoalRewarded     GoalState = "rewarded"
	GoalExpiredState GoalState = "expired"
)

// Goal is a savings target with a tick deadline. Completion is latched: once
// Completed is set it never clears, and a claimed reward never un-claims.
type Goal struct {
	ID            uint64
	Owner         Principal
	Title         string
	Target        int64
	Current       int64
	DeadlineTick  uint64
	CreatedAt     uint64
	Completed     bool
	RewardClaimed bool
}

// State derives the lifecycle state at the given tick. Expiry only applies to
// goals that never completed; a completed goal stays claimable after its
// deadline passes.
func (g Goal) State(now uint64) GoalState {
	switch {
	case g.RewardClaimed:
		return GoalRewarded
	case g.Completed:
		return GoalCompleted
	case now > g.DeadlineTick:
		return GoalExpiredState
	case g.Current > 0:
		return GoalContributing
	default:
		return GoalOpen
	}
}

func (g Goal) Validate() error {
	if err := g.Owner.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(g.Title) == "" {
		return fmt.Errorf("%w: empty goal title", ErrInvalidInput)
	}
	if len(g.Title) > MaxTitleLen {
		return fmt.Errorf("%w: title longer than %d characters", ErrInvalidInput, MaxTitleLen)
	}
	if g.Target <= 0 {
		return fmt.Errorf("%w: goal target must be positive", ErrInvalidInput)
	}
	return nil
}

// UserStats is the denormalized gamification aggregate. It is derived state:
// it can always be recomputed from the goal and expense history.
type UserStats struct {
	GoalsAchieved    uint64
	TotalSaved       int64
	LastActivityTick uint64
}
