package ledger

import (
	"context"
	"errors"
	"testing"

	"nestegg/internal/clock"
	"nestegg/internal/core"
	"nestegg/internal/custody"
)

func testParams() Params {
	return Params{
		MinBudgetAmount:  1000,
		MinGoalAmount:    500,
		AchievementBonus: 250,
		Admin:            "admin",
	}
}

func newTestLedger(t *testing.T) (*Ledger, *clock.ManualSource, *custody.Vault) {
	t.Helper()
	ticks := clock.NewManualSource(0)
	vault := custody.NewVault()
	l, err := New(testParams(), ticks, clock.NewSchedule(100), vault)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	return l, ticks, vault
}

// failingMover rejects transfers on demand to drive rollback paths.
type failingMover struct {
	inErr  error
	outErr error
}

func (m *failingMover) In(_ context.Context, _ core.Principal, _ int64) error  { return m.inErr }
func (m *failingMover) Out(_ context.Context, _ core.Principal, _ int64) error { return m.outErr }

func TestNewRejectsBadParams(t *testing.T) {
	bads := []Params{
		{MinBudgetAmount: 0, MinGoalAmount: 1, AchievementBonus: 1, Admin: "a"},
		{MinBudgetAmount: 1, MinGoalAmount: 0, AchievementBonus: 1, Admin: "a"},
		{MinBudgetAmount: 1, MinGoalAmount: 1, AchievementBonus: 0, Admin: "a"},
		{MinBudgetAmount: 1, MinGoalAmount: 1, AchievementBonus: 1, Admin: ""},
	}
	for i, p := range bads {
		if _, err := New(p, clock.NewManualSource(0), clock.NewSchedule(100), custody.NewVault()); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
	if _, err := New(testParams(), nil, clock.NewSchedule(100), custody.NewVault()); err == nil {
		t.Fatalf("expected error for nil tick source")
	}
	// A zero-width schedule would divide by zero on every period derivation.
	if _, err := New(testParams(), clock.NewManualSource(0), clock.Schedule{}, custody.NewVault()); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero-width schedule, got %v", err)
	}
}

func TestDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	l, _, vault := newTestLedger(t)

	if err := l.Deposit(ctx, "alice", 0); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := l.Deposit(ctx, "alice", 10000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := l.Balance("alice"); got != 10000 {
		t.Fatalf("balance = %d, want 10000", got)
	}
	if got := l.Balance("stranger"); got != 0 {
		t.Fatalf("unknown principal balance = %d, want 0", got)
	}

	if err := l.Withdraw(ctx, "alice", 20000); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := l.Withdraw(ctx, "alice", 4000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := l.Balance("alice"); got != 6000 {
		t.Fatalf("balance = %d, want 6000", got)
	}
	if vault.Held() != 6000 {
		t.Fatalf("custody held = %d, want 6000", vault.Held())
	}
}

func TestDepositCreditsOnlyAfterTransfer(t *testing.T) {
	ctx := context.Background()
	mover := &failingMover{inErr: errors.New("wire down")}
	l, err := New(testParams(), clock.NewManualSource(0), clock.NewSchedule(100), mover)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	if err := l.Deposit(ctx, "alice", 100); err == nil {
		t.Fatalf("expected transfer error")
	}
	if got := l.Balance("alice"); got != 0 {
		t.Fatalf("failed deposit credited balance: %d", got)
	}
}

func TestWithdrawRollsBackOnTransferFailure(t *testing.T) {
	ctx := context.Background()
	mover := &failingMover{}
	l, err := New(testParams(), clock.NewManualSource(0), clock.NewSchedule(100), mover)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := l.Deposit(ctx, "alice", 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	mover.outErr = errors.New("wire down")
	if err := l.Withdraw(ctx, "alice", 300); err == nil {
		t.Fatalf("expected transfer error")
	}
	if got := l.Balance("alice"); got != 500 {
		t.Fatalf("debit not rolled back, balance = %d", got)
	}
}

func TestCreateBudget(t *testing.T) {
	ctx := context.Background()
	l, ticks, _ := newTestLedger(t)
	limits := [core.NumCategories]int64{3000, 2000, 1000, 1000, 1000, 1000, 1000}

	if _, err := l.CreateBudget(ctx, "alice", 999, limits); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("below-minimum total: got %v", err)
	}
	if _, err := l.CreateBudget(ctx, "alice", 10001, limits); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("sum mismatch: got %v", err)
	}
	bad := limits
	bad[0], bad[1] = -1000, 6001
	if _, err := l.CreateBudget(ctx, "alice", 10000, bad); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("negative limit: got %v", err)
	}

	b, err := l.CreateBudget(ctx, "alice", 10000, limits)
	if err != nil {
		t.Fatalf("create budget: %v", err)
	}
	if b.Period != (core.Period{Month: 1, Year: clock.EpochYear}) {
		t.Fatalf("period = %v", b.Period)
	}
	if !b.Active || b.TotalSpent != 0 {
		t.Fatalf("fresh budget not zeroed: %+v", b)
	}
	if err := b.CheckConsistent(); err != nil {
		t.Fatalf("fresh budget inconsistent: %v", err)
	}

	if _, err := l.CreateBudget(ctx, "alice", 10000, limits); !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("duplicate budget: got %v", err)
	}

	// A different principal and a different period are both fine.
	if _, err := l.CreateBudget(ctx, "bob", 10000, limits); err != nil {
		t.Fatalf("budget for bob: %v", err)
	}
	ticks.Advance(100)
	b2, err := l.CreateBudget(ctx, "alice", 10000, limits)
	if err != nil {
		t.Fatalf("next period budget: %v", err)
	}
	if b2.Period.Month != 2 {
		t.Fatalf("next period = %v", b2.Period)
	}
}

func TestAddExpenseAgainstBudget(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)
	limits := [core.NumCategories]int64{3000, 2000, 1000, 1000, 1000, 1000, 1000}
	if _, err := l.CreateBudget(ctx, "alice", 10000, limits); err != nil {
		t.Fatalf("create budget: %v", err)
	}

	e, err := l.AddExpense(ctx, "alice", 500, core.CategoryFood, "groceries")
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	if e.ID != 1 {
		t.Fatalf("expense id = %d, want 1", e.ID)
	}
	b, err := l.CurrentBudget("alice")
	if err != nil {
		t.Fatalf("current budget: %v", err)
	}
	if b.Spent[core.CategoryFood.Index()] != 500 || b.TotalSpent != 500 {
		t.Fatalf("spent = %d / total %d, want 500/500", b.Spent[core.CategoryFood.Index()], b.TotalSpent)
	}

	// Over-budget attempt must leave both the journal and the budget as-is.
	if _, err := l.AddExpense(ctx, "alice", 9600, core.CategoryFood, "splurge"); !errors.Is(err, core.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	if l.JournalLen() != 1 {
		t.Fatalf("journal len = %d after rejected expense", l.JournalLen())
	}
	b, _ = l.CurrentBudget("alice")
	if b.TotalSpent != 500 {
		t.Fatalf("total spent = %d after rejected expense, want 500", b.TotalSpent)
	}
	if err := b.CheckConsistent(); err != nil {
		t.Fatalf("budget inconsistent: %v", err)
	}

	// Filling the budget exactly is allowed.
	if _, err := l.AddExpense(ctx, "alice", 9500, core.CategoryOther, "rest"); err != nil {
		t.Fatalf("exact fill: %v", err)
	}
	b, _ = l.CurrentBudget("alice")
	if b.TotalSpent != b.Total {
		t.Fatalf("total spent = %d, want %d", b.TotalSpent, b.Total)
	}
	if _, err := l.AddExpense(ctx, "alice", 1, core.CategoryOther, "one more"); !errors.Is(err, core.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded at full budget, got %v", err)
	}
}

func TestAddExpenseWithoutBudget(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	// No budget: the journal still records, unconstrained.
	e, err := l.AddExpense(ctx, "bob", 123456, core.CategoryTransport, "flight")
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	got, err := l.Expense(e.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != e {
		t.Fatalf("journal entry mismatch: %+v != %+v", got, e)
	}
	if _, err := l.Expense(99); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	stats := l.Stats("bob")
	if stats.LastActivityTick != 0 || stats.GoalsAchieved != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestAddExpenseValidation(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	cases := []struct {
		amount   int64
		category core.Category
		desc     string
	}{
		{0, core.CategoryFood, "x"},
		{-5, core.CategoryFood, "x"},
		{10, 0, "x"},
		{10, 8, "x"},
		{10, core.CategoryFood, ""},
	}
	for i, tc := range cases {
		if _, err := l.AddExpense(ctx, "alice", tc.amount, tc.category, tc.desc); !errors.Is(err, core.ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
	if l.JournalLen() != 0 {
		t.Fatalf("rejected expenses were journaled: %d", l.JournalLen())
	}
}

func TestExpenseIDsMonotonic(t *testing.T) {
	ctx := context.Background()
	l, ticks, _ := newTestLedger(t)

	for i := 1; i <= 5; i++ {
		e, err := l.AddExpense(ctx, "alice", int64(i*10), core.CategoryOther, "entry")
		if err != nil {
			t.Fatalf("add expense %d: %v", i, err)
		}
		if e.ID != uint64(i) {
			t.Fatalf("expense id = %d, want %d", e.ID, i)
		}
		ticks.Advance(1)
	}
	period := core.Period{Month: 1, Year: clock.EpochYear}
	if got := len(l.Expenses("alice", period)); got != 5 {
		t.Fatalf("listed %d expenses, want 5", got)
	}
}

func TestGoalLifecycle(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	if err := l.Deposit(ctx, "bob", 5000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	g, err := l.CreateGoal(ctx, "bob", "vacation", 5000, 1)
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if g.ID != 1 || g.DeadlineTick != 100 {
		t.Fatalf("goal = %+v", g)
	}

	completed, err := l.Contribute(ctx, "bob", g.ID, 5000)
	if err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if !completed {
		t.Fatalf("expected completion")
	}
	if got := l.Balance("bob"); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
	got, _ := l.Goal(g.ID)
	if !got.Completed || got.Current != 5000 {
		t.Fatalf("goal after completion: %+v", got)
	}
	stats := l.Stats("bob")
	if stats.GoalsAchieved != 1 || stats.TotalSaved != 5000 {
		t.Fatalf("stats = %+v", stats)
	}

	// Fund the pool with exactly one bonus, claim it, and watch it zero out.
	if err := l.FundRewards(ctx, "admin", 250); err != nil {
		t.Fatalf("fund rewards: %v", err)
	}
	bonus, err := l.ClaimReward(ctx, "bob", g.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if bonus != 250 {
		t.Fatalf("bonus = %d, want 250", bonus)
	}
	if l.RewardPool() != 0 {
		t.Fatalf("pool = %d, want 0", l.RewardPool())
	}
	if got := l.Balance("bob"); got != 250 {
		t.Fatalf("balance = %d, want 250", got)
	}

	if _, err := l.ClaimReward(ctx, "bob", g.ID); !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("second claim: got %v", err)
	}
}

func TestContributePreconditionOrder(t *testing.T) {
	ctx := context.Background()
	l, ticks, _ := newTestLedger(t)

	if _, err := l.Contribute(ctx, "bob", 42, 10); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing goal: got %v", err)
	}

	if err := l.Deposit(ctx, "bob", 10000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	g, err := l.CreateGoal(ctx, "bob", "laptop", 2000, 1)
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}

	if _, err := l.Contribute(ctx, "mallory", g.ID, 10); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("foreign contribution: got %v", err)
	}
	if _, err := l.Contribute(ctx, "bob", g.ID, 0); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("zero contribution: got %v", err)
	}
	if _, err := l.Contribute(ctx, "bob", g.ID, 20000); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("overdraft contribution: got %v", err)
	}

	if _, err := l.Contribute(ctx, "bob", g.ID, 2000); err != nil {
		t.Fatalf("completing contribution: %v", err)
	}

	// Completed wins over expired: the same call after the deadline still
	// reports AlreadyExists, not GoalExpired.
	ticks.Advance(200)
	if _, err := l.Contribute(ctx, "bob", g.ID, 10); !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("contribution to completed goal: got %v", err)
	}
}

func TestContributeAfterDeadline(t *testing.T) {
	ctx := context.Background()
	l, ticks, _ := newTestLedger(t)

	if err := l.Deposit(ctx, "bob", 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	g, err := l.CreateGoal(ctx, "bob", "bike", 900, 1)
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if _, err := l.Contribute(ctx, "bob", g.ID, 100); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	ticks.Advance(101)
	if _, err := l.Contribute(ctx, "bob", g.ID, 100); !errors.Is(err, core.ErrGoalExpired) {
		t.Fatalf("expected ErrGoalExpired, got %v", err)
	}
	got, _ := l.Goal(g.ID)
	if got.Current != 100 {
		t.Fatalf("current = %d after rejected contribution, want 100", got.Current)
	}
	if got.State(ticks.Now()) != core.GoalExpiredState {
		t.Fatalf("state = %s, want expired", got.State(ticks.Now()))
	}
	if got := l.Balance("bob"); got != 900 {
		t.Fatalf("balance = %d, want 900", got)
	}
}

func TestClaimRewardPreconditions(t *testing.T) {
	ctx := context.Background()
	l, ticks, _ := newTestLedger(t)

	if _, err := l.ClaimReward(ctx, "bob", 7); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("missing goal: got %v", err)
	}

	if err := l.Deposit(ctx, "bob", 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	g, err := l.CreateGoal(ctx, "bob", "fund", 1000, 1)
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}

	if _, err := l.ClaimReward(ctx, "mallory", g.ID); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("foreign claim: got %v", err)
	}
	if _, err := l.ClaimReward(ctx, "bob", g.ID); !errors.Is(err, core.ErrGoalNotMet) {
		t.Fatalf("premature claim: got %v", err)
	}

	if _, err := l.Contribute(ctx, "bob", g.ID, 1000); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	// Empty pool blocks the claim but does not consume it.
	if _, err := l.ClaimReward(ctx, "bob", g.ID); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("empty pool claim: got %v", err)
	}

	// Completion before expiry keeps the claim valid after the deadline.
	ticks.Advance(500)
	if err := l.FundRewards(ctx, "admin", 1000); err != nil {
		t.Fatalf("fund rewards: %v", err)
	}
	if _, err := l.ClaimReward(ctx, "bob", g.ID); err != nil {
		t.Fatalf("claim after expiry of completed goal: %v", err)
	}
	if l.RewardPool() != 750 {
		t.Fatalf("pool = %d, want 750", l.RewardPool())
	}
}

func TestFundRewards(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	if err := l.FundRewards(ctx, "mallory", 100); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("non-admin funding: got %v", err)
	}
	if err := l.FundRewards(ctx, "admin", 0); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("zero funding: got %v", err)
	}
	if err := l.FundRewards(ctx, "admin", 100); err != nil {
		t.Fatalf("fund rewards: %v", err)
	}
	if l.RewardPool() != 100 {
		t.Fatalf("pool = %d, want 100", l.RewardPool())
	}
}

func TestCreateGoalValidation(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	if _, err := l.CreateGoal(ctx, "bob", "x", 5000, 0); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("deadline 0: got %v", err)
	}
	if _, err := l.CreateGoal(ctx, "bob", "x", 5000, 61); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("deadline 61: got %v", err)
	}
	if _, err := l.CreateGoal(ctx, "bob", "x", 499, 1); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("target below minimum: got %v", err)
	}
	if _, err := l.CreateGoal(ctx, "bob", "", 5000, 1); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("empty title: got %v", err)
	}
}

// Conservation: everything the vault holds is exactly accounted for by
// available balances, locked goal contributions, and the reward pool.
func TestConservation(t *testing.T) {
	ctx := context.Background()
	l, _, vault := newTestLedger(t)

	check := func(step string) {
		t.Helper()
		snap := l.Snapshot()
		var total int64
		for _, amount := range snap.Balances {
			total += amount
		}
		for _, g := range snap.Goals {
			total += g.Current
		}
		total += snap.RewardPool
		if total != vault.Held() {
			t.Fatalf("%s: accounted %d != custody held %d", step, total, vault.Held())
		}
	}

	if err := l.Deposit(ctx, "alice", 10000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	check("after deposit")

	if err := l.FundRewards(ctx, "admin", 500); err != nil {
		t.Fatalf("fund: %v", err)
	}
	check("after funding")

	g, err := l.CreateGoal(ctx, "alice", "goal", 600, 2)
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if _, err := l.Contribute(ctx, "alice", g.ID, 600); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	check("after completing contribution")

	if _, err := l.ClaimReward(ctx, "alice", g.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	check("after claim")

	if err := l.Withdraw(ctx, "alice", 5000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	check("after withdraw")
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	l, ticks, _ := newTestLedger(t)

	if err := l.Deposit(ctx, "alice", 10000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	limits := [core.NumCategories]int64{3000, 2000, 1000, 1000, 1000, 1000, 1000}
	if _, err := l.CreateBudget(ctx, "alice", 10000, limits); err != nil {
		t.Fatalf("create budget: %v", err)
	}
	if _, err := l.AddExpense(ctx, "alice", 500, core.CategoryFood, "groceries"); err != nil {
		t.Fatalf("add expense: %v", err)
	}
	g, err := l.CreateGoal(ctx, "alice", "goal", 600, 1)
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if _, err := l.Contribute(ctx, "alice", g.ID, 600); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	snap := l.Snapshot()
	if held := snap.TotalHeld(); held != 10000 {
		t.Fatalf("snapshot implied custody = %d, want 10000", held)
	}

	restored, err := New(testParams(), ticks, clock.NewSchedule(100), custody.NewVault())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if got := restored.Balance("alice"); got != l.Balance("alice") {
		t.Fatalf("balance = %d, want %d", got, l.Balance("alice"))
	}
	if restored.JournalLen() != 1 {
		t.Fatalf("journal len = %d, want 1", restored.JournalLen())
	}
	rg, err := restored.Goal(g.ID)
	if err != nil {
		t.Fatalf("restored goal: %v", err)
	}
	if !rg.Completed || rg.Current != 600 {
		t.Fatalf("restored goal = %+v", rg)
	}
	// The goal counter survives, so new ids keep ascending.
	g2, err := restored.CreateGoal(ctx, "alice", "another", 700, 1)
	if err != nil {
		t.Fatalf("create goal on restored ledger: %v", err)
	}
	if g2.ID != g.ID+1 {
		t.Fatalf("goal id = %d, want %d", g2.ID, g.ID+1)
	}
}

func TestRestoreRejectsCorruptSnapshots(t *testing.T) {
	l, _, _ := newTestLedger(t)

	bads := []Snapshot{
		{Balances: map[core.Principal]int64{"alice": -1}},
		{RewardPool: -5},
		{Journal: []core.Expense{{ID: 2, User: "a", Amount: 1, Category: 1, Description: "x"}}},
		{Goals: []core.Goal{{ID: 3, Owner: "a", Title: "t", Target: 1}}, NextGoalID: 2},
		{Budgets: []core.Budget{{Owner: "a", Total: 100}}},
	}
	for i, snap := range bads {
		if err := l.Restore(snap); err == nil {
			t.Fatalf("case %d: expected restore error", i)
		}
	}
	// A rejected restore leaves the ledger usable.
	if got := l.Balance("alice"); got != 0 {
		t.Fatalf("balance = %d after rejected restores", got)
	}
}
