package http

import (
	"net/http"

	"nestegg/internal/core"
)

// Wire representations. The core types stay transport-agnostic; handlers
// flatten them here.
type (
	balanceResponse struct {
		Principal string `json:"principal"`
		Balance   int64  `json:"balance"`
	}

	budgetResponse struct {
		Owner      string  `json:"owner"`
		Month      int     `json:"month"`
		Year       int     `json:"year"`
		Total      int64   `json:"total"`
		TotalSpent int64   `json:"total_spent"`
		Remaining  int64   `json:"remaining"`
		Limits     []int64 `json:"limits"`
		Spent      []int64 `json:"spent"`
		CreatedAt  uint64  `json:"created_at"`
		Active     bool    `json:"is_active"`
	}

	expenseResponse struct {
		ID          uint64 `json:"id"`
		User        string `json:"user"`
		Amount      int64  `json:"amount"`
		Category    uint8  `json:"category"`
		Description string `json:"description"`
		RecordedAt  uint64 `json:"recorded_at"`
		Month       int    `json:"month"`
		Year        int    `json:"year"`
	}

	goalResponse struct {
		ID            uint64 `json:"id"`
		Owner         string `json:"owner"`
		Title         string `json:"title"`
		Target        int64  `json:"target"`
		Current       int64  `json:"current"`
		DeadlineTick  uint64 `json:"deadline_tick"`
		CreatedAt     uint64 `json:"created_at"`
		State         string `json:"state"`
		RewardClaimed bool   `json:"reward_claimed"`
	}

	statsResponse struct {
		Principal        string `json:"principal"`
		GoalsAchieved    uint64 `json:"goals_achieved"`
		TotalSaved       int64  `json:"total_saved"`
		LastActivityTick uint64 `json:"last_activity_tick"`
	}
)

func budgetToWire(b core.Budget) budgetResponse {
	return budgetResponse{
		Owner:      string(b.Owner),
		Month:      b.Period.Month,
		Year:       b.Period.Year,
		Total:      b.Total,
		TotalSpent: b.TotalSpent,
		Remaining:  b.Remaining(),
		Limits:     b.Limits[:],
		Spent:      b.Spent[:],
		CreatedAt:  b.CreatedAt,
		Active:     b.Active,
	}
}

func expenseToWire(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		User:        string(e.User),
		Amount:      e.Amount,
		Category:    uint8(e.Category),
		Description: e.Description,
		RecordedAt:  e.RecordedAt,
		Month:       e.Period.Month,
		Year:        e.Period.Year,
	}
}

func goalToWire(g core.Goal, now uint64) goalResponse {
	return goalResponse{
		ID:            g.ID,
		Owner:         string(g.Owner),
		Title:         g.Title,
		Target:        g.Target,
		Current:       g.Current,
		DeadlineTick:  g.DeadlineTick,
		CreatedAt:     g.CreatedAt,
		State:         string(g.State(now)),
		RewardClaimed: g.RewardClaimed,
	}
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.service.Deposit(r.Context(), caller, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Principal: string(caller),
		Balance:   s.service.Balance(caller),
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.service.Withdraw(r.Context(), caller, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Principal: string(caller),
		Balance:   s.service.Balance(caller),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	caller, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Principal: string(caller),
		Balance:   s.service.Balance(caller),
	})
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	caller, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Total  int64   `json:"total"`
		Limits []int64 `json:"limits"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	var limits [core.NumCategories]int64
	if len(req.Limits) != core.NumCategories {
		writeError(w, core.ErrInvalidInput)
		return
	}
	copy(limits[:], req.Limits)

	b, err := s.service.CreateBudget(r.Context(), caller, req.Total, limits)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, budgetToWire(b))
}

func (s *Server) handleCurrentBudget(w http.ResponseWriter, r *http.Request) {
	caller, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := s.service.CurrentBudget(caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetToWire(b))
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	caller, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Amount      int64  `json:"amount"`
		Category    uint8  `json:"category"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	e, err := s.service.AddExpense(r.Context(), caller, req.Amount, core.Category(req.Category), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expenseToWire(e))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	caller, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	period := s.service.CurrentPeriod()
	expenses := s.service.Expenses(caller, period)
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, expenseToWire(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	caller, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Title          string `json:"title"`
		Target         int64  `json:"target"`
		DeadlineMonths int    `json:"deadline_months"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	g, err := s.service.CreateGoal(r.Context(), caller, req.Title, req.Target, req.DeadlineMonths)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, goalToWire(g, s.service.Now()))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	if _, err := principalFrom(r); err != nil {
		writeError(w, err)
		return
	}
	id, err := goalIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	g, err := s.service.Goal(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goalToWire(g, s.service.Now()))
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	caller, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := goalIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	completed, err := s.service.Contribute(r.Context(), caller, id, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	g, err := s.service.Goal(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Completed bool         `json:"completed"`
		Goal      goalResponse `json:"goal"`
	}{Completed: completed, Goal: goalToWire(g, s.service.Now())})
}

func (s *Server) handleClaimReward(w http.ResponseWriter, r *http.Request) {
	caller, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := goalIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	bonus, err := s.service.ClaimReward(r.Context(), caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Bonus   int64 `json:"bonus"`
		Balance int64 `json:"balance"`
	}{Bonus: bonus, Balance: s.service.Balance(caller)})
}

func (s *Server) handleFundRewards(w http.ResponseWriter, r *http.Request) {
	caller, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.service.FundRewards(r.Context(), caller, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Pool int64 `json:"pool"`
	}{Pool: s.service.RewardPool()})
}

func (s *Server) handleRewardPool(w http.ResponseWriter, r *http.Request) {
	if _, err := principalFrom(r); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Pool int64 `json:"pool"`
	}{Pool: s.service.RewardPool()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	caller, err := principalFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats := s.service.Stats(caller)
	writeJSON(w, http.StatusOK, statsResponse{
		Principal:        string(caller),
		GoalsAchieved:    stats.GoalsAchieved,
		TotalSaved:       stats.TotalSaved,
		LastActivityTick: stats.LastActivityTick,
	})
}
