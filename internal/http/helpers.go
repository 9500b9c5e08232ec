package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"nestegg/internal/core"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrAlreadyExists),
		errors.Is(err, core.ErrInsufficientFunds),
		errors.Is(err, core.ErrBudgetExceeded),
		errors.Is(err, core.ErrGoalNotMet):
		status = http.StatusConflict
	case errors.Is(err, core.ErrGoalExpired):
		status = http.StatusGone
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// principalFrom reads the caller identity from the X-Principal header.
// Authentication is the host's concern; an absent or malformed principal is
// a client error here.
func principalFrom(r *http.Request) (core.Principal, error) {
	p := core.Principal(r.Header.Get("X-Principal"))
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("%w: X-Principal header", core.ErrInvalidInput)
	}
	return p, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return nil
}

func goalIDFrom(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: goal id", core.ErrInvalidInput)
	}
	return id, nil
}
