package sheets

import (
	"context"

	"nestegg/internal/core"
)

// Ports for outbound adapters.
type (
	// JournalWriter mirrors one journal record to an external sheet.
	JournalWriter interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}
)
