// Package worker mirrors journal records from SQLite to an external sheet.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nestegg/internal/amqp"
	"nestegg/internal/clock"
	"nestegg/internal/sheets"
	"nestegg/internal/storage"
)

// MirrorWorker drains journal sync messages and mirrors each record to the
// configured sheet. A periodic catch-up pass picks up rows whose messages
// were lost.
type MirrorWorker struct {
	storage   *storage.SQLiteRepository
	writer    sheets.JournalWriter
	ticks     clock.Source
	batchSize int
}

func NewMirrorWorker(repo *storage.SQLiteRepository, writer sheets.JournalWriter, ticks clock.Source, batchSize int) *MirrorWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &MirrorWorker{
		storage:   repo,
		writer:    writer,
		ticks:     ticks,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes a single journal sync message from AMQP.
func (w *MirrorWorker) HandleSyncMessage(ctx context.Context, msg *amqp.JournalSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"recorded_at", msg.RecordedAt)
	return w.mirror(ctx, msg.ID)
}

// ProcessPending mirrors rows that still carry the pending marker. This is
// the backup path for lost AMQP messages.
func (w *MirrorWorker) ProcessPending(ctx context.Context) error {
	ids, err := w.storage.PendingSyncExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending expenses: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending journal records", "count", len(ids))
	for _, id := range ids {
		if err := w.mirror(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror journal record", "id", id, "error", err)
		}
	}
	return nil
}

// StartupSyncCheck drains a larger pending backlog once at worker startup,
// recovering from downtime.
func (w *MirrorWorker) StartupSyncCheck(ctx context.Context) error {
	ids, err := w.storage.PendingSyncExpenses(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending expenses for startup check: %w", err)
	}
	if len(ids) == 0 {
		slog.InfoContext(ctx, "No pending journal records found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending journal records on startup", "count", len(ids))
	synced, failed := 0, 0
	for _, id := range ids {
		if err := w.mirror(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror journal record during startup", "id", id, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(ids),
		"synced", synced,
		"errors", failed)
	return nil
}

// RunCatchUp runs ProcessPending on a fixed interval until ctx is done.
func (w *MirrorWorker) RunCatchUp(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Catch-up pass failed", "error", err)
			}
		}
	}
}

func (w *MirrorWorker) mirror(ctx context.Context, id uint64) error {
	e, err := w.storage.GetExpense(ctx, id)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("get expense from storage: %w", err)
	}

	ref, err := w.writer.Append(ctx, e)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, id, w.ticks.Now()); err != nil {
		// The mirror itself worked; log and move on.
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", id, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "Journal record mirrored",
		"id", id,
		"sheet_ref", ref,
		"amount", e.Amount)
	return nil
}
