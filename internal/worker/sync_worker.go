// Package worker mirrors ledger events into the Google Sheets export.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"lumina/internal/amqp"
	"lumina/internal/core"
)

// Exporter is the outbound mirror the worker writes to.
type Exporter interface {
	AppendTransaction(ctx context.Context, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
}

// SyncWorker applies ledger events, one envelope at a time.
type SyncWorker struct {
	exporter Exporter
}

func NewSyncWorker(exporter Exporter) *SyncWorker {
	return &SyncWorker{exporter: exporter}
}

// HandleEnvelope dispatches one ledger event to the exporter. Errors bubble
// up so the AMQP layer can requeue the delivery.
func (w *SyncWorker) HandleEnvelope(ctx context.Context, env *amqp.Envelope) error {
	switch env.Op {
	case amqp.OpSync:
		slog.InfoContext(ctx, "Mirroring transaction to export",
			"id", env.Tx.ID, "category", env.Tx.Category)
		if err := w.exporter.AppendTransaction(ctx, *env.Tx); err != nil {
			return fmt.Errorf("export transaction %s: %w", env.Tx.ID, err)
		}
		return nil
	case amqp.OpDelete:
		slog.InfoContext(ctx, "Removing transaction from export", "id", env.ID)
		if err := w.exporter.DeleteTransaction(ctx, env.ID); err != nil {
			return fmt.Errorf("remove transaction %s: %w", env.ID, err)
		}
		return nil
	default:
		// Decoding already rejects unknown ops; this is unreachable in practice.
		return fmt.Errorf("unknown envelope op %q", env.Op)
	}
}
