// Package storage provides the persistence adapters behind the ledger's
// repository port: a JSON file slot and a SQLite database. Both hold the
// full transaction list and overwrite it wholesale on every save.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"lumina/internal/core"
)

// FileRepository persists the ledger as one JSON array in a single file,
// the durable key-value slot of the system.
type FileRepository struct {
	path string
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &FileRepository{path: path}, nil
}

// Load reads and deserializes the slot. A missing file means "absent"
// (found=false), distinct from an empty list. Corrupt or
// schema-incompatible content is also treated as absent: durable state is
// advisory, a parse failure must never crash the ledger.
func (r *FileRepository) Load(ctx context.Context) ([]core.Transaction, bool, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read ledger file: %w", err)
	}

	var txs []core.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		slog.WarnContext(ctx, "Ledger file is not deserializable, treating as absent",
			"path", r.path, "error", err)
		return nil, false, nil
	}
	return txs, true, nil
}

// Save serializes the full list, fully overwriting prior content. The
// write goes through a temp file and rename so a failed write never leaves
// a half-written slot behind.
func (r *FileRepository) Save(ctx context.Context, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	data, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write ledger temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}

	slog.DebugContext(ctx, "Ledger persisted", "path", r.path, "transactions", len(txs))
	return nil
}
