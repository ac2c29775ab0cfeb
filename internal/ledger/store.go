// Package ledger owns the canonical ordered transaction list: the sole
// source of truth every derived view is computed from.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"lumina/internal/core"
)

// Repository is the persistence port. Load reports found=false when no
// durable state exists, which is distinct from an empty list.
type Repository interface {
	Load(ctx context.Context) (txs []core.Transaction, found bool, err error)
	Save(ctx context.Context, txs []core.Transaction) error
}

// Publisher emits mutation events for downstream mirrors. Optional.
type Publisher interface {
	PublishTransactionSync(ctx context.Context, tx core.Transaction) error
	PublishTransactionDelete(ctx context.Context, id string) error
}

// ErrDuplicateID guards the id-uniqueness invariant. Callers generate a
// fresh id before Add; hitting this means they didn't.
var ErrDuplicateID = errors.New("transaction id already exists")

// Store holds the live transaction list. All mutations persist the full
// list through the repository; persistence failures are logged and
// swallowed because durable state is an advisory cache, not the source of
// truth for correctness.
type Store struct {
	mu   sync.Mutex
	txs  []core.Transaction
	repo Repository
	pub  Publisher
}

func NewStore(repo Repository, pub Publisher) *Store {
	return &Store{repo: repo, pub: pub}
}

// Seed returns the default transactions used when no durable state exists.
func Seed() []core.Transaction {
	return []core.Transaction{
		{ID: "1", Amount: core.Money{Cents: 4500}, Currency: "USD", Category: "Fuel", Merchant: "Shell Station", Date: core.NewDate(2023, 10, 25), Notes: "Weekly gas", Type: core.Expense},
		{ID: "2", Amount: core.Money{Cents: 1250}, Currency: "USD", Category: "Food", Merchant: "Burger King", Date: core.NewDate(2023, 10, 26), Notes: "Lunch", Type: core.Expense},
		{ID: "3", Amount: core.Money{Cents: 320000}, Currency: "USD", Category: "Salary", Merchant: "Tech Corp", Date: core.NewDate(2023, 10, 1), Notes: "Monthly Salary", Type: core.Income},
		{ID: "4", Amount: core.Money{Cents: 12000}, Currency: "USD", Category: "Utilities", Merchant: "Electric Co", Date: core.NewDate(2023, 10, 15), Notes: "October Bill", Type: core.Expense},
	}
}

// Load populates the store from the repository, falling back to the seed
// set when no durable state exists or the stored data is unreadable. It
// never fails: corrupt state degrades to the seed, not to an error.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, found, err := s.repo.Load(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load persisted ledger, using seed set", "error", err)
		s.txs = Seed()
		return
	}
	if !found {
		slog.InfoContext(ctx, "No persisted ledger found, using seed set")
		s.txs = Seed()
		return
	}

	s.txs = txs
	slog.InfoContext(ctx, "Loaded persisted ledger", "transactions", len(txs))
}

// Add prepends tx to the live list and persists. The caller is responsible
// for generating a fresh unique id; a duplicate is rejected to keep the
// uniqueness invariant checkable.
func (s *Store) Add(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, existing := range s.txs {
		if existing.ID == tx.ID {
			s.mu.Unlock()
			return ErrDuplicateID
		}
	}
	s.txs = append([]core.Transaction{tx}, s.txs...)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snapshot)

	if s.pub != nil {
		if err := s.pub.PublishTransactionSync(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to publish transaction sync message",
				"id", tx.ID, "error", err)
			// Don't fail the request - the transaction is saved locally
		}
	}
	return nil
}

// Remove deletes the transaction with the given id. A missing id is a
// no-op, not an error.
func (s *Store) Remove(ctx context.Context, id string) {
	s.mu.Lock()
	removed := false
	for i, tx := range s.txs {
		if tx.ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			removed = true
			break
		}
	}
	var snapshot []core.Transaction
	if removed {
		snapshot = s.snapshotLocked()
	}
	s.mu.Unlock()

	if !removed {
		slog.DebugContext(ctx, "Remove of unknown transaction id ignored", "id", id)
		return
	}

	s.persist(ctx, snapshot)

	if s.pub != nil {
		if err := s.pub.PublishTransactionDelete(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to publish transaction delete message",
				"id", id, "error", err)
		}
	}
}

// List returns a snapshot copy of the live list in insertion (prepend)
// order. Display order is always a derived sort over this snapshot.
func (s *Store) List() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the current number of transactions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

func (s *Store) snapshotLocked() []core.Transaction {
	return append([]core.Transaction(nil), s.txs...)
}

// persist writes the full list. Fire-and-forget: a failed write degrades
// durability, never the ledger itself.
func (s *Store) persist(ctx context.Context, txs []core.Transaction) {
	if err := s.repo.Save(ctx, txs); err != nil {
		slog.ErrorContext(ctx, "Failed to persist ledger", "transactions", len(txs), "error", err)
	}
}
