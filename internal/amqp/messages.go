package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"lumina/internal/core"
)

// Message operations carried on the ledger events queue.
const (
	OpSync   = "sync"
	OpDelete = "delete"
)

// Envelope wraps every ledger event so one queue can carry both
// operations. Sync messages carry the full transaction payload: the
// worker mirrors it without a read-back against the ledger.
type Envelope struct {
	Op        string            `json:"op"`
	Timestamp time.Time         `json:"timestamp"`
	Tx        *core.Transaction `json:"transaction,omitempty"`
	ID        string            `json:"id,omitempty"`
}

// NewSyncEnvelope creates an envelope for a newly added transaction.
func NewSyncEnvelope(tx core.Transaction) *Envelope {
	return &Envelope{Op: OpSync, Timestamp: time.Now(), Tx: &tx}
}

// NewDeleteEnvelope creates an envelope for a removed transaction.
func NewDeleteEnvelope(id string) *Envelope {
	return &Envelope{Op: OpDelete, Timestamp: time.Now(), ID: id}
}

// ToJSON converts the envelope to JSON bytes.
func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EnvelopeFromJSON creates an envelope from JSON bytes.
func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Op {
	case OpSync:
		if e.Tx == nil {
			return nil, fmt.Errorf("sync envelope without transaction payload")
		}
	case OpDelete:
		if e.ID == "" {
			return nil, fmt.Errorf("delete envelope without transaction id")
		}
	default:
		return nil, fmt.Errorf("unknown envelope op %q", e.Op)
	}
	return &e, nil
}
