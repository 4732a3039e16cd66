// Package ingress implements the pending order buffer and the batch
// sealer: the COLLECT and SEAL halves of the pipeline. core.Core checks
// risk.Gate and the ACTIVE reservation before calling Accept; the buffer
// stamps each accepted order with a monotonic per-buffer sequence number,
// which is the canonical tiebreaker used throughout matching.
package ingress

import (
	"errors"
	"sync"

	"github.com/openibank/openmatch/internal/types"
	"github.com/openibank/openmatch/pkg/logging"
)

// Buffer errors.
var (
	ErrBufferSealed = errors.New("ingress: buffer already sealed")
	ErrBufferFull   = errors.New("ingress: buffer at capacity")
)

// Buffer is a bounded, append-only sequence of orders accepted during
// COLLECT. Seal() is one-shot; Drain() is permitted only afterward.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	orders   []types.Order
	sealed   bool
	nextSeq  uint64
	log      *logging.Logger
}

// NewBuffer creates an empty Buffer with the given capacity (<=0 means
// unbounded).
func NewBuffer(capacity int) *Buffer {
	return &Buffer{capacity: capacity, log: logging.GetDefault().Component("ingress")}
}

// Accept stamps order with the next sequence number and appends it,
// unless the buffer is sealed or full.
func (b *Buffer) Accept(order types.Order) (types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return types.Order{}, ErrBufferSealed
	}
	if b.capacity > 0 && len(b.orders) >= b.capacity {
		return types.Order{}, ErrBufferFull
	}

	order.Sequence = b.nextSeq
	b.nextSeq++
	order.Status = types.OrderStatusPending
	order.RemainingQty = order.Qty
	b.orders = append(b.orders, order)
	return order, nil
}

// Seal transitions the buffer to its frozen state. Idempotent: calling it
// again once sealed is a no-op (matching the one-shot nature described in
// the spec without panicking on a double-seal from a retried controller
// tick).
func (b *Buffer) Seal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
}

// Sealed reports whether Seal has been called.
func (b *Buffer) Sealed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sealed
}

// Drain returns every accepted order, in admission order. Only valid
// after Seal.
func (b *Buffer) Drain() ([]types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.sealed {
		return nil, errors.New("ingress: cannot drain before seal")
	}
	out := make([]types.Order, len(b.orders))
	copy(out, b.orders)
	return out, nil
}

// Len returns the number of orders currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orders)
}
