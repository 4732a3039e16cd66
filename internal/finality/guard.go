// Package finality implements the Tier-1 Settler and the idempotency
// guard that protects it: the FINALIZE half of the pipeline. Settlement
// consumes reservations, moves ledger balances, and must never execute
// twice for the same trade.
package finality

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openibank/openmatch/internal/types"
)

// DefaultGuardCapacity is large enough to hold one epoch's worth of
// trades under the seed-suite scenarios; production deployments size
// this from expected batch volume.
const DefaultGuardCapacity = 65536

// IdempotencyGuard is a bounded LRU of settled trade ids. Eviction is
// acceptable only because a durable settlement ledger (out of scope here)
// backstops it in a full deployment; within the guard's window the same
// trade id cannot settle twice.
type IdempotencyGuard struct {
	cache *lru.Cache[types.TradeID, struct{}]
}

// NewIdempotencyGuard creates a guard holding up to capacity trade ids.
func NewIdempotencyGuard(capacity int) (*IdempotencyGuard, error) {
	if capacity <= 0 {
		capacity = DefaultGuardCapacity
	}
	c, err := lru.New[types.TradeID, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	return &IdempotencyGuard{cache: c}, nil
}

// Record reports whether id was already present, then adds it
// unconditionally. A true return means the caller must not settle again.
func (g *IdempotencyGuard) Record(id types.TradeID) bool {
	_, alreadyPresent := g.cache.Get(id)
	g.cache.Add(id, struct{}{})
	return alreadyPresent
}

// Contains reports whether id has been recorded, without mutating
// recency (used by the settler's upfront check).
func (g *IdempotencyGuard) Contains(id types.TradeID) bool {
	return g.cache.Contains(id)
}
