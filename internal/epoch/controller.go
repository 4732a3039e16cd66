// Package epoch implements EpochController: the external driver that
// advances a core.Core through COLLECT -> SEAL -> MATCH -> FINALIZE on a
// fixed cadence. The core itself never advances its own phase outside of
// a call from here (spec.md §4.11: "Transitions are triggered by an
// external controller").
package epoch

import (
	"context"
	"time"

	"github.com/openibank/openmatch/internal/core"
	"github.com/openibank/openmatch/internal/types"
	"github.com/openibank/openmatch/pkg/logging"
)

// OrderIndex resolves order ids referenced by trades back to the orders
// that produced them, as required by core.Core.FinalizeEpoch. RunOnce
// builds a fresh index from each epoch's sealed batch.
type OrderIndex map[types.ID]types.Order

// Controller drives one core.Core through repeated epochs of duration
// Interval.
type Controller struct {
	core     *core.Core
	interval time.Duration
	log      *logging.Logger
}

// New creates a Controller that drives c through one full epoch every
// interval.
func New(c *core.Core, interval time.Duration) *Controller {
	return &Controller{core: c, interval: interval, log: logging.GetDefault().Component("epoch")}
}

// Run drives epochs back-to-back until ctx is cancelled. Each tick's
// SEAL/MATCH/FINALIZE sequence runs synchronously; a slow MATCH delays
// the next COLLECT window accordingly rather than overlapping epochs,
// since MatchCore must run as one logical worker per batch (spec.md §5).
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.RunOnce(time.Now()); err != nil {
				c.log.Error("epoch tick failed", "err", err)
			}
		}
	}
}

// RunOnce drives exactly one COLLECT->SEAL->MATCH->FINALIZE cycle. The
// core must be in Collect; otherwise SealEpoch fails with
// ErrWrongEpochPhase and RunOnce returns that error.
func (c *Controller) RunOnce(now time.Time) error {
	batch, digest, err := c.core.SealEpoch()
	if err != nil {
		return err
	}
	c.log.Info("epoch sealed", "epoch", digest.Epoch, "count", digest.Count)

	bundle, err := c.core.MatchEpoch()
	if err != nil {
		return err
	}
	c.log.Info("epoch matched", "trades", len(bundle.Trades))

	index := indexFromBatch(batch)
	if err := c.core.FinalizeEpoch(now, index); err != nil {
		return err
	}
	return nil
}

// indexFromBatch builds the order-id -> Order lookup FinalizeEpoch needs
// to resolve each trade's maker/taker orders back to their user and
// reservation, straight from the batch MatchCore just consumed.
func indexFromBatch(batch types.SealedBatch) OrderIndex {
	index := make(OrderIndex, len(batch.Orders))
	for _, o := range batch.Orders {
		index[o.ID] = o
	}
	return index
}
