// Package core wires the Security Envelope, MatchCore, and Finality Plane
// into the single explicit handle every entry point is given (spec's
// "Pattern: global state" — the ledger, registry, phase gate, and
// idempotency guard are logical singletons owned here, never reached
// through a package-level global).
package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/openibank/openmatch/internal/config"
	"github.com/openibank/openmatch/internal/escrow"
	"github.com/openibank/openmatch/internal/events"
	"github.com/openibank/openmatch/internal/finality"
	"github.com/openibank/openmatch/internal/ingress"
	"github.com/openibank/openmatch/internal/ledger"
	"github.com/openibank/openmatch/internal/matchcore"
	"github.com/openibank/openmatch/internal/phase"
	"github.com/openibank/openmatch/internal/risk"
	"github.com/openibank/openmatch/internal/types"
	"github.com/openibank/openmatch/pkg/logging"
)

// Core bundles every shared-mutable-state component behind one coarse
// lock (mu), matching §5's single-writer discipline: the Ledger, Escrow
// Registry, Pending Buffer, Idempotency Guard, and Phase Gate are never
// touched except through Core's own methods.
type Core struct {
	mu sync.Mutex

	node types.NodeID
	cfg  config.CoreConfig

	Ledger   *ledger.Ledger
	Registry *escrow.Registry
	Risk     *risk.Gate
	Phase    *phase.Gate
	Settler  *finality.Settler
	Guard    *finality.IdempotencyGuard
	Bus      *events.Bus

	buffer *ingress.Buffer
	sealer *ingress.Sealer

	ordersThisEpoch map[types.ID]int
	lastBatch       *types.SealedBatch
	lastBundle      *types.TradeBundle

	log *logging.Logger
}

// New constructs a Core handle for node, trusting signatures from
// trustedIssuers, configured per cfg. One Core exists per running node.
func New(node types.NodeID, cfg config.CoreConfig, trustedIssuers ...types.NodeID) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := ledger.New()
	reg := escrow.New(l, trustedIssuers...)
	guard, err := finality.NewIdempotencyGuard(cfg.Finality.IdempotencyGuardCapacity)
	if err != nil {
		return nil, fmt.Errorf("core: building idempotency guard: %w", err)
	}

	return &Core{
		node:            node,
		cfg:             cfg,
		Ledger:          l,
		Registry:        reg,
		Risk:            risk.New(risk.Config{MaxOrderSize: cfg.Risk.MaxOrderSize, MaxOrdersPerUserEpoch: cfg.Risk.MaxOrdersPerUserEpoch}),
		Phase:           phase.New(),
		Settler:         finality.NewSettler(l, reg, guard),
		Guard:           guard,
		Bus:             events.NewBus(),
		buffer:          ingress.NewBuffer(cfg.Ingress.BufferCapacity),
		sealer:          ingress.NewSealer(node),
		ordersThisEpoch: make(map[types.ID]int),
		log:             logging.GetDefault().Component("core"),
	}, nil
}

// Deposit credits user's available balance, subject to the phase gate
// having no opinion (deposits are always permitted, unlike withdrawals).
func (c *Core) Deposit(user types.ID, asset types.Asset, amount types.Amount) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Ledger.Deposit(user, asset, amount); err != nil {
		return err
	}
	bal := c.Ledger.Balance(user, asset)
	c.Bus.Publish(events.Event{Kind: events.KindBalanceUpdated, Balance: &bal})
	return nil
}

// Withdraw debits user's available balance, if the phase gate allows it
// (§4.8: only during Collect).
func (c *Core) Withdraw(user types.ID, asset types.Asset, amount types.Amount) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Phase.CheckWithdraw(); err != nil {
		return err
	}
	if err := c.Ledger.Withdraw(user, asset, amount); err != nil {
		return err
	}
	bal := c.Ledger.Balance(user, asset)
	c.Bus.Publish(events.Event{Kind: events.KindBalanceUpdated, Balance: &bal})
	return nil
}

// MintReservation freezes funds and mints an ACTIVE reservation backing a
// not-yet-submitted order (§4.2). Callers submit the order with the
// returned id as ReservationID via SubmitOrder.
func (c *Core) MintReservation(req escrow.MintRequest, now time.Time) (types.ID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Registry.Mint(req, now)
}

// SubmitOrder validates order against the risk gate and, if it passes,
// admits it into the pending buffer (§4.3, §4.4). Only valid during
// Collect.
func (c *Core) SubmitOrder(order types.Order) (types.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Phase.RequirePhase(types.PhaseCollect); err != nil {
		c.Bus.Publish(events.Event{Kind: events.KindOrderRejected, Order: &order, RejectReason: err.Error()})
		return types.Order{}, err
	}

	res, err := c.Registry.Get(order.ReservationID)
	if err != nil || res.State != types.ReservationActive || res.User != order.User {
		reason := "missing or inactive reservation"
		c.Bus.Publish(events.Event{Kind: events.KindOrderRejected, Order: &order, RejectReason: reason})
		return types.Order{}, fmt.Errorf("core: order references no active reservation it owns")
	}

	ctx := risk.Context{Epoch: c.currentEpochLocked(), OrdersThisEpoch: c.ordersThisEpoch[order.User]}
	if err := c.Risk.Validate(order, ctx); err != nil {
		c.Bus.Publish(events.Event{Kind: events.KindOrderRejected, Order: &order, RejectReason: err.Error()})
		return types.Order{}, err
	}

	accepted, err := c.buffer.Accept(order)
	if err != nil {
		c.Bus.Publish(events.Event{Kind: events.KindOrderRejected, Order: &order, RejectReason: err.Error()})
		return types.Order{}, err
	}
	c.ordersThisEpoch[order.User]++
	c.Bus.Publish(events.Event{Kind: events.KindOrderAccepted, Order: &accepted})
	return accepted, nil
}

func (c *Core) currentEpochLocked() uint64 {
	epoch, _ := c.Phase.Current()
	return epoch
}

// publishReservationState emits the reservation's current state, as
// actually recorded by the registry, rather than one assumed by the
// caller.
func (c *Core) publishReservationState(id types.ID) {
	res, err := c.Registry.Get(id)
	if err != nil {
		return
	}
	c.Bus.Publish(events.Event{Kind: events.KindReservationStateChanged, ReservationID: id, ReservationState: res.State})
}

// CancelOrder releases the reservation backing an order still in COLLECT.
// Cancellation during later phases fails (§5): the buffer is already
// sealed and individual orders can no longer be pulled out of it.
func (c *Core) CancelOrder(reservationID types.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Phase.RequirePhase(types.PhaseCollect); err != nil {
		return fmt.Errorf("core: order not cancellable outside Collect: %w", err)
	}
	if err := c.Registry.Release(reservationID); err != nil {
		return err
	}
	c.Bus.Publish(events.Event{Kind: events.KindReservationStateChanged, ReservationID: reservationID, ReservationState: types.ReservationReleased})
	return nil
}

// SealEpoch transitions Collect -> Seal: drains the buffer, seals it, and
// produces a SealedBatch + BatchDigest. Called by the external epoch
// controller exactly once per epoch.
func (c *Core) SealEpoch() (types.SealedBatch, types.BatchDigest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Phase.RequirePhase(types.PhaseCollect); err != nil {
		return types.SealedBatch{}, types.BatchDigest{}, err
	}

	c.buffer.Seal()
	orders, err := c.buffer.Drain()
	if err != nil {
		return types.SealedBatch{}, types.BatchDigest{}, err
	}

	epoch, phase := c.Phase.Advance()
	if phase != types.PhaseSeal {
		return types.SealedBatch{}, types.BatchDigest{}, fmt.Errorf("core: unexpected phase after advance: %v", phase)
	}

	batch, digest := c.sealer.Seal(epoch, orders)
	c.lastBatch = &batch
	c.Bus.Publish(events.Event{Kind: events.KindBufferSealed, Digest: &digest})
	return batch, digest, nil
}

// MatchEpoch transitions Seal -> Match and runs MatchCore against the
// batch produced by SealEpoch. MatchCore itself is pure; Core only
// sequences the phase transition around it.
func (c *Core) MatchEpoch() (types.TradeBundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Phase.RequirePhase(types.PhaseSeal); err != nil {
		return types.TradeBundle{}, err
	}
	if c.lastBatch == nil {
		return types.TradeBundle{}, fmt.Errorf("core: no sealed batch to match")
	}

	epoch, phase := c.Phase.Advance()
	if phase != types.PhaseMatch {
		return types.TradeBundle{}, fmt.Errorf("core: unexpected phase after advance: %v", phase)
	}
	_ = epoch

	bundle := matchcore.MatchSealedBatch(*c.lastBatch)
	c.lastBundle = &bundle
	for i := range bundle.Trades {
		trade := bundle.Trades[i]
		c.Bus.Publish(events.Event{Kind: events.KindTradeExecuted, Trade: &trade})
	}
	return bundle, nil
}

// FinalizeEpoch transitions Match -> Finalize: settles every trade in the
// last match bundle, releases expired reservations, verifies supply for
// every asset touched, and then wraps back to Collect of the next epoch.
// orderByID must resolve an order id (as seen in Trade.MakerOrder /
// Trade.TakerOrder) back to the Order that produced it, so Settle can
// find each side's reservation and market.
func (c *Core) FinalizeEpoch(now time.Time, orderByID map[types.ID]types.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Phase.RequirePhase(types.PhaseMatch); err != nil {
		return err
	}
	if c.lastBundle == nil {
		return fmt.Errorf("core: no trade bundle to finalize")
	}

	if _, phase := c.Phase.Advance(); phase != types.PhaseFinalize {
		return fmt.Errorf("core: unexpected phase after advance")
	}

	touchedAssets := make(map[types.Asset]bool)
	for _, trade := range c.lastBundle.Trades {
		buyerOrder, takerIsBuyer := orderByID[trade.TakerOrder], trade.TakerSide == types.SideBuy
		sellerOrder := orderByID[trade.MakerOrder]
		if !takerIsBuyer {
			buyerOrder, sellerOrder = orderByID[trade.MakerOrder], orderByID[trade.TakerOrder]
		}

		if err := c.Settler.Settle(trade, buyerOrder.User, sellerOrder.User, buyerOrder.ReservationID, sellerOrder.ReservationID); err != nil {
			c.log.Error("settlement failed", "trade", trade.ID, "err", err)
			return fmt.Errorf("core: settling trade %s: %w", trade.ID, err)
		}
		// A reservation may still be ACTIVE after this trade if the order
		// it backs has more fills to settle this epoch; only report its
		// actual resulting state, not an assumed SPENT.
		c.publishReservationState(buyerOrder.ReservationID)
		c.publishReservationState(sellerOrder.ReservationID)
		touchedAssets[trade.Market.Base] = true
		touchedAssets[trade.Market.Quote] = true
	}

	if _, err := c.Registry.ReleaseExpired(now); err != nil {
		return fmt.Errorf("core: releasing expired reservations: %w", err)
	}

	for asset := range touchedAssets {
		if err := c.Ledger.VerifySupply(asset); err != nil {
			return err
		}
	}

	c.ordersThisEpoch = make(map[types.ID]int)
	c.lastBatch = nil
	c.lastBundle = nil
	c.buffer = ingress.NewBuffer(c.cfg.Ingress.BufferCapacity)

	epoch, phase := c.Phase.Advance()
	c.Bus.Publish(events.Event{Kind: events.KindEpochAdvanced, Epoch: epoch, Phase: phase})
	return nil
}

// Balance returns user's current balance for asset.
func (c *Core) Balance(user types.ID, asset types.Asset) types.BalanceEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Ledger.Balance(user, asset)
}

// CurrentPhase returns the current epoch and phase.
func (c *Core) CurrentPhase() (uint64, types.EpochPhase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Phase.Current()
}
