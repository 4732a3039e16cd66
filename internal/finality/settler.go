package finality

import (
	"errors"
	"fmt"

	"github.com/openibank/openmatch/internal/escrow"
	"github.com/openibank/openmatch/internal/ledger"
	"github.com/openibank/openmatch/internal/types"
)

// Settler errors.
var (
	ErrTradeAlreadySettled = errors.New("finality: trade already settled")
	ErrReservationMismatch = errors.New("finality: reservation does not cover trade leg")
)

// Settler consumes Trades produced by matchcore and applies their ledger
// effects exactly once each, per §4.9.
type Settler struct {
	ledger   *ledger.Ledger
	registry *escrow.Registry
	guard    *IdempotencyGuard
}

// NewSettler wires a Settler to the shared ledger, escrow registry, and
// idempotency guard. All three are logical singletons owned by the Core
// handle.
func NewSettler(l *ledger.Ledger, r *escrow.Registry, g *IdempotencyGuard) *Settler {
	return &Settler{ledger: l, registry: r, guard: g}
}

// Settle applies trade's ledger effects exactly once: it transfers the
// buyer's frozen quote leg to the seller and the seller's frozen base leg
// to the buyer, consumes each side's share of its reservation, and
// records the trade in the idempotency guard. buyerReservation/
// sellerReservation must be the reservation ids covering, respectively,
// trade's buy-side and sell-side legs (resolved by the caller from the
// orders that produced trade).
//
// A reservation backs a whole order, and one order can fill against
// several counterparties in the same batch (MatchCore produces exactly
// this when an order is only partially filled by the first counterparty
// it crosses), so buyerReservation/sellerReservation may still have
// other trades to settle against them after this call returns — Settle
// consumes only this trade's share via Registry.Consume, never retiring
// the whole reservation outright.
//
// On any failure after a reservation check but before both transfers and
// both consumptions commit, Settle rolls back every mutation it made so
// the ledger and reservations end up exactly as they started —
// settlement is all-or-nothing per trade.
func (s *Settler) Settle(trade types.Trade, buyerUser, sellerUser types.ID, buyerReservation, sellerReservation types.ID) error {
	if s.guard.Contains(trade.ID) {
		return ErrTradeAlreadySettled
	}

	buyerRes, err := s.registry.Get(buyerReservation)
	if err != nil {
		return fmt.Errorf("finality: buyer reservation: %w", err)
	}
	sellerRes, err := s.registry.Get(sellerReservation)
	if err != nil {
		return fmt.Errorf("finality: seller reservation: %w", err)
	}
	if buyerRes.State != types.ReservationActive || sellerRes.State != types.ReservationActive {
		return fmt.Errorf("%w: reservation not active", ErrReservationMismatch)
	}
	if !buyerRes.Remaining.GreaterThanOrEqual(trade.QuoteAmount) {
		return fmt.Errorf("%w: buyer reservation %s has %s remaining, trade needs %s",
			ErrReservationMismatch, buyerReservation, buyerRes.Remaining, trade.QuoteAmount)
	}
	if !sellerRes.Remaining.GreaterThanOrEqual(trade.Qty) {
		return fmt.Errorf("%w: seller reservation %s has %s remaining, trade needs %s",
			ErrReservationMismatch, sellerReservation, sellerRes.Remaining, trade.Qty)
	}

	quoteAsset := trade.Market.Quote
	baseAsset := trade.Market.Base

	if err := s.ledger.SettleTransfer(buyerUser, sellerUser, quoteAsset, trade.QuoteAmount); err != nil {
		return err
	}
	if err := s.ledger.SettleTransfer(sellerUser, buyerUser, baseAsset, trade.Qty); err != nil {
		// Roll back the leg that already committed.
		_ = s.ledger.UndoSettleTransfer(buyerUser, sellerUser, quoteAsset, trade.QuoteAmount)
		return err
	}

	if err := s.registry.Consume(buyerReservation, trade.QuoteAmount); err != nil {
		s.rollbackBothLegs(trade, buyerUser, sellerUser, quoteAsset, baseAsset)
		return err
	}
	if err := s.registry.Consume(sellerReservation, trade.Qty); err != nil {
		// Buyer's share is already consumed; refund it before unwinding
		// the ledger legs so the reservation ends up exactly as it
		// started, not short by this trade's share.
		_ = s.registry.Refund(buyerReservation, trade.QuoteAmount)
		s.rollbackBothLegs(trade, buyerUser, sellerUser, quoteAsset, baseAsset)
		return err
	}

	s.guard.Record(trade.ID)

	if err := s.ledger.VerifySupply(quoteAsset); err != nil {
		return err
	}
	if err := s.ledger.VerifySupply(baseAsset); err != nil {
		return err
	}
	return nil
}

// rollbackBothLegs undoes both SettleTransfer calls made during a Settle
// attempt that failed after the ledger legs committed but before both
// Consume calls succeeded, restoring the ledger to its pre-Settle state.
func (s *Settler) rollbackBothLegs(trade types.Trade, buyerUser, sellerUser types.ID, quoteAsset, baseAsset types.Asset) {
	_ = s.ledger.UndoSettleTransfer(buyerUser, sellerUser, quoteAsset, trade.QuoteAmount)
	_ = s.ledger.UndoSettleTransfer(sellerUser, buyerUser, baseAsset, trade.Qty)
}
