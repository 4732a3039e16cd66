// Package escrow implements reservation minting: the only path by which
// an order gets the right to spend a user's frozen funds. mint() freezes
// funds in the ledger and records an ACTIVE reservation atomically; if the
// freeze fails, no reservation is created. Release() and Consume() are
// the only ways a reservation leaves ACTIVE (Consume only once Remaining
// reaches zero). Refund() is the one way back: it reopens a SPENT
// reservation to ACTIVE when a settlement that consumed it is rolled back.
package escrow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openibank/openmatch/internal/ledger"
	"github.com/openibank/openmatch/internal/security"
	"github.com/openibank/openmatch/internal/types"
	"github.com/openibank/openmatch/pkg/logging"
)

// Registry errors.
var (
	ErrInvalidReservation = errors.New("escrow: invalid reservation")
	ErrReservationExpired = errors.New("escrow: reservation expired")
	ErrNonceReused        = errors.New("escrow: nonce already used by this issuer")
	ErrUnknownIssuer       = errors.New("escrow: unknown issuer public key")
	ErrInvalidSignature    = errors.New("escrow: reservation signature invalid")
)

type nonceKey struct {
	issuer types.NodeID
	nonce  uint64
}

// Registry owns the lifecycle of every Reservation minted on this node.
// It is a logical singleton: one Registry per Core handle, never a
// package-level global.
type Registry struct {
	mu           sync.Mutex
	ledger       *ledger.Ledger
	reservations map[types.ID]*types.Reservation
	nonces       map[nonceKey]bool
	issuers      map[types.NodeID]bool
	log          *logging.Logger
}

// New creates a Registry backed by l, trusting signatures from any of
// trustedIssuers.
func New(l *ledger.Ledger, trustedIssuers ...types.NodeID) *Registry {
	issuers := make(map[types.NodeID]bool, len(trustedIssuers))
	for _, i := range trustedIssuers {
		issuers[i] = true
	}
	return &Registry{
		ledger:       l,
		reservations: make(map[types.ID]*types.Reservation),
		nonces:       make(map[nonceKey]bool),
		issuers:      issuers,
		log:          logging.GetDefault().Component("escrow"),
	}
}

// MintRequest bundles everything needed to mint a reservation, including
// the issuer's signature over the canonical reservation fields.
type MintRequest struct {
	OrderID   types.ID
	User      types.ID
	Asset     types.Asset
	Amount    types.Amount
	Issuer    types.NodeID
	Nonce     uint64
	Epoch     uint64
	TTL       time.Duration
	Signature [64]byte
}

// Mint atomically freezes amount of asset for user and stores an ACTIVE
// reservation. If the freeze fails, or the signature/issuer/nonce checks
// fail, no reservation is created.
func (r *Registry) Mint(req MintRequest, now time.Time) (types.ID, error) {
	if !r.issuers[req.Issuer] {
		return types.NilID, fmt.Errorf("%w: %s", ErrUnknownIssuer, req.Issuer)
	}

	msg := security.ReservationSignedMessage(req.OrderID, req.User, req.Asset, req.Amount, req.Nonce)
	if !security.Verify(req.Issuer, msg, req.Signature) {
		return types.NilID, ErrInvalidSignature
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	nk := nonceKey{req.Issuer, req.Nonce}
	if r.nonces[nk] {
		return types.NilID, ErrNonceReused
	}

	if err := r.ledger.Freeze(req.User, req.Asset, req.Amount); err != nil {
		return types.NilID, err
	}

	id := types.NewID()
	res := &types.Reservation{
		ID:        id,
		OrderID:   req.OrderID,
		User:      req.User,
		Asset:     req.Asset,
		Amount:    req.Amount,
		Remaining: req.Amount,
		Issuer:    req.Issuer,
		Nonce:     req.Nonce,
		Epoch:     req.Epoch,
		State:     types.ReservationActive,
		CreatedAt: now,
		Signature: req.Signature,
	}
	if req.TTL > 0 {
		res.ExpiresAt = now.Add(req.TTL)
	}

	r.reservations[id] = res
	r.nonces[nk] = true

	r.log.Debug("reservation minted", "id", id, "order", req.OrderID, "asset", req.Asset, "amount", req.Amount.String())
	return id, nil
}

// Get returns a copy of the reservation with id, or ErrInvalidReservation
// if none exists.
func (r *Registry) Get(id types.ID) (types.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.reservations[id]
	if !ok {
		return types.Reservation{}, ErrInvalidReservation
	}
	return *res, nil
}

// Release transitions id from ACTIVE to RELEASED and unfreezes the
// reservation's Remaining amount. Idempotent failure on a non-ACTIVE reservation: it returns
// ErrInvalidReservation without mutating anything.
func (r *Registry) Release(id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[id]
	if !ok {
		return ErrInvalidReservation
	}
	if !types.ReservationStateCanTransition(res.State, types.ReservationReleased) {
		return ErrInvalidReservation
	}

	// Only Remaining is still frozen: earlier trades in this epoch may
	// already have consumed part of this reservation via Consume, moving
	// that part out of Frozen through SettleTransfer.
	if err := r.ledger.Unfreeze(res.User, res.Asset, res.Remaining); err != nil {
		return err
	}
	res.State = types.ReservationReleased
	r.log.Debug("reservation released", "id", id)
	return nil
}

// Consume retires amount of id's remaining spendable balance, called once
// per trade leg that draws on this reservation. A reservation backs a
// whole order, and one order can fill against several counterparties in
// the same batch, so Consume — not a one-shot mark-spent — is how a
// reservation is retired: it only transitions to SPENT once Remaining
// reaches zero, leaving it ACTIVE (and spendable by the order's next
// fill) otherwise.
func (r *Registry) Consume(id types.ID, amount types.Amount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[id]
	if !ok {
		return ErrInvalidReservation
	}
	if res.State != types.ReservationActive {
		return ErrInvalidReservation
	}
	if !res.Remaining.GreaterThanOrEqual(amount) {
		return fmt.Errorf("%w: reservation %s has %s remaining, needs %s", ErrInvalidReservation, id, res.Remaining, amount)
	}

	remaining, err := res.Remaining.Sub(amount, false)
	if err != nil {
		return err
	}
	res.Remaining = remaining
	if res.Remaining.IsZero() {
		res.State = types.ReservationSpent
	}
	return nil
}

// Refund reverses a Consume call that must be undone because a paired
// settlement leg failed after this one already committed (see
// finality.Settler.Settle): it restores amount to Remaining and, if
// Consume had just exhausted the reservation to SPENT, reopens it to
// ACTIVE. This is the escrow-side mirror of ledger.UndoSettleTransfer.
func (r *Registry) Refund(id types.ID, amount types.Amount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[id]
	if !ok {
		return ErrInvalidReservation
	}
	if res.State == types.ReservationReleased {
		return ErrInvalidReservation
	}
	res.Remaining = res.Remaining.Add(amount)
	res.State = types.ReservationActive
	return nil
}

// ReleaseExpired releases every ACTIVE reservation whose TTL has elapsed
// as of now. Called once per epoch by core.Core.FinalizeEpoch; mandatory per
// spec (expired reservations must not linger ACTIVE).
func (r *Registry) ReleaseExpired(now time.Time) (int, error) {
	r.mu.Lock()
	var expired []types.ID
	for id, res := range r.reservations {
		if res.State == types.ReservationActive && res.Expired(now) {
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	count := 0
	for _, id := range expired {
		if err := r.Release(id); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
