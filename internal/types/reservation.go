package types

import "time"

// Reservation (SpendRight) is a token that represents pre-committed funds
// for a specific order. Nonces are unique per issuer; state transitions
// follow ReservationStateCanTransition, except that escrow.Registry.Refund
// reopens a SPENT reservation when its settlement is rolled back.
type Reservation struct {
	ID         ID
	OrderID    ID
	User       ID
	Asset      Asset
	Amount     Amount
	// Remaining is the portion of Amount not yet consumed by a settled
	// trade leg. A reservation stays ACTIVE until Remaining reaches zero:
	// one order can fill against several counterparties in a batch, and
	// each trade only consumes its own leg's share.
	Remaining  Amount
	Issuer     NodeID
	Nonce      uint64
	Epoch      uint64
	State      ReservationState
	CreatedAt  time.Time
	ExpiresAt  time.Time
	// Signature is the issuer's ed25519 signature over
	// order_id || user_id || asset || amount || nonce (see internal/security).
	Signature [64]byte
}

// Expired reports whether the reservation's TTL has elapsed as of now.
func (r Reservation) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
