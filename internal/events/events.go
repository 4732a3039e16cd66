// Package events defines the in-process event stream the core emits to
// its excluded collaborators (persistence, API, gossip, receipts). The
// core only ever produces these values; it never blocks on a subscriber
// and never persists them itself (§6).
package events

import "github.com/openibank/openmatch/internal/types"

// Kind identifies the shape of an Event's payload.
type Kind uint8

const (
	KindOrderAccepted Kind = iota + 1
	KindOrderRejected
	KindBufferSealed
	KindTradeExecuted
	KindBalanceUpdated
	KindReservationStateChanged
	KindEpochAdvanced
)

func (k Kind) String() string {
	switch k {
	case KindOrderAccepted:
		return "order_accepted"
	case KindOrderRejected:
		return "order_rejected"
	case KindBufferSealed:
		return "buffer_sealed"
	case KindTradeExecuted:
		return "trade_executed"
	case KindBalanceUpdated:
		return "balance_updated"
	case KindReservationStateChanged:
		return "reservation_state_changed"
	case KindEpochAdvanced:
		return "epoch_advanced"
	default:
		return "unknown"
	}
}

// Event is a single observable occurrence. Only the field matching Kind
// is populated; the rest are zero values.
type Event struct {
	Kind Kind

	Order              *types.Order
	RejectReason        string
	Digest             *types.BatchDigest
	Trade              *types.Trade
	Balance            *types.BalanceEntry
	ReservationID      types.ID
	ReservationState   types.ReservationState
	Epoch              uint64
	Phase              types.EpochPhase
}

// Sink receives events emitted by the core. Implementations (persistence,
// API broadcast, gossip) must not block the caller for long; the core
// treats Publish as fire-and-forget and does not retry on failure.
type Sink interface {
	Publish(Event)
}

// Bus fans a single Publish out to every registered Sink, in
// registration order. It holds no lock around delivery beyond reading
// its own subscriber list, so a slow sink slows the whole fan-out —
// sinks that do real I/O (persistence, gossip) should buffer internally.
type Bus struct {
	sinks []Sink
}

// NewBus creates an empty Bus.
func NewBus() *Bus { return &Bus{} }

// Subscribe registers s to receive every future Publish.
func (b *Bus) Subscribe(s Sink) {
	b.sinks = append(b.sinks, s)
}

// Publish delivers ev to every subscribed sink.
func (b *Bus) Publish(ev Event) {
	for _, s := range b.sinks {
		s.Publish(ev)
	}
}
