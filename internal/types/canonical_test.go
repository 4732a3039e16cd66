package types

import "testing"

func TestCanonicalEncodeOrderExcludesClock(t *testing.T) {
	o1 := Order{ID: NewID(), User: NewID(), Market: Market{Base: "BTC", Quote: "USDT"},
		Side: SideBuy, Type: OrderTypeLimit, Price: NewAmountFromInt(50000), Qty: NewAmountFromInt(1), Sequence: 0}
	o2 := o1
	o2.OriginNode = NodeID{1, 2, 3}

	if string(CanonicalEncodeOrder(o1)) != string(CanonicalEncodeOrder(o2)) {
		t.Fatal("origin_node must not affect canonical encoding")
	}
}

func TestCanonicalEncodeOrderSensitiveToPrice(t *testing.T) {
	base := Order{ID: NewID(), User: NewID(), Market: Market{Base: "BTC", Quote: "USDT"},
		Side: SideBuy, Type: OrderTypeLimit, Price: NewAmountFromInt(50000), Qty: NewAmountFromInt(1)}
	changed := base
	changed.Price = NewAmountFromInt(50001)

	if string(CanonicalEncodeOrder(base)) == string(CanonicalEncodeOrder(changed)) {
		t.Fatal("changing price must change the canonical encoding")
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	if !OrderStatusCanTransition(OrderStatusPending, OrderStatusSealed) {
		t.Error("pending -> sealed should be legal")
	}
	if OrderStatusCanTransition(OrderStatusFilled, OrderStatusPending) {
		t.Error("filled -> pending must be illegal")
	}
}

func TestReservationStateTerminal(t *testing.T) {
	if !ReservationStateCanTransition(ReservationActive, ReservationSpent) {
		t.Error("active -> spent should be legal")
	}
	if ReservationStateCanTransition(ReservationSpent, ReservationActive) {
		t.Error("spent must be terminal")
	}
	if ReservationStateCanTransition(ReservationReleased, ReservationSpent) {
		t.Error("released must be terminal")
	}
}

func TestEpochPhaseCycle(t *testing.T) {
	seq := []EpochPhase{PhaseCollect, PhaseSeal, PhaseMatch, PhaseFinalize, PhaseCollect}
	for i := 0; i < len(seq)-1; i++ {
		if got := EpochPhaseNext(seq[i]); got != seq[i+1] {
			t.Errorf("EpochPhaseNext(%v) = %v, want %v", seq[i], got, seq[i+1])
		}
	}
}

func TestAmountSubUnderflow(t *testing.T) {
	a := NewAmountFromInt(5)
	b := NewAmountFromInt(10)
	if _, err := a.Sub(b, false); err != ErrLedgerUnderflow {
		t.Fatalf("expected ErrLedgerUnderflow, got %v", err)
	}
}

func TestDeriveTradeIDDeterministic(t *testing.T) {
	id1 := DeriveTradeID(7, 3)
	id2 := DeriveTradeID(7, 3)
	if id1 != id2 {
		t.Fatal("DeriveTradeID must be deterministic for the same inputs")
	}
	id3 := DeriveTradeID(7, 4)
	if id1 == id3 {
		t.Fatal("different fill sequence must yield a different trade id")
	}
}
