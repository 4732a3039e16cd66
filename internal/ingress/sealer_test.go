package ingress

import (
	"testing"

	"github.com/openibank/openmatch/internal/types"
)

func newTestOrder(user string, seq uint64) types.Order {
	return types.Order{
		ID:     types.NewID(),
		User:   types.NewID(),
		Market: types.Market{Base: "BTC", Quote: "USDT"},
		Side:   types.SideBuy, Type: types.OrderTypeLimit,
		Price: types.NewAmountFromInt(100), Qty: types.NewAmountFromInt(1),
		Sequence: seq,
	}
}

func TestSealProducesMatchingDigestAndBatch(t *testing.T) {
	s := NewSealer(types.NodeID{1})
	orders := []types.Order{newTestOrder("a", 2), newTestOrder("b", 0), newTestOrder("c", 1)}

	batch, digest := s.Seal(7, orders)

	if batch.Epoch != 7 || digest.Epoch != 7 {
		t.Fatalf("epoch mismatch: batch=%d digest=%d", batch.Epoch, digest.Epoch)
	}
	if batch.BatchHash != digest.BatchHash {
		t.Fatal("batch hash and digest hash diverged")
	}
	if digest.Count != 3 {
		t.Fatalf("got count %d, want 3", digest.Count)
	}
	for i, o := range batch.Orders {
		if int(o.Sequence) != i {
			t.Fatalf("orders not sorted canonically: position %d has sequence %d", i, o.Sequence)
		}
	}
}

func TestSealIsDeterministic(t *testing.T) {
	s := NewSealer(types.NodeID{1})
	orders := []types.Order{newTestOrder("a", 0), newTestOrder("b", 1)}

	_, d1 := s.Seal(3, orders)
	_, d2 := s.Seal(3, orders)
	if d1.BatchHash != d2.BatchHash {
		t.Fatal("sealing the same orders twice produced different hashes")
	}
}

func TestSealHashSensitiveToOrderCount(t *testing.T) {
	s := NewSealer(types.NodeID{1})
	one := []types.Order{newTestOrder("a", 0)}
	two := []types.Order{newTestOrder("a", 0), newTestOrder("b", 1)}

	_, d1 := s.Seal(1, one)
	_, d2 := s.Seal(1, two)
	if d1.BatchHash == d2.BatchHash {
		t.Fatal("batch hash did not change with order count")
	}
}

func TestBufferDrainIntoSealer(t *testing.T) {
	b := NewBuffer(0)
	for i := 0; i < 3; i++ {
		if _, err := b.Accept(newTestOrder("x", 0)); err != nil {
			t.Fatalf("accept %d: %v", i, err)
		}
	}
	b.Seal()
	drained, err := b.Drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}

	s := NewSealer(types.NodeID{2})
	batch, digest := s.Seal(0, drained)
	if len(batch.Orders) != 3 || digest.Count != 3 {
		t.Fatalf("expected 3 orders through the pipeline, got batch=%d digest=%d", len(batch.Orders), digest.Count)
	}
	for i, o := range batch.Orders {
		if int(o.Sequence) != i {
			t.Fatalf("buffer sequence not preserved: position %d has sequence %d", i, o.Sequence)
		}
	}
}
