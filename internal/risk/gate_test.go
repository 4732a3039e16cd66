package risk

import (
	"errors"
	"testing"

	"github.com/openibank/openmatch/internal/types"
)

func baseOrder() types.Order {
	return types.Order{
		ID: types.NewID(), User: types.NewID(),
		Market: types.Market{Base: "BTC", Quote: "USDT"},
		Side:   types.SideBuy, Type: types.OrderTypeLimit,
		Price: types.NewAmountFromInt(50000), Qty: types.NewAmountFromInt(1),
	}
}

func TestGateRejectsZeroQty(t *testing.T) {
	g := New(Config{MaxOrderSize: types.NewAmountFromInt(100), MaxOrdersPerUserEpoch: 10})
	o := baseOrder()
	o.Qty = types.Zero
	if err := g.Validate(o, Context{}); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("got %v, want ErrInvalidOrder", err)
	}
}

func TestGateRejectsZeroPriceLimit(t *testing.T) {
	g := New(Config{MaxOrderSize: types.NewAmountFromInt(100), MaxOrdersPerUserEpoch: 10})
	o := baseOrder()
	o.Price = types.Zero
	if err := g.Validate(o, Context{}); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("got %v, want ErrInvalidOrder", err)
	}
}

func TestGateRejectsMarketOrderWithoutBound(t *testing.T) {
	g := New(Config{MaxOrderSize: types.NewAmountFromInt(100), MaxOrdersPerUserEpoch: 10})
	o := baseOrder()
	o.Type = types.OrderTypeMarket
	if err := g.Validate(o, Context{}); !errors.Is(err, ErrMissingPriceBound) {
		t.Fatalf("got %v, want ErrMissingPriceBound", err)
	}
}

func TestGateRejectsOversizeOrder(t *testing.T) {
	g := New(Config{MaxOrderSize: types.NewAmountFromInt(1), MaxOrdersPerUserEpoch: 10})
	o := baseOrder()
	o.Qty = types.NewAmountFromInt(2)
	if err := g.Validate(o, Context{}); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("got %v, want ErrInvalidOrder", err)
	}
}

func TestGateRejectsRateLimited(t *testing.T) {
	g := New(Config{MaxOrderSize: types.NewAmountFromInt(100), MaxOrdersPerUserEpoch: 1})
	o := baseOrder()
	if err := g.Validate(o, Context{OrdersThisEpoch: 1}); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("got %v, want ErrRateLimited", err)
	}
}

func TestPluginRuleCanOnlyTighten(t *testing.T) {
	g := New(Config{MaxOrderSize: types.NewAmountFromInt(100), MaxOrdersPerUserEpoch: 10})
	g.AddRule(RuleFunc(func(o types.Order, _ Context) error {
		if o.Market.Base == "XMR" {
			return errors.New("XMR not permitted by policy")
		}
		return nil
	}))

	o := baseOrder()
	o.Market.Base = "XMR"
	if err := g.Validate(o, Context{}); err == nil {
		t.Fatal("expected plugin rule to reject XMR order")
	}

	// Baseline rules still apply even with the plugin installed.
	bad := baseOrder()
	bad.Qty = types.Zero
	if err := g.Validate(bad, Context{}); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("got %v, want ErrInvalidOrder", err)
	}
}
