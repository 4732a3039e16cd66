package epoch

import (
	"time"

	"testing"

	"github.com/openibank/openmatch/internal/config"
	"github.com/openibank/openmatch/internal/core"
	"github.com/openibank/openmatch/internal/escrow"
	"github.com/openibank/openmatch/internal/security"
	"github.com/openibank/openmatch/internal/types"
)

var market = types.Market{Base: "BTC", Quote: "USDT"}

func mustCore(t *testing.T) (*core.Core, security.IssuerKey) {
	t.Helper()
	issuer, err := security.GenerateIssuerKey()
	if err != nil {
		t.Fatalf("generate issuer key: %v", err)
	}
	c, err := core.New(issuer.Public, config.NewCoreConfig(config.Testnet), issuer.Public)
	if err != nil {
		t.Fatalf("new core: %v", err)
	}
	return c, issuer
}

func mint(t *testing.T, c *core.Core, issuer security.IssuerKey, user, orderID types.ID, asset types.Asset, amount types.Amount, nonce uint64) types.ID {
	t.Helper()
	msg := security.ReservationSignedMessage(orderID, user, asset, amount, nonce)
	sig := issuer.Sign(msg)
	id, err := c.MintReservation(escrow.MintRequest{
		OrderID: orderID, User: user, Asset: asset, Amount: amount,
		Issuer: issuer.Public, Nonce: nonce, TTL: time.Hour, Signature: sig,
	}, time.Now())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return id
}

func TestRunOnceDrivesFullEpoch(t *testing.T) {
	c, issuer := mustCore(t)
	ctrl := New(c, 100*time.Millisecond)

	buyer, seller := types.NewID(), types.NewID()
	if err := c.Deposit(buyer, "USDT", types.NewAmountFromInt(100000)); err != nil {
		t.Fatalf("deposit buyer: %v", err)
	}
	if err := c.Deposit(seller, "BTC", types.NewAmountFromInt(10)); err != nil {
		t.Fatalf("deposit seller: %v", err)
	}

	buyOrderID, sellOrderID := types.NewID(), types.NewID()
	buyReservation := mint(t, c, issuer, buyer, buyOrderID, "USDT", types.NewAmountFromInt(30000), 1)
	sellReservation := mint(t, c, issuer, seller, sellOrderID, "BTC", types.NewAmountFromInt(1), 2)

	if _, err := c.SubmitOrder(types.Order{
		ID: buyOrderID, User: buyer, Market: market, Side: types.SideBuy, Type: types.OrderTypeLimit,
		Price: types.NewAmountFromInt(30000), Qty: types.NewAmountFromInt(1), ReservationID: buyReservation,
	}); err != nil {
		t.Fatalf("submit buy order: %v", err)
	}
	if _, err := c.SubmitOrder(types.Order{
		ID: sellOrderID, User: seller, Market: market, Side: types.SideSell, Type: types.OrderTypeLimit,
		Price: types.NewAmountFromInt(29000), Qty: types.NewAmountFromInt(1), ReservationID: sellReservation,
	}); err != nil {
		t.Fatalf("submit sell order: %v", err)
	}

	if err := ctrl.RunOnce(time.Now()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	epoch, phase := c.CurrentPhase()
	if epoch != 1 || phase != types.PhaseCollect {
		t.Fatalf("got epoch=%d phase=%v, want epoch=1 phase=collect", epoch, phase)
	}

	buyerBTC := c.Balance(buyer, "BTC")
	if !buyerBTC.Available.Equal(types.NewAmountFromInt(1)) {
		t.Fatalf("buyer BTC available = %s, want 1", buyerBTC.Available)
	}
}

func TestRunOnceEmptyBatchAdvancesCleanly(t *testing.T) {
	c, _ := mustCore(t)
	ctrl := New(c, 100*time.Millisecond)

	if err := ctrl.RunOnce(time.Now()); err != nil {
		t.Fatalf("run once on empty batch: %v", err)
	}
	epoch, phase := c.CurrentPhase()
	if epoch != 1 || phase != types.PhaseCollect {
		t.Fatalf("got epoch=%d phase=%v, want epoch=1 phase=collect", epoch, phase)
	}
}
