package finality

import (
	"errors"
	"testing"
	"time"

	"github.com/openibank/openmatch/internal/escrow"
	"github.com/openibank/openmatch/internal/ledger"
	"github.com/openibank/openmatch/internal/security"
	"github.com/openibank/openmatch/internal/types"
)

type harness struct {
	ledger   *ledger.Ledger
	registry *escrow.Registry
	guard    *IdempotencyGuard
	settler  *Settler
	issuer   security.IssuerKey
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	issuer, err := security.GenerateIssuerKey()
	if err != nil {
		t.Fatalf("generate issuer key: %v", err)
	}
	l := ledger.New()
	r := escrow.New(l, issuer.Public)
	g, err := NewIdempotencyGuard(16)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	return &harness{ledger: l, registry: r, guard: g, settler: NewSettler(l, r, g), issuer: issuer}
}

func (h *harness) mint(t *testing.T, orderID, user types.ID, asset types.Asset, amount types.Amount, nonce uint64) types.ID {
	t.Helper()
	msg := security.ReservationSignedMessage(orderID, user, asset, amount, nonce)
	sig := h.issuer.Sign(msg)
	id, err := h.registry.Mint(escrow.MintRequest{
		OrderID: orderID, User: user, Asset: asset, Amount: amount,
		Issuer: h.issuer.Public, Nonce: nonce, Signature: sig,
	}, time.Now())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return id
}

func TestSettleHappyPath(t *testing.T) {
	h := newHarness(t)
	buyer, seller := types.NewID(), types.NewID()
	orderBuy, orderSell := types.NewID(), types.NewID()

	if err := h.ledger.Deposit(buyer, "USDT", types.NewAmountFromInt(100000)); err != nil {
		t.Fatal(err)
	}
	if err := h.ledger.Deposit(seller, "BTC", types.NewAmountFromInt(1)); err != nil {
		t.Fatal(err)
	}

	buyerRes := h.mint(t, orderBuy, buyer, "USDT", types.NewAmountFromInt(50000), 1)
	sellerRes := h.mint(t, orderSell, seller, "BTC", types.NewAmountFromInt(1), 2)

	trade := types.Trade{
		ID:          types.DeriveTradeID(1, 0),
		Market:      types.Market{Base: "BTC", Quote: "USDT"},
		MakerOrder:  orderSell,
		TakerOrder:  orderBuy,
		MakerUser:   seller,
		TakerUser:   buyer,
		Price:       types.NewAmountFromInt(50000),
		Qty:         types.NewAmountFromInt(1),
		QuoteAmount: types.NewAmountFromInt(50000),
		TakerSide:   types.SideBuy,
		BatchID:     1,
	}

	if err := h.settler.Settle(trade, buyer, seller, buyerRes, sellerRes); err != nil {
		t.Fatalf("settle: %v", err)
	}

	buyerBTC := h.ledger.Balance(buyer, "BTC")
	if !buyerBTC.Available.Equal(types.NewAmountFromInt(1)) {
		t.Fatalf("buyer BTC available = %s, want 1", buyerBTC.Available)
	}
	sellerUSDT := h.ledger.Balance(seller, "USDT")
	if !sellerUSDT.Available.Equal(types.NewAmountFromInt(50000)) {
		t.Fatalf("seller USDT available = %s, want 50000", sellerUSDT.Available)
	}

	br, err := h.registry.Get(buyerRes)
	if err != nil || br.State != types.ReservationSpent {
		t.Fatalf("buyer reservation state = %v (err %v), want Spent", br.State, err)
	}
	sr, err := h.registry.Get(sellerRes)
	if err != nil || sr.State != types.ReservationSpent {
		t.Fatalf("seller reservation state = %v (err %v), want Spent", sr.State, err)
	}
}

func TestSettleTwiceRejectsSecondAttempt(t *testing.T) {
	h := newHarness(t)
	buyer, seller := types.NewID(), types.NewID()
	orderBuy, orderSell := types.NewID(), types.NewID()

	_ = h.ledger.Deposit(buyer, "USDT", types.NewAmountFromInt(100000))
	_ = h.ledger.Deposit(seller, "BTC", types.NewAmountFromInt(1))
	buyerRes := h.mint(t, orderBuy, buyer, "USDT", types.NewAmountFromInt(50000), 1)
	sellerRes := h.mint(t, orderSell, seller, "BTC", types.NewAmountFromInt(1), 2)

	trade := types.Trade{
		ID: types.DeriveTradeID(1, 0), Market: types.Market{Base: "BTC", Quote: "USDT"},
		MakerOrder: orderSell, TakerOrder: orderBuy, MakerUser: seller, TakerUser: buyer,
		Price: types.NewAmountFromInt(50000), Qty: types.NewAmountFromInt(1),
		QuoteAmount: types.NewAmountFromInt(50000), TakerSide: types.SideBuy, BatchID: 1,
	}

	if err := h.settler.Settle(trade, buyer, seller, buyerRes, sellerRes); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	beforeBuyerBTC := h.ledger.Balance(buyer, "BTC")
	beforeSellerUSDT := h.ledger.Balance(seller, "USDT")

	err := h.settler.Settle(trade, buyer, seller, buyerRes, sellerRes)
	if !errors.Is(err, ErrTradeAlreadySettled) {
		t.Fatalf("second settle: got %v, want ErrTradeAlreadySettled", err)
	}

	afterBuyerBTC := h.ledger.Balance(buyer, "BTC")
	afterSellerUSDT := h.ledger.Balance(seller, "USDT")
	if !afterBuyerBTC.Available.Equal(beforeBuyerBTC.Available) || !afterSellerUSDT.Available.Equal(beforeSellerUSDT.Available) {
		t.Fatal("ledger mutated on rejected double-settle")
	}
}

func TestSettleMultiFillSharesReservationAcrossTrades(t *testing.T) {
	h := newHarness(t)
	alice, bob, carol := types.NewID(), types.NewID(), types.NewID()
	orderAlice, orderBob, orderCarol := types.NewID(), types.NewID(), types.NewID()

	if err := h.ledger.Deposit(alice, "USDT", types.NewAmountFromInt(100000)); err != nil {
		t.Fatal(err)
	}
	if err := h.ledger.Deposit(bob, "BTC", types.NewAmountFromInt(1)); err != nil {
		t.Fatal(err)
	}
	if err := h.ledger.Deposit(carol, "BTC", types.NewAmountFromInt(1)); err != nil {
		t.Fatal(err)
	}

	// Alice's single buy order (qty 3 @ 100) covers more than either
	// counterparty alone can fill, so it settles against both bob and
	// carol against the same reservation, as MatchCore itself produces
	// when one order is only partially filled by its first counterparty.
	aliceRes := h.mint(t, orderAlice, alice, "USDT", types.NewAmountFromInt(300), 1)
	bobRes := h.mint(t, orderBob, bob, "BTC", types.NewAmountFromInt(1), 2)
	carolRes := h.mint(t, orderCarol, carol, "BTC", types.NewAmountFromInt(1), 3)

	tradeBob := types.Trade{
		ID: types.DeriveTradeID(1, 0), Market: types.Market{Base: "BTC", Quote: "USDT"},
		MakerOrder: orderBob, TakerOrder: orderAlice, MakerUser: bob, TakerUser: alice,
		Price: types.NewAmountFromInt(100), Qty: types.NewAmountFromInt(1),
		QuoteAmount: types.NewAmountFromInt(100), TakerSide: types.SideBuy, BatchID: 1,
	}
	tradeCarol := types.Trade{
		ID: types.DeriveTradeID(1, 1), Market: types.Market{Base: "BTC", Quote: "USDT"},
		MakerOrder: orderCarol, TakerOrder: orderAlice, MakerUser: carol, TakerUser: alice,
		Price: types.NewAmountFromInt(100), Qty: types.NewAmountFromInt(1),
		QuoteAmount: types.NewAmountFromInt(100), TakerSide: types.SideBuy, BatchID: 1,
	}

	if err := h.settler.Settle(tradeBob, alice, bob, aliceRes, bobRes); err != nil {
		t.Fatalf("settle vs bob: %v", err)
	}

	// Alice's order still has one more fill to settle this epoch: her
	// shared reservation must still be ACTIVE, not SPENT, with exactly
	// the unconsumed remainder left.
	mid, err := h.registry.Get(aliceRes)
	if err != nil {
		t.Fatalf("get alice reservation: %v", err)
	}
	if mid.State != types.ReservationActive {
		t.Fatalf("alice reservation state = %v after first fill, want Active", mid.State)
	}
	if !mid.Remaining.Equal(types.NewAmountFromInt(200)) {
		t.Fatalf("alice reservation remaining = %s after first fill, want 200", mid.Remaining)
	}
	bobSR, err := h.registry.Get(bobRes)
	if err != nil || bobSR.State != types.ReservationSpent {
		t.Fatalf("bob reservation state = %v (err %v), want Spent", bobSR.State, err)
	}

	if err := h.settler.Settle(tradeCarol, alice, carol, aliceRes, carolRes); err != nil {
		t.Fatalf("settle vs carol: %v", err)
	}

	final, err := h.registry.Get(aliceRes)
	if err != nil {
		t.Fatalf("get alice reservation: %v", err)
	}
	if final.State != types.ReservationActive {
		t.Fatalf("alice reservation state = %v after second fill, want Active (order still has 1 unit resting)", final.State)
	}
	if !final.Remaining.Equal(types.NewAmountFromInt(100)) {
		t.Fatalf("alice reservation remaining = %s after second fill, want 100", final.Remaining)
	}

	aliceBTC := h.ledger.Balance(alice, "BTC")
	if !aliceBTC.Available.Equal(types.NewAmountFromInt(2)) {
		t.Fatalf("alice BTC available = %s, want 2", aliceBTC.Available)
	}
	bobUSDT := h.ledger.Balance(bob, "USDT")
	if !bobUSDT.Available.Equal(types.NewAmountFromInt(100)) {
		t.Fatalf("bob USDT available = %s, want 100", bobUSDT.Available)
	}
	carolUSDT := h.ledger.Balance(carol, "USDT")
	if !carolUSDT.Available.Equal(types.NewAmountFromInt(100)) {
		t.Fatalf("carol USDT available = %s, want 100", carolUSDT.Available)
	}
}

func TestSettleRejectsInactiveReservation(t *testing.T) {
	h := newHarness(t)
	buyer, seller := types.NewID(), types.NewID()
	orderBuy, orderSell := types.NewID(), types.NewID()

	_ = h.ledger.Deposit(buyer, "USDT", types.NewAmountFromInt(100000))
	_ = h.ledger.Deposit(seller, "BTC", types.NewAmountFromInt(1))
	buyerRes := h.mint(t, orderBuy, buyer, "USDT", types.NewAmountFromInt(50000), 1)
	sellerRes := h.mint(t, orderSell, seller, "BTC", types.NewAmountFromInt(1), 2)

	if err := h.registry.Release(sellerRes); err != nil {
		t.Fatalf("release: %v", err)
	}

	trade := types.Trade{
		ID: types.DeriveTradeID(1, 0), Market: types.Market{Base: "BTC", Quote: "USDT"},
		MakerOrder: orderSell, TakerOrder: orderBuy, MakerUser: seller, TakerUser: buyer,
		Price: types.NewAmountFromInt(50000), Qty: types.NewAmountFromInt(1),
		QuoteAmount: types.NewAmountFromInt(50000), TakerSide: types.SideBuy, BatchID: 1,
	}

	if err := h.settler.Settle(trade, buyer, seller, buyerRes, sellerRes); !errors.Is(err, ErrReservationMismatch) {
		t.Fatalf("got %v, want ErrReservationMismatch", err)
	}
}
