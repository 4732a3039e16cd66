package persistence

import (
	"testing"

	"github.com/openibank/openmatch/internal/events"
	"github.com/openibank/openmatch/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(&Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func countRows(t *testing.T, store *Store, table string) int {
	t.Helper()
	var n int
	if err := store.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestEventSinkAppendsEvents(t *testing.T) {
	store := newTestStore(t)
	sink := NewEventSink(store)

	order := types.Order{ID: types.NewID()}
	sink.Publish(events.Event{Kind: events.KindOrderAccepted, Order: &order, Epoch: 1})
	sink.Publish(events.Event{Kind: events.KindEpochAdvanced, Epoch: 2})

	if got := countRows(t, store, "events"); got != 2 {
		t.Fatalf("got %d event rows, want 2", got)
	}
}

func TestEventSinkRecordsTrade(t *testing.T) {
	store := newTestStore(t)
	sink := NewEventSink(store)

	trade := types.Trade{
		ID:          types.DeriveTradeID(1, 0),
		Market:      types.Market{Base: "BTC", Quote: "USDT"},
		MakerOrder:  types.NewID(),
		TakerOrder:  types.NewID(),
		MakerUser:   types.NewID(),
		TakerUser:   types.NewID(),
		Price:       types.NewAmountFromInt(30000),
		Qty:         types.NewAmountFromInt(1),
		QuoteAmount: types.NewAmountFromInt(30000),
		BatchID:     1,
	}
	sink.Publish(events.Event{Kind: events.KindTradeExecuted, Trade: &trade, Epoch: 1})

	if got := countRows(t, store, "trades"); got != 1 {
		t.Fatalf("got %d trade rows, want 1", got)
	}

	trades, err := store.ListTrades(trade.MakerUser, 0)
	if err != nil {
		t.Fatalf("list trades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d trades for maker, want 1", len(trades))
	}
	if !trades[0].Price.Equal(trade.Price) {
		t.Fatalf("got price %s, want %s", trades[0].Price, trade.Price)
	}
}

func TestEventSinkTradeUpsertIgnoresDuplicate(t *testing.T) {
	store := newTestStore(t)
	sink := NewEventSink(store)

	trade := types.Trade{
		ID:          types.DeriveTradeID(1, 0),
		Market:      types.Market{Base: "ETH", Quote: "USDT"},
		MakerUser:   types.NewID(),
		TakerUser:   types.NewID(),
		Price:       types.NewAmountFromInt(2000),
		Qty:         types.NewAmountFromInt(1),
		QuoteAmount: types.NewAmountFromInt(2000),
		BatchID:     1,
	}
	sink.Publish(events.Event{Kind: events.KindTradeExecuted, Trade: &trade})
	sink.Publish(events.Event{Kind: events.KindTradeExecuted, Trade: &trade})

	if got := countRows(t, store, "trades"); got != 1 {
		t.Fatalf("got %d trade rows after duplicate publish, want 1", got)
	}
}
