package persistence

import (
	"encoding/hex"
	"time"

	"github.com/openibank/openmatch/internal/events"
	"github.com/openibank/openmatch/internal/types"
	"github.com/openibank/openmatch/pkg/logging"
)

// EventSink persists every event published by internal/core's bus into
// the events table, plus a denormalized row per trade for fast lookup.
// It implements events.Sink. Publish never returns an error to the
// caller (the bus treats delivery as fire-and-forget); write failures are
// logged instead.
type EventSink struct {
	store *Store
	log   *logging.Logger
	now   func() time.Time
}

// NewEventSink wraps store as an events.Sink.
func NewEventSink(store *Store) *EventSink {
	return &EventSink{store: store, log: logging.GetDefault().Component("persistence"), now: time.Now}
}

var _ events.Sink = (*EventSink)(nil)

// Publish appends ev to the event log, and additionally upserts a trades
// row when ev.Kind is KindTradeExecuted.
func (s *EventSink) Publish(ev events.Event) {
	if err := s.appendEvent(ev); err != nil {
		s.log.Error("persist event failed", "kind", ev.Kind.String(), "err", err)
	}
	if ev.Kind == events.KindTradeExecuted && ev.Trade != nil {
		if err := s.recordTrade(*ev.Trade); err != nil {
			s.log.Error("persist trade failed", "trade_id", ev.Trade.ID.String(), "err", err)
		}
	}
}

func (s *EventSink) appendEvent(ev events.Event) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	_, err := s.store.db.Exec(
		`INSERT INTO events (kind, epoch, phase, payload, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		ev.Kind.String(),
		ev.Epoch,
		uint8(ev.Phase),
		encodePayload(ev),
		s.now().Unix(),
	)
	return err
}

func (s *EventSink) recordTrade(t types.Trade) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	_, err := s.store.db.Exec(
		`INSERT INTO trades (id, batch_id, base_asset, quote_asset, maker_order, taker_order, maker_user, taker_user, price, qty, quote_amount, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		t.ID.String(),
		t.BatchID,
		string(t.Market.Base),
		string(t.Market.Quote),
		t.MakerOrder.String(),
		t.TakerOrder.String(),
		t.MakerUser.String(),
		t.TakerUser.String(),
		t.Price.String(),
		t.Qty.String(),
		t.QuoteAmount.String(),
		s.now().Unix(),
	)
	return err
}

// encodePayload renders the event's populated field as a human-readable
// string for the audit log; it is not meant to be parsed back into a
// struct (the typed trades table exists for that).
func encodePayload(ev events.Event) string {
	switch ev.Kind {
	case events.KindOrderAccepted, events.KindOrderRejected:
		if ev.Order != nil {
			return ev.Order.ID.String() + " " + ev.RejectReason
		}
	case events.KindBufferSealed:
		if ev.Digest != nil {
			return hex.EncodeToString(ev.Digest.BatchHash[:])
		}
	case events.KindTradeExecuted:
		if ev.Trade != nil {
			return ev.Trade.ID.String()
		}
	case events.KindBalanceUpdated:
		if ev.Balance != nil {
			return string(ev.Balance.Asset) + " " + ev.Balance.Available.String()
		}
	case events.KindReservationStateChanged:
		return ev.ReservationID.String() + " " + ev.ReservationState.String()
	}
	return ""
}

// ListTrades returns every executed trade, most recent first, for a given
// user as either maker or taker. limit <= 0 means no limit. Each returned
// Trade carries only Market, Price, Qty, QuoteAmount and BatchID; its ID,
// order ids, user ids and TakerSide are left zero.
func (s *Store) ListTrades(user types.ID, limit int) ([]types.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, batch_id, base_asset, quote_asset, maker_order, taker_order, maker_user, taker_user, price, qty, quote_amount
	          FROM trades WHERE maker_user = ? OR taker_user = ? ORDER BY recorded_at DESC`
	args := []any{user.String(), user.String()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Trade
	for rows.Next() {
		var t rawTradeRow
		if err := rows.Scan(&t.id, &t.batchID, &t.base, &t.quote, &t.makerOrder, &t.takerOrder, &t.makerUser, &t.takerUser, &t.price, &t.qty, &t.quoteAmount); err != nil {
			return nil, err
		}
		trade, err := t.toTrade()
		if err != nil {
			return nil, err
		}
		out = append(out, trade)
	}
	return out, rows.Err()
}

type rawTradeRow struct {
	id, base, quote, makerOrder, takerOrder, makerUser, takerUser, price, qty, quoteAmount string
	batchID                                                                                uint64
}

func (r rawTradeRow) toTrade() (types.Trade, error) {
	price, err := types.NewAmountFromString(r.price)
	if err != nil {
		return types.Trade{}, err
	}
	qty, err := types.NewAmountFromString(r.qty)
	if err != nil {
		return types.Trade{}, err
	}
	quoteAmount, err := types.NewAmountFromString(r.quoteAmount)
	if err != nil {
		return types.Trade{}, err
	}
	return types.Trade{
		Market:      types.Market{Base: types.Asset(r.base), Quote: types.Asset(r.quote)},
		Price:       price,
		Qty:         qty,
		QuoteAmount: quoteAmount,
		BatchID:     r.batchID,
	}, nil
}
