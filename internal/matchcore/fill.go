package matchcore

import "github.com/openibank/openmatch/internal/types"

// fillMarket runs the crossing algorithm of §4.6.3 against book b at
// clearing price p, returning the Trades it produces and advancing
// fillSeq. It mutates
// copies of the book's orders in place (RemainingQty), never the caller's
// originals — the sealed batch is never mutated by MatchCore.
func fillMarket(b *book, batchID uint64, p types.Amount, fillSeq *uint64) []types.Trade {
	bids := make([]types.Order, len(b.bids))
	copy(bids, b.bids)
	asks := make([]types.Order, len(b.asks))
	copy(asks, b.asks)

	bi, ai := 0, 0
	var trades []types.Trade

	crossingBid := func(i int) bool {
		return i < len(bids) && (bids[i].Type == types.OrderTypeMarket || bids[i].EffectivePrice().GreaterThanOrEqual(p))
	}
	crossingAsk := func(i int) bool {
		return i < len(asks) && (asks[i].Type == types.OrderTypeMarket || asks[i].EffectivePrice().LessThanOrEqual(p))
	}

	for crossingBid(bi) && crossingAsk(ai) {
		bid := &bids[bi]
		ask := &asks[ai]

		if bid.RemainingQty.IsZero() {
			bi++
			continue
		}
		if ask.RemainingQty.IsZero() {
			ai++
			continue
		}

		if bid.User == ask.User {
			// Self-trade: skip-and-continue, younger side advances.
			if bid.Sequence > ask.Sequence {
				bi++
			} else {
				ai++
			}
			continue
		}

		fillQty := bid.RemainingQty
		if ask.RemainingQty.LessThan(fillQty) {
			fillQty = ask.RemainingQty
		}

		takerSide := types.SideBuy
		if bid.Sequence < ask.Sequence {
			takerSide = types.SideSell
		}

		quote := p.Mul(fillQty)
		trade := types.Trade{
			ID:          types.DeriveTradeID(batchID, *fillSeq),
			Market:      b.market,
			MakerOrder:  ask.ID,
			TakerOrder:  bid.ID,
			MakerUser:   ask.User,
			TakerUser:   bid.User,
			Price:       p,
			Qty:         fillQty,
			QuoteAmount: quote,
			TakerSide:   takerSide,
			BatchID:     batchID,
		}
		if takerSide == types.SideSell {
			trade.MakerOrder, trade.TakerOrder = bid.ID, ask.ID
			trade.MakerUser, trade.TakerUser = bid.User, ask.User
		}
		*fillSeq++
		trades = append(trades, trade)

		newBidRem, _ := bid.RemainingQty.Sub(fillQty, true)
		bid.RemainingQty = newBidRem
		newAskRem, _ := ask.RemainingQty.Sub(fillQty, true)
		ask.RemainingQty = newAskRem

		if bid.RemainingQty.IsZero() {
			bi++
		}
		if ask.RemainingQty.IsZero() {
			ai++
		}
	}

	return trades
}
