// Package matchcore implements MatchCore: the pure, deterministic batch
// matcher. MatchSealedBatch is the package's single entry point. Nothing
// here touches a lock, a clock, or the network — every other package
// that needs matching output calls in, nothing here calls out.
package matchcore

import (
	"sort"

	"github.com/openibank/openmatch/internal/types"
)

// book is one market's crossing-relevant state, indexed per §4.6.1: bids
// by price descending then sequence ascending, asks by price ascending
// then sequence ascending. Market orders sort as if priced at their
// caller-supplied bound (see types.Order.EffectivePrice). Demand/supply
// scanning and fill count a market order as crossing at any price; the
// bound is not compared against the clearing price.
type book struct {
	market types.Market
	bids   []types.Order
	asks   []types.Order
}

func buildBooks(orders []types.Order) map[types.Market]*book {
	books := make(map[types.Market]*book)
	for _, o := range orders {
		b, ok := books[o.Market]
		if !ok {
			b = &book{market: o.Market}
			books[o.Market] = b
		}
		switch o.Side {
		case types.SideBuy:
			b.bids = append(b.bids, o)
		case types.SideSell:
			b.asks = append(b.asks, o)
		}
	}
	for _, b := range books {
		sort.SliceStable(b.bids, func(i, j int) bool {
			return lessBid(b.bids[i], b.bids[j])
		})
		sort.SliceStable(b.asks, func(i, j int) bool {
			return lessAsk(b.asks[i], b.asks[j])
		})
	}
	return books
}

// lessBid reports whether i sorts ahead of j on the bid side: higher
// price first, then lower sequence (FIFO) within a price.
func lessBid(i, j types.Order) bool {
	pi, pj := i.EffectivePrice(), j.EffectivePrice()
	if !pi.Equal(pj) {
		return pi.GreaterThan(pj)
	}
	return i.Sequence < j.Sequence
}

// lessAsk reports whether i sorts ahead of j on the ask side: lower
// price first, then lower sequence within a price.
func lessAsk(i, j types.Order) bool {
	pi, pj := i.EffectivePrice(), j.EffectivePrice()
	if !pi.Equal(pj) {
		return pi.LessThan(pj)
	}
	return i.Sequence < j.Sequence
}

// candidatePrices returns the distinct limit prices present on either
// side of the book, in ascending order. Market orders contribute no
// candidate price of their own — they clear at whatever price the book's
// limit orders establish. Neither the price scan nor the fill algorithm
// checks that price against their PriceBound.
func (b *book) candidatePrices() []types.Amount {
	seen := make(map[string]types.Amount)
	add := func(o types.Order) {
		if o.Type != types.OrderTypeLimit {
			return
		}
		seen[o.Price.String()] = o.Price
	}
	for _, o := range b.bids {
		add(o)
	}
	for _, o := range b.asks {
		add(o)
	}
	out := make([]types.Amount, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}
