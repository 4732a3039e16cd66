package matchcore

import "github.com/openibank/openmatch/internal/types"

// MatchSealedBatch is MatchCore's single exported entry point. It is a
// pure function of batch's contents: no lock, no clock, no I/O, no RNG.
// Orders from multiple markets in the same batch are matched
// independently, each against its own clearing price; trades from every
// market are concatenated in market-then-priority order so the result is
// itself canonical and reproducible across nodes.
func MatchSealedBatch(batch types.SealedBatch) types.TradeBundle {
	books := buildBooks(batch.Orders)

	markets := make([]types.Market, 0, len(books))
	for m := range books {
		markets = append(markets, m)
	}
	sortMarkets(markets)

	var allTrades []types.Trade
	var fillSeq uint64
	var singleClearingPrice *types.Amount
	clearingPricesSeen := 0

	for _, m := range markets {
		b := books[m]
		result := b.clear()
		if !result.crossed {
			continue
		}
		trades := fillMarket(b, batch.BatchID, result.price, &fillSeq)
		if len(trades) == 0 {
			continue
		}
		allTrades = append(allTrades, trades...)
		clearingPricesSeen++
		price := result.price
		singleClearingPrice = &price
	}

	if clearingPricesSeen != 1 {
		singleClearingPrice = nil
	}

	return types.TradeBundle{
		Trades:        allTrades,
		ClearingPrice: singleClearingPrice,
		TradeRoot:     tradeRoot(batch.BatchID, allTrades),
	}
}

// sortMarkets orders markets deterministically (base then quote, both
// lexical) so iteration order never depends on map enumeration.
func sortMarkets(markets []types.Market) {
	for i := 1; i < len(markets); i++ {
		for j := i; j > 0 && lessMarket(markets[j], markets[j-1]); j-- {
			markets[j], markets[j-1] = markets[j-1], markets[j]
		}
	}
}

func lessMarket(a, b types.Market) bool {
	if a.Base != b.Base {
		return a.Base < b.Base
	}
	return a.Quote < b.Quote
}
