package matchcore

import "github.com/openibank/openmatch/internal/types"

// clearingResult is the outcome of a single market's clearing price scan.
type clearingResult struct {
	price     types.Amount
	matchable types.Amount
	crossed   bool
}

// demand returns the total remaining quantity of bids priced at or above
// p, market buys always included whatever their bound.
func (b *book) demand(p types.Amount) types.Amount {
	total := types.Zero
	for _, o := range b.bids {
		if o.Type == types.OrderTypeMarket || o.EffectivePrice().GreaterThanOrEqual(p) {
			total = total.Add(o.RemainingQty)
		}
	}
	return total
}

// supply returns the total remaining quantity of asks priced at or below
// p, market sells always included whatever their bound.
func (b *book) supply(p types.Amount) types.Amount {
	total := types.Zero
	for _, o := range b.asks {
		if o.Type == types.OrderTypeMarket || o.EffectivePrice().LessThanOrEqual(p) {
			total = total.Add(o.RemainingQty)
		}
	}
	return total
}

// clear scans every candidate price and selects p* per §4.6.2: maximize
// matchable(p), tie-break on smaller |demand-supply| then higher price.
func (b *book) clear() clearingResult {
	candidates := b.candidatePrices()
	var best clearingResult
	haveBest := false

	for _, p := range candidates {
		demand := b.demand(p)
		supply := b.supply(p)
		matchable := minAmount(demand, supply)
		if matchable.IsZero() {
			continue
		}

		imbalance := absDiff(demand, supply)

		if !haveBest {
			best = clearingResult{price: p, matchable: matchable, crossed: true}
			haveBest = true
			continue
		}

		bestDemand := b.demand(best.price)
		bestSupply := b.supply(best.price)
		bestImbalance := absDiff(bestDemand, bestSupply)

		switch {
		case matchable.GreaterThan(best.matchable):
			best = clearingResult{price: p, matchable: matchable, crossed: true}
		case matchable.Equal(best.matchable) && imbalance.LessThan(bestImbalance):
			best = clearingResult{price: p, matchable: matchable, crossed: true}
		case matchable.Equal(best.matchable) && imbalance.Equal(bestImbalance) && p.GreaterThan(best.price):
			best = clearingResult{price: p, matchable: matchable, crossed: true}
		}
	}

	return best
}

func minAmount(a, b types.Amount) types.Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

func absDiff(a, b types.Amount) types.Amount {
	if a.GreaterThan(b) {
		d, _ := a.Sub(b, true)
		return d
	}
	d, _ := b.Sub(a, true)
	return d
}
