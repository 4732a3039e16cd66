package types

// PriceBound is the caller-supplied ceiling (for a market buy) or floor
// (for a market sell) that a market order must carry. The core never
// infers one: an order submitted without it is rejected at the risk gate
// with ErrMissingPriceBound rather than silently treated as unbounded.
type PriceBound struct {
	Set   bool
	Price Amount
}

// Order is a single order admitted into an epoch's pending buffer. Price
// is meaningful only for OrderTypeLimit; market orders carry PriceBound
// instead and are ordered at that bound during book construction.
type Order struct {
	ID            ID
	User          ID
	Market        Market
	Side          Side
	Type          OrderType
	Price         Amount // Limit only
	Bound         PriceBound // Market only
	Qty           Amount
	RemainingQty  Amount
	Sequence      uint64
	ReservationID ID
	OriginNode    NodeID
	Status        OrderStatus
}

// EffectivePrice returns the price used for book ordering and clearing
// price scans: the limit price for limit orders, or the caller-supplied
// bound for market orders.
func (o Order) EffectivePrice() Amount {
	if o.Type == OrderTypeLimit {
		return o.Price
	}
	return o.Bound.Price
}

// IsFilled reports whether the order has no remaining quantity.
func (o Order) IsFilled() bool { return o.RemainingQty.IsZero() }
