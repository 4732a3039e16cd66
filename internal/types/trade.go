package types

// Trade is one fill emitted by MatchCore. price always equals the
// bundle's clearing price; maker_user and taker_user are always distinct
// (self-trades are skipped before a Trade is ever constructed).
type Trade struct {
	ID          TradeID
	Market      Market
	MakerOrder  ID
	TakerOrder  ID
	MakerUser   ID
	TakerUser   ID
	Price       Amount
	Qty         Amount
	QuoteAmount Amount
	TakerSide   Side
	BatchID     uint64
}

// TradeBundle is the full output of one match_sealed_batch call: the
// ordered trade list plus a Merkle commitment over it.
type TradeBundle struct {
	Trades        []Trade
	ClearingPrice *Amount
	TradeRoot     [32]byte
}
