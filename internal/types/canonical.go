package types

import (
	"bytes"
	"encoding/binary"
)

// Canonical encodings are byte-stable across platforms and Go versions:
// ids and integers are written at fixed width, and every variable-length
// field carries a fixed-width length prefix (never a map,
// never a struct tag-driven encoder) so two nodes running different
// builds of this binary still produce identical bytes for identical
// logical content. Clocks and origin-node fields never enter a canonical
// encoding that feeds a hash.

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putUint8(buf *bytes.Buffer, v uint8) {
	buf.WriteByte(v)
}

func putBytes(buf *bytes.Buffer, b []byte) {
	putUint64(buf, uint64(len(b)))
	buf.Write(b)
}

func putID(buf *bytes.Buffer, id ID) { buf.Write(id[:]) }

// CanonicalEncodeOrder encodes the fields of o that matter for matching:
// id, user, market, side, type, price, quantity, sequence. Clocks and
// origin_node are deliberately excluded.
func CanonicalEncodeOrder(o Order) []byte {
	var buf bytes.Buffer
	putID(&buf, o.ID)
	putID(&buf, o.User)
	putBytes(&buf, []byte(o.Market.Base))
	putBytes(&buf, []byte(o.Market.Quote))
	putUint8(&buf, uint8(o.Side))
	putUint8(&buf, uint8(o.Type))
	putBytes(&buf, o.Price.CanonicalBytes())
	putBytes(&buf, o.Qty.CanonicalBytes())
	putUint64(&buf, o.Sequence)
	return buf.Bytes()
}

// CanonicalEncodeOrders encodes an ordered order list as the
// concatenation of each order's canonical encoding, each length-prefixed
// so boundaries are unambiguous.
func CanonicalEncodeOrders(orders []Order) []byte {
	var buf bytes.Buffer
	for _, o := range orders {
		putBytes(&buf, CanonicalEncodeOrder(o))
	}
	return buf.Bytes()
}

// CanonicalEncodeTrade encodes every field of t that a verifier needs to
// reconstruct the trade root: id, market, maker_order, taker_order,
// maker_user, taker_user, price, qty, quote_amount, taker_side, batch_id.
func CanonicalEncodeTrade(t Trade) []byte {
	var buf bytes.Buffer
	buf.Write(t.ID[:])
	putBytes(&buf, []byte(t.Market.Base))
	putBytes(&buf, []byte(t.Market.Quote))
	putID(&buf, t.MakerOrder)
	putID(&buf, t.TakerOrder)
	putID(&buf, t.MakerUser)
	putID(&buf, t.TakerUser)
	putBytes(&buf, t.Price.CanonicalBytes())
	putBytes(&buf, t.Qty.CanonicalBytes())
	putBytes(&buf, t.QuoteAmount.CanonicalBytes())
	putUint8(&buf, uint8(t.TakerSide))
	putUint64(&buf, t.BatchID)
	return buf.Bytes()
}
