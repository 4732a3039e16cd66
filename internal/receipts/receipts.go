// Package receipts builds the structured, ed25519-signable records a node
// hands to a user as proof of what happened to their order: a trade fill
// or a reservation state transition. Each receipt's signed bytes start
// with a receipt-specific domain string followed by length-prefixed
// fields in the style of internal/types' canonical encoders, so a user (or auditor) can verify a
// receipt offline with nothing but the issuer's public key.
package receipts

import (
	"bytes"
	"encoding/binary"

	"github.com/openibank/openmatch/internal/security"
	"github.com/openibank/openmatch/internal/types"
)

const (
	tradeReceiptDomain       = "openmatch:receipt:trade:v1:"
	reservationReceiptDomain = "openmatch:receipt:reservation:v1:"
)

// TradeReceipt is handed to both the maker and the taker side of a fill.
// Side is the trade side (buy or sell) the recipient was on, so the
// same Trade produces two distinct receipts with different signed bytes.
type TradeReceipt struct {
	Trade     types.Trade
	Recipient types.ID
	Side      types.Side
	Signature [64]byte
}

// ReservationReceipt records one SpendRight's ACTIVE->SPENT or
// ACTIVE->RELEASED transition.
type ReservationReceipt struct {
	ReservationID types.ID
	User          types.ID
	Asset         types.Asset
	Amount        types.Amount
	NewState      types.ReservationState
	Epoch         uint64
	Signature     [64]byte
}

func encodeTradeReceipt(t types.Trade, recipient types.ID, side types.Side) []byte {
	var buf bytes.Buffer
	buf.WriteString(tradeReceiptDomain)
	buf.Write(types.CanonicalEncodeTrade(t))
	buf.Write(recipient[:])
	buf.WriteByte(byte(side))
	return buf.Bytes()
}

func encodeReservationReceipt(r ReservationReceipt) []byte {
	var buf bytes.Buffer
	buf.WriteString(reservationReceiptDomain)
	buf.Write(r.ReservationID[:])
	buf.Write(r.User[:])

	asset := []byte(r.Asset)
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(asset)))
	buf.Write(lenBuf[:])
	buf.Write(asset)

	amount := r.Amount.CanonicalBytes()
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(amount)))
	buf.Write(lenBuf[:])
	buf.Write(amount)

	buf.WriteByte(byte(r.NewState))
	binary.BigEndian.PutUint64(lenBuf[:], r.Epoch)
	buf.Write(lenBuf[:])
	return buf.Bytes()
}

// SignTrade produces a TradeReceipt for recipient's side of t, signed by
// issuer.
func SignTrade(issuer security.IssuerKey, t types.Trade, recipient types.ID, side types.Side) TradeReceipt {
	msg := encodeTradeReceipt(t, recipient, side)
	return TradeReceipt{
		Trade:     t,
		Recipient: recipient,
		Side:      side,
		Signature: issuer.Sign(msg),
	}
}

// VerifyTrade checks r's signature against issuer.
func VerifyTrade(issuer types.NodeID, r TradeReceipt) bool {
	msg := encodeTradeReceipt(r.Trade, r.Recipient, r.Side)
	return security.Verify(issuer, msg, r.Signature)
}

// SignReservation produces a ReservationReceipt, signed by issuer.
func SignReservation(issuer security.IssuerKey, reservationID, user types.ID, asset types.Asset, amount types.Amount, newState types.ReservationState, epoch uint64) ReservationReceipt {
	r := ReservationReceipt{
		ReservationID: reservationID,
		User:          user,
		Asset:         asset,
		Amount:        amount,
		NewState:      newState,
		Epoch:         epoch,
	}
	r.Signature = issuer.Sign(encodeReservationReceipt(r))
	return r
}

// VerifyReservation checks r's signature against issuer.
func VerifyReservation(issuer types.NodeID, r ReservationReceipt) bool {
	msg := encodeReservationReceipt(r)
	return security.Verify(issuer, msg, r.Signature)
}
