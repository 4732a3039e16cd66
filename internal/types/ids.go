package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"
)

// ID is a time-ordered, 128-bit opaque identifier used for orders,
// reservations, and any other user-visible entity that needs to be both
// unique and sortable by creation time. Backed by UUIDv7, which embeds a
// millisecond timestamp in its high bits.
type ID [16]byte

// NilID is the zero value, used as a sentinel for "not set".
var NilID ID

// NewID mints a fresh time-ordered identifier.
func NewID() ID {
	u, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the system clock or crypto/rand is broken;
		// that is unrecoverable for a node that must produce unique ids.
		panic("types: failed to generate UUIDv7: " + err.Error())
	}
	var id ID
	copy(id[:], u[:])
	return id
}

func (id ID) String() string {
	u, _ := uuid.FromBytes(id[:])
	return u.String()
}

func (id ID) IsNil() bool { return id == NilID }

// Less reports whether id sorts before other. Since UUIDv7 is
// time-ordered, this doubles as creation-order comparison.
func (id ID) Less(other ID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// NodeID is a node's ed25519 public key, used as its network identity.
type NodeID [32]byte

func (n NodeID) String() string { return hex.EncodeToString(n[:]) }

// TradeID is derived deterministically from (batch_id, fill_sequence) so
// that every node computing the same batch produces the same trade ids
// without coordination.
type TradeID [16]byte

const tradeIDDomain = "openmatch:trade_id:v1:"

// DeriveTradeID computes the deterministic trade id for the fillSeq-th
// fill within batchID. batchID and fillSeq are encoded big-endian so the
// derivation is stable across platforms.
func DeriveTradeID(batchID uint64, fillSeq uint64) TradeID {
	var buf [8 + 8]byte
	binary.BigEndian.PutUint64(buf[0:8], batchID)
	binary.BigEndian.PutUint64(buf[8:16], fillSeq)

	h := sha256.New()
	h.Write([]byte(tradeIDDomain))
	h.Write(buf[:])
	sum := h.Sum(nil)

	var id TradeID
	copy(id[:], sum[:16])
	return id
}

func (t TradeID) String() string { return hex.EncodeToString(t[:]) }

func (t TradeID) IsNil() bool { return t == TradeID{} }
