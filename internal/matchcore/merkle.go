package matchcore

import (
	"crypto/sha256"

	"github.com/openibank/openmatch/internal/types"
)

const resultHashDomain = "openmatch:result:v1:"

// emptyTradeRoot is the fixed sentinel returned for a batch with no
// trades, so every node agrees on "nothing matched" without hashing an
// empty input differently.
var emptyTradeRoot = sha256.Sum256([]byte(resultHashDomain + "empty"))

// leafHash hashes a single trade's canonical encoding under the result
// domain separator: SHA-256(domain || canonical_encoding(trade)), per
// §4.6.4. No batch_id or trade-count prefix is added to a leaf (the
// trade's own encoding already carries its BatchID, and the count is
// implied by the batch the root is published alongside); adding a count
// would make the same trade hash differently depending on
// what else was in its batch, defeating cross-batch verifiability of an
// individual trade.
func leafHash(t types.Trade) [32]byte {
	h := sha256.New()
	h.Write([]byte(resultHashDomain))
	h.Write(types.CanonicalEncodeTrade(t))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func pairHash(left, right [32]byte) [32]byte {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// tradeRoot builds a binary Merkle tree over trades in the order given
// (canonical traversal order, never resorted), duplicating the final
// node of an odd level — the same convention Bitcoin's block Merkle tree
// uses — and returns the fixed sentinel for an empty trade list. batchID
// identifies which batch this root is published alongside; it plays no
// part in the leaf hashes themselves (see leafHash).
func tradeRoot(batchID uint64, trades []types.Trade) [32]byte {
	if len(trades) == 0 {
		return emptyTradeRoot
	}

	level := make([][32]byte, len(trades))
	for i, t := range trades {
		level[i] = leafHash(t)
	}

	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, pairHash(level[i], level[i+1]))
			} else {
				next = append(next, pairHash(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}

// VerifyTradeRoot reconstructs the Merkle root from trades and reports
// whether it matches root, per §6's verifier contract.
func VerifyTradeRoot(batchID uint64, trades []types.Trade, root [32]byte) bool {
	return tradeRoot(batchID, trades) == root
}
