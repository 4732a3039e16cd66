package ingress

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/openibank/openmatch/internal/types"
	"github.com/openibank/openmatch/pkg/logging"
)

const batchHashDomain = "openmatch:batch:v1:"

// Sealer consumes a drained buffer and produces a SealedBatch plus its
// gossip-facing BatchDigest. One Sealer call corresponds to one epoch's
// worth of orders; batch_id is the epoch number, since this core runs
// exactly one batch per epoch (a design decision recorded in DESIGN.md).
type Sealer struct {
	node types.NodeID
	log  *logging.Logger
}

// NewSealer creates a Sealer that stamps sealed batches with sealerNode.
func NewSealer(sealerNode types.NodeID) *Sealer {
	return &Sealer{node: sealerNode, log: logging.GetDefault().Component("ingress")}
}

// Seal sorts orders into canonical order (by sequence, the pipeline's
// canonical tiebreaker — sequence is assigned atomically with admission
// and never revisited), computes batch_hash, and returns both the full
// SealedBatch and its compact BatchDigest.
func (s *Sealer) Seal(epoch uint64, orders []types.Order) (types.SealedBatch, types.BatchDigest) {
	canonical := make([]types.Order, len(orders))
	copy(canonical, orders)
	sort.Slice(canonical, func(i, j int) bool { return canonical[i].Sequence < canonical[j].Sequence })

	hash := computeBatchHash(epoch, canonical)

	batch := types.SealedBatch{
		Epoch:      epoch,
		BatchID:    epoch,
		Orders:     canonical,
		BatchHash:  hash,
		SealerNode: s.node,
	}
	digest := types.BatchDigest{
		Epoch:      epoch,
		BatchHash:  hash,
		Count:      len(canonical),
		SealerNode: s.node,
	}

	s.log.Info("batch sealed", "epoch", epoch, "count", len(canonical))
	return batch, digest
}

func computeBatchHash(epoch uint64, orders []types.Order) [32]byte {
	h := sha256.New()
	h.Write([]byte(batchHashDomain))

	var epochBuf [8]byte
	binary.BigEndian.PutUint64(epochBuf[:], epoch)
	h.Write(epochBuf[:])

	var countBuf [8]byte
	binary.BigEndian.PutUint64(countBuf[:], uint64(len(orders)))
	h.Write(countBuf[:])

	h.Write(types.CanonicalEncodeOrders(orders))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
