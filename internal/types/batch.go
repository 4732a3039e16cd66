package types

// SealedBatch is the immutable input to MatchCore: a canonically ordered
// list of orders committed under batch_hash. Once produced it is never
// mutated, and is consumed exactly once.
type SealedBatch struct {
	Epoch      uint64
	BatchID    uint64
	Orders     []Order
	BatchHash  [32]byte
	SealerNode NodeID
}

// BatchDigest is the compact form of a SealedBatch published to gossip:
// equality of digests implies equivalent sealed batches.
type BatchDigest struct {
	Epoch      uint64
	BatchHash  [32]byte
	Count      int
	SealerNode NodeID
}
