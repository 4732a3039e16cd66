// Package gossip defines the narrow interface boundary to the excluded
// P2P transport (spec.md §1, §6): OpenMatch only needs to hand a
// BatchDigest to something that encrypts and forwards it to peers. The
// transport itself (peer discovery, pubsub, NAT traversal) is out of
// scope; this package owns only the envelope encryption those digests
// travel in between nodes that already know each other's public keys.
package gossip

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/nacl/box"

	"github.com/openibank/openmatch/internal/types"
	"github.com/openibank/openmatch/pkg/helpers"
)

// ErrNotForRecipient is returned by Open when the envelope names a
// different node as recipient.
var ErrNotForRecipient = errors.New("gossip: envelope not addressed to this node")

// ErrDecryptionFailed is returned by Open on ciphertext tamper or a
// mismatched key.
var ErrDecryptionFailed = errors.New("gossip: decryption failed")

// Envelope wraps one encrypted BatchDigest for delivery to a specific
// peer. Every field is safe to serialize and publish as-is.
type Envelope struct {
	Recipient       types.NodeID
	Sender          types.NodeID
	EphemeralPubKey [32]byte
	Nonce           [24]byte
	Ciphertext      []byte
}

// Publisher is the interface OpenMatch hands sealed-batch digests to; the
// transport implementation (out of scope) is responsible for actually
// reaching peers.
type Publisher interface {
	Publish(Envelope) error
}

// Encryptor seals and opens BatchDigest envelopes using this node's
// ed25519 identity key, converted to X25519 per peer exchange (the same
// Ed25519-to-Montgomery conversion used throughout the pack for NaCl box
// encryption over an Ed25519-keyed identity).
type Encryptor struct {
	self      types.NodeID
	x25519Priv [32]byte
}

// NewEncryptor derives an Encryptor's X25519 key from priv, an ed25519
// private key whose public half is self.
func NewEncryptor(self types.NodeID, priv ed25519.PrivateKey) (*Encryptor, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("gossip: invalid ed25519 private key length %d", len(priv))
	}
	x25519Priv := ed25519SeedToX25519(priv.Seed())
	return &Encryptor{self: self, x25519Priv: x25519Priv}, nil
}

// Seal encrypts digest for recipient, whose public key is recipientNode.
func (e *Encryptor) Seal(recipientNode types.NodeID, digest types.BatchDigest) (Envelope, error) {
	recipientX25519, err := nodeIDToX25519(recipientNode)
	if err != nil {
		return Envelope{}, err
	}

	ephemeralPub, ephemeralPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return Envelope{}, fmt.Errorf("gossip: generating ephemeral key: %w", err)
	}

	nonceBytes, err := helpers.GenerateSecureRandom(24)
	if err != nil {
		return Envelope{}, fmt.Errorf("gossip: generating nonce: %w", err)
	}
	var nonce [24]byte
	copy(nonce[:], nonceBytes)

	plaintext := encodeDigest(digest)
	ciphertext := box.Seal(nil, plaintext, &nonce, &recipientX25519, ephemeralPriv)

	return Envelope{
		Recipient:       recipientNode,
		Sender:          e.self,
		EphemeralPubKey: *ephemeralPub,
		Nonce:           nonce,
		Ciphertext:      ciphertext,
	}, nil
}

// Open decrypts env, which must be addressed to this Encryptor's node.
func (e *Encryptor) Open(env Envelope) (types.BatchDigest, error) {
	if env.Recipient != e.self {
		return types.BatchDigest{}, ErrNotForRecipient
	}

	plaintext, ok := box.Open(nil, env.Ciphertext, &env.Nonce, &env.EphemeralPubKey, &e.x25519Priv)
	if !ok {
		return types.BatchDigest{}, ErrDecryptionFailed
	}
	return decodeDigest(plaintext)
}

func encodeDigest(d types.BatchDigest) []byte {
	buf := make([]byte, 0, 8+32+8+32)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], d.Epoch)
	buf = append(buf, tmp[:]...)
	buf = append(buf, d.BatchHash[:]...)
	binary.BigEndian.PutUint64(tmp[:], uint64(d.Count))
	buf = append(buf, tmp[:]...)
	buf = append(buf, d.SealerNode[:]...)
	return buf
}

func decodeDigest(b []byte) (types.BatchDigest, error) {
	if len(b) != 8+32+8+32 {
		return types.BatchDigest{}, fmt.Errorf("gossip: malformed digest payload (%d bytes)", len(b))
	}
	var d types.BatchDigest
	d.Epoch = binary.BigEndian.Uint64(b[0:8])
	copy(d.BatchHash[:], b[8:40])
	d.Count = int(binary.BigEndian.Uint64(b[40:48]))
	copy(d.SealerNode[:], b[48:80])
	return d, nil
}

// ed25519SeedToX25519 derives an X25519 private key from an ed25519 seed,
// matching the standard "hash the seed, clamp" construction.
func ed25519SeedToX25519(seed []byte) [32]byte {
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	var out [32]byte
	copy(out[:], h[:32])
	return out
}

// nodeIDToX25519 converts a node's Ed25519 public key to its X25519
// Montgomery form for use with NaCl box.
func nodeIDToX25519(node types.NodeID) ([32]byte, error) {
	var out [32]byte
	edPoint, err := new(edwards25519.Point).SetBytes(node[:])
	if err != nil {
		return out, fmt.Errorf("gossip: invalid ed25519 public key: %w", err)
	}
	copy(out[:], edPoint.BytesMontgomery())
	return out, nil
}
