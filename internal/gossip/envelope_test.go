package gossip

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/openibank/openmatch/internal/types"
)

func newNode(t *testing.T) (types.NodeID, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var id types.NodeID
	copy(id[:], pub)
	return id, priv
}

func TestSealOpenRoundTrip(t *testing.T) {
	aliceID, alicePriv := newNode(t)
	bobID, bobPriv := newNode(t)

	alice, err := NewEncryptor(aliceID, alicePriv)
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	bob, err := NewEncryptor(bobID, bobPriv)
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	digest := types.BatchDigest{Epoch: 7, Count: 3, SealerNode: aliceID}
	digest.BatchHash[0] = 0xAB

	env, err := alice.Seal(bobID, digest)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	got, err := bob.Open(env)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.Epoch != digest.Epoch || got.Count != digest.Count || got.BatchHash != digest.BatchHash {
		t.Fatalf("got %+v, want %+v", got, digest)
	}
}

func TestOpenRejectsWrongRecipient(t *testing.T) {
	aliceID, alicePriv := newNode(t)
	bobID, _ := newNode(t)
	carolID, carolPriv := newNode(t)

	alice, _ := NewEncryptor(aliceID, alicePriv)
	carol, _ := NewEncryptor(carolID, carolPriv)

	env, err := alice.Seal(bobID, types.BatchDigest{Epoch: 1})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	if _, err := carol.Open(env); err != ErrNotForRecipient {
		t.Fatalf("got %v, want ErrNotForRecipient", err)
	}
}
