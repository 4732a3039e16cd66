package security

import (
	"testing"

	"github.com/openibank/openmatch/internal/types"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	key, err := GenerateIssuerKey()
	if err != nil {
		t.Fatalf("GenerateIssuerKey: %v", err)
	}

	orderID := types.NewID()
	user := types.NewID()
	msg := ReservationSignedMessage(orderID, user, "USDT", types.NewAmountFromInt(50000), 1)

	sig := key.Sign(msg)
	if !Verify(key.Public, msg, sig) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	key, _ := GenerateIssuerKey()
	orderID := types.NewID()
	user := types.NewID()
	msg := ReservationSignedMessage(orderID, user, "USDT", types.NewAmountFromInt(50000), 1)
	sig := key.Sign(msg)

	tampered := ReservationSignedMessage(orderID, user, "USDT", types.NewAmountFromInt(50001), 1)
	if Verify(key.Public, tampered, sig) {
		t.Fatal("expected tampered message to fail verification")
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	key, _ := GenerateIssuerKey()
	other, _ := GenerateIssuerKey()
	msg := ReservationSignedMessage(types.NewID(), types.NewID(), "BTC", types.NewAmountFromInt(1), 7)
	sig := key.Sign(msg)

	if Verify(other.Public, msg, sig) {
		t.Fatal("expected verification against the wrong issuer key to fail")
	}
}
