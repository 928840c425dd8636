package gateway_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/asheth-dev/backend-daan/internal/gateway"
)

func TestSignMatchesManualDigest(t *testing.T) {
	secret := "test_secret"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("order_ABC|pay_XYZ"))
	want := hex.EncodeToString(mac.Sum(nil))

	got := gateway.Sign(secret, "order_ABC", "pay_XYZ")
	if got != want {
		t.Fatalf("Sign = %s, want %s", got, want)
	}
}

func TestVerifySignature(t *testing.T) {
	secret := "test_secret"
	sig := gateway.Sign(secret, "order_ABC", "pay_XYZ")

	if !gateway.VerifySignature(secret, "order_ABC", "pay_XYZ", sig) {
		t.Fatal("correct signature did not verify")
	}

	// Altering any single character must fail verification.
	for i := range sig {
		altered := []byte(sig)
		if altered[i] == 'a' {
			altered[i] = 'b'
		} else {
			altered[i] = 'a'
		}
		if gateway.VerifySignature(secret, "order_ABC", "pay_XYZ", string(altered)) {
			t.Fatalf("altered signature at index %d verified", i)
		}
	}

	if gateway.VerifySignature(secret, "order_DEF", "pay_XYZ", sig) {
		t.Fatal("signature verified against a different order id")
	}
	if gateway.VerifySignature("", "order_ABC", "pay_XYZ", sig) {
		t.Fatal("empty secret verified")
	}
	if gateway.VerifySignature(secret, "order_ABC", "pay_XYZ", "") {
		t.Fatal("empty signature verified")
	}
}
