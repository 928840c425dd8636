package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign computes the checkout callback signature for the given order/payment
// pair: the hex-encoded HMAC-SHA256 of "orderID|paymentID" under the key
// secret. This is the digest the gateway attaches to its browser callback.
func Sign(secret, orderID, paymentID string) string {
	if strings.TrimSpace(secret) == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID))
	mac.Write([]byte("|"))
	mac.Write([]byte(paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the expected callback signature and compares it
// to the provided one in constant time. An empty secret or signature never
// verifies.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected := Sign(secret, orderID, paymentID)
	provided := strings.TrimSpace(signature)
	if expected == "" || provided == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(provided))
}
