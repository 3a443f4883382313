package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

const signaturePrefix = "sha256="

// ComputeSignature returns hex(HMAC-SHA256(secret, "<timestamp>.<body>")).
func ComputeSignature(secret string, timestamp int64, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte{'.'})
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an X-Aegis-Signature header value in constant time.
func VerifySignature(secret string, timestamp int64, body, header string) bool {
	want := signaturePrefix + ComputeSignature(secret, timestamp, body)
	return hmac.Equal([]byte(want), []byte(header))
}

// GenerateWebhookSecret returns 32 random bytes as 64 hex characters.
func GenerateWebhookSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}
