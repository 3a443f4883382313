package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSignature(t *testing.T) {
	body := `{"event_type":"user.registered","site_id":1}`
	got := ComputeSignature("s3cret", 1700000000, body)

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write([]byte("1700000000." + body))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), got)
	assert.Len(t, got, 64)

	assert.Equal(t, got, ComputeSignature("s3cret", 1700000000, body), "deterministic")
	assert.NotEqual(t, got, ComputeSignature("other", 1700000000, body))
	assert.NotEqual(t, got, ComputeSignature("s3cret", 1700000001, body))
	assert.NotEqual(t, got, ComputeSignature("s3cret", 1700000000, body+" "))
}

func TestVerifySignature(t *testing.T) {
	sig := ComputeSignature("k", 5, "{}")
	assert.True(t, VerifySignature("k", 5, "{}", "sha256="+sig))
	assert.False(t, VerifySignature("k", 5, "{}", sig))
	assert.False(t, VerifySignature("k", 6, "{}", "sha256="+sig))
}

func TestGenerateWebhookSecret(t *testing.T) {
	a, err := GenerateWebhookSecret()
	require.NoError(t, err)
	b, err := GenerateWebhookSecret()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	_, err = hex.DecodeString(a)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
