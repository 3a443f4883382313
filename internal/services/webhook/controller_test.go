package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainwebhook "github.com/NordCoder/Aegis/internal/domain/webhook"
	"github.com/NordCoder/Aegis/internal/repository/memory"
)

type captureSender struct {
	mu    sync.Mutex
	sites []*domainwebhook.Site
	sent  []domainwebhook.Payload
}

func (c *captureSender) SendWebhook(s *domainwebhook.Site, p domainwebhook.Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sites = append(c.sites, s)
	c.sent = append(c.sent, p)
}

type brokenSites struct{}

func (brokenSites) GetWebhookSite(context.Context, int64) (*domainwebhook.Site, error) {
	return nil, errors.New("connection refused")
}

func TestHandleUserEvent(t *testing.T) {
	store := memory.NewStore()
	url, secret := "https://example.com/hook", "k"
	store.Sites().Put(domainwebhook.Site{ID: 1, WebhookURL: &url, WebhookSecret: &secret})

	sender := &captureSender{}
	h := &Handler{Log: zap.NewNop(), Sites: store.Sites(), Sender: sender}

	ev := &domainwebhook.UserEvent{
		EventType: domainwebhook.EventEmailChanged,
		SiteID:    1,
		UserID:    9,
		Email:     "new@example.com",
		AegisRole: "admin",
		At:        1700000000,
	}
	require.NoError(t, h.HandleUserEvent(context.Background(), ev))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, domainwebhook.Payload{
		EventType: domainwebhook.EventEmailChanged,
		SiteID:    1,
		UserID:    9,
		Email:     "new@example.com",
		AegisRole: "admin",
		Timestamp: 1700000000,
	}, sender.sent[0])
	assert.Equal(t, int64(1), sender.sites[0].ID)
}

func TestHandleUserEvent_SkipsUnknownAndMalformed(t *testing.T) {
	sender := &captureSender{}
	h := &Handler{Log: zap.NewNop(), Sites: memory.NewStore().Sites(), Sender: sender}

	require.NoError(t, h.HandleUserEvent(context.Background(), &domainwebhook.UserEvent{EventType: "user.deleted", SiteID: 404}))
	require.NoError(t, h.HandleUserEvent(context.Background(), &domainwebhook.UserEvent{SiteID: 1}))
	assert.Empty(t, sender.sent)
}

func TestHandleUserEvent_StoreError(t *testing.T) {
	h := &Handler{Log: zap.NewNop(), Sites: brokenSites{}, Sender: &captureSender{}}
	err := h.HandleUserEvent(context.Background(), &domainwebhook.UserEvent{EventType: "user.deleted", SiteID: 1})
	require.Error(t, err)
}
