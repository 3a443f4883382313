package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainwebhook "github.com/NordCoder/Aegis/internal/domain/webhook"
	"github.com/NordCoder/Aegis/internal/repository/memory"
)

type received struct {
	header http.Header
	body   string
}

func recordingServer(t *testing.T, status int, reply string) (*httptest.Server, func() []received) {
	t.Helper()
	var (
		mu  sync.Mutex
		got []received
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, received{header: r.Header.Clone(), body: string(b)})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []received {
		mu.Lock()
		defer mu.Unlock()
		return append([]received(nil), got...)
	}
}

func site(id int64, url, secret string) *domainwebhook.Site {
	return &domainwebhook.Site{ID: id, WebhookURL: &url, WebhookSecret: &secret}
}

func payload() domainwebhook.Payload {
	return domainwebhook.Payload{
		EventType: domainwebhook.EventUserRegistered,
		SiteID:    1,
		UserID:    42,
		Email:     "a<b>&c@example.com",
		AegisRole: "user",
		Timestamp: 1700000000,
	}
}

func newTestDispatcher(t *testing.T, events domainwebhook.EventRepo, cfg Config) *Dispatcher {
	t.Helper()
	d := NewDispatcher(cfg, nil, events, zap.NewNop(), WithClock(func() time.Time { return time.Unix(1234, 0) }))
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d
}

func TestDeliver_SignedRequestAndAudit(t *testing.T) {
	srv, got := recordingServer(t, http.StatusOK, "ok")
	store := memory.NewStore()
	d := newTestDispatcher(t, store.WebhookEvents(), Config{})

	ev := d.Deliver(context.Background(), site(1, srv.URL, "s3cret"), payload())
	require.NotNil(t, ev)

	reqs := got()
	require.Len(t, reqs, 1)
	want := `{"event_type":"user.registered","site_id":1,"user_id":42,"email":"a<b>&c@example.com","aegis_role":"user","timestamp":1700000000}`
	assert.Equal(t, want, reqs[0].body)
	assert.Equal(t, "application/json", reqs[0].header.Get("Content-Type"))
	assert.Equal(t, "user.registered", reqs[0].header.Get("X-Aegis-Event"))
	assert.Equal(t, "1700000000", reqs[0].header.Get("X-Aegis-Timestamp"))
	assert.Equal(t, "sha256="+ComputeSignature("s3cret", 1700000000, want), reqs[0].header.Get("X-Aegis-Signature"))

	events, err := store.WebhookEvents().ListBySite(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.NotZero(t, e.ID)
	assert.True(t, e.Success)
	require.NotNil(t, e.ResponseStatus)
	assert.Equal(t, http.StatusOK, *e.ResponseStatus)
	require.NotNil(t, e.ResponseBody)
	assert.Equal(t, "ok", *e.ResponseBody)
	assert.Equal(t, want, e.Payload)
	assert.Equal(t, "user.registered", e.EventType)
	assert.Equal(t, int64(1234), e.CreatedAt)
}

func TestDeliver_NonSuccessStatus(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusInternalServerError, strings.Repeat("x", 1500))
	store := memory.NewStore()
	d := newTestDispatcher(t, store.WebhookEvents(), Config{})

	ev := d.Deliver(context.Background(), site(2, srv.URL, "k"), payload())
	require.NotNil(t, ev)
	assert.False(t, ev.Success)
	require.NotNil(t, ev.ResponseStatus)
	assert.Equal(t, http.StatusInternalServerError, *ev.ResponseStatus)
	require.NotNil(t, ev.ResponseBody)
	assert.Len(t, *ev.ResponseBody, 1000)
}

func TestDeliver_BinaryResponseBodyIsStoredAsText(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusInternalServerError, "\xff\xfe\x00boom")
	store := memory.NewStore()
	d := newTestDispatcher(t, store.WebhookEvents(), Config{})

	ev := d.Deliver(context.Background(), site(2, srv.URL, "k"), payload())
	require.NotNil(t, ev)
	require.NotNil(t, ev.ResponseBody)
	body := *ev.ResponseBody
	assert.True(t, utf8.ValidString(body))
	assert.NotContains(t, body, "\x00")
	assert.Equal(t, "\uFFFDboom", body)

	events, err := store.WebhookEvents().ListBySite(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, body, *events[0].ResponseBody)
}

func TestDeliver_RedirectIsNotFollowed(t *testing.T) {
	target, got := recordingServer(t, http.StatusOK, "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	t.Cleanup(srv.Close)
	d := newTestDispatcher(t, memory.NewStore().WebhookEvents(), Config{})

	ev := d.Deliver(context.Background(), site(2, srv.URL, "k"), payload())
	require.NotNil(t, ev)
	assert.False(t, ev.Success)
	assert.Equal(t, http.StatusFound, *ev.ResponseStatus)
	assert.Empty(t, got())
}

func TestDeliver_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store := memory.NewStore()
	d := newTestDispatcher(t, store.WebhookEvents(), Config{})

	ev := d.Deliver(context.Background(), site(3, url, "k"), payload())
	require.NotNil(t, ev)
	assert.False(t, ev.Success)
	assert.Nil(t, ev.ResponseStatus)
	require.NotNil(t, ev.ResponseBody)
	assert.NotEmpty(t, *ev.ResponseBody)

	events, err := store.WebhookEvents().ListBySite(context.Background(), 3, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestDeliver_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	d := newTestDispatcher(t, memory.NewStore().WebhookEvents(), Config{Timeout: 50 * time.Millisecond})
	ev := d.Deliver(context.Background(), site(4, srv.URL, "k"), payload())
	require.NotNil(t, ev)
	assert.False(t, ev.Success)
	assert.Nil(t, ev.ResponseStatus)
}

type failingEvents struct{}

func (failingEvents) Create(context.Context, *domainwebhook.Event) error {
	return errors.New("db down")
}

func (failingEvents) ListBySite(context.Context, int64, int) ([]*domainwebhook.Event, error) {
	return nil, nil
}

func TestDeliver_AuditFailureIsSwallowed(t *testing.T) {
	srv, got := recordingServer(t, http.StatusOK, "")
	d := newTestDispatcher(t, failingEvents{}, Config{})

	ev := d.Deliver(context.Background(), site(5, srv.URL, "k"), payload())
	require.NotNil(t, ev)
	assert.True(t, ev.Success)
	assert.Len(t, got(), 1)
}

func TestSendWebhook_NoopWithoutSettings(t *testing.T) {
	store := memory.NewStore()
	d := newTestDispatcher(t, store.WebhookEvents(), Config{})

	url, secret := "http://127.0.0.1:1/hook", "k"
	for _, s := range []*domainwebhook.Site{
		nil,
		{ID: 6},
		{ID: 6, WebhookURL: &url},
		{ID: 6, WebhookSecret: &secret},
	} {
		d.SendWebhook(s, payload())
	}
	require.NoError(t, d.Close(context.Background()))

	events, err := store.WebhookEvents().ListBySite(context.Background(), 6, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSendWebhook_EveryTriggerAttemptedOnce(t *testing.T) {
	srv, got := recordingServer(t, http.StatusNoContent, "")
	store := memory.NewStore()
	d := NewDispatcher(Config{Workers: 2, QueueSize: 1}, nil, store.WebhookEvents(), zap.NewNop())

	const n = 25
	for i := 0; i < n; i++ {
		p := payload()
		p.UserID = int64(i)
		d.SendWebhook(site(7, srv.URL, "k"), p)
	}
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, got(), n)
	events, err := store.WebhookEvents().ListBySite(context.Background(), 7, 100)
	require.NoError(t, err)
	require.Len(t, events, n)
	for _, e := range events {
		assert.True(t, e.Success)
	}
}

func TestSendWebhook_ReturnsBeforeDelivery(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)

	d := NewDispatcher(Config{Workers: 1}, nil, memory.NewStore().WebhookEvents(), zap.NewNop())
	start := time.Now()
	d.SendWebhook(site(8, srv.URL, "k"), payload())
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestSendWebhook_AfterCloseDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	var hits sync.WaitGroup
	hits.Add(1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Done()
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	d := NewDispatcher(Config{Workers: 1}, nil, memory.NewStore().WebhookEvents(), zap.NewNop())
	require.NoError(t, d.Close(context.Background()))

	start := time.Now()
	d.SendWebhook(site(9, srv.URL, "k"), payload())
	assert.Less(t, time.Since(start), time.Second)

	// the delivery still happens, just outside the pool
	hits.Wait()
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "\uFFFDab", truncate("\xff\xfea\x00b", 5))
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "жж", truncate("жжж", 2))
	assert.Equal(t, "", truncate("abc", 0))
}
