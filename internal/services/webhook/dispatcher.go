// Package webhook delivers signed event notifications to tenant sites and
// records every attempt.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domainwebhook "github.com/NordCoder/Aegis/internal/domain/webhook"
)

type Config struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	MaxBody   int           `mapstructure:"max_body"`
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.QueueSize < 0 {
		c.QueueSize = 0
	}
	if c.MaxBody <= 0 {
		c.MaxBody = 1000
	}
	return c
}

type job struct {
	siteID  int64
	url     string
	secret  string
	payload domainwebhook.Payload
}

var _ domainwebhook.Sender = (*Dispatcher)(nil)

// Dispatcher posts webhooks from a fixed pool of workers. SendWebhook never
// blocks on the network: when the queue is full the delivery runs on its own
// goroutine instead of being dropped. There are no retries.
type Dispatcher struct {
	cfg     Config
	client  *http.Client
	events  domainwebhook.EventRepo
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time

	queue  chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

func WithMetrics(m *Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }

func NewDispatcher(cfg Config, client *http.Client, events domainwebhook.EventRepo, log *zap.Logger, opts ...Option) *Dispatcher {
	cfg = cfg.withDefaults()
	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}
	d := &Dispatcher{
		cfg:    cfg,
		client: client,
		events: events,
		log:    log.With(zap.String("component", "webhook.dispatcher")),
		now:    time.Now,
		queue:  make(chan job, cfg.QueueSize),
	}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(nil)
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go func() {
			defer d.wg.Done()
			for j := range d.queue {
				d.deliver(context.Background(), j)
			}
		}()
	}
	return d
}

// SendWebhook schedules one delivery of p to the site. It is a no-op unless
// the site has both a webhook URL and a secret.
func (d *Dispatcher) SendWebhook(site *domainwebhook.Site, p domainwebhook.Payload) {
	if !site.WebhookEnabled() {
		return
	}
	j := job{siteID: site.ID, url: *site.WebhookURL, secret: *site.WebhookSecret, payload: p}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("dispatcher closed, delivering outside the pool", zap.Int64("site_id", j.siteID))
		go d.deliver(context.Background(), j)
		return
	}

	select {
	case d.queue <- j:
	default:
		d.metrics.overflow.Inc()
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(context.Background(), j)
		}()
	}
}

// Close stops accepting queued work and waits for in-flight deliveries or
// for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("webhook dispatcher drain: %w", ctx.Err())
	}
}

// encodePayload serializes p compactly without HTML escaping.
func encodePayload(p domainwebhook.Payload) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})), nil
}

// truncate keeps at most n characters of s. Invalid UTF-8 becomes U+FFFD
// and NUL bytes are dropped so the text is storable in a TEXT column.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Deliver performs one attempt synchronously and returns the audit record,
// or nil when the site has no webhook configured.
func (d *Dispatcher) Deliver(ctx context.Context, site *domainwebhook.Site, p domainwebhook.Payload) *domainwebhook.Event {
	if !site.WebhookEnabled() {
		return nil
	}
	return d.deliver(ctx, job{siteID: site.ID, url: *site.WebhookURL, secret: *site.WebhookSecret, payload: p})
}

func (d *Dispatcher) deliver(ctx context.Context, j job) *domainwebhook.Event {
	tr := otel.Tracer("webhook.dispatcher")
	ctx, span := tr.Start(ctx, "webhook.deliver", trace.WithAttributes(
		attribute.Int64("site.id", j.siteID),
		attribute.String("webhook.event", j.payload.EventType),
	))
	defer span.End()
	log := d.log.With(zap.Int64("site_id", j.siteID), zap.String("event_type", j.payload.EventType))

	ev := &domainwebhook.Event{
		SiteID:    j.siteID,
		EventType: j.payload.EventType,
	}

	body, err := encodePayload(j.payload)
	if err != nil {
		msg := truncate(err.Error(), d.cfg.MaxBody)
		ev.ResponseBody = &msg
		d.audit(ctx, log, ev)
		return ev
	}
	ev.Payload = body

	status, respBody, err := d.post(ctx, j, body)
	switch {
	case err != nil:
		msg := truncate(err.Error(), d.cfg.MaxBody)
		ev.ResponseBody = &msg
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		log.Warn("webhook delivery failed", zap.Error(err))
		d.metrics.deliveries.WithLabelValues("error").Inc()
	default:
		ev.ResponseStatus = &status
		ev.ResponseBody = &respBody
		ev.Success = status >= 200 && status < 300
		span.SetAttributes(attribute.Int("http.status_code", status))
		outcome := "success"
		if !ev.Success {
			outcome = "rejected"
			log.Info("webhook rejected", zap.Int("status", status))
		}
		d.metrics.deliveries.WithLabelValues(outcome).Inc()
	}

	d.audit(ctx, log, ev)
	return ev
}

func (d *Dispatcher) post(ctx context.Context, j job, body string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, bytes.NewBufferString(body))
	if err != nil {
		return 0, "", err
	}
	ts := j.payload.Timestamp
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Aegis-Signature", signaturePrefix+ComputeSignature(j.secret, ts, body))
	req.Header.Set("X-Aegis-Event", j.payload.EventType)
	req.Header.Set("X-Aegis-Timestamp", strconv.FormatInt(ts, 10))

	start := time.Now()
	resp, err := d.client.Do(req)
	d.metrics.duration.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	// Up to 4 bytes per character is enough to fill MaxBody characters.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, int64(d.cfg.MaxBody)*utf8.UTFMax))
	if err != nil {
		d.log.Debug("read webhook response", zap.Error(err))
	}
	return resp.StatusCode, truncate(string(raw), d.cfg.MaxBody), nil
}

func (d *Dispatcher) audit(ctx context.Context, log *zap.Logger, ev *domainwebhook.Event) {
	ev.CreatedAt = d.now().Unix()
	if err := d.events.Create(ctx, ev); err != nil {
		d.metrics.auditErr.Inc()
		log.Error("failed to record webhook event", zap.Error(err))
	}
}
