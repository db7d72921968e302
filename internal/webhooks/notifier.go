// Package webhooks posts final run events to an external endpoint, signed
// with HMAC-SHA256 and retried with exponential backoff.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
)

const (
	SignatureHeader = "X-Signature"
	EventHeader     = "X-Event-Type"
	queueSize       = 256
)

type delivery struct {
	id        string
	runID     string
	eventType string
	payload   []byte
}

// Notifier implements the runner's publisher interface. Only run.completed
// and run.failed are delivered; progress events are ignored.
type Notifier struct {
	URL         string
	Secret      string
	MaxAttempts int
	HTTP        *http.Client
	Log         logrus.FieldLogger

	backoff func(attempt int) time.Duration
	queue   chan delivery
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewNotifier(url, secret string, maxAttempts int, log logrus.FieldLogger) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Notifier{
		URL:         url,
		Secret:      secret,
		MaxAttempts: maxAttempts,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Log:         log,
		backoff:     nextBackoff,
		queue:       make(chan delivery, queueSize),
		stop:        make(chan struct{}),
	}
}

func (n *Notifier) Publish(runID string, evt model.Event) {
	if evt.Type != model.EventRunCompleted && evt.Type != model.EventRunFailed {
		return
	}
	id := uuid.NewString()
	body, err := json.Marshal(map[string]any{
		"id":   id,
		"type": evt.Type,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": evt.Data,
	})
	if err != nil {
		return
	}
	select {
	case n.queue <- delivery{id: id, runID: runID, eventType: evt.Type, payload: body}:
	default:
		metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
		n.Log.WithField("run_id", runID).Warn("webhook queue full, dropping event")
	}
}

// Start launches the delivery worker.
func (n *Notifier) Start() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-n.stop:
				n.drain()
				return
			case d := <-n.queue:
				n.send(d)
			}
		}
	}()
}

// Close stops the worker after one last attempt at each queued event.
func (n *Notifier) Close() error {
	n.once.Do(func() { close(n.stop) })
	n.wg.Wait()
	return nil
}

func (n *Notifier) drain() {
	for {
		select {
		case d := <-n.queue:
			if err := n.deliver(d); err != nil {
				metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
				n.Log.WithError(err).WithField("run_id", d.runID).Warn("webhook dropped at shutdown")
			} else {
				metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			}
		default:
			return
		}
	}
}

func (n *Notifier) send(d delivery) {
	log := n.Log.WithFields(logrus.Fields{"run_id": d.runID, "event": d.eventType, "delivery_id": d.id})
	for attempt := 0; attempt < n.MaxAttempts; attempt++ {
		err := n.deliver(d)
		if err == nil {
			metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			return
		}
		log.WithError(err).WithField("attempt", attempt+1).Debug("webhook attempt failed")
		if attempt+1 == n.MaxAttempts {
			metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
			log.WithError(err).Warn("webhook delivery failed")
			return
		}
		select {
		case <-time.After(n.backoff(attempt)):
		case <-n.stop:
			metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
			return
		}
	}
}

func (n *Notifier) deliver(d delivery) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(d.payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, d.eventType)
	if n.Secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(n.Secret, d.payload))
	}
	resp, err := n.HTTP.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the lowercase hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value ("sha256=<hex>" or bare hex)
// against body.
func Verify(secret string, body []byte, header string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(header, "sha256="))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

func nextBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 10 {
		attempt = 10
	}
	d := time.Second * time.Duration(1<<attempt)
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}
