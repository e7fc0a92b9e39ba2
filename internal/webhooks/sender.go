// Package webhooks notifies an external endpoint about simulation events,
// such as completed orders, with signed JSON POSTs.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"foodsim/internal/metrics"
)

// Payload is the body of every delivery.
type Payload struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
	Data any       `json:"data"`
}

type delivery struct {
	id       string
	typ      string
	body     []byte
	attempts int
	next     time.Time
}

// Sender POSTs payloads to URL from its own goroutine. Failed deliveries are
// retried with exponential backoff until MaxAttempts.
type Sender struct {
	URL         string
	Secret      string
	HTTP        *http.Client
	Stop        chan struct{}
	MaxAttempts int
	RetryEvery  time.Duration

	queue chan delivery
	retry []delivery
	done  chan struct{}
}

func NewSender(url, secret string, buffer int) *Sender {
	max := 10
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			max = n
		}
	}
	return &Sender{
		URL:         url,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Stop:        make(chan struct{}),
		MaxAttempts: max,
		RetryEvery:  time.Second,
		queue:       make(chan delivery, buffer),
		done:        make(chan struct{}),
	}
}

// Send queues an event without blocking. It reports false when the payload
// could not be encoded or the queue is full.
func (s *Sender) Send(eventType string, data any) bool {
	p := Payload{ID: uuid.NewString(), Type: eventType, TS: time.Now().UTC(), Data: data}
	body, err := json.Marshal(p)
	if err != nil {
		log.Printf("webhooks: encode %s: %v", eventType, err)
		return false
	}
	select {
	case s.queue <- delivery{id: p.ID, typ: eventType, body: body}:
		return true
	default:
		metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
		log.Printf("webhooks: queue full, dropping %s", eventType)
		return false
	}
}

func (s *Sender) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.RetryEvery)
		defer ticker.Stop()
		for {
			select {
			case <-s.Stop:
				return
			case d := <-s.queue:
				s.deliver(d)
			case now := <-ticker.C:
				s.retryDue(now)
			}
		}
	}()
}

// Close stops the sender. Queued deliveries that were not attempted are dropped.
func (s *Sender) Close() {
	close(s.Stop)
	<-s.done
}

func (s *Sender) deliver(d delivery) {
	code, err := s.post(d)
	d.attempts++
	switch {
	case err == nil:
		metrics.WebhookDeliveries.WithLabelValues("ok").Inc()
	case d.attempts >= s.MaxAttempts:
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		log.Printf("webhooks: giving up on %s %s after %d attempts (status %d): %v", d.typ, d.id, d.attempts, code, err)
	default:
		metrics.WebhookDeliveries.WithLabelValues("retry").Inc()
		d.next = time.Now().Add(nextBackoff(d.attempts))
		s.retry = append(s.retry, d)
	}
}

func (s *Sender) post(d delivery) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(d.body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", d.typ)
	req.Header.Set("X-Delivery-Id", d.id)
	if s.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(s.Secret, d.body))
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (s *Sender) retryDue(now time.Time) {
	var due []delivery
	keep := s.retry[:0]
	for _, d := range s.retry {
		if now.Before(d.next) {
			keep = append(keep, d)
		} else {
			due = append(due, d)
		}
	}
	s.retry = keep
	for _, d := range due {
		s.deliver(d)
	}
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 12 {
		attempts = 12
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
