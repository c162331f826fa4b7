package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-access/events"
)

// Endpoint is a webhook subscriber. An empty Topics list means every
// topic.
type Endpoint struct {
	ID     string
	URL    string
	Secret string
	Topics []string
}

func (e Endpoint) wantsTopic(topic string) bool {
	if len(e.Topics) == 0 {
		return true
	}
	for _, candidate := range e.Topics {
		if strings.EqualFold(strings.TrimSpace(candidate), topic) {
			return true
		}
	}
	return false
}

type Delivery struct {
	EndpointID string
	URL        string
	EventID    string
	Topic      string
	Payload    []byte
	Signature  string
	Attempt    int
}

type Sender interface {
	Send(ctx context.Context, delivery Delivery) (statusCode int, err error)
}

// Notifier subscribes to the event dispatcher and fans each event out
// to every matching endpoint. It satisfies events.Handler.
type Notifier struct {
	Sender      Sender
	Ledger      DeliveryLedger
	Burst       BurstController
	RetryPolicy RetryPolicy
	ClaimLease  time.Duration
	MaxAttempts int
	Now         func() time.Time

	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

func NewNotifier(sender Sender, ledger DeliveryLedger) *Notifier {
	return &Notifier{
		Sender:      sender,
		Ledger:      ledger,
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  30 * time.Second,
		MaxAttempts: 8,
		Now:         func() time.Time { return time.Now().UTC() },
		endpoints:   map[string]Endpoint{},
	}
}

func (n *Notifier) AddEndpoint(endpoint Endpoint) error {
	if n == nil {
		return fmt.Errorf("webhooks: notifier is nil")
	}
	endpoint.ID = strings.TrimSpace(endpoint.ID)
	endpoint.URL = strings.TrimSpace(endpoint.URL)
	if endpoint.ID == "" {
		return fmt.Errorf("webhooks: endpoint id is required")
	}
	if endpoint.URL == "" {
		return fmt.Errorf("webhooks: endpoint url is required")
	}
	parsed, err := url.Parse(endpoint.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("webhooks: endpoint url %q is not absolute", endpoint.URL)
	}
	if strings.TrimSpace(endpoint.Secret) == "" {
		return fmt.Errorf("webhooks: endpoint secret is required")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.endpoints[endpoint.ID]; exists {
		return fmt.Errorf("webhooks: endpoint %q already registered", endpoint.ID)
	}
	n.endpoints[endpoint.ID] = endpoint
	return nil
}

func (n *Notifier) RemoveEndpoint(id string) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.endpoints, strings.TrimSpace(id))
}

func (n *Notifier) Name() string { return "webhooks" }

func (n *Notifier) Handle(ctx context.Context, evt events.Event) error {
	if n == nil || n.Sender == nil || n.Ledger == nil {
		return fmt.Errorf("webhooks: notifier requires sender and ledger")
	}
	payload, err := json.Marshal(deliveryPayload{
		ID:          evt.ID,
		Topic:       evt.Topic,
		OccurredAt:  evt.OccurredAt.UTC().Format(time.RFC3339),
		SubjectKind: string(evt.Subject.Kind),
		SubjectID:   evt.Subject.ID,
		Metadata:    evt.Metadata,
	})
	if err != nil {
		return fmt.Errorf("webhooks: encode event payload: %w", err)
	}

	n.mu.RLock()
	targets := make([]Endpoint, 0, len(n.endpoints))
	for _, endpoint := range n.endpoints {
		if endpoint.wantsTopic(evt.Topic) {
			targets = append(targets, endpoint)
		}
	}
	n.mu.RUnlock()
	sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })

	var errs []error
	for _, endpoint := range targets {
		if err := n.deliver(ctx, endpoint, evt, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) deliver(ctx context.Context, endpoint Endpoint, evt events.Event, payload []byte) error {
	record, claimed, err := n.Ledger.Claim(ctx, endpoint.ID, evt.ID, payload, n.claimLease())
	if err != nil {
		return fmt.Errorf("webhooks: claim delivery for %q: %w", endpoint.ID, err)
	}
	if !claimed {
		return nil
	}

	if n.Burst != nil {
		decision, burstErr := n.Burst.Allow(ctx, endpoint.ID, evt.Topic)
		if burstErr != nil {
			return burstErr
		}
		if !decision.Allow {
			return n.Ledger.Complete(ctx, record.ClaimID)
		}
	}

	signature, err := SignPayload(endpoint.Secret, payload)
	if err != nil {
		return err
	}
	status, sendErr := n.Sender.Send(ctx, Delivery{
		EndpointID: endpoint.ID,
		URL:        endpoint.URL,
		EventID:    evt.ID,
		Topic:      evt.Topic,
		Payload:    payload,
		Signature:  signature,
		Attempt:    record.Attempts,
	})
	if sendErr == nil && status >= 200 && status < 300 {
		return n.Ledger.Complete(ctx, record.ClaimID)
	}

	if sendErr == nil {
		sendErr = fmt.Errorf("webhooks: endpoint %q returned status %d", endpoint.ID, status)
	}
	nextAttemptAt := n.now().Add(n.retryPolicy().NextDelay(record.Attempts))
	if failErr := n.Ledger.Fail(ctx, record.ClaimID, sendErr, nextAttemptAt, n.maxAttempts()); failErr != nil {
		return errors.Join(sendErr, failErr)
	}
	return sendErr
}

// Redeliver retries a single endpoint/event pair whose ledger record
// is retry ready. Callers drive it from a periodic sweep.
func (n *Notifier) Redeliver(ctx context.Context, endpointID string, evt events.Event, payload []byte) error {
	if n == nil {
		return fmt.Errorf("webhooks: notifier is nil")
	}
	n.mu.RLock()
	endpoint, ok := n.endpoints[strings.TrimSpace(endpointID)]
	n.mu.RUnlock()
	if !ok {
		return fmt.Errorf("webhooks: unknown endpoint %q", endpointID)
	}
	return n.deliver(ctx, endpoint, evt, payload)
}

func (n *Notifier) now() time.Time {
	if n != nil && n.Now != nil {
		return n.Now().UTC()
	}
	return time.Now().UTC()
}

func (n *Notifier) retryPolicy() RetryPolicy {
	if n != nil && n.RetryPolicy != nil {
		return n.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (n *Notifier) claimLease() time.Duration {
	if n != nil && n.ClaimLease > 0 {
		return n.ClaimLease
	}
	return 30 * time.Second
}

func (n *Notifier) maxAttempts() int {
	if n != nil && n.MaxAttempts > 0 {
		return n.MaxAttempts
	}
	return 8
}

type deliveryPayload struct {
	ID          string         `json:"id"`
	Topic       string         `json:"topic"`
	OccurredAt  string         `json:"occurred_at"`
	SubjectKind string         `json:"subject_kind,omitempty"`
	SubjectID   string         `json:"subject_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// HTTPSender posts deliveries with the signature and topic headers
// receivers verify against.
type HTTPSender struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPSender() *HTTPSender {
	return &HTTPSender{Timeout: 10 * time.Second}
}

func (s *HTTPSender) Send(ctx context.Context, delivery Delivery) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("webhooks: sender is nil")
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return 0, fmt.Errorf("webhooks: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Access-Signature", delivery.Signature)
	req.Header.Set("X-Access-Event-Id", delivery.EventID)
	req.Header.Set("X-Access-Topic", delivery.Topic)

	res, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhooks: send delivery: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		_ = res.Body.Close()
	}()
	return res.StatusCode, nil
}

var _ events.Handler = (*Notifier)(nil)
var _ Sender = (*HTTPSender)(nil)
