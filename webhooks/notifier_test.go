package webhooks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-access/events"
)

type stubSender struct {
	status     int
	err        error
	deliveries []Delivery
}

func (s *stubSender) Send(_ context.Context, delivery Delivery) (int, error) {
	s.deliveries = append(s.deliveries, delivery)
	if s.err != nil {
		return 0, s.err
	}
	if s.status == 0 {
		return 200, nil
	}
	return s.status, nil
}

func revokeEvent(id string) events.Event {
	return events.Event{
		ID:         id,
		Topic:      events.TopicTokenRevoked,
		OccurredAt: time.Unix(1_700_000_000, 0).UTC(),
		Metadata:   map[string]any{"grant_id": "grant_1"},
	}
}

func TestNotifier_DeliversSignedPayloadToMatchingEndpoints(t *testing.T) {
	sender := &stubSender{}
	notifier := NewNotifier(sender, NewMemoryDeliveryLedger())
	ctx := context.Background()

	if err := notifier.AddEndpoint(Endpoint{
		ID:     "audit",
		URL:    "https://audit.example.com/hooks",
		Secret: "audit-secret",
		Topics: []string{events.TopicTokenRevoked},
	}); err != nil {
		t.Fatalf("add endpoint: %v", err)
	}
	if err := notifier.AddEndpoint(Endpoint{
		ID:     "billing",
		URL:    "https://billing.example.com/hooks",
		Secret: "billing-secret",
		Topics: []string{events.TopicTokenIssued},
	}); err != nil {
		t.Fatalf("add endpoint: %v", err)
	}

	if err := notifier.Handle(ctx, revokeEvent("evt_1")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(sender.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1 (billing is not subscribed)", len(sender.deliveries))
	}
	delivery := sender.deliveries[0]
	if delivery.EndpointID != "audit" {
		t.Fatalf("endpoint = %s, want audit", delivery.EndpointID)
	}
	if err := VerifySignature("audit-secret", delivery.Payload, delivery.Signature); err != nil {
		t.Fatalf("verify signature: %v", err)
	}
	if err := VerifySignature("wrong-secret", delivery.Payload, delivery.Signature); err == nil {
		t.Fatal("expected signature mismatch with the wrong secret")
	}

	record, err := notifier.Ledger.Get(ctx, "audit", "evt_1")
	if err != nil {
		t.Fatalf("get ledger record: %v", err)
	}
	if record.Status != DeliveryStatusProcessed {
		t.Fatalf("status = %s, want processed", record.Status)
	}
}

func TestNotifier_DuplicateEventsDedupe(t *testing.T) {
	sender := &stubSender{}
	notifier := NewNotifier(sender, NewMemoryDeliveryLedger())
	ctx := context.Background()

	if err := notifier.AddEndpoint(Endpoint{
		ID:     "audit",
		URL:    "https://audit.example.com/hooks",
		Secret: "audit-secret",
	}); err != nil {
		t.Fatalf("add endpoint: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := notifier.Handle(ctx, revokeEvent("evt_1")); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}
	if len(sender.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1 after dedupe", len(sender.deliveries))
	}
}

func TestNotifier_FailedSendSchedulesRetryThenDead(t *testing.T) {
	sender := &stubSender{err: errors.New("endpoint offline")}
	ledger := NewMemoryDeliveryLedger()
	now := time.Unix(1_700_000_000, 0).UTC()
	ledger.Now = func() time.Time { return now }

	notifier := NewNotifier(sender, ledger)
	notifier.MaxAttempts = 2
	notifier.Now = func() time.Time { return now }
	ctx := context.Background()

	if err := notifier.AddEndpoint(Endpoint{
		ID:     "audit",
		URL:    "https://audit.example.com/hooks",
		Secret: "audit-secret",
	}); err != nil {
		t.Fatalf("add endpoint: %v", err)
	}

	evt := revokeEvent("evt_1")
	if err := notifier.Handle(ctx, evt); err == nil {
		t.Fatal("expected send failure to propagate")
	}
	record, err := ledger.Get(ctx, "audit", "evt_1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Status != DeliveryStatusRetryReady {
		t.Fatalf("status = %s, want retry_ready", record.Status)
	}
	if record.NextAttemptAt == nil || !record.NextAttemptAt.After(now.Add(-time.Second)) {
		t.Fatalf("next attempt = %v, want scheduled", record.NextAttemptAt)
	}

	// Too early: the retry window has not opened yet.
	if err := notifier.Handle(ctx, evt); err != nil {
		t.Fatalf("early redelivery must dedupe, got %v", err)
	}
	if len(sender.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1 before the retry window", len(sender.deliveries))
	}

	// Past the window the second attempt runs and exhausts the budget.
	now = now.Add(time.Minute)
	if err := notifier.Handle(ctx, evt); err == nil {
		t.Fatal("expected second send failure")
	}
	record, err = ledger.Get(ctx, "audit", "evt_1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Status != DeliveryStatusDead {
		t.Fatalf("status = %s, want dead after max attempts", record.Status)
	}
	if record.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", record.Attempts)
	}
}

func TestNotifier_Non2xxStatusSchedulesRetry(t *testing.T) {
	sender := &stubSender{status: 503}
	notifier := NewNotifier(sender, NewMemoryDeliveryLedger())
	ctx := context.Background()

	if err := notifier.AddEndpoint(Endpoint{
		ID:     "audit",
		URL:    "https://audit.example.com/hooks",
		Secret: "audit-secret",
	}); err != nil {
		t.Fatalf("add endpoint: %v", err)
	}

	if err := notifier.Handle(ctx, revokeEvent("evt_1")); err == nil {
		t.Fatal("expected 503 to surface as an error")
	}
	record, err := notifier.Ledger.Get(ctx, "audit", "evt_1")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Status != DeliveryStatusRetryReady {
		t.Fatalf("status = %s, want retry_ready", record.Status)
	}
}

func TestNotifier_BurstControlCollapsesRapidDeliveries(t *testing.T) {
	sender := &stubSender{}
	notifier := NewNotifier(sender, NewMemoryDeliveryLedger())
	now := time.Unix(1_700_000_000, 0).UTC()
	notifier.Burst = NewBurstController(BurstOptions{
		Mode:   BurstModeDebounce,
		Window: 2 * time.Second,
		Now:    func() time.Time { return now },
	})
	ctx := context.Background()

	if err := notifier.AddEndpoint(Endpoint{
		ID:     "audit",
		URL:    "https://audit.example.com/hooks",
		Secret: "audit-secret",
	}); err != nil {
		t.Fatalf("add endpoint: %v", err)
	}

	if err := notifier.Handle(ctx, revokeEvent("evt_1")); err != nil {
		t.Fatalf("handle first: %v", err)
	}
	// A distinct event inside the window collapses; its ledger record
	// completes without a send.
	if err := notifier.Handle(ctx, revokeEvent("evt_2")); err != nil {
		t.Fatalf("handle second: %v", err)
	}
	if len(sender.deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1 inside the burst window", len(sender.deliveries))
	}
	record, err := notifier.Ledger.Get(ctx, "audit", "evt_2")
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Status != DeliveryStatusProcessed {
		t.Fatalf("status = %s, want processed for a collapsed delivery", record.Status)
	}

	now = now.Add(5 * time.Second)
	if err := notifier.Handle(ctx, revokeEvent("evt_3")); err != nil {
		t.Fatalf("handle third: %v", err)
	}
	if len(sender.deliveries) != 2 {
		t.Fatalf("deliveries = %d, want 2 after the window", len(sender.deliveries))
	}
}

func TestNotifier_EndpointValidation(t *testing.T) {
	notifier := NewNotifier(&stubSender{}, NewMemoryDeliveryLedger())

	cases := []struct {
		name     string
		endpoint Endpoint
	}{
		{"missing id", Endpoint{URL: "https://x.example.com", Secret: "s"}},
		{"missing url", Endpoint{ID: "a", Secret: "s"}},
		{"relative url", Endpoint{ID: "a", URL: "/hooks", Secret: "s"}},
		{"missing secret", Endpoint{ID: "a", URL: "https://x.example.com"}},
	}
	for _, tc := range cases {
		if err := notifier.AddEndpoint(tc.endpoint); err == nil {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}

	valid := Endpoint{ID: "a", URL: "https://x.example.com", Secret: "s"}
	if err := notifier.AddEndpoint(valid); err != nil {
		t.Fatalf("add valid endpoint: %v", err)
	}
	if err := notifier.AddEndpoint(valid); err == nil {
		t.Fatal("expected duplicate endpoint rejection")
	}
}
