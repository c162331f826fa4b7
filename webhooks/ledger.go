package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

type DeliveryRecord struct {
	ID            string
	ClaimID       string
	EndpointID    string
	EventID       string
	Status        string
	Attempts      int
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger tracks one record per endpoint and event. Claim hands
// out a lease for the next attempt; a second claim on a processed or
// leased record reports claimed=false so duplicates collapse.
type DeliveryLedger interface {
	Claim(
		ctx context.Context,
		endpointID string,
		eventID string,
		payload []byte,
		lease time.Duration,
	) (DeliveryRecord, bool, error)
	Get(ctx context.Context, endpointID string, eventID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

type ledgerEntry struct {
	record  DeliveryRecord
	leaseAt time.Time
}

type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	entries map[string]*ledgerEntry
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		entries: map[string]*ledgerEntry{},
		claims:  map[string]string{},
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	endpointID string,
	eventID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: ledger is nil")
	}
	endpointID = strings.TrimSpace(endpointID)
	eventID = strings.TrimSpace(eventID)
	if endpointID == "" || eventID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: endpoint id and event id are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := l.now()
	key := endpointID + "|" + eventID

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[key]
	if !exists {
		l.nextID++
		record := DeliveryRecord{
			ID:         fmt.Sprintf("delivery_%d", l.nextID),
			ClaimID:    fmt.Sprintf("claim_%d", l.nextID),
			EndpointID: endpointID,
			EventID:    eventID,
			Status:     DeliveryStatusProcessing,
			Attempts:   1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		entry = &ledgerEntry{record: record, leaseAt: now.Add(lease)}
		l.entries[key] = entry
		l.claims[record.ClaimID] = key
		return record, true, nil
	}

	record := entry.record
	switch record.Status {
	case DeliveryStatusProcessed, DeliveryStatusDead:
		return record, false, nil
	case DeliveryStatusProcessing:
		if now.Before(entry.leaseAt) {
			return record, false, nil
		}
	case DeliveryStatusRetryReady:
		if record.NextAttemptAt != nil && now.Before(*record.NextAttemptAt) {
			return record, false, nil
		}
	}

	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.NextAttemptAt = nil
	record.UpdatedAt = now
	entry.record = record
	entry.leaseAt = now.Add(lease)
	return record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, endpointID string, eventID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[strings.TrimSpace(endpointID)+"|"+strings.TrimSpace(eventID)]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery not found")
	}
	return entry.record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return fmt.Errorf("webhooks: ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, err := l.entryForClaim(claimID)
	if err != nil {
		return err
	}
	entry.record.Status = DeliveryStatusProcessed
	entry.record.NextAttemptAt = nil
	entry.record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) Fail(
	_ context.Context,
	claimID string,
	_ error,
	nextAttemptAt time.Time,
	maxAttempts int,
) error {
	if l == nil {
		return fmt.Errorf("webhooks: ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, err := l.entryForClaim(claimID)
	if err != nil {
		return err
	}
	if maxAttempts > 0 && entry.record.Attempts >= maxAttempts {
		entry.record.Status = DeliveryStatusDead
		entry.record.NextAttemptAt = nil
		entry.record.UpdatedAt = l.now()
		return nil
	}
	entry.record.Status = DeliveryStatusRetryReady
	if !nextAttemptAt.IsZero() {
		at := nextAttemptAt.UTC()
		entry.record.NextAttemptAt = &at
	}
	entry.record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) entryForClaim(claimID string) (*ledgerEntry, error) {
	key, ok := l.claims[strings.TrimSpace(claimID)]
	if !ok {
		return nil, fmt.Errorf("webhooks: unknown claim %q", claimID)
	}
	entry, ok := l.entries[key]
	if !ok {
		return nil, fmt.Errorf("webhooks: claim %q has no delivery", claimID)
	}
	return entry, nil
}

func (l *MemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

var _ DeliveryLedger = (*MemoryDeliveryLedger)(nil)
