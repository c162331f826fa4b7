package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-access/core"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	TopicTokenIssued            = "access.token.issued"
	TopicTokenRefreshed         = "access.token.refreshed"
	TopicTokenRevoked           = "access.token.revoked"
	TopicPersonRegistered       = "access.person.registered"
	TopicEmailVerified          = "access.person.email_verified"
	TopicClientRegistered       = "access.client.registered"
	TopicPasswordResetCompleted = "access.password_reset.completed"
	TopicGrantsReaped           = "access.grants.reaped"
)

var supportedTopics = map[string]struct{}{
	TopicTokenIssued:            {},
	TopicTokenRefreshed:         {},
	TopicTokenRevoked:           {},
	TopicPersonRegistered:       {},
	TopicEmailVerified:          {},
	TopicClientRegistered:       {},
	TopicPasswordResetCompleted: {},
	TopicGrantsReaped:           {},
}

// Event is a lifecycle notification. Metadata carries identifiers
// only; tokens, hashes and key material never travel through here.
type Event struct {
	ID         string
	Topic      string
	OccurredAt time.Time
	Subject    core.SubjectRef
	Metadata   map[string]any
}

type Handler interface {
	Name() string
	Handle(ctx context.Context, evt Event) error
}

type HandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, evt Event) error
}

func (h HandlerFunc) Name() string { return h.HandlerName }

func (h HandlerFunc) Handle(ctx context.Context, evt Event) error {
	if h.Fn == nil {
		return eventInternal("events: handler func is nil", nil)
	}
	return h.Fn(ctx, evt)
}

// DedupeStore remembers delivered event ids so replays from a
// retrying emitter fan out once.
type DedupeStore interface {
	Seen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

type Dispatcher struct {
	Dedupe    DedupeStore
	DedupeTTL time.Duration
	Now       func() time.Time

	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		Dedupe:    NewMemoryDedupeStore(),
		DedupeTTL: 10 * time.Minute,
		Now:       func() time.Time { return time.Now().UTC() },
		handlers:  map[string][]Handler{},
	}
}

// Subscribe attaches handler to each topic. A handler name may appear
// once per topic.
func (d *Dispatcher) Subscribe(handler Handler, topics ...string) error {
	if d == nil {
		return eventInternal("events: dispatcher is nil", nil)
	}
	if handler == nil {
		return eventBadInput("events: handler is nil", nil)
	}
	name := strings.TrimSpace(handler.Name())
	if name == "" {
		return eventBadInput("events: handler name is required", nil)
	}
	if len(topics) == 0 {
		return eventBadInput("events: at least one topic is required", map[string]any{"handler": name})
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, topic := range topics {
		topic = normalizeTopic(topic)
		if !isSupportedTopic(topic) {
			return eventBadInput(
				fmt.Sprintf("events: unsupported topic %q", topic),
				map[string]any{"handler": name, "topic": topic},
			)
		}
		for _, existing := range d.handlers[topic] {
			if existing.Name() == name {
				return eventError(
					fmt.Sprintf("events: handler %q already subscribed to %q", name, topic),
					goerrors.CategoryConflict,
					http.StatusConflict,
					core.AccessErrorConflict,
					map[string]any{"handler": name, "topic": topic},
				)
			}
		}
		d.handlers[topic] = append(d.handlers[topic], handler)
	}
	return nil
}

// Publish delivers evt to every subscriber of its topic. Handler
// failures do not stop the fan-out; they come back joined.
func (d *Dispatcher) Publish(ctx context.Context, evt Event) error {
	if d == nil {
		return eventInternal("events: dispatcher is nil", nil)
	}
	evt.Topic = normalizeTopic(evt.Topic)
	if !isSupportedTopic(evt.Topic) {
		return eventBadInput(
			fmt.Sprintf("events: unsupported topic %q", evt.Topic),
			map[string]any{"topic": evt.Topic},
		)
	}
	if strings.TrimSpace(evt.ID) == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = d.now()
	}

	if d.Dedupe != nil {
		seen, err := d.Dedupe.Seen(ctx, evt.ID, d.dedupeTTL())
		if err != nil {
			return eventWrapError(
				err,
				goerrors.CategoryOperation,
				"events: dedupe check failed",
				http.StatusInternalServerError,
				core.AccessErrorInternal,
				map[string]any{"event_id": evt.ID, "topic": evt.Topic},
			)
		}
		if seen {
			return nil
		}
	}

	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers[evt.Topic]...)
	d.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler.Handle(ctx, evt); err != nil {
			errs = append(errs, eventWrapError(
				err,
				goerrors.CategoryOperation,
				fmt.Sprintf("events: handler %q failed", handler.Name()),
				http.StatusInternalServerError,
				core.AccessErrorInternal,
				map[string]any{"event_id": evt.ID, "topic": evt.Topic, "handler": handler.Name()},
			))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) dedupeTTL() time.Duration {
	if d != nil && d.DedupeTTL > 0 {
		return d.DedupeTTL
	}
	return 10 * time.Minute
}

func normalizeTopic(topic string) string {
	return strings.TrimSpace(strings.ToLower(topic))
}

func isSupportedTopic(topic string) bool {
	_, ok := supportedTopics[topic]
	return ok
}

type dedupeEntry struct {
	ExpiresAt time.Time
}

type MemoryDedupeStore struct {
	mu      sync.Mutex
	entries map[string]dedupeEntry
	Now     func() time.Time
}

func NewMemoryDedupeStore() *MemoryDedupeStore {
	return &MemoryDedupeStore{
		entries: map[string]dedupeEntry{},
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryDedupeStore) Seen(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	if s == nil {
		return false, eventInternal("events: dedupe store is nil", nil)
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, eventBadInput("events: event id is required", nil)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[eventID]; ok && now.Before(entry.ExpiresAt) {
		return true, nil
	}
	s.entries[eventID] = dedupeEntry{ExpiresAt: now.Add(ttl)}
	for id, entry := range s.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(s.entries, id)
		}
	}
	return false, nil
}

func (s *MemoryDedupeStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
