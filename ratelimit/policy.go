package ratelimit

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
)

var ErrStateNotFound = errors.New("ratelimit: state not found")

// AttemptKey identifies a throttle bucket: the operation under
// protection, the credential identifier presented, and the caller
// address. Identifier and address throttle independently of each
// other only when callers build separate keys.
type AttemptKey struct {
	Operation  string
	Identifier string
	RemoteIP   string
}

type State struct {
	Key            AttemptKey
	Failures       int
	LastFailureAt  *time.Time
	ThrottledUntil *time.Time
	UpdatedAt      time.Time
}

type StateStore interface {
	Get(ctx context.Context, key AttemptKey) (State, error)
	Upsert(ctx context.Context, state State) error
	Clear(ctx context.Context, key AttemptKey) error
}

type ThrottledError struct {
	Operation  string
	Identifier string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf(
		"ratelimit: operation %q identifier %q throttled for %s",
		strings.TrimSpace(e.Operation),
		strings.TrimSpace(e.Identifier),
		e.RetryAfter,
	)
}

func (e ThrottledError) ToAccessError() *goerrors.Error {
	metadata := map[string]any{
		"operation": strings.TrimSpace(e.Operation),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New("Too many attempts", goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.AccessErrorRateLimited).
		WithMetadata(metadata)
}

// AttemptPolicy throttles repeated credential failures with an
// escalating backoff. Successful attempts clear the bucket; failures
// beyond FreeFailures start the throttle window, doubling on each
// further failure up to MaxBackoff. Failures older than FailureWindow
// do not count against the caller.
type AttemptPolicy struct {
	Store          StateStore
	Now            func() time.Time
	FreeFailures   int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	FailureWindow  time.Duration
}

func NewAttemptPolicy(store StateStore) *AttemptPolicy {
	return &AttemptPolicy{
		Store:          store,
		Now:            func() time.Time { return time.Now().UTC() },
		FreeFailures:   5,
		InitialBackoff: time.Second,
		MaxBackoff:     15 * time.Minute,
		FailureWindow:  15 * time.Minute,
	}
}

func (p *AttemptPolicy) BeforeAttempt(ctx context.Context, key AttemptKey) error {
	if p == nil || p.Store == nil {
		return nil
	}
	state, err := p.Store.Get(ctx, normalizeKey(key))
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return nil
		}
		return err
	}

	now := p.now()
	if until := state.ThrottledUntil; until != nil && now.Before(*until) {
		return ThrottledError{
			Operation:  state.Key.Operation,
			Identifier: state.Key.Identifier,
			RetryAfter: until.Sub(now),
		}
	}
	return nil
}

func (p *AttemptPolicy) AfterAttempt(ctx context.Context, key AttemptKey, success bool) error {
	if p == nil || p.Store == nil {
		return nil
	}
	key = normalizeKey(key)
	if success {
		return p.Store.Clear(ctx, key)
	}

	now := p.now()
	state, err := p.Store.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if errors.Is(err, ErrStateNotFound) {
		state = State{Key: key}
	}

	if last := state.LastFailureAt; last != nil && now.Sub(*last) > p.failureWindow() {
		state.Failures = 0
	}
	state.Failures++
	state.LastFailureAt = &now
	state.UpdatedAt = now

	if over := state.Failures - p.freeFailures(); over > 0 {
		until := now.Add(p.nextBackoff(over))
		state.ThrottledUntil = &until
	} else {
		state.ThrottledUntil = nil
	}
	return p.Store.Upsert(ctx, state)
}

func (p *AttemptPolicy) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *AttemptPolicy) freeFailures() int {
	if p != nil && p.FreeFailures > 0 {
		return p.FreeFailures
	}
	return 5
}

func (p *AttemptPolicy) failureWindow() time.Duration {
	if p != nil && p.FailureWindow > 0 {
		return p.FailureWindow
	}
	return 15 * time.Minute
}

func (p *AttemptPolicy) nextBackoff(over int) time.Duration {
	initial := p.InitialBackoff
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.MaxBackoff
	if maximum <= 0 {
		maximum = 15 * time.Minute
	}
	if over <= 0 {
		return initial
	}
	delay := initial
	for i := 1; i < over; i++ {
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

func normalizeKey(key AttemptKey) AttemptKey {
	return AttemptKey{
		Operation:  strings.TrimSpace(strings.ToLower(key.Operation)),
		Identifier: strings.TrimSpace(strings.ToLower(key.Identifier)),
		RemoteIP:   strings.TrimSpace(key.RemoteIP),
	}
}

type MemoryStateStore struct {
	mu    sync.RWMutex
	items map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{items: map[string]State{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key AttemptKey) (State, error) {
	if s == nil {
		return State{}, fmt.Errorf("ratelimit: state store is nil")
	}
	normalized := normalizeKey(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.items[stateKey(normalized)]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	state.Key = normalizeKey(state.Key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[stateKey(state.Key)] = state
	return nil
}

func (s *MemoryStateStore) Clear(_ context.Context, key AttemptKey) error {
	if s == nil {
		return fmt.Errorf("ratelimit: state store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, stateKey(normalizeKey(key)))
	return nil
}

func stateKey(key AttemptKey) string {
	return key.Operation + "|" + key.Identifier + "|" + key.RemoteIP
}
