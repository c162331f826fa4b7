package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAttemptPolicy_BeforeAttemptAllowsWhenNoState(t *testing.T) {
	policy := NewAttemptPolicy(NewMemoryStateStore())

	err := policy.BeforeAttempt(context.Background(), AttemptKey{
		Operation:  "password_grant",
		Identifier: "ramona",
		RemoteIP:   "203.0.113.7",
	})
	if err != nil {
		t.Fatalf("expected no error when no state exists, got %v", err)
	}
}

func TestAttemptPolicy_FailuresEscalateIntoThrottle(t *testing.T) {
	store := NewMemoryStateStore()
	policy := NewAttemptPolicy(store)
	policy.FreeFailures = 2
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }

	key := AttemptKey{Operation: "password_grant", Identifier: "ramona", RemoteIP: "203.0.113.7"}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := policy.AfterAttempt(ctx, key, false); err != nil {
			t.Fatalf("record failure %d: %v", i, err)
		}
		if err := policy.BeforeAttempt(ctx, key); err != nil {
			t.Fatalf("attempt %d should still be allowed: %v", i, err)
		}
	}

	// The third failure crosses the free budget and opens the window.
	if err := policy.AfterAttempt(ctx, key, false); err != nil {
		t.Fatalf("record third failure: %v", err)
	}
	err := policy.BeforeAttempt(ctx, key)
	if err == nil {
		t.Fatal("expected throttle after the free budget is spent")
	}
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected ThrottledError, got %T", err)
	}
	if throttled.RetryAfter != policy.InitialBackoff {
		t.Fatalf("retry after = %s, want %s", throttled.RetryAfter, policy.InitialBackoff)
	}

	// Each further failure doubles the window.
	if err := policy.AfterAttempt(ctx, key, false); err != nil {
		t.Fatalf("record fourth failure: %v", err)
	}
	if err := policy.BeforeAttempt(ctx, key); !errors.As(err, &throttled) {
		t.Fatalf("expected ThrottledError, got %v", err)
	}
	if throttled.RetryAfter != 2*policy.InitialBackoff {
		t.Fatalf("retry after = %s, want %s", throttled.RetryAfter, 2*policy.InitialBackoff)
	}
}

func TestAttemptPolicy_SuccessClearsTheBucket(t *testing.T) {
	store := NewMemoryStateStore()
	policy := NewAttemptPolicy(store)
	policy.FreeFailures = 1
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }

	key := AttemptKey{Operation: "password_grant", Identifier: "ramona"}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := policy.AfterAttempt(ctx, key, false); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if err := policy.BeforeAttempt(ctx, key); err == nil {
		t.Fatal("expected throttle before success")
	}

	if err := policy.AfterAttempt(ctx, key, true); err != nil {
		t.Fatalf("record success: %v", err)
	}
	if err := policy.BeforeAttempt(ctx, key); err != nil {
		t.Fatalf("expected clean slate after success, got %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected state cleared, got %v", err)
	}
}

func TestAttemptPolicy_StaleFailuresDecay(t *testing.T) {
	store := NewMemoryStateStore()
	policy := NewAttemptPolicy(store)
	policy.FreeFailures = 1
	policy.FailureWindow = time.Minute
	now := time.Unix(1_700_000_000, 0).UTC()
	policy.Now = func() time.Time { return now }

	key := AttemptKey{Operation: "password_reset", Identifier: "ramona@example.com"}
	ctx := context.Background()

	if err := policy.AfterAttempt(ctx, key, false); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	// Well past the window the old failure no longer counts, so this
	// one lands back inside the free budget.
	now = now.Add(5 * time.Minute)
	if err := policy.AfterAttempt(ctx, key, false); err != nil {
		t.Fatalf("record late failure: %v", err)
	}
	if err := policy.BeforeAttempt(ctx, key); err != nil {
		t.Fatalf("expected stale failures to decay, got %v", err)
	}

	state, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Failures != 1 {
		t.Fatalf("failures = %d, want 1 after decay", state.Failures)
	}
}

func TestAttemptPolicy_KeysNormalize(t *testing.T) {
	store := NewMemoryStateStore()
	policy := NewAttemptPolicy(store)
	policy.FreeFailures = 1
	ctx := context.Background()

	if err := policy.AfterAttempt(ctx, AttemptKey{Operation: " Password_Grant ", Identifier: "Ramona"}, false); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if err := policy.AfterAttempt(ctx, AttemptKey{Operation: "password_grant", Identifier: "ramona"}, false); err != nil {
		t.Fatalf("record failure: %v", err)
	}

	state, err := store.Get(ctx, AttemptKey{Operation: "password_grant", Identifier: "ramona"})
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Failures != 2 {
		t.Fatalf("failures = %d, want 2 for the same normalized bucket", state.Failures)
	}
}
