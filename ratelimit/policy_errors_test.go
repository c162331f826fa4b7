package ratelimit

import (
	"testing"
	"time"

	"github.com/goliatone/go-access/core"
)

func TestThrottledError_ToAccessError(t *testing.T) {
	err := ThrottledError{
		Operation:  "password_grant",
		Identifier: "ramona",
		RetryAfter: 3 * time.Second,
	}

	mapped := err.ToAccessError()
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.TextCode != core.AccessErrorRateLimited {
		t.Fatalf("expected %q text code, got %q", core.AccessErrorRateLimited, mapped.TextCode)
	}
	if mapped.Code != 429 {
		t.Fatalf("expected status code 429, got %d", mapped.Code)
	}
	if mapped.Metadata["retry_after_ms"] != int64(3000) {
		t.Fatalf("expected retry hint metadata, got %v", mapped.Metadata["retry_after_ms"])
	}
	// The envelope must not echo the credential identifier.
	if _, ok := mapped.Metadata["identifier"]; ok {
		t.Fatal("identifier must not leak into error metadata")
	}
}
