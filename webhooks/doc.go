// Package webhooks pushes access lifecycle events to subscriber
// endpoints. Deliveries are signed with the endpoint's shared secret,
// deduped through a delivery ledger, debounced per endpoint and topic,
// and retried with exponential backoff until the attempt budget runs
// out.
package webhooks
