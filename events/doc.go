// Package events fans access lifecycle notifications out to
// subscribers. Emitters publish a topic plus redacted metadata; the
// dispatcher dedupes replayed event ids and delivers to every handler
// registered for the topic. Webhook delivery builds on this package.
package events
