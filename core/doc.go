// Package core contains the canonical access domain contracts, entities,
// and orchestration logic: token grant issuance and rotation, and the
// role/scope permission resolver. Storage and transport adapters depend
// on this package; core depends on neither.
package core
