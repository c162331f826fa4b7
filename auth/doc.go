// Package auth implements client authentication at the token endpoint.
//
// Confidential clients prove their identity before a grant is issued.
// Three methods are supported: client_secret (shared secret checked
// against the stored hash), private_key_jwt (an RS256 signed assertion
// verified against the client's registered public key), and
// tls_client_auth (the peer certificate fingerprint matched against the
// fingerprints on file). A Registry picks the method from the shape of
// the request and delegates to the matching strategy.
package auth
