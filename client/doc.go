// Package client is the SDK downstream services use to talk to a
// running token service over HTTP. It covers the token endpoint grants
// (password, client_credentials, authorization_code, refresh_token),
// a cached token source for service-to-service calls, and remote token
// introspection per RFC 7662.
package client
