package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/goliatone/go-access/core"
)

func TestTLSClientAuth_FingerprintCaseInsensitive(t *testing.T) {
	key := testRSAKey(t)
	cert := testCertificate(t, key)
	clients := stubClients{clients: map[string]core.Client{
		"client_console": {ID: "client_console", IsConfidential: true},
	}}

	strategy := NewTLSClientAuthStrategy(clients, FingerprintResolverFunc(
		func(context.Context, string) ([]string, error) {
			return []string{strings.ToUpper(CertificateFingerprint(cert.Raw))}, nil
		}))

	client, err := strategy.Authenticate(context.Background(), ClientAuthRequest{
		ClientID:        "client_console",
		PeerCertificate: cert,
	})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if client.ID != "client_console" {
		t.Fatalf("client id = %q", client.ID)
	}
}

func TestTLSClientAuth_MissingCertificateRejected(t *testing.T) {
	clients := stubClients{clients: map[string]core.Client{
		"client_console": {ID: "client_console", IsConfidential: true},
	}}
	strategy := NewTLSClientAuthStrategy(clients, FingerprintResolverFunc(
		func(context.Context, string) ([]string, error) { return nil, nil }))

	_, err := strategy.Authenticate(context.Background(), ClientAuthRequest{ClientID: "client_console"})
	assertCredentialRejection(t, err)
}

func TestTLSClientAuth_PublicClientRejected(t *testing.T) {
	key := testRSAKey(t)
	cert := testCertificate(t, key)
	clients := stubClients{clients: map[string]core.Client{
		"client_widget": {ID: "client_widget", IsConfidential: false},
	}}
	strategy := NewTLSClientAuthStrategy(clients, FingerprintResolverFunc(
		func(context.Context, string) ([]string, error) {
			return []string{CertificateFingerprint(cert.Raw)}, nil
		}))

	_, err := strategy.Authenticate(context.Background(), ClientAuthRequest{
		ClientID:        "client_widget",
		PeerCertificate: cert,
	})
	assertCredentialRejection(t, err)
}
