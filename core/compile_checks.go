package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ TokenService       = (*Service)(nil)
	_ TokenCodec         = (*RS256TokenCodec)(nil)
	_ CredentialVerifier = (*StoreCredentialVerifier)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
