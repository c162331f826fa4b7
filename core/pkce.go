package core

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// VerifyCodeChallenge checks a PKCE verifier against the challenge a
// grant was created with. Comparisons are constant time so a caller
// cannot probe the stored challenge byte by byte.
func VerifyCodeChallenge(challenge string, method ChallengeMethod, verifier string) error {
	switch method {
	case ChallengeMethodPlain:
		if subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) != 1 {
			return unauthorizedError("unauthorized code")
		}
		return nil
	case ChallengeMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		derived := base64.RawURLEncoding.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) != 1 {
			return unauthorizedError("unauthorized code")
		}
		return nil
	default:
		return unauthorizedError("unrecognized code challenge method")
	}
}

// S256Challenge derives the challenge a client would send for a given
// verifier. Handy for clients and tests.
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
