package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const signaturePrefix = "sha256="

// SignPayload computes the delivery signature a receiver checks
// against the endpoint's shared secret.
func SignPayload(secret string, payload []byte) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", fmt.Errorf("webhooks: signing secret is required")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature is the receiver-side counterpart of SignPayload.
func VerifySignature(secret string, payload []byte, signature string) error {
	expected, err := SignPayload(secret, payload)
	if err != nil {
		return err
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("webhooks: signature is required")
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}
