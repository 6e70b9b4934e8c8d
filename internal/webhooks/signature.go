package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// SignatureHeader carries "sha256=<hex hmac>" of the request body.
const SignatureHeader = "X-Signature"

const sigPrefix = "sha256="

// SignHMAC returns the header value for body signed with secret.
func SignHMAC(secret string, body []byte) string {
	return sigPrefix + hex.EncodeToString(mac(secret, body))
}

// VerifyHMAC checks a SignatureHeader value against body. The "sha256="
// prefix is optional.
func VerifyHMAC(secret string, body []byte, provided string) bool {
	b, err := hex.DecodeString(strings.TrimPrefix(provided, sigPrefix))
	if err != nil {
		return false
	}
	return hmac.Equal(mac(secret, body), b)
}

// VerifyRequest checks the signature header of a received callback.
func VerifyRequest(r *http.Request, secret string, body []byte) bool {
	return VerifyHMAC(secret, body, r.Header.Get(SignatureHeader))
}

func mac(secret string, body []byte) []byte {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(body)
	return m.Sum(nil)
}
