package application

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"

	"request-gatekeeper/middleware/gatekeeper/domain"
)

type SignatureEncoding string

const (
	EncodingBase64 SignatureEncoding = "base64"
	EncodingHex    SignatureEncoding = "hex"
)

// SignatureVerifier calcula e confere HMAC-SHA256 sobre
// METHOD + path+query + corpo + timestamp + id.
type SignatureVerifier struct {
	Encoding SignatureEncoding
}

func (v SignatureVerifier) ExpectedSignature(method, pathAndQuery string, body []byte, timestamp int64, callerID string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strings.ToUpper(method)))
	mac.Write([]byte(pathAndQuery))
	mac.Write(body)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte(callerID))
	sum := mac.Sum(nil)

	if v.Encoding == EncodingHex {
		return hex.EncodeToString(sum)
	}
	return base64.StdEncoding.EncodeToString(sum)
}

// Verify recalcula a assinatura e compara em tempo constante.
func (v SignatureVerifier) Verify(env domain.SignedRequestEnvelope, secret []byte) bool {
	expected := v.ExpectedSignature(env.Method, env.PathAndQuery, env.Body, env.Timestamp, env.CallerID, secret)
	return hmac.Equal([]byte(expected), []byte(env.Signature))
}
