package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/telecare/telecare/pkg/apperrors"
)

// signatureTolerance bounds how old a signed webhook may be before it is
// rejected as a possible replay.
const signatureTolerance = 5 * time.Minute

// VerifySignature checks a Stripe-style signature header of the form
// "t=<unix>,v1=<hex hmac>" against the raw request payload. The signed
// message is "<t>.<payload>" and the MAC is HMAC-SHA256 under the endpoint
// secret. Multiple v1 entries are accepted if any matches.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	if header == "" {
		return apperrors.SignatureInvalid("missing signature header")
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "t="):
			timestamp = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v1="):
			candidates = append(candidates, strings.TrimPrefix(part, "v1="))
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return apperrors.SignatureInvalid("malformed signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return apperrors.SignatureInvalid("malformed signature timestamp")
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return apperrors.SignatureInvalid("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, cand := range candidates {
		sig, err := hex.DecodeString(cand)
		if err != nil {
			continue
		}
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return apperrors.SignatureInvalid("signature mismatch")
}

// SignPayload produces a signature header for a payload, used by tests and
// by local tooling that simulates provider callbacks.
func SignPayload(payload []byte, secret string, now time.Time) string {
	timestamp := strconv.FormatInt(now.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + timestamp + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
