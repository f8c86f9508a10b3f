// Package webhook implements the ingress signature verification described
// in §6: HMAC-SHA256 over "{id}.{timestamp}.{raw_body}" with a
// whsec_<base64>-encoded provider secret, tolerant of a space-separated
// list of "v1,<sig>" entries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSecret is returned when the configured secret is not in the
// expected whsec_<base64> form.
var ErrInvalidSecret = errors.New("webhook: secret is not a valid whsec_<base64> value")

// ErrSignatureMismatch is returned when no signature entry in the header
// verifies against the computed HMAC.
var ErrSignatureMismatch = errors.New("webhook: signature verification failed")

// ErrTimestampOutOfTolerance is returned when the signed timestamp is
// further from now than the configured tolerance.
var ErrTimestampOutOfTolerance = errors.New("webhook: timestamp outside tolerance window")

const secretPrefix = "whsec_"

// decodeSecret extracts the raw HMAC key from a whsec_<base64> string.
func decodeSecret(secret string) ([]byte, error) {
	if !strings.HasPrefix(secret, secretPrefix) {
		return nil, ErrInvalidSecret
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, secretPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return key, nil
}

// sign computes the hex-encoded HMAC-SHA256 over "{id}.{timestamp}.{body}".
func sign(key []byte, id string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a webhook request's signature header against the expected
// HMAC, tolerant of a space-separated list of "v1,<sig>" entries (only one
// needs to match) and of a bounded clock skew on the timestamp.
func Verify(secret, id string, timestamp int64, body []byte, signatureHeader string, tolerance time.Duration) error {
	key, err := decodeSecret(secret)
	if err != nil {
		return err
	}

	if tolerance > 0 {
		skew := time.Since(time.Unix(timestamp, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > tolerance {
			return ErrTimestampOutOfTolerance
		}
	}

	expected := sign(key, id, timestamp, body)
	expectedBytes := []byte(expected)

	for _, entry := range strings.Fields(signatureHeader) {
		parts := strings.SplitN(entry, ",", 2)
		if len(parts) != 2 || parts[0] != "v1" {
			continue
		}
		if hmac.Equal([]byte(parts[1]), expectedBytes) {
			return nil
		}
	}
	return ErrSignatureMismatch
}
