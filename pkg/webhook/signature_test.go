package webhook

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testSecret() string {
	return secretPrefix + base64.StdEncoding.EncodeToString([]byte("super-secret-key"))
}

func TestVerifySucceedsWithValidSignature(t *testing.T) {
	secret := testSecret()
	key, err := decodeSecret(secret)
	assert.NoError(t, err)

	now := time.Now().Unix()
	body := []byte(`{"id":"evt_1"}`)
	sig := sign(key, "evt_1", now, body)

	err = Verify(secret, "evt_1", now, body, "v1,"+sig, time.Minute)
	assert.NoError(t, err)
}

func TestVerifyFailsOnTamperedBody(t *testing.T) {
	secret := testSecret()
	key, err := decodeSecret(secret)
	assert.NoError(t, err)

	now := time.Now().Unix()
	sig := sign(key, "evt_1", now, []byte(`{"id":"evt_1"}`))

	err = Verify(secret, "evt_1", now, []byte(`{"id":"evt_2"}`), "v1,"+sig, time.Minute)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyFailsOutsideTolerance(t *testing.T) {
	secret := testSecret()
	key, err := decodeSecret(secret)
	assert.NoError(t, err)

	stale := time.Now().Add(-time.Hour).Unix()
	body := []byte(`{"id":"evt_1"}`)
	sig := sign(key, "evt_1", stale, body)

	err = Verify(secret, "evt_1", stale, body, "v1,"+sig, time.Minute)
	assert.ErrorIs(t, err, ErrTimestampOutOfTolerance)
}

func TestVerifyAcceptsMultipleSignatureEntries(t *testing.T) {
	secret := testSecret()
	key, err := decodeSecret(secret)
	assert.NoError(t, err)

	now := time.Now().Unix()
	body := []byte(`{"id":"evt_1"}`)
	sig := sign(key, "evt_1", now, body)

	header := "v1,deadbeef v1," + sig
	err = Verify(secret, "evt_1", now, body, header, time.Minute)
	assert.NoError(t, err)
}

func TestVerifyRejectsInvalidSecret(t *testing.T) {
	err := Verify("not-a-whsec-value", "evt_1", time.Now().Unix(), nil, "v1,abc", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidSecret)
}
