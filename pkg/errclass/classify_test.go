package errclass

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/creditor-inbox/pkg/capability"
	"github.com/example/creditor-inbox/pkg/services"
)

type fakeNetErr struct{}

func (fakeNetErr) Error() string   { return "net error" }
func (fakeNetErr) Timeout() bool   { return true }
func (fakeNetErr) Temporary() bool { return true }

func TestClassifyRateLimitIsTransient(t *testing.T) {
	err := &capability.RateLimitError{RetryAfter: time.Second}
	assert.Equal(t, Transient, Classify(err))
}

func TestClassifyContextErrorsAreTransient(t *testing.T) {
	assert.Equal(t, Transient, Classify(context.DeadlineExceeded))
	assert.Equal(t, Transient, Classify(context.Canceled))
	assert.Equal(t, Transient, Classify(fmtWrap(context.DeadlineExceeded)))
}

func TestClassifyNetErrorIsTransient(t *testing.T) {
	var netErr net.Error = fakeNetErr{}
	assert.Equal(t, Transient, Classify(netErr))
}

func TestClassifyValidationErrorIsPermanent(t *testing.T) {
	err := services.NewValidationError("client_name", "required")
	assert.Equal(t, Permanent, Classify(err))
}

func TestClassifyKnownSentinelsArePermanent(t *testing.T) {
	assert.Equal(t, Permanent, Classify(services.ErrInvalidInput))
	assert.Equal(t, Permanent, Classify(services.ErrNotFound))
}

func TestClassifyUnrecognizedErrorIsUnknown(t *testing.T) {
	assert.Equal(t, Unknown, Classify(errors.New("something odd")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Transient.Retryable())
	assert.True(t, Unknown.Retryable())
	assert.False(t, Permanent.Retryable())
}

func fmtWrap(err error) error {
	return errors.Join(err)
}
