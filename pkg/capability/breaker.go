package capability

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// NewBreaker constructs a gobreaker.CircuitBreaker with the shared settings
// used by all three external-capability wrappers below. Every state change
// is logged through slog; the notifier argument is not called, so no admin
// alert is sent on any transition.
func NewBreaker(name string, failMax uint32, resetTimeout time.Duration, notifier Notifier) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failMax
		},
		Timeout: resetTimeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from, "to", to)
			if from == gobreaker.StateOpen && to == gobreaker.StateHalfOpen {
				return
			}
		},
	})
}

// BreakerLLMClient wraps an LLMClient with a circuit breaker so repeated
// provider failures short-circuit future calls instead of piling up
// timeouts against an already-unhealthy dependency.
type BreakerLLMClient struct {
	inner   LLMClient
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerLLMClient(inner LLMClient, breaker *gobreaker.CircuitBreaker) *BreakerLLMClient {
	return &BreakerLLMClient{inner: inner, breaker: breaker}
}

func (c *BreakerLLMClient) Classify(ctx context.Context, prompt, model string, maxTokens int, temperature float64) (Result, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.inner.Classify(ctx, prompt, model, maxTokens, temperature)
	})
	if err != nil {
		return Result{}, err
	}
	return out.(Result), nil
}

func (c *BreakerLLMClient) Vision(ctx context.Context, mediaBytes []byte, mediaType, prompt string) (Result, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.inner.Vision(ctx, mediaBytes, mediaType, prompt)
	})
	if err != nil {
		return Result{}, err
	}
	return out.(Result), nil
}

// BreakerSecondaryStore wraps a SecondaryStoreAdapter with a circuit breaker
// guarding the secondary store's reachability.
type BreakerSecondaryStore struct {
	inner   SecondaryStoreAdapter
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerSecondaryStore(inner SecondaryStoreAdapter, breaker *gobreaker.CircuitBreaker) *BreakerSecondaryStore {
	return &BreakerSecondaryStore{inner: inner, breaker: breaker}
}

func (c *BreakerSecondaryStore) GetClientByTicket(ctx context.Context, ticketID string) (ClientRecord, error) {
	out, err := c.breaker.Execute(func() (any, error) { return c.inner.GetClientByTicket(ctx, ticketID) })
	if err != nil {
		return ClientRecord{}, err
	}
	return out.(ClientRecord), nil
}

func (c *BreakerSecondaryStore) GetClientByName(ctx context.Context, first, last string) (ClientRecord, error) {
	out, err := c.breaker.Execute(func() (any, error) { return c.inner.GetClientByName(ctx, first, last) })
	if err != nil {
		return ClientRecord{}, err
	}
	return out.(ClientRecord), nil
}

func (c *BreakerSecondaryStore) GetClientByCaseNumber(ctx context.Context, az string) (ClientRecord, error) {
	out, err := c.breaker.Execute(func() (any, error) { return c.inner.GetClientByCaseNumber(ctx, az) })
	if err != nil {
		return ClientRecord{}, err
	}
	return out.(ClientRecord), nil
}

func (c *BreakerSecondaryStore) UpdateCreditorDebt(ctx context.Context, client ClientSelector, creditor CreditorSelector, update DebtUpdate) (bool, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		return c.inner.UpdateCreditorDebt(ctx, client, creditor, update)
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}

// BreakerAttachmentStore wraps an AttachmentStore with a circuit breaker
// guarding storage reachability.
type BreakerAttachmentStore struct {
	inner   AttachmentStore
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerAttachmentStore(inner AttachmentStore, breaker *gobreaker.CircuitBreaker) *BreakerAttachmentStore {
	return &BreakerAttachmentStore{inner: inner, breaker: breaker}
}

func (c *BreakerAttachmentStore) Size(ctx context.Context, url string) (int64, error) {
	out, err := c.breaker.Execute(func() (any, error) { return c.inner.Size(ctx, url) })
	if err != nil {
		return 0, err
	}
	return out.(int64), nil
}

func (c *BreakerAttachmentStore) Download(ctx context.Context, url string, maxBytes int64) (io.ReadCloser, error) {
	out, err := c.breaker.Execute(func() (any, error) { return c.inner.Download(ctx, url, maxBytes) })
	if err != nil {
		return nil, err
	}
	return out.(io.ReadCloser), nil
}
