package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/example/creditor-inbox/pkg/capability"
)

// anthropicLLMClient is the production capability.LLMClient, wrapping
// anthropic-sdk-go (§6: no concrete LLM client lives in the core).
type anthropicLLMClient struct {
	client *anthropic.Client
}

func newAnthropicLLMClient(apiKey string) *anthropicLLMClient {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &anthropicLLMClient{client: &c}
}

func (a *anthropicLLMClient) Classify(ctx context.Context, prompt, model string, maxTokens int, temperature float64) (capability.Result, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return capability.Result{}, mapAnthropicErr(err)
	}
	return capability.Result{
		Text: concatText(resp.Content),
		Usage: capability.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

func (a *anthropicLLMClient) Vision(ctx context.Context, mediaBytes []byte, mediaType, prompt string) (capability.Result, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude3_5HaikuLatest,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mediaType, encodeBase64(mediaBytes)),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return capability.Result{}, mapAnthropicErr(err)
	}
	return capability.Result{
		Text: concatText(resp.Content),
		Usage: capability.Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

func concatText(blocks []anthropic.ContentBlockUnion) string {
	var buf bytes.Buffer
	for _, b := range blocks {
		buf.WriteString(b.Text)
	}
	return buf.String()
}

func mapAnthropicErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return &capability.RateLimitError{RetryAfter: 30 * time.Second}
	}
	return err
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// httpAttachmentStore fetches attachments from plain HTTP(S) URLs only. An
// internal <scheme>://<bucket>/<path> URL is handed to net/http unchanged
// and is not resolved to a bucket object, so the request fails.
type httpAttachmentStore struct {
	client *http.Client
}

func newHTTPAttachmentStore() *httpAttachmentStore {
	return &httpAttachmentStore{client: &http.Client{Timeout: 30 * time.Second}}
}

func (s *httpAttachmentStore) Size(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("attachment store: HEAD %s: status %d", url, resp.StatusCode)
	}
	return resp.ContentLength, nil
}

func (s *httpAttachmentStore) Download(ctx context.Context, url string, maxBytes int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("attachment store: GET %s: status %d", url, resp.StatusCode)
	}
	return &limitedReadCloser{r: io.LimitReader(resp.Body, maxBytes), c: resp.Body}, nil
}

type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error                { return l.c.Close() }

// httpSecondaryStore is a thin JSON/REST client over a generic document
// store's client and creditor-debt endpoints (§6: the secondary store's
// actual product is left unspecified; this binds the adapter's shape).
type httpSecondaryStore struct {
	baseURL string
	client  *http.Client
}

func newHTTPSecondaryStore(baseURL string) *httpSecondaryStore {
	return &httpSecondaryStore{baseURL: baseURL, client: &http.Client{Timeout: 15 * time.Second}}
}

func (s *httpSecondaryStore) GetClientByTicket(ctx context.Context, ticketID string) (capability.ClientRecord, error) {
	return s.getClient(ctx, fmt.Sprintf("%s/clients/by-ticket/%s", s.baseURL, ticketID))
}

func (s *httpSecondaryStore) GetClientByName(ctx context.Context, first, last string) (capability.ClientRecord, error) {
	return s.getClient(ctx, fmt.Sprintf("%s/clients/by-name?first=%s&last=%s", s.baseURL, first, last))
}

func (s *httpSecondaryStore) GetClientByCaseNumber(ctx context.Context, az string) (capability.ClientRecord, error) {
	return s.getClient(ctx, fmt.Sprintf("%s/clients/by-case/%s", s.baseURL, az))
}

func (s *httpSecondaryStore) getClient(ctx context.Context, url string) (capability.ClientRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return capability.ClientRecord{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return capability.ClientRecord{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return capability.ClientRecord{Found: false}, nil
	}
	if resp.StatusCode >= 400 {
		return capability.ClientRecord{}, fmt.Errorf("secondary store: GET %s: status %d", url, resp.StatusCode)
	}
	var record capability.ClientRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return capability.ClientRecord{}, fmt.Errorf("secondary store: decode client record: %w", err)
	}
	record.Found = true
	return record, nil
}

func (s *httpSecondaryStore) UpdateCreditorDebt(ctx context.Context, client capability.ClientSelector, creditor capability.CreditorSelector, update capability.DebtUpdate) (bool, error) {
	body, err := json.Marshal(map[string]any{
		"client":   client,
		"creditor": creditor,
		"update":   update,
	})
	if err != nil {
		return false, fmt.Errorf("secondary store: encode update: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/creditor-debts", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("secondary store: POST creditor-debts: status %d", resp.StatusCode)
	}
	var result struct {
		Applied bool `json:"applied"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("secondary store: decode update result: %w", err)
	}
	return result.Applied, nil
}
