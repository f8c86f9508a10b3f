package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/pkg/config"
	"github.com/example/creditor-inbox/pkg/queue"
	"github.com/example/creditor-inbox/pkg/review"
	"github.com/example/creditor-inbox/pkg/services"
)

func newTestEntClient(t *testing.T) *ent.Client {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	drv, err := sql.Open(dialect.Postgres, connStr)
	require.NoError(t, err)

	client := ent.NewClient(ent.Driver(drv))
	require.NoError(t, client.Schema.Create(ctx))
	t.Cleanup(func() { client.Close() })

	return client
}

type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, message *ent.InboundMessage) *queue.PipelineResult {
	return &queue.PipelineResult{}
}

func newTestHandlers(t *testing.T) (*Handlers, *ent.Client) {
	gin.SetMode(gin.TestMode)
	client := newTestEntClient(t)

	pool := queue.NewWorkerPool("test-pod", client, config.DefaultQueueConfig(), noopExecutor{})

	return &Handlers{
		Messages:           services.NewMessageService(client),
		Inquiries:          services.NewInquiryService(client),
		Reviews:            review.NewQueue(client),
		Pool:               pool,
		WebhookSecret:      "whsec_dGVzdC1zZWNyZXQ=",
		TimestampTolerance: 300,
	}, client
}

func newTestRouter(t *testing.T) (*gin.Engine, *Handlers, *ent.Client) {
	h, client := newTestHandlers(t)
	router := gin.New()
	h.Register(router)
	return router, h, client
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthReportsUnhealthyWithoutWorkers(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIngestInlineAcceptsValidPayload(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(router, http.MethodPost, "/webhooks/inbound", map[string]any{
		"id":       "evt_1",
		"sender":   "creditor@example.com",
		"subject":  "RE: account",
		"text_body": "Forderung beglichen.",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
}

func TestIngestInlineRejectsMissingFields(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(router, http.MethodPost, "/webhooks/inbound", map[string]any{"subject": "no id or sender"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestInlineDetectsDuplicate(t *testing.T) {
	router, _, _ := newTestRouter(t)
	payload := map[string]any{"id": "evt_dup", "sender": "creditor@example.com"}

	rec := doJSON(router, http.MethodPost, "/webhooks/inbound", payload)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodPost, "/webhooks/inbound", payload)
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "duplicate", resp["status"])
}

func TestIngestInquiryCreatesInquiry(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(router, http.MethodPost, "/inquiries", map[string]any{
		"client":   "Max Mustermann",
		"creditor": "Acme Inkasso",
		"debt":     100.0,
		"sent_at":  time.Now().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJobLifecycleGetAndRetry(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(router, http.MethodPost, "/webhooks/inbound", map[string]any{
		"id": "evt_job", "sender": "creditor@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var ingestResp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ingestResp))
	id := ingestResp["id"].(string)

	rec = doJSON(router, http.MethodGet, "/jobs/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodGet, "/jobs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(router, http.MethodPost, "/jobs/"+id+"/retry", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReviewLifecycle(t *testing.T) {
	router, h, client := newTestRouter(t)

	outcome, err := h.Messages.Ingest(context.Background(), services.IngestMessageRequest{
		ExternalWebhookID: "evt_review",
		SenderAddress:     "creditor@example.com",
		Subject:           "RE: your client",
		RawTextBody:       "bitte prüfen",
	})
	require.NoError(t, err)

	item, err := h.Reviews.Enqueue(context.Background(), outcome.Message.ID, "low_confidence", nil)
	require.NoError(t, err)

	rec := doJSON(router, http.MethodGet, "/reviews", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodGet, "/reviews/stats", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, float64(1), stats["total_unresolved"])

	rec = doJSON(router, http.MethodGet, "/reviews/"+item.ID+"/email", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var email map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &email))
	assert.Equal(t, "RE: your client", email["subject"])

	rec = doJSON(router, http.MethodPost, "/reviews/"+item.ID+"/claim", map[string]any{"claimed_by": "agent-1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(router, http.MethodPost, "/reviews/"+item.ID+"/claim", map[string]any{"claimed_by": "agent-2"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(router, http.MethodPost, "/reviews/"+item.ID+"/resolve", map[string]any{"resolution": "approved"})
	assert.Equal(t, http.StatusOK, rec.Code)

	resolved, err := client.ReviewItem.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.NotNil(t, resolved.ResolvedAt)
}

func TestReviewEmailMissingItemReturns404(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(router, http.MethodGet, "/reviews/does-not-exist/email", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
