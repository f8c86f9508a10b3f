package services

import (
	"context"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/inboundmessage"
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

func TestMessageServiceIngestCreatesQueuedMessage(t *testing.T) {
	client := newTestEntClient(t)
	svc := NewMessageService(client)

	outcome, err := svc.Ingest(context.Background(), IngestMessageRequest{
		ExternalWebhookID: "evt_1",
		SenderAddress:     "creditor@example.com",
		Subject:           "RE: your client",
		RawTextBody:       "Forderung beglichen.",
	})
	require.NoError(t, err)
	assert.False(t, outcome.Duplicate)
	assert.Equal(t, inboundmessage.ProcessingStatusQueued, outcome.Message.ProcessingStatus)
}

func TestMessageServiceIngestDetectsDuplicate(t *testing.T) {
	client := newTestEntClient(t)
	svc := NewMessageService(client)
	ctx := context.Background()

	req := IngestMessageRequest{
		ExternalWebhookID: "evt_dup",
		SenderAddress:     "creditor@example.com",
	}
	first, err := svc.Ingest(ctx, req)
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := svc.Ingest(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Message.ID, second.Message.ID)
}

func TestMessageServiceIngestRequiresFields(t *testing.T) {
	client := newTestEntClient(t)
	svc := NewMessageService(client)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestMessageRequest{SenderAddress: "a@b.com"})
	assert.True(t, IsValidationError(err))

	_, err = svc.Ingest(ctx, IngestMessageRequest{ExternalWebhookID: "evt_2"})
	assert.True(t, IsValidationError(err))
}

func TestMessageServiceRetryOnlyAllowsFailed(t *testing.T) {
	client := newTestEntClient(t)
	svc := NewMessageService(client)
	ctx := context.Background()

	outcome, err := svc.Ingest(ctx, IngestMessageRequest{
		ExternalWebhookID: "evt_retry",
		SenderAddress:     "creditor@example.com",
	})
	require.NoError(t, err)

	_, err = svc.Retry(ctx, outcome.Message.ID)
	assert.True(t, IsValidationError(err))

	_, err = client.InboundMessage.UpdateOneID(outcome.Message.ID).
		SetProcessingStatus(inboundmessage.ProcessingStatusFailed).
		Save(ctx)
	require.NoError(t, err)

	retried, err := svc.Retry(ctx, outcome.Message.ID)
	require.NoError(t, err)
	assert.Equal(t, inboundmessage.ProcessingStatusQueued, retried.ProcessingStatus)
	assert.Equal(t, 1, retried.RetryCount)
}

func TestMessageServiceListFiltersByStatus(t *testing.T) {
	client := newTestEntClient(t)
	svc := NewMessageService(client)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, IngestMessageRequest{ExternalWebhookID: "evt_a", SenderAddress: "a@b.com"})
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, IngestMessageRequest{ExternalWebhookID: "evt_b", SenderAddress: "a@b.com"})
	require.NoError(t, err)

	list, err := svc.List(ctx, JobFilter{Status: string(inboundmessage.ProcessingStatusQueued)})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Jobs, 2)
	assert.Equal(t, 2, list.ByStatus[string(inboundmessage.ProcessingStatusQueued)])
}
