package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInquiryServiceIngestCreatesInquiry(t *testing.T) {
	client := newTestEntClient(t)
	svc := NewInquiryService(client)

	inquiry, duplicate, err := svc.Ingest(context.Background(), IngestInquiryRequest{
		ClientName:    "Max Mustermann",
		CreditorName:  "Acme Inkasso GmbH",
		CreditorEmail: "inkasso@acme.example",
		DebtAmount:    452.10,
		SentAt:        time.Now(),
	})
	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.Equal(t, "max mustermann", inquiry.ClientNameNormalized)
}

func TestInquiryServiceIngestDedupesByNameAndEmail(t *testing.T) {
	client := newTestEntClient(t)
	svc := NewInquiryService(client)
	ctx := context.Background()

	req := IngestInquiryRequest{
		ClientName:    "Erika Musterfrau",
		CreditorName:  "Beispiel Inkasso",
		CreditorEmail: "noreply@beispiel.example",
		SentAt:        time.Now(),
	}
	first, dup, err := svc.Ingest(ctx, req)
	require.NoError(t, err)
	require.False(t, dup)

	second, dup, err := svc.Ingest(ctx, req)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first.ID, second.ID)
}

func TestInquiryServiceIngestDedupesByProviderMessageID(t *testing.T) {
	client := newTestEntClient(t)
	svc := NewInquiryService(client)
	ctx := context.Background()

	req := IngestInquiryRequest{
		ClientName:                "Different Name",
		CreditorName:              "Beispiel Inkasso",
		ExternalProviderMessageID: "prov-msg-1",
		SentAt:                    time.Now(),
	}
	first, _, err := svc.Ingest(ctx, req)
	require.NoError(t, err)

	req2 := req
	req2.ClientName = "Yet Another Name"
	second, dup, err := svc.Ingest(ctx, req2)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first.ID, second.ID)
}

func TestInquiryServiceIngestRequiresFields(t *testing.T) {
	client := newTestEntClient(t)
	svc := NewInquiryService(client)
	ctx := context.Background()

	_, _, err := svc.Ingest(ctx, IngestInquiryRequest{CreditorName: "X", SentAt: time.Now()})
	assert.True(t, IsValidationError(err))

	_, _, err = svc.Ingest(ctx, IngestInquiryRequest{ClientName: "X", SentAt: time.Now()})
	assert.True(t, IsValidationError(err))

	_, _, err = svc.Ingest(ctx, IngestInquiryRequest{ClientName: "X", CreditorName: "Y"})
	assert.True(t, IsValidationError(err))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "max mustermann", normalizeName("  Max   Mustermann! "))
	assert.Equal(t, "müllergmbh", normalizeName("Müller-GmbH"))
}
