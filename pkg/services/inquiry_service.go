package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/outboundinquiry"
	"github.com/google/uuid"
)

// IngestInquiryRequest is the outbound-inquiry ingest payload (§6): POST of
// {client, creditor, debt, reference_numbers[], external correlation ids,
// sent_at, provider}.
type IngestInquiryRequest struct {
	ClientName              string
	CreditorName            string
	CreditorAddress         string
	CreditorEmail           string
	DebtAmount              float64
	ReferenceNumber         string
	ExternalTicketID        string
	ExternalConversationID  string
	ExternalProviderMessageID string
	Provider                string
	SentAt                   time.Time
}

// InquiryService owns OutboundInquiry ingest; the core otherwise only
// reads this entity through the matching engine (§3).
type InquiryService struct {
	client *ent.Client
}

// NewInquiryService builds an InquiryService over the given ent client.
func NewInquiryService(client *ent.Client) *InquiryService {
	return &InquiryService{client: client}
}

// Ingest creates an OutboundInquiry, de-duping on
// (normalized_client_name, creditor_email) plus provider message id (§6).
func (s *InquiryService) Ingest(ctx context.Context, req IngestInquiryRequest) (*ent.OutboundInquiry, bool, error) {
	if req.ClientName == "" {
		return nil, false, NewValidationError("client", "required")
	}
	if req.CreditorName == "" {
		return nil, false, NewValidationError("creditor", "required")
	}
	if req.SentAt.IsZero() {
		return nil, false, NewValidationError("sent_at", "required")
	}

	clientNorm := normalizeName(req.ClientName)
	creditorNorm := normalizeName(req.CreditorName)

	q := s.client.OutboundInquiry.Query().
		Where(outboundinquiry.ClientNameNormalized(clientNorm))
	if req.CreditorEmail != "" {
		q = q.Where(outboundinquiry.CreditorEmail(req.CreditorEmail))
	}
	if existing, err := q.First(ctx); err == nil {
		return existing, true, nil
	} else if !ent.IsNotFound(err) {
		return nil, false, fmt.Errorf("failed to check for duplicate inquiry: %w", err)
	}

	if req.ExternalProviderMessageID != "" {
		if existing, err := s.client.OutboundInquiry.Query().
			Where(outboundinquiry.ExternalProviderMessageID(req.ExternalProviderMessageID)).
			First(ctx); err == nil {
			return existing, true, nil
		} else if !ent.IsNotFound(err) {
			return nil, false, fmt.Errorf("failed to check for duplicate provider message: %w", err)
		}
	}

	builder := s.client.OutboundInquiry.Create().
		SetID(uuid.New().String()).
		SetClientName(req.ClientName).
		SetClientNameNormalized(clientNorm).
		SetCreditorName(req.CreditorName).
		SetCreditorNameNormalized(creditorNorm).
		SetDebtAmount(req.DebtAmount).
		SetSentAt(req.SentAt).
		SetStatus(outboundinquiry.StatusActive)

	if req.CreditorAddress != "" {
		builder = builder.SetCreditorAddress(req.CreditorAddress)
	}
	if req.CreditorEmail != "" {
		builder = builder.SetCreditorEmail(req.CreditorEmail)
	}
	if req.ReferenceNumber != "" {
		builder = builder.SetReferenceNumber(req.ReferenceNumber)
	}
	if req.ExternalTicketID != "" {
		builder = builder.SetExternalTicketID(req.ExternalTicketID)
	}
	if req.ExternalConversationID != "" {
		builder = builder.SetExternalConversationID(req.ExternalConversationID)
	}
	if req.ExternalProviderMessageID != "" {
		builder = builder.SetExternalProviderMessageID(req.ExternalProviderMessageID)
	}
	if req.Provider != "" {
		builder = builder.SetProvider(req.Provider)
	}

	inquiry, err := builder.Save(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create outbound inquiry: %w", err)
	}
	return inquiry, false, nil
}

// normalizeName case-folds and collapses whitespace, mirroring the fuzzy
// matcher's own comparison normalization so ingest-time dedup and
// match-time scoring agree on what "the same name" means.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
