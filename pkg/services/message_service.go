package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/inboundmessage"
)

// InboundAttachment describes one attachment descriptor as supplied by the
// ingress adapter, before A2 downloads anything (§6).
type InboundAttachment struct {
	ExternalID string `json:"external_id"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
	URL        string `json:"url,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
}

// IngestMessageRequest is what an ingress adapter hands the core after it
// has parsed the raw email (§6: full-body and id-only variants both reduce
// to this shape once the adapter has done its fetch, if any).
type IngestMessageRequest struct {
	ExternalWebhookID string
	SenderAddress     string
	Subject           string
	RawHTMLBody       string
	RawTextBody       string
	Attachments       []InboundAttachment
	ReceivedAt        time.Time
}

// IngestOutcome reports what Ingest did, so the HTTP layer can pick the
// right status/message pair from §6's {accepted, duplicate, ignored}.
type IngestOutcome struct {
	Message   *ent.InboundMessage
	Duplicate bool
}

// MessageService owns InboundMessage lifecycle: ingest, listing, retry.
type MessageService struct {
	client *ent.Client
}

// NewMessageService builds a MessageService over the given ent client.
func NewMessageService(client *ent.Client) *MessageService {
	return &MessageService{client: client}
}

// Ingest creates a queued InboundMessage, or reports Duplicate when
// external_webhook_id has already been seen (§6: duplicates are 200
// status=duplicate, not an error).
func (s *MessageService) Ingest(ctx context.Context, req IngestMessageRequest) (IngestOutcome, error) {
	if req.ExternalWebhookID == "" {
		return IngestOutcome{}, NewValidationError("external_webhook_id", "required")
	}
	if req.SenderAddress == "" {
		return IngestOutcome{}, NewValidationError("sender_address", "required")
	}

	existing, err := s.client.InboundMessage.Query().
		Where(inboundmessage.ExternalWebhookID(req.ExternalWebhookID)).
		Only(ctx)
	if err == nil {
		return IngestOutcome{Message: existing, Duplicate: true}, nil
	}
	if !ent.IsNotFound(err) {
		return IngestOutcome{}, fmt.Errorf("failed to check for duplicate message: %w", err)
	}

	receivedAt := req.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	attachments := make([]map[string]any, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, map[string]any{
			"external_id": a.ExternalID,
			"filename":    a.Filename,
			"mime_type":   a.MimeType,
			"url":         a.URL,
			"size_bytes":  a.SizeBytes,
		})
	}

	builder := s.client.InboundMessage.Create().
		SetID(uuid.New().String()).
		SetExternalWebhookID(req.ExternalWebhookID).
		SetSenderAddress(req.SenderAddress).
		SetSubject(req.Subject).
		SetProcessingStatus(inboundmessage.ProcessingStatusQueued).
		SetReceivedAt(receivedAt).
		SetAttachments(attachments)
	if req.RawHTMLBody != "" {
		builder = builder.SetRawHTMLBody(req.RawHTMLBody)
	}
	if req.RawTextBody != "" {
		builder = builder.SetRawTextBody(req.RawTextBody)
	}
	if cleaned := cleanBody(req.RawHTMLBody, req.RawTextBody); cleaned != "" {
		builder = builder.SetCleanedBody(cleaned)
	}

	message, err := builder.Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			// Lost a race against a concurrent ingest of the same id.
			existing, findErr := s.client.InboundMessage.Query().
				Where(inboundmessage.ExternalWebhookID(req.ExternalWebhookID)).
				Only(ctx)
			if findErr == nil {
				return IngestOutcome{Message: existing, Duplicate: true}, nil
			}
		}
		return IngestOutcome{}, fmt.Errorf("failed to create inbound message: %w", err)
	}

	return IngestOutcome{Message: message}, nil
}

// allProcessingStatuses enumerates the processing_status enum for the
// GET /jobs by_status breakdown.
var allProcessingStatuses = []inboundmessage.ProcessingStatus{
	inboundmessage.ProcessingStatusReceived,
	inboundmessage.ProcessingStatusQueued,
	inboundmessage.ProcessingStatusProcessing,
	inboundmessage.ProcessingStatusParsed,
	inboundmessage.ProcessingStatusIntentClassifying,
	inboundmessage.ProcessingStatusContentExtracting,
	inboundmessage.ProcessingStatusConsolidating,
	inboundmessage.ProcessingStatusContentExtracted,
	inboundmessage.ProcessingStatusExtracting,
	inboundmessage.ProcessingStatusExtracted,
	inboundmessage.ProcessingStatusMatching,
	inboundmessage.ProcessingStatusCompleted,
	inboundmessage.ProcessingStatusFailed,
	inboundmessage.ProcessingStatusNotCreditorReply,
}

// JobFilter narrows GET /jobs (§6).
type JobFilter struct {
	Status string
	Limit  int
}

// JobList is the GET /jobs response shape (§6).
type JobList struct {
	Total    int
	ByStatus map[string]int
	Jobs     []*ent.InboundMessage
}

// List returns jobs matching the filter plus status-breakdown counts
// across the whole table.
func (s *MessageService) List(ctx context.Context, filter JobFilter) (JobList, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := s.client.InboundMessage.Query()
	if filter.Status != "" {
		q = q.Where(inboundmessage.ProcessingStatusEQ(inboundmessage.ProcessingStatus(filter.Status)))
	}

	jobs, err := q.Order(ent.Desc(inboundmessage.FieldReceivedAt)).Limit(limit).All(ctx)
	if err != nil {
		return JobList{}, fmt.Errorf("failed to list messages: %w", err)
	}

	total, err := s.client.InboundMessage.Query().Count(ctx)
	if err != nil {
		return JobList{}, fmt.Errorf("failed to count messages: %w", err)
	}

	byStatus := make(map[string]int)
	for _, status := range allProcessingStatuses {
		n, err := s.client.InboundMessage.Query().
			Where(inboundmessage.ProcessingStatusEQ(status)).
			Count(ctx)
		if err != nil {
			return JobList{}, fmt.Errorf("failed to count status %s: %w", status, err)
		}
		if n > 0 {
			byStatus[string(status)] = n
		}
	}

	return JobList{Total: total, ByStatus: byStatus, Jobs: jobs}, nil
}

// bodySanitizer strips all markup down to its text content; StrictPolicy
// disallows every element, leaving only escaped text nodes behind.
var bodySanitizer = bluemonday.StrictPolicy()

// cleanBody derives the plain-text body A1 classifies and A2 extracts
// from (cleaned_body), preferring the HTML part since creditor replies are
// rarely text/plain only.
func cleanBody(htmlBody, textBody string) string {
	if htmlBody != "" {
		return strings.TrimSpace(html.UnescapeString(bodySanitizer.Sanitize(htmlBody)))
	}
	return strings.TrimSpace(textBody)
}

// Get returns one message by id.
func (s *MessageService) Get(ctx context.Context, id string) (*ent.InboundMessage, error) {
	message, err := s.client.InboundMessage.Get(ctx, id)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return message, nil
}

// Retry resets a failed message back to queued, clearing its error and
// incrementing retry_count so the bounded-retry budget still applies
// (§6: POST /jobs/{id}/retry).
func (s *MessageService) Retry(ctx context.Context, id string) (*ent.InboundMessage, error) {
	message, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if message.ProcessingStatus != inboundmessage.ProcessingStatusFailed {
		return nil, NewValidationError("status", "only failed jobs can be retried")
	}

	updated, err := message.Update().
		SetProcessingStatus(inboundmessage.ProcessingStatusQueued).
		ClearLastError().
		AddRetryCount(1).
		ClearStartedAt().
		ClearCompletedAt().
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retry message %s: %w", id, err)
	}
	return updated, nil
}
