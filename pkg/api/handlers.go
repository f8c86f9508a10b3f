package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/creditor-inbox/pkg/services"
	"github.com/example/creditor-inbox/pkg/webhook"
)

func (h *Handlers) health(c *gin.Context) {
	health := h.Pool.Health()
	status := http.StatusOK
	if !health.IsHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

// inboundPayload is the full-body ingress variant (§6).
type inboundPayload struct {
	ID          string                        `json:"id" binding:"required"`
	Sender      string                        `json:"sender" binding:"required"`
	Subject     string                        `json:"subject"`
	HTMLBody    string                        `json:"html_body"`
	TextBody    string                        `json:"text_body"`
	Attachments []services.InboundAttachment  `json:"attachments"`
	ReceivedAt  *time.Time                    `json:"received_at"`
}

func (h *Handlers) ingestInline(c *gin.Context) {
	var payload inboundPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "ignored", "message": err.Error()})
		return
	}

	req := services.IngestMessageRequest{
		ExternalWebhookID: payload.ID,
		SenderAddress:     payload.Sender,
		Subject:           payload.Subject,
		RawHTMLBody:       payload.HTMLBody,
		RawTextBody:       payload.TextBody,
		Attachments:       payload.Attachments,
	}
	if payload.ReceivedAt != nil {
		req.ReceivedAt = *payload.ReceivedAt
	}

	h.respondIngest(c, req)
}

// hostedPayload is the provider-hosted-inbox variant: only an id, signed
// with HMAC-SHA256 per §6. The adapter that fetches the full body from the
// provider lives outside the core; this endpoint only verifies the
// signature and records the descriptor it was given.
type hostedPayload struct {
	ID        string `json:"id" binding:"required"`
	Sender    string `json:"sender" binding:"required"`
	Subject   string `json:"subject"`
	Timestamp int64  `json:"timestamp" binding:"required"`
}

func (h *Handlers) ingestHosted(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "ignored", "message": "failed to read body"})
		return
	}

	sigHeader := c.GetHeader("X-Webhook-Signature")
	if err := webhook.Verify(h.WebhookSecret, idFromHeader(c), timestampFromHeader(c), rawBody, sigHeader, time.Duration(h.TimestampTolerance)*time.Second); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "ignored", "message": err.Error()})
		return
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))
	var payload hostedPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "ignored", "message": err.Error()})
		return
	}

	req := services.IngestMessageRequest{
		ExternalWebhookID: payload.ID,
		SenderAddress:     payload.Sender,
		Subject:           payload.Subject,
	}
	h.respondIngest(c, req)
}

func idFromHeader(c *gin.Context) string        { return c.GetHeader("X-Webhook-Id") }
func timestampFromHeader(c *gin.Context) int64 {
	ts, _ := strconv.ParseInt(c.GetHeader("X-Webhook-Timestamp"), 10, 64)
	return ts
}

func (h *Handlers) respondIngest(c *gin.Context, req services.IngestMessageRequest) {
	outcome, err := h.Messages.Ingest(c.Request.Context(), req)
	if err != nil {
		if services.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"status": "ignored", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "ignored", "message": err.Error()})
		return
	}

	if outcome.Duplicate {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate", "message": "already ingested", "id": outcome.Message.ID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "message": "queued for processing", "id": outcome.Message.ID})
}

type inquiryPayload struct {
	Client                    string   `json:"client" binding:"required"`
	Creditor                  string   `json:"creditor" binding:"required"`
	CreditorEmail             string   `json:"creditor_email"`
	CreditorAddress           string   `json:"creditor_address"`
	Debt                      float64  `json:"debt"`
	ReferenceNumbers          []string `json:"reference_numbers"`
	ExternalTicketID          string   `json:"external_ticket_id"`
	ExternalConversationID    string   `json:"external_conversation_id"`
	ExternalProviderMessageID string   `json:"external_provider_message_id"`
	Provider                  string   `json:"provider"`
	SentAt                    time.Time `json:"sent_at" binding:"required"`
}

func (h *Handlers) ingestInquiry(c *gin.Context) {
	var payload inquiryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := services.IngestInquiryRequest{
		ClientName:                payload.Client,
		CreditorName:              payload.Creditor,
		CreditorAddress:           payload.CreditorAddress,
		CreditorEmail:             payload.CreditorEmail,
		DebtAmount:                payload.Debt,
		ExternalTicketID:          payload.ExternalTicketID,
		ExternalConversationID:    payload.ExternalConversationID,
		ExternalProviderMessageID: payload.ExternalProviderMessageID,
		Provider:                  payload.Provider,
		SentAt:                    payload.SentAt,
	}
	if len(payload.ReferenceNumbers) > 0 {
		req.ReferenceNumber = payload.ReferenceNumbers[0]
	}

	inquiry, duplicate, err := h.Inquiries.Ingest(c.Request.Context(), req)
	if err != nil {
		if services.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": inquiry.ID, "duplicate": duplicate})
}

func (h *Handlers) listJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.Messages.List(c.Request.Context(), services.JobFilter{
		Status: c.Query("status"),
		Limit:  limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": list.Total, "by_status": list.ByStatus, "jobs": list.Jobs})
}

func (h *Handlers) getJob(c *gin.Context) {
	message, err := h.Messages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, message)
}

func (h *Handlers) retryJob(c *gin.Context) {
	message, err := h.Messages.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case services.IsValidationError(err):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, message)
}

func (h *Handlers) listReviews(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	items, err := h.Reviews.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": items})
}

func (h *Handlers) reviewStats(c *gin.Context) {
	stats, err := h.Reviews.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_unresolved":   stats.TotalUnresolved,
		"by_reason":          stats.ByReason,
		"claimed_unresolved": stats.ClaimedUnresolved,
	})
}

type claimPayload struct {
	ClaimedBy string `json:"claimed_by" binding:"required"`
}

func (h *Handlers) claimReview(c *gin.Context) {
	var payload claimPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := h.Reviews.Claim(c.Request.Context(), c.Param("id"), payload.ClaimedBy)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handlers) claimNextReview(c *gin.Context) {
	var payload claimPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := h.Reviews.ClaimNext(c.Request.Context(), payload.ClaimedBy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if item == nil {
		c.JSON(http.StatusOK, gin.H{"message": "no reviews available"})
		return
	}
	c.JSON(http.StatusOK, item)
}

type resolvePayload struct {
	Resolution    string         `json:"resolution" binding:"required"`
	Notes         string         `json:"notes"`
	CorrectedData map[string]any `json:"corrected_data"`
}

// resolutionsCapturingCalibration mirrors metrics.Recorder's own skip-set
// (§4.11): a calibration sample is only worth capturing when the operator
// actually judged the extraction, not when they routed around it.
var resolutionsCapturingCalibration = map[string]bool{
	"approved":  true,
	"corrected": true,
}

func (h *Handlers) resolveReview(c *gin.Context) {
	var payload resolvePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.Reviews.Resolve(c.Request.Context(), id, payload.Resolution, payload.Notes); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.Calibration != nil && resolutionsCapturingCalibration[payload.Resolution] {
		h.captureCalibrationSample(c, id, payload.CorrectedData)
	}

	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

// captureCalibrationSample records the before/after extraction comparison for
// a just-resolved review item (§4.11). The original extraction is read back
// from the message's own extracted_data; the corrected version is whatever
// the operator submitted alongside the resolution, defaulting to "no
// correction" when they submitted none. Failures here are logged, not
// surfaced to the caller: the resolution itself already succeeded.
func (h *Handlers) captureCalibrationSample(c *gin.Context, reviewID string, correctedData map[string]any) {
	item, err := h.Reviews.Get(c.Request.Context(), reviewID)
	if err != nil {
		slog.Warn("calibration capture: failed to refetch review item", "review_id", reviewID, "error", err)
		return
	}
	message, err := h.Messages.Get(c.Request.Context(), item.MessageID)
	if err != nil {
		slog.Warn("calibration capture: failed to fetch message", "review_id", reviewID, "message_id", item.MessageID, "error", err)
		return
	}

	originalData := message.ExtractedData
	if correctedData == nil {
		correctedData = originalData
	}

	if err := h.Calibration.CaptureOnResolution(c.Request.Context(), item, message, originalData, correctedData); err != nil {
		slog.Warn("calibration capture failed", "review_id", reviewID, "message_id", item.MessageID, "error", err)
	}
}

func (h *Handlers) reviewEmail(c *gin.Context) {
	review, err := h.Reviews.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "review item not found"})
		return
	}
	message, err := h.Messages.Get(c.Request.Context(), review.MessageID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subject":       message.Subject,
		"sender":        message.SenderAddress,
		"html_body":     message.RawHTMLBody,
		"text_body":     message.RawTextBody,
		"attachments":   message.Attachments,
		"received_at":   message.ReceivedAt,
	})
}
