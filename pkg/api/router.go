// Package api implements the Status API and ingress HTTP surface (§6),
// using gin's gin.H JSON response idiom.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/example/creditor-inbox/pkg/metrics"
	"github.com/example/creditor-inbox/pkg/queue"
	"github.com/example/creditor-inbox/pkg/review"
	"github.com/example/creditor-inbox/pkg/services"
)

// Handlers bundles the services the HTTP layer dispatches to.
type Handlers struct {
	Messages      *services.MessageService
	Inquiries     *services.InquiryService
	Reviews       *review.Queue
	Pool          *queue.WorkerPool
	Calibration   *metrics.Recorder
	WebhookSecret string
	TimestampTolerance int64
}

// Register wires all routes onto router.
func (h *Handlers) Register(router *gin.Engine) {
	router.GET("/health", h.health)

	router.POST("/webhooks/inbound", h.ingestInline)
	router.POST("/webhooks/inbound/hosted", h.ingestHosted)
	router.POST("/inquiries", h.ingestInquiry)

	router.GET("/jobs", h.listJobs)
	router.GET("/jobs/:id", h.getJob)
	router.POST("/jobs/:id/retry", h.retryJob)

	router.GET("/reviews", h.listReviews)
	router.GET("/reviews/stats", h.reviewStats)
	router.POST("/reviews/:id/claim", h.claimReview)
	router.POST("/reviews/claim-next", h.claimNextReview)
	router.POST("/reviews/:id/resolve", h.resolveReview)
	router.GET("/reviews/:id/email", h.reviewEmail)
}
