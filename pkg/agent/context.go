package agent

import (
	"time"

	"github.com/example/creditor-inbox/pkg/budget"
	"github.com/example/creditor-inbox/pkg/capability"
)

// AttachmentDescriptor mirrors one entry of InboundMessage.attachments.
type AttachmentDescriptor struct {
	ExternalID string
	Filename   string
	MimeType   string
	URL        string
	SizeBytes  int64
}

// MessageContext carries everything a stage controller needs for one
// InboundMessage run. Built once by the worker per claim and threaded
// through A1 -> A2 -> A3 unchanged, per the strict per-message stage
// ordering in §5.
type MessageContext struct {
	MessageID      string
	SenderAddress  string
	Subject        string
	CleanedBody    string
	ReceivedAt     time.Time
	Attachments    []AttachmentDescriptor
	CreditorCategory string

	Tracker        *budget.JobTracker
	LLM            capability.LLMClient
	Storage        capability.AttachmentStore
	SecondaryStore capability.SecondaryStoreAdapter

	// PriorIntentNeedsReview carries forward the agent_1_intent checkpoint's
	// needs_review flag, set by the worker before running A2 (§4.6).
	PriorIntentNeedsReview *bool
}
