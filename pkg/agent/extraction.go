package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/creditor-inbox/pkg/checkpoint"
	"github.com/example/creditor-inbox/pkg/extraction"
)

// attachmentSizeLimit bounds a single attachment download (§4.4).
const attachmentSizeLimit = 20 * 1024 * 1024

// perAttachmentBudgetFloor stops the extraction loop once the remaining
// token budget drops below this many tokens.
const perAttachmentBudgetFloor = 500

// formatPriority orders attachments PDF > DOCX > XLSX > image, per §4.6.
var formatPriority = map[string]int{
	"application/pdf": 0,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": 1,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       2,
	"image/jpeg": 3,
	"image/png":  3,
}

func priorityOf(mimeType string) int {
	if p, ok := formatPriority[mimeType]; ok {
		return p
	}
	return 99
}

// ExtractionController implements Agent 2 (§4.6): downloads and extracts
// attachments in format-priority order, stopping when the token budget
// floor is reached, then consolidates.
type ExtractionController struct{}

func (c *ExtractionController) Stage() string { return checkpoint.StageExtraction }

// Run extracts structured claim data from the message body and its
// attachments.
func (c *ExtractionController) Run(ctx context.Context, msgCtx *MessageContext) (*StageResult, error) {
	sources := []extraction.SourceExtraction{extraction.ExtractText(msgCtx.CleanedBody)}

	ordered := append([]AttachmentDescriptor(nil), msgCtx.Attachments...)
	sortAttachmentsByPriority(ordered)

	for _, att := range ordered {
		if !msgCtx.Tracker.CheckBudget(perAttachmentBudgetFloor) {
			break
		}
		source, err := c.extractAttachment(ctx, msgCtx, att)
		if err != nil {
			sources = append(sources, extraction.SourceExtraction{
				SourceType: classifySourceType(att.MimeType),
				SourceName: att.Filename,
				Error:      err.Error(),
			})
			continue
		}
		sources = append(sources, source)
	}

	consolidated := extraction.Consolidate(sources)

	sourceTypes := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.Error == "" {
			sourceTypes = append(sourceTypes, s.SourceType)
		}
	}

	status := StatusPassed
	if forwarded, ok := priorIntentNeedsReview(msgCtx); ok && forwarded {
		status = StatusNeedsReview
	}

	payload := map[string]any{
		"gesamtforderung":    gesamtforderungPayload(consolidated.Gesamtforderung),
		"confidence":         string(consolidated.Confidence),
		"client_name":        consolidated.ClientName,
		"creditor_name":      consolidated.CreditorName,
		"sources_processed":  consolidated.SourcesProcessed,
		"sources_with_amount": consolidated.SourcesWithAmount,
		"source_types":       sourceTypes,
		"missing_amount":      consolidated.Gesamtforderung == nil,
		"missing_client_name": consolidated.ClientName == "",
		"missing_creditor":    consolidated.CreditorName == "",
		"needs_review":        status == StatusNeedsReview,
	}

	return &StageResult{Status: status, Payload: payload, TokensUsed: consolidated.TotalTokensUsed}, nil
}

func (c *ExtractionController) extractAttachment(ctx context.Context, msgCtx *MessageContext, att AttachmentDescriptor) (extraction.SourceExtraction, error) {
	size, err := msgCtx.Storage.Size(ctx, att.URL)
	if err != nil {
		return extraction.SourceExtraction{}, fmt.Errorf("size check failed for %s: %w", att.Filename, err)
	}
	if size > attachmentSizeLimit {
		return extraction.SourceExtraction{}, fmt.Errorf("attachment %s exceeds size limit (%d bytes)", att.Filename, size)
	}

	reader, err := msgCtx.Storage.Download(ctx, att.URL, attachmentSizeLimit)
	if err != nil {
		return extraction.SourceExtraction{}, fmt.Errorf("download failed for %s: %w", att.Filename, err)
	}
	defer reader.Close()

	raw, err := readAll(reader)
	if err != nil {
		return extraction.SourceExtraction{}, fmt.Errorf("read failed for %s: %w", att.Filename, err)
	}

	switch {
	case att.MimeType == "application/pdf":
		return extraction.ExtractPDF(ctx, raw, att.Filename, msgCtx.Tracker, msgCtx.LLM), nil
	case strings.Contains(att.MimeType, "wordprocessingml"):
		return extraction.ExtractDOCX(raw, att.Filename), nil
	case strings.Contains(att.MimeType, "spreadsheetml"):
		return extraction.ExtractXLSX(raw, att.Filename), nil
	case strings.HasPrefix(att.MimeType, "image/"):
		return extraction.ExtractImage(ctx, raw, att.MimeType, att.Filename, msgCtx.Tracker, msgCtx.LLM), nil
	default:
		return extraction.SourceExtraction{}, fmt.Errorf("unsupported attachment type %s for %s", att.MimeType, att.Filename)
	}
}

func sortAttachmentsByPriority(attachments []AttachmentDescriptor) {
	for i := 1; i < len(attachments); i++ {
		for j := i; j > 0 && priorityOf(attachments[j].MimeType) < priorityOf(attachments[j-1].MimeType); j-- {
			attachments[j], attachments[j-1] = attachments[j-1], attachments[j]
		}
	}
}

func classifySourceType(mimeType string) string {
	switch {
	case mimeType == "application/pdf":
		return "pdf"
	case strings.Contains(mimeType, "wordprocessingml"):
		return "docx"
	case strings.Contains(mimeType, "spreadsheetml"):
		return "xlsx"
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	default:
		return "unknown"
	}
}

func gesamtforderungPayload(g *extraction.Gesamtforderung) map[string]any {
	if g == nil {
		return nil
	}
	return map[string]any{
		"value":      g.Value,
		"currency":   g.Currency,
		"raw_text":   g.RawText,
		"source":     g.Source,
		"confidence": string(g.Confidence),
	}
}

// priorIntentNeedsReview looks at the already-persisted agent_1_intent
// checkpoint payload carried in via the job worker and reports whether A1
// flagged the message for review, so A2 can carry the flag forward (§4.6).
func priorIntentNeedsReview(msgCtx *MessageContext) (bool, bool) {
	if msgCtx.PriorIntentNeedsReview == nil {
		return false, false
	}
	return *msgCtx.PriorIntentNeedsReview, true
}
