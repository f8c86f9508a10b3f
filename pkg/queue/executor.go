package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/example/creditor-inbox/ent"
	"github.com/example/creditor-inbox/ent/inboundmessage"

	"github.com/example/creditor-inbox/pkg/agent"
	"github.com/example/creditor-inbox/pkg/budget"
	"github.com/example/creditor-inbox/pkg/capability"
	"github.com/example/creditor-inbox/pkg/checkpoint"
	"github.com/example/creditor-inbox/pkg/confidence"
	"github.com/example/creditor-inbox/pkg/idempotency"
	"github.com/example/creditor-inbox/pkg/matching"
	"github.com/example/creditor-inbox/pkg/outbox"
	"github.com/example/creditor-inbox/pkg/review"
)

// PipelineExecutor wires A1/A2/A3, the matching engine, the confidence
// router and the dual-store write path into a single MessageExecutor
// (§4.3, §5). It writes to InboundMessage progressively as each stage
// completes, so a crash mid-pipeline leaves an accurate, replayable
// checkpoint trail rather than an opaque in-flight row.
type PipelineExecutor struct {
	client     *ent.Client
	checkpoints *checkpoint.Store
	matcher    *matching.Engine
	router     *confidence.Router
	outboxW    *outbox.Writer
	reviewQ    *review.Queue
	idemp      *idempotency.Service
	daily      *budget.DailyBreaker

	llm            capability.LLMClient
	storage        capability.AttachmentStore
	secondaryStore capability.SecondaryStoreAdapter

	maxTokensPerJob      int
	inputCostPerMillion  float64
	outputCostPerMillion float64

	headers func(message *ent.InboundMessage) agent.Headers
}

// NewPipelineExecutor builds a PipelineExecutor from its collaborators.
// headerFn extracts the A1 header signals from an InboundMessage; the
// ingress adapter is responsible for persisting them somewhere reachable
// from the row (raw_html_body/raw_text_body in the current schema carries
// the full MIME source the adapter already parsed headers out of).
func NewPipelineExecutor(
	client *ent.Client,
	checkpoints *checkpoint.Store,
	matcher *matching.Engine,
	router *confidence.Router,
	outboxW *outbox.Writer,
	reviewQ *review.Queue,
	idemp *idempotency.Service,
	daily *budget.DailyBreaker,
	llm capability.LLMClient,
	storage capability.AttachmentStore,
	secondaryStore capability.SecondaryStoreAdapter,
	maxTokensPerJob int,
	inputCostPerMillion, outputCostPerMillion float64,
	headerFn func(message *ent.InboundMessage) agent.Headers,
) *PipelineExecutor {
	return &PipelineExecutor{
		client:               client,
		checkpoints:          checkpoints,
		matcher:              matcher,
		router:               router,
		outboxW:              outboxW,
		reviewQ:              reviewQ,
		idemp:                idemp,
		daily:                daily,
		llm:                  llm,
		storage:              storage,
		secondaryStore:       secondaryStore,
		maxTokensPerJob:      maxTokensPerJob,
		inputCostPerMillion:  inputCostPerMillion,
		outputCostPerMillion: outputCostPerMillion,
		headers:              headerFn,
	}
}

// Execute runs the full per-message pipeline (§4.3). It never returns nil:
// the worker's nilGuardResult is a defensive fallback, not an expected
// path here.
func (e *PipelineExecutor) Execute(ctx context.Context, message *ent.InboundMessage) *PipelineResult {
	log := slog.With("message_id", message.ID)

	msgCtx := e.buildMessageContext(message)

	intentResult, err := e.runIntent(ctx, message, msgCtx)
	if err != nil {
		log.Error("intent stage failed", "error", err)
		return &PipelineResult{Status: inboundmessage.ProcessingStatusFailed, Error: err}
	}
	if intentResult.Status == agent.StatusFailed {
		return &PipelineResult{Status: inboundmessage.ProcessingStatusFailed, Error: intentResult.Error}
	}
	if skip, _ := intentResult.Payload["skip_extraction"].(bool); skip {
		return &PipelineResult{Status: inboundmessage.ProcessingStatusNotCreditorReply, NeedsReview: false}
	}
	needsReview := intentResult.Status == agent.StatusNeedsReview
	msgCtx.PriorIntentNeedsReview = &needsReview

	if e.daily != nil && e.daily.IsOpen() {
		return e.routeToReview(ctx, message, "manual_escalation", map[string]any{"reason": "daily_cost_cap_open"}, true)
	}

	extractionResult, err := e.runExtraction(ctx, message, msgCtx)
	if err != nil {
		log.Error("extraction stage failed", "error", err)
		return &PipelineResult{Status: inboundmessage.ProcessingStatusFailed, Error: err}
	}
	if extractionResult.Status == agent.StatusFailed {
		return e.routeToReview(ctx, message, "extraction_error", map[string]any{"error": extractionResult.Error.Error()}, false)
	}

	consolidationResult, err := e.runConsolidation(ctx, message, msgCtx)
	if err != nil {
		log.Error("consolidation stage failed", "error", err)
		return &PipelineResult{Status: inboundmessage.ProcessingStatusFailed, Error: err}
	}
	if e.daily != nil {
		e.daily.CheckAndRecord(msgCtx.Tracker.EstimateCostUSD())
	}
	if consolidationResult.Status == agent.StatusFailed {
		return e.routeToReview(ctx, message, "validation_failed", map[string]any{"error": consolidationResult.Error.Error()}, false)
	}

	if !e.isCreditorReply(ctx, message, msgCtx, intentResult, extractionResult) {
		return &PipelineResult{Status: inboundmessage.ProcessingStatusNotCreditorReply, NeedsReview: false}
	}

	extracted := matching.Extracted{
		ClientName:       stringPayload(extractionResult.Payload, "client_name"),
		ReferenceNumbers: referenceNumbers(consolidationResult.Payload, extractionResult.Payload),
	}

	if err := e.setStatus(ctx, message.ID, inboundmessage.ProcessingStatusMatching); err != nil {
		return &PipelineResult{Status: inboundmessage.ProcessingStatusFailed, Error: err}
	}

	decision, err := e.matcher.Decide(ctx, extracted, message.SenderAddress, message.ReceivedAt, "")
	if err != nil {
		log.Error("matching failed", "error", err)
		return &PipelineResult{Status: inboundmessage.ProcessingStatusFailed, Error: err}
	}
	if err := e.persistMatchResults(ctx, message.ID, decision); err != nil {
		log.Error("failed to persist match results", "error", err)
		return &PipelineResult{Status: inboundmessage.ProcessingStatusFailed, Error: err}
	}

	sourceTypes, _ := extractionResult.Payload["source_types"].([]string)
	missing := confidence.MissingFields{
		Amount:       boolPayload(extractionResult.Payload, "missing_amount"),
		ClientName:   boolPayload(extractionResult.Payload, "missing_client_name"),
		CreditorName: boolPayload(extractionResult.Payload, "missing_creditor"),
	}
	extractionScore := confidence.ExtractionScore(sourceTypes, missing)
	matchScore := confidence.MatchScore(decision)
	score := confidence.Overall(extractionScore, matchScore)
	route := e.router.Route(score.Overall, decision.Status)

	if err := e.persistMatchOutcome(ctx, message.ID, decision, score, route); err != nil {
		log.Error("failed to persist match outcome", "error", err)
		return &PipelineResult{Status: inboundmessage.ProcessingStatusFailed, Error: err}
	}

	conflicts, _ := consolidationResult.Payload["conflicts"].([]string)
	pipelineNeedsReview := route.NeedsReview || needsReview || len(conflicts) > 0

	switch route.Action {
	case confidence.ActionAutoUpdate, confidence.ActionUpdateAndNotify:
		if err := e.commitDebtUpdate(ctx, message, extractionResult, consolidationResult, score); err != nil {
			log.Error("debt update commit failed", "error", err)
			return e.routeToReview(ctx, message, "validation_failed", map[string]any{"error": err.Error()}, pipelineNeedsReview)
		}
		return &PipelineResult{Status: inboundmessage.ProcessingStatusCompleted, NeedsReview: pipelineNeedsReview}
	default:
		reason, details := reviewReasonFor(decision, conflicts, route)
		return e.routeToReview(ctx, message, reason, details, true)
	}
}

// isCreditorReply resolves the is_creditor_reply signal for a message that
// passed intent classification: the supplementary text-only check normally
// decides it, but an amount already produced by the attachment pipeline for
// a debt_statement intent always wins, even over a disagreeing check
// (§4.9 step 7).
func (e *PipelineExecutor) isCreditorReply(ctx context.Context, message *ent.InboundMessage, msgCtx *agent.MessageContext, intentResult, extractionResult *agent.StageResult) bool {
	pipelineHasAmount := intPayload(extractionResult.Payload, "sources_with_amount") > 0
	intentIsDebt := stringPayload(intentResult.Payload, "intent") == string(agent.IntentDebtStatement)
	if pipelineHasAmount && intentIsDebt {
		return true
	}

	controller := &agent.ReplyCheckController{}
	result, err := agent.NewBaseAgent(controller, e.checkpoints).Execute(ctx, msgCtx)
	if err != nil || result.Status == agent.StatusFailed {
		slog.Warn("supplementary reply check failed, defaulting to creditor reply", "message_id", message.ID, "error", errOrNil(err, result))
		return true
	}
	return boolPayload(result.Payload, "is_creditor_reply")
}

func errOrNil(err error, result *agent.StageResult) error {
	if err != nil {
		return err
	}
	if result != nil {
		return result.Error
	}
	return nil
}

func (e *PipelineExecutor) buildMessageContext(message *ent.InboundMessage) *agent.MessageContext {
	var body string
	if message.CleanedBody != nil {
		body = *message.CleanedBody
	}

	attachments := make([]agent.AttachmentDescriptor, 0, len(message.Attachments))
	for _, raw := range message.Attachments {
		attachments = append(attachments, agent.AttachmentDescriptor{
			ExternalID: stringField(raw, "external_id"),
			Filename:   stringField(raw, "filename"),
			MimeType:   stringField(raw, "mime_type"),
			URL:        stringField(raw, "url"),
			SizeBytes:  int64Field(raw, "size_bytes"),
		})
	}

	return &agent.MessageContext{
		MessageID:      message.ID,
		SenderAddress:  message.SenderAddress,
		Subject:        message.Subject,
		CleanedBody:    body,
		ReceivedAt:     message.ReceivedAt,
		Attachments:    attachments,
		Tracker:        budget.NewJobTracker(e.maxTokensPerJob, e.inputCostPerMillion, e.outputCostPerMillion),
		LLM:            e.llm,
		Storage:        e.storage,
		SecondaryStore: e.secondaryStore,
	}
}

func (e *PipelineExecutor) runIntent(ctx context.Context, message *ent.InboundMessage, msgCtx *agent.MessageContext) (*agent.StageResult, error) {
	if err := e.setStatus(ctx, message.ID, inboundmessage.ProcessingStatusIntentClassifying); err != nil {
		return nil, err
	}
	headers := agent.Headers{}
	if e.headers != nil {
		headers = e.headers(message)
	}
	controller := &agent.IntentController{Headers: headers}
	return agent.NewBaseAgent(controller, e.checkpoints).Execute(ctx, msgCtx)
}

func (e *PipelineExecutor) runExtraction(ctx context.Context, message *ent.InboundMessage, msgCtx *agent.MessageContext) (*agent.StageResult, error) {
	if err := e.setStatus(ctx, message.ID, inboundmessage.ProcessingStatusContentExtracting); err != nil {
		return nil, err
	}
	controller := &agent.ExtractionController{}
	result, err := agent.NewBaseAgent(controller, e.checkpoints).Execute(ctx, msgCtx)
	if err != nil {
		return nil, err
	}
	if err := e.setStatus(ctx, message.ID, inboundmessage.ProcessingStatusExtracted); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *PipelineExecutor) runConsolidation(ctx context.Context, message *ent.InboundMessage, msgCtx *agent.MessageContext) (*agent.StageResult, error) {
	if err := e.setStatus(ctx, message.ID, inboundmessage.ProcessingStatusConsolidating); err != nil {
		return nil, err
	}
	controller := &agent.ConsolidationController{
		Checkpoints: e.checkpoints,
		TicketID:    message.ExternalWebhookID,
	}
	return agent.NewBaseAgent(controller, e.checkpoints).Execute(ctx, msgCtx)
}

func (e *PipelineExecutor) setStatus(ctx context.Context, messageID string, status inboundmessage.ProcessingStatus) error {
	return e.client.InboundMessage.UpdateOneID(messageID).SetProcessingStatus(status).Exec(ctx)
}

func (e *PipelineExecutor) persistMatchResults(ctx context.Context, messageID string, decision matching.Decision) error {
	for _, cand := range decision.TopCandidates {
		signalScores := make(map[string]float64, len(cand.SignalScores))
		for name, s := range cand.SignalScores {
			signalScores[name] = s.Score
		}
		explainMap, err := explainToMap(decision.Explain)
		if err != nil {
			return fmt.Errorf("failed to encode scoring details: %w", err)
		}
		selected := decision.Selected != nil && decision.Selected.Candidate.InquiryID == cand.Candidate.InquiryID
		create := e.client.MatchResult.Create().
			SetID(uuid.New().String()).
			SetInboundMessageID(messageID).
			SetInquiryID(cand.Candidate.InquiryID).
			SetTotalScore(cand.TotalScore).
			SetSignalScores(signalScores).
			SetScoringDetails(explainMap).
			SetRank(cand.Rank).
			SetSelected(selected)
		if selected {
			create = create.SetSelectionMethod(cand.SelectionMethod).SetAmbiguityGap(decision.Gap)
		}
		if _, err := create.Save(ctx); err != nil {
			return fmt.Errorf("failed to persist match result for inquiry %s: %w", cand.Candidate.InquiryID, err)
		}
	}
	return nil
}

func (e *PipelineExecutor) persistMatchOutcome(ctx context.Context, messageID string, decision matching.Decision, score confidence.Score, route confidence.Route) error {
	update := e.client.InboundMessage.UpdateOneID(messageID).
		SetConfidenceExtraction(score.Extraction).
		SetConfidenceOverall(score.Overall).
		SetConfidenceRoute(string(route.Action))

	switch decision.Status {
	case matching.StatusAutoMatched:
		update = update.SetMatchStatus(inboundmessage.MatchStatusAutoMatched)
		if decision.Selected != nil {
			update = update.SetMatchedInquiryID(decision.Selected.Candidate.InquiryID).SetMatchConfidence(decision.Selected.TotalScore)
		}
	case matching.StatusAmbiguous, matching.StatusBelowThreshold:
		update = update.SetMatchStatus(inboundmessage.MatchStatusNeedsReview)
	default:
		update = update.SetMatchStatus(inboundmessage.MatchStatusNoMatch)
	}

	return update.Exec(ctx)
}

func (e *PipelineExecutor) commitDebtUpdate(ctx context.Context, message *ent.InboundMessage, extraction, consolidation *agent.StageResult, score confidence.Score) error {
	g, _ := extraction.Payload["gesamtforderung"].(map[string]any)
	var amount float64
	if g != nil {
		amount, _ = g["value"].(float64)
	}
	creditorEmail, _ := consolidation.Payload["creditor_email"].(string)
	creditorName, _ := consolidation.Payload["creditor_name"].(string)
	clientName := stringPayload(extraction.Payload, "client_name")

	payload := outbox.DebtUpdatePayload{
		MessageID:     message.ID,
		ClientName:    clientName,
		CreditorEmail: creditorEmail,
		CreditorName:  creditorName,
		Amount:        amount,
		Confidence:    score.Overall,
	}
	if message.CleanedBody != nil {
		payload.ResponseText = *message.CleanedBody
	}

	result, err := e.outboxW.CommitDebtUpdate(ctx, message.ID, payload)
	if err != nil {
		return err
	}
	if result.Cached {
		return nil
	}

	if err := outbox.ProcessPhaseB(ctx, e.client, e.idemp, e.secondaryStore, result.Outbox); err != nil {
		// Phase A already committed; the reconciler retries Phase B
		// independently (§4.10, §4.12). Not a pipeline failure.
		slog.Warn("phase B failed inline, leaving for reconciler", "message_id", message.ID, "error", err)
	}
	return nil
}

// routeToReview enqueues a ReviewItem and marks the message completed but
// needing review; _ is kept for call-site symmetry with other terminal
// helpers even though enqueueing always implies needs_review.
func (e *PipelineExecutor) routeToReview(ctx context.Context, message *ent.InboundMessage, reason string, details map[string]any, _ bool) *PipelineResult {
	if _, err := e.reviewQ.Enqueue(ctx, message.ID, reason, details); err != nil {
		slog.Error("failed to enqueue review item", "message_id", message.ID, "error", err)
		return &PipelineResult{Status: inboundmessage.ProcessingStatusFailed, Error: err}
	}
	return &PipelineResult{Status: inboundmessage.ProcessingStatusCompleted, NeedsReview: true}
}

func reviewReasonFor(decision matching.Decision, conflicts []string, route confidence.Route) (string, map[string]any) {
	details := map[string]any{
		"match_status":   string(decision.Status),
		"overall_route":  string(route.Action),
		"conflicts":      conflicts,
	}
	switch {
	case len(conflicts) > 0:
		return "conflict_detected", details
	case decision.Status == matching.StatusAmbiguous:
		return "ambiguous_match", details
	case decision.Status == matching.StatusNoRecentInquiry:
		return "no_recent_inquiry", details
	case decision.Status == matching.StatusBelowThreshold:
		return "below_threshold", details
	default:
		return "low_confidence", details
	}
}

func stringPayload(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func boolPayload(payload map[string]any, key string) bool {
	v, _ := payload[key].(bool)
	return v
}

// intPayload reads an integer payload field, tolerating the float64 shape a
// checkpoint-replayed payload carries after its JSON round-trip.
func intPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func referenceNumbers(consolidation, extraction map[string]any) []string {
	if refs, ok := extraction["reference_numbers"].([]string); ok {
		return refs
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func int64Field(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func explainToMap(explain matching.ExplainJSON) (map[string]any, error) {
	b, err := json.Marshal(explain)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
