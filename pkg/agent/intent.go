package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/example/creditor-inbox/pkg/checkpoint"
)

// Intent labels the six-way classification the intent agent resolves to.
type Intent string

const (
	IntentDebtStatement Intent = "debt_statement"
	IntentPaymentPlan   Intent = "payment_plan"
	IntentRejection     Intent = "rejection"
	IntentInquiry       Intent = "inquiry"
	IntentAutoReply     Intent = "auto_reply"
	IntentSpam          Intent = "spam"
)

// intentConfidenceThreshold gates the needs_review flag (§4.6).
const intentConfidenceThreshold = 0.70

var oooSubjectPattern = regexp.MustCompile(`(?i)(out of office|abwesenheit|automatische antwort|automatic reply|urlaub|vacation)`)

// Headers is the subset of an inbound message's raw headers the intent
// agent inspects.
type Headers struct {
	AutoSubmitted            string
	AutoResponseSuppress     string
	From                     string
	ReplyTo                  string
	Sender                   string
}

// IntentController implements Agent 1 (§4.6): a cheap-path classifier that
// falls back to a single LLM call only when the cheap rules don't resolve.
type IntentController struct {
	Headers Headers
}

func (c *IntentController) Stage() string { return checkpoint.StageIntent }

// Run classifies the message's intent.
func (c *IntentController) Run(ctx context.Context, msgCtx *MessageContext) (*StageResult, error) {
	if c.Headers.AutoSubmitted != "" && !strings.EqualFold(c.Headers.AutoSubmitted, "no") {
		return c.result(IntentAutoReply, 1.0, "auto_submitted_header"), nil
	}
	if c.Headers.AutoResponseSuppress != "" {
		return c.result(IntentAutoReply, 1.0, "auto_response_suppress_header"), nil
	}
	if oooSubjectPattern.MatchString(msgCtx.Subject) {
		return c.result(IntentAutoReply, 1.0, "ooo_subject_pattern"), nil
	}
	if containsNoreply(c.Headers.From) || containsNoreply(c.Headers.ReplyTo) || containsNoreply(c.Headers.Sender) {
		return c.result(IntentSpam, 1.0, "noreply_sender"), nil
	}

	return c.classifyWithLLM(ctx, msgCtx)
}

func containsNoreply(addr string) bool {
	return strings.Contains(strings.ToLower(addr), "noreply@")
}

const intentPrompt = `Klassifiziere diese E-Mail-Antwort eines Gläubigers/Inkassobüros in genau eines der folgenden Labels: debt_statement, payment_plan, rejection, inquiry, auto_reply, spam. Antworte ausschließlich mit dem Label und einem Konfidenzwert zwischen 0 und 1, getrennt durch ein Leerzeichen.`

func (c *IntentController) classifyWithLLM(ctx context.Context, msgCtx *MessageContext) (*StageResult, error) {
	if !msgCtx.Tracker.CheckBudget(200) {
		return c.result(IntentInquiry, 0, "token_budget_exceeded"), nil
	}

	res, err := msgCtx.LLM.Classify(ctx, intentPrompt+"\n\n"+msgCtx.CleanedBody, "claude-haiku", 20, 0)
	if err != nil {
		return &StageResult{Status: StatusFailed, Error: fmt.Errorf("intent classification failed: %w", err)}, nil
	}
	msgCtx.Tracker.AddUsage(res.Usage.InputTokens, res.Usage.OutputTokens)

	label, confidence := parseClassification(res.Text)
	result := c.result(label, confidence, "llm_classification")
	result.TokensUsed = res.Usage.InputTokens + res.Usage.OutputTokens
	return result, nil
}

func parseClassification(text string) (Intent, float64) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return IntentInquiry, 0
	}
	label := Intent(strings.ToLower(fields[0]))
	confidence := 0.5
	if len(fields) > 1 {
		fmt.Sscanf(fields[1], "%f", &confidence)
	}
	return label, confidence
}

func (c *IntentController) result(intent Intent, confidence float64, method string) *StageResult {
	status := StatusPassed
	if confidence < intentConfidenceThreshold {
		status = StatusNeedsReview
	}
	skipExtraction := intent == IntentAutoReply || intent == IntentSpam
	return &StageResult{
		Status: status,
		Payload: map[string]any{
			"intent":          string(intent),
			"confidence":      confidence,
			"method":          method,
			"skip_extraction": skipExtraction,
		},
	}
}
