package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/creditor-inbox/pkg/checkpoint"
)

// replyCheckConfidenceThreshold gates needs_review the same way the other
// stages do, so a low-confidence reply check still surfaces for a human.
const replyCheckConfidenceThreshold = 0.70

const replyCheckPrompt = `Ist diese E-Mail tatsächlich die Antwort eines Gläubigers/Inkassobüros (nicht Spam, nicht automatische Antwort)? Antworte ausschließlich mit "yes" oder "no" und einem Konfidenzwert zwischen 0 und 1, getrennt durch ein Leerzeichen.`

// ReplyCheckController implements the supplementary text-only entity check
// that decides is_creditor_reply from the cleaned body alone, independent of
// whatever the attachment-driven extraction pipeline produced (§4.9 step 7).
type ReplyCheckController struct{}

func (c *ReplyCheckController) Stage() string { return checkpoint.StageReplyCheck }

// Run asks the LLM whether the email body itself reads as a creditor reply.
// Its verdict is advisory: Execute's caller overrides it whenever the
// pipeline already produced an amount for a debt_statement intent.
func (c *ReplyCheckController) Run(ctx context.Context, msgCtx *MessageContext) (*StageResult, error) {
	if !msgCtx.Tracker.CheckBudget(200) {
		return c.result(true, 0, "token_budget_exceeded"), nil
	}

	res, err := msgCtx.LLM.Classify(ctx, replyCheckPrompt+"\n\n"+msgCtx.CleanedBody, "claude-haiku", 20, 0)
	if err != nil {
		return &StageResult{Status: StatusFailed, Error: fmt.Errorf("reply check failed: %w", err)}, nil
	}
	msgCtx.Tracker.AddUsage(res.Usage.InputTokens, res.Usage.OutputTokens)

	isReply, confidence := parseReplyVerdict(res.Text)
	result := c.result(isReply, confidence, "llm_classification")
	result.TokensUsed = res.Usage.InputTokens + res.Usage.OutputTokens
	return result, nil
}

func parseReplyVerdict(text string) (bool, float64) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return true, 0
	}
	isReply := strings.EqualFold(fields[0], "yes")
	confidence := 0.5
	if len(fields) > 1 {
		fmt.Sscanf(fields[1], "%f", &confidence)
	}
	return isReply, confidence
}

func (c *ReplyCheckController) result(isReply bool, confidence float64, method string) *StageResult {
	status := StatusPassed
	if confidence < replyCheckConfidenceThreshold {
		status = StatusNeedsReview
	}
	return &StageResult{
		Status: status,
		Payload: map[string]any{
			"is_creditor_reply": isReply,
			"confidence":        confidence,
			"method":            method,
		},
	}
}
