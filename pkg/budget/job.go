// Package budget implements C4: a per-job token budget tracker and a
// process-wide daily cost circuit breaker.
package budget

import "fmt"

// JobTracker is a value type owned by a single extraction job (Agent 2
// invocation). It is never persisted and never shared across goroutines.
type JobTracker struct {
	maxTokens         int
	inputCostPerM     float64
	outputCostPerM    float64
	usedInputTokens   int
	usedOutputTokens  int
}

// NewJobTracker constructs a tracker with the configured per-job cap and
// cost model.
func NewJobTracker(maxTokens int, inputCostPerMillion, outputCostPerMillion float64) *JobTracker {
	return &JobTracker{
		maxTokens:      maxTokens,
		inputCostPerM:  inputCostPerMillion,
		outputCostPerM: outputCostPerMillion,
	}
}

// CheckBudget reports whether an additional est tokens would fit within the
// remaining budget.
func (t *JobTracker) CheckBudget(est int) bool {
	return t.Remaining() >= est
}

// AddUsage records tokens actually consumed by a capability call.
func (t *JobTracker) AddUsage(inputTokens, outputTokens int) {
	t.usedInputTokens += inputTokens
	t.usedOutputTokens += outputTokens
}

// Remaining returns the number of tokens still available before the hard
// ceiling.
func (t *JobTracker) Remaining() int {
	remaining := t.maxTokens - t.usedInputTokens - t.usedOutputTokens
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SoftWarning reports whether usage has crossed the 80% warning line.
func (t *JobTracker) SoftWarning() bool {
	used := t.usedInputTokens + t.usedOutputTokens
	return float64(used) >= 0.80*float64(t.maxTokens)
}

// EstimateCostUSD returns the dollar cost of tokens consumed so far.
func (t *JobTracker) EstimateCostUSD() float64 {
	inputCost := float64(t.usedInputTokens) / 1_000_000 * t.inputCostPerM
	outputCost := float64(t.usedOutputTokens) / 1_000_000 * t.outputCostPerM
	return inputCost + outputCost
}

// String renders a short usage summary for logging.
func (t *JobTracker) String() string {
	return fmt.Sprintf("tokens=%d/%d cost=$%.4f", t.usedInputTokens+t.usedOutputTokens, t.maxTokens, t.EstimateCostUSD())
}
