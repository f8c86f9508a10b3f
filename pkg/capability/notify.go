package capability

import "context"

// PermanentFailureNotice carries everything an admin needs to triage a
// message that exhausted its retry budget (§7: "user-visible behaviour on
// failure").
type PermanentFailureNotice struct {
	MessageID string
	Sender    string
	Subject   string
	Timestamp string
	Error     string
	RetryURL  string
}

// DebtUpdateNotice is sent for MEDIUM-confidence (update_and_notify) routes
// so a human can verify the auto-committed update (§4.8).
type DebtUpdateNotice struct {
	MessageID    string
	ClientName   string
	CreditorName string
	Amount       float64
	Confidence   float64
}

// Notifier is the abstract outbound-notification capability (§6). Every
// method is best-effort: implementations and callers alike must never let
// a notification failure propagate into the caller's result (§7, §9).
type Notifier interface {
	NotifyPermanentFailure(ctx context.Context, notice PermanentFailureNotice)
	NotifyDebtUpdate(ctx context.Context, notice DebtUpdateNotice)
}
