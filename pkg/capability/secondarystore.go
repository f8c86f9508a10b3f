package capability

import "context"

// ClientSelector identifies a debtor client in the secondary store, via one
// of the three lookup strategies A3 and the reconciler's drift scan try in
// order: ticket id, (first, last) name, or Aktenzeichen case number.
type ClientSelector struct {
	TicketID    string
	FirstName   string
	LastName    string
	CaseNumber string // Aktenzeichen
}

// CreditorSelector identifies the creditor side of a debt record, matched
// by email substring/domain then fuzzy name overlap (§4.12).
type CreditorSelector struct {
	Email string
	Name  string
}

// DebtUpdate is the opaque payload written to the secondary store's
// creditor-debt record by both Phase B and the reconciler's repair path.
type DebtUpdate struct {
	Amount              float64
	Source              string // always "creditor_response"
	ResponseTimestamp   string
	ResponseText        string
	ReferenceNumbers    []string
	ExtractionConfidence float64
}

// ClientRecord is what the secondary store returns for a resolved client,
// used by A3's conflict detection and the reconciler's drift scan.
type ClientRecord struct {
	Found         bool
	FirstName     string
	LastName      string
	CreditorEmail string
	CreditorName  string
	DebtAmount    float64
}

// SecondaryStoreAdapter is the abstract document-store capability (§6).
// How names are compared is left to the implementation; no collation is
// applied on this side of the interface.
type SecondaryStoreAdapter interface {
	GetClientByTicket(ctx context.Context, ticketID string) (ClientRecord, error)
	GetClientByName(ctx context.Context, first, last string) (ClientRecord, error)
	GetClientByCaseNumber(ctx context.Context, az string) (ClientRecord, error)
	UpdateCreditorDebt(ctx context.Context, client ClientSelector, creditor CreditorSelector, update DebtUpdate) (bool, error)
}
