package domain

import "time"

// Terminal transaction statuses, plus the transient "pending" snapshot
// written at admission. Once a terminal status is logged it never changes.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDeclined = "declined"
	StatusRejected = "rejected"
)

// Outcome reasons that appear in log entries.
const (
	ReasonProcessing        = "processing"
	ReasonCompleted         = "completed"
	ReasonUnverifiedLimit   = "unverified_limit"
	ReasonInsufficientFunds = "insufficient_funds"
	ReasonInternalError     = "internal_error"
)

// Transaction is a single money-transfer request. The request fields are
// immutable after construction; OK and Reason carry the antifraud verdict
// forward to the settlement stage.
type Transaction struct {
	ID     int64
	From   int64
	To     int64
	Amount int64

	OK     bool
	Reason string

	CreatedAt time.Time
}

// NewTransaction builds a transfer request. The amount must be positive and
// sender and receiver must differ.
func NewTransaction(id, from, to, amount int64) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrBadAmount
	}
	if from == to {
		return nil, ErrSameAccount
	}
	return &Transaction{
		ID:        id,
		From:      from,
		To:        to,
		Amount:    amount,
		OK:        true,
		Reason:    ReasonCompleted,
		CreatedAt: time.Now(),
	}, nil
}

// Reject marks the transaction as failed antifraud screening. The settlement
// stage short-circuits rejected transactions so all terminal logging funnels
// through one place.
func (t *Transaction) Reject(reason string) {
	t.OK = false
	t.Reason = reason
}
