package models

import "time"

type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxFailed    TxStatus = "failed"
)

// Terminal reports whether no further status transition is permitted.
func (s TxStatus) Terminal() bool {
	return s == TxCompleted || s == TxFailed
}

// Transaction is one push-payment attempt acknowledged by the gateway.
// CheckoutID is assigned by the gateway and is the lookup key for both
// callbacks and status polls.
type Transaction struct {
	CheckoutID  string
	Phone       string
	Amount      float64
	Reference   string
	Description string
	Status      TxStatus
	Receipt     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StateChangeEvent is published to Kafka on every pending -> terminal
// transition.
type StateChangeEvent struct {
	CheckoutID     string    `json:"checkout_id"`
	Status         TxStatus  `json:"status"`
	PreviousStatus TxStatus  `json:"previous_status"`
	Receipt        string    `json:"receipt,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Notification is a user-facing message emitted by the payment consumers.
type Notification struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

// PaymentRecord is a row in the marketplace's payment ledger, written once
// per applied payment.
type PaymentRecord struct {
	ID        string
	UserID    int64
	Type      string // bid_fee or skill_verification
	Amount    float64
	Receipt   string
	Status    string
	CreatedAt time.Time
}

// Bid is the engine's view of a marketplace bid. The marketplace owns the
// row; the engine only reads the flags and writes the fee back.
type Bid struct {
	ID         int64
	JobID      int64
	BidderID   int64
	JobTitle   string
	IsHidden   bool
	IsFeatured bool
}

// UserSkill is the engine's view of a user-skill awaiting verification.
type UserSkill struct {
	ID        int64
	UserID    int64
	SkillID   int64
	SkillName string
	FeePaid   bool
}

// STKQueryResult is the gateway's answer to a transaction-status query.
// ResultCode "0" means the charge went through. The query never returns a
// receipt, so ResponseDesc is kept verbatim to give manual reconciliation
// something to search the gateway portal by.
type STKQueryResult struct {
	ResultCode   string
	ResultDesc   string
	ResponseDesc string
}
