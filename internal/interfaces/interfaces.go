package interfaces

import (
	"context"
	"time"

	"github.com/jobfield/payment-engine/internal/models"
)

// TransactionLedger is the durable store of push-payment transactions.
// MarkCompleted and MarkFailed are conditional updates: they transition a
// row out of pending and report whether this call won the transition, so a
// transaction leaves pending at most once no matter how many callbacks race.
type TransactionLedger interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByCheckoutID(ctx context.Context, checkoutID string) (*models.Transaction, error)
	MarkCompleted(ctx context.Context, checkoutID, receipt string) (bool, error)
	MarkFailed(ctx context.Context, checkoutID string) (bool, error)
	FindStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.Transaction, error)
}

// MarketplaceStore gives the payment consumers access to the domain objects
// a completed payment settles: bids, user skills and the payment ledger.
type MarketplaceStore interface {
	GetBid(ctx context.Context, bidID int64) (*models.Bid, error)
	SetBidHideFee(ctx context.Context, bidID int64, amount float64) error
	SetBidFeatureFee(ctx context.Context, bidID int64, amount float64) error
	GetUserSkill(ctx context.Context, userSkillID int64) (*models.UserSkill, error)
	MarkSkillFeePaid(ctx context.Context, userSkillID int64) error
	InsertPaymentRecord(ctx context.Context, rec *models.PaymentRecord) error
}

// PushGateway is the outbound face of the mobile-money gateway.
type PushGateway interface {
	STKPush(ctx context.Context, phone string, amount float64, reference, description string) (checkoutID string, err error)
	QueryStatus(ctx context.Context, checkoutID string) (*models.STKQueryResult, error)
}

// Locker serializes callback processing per checkout ID.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// EventPublisher emits transaction state-change events.
type EventPublisher interface {
	PublishStateChange(ctx context.Context, ev models.StateChangeEvent) error
}

// Notifier delivers user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}
