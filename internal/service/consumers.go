package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobfield/payment-engine/internal/interfaces"
	"github.com/jobfield/payment-engine/internal/models"
)

// The consumers carry no idempotency checks of their own: the ledger's
// conditional update guarantees each completed payment reaches its consumer
// exactly once, and that single point of truth is deliberate.

// BidFeeHandler settles a hide or feature fee on a bid. Which one is being
// paid follows from the bid's current flags: they are mutually exclusive,
// so the flag not yet set is the one the payment bought.
type BidFeeHandler struct {
	store    interfaces.MarketplaceStore
	notifier interfaces.Notifier
	log      *zap.Logger
}

func NewBidFeeHandler(store interfaces.MarketplaceStore, notifier interfaces.Notifier, log *zap.Logger) *BidFeeHandler {
	return &BidFeeHandler{store: store, notifier: notifier, log: log}
}

func (h *BidFeeHandler) Apply(ctx context.Context, bidID int64, amount float64, receipt string) error {
	bid, err := h.store.GetBid(ctx, bidID)
	if err != nil {
		return fmt.Errorf("load bid %d: %w", bidID, err)
	}

	var effect string
	switch {
	case !bid.IsHidden:
		if err := h.store.SetBidHideFee(ctx, bidID, amount); err != nil {
			return fmt.Errorf("set hide fee on bid %d: %w", bidID, err)
		}
		effect = "hidden"
	case !bid.IsFeatured:
		if err := h.store.SetBidFeatureFee(ctx, bidID, amount); err != nil {
			return fmt.Errorf("set feature fee on bid %d: %w", bidID, err)
		}
		effect = "featured"
	default:
		return fmt.Errorf("bid %d has no outstanding fee", bidID)
	}

	rec := &models.PaymentRecord{
		UserID:  bid.BidderID,
		Type:    "bid_fee",
		Amount:  amount,
		Receipt: receipt,
		Status:  "completed",
	}
	if err := h.store.InsertPaymentRecord(ctx, rec); err != nil {
		return fmt.Errorf("record bid fee payment: %w", err)
	}

	h.notify(ctx, models.Notification{
		UserID: bid.BidderID,
		Message: fmt.Sprintf("Payment of %.2f received. Your bid on %q is now %s.",
			amount, bid.JobTitle, effect),
	})

	h.log.Info("bid fee applied",
		zap.Int64("bid_id", bidID),
		zap.String("effect", effect),
		zap.Float64("amount", amount),
	)
	return nil
}

// SkillFeeHandler settles a skill-verification fee.
type SkillFeeHandler struct {
	store    interfaces.MarketplaceStore
	notifier interfaces.Notifier
	log      *zap.Logger
}

func NewSkillFeeHandler(store interfaces.MarketplaceStore, notifier interfaces.Notifier, log *zap.Logger) *SkillFeeHandler {
	return &SkillFeeHandler{store: store, notifier: notifier, log: log}
}

func (h *SkillFeeHandler) Apply(ctx context.Context, userSkillID int64, amount float64, receipt string) error {
	skill, err := h.store.GetUserSkill(ctx, userSkillID)
	if err != nil {
		return fmt.Errorf("load user skill %d: %w", userSkillID, err)
	}

	if err := h.store.MarkSkillFeePaid(ctx, userSkillID); err != nil {
		return fmt.Errorf("mark skill fee paid %d: %w", userSkillID, err)
	}

	rec := &models.PaymentRecord{
		UserID:  skill.UserID,
		Type:    "skill_verification",
		Amount:  amount,
		Receipt: receipt,
		Status:  "completed",
	}
	if err := h.store.InsertPaymentRecord(ctx, rec); err != nil {
		return fmt.Errorf("record skill fee payment: %w", err)
	}

	h.notify(ctx, models.Notification{
		UserID: skill.UserID,
		Message: fmt.Sprintf("Verification fee for %q received. You can now take the assessment.",
			skill.SkillName),
	})

	h.log.Info("skill fee applied",
		zap.Int64("user_skill_id", userSkillID),
		zap.String("skill", skill.SkillName),
	)
	return nil
}

func (h *BidFeeHandler) notify(ctx context.Context, n models.Notification) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.Notify(ctx, n); err != nil {
		h.log.Error("notification publish failed", zap.Int64("user_id", n.UserID), zap.Error(err))
	}
}

func (h *SkillFeeHandler) notify(ctx context.Context, n models.Notification) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.Notify(ctx, n); err != nil {
		h.log.Error("notification publish failed", zap.Int64("user_id", n.UserID), zap.Error(err))
	}
}
