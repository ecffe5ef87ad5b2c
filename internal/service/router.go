package service

import (
	"context"
	"fmt"

	"github.com/jobfield/payment-engine/internal/models"
)

// Router dispatches completed payments to their consumers. The switch is
// closed over the reference kinds ParseReference admits; the default case
// only fires if a kind is added to the parser without a handler here.
type Router struct {
	bids   *BidFeeHandler
	skills *SkillFeeHandler
}

func NewRouter(bids *BidFeeHandler, skills *SkillFeeHandler) *Router {
	return &Router{bids: bids, skills: skills}
}

func (r *Router) Route(ctx context.Context, tag models.ReferenceTag, amount float64, receipt string) error {
	switch tag.Kind {
	case models.RefBid:
		return r.bids.Apply(ctx, tag.ID, amount, receipt)
	case models.RefSkill:
		return r.skills.Apply(ctx, tag.ID, amount, receipt)
	default:
		return fmt.Errorf("no consumer registered for reference kind %q", tag.Kind)
	}
}
