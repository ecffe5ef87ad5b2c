// Package worker sweeps transactions whose callback never arrived and
// settles them against the gateway's own record.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jobfield/payment-engine/internal/gateway"
	"github.com/jobfield/payment-engine/internal/interfaces"
	"github.com/jobfield/payment-engine/internal/models"
)

const sweepBatchSize = 100

// Resolver commits a terminal transition for a transaction. Satisfied by
// the callback ingestor, so a sweep and a late callback race through the
// same conditional update and only one wins.
type Resolver interface {
	Resolve(ctx context.Context, tx *models.Transaction, success bool, receipt string) bool
}

type Reconciler struct {
	ledger   interfaces.TransactionLedger
	gateway  interfaces.PushGateway
	resolver Resolver
	log      *zap.Logger

	staleAge time.Duration
	interval time.Duration
}

func NewReconciler(
	ledger interfaces.TransactionLedger,
	gw interfaces.PushGateway,
	resolver Resolver,
	staleAge, interval time.Duration,
	log *zap.Logger,
) *Reconciler {
	return &Reconciler{
		ledger:   ledger,
		gateway:  gw,
		resolver: resolver,
		log:      log,
		staleAge: staleAge,
		interval: interval,
	}
}

func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info("reconciliation worker started",
		zap.Duration("stale_age", r.staleAge),
		zap.Duration("interval", r.interval),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.log.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep asks the gateway about every transaction stuck in pending longer
// than the stale age and applies the gateway's answer. Transactions the
// gateway is still processing stay pending for the next pass.
func (r *Reconciler) Sweep(ctx context.Context) error {
	stuck, err := r.ledger.FindStalePending(ctx, r.staleAge, sweepBatchSize)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	r.log.Info("reconciling stale pending transactions", zap.Int("count", len(stuck)))

	for i := range stuck {
		tx := &stuck[i]

		res, err := r.gateway.QueryStatus(ctx, tx.CheckoutID)
		if err != nil {
			if errors.Is(err, gateway.ErrStillProcessing) {
				continue
			}
			r.log.Warn("status query failed, leaving pending",
				zap.String("checkout_id", tx.CheckoutID),
				zap.Error(err),
			)
			continue
		}

		// The query carries no receipt; log everything the gateway said so
		// the completed-without-receipt rows can be chased by hand.
		success := res.ResultCode == "0"
		if r.resolver.Resolve(ctx, tx, success, "") {
			r.log.Info("stale transaction reconciled",
				zap.String("checkout_id", tx.CheckoutID),
				zap.Bool("success", success),
				zap.String("result_code", res.ResultCode),
				zap.String("result_desc", res.ResultDesc),
				zap.String("response_desc", res.ResponseDesc),
			)
		}
	}
	return nil
}
