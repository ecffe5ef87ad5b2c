package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobfield/payment-engine/internal/interfaces"
	"github.com/jobfield/payment-engine/internal/models"
	"github.com/jobfield/payment-engine/internal/phone"
)

// Initiator starts push payments. One ledger row per acknowledged push;
// nothing is persisted when the gateway rejects, so a failed initiation is
// fully retryable.
type Initiator struct {
	ledger  interfaces.TransactionLedger
	gateway interfaces.PushGateway
	log     *zap.Logger
}

func NewInitiator(ledger interfaces.TransactionLedger, gw interfaces.PushGateway, log *zap.Logger) *Initiator {
	return &Initiator{ledger: ledger, gateway: gw, log: log}
}

func (i *Initiator) Initiate(ctx context.Context, rawPhone string, amount float64, reference, description string) (string, error) {
	payerPhone := phone.Normalize(rawPhone)

	checkoutID, err := i.gateway.STKPush(ctx, payerPhone, amount, reference, description)
	if err != nil {
		i.log.Warn("push request not acknowledged",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return "", err
	}

	tx := &models.Transaction{
		CheckoutID:  checkoutID,
		Phone:       payerPhone,
		Amount:      amount,
		Reference:   reference,
		Description: description,
		Status:      models.TxPending,
	}
	if err := i.ledger.Create(ctx, tx); err != nil {
		// The gateway accepted; losing the row here means the callback will
		// land on an unknown checkout ID and be discarded.
		i.log.Error("failed to persist pending transaction",
			zap.String("checkout_id", checkoutID),
			zap.Error(err),
		)
		return "", fmt.Errorf("persist transaction %s: %w", checkoutID, err)
	}

	i.log.Info("payment initiated",
		zap.String("checkout_id", checkoutID),
		zap.String("reference", reference),
		zap.Float64("amount", amount),
	)
	return checkoutID, nil
}
