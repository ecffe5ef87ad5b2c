package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/jobfield/payment-engine/internal/interfaces"
	"github.com/jobfield/payment-engine/internal/models"
)

const receiptFieldName = "MpesaReceiptNumber"

var (
	callbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Callback deliveries by outcome.",
	}, []string{"outcome"})
)

// PaymentRouter dispatches a completed payment to its domain consumer.
type PaymentRouter interface {
	Route(ctx context.Context, tag models.ReferenceTag, amount float64, receipt string) error
}

// Ingestor applies the gateway's asynchronous result to the ledger. It never
// surfaces errors to the transport layer; the gateway gets its 2xx no matter
// what, otherwise its retry policy hammers the endpoint forever.
type Ingestor struct {
	ledger interfaces.TransactionLedger
	locker interfaces.Locker
	events interfaces.EventPublisher
	router PaymentRouter
	log    *zap.Logger

	lockTTL time.Duration
}

func NewIngestor(
	ledger interfaces.TransactionLedger,
	locker interfaces.Locker,
	events interfaces.EventPublisher,
	router PaymentRouter,
	log *zap.Logger,
) *Ingestor {
	return &Ingestor{
		ledger:  ledger,
		locker:  locker,
		events:  events,
		router:  router,
		log:     log,
		lockTTL: 30 * time.Second,
	}
}

// Ingest processes one raw callback payload. Returns true when the payload
// transitioned a transaction, false when it was discarded.
func (in *Ingestor) Ingest(ctx context.Context, payload []byte) bool {
	var envelope models.CallbackEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		callbacksTotal.WithLabelValues("malformed").Inc()
		in.log.Warn("malformed callback payload", zap.Error(err))
		return false
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		callbacksTotal.WithLabelValues("malformed").Inc()
		in.log.Warn("callback without CheckoutRequestID")
		return false
	}

	locked, err := in.locker.Acquire(ctx, cb.CheckoutRequestID, in.lockTTL)
	if err != nil {
		in.log.Error("lock acquire failed, proceeding on ledger guard alone",
			zap.String("checkout_id", cb.CheckoutRequestID),
			zap.Error(err),
		)
	} else if !locked {
		// Another delivery for the same checkout ID is mid-flight. Let it
		// finish; the gateway will not get an error either way.
		callbacksTotal.WithLabelValues("concurrent").Inc()
		return false
	} else {
		defer in.locker.Release(ctx, cb.CheckoutRequestID)
	}

	tx, err := in.ledger.GetByCheckoutID(ctx, cb.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			callbacksTotal.WithLabelValues("unknown").Inc()
			in.log.Warn("callback for unknown transaction",
				zap.String("checkout_id", cb.CheckoutRequestID),
			)
		} else {
			callbacksTotal.WithLabelValues("error").Inc()
			in.log.Error("ledger lookup failed",
				zap.String("checkout_id", cb.CheckoutRequestID),
				zap.Error(err),
			)
		}
		return false
	}

	if tx.Status.Terminal() {
		// Duplicate delivery. Not an error; side effects already fired once.
		callbacksTotal.WithLabelValues("duplicate").Inc()
		return false
	}

	if cb.ResultCode == 0 {
		receipt := receiptFromMetadata(cb.CallbackMetadata.Item)
		return in.Resolve(ctx, tx, true, receipt)
	}

	in.log.Info("payment failed at gateway",
		zap.String("checkout_id", cb.CheckoutRequestID),
		zap.Int("result_code", cb.ResultCode),
		zap.String("result_desc", cb.ResultDesc),
	)
	return in.Resolve(ctx, tx, false, "")
}

// Resolve commits the terminal transition and, on success, dispatches the
// payment to its consumer. Shared by callback ingestion and the
// reconciliation sweep; the conditional update means only one of the two
// can win for a given transaction.
func (in *Ingestor) Resolve(ctx context.Context, tx *models.Transaction, success bool, receipt string) bool {
	var (
		won    bool
		err    error
		status models.TxStatus
	)
	if success {
		status = models.TxCompleted
		won, err = in.ledger.MarkCompleted(ctx, tx.CheckoutID, receipt)
	} else {
		status = models.TxFailed
		won, err = in.ledger.MarkFailed(ctx, tx.CheckoutID)
	}
	if err != nil {
		callbacksTotal.WithLabelValues("error").Inc()
		in.log.Error("terminal transition failed",
			zap.String("checkout_id", tx.CheckoutID),
			zap.Error(err),
		)
		return false
	}
	if !won {
		callbacksTotal.WithLabelValues("duplicate").Inc()
		return false
	}

	callbacksTotal.WithLabelValues(string(status)).Inc()
	in.publishStateChange(ctx, tx.CheckoutID, status, receipt)

	if !success {
		return true
	}

	tag, err := models.ParseReference(tx.Reference)
	if err != nil {
		// The money moved, so the transaction stays completed; a human has
		// to reconcile the orphaned payment.
		in.log.Error("cannot route completed payment",
			zap.String("checkout_id", tx.CheckoutID),
			zap.String("reference", tx.Reference),
			zap.Error(err),
		)
		return true
	}

	if err := in.router.Route(ctx, tag, tx.Amount, receipt); err != nil {
		in.log.Error("payment consumer failed",
			zap.String("checkout_id", tx.CheckoutID),
			zap.String("reference", tx.Reference),
			zap.Error(err),
		)
	}
	return true
}

func (in *Ingestor) publishStateChange(ctx context.Context, checkoutID string, status models.TxStatus, receipt string) {
	if in.events == nil {
		return
	}
	ev := models.StateChangeEvent{
		CheckoutID:     checkoutID,
		Status:         status,
		PreviousStatus: models.TxPending,
		Receipt:        receipt,
		Timestamp:      time.Now().UTC(),
	}
	if err := in.events.PublishStateChange(ctx, ev); err != nil {
		in.log.Error("failed to publish state change",
			zap.String("checkout_id", checkoutID),
			zap.Error(err),
		)
	}
}

// receiptFromMetadata extracts the receipt by field name rather than list
// position; the gateway reorders metadata items between deliveries.
func receiptFromMetadata(items []models.MetadataItem) string {
	for _, item := range items {
		if item.Name != receiptFieldName {
			continue
		}
		switch v := item.Value.(type) {
		case string:
			return v
		default:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}
