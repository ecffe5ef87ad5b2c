package handlers

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jobfield/payment-engine/internal/fees"
	"github.com/jobfield/payment-engine/internal/interfaces"
	"github.com/jobfield/payment-engine/internal/service"
)

type PaymentHandler struct {
	initiator *service.Initiator
	ingestor  *service.Ingestor
	ledger    interfaces.TransactionLedger
	log       *zap.Logger
}

func NewPaymentHandler(initiator *service.Initiator, ingestor *service.Ingestor, ledger interfaces.TransactionLedger, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		initiator: initiator,
		ingestor:  ingestor,
		ledger:    ledger,
		log:       log,
	}
}

type initiateRequest struct {
	Phone       string  `json:"phone" binding:"required"`
	Amount      float64 `json:"amount" binding:"required,gt=0"`
	Reference   string  `json:"reference" binding:"required"`
	Description string  `json:"description"`
}

func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	checkoutID, err := h.initiator.Initiate(c.Request.Context(), req.Phone, req.Amount, req.Reference, req.Description)
	if err != nil {
		h.log.Warn("initiation failed",
			zap.String("reference", req.Reference),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment could not be started, try again"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"checkout_id": checkoutID})
}

// HandleCallback acknowledges the gateway with 200 regardless of what the
// payload did internally; anything else triggers the gateway's redelivery
// loop.
func (h *PaymentHandler) HandleCallback(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warn("unreadable callback body", zap.Error(err))
	} else {
		h.ingestor.Ingest(c.Request.Context(), payload)
	}

	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}

// QuoteFee prices a hide or feature fee for a job's salary. The marketplace
// calls this before initiating, so the amount it charges is the amount the
// schedule says.
func (h *PaymentHandler) QuoteFee(c *gin.Context) {
	salary, err := strconv.ParseFloat(c.Query("salary"), 64)
	if err != nil || salary <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid salary"})
		return
	}

	feeType := fees.Type(c.Query("type"))
	amount, err := fees.Compute(salary, feeType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type":   feeType,
		"salary": salary,
		"amount": amount,
	})
}

func (h *PaymentHandler) GetStatus(c *gin.Context) {
	checkoutID := c.Param("checkoutID")

	tx, err := h.ledger.GetByCheckoutID(c.Request.Context(), checkoutID)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
		return
	}
	if err != nil {
		h.log.Error("status lookup failed", zap.String("checkout_id", checkoutID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch transaction"})
		return
	}

	resp := gin.H{
		"checkout_id": tx.CheckoutID,
		"status":      tx.Status,
	}
	if tx.Receipt != "" {
		resp["receipt"] = tx.Receipt
	}
	c.JSON(http.StatusOK, resp)
}
