package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jobfield/payment-engine/internal/handlers"
	"github.com/jobfield/payment-engine/internal/telemetry"
)

func NewRouter(payment *handlers.PaymentHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "payment-engine"})
	})

	r.GET("/fees/quote", payment.QuoteFee)
	r.POST("/payments/initiate", payment.InitiatePayment)
	r.POST("/payments/callback", payment.HandleCallback)
	r.GET("/payments/:checkoutID/status", payment.GetStatus)

	return r
}
