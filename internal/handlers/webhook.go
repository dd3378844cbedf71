package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stallwise/stallwise-orders-service/internal/gateway"
	"github.com/stallwise/stallwise-orders-service/internal/logging"
)

// PaymentNotify handles POST /api/v1/payments/notify, the gateway's
// server-to-server callback. The response body is the plain-text
// acknowledgement the gateway parses; anything other than "1|OK" makes
// it redeliver, so the HTTP status is always 200 and the body carries
// the verdict.
func (h *Handlers) PaymentNotify(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		h.logger.Error("Failed to parse notification form", logging.Fields{"error": err.Error()})
		c.String(http.StatusOK, gateway.AckError("MalformedForm"))
		return
	}

	ack := h.reconcile.HandleNotification(c.Request.Context(), c.Request.PostForm)
	c.String(http.StatusOK, ack)
}

// PaymentComplete handles GET /api/v1/payments/complete, the browser
// return leg after the gateway cashier page. It carries no trusted
// payment result; the order state shown here comes from our own records.
func (h *Handlers) PaymentComplete(c *gin.Context) {
	tradeNo := c.Query("MerchantTradeNo")
	orderID, err := gateway.ParseTradeNo(tradeNo)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown trade number"})
		return
	}

	order, err := h.checkout.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": order.ID,
		"status":   order.Status,
	})
}
