// Package payment receives PayFast's server-to-server Instant
// Transaction Notifications. PayFast retries any non-200 response, so
// the handler acknowledges everything that is not ours to act on and
// only signals failure when processing genuinely broke.
package payment

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/getmebooked/booking-api/internal/payment"
	"github.com/getmebooked/booking-api/internal/service/booking"
	"github.com/getmebooked/booking-api/pkg/logger"
)

type Handler struct {
	bookingSvc *booking.Service
	gateway    *payment.PayFast
	logger     *logger.Logger
}

func NewHandler(bookingSvc *booking.Service, gateway *payment.PayFast, l *logger.Logger) *Handler {
	return &Handler{
		bookingSvc: bookingSvc,
		gateway:    gateway,
		logger:     l,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/payfast/notify", h.HandleITN)
}

func (h *Handler) HandleITN(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	notification, err := payment.ParseITN(string(body))
	if err != nil {
		h.logger.Warn("discarding malformed ITN", "error", err.Error())
		c.Status(http.StatusOK)
		return
	}

	if !h.gateway.VerifySignature(notification) {
		h.logger.Warn("discarding ITN with bad signature", "m_payment_id", notification.MPaymentID)
		c.Status(http.StatusBadRequest)
		return
	}

	if !notification.Complete() {
		h.logger.Info("ignoring non-complete ITN",
			"m_payment_id", notification.MPaymentID,
			"payment_status", notification.PaymentStatus)
		c.Status(http.StatusOK)
		return
	}

	appointmentID, err := notification.AppointmentID()
	if err != nil {
		h.logger.Warn("discarding ITN with unparseable payment ID", "m_payment_id", notification.MPaymentID)
		c.Status(http.StatusOK)
		return
	}

	if err := h.bookingSvc.HandlePaymentComplete(c.Request.Context(), appointmentID, notification.PFPaymentID); err != nil {
		// Non-200 makes PayFast retry the notification later.
		h.logger.Error(err, "failed to process payment notification",
			"appointment_id", appointmentID.String())
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusOK)
}
