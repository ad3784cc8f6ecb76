// Package booking exposes the guest-facing API: browse a business,
// check availability, book, and manage an appointment through the
// action token from the confirmation email.
package booking

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/service/availability"
	"github.com/getmebooked/booking-api/internal/service/booking"
	"github.com/getmebooked/booking-api/internal/service/directory"
	"github.com/getmebooked/booking-api/internal/timeutil"
	"github.com/getmebooked/booking-api/pkg/errors"
	"github.com/getmebooked/booking-api/pkg/httputil"
)

type Handler struct {
	bookingSvc      *booking.Service
	availabilitySvc *availability.Service
	directorySvc    *directory.Service
}

func NewHandler(bookingSvc *booking.Service, availabilitySvc *availability.Service, directorySvc *directory.Service) *Handler {
	return &Handler{
		bookingSvc:      bookingSvc,
		availabilitySvc: availabilitySvc,
		directorySvc:    directorySvc,
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/businesses/:slug", h.GetBusinessPage)
	rg.GET("/availability", h.GetAvailability)

	bookings := rg.Group("/bookings")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("/:token", h.GetBooking)
		bookings.POST("/:token/reschedule", h.RescheduleBooking)
		bookings.POST("/:token/cancel", h.CancelBooking)
	}
}

func (h *Handler) GetBusinessPage(c *gin.Context) {
	page, err := h.directorySvc.GetBusinessPage(c.Request.Context(), c.Param("slug"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, page)
}

type availabilityQuery struct {
	BusinessID string `form:"business_id" binding:"required,uuid"`
	ServiceID  string `form:"service_id" binding:"required,uuid"`
	StaffID    string `form:"staff_id" binding:"omitempty,uuid"`
	Date       string `form:"date" binding:"required"`
	Attendees  int    `form:"attendees" binding:"gte=0,lte=100"`
}

func (h *Handler) GetAvailability(c *gin.Context) {
	var req availabilityQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid availability query", err))
		return
	}

	date, err := timeutil.ParseDate(req.Date, time.Local)
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid date", err))
		return
	}

	q := availability.Query{
		BusinessID: uuid.MustParse(req.BusinessID),
		ServiceID:  uuid.MustParse(req.ServiceID),
		Date:       date,
		Attendees:  req.Attendees,
	}
	if req.StaffID != "" {
		staffID := uuid.MustParse(req.StaffID)
		q.StaffID = &staffID
	}

	slots, err := h.availabilitySvc.GetAvailableSlots(c.Request.Context(), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{
		"date":  req.Date,
		"slots": slots,
	})
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid booking request", err))
		return
	}

	result, err := h.bookingSvc.Book(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, result)
}

func (h *Handler) GetBooking(c *gin.Context) {
	appt, err := h.bookingSvc.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) RescheduleBooking(c *gin.Context) {
	appt, err := h.bookingSvc.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid reschedule request", err))
		return
	}

	result, err := h.bookingSvc.Reschedule(c.Request.Context(), appt.ID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	appt, err := h.bookingSvc.GetByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cancelled, err := h.bookingSvc.Cancel(c.Request.Context(), appt.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cancelled)
}
