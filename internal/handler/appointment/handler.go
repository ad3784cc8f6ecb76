// Package appointment exposes the owner-facing appointment API:
// listing the calendar and driving the lifecycle of each booking.
package appointment

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/service/booking"
	"github.com/getmebooked/booking-api/internal/timeutil"
	"github.com/getmebooked/booking-api/pkg/errors"
	"github.com/getmebooked/booking-api/pkg/httputil"
)

type Handler struct {
	bookingSvc *booking.Service
}

func NewHandler(bookingSvc *booking.Service) *Handler {
	return &Handler{bookingSvc: bookingSvc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	appointments := rg.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.POST("/:id/confirm", h.ConfirmAppointment)
		appointments.POST("/:id/decline", h.DeclineAppointment)
		appointments.POST("/:id/complete", h.CompleteAppointment)
		appointments.POST("/:id/cancel", h.CancelAppointment)
		appointments.POST("/:id/request-reschedule", h.RequestReschedule)
		appointments.PATCH("/:id/status", h.UpdateStatus)
	}
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=confirmed declined reschedule_requested completed cancelled"`
}

// UpdateStatus is the generic form of the dedicated transition routes;
// the same lifecycle rules apply either way.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid status update", err))
		return
	}

	switch model.AppointmentStatus(req.Status) {
	case model.AppointmentStatusConfirmed:
		h.transition(c, h.bookingSvc.Confirm)
	case model.AppointmentStatusDeclined:
		h.transition(c, h.bookingSvc.Decline)
	case model.AppointmentStatusCompleted:
		h.transition(c, h.bookingSvc.Complete)
	case model.AppointmentStatusCancelled:
		h.transition(c, h.bookingSvc.Cancel)
	case model.AppointmentStatusRescheduleRequested:
		h.transition(c, h.bookingSvc.RequestReschedule)
	}
}

type listQuery struct {
	BusinessID string `form:"business_id" binding:"required,uuid"`
	StaffID    string `form:"staff_id" binding:"omitempty,uuid"`
	Status     string `form:"status" binding:"omitempty,oneof=pending confirmed declined reschedule_requested completed cancelled"`
	DateFrom   string `form:"date_from"`
	DateTo     string `form:"date_to"`
}

func (h *Handler) ListAppointments(c *gin.Context) {
	var req listQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid list query", err))
		return
	}

	filters := &model.AppointmentFilters{
		BusinessID: uuid.MustParse(req.BusinessID),
		Status:     model.AppointmentStatus(req.Status),
	}
	if req.StaffID != "" {
		staffID := uuid.MustParse(req.StaffID)
		filters.StaffID = &staffID
	}
	if req.DateFrom != "" {
		from, err := timeutil.ParseDate(req.DateFrom, time.Local)
		if err != nil {
			httputil.RespondWithError(c, errors.NewBadRequest("invalid date_from", err))
			return
		}
		filters.DateFrom = from
	}
	if req.DateTo != "" {
		to, err := timeutil.ParseDate(req.DateTo, time.Local)
		if err != nil {
			httputil.RespondWithError(c, errors.NewBadRequest("invalid date_to", err))
			return
		}
		filters.DateTo = to
	}

	appointments, err := h.bookingSvc.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}
	appt, err := h.bookingSvc.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) ConfirmAppointment(c *gin.Context) {
	h.transition(c, h.bookingSvc.Confirm)
}

func (h *Handler) DeclineAppointment(c *gin.Context) {
	h.transition(c, h.bookingSvc.Decline)
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	h.transition(c, h.bookingSvc.Complete)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	h.transition(c, h.bookingSvc.Cancel)
}

// RequestReschedule keeps the slot blocked while the owner asks the
// guest to pick a new time.
func (h *Handler) RequestReschedule(c *gin.Context) {
	h.transition(c, h.bookingSvc.RequestReschedule)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*model.Appointment, error)) {
	id, ok := h.appointmentID(c)
	if !ok {
		return
	}
	appt, err := fn(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) appointmentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid appointment ID", err))
		return uuid.Nil, false
	}
	return id, true
}
