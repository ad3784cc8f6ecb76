// Package business exposes the owner-facing catalog API: the business
// itself, operating hours, blackout dates, services, staff and clients.
package business

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/service/directory"
	"github.com/getmebooked/booking-api/internal/timeutil"
	"github.com/getmebooked/booking-api/pkg/errors"
	"github.com/getmebooked/booking-api/pkg/httputil"
)

type Handler struct {
	directorySvc *directory.Service
}

func NewHandler(directorySvc *directory.Service) *Handler {
	return &Handler{directorySvc: directorySvc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	businesses := rg.Group("/businesses")
	{
		businesses.POST("", h.CreateBusiness)
		businesses.GET("/:id", h.GetBusiness)
		businesses.PATCH("/:id", h.UpdateBusiness)

		businesses.GET("/:id/hours", h.ListOperatingHours)
		businesses.PUT("/:id/hours", h.SetOperatingHours)
		businesses.DELETE("/:id/hours/:bucket", h.DeleteOperatingHours)

		businesses.GET("/:id/blocks", h.ListBlocks)
		businesses.POST("/:id/blocks", h.CreateBlock)
		businesses.DELETE("/:id/blocks/:blockID", h.DeleteBlock)

		businesses.GET("/:id/services", h.ListServices)
		businesses.POST("/:id/services", h.CreateService)
		businesses.PATCH("/:id/services/:serviceID", h.UpdateService)
		businesses.DELETE("/:id/services/:serviceID", h.DeleteService)

		businesses.GET("/:id/staff", h.ListStaff)
		businesses.POST("/:id/staff", h.CreateStaff)
		businesses.DELETE("/:id/staff/:staffID", h.RemoveStaff)
		businesses.PUT("/:id/staff/:staffID/services", h.SetStaffServices)
		businesses.PUT("/:id/staff/:staffID/hours", h.SetStaffHours)
		businesses.POST("/:id/staff/:staffID/blocks", h.CreateStaffBlock)
		businesses.DELETE("/:id/staff/:staffID/blocks/:blockID", h.DeleteStaffBlock)

		businesses.GET("/:id/clients", h.ListClients)
		businesses.PUT("/:id/clients/:clientID/deposit-exempt", h.SetClientDepositExempt)

		businesses.GET("/:id/notifications", h.ListNotifications)
	}
}

func (h *Handler) CreateBusiness(c *gin.Context) {
	var req model.CreateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid business request", err))
		return
	}
	business, err := h.directorySvc.CreateBusiness(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, business)
}

func (h *Handler) GetBusiness(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	business, err := h.directorySvc.GetBusiness(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, business)
}

func (h *Handler) UpdateBusiness(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid business update", err))
		return
	}
	business, err := h.directorySvc.UpdateBusiness(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, business)
}

func (h *Handler) ListOperatingHours(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	hours, err := h.directorySvc.ListOperatingHours(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, hours)
}

func (h *Handler) SetOperatingHours(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.SetOperatingHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid operating hours", err))
		return
	}
	hours, err := h.directorySvc.SetOperatingHours(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, hours)
}

func (h *Handler) DeleteOperatingHours(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	bucket := model.DayBucket(c.Param("bucket"))
	switch bucket {
	case model.DayBucketMonFri, model.DayBucketSat, model.DayBucketSun:
	default:
		httputil.RespondWithError(c, errors.NewBadRequest("invalid day bucket", nil))
		return
	}
	if err := h.directorySvc.DeleteOperatingHours(c.Request.Context(), id, bucket); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) ListBlocks(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	from, to, ok := blockRange(c)
	if !ok {
		return
	}
	blocks, err := h.directorySvc.ListBlocks(c.Request.Context(), id, from, to)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, blocks)
}

func (h *Handler) CreateBlock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.CreateBusinessBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid block request", err))
		return
	}
	block, err := h.directorySvc.CreateBlock(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, block)
}

func (h *Handler) DeleteBlock(c *gin.Context) {
	blockID, ok := pathID(c, "blockID")
	if !ok {
		return
	}
	if err := h.directorySvc.DeleteBlock(c.Request.Context(), blockID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) ListServices(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	services, err := h.directorySvc.ListServices(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, services)
}

func (h *Handler) CreateService(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid service request", err))
		return
	}
	svc, err := h.directorySvc.CreateService(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, svc)
}

func (h *Handler) UpdateService(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	serviceID, ok := pathID(c, "serviceID")
	if !ok {
		return
	}
	var req model.UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid service update", err))
		return
	}
	svc, err := h.directorySvc.UpdateService(c.Request.Context(), id, serviceID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, svc)
}

func (h *Handler) DeleteService(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	serviceID, ok := pathID(c, "serviceID")
	if !ok {
		return
	}
	if err := h.directorySvc.DeleteService(c.Request.Context(), id, serviceID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) ListStaff(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	staff, err := h.directorySvc.ListStaff(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, staff)
}

func (h *Handler) CreateStaff(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req model.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid staff request", err))
		return
	}
	staff, err := h.directorySvc.CreateStaff(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, staff)
}

func (h *Handler) RemoveStaff(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	staffID, ok := pathID(c, "staffID")
	if !ok {
		return
	}
	if err := h.directorySvc.RemoveStaff(c.Request.Context(), id, staffID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

type setStaffServicesRequest struct {
	ServiceIDs []string `json:"service_ids" binding:"dive,uuid"`
}

func (h *Handler) SetStaffServices(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	staffID, ok := pathID(c, "staffID")
	if !ok {
		return
	}
	var req setStaffServicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid staff services", err))
		return
	}
	if err := h.directorySvc.SetStaffServices(c.Request.Context(), id, staffID, req.ServiceIDs); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) SetStaffHours(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	staffID, ok := pathID(c, "staffID")
	if !ok {
		return
	}
	var req model.SetOperatingHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid staff hours", err))
		return
	}
	hours, err := h.directorySvc.SetStaffHours(c.Request.Context(), id, staffID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, hours)
}

func (h *Handler) CreateStaffBlock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	staffID, ok := pathID(c, "staffID")
	if !ok {
		return
	}
	var req model.CreateStaffBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid staff block", err))
		return
	}
	block, err := h.directorySvc.CreateStaffBlock(c.Request.Context(), id, staffID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, block)
}

func (h *Handler) DeleteStaffBlock(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	staffID, ok := pathID(c, "staffID")
	if !ok {
		return
	}
	blockID, ok := pathID(c, "blockID")
	if !ok {
		return
	}
	if err := h.directorySvc.DeleteStaffBlock(c.Request.Context(), id, staffID, blockID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) ListClients(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	clients, err := h.directorySvc.ListClients(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, clients)
}

type depositExemptRequest struct {
	Exempt bool `json:"exempt"`
}

func (h *Handler) SetClientDepositExempt(c *gin.Context) {
	clientID, ok := pathID(c, "clientID")
	if !ok {
		return
	}
	var req depositExemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid exemption request", err))
		return
	}
	if err := h.directorySvc.SetClientDepositExempt(c.Request.Context(), clientID, req.Exempt); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	notifications, err := h.directorySvc.ListNotifications(c.Request.Context(), id, limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, notifications)
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, errors.NewBadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// blockRange defaults to the next 90 days when the caller does not
// narrow it.
func blockRange(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now()
	from := timeutil.Midnight(now, time.Local)
	to := from.AddDate(0, 0, 90)

	if raw := c.Query("from"); raw != "" {
		parsed, err := timeutil.ParseDate(raw, time.Local)
		if err != nil {
			httputil.RespondWithError(c, errors.NewBadRequest("invalid from date", err))
			return time.Time{}, time.Time{}, false
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := timeutil.ParseDate(raw, time.Local)
		if err != nil {
			httputil.RespondWithError(c, errors.NewBadRequest("invalid to date", err))
			return time.Time{}, time.Time{}, false
		}
		to = parsed
	}
	return from, to, true
}
