// Package directory manages the booking platform's catalog: businesses,
// their operating hours and blackout dates, staff, services and client
// profiles. The availability engine and booking flow read what this
// package writes.
package directory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/repository"
	"github.com/getmebooked/booking-api/internal/timeutil"
	"github.com/getmebooked/booking-api/pkg/errors"
	"github.com/getmebooked/booking-api/pkg/logger"
)

type Service struct {
	businessRepo     repository.BusinessRepository
	staffRepo        repository.StaffRepository
	serviceRepo      repository.ServiceRepository
	clientRepo       repository.ClientRepository
	notificationRepo repository.NotificationRepository
	logger           *logger.Logger
}

func NewService(
	businessRepo repository.BusinessRepository,
	staffRepo repository.StaffRepository,
	serviceRepo repository.ServiceRepository,
	clientRepo repository.ClientRepository,
	notificationRepo repository.NotificationRepository,
	l *logger.Logger,
) *Service {
	return &Service{
		businessRepo:     businessRepo,
		staffRepo:        staffRepo,
		serviceRepo:      serviceRepo,
		clientRepo:       clientRepo,
		notificationRepo: notificationRepo,
		logger:           l,
	}
}

// BusinessPage is the public view of a business: everything a guest
// needs to pick a service, a staff member and a slot.
type BusinessPage struct {
	Business *model.Business  `json:"business"`
	Services []*model.Service `json:"services"`
	Staff    []*model.Staff   `json:"staff"`
}

func (s *Service) CreateBusiness(ctx context.Context, req *model.CreateBusinessRequest) (*model.Business, error) {
	business := &model.Business{
		OwnerEmail:            strings.ToLower(req.OwnerEmail),
		Name:                  req.Name,
		Slug:                  slugify(req.Name),
		Description:           req.Description,
		BufferMinutes:         req.BufferMinutes,
		DepositEnabled:        req.DepositEnabled,
		DepositType:           model.DepositType(req.DepositType),
		DepositAmount:         req.DepositAmount,
		DepositPercentage:     req.DepositPercentage,
		RescheduleWindowHours: req.RescheduleWindowHours,
	}
	if business.DepositType == "" {
		business.DepositType = model.DepositTypeFixed
	}
	if err := s.businessRepo.Create(ctx, business); err != nil {
		return nil, errors.NewInternal(err)
	}
	return business, nil
}

func (s *Service) GetBusiness(ctx context.Context, id uuid.UUID) (*model.Business, error) {
	business, err := s.businessRepo.Get(ctx, id)
	if err != nil {
		return nil, errors.NewNotFound("business", err)
	}
	return business, nil
}

// GetBusinessPage assembles the guest-facing view by slug.
func (s *Service) GetBusinessPage(ctx context.Context, slug string) (*BusinessPage, error) {
	business, err := s.businessRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, errors.NewNotFound("business", err)
	}
	services, err := s.serviceRepo.ListByBusiness(ctx, business.ID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	staff, err := s.staffRepo.ListByBusiness(ctx, business.ID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &BusinessPage{Business: business, Services: services, Staff: staff}, nil
}

func (s *Service) UpdateBusiness(ctx context.Context, id uuid.UUID, req *model.UpdateBusinessRequest) (*model.Business, error) {
	business, err := s.businessRepo.Get(ctx, id)
	if err != nil {
		return nil, errors.NewNotFound("business", err)
	}

	if req.Name != nil {
		business.Name = *req.Name
	}
	if req.Description != nil {
		business.Description = *req.Description
	}
	if req.BufferMinutes != nil {
		business.BufferMinutes = *req.BufferMinutes
	}
	if req.DepositEnabled != nil {
		business.DepositEnabled = *req.DepositEnabled
	}
	if req.DepositType != nil {
		business.DepositType = model.DepositType(*req.DepositType)
	}
	if req.DepositAmount != nil {
		business.DepositAmount = *req.DepositAmount
	}
	if req.DepositPercentage != nil {
		business.DepositPercentage = *req.DepositPercentage
	}
	if req.RescheduleWindowHours != nil {
		business.RescheduleWindowHours = *req.RescheduleWindowHours
	}
	if req.MerchantID != nil {
		business.MerchantID = *req.MerchantID
	}
	if req.MerchantKey != nil {
		business.MerchantKey = *req.MerchantKey
	}

	if err := s.businessRepo.Update(ctx, business); err != nil {
		return nil, errors.NewInternal(err)
	}
	return business, nil
}

func (s *Service) SetOperatingHours(ctx context.Context, businessID uuid.UUID, req *model.SetOperatingHoursRequest) (*model.OperatingHours, error) {
	if err := validateWindow(req.OpenTime, req.CloseTime); err != nil {
		return nil, err
	}
	hours := &model.OperatingHours{
		BusinessID: businessID,
		DayBucket:  model.DayBucket(req.DayBucket),
		OpenTime:   req.OpenTime,
		CloseTime:  req.CloseTime,
	}
	if err := s.businessRepo.SetOperatingHours(ctx, hours); err != nil {
		return nil, errors.NewInternal(err)
	}
	return hours, nil
}

func (s *Service) ListOperatingHours(ctx context.Context, businessID uuid.UUID) ([]*model.OperatingHours, error) {
	hours, err := s.businessRepo.ListOperatingHours(ctx, businessID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return hours, nil
}

// DeleteOperatingHours removes a bucket's window: the business is
// closed on those days until a new window is set.
func (s *Service) DeleteOperatingHours(ctx context.Context, businessID uuid.UUID, bucket model.DayBucket) error {
	if err := s.businessRepo.DeleteOperatingHours(ctx, businessID, bucket); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (s *Service) CreateBlock(ctx context.Context, businessID uuid.UUID, req *model.CreateBusinessBlockRequest) (*model.BusinessBlock, error) {
	date, err := timeutil.ParseDate(req.BlockDate, time.Local)
	if err != nil {
		return nil, errors.NewBadRequest("invalid block date", err)
	}
	block := &model.BusinessBlock{
		BusinessID: businessID,
		BlockDate:  date,
		Reason:     req.Reason,
	}
	if err := s.businessRepo.CreateBlock(ctx, block); err != nil {
		return nil, errors.NewInternal(err)
	}
	return block, nil
}

func (s *Service) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	if err := s.businessRepo.DeleteBlock(ctx, id); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (s *Service) ListBlocks(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]*model.BusinessBlock, error) {
	blocks, err := s.businessRepo.ListBlocks(ctx, businessID, from, to)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return blocks, nil
}

func (s *Service) CreateService(ctx context.Context, businessID uuid.UUID, req *model.CreateServiceRequest) (*model.Service, error) {
	svc := &model.Service{
		BusinessID:           businessID,
		Name:                 req.Name,
		Description:          req.Description,
		DefaultLengthMinutes: req.DefaultLengthMinutes,
		Price:                req.Price,
		BufferMinutes:        req.BufferMinutes,
		Capacity:             req.Capacity,
	}
	if err := s.serviceRepo.Create(ctx, svc); err != nil {
		return nil, errors.NewInternal(err)
	}
	return svc, nil
}

func (s *Service) UpdateService(ctx context.Context, businessID, serviceID uuid.UUID, req *model.UpdateServiceRequest) (*model.Service, error) {
	svc, err := s.ownedService(ctx, businessID, serviceID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		svc.Name = *req.Name
	}
	if req.Description != nil {
		svc.Description = *req.Description
	}
	if req.DefaultLengthMinutes != nil {
		svc.DefaultLengthMinutes = *req.DefaultLengthMinutes
	}
	if req.Price != nil {
		svc.Price = *req.Price
	}
	if req.BufferMinutes != nil {
		svc.BufferMinutes = *req.BufferMinutes
	}
	if req.Capacity != nil {
		svc.Capacity = *req.Capacity
	}

	if err := s.serviceRepo.Update(ctx, svc); err != nil {
		return nil, errors.NewInternal(err)
	}
	return svc, nil
}

func (s *Service) DeleteService(ctx context.Context, businessID, serviceID uuid.UUID) error {
	if _, err := s.ownedService(ctx, businessID, serviceID); err != nil {
		return err
	}
	if err := s.serviceRepo.Delete(ctx, serviceID); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (s *Service) ListServices(ctx context.Context, businessID uuid.UUID) ([]*model.Service, error) {
	services, err := s.serviceRepo.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return services, nil
}

func (s *Service) CreateStaff(ctx context.Context, businessID uuid.UUID, req *model.CreateStaffRequest) (*model.Staff, error) {
	staff := &model.Staff{
		BusinessID: businessID,
		Name:       req.Name,
		Email:      strings.ToLower(req.Email),
		IsActive:   true,
	}
	if err := s.staffRepo.Create(ctx, staff); err != nil {
		return nil, errors.NewInternal(err)
	}

	if len(req.ServiceIDs) > 0 {
		serviceIDs, err := parseUUIDs(req.ServiceIDs)
		if err != nil {
			return nil, errors.NewBadRequest("invalid service id", err)
		}
		if err := s.staffRepo.SetServices(ctx, staff.ID, serviceIDs); err != nil {
			return nil, errors.NewInternal(err)
		}
		staff.ServiceIDs = serviceIDs
	}
	return staff, nil
}

// RemoveStaff deactivates a staff member. Existing appointments stay
// on the books; they just stop being bookable.
func (s *Service) RemoveStaff(ctx context.Context, businessID, staffID uuid.UUID) error {
	if _, err := s.ownedStaff(ctx, businessID, staffID); err != nil {
		return err
	}
	if err := s.staffRepo.Delete(ctx, staffID); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (s *Service) ListStaff(ctx context.Context, businessID uuid.UUID) ([]*model.Staff, error) {
	staff, err := s.staffRepo.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return staff, nil
}

func (s *Service) SetStaffServices(ctx context.Context, businessID, staffID uuid.UUID, rawIDs []string) error {
	if _, err := s.ownedStaff(ctx, businessID, staffID); err != nil {
		return err
	}
	serviceIDs, err := parseUUIDs(rawIDs)
	if err != nil {
		return errors.NewBadRequest("invalid service id", err)
	}
	if err := s.staffRepo.SetServices(ctx, staffID, serviceIDs); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// SetStaffHours overrides the business window for one bucket. Guests
// booking this staff member see these hours instead.
func (s *Service) SetStaffHours(ctx context.Context, businessID, staffID uuid.UUID, req *model.SetOperatingHoursRequest) (*model.StaffOperatingHours, error) {
	if _, err := s.ownedStaff(ctx, businessID, staffID); err != nil {
		return nil, err
	}
	if err := validateWindow(req.OpenTime, req.CloseTime); err != nil {
		return nil, err
	}
	hours := &model.StaffOperatingHours{
		StaffID:   staffID,
		DayBucket: model.DayBucket(req.DayBucket),
		OpenTime:  req.OpenTime,
		CloseTime: req.CloseTime,
	}
	if err := s.staffRepo.SetOperatingHours(ctx, hours); err != nil {
		return nil, errors.NewInternal(err)
	}
	return hours, nil
}

func (s *Service) CreateStaffBlock(ctx context.Context, businessID, staffID uuid.UUID, req *model.CreateStaffBlockRequest) (*model.StaffBlock, error) {
	if _, err := s.ownedStaff(ctx, businessID, staffID); err != nil {
		return nil, err
	}
	date, err := timeutil.ParseDate(req.BlockDate, time.Local)
	if err != nil {
		return nil, errors.NewBadRequest("invalid block date", err)
	}
	if err := validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	block := &model.StaffBlock{
		StaffID:   staffID,
		BlockDate: date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
	}
	if err := s.staffRepo.CreateBlock(ctx, block); err != nil {
		return nil, errors.NewInternal(err)
	}
	return block, nil
}

func (s *Service) DeleteStaffBlock(ctx context.Context, businessID, staffID, blockID uuid.UUID) error {
	if _, err := s.ownedStaff(ctx, businessID, staffID); err != nil {
		return err
	}
	if err := s.staffRepo.DeleteBlock(ctx, blockID); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (s *Service) ListClients(ctx context.Context, businessID uuid.UUID) ([]*model.ClientProfile, error) {
	clients, err := s.clientRepo.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return clients, nil
}

// SetClientDepositExempt flags a trusted client: their bookings skip
// the deposit and confirm immediately.
func (s *Service) SetClientDepositExempt(ctx context.Context, clientID uuid.UUID, exempt bool) error {
	if err := s.clientRepo.SetDepositExempt(ctx, clientID, exempt); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func (s *Service) ListNotifications(ctx context.Context, businessID uuid.UUID, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	notifications, err := s.notificationRepo.ListByBusiness(ctx, businessID, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return notifications, nil
}

func (s *Service) ownedService(ctx context.Context, businessID, serviceID uuid.UUID) (*model.Service, error) {
	svc, err := s.serviceRepo.Get(ctx, serviceID)
	if err != nil {
		return nil, errors.NewNotFound("service", err)
	}
	if svc.BusinessID != businessID {
		return nil, errors.NewNotFound("service", nil)
	}
	return svc, nil
}

func (s *Service) ownedStaff(ctx context.Context, businessID, staffID uuid.UUID) (*model.Staff, error) {
	staff, err := s.staffRepo.Get(ctx, staffID)
	if err != nil {
		return nil, errors.NewNotFound("staff member", err)
	}
	if staff.BusinessID != businessID {
		return nil, errors.NewNotFound("staff member", nil)
	}
	return staff, nil
}

func validateWindow(open, close string) error {
	openHH, openMM, err := timeutil.ParseClock(open)
	if err != nil {
		return errors.NewBadRequest("invalid open time", err)
	}
	closeHH, closeMM, err := timeutil.ParseClock(close)
	if err != nil {
		return errors.NewBadRequest("invalid close time", err)
	}
	if openHH*60+openMM >= closeHH*60+closeMM {
		return errors.NewBadRequest("open time must be before close time", nil)
	}
	return nil
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// slugify turns "Shear Genius " into "shear-genius-a1b2c3". The suffix
// keeps two businesses with the same name from colliding.
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	suffix := strings.Split(uuid.New().String(), "-")[0][:6]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
