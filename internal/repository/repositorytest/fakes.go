// Package repositorytest provides in-memory repository implementations
// for service-level tests.
package repositorytest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/getmebooked/booking-api/internal/model"
)

func sameDate(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

type BusinessRepo struct {
	mu         sync.Mutex
	Businesses map[uuid.UUID]*model.Business
	Hours      map[uuid.UUID]map[model.DayBucket]*model.OperatingHours
	Blocks     []*model.BusinessBlock
}

func NewBusinessRepo() *BusinessRepo {
	return &BusinessRepo{
		Businesses: make(map[uuid.UUID]*model.Business),
		Hours:      make(map[uuid.UUID]map[model.DayBucket]*model.OperatingHours),
	}
}

func (r *BusinessRepo) Create(_ context.Context, b *model.Business) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.Businesses[b.ID] = b
	return nil
}

func (r *BusinessRepo) Get(_ context.Context, id uuid.UUID) (*model.Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.Businesses[id]
	if !ok {
		return nil, fmt.Errorf("business not found")
	}
	return b, nil
}

func (r *BusinessRepo) GetBySlug(_ context.Context, slug string) (*model.Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.Businesses {
		if b.Slug == slug {
			return b, nil
		}
	}
	return nil, fmt.Errorf("business not found")
}

func (r *BusinessRepo) Update(_ context.Context, b *model.Business) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Businesses[b.ID] = b
	return nil
}

func (r *BusinessRepo) List(_ context.Context) ([]*model.Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Business, 0, len(r.Businesses))
	for _, b := range r.Businesses {
		out = append(out, b)
	}
	return out, nil
}

func (r *BusinessRepo) SetOperatingHours(_ context.Context, h *model.OperatingHours) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Hours[h.BusinessID] == nil {
		r.Hours[h.BusinessID] = make(map[model.DayBucket]*model.OperatingHours)
	}
	r.Hours[h.BusinessID][h.DayBucket] = h
	return nil
}

func (r *BusinessRepo) ListOperatingHours(_ context.Context, businessID uuid.UUID) ([]*model.OperatingHours, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OperatingHours
	for _, h := range r.Hours[businessID] {
		out = append(out, h)
	}
	return out, nil
}

func (r *BusinessRepo) GetOperatingHoursForBucket(_ context.Context, businessID uuid.UUID, bucket model.DayBucket) (*model.OperatingHours, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Hours[businessID][bucket], nil
}

func (r *BusinessRepo) DeleteOperatingHours(_ context.Context, businessID uuid.UUID, bucket model.DayBucket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Hours[businessID], bucket)
	return nil
}

func (r *BusinessRepo) CreateBlock(_ context.Context, block *model.BusinessBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	r.Blocks = append(r.Blocks, block)
	return nil
}

func (r *BusinessRepo) DeleteBlock(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.Blocks {
		if b.ID == id {
			r.Blocks = append(r.Blocks[:i], r.Blocks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("business block not found")
}

func (r *BusinessRepo) ListBlocks(_ context.Context, businessID uuid.UUID, from, to time.Time) ([]*model.BusinessBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.BusinessBlock
	for _, b := range r.Blocks {
		if b.BusinessID == businessID && !b.BlockDate.Before(from) && !b.BlockDate.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *BusinessRepo) HasBlockOn(_ context.Context, businessID uuid.UUID, date time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.Blocks {
		if b.BusinessID == businessID && sameDate(b.BlockDate, date) {
			return true, nil
		}
	}
	return false, nil
}

type StaffRepo struct {
	mu       sync.Mutex
	Staff    map[uuid.UUID]*model.Staff
	Hours    map[uuid.UUID]map[model.DayBucket]*model.StaffOperatingHours
	Blocks   []*model.StaffBlock
	Services map[uuid.UUID][]uuid.UUID
}

func NewStaffRepo() *StaffRepo {
	return &StaffRepo{
		Staff:    make(map[uuid.UUID]*model.Staff),
		Hours:    make(map[uuid.UUID]map[model.DayBucket]*model.StaffOperatingHours),
		Services: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *StaffRepo) Create(_ context.Context, s *model.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.IsActive = true
	r.Staff[s.ID] = s
	return nil
}

func (r *StaffRepo) Get(_ context.Context, id uuid.UUID) (*model.Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Staff[id]
	if !ok {
		return nil, fmt.Errorf("staff not found")
	}
	return s, nil
}

func (r *StaffRepo) Update(_ context.Context, s *model.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Staff[s.ID] = s
	return nil
}

func (r *StaffRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.Staff[id]; ok {
		s.IsActive = false
		return nil
	}
	return fmt.Errorf("staff not found")
}

func (r *StaffRepo) ListByBusiness(_ context.Context, businessID uuid.UUID) ([]*model.Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Staff
	for _, s := range r.Staff {
		if s.BusinessID == businessID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *StaffRepo) ListForService(_ context.Context, businessID, serviceID uuid.UUID) ([]*model.Staff, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Staff
	for _, s := range r.Staff {
		if s.BusinessID != businessID || !s.IsActive {
			continue
		}
		for _, id := range r.Services[s.ID] {
			if id == serviceID {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (r *StaffRepo) SetServices(_ context.Context, staffID uuid.UUID, serviceIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Services[staffID] = serviceIDs
	return nil
}

func (r *StaffRepo) GetServiceIDs(_ context.Context, staffID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Services[staffID], nil
}

func (r *StaffRepo) SetOperatingHours(_ context.Context, h *model.StaffOperatingHours) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Hours[h.StaffID] == nil {
		r.Hours[h.StaffID] = make(map[model.DayBucket]*model.StaffOperatingHours)
	}
	r.Hours[h.StaffID][h.DayBucket] = h
	return nil
}

func (r *StaffRepo) GetOperatingHoursForBucket(_ context.Context, staffID uuid.UUID, bucket model.DayBucket) (*model.StaffOperatingHours, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Hours[staffID][bucket], nil
}

func (r *StaffRepo) CreateBlock(_ context.Context, block *model.StaffBlock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	r.Blocks = append(r.Blocks, block)
	return nil
}

func (r *StaffRepo) DeleteBlock(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.Blocks {
		if b.ID == id {
			r.Blocks = append(r.Blocks[:i], r.Blocks[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("staff block not found")
}

func (r *StaffRepo) ListBlocksOn(_ context.Context, staffID uuid.UUID, date time.Time) ([]*model.StaffBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.StaffBlock
	for _, b := range r.Blocks {
		if b.StaffID == staffID && sameDate(b.BlockDate, date) {
			out = append(out, b)
		}
	}
	return out, nil
}

type ServiceRepo struct {
	mu       sync.Mutex
	Services map[uuid.UUID]*model.Service
}

func NewServiceRepo() *ServiceRepo {
	return &ServiceRepo{Services: make(map[uuid.UUID]*model.Service)}
}

func (r *ServiceRepo) Create(_ context.Context, s *model.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.Services[s.ID] = s
	return nil
}

func (r *ServiceRepo) Get(_ context.Context, id uuid.UUID) (*model.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.Services[id]
	if !ok {
		return nil, fmt.Errorf("service not found")
	}
	return s, nil
}

func (r *ServiceRepo) Update(_ context.Context, s *model.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Services[s.ID] = s
	return nil
}

func (r *ServiceRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Services, id)
	return nil
}

func (r *ServiceRepo) ListByBusiness(_ context.Context, businessID uuid.UUID) ([]*model.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Service
	for _, s := range r.Services {
		if s.BusinessID == businessID {
			out = append(out, s)
		}
	}
	return out, nil
}

type ClientRepo struct {
	mu      sync.Mutex
	Clients map[uuid.UUID]*model.ClientProfile
}

func NewClientRepo() *ClientRepo {
	return &ClientRepo{Clients: make(map[uuid.UUID]*model.ClientProfile)}
}

func (r *ClientRepo) Upsert(_ context.Context, c *model.ClientProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Clients {
		if existing.BusinessID == c.BusinessID && existing.Email == c.Email {
			if c.Name != "" {
				existing.Name = c.Name
			}
			if c.Phone != "" {
				existing.Phone = c.Phone
			}
			c.ID = existing.ID
			c.DepositExempt = existing.DepositExempt
			return nil
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.Clients[c.ID] = c
	return nil
}

func (r *ClientRepo) GetByEmail(_ context.Context, businessID uuid.UUID, email string) (*model.ClientProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.Clients {
		if c.BusinessID == businessID && c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

func (r *ClientRepo) SetDepositExempt(_ context.Context, id uuid.UUID, exempt bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.Clients[id]
	if !ok {
		return fmt.Errorf("client profile not found")
	}
	c.DepositExempt = exempt
	return nil
}

func (r *ClientRepo) ListByBusiness(_ context.Context, businessID uuid.UUID) ([]*model.ClientProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ClientProfile
	for _, c := range r.Clients {
		if c.BusinessID == businessID {
			out = append(out, c)
		}
	}
	return out, nil
}

type AppointmentRepo struct {
	mu           sync.Mutex
	Appointments map[uuid.UUID]*model.Appointment
}

func NewAppointmentRepo() *AppointmentRepo {
	return &AppointmentRepo{Appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (r *AppointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	cp := *a
	r.Appointments[a.ID] = &cp
	return nil
}

func (r *AppointmentRepo) CreateTx(ctx context.Context, _ *sqlx.Tx, a *model.Appointment) error {
	return r.Create(ctx, a)
}

func (r *AppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.Appointments[id]
	if !ok {
		return nil, fmt.Errorf("appointment not found")
	}
	cp := *a
	return &cp, nil
}

func (r *AppointmentRepo) Update(_ context.Context, a *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Appointments[a.ID]; !ok {
		return fmt.Errorf("appointment not found")
	}
	cp := *a
	r.Appointments[a.ID] = &cp
	return nil
}

func (r *AppointmentRepo) UpdateTx(ctx context.Context, _ *sqlx.Tx, a *model.Appointment) error {
	return r.Update(ctx, a)
}

func (r *AppointmentRepo) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.Appointments {
		if a.BusinessID != filters.BusinessID {
			continue
		}
		if filters.StaffID != nil && (a.StaffID == nil || *a.StaffID != *filters.StaffID) {
			continue
		}
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		if !filters.DateFrom.IsZero() && a.AppointmentDate.Before(filters.DateFrom) {
			continue
		}
		if !filters.DateTo.IsZero() && a.AppointmentDate.After(filters.DateTo) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *AppointmentRepo) UpdateStatusFrom(_ context.Context, id uuid.UUID, from, to model.AppointmentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.Appointments[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	return true, nil
}

func (r *AppointmentRepo) ListRelevantForDay(_ context.Context, businessID uuid.UUID, staffID *uuid.UUID, date time.Time, pendingCutoff time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.Appointments {
		if a.BusinessID != businessID || !sameDate(a.AppointmentDate, date) {
			continue
		}
		if staffID != nil && (a.StaffID == nil || *a.StaffID != *staffID) {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		switch a.Status {
		case model.AppointmentStatusConfirmed, model.AppointmentStatusRescheduleRequested:
		case model.AppointmentStatusPending:
			if !a.CreatedAt.After(pendingCutoff) {
				continue
			}
		default:
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *AppointmentRepo) ListRelevantForDayTx(ctx context.Context, _ *sqlx.Tx, businessID uuid.UUID, staffID *uuid.UUID, date time.Time, pendingCutoff time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	return r.ListRelevantForDay(ctx, businessID, staffID, date, pendingCutoff, excludeID)
}

func (r *AppointmentRepo) WithSlotLock(_ context.Context, _ uuid.UUID, _ time.Time, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

func (r *AppointmentRepo) ListDue24hReminders(ctx context.Context, now time.Time) ([]*model.Appointment, error) {
	// Inside the 2h window only the 2h reminder applies.
	return r.listDueReminders(now, 2*time.Hour, 24*time.Hour, func(a *model.Appointment) bool { return !a.Reminder24hSent })
}

func (r *AppointmentRepo) ListDue2hReminders(ctx context.Context, now time.Time) ([]*model.Appointment, error) {
	return r.listDueReminders(now, 0, 2*time.Hour, func(a *model.Appointment) bool { return !a.Reminder2hSent })
}

func (r *AppointmentRepo) listDueReminders(now time.Time, floor, ceiling time.Duration, unsent func(*model.Appointment) bool) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.Appointments {
		if a.Status != model.AppointmentStatusConfirmed || !unsent(a) {
			continue
		}
		start, err := a.StartAt(now.Location())
		if err != nil {
			return nil, err
		}
		if start.After(now.Add(floor)) && !start.After(now.Add(ceiling)) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *AppointmentRepo) Claim24hReminder(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.Appointments[id]
	if !ok || a.Status != model.AppointmentStatusConfirmed || a.Reminder24hSent {
		return false, nil
	}
	a.Reminder24hSent = true
	return true, nil
}

func (r *AppointmentRepo) Claim2hReminder(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.Appointments[id]
	if !ok || a.Status != model.AppointmentStatusConfirmed || a.Reminder2hSent {
		return false, nil
	}
	a.Reminder2hSent = true
	return true, nil
}

func (r *AppointmentRepo) ListForAutoCompletion(_ context.Context, endedBefore time.Time) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.Appointments {
		if a.Status != model.AppointmentStatusConfirmed {
			continue
		}
		end, err := a.EndAt(endedBefore.Location())
		if err != nil {
			return nil, err
		}
		if end.Before(endedBefore) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *AppointmentRepo) ListExpiredPending(_ context.Context, createdBefore time.Time) ([]*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, a := range r.Appointments {
		if a.Status == model.AppointmentStatusPending && !a.DepositPaid && a.AmountToPay > 0 && a.CreatedAt.Before(createdBefore) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type NotificationRepo struct {
	mu            sync.Mutex
	Notifications []*model.Notification
}

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{}
}

func (r *NotificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.Notifications = append(r.Notifications, n)
	return nil
}

func (r *NotificationRepo) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.Notifications {
		if n.ID == id {
			n.Status = model.NotificationStatusSent
			n.SentAt = &at
			return nil
		}
	}
	return fmt.Errorf("notification not found")
}

func (r *NotificationRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.Notifications {
		if n.ID == id {
			n.Status = model.NotificationStatusFailed
			n.LastError = reason
			return nil
		}
	}
	return fmt.Errorf("notification not found")
}

func (r *NotificationRepo) ListByBusiness(_ context.Context, businessID uuid.UUID, limit int) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.Notifications {
		if n.BusinessID == businessID {
			out = append(out, n)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type OutboxRepo struct {
	mu     sync.Mutex
	Events []*model.OutboxEvent
}

func NewOutboxRepo() *OutboxRepo {
	return &OutboxRepo{}
}

func (r *OutboxRepo) Create(_ context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = "pending"
	r.Events = append(r.Events, event)
	return nil
}

func (r *OutboxRepo) CreateTx(ctx context.Context, _ *sqlx.Tx, event *model.OutboxEvent) error {
	return r.Create(ctx, event)
}

func (r *OutboxRepo) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range r.Events {
		if e.Status == "pending" {
			out = append(out, e)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return r.GetPendingEvents(ctx, limit)
}

func (r *OutboxRepo) BeginTx(_ context.Context) (*sql.Tx, error) {
	return nil, nil
}

func (r *OutboxRepo) UpdateStatusTx(_ context.Context, _ *sql.Tx, id uuid.UUID, status string, errorMessage *string, retryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Events {
		if e.ID == id {
			e.Status = status
			e.ErrorMessage = errorMessage
			e.RetryAt = retryAt
			return nil
		}
	}
	return fmt.Errorf("outbox event not found")
}

func (r *OutboxRepo) MoveToDeadLetter(_ context.Context, _ *sql.Tx, _ *model.OutboxEvent) error {
	return nil
}

func (r *OutboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*model.OutboxEvent
	var removed int64
	for _, e := range r.Events {
		if e.Status == "processed" && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.Events = kept
	return removed, nil
}
