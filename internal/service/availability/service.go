package availability

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/repository"
	"github.com/getmebooked/booking-api/internal/timeutil"
	"github.com/getmebooked/booking-api/pkg/clock"
	apperrors "github.com/getmebooked/booking-api/pkg/errors"
	"github.com/getmebooked/booking-api/pkg/metrics"
)

// DefaultGranularityMinutes is the slot-search step when no buffer
// shortens it.
const DefaultGranularityMinutes = 15

type Service struct {
	businessRepo    repository.BusinessRepository
	staffRepo       repository.StaffRepository
	serviceRepo     repository.ServiceRepository
	appointmentRepo repository.AppointmentRepository
	clock           clock.Clock
	metrics         *metrics.Metrics
}

func NewService(
	businessRepo repository.BusinessRepository,
	staffRepo repository.StaffRepository,
	serviceRepo repository.ServiceRepository,
	appointmentRepo repository.AppointmentRepository,
	clk clock.Clock,
	m *metrics.Metrics,
) *Service {
	return &Service{
		businessRepo:    businessRepo,
		staffRepo:       staffRepo,
		serviceRepo:     serviceRepo,
		appointmentRepo: appointmentRepo,
		clock:           clk,
		metrics:         m,
	}
}

// Query describes one availability question: which service, on which
// day, optionally restricted to one staff member, for how many seats.
type Query struct {
	BusinessID uuid.UUID
	ServiceID  uuid.UUID
	StaffID    *uuid.UUID
	Date       time.Time
	Attendees  int

	// ExcludeAppointmentID removes one appointment from the occupied
	// set, so a reschedule does not collide with itself.
	ExcludeAppointmentID *uuid.UUID
}

// PendingCutoff is the instant before which pending appointments no
// longer hold their slot.
func (s *Service) PendingCutoff() time.Time {
	return s.clock.Now().Add(-model.PendingHoldWindow)
}

// GetAvailableSlots computes every bookable start time for the query's
// day. The returned slots are sorted and use half-open occupancy: a
// slot ending exactly when an appointment starts does not conflict.
func (s *Service) GetAvailableSlots(ctx context.Context, q Query) ([]model.TimeSlot, error) {
	if s.metrics != nil {
		started := time.Now()
		defer func() {
			s.metrics.AvailabilityChecks.Observe(time.Since(started).Seconds())
		}()
	}

	appointments, err := s.appointmentRepo.ListRelevantForDay(
		ctx, q.BusinessID, q.StaffID, q.Date, s.PendingCutoff(), q.ExcludeAppointmentID)
	if err != nil {
		return nil, err
	}
	return s.computeSlots(ctx, q, appointments)
}

// SlotStillOpen recomputes the day from a caller-supplied appointment
// set and checks one exact start time. The booking path calls this
// inside its slot-lock transaction, with the appointments read through
// that transaction, so a concurrent winner's insert is seen.
func (s *Service) SlotStillOpen(ctx context.Context, q Query, start time.Time, appointments []*model.Appointment) (bool, error) {
	slots, err := s.computeSlots(ctx, q, appointments)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if slot.Start.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

// IsSlotAvailable is the read-only variant of SlotStillOpen, used for
// pre-checks outside any transaction.
func (s *Service) IsSlotAvailable(ctx context.Context, q Query, start time.Time) (bool, error) {
	slots, err := s.GetAvailableSlots(ctx, q)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if slot.Start.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) computeSlots(ctx context.Context, q Query, appointments []*model.Appointment) ([]model.TimeSlot, error) {
	business, err := s.businessRepo.Get(ctx, q.BusinessID)
	if err != nil {
		return nil, err
	}
	svc, err := s.serviceRepo.Get(ctx, q.ServiceID)
	if err != nil {
		return nil, err
	}

	blocked, err := s.businessRepo.HasBlockOn(ctx, q.BusinessID, q.Date)
	if err != nil {
		return nil, err
	}
	if blocked {
		return []model.TimeSlot{}, nil
	}

	win, err := s.resolveWindow(ctx, business, q.StaffID, q.Date)
	if err != nil {
		return nil, err
	}
	if win == nil {
		return []model.TimeSlot{}, nil
	}

	now := s.clock.Now()
	loc := now.Location()

	open, err := timeutil.CombineDateTime(q.Date, win.open, loc)
	if err != nil {
		return nil, err
	}
	close, err := timeutil.CombineDateTime(q.Date, win.close, loc)
	if err != nil {
		return nil, err
	}
	if !open.Before(close) {
		return []model.TimeSlot{}, nil
	}

	// For today, skip everything before the next full hour. Past days
	// have nothing to offer.
	if timeutil.SameDay(q.Date, now, loc) {
		if floor := timeutil.NextFullHour(now); floor.After(open) {
			open = floor
		}
	} else if q.Date.Before(timeutil.Midnight(now, loc)) {
		return []model.TimeSlot{}, nil
	}

	occupied, sessions, err := occupiedIntervals(business, svc, appointments, loc)
	if err != nil {
		return nil, err
	}

	var staffBlocks []*model.StaffBlock
	if q.StaffID != nil {
		staffBlocks, err = s.staffRepo.ListBlocksOn(ctx, *q.StaffID, q.Date)
		if err != nil {
			return nil, err
		}
	}

	buffer := effectiveBuffer(business, svc)
	step := searchStep(buffer)
	length := time.Duration(svc.DefaultLengthMinutes) * time.Minute
	requested := q.Attendees
	if requested < 1 {
		requested = 1
	}
	capacity := svc.EffectiveCapacity()

	var slots []model.TimeSlot
	for start := open; !start.Add(length).After(close); start = start.Add(step) {
		end := start.Add(length)

		// A start aligning exactly with an existing group session may
		// merge into it, as long as the remaining capacity covers the
		// requested seats and nothing else occupies the time.
		if taken, ok := sessions[start.Unix()]; ok {
			if taken+requested <= capacity &&
				!conflictsOutsideSession(start, end, occupied, start.Unix()) &&
				!staffBlockConflicts(start, end, staffBlocks, q.Date, loc) {
				slots = append(slots, model.TimeSlot{Start: start, End: end})
			}
			continue
		}

		if conflicts(start, end, occupied) {
			continue
		}
		if staffBlockConflicts(start, end, staffBlocks, q.Date, loc) {
			continue
		}
		slots = append(slots, model.TimeSlot{Start: start, End: end})
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	if slots == nil {
		slots = []model.TimeSlot{}
	}
	return slots, nil
}

type window struct {
	open  string
	close string
}

// resolveWindow picks the operating window for the day: the staff
// member's override when one exists for the bucket, otherwise the
// business hours. No row anywhere means closed.
func (s *Service) resolveWindow(ctx context.Context, business *model.Business, staffID *uuid.UUID, date time.Time) (*window, error) {
	bucket := model.BucketFor(date)

	if staffID != nil {
		hours, err := s.staffRepo.GetOperatingHoursForBucket(ctx, *staffID, bucket)
		if err != nil {
			return nil, err
		}
		if hours != nil {
			return &window{open: hours.OpenTime, close: hours.CloseTime}, nil
		}
	}

	hours, err := s.businessRepo.GetOperatingHoursForBucket(ctx, business.ID, bucket)
	if err != nil {
		return nil, err
	}
	if hours == nil {
		return nil, nil
	}
	return &window{open: hours.OpenTime, close: hours.CloseTime}, nil
}

type interval struct {
	start time.Time
	end   time.Time

	// Group sessions of the queried service are joinable at their exact
	// start; session carries that start so the conflict check for a
	// joining candidate can skip them.
	joinable bool
	session  int64
}

// occupiedIntervals expands the day's relevant appointments into
// buffer-padded occupied intervals. Appointments of the queried service
// with group capacity also accumulate seat counts keyed by their start
// instant; only a candidate sharing that exact start may merge into the
// session, every other overlap blocks like a normal appointment.
func occupiedIntervals(business *model.Business, svc *model.Service, appointments []*model.Appointment, loc *time.Location) ([]interval, map[int64]int, error) {
	buffer := time.Duration(effectiveBuffer(business, svc)) * time.Minute
	occupied := make([]interval, 0, len(appointments))
	sessions := make(map[int64]int)

	for _, appt := range appointments {
		start, err := appt.StartAt(loc)
		if err != nil {
			return nil, nil, err
		}
		end, err := appt.EndAt(loc)
		if err != nil {
			return nil, nil, err
		}

		iv := interval{start: start.Add(-buffer), end: end.Add(buffer)}
		if appt.ServiceID == svc.ID && svc.EffectiveCapacity() > 1 {
			iv.joinable = true
			iv.session = start.Unix()
			sessions[iv.session] += appt.EffectiveAttendees()
		}
		occupied = append(occupied, iv)
	}
	return occupied, sessions, nil
}

// effectiveBuffer takes the stricter of the service and business
// buffers, applied once on each side of an appointment.
func effectiveBuffer(business *model.Business, svc *model.Service) int {
	if svc.BufferMinutes > business.BufferMinutes {
		return svc.BufferMinutes
	}
	return business.BufferMinutes
}

// searchStep shrinks the scan granularity below 15 minutes when a
// shorter buffer is configured, so tightly packed calendars still
// surface every legal start.
func searchStep(bufferMinutes int) time.Duration {
	step := DefaultGranularityMinutes
	if bufferMinutes > 0 && bufferMinutes < step {
		step = bufferMinutes
	}
	return time.Duration(step) * time.Minute
}

func conflicts(start, end time.Time, occupied []interval) bool {
	for _, iv := range occupied {
		if timeutil.Overlaps(start, end, iv.start, iv.end) {
			return true
		}
	}
	return false
}

// conflictsOutsideSession is the conflict check for a candidate merging
// into the group session keyed by session: the session's own intervals
// do not count against it.
func conflictsOutsideSession(start, end time.Time, occupied []interval, session int64) bool {
	for _, iv := range occupied {
		if iv.joinable && iv.session == session {
			continue
		}
		if timeutil.Overlaps(start, end, iv.start, iv.end) {
			return true
		}
	}
	return false
}

// staffBlockConflicts checks the candidate against the staff member's
// same-day blocks. Blocks exclude their window exactly, without buffer
// padding.
func staffBlockConflicts(start, end time.Time, blocks []*model.StaffBlock, date time.Time, loc *time.Location) bool {
	for _, block := range blocks {
		blockStart, err := timeutil.CombineDateTime(date, block.StartTime, loc)
		if err != nil {
			continue
		}
		blockEnd, err := timeutil.CombineDateTime(date, block.EndTime, loc)
		if err != nil {
			continue
		}
		if timeutil.Overlaps(start, end, blockStart, blockEnd) {
			return true
		}
	}
	return false
}

// EnsureOpen reports a typed error when the business has no window at
// all for the date, letting callers distinguish "closed" from "full".
func (s *Service) EnsureOpen(ctx context.Context, business *model.Business, staffID *uuid.UUID, date time.Time) error {
	blocked, err := s.businessRepo.HasBlockOn(ctx, business.ID, date)
	if err != nil {
		return err
	}
	if blocked {
		return apperrors.BusinessClosed("date is blocked out")
	}
	w, err := s.resolveWindow(ctx, business, staffID, date)
	if err != nil {
		return err
	}
	if w == nil {
		return apperrors.BusinessClosed("no operating hours for this day")
	}
	return nil
}
