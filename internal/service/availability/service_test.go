package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/repository/repositorytest"
	"github.com/getmebooked/booking-api/pkg/clock"
)

type fixture struct {
	svc          *Service
	businesses   *repositorytest.BusinessRepo
	staff        *repositorytest.StaffRepo
	services     *repositorytest.ServiceRepo
	appointments *repositorytest.AppointmentRepo
	clock        *clock.Fake

	business *model.Business
	offering *model.Service
}

// Monday 2025-06-02; fake clock sits well before it.
var (
	testDay = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	testNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		businesses:   repositorytest.NewBusinessRepo(),
		staff:        repositorytest.NewStaffRepo(),
		services:     repositorytest.NewServiceRepo(),
		appointments: repositorytest.NewAppointmentRepo(),
		clock:        &clock.Fake{Current: testNow},
	}
	f.svc = NewService(f.businesses, f.staff, f.services, f.appointments, f.clock, nil)

	f.business = &model.Business{Name: "Shear Genius", Slug: "shear-genius"}
	require.NoError(t, f.businesses.Create(context.Background(), f.business))

	f.offering = &model.Service{
		BusinessID:           f.business.ID,
		Name:                 "Haircut",
		DefaultLengthMinutes: 60,
		Price:                300,
	}
	require.NoError(t, f.services.Create(context.Background(), f.offering))

	require.NoError(t, f.businesses.SetOperatingHours(context.Background(), &model.OperatingHours{
		BusinessID: f.business.ID,
		DayBucket:  model.DayBucketMonFri,
		OpenTime:   "09:00",
		CloseTime:  "17:00",
	}))
	return f
}

func (f *fixture) query() Query {
	return Query{
		BusinessID: f.business.ID,
		ServiceID:  f.offering.ID,
		Date:       testDay,
	}
}

func (f *fixture) addAppointment(t *testing.T, start string, status model.AppointmentStatus) *model.Appointment {
	t.Helper()
	appt := &model.Appointment{
		Base:            model.Base{CreatedAt: f.clock.Now()},
		BusinessID:      f.business.ID,
		ServiceID:       f.offering.ID,
		AppointmentDate: testDay,
		StartTime:       start,
		LengthMinutes:   f.offering.DefaultLengthMinutes,
		Status:          status,
	}
	require.NoError(t, f.appointments.Create(context.Background(), appt))
	return appt
}

func slotStarts(slots []model.TimeSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Start.Format("15:04")
	}
	return out
}

func TestEmptyCalendarFullDay(t *testing.T) {
	f := newFixture(t)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)

	// 09:00 through 16:00 inclusive at 15-minute steps, last start that
	// still fits a 60-minute service before 17:00.
	require.NotEmpty(t, slots)
	assert.Equal(t, "09:00", slots[0].Start.Format("15:04"))
	assert.Equal(t, "16:00", slots[len(slots)-1].Start.Format("15:04"))
	assert.Len(t, slots, 29)
}

func TestBlackoutDayReturnsNoSlots(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.businesses.CreateBlock(context.Background(), &model.BusinessBlock{
		BusinessID: f.business.ID,
		BlockDate:  testDay,
	}))

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestNoOperatingHoursMeansClosed(t *testing.T) {
	f := newFixture(t)
	sunday := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	q := f.query()
	q.Date = sunday
	slots, err := f.svc.GetAvailableSlots(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestStaffHoursOverrideBusinessHours(t *testing.T) {
	f := newFixture(t)
	staff := &model.Staff{BusinessID: f.business.ID, Name: "Thandi"}
	require.NoError(t, f.staff.Create(context.Background(), staff))
	require.NoError(t, f.staff.SetOperatingHours(context.Background(), &model.StaffOperatingHours{
		StaffID:   staff.ID,
		DayBucket: model.DayBucketMonFri,
		OpenTime:  "12:00",
		CloseTime: "15:00",
	}))

	q := f.query()
	q.StaffID = &staff.ID
	slots, err := f.svc.GetAvailableSlots(context.Background(), q)
	require.NoError(t, err)

	require.NotEmpty(t, slots)
	assert.Equal(t, "12:00", slots[0].Start.Format("15:04"))
	assert.Equal(t, "14:00", slots[len(slots)-1].Start.Format("15:04"))
}

func TestStaffWithoutOverrideUsesBusinessHours(t *testing.T) {
	f := newFixture(t)
	staff := &model.Staff{BusinessID: f.business.ID, Name: "Sipho"}
	require.NoError(t, f.staff.Create(context.Background(), staff))

	q := f.query()
	q.StaffID = &staff.ID
	slots, err := f.svc.GetAvailableSlots(context.Background(), q)
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, "09:00", slots[0].Start.Format("15:04"))
}

func TestTodayStartsAtNextFullHour(t *testing.T) {
	f := newFixture(t)
	f.clock.Current = time.Date(2025, 6, 2, 10, 20, 0, 0, time.UTC)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	require.NotEmpty(t, slots)
	assert.Equal(t, "11:00", slots[0].Start.Format("15:04"))
}

func TestPastDateReturnsNothing(t *testing.T) {
	f := newFixture(t)
	f.clock.Current = time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestConfirmedAppointmentBlocksWithBuffer(t *testing.T) {
	f := newFixture(t)
	f.business.BufferMinutes = 15
	f.addAppointment(t, "12:00", model.AppointmentStatusConfirmed)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)

	starts := slotStarts(slots)
	// Occupied with buffer: [11:45, 13:15). The last start before it
	// must end by 11:45, the first after it begins at 13:15.
	assert.Contains(t, starts, "10:45")
	assert.NotContains(t, starts, "11:00")
	assert.NotContains(t, starts, "12:00")
	assert.NotContains(t, starts, "13:00")
	assert.Contains(t, starts, "13:15")
}

func TestBackToBackWithoutBuffer(t *testing.T) {
	f := newFixture(t)
	f.addAppointment(t, "12:00", model.AppointmentStatusConfirmed)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)

	starts := slotStarts(slots)
	// Half-open intervals: a service ending 12:00 and one starting 13:00
	// both fit around the 12:00-13:00 booking.
	assert.Contains(t, starts, "11:00")
	assert.NotContains(t, starts, "11:15")
	assert.NotContains(t, starts, "12:45")
	assert.Contains(t, starts, "13:00")
}

func TestServiceBufferOverridesSmallerBusinessBuffer(t *testing.T) {
	f := newFixture(t)
	f.business.BufferMinutes = 5
	f.offering.BufferMinutes = 30
	f.addAppointment(t, "12:00", model.AppointmentStatusConfirmed)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)

	starts := slotStarts(slots)
	// Occupied [11:30, 13:30); step stays at 15 since the buffer is larger.
	assert.Contains(t, starts, "10:30")
	assert.NotContains(t, starts, "10:45")
	assert.Contains(t, starts, "13:30")
}

func TestShortBufferShrinksSearchStep(t *testing.T) {
	f := newFixture(t)
	f.business.BufferMinutes = 5

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)

	starts := slotStarts(slots)
	assert.Contains(t, starts, "09:05")
	assert.Contains(t, starts, "09:10")
}

func TestFreshPendingHoldsSlot(t *testing.T) {
	f := newFixture(t)
	f.addAppointment(t, "12:00", model.AppointmentStatusPending)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	assert.NotContains(t, slotStarts(slots), "12:00")
}

func TestStalePendingReleasesSlot(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(t, "12:00", model.AppointmentStatusPending)
	appt.CreatedAt = f.clock.Now().Add(-3 * time.Hour)
	require.NoError(t, f.appointments.Update(context.Background(), appt))

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	assert.Contains(t, slotStarts(slots), "12:00")
}

func TestCancelledAppointmentDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.addAppointment(t, "12:00", model.AppointmentStatusCancelled)

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)
	assert.Contains(t, slotStarts(slots), "12:00")
}

func TestGroupSessionSharesCapacity(t *testing.T) {
	f := newFixture(t)
	f.offering.Capacity = 5

	appt := f.addAppointment(t, "12:00", model.AppointmentStatusConfirmed)
	appt.Attendees = 3
	require.NoError(t, f.appointments.Update(context.Background(), appt))

	q := f.query()
	q.Attendees = 2
	slots, err := f.svc.GetAvailableSlots(context.Background(), q)
	require.NoError(t, err)
	assert.Contains(t, slotStarts(slots), "12:00")

	// A third seat beyond capacity is refused at that start.
	q.Attendees = 3
	slots, err = f.svc.GetAvailableSlots(context.Background(), q)
	require.NoError(t, err)
	assert.NotContains(t, slotStarts(slots), "12:00")
}

func TestGroupSessionBlocksOverlappingStarts(t *testing.T) {
	f := newFixture(t)
	f.offering.Capacity = 3

	appt := f.addAppointment(t, "09:00", model.AppointmentStatusConfirmed)
	appt.Attendees = 3
	require.NoError(t, f.appointments.Update(context.Background(), appt))

	slots, err := f.svc.GetAvailableSlots(context.Background(), f.query())
	require.NoError(t, err)

	starts := slotStarts(slots)
	// Only an exact start-time match can merge into the 09:00 session;
	// any other start overlapping it would double-book the calendar.
	assert.NotContains(t, starts, "09:15")
	assert.NotContains(t, starts, "09:30")
	assert.NotContains(t, starts, "09:45")
	// The session itself is full, and the half-open boundary frees 10:00.
	assert.NotContains(t, starts, "09:00")
	assert.Contains(t, starts, "10:00")
}

func TestStaffBlockExcludesWindowWithoutBuffer(t *testing.T) {
	f := newFixture(t)
	f.business.BufferMinutes = 15
	staff := &model.Staff{BusinessID: f.business.ID, Name: "Lindiwe"}
	require.NoError(t, f.staff.Create(context.Background(), staff))
	require.NoError(t, f.staff.CreateBlock(context.Background(), &model.StaffBlock{
		StaffID:   staff.ID,
		BlockDate: testDay,
		StartTime: "12:00",
		EndTime:   "13:00",
	}))

	q := f.query()
	q.StaffID = &staff.ID
	slots, err := f.svc.GetAvailableSlots(context.Background(), q)
	require.NoError(t, err)

	starts := slotStarts(slots)
	assert.NotContains(t, starts, "12:00")
	assert.NotContains(t, starts, "12:30")
	// Blocks carry no buffer padding: 13:00 is bookable.
	assert.Contains(t, starts, "13:00")
}

func TestExcludeAppointmentFreesItsOwnSlot(t *testing.T) {
	f := newFixture(t)
	appt := f.addAppointment(t, "12:00", model.AppointmentStatusConfirmed)

	q := f.query()
	q.ExcludeAppointmentID = &appt.ID
	slots, err := f.svc.GetAvailableSlots(context.Background(), q)
	require.NoError(t, err)
	assert.Contains(t, slotStarts(slots), "12:00")
}

func TestIsSlotAvailable(t *testing.T) {
	f := newFixture(t)
	f.addAppointment(t, "12:00", model.AppointmentStatusConfirmed)

	start, _ := time.Parse(time.RFC3339, "2025-06-02T12:00:00Z")
	ok, err := f.svc.IsSlotAvailable(context.Background(), f.query(), start)
	require.NoError(t, err)
	assert.False(t, ok)

	start, _ = time.Parse(time.RFC3339, "2025-06-02T09:00:00Z")
	ok, err = f.svc.IsSlotAvailable(context.Background(), f.query(), start)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsureOpen(t *testing.T) {
	f := newFixture(t)

	err := f.svc.EnsureOpen(context.Background(), f.business, nil, testDay)
	assert.NoError(t, err)

	sunday := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	err = f.svc.EnsureOpen(context.Background(), f.business, nil, sunday)
	assert.Error(t, err)

	require.NoError(t, f.businesses.CreateBlock(context.Background(), &model.BusinessBlock{
		BusinessID: f.business.ID,
		BlockDate:  testDay,
	}))
	err = f.svc.EnsureOpen(context.Background(), f.business, nil, testDay)
	assert.Error(t, err)
}
