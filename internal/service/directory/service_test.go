package directory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/repository/repositorytest"
	apperrors "github.com/getmebooked/booking-api/pkg/errors"
	"github.com/getmebooked/booking-api/pkg/logger"
)

type fixture struct {
	svc      *Service
	business *repositorytest.BusinessRepo
	staff    *repositorytest.StaffRepo
	services *repositorytest.ServiceRepo
	clients  *repositorytest.ClientRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		business: repositorytest.NewBusinessRepo(),
		staff:    repositorytest.NewStaffRepo(),
		services: repositorytest.NewServiceRepo(),
		clients:  repositorytest.NewClientRepo(),
	}
	l := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	f.svc = NewService(f.business, f.staff, f.services, f.clients, repositorytest.NewNotificationRepo(), l)
	return f
}

func (f *fixture) createBusiness(t *testing.T) *model.Business {
	t.Helper()
	business, err := f.svc.CreateBusiness(context.Background(), &model.CreateBusinessRequest{
		OwnerEmail: "Owner@Example.com",
		Name:       "Shear Genius",
	})
	require.NoError(t, err)
	return business
}

func TestCreateBusinessGeneratesSlug(t *testing.T) {
	f := newFixture(t)
	business := f.createBusiness(t)

	assert.True(t, strings.HasPrefix(business.Slug, "shear-genius-"), "got slug %q", business.Slug)
	assert.Equal(t, "owner@example.com", business.OwnerEmail)
	assert.Equal(t, model.DepositTypeFixed, business.DepositType)
}

func TestBusinessPageBySlug(t *testing.T) {
	f := newFixture(t)
	business := f.createBusiness(t)

	_, err := f.svc.CreateService(context.Background(), business.ID, &model.CreateServiceRequest{
		Name:                 "Fade",
		DefaultLengthMinutes: 45,
		Price:                200,
	})
	require.NoError(t, err)
	_, err = f.svc.CreateStaff(context.Background(), business.ID, &model.CreateStaffRequest{Name: "Thabo"})
	require.NoError(t, err)

	page, err := f.svc.GetBusinessPage(context.Background(), business.Slug)
	require.NoError(t, err)
	assert.Equal(t, business.ID, page.Business.ID)
	assert.Len(t, page.Services, 1)
	assert.Len(t, page.Staff, 1)

	_, err = f.svc.GetBusinessPage(context.Background(), "no-such-slug")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateBusinessAppliesOnlyProvidedFields(t *testing.T) {
	f := newFixture(t)
	business := f.createBusiness(t)

	enabled := true
	pct := 25.0
	depositType := "percentage"
	updated, err := f.svc.UpdateBusiness(context.Background(), business.ID, &model.UpdateBusinessRequest{
		DepositEnabled:    &enabled,
		DepositType:       &depositType,
		DepositPercentage: &pct,
	})
	require.NoError(t, err)

	assert.Equal(t, "Shear Genius", updated.Name)
	assert.True(t, updated.DepositEnabled)
	assert.Equal(t, model.DepositTypePercentage, updated.DepositType)
	assert.Equal(t, 25.0, updated.DepositPercentage)
}

func TestSetOperatingHoursRejectsInvertedWindow(t *testing.T) {
	f := newFixture(t)
	business := f.createBusiness(t)

	_, err := f.svc.SetOperatingHours(context.Background(), business.ID, &model.SetOperatingHoursRequest{
		DayBucket: "mon_fri",
		OpenTime:  "17:00",
		CloseTime: "09:00",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	hours, err := f.svc.SetOperatingHours(context.Background(), business.ID, &model.SetOperatingHoursRequest{
		DayBucket: "mon_fri",
		OpenTime:  "09:00",
		CloseTime: "17:00",
	})
	require.NoError(t, err)
	assert.Equal(t, model.DayBucketMonFri, hours.DayBucket)
}

func TestCreateBlockParsesDate(t *testing.T) {
	f := newFixture(t)
	business := f.createBusiness(t)

	block, err := f.svc.CreateBlock(context.Background(), business.ID, &model.CreateBusinessBlockRequest{
		BlockDate: "2025-06-16",
		Reason:    "public holiday",
	})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-16", block.BlockDate.Format("2006-01-02"))

	_, err = f.svc.CreateBlock(context.Background(), business.ID, &model.CreateBusinessBlockRequest{
		BlockDate: "16 June",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestStaffOwnershipIsEnforced(t *testing.T) {
	f := newFixture(t)
	business := f.createBusiness(t)
	other := f.createBusiness(t)

	staff, err := f.svc.CreateStaff(context.Background(), business.ID, &model.CreateStaffRequest{Name: "Thabo"})
	require.NoError(t, err)

	_, err = f.svc.SetStaffHours(context.Background(), other.ID, staff.ID, &model.SetOperatingHoursRequest{
		DayBucket: "sat",
		OpenTime:  "10:00",
		CloseTime: "14:00",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = f.svc.SetStaffHours(context.Background(), business.ID, staff.ID, &model.SetOperatingHoursRequest{
		DayBucket: "sat",
		OpenTime:  "10:00",
		CloseTime: "14:00",
	})
	assert.NoError(t, err)
}

func TestCreateStaffBlockValidatesWindow(t *testing.T) {
	f := newFixture(t)
	business := f.createBusiness(t)
	staff, err := f.svc.CreateStaff(context.Background(), business.ID, &model.CreateStaffRequest{Name: "Thabo"})
	require.NoError(t, err)

	_, err = f.svc.CreateStaffBlock(context.Background(), business.ID, staff.ID, &model.CreateStaffBlockRequest{
		BlockDate: "2025-06-02",
		StartTime: "14:00",
		EndTime:   "12:00",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	block, err := f.svc.CreateStaffBlock(context.Background(), business.ID, staff.ID, &model.CreateStaffBlockRequest{
		BlockDate: "2025-06-02",
		StartTime: "12:00",
		EndTime:   "14:00",
	})
	require.NoError(t, err)
	assert.Equal(t, staff.ID, block.StaffID)
}

func TestRemoveStaffDeactivates(t *testing.T) {
	f := newFixture(t)
	business := f.createBusiness(t)
	staff, err := f.svc.CreateStaff(context.Background(), business.ID, &model.CreateStaffRequest{Name: "Thabo"})
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveStaff(context.Background(), business.ID, staff.ID))

	listed, err := f.svc.ListStaff(context.Background(), business.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestSetClientDepositExempt(t *testing.T) {
	f := newFixture(t)
	business := f.createBusiness(t)

	client := &model.ClientProfile{BusinessID: business.ID, Email: "naledi@example.com"}
	require.NoError(t, f.clients.Upsert(context.Background(), client))

	require.NoError(t, f.svc.SetClientDepositExempt(context.Background(), client.ID, true))

	stored, err := f.clients.GetByEmail(context.Background(), business.ID, "naledi@example.com")
	require.NoError(t, err)
	assert.True(t, stored.DepositExempt)
}
