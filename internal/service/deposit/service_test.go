package deposit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/repository/repositorytest"
)

func testBusiness() *model.Business {
	return &model.Business{
		Name:              "Glow Studio",
		DepositEnabled:    true,
		DepositType:       model.DepositTypePercentage,
		DepositPercentage: 50,
		MerchantID:        "10000100",
		MerchantKey:       "46f0cd694581a",
	}
}

func TestPercentageDeposit(t *testing.T) {
	clients := repositorytest.NewClientRepo()
	svc := NewService(clients, nil)
	business := testBusiness()
	require.NoError(t, clients.Upsert(context.Background(), &model.ClientProfile{BusinessID: business.ID, Email: "a@b.c"}))

	a, err := svc.Assess(context.Background(), business, &model.Service{Price: 299.99}, "a@b.c")
	require.NoError(t, err)
	assert.True(t, a.Required())
	assert.Equal(t, 150.00, a.Amount)
}

func TestFixedDeposit(t *testing.T) {
	svc := NewService(repositorytest.NewClientRepo(), nil)
	business := testBusiness()
	business.DepositType = model.DepositTypeFixed
	business.DepositAmount = 75.50

	a, err := svc.Assess(context.Background(), business, &model.Service{Price: 500}, "x@y.z")
	require.NoError(t, err)
	assert.True(t, a.Required())
	assert.Equal(t, 75.50, a.Amount)
}

func TestDepositDisabled(t *testing.T) {
	svc := NewService(repositorytest.NewClientRepo(), nil)
	business := testBusiness()
	business.DepositEnabled = false

	a, err := svc.Assess(context.Background(), business, &model.Service{Price: 500}, "x@y.z")
	require.NoError(t, err)
	assert.False(t, a.Required())
	assert.Zero(t, a.Amount)
}

func TestMissingMerchantCredentialsDisablesDeposits(t *testing.T) {
	svc := NewService(repositorytest.NewClientRepo(), nil)
	business := testBusiness()
	business.MerchantKey = ""

	a, err := svc.Assess(context.Background(), business, &model.Service{Price: 500}, "x@y.z")
	require.NoError(t, err)
	assert.False(t, a.Required())
}

func TestZeroComputedDepositRequiresNothing(t *testing.T) {
	svc := NewService(repositorytest.NewClientRepo(), nil)
	business := testBusiness()
	business.DepositPercentage = 0

	a, err := svc.Assess(context.Background(), business, &model.Service{Price: 500}, "x@y.z")
	require.NoError(t, err)
	assert.False(t, a.Required())
}

func TestExemptClientSkipsDeposit(t *testing.T) {
	clients := repositorytest.NewClientRepo()
	svc := NewService(clients, nil)
	business := testBusiness()

	profile := &model.ClientProfile{BusinessID: business.ID, Email: "vip@example.com"}
	require.NoError(t, clients.Upsert(context.Background(), profile))
	require.NoError(t, clients.SetDepositExempt(context.Background(), profile.ID, true))

	a, err := svc.Assess(context.Background(), business, &model.Service{Price: 500}, "vip@example.com")
	require.NoError(t, err)
	assert.True(t, a.Exempt)
	assert.False(t, a.Required())
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 33.33, Round2(99.99/3))
	assert.Equal(t, 0.1, Round2(0.1))
	assert.Equal(t, 150.0, Round2(149.999))
}
