package deposit

import (
	"context"
	"math"

	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/repository"
	"github.com/getmebooked/booking-api/pkg/metrics"
)

// Service decides whether a booking owes a deposit and how much.
type Service struct {
	clientRepo repository.ClientRepository
	metrics    *metrics.Metrics
}

func NewService(clientRepo repository.ClientRepository, m *metrics.Metrics) *Service {
	return &Service{clientRepo: clientRepo, metrics: m}
}

// Assessment is the outcome of the deposit policy for one booking.
// Exempt means the client is trusted and the booking confirms without
// payment regardless of the business's deposit settings.
type Assessment struct {
	Amount float64
	Exempt bool
}

// Required reports whether the booking must go through payment.
func (a Assessment) Required() bool {
	return !a.Exempt && a.Amount > 0
}

// Assess applies the policy in order: client exemption first, then the
// business's deposit configuration. A business without merchant
// credentials silently takes no deposits.
func (s *Service) Assess(ctx context.Context, business *model.Business, svc *model.Service, guestEmail string) (Assessment, error) {
	client, err := s.clientRepo.GetByEmail(ctx, business.ID, guestEmail)
	if err != nil {
		return Assessment{}, err
	}
	if client != nil && client.DepositExempt {
		return Assessment{Exempt: true}, nil
	}

	if !business.DepositEnabled || !business.HasMerchantCredentials() {
		return Assessment{}, nil
	}

	var amount float64
	switch business.DepositType {
	case model.DepositTypePercentage:
		amount = Round2(svc.Price * business.DepositPercentage / 100)
	case model.DepositTypeFixed:
		amount = business.DepositAmount
	}
	if amount <= 0 {
		return Assessment{}, nil
	}

	if s.metrics != nil {
		s.metrics.DepositsRequested.Inc()
	}
	return Assessment{Amount: amount}, nil
}

// Round2 rounds to two decimals, half away from zero, matching how the
// payment gateway formats amounts.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
