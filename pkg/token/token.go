package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Service issues and validates the signed tokens embedded in guest
// self-service links (reschedule / cancel), so guests can act on their
// appointment without an account.
type Service interface {
	IssueAppointmentToken(appointmentID uuid.UUID, ttl time.Duration) (string, error)
	ParseAppointmentToken(token string) (uuid.UUID, error)
}

type service struct {
	secret []byte
}

type appointmentClaims struct {
	AppointmentID string `json:"appointment_id"`
	jwt.RegisteredClaims
}

func NewService(secret string) Service {
	return &service{secret: []byte(secret)}
}

func (s *service) IssueAppointmentToken(appointmentID uuid.UUID, ttl time.Duration) (string, error) {
	claims := appointmentClaims{
		AppointmentID: appointmentID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   appointmentID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign appointment token: %w", err)
	}
	return signed, nil
}

func (s *service) ParseAppointmentToken(token string) (uuid.UUID, error) {
	var claims appointmentClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse appointment token: %w", err)
	}
	if !parsed.Valid {
		return uuid.Nil, fmt.Errorf("invalid appointment token")
	}

	id, err := uuid.Parse(claims.AppointmentID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid appointment id in token: %w", err)
	}
	return id, nil
}
