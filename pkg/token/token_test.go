package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	svc := NewService("test-secret")
	appointmentID := uuid.New()

	signed, err := svc.IssueAppointmentToken(appointmentID, time.Hour)
	require.NoError(t, err)

	parsed, err := svc.ParseAppointmentToken(signed)
	require.NoError(t, err)
	assert.Equal(t, appointmentID, parsed)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	svc := NewService("test-secret")

	signed, err := svc.IssueAppointmentToken(uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = svc.ParseAppointmentToken(signed)
	assert.Error(t, err)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	signed, err := NewService("secret-a").IssueAppointmentToken(uuid.New(), time.Hour)
	require.NoError(t, err)

	_, err = NewService("secret-b").ParseAppointmentToken(signed)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := NewService("test-secret").ParseAppointmentToken("not-a-token")
	assert.Error(t, err)
}
