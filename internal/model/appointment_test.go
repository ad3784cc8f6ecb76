package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAtCombinesDateAndClock(t *testing.T) {
	appt := &Appointment{
		AppointmentDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		StartTime:       "09:30",
		LengthMinutes:   45,
	}

	start, err := appt.StartAt(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC), start)

	end, err := appt.EndAt(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 10, 15, 0, 0, time.UTC), end)
}

func TestStartAtRejectsMalformedClock(t *testing.T) {
	appt := &Appointment{
		AppointmentDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		StartTime:       "9h30",
	}

	_, err := appt.StartAt(time.UTC)
	assert.Error(t, err)

	_, err = appt.EndAt(time.UTC)
	assert.Error(t, err)
}
