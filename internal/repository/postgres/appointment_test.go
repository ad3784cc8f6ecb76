package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// A booking without a staff preference conflicts with staff-assigned
// rows on the same day, so the advisory lock key must depend on nothing
// but the business and the date.
func TestSlotLockKeyIsPerBusinessDay(t *testing.T) {
	businessID := uuid.New()
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, slotLockKey(businessID, day), slotLockKey(businessID, day))
	assert.NotEqual(t, slotLockKey(businessID, day), slotLockKey(businessID, day.AddDate(0, 0, 1)))
	assert.NotEqual(t, slotLockKey(businessID, day), slotLockKey(uuid.New(), day))
}
