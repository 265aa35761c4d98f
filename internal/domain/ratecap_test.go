package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyCap_AllowUntilMax(t *testing.T) {
	cap := NewDailyCap(1)
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, cap.Allow("0xwhale", now))
	cap.Record("0xwhale", now)
	assert.False(t, cap.Allow("0xwhale", now))

	// Otra entidad no comparte cupo.
	assert.True(t, cap.Allow("0xother", now))
}

func TestDailyCap_ResetsNextDay(t *testing.T) {
	cap := NewDailyCap(1)
	today := time.Date(2026, 9, 1, 23, 50, 0, 0, time.UTC)
	tomorrow := today.Add(time.Hour)

	cap.Record("0xwhale", today)
	assert.False(t, cap.Allow("0xwhale", today))
	assert.True(t, cap.Allow("0xwhale", tomorrow))

	cap.Record("0xwhale", tomorrow)
	assert.Equal(t, 1, cap.Count("0xwhale", tomorrow))
	// El día viejo se purgó al registrar el nuevo.
	assert.Equal(t, 0, cap.Count("0xwhale", today))
}
