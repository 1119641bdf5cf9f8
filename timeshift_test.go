package ftputil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynchronizeTimesWithinBounds(t *testing.T) {
	h, fs := newTestHost(t)

	require.NoError(t, h.SynchronizeTimes())
	// the fake server's clock is not skewed from the test process's, so
	// the measured shift should round to 0.
	assert.Equal(t, time.Duration(0), h.TimeShift())

	// probe file must have been cleaned up
	assert.False(t, h.Exists(syncProbeName))
	_ = fs
}

func TestSynchronizeTimesDetectsSkew(t *testing.T) {
	h, fs := newTestHost(t)

	fs.setClockSkew(4 * time.Hour)
	require.NoError(t, h.SynchronizeTimes())
	assert.Equal(t, 4*time.Hour, h.TimeShift())

	// probe file must have been cleaned up even though the server's
	// clock is skewed
	assert.False(t, h.Exists(syncProbeName))
}

func TestSynchronizeTimesRejectsImplausibleSkew(t *testing.T) {
	h, fs := newTestHost(t)

	fs.setClockSkew(25 * time.Hour)
	err := h.SynchronizeTimes()
	require.Error(t, err)
	var fe *Error
	require.True(t, errAs(err, &fe))
	assert.Equal(t, KindTimeShift, fe.Kind)
}

func TestRoundToHours(t *testing.T) {
	assert.Equal(t, time.Duration(0), roundToHours(10*time.Minute))
	assert.Equal(t, time.Hour, roundToHours(31*time.Minute))
	assert.Equal(t, 4*time.Hour, roundToHours(4*time.Hour+4*time.Minute))
	assert.Equal(t, -4*time.Hour, roundToHours(-4*time.Hour-4*time.Minute))
}
