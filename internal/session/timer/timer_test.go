package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiresExactlyOnce(t *testing.T) {
	r := New()
	require.NoError(t, r.Start(3*time.Second))

	fired := 0
	for i := 0; i < 10; i++ {
		if r.Tick() {
			fired++
		}
	}
	assert.Equal(t, 1, fired)
	assert.Equal(t, time.Duration(0), r.Remaining())
	assert.False(t, r.Running())
}

func TestPauseSuppressesExpiry(t *testing.T) {
	r := New()
	require.NoError(t, r.Start(2*time.Second))
	assert.False(t, r.Tick())
	r.Pause()

	for i := 0; i < 5; i++ {
		assert.False(t, r.Tick())
	}
	assert.Equal(t, time.Second, r.Remaining())
}

func TestResetSuppressesExpiry(t *testing.T) {
	r := New()
	require.NoError(t, r.Start(time.Second))
	r.Reset()
	assert.False(t, r.Tick())
}

func TestDoubleStartIsMisuse(t *testing.T) {
	r := New()
	require.NoError(t, r.Start(5*time.Second))
	assert.ErrorIs(t, r.Start(5*time.Second), ErrTimerMisuse)

	r.Reset()
	assert.NoError(t, r.Start(5*time.Second))
	assert.Equal(t, 5*time.Second, r.Limit())
}
