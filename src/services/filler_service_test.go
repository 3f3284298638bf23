package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/aegisnode/backend/src/models"
)

// fastFillerConfig skips validation on purpose: the service trusts its
// caller, and tiny intervals keep the test quick.
func fastFillerConfig(fraudRatio float64) models.FillerConfig {
	return models.FillerConfig{MinInterval: 0.001, MaxInterval: 0.002, FraudRatio: fraudRatio}
}

func TestFillerLifecycle(t *testing.T) {
	scorer := newStubScorer()
	store := newFakeStore()
	filler := NewFillerService(scorer, store)

	require.True(t, filler.Start(fastFillerConfig(0)))
	assert.False(t, filler.Start(fastFillerConfig(0)), "second start must be rejected")

	status := filler.Status()
	assert.True(t, status.IsRunning)
	assert.Equal(t, [2]float64{0.001, 0.002}, status.IntervalRange)
	assert.NotEmpty(t, status.StartedAt)

	require.Eventually(t, func() bool {
		return filler.Status().TotalInserted >= 3
	}, 2*time.Second, time.Millisecond)

	require.True(t, filler.Stop())
	assert.False(t, filler.Stop(), "second stop must be rejected")
	assert.False(t, filler.Status().IsRunning)

	// No inserts after stop.
	total := filler.Status().TotalInserted
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, total, filler.Status().TotalInserted)
	assert.Equal(t, int(total), len(store.savedTxns()))
}

func TestFillerFraudRatioOne(t *testing.T) {
	scorer := newStubScorer()
	store := newFakeStore()
	filler := NewFillerService(scorer, store)

	require.True(t, filler.Start(fastFillerConfig(1.0)))
	require.Eventually(t, func() bool {
		return filler.Status().TotalInserted >= 5
	}, 2*time.Second, time.Millisecond)
	require.True(t, filler.Stop())

	saved := store.savedTxns()
	require.NotEmpty(t, saved)
	for _, txn := range saved {
		assert.True(t, txn.IsFraud)
		assert.NotEmpty(t, txn.FraudType)
		assert.True(t, txn.IsFlagged, "stub flags ground-truth fraud")
		assert.NotEmpty(t, txn.XAIReasons, "flagged transactions carry explanations")
	}
}

func TestFillerNormalTrafficOnly(t *testing.T) {
	scorer := newStubScorer()
	store := newFakeStore()
	filler := NewFillerService(scorer, store)

	require.True(t, filler.Start(fastFillerConfig(0)))
	require.Eventually(t, func() bool {
		return filler.Status().TotalInserted >= 5
	}, 2*time.Second, time.Millisecond)
	require.True(t, filler.Stop())

	for _, txn := range store.savedTxns() {
		assert.False(t, txn.IsFraud)
		assert.False(t, txn.IsFlagged)
		assert.Empty(t, txn.XAIReasons)
	}
}

func TestFillerSurvivesInsertErrors(t *testing.T) {
	scorer := newStubScorer()
	store := newFakeStore()
	store.saveErr = assert.AnError
	filler := NewFillerService(scorer, store)

	require.True(t, filler.Start(fastFillerConfig(0)))
	time.Sleep(50 * time.Millisecond)
	assert.True(t, filler.Status().IsRunning, "insert failures must not kill the loop")
	assert.Equal(t, int64(0), filler.Status().TotalInserted)
	require.True(t, filler.Stop())
}

func TestFillerRestart(t *testing.T) {
	scorer := newStubScorer()
	store := newFakeStore()
	filler := NewFillerService(scorer, store)

	require.True(t, filler.Start(fastFillerConfig(0)))
	require.Eventually(t, func() bool {
		return filler.Status().TotalInserted >= 1
	}, 2*time.Second, time.Millisecond)
	require.True(t, filler.Stop())

	require.True(t, filler.Start(fastFillerConfig(0)))
	assert.True(t, filler.Status().IsRunning)
	assert.Equal(t, int64(0), filler.Status().TotalInserted, "restart resets the counter")
	require.True(t, filler.Stop())
}
