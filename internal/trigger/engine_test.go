package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func triggerConditions() Conditions {
	return Conditions{
		RegimeGapDetected:    true,
		RollingIC30Day:       0.01,
		ICDecayDays:          7,
		DaysSinceLastAttempt: intPtr(45),
		ActiveIndicatorCount: 10,
		MaxIndicatorCapacity: 20,
	}
}

func TestEvaluateSeedScenarioTriggers(t *testing.T) {
	d := Evaluate(triggerConditions(), DefaultConfig())
	assert.True(t, d.ShouldTrigger)
	assert.Empty(t, d.Reasons)
	assert.Contains(t, d.Summary, "all conditions met")
	assert.Len(t, d.Checks, 6)
}

func TestEvaluateCooldownBlocks(t *testing.T) {
	c := triggerConditions()
	c.DaysSinceLastAttempt = intPtr(20)

	d := Evaluate(c, DefaultConfig())
	assert.False(t, d.ShouldTrigger)
	require.NotEmpty(t, d.Reasons)
	assert.Contains(t, d.Reasons[0], "cool-down")
	assert.Contains(t, d.Summary, "cooldown")
}

func TestEvaluateNeverAttemptedSatisfiesCooldown(t *testing.T) {
	c := triggerConditions()
	c.DaysSinceLastAttempt = nil

	d := Evaluate(c, DefaultConfig())
	assert.True(t, d.ShouldTrigger)
}

func TestEvaluateCapacityBlocks(t *testing.T) {
	c := triggerConditions()
	c.ActiveIndicatorCount = 20

	d := Evaluate(c, DefaultConfig())
	assert.False(t, d.ShouldTrigger)
	assert.Contains(t, d.Summary, "capacity")
}

func TestEvaluateHealthyICBlocks(t *testing.T) {
	c := triggerConditions()
	c.RollingIC30Day = 0.05
	c.ICDecayDays = 0

	d := Evaluate(c, DefaultConfig())
	assert.False(t, d.ShouldTrigger)
}

func TestEvaluateMonotonicInDaysSinceAttempt(t *testing.T) {
	prev := false
	for days := 0; days <= 60; days += 5 {
		c := triggerConditions()
		c.DaysSinceLastAttempt = intPtr(days)
		cur := Evaluate(c, DefaultConfig()).ShouldTrigger
		if prev {
			assert.True(t, cur, "trigger regressed at days=%d", days)
		}
		prev = cur
	}
}

func TestEvaluateMonotonicInActiveCount(t *testing.T) {
	prevBlocked := false
	for count := 0; count <= 25; count++ {
		c := triggerConditions()
		c.ActiveIndicatorCount = count
		blocked := !Evaluate(c, DefaultConfig()).ShouldTrigger
		if prevBlocked {
			assert.True(t, blocked, "trigger re-enabled at count=%d", count)
		}
		prevBlocked = blocked
	}
}

func TestRollingIC(t *testing.T) {
	assert.Equal(t, 0.0, RollingIC(nil, 30))

	history := []float64{0.5, 0.1, 0.2, 0.3}
	assert.InDelta(t, 0.2, RollingIC(history, 3), 1e-12)
	assert.InDelta(t, 0.275, RollingIC(history, 30), 1e-12)
}

func TestDecayDays(t *testing.T) {
	// Newest entries declining and below threshold.
	history := []float64{0.05, 0.04, 0.018, 0.015, 0.012}
	assert.Equal(t, 4, DecayDays(history, 0.02))

	// Healthy and rising: no decay.
	assert.Equal(t, 0, DecayDays([]float64{0.01, 0.03, 0.05}, 0.02))

	// A declining entry counts even when above threshold.
	assert.Equal(t, 1, DecayDays([]float64{0.03, 0.05, 0.04}, 0.02), "0.04 declines from 0.05")

	assert.Equal(t, 0, DecayDays(nil, 0.02))
}
