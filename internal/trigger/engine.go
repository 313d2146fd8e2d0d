// Package trigger decides whether a new indicator should be synthesised
// now. The predicate is pure: it conjoins a regime-gap flag, IC
// underperformance, decay persistence, an attempt cool-down, and a capacity
// cap, and reports which conditions blocked it.
package trigger

import (
	"fmt"
	"strings"

	"github.com/cream-quant/synthcore/internal/stats"
)

// Config holds the trigger thresholds.
type Config struct {
	ICThreshold        float64 `yaml:"ic_threshold"`         // rolling IC floor, default 0.02
	DecayDaysThreshold int     `yaml:"decay_days_threshold"` // consecutive decay days, default 5
	CooldownDays       int     `yaml:"cooldown_days"`        // days between attempts, default 30
	RollingWindow      int     `yaml:"rolling_window"`       // IC lookback, default 30
}

// DefaultConfig returns the production trigger configuration.
func DefaultConfig() Config {
	return Config{
		ICThreshold:        0.02,
		DecayDaysThreshold: 5,
		CooldownDays:       30,
		RollingWindow:      30,
	}
}

// Conditions are the inputs the predicate evaluates. A nil
// DaysSinceLastAttempt means no attempt has ever been made; that state
// satisfies the cool-down.
type Conditions struct {
	RegimeGapDetected    bool    `json:"regime_gap_detected"`
	RollingIC30Day       float64 `json:"rolling_ic_30day"`
	ICDecayDays          int     `json:"ic_decay_days"`
	DaysSinceLastAttempt *int    `json:"days_since_last_attempt"` // nil = never attempted
	ActiveIndicatorCount int     `json:"active_indicator_count"`
	MaxIndicatorCapacity int     `json:"max_indicator_capacity"`
}

// ConditionCheck records one condition's evaluation for observability.
type ConditionCheck struct {
	Name      string      `json:"name"`
	Value     interface{} `json:"value"`
	Threshold interface{} `json:"threshold"`
	Passed    bool        `json:"passed"`
}

// Decision is the trigger outcome plus the reasons any condition blocked.
type Decision struct {
	ShouldTrigger bool             `json:"should_trigger"`
	Reasons       []string         `json:"reasons"`
	Summary       string           `json:"summary"`
	Checks        []ConditionCheck `json:"checks"`
}

// RollingIC returns the mean of the most recent min(window, len) entries of
// the IC history.
func RollingIC(history []float64, window int) float64 {
	if len(history) == 0 {
		return 0
	}
	if window > len(history) {
		window = len(history)
	}
	return stats.Mean(history[len(history)-window:])
}

// DecayDays counts, newest to oldest, consecutive IC entries that are
// either below the threshold or strictly lower than the entry before them
// (the IC dropped that day). The walk stops at the first entry that is
// at-or-above threshold and not declining.
func DecayDays(history []float64, threshold float64) int {
	days := 0
	for i := len(history) - 1; i >= 0; i-- {
		below := history[i] < threshold
		declining := i > 0 && history[i] < history[i-1]
		if !below && !declining {
			break
		}
		days++
	}
	return days
}

// Evaluate runs the six-condition conjunction and returns the decision
// with the full per-condition breakdown.
func Evaluate(c Conditions, cfg Config) Decision {
	underperforming := c.RollingIC30Day < cfg.ICThreshold || c.ICDecayDays >= cfg.DecayDaysThreshold

	cooldownOK := c.DaysSinceLastAttempt == nil || *c.DaysSinceLastAttempt >= cfg.CooldownDays
	cooldownValue := "never"
	if c.DaysSinceLastAttempt != nil {
		cooldownValue = fmt.Sprintf("%d", *c.DaysSinceLastAttempt)
	}

	checks := []ConditionCheck{
		{Name: "regime_gap", Value: c.RegimeGapDetected, Threshold: true, Passed: c.RegimeGapDetected},
		{Name: "underperforming", Value: underperforming, Threshold: true, Passed: underperforming},
		{Name: "rolling_ic", Value: c.RollingIC30Day, Threshold: cfg.ICThreshold, Passed: c.RollingIC30Day < cfg.ICThreshold},
		{Name: "decay_days", Value: c.ICDecayDays, Threshold: cfg.DecayDaysThreshold, Passed: c.ICDecayDays >= cfg.DecayDaysThreshold},
		{Name: "cooldown", Value: cooldownValue, Threshold: cfg.CooldownDays, Passed: cooldownOK},
		{Name: "capacity", Value: c.ActiveIndicatorCount, Threshold: c.MaxIndicatorCapacity, Passed: c.ActiveIndicatorCount < c.MaxIndicatorCapacity},
	}

	d := Decision{Checks: checks, Reasons: []string{}}
	blocked := []string{}
	for _, check := range checks {
		if !check.Passed {
			blocked = append(blocked, check.Name)
			d.Reasons = append(d.Reasons, blockReason(check, cfg))
		}
	}

	d.ShouldTrigger = len(blocked) == 0
	if d.ShouldTrigger {
		d.Summary = fmt.Sprintf("trigger: all conditions met (rolling IC %.4f, %d decay days, %d/%d capacity)",
			c.RollingIC30Day, c.ICDecayDays, c.ActiveIndicatorCount, c.MaxIndicatorCapacity)
	} else {
		d.Summary = fmt.Sprintf("no trigger: blocked by %s", strings.Join(blocked, ", "))
	}
	return d
}

func blockReason(check ConditionCheck, cfg Config) string {
	switch check.Name {
	case "regime_gap":
		return "no regime gap detected"
	case "underperforming":
		return "indicator set is not underperforming"
	case "rolling_ic":
		return fmt.Sprintf("rolling IC %v at or above %.4f", check.Value, cfg.ICThreshold)
	case "decay_days":
		return fmt.Sprintf("only %v decay days, need >= %d", check.Value, cfg.DecayDaysThreshold)
	case "cooldown":
		return fmt.Sprintf("cool-down active: %v days since last attempt, need >= %d", check.Value, cfg.CooldownDays)
	case "capacity":
		return fmt.Sprintf("at capacity: %v of %v indicators active", check.Value, check.Threshold)
	default:
		return check.Name + " blocked"
	}
}
