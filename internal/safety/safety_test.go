package safety

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardofone/internal/config"
)

func testCfg() config.SafetyConfig {
	return config.SafetyConfig{
		MaxCostPerSessionUSD:        1.00,
		MaxCostPerSubProblemUSD:     0.15,
		MaxDurationPerSubProblemSec: 180,
		MaxRounds:                   10,
		MinRounds:                   3,
		MaxSteps:                    200,
		MaxSubProblems:              12,
	}
}

func TestCheckSessionCostLimit(t *testing.T) {
	l := NewLimits(testCfg())
	l.RecordCost("sp1", 1.01)

	abort := l.CheckSession()
	require.NotNil(t, abort)
	assert.Equal(t, KindCostSession, abort.Kind)
}

func TestCheckSubProblemCostLimit(t *testing.T) {
	l := NewLimits(testCfg())
	l.RecordCost("sp1", 0.20)

	abort := l.CheckSubProblem("sp1", time.Now(), 1)
	require.NotNil(t, abort)
	assert.Equal(t, KindCostSubProblem, abort.Kind)
	assert.Equal(t, "sp1", abort.SubProblemID)
}

func TestCheckSubProblemRoundLimit(t *testing.T) {
	l := NewLimits(testCfg())
	abort := l.CheckSubProblem("sp1", time.Now(), 11)
	require.NotNil(t, abort)
	assert.Equal(t, KindMaxRounds, abort.Kind)
}

func TestCheckSubProblemDurationLimit(t *testing.T) {
	l := NewLimits(testCfg())
	started := time.Now().Add(-200 * time.Second)
	abort := l.CheckSubProblem("sp1", started, 1)
	require.NotNil(t, abort)
	assert.Equal(t, KindDuration, abort.Kind)
}

func TestKillTakesPrecedence(t *testing.T) {
	l := NewLimits(testCfg())
	l.Kill(KindAdminKill, "operator stopped the session")

	abort := l.CheckSession()
	require.NotNil(t, abort)
	assert.Equal(t, KindAdminKill, abort.Kind)

	abort2 := l.CheckSubProblem("sp1", time.Now(), 1)
	require.NotNil(t, abort2)
	assert.Equal(t, KindAdminKill, abort2.Kind)
}

func TestNoAbortWithinBudget(t *testing.T) {
	l := NewLimits(testCfg())
	l.RecordCost("sp1", 0.05)
	assert.Nil(t, l.CheckSubProblem("sp1", time.Now(), 2))
	assert.Nil(t, l.CheckSession())
}

func TestCycleDetectorFlagsRepetition(t *testing.T) {
	d := NewCycleDetector(3)

	sig1 := Signature([]string{"cost", "risk"}, 0.4, 0.3, 0.5)
	sig2 := Signature([]string{"timeline"}, 0.5, 0.6, 0.4)

	assert.False(t, d.Observe(sig1))
	assert.False(t, d.Observe(sig2))
	assert.True(t, d.Observe(sig1), "repeating signature within lookback window should be flagged")
}

func TestCycleDetectorRespectsLookbackWindow(t *testing.T) {
	d := NewCycleDetector(1)

	sigA := Signature([]string{"a"}, 0.1, 0.1, 0.1)
	sigB := Signature([]string{"b"}, 0.2, 0.2, 0.2)

	d.Observe(sigA)
	d.Observe(sigB)
	// sigA is now outside the 1-entry lookback window
	assert.False(t, d.Observe(sigA))
}

func TestCycleDetectorReset(t *testing.T) {
	d := NewCycleDetector(3)
	sig := Signature([]string{"a"}, 0.1, 0.1, 0.1)
	d.Observe(sig)
	d.Reset()
	assert.False(t, d.Observe(sig), "reset should clear prior signatures")
}

func TestSignatureIsOrderIndependent(t *testing.T) {
	s1 := Signature([]string{"cost", "risk"}, 0.5, 0.5, 0.5)
	s2 := Signature([]string{"risk", "cost"}, 0.5, 0.5, 0.5)
	assert.Equal(t, s1, s2)
}
