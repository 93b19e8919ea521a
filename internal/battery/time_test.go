package battery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimeParams_DerivesStepsPerHour(t *testing.T) {
	p, err := NewTimeParams(0.25, 5, true)
	require.NoError(t, err)
	assert.Equal(t, 4, p.StepsPerHour)
	assert.Equal(t, 5, p.Years)
	assert.True(t, p.LifetimeMode)
}

func TestNewTimeParams_RejectsOutOfRangeDt(t *testing.T) {
	_, err := NewTimeParams(0, 1, false)
	assert.Error(t, err)

	_, err = NewTimeParams(1.5, 1, false)
	assert.Error(t, err)
}

func TestNewTimeParams_RejectsZeroYears(t *testing.T) {
	_, err := NewTimeParams(1, 0, false)
	assert.Error(t, err)
}

func TestCursor_AdvanceRollsStepIntoHourIntoYear(t *testing.T) {
	p, err := NewTimeParams(0.5, 2, true)
	require.NoError(t, err)
	c := NewCursor(p)

	assert.Equal(t, 0, c.StepOfHour())
	assert.Equal(t, 0, c.HourOfYear())
	assert.Equal(t, 0, c.Year())

	c.AdvanceOneStep() // step 1 of hour 0
	assert.Equal(t, 1, c.StepOfHour())
	assert.Equal(t, 0, c.HourOfYear())

	c.AdvanceOneStep() // rolls into hour 1, step 0
	assert.Equal(t, 0, c.StepOfHour())
	assert.Equal(t, 1, c.HourOfYear())
}

func TestCursor_RollsHourIntoYear(t *testing.T) {
	p, err := NewTimeParams(1, 2, true)
	require.NoError(t, err)
	c := NewCursor(p)

	for i := 0; i < 8760; i++ {
		c.AdvanceOneStep()
	}
	assert.Equal(t, 0, c.HourOfYear())
	assert.Equal(t, 1, c.Year())
}

func TestCursor_IndexDerivations(t *testing.T) {
	p, err := NewTimeParams(0.5, 3, true)
	require.NoError(t, err)
	c := NewCursor(p)

	for i := 0; i < 8760*2+5; i++ {
		c.AdvanceOneStep()
	}

	assert.Equal(t, 1, c.Year())
	assert.Equal(t, 2, c.HourOfYear())
	assert.Equal(t, 1, c.StepOfHour())
	assert.Equal(t, c.HourOfYear()*p.StepsPerHour+c.StepOfHour(), c.YearStepIndex())
	assert.Equal(t, c.Year()*8760+c.HourOfYear(), c.HourLifetime())
	assert.Equal(t, c.HourLifetime()*p.StepsPerHour+c.StepOfHour(), c.LifetimeStepIndex())
}

func TestYearOneIndex_WrapsAcrossYears(t *testing.T) {
	assert.Equal(t, 0, YearOneIndex(1, 8760))
	assert.Equal(t, 5, YearOneIndex(1, 8760*3+5))
	assert.Equal(t, 0, YearOneIndex(0, 123), "a degenerate zero steps-per-hour must not divide by zero")
}

func TestTruncateLeapSeries_DropsExtraHours(t *testing.T) {
	leap := make([]float64, 8784)
	for i := range leap {
		leap[i] = float64(i)
	}
	out := TruncateLeapSeries(leap, 1)
	assert.Len(t, out, 8760)
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 8759.0, out[8759])
}

func TestTruncateLeapSeries_LeavesNonLeapLengthAlone(t *testing.T) {
	series := make([]float64, 8760)
	out := TruncateLeapSeries(series, 1)
	assert.Len(t, out, 8760)
}

func TestTruncateLeapSeries_HandlesMultipleLeapYears(t *testing.T) {
	series := make([]float64, 8784*2)
	out := TruncateLeapSeries(series, 1)
	assert.Len(t, out, 8760*2)
}
