package battery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthlyLossParams() LossParams {
	p := LossParams{Choice: LossMonthly}
	for i := 0; i < 12; i++ {
		p.ChargeMonthly[i] = float64(i) + 1
		p.DischargeMonthly[i] = float64(i) + 100
		p.IdleMonthly[i] = float64(i) + 10
	}
	return p
}

func TestLosses_MonthlyModeSelectsByChargeMode(t *testing.T) {
	l, err := NewLosses(monthlyLossParams())
	require.NoError(t, err)

	assert.InDelta(t, 1.0, l.LossWatts(ModeCharge, 0, 0), 0.001)
	assert.InDelta(t, 100.0, l.LossWatts(ModeDischarge, 0, 0), 0.001)
	assert.InDelta(t, 10.0, l.LossWatts(ModeNoCharge, 0, 0), 0.001)
	assert.InDelta(t, 111.0, l.LossWatts(ModeDischarge, 11, 0), 0.001)
}

func TestLosses_MonthlyModeOutOfRangeMonthReturnsZero(t *testing.T) {
	l, err := NewLosses(monthlyLossParams())
	require.NoError(t, err)

	assert.InDelta(t, 0.0, l.LossWatts(ModeCharge, -1, 0), 0.001)
	assert.InDelta(t, 0.0, l.LossWatts(ModeCharge, 12, 0), 0.001)
}

func TestLosses_MonthlyModeIgnoresYearOneIndex(t *testing.T) {
	l, err := NewLosses(monthlyLossParams())
	require.NoError(t, err)

	assert.InDelta(t, l.LossWatts(ModeCharge, 3, 0), l.LossWatts(ModeCharge, 3, 99999), 0.001)
}

func TestLosses_TimeseriesModeIndexesBySeries(t *testing.T) {
	series := []float64{5, 6, 7}
	l, err := NewLosses(LossParams{Choice: LossTimeseries, Series: series})
	require.NoError(t, err)

	assert.InDelta(t, 5.0, l.LossWatts(ModeCharge, 0, 0), 0.001)
	assert.InDelta(t, 7.0, l.LossWatts(ModeDischarge, 0, 2), 0.001)
}

func TestLosses_TimeseriesModeOutOfRangeIndexReturnsZero(t *testing.T) {
	l, err := NewLosses(LossParams{Choice: LossTimeseries, Series: []float64{1, 2}})
	require.NoError(t, err)

	assert.InDelta(t, 0.0, l.LossWatts(ModeCharge, 0, -1), 0.001)
	assert.InDelta(t, 0.0, l.LossWatts(ModeCharge, 0, 2), 0.001)
}

func TestLosses_TimeseriesModeRejectsEmptySeries(t *testing.T) {
	_, err := NewLosses(LossParams{Choice: LossTimeseries})
	assert.Error(t, err)
}
