package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"battery_storage_simulator/internal/powerflow"
)

func TestMetrics_AccumulateTracksChargeAndDischargeEnergy(t *testing.T) {
	var m Metrics

	m.Accumulate(powerflow.Result{}, 1000, 1) // discharge 1000W for 1h
	assert.InDelta(t, 1000.0, m.DischargeEnergyWh, 0.001)
	assert.Equal(t, 1, m.StepsDischarging)
	assert.Equal(t, 0, m.StepsCharging)

	m.Accumulate(powerflow.Result{}, -500, 1) // charge 500W for 1h
	assert.InDelta(t, 500.0, m.ChargeEnergyWh, 0.001)
	assert.Equal(t, 1, m.StepsCharging)

	m.Accumulate(powerflow.Result{}, 0, 1) // idle: neither counter moves
	assert.Equal(t, 1, m.StepsCharging)
	assert.Equal(t, 1, m.StepsDischarging)
}

func TestMetrics_AccumulateTracksPVAndGridChargeSplitAndConversionLoss(t *testing.T) {
	var m Metrics

	m.Accumulate(powerflow.Result{PVToBattery: 200, GridToBattery: 50, ConversionLoss: 10}, -250, 1)
	assert.InDelta(t, 200.0, m.PVChargeEnergyWh, 0.001)
	assert.InDelta(t, 50.0, m.GridChargeEnergyWh, 0.001)
	assert.InDelta(t, 10.0, m.ConversionLossWh, 0.001)
}

func TestMetrics_RoundTripEfficiencyPercent(t *testing.T) {
	var m Metrics
	assert.InDelta(t, 0.0, m.RoundTripEfficiencyPercent(), 0.001, "no charging yet means an undefined ratio reports as zero")

	m.ChargeEnergyWh = 100
	m.DischargeEnergyWh = 85
	assert.InDelta(t, 85.0, m.RoundTripEfficiencyPercent(), 0.001)
}

func TestMetrics_PVChargeFractionPercent(t *testing.T) {
	var m Metrics
	assert.InDelta(t, 0.0, m.PVChargeFractionPercent(), 0.001, "no charging yet reports zero rather than NaN")

	m.PVChargeEnergyWh = 75
	m.GridChargeEnergyWh = 25
	assert.InDelta(t, 75.0, m.PVChargeFractionPercent(), 0.001)
}
