package controller

import "battery_storage_simulator/internal/powerflow"

// Metrics accumulates running dispatch totals across a simulation run:
// energy by source/sink, conversion loss, and round-trip efficiency. It
// mirrors the running-kWh-total style the rest of the simulator already
// uses for its own summaries.
type Metrics struct {
	ChargeEnergyWh    float64
	DischargeEnergyWh float64
	PVChargeEnergyWh  float64
	GridChargeEnergyWh float64
	ConversionLossWh  float64

	StepsCharging    int
	StepsDischarging int
}

// Accumulate folds one step's power-flow result and battery power (W,
// positive discharge) into the running totals. dtHour is the step duration.
func (m *Metrics) Accumulate(flow powerflow.Result, batteryPowerW, dtHour float64) {
	wh := batteryPowerW * dtHour
	switch {
	case batteryPowerW > 0:
		m.DischargeEnergyWh += wh
		m.StepsDischarging++
	case batteryPowerW < 0:
		m.ChargeEnergyWh += -wh
		m.StepsCharging++
	}

	m.PVChargeEnergyWh += flow.PVToBattery * dtHour
	m.GridChargeEnergyWh += flow.GridToBattery * dtHour
	m.ConversionLossWh += flow.ConversionLoss * dtHour
}

// RoundTripEfficiencyPercent is cumulative discharge energy over cumulative
// charge energy, the simplest whole-run efficiency figure; it returns 0
// until the battery has both charged and discharged at least once.
func (m *Metrics) RoundTripEfficiencyPercent() float64 {
	if m.ChargeEnergyWh <= 0 {
		return 0
	}
	return 100 * m.DischargeEnergyWh / m.ChargeEnergyWh
}

// PVChargeFractionPercent is the share of all charging energy that came
// from PV rather than the grid.
func (m *Metrics) PVChargeFractionPercent() float64 {
	total := m.PVChargeEnergyWh + m.GridChargeEnergyWh
	if total <= 0 {
		return 0
	}
	return 100 * m.PVChargeEnergyWh / total
}
