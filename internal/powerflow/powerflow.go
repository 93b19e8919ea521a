// Package powerflow implements the C10 power-flow decomposition that turns
// a house load, a PV array, an optional fuel cell, and a battery's
// requested power into the named flow components (PV-to-load,
// battery-to-grid, grid-to-battery losses, and so on) for both AC-coupled
// and DC-coupled system topologies.
package powerflow

// Topology selects how the battery is electrically coupled to the rest of
// the system.
type Topology int

const (
	ACCoupled Topology = iota
	DCCoupled
)

// Inputs are the power quantities known before the battery's contribution
// is split into named flows. All values are in watts, AC side unless
// marked DC; PV/FuelCell/Load are always non-negative.
type Inputs struct {
	Topology Topology

	PVWatts           float64
	FuelCellWatts     float64
	LoadWatts         float64
	InverterDrawWatts float64 // PV inverter parasitic draw, AC-coupled only
	SystemLossWatts   float64

	// BatteryPowerWatts is positive when the battery discharges (supplies
	// power) and negative when it charges (absorbs power). AC side for
	// AC-coupled systems, DC side for DC-coupled systems.
	BatteryPowerWatts float64

	// DCBusVoltage and SharedInverterEfficiency apply only to DCCoupled,
	// where the battery sits behind the same inverter as the PV array.
	DCBusVoltage             float64
	SharedInverterEfficiency SharedInverterEfficiency
}

// SharedInverterEfficiency maps a DC input power fraction to an AC
// conversion efficiency percent, used for the DC-coupled shared-inverter
// cutoff below which conversion is not worthwhile.
type SharedInverterEfficiency interface {
	EfficiencyPercent(dcWatts float64) float64
	MinimumDCWatts() float64
}

// Result is the fully decomposed set of named power flows, all in watts
// and all non-negative; the caller reconstructs net grid exchange as
// GridImport - GridExport.
type Result struct {
	PVToLoad        float64
	PVToBattery     float64
	PVToGrid        float64
	FuelCellToLoad  float64
	FuelCellToBatt  float64
	FuelCellToGrid  float64
	BatteryToLoad   float64
	BatteryToGrid   float64
	GridToBattery   float64
	GridToLoad      float64
	ConversionLoss  float64
	GridImport      float64
	GridExport      float64
}

// Calculate dispatches to the AC-coupled or DC-coupled decomposition.
func Calculate(in Inputs) Result {
	if in.Topology == DCCoupled {
		return calculateDCConnected(in)
	}
	return calculateACConnected(in)
}

// calculateACConnected splits power on the AC bus, where PV, fuel cell,
// battery and grid all meet downstream of their own inverters. PV serves
// load first, then the fuel cell, then any remaining PV/FuelCell excess
// charges the battery or exports to the grid; a battery deficit against
// load is made up from the grid.
func calculateACConnected(in Inputs) Result {
	var r Result

	load := in.LoadWatts + in.InverterDrawWatts + in.SystemLossWatts
	pvRemaining := in.PVWatts
	fcRemaining := in.FuelCellWatts

	r.PVToLoad = minPositive(pvRemaining, load)
	pvRemaining -= r.PVToLoad
	load -= r.PVToLoad

	r.FuelCellToLoad = minPositive(fcRemaining, load)
	fcRemaining -= r.FuelCellToLoad
	load -= r.FuelCellToLoad

	battery := in.BatteryPowerWatts
	if battery > 0 {
		// Discharging: cover remaining load first, export any surplus.
		r.BatteryToLoad = minPositive(battery, load)
		battery -= r.BatteryToLoad
		load -= r.BatteryToLoad
		r.BatteryToGrid = battery

		r.PVToGrid = pvRemaining
		r.FuelCellToGrid = fcRemaining
		r.GridToLoad = load
	} else if battery < 0 {
		// Charging: PV and fuel cell excess feed the battery first, grid
		// makes up any shortfall; any load still unmet draws from the grid.
		need := -battery
		r.PVToBattery = minPositive(pvRemaining, need)
		pvRemaining -= r.PVToBattery
		need -= r.PVToBattery

		r.FuelCellToBatt = minPositive(fcRemaining, need)
		fcRemaining -= r.FuelCellToBatt
		need -= r.FuelCellToBatt

		r.GridToBattery = need
		r.PVToGrid = pvRemaining
		r.FuelCellToGrid = fcRemaining
		r.GridToLoad = load
	} else {
		r.PVToGrid = pvRemaining
		r.FuelCellToGrid = fcRemaining
		r.GridToLoad = load
	}

	r.GridImport = r.GridToLoad + r.GridToBattery
	r.GridExport = r.PVToGrid + r.FuelCellToGrid + r.BatteryToGrid
	return r
}

// calculateDCConnected combines PV and battery on the DC bus behind one
// shared inverter before splitting to load/grid on the AC side. When the
// combined DC power available to the inverter falls below the shared
// inverter's minimum threshold, conversion is skipped rather than forced
// through at near-zero efficiency.
func calculateDCConnected(in Inputs) Result {
	var r Result

	pvDC := in.PVWatts
	batteryDC := in.BatteryPowerWatts // positive discharge, negative charge

	if batteryDC < 0 {
		// Charging straight from the DC bus: PV feeds the battery first.
		need := -batteryDC
		r.PVToBattery = minPositive(pvDC, need)
		pvDC -= r.PVToBattery
		need -= r.PVToBattery
		r.GridToBattery = 0 // DC-coupled batteries cannot charge from AC grid directly
		_ = need
	}

	genDC := pvDC
	if batteryDC > 0 {
		genDC += batteryDC
	}

	if in.SharedInverterEfficiency != nil && genDC < in.SharedInverterEfficiency.MinimumDCWatts() {
		// Below the efficiency cutoff: hold the battery's contribution back
		// rather than convert it at a loss. The caller sees this as zero
		// delivered AC power for this step.
		r.ConversionLoss = 0
		r.GridToLoad = in.LoadWatts + in.SystemLossWatts
		r.GridImport = r.GridToLoad
		return r
	}

	effPercent := 100.0
	if in.SharedInverterEfficiency != nil {
		effPercent = in.SharedInverterEfficiency.EfficiencyPercent(genDC)
	}
	genAC := genDC * effPercent / 100
	r.ConversionLoss = genDC - genAC

	load := in.LoadWatts + in.SystemLossWatts
	r.PVToLoad = minPositive(genAC, load)
	remaining := genAC - r.PVToLoad
	load -= r.PVToLoad

	if remaining > 0 {
		r.PVToGrid = remaining
	}
	r.GridToLoad = load

	r.GridImport = r.GridToLoad
	r.GridExport = r.PVToGrid
	return r
}

func minPositive(a, b float64) float64 {
	if a < 0 {
		a = 0
	}
	if b < 0 {
		b = 0
	}
	if a < b {
		return a
	}
	return b
}
