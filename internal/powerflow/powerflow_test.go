package powerflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate_ACCoupled_PVSurplusExports(t *testing.T) {
	r := Calculate(Inputs{
		Topology:  ACCoupled,
		PVWatts:   1000,
		LoadWatts: 400,
	})

	assert.InDelta(t, 400.0, r.PVToLoad, 0.001)
	assert.InDelta(t, 600.0, r.PVToGrid, 0.001)
	assert.InDelta(t, 0.0, r.GridImport, 0.001)
	assert.InDelta(t, 600.0, r.GridExport, 0.001)
}

func TestCalculate_ACCoupled_BatteryDischargeCoversLoadThenExports(t *testing.T) {
	r := Calculate(Inputs{
		Topology:          ACCoupled,
		PVWatts:           200,
		LoadWatts:         500,
		BatteryPowerWatts: 400,
	})

	assert.InDelta(t, 200.0, r.PVToLoad, 0.001)
	assert.InDelta(t, 300.0, r.BatteryToLoad, 0.001)
	assert.InDelta(t, 100.0, r.BatteryToGrid, 0.001)
	assert.InDelta(t, 0.0, r.GridImport, 0.001)
	assert.InDelta(t, 100.0, r.GridExport, 0.001)
}

func TestCalculate_ACCoupled_BatteryChargesFromPVSurplusThenGrid(t *testing.T) {
	r := Calculate(Inputs{
		Topology:          ACCoupled,
		PVWatts:           300,
		LoadWatts:         100,
		BatteryPowerWatts: -500,
	})

	assert.InDelta(t, 100.0, r.PVToLoad, 0.001)
	assert.InDelta(t, 200.0, r.PVToBattery, 0.001)
	assert.InDelta(t, 300.0, r.GridToBattery, 0.001)
	assert.InDelta(t, 300.0, r.GridImport, 0.001)
	assert.InDelta(t, 0.0, r.GridExport, 0.001)
}

func TestCalculate_ACCoupled_GridCoversBothLoadAndChargingSimultaneously(t *testing.T) {
	r := Calculate(Inputs{
		Topology:          ACCoupled,
		LoadWatts:         200,
		BatteryPowerWatts: -100,
	})

	assert.InDelta(t, 200.0, r.GridToLoad, 0.001)
	assert.InDelta(t, 100.0, r.GridToBattery, 0.001)
	assert.InDelta(t, 300.0, r.GridImport, 0.001)
}

func TestCalculate_ACCoupled_InverterDrawAndSystemLossAddToLoad(t *testing.T) {
	r := Calculate(Inputs{
		Topology:          ACCoupled,
		PVWatts:           1000,
		LoadWatts:         500,
		InverterDrawWatts: 50,
		SystemLossWatts:   20,
	})

	assert.InDelta(t, 570.0, r.PVToLoad, 0.001)
	assert.InDelta(t, 430.0, r.PVToGrid, 0.001)
}

func TestCalculate_ACCoupled_FuelCellServesLoadAfterPV(t *testing.T) {
	r := Calculate(Inputs{
		Topology:      ACCoupled,
		PVWatts:       100,
		FuelCellWatts: 300,
		LoadWatts:     250,
	})

	assert.InDelta(t, 100.0, r.PVToLoad, 0.001)
	assert.InDelta(t, 150.0, r.FuelCellToLoad, 0.001)
	assert.InDelta(t, 150.0, r.FuelCellToGrid, 0.001)
}

func dcEfficiencyCurve() *EfficiencyCurve {
	return NewEfficiencyCurve(1000, 0.1, []EfficiencyPoint{
		{LoadFraction: 0.1, EfficiencyPercent: 90},
		{LoadFraction: 1.0, EfficiencyPercent: 97},
	})
}

func TestCalculate_DCCoupled_BelowCutoffSkipsConversion(t *testing.T) {
	r := Calculate(Inputs{
		Topology:                 DCCoupled,
		PVWatts:                  50,
		LoadWatts:                300,
		SharedInverterEfficiency: dcEfficiencyCurve(),
	})

	assert.InDelta(t, 300.0, r.GridToLoad, 0.001)
	assert.InDelta(t, 300.0, r.GridImport, 0.001)
	assert.InDelta(t, 0.0, r.ConversionLoss, 0.001)
	assert.InDelta(t, 0.0, r.PVToLoad, 0.001)
}

func TestCalculate_DCCoupled_AboveCutoffConvertsAndSplits(t *testing.T) {
	r := Calculate(Inputs{
		Topology:                 DCCoupled,
		PVWatts:                  800,
		LoadWatts:                500,
		SharedInverterEfficiency: dcEfficiencyCurve(),
	})

	assert.InDelta(t, 36.444, r.ConversionLoss, 0.01)
	assert.InDelta(t, 500.0, r.PVToLoad, 0.001)
	assert.InDelta(t, 263.556, r.PVToGrid, 0.01)
	assert.InDelta(t, 0.0, r.GridImport, 0.001)
	assert.InDelta(t, 263.556, r.GridExport, 0.01)
}

func TestCalculate_DCCoupled_BatteryDischargeAddsToSharedDCBus(t *testing.T) {
	r := Calculate(Inputs{
		Topology:                 DCCoupled,
		PVWatts:                  200,
		BatteryPowerWatts:        300,
		LoadWatts:                100,
		SharedInverterEfficiency: dcEfficiencyCurve(),
	})

	assert.InDelta(t, 34.444, r.ConversionLoss, 0.01)
	assert.InDelta(t, 100.0, r.PVToLoad, 0.001)
	assert.InDelta(t, 365.556, r.PVToGrid, 0.01)
}

func TestCalculate_DCCoupled_BatteryChargesFromPVOnDCBusBeforeInverter(t *testing.T) {
	r := Calculate(Inputs{
		Topology:          DCCoupled,
		PVWatts:           500,
		BatteryPowerWatts: -200,
		LoadWatts:         100,
	})

	assert.InDelta(t, 200.0, r.PVToBattery, 0.001)
	assert.InDelta(t, 0.0, r.ConversionLoss, 0.001, "nil SharedInverterEfficiency implies lossless, uncapped conversion")
	assert.InDelta(t, 100.0, r.PVToLoad, 0.001)
	assert.InDelta(t, 200.0, r.PVToGrid, 0.001)
	assert.InDelta(t, 0.0, r.GridImport, 0.001)
}

func TestCalculate_DCCoupled_BatteryCannotChargeFromACGridDirectly(t *testing.T) {
	r := Calculate(Inputs{
		Topology:          DCCoupled,
		BatteryPowerWatts: -500,
		LoadWatts:         100,
	})

	assert.InDelta(t, 0.0, r.GridToBattery, 0.001, "a DC-coupled battery only ever charges from the local DC bus")
}

func TestMinPositive(t *testing.T) {
	assert.InDelta(t, 3.0, minPositive(3, 5), 0.001)
	assert.InDelta(t, 3.0, minPositive(5, 3), 0.001)
	assert.InDelta(t, 0.0, minPositive(-5, 3), 0.001)
	assert.InDelta(t, 0.0, minPositive(5, -3), 0.001)
}
