package battery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// lithiumParams, leadAcidParams (capacity_test.go), dynamicVoltageParams
// (voltage_test.go) and thermalParams (thermal_test.go) are shared fixtures
// reused here.

func TestInvalidParameter_ErrorMessageNamesFieldAndReason(t *testing.T) {
	err := invalidParam("qmax_nominal", "must be > 0, got %v", -5.0)

	var ip *InvalidParameter
	a := assert.New(t)
	a.True(errors.As(err, &ip))
	a.Equal("qmax_nominal", ip.Field)
	a.Contains(err.Error(), "qmax_nominal")
	a.Contains(err.Error(), "must be > 0, got -5")
}

func TestCapacityParams_ValidationPaths(t *testing.T) {
	p := lithiumParams()
	assert.NoError(t, p.validate())

	bad := p
	bad.SOCInit = 101
	assert.Error(t, bad.validate())

	bad = p
	bad.SOCMin = 60
	bad.SOCMax = 50
	assert.Error(t, bad.validate(), "soc_min must not exceed soc_max")

	bad = leadAcidParams()
	bad.LeadAcid.T1 = 0
	assert.Error(t, bad.validate())

	bad = leadAcidParams()
	bad.LeadAcid.Q1 = 0
	assert.Error(t, bad.validate())
}

func TestVoltageParams_ValidationPaths(t *testing.T) {
	p := dynamicVoltageParams()
	assert.NoError(t, p.validate())

	bad := p
	bad.Np = 0
	assert.Error(t, bad.validate())

	bad = p
	bad.Resistance = -1
	assert.Error(t, bad.validate())

	bad = p
	bad.VFull = 0
	assert.Error(t, bad.validate())

	bad = p
	bad.QFull = 0
	assert.Error(t, bad.validate())

	bad = p
	bad.CRate = 0
	assert.Error(t, bad.validate())

	vanadium := VoltageParams{Chemistry: ChemVanadiumRedox, Ns: 1, Np: 1, VFull: 1, VExp: 1, VNom: 1}
	assert.NoError(t, vanadium.validate(), "vanadium redox never requires Qfull/Qexp/Qnom/CRate")

	table := VoltageParams{Choice: VoltageTable, Ns: 1, Np: 1, Table: []TablePoint{{X: 0, Y: 1}}}
	assert.Error(t, table.validate(), "a one-row voltage table cannot be interpolated")
}

func TestThermalParams_ValidationPaths(t *testing.T) {
	p := thermalParams()
	assert.NoError(t, p.validate())

	bad := p
	bad.CpJPerKgK = 0
	assert.Error(t, bad.validate())

	bad = p
	bad.WidthM = 0
	assert.Error(t, bad.validate())

	bad = p
	bad.TRoomK = []float64{}
	assert.Error(t, bad.validate())
}

func TestThermalParams_SurfaceArea(t *testing.T) {
	p := thermalParams()
	want := 2 * (p.LengthM*p.WidthM + p.LengthM*p.HeightM + p.WidthM*p.HeightM)
	assert.InDelta(t, want, p.surfaceArea(), 1e-9)
}

func TestLifetimeParams_ValidationPaths(t *testing.T) {
	p := LifetimeParams{CycleMatrix: sampleCycleMatrix()}
	assert.NoError(t, p.validate())

	bad := LifetimeParams{CycleMatrix: sampleCycleMatrix(), CalendarChoice: CalendarTable, CalendarTable: []TablePoint{{X: 0, Y: 100}}}
	assert.Error(t, bad.validate(), "a one-row calendar table cannot be interpolated")

	bad = LifetimeParams{CycleMatrix: sampleCycleMatrix(), CalendarChoice: CalendarModel, CalendarQ0: -1}
	assert.Error(t, bad.validate())
}

func TestLossParams_ValidationPaths(t *testing.T) {
	assert.NoError(t, LossParams{Choice: LossMonthly}.validate())
	assert.Error(t, LossParams{Choice: LossTimeseries}.validate())
}
