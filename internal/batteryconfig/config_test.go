package batteryconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battery_storage_simulator/internal/battery"
	"battery_storage_simulator/internal/controller"
)

const validYAML = `
chemistry: lithium_ion
time:
  dt_hour: 1
  years: 1
  lifetime_mode: false
capacity:
  qmax_ah: 100
  soc_init: 50
  soc_min: 10
  soc_max: 100
voltage:
  choice: dynamic
  v_full: 4.1
  v_exp: 4.05
  v_nom: 3.6
  q_full: 100
  q_exp: 4
  q_nom: 80
  c_rate: 1
  resistance: 0.0003
  n_series: 4
  n_strings: 1
thermal:
  mass_kg: 20
  length_m: 0.3
  width_m: 0.2
  height_m: 0.15
  cp_j_per_kg_k: 900
  hw_per_m2_k: 5
  resistance: 0.02
  t_room_k: [293.15]
lifetime:
  cycle_matrix:
    - [10, 200, 100]
    - [50, 200, 90]
    - [100, 200, 70]
  calendar:
    choice: none
losses:
  choice: monthly
controller:
  restriction: power
  connection: dc
  current_charge_max_a: 100
  current_discharge_max_a: 100
  power_charge_max_kwdc: 10
  power_discharge_max_kwdc: 10
  power_charge_max_kwac: 10
  power_discharge_max_kwac: 10
  ac_dc_efficiency_percent: 95
  dc_ac_efficiency_percent: 95
  minimum_mode_time_minutes: 10
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "battery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_ParsesAndValidatesCompleteConfig(t *testing.T) {
	path := writeConfig(t, validYAML)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lithium_ion", c.Chemistry)
	assert.Equal(t, 4, c.Voltage.Ns)
	assert.Len(t, c.Lifetime.CycleMatrix, 3)
}

func TestLoad_MissingFileReturnsWrappedError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidParamsFailValidation(t *testing.T) {
	path := writeConfig(t, strings.Replace(validYAML, "qmax_ah: 100", "qmax_ah: 0", 1))
	_, err := Load(path)
	assert.Error(t, err, "qmax_ah of 0 should fail battery.Params validation")
}

func TestLoadUnchecked_ParsesWithoutValidating(t *testing.T) {
	path := writeConfig(t, "chemistry: lithium_ion\ncapacity:\n  qmax_ah: 0\n")
	c, err := LoadUnchecked(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Capacity.QmaxAh)
}

func TestConfig_ToParams_MapsChemistryAndSubModels(t *testing.T) {
	path := writeConfig(t, validYAML)
	c, err := LoadUnchecked(path)
	require.NoError(t, err)

	p, err := c.ToParams()
	require.NoError(t, err)
	assert.Equal(t, battery.ChemLithiumIon, p.Chemistry)
	assert.InDelta(t, 100.0, p.Capacity.QmaxNominal, 0.001)
	assert.Equal(t, battery.VoltageModel, p.Voltage.Choice)
	assert.Equal(t, battery.CalendarNone, p.Lifetime.CalendarChoice)
	assert.Equal(t, battery.LossMonthly, p.Losses.Choice)
}

func TestConfig_ToParams_LeadAcidAndVanadiumChemistryStrings(t *testing.T) {
	path := writeConfig(t, validYAML)
	c, err := LoadUnchecked(path)
	require.NoError(t, err)

	c.Chemistry = "lead_acid"
	p, err := c.ToParams()
	assert.Error(t, err, "the fixture's lead-acid KiBaM reference params are all zero")
	assert.Equal(t, battery.Params{}, p)

	c.Chemistry = "vanadium_redox"
	c.Capacity.QmaxAh = 100
	c.Voltage.VNomDefault = 1.4
	p, err = c.ToParams()
	require.NoError(t, err)
	assert.Equal(t, battery.ChemVanadiumRedox, p.Chemistry)
}

func TestConfig_ToParams_VoltageTableChoice(t *testing.T) {
	path := writeConfig(t, strings.Replace(validYAML, "  choice: dynamic\n", "  choice: table\n  table:\n    - [0, 4.2]\n    - [100, 3.0]\n", 1))
	c, err := LoadUnchecked(path)
	require.NoError(t, err)

	p, err := c.ToParams()
	require.NoError(t, err)
	assert.Equal(t, battery.VoltageTable, p.Voltage.Choice)
	require.Len(t, p.Voltage.Table, 2)
	assert.InDelta(t, 4.2, p.Voltage.Table[0].Y, 0.001)
}

func TestConfig_ToControllerParams_MapsRestrictionAndConnection(t *testing.T) {
	path := writeConfig(t, validYAML)
	c, err := LoadUnchecked(path)
	require.NoError(t, err)

	cp := c.ToControllerParams()
	assert.Equal(t, controller.RestrictPower, cp.Restriction)
	assert.Equal(t, controller.ConnectionDC, cp.Connection)
	assert.InDelta(t, 10.0, cp.SOCMin, 0.001, "controller SOC bounds are reused from capacity config")
	assert.InDelta(t, 100.0, cp.SOCMax, 0.001)
}

func TestConfig_ToControllerParams_DefaultsZeroEfficiencyTo96Percent(t *testing.T) {
	path := writeConfig(t, strings.Replace(validYAML, "  ac_dc_efficiency_percent: 95\n  dc_ac_efficiency_percent: 95\n", "", 1))
	c, err := LoadUnchecked(path)
	require.NoError(t, err)

	cp := c.ToControllerParams()
	assert.InDelta(t, 96.0, cp.ACDCEfficiencyPercent, 0.001)
	assert.InDelta(t, 96.0, cp.DCACEfficiencyPercent, 0.001)
}

func TestRestrictionFromString_UnknownDefaultsToNone(t *testing.T) {
	assert.Equal(t, controller.RestrictNone, restrictionFromString("bogus"))
	assert.Equal(t, controller.RestrictCurrent, restrictionFromString("current"))
	assert.Equal(t, controller.RestrictBoth, restrictionFromString("both"))
}

func TestConnectionFromString(t *testing.T) {
	assert.Equal(t, controller.ConnectionAC, connectionFromString("ac"))
	assert.Equal(t, controller.ConnectionDC, connectionFromString("anything-else"))
}

func TestChemistryFromString(t *testing.T) {
	assert.Equal(t, battery.ChemLeadAcid, chemistryFromString("lead_acid"))
	assert.Equal(t, battery.ChemVanadiumRedox, chemistryFromString("vanadium_redox"))
	assert.Equal(t, battery.ChemLithiumIon, chemistryFromString("unknown"))
}

func TestCycleMatrixRows_ConvertsRowTriples(t *testing.T) {
	rows := cycleMatrixRows([][3]float64{{10, 200, 100}, {50, 200, 90}})
	require.Len(t, rows, 2)
	assert.InDelta(t, 10.0, rows[0].DOD, 0.001)
	assert.InDelta(t, 200.0, rows[0].Cycles, 0.001)
	assert.InDelta(t, 100.0, rows[0].RelativeCapacity, 0.001)
}

func TestTablePoints_ConvertsRowPairs(t *testing.T) {
	pts := tablePoints([][2]float64{{0, 4.2}, {100, 3.0}})
	require.Len(t, pts, 2)
	assert.InDelta(t, 0.0, pts[0].X, 0.001)
	assert.InDelta(t, 3.0, pts[1].Y, 0.001)
}

func TestOrDefault(t *testing.T) {
	assert.InDelta(t, 96.0, orDefault(0, 96), 0.001)
	assert.InDelta(t, 93.0, orDefault(93, 96), 0.001)
}
