// Package batteryconfig loads the YAML parameter table that describes a
// battery's physics-core and charge-controller configuration in a
// load-then-validate shape: Load parses one file and validates it,
// LoadUnchecked only parses it. Several files are not merged.
package batteryconfig

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"battery_storage_simulator/internal/battery"
	"battery_storage_simulator/internal/controller"
)

// Config is the on-disk YAML shape.
type Config struct {
	Chemistry  string           `yaml:"chemistry"`
	Time       TimeConfig       `yaml:"time"`
	Capacity   CapacityConfig   `yaml:"capacity"`
	Voltage    VoltageConfig    `yaml:"voltage"`
	Thermal    ThermalConfig    `yaml:"thermal"`
	Lifetime   LifetimeConfig   `yaml:"lifetime"`
	Losses     LossesConfig     `yaml:"losses"`
	Controller ControllerConfig `yaml:"controller"`
}

type TimeConfig struct {
	DtHour       float64 `yaml:"dt_hour"`
	Years        int     `yaml:"years"`
	LifetimeMode bool    `yaml:"lifetime_mode"`
}

type CapacityConfig struct {
	QmaxAh   float64          `yaml:"qmax_ah"`
	SOCInit  float64          `yaml:"soc_init"`
	SOCMin   float64          `yaml:"soc_min"`
	SOCMax   float64          `yaml:"soc_max"`
	LeadAcid LeadAcidConfig   `yaml:"lead_acid"`
}

type LeadAcidConfig struct {
	Q1  float64 `yaml:"q1"`
	Q10 float64 `yaml:"q10"`
	Q20 float64 `yaml:"q20"`
	T1  float64 `yaml:"t1"`
}

type VoltageConfig struct {
	Choice      string      `yaml:"choice"` // "dynamic" or "table"
	VFull       float64     `yaml:"v_full"`
	VExp        float64     `yaml:"v_exp"`
	VNom        float64     `yaml:"v_nom"`
	VNomDefault float64     `yaml:"v_nom_default"`
	QFull       float64     `yaml:"q_full"`
	QExp        float64     `yaml:"q_exp"`
	QNom        float64     `yaml:"q_nom"`
	CRate       float64     `yaml:"c_rate"`
	Resistance  float64     `yaml:"resistance"`
	Ns          int         `yaml:"n_series"`
	Np          int         `yaml:"n_strings"`
	Table       [][2]float64 `yaml:"table"` // [DOD%, V] rows
}

type ThermalConfig struct {
	MassKg     float64      `yaml:"mass_kg"`
	LengthM    float64      `yaml:"length_m"`
	WidthM     float64      `yaml:"width_m"`
	HeightM    float64      `yaml:"height_m"`
	CpJPerKgK  float64      `yaml:"cp_j_per_kg_k"`
	HWPerM2K   float64      `yaml:"hw_per_m2_k"`
	Resistance float64      `yaml:"resistance"`
	CapVsTemp  [][2]float64 `yaml:"capacity_vs_temp"` // [K, %]
	TRoomK     []float64    `yaml:"t_room_k"`
}

type LifetimeConfig struct {
	CycleMatrix [][3]float64    `yaml:"cycle_matrix"` // [DOD%, cycles, relcap%]
	Calendar    CalendarConfig  `yaml:"calendar"`
}

type CalendarConfig struct {
	Choice string       `yaml:"choice"` // "none", "model", "table"
	Q0     float64      `yaml:"q0"`
	A      float64      `yaml:"a"`
	B      float64      `yaml:"b"`
	C      float64      `yaml:"c"`
	Table  [][2]float64 `yaml:"table"` // [day_age, %]
}

type LossesConfig struct {
	Choice           string     `yaml:"choice"` // "monthly" or "timeseries"
	ChargeMonthly    [12]float64 `yaml:"charge_monthly"`
	DischargeMonthly [12]float64 `yaml:"discharge_monthly"`
	IdleMonthly      [12]float64 `yaml:"idle_monthly"`
	Series           []float64   `yaml:"series"`
}

type ControllerConfig struct {
	Restriction string  `yaml:"restriction"` // "none", "current", "power", "both"
	Connection  string  `yaml:"connection"`  // "ac" or "dc"

	CurrentChargeMaxA    float64 `yaml:"current_charge_max_a"`
	CurrentDischargeMaxA float64 `yaml:"current_discharge_max_a"`

	PowerChargeMaxKWDC    float64 `yaml:"power_charge_max_kwdc"`
	PowerDischargeMaxKWDC float64 `yaml:"power_discharge_max_kwdc"`
	PowerChargeMaxKWAC    float64 `yaml:"power_charge_max_kwac"`
	PowerDischargeMaxKWAC float64 `yaml:"power_discharge_max_kwac"`

	ACDCEfficiencyPercent float64 `yaml:"ac_dc_efficiency_percent"`
	DCACEfficiencyPercent float64 `yaml:"dc_ac_efficiency_percent"`

	MinimumModeTimeMinutes float64 `yaml:"minimum_mode_time_minutes"`
}

// Load reads, parses and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked reads and parses the YAML configuration without
// validating it, useful for inspecting a partially-written config file.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading battery config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parsing battery config %s: %w", path, err)
	}
	return &c, nil
}

// Validate checks the top-level shape is sane and that the derived
// battery.Params construct cleanly.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("battery config is nil")
	}
	if _, err := c.ToParams(); err != nil {
		return fmt.Errorf("battery config invalid: %w", err)
	}
	return nil
}

// ToParams builds the battery.Params bundle this config describes.
func (c *Config) ToParams() (battery.Params, error) {
	chemistry := chemistryFromString(c.Chemistry)

	timeParams, err := battery.NewTimeParams(c.Time.DtHour, c.Time.Years, c.Time.LifetimeMode)
	if err != nil {
		return battery.Params{}, err
	}

	p := battery.Params{
		Chemistry: chemistry,
		Time:      timeParams,
		Capacity: battery.CapacityParams{
			Chemistry:   chemistry,
			QmaxNominal: c.Capacity.QmaxAh,
			SOCInit:     c.Capacity.SOCInit,
			SOCMin:      c.Capacity.SOCMin,
			SOCMax:      c.Capacity.SOCMax,
			LeadAcid: battery.KiBaMRefParams{
				Q1:  c.Capacity.LeadAcid.Q1,
				Q10: c.Capacity.LeadAcid.Q10,
				Q20: c.Capacity.LeadAcid.Q20,
				T1:  c.Capacity.LeadAcid.T1,
			},
		},
		Voltage: battery.VoltageParams{
			Chemistry:   chemistry,
			Choice:      voltageChoiceFromString(c.Voltage.Choice),
			VFull:       c.Voltage.VFull,
			VExp:        c.Voltage.VExp,
			VNom:        c.Voltage.VNom,
			VNomDefault: c.Voltage.VNomDefault,
			QFull:       c.Voltage.QFull,
			QExp:        c.Voltage.QExp,
			QNom:        c.Voltage.QNom,
			CRate:       c.Voltage.CRate,
			Resistance:  c.Voltage.Resistance,
			Ns:          c.Voltage.Ns,
			Np:          c.Voltage.Np,
			Table:       tablePoints(c.Voltage.Table),
		},
		Thermal: battery.ThermalParams{
			MassKg:     c.Thermal.MassKg,
			LengthM:    c.Thermal.LengthM,
			WidthM:     c.Thermal.WidthM,
			HeightM:    c.Thermal.HeightM,
			CpJPerKgK:  c.Thermal.CpJPerKgK,
			HWPerM2K:   c.Thermal.HWPerM2K,
			Resistance: c.Thermal.Resistance,
			CapVsTemp:  tablePoints(c.Thermal.CapVsTemp),
			TRoomK:     c.Thermal.TRoomK,
		},
		Lifetime: battery.LifetimeParams{
			CycleMatrix:    cycleMatrixRows(c.Lifetime.CycleMatrix),
			CalendarChoice: calendarChoiceFromString(c.Lifetime.Calendar.Choice),
			CalendarQ0:     c.Lifetime.Calendar.Q0,
			CalendarA:      c.Lifetime.Calendar.A,
			CalendarB:      c.Lifetime.Calendar.B,
			CalendarC:      c.Lifetime.Calendar.C,
			CalendarTable:  tablePoints(c.Lifetime.Calendar.Table),
		},
		Losses: battery.LossParams{
			Choice:           lossChoiceFromString(c.Losses.Choice),
			ChargeMonthly:    c.Losses.ChargeMonthly,
			DischargeMonthly: c.Losses.DischargeMonthly,
			IdleMonthly:      c.Losses.IdleMonthly,
			Series:           c.Losses.Series,
		},
	}
	if err := p.Validate(); err != nil {
		return battery.Params{}, err
	}
	return p, nil
}

// ToControllerParams builds the controller.Params bundle this config
// describes, reusing the capacity SOC bounds already validated in ToParams.
func (c *Config) ToControllerParams() controller.Params {
	return controller.Params{
		Restriction:            restrictionFromString(c.Controller.Restriction),
		Connection:             connectionFromString(c.Controller.Connection),
		CurrentChargeMaxA:      c.Controller.CurrentChargeMaxA,
		CurrentDischargeMaxA:   c.Controller.CurrentDischargeMaxA,
		PowerChargeMaxKWDC:     c.Controller.PowerChargeMaxKWDC,
		PowerDischargeMaxKWDC:  c.Controller.PowerDischargeMaxKWDC,
		PowerChargeMaxKWAC:     c.Controller.PowerChargeMaxKWAC,
		PowerDischargeMaxKWAC:  c.Controller.PowerDischargeMaxKWAC,
		ACDCEfficiencyPercent:  orDefault(c.Controller.ACDCEfficiencyPercent, 96),
		DCACEfficiencyPercent:  orDefault(c.Controller.DCACEfficiencyPercent, 96),
		SOCMin:                 c.Capacity.SOCMin,
		SOCMax:                 c.Capacity.SOCMax,
		MinimumModeTimeMinutes: c.Controller.MinimumModeTimeMinutes,
	}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func tablePoints(rows [][2]float64) []battery.TablePoint {
	out := make([]battery.TablePoint, len(rows))
	for i, r := range rows {
		out[i] = battery.TablePoint{X: r[0], Y: r[1]}
	}
	return out
}

func cycleMatrixRows(rows [][3]float64) []battery.CycleMatrixRow {
	out := make([]battery.CycleMatrixRow, len(rows))
	for i, r := range rows {
		out[i] = battery.CycleMatrixRow{DOD: r[0], Cycles: r[1], RelativeCapacity: r[2]}
	}
	return out
}

func chemistryFromString(s string) battery.Chemistry {
	switch s {
	case "lead_acid":
		return battery.ChemLeadAcid
	case "vanadium_redox":
		return battery.ChemVanadiumRedox
	default:
		return battery.ChemLithiumIon
	}
}

func voltageChoiceFromString(s string) battery.VoltageChoice {
	if s == "table" {
		return battery.VoltageTable
	}
	return battery.VoltageModel
}

func calendarChoiceFromString(s string) battery.CalendarChoice {
	switch s {
	case "table":
		return battery.CalendarTable
	case "model":
		return battery.CalendarModel
	default:
		return battery.CalendarNone
	}
}

func lossChoiceFromString(s string) battery.LossChoice {
	if s == "timeseries" {
		return battery.LossTimeseries
	}
	return battery.LossMonthly
}

func restrictionFromString(s string) controller.Restriction {
	switch s {
	case "current":
		return controller.RestrictCurrent
	case "power":
		return controller.RestrictPower
	case "both":
		return controller.RestrictBoth
	default:
		return controller.RestrictNone
	}
}

func connectionFromString(s string) controller.Connection {
	if s == "ac" {
		return controller.ConnectionAC
	}
	return controller.ConnectionDC
}
