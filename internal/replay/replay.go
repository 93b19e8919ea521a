// Package replay drives the physics core (internal/battery +
// internal/controller) against a recorded net-demand series. It is the
// dispatch shape cmd/battery-compare and cmd/voltage-analysis both need:
// load a CSV export of household grid power, run a self-consumption
// strategy through the charge controller for every sample, and report
// either just the run's totals or a full per-step trace.
package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"battery_storage_simulator/internal/battery"
	"battery_storage_simulator/internal/controller"
	"battery_storage_simulator/internal/ingest"
	"battery_storage_simulator/internal/model"
	"battery_storage_simulator/internal/store"
)

// Reading is one net-demand sample: positive watts means the house is
// importing from the grid, negative means it is exporting PV surplus —
// the same convention internal/simulator/battery.go's Process takes.
type Reading struct {
	Timestamp time.Time
	DemandW   float64
}

// LoadNetDemand reads every *.csv file in dir as a Home Assistant history
// export, keeps only the grid_power sensor, and returns its readings as a
// net-demand series sorted by time.
func LoadNetDemand(dir string) ([]Reading, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input directory %s: %w", dir, err)
	}

	dataStore := store.New()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := loadCSVInto(dataStore, path); err != nil {
			return nil, err
		}
	}

	series, err := SeriesFromStore(dataStore)
	if err != nil {
		return nil, fmt.Errorf("%w (under %s)", err, dir)
	}
	return series, nil
}

// SeriesFromStore extracts the grid-power sensor's readings from an
// already-populated store as a net-demand series, for callers (cmd/server)
// that have loaded CSV data through their own ingest path rather than
// LoadNetDemand.
func SeriesFromStore(dataStore *store.Store) ([]Reading, error) {
	var gridSensorID string
	for _, s := range dataStore.Sensors() {
		if s.Type == model.SensorGridPower {
			gridSensorID = s.ID
			break
		}
	}
	if gridSensorID == "" {
		return nil, fmt.Errorf("no %s sensor in store", model.SensorGridPower)
	}

	tr, ok := dataStore.TimeRange(gridSensorID)
	if !ok {
		return nil, fmt.Errorf("no readings for %s sensor", model.SensorGridPower)
	}
	raw := dataStore.ReadingsInRange(gridSensorID, tr.Start, tr.End.Add(time.Second))

	series := make([]Reading, len(raw))
	for i, r := range raw {
		series[i] = Reading{Timestamp: r.Timestamp, DemandW: r.Value}
	}
	return series, nil
}

func loadCSVInto(dataStore *store.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sensorType, unit := sensorTypeFromFilename(filepath.Base(path))
	parser := ingest.NewHomeAssistantParser(sensorType, unit)
	readings, err := parser.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(readings) == 0 {
		return nil
	}

	name := string(sensorType)
	if info, ok := model.SensorCatalog[sensorType]; ok {
		name = info.Name
	}
	dataStore.AddSensor(model.Sensor{ID: readings[0].SensorID, Name: name, Type: sensorType, Unit: unit})
	dataStore.AddReadings(readings)
	return nil
}

func sensorTypeFromFilename(name string) (model.SensorType, string) {
	base := strings.TrimSuffix(name, ".csv")
	st := model.SensorType(base)
	if info, ok := model.SensorCatalog[st]; ok {
		return st, info.Unit
	}
	return st, ""
}

// Defaults builds a lithium-ion Params/controller.Params pair scaled to the
// given usable capacity and maximum charge/discharge power, standing in
// for a full YAML configuration when the caller only wants to vary pack
// size or dispatch limits. The cell/pack shape (16s LiFePO4, 51.2V nominal)
// matches a typical home-battery pack.
func Defaults(capacityKWh, maxPowerW, floorPercent, ceilingPercent float64) (battery.Params, controller.Params, error) {
	const (
		ns      = 16
		vNom    = 3.2
		vFull   = 3.65
		vExp    = 3.3
	)
	packVNom := ns * vNom
	qmaxAh := capacityKWh * 1000 / packVNom
	maxA := maxPowerW / packVNom

	timeParams, err := battery.NewTimeParams(1, 1, false)
	if err != nil {
		return battery.Params{}, controller.Params{}, err
	}

	p := battery.Params{
		Chemistry: battery.ChemLithiumIon,
		Time:      timeParams,
		Capacity: battery.CapacityParams{
			Chemistry:   battery.ChemLithiumIon,
			QmaxNominal: qmaxAh,
			SOCInit:     floorPercent,
			SOCMin:      floorPercent,
			SOCMax:      ceilingPercent,
		},
		Voltage: battery.VoltageParams{
			Chemistry:  battery.ChemLithiumIon,
			Choice:     battery.VoltageModel,
			VFull:      vFull,
			VExp:       vExp,
			VNom:       vNom,
			QFull:      qmaxAh,
			QExp:       0.1 * qmaxAh,
			QNom:       0.9 * qmaxAh,
			CRate:      1,
			Resistance: 0.01,
			Ns:         ns,
			Np:         1,
		},
		Thermal: battery.ThermalParams{
			MassKg:     5 * capacityKWh,
			LengthM:    0.6,
			WidthM:     0.4,
			HeightM:    0.2,
			CpJPerKgK:  900,
			HWPerM2K:   5,
			Resistance: 0.01,
			TRoomK:     []float64{293.15},
		},
		Lifetime: battery.LifetimeParams{
			CycleMatrix: []battery.CycleMatrixRow{
				{DOD: 10, Cycles: 5000, RelativeCapacity: 95},
				{DOD: 10, Cycles: 10000, RelativeCapacity: 80},
				{DOD: 50, Cycles: 3000, RelativeCapacity: 90},
				{DOD: 50, Cycles: 6000, RelativeCapacity: 50},
				{DOD: 100, Cycles: 1500, RelativeCapacity: 80},
				{DOD: 100, Cycles: 3000, RelativeCapacity: 20},
			},
			CalendarChoice: battery.CalendarModel,
			CalendarQ0:     98,
			CalendarA:      0.2,
			CalendarB:      2855,
			CalendarC:      960,
		},
		Losses: battery.LossParams{Choice: battery.LossMonthly},
	}
	if err := p.Validate(); err != nil {
		return battery.Params{}, controller.Params{}, err
	}

	cp := controller.Params{
		Restriction:            controller.RestrictBoth,
		Connection:             controller.ConnectionAC,
		CurrentChargeMaxA:      maxA,
		CurrentDischargeMaxA:   maxA,
		PowerChargeMaxKWDC:     maxPowerW / 1000,
		PowerDischargeMaxKWDC:  maxPowerW / 1000,
		PowerChargeMaxKWAC:     maxPowerW / 1000,
		PowerDischargeMaxKWAC:  maxPowerW / 1000,
		ACDCEfficiencyPercent:  96,
		DCACEfficiencyPercent:  96,
		SOCMin:                 floorPercent,
		SOCMax:                 ceilingPercent,
		MinimumModeTimeMinutes: 0,
	}
	return p, cp, nil
}

// Step is one dispatch step's full outcome, kept for callers that want a
// per-step trace (a voltage/current scatter, say) rather than only totals.
type Step struct {
	Timestamp          time.Time
	RequestedPowerKWDC float64
	battery.StepResult
}

// Summary accumulates the totals a caller compares across runs.
type Summary struct {
	GridImportKWh           float64
	GridExportKWh           float64
	BatteryThroughputKWh    float64
	Cycles                  float64
	RelativeCapacityPercent float64
	Replacements            int
}

// Run dispatches a self-consumption strategy for every reading in series:
// discharge to cover import, charge from export surplus, using the gap to
// the next timestamp as the step's dtHour. ambientK is held fixed for the
// whole run, standing in for an ambient-temperature sensor feed. When
// trace is true every step's full result is also returned.
func Run(ctrl *controller.Controller, bat *battery.Battery, series []Reading, ambientK float64, trace bool) (Summary, []Step) {
	var sum Summary
	var steps []Step
	if trace {
		steps = make([]Step, 0, len(series))
	}

	lastRelCap := 100.0
	lastReplacements := 0

	for i, r := range series {
		dtHour := 1.0
		if i+1 < len(series) {
			dtHour = series[i+1].Timestamp.Sub(r.Timestamp).Hours()
			if dtHour <= 0 {
				dtHour = 1.0
			}
		}

		requestedKW := r.DemandW / 1000
		res := ctrl.Dispatch(requestedKW, ambientK, i, dtHour)
		lastRelCap = res.RelativeCapacityPercent
		lastReplacements = res.Replacements

		deliveredW := res.CurrentA * res.PackVoltageV
		if deliveredW > 0 {
			// Battery covering load: any demand beyond what it could
			// deliver still needs to come from the grid.
			sum.GridImportKWh += maxFloat(0, r.DemandW-deliveredW) * dtHour / 1000
		} else if deliveredW < 0 {
			// Battery absorbing export surplus: any export beyond what
			// the battery could take still leaves the house via the grid.
			excess := -r.DemandW - (-deliveredW)
			sum.GridExportKWh += maxFloat(0, excess) * dtHour / 1000
		} else if r.DemandW > 0 {
			sum.GridImportKWh += r.DemandW * dtHour / 1000
		} else {
			sum.GridExportKWh += -r.DemandW * dtHour / 1000
		}

		if trace {
			steps = append(steps, Step{Timestamp: r.Timestamp, RequestedPowerKWDC: requestedKW, StepResult: res})
		}
	}

	sum.BatteryThroughputKWh = bat.TotalThroughputAh() * bat.NominalVoltageV() / 1000
	sum.Cycles = float64(bat.HalfCycles()) / 2
	sum.RelativeCapacityPercent = lastRelCap
	sum.Replacements = lastReplacements
	return sum, steps
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
