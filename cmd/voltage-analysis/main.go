package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"battery_storage_simulator/internal/battery"
	"battery_storage_simulator/internal/controller"
	"battery_storage_simulator/internal/replay"
)

func main() {
	inputDir := flag.String("input-dir", "input", "directory containing CSV data files")
	capacityKWh := flag.Float64("capacity-kwh", 10, "battery usable capacity in kWh")
	cRate := flag.Float64("max-power-rate", 0.5, "C-rate for max charge/discharge power")
	floor := flag.Float64("discharge-floor", 10, "minimum SoC percent")
	ceiling := flag.Float64("charge-ceiling", 100, "maximum SoC percent")
	ambientC := flag.Float64("ambient-c", 20, "fixed ambient temperature for the thermal sub-model (Celsius)")
	underV := flag.Float64("undervoltage-threshold", 0, "pack undervoltage alarm threshold in volts (0 disables)")
	overV := flag.Float64("overvoltage-threshold", 0, "pack overvoltage alarm threshold in volts (0 disables)")
	csvOut := flag.String("csv-out", "", "optional CSV output of the per-step voltage/current/SoC trace")
	flag.Parse()

	series, err := replay.LoadNetDemand(*inputDir)
	if err != nil {
		log.Fatalf("Loading input data: %v", err)
	}
	if len(series) == 0 {
		log.Fatal("No grid_power readings found under input directory")
	}

	maxPower := *capacityKWh * *cRate * 1000
	batParams, ctrlParams, err := replay.Defaults(*capacityKWh, maxPower, *floor, *ceiling)
	if err != nil {
		log.Fatalf("Building battery params: %v", err)
	}
	bat, err := battery.New(batParams)
	if err != nil {
		log.Fatalf("Constructing battery: %v", err)
	}
	ctrl := controller.New(ctrlParams, bat)

	ambientK := *ambientC + 273.15
	summary, steps := replay.Run(ctrl, bat, series, ambientK, true)

	fmt.Println()
	fmt.Println("Battery Pack Voltage Analysis")
	fmt.Printf("  Data: %s to %s\n", series[0].Timestamp.Format("2006-01-02"), series[len(series)-1].Timestamp.Format("2006-01-02"))
	fmt.Printf("  Capacity: %.1f kWh, floor %.0f%%, ceiling %.0f%%, C-rate %.1f\n", *capacityKWh, *floor, *ceiling, *cRate)
	fmt.Printf("  Grid import %.1f kWh, export %.1f kWh, cycles %.1f, relative capacity %.1f%%\n",
		summary.GridImportKWh, summary.GridExportKWh, summary.Cycles, summary.RelativeCapacityPercent)
	fmt.Println()

	printVoltageSummary(steps)
	if *underV > 0 || *overV > 0 {
		printThresholdExposure(steps, *underV, *overV)
	}
	printSOCVoltageBuckets(steps)

	if *csvOut != "" {
		if err := writeTraceCSV(steps, *csvOut); err != nil {
			log.Fatalf("Writing trace CSV: %v", err)
		}
		fmt.Printf("  Wrote per-step trace to %s\n\n", *csvOut)
	}
}

func printVoltageSummary(steps []replay.Step) {
	if len(steps) == 0 {
		fmt.Println("  No steps simulated.")
		return
	}

	minV, maxV, sumV := steps[0].PackVoltageV, steps[0].PackVoltageV, 0.0
	for _, s := range steps {
		if s.PackVoltageV < minV {
			minV = s.PackVoltageV
		}
		if s.PackVoltageV > maxV {
			maxV = s.PackVoltageV
		}
		sumV += s.PackVoltageV
	}

	fmt.Println("=== Pack Voltage Summary ===")
	fmt.Printf("  Steps: %d\n", len(steps))
	fmt.Printf("  Min voltage: %.2f V\n", minV)
	fmt.Printf("  Max voltage: %.2f V\n", maxV)
	fmt.Printf("  Avg voltage: %.2f V\n", sumV/float64(len(steps)))
	fmt.Println()
}

func printThresholdExposure(steps []replay.Step, underV, overV float64) {
	var underHours, overHours float64
	for i, s := range steps {
		dtHour := 1.0
		if i+1 < len(steps) {
			dtHour = steps[i+1].Timestamp.Sub(s.Timestamp).Hours()
		}
		if underV > 0 && s.PackVoltageV < underV {
			underHours += dtHour
		}
		if overV > 0 && s.PackVoltageV > overV {
			overHours += dtHour
		}
	}

	fmt.Println("=== Threshold Exposure ===")
	if underV > 0 {
		fmt.Printf("  Time below %.2f V: %.1f h\n", underV, underHours)
	}
	if overV > 0 {
		fmt.Printf("  Time above %.2f V: %.1f h\n", overV, overHours)
	}
	fmt.Println()
}

// printSOCVoltageBuckets reports the average pack voltage while discharging,
// bucketed by 10%-wide SoC bands, the same decile-bucket idiom the old
// energy-bucket model used for its SoC histograms.
func printSOCVoltageBuckets(steps []replay.Step) {
	sumV := make(map[int]float64)
	count := make(map[int]int)

	for _, s := range steps {
		if s.CurrentA <= 0 {
			continue // only discharge steps show meaningful sag
		}
		bucket := int(s.SOCPercent/10) * 10
		sumV[bucket] += s.PackVoltageV
		count[bucket]++
	}

	if len(count) == 0 {
		return
	}

	buckets := make([]int, 0, len(count))
	for b := range count {
		buckets = append(buckets, b)
	}
	sort.Ints(buckets)

	fmt.Println("=== Discharge Voltage vs SoC ===")
	for _, b := range buckets {
		fmt.Printf("  %3d-%3d%%: %.2f V avg (%d steps)\n", b, b+10, sumV[b]/float64(count[b]), count[b])
	}
	fmt.Println()
}

func writeTraceCSV(steps []replay.Step, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "current_a", "pack_voltage_v", "soc_percent", "temperature_k"}); err != nil {
		return err
	}
	for _, s := range steps {
		row := []string{
			s.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			fmt.Sprintf("%.3f", s.CurrentA),
			fmt.Sprintf("%.3f", s.PackVoltageV),
			fmt.Sprintf("%.2f", s.SOCPercent),
			fmt.Sprintf("%.2f", s.TemperatureK),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
