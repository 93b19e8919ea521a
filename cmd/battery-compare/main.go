package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"battery_storage_simulator/internal/battery"
	"battery_storage_simulator/internal/controller"
	"battery_storage_simulator/internal/replay"
)

type result struct {
	capacity float64
	maxPower float64
	summary  replay.Summary
}

func main() {
	inputDir := flag.String("input-dir", "input", "directory containing CSV data files")
	cRate := flag.Float64("max-power-rate", 0.5, "C-rate for max charge/discharge power")
	floor := flag.Float64("discharge-floor", 10, "minimum SoC percent")
	ceiling := flag.Float64("charge-ceiling", 100, "maximum SoC percent")
	capsFlag := flag.String("capacities", "5,7.5,10,12.5,15,20,25,30,40,50", "comma-separated battery capacities in kWh")
	ambientC := flag.Float64("ambient-c", 20, "fixed ambient temperature for the thermal sub-model (Celsius)")
	flag.Parse()

	capacities, err := parseCapacities(*capsFlag)
	if err != nil {
		log.Fatalf("Invalid capacities %q: %v", *capsFlag, err)
	}
	sort.Float64s(capacities)

	series, err := replay.LoadNetDemand(*inputDir)
	if err != nil {
		log.Fatalf("Loading input data: %v", err)
	}
	if len(series) == 0 {
		log.Fatal("No grid_power readings found under input directory")
	}
	ambientK := *ambientC + 273.15

	results := make([]result, 0, len(capacities))
	for _, cap := range capacities {
		maxPower := cap * *cRate * 1000

		batParams, ctrlParams, err := replay.Defaults(cap, maxPower, *floor, *ceiling)
		if err != nil {
			log.Fatalf("Building params for %.1f kWh: %v", cap, err)
		}
		bat, err := battery.New(batParams)
		if err != nil {
			log.Fatalf("Constructing battery for %.1f kWh: %v", cap, err)
		}
		ctrl := controller.New(ctrlParams, bat)

		summary, _ := replay.Run(ctrl, bat, series, ambientK, false)
		results = append(results, result{capacity: cap, maxPower: maxPower, summary: summary})
		fmt.Fprintf(os.Stderr, "  %.1f kWh done\n", cap)
	}

	printTable(results, *floor, *ceiling, *cRate, series)
}

func printTable(results []result, floor, ceiling, cRate float64, series []replay.Reading) {
	if len(results) == 0 {
		return
	}

	days := series[len(series)-1].Timestamp.Sub(series[0].Timestamp).Hours() / 24

	fmt.Println()
	fmt.Println("Battery Size Comparison")
	fmt.Printf("  Discharge floor: %.0f%%, Charge ceiling: %.0f%%, C-rate: %.1f\n", floor, ceiling, cRate)
	fmt.Printf("  Data: %s to %s (%.0f days)\n",
		series[0].Timestamp.Format("2006-01-02"), series[len(series)-1].Timestamp.Format("2006-01-02"), days)
	fmt.Println()

	fmt.Printf(" %8s │ %9s │ %11s │ %11s │ %6s │ %8s │ %13s\n",
		"Capacity", "Max Power", "Grid Import", "Grid Export", "Cycles", "Marginal", "Rel. Capacity")
	fmt.Printf("──────────┼───────────┼─────────────┼─────────────┼────────┼──────────┼───────────────\n")

	baselineImportKWh := 0.0
	for i, r := range series {
		if r.DemandW <= 0 {
			continue
		}
		dtHour := 1.0
		if i+1 < len(series) {
			dtHour = series[i+1].Timestamp.Sub(r.Timestamp).Hours()
		}
		baselineImportKWh += r.DemandW * dtHour / 1000
	}

	for i, r := range results {
		savings := baselineImportKWh - r.summary.GridImportKWh

		marginal := "-"
		if i > 0 {
			prev := results[i-1]
			prevSavings := baselineImportKWh - prev.summary.GridImportKWh
			dCap := r.capacity - prev.capacity
			if dCap > 0 {
				m := (savings - prevSavings) / dCap
				marginal = fmt.Sprintf("%.1f", m)
			}
		}

		fmt.Printf(" %5.1f kWh │ %5.1f kW  │ %8.1f kWh │ %8.1f kWh │ %6.1f │ %8s │ %11.1f%%\n",
			r.capacity,
			r.maxPower/1000,
			r.summary.GridImportKWh,
			r.summary.GridExportKWh,
			r.summary.Cycles,
			marginal,
			r.summary.RelativeCapacityPercent,
		)
	}
	fmt.Println()
}

func parseCapacities(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	caps := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", p, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("capacity must be positive, got %v", v)
		}
		caps = append(caps, v)
	}
	if len(caps) == 0 {
		return nil, fmt.Errorf("no capacities specified")
	}
	return caps, nil
}
