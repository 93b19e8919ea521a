package battery

import "math"

// Battery is the C9 composite driver: it owns one instance of each
// sub-model and advances them together once per simulation step, coupling
// thermal derate and capacity clamping through a small bounded iteration
// and then running voltage, lifetime and losses off the converged state.
type Battery struct {
	params Params

	capacity Capacity
	voltage  Voltage
	thermal  *Thermal
	lifetime *Lifetime
	losses   *Losses

	totalThroughputAh float64
	halfCycles        int
}

// New constructs a Battery from a fully validated Params bundle.
func New(p Params) (*Battery, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	cap, err := NewCapacity(p.Capacity)
	if err != nil {
		return nil, err
	}
	volt, err := NewVoltage(p.Voltage)
	if err != nil {
		return nil, err
	}
	therm, err := NewThermal(p.Thermal)
	if err != nil {
		return nil, err
	}
	life, err := NewLifetime(p.Lifetime)
	if err != nil {
		return nil, err
	}
	loss, err := NewLosses(p.Losses)
	if err != nil {
		return nil, err
	}
	return &Battery{
		params:   p,
		capacity: cap,
		voltage:  volt,
		thermal:  therm,
		lifetime: life,
		losses:   loss,
	}, nil
}

// StepResult is the full per-step snapshot handed back to the caller
// (typically the charge controller) after coupling converges.
type StepResult struct {
	CurrentA                float64
	CellVoltageV            float64
	PackVoltageV            float64
	SOCPercent              float64
	DODPercent              float64
	TemperatureK            float64
	RelativeCapacityPercent float64
	Replacements            int
	LossWatts               float64
}

// Step advances every sub-model by one step of length dtHour given the
// requested battery (pack) current (positive discharge, negative charge), the
// ambient temperature for this step, and the lifetime-relative hour index
// used to key the calendar model and loss timeseries. dtHour is caller-
// supplied rather than fixed from Params.Time so callers driven by
// irregular real-world sample intervals can reuse the same core.
//
// Thermal derate and capacity clamping are coupled through a fixed-point
// iteration bounded at maxCoupleIterations: each pass restores the thermal
// and capacity state saved at the start of the step, re-derives the
// thermal capacity derate from the present current guess, reapplies it to
// the capacity model, and checks whether the resulting clamped current has
// settled. Most steps converge in one or two passes since the clamp only
// engages near the SOC limits.
func (b *Battery) Step(iRequested, tRoomK, dtHour float64, lifetimeHourIdx int) StepResult {
	dt := dtHour

	thermSnap := *b.thermal
	restoreCap := func() {}
	switch c := b.capacity.(type) {
	case *lithiumIonCapacity:
		snap := *c
		restoreCap = func() { *c = snap }
	case *kibamCapacity:
		snap := *c
		restoreCap = func() { *c = snap }
	}

	iGuess := iRequested
	for iter := 0; iter < maxCoupleIterations; iter++ {
		if iter > 0 {
			*b.thermal = thermSnap
			restoreCap()
		}
		b.thermal.Step(iGuess, tRoomK, dt)
		capPercent := b.thermal.CapacityPercent()
		b.capacity.UpdateCapacityForThermal(capPercent)

		iActual := b.capacity.UpdateCapacity(iGuess, dt)
		converged := math.Abs(iActual-iGuess) <= tolerance*math.Max(1, math.Abs(iGuess))
		iGuess = iActual
		if converged {
			break
		}
	}

	capState := b.capacity.State()
	b.totalThroughputAh += math.Abs(capState.I) * dt
	if capState.ChargeMode != capState.PrevMode && capState.ChargeMode != ModeNoCharge {
		b.halfCycles++
	}

	relCap := b.lifetime.Step(capState, b.thermal.TemperatureK(), lifetimeHourIdx)
	b.capacity.UpdateCapacityForLifetime(relCap)

	cellV := b.voltage.UpdateVoltage(b.capacity.State(), dt)

	month := monthFromHourOfYear(lifetimeHourIdx % 8760)
	lossW := b.losses.LossWatts(capState.ChargeMode, month, lifetimeHourIdx%8760)

	return StepResult{
		CurrentA:                capState.I,
		CellVoltageV:            cellV,
		PackVoltageV:            b.voltage.PackVoltage(),
		SOCPercent:              capState.SOC,
		DODPercent:              capState.DOD,
		TemperatureK:            b.thermal.TemperatureK(),
		RelativeCapacityPercent: relCap,
		Replacements:            b.lifetime.Replacements(),
		LossWatts:               lossW,
	}
}

// Replace restores relative capacity and the capacity model's tank/bucket
// state by the given percent, recording a battery replacement event.
func (b *Battery) Replace(percent float64) {
	b.capacity.Replace(percent)
	b.lifetime.Replace(percent)
}

// TotalThroughputAh returns the cumulative absolute current-time integral
// across every step, in ampere-hours.
func (b *Battery) TotalThroughputAh() float64 { return b.totalThroughputAh }

// HalfCycles returns the count of charge/discharge mode transitions seen
// so far (two half-cycles make one full cycle).
func (b *Battery) HalfCycles() int { return b.halfCycles }

// EstimateCycleDamage reports the relative-capacity loss attributable to
// cycling alone, independent of calendar fade.
func (b *Battery) EstimateCycleDamage() float64 { return b.lifetime.EstimateCycleDamage() }

// SOCPercent returns the present state of charge without advancing state.
func (b *Battery) SOCPercent() float64 { return b.capacity.State().SOC }

// ChargeMode returns the present charge/discharge/idle mode.
func (b *Battery) ChargeMode() ChargeMode { return b.capacity.State().ChargeMode }

// PackVoltageV returns the present pack terminal voltage without advancing
// state.
func (b *Battery) PackVoltageV() float64 { return b.voltage.PackVoltage() }

// NominalVoltageV returns the pack's nominal voltage, used by the charge
// controller to convert a requested power into a requested current before
// the first step has produced a measured voltage.
func (b *Battery) NominalVoltageV() float64 {
	ns := float64(b.params.Voltage.Ns)
	if b.params.Voltage.Choice == VoltageTable {
		return b.params.Voltage.VNomDefault * ns
	}
	if b.params.Capacity.Chemistry == ChemVanadiumRedox {
		return b.params.Voltage.VNomDefault * ns
	}
	return b.params.Voltage.VNom * ns
}

// QmaxThermalAh returns the present thermally-derated maximum capacity, used
// by the controller's SOC-floor/ceiling backoff.
func (b *Battery) QmaxThermalAh() float64 { return b.capacity.State().QmaxThermal }

// cumulative days-in-month at a non-leap year boundary, used only to map
// an hour-of-year index onto a calendar month for monthly loss tables.
var cumulativeDaysInMonth = [13]int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334, 365}

func monthFromHourOfYear(hourOfYear int) int {
	dayOfYear := hourOfYear / 24
	for m := 0; m < 12; m++ {
		if dayOfYear < cumulativeDaysInMonth[m+1] {
			return m
		}
	}
	return 11
}
