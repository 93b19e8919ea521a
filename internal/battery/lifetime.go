package battery

import (
	"math"
	"sort"
)

// Lifetime is the composite C5-C7 lifetime sub-model: a rainflow cycle
// counter, a calendar-fade model, and the combination rule that derives an
// overall relative capacity from both.
type Lifetime struct {
	params LifetimeParams

	cycle    *cycleCounter
	calendar *calendarLifetime

	relativeCapacity float64 // [%] non-increasing except across Replace
	replacements     int
	lastDayAge       int
	haveDayAge       bool
}

// NewLifetime constructs the composite lifetime sub-model.
func NewLifetime(p LifetimeParams) (*Lifetime, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	l := &Lifetime{
		params:           p,
		cycle:            newCycleCounter(p.CycleMatrix),
		calendar:         newCalendarLifetime(p),
		relativeCapacity: 100,
	}
	return l, nil
}

// RelativeCapacity returns the present lifetime-derated capacity percent.
func (l *Lifetime) RelativeCapacity() float64 { return l.relativeCapacity }

// Replacements returns how many times Replace has been called.
func (l *Lifetime) Replacements() int { return l.replacements }

// Step advances the lifetime model by one simulation step. The cycle model
// only runs when the battery's charge mode just changed (a half-cycle
// boundary); the calendar model only runs once a lifetime-hour index
// crosses into a new day, and only when that index is strictly greater
// than the last one processed, so repeated calls within the same hour at
// sub-hourly resolution cannot double-advance the day counter.
func (l *Lifetime) Step(cap CapacityState, tempK float64, lifetimeHourIdx int) float64 {
	if cap.ChargeMode != cap.PrevMode {
		if cycleQ, ok := l.cycle.update(cap.DOD); ok {
			l.relativeCapacity = math.Min(l.relativeCapacity, cycleQ)
		}
	}

	dayAge := lifetimeHourIdx / hoursPerDay
	if !l.haveDayAge || dayAge > l.lastDayAge {
		l.haveDayAge = true
		l.lastDayAge = dayAge
		calQ := l.calendar.step(dayAge, tempK, cap.SOC)
		l.relativeCapacity = math.Min(l.relativeCapacity, calQ)
	}

	return l.relativeCapacity
}

// Replace restores relative capacity by percent (capped at 100), modeling a
// partial or full battery replacement.
func (l *Lifetime) Replace(percent float64) {
	l.relativeCapacity = math.Min(100, l.relativeCapacity+percent)
	l.replacements++
}

// EstimateCycleDamage reports the relative-capacity loss attributable to
// cycling alone, independent of calendar fade: 100 minus the cycle
// counter's own worst-DOD-bin estimate.
func (l *Lifetime) EstimateCycleDamage() float64 {
	return 100 - l.cycle.worstRelativeCapacity()
}

// --- C5/C6: rainflow cycle counter -----------------------------------------

// cycleCounter implements a streaming, single-pass rainflow cycle count
// using the classic four-point peak-stack method, and derives relative
// capacity from the accumulated equivalent full cycles at each distinct
// depth-of-discharge level via bilinear interpolation of a cycles-to-
// failure matrix.
type cycleCounter struct {
	matrix []CycleMatrixRow

	peaks    []float64
	lastDOD  float64
	lastDir  int // -1 falling, +1 rising, 0 unknown
	hasPrior bool

	// cyclesAtDOD accumulates equivalent full cycles (range/100) per
	// distinct DOD bin encountered, rounded to the nearest integer percent
	// so nearby DOD samples share a bin.
	cyclesAtDOD map[int]float64
}

func newCycleCounter(matrix []CycleMatrixRow) *cycleCounter {
	sorted := append([]CycleMatrixRow(nil), matrix...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].DOD != sorted[j].DOD {
			return sorted[i].DOD < sorted[j].DOD
		}
		return sorted[i].Cycles < sorted[j].Cycles
	})
	return &cycleCounter{matrix: sorted, cyclesAtDOD: make(map[int]float64)}
}

// update feeds one new DOD sample into the rainflow stack. It returns
// (relativeCapacity, true) whenever at least one cycle range closed this
// call, i.e. there is a fresh damage estimate to fold in.
func (c *cycleCounter) update(dod float64) (float64, bool) {
	dir := 0
	if c.hasPrior {
		switch {
		case dod > c.lastDOD:
			dir = 1
		case dod < c.lastDOD:
			dir = -1
		default:
			dir = c.lastDir
		}
	}

	isExtremum := !c.hasPrior || dir != c.lastDir
	c.lastDOD, c.lastDir, c.hasPrior = dod, dir, true

	if !isExtremum {
		return 0, false
	}
	c.peaks = append(c.peaks, dod)

	closed := false
	for len(c.peaks) >= 4 {
		n := len(c.peaks)
		y := math.Abs(c.peaks[n-3] - c.peaks[n-4])
		x := math.Abs(c.peaks[n-2] - c.peaks[n-3])
		if x < y {
			break
		}
		meanDOD := (c.peaks[n-3] + c.peaks[n-4]) / 2
		c.recordRange(y, meanDOD)
		closed = true

		rest := append([]float64(nil), c.peaks[:n-4]...)
		rest = append(rest, c.peaks[n-1])
		c.peaks = rest
	}
	if !closed {
		return 0, false
	}
	return c.worstRelativeCapacity(), true
}

func (c *cycleCounter) recordRange(rangePct, meanDOD float64) {
	bin := int(math.Round(meanDOD))
	c.cyclesAtDOD[bin] += rangePct / 100.0
}

// worstRelativeCapacity returns the minimum (most damaged) relative
// capacity implied by any DOD bin's accumulated equivalent cycle count.
func (c *cycleCounter) worstRelativeCapacity() float64 {
	worst := 100.0
	for bin, cycles := range c.cyclesAtDOD {
		rc := bilinear(c.matrix, float64(bin), cycles)
		if rc < worst {
			worst = rc
		}
	}
	return worst
}

// bilinear interpolates relative capacity from a cycles-to-failure matrix
// over both its DOD and cycle-count axes: first bracket the two nearest
// DOD rows, interpolate each bracket along cycle count, then interpolate
// between the two DOD results.
func bilinear(matrix []CycleMatrixRow, dod, cycles float64) float64 {
	if len(matrix) == 0 {
		return 100
	}
	dods := uniqueDODs(matrix)
	loDOD, hiDOD, frac := bracketDOD(dods, dod)

	loRC := interpolateCyclesAtDOD(matrix, loDOD, cycles)
	if loDOD == hiDOD {
		return loRC
	}
	hiRC := interpolateCyclesAtDOD(matrix, hiDOD, cycles)
	return loRC + frac*(hiRC-loRC)
}

func uniqueDODs(matrix []CycleMatrixRow) []float64 {
	seen := map[float64]bool{}
	var out []float64
	for _, r := range matrix {
		if !seen[r.DOD] {
			seen[r.DOD] = true
			out = append(out, r.DOD)
		}
	}
	sort.Float64s(out)
	return out
}

func bracketDOD(dods []float64, dod float64) (lo, hi, frac float64) {
	if dod <= dods[0] {
		return dods[0], dods[0], 0
	}
	if dod >= dods[len(dods)-1] {
		last := dods[len(dods)-1]
		return last, last, 0
	}
	for i := 1; i < len(dods); i++ {
		if dod <= dods[i] {
			lo, hi = dods[i-1], dods[i]
			frac = (dod - lo) / (hi - lo)
			return
		}
	}
	last := dods[len(dods)-1]
	return last, last, 0
}

func interpolateCyclesAtDOD(matrix []CycleMatrixRow, dod, cycles float64) float64 {
	var rows []TablePoint
	for _, r := range matrix {
		if r.DOD == dod {
			rows = append(rows, TablePoint{X: r.Cycles, Y: r.RelativeCapacity})
		}
	}
	if len(rows) == 0 {
		return 100
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].X < rows[j].X })
	return interpolateTable(rows, cycles)
}

// --- C7: calendar fade -------------------------------------------------

type calendarLifetime struct {
	params LifetimeParams
	q      float64 // [%] fractional*100
}

func newCalendarLifetime(p LifetimeParams) *calendarLifetime {
	q := 100.0
	if p.CalendarChoice == CalendarModel {
		q = p.CalendarQ0 * 100
	}
	return &calendarLifetime{params: p, q: q}
}

// step advances the calendar model by one day boundary and returns the
// resulting relative capacity percent. dayAge is the lifetime day index;
// day 0 never fades (there is no elapsed time yet).
func (c *calendarLifetime) step(dayAge int, tempK, socPercent float64) float64 {
	switch c.params.CalendarChoice {
	case CalendarTable:
		c.q = interpolateTable(c.params.CalendarTable, float64(dayAge))
	case CalendarModel:
		if dayAge > 0 {
			c.q -= c.dqLithiumIon(dayAge, tempK, socPercent)
			if c.q < 0 {
				c.q = 0
			}
		}
	case CalendarNone:
		// capacity never fades from calendar aging
	}
	return c.q
}

// dqLithiumIon is the square-root-of-time Arrhenius fade increment for one
// day boundary: k_cal depends on temperature and SOC, and the fade
// contribution uses the derivative of sqrt(day_age) so only the running q
// need be tracked, not the full day history.
func (c *calendarLifetime) dqLithiumIon(dayAge int, tempK, socPercent float64) float64 {
	const refTempK = 296.15
	kcal := c.params.CalendarA *
		math.Exp(c.params.CalendarB*(1/tempK-1/refTempK)) *
		math.Exp(c.params.CalendarC*((socPercent/100)/tempK-1/refTempK))

	if dayAge <= 1 {
		return kcal * math.Sqrt(1)
	}
	return kcal * (math.Sqrt(float64(dayAge)) - math.Sqrt(float64(dayAge-1)))
}
