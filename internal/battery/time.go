package battery

// TimeParams bundles the simulation's time discretization. Immutable once
// constructed.
type TimeParams struct {
	DtHour        float64 // hours per step, e.g. 1.0 or 0.25
	StepsPerHour  int     // 1/DtHour, kept explicit to avoid repeated division
	Years         int     // lifetime simulation length
	LifetimeMode  bool    // whether lifetime degradation runs across Years
}

// NewTimeParams validates and constructs a TimeParams bundle.
func NewTimeParams(dtHour float64, years int, lifetimeMode bool) (TimeParams, error) {
	if dtHour <= 0 || dtHour > 1 {
		return TimeParams{}, invalidParam("dt_hour", "must be in (0, 1], got %v", dtHour)
	}
	stepsPerHour := int(1.0/dtHour + 0.5)
	if years < 1 {
		return TimeParams{}, invalidParam("years", "must be >= 1, got %d", years)
	}
	return TimeParams{DtHour: dtHour, StepsPerHour: stepsPerHour, Years: years, LifetimeMode: lifetimeMode}, nil
}

// Cursor is the per-simulation time index (C1). It tracks year/hour/step
// and exposes both lifetime-relative and year-one-relative linear indices,
// since ambient series (temperature, losses, prices) may be supplied either
// as a single year (8760 hours) repeated across the lifetime, or as a full
// lifetime series.
type Cursor struct {
	params TimeParams

	year int
	hour int // hour of year, 0..8759
	step int // sub-hour step, 0..StepsPerHour-1
}

// NewCursor starts a cursor at year 0, hour 0, step 0.
func NewCursor(p TimeParams) *Cursor {
	return &Cursor{params: p}
}

// AdvanceOneStep moves the cursor forward by one simulation step, rolling
// over step -> hour -> year as needed. Leap days are never represented:
// callers feeding 8784-hour (leap) input arrays must have already
// truncated them to 8760*k entries.
func (c *Cursor) AdvanceOneStep() {
	c.step++
	if c.step >= c.params.StepsPerHour {
		c.step = 0
		c.hour++
		if c.hour >= 8760 {
			c.hour = 0
			c.year++
		}
	}
}

// StepOfHour returns the current sub-hour step index.
func (c *Cursor) StepOfHour() int { return c.step }

// HourOfYear returns the current hour-of-year index, 0..8759.
func (c *Cursor) HourOfYear() int { return c.hour }

// Year returns the current lifetime year, 0-based.
func (c *Cursor) Year() int { return c.year }

// YearStepIndex returns the linear index into a single-year (8760*StepsPerHour)
// series.
func (c *Cursor) YearStepIndex() int {
	return c.hour*c.params.StepsPerHour + c.step
}

// HourLifetime returns the lifetime-relative hour index (ignoring sub-hour
// step), i.e. year*8760 + hour.
func (c *Cursor) HourLifetime() int {
	return c.year*8760 + c.hour
}

// LifetimeStepIndex returns the fully lifetime-relative linear step index:
// ((year*8760)+hour)*StepsPerHour + step.
func (c *Cursor) LifetimeStepIndex() int {
	return c.HourLifetime()*c.params.StepsPerHour + c.step
}

// YearOneIndex maps a lifetime step index back onto a single-year series by
// reducing modulo the number of steps in one year. External ambient series
// (ambient temperature, loss tables) that are supplied as a single year are
// indexed this way regardless of how many lifetime years are simulated.
func YearOneIndex(stepsPerHour, lifetimeStepIndex int) int {
	stepsPerYear := 8760 * stepsPerHour
	if stepsPerYear <= 0 {
		return 0
	}
	return lifetimeStepIndex % stepsPerYear
}

// TruncateLeapSeries drops the 24 extra hourly entries a leap-year (8784
// hour) input array would otherwise contribute, returning an 8760*k slice.
// stepsPerHour entries exist per hour in the input.
func TruncateLeapSeries(series []float64, stepsPerHour int) []float64 {
	yearLen := 8760 * stepsPerHour
	leapLen := 8784 * stepsPerHour
	if len(series) == 0 || len(series) < leapLen || len(series)%leapLen != 0 {
		return series
	}
	years := len(series) / leapLen
	out := make([]float64, 0, yearLen*years)
	for y := 0; y < years; y++ {
		start := y * leapLen
		out = append(out, series[start:start+yearLen]...)
	}
	return out
}
