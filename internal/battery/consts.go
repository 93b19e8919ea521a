package battery

// Numerical tolerances shared across the physics core. Kept as package
// constants rather than runtime-configurable parameters.
const (
	// tolerance is the general floating-point comparison slack used when
	// checking SOC/current/power limits.
	tolerance = 1e-3

	// lowTolerance is a looser slack used to snap near-zero currents to
	// exactly zero and to bound power-limit overshoot checks.
	lowTolerance = 1e-2

	// thermalMaxK bounds the physically plausible battery temperature.
	thermalMaxK = 400.0

	// maxCoupleIterations bounds the thermal/capacity convergence loop in
	// the composite battery driver (C9).
	maxCoupleIterations = 5

	// constraintCount bounds the charge-controller constraint-checking
	// loop (C11).
	constraintCount = 10

	// hoursPerDay is used for day-boundary detection in the calendar
	// lifetime model.
	hoursPerDay = 24
)
