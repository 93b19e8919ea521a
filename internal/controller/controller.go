// Package controller implements the C11 charge controller: the dispatch
// layer that turns a requested battery power into a requested current,
// enforces SOC, current and power limits, guards against rapid mode
// switching, and hands the converged current to the battery physics core.
package controller

import (
	"math"

	"battery_storage_simulator/internal/battery"
)

// Restriction selects which limits the controller enforces.
type Restriction int

const (
	RestrictNone Restriction = iota
	RestrictCurrent
	RestrictPower
	RestrictBoth
)

// Connection selects whether power limits are interpreted DC-side or
// AC-side of the battery's own inverter.
type Connection int

const (
	ConnectionDC Connection = iota
	ConnectionAC
)

const (
	tolerance           = 1e-3
	lowTolerance        = 1e-2
	constraintCount     = 10
	minuteToHour        = 1.0 / 60.0
)

// Params is the immutable charge-controller parameter bundle.
type Params struct {
	Restriction Restriction
	Connection  Connection

	CurrentChargeMaxA    float64
	CurrentDischargeMaxA float64

	PowerChargeMaxKWDC    float64
	PowerDischargeMaxKWDC float64
	PowerChargeMaxKWAC    float64
	PowerDischargeMaxKWAC float64

	ACDCEfficiencyPercent float64 // bidirectional inverter AC->DC
	DCACEfficiencyPercent float64 // bidirectional inverter DC->AC

	SOCMin float64
	SOCMax float64

	MinimumModeTimeMinutes float64
}

// Controller drives one Battery through SOC gating, switch-dwell gating,
// and bounded current/power constraint iteration each dispatch call.
type Controller struct {
	params  Params
	battery *battery.Battery

	mode          battery.ChargeMode
	timeAtModeMin float64
}

// New constructs a Controller bound to an already-constructed Battery.
func New(p Params, bat *battery.Battery) *Controller {
	return &Controller{params: p, battery: bat, mode: bat.ChargeMode()}
}

// Dispatch converts a requested DC power (kW, positive discharge, negative
// charge) into a current, applies the SOC/switch/current/power gates in
// the original's precedence order, and runs the battery for one step.
func (c *Controller) Dispatch(requestedPowerKWDC, tRoomK float64, lifetimeHourIdx int, dtHour float64) battery.StepResult {
	powerDC := requestedPowerKWDC

	c.socController(&powerDC)
	c.switchController(&powerDC, dtHour)

	i := c.currentController(powerDC)
	c.restrictCurrent(&i)

	for count := 0; count < constraintCount; count++ {
		if !c.checkConstraints(&i, count) {
			break
		}
	}

	return c.battery.Step(i, tRoomK, dtHour, lifetimeHourIdx)
}

// socController zeros the requested power outright once the battery has
// reached its SOC floor (on discharge) or ceiling (on charge), the
// cheapest possible gate since it needs no iteration.
func (c *Controller) socController(powerDC *float64) {
	soc := c.battery.SOCPercent()
	if *powerDC > 0 && soc <= c.params.SOCMin+tolerance {
		*powerDC = 0
	} else if *powerDC < 0 && soc >= c.params.SOCMax-tolerance {
		*powerDC = 0
	}
}

// switchController guards against rapid charge/discharge flapping: a mode
// change within MinimumModeTimeMinutes of the last one is suppressed (the
// requested power is zeroed) and the dwell clock keeps running; the mode
// itself is only relatched once the dwell period has actually elapsed,
// rather than immediately on the blocked switch.
func (c *Controller) switchController(powerDC *float64, dtHour float64) {
	var target battery.ChargeMode
	switch {
	case *powerDC < 0:
		target = battery.ModeCharge
	case *powerDC > 0:
		target = battery.ModeDischarge
	default:
		target = battery.ModeNoCharge
	}

	dtMin := dtHour / minuteToHour

	if target != c.mode {
		if c.timeAtModeMin <= c.params.MinimumModeTimeMinutes {
			*powerDC = 0
			c.timeAtModeMin += dtMin
			return
		}
		c.mode = target
		c.timeAtModeMin = 0
		return
	}
	c.timeAtModeMin += dtMin
}

// currentController converts the requested DC power into a requested
// current using the pack's nominal voltage, since the actual terminal
// voltage for this step isn't known until the battery model runs.
func (c *Controller) currentController(powerDC float64) float64 {
	vNom := c.battery.NominalVoltageV()
	if vNom <= 0 {
		return 0
	}
	return 1000 * powerDC / vNom
}

// restrictCurrent clamps the requested current to the configured charge/
// discharge current limits. Returns true if the current was changed.
func (c *Controller) restrictCurrent(i *float64) bool {
	if c.params.Restriction != RestrictCurrent && c.params.Restriction != RestrictBoth {
		return false
	}
	if *i < 0 {
		if math.Abs(*i) > c.params.CurrentChargeMaxA {
			*i = -c.params.CurrentChargeMaxA
			return true
		}
		return false
	}
	if *i > c.params.CurrentDischargeMaxA {
		*i = c.params.CurrentDischargeMaxA
		return true
	}
	return false
}

// restrictPower clamps the requested current so that the implied DC (and,
// for AC-connected systems, AC) power stays within the configured limits.
// It estimates the present power using the battery's last known pack
// voltage rather than re-running the physics core, matching the
// controller's role as a pre-dispatch gate.
func (c *Controller) restrictPower(i *float64) bool {
	if c.params.Restriction != RestrictPower && c.params.Restriction != RestrictBoth {
		return false
	}
	v := c.battery.PackVoltageV()
	if v <= 0 {
		v = c.battery.NominalVoltageV()
	}
	powerKWDC := *i * v / 1000
	powerKWAC := c.toAC(powerKWDC)

	if powerKWDC < 0 {
		if math.Abs(powerKWDC) > c.params.PowerChargeMaxKWDC*(1+lowTolerance) {
			return c.scaleDown(i, powerKWDC, c.params.PowerChargeMaxKWDC)
		}
		if math.Abs(powerKWAC) > c.params.PowerChargeMaxKWAC*(1+lowTolerance) {
			return c.scaleDown(i, powerKWDC, c.fromAC(c.params.PowerChargeMaxKWAC))
		}
		return false
	}

	if math.Abs(powerKWDC) > c.params.PowerDischargeMaxKWDC*(1+lowTolerance) {
		return c.scaleDown(i, powerKWDC, c.params.PowerDischargeMaxKWDC)
	}
	if math.Abs(powerKWAC) > c.params.PowerDischargeMaxKWAC*(1+lowTolerance) {
		return c.scaleDown(i, powerKWDC, c.fromAC(c.params.PowerDischargeMaxKWAC))
	}
	return false
}

func (c *Controller) scaleDown(i *float64, powerKWDC, limitKWDC float64) bool {
	if powerKWDC == 0 {
		return false
	}
	dP := math.Abs(math.Abs(powerKWDC) - limitKWDC)
	*i -= (dP / math.Abs(powerKWDC)) * (*i)
	return true
}

func (c *Controller) toAC(powerKWDC float64) float64 {
	if powerKWDC < 0 {
		return powerKWDC * c.params.ACDCEfficiencyPercent / 100
	}
	return powerKWDC * c.params.DCACEfficiencyPercent / 100
}

func (c *Controller) fromAC(powerKWAC float64) float64 {
	if c.params.DCACEfficiencyPercent <= 0 {
		return powerKWAC
	}
	return powerKWAC / (c.params.DCACEfficiencyPercent / 100)
}

// checkConstraints is the bounded constraint-iteration loop: current and
// power restriction take precedence, then SOC-floor/ceiling backoff, and
// finally a flip-flop guard that zeroes current outright rather than let
// it reverse sign between iterations.
func (c *Controller) checkConstraints(i *float64, count int) bool {
	iInitial := *i

	currentIterate := c.restrictCurrent(i)
	powerIterate := false
	backoff := false

	if !currentIterate {
		powerIterate = c.restrictPower(i)
	}

	if !currentIterate && !powerIterate {
		soc := c.battery.SOCPercent()
		qmax := c.battery.QmaxThermalAh()
		switch {
		case *i > 0 && soc < c.params.SOCMin-tolerance:
			dQ := 0.01 * (c.params.SOCMin - soc) * qmax
			*i -= dQ
			backoff = true
		case *i < 0 && soc > c.params.SOCMax+tolerance:
			dQ := 0.01 * (soc - c.params.SOCMax) * qmax
			*i += dQ
			backoff = true
		}
	}

	if !currentIterate {
		currentIterate = c.restrictCurrent(i)
	}
	if !powerIterate {
		powerIterate = c.restrictPower(i)
	}

	iterate := backoff || currentIterate || powerIterate
	if count > constraintCount {
		iterate = false
	}

	if math.Abs(*i) > tolerance && iInitial != 0 && (iInitial/(*i)) < 0 {
		*i = 0
		iterate = false
	}

	return iterate
}
