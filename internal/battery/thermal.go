package battery

import "math"

// Thermal is the C4 lumped-mass thermal sub-model: a single battery
// temperature driven by ohmic self-heating and convective loss to an
// ambient series, integrated once per step.
type Thermal struct {
	params ThermalParams
	area   float64

	tBattK float64
}

// NewThermal constructs the thermal sub-model, starting the battery at the
// first ambient temperature sample.
func NewThermal(p ThermalParams) (*Thermal, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Thermal{
		params: p,
		area:   p.surfaceArea(),
		tBattK: p.TRoomK[0],
	}, nil
}

// TemperatureK returns the battery's present lumped temperature.
func (t *Thermal) TemperatureK() float64 { return t.tBattK }

// f is the heat-balance derivative dT/dt = (Q_gen - Q_loss) / (m*cp), with
// Q_gen the ohmic self-heating of the present current and Q_loss the
// convective loss to ambient.
func (t *Thermal) f(tK, tRoomK, iAmp float64) float64 {
	qGen := iAmp * iAmp * t.params.Resistance
	qLoss := t.params.HWPerM2K * t.area * (tK - tRoomK)
	return (qGen - qLoss) / (t.params.MassKg * t.params.CpJPerKgK)
}

// Step advances the battery temperature by dtHour given the present
// current and the ambient temperature sample for this step. It tries the
// trapezoidal, RK4 and implicit-Euler integrators in order, falling back
// to the next when a candidate is not finite or leaves the physically
// plausible open range (0, thermalMaxK); if all three fail the temperature
// is left unchanged.
func (t *Thermal) Step(iAmp, tRoomK, dtHour float64) float64 {
	dtSeconds := dtHour * 3600

	if tNew, ok := t.trapezoidal(iAmp, tRoomK, dtSeconds); ok {
		t.tBattK = tNew
		return t.tBattK
	}
	if tNew, ok := t.rk4(iAmp, tRoomK, dtSeconds); ok {
		t.tBattK = tNew
		return t.tBattK
	}
	if tNew, ok := t.implicitEuler(iAmp, tRoomK, dtSeconds); ok {
		t.tBattK = tNew
		return t.tBattK
	}
	return t.tBattK
}

func (t *Thermal) trapezoidal(iAmp, tRoomK, dtSeconds float64) (float64, bool) {
	k1 := t.f(t.tBattK, tRoomK, iAmp)
	predictor := t.tBattK + dtSeconds*k1
	k2 := t.f(predictor, tRoomK, iAmp)
	tNew := t.tBattK + dtSeconds*0.5*(k1+k2)
	return tNew, plausibleTemp(tNew)
}

func (t *Thermal) rk4(iAmp, tRoomK, dtSeconds float64) (float64, bool) {
	h := dtSeconds
	k1 := t.f(t.tBattK, tRoomK, iAmp)
	k2 := t.f(t.tBattK+0.5*h*k1, tRoomK, iAmp)
	k3 := t.f(t.tBattK+0.5*h*k2, tRoomK, iAmp)
	k4 := t.f(t.tBattK+h*k3, tRoomK, iAmp)
	tNew := t.tBattK + (h/6.0)*(k1+2*k2+2*k3+k4)
	return tNew, plausibleTemp(tNew)
}

// implicitEuler solves the backward-Euler update in closed form: since f is
// linear in T, T_new = (T_old + h*(Qgen + hw*A*Troom)/(m*cp)) / (1 + h*hw*A/(m*cp)).
func (t *Thermal) implicitEuler(iAmp, tRoomK, dtSeconds float64) (float64, bool) {
	mc := t.params.MassKg * t.params.CpJPerKgK
	hwA := t.params.HWPerM2K * t.area
	qGen := iAmp * iAmp * t.params.Resistance

	num := t.tBattK + dtSeconds*(qGen+hwA*tRoomK)/mc
	den := 1 + dtSeconds*hwA/mc
	if den == 0 {
		return t.tBattK, false
	}
	tNew := num / den
	return tNew, plausibleTemp(tNew)
}

func plausibleTemp(tK float64) bool {
	return !math.IsNaN(tK) && !math.IsInf(tK, 0) && tK > 0 && tK < thermalMaxK
}

// CapacityPercent looks up the capacity derate percent for the battery's
// present temperature in the CapVsTemp table, falling back to 100% (no
// derate) when the temperature falls outside the table's domain.
func (t *Thermal) CapacityPercent() float64 {
	if len(t.params.CapVsTemp) == 0 {
		return 100
	}
	rows := t.params.CapVsTemp
	if t.tBattK < rows[0].X || t.tBattK > rows[len(rows)-1].X {
		return 100
	}
	return interpolateTable(rows, t.tBattK)
}
