package battery

import (
	"math"
	"sort"
)

// Voltage is the C3 voltage sub-model interface. All variants return
// per-cell voltage from UpdateVoltage/CellVoltage, and PackVoltage returns
// that cell voltage multiplied by Ns. Np is not applied: the capacity
// state's charge and current are used as given, not divided per string.
type Voltage interface {
	UpdateVoltage(cap CapacityState, dtHour float64) (cellVoltage float64)
	CellVoltage() float64
	PackVoltage() float64
}

// NewVoltage constructs the voltage variant named by p.Choice/p.Chemistry.
func NewVoltage(p VoltageParams) (Voltage, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.Choice == VoltageTable {
		return newVoltageTable(p), nil
	}
	if p.Chemistry == ChemVanadiumRedox {
		return newVoltageVanadiumRedox(p), nil
	}
	return newVoltageDynamic(p), nil
}

// --- dynamic model: Shepard / Tremblay-Dessaint hybrid ---------------------

type voltageDynamic struct {
	params VoltageParams
	cell   float64

	a float64 // [V] exponential voltage drop
	b float64 // [1/Ah] exponential capacity constant
	e0 float64
	k  float64 // [V] polarization constant
	iRef float64
}

func newVoltageDynamic(p VoltageParams) *voltageDynamic {
	v := &voltageDynamic{params: p, cell: p.VFull}
	v.a = p.VFull - p.VExp
	v.b = 3.0 / p.QExp
	v.iRef = p.CRate * p.QNom
	v.k = ((p.VFull - p.VNom + v.a*(math.Exp(-v.b*p.QNom)-1)) * (p.QFull - p.QNom)) / p.QNom
	if v.k < 0 {
		v.k = 0
	}
	v.e0 = p.VFull + v.k + p.Resistance*v.iRef - v.a
	return v
}

// UpdateVoltage evaluates the Tremblay-Dessaint hybrid model: an open
// circuit term minus a polarization term (scaled by the fraction of
// capacity already withdrawn), plus the exponential-zone term, minus the
// instantaneous ohmic drop.
func (v *voltageDynamic) UpdateVoltage(cap CapacityState, dtHour float64) float64 {
	qUsed := v.params.QFull - cap.Q0*(v.params.QFull/v.params.QNom)
	if qUsed < 0 {
		qUsed = 0
	}
	it := qUsed
	i := cap.I

	polarization := v.k * v.params.QFull / math.Max(v.params.QFull-it, 1e-6)
	exponential := v.a * math.Exp(-v.b*it)

	vCell := v.e0 - polarization*it/v.params.QFull - i*v.params.Resistance + exponential
	if math.IsNaN(vCell) || math.IsInf(vCell, 0) || vCell < 0 {
		vCell = 0.5 * v.params.VNom
	}
	if vCell > 1.25*v.params.VFull {
		vCell = v.params.VFull
	}
	v.cell = vCell
	return vCell
}

func (v *voltageDynamic) CellVoltage() float64 { return v.cell }
func (v *voltageDynamic) PackVoltage() float64 {
	return v.cell * float64(v.params.Ns)
}

// --- vanadium redox flow: Nernst equation ----------------------------------

const (
	molarGasConstant  = 8.314    // [J/(mol*K)]
	faradayConstant   = 96485.0  // [C/mol]
	vanadiumC0        = 1.38     // fit constant used with the Nernst log term
	vanadiumTempK     = 294.15   // [K] assumed electrolyte temperature
)

type voltageVanadiumRedox struct {
	params VoltageParams
	cell   float64
}

func newVoltageVanadiumRedox(p VoltageParams) *voltageVanadiumRedox {
	return &voltageVanadiumRedox{params: p, cell: p.VNomDefault}
}

// UpdateVoltage evaluates the Nernst-equation voltage for a vanadium redox
// flow cell: a nominal term plus a concentration term logarithmic in
// SOC/(1-SOC), minus the ohmic drop.
func (v *voltageVanadiumRedox) UpdateVoltage(cap CapacityState, dtHour float64) float64 {
	soc := cap.SOC / 100
	soc = math.Min(soc, 1-tolerance)
	soc = math.Max(soc, tolerance)

	nernst := (molarGasConstant * vanadiumTempK / faradayConstant) *
		math.Log(soc*soc/((1-soc)*(1-soc))) * vanadiumC0

	vCell := v.params.VNomDefault + nernst - cap.I*v.params.Resistance
	if math.IsNaN(vCell) || math.IsInf(vCell, 0) || vCell < 0 {
		vCell = 0.5 * v.params.VNomDefault
	}
	v.cell = vCell
	return vCell
}

func (v *voltageVanadiumRedox) CellVoltage() float64 { return v.cell }
func (v *voltageVanadiumRedox) PackVoltage() float64 {
	return v.cell * float64(v.params.Ns)
}

// --- table: DOD -> V lookup -------------------------------------------------

type voltageTable struct {
	params VoltageParams
	rows   []TablePoint
	cell   float64
}

func newVoltageTable(p VoltageParams) *voltageTable {
	rows := append([]TablePoint(nil), p.Table...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].X < rows[j].X })
	v := &voltageTable{params: p, rows: rows}
	if len(rows) > 0 {
		v.cell = rows[0].Y
	}
	return v
}

// UpdateVoltage interpolates cell voltage from the DOD-vs-V table. On
// discharge the interpolated value is clamped to be non-increasing versus
// the previous step, since real discharge curves never recover voltage
// mid-discharge; on charge no such clamp applies.
func (v *voltageTable) UpdateVoltage(cap CapacityState, dtHour float64) float64 {
	vNew := interpolateTable(v.rows, cap.DOD)
	if cap.ChargeMode == ModeDischarge && vNew > v.cell && v.cell > 0 {
		vNew = v.cell
	}
	v.cell = vNew
	return vNew
}

func (v *voltageTable) CellVoltage() float64 { return v.cell }
func (v *voltageTable) PackVoltage() float64 {
	return v.cell * float64(v.params.Ns)
}

// interpolateTable performs linear interpolation of a sorted (x, y) table,
// clamping to the boundary rows outside the table's domain.
func interpolateTable(rows []TablePoint, x float64) float64 {
	if len(rows) == 0 {
		return 0
	}
	if x <= rows[0].X {
		return rows[0].Y
	}
	last := rows[len(rows)-1]
	if x >= last.X {
		return last.Y
	}
	idx := sort.Search(len(rows), func(i int) bool { return rows[i].X >= x })
	lo, hi := rows[idx-1], rows[idx]
	if hi.X == lo.X {
		return lo.Y
	}
	frac := (x - lo.X) / (hi.X - lo.X)
	return lo.Y + frac*(hi.Y-lo.Y)
}
