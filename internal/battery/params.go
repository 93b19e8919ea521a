package battery

// Chemistry discriminates which capacity/voltage sub-model variants apply.
type Chemistry int

const (
	ChemLithiumIon Chemistry = iota
	ChemLeadAcid
	ChemVanadiumRedox
)

// VoltageChoice selects the voltage sub-model variant.
type VoltageChoice int

const (
	VoltageModel VoltageChoice = iota // Shepard-Tremblay dynamic model or vanadium Nernst model, by chemistry
	VoltageTable                      // DOD -> V lookup table
)

// CapacityParams is the immutable capacity-model parameter bundle.
type CapacityParams struct {
	Chemistry    Chemistry
	QmaxNominal  float64 // [Ah] nameplate maximum capacity
	SOCInit      float64 // [%] initial state of charge
	SOCMin       float64 // [%]
	SOCMax       float64 // [%]

	// Lead-acid / KiBaM reference-discharge parameters.
	LeadAcid KiBaMRefParams
}

// KiBaMRefParams holds the reference-discharge currents/capacities used to
// fit the KiBaM (c, k) rate constants at construction.
type KiBaMRefParams struct {
	Q1  float64 // [Ah] capacity at the 1-hour-ish reference discharge rate t1
	Q10 float64 // [Ah] capacity at the 10-hour discharge rate
	Q20 float64 // [Ah] capacity at the 20-hour discharge rate
	T1  float64 // [h] discharge rate used for Q1
}

func (p CapacityParams) validate() error {
	if p.QmaxNominal <= 0 {
		return invalidParam("qmax_nominal", "must be > 0, got %v", p.QmaxNominal)
	}
	if p.SOCInit < 0 || p.SOCInit > 100 {
		return invalidParam("soc_init", "must be in [0,100], got %v", p.SOCInit)
	}
	if p.SOCMin < 0 || p.SOCMax > 100 || p.SOCMin > p.SOCMax {
		return invalidParam("soc_min/soc_max", "must satisfy 0<=soc_min<=soc_max<=100, got [%v,%v]", p.SOCMin, p.SOCMax)
	}
	if p.Chemistry == ChemLeadAcid {
		if p.LeadAcid.Q20 <= 0 || p.LeadAcid.Q10 <= 0 || p.LeadAcid.Q1 <= 0 {
			return invalidParam("lead_acid", "q1, q10, q20 must all be > 0 for KiBaM")
		}
		if p.LeadAcid.T1 <= 0 {
			return invalidParam("lead_acid.t1", "must be > 0, got %v", p.LeadAcid.T1)
		}
	}
	return nil
}

// VoltageParams is the immutable voltage-model parameter bundle.
type VoltageParams struct {
	Chemistry Chemistry
	Choice    VoltageChoice

	VFull        float64 // [V] per-cell fully charged voltage
	VExp         float64 // [V] per-cell voltage at end of exponential region
	VNom         float64 // [V] per-cell nominal voltage
	VNomDefault  float64 // [V] fallback nominal voltage (table/vanadium variants)
	QFull        float64 // [Ah] per-cell capacity at full charge
	QExp         float64 // [Ah] per-cell capacity at end of exponential region
	QNom         float64 // [Ah] per-cell nominal capacity
	CRate        float64 // [1/h] discharge rate used to derive the reference current
	Resistance   float64 // [Ohm] internal resistance
	Ns           int     // series cells
	Np           int     // parallel strings

	// DOD -> V table, sorted ascending by DOD by NewVoltageTable.
	Table []TablePoint
}

// TablePoint is one (DOD%, V) row of a voltage-vs-DOD or calendar-fade table.
type TablePoint struct {
	X float64
	Y float64
}

func (p VoltageParams) validate() error {
	if p.Ns <= 0 {
		return invalidParam("n_series", "must be > 0, got %d", p.Ns)
	}
	if p.Np <= 0 {
		return invalidParam("n_strings", "must be > 0, got %d", p.Np)
	}
	if p.Resistance < 0 {
		return invalidParam("resistance", "must be >= 0, got %v", p.Resistance)
	}
	if p.Choice == VoltageTable {
		if len(p.Table) < 2 {
			return invalidParam("voltage_table", "must have >= 2 rows, got %d", len(p.Table))
		}
		return nil
	}
	if p.VFull <= 0 || p.VExp <= 0 || p.VNom <= 0 {
		return invalidParam("voltage", "Vfull, Vexp, Vnom must all be > 0")
	}
	if p.Chemistry != ChemVanadiumRedox {
		if p.QFull <= 0 || p.QExp <= 0 || p.QNom <= 0 {
			return invalidParam("voltage", "Qfull, Qexp, Qnom must all be > 0 for the dynamic model")
		}
		if p.CRate <= 0 {
			return invalidParam("c_rate", "must be > 0, got %v", p.CRate)
		}
	}
	return nil
}

// ThermalParams is the immutable thermal-model parameter bundle.
type ThermalParams struct {
	MassKg     float64 // [kg]
	LengthM    float64 // [m]
	WidthM     float64 // [m]
	HeightM    float64 // [m]
	CpJPerKgK  float64 // [J/(kg*K)] specific heat
	HWPerM2K   float64 // [W/(m^2*K)] convective heat-transfer coefficient
	Resistance float64 // [Ohm] internal resistance used for ohmic self-heating

	// CapVsTemp maps battery temperature (K) -> capacity derate (%).
	CapVsTemp []TablePoint

	// TRoomK is the ambient-temperature lifetime series, indexed by
	// YearOneIndex(lifetimeStepIndex) (K). Shared, read-only: the battery
	// never mutates this slice.
	TRoomK []float64
}

func (p ThermalParams) validate() error {
	if p.MassKg <= 0 {
		return invalidParam("mass_kg", "must be > 0, got %v", p.MassKg)
	}
	if p.CpJPerKgK <= 0 {
		return invalidParam("cp", "must be > 0, got %v", p.CpJPerKgK)
	}
	if p.LengthM <= 0 || p.WidthM <= 0 || p.HeightM <= 0 {
		return invalidParam("geometry", "length, width, height must all be > 0")
	}
	if len(p.TRoomK) == 0 {
		return invalidParam("t_room_k", "ambient temperature series must not be empty")
	}
	return nil
}

// surfaceArea returns the battery's total exposed surface area, computed
// once at construction: A = 2*(LW + LH + WH).
func (p ThermalParams) surfaceArea() float64 {
	return 2 * (p.LengthM*p.WidthM + p.LengthM*p.HeightM + p.WidthM*p.HeightM)
}

// CalendarChoice selects the calendar-fade sub-model.
type CalendarChoice int

const (
	CalendarNone CalendarChoice = iota
	CalendarModel
	CalendarTable
)

// CycleMatrixRow is one row of the cycles-to-failure matrix: (DOD%, cycle
// number, relative capacity %).
type CycleMatrixRow struct {
	DOD              float64
	Cycles           float64
	RelativeCapacity float64
}

// LifetimeParams is the immutable lifetime-model parameter bundle.
type LifetimeParams struct {
	CycleMatrix []CycleMatrixRow

	CalendarChoice CalendarChoice
	CalendarQ0     float64 // initial fractional capacity (0-1), MODEL choice
	CalendarA      float64
	CalendarB      float64
	CalendarC      float64

	// CalendarTable maps day-age -> capacity percent, TABLE choice.
	CalendarTable []TablePoint
}

func (p LifetimeParams) validate() error {
	if len(p.CycleMatrix) < 3 {
		return invalidParam("cycle_matrix", "must have >= 3 rows, got %d", len(p.CycleMatrix))
	}
	if p.CalendarChoice == CalendarTable && len(p.CalendarTable) < 2 {
		return invalidParam("calendar_table", "must have >= 2 rows, got %d", len(p.CalendarTable))
	}
	if p.CalendarChoice == CalendarModel && p.CalendarQ0 <= 0 {
		return invalidParam("calendar_q0", "must be > 0, got %v", p.CalendarQ0)
	}
	return nil
}

// LossChoice selects the parasitic-loss sub-model.
type LossChoice int

const (
	LossMonthly LossChoice = iota
	LossTimeseries
)

// LossParams is the immutable loss-model parameter bundle.
type LossParams struct {
	Choice LossChoice

	// Monthly mode: 12-entry vectors, Jan=index 0.
	ChargeMonthly    [12]float64
	DischargeMonthly [12]float64
	IdleMonthly      [12]float64

	// Timeseries mode: 8760*stepsPerHour entries, indexed by YearOneIndex.
	Series []float64
}

func (p LossParams) validate() error {
	if p.Choice == LossTimeseries && len(p.Series) == 0 {
		return invalidParam("loss_series", "must not be empty in TIMESERIES mode")
	}
	return nil
}

// Params bundles all sub-model parameter blocks plus time, forming the
// single immutable object a Battery is constructed from: shared, read-only,
// borrowed by every sub-model.
type Params struct {
	Chemistry Chemistry
	Time      TimeParams
	Capacity  CapacityParams
	Voltage   VoltageParams
	Thermal   ThermalParams
	Lifetime  LifetimeParams
	Losses    LossParams
}

// Validate checks every sub-bundle, returning the first InvalidParameter
// encountered.
func (p Params) Validate() error {
	if err := p.Capacity.validate(); err != nil {
		return err
	}
	if err := p.Voltage.validate(); err != nil {
		return err
	}
	if err := p.Thermal.validate(); err != nil {
		return err
	}
	if err := p.Lifetime.validate(); err != nil {
		return err
	}
	if err := p.Losses.validate(); err != nil {
		return err
	}
	return nil
}
