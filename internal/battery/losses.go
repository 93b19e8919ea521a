package battery

// Losses is the C8 parasitic-loss sub-model: a per-step power draw applied
// on top of whatever charge/discharge/idle current the controller
// requested, keyed either by calendar month or by a full timeseries.
type Losses struct {
	params LossParams
}

// NewLosses constructs the loss sub-model.
func NewLosses(p LossParams) (*Losses, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &Losses{params: p}, nil
}

// LossWatts returns the parasitic loss power for the given step, keyed by
// charge mode in monthly mode or by absolute series index in timeseries
// mode.
func (l *Losses) LossWatts(mode ChargeMode, month int, yearOneIndex int) float64 {
	if l.params.Choice == LossTimeseries {
		if yearOneIndex < 0 || yearOneIndex >= len(l.params.Series) {
			return 0
		}
		return l.params.Series[yearOneIndex]
	}
	if month < 0 || month > 11 {
		return 0
	}
	switch mode {
	case ModeCharge:
		return l.params.ChargeMonthly[month]
	case ModeDischarge:
		return l.params.DischargeMonthly[month]
	default:
		return l.params.IdleMonthly[month]
	}
}
