package powerflow

import "sort"

// EfficiencyCurve is a table-driven SharedInverterEfficiency: DC input
// power (watts) mapped to AC conversion efficiency percent, with a
// nameplate-fraction cutoff below which the shared inverter doesn't
// bother converting.
type EfficiencyCurve struct {
	NameplateACWatts float64
	MinLoadFraction  float64 // fraction of nameplate below which conversion is skipped

	// Points map DC watts (fraction of nameplate, 0-1) to efficiency
	// percent; sorted ascending by fraction at construction.
	Points []EfficiencyPoint
}

// EfficiencyPoint is one (load fraction, efficiency percent) row.
type EfficiencyPoint struct {
	LoadFraction      float64
	EfficiencyPercent float64
}

// NewEfficiencyCurve sorts points by load fraction and returns a ready-to-
// use curve.
func NewEfficiencyCurve(nameplateACWatts, minLoadFraction float64, points []EfficiencyPoint) *EfficiencyCurve {
	sorted := append([]EfficiencyPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LoadFraction < sorted[j].LoadFraction })
	return &EfficiencyCurve{NameplateACWatts: nameplateACWatts, MinLoadFraction: minLoadFraction, Points: sorted}
}

// MinimumDCWatts returns the DC power below which the shared inverter does
// not convert at all.
func (c *EfficiencyCurve) MinimumDCWatts() float64 {
	return c.MinLoadFraction * c.NameplateACWatts
}

// EfficiencyPercent interpolates conversion efficiency for the given DC
// input power, clamping to the first/last table row outside its domain.
func (c *EfficiencyCurve) EfficiencyPercent(dcWatts float64) float64 {
	if c.NameplateACWatts <= 0 || len(c.Points) == 0 {
		return 100
	}
	frac := dcWatts / c.NameplateACWatts
	if frac <= c.Points[0].LoadFraction {
		return c.Points[0].EfficiencyPercent
	}
	last := c.Points[len(c.Points)-1]
	if frac >= last.LoadFraction {
		return last.EfficiencyPercent
	}
	idx := sort.Search(len(c.Points), func(i int) bool { return c.Points[i].LoadFraction >= frac })
	lo, hi := c.Points[idx-1], c.Points[idx]
	if hi.LoadFraction == lo.LoadFraction {
		return lo.EfficiencyPercent
	}
	w := (frac - lo.LoadFraction) / (hi.LoadFraction - lo.LoadFraction)
	return lo.EfficiencyPercent + w*(hi.EfficiencyPercent-lo.EfficiencyPercent)
}
