package powerflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleCurve() *EfficiencyCurve {
	return NewEfficiencyCurve(1000, 0.05, []EfficiencyPoint{
		{LoadFraction: 0.5, EfficiencyPercent: 96},
		{LoadFraction: 0.1, EfficiencyPercent: 90},
		{LoadFraction: 1.0, EfficiencyPercent: 97},
	})
}

func TestNewEfficiencyCurve_SortsPointsByLoadFraction(t *testing.T) {
	c := sampleCurve()
	for i := 1; i < len(c.Points); i++ {
		assert.LessOrEqual(t, c.Points[i-1].LoadFraction, c.Points[i].LoadFraction)
	}
}

func TestEfficiencyCurve_MinimumDCWatts(t *testing.T) {
	c := sampleCurve()
	assert.InDelta(t, 50.0, c.MinimumDCWatts(), 0.001)
}

func TestEfficiencyCurve_ClampsBelowFirstPoint(t *testing.T) {
	c := sampleCurve()
	assert.InDelta(t, 90.0, c.EfficiencyPercent(50), 0.001) // frac 0.05, below first row's 0.1
}

func TestEfficiencyCurve_ClampsAboveLastPoint(t *testing.T) {
	c := sampleCurve()
	assert.InDelta(t, 97.0, c.EfficiencyPercent(2000), 0.001) // frac 2.0
}

func TestEfficiencyCurve_InterpolatesBetweenPoints(t *testing.T) {
	c := sampleCurve()
	assert.InDelta(t, 93.0, c.EfficiencyPercent(300), 0.001) // frac 0.3, midway between 0.1 and 0.5
}

func TestEfficiencyCurve_ExactPointMatch(t *testing.T) {
	c := sampleCurve()
	assert.InDelta(t, 97.0, c.EfficiencyPercent(1000), 0.001)
}

func TestEfficiencyCurve_ZeroNameplateReturnsFullEfficiency(t *testing.T) {
	c := NewEfficiencyCurve(0, 0.05, []EfficiencyPoint{{LoadFraction: 0.5, EfficiencyPercent: 96}})
	assert.InDelta(t, 100.0, c.EfficiencyPercent(100), 0.001)
}

func TestEfficiencyCurve_EmptyPointsReturnsFullEfficiency(t *testing.T) {
	c := NewEfficiencyCurve(1000, 0.05, nil)
	assert.InDelta(t, 100.0, c.EfficiencyPercent(500), 0.001)
}
