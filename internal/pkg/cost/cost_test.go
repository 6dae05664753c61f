package cost

import (
	"math"
	"testing"
	"time"

	"github.com/ohowland/gridbalance/internal/pkg/energy"
	"gotest.tools/v3/assert"
)

type fakeSources []energy.Source

func (f fakeSources) SupplySources() []energy.Source { return f }

func TestOneHourAtOneThousandMW(t *testing.T) {
	l := New(fakeSources{{ID: energy.Coal, Name: "Coal", Current: 1000, CostPerUnit: 2.0}})
	l.Update(time.Hour)

	assert.Equal(t, l.Generated(energy.Coal), 1000.0)
	assert.Equal(t, l.TotalCost(), 2000000.0)
	assert.Equal(t, l.AverageCost(), 2.0)
	assert.Equal(t, l.Grade(), Grade("A"))
}

func TestTickSizeDoesNotDrift(t *testing.T) {
	l := New(fakeSources{{ID: energy.Coal, Current: 1000, CostPerUnit: 2.0}})
	for i := 0; i < 36000; i++ {
		l.Update(100 * time.Millisecond)
	}
	assert.Equal(t, l.Generated(energy.Coal), 1000.0)
	assert.Equal(t, l.TotalCost(), 2000000.0)
}

func TestCurrentCostRateIsPure(t *testing.T) {
	l := New(fakeSources{{ID: energy.Gas, Current: 3600, CostPerUnit: 3.0}})

	assert.Equal(t, l.CurrentCostRate(), 3000.0)
	assert.Equal(t, l.CurrentCostRate(), 3000.0)
	assert.Equal(t, l.TotalCost(), 0.0)
}

func TestAverageCostWithoutGeneration(t *testing.T) {
	l := New(fakeSources{{ID: energy.Solar, Current: 0, CostPerUnit: 5.01}})
	l.Update(time.Second)
	assert.Equal(t, l.AverageCost(), 0.0)
	assert.Equal(t, l.Statistics().Breakdown[0].Percent, 0.0)
}

func TestGradeAverage(t *testing.T) {
	cases := map[float64]Grade{
		2.0: "A",
		2.2: "A",
		2.3: "B",
		3.0: "C",
		3.5: "D",
		3.6: "F",
	}
	for avg, grade := range cases {
		assert.Equal(t, GradeAverage(avg), grade, "average %v", avg)
	}
}

func TestStatisticsBreakdown(t *testing.T) {
	l := New(fakeSources{
		{ID: energy.Hydro, Name: "Hydro", Current: 1000, CostPerUnit: 1.0},
		{ID: energy.Gas, Name: "Gas", Current: 1000, CostPerUnit: 3.0},
	})
	l.Update(time.Hour)

	s := l.Statistics()
	assert.Equal(t, s.TotalCost, 4000000.0)
	assert.Equal(t, s.AverageCost, 2.0)
	assert.Equal(t, s.Grade, Grade("A"))
	assert.Equal(t, len(s.Breakdown), 2)
	assert.Equal(t, s.Breakdown[0].ID, energy.Hydro)
	assert.Equal(t, s.Breakdown[0].Percent, 25.0)
	assert.Equal(t, s.Breakdown[1].Percent, 75.0)
	assert.Equal(t, s.Breakdown[1].EnergyMWh, 1000.0)
}

func TestLedgerWithRegistry(t *testing.T) {
	r := energy.New(energy.DefaultTemplates())
	l := New(r)
	l.Update(time.Second)

	// demand response never shows up in the books
	assert.Equal(t, len(l.Statistics().Breakdown), 5)
	assert.Equal(t, l.Generated(energy.DemandResponse), 0.0)

	want := 0.0
	for _, s := range r.SupplySources() {
		want += s.Current * 1000 / 3600 * s.CostPerUnit
	}
	assert.Assert(t, math.Abs(l.TotalCost()-want) < 1e-6)
	assert.Assert(t, math.Abs(l.CurrentCostRate()-want) < 1e-6)

	l.Reset()
	assert.Equal(t, l.TotalCost(), 0.0)
}
