package demand

import (
	"math"
	"math/rand"
	"time"
)

// Reducer reports how much load demand response is currently shedding.
type Reducer interface {
	DemandReduction() float64
}

// Config holds the natural variation parameters.
type Config struct {
	Drift          bool          `json:"Drift"`
	Interval       time.Duration `json:"Interval"`
	RandomMW       int           `json:"RandomMW"`
	CycleAmplitude float64       `json:"CycleAmplitude"`
	CycleFrequency float64       `json:"CycleFrequency"` // radians per millisecond
	TrendRate      float64       `json:"TrendRate"`      // MW per second
	TrendInterval  time.Duration `json:"TrendInterval"`
}

// DefaultConfig is a 2s drift of ±800 MW on a 3000 MW sine with a 50 MW/s
// trend re-rolled every 15s.
func DefaultConfig() Config {
	return Config{
		Drift:          true,
		Interval:       2000 * time.Millisecond,
		RandomMW:       800,
		CycleAmplitude: 3000,
		CycleFrequency: 0.0001,
		TrendRate:      50,
		TrendInterval:  15000 * time.Millisecond,
	}
}

// Load is a coarse band of the raw demand.
type Load string

const (
	Low    Load = "low"
	Medium Load = "medium"
	High   Load = "high"
	Peak   Load = "peak"
)

// Model tracks grid load. Natural drift always anchors to the base demand and
// stays inside [0.5, 1.5] of the level's initial base.
type Model struct {
	reducer     Reducer
	config      Config
	rng         *rand.Rand
	base        float64
	current     float64
	initialBase float64
	phase       float64
	trend       int
	sinceDrift  time.Duration
	sinceTrend  time.Duration
}

// New returns a Model at 30000 MW.
func New(reducer Reducer, config Config, rng *rand.Rand) *Model {
	m := &Model{
		reducer: reducer,
		config:  config,
		rng:     rng,
	}
	m.SetBaseDemand(30000)
	return m
}

// SetBaseDemand sets base, current and the drift anchor to v.
func (m *Model) SetBaseDemand(v float64) {
	m.base = v
	m.current = v
	m.initialBase = v
	m.phase = 0
	m.trend = 0
	m.sinceDrift = 0
	m.sinceTrend = 0
}

// AdjustDemand shifts the current demand by delta, never below zero. The next
// drift recomputes from base, so the shift is transient.
func (m *Model) AdjustDemand(delta float64) {
	m.current = math.Max(0, m.current+delta)
}

// SetDemand assigns the current demand, never below zero.
func (m *Model) SetDemand(v float64) {
	m.current = math.Max(0, v)
}

// Update advances the cycle phase and both timers.
func (m *Model) Update(elapsed time.Duration) {
	ms := float64(elapsed) / float64(time.Millisecond)
	m.phase += m.config.CycleFrequency * ms

	if !m.config.Drift {
		return
	}
	if m.config.Interval > 0 {
		m.sinceDrift += elapsed
		if m.sinceDrift >= m.config.Interval {
			m.drift()
			m.sinceDrift = 0
		}
	}
	if m.config.TrendInterval > 0 {
		m.sinceTrend += elapsed
		if m.sinceTrend >= m.config.TrendInterval {
			m.rollTrend()
			m.sinceTrend = 0
		}
	}
}

func (m *Model) drift() {
	random := 0.0
	if m.config.RandomMW > 0 {
		random = float64(m.rng.Intn(2*m.config.RandomMW+1) - m.config.RandomMW)
	}
	cyclic := m.config.CycleAmplitude * math.Sin(m.phase)
	trend := float64(m.trend) * m.config.TrendRate * m.config.Interval.Seconds()

	v := m.base + random + cyclic + trend
	m.current = math.Min(math.Max(v, 0.5*m.initialBase), 1.5*m.initialBase)
}

// 30% up, 30% down, 40% flat
func (m *Model) rollTrend() {
	r := m.rng.Float64()
	switch {
	case r < 0.3:
		m.trend = 1
	case r < 0.6:
		m.trend = -1
	default:
		m.trend = 0
	}
}

// Raw is the demand before demand response.
func (m *Model) Raw() float64 {
	return m.current
}

// Reduction is the load currently shed by demand response.
func (m *Model) Reduction() float64 {
	return m.reducer.DemandReduction()
}

// Effective is the load the supply side has to meet.
func (m *Model) Effective() float64 {
	return math.Max(0, m.current-m.reducer.DemandReduction())
}

// Base is a getter for the drift anchor
func (m *Model) Base() float64 {
	return m.base
}

// Trend is the current trend direction, one of -1, 0, 1.
func (m *Model) Trend() int {
	return m.trend
}

// Load bands the raw demand.
func (m *Model) Load() Load {
	switch {
	case m.current < 25000:
		return Low
	case m.current < 32000:
		return Medium
	case m.current < 38000:
		return High
	default:
		return Peak
	}
}
