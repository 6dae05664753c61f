package weather

import (
	"math/rand"
	"time"

	"github.com/ohowland/gridbalance/internal/pkg/energy"
)

const (
	MaxSun  = 120.0
	MaxWind = 150.0
)

// Output is the energy registry surface the weather model drives.
type Output interface {
	SetAbsolute(energy.ID, float64) bool
	Baseline(energy.ID) float64
}

// Config holds the natural drift parameters
type Config struct {
	Drift      bool          `json:"Drift"`
	Interval   time.Duration `json:"Interval"`
	SunJitter  int           `json:"SunJitter"`
	WindJitter int           `json:"WindJitter"`
}

// DefaultConfig drifts every 3s by up to ±2 sun and ±5 wind.
func DefaultConfig() Config {
	return Config{
		Drift:      true,
		Interval:   3000 * time.Millisecond,
		SunJitter:  2,
		WindJitter: 5,
	}
}

// Model owns sun and wind intensity. Solar and wind output are always
// baseline * intensity / 100, so adjustments compose additively on intensity.
type Model struct {
	grid       Output
	config     Config
	rng        *rand.Rand
	sun        float64
	wind       float64
	solarBase  float64
	windBase   float64
	sinceDrift time.Duration
}

// New captures the solar and wind baselines from grid. Outputs are not touched
// until SetInitial.
func New(grid Output, config Config, rng *rand.Rand) *Model {
	return &Model{
		grid:      grid,
		config:    config,
		rng:       rng,
		sun:       80,
		wind:      60,
		solarBase: grid.Baseline(energy.Solar),
		windBase:  grid.Baseline(energy.Wind),
	}
}

// SetInitial stores both intensities and recomputes both outputs.
func (m *Model) SetInitial(sun, wind float64) {
	m.sun = clamp(sun, 0, MaxSun)
	m.wind = clamp(wind, 0, MaxWind)
	m.sinceDrift = 0
	m.updateSolar()
	m.updateWind()
}

// AdjustSun adds delta percentage points to sun intensity.
func (m *Model) AdjustSun(delta float64) {
	m.SetSun(m.sun + delta)
}

// AdjustWind adds delta percentage points to wind speed.
func (m *Model) AdjustWind(delta float64) {
	m.SetWind(m.wind + delta)
}

// SetSun assigns sun intensity, clamped to [0, MaxSun].
func (m *Model) SetSun(v float64) {
	m.sun = clamp(v, 0, MaxSun)
	m.updateSolar()
}

// SetWind assigns wind speed, clamped to [0, MaxWind].
func (m *Model) SetWind(v float64) {
	m.wind = clamp(v, 0, MaxWind)
	m.updateWind()
}

// Sun is a getter for sun intensity
func (m *Model) Sun() float64 {
	return m.sun
}

// Wind is a getter for wind speed
func (m *Model) Wind() float64 {
	return m.wind
}

// Update advances the drift timer and applies natural variation when it
// reaches the interval.
func (m *Model) Update(elapsed time.Duration) {
	if !m.config.Drift || m.config.Interval <= 0 {
		return
	}
	m.sinceDrift += elapsed
	if m.sinceDrift >= m.config.Interval {
		m.drift()
		m.sinceDrift = 0
	}
}

func (m *Model) drift() {
	m.AdjustSun(float64(jitter(m.rng, m.config.SunJitter)))
	m.AdjustWind(float64(jitter(m.rng, m.config.WindJitter)))
}

func (m *Model) updateSolar() {
	m.grid.SetAbsolute(energy.Solar, m.solarBase*m.sun/100)
}

func (m *Model) updateWind() {
	m.grid.SetAbsolute(energy.Wind, m.windBase*m.wind/100)
}

// Conditions is a human readable description of the weather
type Conditions struct {
	Sun  string `json:"Sun"`
	Wind string `json:"Wind"`
}

// Conditions bands the current intensities.
func (m *Model) Conditions() Conditions {
	sun := "clear"
	switch {
	case m.sun < 20:
		sun = "dark"
	case m.sun < 50:
		sun = "cloudy"
	case m.sun < 80:
		sun = "partly cloudy"
	case m.sun > 100:
		sun = "blazing"
	}

	wind := "gale"
	switch {
	case m.wind < 30:
		wind = "calm"
	case m.wind < 60:
		wind = "breeze"
	case m.wind < 90:
		wind = "strong"
	}
	return Conditions{Sun: sun, Wind: wind}
}

// jitter returns a uniform integer in [-n, n].
func jitter(rng *rand.Rand, n int) int {
	if n <= 0 {
		return 0
	}
	return rng.Intn(2*n+1) - n
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
