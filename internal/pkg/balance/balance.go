package balance

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	NominalHz   = 60.0
	MinHz       = 59.5
	MaxHz       = 60.5
	sensitivity = 0.5
)

// Supply is the generation side of the balance.
type Supply interface {
	TotalSupply() float64
}

// Demand is the load side of the balance.
type Demand interface {
	Effective() float64
}

// Grade is a letter from A to F.
type Grade string

const (
	A Grade = "A"
	B Grade = "B"
	C Grade = "C"
	D Grade = "D"
	F Grade = "F"
)

// Record is the balance state computed by the latest Update.
type Record struct {
	Gap            float64       `json:"Gap"`
	AbsGap         float64       `json:"AbsGap"`
	Tolerance      float64       `json:"Tolerance"`
	Balanced       bool          `json:"Balanced"`
	StableTime     time.Duration `json:"StableTime"`
	RequiredStable time.Duration `json:"RequiredStable"`
	FrequencyHz    float64       `json:"FrequencyHz"`
	MaxImbalance   float64       `json:"MaxImbalance"`
	TotalBalanced  time.Duration `json:"TotalBalanced"`
	TotalElapsed   time.Duration `json:"TotalElapsed"`
}

// Sample is one entry of the once-per-second history.
type Sample struct {
	At       time.Duration `json:"At"`
	AbsGap   float64       `json:"AbsGap"`
	Balanced bool          `json:"Balanced"`
}

// Evaluator compares supply against effective demand each tick and tracks how
// long the grid has stayed within tolerance.
type Evaluator struct {
	supply  Supply
	demand  Demand
	record  Record
	history []Sample
}

// New returns an Evaluator with a 100 MW tolerance held for 5s.
func New(supply Supply, demand Demand) *Evaluator {
	return &Evaluator{
		supply: supply,
		demand: demand,
		record: Record{
			Tolerance:      100,
			RequiredStable: 5 * time.Second,
			FrequencyHz:    NominalHz,
		},
	}
}

// SetWinConditions sets the tolerance in MW and the time it must be held.
func (e *Evaluator) SetWinConditions(tolerance float64, duration time.Duration) {
	e.record.Tolerance = tolerance
	e.record.RequiredStable = duration
}

// Reset clears all accumulated state but keeps the win conditions.
func (e *Evaluator) Reset() {
	e.record = Record{
		Tolerance:      e.record.Tolerance,
		RequiredStable: e.record.RequiredStable,
		FrequencyHz:    NominalHz,
	}
	e.history = nil
}

// Update recomputes the record from the current supply and demand.
func (e *Evaluator) Update(elapsed time.Duration) {
	effective := e.demand.Effective()
	gap := e.supply.TotalSupply() - effective
	abs := math.Abs(gap)

	r := &e.record
	r.Gap = gap
	r.AbsGap = abs
	r.Balanced = abs <= r.Tolerance
	if r.Balanced {
		r.StableTime += elapsed
		r.TotalBalanced += elapsed
	} else {
		r.StableTime = 0
	}
	r.TotalElapsed += elapsed
	if abs > r.MaxImbalance {
		r.MaxImbalance = abs
	}
	r.FrequencyHz = frequency(gap, effective)

	if elapsed > 0 && r.TotalElapsed%time.Second < elapsed {
		e.history = append(e.history, Sample{
			At:       r.TotalElapsed,
			AbsGap:   abs,
			Balanced: r.Balanced,
		})
	}
}

// frequency is a proportional model of the grid frequency. With no load any
// surplus pins the upper bound and any deficit the lower.
func frequency(gap, effective float64) float64 {
	if effective == 0 {
		switch {
		case gap > 0:
			return MaxHz
		case gap < 0:
			return MinHz
		default:
			return NominalHz
		}
	}
	hz := NominalHz + gap/effective*sensitivity
	return math.Min(math.Max(hz, MinHz), MaxHz)
}

// Record returns a copy of the latest record.
func (e *Evaluator) Record() Record {
	return e.record
}

// CheckWinCondition reports whether the grid has been held stable long enough.
func (e *Evaluator) CheckWinCondition() bool {
	return e.record.StableTime >= e.record.RequiredStable
}

// StableProgress is StableTime / RequiredStable capped at 1.
func (e *Evaluator) StableProgress() float64 {
	if e.record.RequiredStable <= 0 {
		return 1
	}
	return math.Min(float64(e.record.StableTime)/float64(e.record.RequiredStable), 1)
}

// Grade rates the current absolute gap.
func (e *Evaluator) Grade() Grade {
	return GradeGap(e.record.AbsGap)
}

// GradeGap maps an absolute gap in MW to a letter grade.
func GradeGap(abs float64) Grade {
	switch {
	case abs <= 50:
		return A
	case abs <= 100:
		return B
	case abs <= 200:
		return C
	case abs <= 300:
		return D
	default:
		return F
	}
}

// FrequencyStatus bands the current frequency.
func (e *Evaluator) FrequencyStatus() string {
	hz := e.record.FrequencyHz
	switch {
	case hz < 59.7:
		return "low"
	case hz < 59.9:
		return "slightly low"
	case hz > 60.3:
		return "high"
	case hz > 60.1:
		return "slightly high"
	default:
		return "normal"
	}
}

// History returns a copy of the once-per-second samples.
func (e *Evaluator) History() []Sample {
	out := make([]Sample, len(e.history))
	copy(out, e.history)
	return out
}

// Statistics summarises a finished or running level.
type Statistics struct {
	MaxImbalance    float64 `json:"MaxImbalance"`
	BalancedSeconds float64 `json:"BalancedSeconds"`
	TotalSeconds    float64 `json:"TotalSeconds"`
	BalanceRate     float64 `json:"BalanceRate"`
	FinalGrade      Grade   `json:"FinalGrade"`
	MeanGap         float64 `json:"MeanGap"`
	StdDevGap       float64 `json:"StdDevGap"`
}

// Statistics rounds the integers the way the result screen shows them.
func (e *Evaluator) Statistics() Statistics {
	r := e.record
	s := Statistics{
		MaxImbalance:    math.Round(r.MaxImbalance),
		BalancedSeconds: math.Round(r.TotalBalanced.Seconds()),
		TotalSeconds:    math.Round(r.TotalElapsed.Seconds()),
		FinalGrade:      e.Grade(),
	}
	if r.TotalElapsed > 0 {
		s.BalanceRate = math.Round(float64(r.TotalBalanced) / float64(r.TotalElapsed) * 100)
	}

	gaps := make([]float64, len(e.history))
	for i, h := range e.history {
		gaps[i] = h.AbsGap
	}
	if len(gaps) > 0 {
		s.MeanGap = stat.Mean(gaps, nil)
	}
	if len(gaps) > 1 {
		s.StdDevGap = stat.StdDev(gaps, nil)
	}
	return s
}
