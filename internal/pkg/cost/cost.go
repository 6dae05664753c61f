package cost

import (
	"time"

	"github.com/ohowland/gridbalance/internal/pkg/energy"
	"github.com/shopspring/decimal"
)

// Sources is the supply side of the registry.
type Sources interface {
	SupplySources() []energy.Source
}

// Grade is a letter from A to F.
type Grade string

var (
	kW   = decimal.NewFromInt(1000)
	hour = decimal.NewFromInt(int64(time.Hour))
	sec  = decimal.NewFromInt(3600)
)

// account sums are kept in MW*ns and are only converted on read, so any
// tick sequence covering the same span books the same energy.
type account struct {
	name   string
	energy decimal.Decimal
	cost   decimal.Decimal
}

func toMWh(v decimal.Decimal) decimal.Decimal {
	return v.Div(hour)
}

func toCurrency(v decimal.Decimal) decimal.Decimal {
	return v.Mul(kW).Div(hour)
}

// Ledger integrates generated energy and its cost per supply source.
type Ledger struct {
	sources  Sources
	order    []energy.ID
	accounts map[energy.ID]*account
	total    decimal.Decimal
}

// New opens an account for every supply source.
func New(sources Sources) *Ledger {
	l := &Ledger{sources: sources}
	l.Reset()
	return l
}

// Reset zeroes every account.
func (l *Ledger) Reset() {
	l.order = l.order[:0]
	l.accounts = make(map[energy.ID]*account)
	for _, s := range l.sources.SupplySources() {
		l.open(s)
	}
	l.total = decimal.Zero
}

func (l *Ledger) open(s energy.Source) *account {
	a := &account{name: s.Name, energy: decimal.Zero, cost: decimal.Zero}
	l.accounts[s.ID] = a
	l.order = append(l.order, s.ID)
	return a
}

// Update books current * elapsed of every supply source.
func (l *Ledger) Update(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	span := decimal.NewFromInt(int64(elapsed))
	for _, s := range l.sources.SupplySources() {
		a, ok := l.accounts[s.ID]
		if !ok {
			a = l.open(s)
		}
		e := decimal.NewFromFloat(s.Current).Mul(span)
		c := e.Mul(decimal.NewFromFloat(s.CostPerUnit))
		a.energy = a.energy.Add(e)
		a.cost = a.cost.Add(c)
		l.total = l.total.Add(c)
	}
}

// CurrentCostRate is the spend in currency per second at present output.
func (l *Ledger) CurrentCostRate() float64 {
	rate := decimal.Zero
	for _, s := range l.sources.SupplySources() {
		kwhPerSec := decimal.NewFromFloat(s.Current).Mul(kW).Div(sec)
		rate = rate.Add(kwhPerSec.Mul(decimal.NewFromFloat(s.CostPerUnit)))
	}
	return rate.InexactFloat64()
}

// TotalCost is the accumulated spend.
func (l *Ledger) TotalCost() float64 {
	return toCurrency(l.total).InexactFloat64()
}

// Generated is the accumulated energy of one source in MWh.
func (l *Ledger) Generated(id energy.ID) float64 {
	if a, ok := l.accounts[id]; ok {
		return toMWh(a.energy).InexactFloat64()
	}
	return 0
}

// SourceCost is the accumulated spend of one source.
func (l *Ledger) SourceCost(id energy.ID) float64 {
	if a, ok := l.accounts[id]; ok {
		return toCurrency(a.cost).InexactFloat64()
	}
	return 0
}

func (l *Ledger) average() decimal.Decimal {
	generated := decimal.Zero
	for _, a := range l.accounts {
		generated = generated.Add(a.energy)
	}
	if generated.IsZero() {
		return decimal.Zero
	}
	return l.total.Div(generated)
}

// AverageCost is the spend per kWh generated, 0 before anything was generated.
func (l *Ledger) AverageCost() float64 {
	return l.average().InexactFloat64()
}

// Grade rates the average cost per kWh.
func (l *Ledger) Grade() Grade {
	return GradeAverage(l.AverageCost())
}

// GradeAverage maps an average cost per kWh to a letter grade.
func GradeAverage(avg float64) Grade {
	switch {
	case avg <= 2.2:
		return "A"
	case avg <= 2.5:
		return "B"
	case avg <= 3.0:
		return "C"
	case avg <= 3.5:
		return "D"
	default:
		return "F"
	}
}

// Entry is one row of the per source breakdown.
type Entry struct {
	ID        energy.ID `json:"ID"`
	Name      string    `json:"Name"`
	EnergyMWh float64   `json:"EnergyMWh"`
	Cost      float64   `json:"Cost"`
	Percent   float64   `json:"Percent"`
}

// Statistics summarises spend for the result screen.
type Statistics struct {
	TotalCost   float64 `json:"TotalCost"`
	AverageCost float64 `json:"AverageCost"`
	Grade       Grade   `json:"Grade"`
	Breakdown   []Entry `json:"Breakdown"`
}

// Statistics rounds total and per source cost to whole units, MWh and the
// average to two decimals and the shares to whole percent.
func (l *Ledger) Statistics() Statistics {
	avg := l.average()
	s := Statistics{
		TotalCost:   toCurrency(l.total).Round(0).InexactFloat64(),
		AverageCost: avg.Round(2).InexactFloat64(),
		Grade:       GradeAverage(avg.InexactFloat64()),
		Breakdown:   make([]Entry, 0, len(l.order)),
	}
	hundred := decimal.NewFromInt(100)
	for _, id := range l.order {
		a := l.accounts[id]
		e := Entry{
			ID:        id,
			Name:      a.name,
			EnergyMWh: toMWh(a.energy).Round(2).InexactFloat64(),
			Cost:      toCurrency(a.cost).Round(0).InexactFloat64(),
		}
		if l.total.IsPositive() {
			e.Percent = a.cost.Div(l.total).Mul(hundred).Round(0).InexactFloat64()
		}
		s.Breakdown = append(s.Breakdown, e)
	}
	return s
}
