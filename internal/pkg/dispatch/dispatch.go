package dispatch

import (
	"math"
	"sort"
	"time"

	"github.com/ohowland/gridbalance/internal/pkg/energy"
)

// Status is what a Dispatcher sees of the grid on one tick.
type Status struct {
	Gap       float64
	Tolerance float64
	Elapsed   time.Duration
	Units     []energy.Source
}

// Command asks for a controllable unit to be moved up (+1) or down (-1).
type Command struct {
	ID        energy.ID
	Direction float64
}

// Dispatcher decides which units to move to close the supply demand gap.
type Dispatcher interface {
	Dispatch(Status) []Command
}

// MeritOrder raises the cheapest units first on a deficit and backs down the
// most expensive first on a surplus. Gaps within Deadband of zero are left
// alone. A zero Deadband uses a tenth of the balance tolerance.
type MeritOrder struct {
	Deadband float64
}

// Dispatch returns commands whose combined ramp over Elapsed covers the gap.
func (d MeritOrder) Dispatch(s Status) []Command {
	deadband := d.Deadband
	if deadband <= 0 {
		deadband = s.Tolerance / 10
	}
	if math.Abs(s.Gap) <= deadband {
		return nil
	}

	units := make([]energy.Source, 0, len(s.Units))
	for _, u := range s.Units {
		if u.Controlled {
			units = append(units, u)
		}
	}

	// raising demand response sheds load, which closes a deficit like supply
	raise := s.Gap < 0
	sort.SliceStable(units, func(i, j int) bool {
		if raise {
			return units[i].CostPerUnit < units[j].CostPerUnit
		}
		return units[i].CostPerUnit > units[j].CostPerUnit
	})

	remaining := math.Abs(s.Gap) - deadband
	commands := make([]Command, 0)
	for _, u := range units {
		if remaining <= 0 {
			break
		}
		var room float64
		if raise {
			room = u.Max - u.Current
		} else {
			room = u.Current - u.Min
		}
		if room <= 0 {
			continue
		}
		dir := 1.0
		if !raise {
			dir = -1
		}
		commands = append(commands, Command{ID: u.ID, Direction: dir})
		remaining -= math.Min(u.ChangeRate*s.Elapsed.Seconds(), room)
	}
	return commands
}
