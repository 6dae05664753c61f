package hmi

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell"
	"github.com/ohowland/gridbalance/internal/pkg/energy"
	"github.com/ohowland/gridbalance/internal/pkg/level"
	"github.com/ohowland/gridbalance/internal/pkg/sim"
	"gotest.tools/v3/assert"
)

func newSession(t *testing.T) *sim.Session {
	t.Helper()
	l, err := level.Find("level1")
	assert.NilError(t, err)
	s, err := sim.New(l, nil, sim.DefaultConfig())
	assert.NilError(t, err)
	t.Cleanup(s.Close)
	return s
}

func current(s *sim.Session, id energy.ID) float64 {
	for _, v := range s.Snapshot().Sources {
		if v.ID == id {
			return v.Current
		}
	}
	return -1
}

func TestRows(t *testing.T) {
	rm := sim.ReadModel{Sources: []sim.SourceView{
		{ID: energy.Coal, Name: "Coal", Controlled: true, Current: 12000, Min: 4000, Max: 15000, Percent: 80},
		{ID: energy.Solar, Name: "Solar", Current: 8200.4, Max: 10000, Percent: 82},
	}}
	got := rows(rm)
	assert.DeepEqual(t, got, [][]string{
		{"Coal", "12000", "4000", "15000", "80", "< >"},
		{"Solar", "8200", "0", "10000", "82", "auto"},
	})
}

func TestSummary(t *testing.T) {
	rm := sim.ReadModel{Level: "Summer Peak", Gap: -250, Balanced: true, Won: true}
	s := summary(rm)
	assert.Assert(t, strings.Contains(s, "Summer Peak"))
	assert.Assert(t, strings.Contains(s, "[green]    -250 MW"))
	assert.Assert(t, strings.Contains(s, "LEVEL COMPLETE"))
}

func TestDirection(t *testing.T) {
	assert.Equal(t, direction(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone)), 1.0)
	assert.Equal(t, direction(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone)), -1.0)
	assert.Equal(t, direction(tcell.NewEventKey(tcell.KeyRune, '+', tcell.ModNone)), 1.0)
	assert.Equal(t, direction(tcell.NewEventKey(tcell.KeyRune, '-', tcell.ModNone)), -1.0)
	assert.Equal(t, direction(tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)), 0.0)
}

func TestKeysControlSelectedSource(t *testing.T) {
	s := newSession(t)
	h := New(s, time.Second)
	assert.Equal(t, len(h.ids), 6)

	row := -1
	for i, id := range h.ids {
		if id == energy.Hydro {
			row = i + 1
		}
	}
	assert.Assert(t, row > 0)
	h.table.Select(row, 0)

	before := current(s, energy.Hydro)
	ret := h.handleKey(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone))
	assert.Assert(t, ret == nil)
	assert.Assert(t, current(s, energy.Hydro) > before)

	down := tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
	assert.Equal(t, h.handleKey(down), down)
}
