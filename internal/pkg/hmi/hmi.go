package hmi

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell"
	"github.com/ohowland/gridbalance/internal/pkg/energy"
	"github.com/ohowland/gridbalance/internal/pkg/sim"
	"github.com/rivo/tview"
)

const logo = `
 ___________________________________
 ___/\/\/\/\/\____/\/\/\/\/\/\/\____
 _/\/\__________/\/\________/\/\____
 _/\/\__/\/\/\__/\/\/\/\/\/\/\______
 _/\/\____/\/\__/\/\________/\/\____
 ___/\/\/\/\/\__/\/\/\/\/\/\/\______
 ___________________________________
`

var header = []string{"Source", "MW", "Min", "Max", "%", "Control"}

// Session is the simulation surface the HMI drives.
type Session interface {
	Snapshot() sim.ReadModel
	ApplyControl(energy.ID, float64, time.Duration) bool
}

// HMI is a terminal dashboard over one session. The source table selects a
// unit; right or + raises it, left or - lowers it.
type HMI struct {
	app     *tview.Application
	pages   *tview.Pages
	table   *tview.Table
	info    *tview.TextView
	events  *tview.TextView
	session Session
	step    time.Duration
	ids     []energy.ID
}

// New builds the pages. step is the control time applied per key press.
func New(session Session, step time.Duration) *HMI {
	h := &HMI{
		app:     tview.NewApplication(),
		pages:   tview.NewPages(),
		session: session,
		step:    step,
	}
	h.pages.AddPage("Splash", h.splash(), true, true)
	h.pages.AddPage("Overview", h.overview(), true, false)
	h.refresh(session.Snapshot())
	return h
}

func (h *HMI) splash() tview.Primitive {
	logoBox := tview.NewTextView().
		SetTextColor(tcell.ColorGreen).
		SetDoneFunc(func(key tcell.Key) {
			h.pages.SwitchToPage("Overview")
			h.app.SetFocus(h.table)
		})
	fmt.Fprint(logoBox, logo)

	frame := tview.NewFrame(tview.NewBox()).
		SetBorders(0, 0, 0, 0, 0, 0).
		AddText("Grid Balance", true, tview.AlignCenter, tcell.ColorWhite).
		AddText("", true, tview.AlignCenter, tcell.ColorWhite).
		AddText("press enter", true, tview.AlignCenter, tcell.ColorDarkMagenta)

	return tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tview.NewBox(), 0, 5, false).
		AddItem(tview.NewFlex().
			AddItem(tview.NewBox(), 0, 1, false).
			AddItem(logoBox, 36, 1, true).
			AddItem(tview.NewBox(), 0, 1, false), 9, 1, true).
		AddItem(frame, 0, 10, false)
}

func (h *HMI) overview() tview.Primitive {
	h.table = tview.NewTable().
		SetFixed(1, 1).
		SetSelectable(true, false).
		SetSeparator(' ')
	h.table.SetBorder(true).SetTitle(" Sources ")
	h.table.SetInputCapture(h.handleKey)

	h.info = tview.NewTextView().SetDynamicColors(true)
	h.info.SetBorder(true).SetTitle(" Grid ")

	h.events = tview.NewTextView().SetDynamicColors(true)
	h.events.SetBorder(true).SetTitle(" Upcoming ")

	return tview.NewFlex().
		AddItem(h.table, 0, 2, true).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(h.info, 0, 2, false).
			AddItem(h.events, 0, 1, false), 0, 1, false)
}

// rows renders the source table body in snapshot order.
func rows(rm sim.ReadModel) [][]string {
	out := make([][]string, 0, len(rm.Sources))
	for _, s := range rm.Sources {
		control := "auto"
		if s.Controlled {
			control = "< >"
		}
		out = append(out, []string{
			s.Name,
			fmt.Sprintf("%.0f", s.Current),
			fmt.Sprintf("%.0f", s.Min),
			fmt.Sprintf("%.0f", s.Max),
			fmt.Sprintf("%.0f", s.Percent),
			control,
		})
	}
	return out
}

func gapColor(rm sim.ReadModel) string {
	if rm.Balanced {
		return "green"
	}
	return "red"
}

func summary(rm sim.ReadModel) string {
	s := fmt.Sprintf("[white]%s  %v\n\n", rm.Level, rm.Clock.Truncate(100*time.Millisecond))
	s += fmt.Sprintf("Supply   %8.0f MW\n", rm.TotalSupply)
	s += fmt.Sprintf("Demand   %8.0f MW (%s)\n", rm.EffectiveDemand, rm.Load)
	s += fmt.Sprintf("Gap      [%s]%+8.0f MW[white] grade %s\n", gapColor(rm), rm.Gap, rm.Grade)
	s += fmt.Sprintf("Freq     %8.2f Hz %s\n", rm.FrequencyHz, rm.FrequencyStatus)
	s += fmt.Sprintf("Stable   %7.0f%%\n\n", rm.StableProgress*100)
	s += fmt.Sprintf("Sun  %3.0f %s\nWind %3.0f %s\n\n", rm.Sun, rm.Conditions.Sun, rm.Wind, rm.Conditions.Wind)
	s += fmt.Sprintf("Cost %.0f  (%.1f/s)\n", rm.TotalCost, rm.CostRate)
	if rm.Won {
		s += "\n[green]LEVEL COMPLETE[white]\n"
	}
	return s
}

func upcoming(rm sim.ReadModel) string {
	s := ""
	for _, n := range rm.Upcoming {
		s += fmt.Sprintf("%5.0fs  %s\n", n.At.Seconds(), n.Message)
	}
	return s
}

func (h *HMI) refresh(rm sim.ReadModel) {
	for column, title := range header {
		h.table.SetCell(0, column, tview.NewTableCell(title).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
	h.ids = h.ids[:0]
	for i, row := range rows(rm) {
		h.ids = append(h.ids, rm.Sources[i].ID)
		for column, cell := range row {
			color := tcell.ColorWhite
			if column == 0 {
				color = tcell.ColorDarkCyan
			}
			h.table.SetCell(i+1, column, tview.NewTableCell(cell).SetTextColor(color))
		}
	}
	h.info.SetText(summary(rm))
	h.events.SetText(upcoming(rm))
}

// direction maps a key to a control direction; 0 leaves the key to the table.
func direction(event *tcell.EventKey) float64 {
	switch event.Key() {
	case tcell.KeyRight:
		return 1
	case tcell.KeyLeft:
		return -1
	case tcell.KeyRune:
		switch event.Rune() {
		case '+', '=':
			return 1
		case '-', '_':
			return -1
		}
	}
	return 0
}

func (h *HMI) selected() (energy.ID, bool) {
	row, _ := h.table.GetSelection()
	if row < 1 || row > len(h.ids) {
		return "", false
	}
	return h.ids[row-1], true
}

func (h *HMI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	d := direction(event)
	if d == 0 {
		return event
	}
	if id, ok := h.selected(); ok {
		h.session.ApplyControl(id, d, h.step)
	}
	return nil
}

// Run draws the dashboard every interval until ctx ends or the user quits
// with Ctrl-C.
func (h *HMI) Run(ctx context.Context, interval time.Duration) error {
	go func() {
		refreshInterval := time.NewTicker(interval)
		defer refreshInterval.Stop()
		for {
			select {
			case <-refreshInterval.C:
				rm := h.session.Snapshot()
				h.app.QueueUpdateDraw(func() { h.refresh(rm) })
			case <-ctx.Done():
				h.app.Stop()
				return
			}
		}
	}()
	return h.app.SetRoot(h.pages, true).Run()
}
