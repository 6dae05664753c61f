package energy

import (
	"encoding/json"
	"fmt"
	"os"
)

// ID names an energy source kind
type ID string

const (
	Hydro          ID = "hydro"
	Wind           ID = "wind"
	Solar          ID = "solar"
	Coal           ID = "coal"
	Gas            ID = "gas"
	DemandResponse ID = "demand"
)

// Order is the canonical presentation order of the six kinds.
var Order = []ID{Hydro, Wind, Solar, Coal, Gas, DemandResponse}

// Template is the immutable nominal configuration of a source. Live Sources
// are copies created once per level by New.
type Template struct {
	ID          ID      `json:"ID"`
	Name        string  `json:"Name"`
	Controlled  bool    `json:"Controlled"`
	Current     float64 `json:"Current"`
	Min         float64 `json:"Min"`
	Max         float64 `json:"Max"`
	ChangeRate  float64 `json:"ChangeRate"`
	CostPerUnit float64 `json:"CostPerUnit"`
	DemandSide  bool    `json:"DemandSide"`
}

// Source is the live state of one energy source. Min <= Current <= Max holds
// after every Registry mutation.
type Source struct {
	ID          ID      `json:"ID"`
	Name        string  `json:"Name"`
	Controlled  bool    `json:"Controlled"`
	Current     float64 `json:"Current"`
	Min         float64 `json:"Min"`
	Max         float64 `json:"Max"`
	ChangeRate  float64 `json:"ChangeRate"`
	CostPerUnit float64 `json:"CostPerUnit"`
	DemandSide  bool    `json:"DemandSide"`
}

func newSource(t Template) *Source {
	s := &Source{
		ID:          t.ID,
		Name:        t.Name,
		Controlled:  t.Controlled,
		Current:     t.Current,
		Min:         t.Min,
		Max:         t.Max,
		ChangeRate:  t.ChangeRate,
		CostPerUnit: t.CostPerUnit,
		DemandSide:  t.DemandSide,
	}
	s.Current = clamp(s.Current, s.Min, s.Max)
	return s
}

// Percent is Current as a percentage of Max
func (s Source) Percent() float64 {
	if s.Max == 0 {
		return 0
	}
	return s.Current / s.Max * 100
}

// DefaultTemplates returns the stock six-source grid.
func DefaultTemplates() []Template {
	return []Template{
		{ID: Hydro, Name: "Hydro", Controlled: true, Current: 8200, Min: 2000, Max: 14000, ChangeRate: 300, CostPerUnit: 2.17},
		{ID: Wind, Name: "Wind", Controlled: false, Current: 4500, Min: 500, Max: 8000, CostPerUnit: 2.04},
		{ID: Solar, Name: "Solar", Controlled: false, Current: 6000, Min: 0, Max: 9000, CostPerUnit: 5.01},
		{ID: Coal, Name: "Coal", Controlled: true, Current: 12000, Min: 4000, Max: 20000, ChangeRate: 250, CostPerUnit: 2.56},
		{ID: Gas, Name: "Gas", Controlled: true, Current: 9000, Min: 2000, Max: 15000, ChangeRate: 400, CostPerUnit: 3.00},
		{ID: DemandResponse, Name: "Demand Response", Controlled: true, Current: 0, Min: 0, Max: 5000, ChangeRate: 350, DemandSide: true},
	}
}

// LoadTemplates reads a JSON array of templates from configPath.
func LoadTemplates(configPath string) ([]Template, error) {
	jsonConfig, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	templates := make([]Template, 0)
	if err := json.Unmarshal(jsonConfig, &templates); err != nil {
		return nil, fmt.Errorf("energy templates %s: %w", configPath, err)
	}
	seen := make(map[ID]bool)
	for _, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("energy templates %s: template without ID", configPath)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("energy templates %s: duplicate ID %q", configPath, t.ID)
		}
		if t.Min > t.Max {
			return nil, fmt.Errorf("energy templates %s: %q has Min > Max", configPath, t.ID)
		}
		seen[t.ID] = true
	}
	return templates, nil
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
