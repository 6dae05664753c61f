package timeline

import "github.com/ohowland/gridbalance/internal/pkg/energy"

// Kind names an action variant. The strings match the level script format.
type Kind string

const (
	KindWeather      Kind = "weather"
	KindDemand       Kind = "demand_change"
	KindFailure      Kind = "energy_failure"
	KindRecovery     Kind = "energy_recovery"
	KindBoost        Kind = "demand_response_boost"
	KindAnnouncement Kind = "system_message"
)

// WeatherTarget is the weather model surface events drive.
type WeatherTarget interface {
	AdjustSun(delta float64)
	AdjustWind(delta float64)
}

// DemandTarget is the demand model surface events drive.
type DemandTarget interface {
	AdjustDemand(delta float64)
}

// GridTarget is the energy registry surface events drive.
type GridTarget interface {
	ApplyPercentDelta(id energy.ID, percent float64) bool
	ScaleMax(id energy.ID, factor float64) bool
}

// Targets are the components an Action may mutate.
type Targets struct {
	Weather WeatherTarget
	Demand  DemandTarget
	Grid    GridTarget
}

// Action is the effect of a scheduled event. The set of variants is closed.
type Action interface {
	Kind() Kind
	apply(Targets)
}

// WeatherDelta shifts sun (Target solar) or wind (Target wind) intensity by
// Percent points.
type WeatherDelta struct {
	Target  energy.ID `json:"Target"`
	Percent float64   `json:"Percent"`
}

func (WeatherDelta) Kind() Kind { return KindWeather }

func (a WeatherDelta) apply(t Targets) {
	if t.Weather == nil {
		return
	}
	switch a.Target {
	case energy.Solar:
		t.Weather.AdjustSun(a.Percent)
	case energy.Wind:
		t.Weather.AdjustWind(a.Percent)
	}
}

// DemandDelta shifts the current demand by MW.
type DemandDelta struct {
	MW float64 `json:"MW"`
}

func (DemandDelta) Kind() Kind { return KindDemand }

func (a DemandDelta) apply(t Targets) {
	if t.Demand != nil {
		t.Demand.AdjustDemand(a.MW)
	}
}

// EnergyFailure cuts a source by Percent of its present output. Percent is
// normally negative.
type EnergyFailure struct {
	Target  energy.ID `json:"Target"`
	Percent float64   `json:"Percent"`
}

func (EnergyFailure) Kind() Kind { return KindFailure }

func (a EnergyFailure) apply(t Targets) {
	if t.Grid != nil {
		t.Grid.ApplyPercentDelta(a.Target, a.Percent)
	}
}

// EnergyRecovery restores a source by Percent of its present output.
type EnergyRecovery struct {
	Target  energy.ID `json:"Target"`
	Percent float64   `json:"Percent"`
}

func (EnergyRecovery) Kind() Kind { return KindRecovery }

func (a EnergyRecovery) apply(t Targets) {
	if t.Grid != nil {
		t.Grid.ApplyPercentDelta(a.Target, a.Percent)
	}
}

// DemandResponseBoost rescales the demand response ceiling to Factor times
// its nominal maximum.
type DemandResponseBoost struct {
	Factor float64 `json:"Factor"`
}

func (DemandResponseBoost) Kind() Kind { return KindBoost }

func (a DemandResponseBoost) apply(t Targets) {
	if t.Grid != nil {
		t.Grid.ScaleMax(energy.DemandResponse, a.Factor)
	}
}

// Announcement only carries its event message.
type Announcement struct{}

func (Announcement) Kind() Kind { return KindAnnouncement }

func (Announcement) apply(Targets) {}
