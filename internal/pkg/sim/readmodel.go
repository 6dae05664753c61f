package sim

import (
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/gridbalance/internal/pkg/balance"
	"github.com/ohowland/gridbalance/internal/pkg/cost"
	"github.com/ohowland/gridbalance/internal/pkg/demand"
	"github.com/ohowland/gridbalance/internal/pkg/energy"
	"github.com/ohowland/gridbalance/internal/pkg/timeline"
	"github.com/ohowland/gridbalance/internal/pkg/weather"
)

// SourceView is the display state of one energy source.
type SourceView struct {
	ID         energy.ID `json:"ID"`
	Name       string    `json:"Name"`
	Controlled bool      `json:"Controlled"`
	Current    float64   `json:"Current"`
	Min        float64   `json:"Min"`
	Max        float64   `json:"Max"`
	Percent    float64   `json:"Percent"`
}

// ReadModel is everything a dashboard needs to draw one frame.
type ReadModel struct {
	Session         uuid.UUID          `json:"Session"`
	LevelID         int                `json:"LevelID"`
	Level           string             `json:"Level"`
	Clock           time.Duration      `json:"Clock"`
	Sources         []SourceView       `json:"Sources"`
	TotalSupply     float64            `json:"TotalSupply"`
	EffectiveDemand float64            `json:"EffectiveDemand"`
	RawDemand       float64            `json:"RawDemand"`
	Reduction       float64            `json:"Reduction"`
	Load            demand.Load        `json:"Load"`
	Gap             float64            `json:"Gap"`
	Tolerance       float64            `json:"Tolerance"`
	Balanced        bool               `json:"Balanced"`
	Grade           balance.Grade      `json:"Grade"`
	StableProgress  float64            `json:"StableProgress"`
	FrequencyHz     float64            `json:"FrequencyHz"`
	FrequencyStatus string             `json:"FrequencyStatus"`
	Sun             float64            `json:"Sun"`
	Wind            float64            `json:"Wind"`
	Conditions      weather.Conditions `json:"Conditions"`
	CostRate        float64            `json:"CostRate"`
	TotalCost       float64            `json:"TotalCost"`
	Upcoming        []Notice           `json:"Upcoming"`
	Won             bool               `json:"Won"`
}

// Notice is the published form of a timeline event. Target is empty for
// events that do not act on a single source.
type Notice struct {
	At      time.Duration `json:"At"`
	Kind    timeline.Kind `json:"Kind"`
	Target  energy.ID     `json:"Target"`
	Message string        `json:"Message"`
}

func newNotice(e timeline.Event) Notice {
	n := Notice{At: e.At, Message: e.Message, Kind: timeline.KindAnnouncement}
	if e.Action != nil {
		n.Kind = e.Action.Kind()
	}
	switch a := e.Action.(type) {
	case timeline.WeatherDelta:
		n.Target = a.Target
	case timeline.EnergyFailure:
		n.Target = a.Target
	case timeline.EnergyRecovery:
		n.Target = a.Target
	case timeline.DemandResponseBoost:
		n.Target = energy.DemandResponse
	}
	return n
}

func notices(events []timeline.Event) []Notice {
	out := make([]Notice, 0, len(events))
	for _, e := range events {
		out = append(out, newNotice(e))
	}
	return out
}

// Result is the terminal statistics of a won level.
type Result struct {
	Session uuid.UUID          `json:"Session"`
	LevelID int                `json:"LevelID"`
	Level   string             `json:"Level"`
	Clock   time.Duration      `json:"Clock"`
	Balance balance.Statistics `json:"Balance"`
	Cost    cost.Statistics    `json:"Cost"`
}

// snapshot must be called with the session lock held.
func (s *Session) snapshot() ReadModel {
	sources := s.grid.Sources()
	views := make([]SourceView, 0, len(sources))
	for _, src := range sources {
		views = append(views, SourceView{
			ID:         src.ID,
			Name:       src.Name,
			Controlled: src.Controlled,
			Current:    src.Current,
			Min:        src.Min,
			Max:        src.Max,
			Percent:    src.Percent(),
		})
	}

	supply := s.grid.TotalSupply()
	effective := s.demand.Effective()
	rec := s.balance.Record()
	return ReadModel{
		Session:         s.pid,
		LevelID:         s.level.ID,
		Level:           s.level.Name,
		Clock:           s.timeline.Clock(),
		Sources:         views,
		TotalSupply:     supply,
		EffectiveDemand: effective,
		RawDemand:       s.demand.Raw(),
		Reduction:       s.demand.Reduction(),
		Load:            s.demand.Load(),
		Gap:             supply - effective,
		Tolerance:       rec.Tolerance,
		Balanced:        rec.Balanced,
		Grade:           s.balance.Grade(),
		StableProgress:  s.balance.StableProgress(),
		FrequencyHz:     rec.FrequencyHz,
		FrequencyStatus: s.balance.FrequencyStatus(),
		Sun:             s.weather.Sun(),
		Wind:            s.weather.Wind(),
		Conditions:      s.weather.Conditions(),
		CostRate:        s.cost.CurrentCostRate(),
		TotalCost:       s.cost.TotalCost(),
		Upcoming:        notices(s.timeline.Upcoming(s.config.UpcomingWindow)),
		Won:             s.result != nil,
	}
}
