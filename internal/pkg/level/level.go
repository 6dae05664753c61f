package level

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/ohowland/gridbalance/internal/pkg/energy"
	"github.com/ohowland/gridbalance/internal/pkg/timeline"
	"gopkg.in/yaml.v3"
)

//go:embed levels/*.yaml
var builtin embed.FS

// Level is one playable scenario: starting conditions, a scripted timeline
// and the condition that completes it.
type Level struct {
	ID          int           `yaml:"id" json:"ID"`
	Key         string        `yaml:"key" json:"Key"`
	Name        string        `yaml:"name" json:"Name"`
	Description string        `yaml:"description" json:"Description"`
	Difficulty  string        `yaml:"difficulty" json:"Difficulty"`
	Initial     Initial       `yaml:"initial" json:"Initial"`
	Events      []EventSpec   `yaml:"events" json:"Events"`
	Win         WinConditions `yaml:"win" json:"Win"`
}

// Initial conditions applied when the level starts.
type Initial struct {
	BaseDemand          float64               `yaml:"baseDemand" json:"BaseDemand"`
	Weather             Weather               `yaml:"weather" json:"Weather"`
	EnergyLimits        map[energy.ID]float64 `yaml:"energyLimits" json:"EnergyLimits"`
	DemandResponseBoost float64               `yaml:"demandResponseBoost" json:"DemandResponseBoost"`
}

// Weather holds starting intensities in percent.
type Weather struct {
	Sun  float64 `yaml:"sun" json:"Sun"`
	Wind float64 `yaml:"wind" json:"Wind"`
}

// EventSpec is the script form of a timeline event. Time is in seconds from
// level start.
type EventSpec struct {
	Time    float64   `yaml:"time" json:"Time"`
	Type    string    `yaml:"type" json:"Type"`
	Target  energy.ID `yaml:"target" json:"Target"`
	Value   float64   `yaml:"value" json:"Value"`
	Message string    `yaml:"message" json:"Message"`
}

// WinConditions is the tolerance in MW that must hold for Duration seconds.
type WinConditions struct {
	Tolerance float64 `yaml:"tolerance" json:"Tolerance"`
	Duration  float64 `yaml:"duration" json:"Duration"`
}

// HoldFor is Duration as a time.Duration.
func (w WinConditions) HoldFor() time.Duration {
	return seconds(w.Duration)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Event converts the script entry into a timeline event.
func (e EventSpec) Event() (timeline.Event, error) {
	var action timeline.Action
	switch timeline.Kind(e.Type) {
	case timeline.KindWeather:
		action = timeline.WeatherDelta{Target: e.Target, Percent: e.Value}
	case timeline.KindDemand:
		action = timeline.DemandDelta{MW: e.Value}
	case timeline.KindFailure:
		action = timeline.EnergyFailure{Target: e.Target, Percent: e.Value}
	case timeline.KindRecovery:
		action = timeline.EnergyRecovery{Target: e.Target, Percent: e.Value}
	case timeline.KindBoost:
		action = timeline.DemandResponseBoost{Factor: e.Value}
	case timeline.KindAnnouncement:
		action = timeline.Announcement{}
	default:
		return timeline.Event{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	return timeline.Event{
		At:      seconds(e.Time),
		Message: e.Message,
		Action:  action,
	}, nil
}

// Timeline converts every script entry, in script order.
func (l Level) Timeline() ([]timeline.Event, error) {
	events := make([]timeline.Event, 0, len(l.Events))
	for i, spec := range l.Events {
		e, err := spec.Event()
		if err != nil {
			return nil, fmt.Errorf("level %s event %d: %w", l.Key, i, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// Validate checks the fields a session cannot start without.
func (l Level) Validate() error {
	if l.Initial.BaseDemand <= 0 {
		return fmt.Errorf("level %s: base demand must be positive", l.Key)
	}
	if l.Win.Tolerance < 0 {
		return fmt.Errorf("level %s: negative tolerance", l.Key)
	}
	if l.Win.Duration <= 0 {
		return fmt.Errorf("level %s: win duration must be positive", l.Key)
	}
	for i, e := range l.Events {
		if e.Time < 0 {
			return fmt.Errorf("level %s event %d: negative time", l.Key, i)
		}
	}
	_, err := l.Timeline()
	return err
}

// Parse decodes a YAML or JSON level document.
func Parse(data []byte) (Level, error) {
	l := Level{}
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Level{}, err
	}
	if err := l.Validate(); err != nil {
		return Level{}, err
	}
	return l, nil
}

// Load reads a level document from path.
func Load(path string) (Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Level{}, err
	}
	l, err := Parse(data)
	if err != nil {
		return Level{}, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Builtin returns the levels shipped with the binary ordered by ID.
func Builtin() ([]Level, error) {
	paths, err := fs.Glob(builtin, "levels/*.yaml")
	if err != nil {
		return nil, err
	}
	levels := make([]Level, 0, len(paths))
	for _, p := range paths {
		data, err := builtin.ReadFile(p)
		if err != nil {
			return nil, err
		}
		l, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].ID < levels[j].ID })
	return levels, nil
}

// Find returns the built-in level with key, or the document at key when it
// names a file.
func Find(key string) (Level, error) {
	levels, err := Builtin()
	if err != nil {
		return Level{}, err
	}
	for _, l := range levels {
		if l.Key == key || fmt.Sprint(l.ID) == key {
			return l, nil
		}
	}
	if _, err := os.Stat(key); err == nil {
		return Load(key)
	}
	return Level{}, fmt.Errorf("no level %q", key)
}
