package level

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ohowland/gridbalance/internal/pkg/energy"
	"github.com/ohowland/gridbalance/internal/pkg/timeline"
	"gotest.tools/v3/assert"
)

func TestBuiltin(t *testing.T) {
	levels, err := Builtin()
	assert.NilError(t, err)
	assert.Equal(t, len(levels), 6)

	for i, l := range levels {
		assert.Equal(t, l.ID, i+1)
		assert.Equal(t, l.Win.Tolerance, 1000.0)
		assert.Equal(t, l.Win.HoldFor(), 5*time.Second)
	}

	assert.Equal(t, levels[0].Name, "Summer Peak")
	assert.Equal(t, levels[0].Initial.BaseDemand, 35000.0)
	assert.Equal(t, levels[3].Initial.EnergyLimits[energy.Gas], 0.6)
	assert.Equal(t, levels[4].Initial.DemandResponseBoost, 1.3)
}

func TestTimelineConversion(t *testing.T) {
	l, err := Find("level6")
	assert.NilError(t, err)

	events, err := l.Timeline()
	assert.NilError(t, err)
	assert.Equal(t, len(events), 5)

	assert.Equal(t, events[0].At, 5*time.Second)
	assert.Equal(t, events[0].Action, timeline.Action(timeline.EnergyFailure{Target: energy.Coal, Percent: -30}))
	assert.Equal(t, events[3].Action, timeline.Action(timeline.DemandDelta{MW: -1000}))
	assert.Equal(t, events[4].Action.Kind(), timeline.KindRecovery)
}

func TestAnnouncementAndBoost(t *testing.T) {
	l, err := Find("5")
	assert.NilError(t, err)

	events, err := l.Timeline()
	assert.NilError(t, err)
	assert.Equal(t, events[0].Action.Kind(), timeline.KindAnnouncement)
	assert.Equal(t, events[2].Action, timeline.Action(timeline.DemandResponseBoost{Factor: 1.5}))
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, err := Parse([]byte(`
key: broken
initial: {baseDemand: 1000}
events:
  - {time: 1, type: meteor_strike}
win: {tolerance: 10, duration: 1}
`))
	assert.ErrorContains(t, err, "meteor_strike")
}

func TestParseValidates(t *testing.T) {
	_, err := Parse([]byte(`{"key": "nobase", "win": {"tolerance": 10, "duration": 1}}`))
	assert.ErrorContains(t, err, "base demand")

	_, err = Parse([]byte(`{"key": "nowin", "initial": {"baseDemand": 100}}`))
	assert.ErrorContains(t, err, "duration")
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	err := os.WriteFile(path, []byte(`{
		"id": 7,
		"key": "custom",
		"initial": {"baseDemand": 28000, "weather": {"sun": 40, "wind": 90}},
		"events": [{"time": 2.5, "type": "weather", "target": "solar", "value": 10}],
		"win": {"tolerance": 200, "duration": 8}
	}`), 0o644)
	assert.NilError(t, err)

	l, err := Find(path)
	assert.NilError(t, err)
	assert.Equal(t, l.Key, "custom")
	assert.Equal(t, l.Initial.Weather.Wind, 90.0)

	events, err := l.Timeline()
	assert.NilError(t, err)
	assert.Equal(t, events[0].At, 2500*time.Millisecond)
}

func TestFindMissing(t *testing.T) {
	_, err := Find("level99")
	assert.ErrorContains(t, err, "no level")
}
