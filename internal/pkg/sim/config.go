package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ohowland/gridbalance/internal/pkg/demand"
	"github.com/ohowland/gridbalance/internal/pkg/weather"
)

// Config is the session runtime configuration. Durations are nanoseconds in
// JSON.
type Config struct {
	Seed           int64          `json:"Seed"`
	TickPeriod     time.Duration  `json:"TickPeriod"`
	StatusEvery    int            `json:"StatusEvery"`
	UpcomingWindow time.Duration  `json:"UpcomingWindow"`
	EnergyConfig   string         `json:"EnergyConfig"`
	Weather        weather.Config `json:"Weather"`
	Demand         demand.Config  `json:"Demand"`
}

// DefaultConfig ticks at 10 Hz and publishes a status every tick.
func DefaultConfig() Config {
	return Config{
		Seed:           1,
		TickPeriod:     100 * time.Millisecond,
		StatusEvery:    1,
		UpcomingWindow: 10 * time.Second,
		Weather:        weather.DefaultConfig(),
		Demand:         demand.DefaultConfig(),
	}
}

// LoadConfig reads a JSON config from configPath over the defaults.
func LoadConfig(configPath string) (Config, error) {
	cfg := DefaultConfig()
	jsonConfig, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return cfg, fmt.Errorf("session config %s: %w", configPath, err)
	}
	if cfg.TickPeriod <= 0 {
		return cfg, fmt.Errorf("session config %s: TickPeriod must be positive", configPath)
	}
	return cfg, nil
}
