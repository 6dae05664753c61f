package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/gridbalance/internal/pkg/balance"
	"github.com/ohowland/gridbalance/internal/pkg/cost"
	"github.com/ohowland/gridbalance/internal/pkg/demand"
	"github.com/ohowland/gridbalance/internal/pkg/dispatch"
	"github.com/ohowland/gridbalance/internal/pkg/energy"
	"github.com/ohowland/gridbalance/internal/pkg/level"
	"github.com/ohowland/gridbalance/internal/pkg/msg"
	"github.com/ohowland/gridbalance/internal/pkg/timeline"
	"github.com/ohowland/gridbalance/internal/pkg/weather"
	log "github.com/sirupsen/logrus"
)

// Session owns every component of one level. Ticks, control commands and
// snapshots are serialized on a single mutex so adapters may call in from
// their own goroutines.
type Session struct {
	mux       *sync.Mutex
	pid       uuid.UUID
	level     level.Level
	templates []energy.Template
	config    Config
	publisher *msg.PubSub

	rng      *rand.Rand
	grid     *energy.Registry
	weather  *weather.Model
	demand   *demand.Model
	balance  *balance.Evaluator
	cost     *cost.Ledger
	timeline *timeline.Timeline

	ticks  int
	result *Result
}

// New builds a session for lvl on the given source templates and applies the
// level's initial conditions.
func New(lvl level.Level, templates []energy.Template, config Config) (*Session, error) {
	if err := lvl.Validate(); err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		templates = energy.DefaultTemplates()
	}
	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}

	s := &Session{
		mux:       &sync.Mutex{},
		pid:       pid,
		level:     lvl,
		templates: templates,
		config:    config,
		publisher: msg.NewPublisher(pid),
	}
	if err := s.start(); err != nil {
		return nil, err
	}
	log.WithField("session", pid).Printf("[Session] Level %d %q loaded", lvl.ID, lvl.Name)
	return s, nil
}

func (s *Session) start() error {
	events, err := s.level.Timeline()
	if err != nil {
		return err
	}

	s.rng = rand.New(rand.NewSource(s.config.Seed))
	s.grid = energy.New(s.templates)
	s.weather = weather.New(s.grid, s.config.Weather, s.rng)
	s.demand = demand.New(s.grid, s.config.Demand, s.rng)
	s.balance = balance.New(s.grid, s.demand)
	s.cost = cost.New(s.grid)
	s.timeline = timeline.New(timeline.Targets{
		Weather: s.weather,
		Demand:  s.demand,
		Grid:    s.grid,
	})
	s.timeline.OnFire(s.fired)

	initial := s.level.Initial
	s.grid.ApplyLevelLimits(initial.EnergyLimits)
	if initial.DemandResponseBoost > 0 {
		s.grid.ScaleMax(energy.DemandResponse, initial.DemandResponseBoost)
	}
	s.weather.SetInitial(initial.Weather.Sun, initial.Weather.Wind)
	s.demand.SetBaseDemand(initial.BaseDemand)
	s.balance.SetWinConditions(s.level.Win.Tolerance, s.level.Win.HoldFor())
	s.timeline.Load(events)

	s.ticks = 0
	s.result = nil
	return nil
}

// PID is the session identifier stamped on every published message
func (s *Session) PID() uuid.UUID {
	return s.pid
}

// Level returns the level definition the session plays.
func (s *Session) Level() level.Level {
	return s.level
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.config
}

// Subscribe implements msg.Publisher.
func (s *Session) Subscribe(pid uuid.UUID, topic msg.Topic) (<-chan msg.Msg, error) {
	return s.publisher.Subscribe(pid, topic)
}

// Unsubscribe implements msg.Publisher.
func (s *Session) Unsubscribe(pid uuid.UUID) {
	s.publisher.Unsubscribe(pid)
}

// Close releases every subscriber.
func (s *Session) Close() {
	s.publisher.Close()
}

// Tick advances every component by elapsed in fixed order. Once the level is
// won further ticks are ignored.
func (s *Session) Tick(elapsed time.Duration) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.result != nil || elapsed < 0 {
		return
	}

	s.grid.Update(elapsed)
	s.weather.Update(elapsed)
	s.demand.Update(elapsed)
	s.balance.Update(elapsed)
	s.cost.Update(elapsed)
	s.timeline.Update(elapsed)
	s.ticks++

	if s.balance.CheckWinCondition() {
		r := s.buildResult()
		s.result = &r
		log.WithField("session", s.pid).Printf("[Session] Level %d won at %v, balance %s cost %s",
			s.level.ID, r.Clock, r.Balance.FinalGrade, r.Cost.Grade)
		s.publisher.Publish(msg.Result, r)
	}

	if s.config.StatusEvery > 0 && (s.ticks%s.config.StatusEvery == 0 || s.result != nil) {
		s.publisher.Publish(msg.Status, s.snapshot())
	}
}

// ApplyControl moves a controllable source in the sign of direction for
// elapsed. It reports false for unknown or uncontrolled sources and after the
// level is won.
func (s *Session) ApplyControl(id energy.ID, direction float64, elapsed time.Duration) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.result != nil {
		return false
	}
	return s.grid.ApplyControlDelta(id, direction, elapsed)
}

// Dispatch lets d steer the controllable sources for elapsed. It returns the
// number of sources moved.
func (s *Session) Dispatch(d dispatch.Dispatcher, elapsed time.Duration) int {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.result != nil {
		return 0
	}
	rec := s.balance.Record()
	status := dispatch.Status{
		Gap:       s.grid.TotalSupply() - s.demand.Effective(),
		Tolerance: rec.Tolerance,
		Elapsed:   elapsed,
		Units:     s.grid.Sources(),
	}
	moved := 0
	for _, c := range d.Dispatch(status) {
		if s.grid.ApplyControlDelta(c.ID, c.Direction, elapsed) {
			moved++
		}
	}
	return moved
}

// Reset restarts the level from its initial conditions with the configured
// seed.
func (s *Session) Reset() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	if err := s.start(); err != nil {
		return err
	}
	log.WithField("session", s.pid).Printf("[Session] Level %d reset", s.level.ID)
	return nil
}

// Won reports whether the win condition has been met.
func (s *Session) Won() bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.result != nil
}

// Result returns the terminal result once the level is won.
func (s *Session) Result() (Result, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// Snapshot returns the read model of the current state.
func (s *Session) Snapshot() ReadModel {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.snapshot()
}

// Events returns the fired events in firing order.
func (s *Session) Events() []Notice {
	s.mux.Lock()
	defer s.mux.Unlock()
	return notices(s.timeline.Executed())
}

// History returns the once-per-second balance samples.
func (s *Session) History() []balance.Sample {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.balance.History()
}

func (s *Session) fired(e timeline.Event) {
	n := newNotice(e)
	log.WithField("session", s.pid).Printf("[Session] %v %s: %s", n.At, n.Kind, n.Message)
	s.publisher.Publish(msg.Event, n)
}

func (s *Session) buildResult() Result {
	return Result{
		Session: s.pid,
		LevelID: s.level.ID,
		Level:   s.level.Name,
		Clock:   s.timeline.Clock(),
		Balance: s.balance.Statistics(),
		Cost:    s.cost.Statistics(),
	}
}

// Run ticks the session every TickPeriod until ctx is cancelled or the level
// is won. Each tick advances the simulation by exactly TickPeriod; when d is
// not nil it dispatches before every tick.
func (s *Session) Run(ctx context.Context, d dispatch.Dispatcher) error {
	period := s.config.TickPeriod
	if period <= 0 {
		return fmt.Errorf("session %s: TickPeriod must be positive", s.pid)
	}
	log.WithField("session", s.pid).Println("[Session] Run loop started")
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if d != nil {
				s.Dispatch(d, period)
			}
			s.Tick(period)
			if s.Won() {
				log.WithField("session", s.pid).Println("[Session] Run loop finished")
				return nil
			}
		case <-ctx.Done():
			log.WithField("session", s.pid).Println("[Session] Run loop stopped")
			return ctx.Err()
		}
	}
}

// Simulate steps the session without a wall clock until the level is won or
// limit of simulated time has passed. It reports whether the level was won.
func (s *Session) Simulate(d dispatch.Dispatcher, limit time.Duration) bool {
	period := s.config.TickPeriod
	if period <= 0 {
		return false
	}
	for t := time.Duration(0); t < limit; t += period {
		if d != nil {
			s.Dispatch(d, period)
		}
		s.Tick(period)
		if s.Won() {
			return true
		}
	}
	return false
}
