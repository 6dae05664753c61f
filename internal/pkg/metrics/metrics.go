package metrics

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/ohowland/gridbalance/internal/pkg/msg"
	"github.com/ohowland/gridbalance/internal/pkg/sim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Collector mirrors session messages into Prometheus metrics.
type Collector struct {
	pid      uuid.UUID
	inbox    <-chan msg.Msg
	stop     context.CancelFunc
	done     <-chan struct{}
	gatherer prometheus.Gatherer

	Supply         prometheus.Gauge
	Demand         prometheus.Gauge
	Gap            prometheus.Gauge
	Frequency      prometheus.Gauge
	CostRate       prometheus.Gauge
	TotalCost      prometheus.Gauge
	StableProgress prometheus.Gauge
	SourceOutput   *prometheus.GaugeVec
	Events         *prometheus.CounterVec
	Wins           prometheus.Counter
}

// New registers the collector's metrics on reg, the default registry when
// nil, and subscribes to system.
func New(system msg.Publisher, reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{
		pid:      uuid.New(),
		stop:     cancel,
		done:     ctx.Done(),
		gatherer: gatherer,
		Supply: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbalance_supply_mw",
			Help: "Total supply side output in MW.",
		}),
		Demand: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbalance_effective_demand_mw",
			Help: "Demand after demand response in MW.",
		}),
		Gap: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbalance_gap_mw",
			Help: "Supply minus effective demand in MW.",
		}),
		Frequency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbalance_frequency_hz",
			Help: "Modelled grid frequency.",
		}),
		CostRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbalance_cost_rate",
			Help: "Generation spend per second at present output.",
		}),
		TotalCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbalance_total_cost",
			Help: "Accumulated generation spend.",
		}),
		StableProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridbalance_stable_progress",
			Help: "Fraction of the required stable time achieved.",
		}),
		SourceOutput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridbalance_source_output_mw",
			Help: "Output of each energy source in MW.",
		}, []string{"source"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbalance_events_total",
			Help: "Timeline events fired, labeled by kind.",
		}, []string{"kind"}),
		Wins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbalance_wins_total",
			Help: "Levels won.",
		}),
	}

	collectors := []prometheus.Collector{
		c.Supply, c.Demand, c.Gap, c.Frequency, c.CostRate, c.TotalCost,
		c.StableProgress, c.SourceOutput, c.Events, c.Wins,
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			cancel()
			return nil, err
		}
	}

	inbox, err := msg.Inbox(ctx, system, c.pid, msg.Status, msg.Event, msg.Result)
	if err != nil {
		cancel()
		return nil, err
	}
	c.inbox = inbox
	return c, nil
}

// PID is the collector's subscriber id
func (c *Collector) PID() uuid.UUID {
	return c.pid
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Observe applies one message to the metrics.
func (c *Collector) Observe(m msg.Msg) {
	switch m.Topic() {
	case msg.Status:
		rm, ok := m.Payload().(sim.ReadModel)
		if !ok {
			return
		}
		c.Supply.Set(rm.TotalSupply)
		c.Demand.Set(rm.EffectiveDemand)
		c.Gap.Set(rm.Gap)
		c.Frequency.Set(rm.FrequencyHz)
		c.CostRate.Set(rm.CostRate)
		c.TotalCost.Set(rm.TotalCost)
		c.StableProgress.Set(rm.StableProgress)
		for _, s := range rm.Sources {
			c.SourceOutput.WithLabelValues(string(s.ID)).Set(s.Current)
		}
	case msg.Event:
		if n, ok := m.Payload().(sim.Notice); ok {
			c.Events.WithLabelValues(string(n.Kind)).Inc()
		}
	case msg.Result:
		c.Wins.Inc()
	}
}

// Stop ends Process and releases the subscription. It is safe to call more
// than once.
func (c *Collector) Stop() {
	c.stop()
}

// Process consumes the inbox until Stop or the publisher closes.
func (c *Collector) Process() {
	log.Println("[Metrics] Process Started")
loop:
	for {
		select {
		case m, ok := <-c.inbox:
			if !ok {
				break loop
			}
			c.Observe(m)
		case <-c.done:
			break loop
		}
	}
	log.Println("[Metrics] Process Shutdown")
}
