package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ohowland/gridbalance/internal/pkg/comm/modbuscomm"
	"github.com/ohowland/gridbalance/internal/pkg/database/mongodb"
	"github.com/ohowland/gridbalance/internal/pkg/database/sqldb"
	"github.com/ohowland/gridbalance/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/gridbalance/internal/pkg/dispatch"
	"github.com/ohowland/gridbalance/internal/pkg/energy"
	"github.com/ohowland/gridbalance/internal/pkg/hmi"
	"github.com/ohowland/gridbalance/internal/pkg/level"
	"github.com/ohowland/gridbalance/internal/pkg/metrics"
	"github.com/ohowland/gridbalance/internal/pkg/sim"
	"github.com/ohowland/gridbalance/internal/pkg/webservice"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// sessionFlags are shared by every command that builds a session.
type sessionFlags struct {
	level   string
	config  string
	sources string
	seed    int64
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.level, "level", "l", "level1", "built-in level key or id, or a YAML/JSON level file")
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "session config JSON")
	cmd.Flags().StringVar(&f.sources, "sources", "", "energy source templates JSON, overrides the config EnergyConfig")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "random seed, overrides the config")
}

func (f *sessionFlags) session() (*sim.Session, error) {
	lvl, err := level.Find(f.level)
	if err != nil {
		return nil, err
	}

	cfg := sim.DefaultConfig()
	if f.config != "" {
		if cfg, err = sim.LoadConfig(f.config); err != nil {
			return nil, err
		}
	}
	if f.seed != 0 {
		cfg.Seed = f.seed
	}

	var templates []energy.Template
	sources := cfg.EnergyConfig
	if f.sources != "" {
		sources = f.sources
	}
	if sources != "" {
		if templates, err = energy.LoadTemplates(sources); err != nil {
			return nil, err
		}
	}
	return sim.New(lvl, templates, cfg)
}

func levelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "List the built-in levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			levels, err := level.Builtin()
			if err != nil {
				return err
			}
			for _, l := range levels {
				fmt.Fprintf(cmd.OutOrStdout(), "%d  %-8s %-28s %-7s %s\n", l.ID, l.Key, l.Name, l.Difficulty, l.Description)
			}
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var flags sessionFlags
	var limit time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play a level headless with the merit order autopilot and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := flags.session()
			if err != nil {
				return err
			}
			defer s.Close()

			if !s.Simulate(dispatch.MeritOrder{}, limit) {
				return fmt.Errorf("level %q not balanced within %v", s.Level().Key, limit)
			}
			result, _ := s.Result()
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&limit, "limit", 5*time.Minute, "simulated time budget")
	return cmd
}

// services holds the optional adapter config paths for serve.
type services struct {
	webservice string
	nats       string
	mongo      string
	sql        string
	modbus     string
}

func serveCmd() *cobra.Command {
	var flags sessionFlags
	var svc services
	var autopilot bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a level on the wall clock behind the HTTP, websocket and telemetry adapters",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := flags.session()
			if err != nil {
				return err
			}
			defer s.Close()
			return serve(ctx, s, svc, autopilot)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&svc.webservice, "webservice", "", "webservice config JSON")
	cmd.Flags().StringVar(&svc.nats, "nats", "", "NATS publisher config JSON")
	cmd.Flags().StringVar(&svc.mongo, "mongo", "", "MongoDB store config JSON")
	cmd.Flags().StringVar(&svc.sql, "sql", "", "SQL result ledger config JSON")
	cmd.Flags().StringVar(&svc.modbus, "modbus", "", "modbus control panel config JSON")
	cmd.Flags().BoolVar(&autopilot, "autopilot", false, "dispatch with the merit order autopilot")
	return cmd
}

func serve(ctx context.Context, s *sim.Session, svc services, autopilot bool) error {
	log.Println("[Main] Starting gridbalance")
	wg := &sync.WaitGroup{}
	background := func(name string, process func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := process(); err != nil {
				log.Printf("[Main] %s stopped: %v", name, err)
			}
		}()
	}

	log.Println("[Main] Linking Metrics")
	collector, err := metrics.New(s, nil)
	if err != nil {
		return err
	}
	background("metrics", func() error { collector.Process(); return nil })

	if svc.nats != "" {
		log.Println("[Main] Linking NATS")
		h, err := natshandler.New(svc.nats, s)
		if err != nil {
			return err
		}
		background("nats", h.Process)
	}
	if svc.mongo != "" {
		log.Println("[Main] Linking MongoDB")
		h, err := mongodb.New(svc.mongo, s)
		if err != nil {
			return err
		}
		background("mongodb", h.Process)
	}
	if svc.sql != "" {
		log.Println("[Main] Linking SQL")
		h, err := sqldb.New(svc.sql, s)
		if err != nil {
			return err
		}
		background("sql", h.Process)
	}
	if svc.modbus != "" {
		log.Println("[Main] Linking Modbus Panel")
		panel, err := modbuscomm.LoadPanel(svc.modbus, s)
		if err != nil {
			return err
		}
		go panel.Process()
		defer panel.Stop()
	}

	var app *webservice.App
	if svc.webservice != "" {
		app, err = webservice.New(svc.webservice, s, collector.Handler())
		if err != nil {
			return err
		}
	} else {
		app = webservice.NewApp(webservice.Config{}, s, collector.Handler())
	}
	background("webservice", func() error { return app.ListenAndServe(ctx) })

	var d dispatch.Dispatcher
	if autopilot {
		d = dispatch.MeritOrder{}
	}
	for s.Run(ctx, d) == nil {
		result, _ := s.Result()
		log.WithField("session", s.PID()).Printf("[Main] Level complete in %v, balance grade %s, cost grade %s",
			result.Clock, result.Balance.FinalGrade, result.Cost.Grade)
		if !awaitReset(ctx, s) {
			break
		}
	}

	log.Println("[Main] Shutdown")
	s.Close()
	wg.Wait()
	return nil
}

// awaitReset blocks until the won session is reset over HTTP. It reports
// false when ctx ends first.
func awaitReset(ctx context.Context, s *sim.Session) bool {
	ticker := time.NewTicker(s.Config().TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !s.Won() {
				return true
			}
		case <-ctx.Done():
			return false
		}
	}
}

func playCmd() *cobra.Command {
	var flags sessionFlags
	var step time.Duration

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a level in the terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := flags.session()
			if err != nil {
				return err
			}
			defer s.Close()

			// the dashboard owns the terminal
			log.SetOutput(io.Discard)

			go func() {
				if err := s.Run(ctx, nil); err != nil && err != context.Canceled {
					log.Println("[Main]", err)
				}
			}()
			return hmi.New(s, step).Run(ctx, 100*time.Millisecond)
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&step, "step", 250*time.Millisecond, "ramp time applied per key press")
	return cmd
}
