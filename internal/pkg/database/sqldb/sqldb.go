package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/ohowland/gridbalance/internal/pkg/msg"
	"github.com/ohowland/gridbalance/internal/pkg/sim"
	log "github.com/sirupsen/logrus"
)

// Supported drivers
const (
	MySQL    = "mysql"
	Postgres = "postgres"
)

const createResults = `CREATE TABLE IF NOT EXISTS level_results (
	session VARCHAR(36) NOT NULL,
	level_id INTEGER NOT NULL,
	level_name VARCHAR(128) NOT NULL,
	clock_ms BIGINT NOT NULL,
	balance_rate DOUBLE PRECISION NOT NULL,
	max_imbalance DOUBLE PRECISION NOT NULL,
	balance_grade VARCHAR(1) NOT NULL,
	total_cost DOUBLE PRECISION NOT NULL,
	average_cost DOUBLE PRECISION NOT NULL,
	cost_grade VARCHAR(1) NOT NULL,
	recorded_at TIMESTAMP NOT NULL
)`

const insertResult = `INSERT INTO level_results
	(session, level_id, level_name, clock_ms, balance_rate, max_imbalance, balance_grade, total_cost, average_cost, cost_grade, recorded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Handler appends every level result to a SQL table.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config Config
	stop   context.CancelFunc
	done   <-chan struct{}
}

// Config is the database connection configuration
type Config struct {
	Driver   string `json:"Driver"`
	Server   string `json:"Server"`
	Port     int    `json:"Port"`
	Username string `json:"Username"`
	Password string `json:"Password"`
	Database string `json:"Database"`
	SSLMode  string `json:"SSLMode"`
}

// PID is the handler's subscriber id
func (h Handler) PID() uuid.UUID {
	return h.pid
}

// New reads the JSON config at configPath and subscribes to results.
func New(configPath string, system msg.Publisher) (Handler, error) {
	jsonConfig, err := os.ReadFile(configPath)
	if err != nil {
		return Handler{}, err
	}
	cfg := Config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, fmt.Errorf("sql config %s: %w", configPath, err)
	}
	if cfg.Driver == "" {
		cfg.Driver = MySQL
	}
	if cfg.Driver != MySQL && cfg.Driver != Postgres {
		return Handler{}, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	pid := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	inbox, err := msg.Inbox(ctx, system, pid, msg.Result)
	if err != nil {
		cancel()
		return Handler{}, err
	}

	return Handler{
		inbox:  inbox,
		pid:    pid,
		config: cfg,
		stop:   cancel,
		done:   ctx.Done(),
	}, nil
}

// DSN renders the data source name for the configured driver.
func (c Config) DSN() string {
	addr := net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
	if c.Driver == Postgres {
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.Username, c.Password),
			Host:     addr,
			Path:     c.Database,
			RawQuery: "sslmode=" + sslmode,
		}
		return u.String()
	}

	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = addr
	mc.DBName = c.Database
	mc.ParseTime = true
	return mc.FormatDSN()
}

// Rebind rewrites ? placeholders as $n for postgres.
func Rebind(driver, query string) string {
	if driver != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DB opens, but does not connect, the configured database.
func (h Handler) DB() (*sql.DB, error) {
	return sql.Open(h.config.Driver, h.config.DSN())
}

func initDB(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, createResults)
	return err
}

func resultRow(r sim.Result, at time.Time) []interface{} {
	return []interface{}{
		r.Session.String(),
		r.LevelID,
		r.Level,
		r.Clock.Milliseconds(),
		r.Balance.BalanceRate,
		r.Balance.MaxImbalance,
		string(r.Balance.FinalGrade),
		r.Cost.TotalCost,
		r.Cost.AverageCost,
		string(r.Cost.Grade),
		at.UTC(),
	}
}

// Stop ends Process. It is safe to call more than once.
func (h Handler) Stop() {
	h.stop()
}

// Process connects, creates the table, then inserts results until Stop or
// the publisher closes.
func (h Handler) Process() error {
	db, err := h.DB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s %s: %w", h.config.Driver, h.config.Server, err)
	}
	if err := initDB(ctx, db); err != nil {
		return fmt.Errorf("create level_results: %w", err)
	}

	insert := Rebind(h.config.Driver, insertResult)
	log.Println("[SQL] Process Started")
loop:
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				break loop
			}
			r, ok := m.Payload().(sim.Result)
			if !ok {
				continue
			}
			if err := h.insert(db, insert, r); err != nil {
				log.WithField("session", r.Session).Printf("[SQL] error %s inserting result", err)
			}
		case <-h.done:
			break loop
		}
	}
	log.Println("[SQL] Process Shutdown")
	return nil
}

func (h Handler) insert(db *sql.DB, query string, r sim.Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := db.ExecContext(ctx, query, resultRow(r, time.Now())...)
	if pqErr, ok := err.(*pq.Error); ok {
		return fmt.Errorf("%s: %s", pqErr.Code.Name(), pqErr.Message)
	}
	return err
}
