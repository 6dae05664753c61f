package natshandler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	"github.com/ohowland/gridbalance/internal/pkg/msg"
	log "github.com/sirupsen/logrus"
)

// Handler republishes session messages on a NATS server.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config Config
	stop   context.CancelFunc
	done   <-chan struct{}
}

// Config is the NATS connection configuration. Subjects are
// <Prefix>.<session>.<topic>.
type Config struct {
	Server string `json:"Server"`
	Prefix string `json:"Prefix"`
}

// PID is the handler's subscriber id
func (h Handler) PID() uuid.UUID {
	return h.pid
}

// New reads the JSON config at configPath and subscribes to system.
func New(configPath string, system msg.Publisher) (Handler, error) {
	jsonConfig, err := os.ReadFile(configPath)
	if err != nil {
		return Handler{}, err
	}
	cfg := Config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return Handler{}, fmt.Errorf("nats config %s: %w", configPath, err)
	}
	return NewHandler(cfg, system)
}

// NewHandler subscribes to every topic of system.
func NewHandler(cfg Config, system msg.Publisher) (Handler, error) {
	if cfg.Server == "" {
		cfg.Server = nats.DefaultURL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "gridbalance"
	}

	pid := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	inbox, err := msg.Inbox(ctx, system, pid, msg.Status, msg.Event, msg.Result)
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

// Subject names the NATS subject a message is published on.
func (h Handler) Subject(m msg.Msg) string {
	return strings.Join([]string{h.config.Prefix, m.PID().String(), m.Topic().String()}, ".")
}

func encode(m msg.Msg) ([]byte, error) {
	return json.Marshal(m.Payload())
}

// Stop ends Process. It is safe to call more than once.
func (h Handler) Stop() {
	h.stop()
}

// Process connects and publishes until Stop or the publisher closes.
func (h Handler) Process() error {
	log.Println("[NATS client] Process Started")
	nc, err := nats.Connect(h.config.Server)
	if err != nil {
		return fmt.Errorf("connect %s: %w", h.config.Server, err)
	}
	defer nc.Close()

loop:
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				break loop
			}
			data, err := encode(m)
			if err != nil {
				log.Println("[NATS client] malformed payload:", err)
				continue
			}
			if err := nc.Publish(h.Subject(m), data); err != nil {
				log.Printf("[NATS client] unable to publish to nats server: %v", err)
			}
		case <-h.done:
			break loop
		}
	}
	if err := nc.Flush(); err != nil {
		log.Println("[NATS client]", err)
	}
	log.Println("[NATS client] Process Shutdown")
	return nil
}
