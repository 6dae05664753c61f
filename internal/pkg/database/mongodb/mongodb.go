package mongodb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/gridbalance/internal/pkg/msg"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	StatusCollection = "sessionStatus"
	EventCollection  = "sessionEvents"
	ResultCollection = "levelResults"
)

// Handler stores the latest status of each session, every fired event and
// every result.
type Handler struct {
	inbox  <-chan msg.Msg
	pid    uuid.UUID
	config Config
	stop   context.CancelFunc
	done   <-chan struct{}
}

// Config is the MongoDB connection configuration
type Config struct {
	URI      string        `json:"URI"`
	Port     string        `json:"Port"`
	Database string        `json:"Database"`
	Timeout  time.Duration `json:"Timeout"`
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
		return Handler{}, fmt.Errorf("mongodb config %s: %w", configPath, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
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

func (h Handler) uri() string {
	if h.config.Port == "" {
		return h.config.URI
	}
	return h.config.URI + ":" + h.config.Port
}

// payload converts a message payload to BSON through its JSON form, so the
// stored fields carry the same names the webservice serves.
func payload(m msg.Msg) (interface{}, error) {
	data, err := json.Marshal(m.Payload())
	if err != nil {
		return nil, err
	}
	wrapped := bson.M{}
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+string(data)+`}`), false, &wrapped); err != nil {
		return nil, err
	}
	return wrapped["v"], nil
}

func statusFilter(m msg.Msg) bson.M {
	return bson.M{"session": m.PID().String()}
}

func statusUpdate(m msg.Msg) (bson.D, error) {
	data, err := payload(m)
	if err != nil {
		return nil, err
	}
	return bson.D{
		{Key: "$set", Value: bson.M{
			"session": m.PID().String(),
			"data":    data,
		}},
	}, nil
}

func document(m msg.Msg) (bson.M, error) {
	data, err := payload(m)
	if err != nil {
		return nil, err
	}
	return bson.M{
		"session": m.PID().String(),
		"topic":   m.Topic().String(),
		"data":    data,
	}, nil
}

// Stop ends Process. It is safe to call more than once.
func (h Handler) Stop() {
	h.stop()
}

// Process connects and writes until Stop or the publisher closes.
func (h Handler) Process() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(h.uri()))
	cancel()
	if err != nil {
		return fmt.Errorf("connect %s: %w", h.uri(), err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(h.config.Database)
	log.Println("[Mongo] Process Started")
loop:
	for {
		select {
		case m, ok := <-h.inbox:
			if !ok {
				break loop
			}
			if err := h.write(db, m); err != nil {
				log.WithField("session", m.PID()).Println("[Mongo]", err)
			}
		case <-h.done:
			break loop
		}
	}
	log.Println("[Mongo] Process Shutdown")
	return nil
}

func (h Handler) write(db *mongo.Database, m msg.Msg) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	switch m.Topic() {
	case msg.Status:
		update, err := statusUpdate(m)
		if err != nil {
			return err
		}
		opts := options.Update().SetUpsert(true)
		_, err = db.Collection(StatusCollection).UpdateOne(ctx, statusFilter(m), update, opts)
		return err
	case msg.Event, msg.Result:
		doc, err := document(m)
		if err != nil {
			return err
		}
		coll := EventCollection
		if m.Topic() == msg.Result {
			coll = ResultCollection
		}
		_, err = db.Collection(coll).InsertOne(ctx, doc)
		return err
	}
	return nil
}
