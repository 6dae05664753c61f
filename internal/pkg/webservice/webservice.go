package webservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/ohowland/gridbalance/internal/pkg/balance"
	"github.com/ohowland/gridbalance/internal/pkg/energy"
	"github.com/ohowland/gridbalance/internal/pkg/msg"
	"github.com/ohowland/gridbalance/internal/pkg/sim"
	log "github.com/sirupsen/logrus"
)

// Session is the simulation surface served over HTTP.
type Session interface {
	msg.Publisher
	Snapshot() sim.ReadModel
	ApplyControl(energy.ID, float64, time.Duration) bool
	Events() []sim.Notice
	History() []balance.Sample
	Result() (sim.Result, bool)
	Reset() error
}

// Config is the webservice configuration
type Config struct {
	Port        string        `json:"Port"`
	ControlStep time.Duration `json:"ControlStep"`
}

// Control is a request to move a source up (+1) or down (-1) for one step.
type Control struct {
	Source    energy.ID `json:"Source"`
	Direction float64   `json:"Direction"`
}

// ControlResponse reports whether a Control took effect.
type ControlResponse struct {
	Source  energy.ID `json:"Source"`
	Applied bool      `json:"Applied"`
	Current float64   `json:"Current"`
}

// App serves one session.
type App struct {
	session Session
	metrics http.Handler
	config  Config
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// New reads the JSON config at configPath. metrics may be nil.
func New(configPath string, session Session, metrics http.Handler) (*App, error) {
	jsonConfig, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg := Config{}
	if err := json.Unmarshal(jsonConfig, &cfg); err != nil {
		return nil, fmt.Errorf("webservice config %s: %w", configPath, err)
	}
	return NewApp(cfg, session, metrics), nil
}

// NewApp returns an App with a 100ms control step unless cfg sets one.
func NewApp(cfg Config, session Session, metrics http.Handler) *App {
	if cfg.ControlStep <= 0 {
		cfg.ControlStep = 100 * time.Millisecond
	}
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}
	return &App{session: session, metrics: metrics, config: cfg}
}

// Router wires every route.
func (app *App) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", app.BaseHandler)
	r.HandleFunc("/status", app.StatusHandler).Methods("GET")
	r.HandleFunc("/control/{source}", app.ControlHandler).Methods("POST")
	r.HandleFunc("/events", app.EventsHandler).Methods("GET")
	r.HandleFunc("/history", app.HistoryHandler).Methods("GET")
	r.HandleFunc("/result", app.ResultHandler).Methods("GET")
	r.HandleFunc("/reset", app.ResetHandler).Methods("POST")
	r.HandleFunc("/ws", app.StreamHandler)
	if app.metrics != nil {
		r.Handle("/metrics", app.metrics).Methods("GET")
	}
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (app *App) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: app.config.Port, Handler: app.Router()}
	errs := make(chan error, 1)
	go func() {
		log.Println("[Webservice] Starting Server on Port", app.config.Port)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		log.Println("[Webservice] Shutdown")
		return srv.Shutdown(shutdown)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Println("[Webservice] malformed JSON:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		log.Println("[Webservice]", err)
	}
}

func (app *App) BaseHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
}

func (app *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	writeJSON(w, http.StatusOK, app.session.Snapshot())
}

func (app *App) ControlHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ctrl := Control{}
	if err := json.Unmarshal(body, &ctrl); err != nil {
		log.Println("[Webservice] malformed JSON:", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ctrl.Source = energy.ID(vars["source"])

	resp := app.apply(ctrl)
	code := http.StatusCreated
	if !resp.Applied {
		code = http.StatusBadRequest
	}
	writeJSON(w, code, resp)
}

func (app *App) apply(ctrl Control) ControlResponse {
	applied := app.session.ApplyControl(ctrl.Source, ctrl.Direction, app.config.ControlStep)
	resp := ControlResponse{Source: ctrl.Source, Applied: applied}
	for _, s := range app.session.Snapshot().Sources {
		if s.ID == ctrl.Source {
			resp.Current = s.Current
		}
	}
	return resp
}

func (app *App) EventsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	writeJSON(w, http.StatusOK, app.session.Events())
}

func (app *App) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	writeJSON(w, http.StatusOK, app.session.History())
}

func (app *App) ResultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	result, ok := app.session.Result()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (app *App) ResetHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if err := app.session.Reset(); err != nil {
		log.Println("[Webservice] reset:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, app.session.Snapshot())
}

// StreamHandler upgrades to a websocket that pushes every status snapshot.
// Control messages sent by the client are applied like POST /control.
func (app *App) StreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[Webservice] upgrade:", err)
		return
	}
	pid := uuid.New()
	status, err := app.session.Subscribe(pid, msg.Status)
	if err != nil {
		log.Println("[Webservice]", err)
		conn.Close()
		return
	}

	go app.readPump(conn, pid)
	app.writePump(conn, status)
}

func (app *App) readPump(conn *websocket.Conn, pid uuid.UUID) {
	defer app.session.Unsubscribe(pid)
	for {
		ctrl := Control{}
		if err := conn.ReadJSON(&ctrl); err != nil {
			return
		}
		app.apply(ctrl)
	}
}

func (app *App) writePump(conn *websocket.Conn, status <-chan msg.Msg) {
	defer conn.Close()
	for m := range status {
		if err := conn.WriteJSON(m.Payload()); err != nil {
			return
		}
	}
}
