package natshandler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	nats "github.com/nats-io/nats.go"
	"github.com/ohowland/gridbalance/internal/pkg/msg"
	"github.com/ohowland/gridbalance/internal/pkg/sim"
	"gotest.tools/v3/assert"
)

func newHandler(t *testing.T, pub *msg.PubSub) Handler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nats_config.json")
	assert.NilError(t, os.WriteFile(path, []byte(`{"Prefix": "grid"}`), 0o644))
	h, err := New(path, pub)
	assert.NilError(t, err)
	return h
}

func TestConfigDefaults(t *testing.T) {
	h := newHandler(t, msg.NewPublisher(uuid.New()))
	assert.Equal(t, h.config.Server, nats.DefaultURL)
	assert.Equal(t, h.config.Prefix, "grid")
}

func TestSubject(t *testing.T) {
	pid := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	h := newHandler(t, msg.NewPublisher(pid))

	assert.Equal(t, h.Subject(msg.New(pid, msg.Status, nil)), "grid.6ba7b810-9dad-11d1-80b4-00c04fd430c8.status")
	assert.Equal(t, h.Subject(msg.New(pid, msg.Result, nil)), "grid.6ba7b810-9dad-11d1-80b4-00c04fd430c8.result")
}

func TestEncode(t *testing.T) {
	data, err := encode(msg.New(uuid.New(), msg.Event, sim.Notice{At: time.Second, Kind: "weather", Message: "cloud"}))
	assert.NilError(t, err)

	n := sim.Notice{}
	assert.NilError(t, json.Unmarshal(data, &n))
	assert.Equal(t, n.Message, "cloud")
	assert.Equal(t, n.At, time.Second)
}

func TestProcessEndsWhenPublisherCloses(t *testing.T) {
	if testing.Short() {
		t.Skip("needs a nats server")
	}
	nc, err := nats.Connect(nats.DefaultURL)
	if err != nil {
		t.Skipf("no nats server: %v", err)
	}
	defer nc.Close()

	pub := msg.NewPublisher(uuid.New())
	h := newHandler(t, pub)
	received := make(chan *nats.Msg, 1)
	sub, err := nc.Subscribe("grid.>", func(m *nats.Msg) { received <- m })
	assert.NilError(t, err)
	defer sub.Unsubscribe()
	assert.NilError(t, nc.Flush())

	done := make(chan error)
	go func() { done <- h.Process() }()
	time.Sleep(100 * time.Millisecond)
	pub.Publish(msg.Status, map[string]float64{"Gap": 12})

	select {
	case m := <-received:
		assert.Equal(t, m.Subject, "grid."+pub.PID().String()+".status")
		assert.Equal(t, string(m.Data), `{"Gap":12}`)
	case <-time.After(2 * time.Second):
		t.Fatal("nothing received")
	}

	pub.Close()
	assert.NilError(t, <-done)
}
