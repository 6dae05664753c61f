package mongodb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/gridbalance/internal/pkg/msg"
	"github.com/ohowland/gridbalance/internal/pkg/sim"
	"go.mongodb.org/mongo-driver/bson"
	"gotest.tools/v3/assert"
)

func TestNewReadsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mongo_config.json")
	assert.NilError(t, os.WriteFile(path, []byte(`{"URI": "mongodb://localhost", "Port": "27017", "Database": "grid"}`), 0o644))

	h, err := New(path, msg.NewPublisher(uuid.New()))
	assert.NilError(t, err)
	assert.Equal(t, h.uri(), "mongodb://localhost:27017")
	assert.Equal(t, h.config.Database, "grid")
	assert.Equal(t, h.config.Timeout, 5*time.Second)
}

func TestStatusUpdate(t *testing.T) {
	pid := uuid.New()
	m := msg.New(pid, msg.Status, sim.ReadModel{Level: "Summer Peak", Gap: 12.5})

	assert.DeepEqual(t, statusFilter(m), bson.M{"session": pid.String()})

	update, err := statusUpdate(m)
	assert.NilError(t, err)
	assert.Equal(t, len(update), 1)
	assert.Equal(t, update[0].Key, "$set")

	set, ok := update[0].Value.(bson.M)
	assert.Assert(t, ok)
	data, ok := set["data"].(bson.M)
	assert.Assert(t, ok)
	assert.Equal(t, data["Level"], "Summer Peak")
	assert.Equal(t, data["Gap"], 12.5)
}

func TestDocument(t *testing.T) {
	pid := uuid.New()
	doc, err := document(msg.New(pid, msg.Event, sim.Notice{Kind: "weather", Message: "cloud"}))
	assert.NilError(t, err)
	assert.Equal(t, doc["session"], pid.String())
	assert.Equal(t, doc["topic"], "event")

	data, ok := doc["data"].(bson.M)
	assert.Assert(t, ok)
	assert.Equal(t, data["Message"], "cloud")

	doc, err = document(msg.New(pid, msg.Event, "plain"))
	assert.NilError(t, err)
	assert.Equal(t, doc["data"], "plain")
}

func TestPayloadRejectsUnencodable(t *testing.T) {
	_, err := payload(msg.New(uuid.New(), msg.Status, make(chan int)))
	assert.Assert(t, err != nil)
}
