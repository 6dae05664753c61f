package msg

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"
)

func TestSubscribe(t *testing.T) {
	pidPub, err := uuid.NewUUID()
	assert.NilError(t, err)

	pidSub1, err := uuid.NewUUID()
	assert.NilError(t, err)

	pidSub2, err := uuid.NewUUID()
	assert.NilError(t, err)

	pubsub := NewPublisher(pidPub)
	ch1, err := pubsub.Subscribe(pidSub1, Status)
	assert.NilError(t, err)
	ch2, err := pubsub.Subscribe(pidSub2, Status)
	assert.NilError(t, err)

	randValue := rand.Float64()
	pubsub.Publish(Status, randValue)

	incoming := <-ch1
	assert.Equal(t, incoming.Payload(), randValue, "first subscriber did not receive the published value")
	assert.Equal(t, incoming.PID(), pidPub)
	assert.Equal(t, incoming.Topic(), Status)

	incoming = <-ch2
	assert.Equal(t, incoming.Payload(), randValue, "second subscriber did not receive the published value")
}

func TestSubscribeTwiceFails(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	pid := uuid.New()

	_, err := pubsub.Subscribe(pid, Event)
	assert.NilError(t, err)

	_, err = pubsub.Subscribe(pid, Event)
	assert.ErrorContains(t, err, "already registered")
}

func TestTopicIsolation(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	ch, err := pubsub.Subscribe(uuid.New(), Event)
	assert.NilError(t, err)

	pubsub.Publish(Status, 1.0)
	pubsub.Publish(Event, "fired")

	m := <-ch
	assert.Equal(t, m.Payload(), "fired")
	assert.Equal(t, len(ch), 0)
}

func TestUnsubscribe(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	pid := uuid.New()
	chStatus, err := pubsub.Subscribe(pid, Status)
	assert.NilError(t, err)
	chEvent, err := pubsub.Subscribe(pid, Event)
	assert.NilError(t, err)

	pubsub.Unsubscribe(pid)

	_, ok := <-chStatus
	assert.Assert(t, !ok)
	_, ok = <-chEvent
	assert.Assert(t, !ok)

	// publishing after unsubscribe must not panic on a closed channel
	pubsub.Publish(Status, 1.0)
}

func TestPublishDoesNotBlock(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	ch, err := pubsub.Subscribe(uuid.New(), Status)
	assert.NilError(t, err)

	for i := 0; i < subscriberBuffer*2; i++ {
		pubsub.Publish(Status, i)
	}
	assert.Equal(t, len(ch), subscriberBuffer)
}

func TestClose(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	ch, err := pubsub.Subscribe(uuid.New(), Result)
	assert.NilError(t, err)

	pubsub.Close()
	_, ok := <-ch
	assert.Assert(t, !ok)

	_, err = pubsub.Subscribe(uuid.New(), Result)
	assert.ErrorContains(t, err, "closed")
}

func TestInbox(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	pid := uuid.New()

	inbox, err := Inbox(context.Background(), pubsub, pid, Status, Result)
	assert.NilError(t, err)

	pubsub.Publish(Status, 1)
	pubsub.Publish(Event, 2)
	pubsub.Publish(Result, 3)

	got := make(map[Topic]interface{})
	for i := 0; i < 2; i++ {
		m := <-inbox
		got[m.Topic()] = m.Payload()
	}
	assert.Equal(t, got[Status], 1)
	assert.Equal(t, got[Result], 3)

	pubsub.Unsubscribe(pid)
	_, ok := <-inbox
	assert.Assert(t, !ok)
}

func TestInboxRejectsDuplicate(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	pid := uuid.New()
	_, err := pubsub.Subscribe(pid, Result)
	assert.NilError(t, err)

	_, err = Inbox(context.Background(), pubsub, pid, Status, Result)
	assert.ErrorContains(t, err, "already registered")
}

func TestInboxCancelUnblocksStalledReader(t *testing.T) {
	pubsub := NewPublisher(uuid.New())
	pid := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())

	inbox, err := Inbox(ctx, pubsub, pid, Status, Result)
	assert.NilError(t, err)

	// nobody reads, so the merge goroutines end up parked on a full inbox
	for i := 0; i < 4*subscriberBuffer; i++ {
		pubsub.Publish(Status, i)
		pubsub.Publish(Result, i)
	}
	cancel()

	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-inbox:
			if !ok {
				_, err := pubsub.Subscribe(pid, Status)
				assert.NilError(t, err, "cancelled inbox still subscribed")
				return
			}
		case <-timeout:
			t.Fatal("inbox not closed after cancel")
		}
	}
}
