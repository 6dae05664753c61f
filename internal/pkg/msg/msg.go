package msg

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Topic is the class of a published message
type Topic int

const (
	// Status carries a live read model snapshot
	Status Topic = iota
	// Event carries a fired timeline event
	Event
	// Result carries the terminal statistics of a won level
	Result
)

func (t Topic) String() string {
	switch t {
	case Status:
		return "status"
	case Event:
		return "event"
	case Result:
		return "result"
	default:
		return "unknown"
	}
}

// Publisher is an interface for objects that allow subscription to their topics
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is the unit of communication between the simulation and its observers
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID
func (v Msg) PID() uuid.UUID {
	return v.sender
}

// Topic returns the message topic
func (v Msg) Topic() Topic {
	return v.topic
}

// Payload returns the message data
func (v Msg) Payload() interface{} {
	return v.payload
}

// PubSub fans published messages out to topic subscribers.
type PubSub struct {
	mux         *sync.Mutex
	pid         uuid.UUID
	subscribers map[Topic]map[uuid.UUID]chan Msg
	closed      bool
}

// subscriberBuffer bounds how far a slow subscriber may lag before messages drop.
const subscriberBuffer = 64

// NewPublisher returns an empty PubSub owned by pid
func NewPublisher(pid uuid.UUID) *PubSub {
	return &PubSub{
		mux:         &sync.Mutex{},
		pid:         pid,
		subscribers: make(map[Topic]map[uuid.UUID]chan Msg),
	}
}

// PID is the identifier stamped on every published message
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a read only channel for the topic broadcasts.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return nil, errors.New("publisher closed")
	}
	subs, ok := p.subscribers[topic]
	if !ok {
		subs = make(map[uuid.UUID]chan Msg)
		p.subscribers[topic] = subs
	}
	if _, exists := subs[pid]; exists {
		return nil, errors.New("subscriber " + pid.String() + " already registered to " + topic.String())
	}
	ch := make(chan Msg, subscriberBuffer)
	subs[pid] = ch
	return ch, nil
}

// Unsubscribe pid from all topic broadcasts and close its channels
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subscribers {
		if ch, ok := subs[pid]; ok {
			delete(subs, pid)
			close(ch)
		}
	}
}

// Publish sends the payload to every subscriber of topic. A full subscriber
// channel drops the message rather than blocking the simulation.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return
	}
	m := New(p.pid, topic, payload)
	for _, ch := range p.subscribers[topic] {
		select {
		case ch <- m:
		default:
		}
	}
}

// Close unsubscribes everyone; later publishes are discarded.
func (p *PubSub) Close() {
	p.mux.Lock()
	defer p.mux.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, subs := range p.subscribers {
		for pid, ch := range subs {
			delete(subs, pid)
			close(ch)
		}
	}
}

// Inbox subscribes pid to every topic and merges the broadcasts into one
// channel. The channel closes once all the topic channels are closed or ctx
// is done; in the latter case pid is unsubscribed.
func Inbox(ctx context.Context, system Publisher, pid uuid.UUID, topics ...Topic) (<-chan Msg, error) {
	inbox := make(chan Msg, subscriberBuffer)
	wg := &sync.WaitGroup{}
	for _, topic := range topics {
		ch, err := system.Subscribe(pid, topic)
		if err != nil {
			system.Unsubscribe(pid)
			return nil, err
		}
		wg.Add(1)
		go redirectMsg(ctx, ch, inbox, wg)
	}
	go func() {
		wg.Wait()
		if ctx.Err() != nil {
			system.Unsubscribe(pid)
		}
		close(inbox)
	}()
	return inbox, nil
}

func redirectMsg(ctx context.Context, chIn <-chan Msg, chOut chan<- Msg, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case m, ok := <-chIn:
			if !ok {
				return
			}
			select {
			case chOut <- m:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
