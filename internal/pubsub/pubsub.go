package pubsub

import (
	"encoding/json"
	"sync"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
)

// Event types emitted by the analysis service
const (
	TypeRosterSelect = "roster:select"
	TypeRosterRemove = "roster:remove"
	TypeTeamAnalysis = "analysis:team"
	TypeLiveUpdate   = "live:update"
	TypeLiveAnalysis = "analysis:live"
	TypeSessionOpen  = "session:open"
	TypeSessionClose = "session:close"
	TypeHistoryClear = "history:clear"
)

const (
	localBufferSize   = 10
	upstreamBufferLen = 100
)

// Event represents a pubsub event
type Event struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// NewEvent builds an event whose payload is the JSON object form of v.
// Values that do not encode to an object are stored under "value".
func NewEvent(eventType string, v any) Event {
	ev := Event{Type: eventType}
	if v == nil {
		return ev
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("PubSub: payload not encodable", "type", eventType, "error", err)
		return ev
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		var value interface{}
		json.Unmarshal(data, &value)
		payload = map[string]interface{}{"value": value}
	}
	ev.Payload = payload
	return ev
}

// Upstream is an interface for upstream publishers (e.g., NATS)
type Upstream interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
}

// PubSub implements a simple publish-subscribe system
type PubSub struct {
	subs     *fanout
	upstream Upstream // Optional upstream publisher (e.g., NATS)
}

// New creates a new PubSub instance
func New() *PubSub {
	return &PubSub{subs: newFanout(localBufferSize)}
}

// NewWithUpstream creates a PubSub that bridges to an upstream publisher.
// Publish goes to the upstream only; local subscribers receive whatever the
// upstream broadcasts back, including events from other instances.
func NewWithUpstream(upstream Upstream) *PubSub {
	ps := &PubSub{
		subs:     newFanout(localBufferSize),
		upstream: upstream,
	}

	ch := upstream.Subscribe()
	go func() {
		logger.Debug("PubSub: Subscribed to upstream, waiting for events")
		for event := range ch {
			ps.publishLocal(event)
		}
		logger.Debug("PubSub: Upstream channel closed")
	}()

	return ps
}

// Subscribe adds a new subscriber and returns a channel for receiving events
func (ps *PubSub) Subscribe() chan Event {
	ch := ps.subs.add()
	logger.Debug("PubSub: New subscriber added", "totalSubscribers", ps.subs.count())
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (ps *PubSub) Unsubscribe(ch chan Event) {
	ps.subs.remove(ch)
}

// SubscriberCount reports the number of local subscribers
func (ps *PubSub) SubscriberCount() int {
	return ps.subs.count()
}

// Publish sends an event to all subscribers, via the upstream when one is configured
func (ps *PubSub) Publish(event Event) {
	if ps.upstream != nil {
		logger.Debug("PubSub: Forwarding to upstream", "type", event.Type)
		ps.upstream.Publish(event)
		return
	}
	ps.publishLocal(event)
}

func (ps *PubSub) publishLocal(event Event) {
	if dropped := ps.subs.send(event); dropped > 0 {
		logger.Debug("PubSub: Dropped event for slow subscribers", "type", event.Type, "dropped", dropped)
	}
}

// fanout delivers events to a set of buffered channels without blocking.
// Sends happen under the read lock so a channel is never closed mid-send.
type fanout struct {
	mu   sync.RWMutex
	subs []chan Event
	size int
}

func newFanout(size int) *fanout {
	return &fanout{subs: []chan Event{}, size: size}
}

func (f *fanout) add() chan Event {
	ch := make(chan Event, f.size)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch
}

func (f *fanout) remove(ch chan Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, sub := range f.subs {
		if sub == ch {
			close(ch)
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (f *fanout) send(event Event) (dropped int) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.subs {
		select {
		case ch <- event:
		default:
			dropped++
		}
	}
	return dropped
}

func (f *fanout) count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = []chan Event{}
}
