package pubsub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
)

// DefaultStreamName is the JetStream stream holding analysis events
const DefaultStreamName = "ANALYSIS_EVENTS"

// NATSPubSub implements pub/sub using NATS JetStream. Every instance
// subscribes to the subject, so events published anywhere reach all
// local subscribers.
type NATSPubSub struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	sub     *nats.Subscription
	subject string
	subs    *fanout
}

// NewNATSPubSub connects to natsURL and ensures a file-backed stream exists
func NewNATSPubSub(natsURL, subject string) (*NATSPubSub, error) {
	nc, err := nats.Connect(natsURL, nats.Name("cricket-league-analysis"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ps, err := newNATSPubSub(nc, subject, &nats.StreamConfig{
		Name:     DefaultStreamName,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, err
	}
	return ps, nil
}

func newNATSPubSub(nc *nats.Conn, subject string, stream *nats.StreamConfig) (*NATSPubSub, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(stream.Name); err != nil {
		if _, err := js.AddStream(stream); err != nil {
			return nil, fmt.Errorf("failed to create stream %s: %w", stream.Name, err)
		}
		logger.Info("JetStream stream created", "stream", stream.Name, "subject", subject)
	}

	ps := &NATSPubSub{
		nc:      nc,
		js:      js,
		subject: subject,
		subs:    newFanout(upstreamBufferLen),
	}

	sub, err := js.Subscribe(subject, ps.handle, nats.ManualAck(), nats.DeliverNew())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	ps.sub = sub
	logger.Debug("Subscribed to JetStream", "subject", subject)

	return ps, nil
}

func (p *NATSPubSub) handle(msg *nats.Msg) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Error("Failed to unmarshal event from JetStream", "error", err)
		msg.Term()
		return
	}

	if dropped := p.subs.send(event); dropped > 0 {
		logger.Warn("NATS: Skipping slow subscribers", "event_type", event.Type, "dropped", dropped)
	}
	msg.Ack()
}

// Publish publishes an event to JetStream
func (p *NATSPubSub) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return
	}

	if _, err := p.js.Publish(p.subject, data); err != nil {
		logger.Error("Failed to publish to NATS", "error", err, "subject", p.subject, "event_type", event.Type)
		return
	}
	logger.Debug("Published event to NATS", "event_type", event.Type, "subject", p.subject)
}

// Subscribe creates a subscription channel for events
func (p *NATSPubSub) Subscribe() chan Event {
	return p.subs.add()
}

// Unsubscribe removes a subscription channel
func (p *NATSPubSub) Unsubscribe(ch chan Event) {
	p.subs.remove(ch)
}

// SubscriberCount returns the number of active local subscribers
func (p *NATSPubSub) SubscriberCount() int {
	return p.subs.count()
}

// Healthy reports whether the NATS connection is up
func (p *NATSPubSub) Healthy() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close stops the subscription and closes the connection
func (p *NATSPubSub) Close() {
	if p.sub != nil {
		p.sub.Unsubscribe()
	}
	p.subs.closeAll()
	if p.nc != nil {
		p.nc.Close()
	}
}
