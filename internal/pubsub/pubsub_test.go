package pubsub

import (
	"math"
	"sync"
	"testing"
	"time"
)

// fakeUpstream stands in for a broker. Published events are recorded and,
// when echo is set, broadcast back like JetStream does to every instance.
type fakeUpstream struct {
	mu        sync.Mutex
	echo      bool
	published []Event
	out       chan Event
}

func newFakeUpstream(echo bool) *fakeUpstream {
	return &fakeUpstream{echo: echo, out: make(chan Event, 10)}
}

func (u *fakeUpstream) Publish(ev Event) {
	u.mu.Lock()
	u.published = append(u.published, ev)
	u.mu.Unlock()
	if u.echo {
		u.out <- ev
	}
}

func (u *fakeUpstream) Subscribe() chan Event { return u.out }

func (u *fakeUpstream) Unsubscribe(chan Event) {}

func (u *fakeUpstream) sent() []Event {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Event(nil), u.published...)
}

func receive(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func expectNone(t *testing.T, ch chan Event) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFanoutDropsForFullSubscribersOnly(t *testing.T) {
	f := newFanout(1)
	slow := f.add()
	fast := f.add()

	if dropped := f.send(Event{Type: TypeRosterSelect}); dropped != 0 {
		t.Fatalf("first send should reach both, dropped %d", dropped)
	}
	<-fast
	if dropped := f.send(Event{Type: TypeRosterRemove}); dropped != 1 {
		t.Errorf("only the full subscriber should be skipped, dropped %d", dropped)
	}
	if ev := <-fast; ev.Type != TypeRosterRemove {
		t.Errorf("fast subscriber got %q", ev.Type)
	}
	if ev := <-slow; ev.Type != TypeRosterSelect {
		t.Errorf("slow subscriber should keep its first event, got %q", ev.Type)
	}
}

func TestFanoutRemove(t *testing.T) {
	f := newFanout(1)
	a, b := f.add(), f.add()

	if !f.remove(a) {
		t.Fatal("remove of a live channel should succeed")
	}
	if _, ok := <-a; ok {
		t.Error("removed channel should be closed")
	}
	if f.remove(a) {
		t.Error("second remove should report nothing removed")
	}
	if f.count() != 1 {
		t.Errorf("expected 1 subscriber, got %d", f.count())
	}

	f.closeAll()
	if _, ok := <-b; ok || f.count() != 0 {
		t.Error("closeAll should close and forget every channel")
	}
}

func TestPublishWithoutUpstreamIsLocal(t *testing.T) {
	ps := New()
	ch := ps.Subscribe()
	defer ps.Unsubscribe(ch)

	ps.Publish(NewEvent(TypeSessionOpen, map[string]string{"id": "s1", "kind": "team"}))
	ev := receive(t, ch)
	if ev.Type != TypeSessionOpen || ev.Payload["id"] != "s1" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestPublishWithUpstreamSkipsLocalDelivery(t *testing.T) {
	up := newFakeUpstream(false)
	ps := NewWithUpstream(up)
	ch := ps.Subscribe()
	defer ps.Unsubscribe(ch)

	ps.Publish(NewEvent(TypeTeamAnalysis, map[string]string{"verdict": "A_WINS"}))

	if sent := up.sent(); len(sent) != 1 || sent[0].Type != TypeTeamAnalysis {
		t.Fatalf("event should go upstream, got %+v", sent)
	}
	// Local subscribers only see what the broker sends back, so nothing
	// arrives twice once the broker echoes.
	expectNone(t, ch)
}

func TestUpstreamEchoReachesLocalSubscribersOnce(t *testing.T) {
	up := newFakeUpstream(true)
	ps := NewWithUpstream(up)
	ch := ps.Subscribe()
	defer ps.Unsubscribe(ch)

	ps.Publish(NewEvent(TypeLiveUpdate, map[string]int{"runs": 80}))
	if ev := receive(t, ch); ev.Type != TypeLiveUpdate {
		t.Errorf("unexpected event %+v", ev)
	}
	expectNone(t, ch)
}

func TestUpstreamEventsFromOtherInstances(t *testing.T) {
	up := newFakeUpstream(false)
	ps := NewWithUpstream(up)
	ch := ps.Subscribe()
	defer ps.Unsubscribe(ch)

	up.out <- NewEvent(TypeHistoryClear, nil)
	if ev := receive(t, ch); ev.Type != TypeHistoryClear || ev.Payload != nil {
		t.Errorf("unexpected event %+v", ev)
	}
	if len(up.sent()) != 0 {
		t.Error("relayed events must not be published back upstream")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ps := New()
	ch := ps.Subscribe()
	other := ps.Subscribe()
	ps.Unsubscribe(ch)

	if ps.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", ps.SubscriberCount())
	}
	ps.Publish(Event{Type: TypeSessionClose})
	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed, not fed")
	}
	if ev := receive(t, other); ev.Type != TypeSessionClose {
		t.Errorf("remaining subscriber got %+v", ev)
	}
	ps.Unsubscribe(ch)
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	ps := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		ch := ps.Subscribe()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ps.Publish(Event{Type: TypeLiveUpdate})
			}
		}()
		go func() {
			defer wg.Done()
			ps.Unsubscribe(ch)
		}()
	}
	wg.Wait()
	if ps.SubscriberCount() != 0 {
		t.Errorf("expected no subscribers, got %d", ps.SubscriberCount())
	}
}

func TestNewEventPayloadShapes(t *testing.T) {
	type strength struct {
		Batting float64 `json:"batting"`
		Total   float64 `json:"total"`
	}

	tests := []struct {
		name  string
		value any
		check func(t *testing.T, p map[string]interface{})
	}{
		{"struct uses json tags", strength{Batting: 18, Total: 30}, func(t *testing.T, p map[string]interface{}) {
			if p["batting"] != 18.0 || p["total"] != 30.0 {
				t.Errorf("unexpected payload %v", p)
			}
		}},
		{"scalar wrapped as value", 34.5, func(t *testing.T, p map[string]interface{}) {
			if p["value"] != 34.5 {
				t.Errorf("unexpected payload %v", p)
			}
		}},
		{"slice wrapped as value", []string{"P1", "P2"}, func(t *testing.T, p map[string]interface{}) {
			list, ok := p["value"].([]interface{})
			if !ok || len(list) != 2 || list[0] != "P1" {
				t.Errorf("unexpected payload %v", p)
			}
		}},
		{"nil has no payload", nil, func(t *testing.T, p map[string]interface{}) {
			if p != nil {
				t.Errorf("expected nil payload, got %v", p)
			}
		}},
		{"unencodable has no payload", math.NaN(), func(t *testing.T, p map[string]interface{}) {
			if p != nil {
				t.Errorf("expected nil payload, got %v", p)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewEvent(TypeTeamAnalysis, tt.value)
			if ev.Type != TypeTeamAnalysis {
				t.Errorf("type = %q", ev.Type)
			}
			tt.check(t, ev.Payload)
		})
	}
}
