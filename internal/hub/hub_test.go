package hub

import (
	"testing"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
)

func newClient(id, viewer string, privileged bool) *Client {
	return &Client{ID: id, Viewer: viewer, Privileged: privileged, Send: make(chan []byte, 4)}
}

func received(client *Client) int {
	count := 0
	for {
		select {
		case <-client.Send:
			count++
		default:
			return count
		}
	}
}

func TestBroadcastRespectsJobTypeFilter(t *testing.T) {
	h := New()
	all := newClient("all", "qc-1", true)
	lifterOnly := newClient("lifter", "qc-2", true)
	h.Register(all)
	h.Register(lifterOnly)
	h.UpdateSubscription(lifterOnly, Subscription{JobType: models.JobTypeWheelchairLifter})

	h.Broadcast([]byte("lifter event"), Meta{JobType: models.JobTypeWheelchairLifter})
	h.Broadcast([]byte("seat event"), Meta{JobType: models.JobTypeTurneySeat})

	if got := received(all); got != 2 {
		t.Fatalf("unfiltered client received %d messages", got)
	}
	if got := received(lifterOnly); got != 1 {
		t.Fatalf("filtered client received %d messages", got)
	}
}

func TestBroadcastScopesOwnedEvents(t *testing.T) {
	h := New()
	factory := newClient("factory", "qc-1", true)
	owner := newClient("owner", "rep-1", false)
	other := newClient("other", "rep-2", false)
	for _, client := range []*Client{factory, owner, other} {
		h.Register(client)
	}

	h.Broadcast([]byte("new job"), Meta{JobType: models.JobTypeWheelchairLifter, Owner: "rep-1"})

	if received(factory) != 1 {
		t.Fatal("privileged client must see owned events")
	}
	if received(owner) != 1 {
		t.Fatal("owner must see their own event")
	}
	if received(other) != 0 {
		t.Fatal("unrelated viewer must not see the event")
	}
}

func TestBroadcastDropsWhenClientBacklogged(t *testing.T) {
	h := New()
	slow := &Client{ID: "slow", Viewer: "qc-1", Privileged: true, Send: make(chan []byte, 1)}
	h.Register(slow)

	h.Broadcast([]byte("one"), Meta{})
	h.Broadcast([]byte("two"), Meta{}) // dropped, never blocks

	if got := received(slow); got != 1 {
		t.Fatalf("received %d messages, want 1", got)
	}
}

func TestParseSubscribe(t *testing.T) {
	msg, ok := ParseSubscribe([]byte(`{"action":"subscribe","job_type":"turney_seat"}`))
	if !ok || msg.JobType != "turney_seat" {
		t.Fatalf("parse subscribe: %+v %v", msg, ok)
	}
	if _, ok := ParseSubscribe([]byte(`{"action":"dance"}`)); ok {
		t.Fatal("unknown action must not parse")
	}
	if _, ok := ParseSubscribe([]byte(`not json`)); ok {
		t.Fatal("garbage must not parse")
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	h := New()
	client := newClient("c1", "qc-1", true)
	h.Register(client)
	h.Unregister(client)

	if _, open := <-client.Send; open {
		t.Fatal("send channel should be closed")
	}
	// A broadcast after unregister must not reach the closed channel.
	h.Broadcast([]byte("late"), Meta{})
}
