package main

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/assert/v2"
)

func newTestClient() *wsClient {
	return &wsClient{send: make(chan []byte, wsSendBuffer)}
}

func recvEvent(t *testing.T, c *wsClient) wsEvent {
	t.Helper()
	select {
	case msg := <-c.send:
		var ev wsEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return ev
	default:
		t.Fatal("no frame queued")
	}
	return wsEvent{}
}

func TestBroadcastReachesAllRoomMembers(t *testing.T) {
	hub := NewHub()
	actor, viewer := newTestClient(), newTestClient()
	hub.join(7, actor)
	hub.join(7, viewer)

	hub.Broadcast(7, "card:created", map[string]any{"id": 1})

	// The originator is not excluded: both subscribers see the event.
	for _, c := range []*wsClient{actor, viewer} {
		ev := recvEvent(t, c)
		assert.Equal(t, ev.Event, "card:created")
		assert.Equal(t, ev.BoardID, int64(7))
	}
}

func TestBroadcastScopedToRoom(t *testing.T) {
	hub := NewHub()
	a, b := newTestClient(), newTestClient()
	hub.join(1, a)
	hub.join(2, b)

	hub.Broadcast(1, "list:created", nil)

	assert.Equal(t, len(a.send), 1)
	assert.Equal(t, len(b.send), 0)
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub()
	c := newTestClient()
	hub.join(3, c)
	hub.leave(3, c)
	hub.Broadcast(3, "card:updated", nil)
	assert.Equal(t, len(c.send), 0)

	// leave is idempotent
	hub.leave(3, c)
}

func TestDropLeavesAllRooms(t *testing.T) {
	hub := NewHub()
	c := newTestClient()
	hub.join(1, c)
	hub.join(2, c)
	hub.drop(c)
	assert.Equal(t, hub.roomSize(1), 0)
	assert.Equal(t, hub.roomSize(2), 0)
	hub.Broadcast(1, "card:deleted", nil)
	hub.Broadcast(2, "card:deleted", nil)
	assert.Equal(t, len(c.send), 0)
}

func TestBroadcastPreservesOrder(t *testing.T) {
	hub := NewHub()
	c := newTestClient()
	hub.join(9, c)
	for i := 0; i < 10; i++ {
		hub.Broadcast(9, "card:moved", map[string]any{"seq": i})
	}
	for i := 0; i < 10; i++ {
		ev := recvEvent(t, c)
		data := ev.Data.(map[string]any)
		assert.Equal(t, data["seq"], float64(i))
	}
}

// A subscriber that stops draining must not block publishers; overflow
// frames are dropped instead.
func TestBroadcastNeverBlocksOnSlowConsumer(t *testing.T) {
	hub := NewHub()
	c := newTestClient()
	hub.join(4, c)
	for i := 0; i < wsSendBuffer*2; i++ {
		hub.Broadcast(4, "card:updated", map[string]any{"seq": i})
	}
	assert.Equal(t, len(c.send), wsSendBuffer)
}

func TestAckFrameShape(t *testing.T) {
	c := newTestClient()
	c.ack(11, false, "forbidden")
	ev := recvEvent(t, c)
	assert.Equal(t, ev.Event, "board:join")
	assert.Equal(t, ev.BoardID, int64(11))
	assert.Equal(t, *ev.OK, false)
	assert.Equal(t, ev.Error, "forbidden")

	c.ack(11, true, "")
	ev = recvEvent(t, c)
	assert.Equal(t, *ev.OK, true)
	assert.Equal(t, ev.Error, "")
}

func TestRoomsAreIndependent(t *testing.T) {
	hub := NewHub()
	clients := make([]*wsClient, 5)
	for i := range clients {
		clients[i] = newTestClient()
		hub.join(int64(i%2), clients[i])
	}
	hub.Broadcast(0, "list:updated", nil)
	want := []int{1, 0, 1, 0, 1}
	for i, c := range clients {
		if len(c.send) != want[i] {
			t.Fatalf("client %d: got %d frames, want %d", i, len(c.send), want[i])
		}
	}
}
