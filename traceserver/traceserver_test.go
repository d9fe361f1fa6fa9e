package traceserver

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBroadcasterDeliversToSubscriber(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(BlockEmitted{GuestPC: 0x1000, Opcode: 0xE348, HostWords: 7})

	select {
	case ev := <-sub.Channel:
		if ev.GuestPC != 0x1000 || ev.Opcode != 0xE348 || ev.HostWords != 7 {
			t.Errorf("got %+v, want GuestPC=0x1000 Opcode=0xe348 HostWords=7", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the published event")
	}
}

func TestBroadcasterFansOutToMultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	b.Publish(BlockEmitted{GuestPC: 0x2000})

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case ev := <-sub.Channel:
			if ev.GuestPC != 0x2000 {
				t.Errorf("got GuestPC %#x, want 0x2000", ev.GuestPC)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out delivery")
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	select {
	case _, ok := <-sub.Channel:
		if ok {
			t.Error("expected the channel to be closed after Unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the channel to close")
	}
}

func TestHealthzReportsOK(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	defer s.Broadcaster().Close()
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestWebSocketEndpointStreamsPublishedEvents(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	defer s.Broadcaster().Close()
	ts := httptest.NewServer(s)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server's Subscribe goroutine time to register before publishing.
	time.Sleep(50 * time.Millisecond)
	s.Broadcaster().Publish(BlockEmitted{GuestPC: 0x4000, Opcode: 0xE8C0, HostWords: 12})

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var ev BlockEmitted
	if err := json.Unmarshal(message, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.GuestPC != 0x4000 || ev.Opcode != 0xE8C0 || ev.HostWords != 12 {
		t.Errorf("got %+v, want GuestPC=0x4000 Opcode=0xe8c0 HostWords=12", ev)
	}
}
