package sse

import (
	"strings"
	"testing"
	"time"
)

func recvMsg(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed before message arrived")
		}
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

func TestBroker_SubscribePublish(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ch := b.Subscribe()
	b.Publish(Event{Type: "test.event", Data: map[string]string{"k": "v"}})

	msg := recvMsg(t, ch)
	if !strings.Contains(msg, "event: test.event") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, `"k":"v"`) {
		t.Errorf("message = %q", msg)
	}
}

func TestBroker_PublishCommand(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ch := b.Subscribe()
	b.PublishCommand("note", "买牛奶")

	msg := recvMsg(t, ch)
	if !strings.Contains(msg, "event: command.note") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, "买牛奶") {
		t.Errorf("message = %q", msg)
	}

	// The first command also triggers a stats.updated broadcast.
	msg = recvMsg(t, ch)
	if !strings.Contains(msg, "event: stats.updated") {
		t.Errorf("message = %q", msg)
	}
}

func TestBroker_StatsThrottled(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ch := b.Subscribe()
	b.PublishCommand("note", "第一条")
	b.PublishCommand("note", "第二条")

	var count int
	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), "stats.updated") {
				count++
			}
		case <-deadline:
			if count != 1 {
				t.Errorf("stats.updated broadcasts = %d, want 1", count)
			}
			return
		}
	}
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ch := b.Subscribe()
	waitForClients(t, b, 1)

	b.Unsubscribe(ch)
	waitForClients(t, b, 0)

	if _, ok := <-ch; ok {
		t.Error("channel not closed after unsubscribe")
	}
}

func TestBroker_CloseShutsClients(t *testing.T) {
	b := NewBroker(time.Second)
	ch := b.Subscribe()
	waitForClients(t, b, 1)

	b.Close()
	if _, ok := <-ch; ok {
		t.Error("channel not closed on broker shutdown")
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("client count after close = %d", n)
	}
}

func waitForClients(t *testing.T, b *Broker, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if b.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d", want)
}
