// Package mqtttest runs an in-process MQTT broker for tests.
package mqtttest

import (
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

// Broker is an embedded mochi broker bound to a free loopback port.
type Broker struct {
	Host string
	Port int

	server *mochi.Server
	subID  int
	mu     sync.Mutex
}

// Message is a publish observed by a broker-side subscription.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Start launches a broker that accepts every client and stops it when the
// test finishes.
func Start(t testing.TB) *Broker {
	t.Helper()

	addr := freeAddr(t)
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split broker address: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse broker port: %v", err)
	}

	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("add allow hook: %v", err)
	}
	if err := server.AddListener(listeners.NewTCP(listeners.Config{ID: "test", Address: addr})); err != nil {
		t.Fatalf("add listener: %v", err)
	}

	go func() {
		if err := server.Serve(); err != nil {
			t.Errorf("broker serve: %v", err)
		}
	}()
	t.Cleanup(func() { _ = server.Close() })

	waitListening(t, addr)

	return &Broker{Host: host, Port: port, server: server}
}

// Publish injects a message as if a device had published it.
func (b *Broker) Publish(t testing.TB, topic string, payload []byte) {
	t.Helper()
	if err := b.server.Publish(topic, payload, false, 0); err != nil {
		t.Fatalf("broker publish %s: %v", topic, err)
	}
}

// Capture subscribes broker-side to filter and returns a channel of every
// matching publish.
func (b *Broker) Capture(t testing.TB, filter string) <-chan Message {
	t.Helper()

	b.mu.Lock()
	b.subID++
	id := b.subID
	b.mu.Unlock()

	ch := make(chan Message, 64)
	err := b.server.Subscribe(filter, id, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		msg := Message{
			Topic:    pk.TopicName,
			Payload:  append([]byte(nil), pk.Payload...),
			Retained: pk.FixedHeader.Retain,
		}
		select {
		case ch <- msg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("broker subscribe %s: %v", filter, err)
	}
	return ch
}

// Next waits for a message on ch or fails the test after timeout.
func Next(t testing.TB, ch <-chan Message, timeout time.Duration) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("no message within %v", timeout)
		return Message{}
	}
}

func freeAddr(t testing.TB) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func waitListening(t testing.TB, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("broker did not start listening on %s", addr)
}
