package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/meshtools/meshdb/internal/observability"
)

func newStoppedClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(Config{
		BrokerHost: "mqtt.meshtastic.org",
		BrokerPort: 1883,
		Logger:     observability.NoOpLogger(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.Stop()
	return client
}

func TestEnqueueAfterStopIsDropped(t *testing.T) {
	client := newStoppedClient(t)

	// Paho callbacks can still fire briefly after Disconnect; a late message
	// must be dropped, not sent into the closed channel.
	client.enqueue(Message{Topic: "msh/late", Payload: []byte("{}"), Time: time.Now()})

	if _, ok := <-client.Messages(); ok {
		t.Fatalf("expected closed message channel with no residue")
	}
}

func TestPublishErrAfterStopIsDropped(t *testing.T) {
	client := newStoppedClient(t)

	client.publishErr(errors.New("connection lost"))

	if _, ok := <-client.Errors(); ok {
		t.Fatalf("expected closed error channel with no residue")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	client := newStoppedClient(t)
	client.Stop()
	client.Stop()
}
