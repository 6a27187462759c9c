package storage_test

import (
	"context"
	"testing"

	"github.com/meshtools/meshdb/internal/decode"
	"github.com/meshtools/meshdb/internal/storage"
)

func TestHandlePacketNodeInfoDefaults(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	res := db.HandlePacket(ctx, decode.Packet{
		From:   0xdeadbeef,
		RxTime: 1700000100,
		Port:   decode.PortNodeInfo,
		User:   &decode.User{LongName: ptr("Base Station")},
	})
	if !res.NodeInfo || !res.TouchedLastHeard {
		t.Fatalf("expected nodeinfo and last_heard stored, got %+v", res)
	}

	snaps, err := db.Snapshots(ctx, storage.NumericID(0xdeadbeef))
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(snaps) != 1 || snaps[0].NodeInfo == nil {
		t.Fatalf("expected one snapshot with nodeinfo, got %+v", snaps)
	}

	info := snaps[0].NodeInfo
	if info["long_name"] != "Base Station" {
		t.Fatalf("expected long_name from packet, got %v", info["long_name"])
	}
	if info["short_name"] != "beef" {
		t.Fatalf("expected short_name default from hex suffix, got %v", info["short_name"])
	}
	if info["role"] != "CLIENT" {
		t.Fatalf("expected role default CLIENT, got %v", info["role"])
	}
	if info["hw_model"] != "UNSET" {
		t.Fatalf("expected hw_model default UNSET, got %v", info["hw_model"])
	}
	if info["last_heard"] != int64(1700000100) {
		t.Fatalf("expected last_heard from rx time, got %v", info["last_heard"])
	}
}

func TestHandlePacketPreservesFieldsOnEnvelopeOnly(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	db.HandlePacket(ctx, decode.Packet{
		From:   42,
		RxTime: 1700000100,
		Port:   decode.PortNodeInfo,
		User:   &decode.User{LongName: ptr("Relay One"), ShortName: ptr("R1")},
	})

	// Envelope-only packet: only last_heard and snr may change.
	res := db.HandlePacket(ctx, decode.Packet{
		From:   42,
		RxTime: 1700000200,
		Snr:    ptr(7.25),
	})
	if !res.TouchedLastHeard || res.NodeInfo {
		t.Fatalf("expected envelope-only result, got %+v", res)
	}

	snaps, err := db.Snapshots(ctx, storage.NumericID(42))
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	info := snaps[0].NodeInfo
	if info["long_name"] != "Relay One" || info["short_name"] != "R1" {
		t.Fatalf("expected names preserved, got %v / %v", info["long_name"], info["short_name"])
	}
	if info["last_heard"] != int64(1700000200) {
		t.Fatalf("expected last_heard advanced, got %v", info["last_heard"])
	}
	if info["snr"] != 7.25 {
		t.Fatalf("expected snr stored, got %v", info["snr"])
	}
}

func TestHandlePacketPositionOverwrites(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	first := db.HandlePacket(ctx, decode.Packet{
		From:   42,
		RxTime: 1700000100,
		Port:   decode.PortPosition,
		Position: &decode.Position{
			Latitude:  ptr(45.5),
			Longitude: ptr(-122.6),
			Altitude:  ptr(30.0),
		},
	})
	if !first.Position {
		t.Fatalf("expected position stored, got %+v", first)
	}

	second := db.HandlePacket(ctx, decode.Packet{
		From:   42,
		RxTime: 1700000500,
		Port:   decode.PortPosition,
		Position: &decode.Position{
			Latitude:  ptr(45.6),
			Longitude: ptr(-122.7),
		},
	})
	if !second.Position {
		t.Fatalf("expected position stored, got %+v", second)
	}

	snaps, err := db.Snapshots(ctx, storage.NumericID(42))
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	pos := snaps[0].Position
	if pos == nil {
		t.Fatalf("expected position section")
	}
	if pos["latitude"] != 45.6 || pos["timestamp"] != int64(1700000500) {
		t.Fatalf("expected latest fix only, got %v", pos)
	}
	// Overwrite means the earlier fix is gone, not history.
	if pos["altitude"] != nil {
		t.Fatalf("expected altitude overwritten to NULL, got %v", pos["altitude"])
	}
}

func TestHandlePacketTelemetryCreatesNodeRow(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	res := db.HandlePacket(ctx, decode.Packet{
		From:   0x00adbeef,
		RxTime: 1700000100,
		Port:   decode.PortTelemetry,
		Telemetry: &decode.Telemetry{
			Time: ptr(int64(1700000050)),
			Device: &decode.DeviceMetrics{
				BatteryLevel: ptr(87.0),
				Voltage:      ptr(4.01),
			},
			Environment: &decode.EnvironmentMetrics{
				Temperature: ptr(21.5),
			},
		},
	})
	if !res.Telemetry || !res.TouchedLastHeard {
		t.Fatalf("expected telemetry stored, got %+v", res)
	}

	snaps, err := db.Snapshots(ctx, storage.NumericID(0x00adbeef))
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	snap := snaps[0]

	// The envelope touch created an identity row with defaults.
	if snap.NodeInfo == nil || snap.NodeInfo["short_name"] != "beef" {
		t.Fatalf("expected default identity row, got %v", snap.NodeInfo)
	}

	dev, ok := snap.Telemetry["device"]
	if !ok {
		t.Fatalf("expected device telemetry, got %v", snap.Telemetry)
	}
	if dev["battery_level"] != 87.0 || dev["timestamp"] != int64(1700000050) {
		t.Fatalf("unexpected device row: %v", dev)
	}
	if env, ok := snap.Telemetry["environment"]; !ok || env["temperature"] != 21.5 {
		t.Fatalf("expected environment telemetry, got %v", snap.Telemetry)
	}
	if _, ok := snap.Telemetry["power"]; ok {
		t.Fatalf("power subtype was never reported, got %v", snap.Telemetry)
	}
}

func TestHandlePacketMessagesAppend(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for i, text := range []string{"first\x00", "second"} {
		res := db.HandlePacket(ctx, decode.Packet{
			From:   42,
			RxTime: 1700000100 + int64(i),
			Port:   decode.PortTextMessage,
			Text:   &decode.TextMessage{Channel: "0", Text: text},
		})
		if !res.Message {
			t.Fatalf("expected message %d stored, got %+v", i, res)
		}
	}

	channels, err := db.ChannelMessages(ctx)
	if err != nil {
		t.Fatalf("channel messages: %v", err)
	}
	buckets, ok := channels["0"]
	if !ok || len(buckets) != 1 {
		t.Fatalf("expected one hour bucket on channel 0, got %v", channels)
	}
	msgs := buckets[0].Messages
	if len(msgs) != 2 {
		t.Fatalf("expected both messages appended, got %v", msgs)
	}
	if msgs[0].Text != "first" {
		t.Fatalf("expected NUL bytes stripped, got %q", msgs[0].Text)
	}
}

func TestHandlePacketRejectsEmptySource(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	res := db.HandlePacket(ctx, decode.Packet{RxTime: 1700000100})
	if res != (storage.StoreResult{}) {
		t.Fatalf("expected nothing stored for missing source, got %+v", res)
	}
}
