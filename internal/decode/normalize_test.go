package decode

import (
	"errors"
	"testing"
)

func TestFromRecordNodeInfoCamelCase(t *testing.T) {
	pkt, err := FromRecord(map[string]any{
		"from":   float64(0xdeadbeef),
		"rxTime": float64(1700000100),
		"snr":    6.5,
		"decoded": map[string]any{
			"portnum": "NODEINFO_APP",
			"user": map[string]any{
				"longName":   "Base Station",
				"shortName":  "BASE",
				"hwModel":    "HELTEC_V3",
				"isLicensed": true,
			},
		},
	})
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}

	if pkt.From != 0xdeadbeef || pkt.RxTime != 1700000100 {
		t.Fatalf("unexpected envelope: %+v", pkt)
	}
	if pkt.Port != PortNodeInfo {
		t.Fatalf("expected nodeinfo port, got %q", pkt.Port)
	}
	if pkt.Snr == nil || *pkt.Snr != 6.5 {
		t.Fatalf("expected snr 6.5, got %v", pkt.Snr)
	}
	if pkt.User == nil || *pkt.User.LongName != "Base Station" || *pkt.User.HWModel != "HELTEC_V3" {
		t.Fatalf("unexpected user: %+v", pkt.User)
	}
	if pkt.User.IsLicensed == nil || !*pkt.User.IsLicensed {
		t.Fatalf("expected licensed flag, got %v", pkt.User.IsLicensed)
	}
}

func TestFromRecordSnakeCaseSpellings(t *testing.T) {
	pkt, err := FromRecord(map[string]any{
		"from":    float64(42),
		"rx_time": float64(1700000100),
		"rx_snr":  3.25,
		"decoded": map[string]any{
			"portnum": float64(3),
			"position": map[string]any{
				"latitude_i":      float64(455000000),
				"longitude_i":     float64(-1226000000),
				"location_source": "LOC_INTERNAL",
				"sats_in_view":    float64(7),
			},
		},
	})
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}

	if pkt.RxTime != 1700000100 {
		t.Fatalf("expected rx_time spelling honored, got %d", pkt.RxTime)
	}
	if pkt.Snr == nil || *pkt.Snr != 3.25 {
		t.Fatalf("expected rx_snr spelling honored, got %v", pkt.Snr)
	}
	if pkt.Port != PortPosition {
		t.Fatalf("expected position port from numeric portnum, got %q", pkt.Port)
	}
	pos := pkt.Position
	if pos == nil || pos.LatitudeI == nil || *pos.LatitudeI != 455000000 {
		t.Fatalf("unexpected position: %+v", pos)
	}
	if pos.SatsInView == nil || *pos.SatsInView != 7 {
		t.Fatalf("expected sats_in_view, got %v", pos.SatsInView)
	}
	if pos.LocationSource == nil || *pos.LocationSource != "LOC_INTERNAL" {
		t.Fatalf("expected location_source, got %v", pos.LocationSource)
	}
}

func TestFromRecordTelemetrySubtypes(t *testing.T) {
	pkt, err := FromRecord(map[string]any{
		"from": float64(42),
		"decoded": map[string]any{
			"telemetry": map[string]any{
				"time": float64(1700000050),
				"deviceMetrics": map[string]any{
					"batteryLevel": float64(87),
					"voltage":      4.01,
				},
				"environment_metrics": map[string]any{
					"temperature":   21.5,
					"soil_moisture": float64(40),
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}

	if pkt.Port != PortTelemetry {
		t.Fatalf("expected telemetry port inferred from payload, got %q", pkt.Port)
	}
	tel := pkt.Telemetry
	if tel == nil || tel.Time == nil || *tel.Time != 1700000050 {
		t.Fatalf("unexpected telemetry: %+v", tel)
	}
	if tel.Device == nil || *tel.Device.BatteryLevel != 87 {
		t.Fatalf("unexpected device metrics: %+v", tel.Device)
	}
	if tel.Environment == nil || *tel.Environment.SoilMoisture != 40 {
		t.Fatalf("expected snake_case metrics honored, got %+v", tel.Environment)
	}
	if tel.Power != nil || tel.Health != nil {
		t.Fatalf("expected absent subtypes to stay nil")
	}
}

func TestFromRecordTextMessageChannelFallback(t *testing.T) {
	pkt, err := FromRecord(map[string]any{
		"from":    float64(42),
		"channel": float64(2),
		"decoded": map[string]any{
			"portnum": "TEXT_MESSAGE_APP",
			"payload": "hello mesh",
		},
	})
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}

	if pkt.Text == nil {
		t.Fatalf("expected text payload")
	}
	if pkt.Text.Text != "hello mesh" {
		t.Fatalf("expected payload fallback, got %q", pkt.Text.Text)
	}
	if pkt.Text.Channel != "2" {
		t.Fatalf("expected channel from envelope, got %q", pkt.Text.Channel)
	}
}

func TestFromRecordEnvelopeOnly(t *testing.T) {
	pkt, err := FromRecord(map[string]any{"from": float64(42)})
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if pkt.From != 42 || pkt.Port != PortUnknown {
		t.Fatalf("unexpected packet: %+v", pkt)
	}
}

func TestFromRecordMissingSource(t *testing.T) {
	_, err := FromRecord(map[string]any{"decoded": map[string]any{"text": "hi"}})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	_, err = FromRecord(nil)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for nil record, got %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	pkt, err := DecodeJSON([]byte(`{
		"from": 3735928559,
		"rxTime": 1700000100,
		"decoded": {"portnum": 1, "text": "ping", "channel": 0}
	}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if pkt.From != 0xdeadbeef || pkt.Port != PortTextMessage {
		t.Fatalf("unexpected packet: %+v", pkt)
	}
	if pkt.Text == nil || pkt.Text.Text != "ping" || pkt.Text.Channel != "0" {
		t.Fatalf("unexpected text: %+v", pkt.Text)
	}

	if _, err := DecodeJSON([]byte("{not json")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for invalid JSON, got %v", err)
	}
}
