package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformed reports a packet record that is missing required
// discriminator fields and cannot be routed.
var ErrMalformed = errors.New("decode: malformed packet record")

// FromRecord normalizes an already-decoded packet record into a Packet.
// Field names arriving in either camelCase or snake_case are resolved here,
// once; downstream consumers only ever see canonical names.
func FromRecord(rec map[string]any) (Packet, error) {
	if rec == nil {
		return Packet{}, fmt.Errorf("%w: empty record", ErrMalformed)
	}

	from, ok := pickUint32(rec, "from")
	if !ok || from == 0 {
		return Packet{}, fmt.Errorf("%w: missing source node id", ErrMalformed)
	}

	pkt := Packet{
		From:     from,
		Snr:      pickFloat(rec, "snr", "rxSnr", "rx_snr"),
		HopsAway: pickInt(rec, "hopsAway", "hops_away"),
	}
	if rx := pickInt(rec, "rxTime", "rx_time"); rx != nil {
		pkt.RxTime = *rx
	}

	decoded := pickMap(rec, "decoded")
	if decoded == nil {
		// Envelope-only packet: still useful for last-heard bookkeeping.
		return pkt, nil
	}

	if v, ok := pick(decoded, "portnum", "port_num"); ok {
		pkt.Port = portFromValue(v)
	}

	if user := pickMap(decoded, "user"); user != nil {
		pkt.User = normalizeUser(user)
		if pkt.Port == PortUnknown {
			pkt.Port = PortNodeInfo
		}
	}
	if pos := pickMap(decoded, "position"); pos != nil {
		pkt.Position = normalizePosition(pos)
		if pkt.Port == PortUnknown {
			pkt.Port = PortPosition
		}
	}
	if tel := pickMap(decoded, "telemetry"); tel != nil {
		pkt.Telemetry = normalizeTelemetry(tel)
		if pkt.Port == PortUnknown {
			pkt.Port = PortTelemetry
		}
	}
	if text := normalizeText(rec, decoded, pkt.Port); text != nil {
		pkt.Text = text
		if pkt.Port == PortUnknown {
			pkt.Port = PortTextMessage
		}
	}

	return pkt, nil
}

// DecodeJSON parses a JSON packet record and normalizes it.
func DecodeJSON(data []byte) (Packet, error) {
	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		return Packet{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return FromRecord(rec)
}

func normalizeUser(user map[string]any) *User {
	return &User{
		LongName:       pickString(user, "longName", "long_name"),
		ShortName:      pickString(user, "shortName", "short_name"),
		MacAddr:        pickString(user, "macaddr", "macAddr"),
		HWModel:        pickString(user, "hwModel", "hw_model"),
		Role:           pickString(user, "role"),
		IsLicensed:     pickBool(user, "isLicensed", "is_licensed"),
		PublicKey:      pickString(user, "publicKey", "public_key"),
		IsUnmessagable: pickBool(user, "isUnmessagable", "is_unmessagable"),
	}
}

func normalizePosition(pos map[string]any) *Position {
	return &Position{
		Latitude:                  pickFloat(pos, "latitude", "lat"),
		Longitude:                 pickFloat(pos, "longitude", "lon"),
		LatitudeI:                 pickInt(pos, "latitudeI", "latitude_i"),
		LongitudeI:                pickInt(pos, "longitudeI", "longitude_i"),
		Altitude:                  pickFloat(pos, "altitude", "alt"),
		LocationSource:            pickString(pos, "locationSource", "location_source"),
		AltitudeSource:            pickString(pos, "altitudeSource", "altitude_source"),
		Time:                      pickInt(pos, "time", "pos_time"),
		Timestamp:                 pickInt(pos, "timestamp", "pos_timestamp"),
		TimestampMillisAdjust:     pickInt(pos, "timestampMillisAdjust", "timestamp_millis_adjust"),
		AltitudeHae:               pickInt(pos, "altitudeHae", "altitude_hae"),
		AltitudeGeoidalSeparation: pickInt(pos, "altitudeGeoidalSeparation", "altitude_geoidal_separation"),
		Pdop:                      pickInt(pos, "PDOP", "pdop"),
		Hdop:                      pickInt(pos, "HDOP", "hdop"),
		Vdop:                      pickInt(pos, "VDOP", "vdop"),
		GpsAccuracy:               pickInt(pos, "gpsAccuracy", "gps_accuracy"),
		GroundSpeed:               pickInt(pos, "groundSpeed", "ground_speed"),
		GroundTrack:               pickInt(pos, "groundTrack", "ground_track"),
		FixQuality:                pickInt(pos, "fixQuality", "fix_quality"),
		FixType:                   pickInt(pos, "fixType", "fix_type"),
		SatsInView:                pickInt(pos, "satsInView", "sats_in_view"),
		SensorID:                  pickInt(pos, "sensorId", "sensor_id"),
		NextUpdate:                pickInt(pos, "nextUpdate", "next_update"),
		SeqNumber:                 pickInt(pos, "seqNumber", "seq_number"),
		PrecisionBits:             pickInt(pos, "precisionBits", "precision_bits"),
	}
}

func normalizeTelemetry(tel map[string]any) *Telemetry {
	out := &Telemetry{Time: pickInt(tel, "time")}

	if m := pickMap(tel, "deviceMetrics", "device_metrics"); m != nil {
		out.Device = &DeviceMetrics{
			BatteryLevel:       pickFloat(m, "batteryLevel", "battery_level"),
			Voltage:            pickFloat(m, "voltage"),
			ChannelUtilization: pickFloat(m, "channelUtilization", "channel_utilization"),
			AirUtilTx:          pickFloat(m, "airUtilTx", "air_util_tx"),
			UptimeSeconds:      pickInt(m, "uptimeSeconds", "uptime_seconds"),
		}
	}
	if m := pickMap(tel, "powerMetrics", "power_metrics"); m != nil {
		out.Power = &PowerMetrics{
			Ch1Voltage: pickFloat(m, "ch1Voltage", "ch1_voltage"),
			Ch1Current: pickFloat(m, "ch1Current", "ch1_current"),
			Ch2Voltage: pickFloat(m, "ch2Voltage", "ch2_voltage"),
			Ch2Current: pickFloat(m, "ch2Current", "ch2_current"),
			Ch3Voltage: pickFloat(m, "ch3Voltage", "ch3_voltage"),
			Ch3Current: pickFloat(m, "ch3Current", "ch3_current"),
			Ch4Voltage: pickFloat(m, "ch4Voltage", "ch4_voltage"),
			Ch4Current: pickFloat(m, "ch4Current", "ch4_current"),
			Ch5Voltage: pickFloat(m, "ch5Voltage", "ch5_voltage"),
			Ch5Current: pickFloat(m, "ch5Current", "ch5_current"),
			Ch6Voltage: pickFloat(m, "ch6Voltage", "ch6_voltage"),
			Ch6Current: pickFloat(m, "ch6Current", "ch6_current"),
			Ch7Voltage: pickFloat(m, "ch7Voltage", "ch7_voltage"),
			Ch7Current: pickFloat(m, "ch7Current", "ch7_current"),
			Ch8Voltage: pickFloat(m, "ch8Voltage", "ch8_voltage"),
			Ch8Current: pickFloat(m, "ch8Current", "ch8_current"),
		}
	}
	if m := pickMap(tel, "environmentMetrics", "environment_metrics"); m != nil {
		out.Environment = &EnvironmentMetrics{
			Temperature:        pickFloat(m, "temperature"),
			RelativeHumidity:   pickFloat(m, "relativeHumidity", "relative_humidity"),
			BarometricPressure: pickFloat(m, "barometricPressure", "barometric_pressure"),
			GasResistance:      pickFloat(m, "gasResistance", "gas_resistance"),
			Voltage:            pickFloat(m, "voltage"),
			Current:            pickFloat(m, "current"),
			Iaq:                pickInt(m, "iaq"),
			Distance:           pickFloat(m, "distance"),
			Lux:                pickFloat(m, "lux"),
			WhiteLux:           pickFloat(m, "whiteLux", "white_lux"),
			IrLux:              pickFloat(m, "irLux", "ir_lux"),
			UvLux:              pickFloat(m, "uvLux", "uv_lux"),
			WindDirection:      pickInt(m, "windDirection", "wind_direction"),
			WindSpeed:          pickFloat(m, "windSpeed", "wind_speed"),
			Weight:             pickFloat(m, "weight"),
			WindGust:           pickFloat(m, "windGust", "wind_gust"),
			WindLull:           pickFloat(m, "windLull", "wind_lull"),
			Radiation:          pickFloat(m, "radiation"),
			Rainfall1h:         pickFloat(m, "rainfall1h", "rainfall_1h"),
			Rainfall24h:        pickFloat(m, "rainfall24h", "rainfall_24h"),
			SoilMoisture:       pickInt(m, "soilMoisture", "soil_moisture"),
			SoilTemperature:    pickFloat(m, "soilTemperature", "soil_temperature"),
		}
	}
	if m := pickMap(tel, "airQualityMetrics", "air_quality_metrics"); m != nil {
		out.AirQuality = &AirQualityMetrics{
			Pm10Standard:       pickInt(m, "pm10Standard", "pm10_standard"),
			Pm25Standard:       pickInt(m, "pm25Standard", "pm25_standard"),
			Pm100Standard:      pickInt(m, "pm100Standard", "pm100_standard"),
			Pm10Environmental:  pickInt(m, "pm10Environmental", "pm10_environmental"),
			Pm25Environmental:  pickInt(m, "pm25Environmental", "pm25_environmental"),
			Pm100Environmental: pickInt(m, "pm100Environmental", "pm100_environmental"),
			Particles03um:      pickInt(m, "particles03um", "particles_03um"),
			Particles05um:      pickInt(m, "particles05um", "particles_05um"),
			Particles10um:      pickInt(m, "particles10um", "particles_10um"),
			Particles25um:      pickInt(m, "particles25um", "particles_25um"),
			Particles50um:      pickInt(m, "particles50um", "particles_50um"),
			Particles100um:     pickInt(m, "particles100um", "particles_100um"),
			Co2:                pickInt(m, "co2"),
			Co2Temperature:     pickFloat(m, "co2Temperature", "co2_temperature"),
			Co2Humidity:        pickFloat(m, "co2Humidity", "co2_humidity"),
			FormFormaldehyde:   pickFloat(m, "formFormaldehyde", "form_formaldehyde"),
			FormHumidity:       pickFloat(m, "formHumidity", "form_humidity"),
			FormTemperature:    pickFloat(m, "formTemperature", "form_temperature"),
			Pm40Standard:       pickInt(m, "pm40Standard", "pm40_standard"),
			Particles40um:      pickInt(m, "particles40um", "particles_40um"),
			PmTemperature:      pickFloat(m, "pmTemperature", "pm_temperature"),
			PmHumidity:         pickFloat(m, "pmHumidity", "pm_humidity"),
			PmVocIdx:           pickFloat(m, "pmVocIdx", "pm_voc_idx"),
			PmNoxIdx:           pickFloat(m, "pmNoxIdx", "pm_nox_idx"),
			ParticlesTps:       pickFloat(m, "particlesTps", "particles_tps"),
		}
	}
	if m := pickMap(tel, "localStats", "local_stats"); m != nil {
		out.LocalStats = &LocalStats{
			UptimeSeconds:      pickInt(m, "uptimeSeconds", "uptime_seconds"),
			ChannelUtilization: pickFloat(m, "channelUtilization", "channel_utilization"),
			AirUtilTx:          pickFloat(m, "airUtilTx", "air_util_tx"),
			NumPacketsTx:       pickInt(m, "numPacketsTx", "num_packets_tx"),
			NumPacketsRx:       pickInt(m, "numPacketsRx", "num_packets_rx"),
			NumPacketsRxBad:    pickInt(m, "numPacketsRxBad", "num_packets_rx_bad"),
			NumOnlineNodes:     pickInt(m, "numOnlineNodes", "num_online_nodes"),
			NumTotalNodes:      pickInt(m, "numTotalNodes", "num_total_nodes"),
			NumRxDupe:          pickInt(m, "numRxDupe", "num_rx_dupe"),
			NumTxRelay:         pickInt(m, "numTxRelay", "num_tx_relay"),
			NumTxRelayCanceled: pickInt(m, "numTxRelayCanceled", "num_tx_relay_canceled"),
			HeapTotalBytes:     pickInt(m, "heapTotalBytes", "heap_total_bytes"),
			HeapFreeBytes:      pickInt(m, "heapFreeBytes", "heap_free_bytes"),
			NumTxDropped:       pickInt(m, "numTxDropped", "num_tx_dropped"),
		}
	}
	if m := pickMap(tel, "healthMetrics", "health_metrics"); m != nil {
		out.Health = &HealthMetrics{
			HeartBpm:    pickInt(m, "heartBpm", "heart_bpm"),
			SpO2:        pickInt(m, "spO2", "sp_o2"),
			Temperature: pickFloat(m, "temperature"),
		}
	}
	if m := pickMap(tel, "hostMetrics", "host_metrics"); m != nil {
		out.Host = &HostMetrics{
			UptimeSeconds:  pickInt(m, "uptimeSeconds", "uptime_seconds"),
			FreememBytes:   pickInt(m, "freememBytes", "freemem_bytes"),
			Diskfree1Bytes: pickInt(m, "diskfree1Bytes", "diskfree1_bytes"),
			Diskfree2Bytes: pickInt(m, "diskfree2Bytes", "diskfree2_bytes"),
			Diskfree3Bytes: pickInt(m, "diskfree3Bytes", "diskfree3_bytes"),
			Load1:          pickInt(m, "load1"),
			Load5:          pickInt(m, "load5"),
			Load15:         pickInt(m, "load15"),
			UserString:     pickString(m, "userString", "user_string"),
		}
	}

	return out
}

func normalizeText(rec, decoded map[string]any, port Port) *TextMessage {
	text := pickString(decoded, "text")
	if text == nil && port == PortTextMessage {
		// Some decoders only expose the raw payload. Other ports carry
		// binary payloads here, so the fallback is gated on the port.
		text = pickString(decoded, "payload")
	}
	if text == nil || *text == "" {
		return nil
	}

	channel := "0"
	if v, ok := pick(decoded, "channel"); ok {
		channel = stringify(v)
	} else if v, ok := pick(rec, "channel"); ok {
		channel = stringify(v)
	}

	return &TextMessage{Channel: channel, Text: *text}
}

func portFromValue(v any) Port {
	switch t := v.(type) {
	case string:
		switch t {
		case string(PortNodeInfo), "4":
			return PortNodeInfo
		case string(PortPosition), "3":
			return PortPosition
		case string(PortTelemetry), "67":
			return PortTelemetry
		case string(PortTextMessage), "1":
			return PortTextMessage
		}
	case float64:
		return portFromNumber(int64(t))
	case int:
		return portFromNumber(int64(t))
	case int64:
		return portFromNumber(t)
	}
	return PortUnknown
}

func portFromNumber(n int64) Port {
	switch n {
	case 4:
		return PortNodeInfo
	case 3:
		return PortPosition
	case 67:
		return PortTelemetry
	case 1:
		return PortTextMessage
	}
	return PortUnknown
}

// pick returns the first non-nil value among the given key spellings.
func pick(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func pickMap(m map[string]any, keys ...string) map[string]any {
	v, ok := pick(m, keys...)
	if !ok {
		return nil
	}
	sub, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return sub
}

func pickString(m map[string]any, keys ...string) *string {
	v, ok := pick(m, keys...)
	if !ok {
		return nil
	}
	s := stringify(v)
	return &s
}

func pickFloat(m map[string]any, keys ...string) *float64 {
	v, ok := pick(m, keys...)
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func pickInt(m map[string]any, keys ...string) *int64 {
	v, ok := pick(m, keys...)
	if !ok {
		return nil
	}
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	n := int64(f)
	return &n
}

func pickUint32(m map[string]any, keys ...string) (uint32, bool) {
	v, ok := pick(m, keys...)
	if !ok {
		return 0, false
	}
	f, ok := toFloat(v)
	if !ok || f < 0 || f > float64(^uint32(0)) {
		return 0, false
	}
	return uint32(f), true
}

func pickBool(m map[string]any, keys ...string) *bool {
	v, ok := pick(m, keys...)
	if !ok {
		return nil
	}
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case float64:
		b = t != 0
	case int:
		b = t != 0
	case int64:
		b = t != 0
	default:
		return nil
	}
	return &b
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
