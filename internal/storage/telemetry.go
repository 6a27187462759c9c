package storage

import "github.com/meshtools/meshdb/internal/decode"

// telemetrySubtype binds one telemetry table to its payload extractor. The
// slice order is the fixed lookup priority used by Metric.
type telemetrySubtype struct {
	name    string
	table   string
	columns []string
	types   []string
	// values returns the bind values matching columns, or nil when the
	// subtype is absent from the payload.
	values func(t *decode.Telemetry) []any
}

var telemetrySubtypes = []telemetrySubtype{
	{
		name:  "device",
		table: "telemetry_device",
		columns: []string{
			"battery_level", "voltage", "channel_utilization", "air_util_tx", "uptime_seconds",
		},
		types: []string{"REAL", "REAL", "REAL", "REAL", "INTEGER"},
		values: func(t *decode.Telemetry) []any {
			m := t.Device
			if m == nil {
				return nil
			}
			return []any{
				nullFloat64(m.BatteryLevel),
				nullFloat64(m.Voltage),
				nullFloat64(m.ChannelUtilization),
				nullFloat64(m.AirUtilTx),
				nullInt64(m.UptimeSeconds),
			}
		},
	},
	{
		name:  "power",
		table: "telemetry_power",
		columns: []string{
			"ch1_voltage", "ch1_current", "ch2_voltage", "ch2_current",
			"ch3_voltage", "ch3_current", "ch4_voltage", "ch4_current",
			"ch5_voltage", "ch5_current", "ch6_voltage", "ch6_current",
			"ch7_voltage", "ch7_current", "ch8_voltage", "ch8_current",
		},
		types: []string{
			"REAL", "REAL", "REAL", "REAL", "REAL", "REAL", "REAL", "REAL",
			"REAL", "REAL", "REAL", "REAL", "REAL", "REAL", "REAL", "REAL",
		},
		values: func(t *decode.Telemetry) []any {
			m := t.Power
			if m == nil {
				return nil
			}
			return []any{
				nullFloat64(m.Ch1Voltage), nullFloat64(m.Ch1Current),
				nullFloat64(m.Ch2Voltage), nullFloat64(m.Ch2Current),
				nullFloat64(m.Ch3Voltage), nullFloat64(m.Ch3Current),
				nullFloat64(m.Ch4Voltage), nullFloat64(m.Ch4Current),
				nullFloat64(m.Ch5Voltage), nullFloat64(m.Ch5Current),
				nullFloat64(m.Ch6Voltage), nullFloat64(m.Ch6Current),
				nullFloat64(m.Ch7Voltage), nullFloat64(m.Ch7Current),
				nullFloat64(m.Ch8Voltage), nullFloat64(m.Ch8Current),
			}
		},
	},
	{
		name:  "environment",
		table: "telemetry_environment",
		columns: []string{
			"temperature", "relative_humidity", "barometric_pressure", "gas_resistance",
			"voltage", "current", "iaq", "distance", "lux", "white_lux", "ir_lux", "uv_lux",
			"wind_direction", "wind_speed", "weight", "wind_gust", "wind_lull", "radiation",
			"rainfall_1h", "rainfall_24h", "soil_moisture", "soil_temperature",
		},
		types: []string{
			"REAL", "REAL", "REAL", "REAL",
			"REAL", "REAL", "INTEGER", "REAL", "REAL", "REAL", "REAL", "REAL",
			"INTEGER", "REAL", "REAL", "REAL", "REAL", "REAL",
			"REAL", "REAL", "INTEGER", "REAL",
		},
		values: func(t *decode.Telemetry) []any {
			m := t.Environment
			if m == nil {
				return nil
			}
			return []any{
				nullFloat64(m.Temperature),
				nullFloat64(m.RelativeHumidity),
				nullFloat64(m.BarometricPressure),
				nullFloat64(m.GasResistance),
				nullFloat64(m.Voltage),
				nullFloat64(m.Current),
				nullInt64(m.Iaq),
				nullFloat64(m.Distance),
				nullFloat64(m.Lux),
				nullFloat64(m.WhiteLux),
				nullFloat64(m.IrLux),
				nullFloat64(m.UvLux),
				nullInt64(m.WindDirection),
				nullFloat64(m.WindSpeed),
				nullFloat64(m.Weight),
				nullFloat64(m.WindGust),
				nullFloat64(m.WindLull),
				nullFloat64(m.Radiation),
				nullFloat64(m.Rainfall1h),
				nullFloat64(m.Rainfall24h),
				nullInt64(m.SoilMoisture),
				nullFloat64(m.SoilTemperature),
			}
		},
	},
	{
		name:  "air_quality",
		table: "telemetry_air_quality",
		columns: []string{
			"pm10_standard", "pm25_standard", "pm100_standard",
			"pm10_environmental", "pm25_environmental", "pm100_environmental",
			"particles_03um", "particles_05um", "particles_10um",
			"particles_25um", "particles_50um", "particles_100um",
			"co2", "co2_temperature", "co2_humidity",
			"form_formaldehyde", "form_humidity", "form_temperature",
			"pm40_standard", "particles_40um",
			"pm_temperature", "pm_humidity", "pm_voc_idx", "pm_nox_idx", "particles_tps",
		},
		types: []string{
			"INTEGER", "INTEGER", "INTEGER",
			"INTEGER", "INTEGER", "INTEGER",
			"INTEGER", "INTEGER", "INTEGER",
			"INTEGER", "INTEGER", "INTEGER",
			"INTEGER", "REAL", "REAL",
			"REAL", "REAL", "REAL",
			"INTEGER", "INTEGER",
			"REAL", "REAL", "REAL", "REAL", "REAL",
		},
		values: func(t *decode.Telemetry) []any {
			m := t.AirQuality
			if m == nil {
				return nil
			}
			return []any{
				nullInt64(m.Pm10Standard), nullInt64(m.Pm25Standard), nullInt64(m.Pm100Standard),
				nullInt64(m.Pm10Environmental), nullInt64(m.Pm25Environmental), nullInt64(m.Pm100Environmental),
				nullInt64(m.Particles03um), nullInt64(m.Particles05um), nullInt64(m.Particles10um),
				nullInt64(m.Particles25um), nullInt64(m.Particles50um), nullInt64(m.Particles100um),
				nullInt64(m.Co2), nullFloat64(m.Co2Temperature), nullFloat64(m.Co2Humidity),
				nullFloat64(m.FormFormaldehyde), nullFloat64(m.FormHumidity), nullFloat64(m.FormTemperature),
				nullInt64(m.Pm40Standard), nullInt64(m.Particles40um),
				nullFloat64(m.PmTemperature), nullFloat64(m.PmHumidity),
				nullFloat64(m.PmVocIdx), nullFloat64(m.PmNoxIdx), nullFloat64(m.ParticlesTps),
			}
		},
	},
	{
		name:  "local_stats",
		table: "telemetry_local_stats",
		columns: []string{
			"uptime_seconds", "channel_utilization", "air_util_tx",
			"num_packets_tx", "num_packets_rx", "num_packets_rx_bad",
			"num_online_nodes", "num_total_nodes", "num_rx_dupe",
			"num_tx_relay", "num_tx_relay_canceled",
			"heap_total_bytes", "heap_free_bytes", "num_tx_dropped",
		},
		types: []string{
			"INTEGER", "REAL", "REAL",
			"INTEGER", "INTEGER", "INTEGER",
			"INTEGER", "INTEGER", "INTEGER",
			"INTEGER", "INTEGER",
			"INTEGER", "INTEGER", "INTEGER",
		},
		values: func(t *decode.Telemetry) []any {
			m := t.LocalStats
			if m == nil {
				return nil
			}
			return []any{
				nullInt64(m.UptimeSeconds),
				nullFloat64(m.ChannelUtilization),
				nullFloat64(m.AirUtilTx),
				nullInt64(m.NumPacketsTx),
				nullInt64(m.NumPacketsRx),
				nullInt64(m.NumPacketsRxBad),
				nullInt64(m.NumOnlineNodes),
				nullInt64(m.NumTotalNodes),
				nullInt64(m.NumRxDupe),
				nullInt64(m.NumTxRelay),
				nullInt64(m.NumTxRelayCanceled),
				nullInt64(m.HeapTotalBytes),
				nullInt64(m.HeapFreeBytes),
				nullInt64(m.NumTxDropped),
			}
		},
	},
	{
		name:  "health",
		table: "telemetry_health",
		// spO2 keeps its mixed-case spelling; readers probe it by that name.
		columns: []string{"heart_bpm", "spO2", "temperature"},
		types:   []string{"INTEGER", "INTEGER", "REAL"},
		values: func(t *decode.Telemetry) []any {
			m := t.Health
			if m == nil {
				return nil
			}
			return []any{
				nullInt64(m.HeartBpm),
				nullInt64(m.SpO2),
				nullFloat64(m.Temperature),
			}
		},
	},
	{
		name:  "host",
		table: "telemetry_host",
		columns: []string{
			"uptime_seconds", "freemem_bytes",
			"diskfree1_bytes", "diskfree2_bytes", "diskfree3_bytes",
			"load1", "load5", "load15", "user_string",
		},
		types: []string{
			"INTEGER", "INTEGER",
			"INTEGER", "INTEGER", "INTEGER",
			"INTEGER", "INTEGER", "INTEGER", "TEXT",
		},
		values: func(t *decode.Telemetry) []any {
			m := t.Host
			if m == nil {
				return nil
			}
			return []any{
				nullInt64(m.UptimeSeconds),
				nullInt64(m.FreememBytes),
				nullInt64(m.Diskfree1Bytes),
				nullInt64(m.Diskfree2Bytes),
				nullInt64(m.Diskfree3Bytes),
				nullInt64(m.Load1),
				nullInt64(m.Load5),
				nullInt64(m.Load15),
				nullString(m.UserString),
			}
		},
	},
}
