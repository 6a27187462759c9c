package decode

// Port identifies the application payload carried by a packet.
type Port string

// Canonical port names as emitted by Meshtastic decoders.
const (
	PortUnknown     Port = ""
	PortNodeInfo    Port = "NODEINFO_APP"
	PortPosition    Port = "POSITION_APP"
	PortTelemetry   Port = "TELEMETRY_APP"
	PortTextMessage Port = "TEXT_MESSAGE_APP"
)

// Packet is a decoded mesh packet normalized for persistence. Optional
// fields are pointers; nil means the sender did not report the value.
type Packet struct {
	From     uint32
	RxTime   int64
	Port     Port
	Snr      *float64
	HopsAway *int64

	User      *User
	Position  *Position
	Telemetry *Telemetry
	Text      *TextMessage
}

// User carries the NODEINFO payload.
type User struct {
	LongName       *string
	ShortName      *string
	MacAddr        *string
	HWModel        *string
	Role           *string
	IsLicensed     *bool
	PublicKey      *string
	IsUnmessagable *bool
}

// Position carries the POSITION payload.
type Position struct {
	Latitude                  *float64
	Longitude                 *float64
	LatitudeI                 *int64
	LongitudeI                *int64
	Altitude                  *float64
	LocationSource            *string
	AltitudeSource            *string
	Time                      *int64
	Timestamp                 *int64
	TimestampMillisAdjust     *int64
	AltitudeHae               *int64
	AltitudeGeoidalSeparation *int64
	Pdop                      *int64
	Hdop                      *int64
	Vdop                      *int64
	GpsAccuracy               *int64
	GroundSpeed               *int64
	GroundTrack               *int64
	FixQuality                *int64
	FixType                   *int64
	SatsInView                *int64
	SensorID                  *int64
	NextUpdate                *int64
	SeqNumber                 *int64
	PrecisionBits             *int64
}

// Telemetry groups the telemetry subtype payloads; exactly the subtypes the
// sender included are non-nil.
type Telemetry struct {
	Time        *int64
	Device      *DeviceMetrics
	Power       *PowerMetrics
	Environment *EnvironmentMetrics
	AirQuality  *AirQualityMetrics
	LocalStats  *LocalStats
	Health      *HealthMetrics
	Host        *HostMetrics
}

// DeviceMetrics are the radio's own vitals.
type DeviceMetrics struct {
	BatteryLevel       *float64
	Voltage            *float64
	ChannelUtilization *float64
	AirUtilTx          *float64
	UptimeSeconds      *int64
}

// PowerMetrics report per-channel voltage/current sensor readings.
type PowerMetrics struct {
	Ch1Voltage *float64
	Ch1Current *float64
	Ch2Voltage *float64
	Ch2Current *float64
	Ch3Voltage *float64
	Ch3Current *float64
	Ch4Voltage *float64
	Ch4Current *float64
	Ch5Voltage *float64
	Ch5Current *float64
	Ch6Voltage *float64
	Ch6Current *float64
	Ch7Voltage *float64
	Ch7Current *float64
	Ch8Voltage *float64
	Ch8Current *float64
}

// EnvironmentMetrics report weather and environmental sensor readings.
type EnvironmentMetrics struct {
	Temperature        *float64
	RelativeHumidity   *float64
	BarometricPressure *float64
	GasResistance      *float64
	Voltage            *float64
	Current            *float64
	Iaq                *int64
	Distance           *float64
	Lux                *float64
	WhiteLux           *float64
	IrLux              *float64
	UvLux              *float64
	WindDirection      *int64
	WindSpeed          *float64
	Weight             *float64
	WindGust           *float64
	WindLull           *float64
	Radiation          *float64
	Rainfall1h         *float64
	Rainfall24h        *float64
	SoilMoisture       *int64
	SoilTemperature    *float64
}

// AirQualityMetrics report particulate matter and gas concentrations.
type AirQualityMetrics struct {
	Pm10Standard       *int64
	Pm25Standard       *int64
	Pm100Standard      *int64
	Pm10Environmental  *int64
	Pm25Environmental  *int64
	Pm100Environmental *int64
	Particles03um      *int64
	Particles05um      *int64
	Particles10um      *int64
	Particles25um      *int64
	Particles50um      *int64
	Particles100um     *int64
	Co2                *int64
	Co2Temperature     *float64
	Co2Humidity        *float64
	FormFormaldehyde   *float64
	FormHumidity       *float64
	FormTemperature    *float64
	Pm40Standard       *int64
	Particles40um      *int64
	PmTemperature      *float64
	PmHumidity         *float64
	PmVocIdx           *float64
	PmNoxIdx           *float64
	ParticlesTps       *float64
}

// LocalStats report mesh-level packet counters from the node firmware.
type LocalStats struct {
	UptimeSeconds      *int64
	ChannelUtilization *float64
	AirUtilTx          *float64
	NumPacketsTx       *int64
	NumPacketsRx       *int64
	NumPacketsRxBad    *int64
	NumOnlineNodes     *int64
	NumTotalNodes      *int64
	NumRxDupe          *int64
	NumTxRelay         *int64
	NumTxRelayCanceled *int64
	HeapTotalBytes     *int64
	HeapFreeBytes      *int64
	NumTxDropped       *int64
}

// HealthMetrics report wearable sensor readings.
type HealthMetrics struct {
	HeartBpm    *int64
	SpO2        *int64
	Temperature *float64
}

// HostMetrics report vitals of the host a linux-native node runs on.
type HostMetrics struct {
	UptimeSeconds  *int64
	FreememBytes   *int64
	Diskfree1Bytes *int64
	Diskfree2Bytes *int64
	Diskfree3Bytes *int64
	Load1          *int64
	Load5          *int64
	Load15         *int64
	UserString     *string
}

// TextMessage carries a TEXT_MESSAGE payload together with its channel.
type TextMessage struct {
	Channel string
	Text    string
}
