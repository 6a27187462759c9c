package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meshtools/meshdb/internal/decode"
)

// StoreResult reports which parts of a packet were persisted.
type StoreResult struct {
	NodeInfo         bool
	Position         bool
	Telemetry        bool
	Message          bool
	TouchedLastHeard bool
}

// HandlePacket routes a decoded packet into the owner's tables. Sub-writes
// are independent: a failing category is logged and counted, the rest still
// run. The result never carries an error.
func (d *DB) HandlePacket(ctx context.Context, pkt decode.Packet) StoreResult {
	var res StoreResult

	d.metrics.IncPacketsHandled()

	if pkt.From == 0 {
		d.metrics.IncMalformedPackets()
		d.logger.Warn("packet without source node id skipped")
		return res
	}

	rxTime := pkt.RxTime
	if rxTime == 0 {
		rxTime = d.now().Unix()
	}

	// Envelope bookkeeping runs for every packet.
	touch := nodeUpdate{LastHeard: &rxTime, Snr: pkt.Snr, HopsAway: pkt.HopsAway}
	if err := d.upsertNode(ctx, pkt.From, touch); err != nil {
		d.metrics.IncStoreErrors()
		d.logger.Warn("last_heard update failed",
			slog.Uint64("node", uint64(pkt.From)), slog.Any("error", err))
	} else {
		res.TouchedLastHeard = true
	}

	if pkt.Port == decode.PortNodeInfo && pkt.User != nil {
		if err := d.storeNodeInfo(ctx, pkt.From, pkt.User); err != nil {
			d.metrics.IncStoreErrors()
			d.logger.Warn("nodeinfo upsert failed",
				slog.Uint64("node", uint64(pkt.From)), slog.Any("error", err))
		} else {
			d.metrics.IncNodeUpsert()
			res.NodeInfo = true
		}
	}

	if pkt.Position != nil {
		if err := d.storePosition(ctx, pkt.From, rxTime, pkt.Position); err != nil {
			d.metrics.IncStoreErrors()
			d.logger.Warn("position store failed",
				slog.Uint64("node", uint64(pkt.From)), slog.Any("error", err))
		} else {
			d.metrics.IncPositionStored()
			res.Position = true
		}
	}

	if pkt.Telemetry != nil {
		stored, err := d.storeTelemetry(ctx, pkt.From, rxTime, pkt.Telemetry)
		if err != nil {
			d.metrics.IncStoreErrors()
			d.logger.Warn("telemetry store failed",
				slog.Uint64("node", uint64(pkt.From)), slog.Any("error", err))
		}
		res.Telemetry = stored
	}

	if pkt.Text != nil {
		if err := d.storeMessage(ctx, pkt.From, rxTime, pkt.Text); err != nil {
			if errors.Is(err, ErrMalformedInput) {
				d.metrics.IncMalformedPackets()
			} else {
				d.metrics.IncStoreErrors()
			}
			d.logger.Warn("message store failed",
				slog.Uint64("node", uint64(pkt.From)), slog.Any("error", err))
		} else {
			d.metrics.IncMessageStored()
			res.Message = true
		}
	}

	return res
}

// nodeUpdate carries the fields a write wants to change; nil fields keep
// their stored value.
type nodeUpdate struct {
	LongName       *string
	ShortName      *string
	MacAddr        *string
	HWModel        *string
	Role           *string
	PublicKey      *string
	IsLicensed     *bool
	IsUnmessagable *bool
	LastHeard      *int64
	HopsAway       *int64
	Snr            *float64
}

func (d *DB) storeNodeInfo(ctx context.Context, nodeID uint32, user *decode.User) error {
	return d.upsertNode(ctx, nodeID, nodeUpdate{
		LongName:       user.LongName,
		ShortName:      user.ShortName,
		MacAddr:        user.MacAddr,
		HWModel:        user.HWModel,
		Role:           user.Role,
		PublicKey:      user.PublicKey,
		IsLicensed:     user.IsLicensed,
		IsUnmessagable: user.IsUnmessagable,
	})
}

// upsertNode merges the update with the existing row, filling first-insert
// defaults for identity fields that were never reported.
func (d *DB) upsertNode(ctx context.Context, nodeID uint32, upd nodeUpdate) error {
	row := d.db.QueryRowContext(ctx, `SELECT
	    long_name, short_name, mac_address, hw_model, role, is_licensed,
	    public_key, is_unmessagable, last_heard, hops_away, snr
	FROM nodes WHERE owner_id = ? AND node_id = ?`, int64(d.owner), int64(nodeID))

	var ex struct {
		longName, shortName, mac, hw, role, pub sql.NullString
		licensed, unmessagable, lastHeard, hops sql.NullInt64
		snr                                     sql.NullFloat64
	}
	err := row.Scan(
		&ex.longName, &ex.shortName, &ex.mac, &ex.hw, &ex.role, &ex.licensed,
		&ex.pub, &ex.unmessagable, &ex.lastHeard, &ex.hops, &ex.snr,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("storage: read node %d: %w", nodeID, err)
	}

	suffix := hexID(nodeID)[5:]

	longName := mergeString(upd.LongName, ex.longName, "Meshtastic "+suffix)
	shortName := mergeString(upd.ShortName, ex.shortName, suffix)
	mac := mergeString(upd.MacAddr, ex.mac, "")
	hw := mergeString(upd.HWModel, ex.hw, "UNSET")
	role := mergeString(upd.Role, ex.role, "CLIENT")
	pub := mergeString(upd.PublicKey, ex.pub, "")
	licensed := mergeBool(upd.IsLicensed, ex.licensed)
	unmessagable := mergeBool(upd.IsUnmessagable, ex.unmessagable)
	lastHeard := mergeInt64(upd.LastHeard, ex.lastHeard)
	hops := mergeInt64(upd.HopsAway, ex.hops)
	snr := mergeFloat64(upd.Snr, ex.snr)

	_, err = d.db.ExecContext(ctx, `INSERT INTO nodes (
	    owner_id, node_id, long_name, short_name, mac_address, hw_model, role,
	    is_licensed, public_key, is_unmessagable, last_heard, hops_away, snr
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(owner_id, node_id) DO UPDATE SET
	    long_name=excluded.long_name,
	    short_name=excluded.short_name,
	    mac_address=excluded.mac_address,
	    hw_model=excluded.hw_model,
	    role=excluded.role,
	    is_licensed=excluded.is_licensed,
	    public_key=excluded.public_key,
	    is_unmessagable=excluded.is_unmessagable,
	    last_heard=excluded.last_heard,
	    hops_away=excluded.hops_away,
	    snr=excluded.snr`,
		int64(d.owner), int64(nodeID), longName, shortName, mac, hw, role,
		licensed, pub, unmessagable, lastHeard, hops, snr,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert node %d: %w", nodeID, err)
	}
	return nil
}

func (d *DB) storePosition(ctx context.Context, nodeID uint32, rxTime int64, pos *decode.Position) error {
	_, err := d.db.ExecContext(ctx, `INSERT INTO locations (
	    owner_id, node_id, timestamp, latitude, longitude, latitude_i, longitude_i,
	    altitude, location_source, altitude_source, pos_time, pos_timestamp,
	    pos_timestamp_ms_adjust, altitude_hae, altitude_geoidal_separation,
	    pdop, hdop, vdop, gps_accuracy, ground_speed, ground_track,
	    fix_quality, fix_type, sats_in_view, sensor_id, next_update,
	    seq_number, precision_bits
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(owner_id, node_id) DO UPDATE SET
	    timestamp=excluded.timestamp,
	    latitude=excluded.latitude,
	    longitude=excluded.longitude,
	    latitude_i=excluded.latitude_i,
	    longitude_i=excluded.longitude_i,
	    altitude=excluded.altitude,
	    location_source=excluded.location_source,
	    altitude_source=excluded.altitude_source,
	    pos_time=excluded.pos_time,
	    pos_timestamp=excluded.pos_timestamp,
	    pos_timestamp_ms_adjust=excluded.pos_timestamp_ms_adjust,
	    altitude_hae=excluded.altitude_hae,
	    altitude_geoidal_separation=excluded.altitude_geoidal_separation,
	    pdop=excluded.pdop,
	    hdop=excluded.hdop,
	    vdop=excluded.vdop,
	    gps_accuracy=excluded.gps_accuracy,
	    ground_speed=excluded.ground_speed,
	    ground_track=excluded.ground_track,
	    fix_quality=excluded.fix_quality,
	    fix_type=excluded.fix_type,
	    sats_in_view=excluded.sats_in_view,
	    sensor_id=excluded.sensor_id,
	    next_update=excluded.next_update,
	    seq_number=excluded.seq_number,
	    precision_bits=excluded.precision_bits`,
		int64(d.owner), int64(nodeID), rxTime,
		nullFloat64(pos.Latitude), nullFloat64(pos.Longitude),
		nullInt64(pos.LatitudeI), nullInt64(pos.LongitudeI),
		nullFloat64(pos.Altitude),
		nullString(pos.LocationSource), nullString(pos.AltitudeSource),
		nullInt64(pos.Time), nullInt64(pos.Timestamp), nullInt64(pos.TimestampMillisAdjust),
		nullInt64(pos.AltitudeHae), nullInt64(pos.AltitudeGeoidalSeparation),
		nullInt64(pos.Pdop), nullInt64(pos.Hdop), nullInt64(pos.Vdop),
		nullInt64(pos.GpsAccuracy), nullInt64(pos.GroundSpeed), nullInt64(pos.GroundTrack),
		nullInt64(pos.FixQuality), nullInt64(pos.FixType), nullInt64(pos.SatsInView),
		nullInt64(pos.SensorID), nullInt64(pos.NextUpdate), nullInt64(pos.SeqNumber),
		nullInt64(pos.PrecisionBits),
	)
	if err != nil {
		return fmt.Errorf("storage: upsert location: %w", err)
	}
	return nil
}

// storeTelemetry writes one row per subtype present in the payload. Reports
// whether at least one subtype landed; the first error aborts the remainder.
func (d *DB) storeTelemetry(ctx context.Context, nodeID uint32, rxTime int64, tel *decode.Telemetry) (bool, error) {
	ts := rxTime
	if tel.Time != nil && *tel.Time != 0 {
		ts = *tel.Time
	}

	stored := false
	for _, sub := range telemetrySubtypes {
		vals := sub.values(tel)
		if vals == nil {
			continue
		}

		args := make([]any, 0, len(vals)+3)
		args = append(args, int64(d.owner), int64(nodeID), ts)
		args = append(args, vals...)

		if _, err := d.db.ExecContext(ctx, telemetryUpsertSQL(sub), args...); err != nil {
			return stored, fmt.Errorf("storage: upsert %s: %w", sub.table, err)
		}
		d.metrics.IncTelemetryStored(sub.name)
		stored = true
	}
	return stored, nil
}

func telemetryUpsertSQL(sub telemetrySubtype) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (owner_id, node_id, timestamp", sub.table)
	for _, col := range sub.columns {
		b.WriteString(", ")
		b.WriteString(col)
	}
	b.WriteString(") VALUES (?, ?, ?")
	b.WriteString(strings.Repeat(", ?", len(sub.columns)))
	b.WriteString(") ON CONFLICT(owner_id, node_id) DO UPDATE SET timestamp=excluded.timestamp")
	for _, col := range sub.columns {
		fmt.Fprintf(&b, ", %s=excluded.%s", col, col)
	}
	return b.String()
}

func (d *DB) storeMessage(ctx context.Context, nodeID uint32, rxTime int64, msg *decode.TextMessage) error {
	if msg.Text == "" {
		return fmt.Errorf("%w: empty message text", ErrMalformedInput)
	}
	channel := msg.Channel
	if channel == "" {
		channel = "0"
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO messages (owner_id, channel, node_id, text, timestamp) VALUES (?, ?, ?, ?, ?)`,
		int64(d.owner), channel, int64(nodeID), msg.Text, rxTime,
	)
	if err != nil {
		return fmt.Errorf("storage: insert message: %w", err)
	}
	return nil
}

func mergeString(upd *string, existing sql.NullString, fallback string) string {
	if upd != nil {
		return *upd
	}
	if existing.Valid {
		return existing.String
	}
	return fallback
}

func mergeBool(upd *bool, existing sql.NullInt64) int64 {
	if upd != nil {
		if *upd {
			return 1
		}
		return 0
	}
	if existing.Valid {
		return existing.Int64
	}
	return 0
}

func mergeInt64(upd *int64, existing sql.NullInt64) any {
	if upd != nil {
		return *upd
	}
	if existing.Valid {
		return existing.Int64
	}
	return nil
}

func mergeFloat64(upd *float64, existing sql.NullFloat64) any {
	if upd != nil {
		return *upd
	}
	if existing.Valid {
		return existing.Float64
	}
	return nil
}
