package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Snapshot is the consolidated view of one node: identity row, latest
// location, latest row per telemetry subtype. Sections missing from storage
// stay nil.
type Snapshot struct {
	NodeNum   uint32                    `json:"node_num"`
	NodeInfo  map[string]any            `json:"nodeinfo,omitempty"`
	Position  map[string]any            `json:"position,omitempty"`
	Telemetry map[string]map[string]any `json:"telemetry,omitempty"`
}

// Snapshots resolves the identifier and assembles one snapshot per candidate,
// in resolver order. An unresolved identifier yields a nil slice, not an
// error.
func (d *DB) Snapshots(ctx context.Context, id Identifier) ([]Snapshot, error) {
	nums, err := d.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, nil
	}

	out := make([]Snapshot, 0, len(nums))
	for _, num := range nums {
		snap := Snapshot{NodeNum: num}

		info, err := d.fetchRowMap(ctx,
			`SELECT * FROM nodes WHERE owner_id = ? AND node_id = ?`,
			int64(d.owner), int64(num))
		if err != nil {
			return nil, err
		}
		snap.NodeInfo = info

		pos, err := d.fetchRowMap(ctx,
			`SELECT * FROM locations WHERE owner_id = ? AND node_id = ? ORDER BY timestamp DESC LIMIT 1`,
			int64(d.owner), int64(num))
		if err != nil {
			return nil, err
		}
		snap.Position = pos

		telem, err := d.latestTelemetry(ctx, num)
		if err != nil {
			return nil, err
		}
		if len(telem) > 0 {
			snap.Telemetry = telem
		}

		d.metrics.IncSnapshotAssembled()
		out = append(out, snap)
	}
	return out, nil
}

// Metric returns a single field value for the first resolved candidate.
//
// Telemetry subtypes are searched in fixed priority order (device, power,
// environment, air_quality, local_stats, health, host); identity columns are
// the fallback, with alias normalization. A field found nowhere yields nil.
func (d *DB) Metric(ctx context.Context, id Identifier, name string) (any, error) {
	nums, err := d.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, nil
	}
	num := nums[0]

	telem, err := d.latestTelemetry(ctx, num)
	if err != nil {
		return nil, err
	}
	for _, sub := range telemetrySubtypes {
		row, ok := telem[sub.name]
		if !ok {
			continue
		}
		if val, ok := row[name]; ok {
			return val, nil
		}
	}

	col := name
	if alias, ok := identityAliases[name]; ok {
		col = alias
	}

	if col == "id" || col == "node_id" {
		return hexID(num), nil
	}

	if _, ok := identityColumns[col]; !ok {
		return nil, nil
	}

	row, err := d.fetchRowMap(ctx,
		`SELECT * FROM nodes WHERE owner_id = ? AND node_id = ?`,
		int64(d.owner), int64(num))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return row[col], nil
}

// identityAliases maps common spelling variants to the stored column names.
var identityAliases = map[string]string{
	"hardware_model": "hw_model",
	"hwModel":        "hw_model",
	"longName":       "long_name",
	"shortName":      "short_name",
	"macaddr":        "mac_address",
	"macAddr":        "mac_address",
	"publicKey":      "public_key",
	"isLicensed":     "is_licensed",
	"isUnmessagable": "is_unmessagable",
	"lastHeard":      "last_heard",
	"hopsAway":       "hops_away",
}

// identityColumns is the allowlist of identity fields Metric may return.
var identityColumns = map[string]struct{}{
	"long_name":       {},
	"short_name":      {},
	"mac_address":     {},
	"hw_model":        {},
	"role":            {},
	"is_licensed":     {},
	"public_key":      {},
	"is_unmessagable": {},
	"last_heard":      {},
	"hops_away":       {},
	"snr":             {},
}

// NodeListing is one row of the node inventory, latest readings attached.
type NodeListing struct {
	NodeID    uint32                    `json:"node_id"`
	HexID     string                    `json:"id"`
	LongName  string                    `json:"long_name"`
	ShortName string                    `json:"short_name"`
	LastHeard *int64                    `json:"last_heard,omitempty"`
	HopsAway  *int64                    `json:"hops_away,omitempty"`
	Snr       *float64                  `json:"snr,omitempty"`
	Location  map[string]any            `json:"location,omitempty"`
	Telemetry map[string]map[string]any `json:"telemetry,omitempty"`
}

// ListNodes returns every known node, most recently heard first, with the
// latest location and telemetry rows attached.
func (d *DB) ListNodes(ctx context.Context) ([]NodeListing, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT node_id, long_name, short_name, last_heard, hops_away, snr
	    FROM nodes WHERE owner_id = ?
	    ORDER BY (last_heard IS NULL), last_heard DESC`, int64(d.owner))
	if err != nil {
		return nil, fmt.Errorf("storage: list nodes: %w", err)
	}
	defer rows.Close()

	var out []NodeListing
	for rows.Next() {
		var (
			num       int64
			longName  sql.NullString
			shortName sql.NullString
			lastHeard sql.NullInt64
			hops      sql.NullInt64
			snr       sql.NullFloat64
		)
		if err := rows.Scan(&num, &longName, &shortName, &lastHeard, &hops, &snr); err != nil {
			return nil, fmt.Errorf("storage: scan node: %w", err)
		}

		node := NodeListing{
			NodeID:    uint32(num),
			HexID:     hexID(uint32(num)),
			LongName:  longName.String,
			ShortName: shortName.String,
		}
		if node.LongName == "" {
			node.LongName = node.HexID
		}
		if node.ShortName == "" {
			node.ShortName = node.HexID
		}
		if lastHeard.Valid {
			node.LastHeard = &lastHeard.Int64
		}
		if hops.Valid {
			node.HopsAway = &hops.Int64
		}
		if snr.Valid {
			node.Snr = &snr.Float64
		}
		out = append(out, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list nodes: %w", err)
	}

	for i := range out {
		num := out[i].NodeID
		loc, err := d.fetchRowMap(ctx,
			`SELECT timestamp, latitude, longitude, altitude, location_source
			    FROM locations WHERE owner_id = ? AND node_id = ?
			    ORDER BY timestamp DESC LIMIT 1`,
			int64(d.owner), int64(num))
		if err != nil {
			return nil, err
		}
		out[i].Location = loc

		telem, err := d.latestTelemetry(ctx, num)
		if err != nil {
			return nil, err
		}
		if len(telem) > 0 {
			out[i].Telemetry = telem
		}
	}
	return out, nil
}

// Message is one stored text message.
type Message struct {
	NodeID    uint32 `json:"node_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// HourBucket groups the messages of one clock hour.
type HourBucket struct {
	Hour     string    `json:"hour"`
	Messages []Message `json:"messages"`
}

// ChannelMessages returns all stored messages grouped per channel, then by
// hour in ascending order. NUL bytes are stripped from the text.
func (d *DB) ChannelMessages(ctx context.Context) (map[string][]HourBucket, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT channel, node_id, text, timestamp
	    FROM messages WHERE owner_id = ?
	    ORDER BY channel, timestamp`, int64(d.owner))
	if err != nil {
		return nil, fmt.Errorf("storage: load messages: %w", err)
	}
	defer rows.Close()

	type hourKey struct {
		channel string
		hour    string
	}
	buckets := make(map[hourKey][]Message)
	hoursPerChannel := make(map[string][]string)

	for rows.Next() {
		var (
			channel string
			nodeID  sql.NullInt64
			text    sql.NullString
			ts      sql.NullInt64
		)
		if err := rows.Scan(&channel, &nodeID, &text, &ts); err != nil {
			return nil, fmt.Errorf("storage: scan message: %w", err)
		}
		if !nodeID.Valid || !text.Valid || !ts.Valid {
			d.logger.Warn("skipping message row with NULL fields", "channel", channel)
			continue
		}

		hour := time.Unix(ts.Int64, 0).Format("2006-01-02 15:00")
		key := hourKey{channel: channel, hour: hour}
		if _, seen := buckets[key]; !seen {
			hoursPerChannel[channel] = append(hoursPerChannel[channel], hour)
		}
		buckets[key] = append(buckets[key], Message{
			NodeID:    uint32(nodeID.Int64),
			Text:      strings.ReplaceAll(text.String, "\x00", ""),
			Timestamp: ts.Int64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: load messages: %w", err)
	}

	out := make(map[string][]HourBucket, len(hoursPerChannel))
	for channel, hours := range hoursPerChannel {
		sort.Strings(hours)
		for _, hour := range hours {
			out[channel] = append(out[channel], HourBucket{
				Hour:     hour,
				Messages: buckets[hourKey{channel: channel, hour: hour}],
			})
		}
	}
	return out, nil
}

func (d *DB) latestTelemetry(ctx context.Context, num uint32) (map[string]map[string]any, error) {
	out := make(map[string]map[string]any)
	for _, sub := range telemetrySubtypes {
		row, err := d.fetchRowMap(ctx, fmt.Sprintf(
			`SELECT * FROM %s WHERE owner_id = ? AND node_id = ? ORDER BY timestamp DESC LIMIT 1`,
			sub.table), int64(d.owner), int64(num))
		if err != nil {
			return nil, err
		}
		if row != nil {
			out[sub.name] = row
		}
	}
	return out, nil
}

// fetchRowMap scans the first result row into a column-keyed map. The
// owner_id column is dropped; no row yields nil.
func (d *DB) fetchRowMap(ctx context.Context, query string, args ...any) (map[string]any, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query row: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("storage: query row: %w", err)
		}
		return nil, nil
	}

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("storage: columns: %w", err)
	}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("storage: scan row: %w", err)
	}

	out := make(map[string]any, len(cols))
	for i, col := range cols {
		if col == "owner_id" {
			continue
		}
		v := vals[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		out[col] = v
	}
	return out, nil
}
