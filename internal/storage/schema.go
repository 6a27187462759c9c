package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// EnsureSchema creates missing tables, columns and indexes. Safe to call
// repeatedly; called once during Open.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if err := d.migrateNodes(ctx); err != nil {
		return err
	}
	if err := d.migrateLocations(ctx); err != nil {
		return err
	}
	if err := d.migrateTelemetry(ctx); err != nil {
		return err
	}
	if err := d.migrateMessages(ctx); err != nil {
		return err
	}
	return nil
}

func (d *DB) migrateNodes(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS nodes (
	    owner_id INTEGER NOT NULL,
	    node_id INTEGER NOT NULL,
	    long_name TEXT,
	    short_name TEXT,
	    mac_address TEXT,
	    hw_model TEXT,
	    role TEXT,
	    is_licensed INTEGER,
	    public_key TEXT,
	    is_unmessagable INTEGER,
	    last_heard INTEGER,
	    hops_away INTEGER,
	    snr REAL,
	    PRIMARY KEY (owner_id, node_id)
	)`)
	if err != nil {
		return fmt.Errorf("%w: migrate nodes: %v", ErrStorageUnavailable, err)
	}

	// Forward-compat for databases created before these fields existed.
	for _, col := range []struct{ name, typ string }{
		{"mac_address", "TEXT"},
		{"is_licensed", "INTEGER"},
		{"is_unmessagable", "INTEGER"},
		{"last_heard", "INTEGER"},
		{"hops_away", "INTEGER"},
		{"snr", "REAL"},
	} {
		if err := d.addColumnIfMissing(ctx, "nodes", col.name, col.typ); err != nil {
			return fmt.Errorf("%w: add nodes.%s: %v", ErrStorageUnavailable, col.name, err)
		}
	}

	if _, err := d.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_nodes_last_heard ON nodes(owner_id, last_heard DESC)`); err != nil {
		return fmt.Errorf("%w: index nodes last_heard: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (d *DB) migrateLocations(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS locations (
	    owner_id INTEGER NOT NULL,
	    node_id INTEGER NOT NULL,
	    timestamp INTEGER,
	    latitude REAL,
	    longitude REAL,
	    latitude_i INTEGER,
	    longitude_i INTEGER,
	    altitude REAL,
	    location_source TEXT,
	    altitude_source TEXT,
	    pos_time INTEGER,
	    pos_timestamp INTEGER,
	    pos_timestamp_ms_adjust INTEGER,
	    altitude_hae INTEGER,
	    altitude_geoidal_separation INTEGER,
	    pdop INTEGER,
	    hdop INTEGER,
	    vdop INTEGER,
	    gps_accuracy INTEGER,
	    ground_speed INTEGER,
	    ground_track INTEGER,
	    fix_quality INTEGER,
	    fix_type INTEGER,
	    sats_in_view INTEGER,
	    sensor_id INTEGER,
	    next_update INTEGER,
	    seq_number INTEGER,
	    precision_bits INTEGER
	)`)
	if err != nil {
		return fmt.Errorf("%w: migrate locations: %v", ErrStorageUnavailable, err)
	}

	if _, err := d.db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_locations_node ON locations(owner_id, node_id)`); err != nil {
		return fmt.Errorf("%w: unique index locations: %v", ErrStorageUnavailable, err)
	}
	if _, err := d.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_locations_node_time ON locations(owner_id, node_id, timestamp)`); err != nil {
		return fmt.Errorf("%w: index locations time: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (d *DB) migrateTelemetry(ctx context.Context) error {
	for _, sub := range telemetrySubtypes {
		var b strings.Builder
		fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (owner_id INTEGER NOT NULL, node_id INTEGER NOT NULL, timestamp INTEGER", sub.table)
		for i, col := range sub.columns {
			fmt.Fprintf(&b, ", %s %s", col, sub.types[i])
		}
		b.WriteString(")")
		if _, err := d.db.ExecContext(ctx, b.String()); err != nil {
			return fmt.Errorf("%w: migrate %s: %v", ErrStorageUnavailable, sub.table, err)
		}

		if _, err := d.db.ExecContext(ctx, fmt.Sprintf(
			`CREATE UNIQUE INDEX IF NOT EXISTS uniq_%s_node ON %s(owner_id, node_id)`,
			sub.table, sub.table)); err != nil {
			return fmt.Errorf("%w: unique index %s: %v", ErrStorageUnavailable, sub.table, err)
		}
		if _, err := d.db.ExecContext(ctx, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_%s_node_time ON %s(owner_id, node_id, timestamp)`,
			sub.table, sub.table)); err != nil {
			return fmt.Errorf("%w: index %s time: %v", ErrStorageUnavailable, sub.table, err)
		}
	}
	return nil
}

func (d *DB) migrateMessages(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS messages (
	    id INTEGER PRIMARY KEY AUTOINCREMENT,
	    owner_id INTEGER NOT NULL,
	    channel TEXT NOT NULL,
	    node_id INTEGER,
	    text TEXT,
	    timestamp INTEGER
	)`)
	if err != nil {
		return fmt.Errorf("%w: migrate messages: %v", ErrStorageUnavailable, err)
	}

	if _, err := d.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel_time ON messages(owner_id, channel, timestamp)`); err != nil {
		return fmt.Errorf("%w: index messages: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func (d *DB) addColumnIfMissing(ctx context.Context, table, column, columnType string) error {
	query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, columnType)
	if _, err := d.db.ExecContext(ctx, query); err != nil {
		if strings.Contains(err.Error(), "duplicate column name") {
			return nil
		}
		return err
	}
	return nil
}

func (d *DB) tableColumnNames(ctx context.Context, table string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("storage: table info %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("storage: scan table info: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
