package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Identifier names a node by number or by text (name, hex id, or free text
// ending in a hex chunk).
type Identifier struct {
	numeric bool
	num     uint32
	text    string
}

// NumericID wraps an already-resolved node number.
func NumericID(num uint32) Identifier {
	return Identifier{numeric: true, num: num}
}

// TextID wraps a textual identifier for resolution.
func TextID(text string) Identifier {
	return Identifier{text: text}
}

// String renders the identifier for logs.
func (id Identifier) String() string {
	if id.numeric {
		return strconv.FormatUint(uint64(id.num), 10)
	}
	return id.text
}

var (
	hexTokenRE  = regexp.MustCompile(`^!?([0-9a-fA-F]{3,16})$`)
	hexSuffixRE = regexp.MustCompile(`([0-9a-fA-F]{3,8})$`)
)

// hexChunk extracts a hex-like chunk from text: the whole token when it is
// hex (optionally !-prefixed), otherwise a trailing run of 3 to 8 hex digits.
func hexChunk(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if m := hexTokenRE.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1]), true
	}
	if m := hexSuffixRE.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1]), true
	}
	return "", false
}

// Resolve maps an identifier to candidate node numbers.
//
// Numeric identifiers pass through unchanged. Text goes through exact
// case-insensitive name matching first; any name hit suppresses hex
// resolution. Otherwise a hex chunk is tried as an exact node number, then as
// a suffix of every known node's canonical 8-digit hex form. No match yields
// a nil slice, ambiguity a multi-element one; neither is an error.
func (d *DB) Resolve(ctx context.Context, id Identifier) ([]uint32, error) {
	candidates, err := d.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	d.metrics.ObserveResolverLookup(len(candidates))
	return candidates, nil
}

func (d *DB) resolve(ctx context.Context, id Identifier) ([]uint32, error) {
	if id.numeric {
		return []uint32{id.num}, nil
	}

	text := strings.TrimSpace(id.text)
	if text == "" {
		return nil, nil
	}

	nameHits, err := d.queryByName(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(nameHits) > 0 {
		return nameHits, nil
	}

	chunk, ok := hexChunk(text)
	if !ok {
		return nil, nil
	}

	if exact, err := d.exactHexMatch(ctx, chunk); err != nil {
		return nil, err
	} else if exact != nil {
		return []uint32{*exact}, nil
	}

	return d.suffixMatches(ctx, chunk)
}

func (d *DB) queryByName(ctx context.Context, name string) ([]uint32, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT node_id FROM nodes
	    WHERE owner_id = ?
	    AND (short_name = ? COLLATE NOCASE OR long_name = ? COLLATE NOCASE)
	    ORDER BY node_id`, int64(d.owner), name, name)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve by name: %w", err)
	}
	defer rows.Close()

	var out []uint32
	for rows.Next() {
		var num int64
		if err := rows.Scan(&num); err != nil {
			return nil, fmt.Errorf("storage: scan node id: %w", err)
		}
		out = append(out, uint32(num))
	}
	return out, rows.Err()
}

// exactHexMatch converts the chunk to a node number and confirms it exists.
func (d *DB) exactHexMatch(ctx context.Context, chunk string) (*uint32, error) {
	num, err := strconv.ParseUint(chunk, 16, 64)
	if err != nil || num > math.MaxUint32 {
		return nil, nil
	}

	var one int
	err = d.db.QueryRowContext(ctx,
		`SELECT 1 FROM nodes WHERE owner_id = ? AND node_id = ? LIMIT 1`,
		int64(d.owner), int64(num)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: resolve exact hex: %w", err)
	}
	exact := uint32(num)
	return &exact, nil
}

func (d *DB) suffixMatches(ctx context.Context, chunk string) ([]uint32, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT node_id FROM nodes WHERE owner_id = ? ORDER BY node_id`, int64(d.owner))
	if err != nil {
		return nil, fmt.Errorf("storage: list node ids: %w", err)
	}
	defer rows.Close()

	var out []uint32
	for rows.Next() {
		var num int64
		if err := rows.Scan(&num); err != nil {
			return nil, fmt.Errorf("storage: scan node id: %w", err)
		}
		if strings.HasSuffix(fmt.Sprintf("%08x", uint32(num)), chunk) {
			out = append(out, uint32(num))
		}
	}
	return out, rows.Err()
}
