package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var ownerFileRE = regexp.MustCompile(`(?:^|\.)(\d{4,})\.(?:db|sqlite3)$`)

// DBPathFor resolves the database file for an owner node.
//
// A directory base yields `<owner>.db` inside it. A file base gets the owner
// interpolated before the extension. An empty base falls back to the working
// directory.
func DBPathFor(basePath string, owner uint32) (string, error) {
	name := strconv.FormatUint(uint64(owner), 10)
	if basePath == "" {
		abs, err := filepath.Abs(name + ".db")
		if err != nil {
			return "", fmt.Errorf("storage: resolve path: %w", err)
		}
		return abs, nil
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}

	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return filepath.Join(abs, name+".db"), nil
	}

	ext := filepath.Ext(abs)
	if ext != "" {
		return strings.TrimSuffix(abs, ext) + "." + name + ext, nil
	}
	return abs + "." + name + ".sqlite3", nil
}

// InferOwnerCandidates scans the base path for per-owner database files and
// returns the owner node numbers they imply, sorted ascending.
func InferOwnerCandidates(basePath string) ([]uint32, error) {
	dir := basePath
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve path: %w", err)
	}
	if info, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: stat %s: %w", abs, err)
	} else if !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read dir %s: %w", abs, err)
	}

	seen := make(map[uint32]struct{})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := ownerFileRE.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		num, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		seen[uint32(num)] = struct{}{}
	}

	out := make([]uint32, 0, len(seen))
	for num := range seen {
		out = append(out, num)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
