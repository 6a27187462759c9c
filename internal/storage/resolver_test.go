package storage_test

import (
	"context"
	"testing"

	"github.com/meshtools/meshdb/internal/decode"
	"github.com/meshtools/meshdb/internal/storage"
)

func seedNode(t *testing.T, db *storage.DB, num uint32, longName, shortName string) {
	t.Helper()

	res := db.HandlePacket(context.Background(), decode.Packet{
		From:   num,
		RxTime: 1700000100,
		Port:   decode.PortNodeInfo,
		User:   &decode.User{LongName: ptr(longName), ShortName: ptr(shortName)},
	})
	if !res.NodeInfo {
		t.Fatalf("seed node %d: %+v", num, res)
	}
}

func TestResolveNumericPassThrough(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	// Numbers resolve to themselves without a lookup, known or not.
	got, err := db.Resolve(ctx, storage.NumericID(4242))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0] != 4242 {
		t.Fatalf("expected [4242], got %v", got)
	}
}

func TestResolveExactNameCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedNode(t, db, 0xdeadbeef, "Futel - arbor SOL", "FONE")
	seedNode(t, db, 0x00adbeef, "Relay Two", "R2")

	for _, input := range []string{"FONE", "fone", "futel - arbor sol"} {
		got, err := db.Resolve(ctx, storage.TextID(input))
		if err != nil {
			t.Fatalf("resolve %q: %v", input, err)
		}
		if len(got) != 1 || got[0] != 0xdeadbeef {
			t.Fatalf("resolve %q: expected [deadbeef], got %v", input, got)
		}
	}
}

func TestResolveNameMatchSuppressesHex(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	// "cafe" is both a short name and a plausible hex id of another node.
	seedNode(t, db, 0x0000cafe, "Cafe Corner", "cafe")
	seedNode(t, db, 0x00feca00, "Other", "OTH")

	got, err := db.Resolve(ctx, storage.TextID("cafe"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0] != 0x0000cafe {
		t.Fatalf("expected name match only, got %v", got)
	}
}

func TestResolveFullHexToken(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedNode(t, db, 0xdeadbeef, "Futel - arbor SOL", "FONE")
	seedNode(t, db, 0x00adbeef, "Relay Two", "R2")

	for _, input := range []string{"!deadbeef", "deadbeef", "DEADBEEF"} {
		got, err := db.Resolve(ctx, storage.TextID(input))
		if err != nil {
			t.Fatalf("resolve %q: %v", input, err)
		}
		if len(got) != 1 || got[0] != 0xdeadbeef {
			t.Fatalf("resolve %q: expected exact hex match, got %v", input, got)
		}
	}
}

func TestResolveHexSuffix(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedNode(t, db, 0xdeadbeef, "Futel - arbor SOL", "FONE")
	seedNode(t, db, 0x00adbeef, "Relay Two", "R2")

	// Seven digits match only the deadbeef node.
	got, err := db.Resolve(ctx, storage.TextID("eadbeef"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0] != 0xdeadbeef {
		t.Fatalf("expected single suffix match, got %v", got)
	}

	// A shared suffix returns every candidate.
	got, err = db.Resolve(ctx, storage.TextID("beef"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two suffix matches, got %v", got)
	}
}

func TestResolveExactHexWinsOverSuffix(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedNode(t, db, 0xdeadbeef, "Futel - arbor SOL", "FONE")
	seedNode(t, db, 0x00adbeef, "Relay Two", "R2")

	// "adbeef" is both an existing node number and a suffix of deadbeef;
	// the exact conversion takes priority.
	got, err := db.Resolve(ctx, storage.TextID("adbeef"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0] != 0x00adbeef {
		t.Fatalf("expected exact hex match to win, got %v", got)
	}
}

func TestResolveTrailingChunkInFreeText(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedNode(t, db, 0xdeadbeef, "Futel - arbor SOL", "FONE")

	got, err := db.Resolve(ctx, storage.TextID("Meshtastic dbeef"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0] != 0xdeadbeef {
		t.Fatalf("expected trailing chunk suffix match, got %v", got)
	}
}

func TestResolveNoMatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedNode(t, db, 0xdeadbeef, "Futel - arbor SOL", "FONE")

	for _, input := range []string{"no such node zz", "", "  "} {
		got, err := db.Resolve(ctx, storage.TextID(input))
		if err != nil {
			t.Fatalf("resolve %q: %v", input, err)
		}
		if got != nil {
			t.Fatalf("resolve %q: expected nil, got %v", input, got)
		}
	}
}
