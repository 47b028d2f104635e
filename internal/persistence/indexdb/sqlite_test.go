package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"stackcraft.ai/internal/persistence/snapshot"
	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/tuning"
	"stackcraft.ai/internal/sim/world"
)

func openTemp(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "world.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSQLiteIndex_AuditsQuery(t *testing.T) {
	idx := openTemp(t)
	ctx := context.Background()

	entries := []world.AuditEntry{
		{Tick: 1, Actor: "A1", Action: "MOVE", From: "SLOT[0]", To: "CURSOR", Item: "WOOD", Count: 5},
		{Tick: 1, Actor: "A2", Action: "DROP", From: "CURSOR", To: "GROUND", Item: "COAL", Count: 2},
		{Tick: 2, Actor: "A1", Action: "RELEASE", From: "CURSOR", Item: "WOOD", Code: "E_STRANDED", Reason: "5 WOOD dropped on the ground"},
		{Tick: 3, Actor: "A1", Action: "MOVE_N", Code: "E_BAD_REQUEST"},
	}
	for _, e := range entries {
		if err := idx.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	rows, err := idx.QueryAudits(ctx, "A1", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 || rows[0].Tick != 3 || rows[1].Code != "E_STRANDED" {
		t.Fatalf("rows: %+v", rows)
	}

	all, err := idx.QueryAudits(ctx, "", 0)
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("all rows: %d", len(all))
	}
	// Same tick entries keep arrival order through seq.
	if all[2].Actor != "A2" || all[2].Seq != 1 || all[3].Seq != 0 {
		t.Fatalf("seq order: %+v", all)
	}
}

func TestSQLiteIndex_RecordSnapshotReplacesSlotState(t *testing.T) {
	idx := openTemp(t)
	ctx := context.Background()

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, WorldID: "w1", Tick: 100},
		Agents: []snapshot.AgentV1{{
			ID:        "A1",
			Inventory: []snapshot.SlotV1{{Slot: 0, Item: "WOOD", Count: 30}, {Slot: 3, Item: "STONE", Count: 4}},
			Cursor:    &snapshot.SlotV1{Item: "COAL", Count: 1},
		}},
		Containers: []snapshot.ContainerV1{{ID: "CHEST@0,0,0", Type: "CHEST", Size: 27, Slots: []snapshot.SlotV1{{Slot: 5, Item: "BREAD", Count: 2}}}},
	}
	idx.RecordSnapshot("/tmp/100.snap.zst", snap)

	snap.Header.Tick = 200
	snap.Agents[0].Inventory = snap.Agents[0].Inventory[:1]
	idx.RecordSnapshot("/tmp/200.snap.zst", snap)
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	slots, err := idx.QuerySlots(ctx, "A1")
	if err != nil {
		t.Fatalf("query slots: %v", err)
	}
	if len(slots) != 1 || slots[0].Item != "WOOD" || slots[0].Tick != 200 {
		t.Fatalf("slots: %+v", slots)
	}
	cursor, _ := idx.QuerySlots(ctx, "A1/cursor")
	if len(cursor) != 1 || cursor[0].Count != 1 {
		t.Fatalf("cursor: %+v", cursor)
	}

	var n, items int
	if err := idx.db.QueryRow(`SELECT COUNT(*), MAX(items) FROM snapshots`).Scan(&n, &items); err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if n != 2 || items != 37 {
		t.Fatalf("snapshots n=%d items=%d", n, items)
	}
}

func TestSQLiteIndex_UpsertCatalog(t *testing.T) {
	idx := openTemp(t)
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if err := idx.UpsertCatalog(cats, tuning.Defaults()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	d, err := idx.CatalogDigest(context.Background(), "items_defs")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if d != cats.Items.DefsDigest {
		t.Fatalf("digest %s want %s", d, cats.Items.DefsDigest)
	}
	if _, err := idx.CatalogDigest(context.Background(), "tuning"); err != nil {
		t.Fatalf("tuning row: %v", err)
	}
}

func TestSQLiteIndex_ClosedIsNoop(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "x.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.WriteAudit(world.AuditEntry{Tick: 1}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("double close: %v", err)
	}
}
