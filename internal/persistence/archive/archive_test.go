package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"stackcraft.ai/internal/persistence/snapshot"
)

func writeDummy(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("dummy"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestArchiveSnapshot_CopiesBoundarySnapshot(t *testing.T) {
	worldDir := filepath.Join(t.TempDir(), "worlds", "w1")
	src := snapshot.PathFor(filepath.Join(worldDir, "snapshots"), 600)
	writeDummy(t, src)

	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, WorldID: "w1", Tick: 600},
		Agents: []snapshot.AgentV1{{ID: "A1", Inventory: []snapshot.SlotV1{{Slot: 0, Item: "WOOD", Count: 7}}}},
	}

	archivedPath, ok, err := ArchiveSnapshot(worldDir, src, snap, 300)
	if err != nil || !ok {
		t.Fatalf("archive: ok=%v err=%v", ok, err)
	}
	got, err := os.ReadFile(archivedPath)
	if err != nil || string(got) != "dummy" {
		t.Fatalf("archived content: %q %v", got, err)
	}

	raw, err := os.ReadFile(filepath.Join(filepath.Dir(archivedPath), "meta.json"))
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("meta decode: %v", err)
	}
	if meta.Tick != 600 || meta.Agents != 1 || meta.Items["WOOD"] != 7 {
		t.Fatalf("meta: %+v", meta)
	}
}

func TestArchiveSnapshot_SkipsOffBoundary(t *testing.T) {
	snap := snapshot.SnapshotV1{Header: snapshot.Header{Tick: 450}}
	if _, ok, err := ArchiveSnapshot(t.TempDir(), "unused", snap, 300); ok || err != nil {
		t.Fatalf("expected skip, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := ArchiveSnapshot(t.TempDir(), "unused", snap, 0); ok {
		t.Fatalf("everyTicks=0 must disable archiving")
	}
}

func TestPrune_KeepsNewest(t *testing.T) {
	dir := t.TempDir()
	for _, tick := range []uint64{100, 20, 300, 4000} {
		writeDummy(t, snapshot.PathFor(dir, tick))
	}

	removed, err := Prune(dir, 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(removed) != 2 || removed[0] != snapshot.PathFor(dir, 20) || removed[1] != snapshot.PathFor(dir, 100) {
		t.Fatalf("removed: %v", removed)
	}
	left, _ := snapshot.List(dir)
	if len(left) != 2 || snapshot.Latest(dir) != snapshot.PathFor(dir, 4000) {
		t.Fatalf("left: %v", left)
	}

	if removed, _ := Prune(dir, 0); len(removed) != 0 {
		t.Fatalf("keep=0 must not prune: %v", removed)
	}
}
