package worldtest

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"testing"

	"stackcraft.ai/internal/persistence/snapshot"
	"stackcraft.ai/internal/protocol"
	world "stackcraft.ai/internal/sim/world"
)

// digest encodes a snapshot without the per-session resume tokens, which are
// random by design.
func digest(t *testing.T, snap snapshot.SnapshotV1) []byte {
	t.Helper()
	for i := range snap.Agents {
		snap.Agents[i].ResumeToken = ""
	}
	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

// randomOps draws a mixed op stream from a seeded source so two worlds can be
// fed the same input.
func randomOps(r *rand.Rand, n int) []protocol.InvOp {
	const chest = "CHEST@yard"
	holders := func() *protocol.HolderRef {
		switch r.Intn(4) {
		case 0:
			return Cursor()
		case 1:
			return ContainerSlot(chest, r.Intn(27))
		default:
			return Slot(r.Intn(20))
		}
	}
	ops := []protocol.InvOp{Open(chest)}
	for len(ops) < n {
		switch r.Intn(5) {
		case 0:
			ops = append(ops, Split(holders(), holders()))
		case 1:
			ops = append(ops, MoveN(holders(), holders(), 1+r.Intn(6)))
		case 2:
			ops = append(ops, protocol.InvOp{Op: protocol.OpDrop, Count: 1 + r.Intn(3)})
		case 3:
			ops = append(ops, Release())
		default:
			ops = append(ops, Move(holders(), holders()))
		}
	}
	return ops
}

func TestDeterminism_SameInputSameSnapshot(t *testing.T) {
	cats := loadCats(t)
	h1 := NewHarness(t, testConfig("det"), cats)
	h2 := NewHarness(t, testConfig("det"), cats)

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		id1, id2 := h1.Join(name), h2.Join(name)
		if id1 != id2 {
			t.Fatalf("agent id mismatch: %s vs %s", id1, id2)
		}
		ids = append(ids, id1)
	}

	r1 := rand.New(rand.NewSource(99))
	r2 := rand.New(rand.NewSource(99))
	for step := 0; step < 60; step++ {
		var acts1, acts2 []world.ActionEnvelope
		for _, id := range ids {
			acts1 = append(acts1, world.ActionEnvelope{AgentID: id, Act: Act(randomOps(r1, 6)...)})
			acts2 = append(acts2, world.ActionEnvelope{AgentID: id, Act: Act(randomOps(r2, 6)...)})
		}
		h1.DoMulti(acts1)
		h2.DoMulti(acts2)
	}

	s1, s2 := h1.Snapshot(), h2.Snapshot()
	if s1.Header.Tick != s2.Header.Tick {
		t.Fatalf("tick mismatch: %d vs %d", s1.Header.Tick, s2.Header.Tick)
	}
	if !bytes.Equal(digest(t, s1), digest(t, s2)) {
		t.Fatalf("snapshots diverged at tick %d", s1.Header.Tick)
	}
}
