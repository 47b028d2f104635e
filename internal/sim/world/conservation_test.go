package world

import (
	"math/rand"
	"testing"

	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/tuning"
)

// Random op streams from several agents never create or destroy items.
func TestOps_ConserveItems(t *testing.T) {
	w := newTestWorld(t, func(tu *tuning.Tuning) {
		tu.InventorySize = 6
		tu.StarterItems = map[string]int{"WOOD": 180, "COAL": 70, "BREAD": 12}
		tu.RateLimits.OpsPerTick = 64
	})
	var agents []*Agent
	for _, name := range []string{"a", "b", "c"} {
		a, _ := join(t, w, name)
		agents = append(agents, a)
	}
	const chest = "CRATE@0,0,0"
	for _, a := range agents {
		do(w, a, protocol.InvOp{ID: "o", Op: protocol.OpOpen, ContainerID: chest})
	}
	want := totals(w)

	rng := rand.New(rand.NewSource(7))
	holder := func() *protocol.HolderRef {
		switch rng.Intn(5) {
		case 0:
			return hand
		case 1:
			return inContainer(chest, rng.Intn(9))
		case 2:
			return &protocol.HolderRef{Holder: protocol.HolderInventory}
		default:
			return at(protocol.HolderSlot, rng.Intn(6))
		}
	}
	ops := []string{protocol.OpMove, protocol.OpMoveN, protocol.OpSplit, protocol.OpCollect, protocol.OpDrop, protocol.OpPickup, protocol.OpRelease}

	for step := 0; step < 400; step++ {
		var envs []ActionEnvelope
		for _, a := range agents {
			op := protocol.InvOp{ID: "r", Op: ops[rng.Intn(len(ops))], From: holder(), To: holder(), Count: rng.Intn(30)}
			if op.Op == protocol.OpPickup {
				gs := w.groundItems()
				if len(gs) == 0 {
					continue
				}
				op.From = &protocol.HolderRef{Holder: protocol.HolderGround, GroundID: gs[rng.Intn(len(gs))].ID}
			}
			envs = append(envs, ActionEnvelope{AgentID: a.ID, Act: protocol.ActMsg{Ops: []protocol.InvOp{op}}})
		}
		w.StepOnce(nil, nil, envs)

		got := totals(w)
		for k, v := range want {
			if got[k] != v {
				t.Fatalf("step %d: %s total %d want %d", step, k, got[k], v)
			}
		}
	}
}
