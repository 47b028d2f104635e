package worldtest

import (
	"io"
	"log"
	"testing"

	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/tuning"
	world "stackcraft.ai/internal/sim/world"
)

func loadCats(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func testConfig(id string) world.WorldConfig {
	tune := tuning.Defaults()
	tune.StarterItems = map[string]int{"BREAD": 5, "PICKAXE": 1}
	return world.WorldConfig{ID: id, Tuning: tune, Logger: log.New(io.Discard, "", 0)}
}

func slotOf(v *protocol.StoreView, slot int) protocol.SlotStack {
	if v == nil {
		return protocol.SlotStack{}
	}
	for _, s := range v.Slots {
		if s.Slot == slot {
			return s
		}
	}
	return protocol.SlotStack{}
}

func containerView(inv protocol.InvMsg, id string) *protocol.StoreView {
	for i := range inv.Containers {
		if inv.Containers[i].ContainerID == id {
			return &inv.Containers[i]
		}
	}
	return nil
}

func mustOK(t *testing.T, ack protocol.AckMsg) {
	t.Helper()
	for _, r := range ack.Results {
		if r.Code != "" {
			t.Fatalf("op %s (%s) failed: %s %s", r.ID, r.Op, r.Code, r.Message)
		}
	}
}
