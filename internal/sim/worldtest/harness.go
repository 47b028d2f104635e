package worldtest

import (
	"encoding/json"
	"testing"

	"stackcraft.ai/internal/persistence/snapshot"
	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/catalogs"
	world "stackcraft.ai/internal/sim/world"
)

// Harness drives a world through its exported API only:
// - Join() issues a JoinRequest via StepOnce()
// - Do()/DoMulti() issue ACTs via StepOnce()
// - per-agent Out channels carry ACK and INV JSON, decoded after every step
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	sessions map[string]*session
}

type session struct {
	AgentID string
	Out     chan []byte
	lastAck protocol.AckMsg
	lastInv protocol.InvMsg
}

func NewHarness(t *testing.T, cfg world.WorldConfig, cats *catalogs.Catalogs) *Harness {
	t.Helper()
	w, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w, cats)
}

// NewHarnessWithWorld wraps an already constructed world, e.g. one restored
// from a snapshot.
func NewHarnessWithWorld(t *testing.T, w *world.World, cats *catalogs.Catalogs) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}
	return &Harness{T: t, Cats: cats, W: w, sessions: map[string]*session{}}
}

func (h *Harness) Join(agentName string) string {
	h.T.Helper()
	out := make(chan []byte, 16)
	resp := make(chan world.JoinResponse, 1)
	h.W.StepOnce([]world.JoinRequest{{Name: agentName, Out: out, Resp: resp}}, nil, nil)
	jr := <-resp
	if jr.Welcome.AgentID == "" {
		h.T.Fatalf("join returned empty agent id")
	}
	s := &session{AgentID: jr.Welcome.AgentID, Out: out}
	h.sessions[s.AgentID] = s
	h.drain()
	return s.AgentID
}

func (h *Harness) Leave(agentID string) {
	h.T.Helper()
	s := h.must(agentID)
	h.W.StepOnce(nil, []world.LeaveRequest{{AgentID: agentID, Out: s.Out}}, nil)
	h.drain()
	delete(h.sessions, agentID)
}

// Do applies ops for one agent in a single tick and returns its ACK.
func (h *Harness) Do(agentID string, ops ...protocol.InvOp) protocol.AckMsg {
	h.T.Helper()
	h.DoMulti([]world.ActionEnvelope{{AgentID: agentID, Act: Act(ops...)}})
	return h.must(agentID).lastAck
}

func (h *Harness) DoMulti(actions []world.ActionEnvelope) {
	h.T.Helper()
	for _, s := range h.sessions {
		s.lastAck = protocol.AckMsg{}
	}
	h.W.StepOnce(nil, nil, actions)
	h.drain()
}

func (h *Harness) StepNoop() {
	h.T.Helper()
	h.W.StepOnce(nil, nil, nil)
	h.drain()
}

func (h *Harness) LastInv(agentID string) protocol.InvMsg { return h.must(agentID).lastInv }

// Snapshot exports the last completed tick, so a restore continues at the
// current tick.
func (h *Harness) Snapshot() snapshot.SnapshotV1 {
	h.T.Helper()
	cur := h.W.CurrentTick()
	if cur == 0 {
		return h.W.Snapshot(0)
	}
	return h.W.Snapshot(cur - 1)
}

func (h *Harness) must(agentID string) *session {
	h.T.Helper()
	s := h.sessions[agentID]
	if s == nil {
		h.T.Fatalf("unknown agent id: %q", agentID)
	}
	return s
}

func (h *Harness) drain() {
	h.T.Helper()
	for _, s := range h.sessions {
		for {
			select {
			case b := <-s.Out:
				h.decode(s, b)
				continue
			default:
			}
			break
		}
	}
}

func (h *Harness) decode(s *session, b []byte) {
	base, err := protocol.DecodeBase(b)
	if err != nil {
		h.T.Fatalf("decode: %v", err)
	}
	switch base.Type {
	case protocol.TypeAck:
		if err := json.Unmarshal(b, &s.lastAck); err != nil {
			h.T.Fatalf("ack: %v", err)
		}
	case protocol.TypeInv:
		var inv protocol.InvMsg
		if err := json.Unmarshal(b, &inv); err != nil {
			h.T.Fatalf("inv: %v", err)
		}
		s.lastInv = inv
	}
}
