package world

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"stackcraft.ai/internal/persistence/snapshot"
	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/inventory"
	"stackcraft.ai/internal/sim/tuning"
)

type WorldConfig struct {
	ID     string
	Tuning tuning.Tuning
	Logger *log.Logger
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type AttachRequest struct {
	ResumeToken string
	Out         chan []byte
	Resp        chan JoinResponse
}

// LeaveRequest detaches the connection that owns Out. A stale leave from a
// connection that has since been replaced by a resume is ignored.
type LeaveRequest struct {
	AgentID string
	Out     chan []byte
}

type JoinResponse struct {
	Welcome  protocol.WelcomeMsg
	Catalogs []protocol.CatalogMsg
}

type ActionEnvelope struct {
	AgentID string
	Act     protocol.ActMsg
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	tune     tuning.Tuning
	catalogs *catalogs.Catalogs
	logger   *log.Logger

	tick atomic.Uint64

	agents     map[string]*Agent
	clients    map[string]*clientState
	containers map[string]*Container
	ground     map[string]*GroundItem

	groundDirty bool

	inbox  chan ActionEnvelope
	join   chan JoinRequest
	attach chan AttachRequest
	leave  chan LeaveRequest
	stop   chan struct{}

	nextAgentNum  atomic.Uint64
	nextGroundNum atomic.Uint64

	// Optional audit sink (may be nil). Implemented in internal/persistence/*.
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1
}

type clientState struct {
	Out       chan []byte
	SessionID string
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	tune := cfg.Tuning
	if err := tune.Normalize(); err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	for id := range tune.StarterItems {
		if _, ok := cats.Items.Lookup(id); !ok {
			return nil, fmt.Errorf("world: unknown starter item %s", id)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds)
	}
	if cfg.ID == "" {
		cfg.ID = "world_1"
	}
	return &World{
		cfg:        cfg,
		tune:       tune,
		catalogs:   cats,
		logger:     logger,
		agents:     map[string]*Agent{},
		clients:    map[string]*clientState{},
		containers: map[string]*Container{},
		ground:     map[string]*GroundItem{},
		inbox:      make(chan ActionEnvelope, 1024),
		join:       make(chan JoinRequest, 64),
		attach:     make(chan AttachRequest, 64),
		leave:      make(chan LeaveRequest, 64),
		stop:       make(chan struct{}),
	}, nil
}

func (w *World) ID() string            { return w.cfg.ID }
func (w *World) Tuning() tuning.Tuning { return w.tune }
func (w *World) CurrentTick() uint64   { return w.tick.Load() }

func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Attach() chan<- AttachRequest { return w.attach }
func (w *World) Leave() chan<- LeaveRequest   { return w.leave }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.tune.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []LeaveRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-w.attach:
			w.handleAttach(req)
		case req := <-w.leave:
			pendingLeaves = append(pendingLeaves, req)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick with the same ordering as Run.
func (w *World) StepOnce(joins []JoinRequest, leaves []LeaveRequest, actions []ActionEnvelope) uint64 {
	tick := w.tick.Load()
	w.step(joins, leaves, actions)
	return tick
}

func (w *World) step(joins []JoinRequest, leaves []LeaveRequest, actions []ActionEnvelope) {
	nowTick := w.tick.Load()

	// Leaves first so a leave+rejoin in one tick settles the old hand.
	for _, req := range leaves {
		a := w.agents[req.AgentID]
		if a == nil {
			continue
		}
		if cl := w.clients[a.ID]; cl != nil && req.Out != nil && cl.Out != req.Out {
			continue
		}
		w.handleLeave(a, nowTick)
	}
	for _, req := range joins {
		resp := w.joinAgent(req.Name, req.Out, nowTick)
		if req.Resp != nil {
			req.Resp <- resp
		}
	}

	for _, a := range w.agents {
		a.opsThisTick = 0
		a.results = a.results[:0]
	}

	// Apply actions in inbox order.
	for _, env := range actions {
		a := w.agents[env.AgentID]
		if a == nil {
			continue
		}
		env.Act.AgentID = env.AgentID // trust session identity
		w.applyAct(a, env.Act, nowTick)
	}

	w.flush(nowTick)

	every := uint64(w.tune.SnapshotEveryTicks)
	if w.snapshotSink != nil && every > 0 && nowTick != 0 && nowTick%every == 0 {
		snap := w.Snapshot(nowTick)
		select {
		case w.snapshotSink <- snap:
		default:
			// Drop snapshot if sink is backed up.
		}
	}

	w.tick.Add(1)
}

func (w *World) joinAgent(name string, out chan []byte, nowTick uint64) JoinResponse {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "agent"
	}
	idNum := w.nextAgentNum.Add(1)
	a := w.newAgent(fmt.Sprintf("A%d", idNum), name)

	// Starter items in id order so every run fills the same slots.
	ids := make([]string, 0, len(w.tune.StarterItems))
	for id := range w.tune.StarterItems {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		def := w.catalogs.Items.MustLookup(id)
		want := w.tune.StarterItems[id]
		if got := a.Inv.AddItems(def, want); got < want {
			w.logger.Printf("agent %s: starter %s clipped to %d of %d", a.ID, id, got, want)
		}
	}

	w.agents[a.ID] = a
	w.audit(AuditEntry{Tick: nowTick, Actor: a.ID, Action: "JOIN", Reason: name})
	return w.connect(a, out)
}

func (w *World) handleAttach(req AttachRequest) {
	token := strings.TrimSpace(req.ResumeToken)
	var a *Agent
	if token != "" && req.Out != nil {
		for _, cand := range w.agents {
			if cand.ResumeToken == token {
				a = cand
				break
			}
		}
	}
	var resp JoinResponse
	if a != nil {
		resp = w.connect(a, req.Out)
	}
	if req.Resp != nil {
		req.Resp <- resp
	}
}

// connect attaches out to a and rotates its resume token.
func (w *World) connect(a *Agent, out chan []byte) JoinResponse {
	a.ResumeToken = "resume_" + uuid.NewString()
	sessionID := uuid.NewString()
	if out != nil {
		w.clients[a.ID] = &clientState{Out: out, SessionID: sessionID}
		a.dirty = true
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		AgentID:         a.ID,
		ResumeToken:     a.ResumeToken,
		WorldParams: protocol.WorldParams{
			TickRateHz:    w.tune.TickRateHz,
			InventorySize: w.tune.InventorySize,
			OpsPerTick:    w.tune.RateLimits.OpsPerTick,
		},
		Catalogs: protocol.CatalogDigests{
			ItemPalette:      protocol.DigestRef{Digest: w.catalogs.Items.PaletteDigest, Count: len(w.catalogs.Items.Palette)},
			ItemDefsDigest:   w.catalogs.Items.DefsDigest,
			ContainersDigest: w.catalogs.Containers.Digest,
		},
	}
	return JoinResponse{Welcome: welcome, Catalogs: w.catalogMsgs()}
}

// handleLeave settles the hand and drops the connection. The agent stays in
// the world and can come back with its resume token.
func (w *World) handleLeave(a *Agent, nowTick uint64) {
	if !a.Cursor.Empty() {
		moved, code, msg := w.release(a, nowTick)
		w.audit(AuditEntry{Tick: nowTick, Actor: a.ID, Action: "LEAVE_RELEASE", From: protocol.HolderCursor, Count: moved, Code: code, Reason: msg})
	}
	for id := range a.open {
		delete(a.open, id)
	}
	delete(w.clients, a.ID)
	w.audit(AuditEntry{Tick: nowTick, Actor: a.ID, Action: "LEAVE"})
}

func (w *World) catalogMsgs() []protocol.CatalogMsg {
	defs := make([]*catalogs.ItemDef, 0, len(w.catalogs.Items.Palette))
	for _, id := range w.catalogs.Items.Palette {
		defs = append(defs, w.catalogs.Items.Defs[id])
	}
	ctypes := make([]string, 0, len(w.catalogs.Containers.Defs))
	for t := range w.catalogs.Containers.Defs {
		ctypes = append(ctypes, t)
	}
	sort.Strings(ctypes)
	cdefs := make([]catalogs.ContainerDef, 0, len(ctypes))
	for _, t := range ctypes {
		cdefs = append(cdefs, w.catalogs.Containers.Defs[t])
	}
	return []protocol.CatalogMsg{
		{Type: protocol.TypeCatalog, ProtocolVersion: protocol.Version, Name: "item_palette", Digest: w.catalogs.Items.PaletteDigest, Data: w.catalogs.Items.Palette},
		{Type: protocol.TypeCatalog, ProtocolVersion: protocol.Version, Name: "item_defs", Digest: w.catalogs.Items.DefsDigest, Data: defs},
		{Type: protocol.TypeCatalog, ProtocolVersion: protocol.Version, Name: "containers", Digest: w.catalogs.Containers.Digest, Data: cdefs},
	}
}

func itemID(k inventory.Kind) string {
	if d, ok := k.(*catalogs.ItemDef); ok && d != nil {
		return d.ID
	}
	return ""
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
