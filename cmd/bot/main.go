package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"stackcraft.ai/internal/protocol"
)

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "bot", "agent name")
		resume = flag.String("resume", "", "resume token from a previous session")
		cycles = flag.Int("cycles", 10, "pickup/place cycles before exiting (0 = forever)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if *resume != "" {
		hello.Auth = &protocol.HelloAuth{Token: *resume}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{conn: conn, logger: logger, maxCycles: *cycles}
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME agent_id=%s resume_token=%s tick_rate=%d slots=%d", w.AgentID, w.ResumeToken, w.WorldParams.TickRateHz, w.WorldParams.InventorySize)
			b.slots = w.WorldParams.InventorySize

		case protocol.TypeInv:
			var inv protocol.InvMsg
			if err := json.Unmarshal(msg, &inv); err != nil {
				continue
			}
			b.onInv(&inv)

		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			for _, r := range ack.Results {
				logger.Printf("ACK tick=%d id=%s op=%s moved=%d code=%s %s", ack.Tick, r.ID, r.Op, r.Moved, r.Code, r.Message)
			}
			if b.done() {
				return
			}
		}
	}
}

// bot lifts the first stack it holds and places it in the next free slot,
// one move per inventory update.
type bot struct {
	conn      *websocket.Conn
	logger    *log.Logger
	slots     int
	seq       int
	cycles    int
	maxCycles int
	holding   bool
}

func (b *bot) done() bool { return b.maxCycles > 0 && b.cycles >= b.maxCycles }

func (b *bot) onInv(inv *protocol.InvMsg) {
	if inv.Inventory == nil || b.done() {
		return
	}
	used := map[int]bool{}
	for _, s := range inv.Inventory.Slots {
		used[s.Slot] = true
	}

	if inv.Cursor != nil {
		free := -1
		for i := 0; i < b.slots; i++ {
			if !used[i] {
				free = i
				break
			}
		}
		if free < 0 {
			b.send(protocol.InvOp{Op: protocol.OpRelease})
			return
		}
		b.send(protocol.InvOp{
			Op:   protocol.OpMove,
			From: &protocol.HolderRef{Holder: protocol.HolderCursor},
			To:   &protocol.HolderRef{Holder: protocol.HolderSlot, Slot: &free},
		})
		b.holding = false
		b.cycles++
		return
	}
	if b.holding || len(inv.Inventory.Slots) == 0 {
		return
	}
	from := inv.Inventory.Slots[0].Slot
	b.send(protocol.InvOp{
		Op:   protocol.OpMove,
		From: &protocol.HolderRef{Holder: protocol.HolderSlot, Slot: &from},
		To:   &protocol.HolderRef{Holder: protocol.HolderCursor},
	})
	b.holding = true
}

func (b *bot) send(op protocol.InvOp) {
	b.seq++
	op.ID = fmt.Sprintf("K_%s_%d", op.Op, b.seq)
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Ops:             []protocol.InvOp{op},
	}
	if err := b.conn.WriteJSON(act); err != nil {
		b.logger.Printf("send ACT: %v", err)
	}
}
