package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/world"
)

// joinTimeout bounds how long a handshake waits for the world loop.
var joinTimeout = 5 * time.Second

// abandonWait bounds how long a timed-out handshake keeps waiting for a late
// world response it has to undo.
const abandonWait = 30 * time.Second

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		agentID, out := s.handshake(r.Context(), conn)
		if agentID == "" {
			return
		}
		s.log.Printf("agent %s connected from %s", agentID, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAct {
				continue
			}
			act, err := protocol.DecodeAct(msg)
			if err != nil {
				reject(out, nil, protocol.ErrProtoBadRequest, err.Error())
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				reject(out, act.Ops, protocol.ErrProtoBadRequest, "bad protocol_version")
				continue
			}
			select {
			case s.world.Inbox() <- world.ActionEnvelope{AgentID: agentID, Act: act}:
			default:
				reject(out, act.Ops, protocol.ErrWorldBusy, "world inbox full")
			}
		}

		// Cleanup.
		s.world.Leave() <- world.LeaveRequest{AgentID: agentID, Out: out}
		s.log.Printf("agent %s disconnected", agentID)
	}
}

// reject answers an ACT the world never saw with a failed result per op.
func reject(out chan []byte, ops []protocol.InvOp, code, msg string) {
	ack := protocol.AckMsg{Type: protocol.TypeAck, ProtocolVersion: protocol.Version}
	if len(ops) == 0 {
		ack.Results = []protocol.OpResult{{Code: code, Message: msg}}
	}
	for _, op := range ops {
		ack.Results = append(ack.Results, protocol.OpResult{ID: op.ID, Op: op.Op, Code: code, Message: msg})
	}
	b, err := json.Marshal(ack)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (agentID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, "bad HELLO")
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", nil
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	// Optional: resume an existing agent (reconnect).
	resumeToken := ""
	if hello.Auth != nil {
		resumeToken = strings.TrimSpace(hello.Auth.Token)
	}

	var resp world.JoinResponse
	if resumeToken != "" {
		respCh := make(chan world.JoinResponse, 1)
		if !send(ctx, s.world.Attach(), world.AttachRequest{ResumeToken: resumeToken, Out: out, Resp: respCh}) {
			closeWith(conn, "world busy")
			return "", nil
		}
		if resp, err = wait(ctx, respCh); err != nil {
			s.abandon(respCh, out)
			closeWith(conn, "world busy")
			return "", nil
		}
	}
	if resp.Welcome.AgentID == "" {
		// Fresh join.
		respCh := make(chan world.JoinResponse, 1)
		if !send(ctx, s.world.Join(), world.JoinRequest{Name: hello.AgentName, Out: out, Resp: respCh}) {
			closeWith(conn, "world busy")
			return "", nil
		}
		if resp, err = wait(ctx, respCh); err != nil {
			s.abandon(respCh, out)
			closeWith(conn, "world busy")
			return "", nil
		}
	}

	// Send welcome + catalogs immediately.
	if err := writeJSON(conn, resp.Welcome); err != nil {
		return "", nil
	}
	for _, c := range resp.Catalogs {
		if err := writeJSON(conn, c); err != nil {
			return "", nil
		}
	}

	return resp.Welcome.AgentID, out
}

func send[T any](ctx context.Context, ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

func wait(ctx context.Context, ch <-chan world.JoinResponse) (world.JoinResponse, error) {
	select {
	case r := <-ch:
		return r, nil
	case <-ctx.Done():
		return world.JoinResponse{}, ctx.Err()
	}
}

// abandon detaches an agent the world joins or attaches after the handshake
// already gave up on it.
func (s *Server) abandon(respCh <-chan world.JoinResponse, out chan []byte) {
	go func() {
		timer := time.NewTimer(abandonWait)
		defer timer.Stop()
		select {
		case r := <-respCh:
			if r.Welcome.AgentID == "" {
				return
			}
			select {
			case s.world.Leave() <- world.LeaveRequest{AgentID: r.Welcome.AgentID, Out: out}:
				s.log.Printf("agent %s detached after handshake timeout", r.Welcome.AgentID)
			case <-timer.C:
			}
		case <-timer.C:
		}
	}()
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
