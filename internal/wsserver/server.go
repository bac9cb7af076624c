package wsserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thymio-project/brain/internal/driverbus"
	"github.com/thymio-project/brain/internal/logging"
	"github.com/thymio-project/brain/internal/state"
)

// Timings mirror niceyeti-tabular/tabular/server/server.go's ping/pong
// budget, the teacher's own websocket keepalive discipline.
const (
	writeWait        = 1 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	closeGracePeriod = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the operator WebSocket endpoint. One Server fans out state
// changes to every connected client and accepts navigation/debug commands
// from any of them, matching server.py's single shared `_connections` set.
type Server struct {
	addr     string
	state    *state.State
	nodes    []driverbus.Node
	logger   logging.Logger
	shutdown context.CancelFunc

	httpServer *http.Server
}

// New constructs a Server. nodes lists every driver connection that must be
// zeroed on an operator "stop" command (spec.md §6: "stop ... writes zero
// motor targets to every node and exits"). shutdown is called after the
// emergency stop write, to cancel the coordinator's run context.
func New(addr string, st *state.State, nodes []driverbus.Node, logger logging.Logger, shutdown context.CancelFunc) *Server {
	return &Server{addr: addr, state: st, nodes: nodes, logger: logger, shutdown: shutdown}
}

// Handler returns the server's HTTP handler, exposed separately from Serve
// so tests can drive it with httptest.NewServer instead of binding a real
// port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	return mux
}

// Serve blocks, running the HTTP/WebSocket listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.httpServer = &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeGracePeriod)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleWebsocket upgrades the connection, registers a ChangeListener, and
// runs the read and write pumps until the client disconnects. Mirrors
// server.py's websocket_handler.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("wsserver: upgrade failed", "error", err)
		return
	}

	listener := s.state.RegisterListener()
	defer s.state.UnregisterListener(listener)

	s.logger.Infow("wsserver: client connected", "id", uuid.New().String())

	if err := s.send(conn, typeMsg, "Hi!"); err != nil {
		conn.Close()
		return
	}
	if err := s.send(conn, typeState, snapshot(s.state)); err != nil {
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pong := make(chan struct{}, 1)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	go s.readPump(ctx, cancel, conn)
	s.writePump(ctx, conn, listener, pong)
}

// readPump blocks on ReadMessage (required so ping/pong control frames are
// processed, per gorilla/websocket's documented requirement) and dispatches
// each inbound text message to handleMessage.
func (s *Server) readPump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env inboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warnw("wsserver: malformed message", "error", err)
			continue
		}

		if err := s.handleMessage(conn, env); err != nil {
			s.logger.Warnw("wsserver: handling message failed", "type", env.Type, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// writePump pushes patches and keepalive pings to the client until ctx is
// cancelled or a write fails. Mirrors server.py's send_patch fan-out,
// merged with the teacher's select-based ping/pong write pump
// (niceyeti-tabular/tabular/server/server.go's publishEleUpdates).
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, listener *state.ChangeListener, pong <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.closeWebsocket(conn)

	changes := s.state.Dirty().Stream(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-pong:
			continue
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case _, ok := <-changes:
			if !ok {
				return
			}
			patch := listener.GetPatch()
			if len(patch) == 0 {
				continue
			}
			if err := s.send(conn, typePatch, patch); err != nil {
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, msgType string, data interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(outboundEnvelope{Type: msgType, Data: data})
}

func (s *Server) closeWebsocket(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}

// handleMessage applies one inbound command to State, matching
// server.py's handle_message match statement. Every mutating command
// fires Changed() explicitly afterward so the write pump flushes a patch
// immediately, mirroring server.py's synchronous `await
// send_patch(state.json())` after every handled message rather than
// waiting for the next naturally-occurring Changed() elsewhere in the
// loop.
func (s *Server) handleMessage(conn *websocket.Conn, env inboundEnvelope) error {
	switch env.Type {
	case typePing:
		// Echo back whatever id the client sent, per spec.md §6's
		// `{type:"pong", data:id}`.
		var raw interface{}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &raw); err != nil {
				return err
			}
		}
		return s.send(conn, typePong, raw)

	case typeSetPosition:
		var p positionPayload
		if err := env.decode(&p); err != nil {
			return err
		}
		s.state.SetPose(state.Pose{X: p.X, Y: p.Y, Theta: p.Theta})

	case typeSetEnd:
		var e endPayload
		if err := env.decode(&e); err != nil {
			return err
		}
		s.state.SetEnd(state.Vec2{X: e.X, Y: e.Y})

	case typeAddObstacle:
		var o obstaclePayload
		if err := env.decode(&o); err != nil {
			return err
		}
		s.state.AddExtraObstacle(state.Obstacle{
			Min: state.Vec2{X: o.MinX, Y: o.MinY},
			Max: state.Vec2{X: o.MaxX, Y: o.MaxY},
		})

	case typeClearObstacles:
		s.state.ClearExtraObstacles()

	case typeOptimise:
		var b boolPayload
		if err := env.decode(&b); err != nil {
			return err
		}
		s.state.SetOptimise(b.Value)

	case typeDebug:
		var b boolPayload
		if err := env.decode(&b); err != nil {
			return err
		}
		s.state.SetDebugView(b.Value)

	case typeStop:
		s.emergencyStop()
		return nil
	}

	s.state.Changed()
	return nil
}

// emergencyStop writes zero motor targets to every known node, then cancels
// the coordinator's run context, matching spec.md §6's "stop ... writes
// zero motor targets to every node and exits".
func (s *Server) emergencyStop() {
	for _, node := range s.nodes {
		if node == nil {
			continue
		}
		if err := node.SetVariables(map[string][]int{
			"motor.left.target":  {0},
			"motor.right.target": {0},
		}); err != nil {
			s.logger.Warnw("wsserver: emergency stop write failed", "error", err)
		}
	}
	if s.shutdown != nil {
		s.shutdown()
	}
}
