package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"proximityd/internal/domain"
)

// clientConn tracks a single WebSocket subscriber.
type clientConn struct {
	ws        *websocket.Conn
	sendCh    chan []byte // buffered outbound queue
	done      chan struct{}
	closeOnce sync.Once
}

// Server is the WebSocket gateway. Subscribers receive every presence
// snapshot as a JSON array plus pairing announcements; they send nothing.
// A subscriber that cannot keep up has messages dropped rather than
// stalling the publisher.
type Server struct {
	bus       domain.EventBus
	clients   sync.Map // connID (uint64) -> *clientConn
	logger    *slog.Logger
	addr      string
	httpSrv   *http.Server
	boundAddr string
	nextID    atomic.Uint64
	unsubPair func()
}

// NewServer creates a gateway server. bus may be nil (no pairing
// announcements).
func NewServer(bus domain.EventBus, addr string, logger *slog.Logger) *Server {
	return &Server{
		bus:    bus,
		logger: logger,
		addr:   addr,
	}
}

// Start begins accepting WebSocket connections. Blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()

	s.httpSrv = &http.Server{Handler: mux}

	if s.bus != nil {
		s.unsubPair = s.bus.Subscribe(domain.EventPairSucceeded, func(_ context.Context, event domain.Event) {
			var res domain.PairResult
			if err := json.Unmarshal(event.Payload, &res); err != nil {
				return
			}
			msg, err := json.Marshal(map[string]string{"successfulPair": res.TenantID})
			if err != nil {
				return
			}
			s.broadcast(msg)
		})
	}

	s.logger.Info("gateway started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the gateway server.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsubPair != nil {
		s.unsubPair()
	}

	s.clients.Range(func(key, value any) bool {
		cc := value.(*clientConn)
		cc.closeOnce.Do(func() { close(cc.done) })
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Delete(key)
		return true
	})

	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// BoundAddr returns the actual address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }

// PublishSnapshot broadcasts one presence snapshot to every subscriber.
// Never blocks: slow subscribers lose this snapshot and catch up on the
// next tick.
func (s *Server) PublishSnapshot(_ context.Context, statuses []domain.TenantStatus) {
	msg, err := json.Marshal(statuses)
	if err != nil {
		s.logger.Error("snapshot marshal failed", "error", err)
		return
	}
	s.broadcast(msg)
}

func (s *Server) broadcast(msg []byte) {
	s.clients.Range(func(_, value any) bool {
		cc := value.(*clientConn)
		select {
		case cc.sendCh <- msg:
		default:
			s.logger.Warn("gateway: dropped message for slow client")
		}
		return true
	})
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	connID := s.nextID.Add(1)
	cc := &clientConn{
		ws:     ws,
		sendCh: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	s.clients.Store(connID, cc)

	s.logger.Info("gateway client connected", "conn_id", connID, "remote", r.RemoteAddr)

	go s.writeLoop(cc)

	// Read loop (blocking). Subscribers send nothing meaningful; reading
	// just services control frames and detects the close.
	s.readLoop(r.Context(), cc)

	cc.closeOnce.Do(func() { close(cc.done) })
	s.clients.Delete(connID)
	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("gateway client disconnected", "conn_id", connID)
}

func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		if _, _, err := cc.ws.Read(ctx); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case msg := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := cc.ws.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
