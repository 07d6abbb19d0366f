package harness

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/sync/errgroup"

	"nesprobe/internal/debug"
)

// Server accepts WebSocket connections at /ws/ and gives each one its
// own Session.
type Server struct {
	addr       string
	log        *debug.Logger
	sampleRate int
	mux        *http.ServeMux

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

// NewServer creates a server for addr.
func NewServer(addr string, log *debug.Logger, sampleRate int) *Server {
	if log == nil {
		log = debug.Discard()
	}
	s := &Server{
		addr:       addr,
		log:        log,
		sampleRate: sampleRate,
		mux:        http.NewServeMux(),
		conns:      make(map[net.Conn]struct{}),
	}
	s.mux.Handle("/ws/", http.HandlerFunc(s.upgrade))
	return s
}

// Handler returns the HTTP handler serving /ws/.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) upgrade(rw http.ResponseWriter, req *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(req, rw)
	if err != nil {
		s.log.Warnf("websocket upgrade from %s: %v", req.RemoteAddr, err)
		return
	}

	s.connsMu.Lock()
	if s.closing {
		s.connsMu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.connsMu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.connsMu.Lock()
			delete(s.conns, conn)
			s.connsMu.Unlock()
			conn.Close()
		}()
		if err := s.serveConn(conn); err != nil {
			s.log.Debugf("websocket %s: %v", req.RemoteAddr, err)
		}
	}()
}

// serveConn runs one session; each text message is one request.
func (s *Server) serveConn(conn net.Conn) error {
	s.log.Infof("websocket session from %s", conn.RemoteAddr())
	session := NewSession(s.log, s.sampleRate)

	if err := writeResponse(conn, readyResponse); err != nil {
		return err
	}
	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			return err
		}
		if op != ws.OpText {
			continue
		}

		resp, quit := session.Handle(data)
		if err := writeResponse(conn, resp); err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

func writeResponse(conn net.Conn, resp Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return wsutil.WriteServerMessage(conn, ws.OpText, data)
}

// ListenAndServe serves until ctx is cancelled, then stops accepting,
// closes open sessions and waits for them to finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Infof("listening on ws://%s/ws/", s.addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.closeSessions()
		return err
	})
	return g.Wait()
}

// closeSessions closes hijacked connections, which http.Server.Shutdown
// does not track. Connections upgraded afterwards are closed at once.
func (s *Server) closeSessions() {
	s.connsMu.Lock()
	s.closing = true
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()
	s.wg.Wait()
}
