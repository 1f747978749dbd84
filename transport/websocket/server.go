package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type Server struct {
	logger   *slog.Logger
	router   *Router
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func New(logger *slog.Logger, manager gameManager, origins *OriginPolicy) *Server {
	return &Server{
		logger: logger.With("component", "websocket_server"),
		router: NewRouter(logger, manager),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Check,
		},
		sessions: make(map[*Session]struct{}),
	}
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", that.ServeWS)

	return mux
}

// Start serves websocket connections on port until ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}

		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		that.closeSessions()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}

		return nil
	}
}

// ServeWS upgrades the request and runs the session until the client goes away.
func (that *Server) ServeWS(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "ServeWS")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Warn("failed to upgrade connection", "error", err)
		return
	}

	session := newSession(conn, that.logger)
	that.track(session)

	log.Debug("websocket connection established", "remote_addr", conn.RemoteAddr().String())

	go session.writePump()

	session.readPump(func(data []byte) {
		that.router.Handle(session, data)
	})

	that.router.Disconnect(session)
	that.untrack(session)
	session.Close()

	log.Debug("websocket connection closed", "remote_addr", conn.RemoteAddr().String())
}

func (that *Server) track(session *Session) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions[session] = struct{}{}
}

func (that *Server) untrack(session *Session) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, session)
}

func (that *Server) closeSessions() {
	that.mu.Lock()
	sessions := make([]*Session, 0, len(that.sessions))
	for session := range that.sessions {
		sessions = append(sessions, session)
	}
	that.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
