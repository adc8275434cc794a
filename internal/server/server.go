// Package server accepts the panel's control connection and bridges it to
// the watcher core: inbound frames become commands, outbound events from the
// bus become frames. One session is live at a time; a newer connection
// replaces the current one, since the client reconnects after its own
// restarts.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mediawatch/internal/event"
	"mediawatch/internal/logging"
	"mediawatch/internal/protocol"
	"mediawatch/internal/watcher"
)

const writeTimeout = 10 * time.Second

type Options struct {
	Port   int
	Core   *watcher.Core
	Bus    *event.Bus[protocol.Event]
	Logger *logging.Logger
}

type Server struct {
	core     *watcher.Core
	bus      *event.Bus[protocol.Event]
	logger   *logging.Logger
	listener net.Listener
	http     *http.Server

	mutex   sync.Mutex
	active  *session
	closed  bool
	exiting chan struct{}
	once    sync.Once
}

// New binds the loopback listener. A bind failure is fatal to startup and is
// returned to the caller.
func New(options Options) (*Server, error) {
	logger := options.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(options.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}

	server := &Server{
		core:     options.Core,
		bus:      options.Bus,
		logger:   logger.With(map[string]string{"component": "server"}),
		listener: listener,
		exiting:  make(chan struct{}),
	}
	server.http = &http.Server{
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server, nil
}

func (server *Server) Addr() string {
	if server == nil || server.listener == nil {
		return ""
	}
	return server.listener.Addr().String()
}

// Serve blocks until the server is closed.
func (server *Server) Serve() error {
	server.logger.Info("listening", map[string]string{"addr": server.Addr()})
	err := server.http.Serve(server.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ShutdownRequested is closed once when a SHUTDOWN command arrives.
func (server *Server) ShutdownRequested() <-chan struct{} {
	return server.exiting
}

// Close drops the active session and stops the listener.
func (server *Server) Close(ctx context.Context) error {
	server.mutex.Lock()
	server.closed = true
	active := server.active
	server.active = nil
	server.mutex.Unlock()

	if active != nil {
		active.close()
	}
	return server.http.Shutdown(ctx)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Loopback-only trust model; the panel connects from an app origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (server *Server) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	conn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		return
	}

	current := newSession(server, conn)

	server.mutex.Lock()
	if server.closed {
		server.mutex.Unlock()
		current.close()
		return
	}
	previous := server.active
	server.active = current
	server.mutex.Unlock()

	if previous != nil {
		server.logger.Info("session replaced", map[string]string{
			"old_session": previous.id,
			"new_session": current.id,
		})
		previous.close()
	}
	server.logger.Info("session opened", map[string]string{
		"session": current.id,
		"remote":  request.RemoteAddr,
	})

	current.run()

	server.mutex.Lock()
	if server.active == current {
		server.active = nil
	}
	server.mutex.Unlock()
	server.logger.Info("session closed", map[string]string{"session": current.id})
}

func (server *Server) requestShutdown() {
	server.once.Do(func() {
		close(server.exiting)
	})
}
