package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mediawatch/internal/logging"
	"mediawatch/internal/protocol"
)

// session is one live control connection. Commands are handled on the reader
// goroutine in arrival order; events flow out on a separate writer goroutine
// as they settle, independent of command handling.
type session struct {
	id     string
	server *Server
	conn   *websocket.Conn
	logger *logging.Logger

	events <-chan protocol.Event
	cancel func()

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(server *Server, conn *websocket.Conn) *session {
	id := uuid.NewString()
	events, cancel := server.bus.Subscribe()
	return &session{
		id:     id,
		server: server,
		conn:   conn,
		logger: server.logger.With(map[string]string{"session": id}),
		events: events,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// run pumps the connection until it closes. It blocks the caller so the
// server can observe session teardown.
func (session *session) run() {
	var writers sync.WaitGroup
	writers.Add(1)
	go func() {
		defer writers.Done()
		session.writeLoop()
	}()

	session.readLoop()
	session.close()
	writers.Wait()
}

func (session *session) close() {
	session.closeOnce.Do(func() {
		close(session.done)
		session.cancel()
		_ = session.conn.Close()
	})
}

func (session *session) writeLoop() {
	for {
		select {
		case outbound, ok := <-session.events:
			if !ok {
				return
			}
			if err := session.write(outbound); err != nil {
				session.close()
				return
			}
		case <-session.done:
			return
		}
	}
}

func (session *session) write(outbound protocol.Event) error {
	if err := session.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return session.conn.WriteJSON(outbound)
}

func (session *session) readLoop() {
	for {
		messageType, payload, err := session.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				session.logger.Debug("read failed", map[string]string{"error": err.Error()})
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		command, err := protocol.ParseCommand(payload)
		if err != nil {
			session.logger.Warn("malformed command", map[string]string{"error": err.Error()})
			session.server.bus.Publish(protocol.ErrorEvent("invalid command: "+err.Error(), ""))
			continue
		}
		if exit := session.dispatch(command); exit {
			return
		}
	}
}

// dispatch applies one command. Every command yields either a state change
// (plus READY or WATCH_LIST) or an ERROR event; none end the connection
// except SHUTDOWN.
func (session *session) dispatch(command protocol.Command) bool {
	switch command.Cmd {
	case protocol.CmdAddWatch:
		if err := session.server.core.AddWatch(command.ID, command.Path); err != nil {
			session.server.bus.Publish(protocol.ErrorEvent(err.Error(), command.ID))
		}
	case protocol.CmdRemoveWatch:
		if err := session.server.core.RemoveWatch(command.ID); err != nil {
			session.server.bus.Publish(protocol.ErrorEvent(err.Error(), command.ID))
		}
	case protocol.CmdListWatches:
		session.server.bus.Publish(protocol.WatchList(session.server.core.Watches()))
	case protocol.CmdShutdown:
		session.logger.Info("shutdown requested", nil)
		session.server.requestShutdown()
		return true
	}
	return false
}
