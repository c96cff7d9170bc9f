// Package session implements the per-connection protocol engine: the
// authentication handshake, the authenticated command loop and teardown.
// One engine instance owns one accepted connection and is never shared.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/logging"
	"github.com/dmitrijs2005/aurachat/internal/protocol"
	"github.com/dmitrijs2005/aurachat/internal/server/audit"
	"github.com/dmitrijs2005/aurachat/internal/server/registry"
	"github.com/dmitrijs2005/aurachat/internal/server/stats"
	"github.com/dmitrijs2005/aurachat/internal/server/users"
	"github.com/google/uuid"
)

// pollInterval bounds every blocking read so the loop can observe shutdown
// and the idle budget.
const pollInterval = time.Second

// Deps collects the shared collaborators an engine needs. All of them are
// safe for concurrent use by many sessions.
type Deps struct {
	Users        *users.Service
	Registry     *registry.Registry
	Audit        *audit.Manager
	ServerLog    *audit.Store
	Stats        *stats.Stats
	Logger       logging.Logger
	IdleTimeout  time.Duration
	ReadyTimeout time.Duration
}

// Engine drives one connection through authentication and command dispatch.
type Engine struct {
	conn net.Conn
	br   *bufio.Reader
	deps Deps

	sessionID string
	peer      string
	username  string
	clientLog *audit.Store
	logger    logging.Logger
}

func New(conn net.Conn, deps Deps) *Engine {
	id := uuid.NewString()
	peer := conn.RemoteAddr().String()
	return &Engine{
		conn:      conn,
		br:        bufio.NewReader(conn),
		deps:      deps,
		sessionID: id,
		peer:      peer,
		logger:    deps.Logger.With("module", "session", "session_id", id, "peer", peer),
	}
}

// Run executes the whole session lifecycle. It never panics outward: any
// internal failure is logged and converted into a disconnect so the
// supervisor stays up.
func (e *Engine) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, "session panic", "panic", fmt.Sprint(r))
		}
		e.teardown()
	}()

	e.deps.Registry.NoteConnection()
	e.deps.ServerLog.Append(audit.LevelInfo, "CONNECTION",
		fmt.Sprintf("connection from %s", e.peer))

	if !e.authenticate(ctx) {
		e.deps.ServerLog.Append(audit.LevelWarning, "AUTH_FAILED",
			fmt.Sprintf("authentication failed for %s", e.peer))
		return
	}

	e.deps.ServerLog.Append(audit.LevelInfo, "CONNECTION",
		fmt.Sprintf("user %s connected from %s", e.username, e.peer))
	e.clientLog.Append(audit.LevelInfo, "CONNECTION", "connected to server")

	e.commandLoop(ctx)
}

// send writes one newline-terminated message to the peer.
func (e *Engine) send(msg string) error {
	_, err := fmt.Fprintln(e.conn, msg)
	return err
}

func (e *Engine) sendFrame(prefix, text string) error {
	return e.send(protocol.Frame(prefix, text))
}

// errIdle reports that the idle budget ran out without a complete line.
var errIdle = errors.New("idle timeout")

// readLine reads one line, polling in short slices so ctx cancellation and
// the idle timeout are observed even while the peer is silent. Partial input
// read before a poll expires is kept and completed on the next slice.
func (e *Engine) readLine(ctx context.Context) (string, error) {
	var partial strings.Builder
	idleStart := time.Now()

	for {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if e.deps.IdleTimeout > 0 && partial.Len() == 0 &&
			time.Since(idleStart) >= e.deps.IdleTimeout {
			return "", errIdle
		}

		e.conn.SetReadDeadline(time.Now().Add(pollInterval))
		line, err := e.br.ReadString('\n')
		partial.WriteString(line)

		if err == nil {
			e.conn.SetReadDeadline(time.Time{})
			return strings.TrimSpace(partial.String()), nil
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			continue
		}
		e.conn.SetReadDeadline(time.Time{})
		if errors.Is(err, io.EOF) && partial.Len() > 0 {
			return strings.TrimSpace(partial.String()), nil
		}
		return "", err
	}
}

// commandLoop dispatches authenticated commands until EXIT, an error, or
// shutdown. The protocol is half-duplex: one request, one reply.
func (e *Engine) commandLoop(ctx context.Context) {
	for {
		line, err := e.readLine(ctx)
		if err != nil {
			e.noteLoopExit(ctx, err)
			return
		}
		if line == "" {
			continue
		}

		e.deps.ServerLog.Append(audit.LevelInfo, "REQUEST",
			fmt.Sprintf("request %q from %s", line, e.username))

		fields := strings.Fields(strings.ToUpper(line))
		cmd := fields[0]

		switch cmd {
		case protocol.CmdTime:
			e.deps.Stats.IncCommand(cmd)
			e.send("Ora corrente: " + time.Now().Format("15:04:05"))
			e.clientLog.Append(audit.LevelInfo, "RESPONSE", "TIME reply sent")

		case protocol.CmdName:
			e.deps.Stats.IncCommand(cmd)
			hostname, herr := os.Hostname()
			if herr != nil {
				hostname = "unknown"
			}
			e.send("Hostname server: " + hostname)
			e.clientLog.Append(audit.LevelInfo, "RESPONSE", "NAME reply sent")

		case protocol.CmdStats:
			e.deps.Stats.IncCommand(cmd)
			e.send(e.deps.Stats.Summary(
				e.deps.Registry.TotalConnections(), e.deps.Registry.Count()))
			e.clientLog.Append(audit.LevelInfo, "RESPONSE", "STATS reply sent")

		case protocol.CmdInfo:
			e.deps.Stats.IncCommand(cmd)
			e.send(e.infoReply(ctx, fields))
			e.clientLog.Append(audit.LevelInfo, "RESPONSE", "INFO reply sent")

		case protocol.CmdLog:
			e.deps.Stats.IncCommand(cmd)
			e.handleLog(ctx, fields)

		case protocol.CmdExport:
			e.deps.Stats.IncCommand(cmd)
			e.handleExport(ctx, fields)

		case protocol.CmdExit:
			e.deps.Stats.IncCommand(cmd)
			e.send("Disconnessione in corso...")
			e.deps.ServerLog.Append(audit.LevelInfo, "EXIT_REQUEST",
				fmt.Sprintf("EXIT requested by %s", e.username))
			e.clientLog.Append(audit.LevelInfo, "EXIT", "EXIT command executed")
			return

		default:
			e.deps.Stats.IncInvalid()
			e.send(fmt.Sprintf(
				"Comando '%s' non riconosciuto. Comandi: TIME, NAME, INFO, STATS, LOG, EX, EXIT", line))
			e.clientLog.Append(audit.LevelWarning, "UNKNOWN_COMMAND",
				fmt.Sprintf("unrecognized command: %s", line))
		}
	}
}

func (e *Engine) noteLoopExit(ctx context.Context, err error) {
	switch {
	case errors.Is(err, errIdle):
		e.deps.ServerLog.Append(audit.LevelWarning, "DISCONNECTION",
			fmt.Sprintf("user %s idle, closing", e.username))
	case errors.Is(err, io.EOF):
		e.deps.ServerLog.Append(audit.LevelInfo, "DISCONNECTION",
			fmt.Sprintf("user %s closed the connection", e.username))
		e.clientLog.Append(audit.LevelInfo, "DISCONNECTION", "connection closed")
	case ctx.Err() != nil:
		e.deps.ServerLog.Append(audit.LevelInfo, "DISCONNECTION",
			fmt.Sprintf("session for %s closed by shutdown", e.username))
	default:
		e.deps.ServerLog.Append(audit.LevelWarning, "CONNECTION_ERROR",
			fmt.Sprintf("connection error for %s: %v", e.username, err))
		e.clientLog.Append(audit.LevelWarning, "CONNECTION_ERROR",
			"connection interrupted")
	}
}

// teardown runs on every exit path: it releases the registry entry (a no-op
// when authentication never completed), closes the socket and flushes the
// final audit entries. After teardown the registry cannot leak an entry for
// this session.
func (e *Engine) teardown() {
	if e.username != "" {
		e.deps.Registry.Remove(e.username)
		e.deps.ServerLog.Append(audit.LevelInfo, "THREAD_CLOSE",
			fmt.Sprintf("closing session for %s", e.username))
		if e.clientLog != nil {
			e.clientLog.Append(audit.LevelInfo, "SESSION_END", "session terminated")
			e.clientLog.SetEndTime()
		}
	} else {
		e.deps.ServerLog.Append(audit.LevelInfo, "THREAD_CLOSE",
			fmt.Sprintf("closing session for %s", e.peer))
	}
	e.conn.Close()
}
