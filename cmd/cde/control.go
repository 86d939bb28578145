package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/modforge/cdengine/internal/config"
	"github.com/modforge/cdengine/internal/engine"
)

// errNotRunning means no daemon answered on the control socket.
var errNotRunning = errors.New("engine not running")

// controlTimeout bounds one control request, including a manual tick.
const controlTimeout = 5 * time.Minute

// controlReply is the single JSON line the daemon answers with.
type controlReply struct {
	OK     bool               `json:"ok"`
	Error  string             `json:"error,omitempty"`
	Status *engine.Status     `json:"status,omitempty"`
	Report *engine.TickReport `json:"report,omitempty"`
}

// acquireEngineLock takes an exclusive flock on .cde/engine.lock. The
// caller must Unlock. Fails if another process holds it.
func acquireEngineLock(root string) (*flock.Flock, error) {
	lk := flock.New(config.LockPath(root))
	locked, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("opening engine lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("engine already running")
	}
	return lk, nil
}

// controlHandler executes one control command against the daemon.
type controlHandler struct {
	eng  *engine.Engine
	stop context.CancelFunc
}

func (h *controlHandler) handle(ctx context.Context, line string) controlReply {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch cmd {
	case "stop":
		h.stop()
		return controlReply{OK: true}
	case "status":
		st := h.eng.Status()
		return controlReply{OK: true, Status: &st}
	case "reset":
		err := h.eng.Reset(arg != "no-restart")
		st := h.eng.Status()
		r := controlReply{OK: true, Status: &st}
		if err != nil {
			// Reset succeeded; the restart was refused.
			r.Error = err.Error()
		}
		return r
	case "tick":
		report, err := h.eng.RunOnce(ctx)
		if err != nil {
			return controlReply{Error: err.Error(), Report: &report}
		}
		return controlReply{OK: true, Report: &report}
	default:
		return controlReply{Error: fmt.Sprintf("unknown command %q", cmd)}
	}
}

// startControlSocket listens on .cde/engine.sock and serves one command
// per connection. Returns the listener for cleanup.
func startControlSocket(ctx context.Context, root string, h *controlHandler) (net.Listener, error) {
	sockPath := config.SocketPath(root)
	// A stale socket from a crashed daemon; the engine lock is already held.
	os.Remove(sockPath) //nolint:errcheck // stale socket cleanup
	lis, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("listening on control socket: %w", err)
	}
	go func() {
		for {
			conn, err := lis.Accept()
			if err != nil {
				return // listener closed
			}
			go serveControlConn(ctx, conn, h)
		}
	}()
	return lis, nil
}

func serveControlConn(ctx context.Context, conn net.Conn, h *controlHandler) {
	defer conn.Close() //nolint:errcheck // best-effort cleanup
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	data, err := json.Marshal(h.handle(ctx, scanner.Text()))
	if err != nil {
		data, _ = json.Marshal(controlReply{Error: err.Error()})
	}
	conn.Write(append(data, '\n')) //nolint:errcheck // best-effort reply
}

// sendControl sends one command to the daemon for root and decodes the
// reply. Returns errNotRunning when nothing is listening.
func sendControl(root, command string) (controlReply, error) {
	var reply controlReply
	conn, err := net.DialTimeout("unix", config.SocketPath(root), 2*time.Second)
	if err != nil {
		return reply, errNotRunning
	}
	defer conn.Close() //nolint:errcheck // best-effort cleanup
	conn.SetDeadline(time.Now().Add(controlTimeout)) //nolint:errcheck // best-effort deadline

	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return reply, fmt.Errorf("sending %s: %w", command, err)
	}
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return reply, fmt.Errorf("reading reply: %w", err)
	}
	if err := json.Unmarshal(line, &reply); err != nil {
		return reply, fmt.Errorf("decoding reply: %w", err)
	}
	return reply, nil
}
