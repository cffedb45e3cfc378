// Package daemon implements the clhorde orchestration engine: the prompt
// queue, worker dispatch, PTY lifecycle, event fan-out, and the framed
// request/response protocol over the local socket.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/abusi/clhorde/internal/config"
	"github.com/abusi/clhorde/internal/protocol"
)

// shutdownDrain bounds how long a stopping daemon waits for killed
// workers to report their exit codes.
const shutdownDrain = 5 * time.Second

// Run starts the daemon and blocks until shutdown. Returns an error for
// startup failures (live instance, unusable data dir, bind failure) and
// when the IPC server's accept loop fails while running.
func Run(settings config.Settings) error {
	dataDir, err := config.DataDir()
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	pidPath, _ := config.PIDPath()
	socketPath, _ := config.SocketPath()
	promptsDir, _ := config.PromptsDir()

	if err := checkPIDFile(pidPath, socketPath); err != nil {
		return err
	}
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer cleanupFiles(pidPath, socketPath)

	os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("bind socket %s: %w", socketPath, err)
	}
	os.Chmod(socketPath, 0600)

	o := NewOrchestrator(settings, promptsDir)

	cmds := make(chan ServerCommand, 1024)
	register := make(chan Registration, 16)
	unregister := make(chan uint64, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- RunIPCServer(ctx, ln, cmds, register, unregister, o.bcast)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	// Initial dispatch pass. Restored prompts come back Completed or
	// Failed, so this starts nothing until a prompt is submitted.
	o.Dispatch()

	slog.Info("daemon started", "pid", os.Getpid(), "socket", socketPath)

loop:
	for {
		select {
		case msg := <-o.workerCh:
			o.Apply(msg)
			o.Dispatch()
		case cmd := <-cmds:
			shutdown := cmd.Request.Type == protocol.ReqShutdown
			o.HandleRequest(cmd.Request, cmd.SessionID)
			if shutdown {
				slog.Info("shutdown requested")
				break loop
			}
		case r := <-register:
			o.sessions.Add(r.SessionID, r.Events, r.Done)
		case id := <-unregister:
			o.sessions.Remove(id)
		case sig := <-sigCh:
			slog.Info("signal received, shutting down", "signal", sig)
			break loop
		case err := <-serverErr:
			if err != nil {
				return fmt.Errorf("ipc server: %w", err)
			}
			break loop
		}
	}

	slog.Info("killing workers", "active", o.activeWorkers)
	o.Shutdown()

	deadline := time.After(shutdownDrain)
drain:
	for o.activeWorkers > 0 {
		select {
		case msg := <-o.workerCh:
			o.Apply(msg)
		case <-deadline:
			break drain
		}
	}

	slog.Info("daemon stopped")
	return nil
}

// checkPIDFile refuses to start over a live daemon; a stale PID file and
// its socket are cleared.
func checkPIDFile(pidPath, socketPath string) error {
	content, err := os.ReadFile(pidPath)
	if err != nil {
		return nil
	}
	if pid, err := strconv.Atoi(strings.TrimSpace(string(content))); err == nil {
		if unix.Kill(pid, 0) == nil {
			return fmt.Errorf("daemon already running (PID %d)", pid)
		}
	}
	os.Remove(pidPath)
	os.Remove(socketPath)
	return nil
}

func cleanupFiles(pidPath, socketPath string) {
	os.Remove(pidPath)
	os.Remove(socketPath)
}
