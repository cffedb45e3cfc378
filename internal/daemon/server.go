package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/abusi/clhorde/internal/ipc"
	"github.com/abusi/clhorde/internal/protocol"
)

// ServerCommand is a client request routed to the orchestrator loop.
type ServerCommand struct {
	SessionID uint64
	Request   protocol.ClientRequest
}

// Registration announces a new client connection to the orchestrator.
type Registration struct {
	SessionID uint64
	Events    chan protocol.DaemonEvent
	Done      chan struct{}
}

// RunIPCServer accepts connections on the already-bound listener and runs
// one handler per client until ctx is cancelled.
func RunIPCServer(
	ctx context.Context,
	ln net.Listener,
	cmds chan<- ServerCommand,
	register chan<- Registration,
	unregister chan<- uint64,
	bcast *ByteBroadcaster,
) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var nextSessionID uint64 = 1
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		sessionID := nextSessionID
		nextSessionID++
		go handleClient(ctx, conn, sessionID, cmds, register, unregister, bcast)
	}
}

func handleClient(
	ctx context.Context,
	conn net.Conn,
	sessionID uint64,
	cmds chan<- ServerCommand,
	register chan<- Registration,
	unregister chan<- uint64,
	bcast *ByteBroadcaster,
) {
	defer conn.Close()

	events := make(chan protocol.DaemonEvent, sessionQueueCapacity)
	done := make(chan struct{})

	select {
	case register <- Registration{SessionID: sessionID, Events: events, Done: done}:
	case <-ctx.Done():
		return
	}

	slog.Debug("client connected", "session_id", sessionID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer conn.Close()
		return readLoop(gctx, conn, sessionID, cmds)
	})
	g.Go(func() error {
		defer conn.Close()
		return writeLoop(gctx, conn, events, bcast)
	})
	g.Wait()

	close(done)
	select {
	case unregister <- sessionID:
	case <-ctx.Done():
	}
	slog.Debug("client disconnected", "session_id", sessionID)
}

// readLoop parses client frames and forwards requests to the orchestrator.
// Binary PTY frames from a client are silently rejected; malformed JSON
// gets a warning and the connection stays open.
func readLoop(ctx context.Context, conn net.Conn, sessionID uint64, cmds chan<- ServerCommand) error {
	for {
		payload, err := ipc.ReadFrame(conn)
		if err != nil {
			if errors.Is(err, ipc.ErrFrameTooLarge) {
				slog.Warn("oversized frame, dropping connection", "session_id", sessionID)
			}
			return err
		}
		if ipc.IsBinaryFrame(payload) {
			continue
		}
		var req protocol.ClientRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			slog.Warn("invalid request from client", "session_id", sessionID, "error", err)
			continue
		}
		select {
		case cmds <- ServerCommand{SessionID: sessionID, Request: req}:
		case <-ctx.Done():
			return io.EOF
		}
		if req.Type == protocol.ReqShutdown {
			return io.EOF
		}
	}
}

// writeLoop frames events from the session queue and, while subscribed,
// raw PTY bytes from the broadcaster. The Subscribed/Unsubscribed events
// toggle the local forwarding flag; subscribing always takes a fresh
// receiver so bytes buffered while unsubscribed are discarded.
func writeLoop(ctx context.Context, conn net.Conn, events <-chan protocol.DaemonEvent, bcast *ByteBroadcaster) error {
	var ptySub *ByteSub
	defer func() {
		if ptySub != nil {
			ptySub.Close()
		}
	}()

	writeEvent := func(ev protocol.DaemonEvent) error {
		switch ev.Type {
		case protocol.EvSubscribed:
			if ptySub != nil {
				ptySub.Close()
			}
			ptySub = bcast.Subscribe()
		case protocol.EvUnsubscribed:
			if ptySub != nil {
				ptySub.Close()
				ptySub = nil
			}
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			slog.Warn("failed to serialize event", "event", ev.Type, "error", err)
			return nil
		}
		return ipc.WriteFrame(conn, payload)
	}

	for {
		if ptySub == nil {
			select {
			case <-ctx.Done():
				return io.EOF
			case ev := <-events:
				if err := writeEvent(ev); err != nil {
					return err
				}
			}
			continue
		}
		select {
		case <-ctx.Done():
			return io.EOF
		case ev := <-events:
			if err := writeEvent(ev); err != nil {
				return err
			}
		case f := <-ptySub.C:
			if err := ipc.WriteFrame(conn, ipc.EncodePtyFrame(f.PromptID, f.Data)); err != nil {
				return err
			}
		}
	}
}
