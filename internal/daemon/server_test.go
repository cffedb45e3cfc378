package daemon

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/abusi/clhorde/internal/ipc"
	"github.com/abusi/clhorde/internal/protocol"
)

// startTestDaemon wires an orchestrator and IPC server together the same
// way Run does, minus PID files and signals. Returns the socket path.
func startTestDaemon(t *testing.T) (string, *Orchestrator) {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "daemon.sock")
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}

	o := newTestOrchestrator()
	cmds := make(chan ServerCommand, 1024)
	register := make(chan Registration, 16)
	unregister := make(chan uint64, 16)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go RunIPCServer(ctx, ln, cmds, register, unregister, o.bcast)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-o.workerCh:
				o.Apply(msg)
				o.Dispatch()
			case cmd := <-cmds:
				o.HandleRequest(cmd.Request, cmd.SessionID)
			case r := <-register:
				o.sessions.Add(r.SessionID, r.Events, r.Done)
			case id := <-unregister:
				o.sessions.Remove(id)
			}
		}
	}()

	return socketPath, o
}

func TestServerPingPong(t *testing.T) {
	socketPath, _ := startTestDaemon(t)

	c, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ev, err := c.Request(protocol.ClientRequest{Type: protocol.ReqPing}, protocol.EvPong)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != protocol.EvPong {
		t.Errorf("event = %q", ev.Type)
	}
}

func TestServerSubscribeAck(t *testing.T) {
	socketPath, _ := startTestDaemon(t)

	c, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.Request(protocol.ClientRequest{Type: protocol.ReqSubscribe}, protocol.EvSubscribed); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Request(protocol.ClientRequest{Type: protocol.ReqUnsubscribe}, protocol.EvUnsubscribed); err != nil {
		t.Fatal(err)
	}
}

func TestServerStateSnapshotEmpty(t *testing.T) {
	socketPath, _ := startTestDaemon(t)

	c, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ev, err := c.Request(protocol.ClientRequest{Type: protocol.ReqGetState}, protocol.EvStateSnapshot)
	if err != nil {
		t.Fatal(err)
	}
	if ev.State == nil || len(ev.State.Prompts) != 0 {
		t.Errorf("state = %+v", ev.State)
	}
	if ev.State.ProtocolVersion != protocol.Version {
		t.Errorf("protocol version = %d", ev.State.ProtocolVersion)
	}
}

func TestServerBroadcastReachesSubscriber(t *testing.T) {
	socketPath, _ := startTestDaemon(t)

	a, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if _, err := a.Request(protocol.ClientRequest{Type: protocol.ReqSubscribe}, protocol.EvSubscribed); err != nil {
		t.Fatal(err)
	}

	b, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if err := b.Send(protocol.ClientRequest{Type: protocol.ReqSetMaxWorkers, Count: 7}); err != nil {
		t.Fatal(err)
	}

	ev, err := a.Request(protocol.ClientRequest{Type: protocol.ReqPing}, protocol.EvMaxWorkersChanged)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Count != 7 {
		t.Errorf("count = %d, want 7", ev.Count)
	}
}

func TestServerMultipleClientsRegister(t *testing.T) {
	socketPath, o := startTestDaemon(t)

	a, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	// Round trips force both registrations through the loop.
	if _, err := a.Request(protocol.ClientRequest{Type: protocol.ReqPing}, protocol.EvPong); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Request(protocol.ClientRequest{Type: protocol.ReqPing}, protocol.EvPong); err != nil {
		t.Fatal(err)
	}

	if got := o.sessions.Count(); got != 2 {
		t.Errorf("session count = %d, want 2", got)
	}
}

func TestServerDisconnectDeregisters(t *testing.T) {
	socketPath, o := startTestDaemon(t)

	a, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Request(protocol.ClientRequest{Type: protocol.ReqPing}, protocol.EvPong); err != nil {
		t.Fatal(err)
	}
	a.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.sessions.Count() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("session count = %d after disconnect, want 0", o.sessions.Count())
}

func TestServerRejectsClientBinaryFrames(t *testing.T) {
	socketPath, _ := startTestDaemon(t)

	c, err := ipc.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	// A binary PTY frame from a client is silently ignored; the
	// connection keeps working.
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if err := ipc.WriteFrame(conn, ipc.EncodePtyFrame(1, []byte("rogue"))); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Request(protocol.ClientRequest{Type: protocol.ReqPing}, protocol.EvPong); err != nil {
		t.Fatal(err)
	}
}
