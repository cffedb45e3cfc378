package daemon

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// PtyHandle is the orchestrator's grip on a running interactive worker:
// the emulator for grid extraction and resize, the ring buffer for
// late-join replay, the master for resize ioctls, and the child for
// wait/kill. Created on dispatch, torn down when the worker finishes.
type PtyHandle struct {
	Term *VTerm
	Ring *RingBuffer

	ptmx *os.File
	cmd  *exec.Cmd

	mu     sync.Mutex
	waited bool
}

// spawnPtyWorker opens a PTY pair at the requested size, spawns the agent
// on the slave side, and starts the reader and writer goroutines.
func spawnPtyWorker(spec spawnSpec, msgs chan<- WorkerMessage, bcast *ByteBroadcaster) (chan WorkerInput, *PtyHandle, error) {
	var args []string
	if spec.resumeSessionID == nil {
		args = append(args, spec.text)
	} else if *spec.resumeSessionID == "" {
		args = append(args, "--resume")
	} else {
		args = append(args, "--resume", *spec.resumeSessionID)
	}
	args = append(args, "--dangerously-skip-permissions")

	cmd := exec.Command(agentBinary, args...)
	cmd.Env = agentEnv()
	if spec.cwd != "" {
		cmd.Dir = spec.cwd
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: spec.cols, Rows: spec.rows})
	if err != nil {
		return nil, nil, fmt.Errorf("start %s on pty: %w", agentBinary, err)
	}

	handle := &PtyHandle{
		Term: NewVTerm(int(spec.cols), int(spec.rows)),
		Ring: NewRingBuffer(defaultRingCapacity),
		ptmx: ptmx,
		cmd:  cmd,
	}

	promptID := spec.promptID

	// Reader: PTY bytes feed the emulator, the replay ring, and the byte
	// broadcaster, in that order, before the update notification goes out.
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				handle.Term.Write(data)
				handle.Ring.Extend(data)
				bcast.Publish(ByteFrame{PromptID: promptID, Data: data})
				msgs <- MsgPtyUpdate{PromptID: promptID}
			}
			if err != nil {
				// EOF (or EIO on Linux) — the child exited or was hung up.
				break
			}
		}
		msgs <- MsgPtyEof{PromptID: promptID}
	}()

	// Writer: drains the input channel. Closing the master hangs up the
	// child, which the reader then observes as EOF.
	inputs := make(chan WorkerInput, 256)
	go func() {
		for in := range inputs {
			switch in := in.(type) {
			case InputText:
				if _, err := ptmx.WriteString(in.Text); err != nil {
					return
				}
			case InputBytes:
				if _, err := ptmx.Write(in.Data); err != nil {
					return
				}
			case InputKill:
				ptmx.Close()
				return
			}
		}
	}()

	slog.Info("pty worker started", "prompt_id", promptID, "pid", cmd.Process.Pid)
	return inputs, handle, nil
}

// Resize updates both the PTY master and the emulator grid.
func (h *PtyHandle) Resize(cols, rows uint16) {
	if err := pty.Setsize(h.ptmx, &pty.Winsize{Cols: cols, Rows: rows}); err != nil {
		slog.Warn("pty resize failed", "error", err)
	}
	h.Term.Resize(int(cols), int(rows))
}

// Kill sends SIGKILL to the child and reaps it in the background. The
// reader observes the hangup as EOF and reports PtyEof normally.
func (h *PtyHandle) Kill() {
	if h.cmd.Process != nil {
		h.cmd.Process.Kill()
	}
	go h.WaitExit()
}

// WaitExit blocks until the child is reaped and returns the coerced exit
// code: 0 on success, 1 on any failure. Safe to call once; later calls
// return 1 without waiting again.
func (h *PtyHandle) WaitExit() *int {
	h.mu.Lock()
	already := h.waited
	h.waited = true
	h.mu.Unlock()

	code := 0
	if already || h.cmd.Wait() != nil {
		code = 1
	}
	return &code
}

// Close releases the PTY master and the emulator.
func (h *PtyHandle) Close() {
	h.ptmx.Close()
	h.Term.Close()
}
