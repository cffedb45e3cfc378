package daemon

import (
	"os"
	"strings"

	"github.com/abusi/clhorde/internal/prompt"
)

// agentBinary is the external AI agent the daemon drives.
const agentBinary = "claude"

// WorkerMessage is anything a worker reports back to the orchestrator.
// Workers never touch prompt state directly; every observation flows
// through the orchestrator's message channel.
type WorkerMessage interface{ workerMessage() }

// MsgOutputChunk carries streamed agent text from a one-shot worker.
type MsgOutputChunk struct {
	PromptID uint64
	Text     string
}

// MsgTurnComplete signals the agent finished a turn and is waiting for
// follow-up input.
type MsgTurnComplete struct {
	PromptID uint64
}

// MsgPtyUpdate signals new bytes were written to a PTY worker's terminal.
type MsgPtyUpdate struct {
	PromptID uint64
}

// MsgPtyEof signals the PTY master hit EOF: the child's output is done,
// but the real exit code still needs a wait.
type MsgPtyEof struct {
	PromptID uint64
}

// MsgSessionID carries the agent's resumable-session token.
type MsgSessionID struct {
	PromptID  uint64
	SessionID string
}

// MsgFinished reports the worker's exit. A nil ExitCode means the real
// status was unobtainable (kill race, wait failure on signal).
type MsgFinished struct {
	PromptID uint64
	ExitCode *int
}

// MsgWorktreeCreated reports the outcome of an async worktree creation.
type MsgWorktreeCreated struct {
	PromptID uint64
	Path     string
	Err      error
}

// MsgSpawnError reports a worker that failed before producing anything.
type MsgSpawnError struct {
	PromptID uint64
	Error    string
}

func (MsgOutputChunk) workerMessage()     {}
func (MsgTurnComplete) workerMessage()    {}
func (MsgPtyUpdate) workerMessage()       {}
func (MsgPtyEof) workerMessage()          {}
func (MsgSessionID) workerMessage()       {}
func (MsgFinished) workerMessage()        {}
func (MsgWorktreeCreated) workerMessage() {}
func (MsgSpawnError) workerMessage()      {}

// WorkerInput is a command to a PTY worker's writer goroutine.
type WorkerInput interface{ workerInput() }

// InputText writes the text to the PTY with no extra framing.
type InputText struct{ Text string }

// InputBytes writes raw bytes (key sequences, paste data) to the PTY.
type InputBytes struct{ Data []byte }

// InputKill hangs up the PTY master, stopping the writer.
type InputKill struct{}

func (InputText) workerInput()  {}
func (InputBytes) workerInput() {}
func (InputKill) workerInput()  {}

// spawnSpec is everything a dispatch needs to start a worker.
type spawnSpec struct {
	promptID uint64
	text     string
	cwd      string
	mode     prompt.Mode
	cols     uint16
	rows     uint16
	// resumeSessionID is nil for a fresh run. Non-nil attaches to an
	// existing agent session; the empty string lets the agent pick.
	resumeSessionID *string
}

// spawnWorker starts the worker for a prompt. Interactive prompts return
// an input channel and PTY handle; one-shot prompts run detached and
// report back purely through messages (including spawn failures).
func spawnWorker(spec spawnSpec, msgs chan<- WorkerMessage, bcast *ByteBroadcaster) (chan WorkerInput, *PtyHandle, error) {
	if spec.mode == prompt.ModeOneShot {
		spawnOneShot(spec, msgs)
		return nil, nil, nil
	}
	return spawnPtyWorker(spec, msgs, bcast)
}

// agentEnv returns the daemon's environment with the agent's own
// nesting-detection variable scrubbed, so a spawned agent doesn't believe
// it is already running inside itself.
func agentEnv() []string {
	env := os.Environ()
	out := env[:0]
	for _, kv := range env {
		if strings.HasPrefix(kv, "CLAUDECODE=") {
			continue
		}
		out = append(out, kv)
	}
	return out
}
