// Package prompt defines the unit of work the daemon queues and runs.
package prompt

import (
	"time"

	"github.com/google/uuid"
)

// Mode selects how a prompt's worker runs.
type Mode int

const (
	// ModeInteractive runs the agent on a PTY; the session stays alive for
	// follow-up input after the first response.
	ModeInteractive Mode = iota
	// ModeOneShot runs the agent with piped stdout and a structured event
	// stream; the worker exits after one turn.
	ModeOneShot
)

// Label returns the wire/CLI spelling of the mode.
func (m Mode) Label() string {
	if m == ModeOneShot {
		return "one-shot"
	}
	return "interactive"
}

// StorageLabel returns the on-disk spelling of the mode.
func (m Mode) StorageLabel() string {
	if m == ModeOneShot {
		return "one_shot"
	}
	return "interactive"
}

// ParseMode maps any of the accepted spellings to a Mode. Unknown strings
// fall back to interactive.
func ParseMode(s string) Mode {
	switch s {
	case "one-shot", "one_shot", "oneshot":
		return ModeOneShot
	default:
		return ModeInteractive
	}
}

// Status is a prompt's position in its lifecycle.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	// StatusIdle: turn complete, process alive, waiting for follow-up input.
	// Only reachable for interactive prompts.
	StatusIdle
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusRunning:
		return "Running"
	case StatusIdle:
		return "Idle"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	}
	return "Pending"
}

// ParseStatus maps a wire status string back to a Status.
func ParseStatus(s string) Status {
	switch s {
	case "Running":
		return StatusRunning
	case "Idle":
		return StatusIdle
	case "Completed":
		return StatusCompleted
	case "Failed":
		return StatusFailed
	default:
		return StatusPending
	}
}

// Active reports whether a worker exists for this status.
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusIdle
}

// Terminal reports whether the prompt has finished.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Prompt is one queued task. The orchestrator is the sole owner of all
// mutable fields; workers only ever see copies of what they need.
type Prompt struct {
	// ID is process-local and monotone; reassigned on daemon restart.
	ID uint64
	// UUID is the persistence key. Version-7 UUIDs sort lexicographically
	// by creation time, which drives prune order.
	UUID         string
	Text         string
	Cwd          string
	Mode         Mode
	Worktree     bool
	WorktreePath string
	Status       Status
	Output       string
	Error        string
	SessionID    string
	Tags         []string
	QueueRank    float64
	// Resume: the next dispatch attaches to the saved agent session
	// instead of starting fresh.
	Resume     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Seen       bool
}

// New creates a pending prompt with a fresh time-ordered UUID.
func New(id uint64, text, cwd string, mode Mode) *Prompt {
	return &Prompt{
		ID:     id,
		UUID:   uuid.Must(uuid.NewV7()).String(),
		Text:   text,
		Cwd:    cwd,
		Mode:   mode,
		Status: StatusPending,
	}
}

// MarkStarted stamps the start time.
func (p *Prompt) MarkStarted() {
	p.StartedAt = time.Now()
}

// MarkFinished stamps the finish time.
func (p *Prompt) MarkFinished() {
	p.FinishedAt = time.Now()
}

// ElapsedSecs returns the run duration so far, or nil if never started.
func (p *Prompt) ElapsedSecs() *float64 {
	if p.StartedAt.IsZero() {
		return nil
	}
	end := p.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	secs := end.Sub(p.StartedAt).Seconds()
	return &secs
}
