// Package protocol defines the IPC message types exchanged between the
// daemon and its clients (TUI and CLI) over the local socket.
//
// Both directions use tagged JSON documents: the Type field is the
// discriminator, the remaining fields carry that variant's payload. Unused
// fields are omitted on the wire.
package protocol

// Version is the current protocol version. Bump it when making breaking
// changes to ClientRequest, DaemonEvent, or DaemonState. Clients treat a
// missing protocol_version in a snapshot as 0.
const Version = 1

// ClientRequest type discriminators (client -> daemon).
const (
	ReqSubmitPrompt    = "SubmitPrompt"
	ReqSendInput       = "SendInput"
	ReqSendBytes       = "SendBytes"
	ReqKillWorker      = "KillWorker"
	ReqRetryPrompt     = "RetryPrompt"
	ReqResumePrompt    = "ResumePrompt"
	ReqDeletePrompt    = "DeletePrompt"
	ReqMovePromptUp    = "MovePromptUp"
	ReqMovePromptDown  = "MovePromptDown"
	ReqSetMaxWorkers   = "SetMaxWorkers"
	ReqSetDefaultMode  = "SetDefaultMode"
	ReqSetPromptMode   = "SetPromptMode"
	ReqGetState        = "GetState"
	ReqGetPromptOutput = "GetPromptOutput"
	ReqResizePty       = "ResizePty"
	ReqSubscribe       = "Subscribe"
	ReqUnsubscribe     = "Unsubscribe"
	ReqPing            = "Ping"
	ReqShutdown        = "Shutdown"
	ReqStoreList       = "StoreList"
	ReqStoreCount      = "StoreCount"
	ReqStorePath       = "StorePath"
	ReqStoreDrop       = "StoreDrop"
	ReqStoreKeep       = "StoreKeep"
	ReqCleanWorktrees  = "CleanWorktrees"
)

// DaemonEvent type discriminators (daemon -> client).
const (
	EvPromptAdded          = "PromptAdded"
	EvPromptUpdated        = "PromptUpdated"
	EvPromptRemoved        = "PromptRemoved"
	EvOutputChunk          = "OutputChunk"
	EvPromptOutput         = "PromptOutput"
	EvPtyUpdate            = "PtyUpdate"
	EvWorkerStarted        = "WorkerStarted"
	EvWorkerFinished       = "WorkerFinished"
	EvWorkerError          = "WorkerError"
	EvTurnComplete         = "TurnComplete"
	EvSessionID            = "SessionId"
	EvMaxWorkersChanged    = "MaxWorkersChanged"
	EvActiveWorkersChanged = "ActiveWorkersChanged"
	EvStateSnapshot        = "StateSnapshot"
	EvStoreListResult      = "StoreListResult"
	EvStoreCountResult     = "StoreCountResult"
	EvStorePathResult      = "StorePathResult"
	EvStoreOpComplete      = "StoreOpComplete"
	EvPong                 = "Pong"
	EvError                = "Error"
	// EvPtyReplay carries a ring-buffer snapshot for late-joining clients.
	EvPtyReplay = "PtyReplay"
	// EvSubscribed / EvUnsubscribed acknowledge that PTY byte forwarding is
	// enabled / disabled for the session.
	EvSubscribed   = "Subscribed"
	EvUnsubscribed = "Unsubscribed"
)

// ClientRequest is a command sent by a client. Which fields are meaningful
// depends on Type.
type ClientRequest struct {
	Type string `json:"type"`

	// SubmitPrompt
	Text     string   `json:"text,omitempty"`
	Cwd      string   `json:"cwd,omitempty"`
	Mode     string   `json:"mode,omitempty"`
	Worktree bool     `json:"worktree,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	// Prompt-targeted requests
	PromptID uint64 `json:"prompt_id,omitempty"`

	// SendBytes
	Data []byte `json:"data,omitempty"`

	// SetMaxWorkers
	Count int `json:"count,omitempty"`

	// ResizePty
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`

	// StoreDrop / StoreKeep
	Filter string `json:"filter,omitempty"`
}

// DaemonEvent is a notification or reply sent by the daemon. Which fields
// are meaningful depends on Type.
type DaemonEvent struct {
	Type string `json:"type"`

	// PromptAdded / PromptUpdated
	Prompt *PromptInfo `json:"prompt,omitempty"`

	PromptID uint64 `json:"prompt_id,omitempty"`

	// OutputChunk
	Text string `json:"text,omitempty"`

	// PromptOutput
	FullText string `json:"full_text,omitempty"`

	// WorkerFinished; nil means the real exit status was unobtainable.
	ExitCode *int `json:"exit_code,omitempty"`

	// WorkerError
	Error string `json:"error,omitempty"`

	// Error / StoreOpComplete
	Message string `json:"message,omitempty"`

	// MaxWorkersChanged / ActiveWorkersChanged
	Count int `json:"count,omitempty"`

	// SessionId
	SessionID string `json:"session_id,omitempty"`

	// StateSnapshot
	State *DaemonState `json:"state,omitempty"`

	// StoreListResult
	Prompts []PromptInfo `json:"prompts,omitempty"`

	// StoreCountResult
	Counts *StoreCounts `json:"counts,omitempty"`

	// StorePathResult
	Path string `json:"path,omitempty"`

	// PtyReplay
	Data []byte `json:"data,omitempty"`
}

// PromptInfo is the wire snapshot of a single prompt.
type PromptInfo struct {
	ID           uint64   `json:"id"`
	Text         string   `json:"text"`
	Cwd          string   `json:"cwd,omitempty"`
	Mode         string   `json:"mode"`
	Status       string   `json:"status"`
	Output       string   `json:"output,omitempty"`
	Error        string   `json:"error,omitempty"`
	Worktree     bool     `json:"worktree"`
	WorktreePath string   `json:"worktree_path,omitempty"`
	SessionID    string   `json:"session_id,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	QueueRank    float64  `json:"queue_rank"`
	Seen         bool     `json:"seen"`
	Resume       bool     `json:"resume"`
	OutputLen    int      `json:"output_len"`
	ElapsedSecs  *float64 `json:"elapsed_secs,omitempty"`
	UUID         string   `json:"uuid"`
	HasPty       bool     `json:"has_pty"`
}

// DaemonState is the full snapshot a client receives from GetState.
type DaemonState struct {
	Prompts       []PromptInfo `json:"prompts"`
	MaxWorkers    int          `json:"max_workers"`
	ActiveWorkers int          `json:"active_workers"`
	DefaultMode   string       `json:"default_mode"`
	// ProtocolVersion of the daemon. Clients should warn on mismatch; a
	// missing field decodes as 0.
	ProtocolVersion int `json:"protocol_version,omitempty"`
}

// StoreCounts breaks down the store by prompt status. Running includes
// idle prompts.
type StoreCounts struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
