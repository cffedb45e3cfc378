package daemon

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/abusi/clhorde/internal/config"
	"github.com/abusi/clhorde/internal/persist"
	"github.com/abusi/clhorde/internal/prompt"
	"github.com/abusi/clhorde/internal/protocol"
	"github.com/abusi/clhorde/internal/worktree"
)

const (
	defaultMaxWorkers = 3
	minWorkers        = 1
	maxWorkersCeiling = 20

	// Default PTY size until a client resizes.
	defaultPtyCols = 80
	defaultPtyRows = 24

	workerChanCapacity = 4096
)

// Orchestrator is the daemon's single-threaded event-driven core. It
// exclusively owns the prompt list, the worker-input and PTY-handle maps,
// and the session manager; everything else talks to it over channels.
type Orchestrator struct {
	prompts       []*prompt.Prompt
	nextID        uint64
	maxWorkers    int
	activeWorkers int
	defaultMode   prompt.Mode

	workerInputs map[uint64]chan WorkerInput
	ptyHandles   map[uint64]*PtyHandle
	// worktreeCreating holds prompt ids parked while a background thread
	// runs `git worktree add`; dispatch skips them.
	worktreeCreating map[uint64]struct{}

	sessions *SessionManager
	workerCh chan WorkerMessage
	bcast    *ByteBroadcaster

	promptsDir      string
	maxSavedPrompts int
	worktreeCleanup config.WorktreeCleanup
}

// NewOrchestrator builds the orchestrator and restores saved prompts from
// the prompts directory. promptsDir may be empty to disable persistence.
func NewOrchestrator(settings config.Settings, promptsDir string) *Orchestrator {
	o := &Orchestrator{
		nextID:           1,
		maxWorkers:       defaultMaxWorkers,
		defaultMode:      prompt.ParseMode(settings.DefaultMode),
		workerInputs:     make(map[uint64]chan WorkerInput),
		ptyHandles:       make(map[uint64]*PtyHandle),
		worktreeCreating: make(map[uint64]struct{}),
		sessions:         NewSessionManager(),
		workerCh:         make(chan WorkerMessage, workerChanCapacity),
		bcast:            NewByteBroadcaster(),
		promptsDir:       promptsDir,
		maxSavedPrompts:  settings.MaxSavedPrompts,
		worktreeCleanup:  settings.Cleanup(),
	}
	o.restore()
	if o.promptsDir != "" {
		persist.Prune(o.promptsDir, o.maxSavedPrompts)
	}
	return o
}

// restore rebuilds the prompt list from disk. Saved running/idle prompts
// collapse to completed (the process is gone); ids are reassigned in
// creation order and restored prompts count as seen.
func (o *Orchestrator) restore() {
	if o.promptsDir == "" {
		return
	}
	for _, s := range persist.LoadAll(o.promptsDir) {
		status := prompt.StatusCompleted
		if s.Record.State == "failed" {
			status = prompt.StatusFailed
		}
		p := prompt.New(o.nextID, s.Record.Prompt, s.Record.Options.Context, prompt.ParseMode(s.Record.Options.Mode))
		p.UUID = s.UUID
		p.Status = status
		p.QueueRank = s.Record.QueueRank
		p.SessionID = s.Record.SessionID
		p.Worktree = s.Record.Options.Worktree
		p.WorktreePath = s.Record.WorktreePath
		p.Tags = s.Record.Tags
		p.Seen = true
		o.prompts = append(o.prompts, p)
		o.nextID++
	}
	if len(o.prompts) > 0 {
		slog.Info("restored prompts from disk", "count", len(o.prompts))
	}
}

// ── Persistence ──

func (o *Orchestrator) persistPrompt(p *prompt.Prompt) {
	if o.promptsDir != "" {
		persist.Save(o.promptsDir, p.UUID, persist.FromPrompt(p))
	}
}

func (o *Orchestrator) persistPromptByID(id uint64) {
	if p := o.find(id); p != nil {
		o.persistPrompt(p)
	}
}

func (o *Orchestrator) maybePrune() {
	if o.promptsDir != "" {
		persist.Prune(o.promptsDir, o.maxSavedPrompts)
	}
}

// ── Wire conversion ──

func (o *Orchestrator) promptInfo(p *prompt.Prompt) protocol.PromptInfo {
	_, hasPty := o.ptyHandles[p.ID]
	return protocol.PromptInfo{
		ID:           p.ID,
		Text:         p.Text,
		Cwd:          p.Cwd,
		Mode:         p.Mode.Label(),
		Status:       p.Status.String(),
		Output:       p.Output,
		Error:        p.Error,
		Worktree:     p.Worktree,
		WorktreePath: p.WorktreePath,
		SessionID:    p.SessionID,
		Tags:         p.Tags,
		QueueRank:    p.QueueRank,
		Seen:         p.Seen,
		Resume:       p.Resume,
		OutputLen:    len(p.Output),
		ElapsedSecs:  p.ElapsedSecs(),
		UUID:         p.UUID,
		HasPty:       hasPty,
	}
}

// State snapshots everything a client needs to render the queue.
func (o *Orchestrator) State() protocol.DaemonState {
	infos := make([]protocol.PromptInfo, 0, len(o.prompts))
	for _, p := range o.prompts {
		infos = append(infos, o.promptInfo(p))
	}
	return protocol.DaemonState{
		Prompts:         infos,
		MaxWorkers:      o.maxWorkers,
		ActiveWorkers:   o.activeWorkers,
		DefaultMode:     o.defaultMode.Label(),
		ProtocolVersion: protocol.Version,
	}
}

func (o *Orchestrator) find(id uint64) *prompt.Prompt {
	for _, p := range o.prompts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (o *Orchestrator) indexOf(id uint64) int {
	for i, p := range o.prompts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (o *Orchestrator) broadcastPromptUpdated(id uint64) {
	if p := o.find(id); p != nil {
		info := o.promptInfo(p)
		o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvPromptUpdated, Prompt: &info})
	}
}

func (o *Orchestrator) broadcastActiveWorkers() {
	o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvActiveWorkersChanged, Count: o.activeWorkers})
}

// postMessage feeds a message back into the orchestrator's own channel
// without ever blocking the loop that is draining it.
func (o *Orchestrator) postMessage(msg WorkerMessage) {
	select {
	case o.workerCh <- msg:
	default:
		go func() { o.workerCh <- msg }()
	}
}

// ── Prompt lifecycle ──

// AddPrompt queues a new prompt at the back of the queue, persists it, and
// announces it. The caller dispatches afterwards.
func (o *Orchestrator) AddPrompt(text, cwd string, mode prompt.Mode, useWorktree bool, tags []string) *prompt.Prompt {
	p := prompt.New(o.nextID, text, cwd, mode)
	p.Worktree = useWorktree
	p.Tags = tags
	maxRank := 0.0
	for _, q := range o.prompts {
		if q.QueueRank > maxRank {
			maxRank = q.QueueRank
		}
	}
	p.QueueRank = maxRank + 1
	o.nextID++
	o.persistPrompt(p)
	o.maybePrune()

	slog.Info("prompt added", "prompt_id", p.ID, "mode", p.Mode.Label())
	o.prompts = append(o.prompts, p)
	info := o.promptInfo(p)
	o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvPromptAdded, Prompt: &info})
	return p
}

func (o *Orchestrator) nextPendingIndex() int {
	for i, p := range o.prompts {
		if p.Status != prompt.StatusPending {
			continue
		}
		if _, creating := o.worktreeCreating[p.ID]; creating {
			continue
		}
		return i
	}
	return -1
}

func (o *Orchestrator) markRunning(p *prompt.Prompt) {
	p.Status = prompt.StatusRunning
	p.MarkStarted()
	o.persistPrompt(p)
	o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvWorkerStarted, PromptID: p.ID})
	o.broadcastPromptUpdated(p.ID)
}

// ── Dispatch ──

// Dispatch promotes pending prompts to running until the worker limit is
// reached. Called after every state change that could free a slot.
func (o *Orchestrator) Dispatch() {
	for o.activeWorkers < o.maxWorkers {
		idx := o.nextPendingIndex()
		if idx < 0 {
			break
		}
		p := o.prompts[idx]

		cwd := p.Cwd
		if p.Worktree {
			if p.WorktreePath != "" {
				cwd = p.WorktreePath
			} else {
				effective := p.Cwd
				if effective == "" {
					effective, _ = os.Getwd()
				}
				if worktree.IsGitRepo(effective) {
					// Worktree creation shells out to git and can be slow;
					// park the prompt and run it off-loop. Dispatch skips
					// parked prompts until WorktreeCreated arrives.
					o.worktreeCreating[p.ID] = struct{}{}
					id := p.ID
					repo := effective
					go func() {
						path, err := worktree.Create(repo, id)
						o.workerCh <- MsgWorktreeCreated{PromptID: id, Path: path, Err: err}
					}()
					continue
				}
			}
		}

		o.markRunning(p)
		o.activeWorkers++
		slog.Info("dispatching worker", "prompt_id", p.ID, "mode", p.Mode.Label(), "active_workers", o.activeWorkers)
		o.broadcastActiveWorkers()

		var resume *string
		if p.Resume {
			sid := p.SessionID
			resume = &sid
		}

		inputs, handle, err := spawnWorker(spawnSpec{
			promptID:        p.ID,
			text:            p.Text,
			cwd:             cwd,
			mode:            p.Mode,
			cols:            defaultPtyCols,
			rows:            defaultPtyRows,
			resumeSessionID: resume,
		}, o.workerCh, o.bcast)
		if err != nil {
			o.failWorker(p.ID, err.Error())
			continue
		}
		if inputs != nil {
			o.workerInputs[p.ID] = inputs
		}
		if handle != nil {
			o.ptyHandles[p.ID] = handle
		}
	}
}

// failWorker handles a worker that died before doing anything useful:
// a synchronous spawn failure or an async SpawnError.
func (o *Orchestrator) failWorker(id uint64, errMsg string) {
	slog.Warn("worker spawn error", "prompt_id", id, "error", errMsg)
	if o.activeWorkers > 0 {
		o.activeWorkers--
	}
	if p := o.find(id); p != nil {
		p.Status = prompt.StatusFailed
		p.MarkFinished()
		p.Error = errMsg
	}
	o.persistPromptByID(id)
	o.maybeCleanupWorktree(id)
	o.removeWorker(id)
	o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvWorkerError, PromptID: id, Error: errMsg})
	o.broadcastPromptUpdated(id)
	o.broadcastActiveWorkers()
}

// removeWorker tears down a prompt's worker bookkeeping: the PTY handle
// (closing the master and emulator) and the input channel.
func (o *Orchestrator) removeWorker(id uint64) {
	if h, ok := o.ptyHandles[id]; ok {
		h.Close()
		delete(o.ptyHandles, id)
	}
	if in, ok := o.workerInputs[id]; ok {
		close(in)
		delete(o.workerInputs, id)
	}
}

// ── Worker message handling ──

// Apply folds one worker message into orchestrator state. The caller
// re-invokes Dispatch afterwards.
func (o *Orchestrator) Apply(msg WorkerMessage) {
	switch msg := msg.(type) {
	case MsgOutputChunk:
		if p := o.find(msg.PromptID); p != nil {
			if p.Status == prompt.StatusIdle {
				p.Status = prompt.StatusRunning
			}
			p.Output += msg.Text
		}
		o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvOutputChunk, PromptID: msg.PromptID, Text: msg.Text})

	case MsgTurnComplete:
		if p := o.find(msg.PromptID); p != nil && p.Status == prompt.StatusRunning {
			p.Output += "\n"
			p.Status = prompt.StatusIdle
			o.persistPrompt(p)
		}
		o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvTurnComplete, PromptID: msg.PromptID})
		o.broadcastPromptUpdated(msg.PromptID)

	case MsgPtyUpdate:
		o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvPtyUpdate, PromptID: msg.PromptID})

	case MsgSessionID:
		if p := o.find(msg.PromptID); p != nil {
			p.SessionID = msg.SessionID
		}
		o.persistPromptByID(msg.PromptID)
		o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvSessionID, PromptID: msg.PromptID, SessionID: msg.SessionID})

	case MsgPtyEof:
		o.applyPtyEof(msg.PromptID)

	case MsgFinished:
		o.applyFinished(msg.PromptID, msg.ExitCode)

	case MsgWorktreeCreated:
		delete(o.worktreeCreating, msg.PromptID)
		if msg.Err != nil {
			errMsg := fmt.Sprintf("Failed to create worktree: %v", msg.Err)
			if p := o.find(msg.PromptID); p != nil {
				p.Status = prompt.StatusFailed
				p.Error = errMsg
			}
			o.persistPromptByID(msg.PromptID)
			o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvWorkerError, PromptID: msg.PromptID, Error: errMsg})
			o.broadcastPromptUpdated(msg.PromptID)
			return
		}
		if p := o.find(msg.PromptID); p != nil {
			p.WorktreePath = msg.Path
		}
		o.persistPromptByID(msg.PromptID)
		// The next Dispatch pass picks this prompt up with its worktree set.

	case MsgSpawnError:
		o.failWorker(msg.PromptID, msg.Error)
	}
}

// applyPtyEof captures the final screen while the terminal state is still
// live, then hands the child to a background waiter for the real exit
// code. If the handle is already gone (kill race) a synthetic Finished
// with no exit code keeps the lifecycle moving.
func (o *Orchestrator) applyPtyEof(id uint64) {
	h, ok := o.ptyHandles[id]
	if !ok {
		o.postMessage(MsgFinished{PromptID: id, ExitCode: nil})
		return
	}
	if text := h.Term.ExtractText(); text != "" {
		if p := o.find(id); p != nil {
			p.Output = text
		}
	}
	go func() {
		o.workerCh <- MsgFinished{PromptID: id, ExitCode: h.WaitExit()}
	}()
}

func (o *Orchestrator) applyFinished(id uint64, exitCode *int) {
	p := o.find(id)

	// PTY workers: fall back to grid extraction if PtyEof didn't capture.
	if p != nil && p.Output == "" {
		if h, ok := o.ptyHandles[id]; ok {
			p.Output = h.Term.ExtractText()
		}
	}

	if p != nil {
		if p.Output != "" && !strings.HasSuffix(p.Output, "\n") {
			p.Output += "\n"
		}
		p.MarkFinished()
		if exitCode == nil || *exitCode == 0 {
			p.Status = prompt.StatusCompleted
		} else {
			p.Status = prompt.StatusFailed
			if p.Error == "" {
				p.Error = fmt.Sprintf("Exit code: %d", *exitCode)
			}
		}
		o.persistPrompt(p)
	}
	o.maybeCleanupWorktree(id)
	o.removeWorker(id)
	if p != nil && o.activeWorkers > 0 {
		o.activeWorkers--
	}

	slog.Info("worker finished", "prompt_id", id, "active_workers", o.activeWorkers)
	o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvWorkerFinished, PromptID: id, ExitCode: exitCode})
	o.broadcastPromptUpdated(id)
	o.broadcastActiveWorkers()
}

// ── Client request handling ──

// HandleRequest applies one client request. Replies that answer a question
// go only to the requesting session; state changes broadcast.
func (o *Orchestrator) HandleRequest(req protocol.ClientRequest, sessionID uint64) {
	switch req.Type {
	case protocol.ReqSubmitPrompt:
		o.AddPrompt(req.Text, req.Cwd, prompt.ParseMode(req.Mode), req.Worktree, req.Tags)
		o.Dispatch()

	case protocol.ReqSendInput:
		o.sendInput(req.PromptID, req.Text, sessionID)

	case protocol.ReqSendBytes:
		if in, ok := o.workerInputs[req.PromptID]; ok {
			sendWorkerInput(in, InputBytes{Data: req.Data})
		}

	case protocol.ReqKillWorker:
		o.killWorker(req.PromptID)

	case protocol.ReqRetryPrompt:
		if p := o.find(req.PromptID); p != nil && p.Status.Terminal() {
			o.AddPrompt(p.Text, p.Cwd, p.Mode, p.Worktree, p.Tags)
			o.Dispatch()
		}

	case protocol.ReqResumePrompt:
		if p := o.find(req.PromptID); p != nil {
			o.resumePrompt(p)
			o.Dispatch()
		}

	case protocol.ReqDeletePrompt:
		o.deletePrompt(req.PromptID)

	case protocol.ReqMovePromptUp:
		if idx := o.indexOf(req.PromptID); idx >= 0 {
			o.movePrompt(idx, idx-1)
		}

	case protocol.ReqMovePromptDown:
		if idx := o.indexOf(req.PromptID); idx >= 0 {
			o.movePrompt(idx, idx+1)
		}

	case protocol.ReqSetMaxWorkers:
		o.maxWorkers = min(max(req.Count, minWorkers), maxWorkersCeiling)
		o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvMaxWorkersChanged, Count: o.maxWorkers})
		o.Dispatch()

	case protocol.ReqSetDefaultMode:
		o.defaultMode = prompt.ParseMode(req.Mode)

	case protocol.ReqSetPromptMode:
		if p := o.find(req.PromptID); p != nil && p.Status == prompt.StatusPending {
			p.Mode = prompt.ParseMode(req.Mode)
			o.persistPrompt(p)
			o.broadcastPromptUpdated(p.ID)
		}

	case protocol.ReqGetState:
		state := o.State()
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvStateSnapshot, State: &state})

	case protocol.ReqGetPromptOutput:
		var text string
		if p := o.find(req.PromptID); p != nil {
			text = p.Output
		}
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvPromptOutput, PromptID: req.PromptID, FullText: text})

	case protocol.ReqResizePty:
		if h, ok := o.ptyHandles[req.PromptID]; ok {
			h.Resize(req.Cols, req.Rows)
		}

	case protocol.ReqSubscribe:
		o.sessions.SetSubscribed(sessionID, true)
		// Late-join replay: each live PTY's recent bytes, then the ack.
		for id, h := range o.ptyHandles {
			if data := h.Ring.Snapshot(); len(data) > 0 {
				o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvPtyReplay, PromptID: id, Data: data})
			}
		}
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvSubscribed})

	case protocol.ReqUnsubscribe:
		o.sessions.SetSubscribed(sessionID, false)
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvUnsubscribed})

	case protocol.ReqPing:
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvPong})

	case protocol.ReqShutdown:
		// The run loop exits after this returns; just acknowledge.
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvStoreOpComplete, Message: "Shutdown initiated"})

	case protocol.ReqStoreList:
		infos := make([]protocol.PromptInfo, 0, len(o.prompts))
		for _, p := range o.prompts {
			infos = append(infos, o.promptInfo(p))
		}
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvStoreListResult, Prompts: infos})

	case protocol.ReqStoreCount:
		counts := protocol.StoreCounts{}
		for _, p := range o.prompts {
			switch p.Status {
			case prompt.StatusPending:
				counts.Pending++
			case prompt.StatusRunning, prompt.StatusIdle:
				counts.Running++
			case prompt.StatusCompleted:
				counts.Completed++
			case prompt.StatusFailed:
				counts.Failed++
			}
		}
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvStoreCountResult, Counts: &counts})

	case protocol.ReqStorePath:
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvStorePathResult, Path: o.promptsDir})

	case protocol.ReqStoreDrop:
		count := o.storeDrop(req.Filter)
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvStoreOpComplete, Message: fmt.Sprintf("Dropped %d prompts", count)})

	case protocol.ReqStoreKeep:
		count := o.storeKeep(req.Filter)
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvStoreOpComplete, Message: fmt.Sprintf("Kept matching, dropped %d prompts", count)})

	case protocol.ReqCleanWorktrees:
		count := o.cleanWorktrees()
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvStoreOpComplete, Message: fmt.Sprintf("Cleaned %d worktrees", count)})

	default:
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{Type: protocol.EvError, Message: fmt.Sprintf("unknown request type %q", req.Type)})
	}
}

// sendInput echoes the text into the prompt's transcript, then forwards it
// to the worker with a trailing newline. One-shot workers have no input
// channel; the requester gets a targeted error.
func (o *Orchestrator) sendInput(id uint64, text string, sessionID uint64) {
	in, ok := o.workerInputs[id]
	if !ok {
		o.sessions.SendTo(sessionID, protocol.DaemonEvent{
			Type:    protocol.EvError,
			Message: fmt.Sprintf("Cannot send input to prompt %d: no input channel (one-shot worker?)", id),
		})
		return
	}
	echo := fmt.Sprintf("\n\n> %s\n\n", text)
	if p := o.find(id); p != nil {
		p.Output += echo
	}
	o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvOutputChunk, PromptID: id, Text: echo})
	sendWorkerInput(in, InputText{Text: text + "\n"})
}

// sendWorkerInput never blocks the orchestrator; if the writer is wedged
// the command is dropped.
func sendWorkerInput(in chan WorkerInput, msg WorkerInput) {
	select {
	case in <- msg:
	default:
		slog.Warn("worker input channel full, dropping input")
	}
}

// killWorker hangs up the writer and SIGKILLs the child. Best-effort: the
// reader observes EOF and the normal PtyEof path runs, finding the handle
// gone and synthesizing the Finished.
func (o *Orchestrator) killWorker(id uint64) {
	slog.Info("killing worker", "prompt_id", id)
	if in, ok := o.workerInputs[id]; ok {
		sendWorkerInput(in, InputKill{})
	}
	if h, ok := o.ptyHandles[id]; ok {
		delete(o.ptyHandles, id)
		h.Kill()
		h.Close()
	}
}

func (o *Orchestrator) resumePrompt(p *prompt.Prompt) {
	if !p.Status.Terminal() {
		return
	}
	p.Status = prompt.StatusPending
	p.Resume = true
	p.Output = ""
	p.Error = ""
	p.StartedAt = time.Time{}
	p.FinishedAt = time.Time{}
	p.Seen = false
	o.persistPrompt(p)
	o.broadcastPromptUpdated(p.ID)
}

func (o *Orchestrator) deletePrompt(id uint64) {
	if p := o.find(id); p != nil && p.Status.Active() {
		o.killWorker(id)
		if in, ok := o.workerInputs[id]; ok {
			close(in)
			delete(o.workerInputs, id)
		}
		if o.activeWorkers > 0 {
			o.activeWorkers--
		}
	}
	if p := o.find(id); p != nil && o.promptsDir != "" {
		persist.Delete(o.promptsDir, p.UUID)
	}
	if idx := o.indexOf(id); idx >= 0 {
		o.prompts = append(o.prompts[:idx], o.prompts[idx+1:]...)
		o.sessions.Broadcast(protocol.DaemonEvent{Type: protocol.EvPromptRemoved, PromptID: id})
	}
}

// movePrompt swaps a pending prompt with its neighbour, exchanging both
// queue ranks and list positions. Boundary moves are no-ops.
func (o *Orchestrator) movePrompt(idx, neighbour int) {
	if neighbour < 0 || neighbour >= len(o.prompts) {
		return
	}
	if o.prompts[idx].Status != prompt.StatusPending {
		return
	}
	a, b := o.prompts[idx], o.prompts[neighbour]
	a.QueueRank, b.QueueRank = b.QueueRank, a.QueueRank
	o.prompts[idx], o.prompts[neighbour] = b, a
	o.persistPrompt(a)
	o.persistPrompt(b)
	o.broadcastPromptUpdated(a.ID)
	o.broadcastPromptUpdated(b.ID)
}

// ── Store operations ──

func matchesFilter(p *prompt.Prompt, filter string) bool {
	switch filter {
	case "all":
		return true
	case "completed":
		return p.Status == prompt.StatusCompleted
	case "failed":
		return p.Status == prompt.StatusFailed
	case "pending":
		return p.Status == prompt.StatusPending
	case "running":
		return p.Status.Active()
	}
	return false
}

func (o *Orchestrator) storeDrop(filter string) int {
	var ids []uint64
	for _, p := range o.prompts {
		if matchesFilter(p, filter) {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) > 0 {
		slog.Debug("store drop", "filter", filter, "count", len(ids))
	}
	for _, id := range ids {
		o.deletePrompt(id)
	}
	return len(ids)
}

// storeKeep deletes everything that doesn't match the filter, except
// running/idle prompts, which are always protected.
func (o *Orchestrator) storeKeep(filter string) int {
	var ids []uint64
	for _, p := range o.prompts {
		keep := matchesFilter(p, filter)
		if !keep && !p.Status.Active() {
			ids = append(ids, p.ID)
		}
	}
	for _, id := range ids {
		o.deletePrompt(id)
	}
	return len(ids)
}

// cleanWorktrees removes finished prompts' worktrees via their parent
// repositories and clears the stored paths.
func (o *Orchestrator) cleanWorktrees() int {
	count := 0
	for _, p := range o.prompts {
		if !p.Status.Terminal() || p.WorktreePath == "" {
			continue
		}
		if _, err := os.Stat(p.WorktreePath); err != nil {
			continue
		}
		root := worktree.RootFor(p.WorktreePath)
		if root == "" {
			continue
		}
		if err := worktree.Remove(root, p.WorktreePath); err != nil {
			slog.Warn("worktree removal failed", "prompt_id", p.ID, "error", err)
			continue
		}
		p.WorktreePath = ""
		o.persistPrompt(p)
		count++
	}
	return count
}

// maybeCleanupWorktree runs after a worker finishes when cleanup is auto:
// clears the stored path immediately and removes the tree off-loop.
func (o *Orchestrator) maybeCleanupWorktree(id uint64) {
	if o.worktreeCleanup != config.CleanupAuto {
		return
	}
	p := o.find(id)
	if p == nil || p.WorktreePath == "" {
		return
	}
	path := p.WorktreePath
	p.WorktreePath = ""
	o.persistPrompt(p)
	go func() {
		root := worktree.RootFor(path)
		if root == "" {
			return
		}
		if err := worktree.Remove(root, path); err != nil {
			slog.Warn("auto worktree cleanup failed", "path", path, "error", err)
		}
	}()
}

// ── Shutdown ──

// Shutdown kills every live worker. The run loop then drains worker
// messages briefly to collect exit codes before the process exits.
func (o *Orchestrator) Shutdown() {
	for id, in := range o.workerInputs {
		sendWorkerInput(in, InputKill{})
		close(in)
		delete(o.workerInputs, id)
	}
	for id, h := range o.ptyHandles {
		delete(o.ptyHandles, id)
		h.Kill()
		h.Close()
	}
}
