// Package persist stores prompts as one JSON file each under the prompts
// directory, named {uuid}.json. Version-7 UUIDs sort lexicographically by
// creation time, so filename order is creation order and pruning can simply
// delete the smallest names.
//
// Every operation is best-effort: I/O failures are logged and swallowed,
// and the daemon's in-memory state stays authoritative.
package persist

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/abusi/clhorde/internal/prompt"
)

// Record is the on-disk shape of one prompt.
type Record struct {
	Prompt       string   `json:"prompt"`
	Options      Options  `json:"options"`
	State        string   `json:"state"`
	QueueRank    float64  `json:"queue_rank"`
	SessionID    string   `json:"session_id,omitempty"`
	WorktreePath string   `json:"worktree_path,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// Options carries the submission-time choices.
type Options struct {
	Mode     string `json:"mode"`
	Context  string `json:"context,omitempty"`
	Worktree bool   `json:"worktree,omitempty"`
}

// Saved pairs a record with its persistence key.
type Saved struct {
	UUID   string
	Record Record
}

// FromPrompt converts a live prompt to its on-disk record. There is no
// on-disk idle: an idle prompt persists as running.
func FromPrompt(p *prompt.Prompt) Record {
	state := "pending"
	switch p.Status {
	case prompt.StatusRunning, prompt.StatusIdle:
		state = "running"
	case prompt.StatusCompleted:
		state = "completed"
	case prompt.StatusFailed:
		state = "failed"
	}
	return Record{
		Prompt: p.Text,
		Options: Options{
			Mode:     p.Mode.StorageLabel(),
			Context:  p.Cwd,
			Worktree: p.Worktree,
		},
		State:        state,
		QueueRank:    p.QueueRank,
		SessionID:    p.SessionID,
		WorktreePath: p.WorktreePath,
		Tags:         p.Tags,
	}
}

// Save writes a record atomically (temp file + rename).
func Save(dir, uuid string, rec Record) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("create prompts dir failed", "dir", dir, "error", err)
		return
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		slog.Warn("encode prompt record failed", "uuid", uuid, "error", err)
		return
	}
	tmp, err := os.CreateTemp(dir, ".prompt-*.tmp")
	if err != nil {
		slog.Warn("save prompt failed", "uuid", uuid, "error", err)
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		slog.Warn("save prompt failed", "uuid", uuid, "error", err)
		return
	}
	tmp.Close()
	if err := os.Rename(tmpName, filepath.Join(dir, uuid+".json")); err != nil {
		os.Remove(tmpName)
		slog.Warn("save prompt failed", "uuid", uuid, "error", err)
	}
}

// LoadAll reads every prompt file in dir, sorted ascending by UUID
// (creation order). Unreadable or malformed files are skipped.
func LoadAll(dir string) []Saved {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []Saved
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			slog.Warn("skipping malformed prompt file", "file", name, "error", err)
			continue
		}
		out = append(out, Saved{UUID: strings.TrimSuffix(name, ".json"), Record: rec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UUID < out[j].UUID })
	return out
}

// Delete removes a prompt's file.
func Delete(dir, uuid string) {
	if dir == "" {
		return
	}
	if err := os.Remove(filepath.Join(dir, uuid+".json")); err != nil && !os.IsNotExist(err) {
		slog.Warn("delete prompt file failed", "uuid", uuid, "error", err)
	}
}

// Prune deletes the oldest prompt files until at most max remain.
func Prune(dir string, max int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= max {
		return
	}
	sort.Strings(names)
	for _, name := range names[:len(names)-max] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			slog.Warn("prune prompt file failed", "file", name, "error", err)
		}
	}
}
