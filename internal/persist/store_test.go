package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/abusi/clhorde/internal/prompt"
)

func newUUID(t *testing.T) string {
	t.Helper()
	u, err := uuid.NewV7()
	if err != nil {
		t.Fatal(err)
	}
	return u.String()
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	id := newUUID(t)
	rec := Record{
		Prompt:       "test prompt",
		Options:      Options{Mode: "interactive", Context: "/tmp", Worktree: true},
		State:        "completed",
		QueueRank:    1.5,
		SessionID:    "sess-123",
		WorktreePath: "/tmp/repo-wt-1",
		Tags:         []string{"a", "b"},
	}

	Save(dir, id, rec)

	loaded := LoadAll(dir)
	if len(loaded) != 1 {
		t.Fatalf("loaded %d records, want 1", len(loaded))
	}
	got := loaded[0]
	if got.UUID != id {
		t.Errorf("uuid = %q, want %q", got.UUID, id)
	}
	if got.Record.Prompt != rec.Prompt ||
		got.Record.Options != rec.Options ||
		got.Record.State != rec.State ||
		got.Record.QueueRank != rec.QueueRank ||
		got.Record.SessionID != rec.SessionID ||
		got.Record.WorktreePath != rec.WorktreePath {
		t.Errorf("record mismatch:\n got: %+v\nwant: %+v", got.Record, rec)
	}
	if len(got.Record.Tags) != 2 || got.Record.Tags[0] != "a" {
		t.Errorf("tags mismatch: %v", got.Record.Tags)
	}
}

func TestLoadEmptyDir(t *testing.T) {
	if got := LoadAll(t.TempDir()); len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestLoadNonexistentDir(t *testing.T) {
	if got := LoadAll(filepath.Join(t.TempDir(), "missing")); len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestLoadSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	Save(dir, newUUID(t), Record{Prompt: "good", Options: Options{Mode: "interactive"}, State: "completed"})
	os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644)

	loaded := LoadAll(dir)
	if len(loaded) != 1 {
		t.Fatalf("loaded %d records, want 1", len(loaded))
	}
	if loaded[0].Record.Prompt != "good" {
		t.Errorf("wrong record survived: %+v", loaded[0])
	}
}

func TestLoadSortsByUUID(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		Save(dir, newUUID(t), Record{Prompt: "p", Options: Options{Mode: "interactive"}, State: "completed", QueueRank: float64(i)})
		time.Sleep(2 * time.Millisecond)
	}
	loaded := LoadAll(dir)
	if len(loaded) != 3 {
		t.Fatalf("loaded %d, want 3", len(loaded))
	}
	for i := 1; i < len(loaded); i++ {
		if !(loaded[i-1].UUID < loaded[i].UUID) {
			t.Errorf("records not in uuid order: %q >= %q", loaded[i-1].UUID, loaded[i].UUID)
		}
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	id := newUUID(t)
	Save(dir, id, Record{Prompt: "to delete", Options: Options{Mode: "interactive"}, State: "completed"})
	if len(LoadAll(dir)) != 1 {
		t.Fatal("setup failed")
	}
	Delete(dir, id)
	if len(LoadAll(dir)) != 0 {
		t.Error("record still present after delete")
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	var ids []string
	for i := 0; i < 5; i++ {
		id := newUUID(t)
		ids = append(ids, id)
		Save(dir, id, Record{Prompt: "p", Options: Options{Mode: "interactive"}, State: "completed"})
		time.Sleep(2 * time.Millisecond)
	}

	Prune(dir, 3)

	remaining := LoadAll(dir)
	if len(remaining) != 3 {
		t.Fatalf("remaining %d, want 3", len(remaining))
	}
	for _, s := range remaining {
		if s.UUID == ids[0] || s.UUID == ids[1] {
			t.Errorf("oldest record %s survived prune", s.UUID)
		}
	}
}

func TestPruneNoopUnderLimit(t *testing.T) {
	dir := t.TempDir()
	Save(dir, newUUID(t), Record{Prompt: "only one", Options: Options{Mode: "interactive"}, State: "completed"})
	Prune(dir, 10)
	if len(LoadAll(dir)) != 1 {
		t.Error("prune under limit removed a record")
	}
}

func TestFromPromptStateMapping(t *testing.T) {
	p := prompt.New(1, "hello", "/tmp", prompt.ModeInteractive)
	rec := FromPrompt(p)
	if rec.Prompt != "hello" || rec.Options.Mode != "interactive" || rec.Options.Context != "/tmp" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.State != "pending" {
		t.Errorf("state = %q, want pending", rec.State)
	}

	// Idle has no on-disk representation; it collapses to running.
	p.Status = prompt.StatusIdle
	if got := FromPrompt(p).State; got != "running" {
		t.Errorf("idle persisted as %q, want running", got)
	}

	p.Status = prompt.StatusFailed
	if got := FromPrompt(p).State; got != "failed" {
		t.Errorf("failed persisted as %q", got)
	}

	p.Mode = prompt.ModeOneShot
	if got := FromPrompt(p).Options.Mode; got != "one_shot" {
		t.Errorf("one-shot persisted as %q, want one_shot", got)
	}
}

func TestUUIDFilesAreUnique(t *testing.T) {
	dir := t.TempDir()
	id := newUUID(t)
	Save(dir, id, Record{Prompt: "v1", Options: Options{Mode: "interactive"}, State: "pending"})
	Save(dir, id, Record{Prompt: "v2", Options: Options{Mode: "interactive"}, State: "completed"})

	loaded := LoadAll(dir)
	if len(loaded) != 1 {
		t.Fatalf("expected one file per uuid, got %d", len(loaded))
	}
	if loaded[0].Record.Prompt != "v2" {
		t.Error("second save did not overwrite")
	}
}
