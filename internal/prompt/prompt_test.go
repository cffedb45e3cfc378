package prompt

import (
	"testing"
	"time"
)

func TestModeLabels(t *testing.T) {
	if ModeInteractive.Label() != "interactive" {
		t.Errorf("interactive label = %q", ModeInteractive.Label())
	}
	if ModeOneShot.Label() != "one-shot" {
		t.Errorf("one-shot label = %q", ModeOneShot.Label())
	}
	if ModeOneShot.StorageLabel() != "one_shot" {
		t.Errorf("one-shot storage label = %q", ModeOneShot.StorageLabel())
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
	}{
		{"interactive", ModeInteractive},
		{"one-shot", ModeOneShot},
		{"one_shot", ModeOneShot},
		{"oneshot", ModeOneShot},
		{"", ModeInteractive},
		{"garbage", ModeInteractive},
	}
	for _, c := range cases {
		if got := ParseMode(c.in); got != c.want {
			t.Errorf("ParseMode(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestStatusStringRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusRunning, StatusIdle, StatusCompleted, StatusFailed} {
		if got := ParseStatus(s.String()); got != s {
			t.Errorf("ParseStatus(%q) = %v, want %v", s.String(), got, s)
		}
	}
	if ParseStatus("bogus") != StatusPending {
		t.Error("unknown status should parse as Pending")
	}
}

func TestStatusPredicates(t *testing.T) {
	if !StatusRunning.Active() || !StatusIdle.Active() {
		t.Error("running and idle should be active")
	}
	if StatusPending.Active() || StatusCompleted.Active() {
		t.Error("pending and completed should not be active")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("completed and failed should be terminal")
	}
	if StatusIdle.Terminal() {
		t.Error("idle is not terminal")
	}
}

func TestNewPromptDefaults(t *testing.T) {
	p := New(1, "hello", "", ModeInteractive)
	if p.ID != 1 || p.Text != "hello" || p.Status != StatusPending {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if p.UUID == "" {
		t.Error("new prompt must carry a uuid")
	}
	if p.Output != "" || p.Error != "" || p.Seen || p.Resume {
		t.Errorf("unexpected non-zero fields: %+v", p)
	}
	if p.ElapsedSecs() != nil {
		t.Error("elapsed should be nil before start")
	}
}

func TestUUIDsSortByCreation(t *testing.T) {
	a := New(1, "first", "", ModeInteractive)
	time.Sleep(2 * time.Millisecond)
	b := New(2, "second", "", ModeInteractive)
	if !(a.UUID < b.UUID) {
		t.Errorf("v7 uuids should sort by creation: %s >= %s", a.UUID, b.UUID)
	}
}

func TestElapsedSecs(t *testing.T) {
	p := New(1, "x", "", ModeOneShot)
	p.StartedAt = time.Now().Add(-2 * time.Second)
	got := p.ElapsedSecs()
	if got == nil || *got < 1.5 || *got > 10 {
		t.Errorf("elapsed while running = %v", got)
	}

	p.FinishedAt = p.StartedAt.Add(500 * time.Millisecond)
	got = p.ElapsedSecs()
	if got == nil || *got < 0.49 || *got > 0.51 {
		t.Errorf("elapsed after finish = %v, want 0.5", got)
	}
}
