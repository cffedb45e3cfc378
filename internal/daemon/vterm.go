package daemon

import (
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/vt"
)

// VTerm wraps charmbracelet/x/vt behind a mutex. The PTY reader goroutine
// feeds it on every read; the orchestrator touches it only briefly, to
// resize while a worker runs and to extract the final screen after exit.
type VTerm struct {
	mu         sync.Mutex
	emu        *vt.Emulator
	cols, rows int
	closed     bool
}

// NewVTerm creates an emulator with the given grid dimensions.
func NewVTerm(cols, rows int) *VTerm {
	return &VTerm{
		emu:  vt.NewEmulator(cols, rows),
		cols: cols,
		rows: rows,
	}
}

// Write feeds PTY output to the emulator. Writes racing teardown (the
// reader's last read against a kill) are swallowed.
func (v *VTerm) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return len(p), nil
	}
	return v.emu.Write(p)
}

// Resize changes the grid dimensions.
func (v *VTerm) Resize(cols, rows int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.emu.Resize(cols, rows)
	v.cols = cols
	v.rows = rows
}

// Size returns the current grid dimensions.
func (v *VTerm) Size() (cols, rows int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cols, v.rows
}

// ExtractText renders the grid as plain text: styling stripped, each row
// right-trimmed, trailing empty rows dropped. This becomes the prompt's
// captured output once the child exits.
func (v *VTerm) ExtractText() string {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ""
	}
	rendered := v.emu.Render()
	v.mu.Unlock()

	rawLines := strings.Split(rendered, "\n")
	lines := make([]string, 0, len(rawLines))
	for _, line := range rawLines {
		line = ansi.Strip(strings.TrimSuffix(line, "\r"))
		lines = append(lines, strings.TrimRight(line, " \t"))
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// Close releases the emulator resources. Idempotent.
func (v *VTerm) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	return v.emu.Close()
}
