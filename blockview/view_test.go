package blockview

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/retrojit/m68k-arm-jit/m68k"
)

func sampleTrace() BlockTrace {
	return BlockTrace{Entries: []Entry{
		{
			GuestPC:   0x1000,
			Opcode:    0xE348,
			HostWords: []uint32{0x1E201001, 0x11000B9D},
			Needs:     0,
			Sets:      m68k.FlagN | m68k.FlagZ | m68k.FlagV | m68k.FlagC,
		},
		{
			GuestPC:   0x1002,
			Opcode:    0xE8C0,
			HostWords: []uint32{0x52800000},
			Needs:     m68k.FlagX,
			Sets:      m68k.AllFlags,
		},
	}}
}

func TestNewViewPopulatesOpcodePanel(t *testing.T) {
	v := NewView(sampleTrace())

	text := v.OpcodeView.GetText(true)
	if !strings.Contains(text, "1000") || !strings.Contains(text, "e348") {
		t.Errorf("opcode panel missing expected content, got %q", text)
	}
	if !strings.Contains(text, "1002") || !strings.Contains(text, "e8c0") {
		t.Errorf("opcode panel missing second entry, got %q", text)
	}
}

func TestNewViewPopulatesHostWordsPanel(t *testing.T) {
	v := NewView(sampleTrace())

	text := v.HostView.GetText(true)
	if !strings.Contains(text, "1e201001") {
		t.Errorf("host words panel missing first word, got %q", text)
	}
	if !strings.Contains(text, "52800000") {
		t.Errorf("host words panel missing second entry's word, got %q", text)
	}
}

func TestNewViewPopulatesStatePanel(t *testing.T) {
	v := NewView(sampleTrace())

	text := v.StateView.GetText(true)
	if strings.Count(text, "needs=") != 2 {
		t.Errorf("state panel: got %q, want two needs= lines", text)
	}
}

func TestRefreshReflectsAnEmptyTrace(t *testing.T) {
	v := NewView(BlockTrace{})

	if got := v.OpcodeView.GetText(true); got != "" {
		t.Errorf("opcode panel: got %q for an empty trace, want empty", got)
	}
}

func TestSetScreenAcceptsASimulationScreen(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen.Init: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(80, 24)

	v := NewView(sampleTrace())
	v.SetScreen(screen)

	// Draw one frame without starting the blocking event loop, matching
	// the teacher's headless-TUI testing approach of driving a simulation
	// screen instead of a real terminal.
	v.App.SetRoot(v.Layout, true)
	v.App.Draw()
}

func TestLayoutHasOpcodeAndHostAndStatePanels(t *testing.T) {
	v := NewView(sampleTrace())
	if v.Layout == nil {
		t.Fatal("Layout is nil")
	}
	if v.Layout.GetItemCount() != 2 {
		t.Errorf("top-level layout: got %d items, want 2 (opcodes, right column)", v.Layout.GetItemCount())
	}
}
