package blockview

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// View is the block inspector TUI: one translated block at a time,
// decoded opcodes on the left, emitted host words and flag state on the
// right. Grounded on the teacher's debugger.TUI layout/panel structure.
type View struct {
	App    *tview.Application
	Layout *tview.Flex

	OpcodeView *tview.TextView
	HostView   *tview.TextView
	StateView  *tview.TextView

	trace BlockTrace
}

// NewView builds a View over trace and populates every panel.
func NewView(trace BlockTrace) *View {
	v := &View{
		App:   tview.NewApplication(),
		trace: trace,
	}
	v.initializeViews()
	v.buildLayout()
	v.Refresh()
	return v
}

func (v *View) initializeViews() {
	v.OpcodeView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	v.OpcodeView.SetBorder(true).SetTitle(" Opcodes ")

	v.HostView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	v.HostView.SetBorder(true).SetTitle(" Host Words ")

	v.StateView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	v.StateView.SetBorder(true).SetTitle(" CCR / Alloc State ")
}

func (v *View) buildLayout() {
	right := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.HostView, 0, 2, false).
		AddItem(v.StateView, 0, 1, false)

	v.Layout = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(v.OpcodeView, 0, 1, false).
		AddItem(right, 0, 1, false)
}

// Refresh re-renders every panel from the current trace.
func (v *View) Refresh() {
	var opcodes, hostWords, state strings.Builder
	for i, e := range v.trace.Entries {
		fmt.Fprintf(&opcodes, "%04d  PC=%#08x  opcode=%#04x\n", i, e.GuestPC, e.Opcode)
		fmt.Fprintf(&hostWords, "%04d  ", i)
		for _, w := range e.HostWords {
			fmt.Fprintf(&hostWords, "%08x ", w)
		}
		hostWords.WriteByte('\n')
		fmt.Fprintf(&state, "%04d  needs=%-5s sets=%-5s\n", i, e.Needs, e.Sets)
	}
	v.OpcodeView.SetText(opcodes.String())
	v.HostView.SetText(hostWords.String())
	v.StateView.SetText(state.String())
}

// SetScreen installs a tcell screen (a simulation screen in tests, the
// real terminal otherwise) before Run.
func (v *View) SetScreen(screen tcell.Screen) {
	v.App.SetScreen(screen)
}

// Run opens the block inspector and blocks until the user quits (Ctrl-C).
func (v *View) Run() error {
	v.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			v.App.Stop()
			return nil
		}
		return event
	})
	return v.App.SetRoot(v.Layout, true).Run()
}

// Run opens a View over trace. Convenience wrapper matching the
// developer-facing entrypoint named in SPEC_FULL.md.
func Run(trace BlockTrace) error {
	return NewView(trace).Run()
}
