// Package blockview renders one captured block trace in a terminal UI:
// the decoded line-E opcode stream, the emitted host instruction words,
// and the register-allocator/CCR state the dispatch table reported for
// each opcode. It is purely observational tooling; nothing in linee or
// its collaborators imports this package.
package blockview

import "github.com/retrojit/m68k-arm-jit/m68k"

// Entry is one translated guest instruction's record within a block
// trace: the glossary's (guestPC, hostWords, needs, sets) tuple.
type Entry struct {
	GuestPC   uint32
	Opcode    uint16
	HostWords []uint32
	Needs     m68k.CCRMask
	Sets      m68k.CCRMask
}

// BlockTrace is a recorded sequence of Entry values captured during one
// run of emit_line_e over a basic block.
type BlockTrace struct {
	Entries []Entry
}
