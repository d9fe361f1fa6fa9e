package linee

import "github.com/retrojit/m68k-arm-jit/m68k"

// TableSize is the dispatch table's entry count: one row per 12-bit
// line-E opcode suffix (opcode & 0x0FFF).
const TableSize = len(table)

// TableEntryInfo is the read-only view of one dispatch table row exposed
// to external tooling. The core itself never uses it; emit_line_e reads
// table directly.
type TableEntryInfo struct {
	Implemented bool
	Needs       m68k.CCRMask
	Sets        m68k.CCRMask
}

// Inspect reports the dispatch table row at index (opcode & 0x0FFF),
// for tools/dispatchlint to audit table coverage without reaching into
// package-private state.
func Inspect(index uint16) TableEntryInfo {
	e := table[index&0x0FFF]
	return TableEntryInfo{
		Implemented: e.emit != nil,
		Needs:       e.needs,
		Sets:        e.sets,
	}
}
