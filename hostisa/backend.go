// Package hostisa is the host-ISA encoder library: pure functions, each
// returning one or more 32-bit host instruction words. The line-E core
// is written once against the Backend interface; AArch64 (preferred)
// and ARM32 (fallback) each implement it, replacing the nested
// __aarch64__ preprocessor branches the original translator used to
// pick between host encodings (see DESIGN.md, REDESIGN FLAGS).
package hostisa

import (
	"github.com/retrojit/m68k-arm-jit/m68k"
	"github.com/retrojit/m68k-arm-jit/regalloc"
)

// Cond is a host condition code. Numbering matches the ARM/AArch64
// 4-bit condition field, so the same values drive CSET/CSEL on both
// backends.
type Cond uint8

const (
	CondEQ Cond = iota
	CondNE
	CondCS
	CondCC
	CondMI
	CondPL
	CondVS
	CondVC
	CondHI
	CondLS
	CondGE
	CondLT
	CondGT
	CondLE
	CondAL
	CondNV
)

// ShiftKind is a host shift/rotate operation.
type ShiftKind uint8

const (
	LSL ShiftKind = iota
	LSR
	ASR
	ROR
)

// Width selects the operand width an instruction operates on. The core
// works in terms of the guest's byte/word/long sizes; backends map that
// onto their own native register widths (AArch64 32- vs 64-bit Wn/Xn
// forms; ARM32 is always 32-bit).
type Width uint8

const (
	W32 Width = 32
	W64 Width = 64
)

// AddrMode selects how a memory operand's address is formed.
type AddrMode uint8

const (
	// AddrOffset: address = base + offset, base unchanged (plain [Rn, #off]).
	AddrOffset AddrMode = iota
	// AddrPreIndex: address = base + offset, base updated to address.
	AddrPreIndex
	// AddrPostIndex: address = base, base updated to base + offset.
	AddrPostIndex
)

// Backend is the set of host code generation primitives the line-E
// emitters are written against. Every method is a pure function of its
// operands: no method reads or retains buffer state.
type Backend interface {
	// Data movement.
	MOVReg(dst, src regalloc.HostReg) []uint32
	MOVImm(dst regalloc.HostReg, imm uint64) []uint32
	SignExtend(dst, src regalloc.HostReg, from m68k.Size) []uint32
	ZeroExtend(dst, src regalloc.HostReg, from m68k.Size) []uint32

	// Bitwise / arithmetic, register and immediate forms. setFlags
	// requests the host flag-setting variant (ANDS/ADDS/... ) so a
	// later CSET/branch can read N/Z/C/V off the real host flags.
	AND(dst, a, b regalloc.HostReg, setFlags bool) []uint32
	ANDImm(dst, a regalloc.HostReg, imm uint32, setFlags bool) []uint32
	ORR(dst, a, b regalloc.HostReg) []uint32
	ORRImm(dst, a regalloc.HostReg, imm uint32) []uint32
	EOR(dst, a, b regalloc.HostReg) []uint32
	EORImm(dst, a regalloc.HostReg, imm uint32) []uint32
	BIC(dst, a, b regalloc.HostReg) []uint32
	ADDImm(dst, a regalloc.HostReg, imm uint32) []uint32
	SUBImm(dst, a regalloc.HostReg, imm uint32) []uint32
	ADD(dst, a, b regalloc.HostReg) []uint32
	SUB(dst, a, b regalloc.HostReg) []uint32

	// Shifts and rotates, immediate and register-count forms.
	ShiftImm(dst, src regalloc.HostReg, kind ShiftKind, amount uint, setFlags bool) []uint32
	ShiftReg(dst, src, amountReg regalloc.HostReg, kind ShiftKind, setFlags bool) []uint32

	// Comparisons / bit tests. All set host flags only; they never
	// write a result register.
	CMPImm(a regalloc.HostReg, imm uint32) []uint32
	CMPReg(a, b regalloc.HostReg) []uint32
	TSTImm(a regalloc.HostReg, imm uint32) []uint32
	TestBit(a regalloc.HostReg, bit uint) []uint32

	// CSET materializes a host condition as 0/1 in dst.
	CSET(dst regalloc.HostReg, cond Cond) []uint32

	// Bit-field operations (AArch64 has direct instructions; ARM32
	// synthesizes each from shift+mask sequences).
	UBFX(dst, src regalloc.HostReg, lsb, width uint) []uint32
	SBFX(dst, src regalloc.HostReg, lsb, width uint) []uint32
	BFI(dst, src regalloc.HostReg, lsb, width uint) []uint32

	// Counting / reversing.
	CLZ(dst, src regalloc.HostReg) []uint32
	REV(dst, src regalloc.HostReg) []uint32   // 32-bit byte reverse
	REV16(dst, src regalloc.HostReg) []uint32 // 16-bit byte reverse within each halfword

	// Memory. size is in bytes (1, 2, 4, or 8 for the bit-field
	// straddling load/store).
	LDR(dst, base regalloc.HostReg, offset int32, size int, mode AddrMode) []uint32
	STR(src, base regalloc.HostReg, offset int32, size int, mode AddrMode) []uint32

	// Control flow / traps.
	BranchStub(target uint32) []uint32
	Trap(vector uint32) []uint32
}
