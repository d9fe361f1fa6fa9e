package hostisa

import (
	"github.com/retrojit/m68k-arm-jit/m68k"
	"github.com/retrojit/m68k-arm-jit/regalloc"
)

// AArch64 is the preferred host backend. Every method returns a fixed,
// small sequence of A64 instruction words for its operation; all guest
// operands here are at most 32 bits wide, so every encoding below uses
// the 32-bit (Wn/Wd, sf=0) instruction forms.
type AArch64 struct{}

const zr = 31 // the zero register, used where an instruction discards its result (CMP, TST, CSET)

func r(h regalloc.HostReg) uint32 { return uint32(h) & 0x1F }

// encodeLogicalImm32 searches for a (run length, rotation) pair whose
// rotated run of 1-bits equals value, the same brute-force approach the
// ARM32 backend uses for its rotated 8-bit immediates (see
// encodeRotatedImm), specialized to AArch64's 32-bit bitmask immediate
// form (N=0, 6-bit immr/imms).
func encodeLogicalImm32(value uint32) (immr, imms uint32, ok bool) {
	if value == 0 || value == 0xFFFFFFFF {
		return 0, 0, false // not representable; caller must fall back
	}
	for run := uint32(1); run <= 31; run++ {
		pattern := uint32(1)<<run - 1
		for rot := uint32(0); rot < 32; rot++ {
			rotated := (pattern >> rot) | (pattern << (32 - rot) & 0xFFFFFFFF)
			if rotated == value {
				return (32 - rot) % 32, run - 1, true
			}
		}
	}
	return 0, 0, false
}

func logicalImm(opc uint32, dst, src regalloc.HostReg, imm uint32) []uint32 {
	if immr, imms, ok := encodeLogicalImm32(imm); ok {
		return []uint32{(opc << 29) | (0b100100 << 23) | (immr << 16) | (imms << 10) | (r(src) << 5) | r(dst)}
	}
	const scratch = 17 // IP0, conventionally free in an AArch64 JIT's host leaf sequences
	words := movImm64(scratch, imm)
	return append(words, logicalReg(opc, dst, src, regalloc.HostReg(scratch))...)
}

func logicalReg(opc uint32, dst, a, b regalloc.HostReg) []uint32 {
	return []uint32{(opc << 29) | (0b01010 << 24) | (r(b) << 16) | (r(a) << 5) | r(dst)}
}

func movImm64(dst uint32, imm uint32) []uint32 {
	lo := imm & 0xFFFF
	hi := (imm >> 16) & 0xFFFF
	if hi == 0 {
		return []uint32{(0b10 << 29) | (0b100101 << 23) | (lo << 5) | dst}
	}
	movz := (uint32(0b10) << 29) | (0b100101 << 23) | (lo << 5) | dst
	movk := (uint32(0b11) << 29) | (0b100101 << 23) | (1 << 21) | (hi << 5) | dst
	return []uint32{movz, movk}
}

func (AArch64) MOVReg(dst, src regalloc.HostReg) []uint32 {
	// ORR Wd, WZR, Wm
	return logicalReg(0b01, dst, zr, src)
}

func (AArch64) MOVImm(dst regalloc.HostReg, imm uint64) []uint32 {
	return movImm64(r(dst), uint32(imm))
}

func (AArch64) SignExtend(dst, src regalloc.HostReg, from m68k.Size) []uint32 {
	// SBFM Wd, Wn, #0, #(width-1): SXTB/SXTH aliases.
	width := uint32(7)
	if from == m68k.Word {
		width = 15
	}
	return []uint32{(0b00 << 29) | (0b100110 << 23) | (0 << 16) | (width << 10) | (r(src) << 5) | r(dst)}
}

func (AArch64) ZeroExtend(dst, src regalloc.HostReg, from m68k.Size) []uint32 {
	width := uint32(7)
	if from == m68k.Word {
		width = 15
	}
	return []uint32{(0b10 << 29) | (0b100110 << 23) | (0 << 16) | (width << 10) | (r(src) << 5) | r(dst)}
}

func (AArch64) AND(dst, a, b regalloc.HostReg, setFlags bool) []uint32 {
	opc := uint32(0b00)
	if setFlags {
		opc = 0b11
	}
	return logicalReg(opc, dst, a, b)
}

func (AArch64) ANDImm(dst, a regalloc.HostReg, imm uint32, setFlags bool) []uint32 {
	opc := uint32(0b00)
	if setFlags {
		opc = 0b11
	}
	return logicalImm(opc, dst, a, imm)
}

func (AArch64) ORR(dst, a, b regalloc.HostReg) []uint32 { return logicalReg(0b01, dst, a, b) }
func (AArch64) ORRImm(dst, a regalloc.HostReg, imm uint32) []uint32 {
	return logicalImm(0b01, dst, a, imm)
}

func (AArch64) EOR(dst, a, b regalloc.HostReg) []uint32 { return logicalReg(0b10, dst, a, b) }
func (AArch64) EORImm(dst, a regalloc.HostReg, imm uint32) []uint32 {
	return logicalImm(0b10, dst, a, imm)
}

func (AArch64) BIC(dst, a, b regalloc.HostReg) []uint32 {
	// AND (shifted register) with the invert bit (N=1 in bit 21) set.
	word := logicalReg(0b00, dst, a, b)[0] | (1 << 21)
	return []uint32{word}
}

func addSubImm(op, s uint32, dst, a regalloc.HostReg, imm uint32) []uint32 {
	if imm <= 0xFFF {
		return []uint32{(op << 30) | (s << 29) | (0b100010 << 23) | (imm << 10) | (r(a) << 5) | r(dst)}
	}
	if imm&0xFFF == 0 && imm>>12 <= 0xFFF {
		return []uint32{(op << 30) | (s << 29) | (0b100010 << 23) | (1 << 22) | ((imm >> 12) << 10) | (r(a) << 5) | r(dst)}
	}
	const scratch = 17
	words := movImm64(scratch, imm)
	addSubShift := uint32(0b01011)
	if op == 1 {
		addSubShift = 0b01011
	}
	return append(words, (op<<30)|(s<<29)|(addSubShift<<24)|(scratch<<16)|(r(a)<<5)|r(dst))
}

func (AArch64) ADDImm(dst, a regalloc.HostReg, imm uint32) []uint32 { return addSubImm(0, 0, dst, a, imm) }
func (AArch64) SUBImm(dst, a regalloc.HostReg, imm uint32) []uint32 { return addSubImm(1, 0, dst, a, imm) }

func addSubReg(op uint32, dst, a, b regalloc.HostReg) []uint32 {
	return []uint32{(op << 30) | (0b01011 << 24) | (r(b) << 16) | (r(a) << 5) | r(dst)}
}

func (AArch64) ADD(dst, a, b regalloc.HostReg) []uint32 { return addSubReg(0, dst, a, b) }
func (AArch64) SUB(dst, a, b regalloc.HostReg) []uint32 { return addSubReg(1, dst, a, b) }

// ShiftImm maps a shift kind to the UBFM/SBFM/EXTR encoding used to
// realize it as an immediate shift, per the standard LSL/LSR/ASR/ROR
// aliases of the AArch64 bitfield instruction class.
func (b AArch64) ShiftImm(dst, src regalloc.HostReg, kind ShiftKind, amount uint, setFlags bool) []uint32 {
	a := uint32(amount) & 31
	switch kind {
	case LSL:
		immr := (32 - a) % 32
		imms := 31 - a
		return []uint32{(0b10 << 29) | (0b100110 << 23) | (immr << 16) | (imms << 10) | (r(src) << 5) | r(dst)}
	case LSR:
		return []uint32{(0b10 << 29) | (0b100110 << 23) | (a << 16) | (31 << 10) | (r(src) << 5) | r(dst)}
	case ASR:
		return []uint32{(0b00 << 29) | (0b100110 << 23) | (a << 16) | (31 << 10) | (r(src) << 5) | r(dst)}
	case ROR:
		// EXTR Wd, Wn, Wn, #amount
		return []uint32{(0b00 << 29) | (0b100111 << 23) | (r(src) << 16) | (a << 10) | (r(src) << 5) | r(dst)}
	}
	return nil
}

func (AArch64) ShiftReg(dst, src, amountReg regalloc.HostReg, kind ShiftKind, setFlags bool) []uint32 {
	var opcode uint32
	switch kind {
	case LSL:
		opcode = 0b001000
	case LSR:
		opcode = 0b001001
	case ASR:
		opcode = 0b001010
	case ROR:
		opcode = 0b001011
	}
	return []uint32{(0b0 << 30) | (0b11010110 << 21) | (r(amountReg) << 16) | (opcode << 10) | (r(src) << 5) | r(dst)}
}

func (AArch64) CMPImm(a regalloc.HostReg, imm uint32) []uint32 {
	return addSubImm(1, 1, regalloc.HostReg(zr), a, imm)
}

func (AArch64) CMPReg(a, b regalloc.HostReg) []uint32 {
	// SUBS WZR, Wa, Wb
	return []uint32{(1 << 30) | (1 << 29) | (0b01011 << 24) | (r(b) << 16) | (r(a) << 5) | zr}
}

func (AArch64) TSTImm(a regalloc.HostReg, imm uint32) []uint32 {
	return logicalImm(0b11, regalloc.HostReg(zr), a, imm)
}

func (b AArch64) TestBit(a regalloc.HostReg, bit uint) []uint32 {
	return b.TSTImm(a, 1<<bit)
}

func (AArch64) CSET(dst regalloc.HostReg, cond Cond) []uint32 {
	// CSINC Wd, WZR, WZR, invert(cond)
	inv := uint32(cond) ^ 1
	return []uint32{(0 << 30) | (0 << 29) | (0b11010100 << 21) | (zr << 16) | (inv << 12) | (0b01 << 10) | (zr << 5) | r(dst)}
}

func (AArch64) UBFX(dst, src regalloc.HostReg, lsb, width uint) []uint32 {
	immr := uint32(lsb) & 31
	imms := uint32(lsb+width-1) & 31
	return []uint32{(0b10 << 29) | (0b100110 << 23) | (immr << 16) | (imms << 10) | (r(src) << 5) | r(dst)}
}

func (AArch64) SBFX(dst, src regalloc.HostReg, lsb, width uint) []uint32 {
	immr := uint32(lsb) & 31
	imms := uint32(lsb+width-1) & 31
	return []uint32{(0b00 << 29) | (0b100110 << 23) | (immr << 16) | (imms << 10) | (r(src) << 5) | r(dst)}
}

func (AArch64) BFI(dst, src regalloc.HostReg, lsb, width uint) []uint32 {
	// BFM Wd, Wn, #immr, #imms realizing BFI Wd, Wn, #lsb, #width.
	immr := uint32((32 - lsb) % 32)
	imms := uint32(width - 1)
	return []uint32{(0b01 << 29) | (0b100110 << 23) | (immr << 16) | (imms << 10) | (r(src) << 5) | r(dst)}
}

func (AArch64) CLZ(dst, src regalloc.HostReg) []uint32 {
	return []uint32{(0 << 30) | (1 << 29) | (0b11010110 << 21) | (0b000100 << 10) | (r(src) << 5) | r(dst)}
}

func (AArch64) REV(dst, src regalloc.HostReg) []uint32 {
	return []uint32{(0 << 30) | (1 << 29) | (0b11010110 << 21) | (0b000010 << 10) | (r(src) << 5) | r(dst)}
}

func (AArch64) REV16(dst, src regalloc.HostReg) []uint32 {
	return []uint32{(0 << 30) | (1 << 29) | (0b11010110 << 21) | (0b000001 << 10) | (r(src) << 5) | r(dst)}
}

func ldstImm(opc, size uint32, t, base regalloc.HostReg, offset int32, mode AddrMode) uint32 {
	switch mode {
	case AddrOffset:
		imm := uint32(offset) & 0xFFF
		return (size << 30) | (0b111001 << 24) | (opc << 22) | (imm << 10) | (r(base) << 5) | r(t)
	default:
		idx := uint32(0b01) // post-index
		if mode == AddrPreIndex {
			idx = 0b11
		}
		imm9 := uint32(offset) & 0x1FF
		return (size << 30) | (0b111000 << 24) | (opc << 22) | (imm9 << 12) | (idx << 10) | (1 << 10) | (r(base) << 5) | r(t)
	}
}

func (AArch64) LDR(dst, base regalloc.HostReg, offset int32, size int, mode AddrMode) []uint32 {
	switch size {
	case 1:
		return []uint32{ldstImm(0b01, 0b00, dst, base, offset, mode)}
	case 2:
		return []uint32{ldstImm(0b01, 0b01, dst, base, offset, mode)}
	case 4:
		return []uint32{ldstImm(0b01, 0b10, dst, base, offset, mode)}
	default: // 8: bit-field memory forms, loaded as a 64-bit X register
		return []uint32{ldstImm(0b01, 0b11, dst, base, offset, mode)}
	}
}

func (AArch64) STR(src, base regalloc.HostReg, offset int32, size int, mode AddrMode) []uint32 {
	switch size {
	case 1:
		return []uint32{ldstImm(0b00, 0b00, src, base, offset, mode)}
	case 2:
		return []uint32{ldstImm(0b00, 0b01, src, base, offset, mode)}
	case 4:
		return []uint32{ldstImm(0b00, 0b10, src, base, offset, mode)}
	default:
		return []uint32{ldstImm(0b00, 0b11, src, base, offset, mode)}
	}
}

func (AArch64) BranchStub(target uint32) []uint32 {
	imm26 := (target >> 2) & 0x3FFFFFF
	return []uint32{(0b000101 << 26) | imm26}
}

func (AArch64) Trap(vector uint32) []uint32 {
	// BRK #vector
	return []uint32{(0b11010100 << 24) | (0b001 << 21) | ((vector & 0xFFFF) << 5)}
}
