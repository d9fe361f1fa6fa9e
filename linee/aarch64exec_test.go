package linee

import (
	"fmt"
	"math/bits"

	"github.com/retrojit/m68k-arm-jit/hostisa"
)

// aarch64Exec is a tiny interpreter for the fixed subset of A64 encodings
// this package's emitters ever produce (no branches, no wide/64-bit
// registers, no loads or stores): exactly the instruction classes built
// by hostisa.AArch64's own encoder functions. It exists so a test can
// actually run an emitted sequence and compare the resulting register
// state to m68ksim's interpretation, rather than only pattern-matching
// the instruction words (§8's execute-and-compare property).
type aarch64Exec struct {
	regs       [32]uint32
	n, z, c, v bool
}

func (e *aarch64Exec) read(i uint32) uint32 {
	if i == 31 {
		return 0
	}
	return e.regs[i]
}

func (e *aarch64Exec) write(i uint32, val uint32) {
	if i != 31 {
		e.regs[i] = val
	}
}

func rotr32(x, rot uint32) uint32 {
	rot &= 31
	if rot == 0 {
		return x
	}
	return (x >> rot) | (x << (32 - rot))
}

// decodeLogicalImm reverses encodeLogicalImm32's search: immr is the
// rotation the encoder recorded and imms+1 is the run length of set
// bits before that rotation was applied.
func decodeLogicalImm(immr, imms uint32) uint32 {
	run := imms + 1
	pattern := uint32(1)<<run - 1
	rot := (32 - immr) % 32
	return rotr32(pattern, rot)
}

func conditionHolds(cond hostisa.Cond, n, z, c, v bool) bool {
	switch cond {
	case hostisa.CondEQ:
		return z
	case hostisa.CondNE:
		return !z
	case hostisa.CondCS:
		return c
	case hostisa.CondCC:
		return !c
	case hostisa.CondMI:
		return n
	case hostisa.CondPL:
		return !n
	case hostisa.CondVS:
		return v
	case hostisa.CondVC:
		return !v
	case hostisa.CondHI:
		return c && !z
	case hostisa.CondLS:
		return !(c && !z)
	case hostisa.CondGE:
		return n == v
	case hostisa.CondLT:
		return n != v
	case hostisa.CondGT:
		return !z && n == v
	case hostisa.CondLE:
		return !(!z && n == v)
	case hostisa.CondAL, hostisa.CondNV:
		return true
	}
	return false
}

// addSub implements ADD/SUB (and CMPImm/CMPReg as a SUB with setFlags)
// the way AArch64's ADDS/SUBS compute NZCV.
func (e *aarch64Exec) addSub(sub bool, rd uint32, a, b uint32, setFlags bool) {
	var result uint32
	var carry, overflow bool
	if sub {
		bc := ^b + 1 // two's-complement negation, so the same add logic below applies
		result = a + bc
		carry = a >= b // no borrow
		sa, sb := int32(a) >= 0, int32(b) >= 0
		sr := int32(result) >= 0
		overflow = (sa != sb) && (sr != sa)
	} else {
		wide := uint64(a) + uint64(b)
		result = uint32(wide)
		carry = wide > 0xFFFFFFFF
		sa, sb := int32(a) >= 0, int32(b) >= 0
		sr := int32(result) >= 0
		overflow = (sa == sb) && (sr != sa)
	}
	if setFlags {
		e.n = result&0x80000000 != 0
		e.z = result == 0
		e.c = carry
		e.v = overflow
	}
	e.write(rd, result)
}

// step decodes and executes one instruction word. It panics on any
// encoding outside the fixed subset the AArch64 backend emits, so a
// test using this interpreter fails loudly instead of silently
// skipping an instruction it doesn't understand.
func (e *aarch64Exec) step(word uint32) {
	switch {
	case word&(1<<31|0x1F<<24|0x3<<22|0x3F<<10) == 0b01010<<24:
		// logical (shifted register): AND/ORR/EOR/BIC, and MOVReg as
		// ORR Wd, WZR, Wm.
		opc := (word >> 29) & 0x3
		n := (word >> 21) & 1
		rm := (word >> 16) & 0x1F
		rn := (word >> 5) & 0x1F
		rd := word & 0x1F
		a, b := e.read(rn), e.read(rm)
		if n == 1 {
			b = ^b
		}
		var result uint32
		switch opc {
		case 0b00:
			result = a & b
		case 0b01:
			result = a | b
		case 0b10:
			result = a ^ b
		case 0b11:
			result = a & b
			e.n = result&0x80000000 != 0
			e.z = result == 0
			e.c = false
			e.v = false
		}
		e.write(rd, result)

	case word&(1<<31|0x3F<<23) == 0b100100<<23:
		// logical (immediate): AND/ORR/EOR/TST(ANDS).
		opc := (word >> 29) & 0x3
		immr := (word >> 16) & 0x3F
		imms := (word >> 10) & 0x3F
		rn := (word >> 5) & 0x1F
		rd := word & 0x1F
		imm := decodeLogicalImm(immr, imms)
		a := e.read(rn)
		var result uint32
		switch opc {
		case 0b00:
			result = a & imm
		case 0b01:
			result = a | imm
		case 0b10:
			result = a ^ imm
		case 0b11:
			result = a & imm
			e.n = result&0x80000000 != 0
			e.z = result == 0
			e.c = false
			e.v = false
		}
		e.write(rd, result)

	case word&(1<<31|0x3F<<23) == 0b100110<<23:
		// bitfield move: UBFM/SBFM (ShiftImm LSL/LSR/ASR, SignExtend,
		// ZeroExtend) and BFM (BFI).
		opc := (word >> 29) & 0x3
		immr := (word >> 16) & 0x3F
		imms := (word >> 10) & 0x3F
		rn := (word >> 5) & 0x1F
		rd := word & 0x1F
		src := e.read(rn)
		switch opc {
		case 0b00: // SBFM: ASR (imms==31) or SignExtend (imms==7 or 15)
			if imms == 31 {
				e.write(rd, uint32(int32(src)>>immr))
			} else {
				width := imms + 1
				val := src & (uint32(1)<<width - 1)
				if val&(1<<(width-1)) != 0 {
					val |= ^(uint32(1)<<width - 1)
				}
				e.write(rd, val)
			}
		case 0b01: // BFM: BFI Wd, Wn, #lsb, #width
			lsb := (32 - immr) % 32
			width := imms + 1
			fieldMask := (uint32(1)<<width - 1) << lsb
			dst := e.read(rd)
			inserted := (src & (uint32(1)<<width - 1)) << lsb
			e.write(rd, (dst&^fieldMask)|inserted)
		case 0b10: // UBFM: LSR (imms==31), ZeroExtend (immr==0, imms<31), or LSL
			if immr == 0 && imms != 31 {
				width := imms + 1
				e.write(rd, src&(uint32(1)<<width-1))
			} else if imms == 31 {
				e.write(rd, src>>immr)
			} else {
				amt := 31 - imms
				e.write(rd, src<<amt)
			}
		}

	case (word>>23)&0x1FF == 0b000100111:
		// EXTR Wd, Wn, Wm, #amount, used as ROR Wd, Wn, #amount (Wm==Wn).
		amt := (word >> 10) & 0x3F
		rn := (word >> 5) & 0x1F
		rd := word & 0x1F
		e.write(rd, rotr32(e.read(rn), amt))

	case word&(0x7<<29|0x3F<<23) == 0b010<<29|0x25<<23:
		// MOVZ
		hw := (word >> 21) & 0x3
		imm16 := (word >> 5) & 0xFFFF
		rd := word & 0x1F
		e.write(rd, imm16<<(16*hw))

	case word&(0x7<<29|0x3F<<23) == 0b011<<29|0x25<<23:
		// MOVK
		hw := (word >> 21) & 0x3
		imm16 := (word >> 5) & 0xFFFF
		rd := word & 0x1F
		cur := e.read(rd)
		shift := 16 * hw
		e.write(rd, (cur&^(uint32(0xFFFF)<<shift))|(imm16<<shift))

	case (word>>21)&0x7FF == 0b11010100 && (word>>16)&0x1F == 31 && (word>>10)&0x3 == 0b01 && (word>>5)&0x1F == 31:
		// CSET Wd, cond: CSINC Wd, WZR, WZR, invert(cond).
		inv := (word >> 12) & 0xF
		rd := word & 0x1F
		cond := hostisa.Cond(inv ^ 1)
		if conditionHolds(cond, e.n, e.z, e.c, e.v) {
			e.write(rd, 1)
		} else {
			e.write(rd, 0)
		}

	case (word>>21)&0x7FF == 0x1D6:
		// data-processing (1 source), bit29 set: CLZ / REV.
		op6 := (word >> 10) & 0x3F
		rn := (word >> 5) & 0x1F
		rd := word & 0x1F
		switch op6 {
		case 0b000100:
			e.write(rd, uint32(bits.LeadingZeros32(e.read(rn))))
		case 0b000010:
			e.write(rd, bits.ReverseBytes32(e.read(rn)))
		default:
			panic(fmt.Sprintf("aarch64Exec: unsupported data-processing op6 %#b in %#08x", op6, word))
		}

	case (word>>21)&0x7FF == 0xD6:
		// variable shift (2-source), bit29 clear: LSLV/LSRV/ASRV/RORV.
		opcode := (word >> 10) & 0x3F
		rm := (word >> 16) & 0x1F
		rn := (word >> 5) & 0x1F
		rd := word & 0x1F
		a, amt := e.read(rn), e.read(rm)&31
		var result uint32
		switch opcode {
		case 0b001000:
			result = a << amt
		case 0b001001:
			result = a >> amt
		case 0b001010:
			result = uint32(int32(a) >> amt)
		case 0b001011:
			result = rotr32(a, amt)
		}
		e.write(rd, result)

	case word&(1<<31|0x1F<<24|0x3<<22|0x3F<<10) == 0b01011<<24:
		// add/subtract (shifted register): ADD/SUB, and CMPReg as SUBS.
		op := (word >> 30) & 1
		s := (word >> 29) & 1
		rm := (word >> 16) & 0x1F
		rn := (word >> 5) & 0x1F
		rd := word & 0x1F
		e.addSub(op == 1, rd, e.read(rn), e.read(rm), s == 1)

	case word&(1<<31|0x3F<<23) == 0b100010<<23:
		// add/subtract (immediate): ADDImm/SUBImm, and CMPImm as SUBS.
		op := (word >> 30) & 1
		s := (word >> 29) & 1
		sh := (word >> 22) & 1
		imm12 := (word >> 10) & 0xFFF
		rn := (word >> 5) & 0x1F
		rd := word & 0x1F
		imm := imm12
		if sh == 1 {
			imm <<= 12
		}
		e.addSub(op == 1, rd, e.read(rn), imm, s == 1)

	default:
		panic(fmt.Sprintf("aarch64Exec: unrecognised instruction word %#08x", word))
	}
}

// runAArch64 executes every word in sequence against the given register
// file (index 31 is always the discarded zero register) and returns the
// resulting registers.
func runAArch64(regs [32]uint32, words []uint32) [32]uint32 {
	e := &aarch64Exec{regs: regs}
	for _, w := range words {
		e.step(w)
	}
	return e.regs
}
