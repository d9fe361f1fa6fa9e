package hostisa

import (
	"github.com/retrojit/m68k-arm-jit/m68k"
	"github.com/retrojit/m68k-arm-jit/regalloc"
)

// ARM32 is the fallback host backend: classic ARM data-processing,
// load/store and shift encodings, grounded directly on the teacher
// assembler's encoder package. It lacks AArch64's dedicated bit-field
// instructions (UBFX/SBFX/BFI), so those are synthesized from
// shift+mask sequences.
type ARM32 struct{}

func reg32(r regalloc.HostReg) uint32 { return uint32(r) & 0xF }

// encodeRotatedImm tries every even rotation, mirroring Encoder.encodeImmediate
// in the teacher's assembler.
func encodeRotatedImm(value uint32) (uint32, bool) {
	for rotate := uint32(0); rotate < 32; rotate += 2 {
		rotated := (value >> rotate) | (value << (32 - rotate))
		if rotated <= 0xFF {
			decodeRotate := (32 - rotate) % 32
			return ((decodeRotate / 2) << 8) | rotated, true
		}
	}
	return 0, false
}

func dp(opcode, sBit, rn, rd, operand2 uint32) uint32 {
	return (condAL << condShift) | (opcode << opcShift) | (sBit << sBitShift) | (rn << rnShift) | (rd << rdShift) | operand2
}

func dpImm(opcode, sBit, rn, rd uint32, imm uint32) []uint32 {
	enc, ok := encodeRotatedImm(imm)
	if ok {
		return []uint32{(condAL << condShift) | (1 << 25) | dp(opcode, sBit, rn, rd, enc)}
	}
	// Immediate doesn't fit in the rotated 8-bit form: materialize it
	// into a scratch register via MOV/ORR pairs and fall back to the
	// register form. Scratch register 12 (IP) is reserved for this.
	const ip = 12
	words := movImm32(ip, imm)
	return append(words, (condAL<<condShift)|dp(opcode, sBit, rn, rd, ip))
}

func movImm32(dst uint32, imm uint32) []uint32 {
	if enc, ok := encodeRotatedImm(imm); ok {
		return []uint32{(condAL << condShift) | (1 << 25) | dp(dpMOV, 0, 0, dst, enc)}
	}
	if enc, ok := encodeRotatedImm(^imm); ok {
		return []uint32{(condAL << condShift) | (1 << 25) | dp(dpMVN, 0, 0, dst, enc)}
	}
	// MOVW/MOVT pair (ARMv6T2+, acceptable for a JIT host target).
	lo := imm & 0xFFFF
	hi := (imm >> 16) & 0xFFFF
	movw := (condAL << condShift) | (0x30 << 20) | ((lo >> 12) << 16) | (dst << rdShift) | (lo & 0xFFF)
	movt := (condAL << condShift) | (0x34 << 20) | ((hi >> 12) << 16) | (dst << rdShift) | (hi & 0xFFF)
	return []uint32{movw, movt}
}

func (ARM32) MOVReg(dst, src regalloc.HostReg) []uint32 {
	return []uint32{dp(dpMOV, 0, 0, reg32(dst), reg32(src))}
}

func (ARM32) MOVImm(dst regalloc.HostReg, imm uint64) []uint32 {
	return movImm32(reg32(dst), uint32(imm))
}

func (ARM32) SignExtend(dst, src regalloc.HostReg, from m68k.Size) []uint32 {
	// SXTB/SXTH Rd, Rm (cond 0110101011111111dddd0000111rmmm style markers below).
	op := uint32(0x6AF)
	if from == m68k.Word {
		op = 0x6BF
	}
	return []uint32{(condAL << condShift) | (op << 16) | (reg32(dst) << rdShift) | (0x7 << 4) | reg32(src)}
}

func (ARM32) ZeroExtend(dst, src regalloc.HostReg, from m68k.Size) []uint32 {
	op := uint32(0x6EF)
	if from == m68k.Word {
		op = 0x6FF
	}
	return []uint32{(condAL << condShift) | (op << 16) | (reg32(dst) << rdShift) | (0x7 << 4) | reg32(src)}
}

func (ARM32) AND(dst, a, b regalloc.HostReg, setFlags bool) []uint32 {
	s := uint32(0)
	if setFlags {
		s = 1
	}
	return []uint32{dp(dpAND, s, reg32(a), reg32(dst), reg32(b))}
}

func (ARM32) ANDImm(dst, a regalloc.HostReg, imm uint32, setFlags bool) []uint32 {
	s := uint32(0)
	if setFlags {
		s = 1
	}
	return dpImm(dpAND, s, reg32(a), reg32(dst), imm)
}

func (ARM32) ORR(dst, a, b regalloc.HostReg) []uint32 {
	return []uint32{dp(dpORR, 0, reg32(a), reg32(dst), reg32(b))}
}

func (ARM32) ORRImm(dst, a regalloc.HostReg, imm uint32) []uint32 {
	return dpImm(dpORR, 0, reg32(a), reg32(dst), imm)
}

func (ARM32) EOR(dst, a, b regalloc.HostReg) []uint32 {
	return []uint32{dp(dpEOR, 0, reg32(a), reg32(dst), reg32(b))}
}

func (ARM32) EORImm(dst, a regalloc.HostReg, imm uint32) []uint32 {
	return dpImm(dpEOR, 0, reg32(a), reg32(dst), imm)
}

func (ARM32) BIC(dst, a, b regalloc.HostReg) []uint32 {
	return []uint32{dp(dpBIC, 0, reg32(a), reg32(dst), reg32(b))}
}

func (ARM32) ADDImm(dst, a regalloc.HostReg, imm uint32) []uint32 {
	return dpImm(dpADD, 0, reg32(a), reg32(dst), imm)
}

func (ARM32) SUBImm(dst, a regalloc.HostReg, imm uint32) []uint32 {
	return dpImm(dpSUB, 0, reg32(a), reg32(dst), imm)
}

func (ARM32) ADD(dst, a, b regalloc.HostReg) []uint32 {
	return []uint32{dp(dpADD, 0, reg32(a), reg32(dst), reg32(b))}
}

func (ARM32) SUB(dst, a, b regalloc.HostReg) []uint32 {
	return []uint32{dp(dpSUB, 0, reg32(a), reg32(dst), reg32(b))}
}

func shiftTypeBits(kind ShiftKind) uint32 { return uint32(kind) }

func (ARM32) ShiftImm(dst, src regalloc.HostReg, kind ShiftKind, amount uint, setFlags bool) []uint32 {
	s := uint32(0)
	if setFlags {
		s = 1
	}
	operand2 := (uint32(amount&0x1F) << 7) | (shiftTypeBits(kind) << 5) | reg32(src)
	return []uint32{dp(dpMOV, s, 0, reg32(dst), operand2)}
}

func (ARM32) ShiftReg(dst, src, amountReg regalloc.HostReg, kind ShiftKind, setFlags bool) []uint32 {
	s := uint32(0)
	if setFlags {
		s = 1
	}
	operand2 := (reg32(amountReg) << 8) | (shiftTypeBits(kind) << 5) | (1 << 4) | reg32(src)
	return []uint32{dp(dpMOV, s, 0, reg32(dst), operand2)}
}

func (ARM32) CMPImm(a regalloc.HostReg, imm uint32) []uint32 {
	return dpImm(dpCMP, 1, reg32(a), 0, imm)
}

func (ARM32) CMPReg(a, b regalloc.HostReg) []uint32 {
	return []uint32{dp(dpCMP, 1, reg32(a), 0, reg32(b))}
}

func (ARM32) TSTImm(a regalloc.HostReg, imm uint32) []uint32 {
	return dpImm(dpTST, 1, reg32(a), 0, imm)
}

func (b ARM32) TestBit(a regalloc.HostReg, bit uint) []uint32 {
	return b.TSTImm(a, 1<<bit)
}

func (ARM32) CSET(dst regalloc.HostReg, cond Cond) []uint32 {
	rd := reg32(dst)
	return []uint32{
		(condAL << condShift) | (1 << 25) | dp(dpMOV, 0, 0, rd, 0),
		(dp(dpMOV, 0, 0, rd, 1) &^ (0xF << condShift)) | (uint32(cond) << condShift) | (1 << 25),
	}
}

// UBFX/SBFX/BFI have no ARM32 (pre-v6T2) equivalent in this family, so
// they're synthesized from shift+mask. Each still returns one call's
// worth of host words; the caller doesn't need to know the difference.
func (b ARM32) UBFX(dst, src regalloc.HostReg, lsb, width uint) []uint32 {
	words := b.ShiftImm(dst, src, LSR, lsb, false)
	mask := uint32(1)<<width - 1
	return append(words, b.ANDImm(dst, dst, mask, false)...)
}

func (b ARM32) SBFX(dst, src regalloc.HostReg, lsb, width uint) []uint32 {
	// Shift field to bit 31, then arithmetic-shift back down: sign bit
	// of the field becomes the sign bit of the result.
	leftShift := 32 - width - lsb
	words := b.ShiftImm(dst, src, LSL, leftShift, false)
	return append(words, b.ShiftImm(dst, dst, ASR, 32-width, false)...)
}

func (b ARM32) BFI(dst, src regalloc.HostReg, lsb, width uint) []uint32 {
	mask := (uint32(1)<<width - 1) << lsb
	const ip = 12
	words := b.ANDImm(dst, dst, ^mask, false) // clear field in dst
	tmp := b.ShiftImm(regalloc.HostReg(ip), src, LSL, lsb, false)
	words = append(words, tmp...)
	words = append(words, b.ANDImm(regalloc.HostReg(ip), regalloc.HostReg(ip), mask, false)...)
	words = append(words, b.ORR(dst, dst, regalloc.HostReg(ip))...)
	return words
}

func (ARM32) CLZ(dst, src regalloc.HostReg) []uint32 {
	return []uint32{(condAL << condShift) | (0x16F << 16) | (reg32(dst) << rdShift) | 0xF10 | reg32(src)}
}

func (ARM32) REV(dst, src regalloc.HostReg) []uint32 {
	return []uint32{(condAL << condShift) | (0x6BF << 16) | (reg32(dst) << rdShift) | 0xF30 | reg32(src)}
}

func (ARM32) REV16(dst, src regalloc.HostReg) []uint32 {
	return []uint32{(condAL << condShift) | (0x6BF << 16) | (reg32(dst) << rdShift) | 0xFB0 | reg32(src)}
}

func memWord(l, b, rn, rd uint32, offset int32, mode AddrMode) uint32 {
	p := uint32(1)
	w := uint32(0)
	switch mode {
	case AddrPreIndex:
		p, w = 1, 1
	case AddrPostIndex:
		p, w = 0, 1
	}
	u := uint32(1)
	off := uint32(offset)
	if offset < 0 {
		u = 0
		off = uint32(-offset)
	}
	return (condAL << condShift) | (1 << 26) | (p << pBitShift) | (u << uBitShift) | (b << bBitShift) |
		(w << 21) | (l << lBitShift) | (rn << rnShift) | (rd << rdShift) | (off & 0xFFF)
}

func (ARM32) LDR(dst, base regalloc.HostReg, offset int32, size int, mode AddrMode) []uint32 {
	if size == 8 {
		// Synthesize a 64-bit load as two adjacent word loads (low,
		// high) into dst and dst+1, matching ARM32 LDRD register pairing.
		return []uint32{
			memWord(1, 0, reg32(base), reg32(dst), offset, AddrOffset),
			memWord(1, 0, reg32(base), reg32(dst)+1, offset+4, AddrOffset),
		}
	}
	b := uint32(0)
	if size == 1 {
		b = 1
	}
	return []uint32{memWord(1, b, reg32(base), reg32(dst), offset, mode)}
}

func (ARM32) STR(src, base regalloc.HostReg, offset int32, size int, mode AddrMode) []uint32 {
	if size == 8 {
		return []uint32{
			memWord(0, 0, reg32(base), reg32(src), offset, AddrOffset),
			memWord(0, 0, reg32(base), reg32(src)+1, offset+4, AddrOffset),
		}
	}
	b := uint32(0)
	if size == 1 {
		b = 1
	}
	return []uint32{memWord(0, b, reg32(base), reg32(src), offset, mode)}
}

func (ARM32) BranchStub(target uint32) []uint32 {
	// B target (24-bit word-aligned PC-relative offset), sign-extended.
	offset := (int32(target) >> 2) & 0xFFFFFF
	return []uint32{(condAL << condShift) | (0x5 << 25) | uint32(offset)}
}

func (ARM32) Trap(vector uint32) []uint32 {
	// UDF #vector — permanently-undefined encoding, used as the
	// exception-block sentinel word.
	imm := vector & 0xFFFF
	return []uint32{0xE7F000F0 | ((imm & 0xFFF0) << 4) | (imm & 0xF)}
}
