package linee

import (
	"github.com/retrojit/m68k-arm-jit/hostbuf"
	"github.com/retrojit/m68k-arm-jit/m68k"
)

// rorW8Opcode reports the data register a ROR.W #8 (or ROL.W #8)
// register-form opcode targets, and its direction.
func rorW8Opcode(opcode uint16) (reg uint8, left bool, ok bool) {
	// 1110 000 d 01 0 11 reg: count field (bits 11-9) zero means 8,
	// i/r=0 (immediate), size=01 (word), type=11 (RO), d selects
	// direction.
	if opcode&0xFEF8 != 0xE058 {
		return 0, false, false
	}
	return uint8(opcode & 7), (opcode>>8)&1 == 1, true
}

func swapOpcode(opcode uint16) (reg uint8, ok bool) {
	if opcode&0xFFF8 != 0x4840 {
		return 0, false
	}
	return uint8(opcode & 7), true
}

// tryByteReversePeephole recognises ROR.W #8 / SWAP / ROR.W #8 (or the
// ROL variant) on the same register and, when matched, emits a single
// host byte-reverse instead of three rotate/swap translations.
func (c *Core) tryByteReversePeephole(buf *hostbuf.Buffer, opcode uint16, stream *m68k.Stream, updateMask m68k.CCRMask) (guestInsns int, matched bool, err error) {
	reg1, left1, ok1 := rorW8Opcode(opcode)
	if !ok1 {
		return 0, false, nil
	}
	if len(stream.Words) < 3 {
		return 0, false, nil
	}
	swapReg, ok2 := swapOpcode(stream.Words[1])
	if !ok2 || swapReg != reg1 {
		return 0, false, nil
	}
	reg3, left3, ok3 := rorW8Opcode(stream.Words[2])
	if !ok3 || reg3 != reg1 || left3 != left1 {
		return 0, false, nil
	}

	dh, err := c.Alloc.MapRead(m68k.D(reg1))
	if err != nil {
		return 0, false, err
	}
	buf.EmitAll(c.Backend.REV(dh.Reg, dh.Reg))
	c.Alloc.SetDirty(m68k.D(reg1))
	c.PC.AdvancePC(buf, 6)

	if mask := updateMask &^ m68k.FlagX; mask != 0 {
		c.clearMask(buf, mask)
		m := mask
		c.setFromNZ(buf, dh.Reg, m68k.Long, &m)
		// C is cleared and left cleared; X is unaffected by this idiom
		// (scenario 4), so neither is re-set here.
	}
	return 3, true, nil
}
