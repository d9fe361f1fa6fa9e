package linee

import (
	"github.com/retrojit/m68k-arm-jit/hostbuf"
	"github.com/retrojit/m68k-arm-jit/hostisa"
	"github.com/retrojit/m68k-arm-jit/m68k"
)

// emitShiftMem implements the memory form of the shift/rotate group
// (§4.3): a single-position shift or rotate of one word in memory.
func emitShiftMem(c *Core, buf *hostbuf.Buffer, opcode uint16, stream *m68k.Stream, mask m68k.CCRMask) error {
	nibble := (opcode >> 8) & 0xF
	typ := shiftType((nibble >> 1) & 3)
	dirLeft := nibble&1 == 1
	eaMode := (opcode >> 3) & 7

	base, err := c.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	defer c.Alloc.Free(base)
	extWords, err := c.EA.LoadEA(buf, base.Reg, uint8(opcode&0x3F), stream)
	if err != nil {
		return err
	}

	loadMode, storeMode, loadOff, storeOff := hostisa.AddrOffset, hostisa.AddrOffset, int32(0), int32(0)
	switch eaMode {
	case 4: // -(An): predecrement, then use as address
		loadMode, loadOff = hostisa.AddrPreIndex, -2
	case 3: // (An)+: use as address, then postincrement
		storeMode, storeOff = hostisa.AddrPostIndex, 2
	}

	val, err := c.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	defer c.Alloc.Free(val)
	buf.EmitAll(c.Backend.LDR(val.Reg, base.Reg, loadOff, 2, loadMode))

	work, err := c.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	defer c.Alloc.Free(work)

	var carryCond hostisa.Cond
	origVal := val.Reg
	switch typ {
	case typeROx:
		c.duplicateLow(buf, work.Reg, val.Reg, m68k.Word)
		amt := uint(1)
		if dirLeft {
			amt = m68k.Word.Bits() - 1
		}
		buf.EmitAll(c.Backend.ShiftImm(work.Reg, work.Reg, hostisa.ROR, amt, false))
		if dirLeft {
			buf.EmitAll(c.Backend.TestBit(work.Reg, 0))
		} else {
			buf.EmitAll(c.Backend.TestBit(work.Reg, m68k.Word.Bits()-1))
		}
		carryCond = hostisa.CondNE
		buf.EmitAll(c.Backend.BFI(val.Reg, work.Reg, 0, m68k.Word.Bits()))

	case typeROXx:
		dummy := val
		carryCond = c.emitRotateExtended(buf, dummy, m68k.Word, dirLeft, true, 1, dummy, false)

	default: // typeASx, typeLSx
		signed := typ == typeASx
		if signed {
			buf.EmitAll(c.Backend.SignExtend(work.Reg, val.Reg, m68k.Word))
		} else {
			buf.EmitAll(c.Backend.ZeroExtend(work.Reg, val.Reg, m68k.Word))
		}
		kind := hostisa.LSL
		pos := uint(m68k.Word.Bits() - 1)
		if !dirLeft {
			if signed {
				kind = hostisa.ASR
			} else {
				kind = hostisa.LSR
			}
			pos = 0
		}
		if signed && dirLeft {
			// ASL's V is computed from the operand before the shift.
			orig, err := c.Alloc.AllocTemp()
			if err != nil {
				return err
			}
			defer c.Alloc.Free(orig)
			buf.EmitAll(c.Backend.MOVReg(orig.Reg, val.Reg))
			origVal = orig.Reg
		}
		buf.EmitAll(c.Backend.TestBit(work.Reg, pos))
		buf.EmitAll(c.Backend.ShiftImm(work.Reg, work.Reg, kind, 1, false))
		carryCond = hostisa.CondNE
		buf.EmitAll(c.Backend.BFI(val.Reg, work.Reg, 0, m68k.Word.Bits()))
	}

	buf.EmitAll(c.Backend.STR(val.Reg, base.Reg, storeOff, 2, storeMode))
	if eaMode == 3 || eaMode == 4 {
		// The writeback moved only the temporary base; copy it to An.
		anReg := m68k.A(uint8(opcode & 7))
		an, err := c.Alloc.MapRead(anReg)
		if err != nil {
			return err
		}
		buf.EmitAll(c.Backend.MOVReg(an.Reg, base.Reg))
		c.Alloc.SetDirty(anReg)
	}

	c.PC.AdvancePC(buf, 2*(1+extWords))

	if mask != 0 {
		c.clearMask(buf, mask)
		m := mask
		// C and X first: setFromNZ and the V compare replace the host
		// flags carryCond reads.
		c.setFromC(buf, carryCond, &m)
		if typ != typeROx {
			c.setFromX(buf, carryCond, &m)
		}
		c.setFromNZ(buf, val.Reg, m68k.Word, &m)
		if typ == typeASx && dirLeft {
			c.emitASLOverflow(buf, origVal, val.Reg, m68k.Word, true, 1, val, false, &m)
		}
	}
	return nil
}
