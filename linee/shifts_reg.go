package linee

import (
	"github.com/retrojit/m68k-arm-jit/hostbuf"
	"github.com/retrojit/m68k-arm-jit/hostisa"
	"github.com/retrojit/m68k-arm-jit/m68k"
	"github.com/retrojit/m68k-arm-jit/regalloc"
)

func sizeFromBits(bits uint16) m68k.Size {
	switch bits {
	case 0:
		return m68k.Byte
	case 1:
		return m68k.Word
	default:
		return m68k.Long
	}
}

// duplicateLow replicates the low size-width field of src across the
// full 32-bit register, so a single full-width host rotate realises the
// rotation of only the low byte/word (spec'd technique for ROL/ROR).
func (c *Core) duplicateLow(buf *hostbuf.Buffer, dst, src regalloc.HostReg, size m68k.Size) {
	switch size {
	case m68k.Byte:
		buf.EmitAll(c.Backend.ZeroExtend(dst, src, m68k.Byte))
		t, err := c.Alloc.AllocTemp()
		if err != nil {
			panic(err)
		}
		defer c.Alloc.Free(t)
		buf.EmitAll(c.Backend.ShiftImm(t.Reg, dst, hostisa.LSL, 8, false))
		buf.EmitAll(c.Backend.ORR(dst, dst, t.Reg))
		buf.EmitAll(c.Backend.ShiftImm(t.Reg, dst, hostisa.LSL, 16, false))
		buf.EmitAll(c.Backend.ORR(dst, dst, t.Reg))
	case m68k.Word:
		buf.EmitAll(c.Backend.ZeroExtend(dst, src, m68k.Word))
		t, err := c.Alloc.AllocTemp()
		if err != nil {
			panic(err)
		}
		defer c.Alloc.Free(t)
		buf.EmitAll(c.Backend.ShiftImm(t.Reg, dst, hostisa.LSL, 16, false))
		buf.EmitAll(c.Backend.ORR(dst, dst, t.Reg))
	default:
		buf.EmitAll(c.Backend.MOVReg(dst, src))
	}
}

// negMod computes (-count) mod (1<<widthBits) into dst, the rotate
// amount that turns a ROR into the equivalent ROL within a field of
// that width.
func (c *Core) negMod(buf *hostbuf.Buffer, dst, count regalloc.HostReg, widthBits uint) {
	buf.EmitAll(c.Backend.EORImm(dst, count, 0xFFFFFFFF))
	buf.EmitAll(c.Backend.ADDImm(dst, dst, 1))
	buf.EmitAll(c.Backend.ANDImm(dst, dst, uint32(widthBits-1), false))
}

// emitShiftReg implements the register form of ASL/ASR, LSL/LSR,
// ROXL/ROXR and ROL/ROR (§4.2).
func emitShiftReg(c *Core, buf *hostbuf.Buffer, opcode uint16, stream *m68k.Stream, mask m68k.CCRMask) error {
	dirLeft := (opcode>>8)&1 == 1
	size := sizeFromBits((opcode >> 6) & 3)
	immediate := (opcode>>5)&1 == 0
	typ := shiftType((opcode >> 3) & 3)
	destReg := m68k.D(uint8(opcode & 7))
	countField := uint8((opcode >> 9) & 7)

	dh, err := c.Alloc.MapRead(destReg)
	if err != nil {
		return err
	}

	orig, err := c.Alloc.Copy(destReg)
	if err != nil {
		return err
	}
	defer c.Alloc.Free(orig)
	buf.EmitAll(c.Backend.MOVReg(orig.Reg, dh.Reg))

	var immCount uint
	var countReg regalloc.Handle
	haveCountReg := false
	if immediate {
		immCount = uint(countField)
		if immCount == 0 {
			immCount = 8
		}
	} else {
		countReg, err = c.Alloc.MapRead(m68k.D(countField))
		if err != nil {
			return err
		}
		haveCountReg = true
	}

	var carryCond hostisa.Cond

	switch typ {
	case typeROx:
		work, err := c.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		defer c.Alloc.Free(work)
		c.duplicateLow(buf, work.Reg, dh.Reg, size)

		if immediate {
			amt := immCount % size.Bits()
			if dirLeft {
				amt = (size.Bits() - amt) % size.Bits()
			}
			buf.EmitAll(c.Backend.ShiftImm(work.Reg, work.Reg, hostisa.ROR, amt, false))
		} else {
			amtReg, err := c.Alloc.AllocTemp()
			if err != nil {
				return err
			}
			defer c.Alloc.Free(amtReg)
			buf.EmitAll(c.Backend.ANDImm(amtReg.Reg, countReg.Reg, uint32(size.Bits()-1), false))
			if dirLeft {
				c.negMod(buf, amtReg.Reg, amtReg.Reg, size.Bits())
			}
			buf.EmitAll(c.Backend.ShiftReg(work.Reg, work.Reg, amtReg.Reg, hostisa.ROR, false))
		}
		buf.EmitAll(c.Backend.BFI(dh.Reg, work.Reg, 0, size.Bits()))
		// The new carry is the bit that now occupies the boundary the
		// rotation crossed: bit 0 after a left rotate, bit (width-1)
		// after a right rotate.
		if dirLeft {
			buf.EmitAll(c.Backend.TestBit(work.Reg, 0))
		} else {
			buf.EmitAll(c.Backend.TestBit(work.Reg, size.Bits()-1))
		}
		carryCond = hostisa.CondNE

	case typeROXx:
		carryCond = c.emitRotateExtended(buf, dh, size, dirLeft, immediate, immCount, countReg, haveCountReg)

	default: // typeASx, typeLSx
		work, err := c.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		defer c.Alloc.Free(work)
		signed := typ == typeASx
		if size == m68k.Long {
			buf.EmitAll(c.Backend.MOVReg(work.Reg, dh.Reg))
		} else if signed {
			buf.EmitAll(c.Backend.SignExtend(work.Reg, dh.Reg, size))
		} else {
			buf.EmitAll(c.Backend.ZeroExtend(work.Reg, dh.Reg, size))
		}

		kind := hostisa.LSL
		if !dirLeft {
			if signed {
				kind = hostisa.ASR
			} else {
				kind = hostisa.LSR
			}
		}

		// Carry: the bit last shifted out, tested on the pre-shift,
		// width-extended operand.
		if immediate {
			pos := uint(0)
			if dirLeft {
				pos = size.Bits() - immCount
			} else {
				pos = immCount - 1
			}
			if pos < 32 {
				buf.EmitAll(c.Backend.TestBit(work.Reg, pos))
			}
			buf.EmitAll(c.Backend.ShiftImm(work.Reg, work.Reg, kind, immCount, false))
		} else {
			// Real 68000 register-sourced counts use only the low 6 bits of
			// the source register (count modulo 64); reduce once so the
			// overflow test, the carry-bit position, and the host shift
			// below all agree on the same effective count.
			cnt, err := c.Alloc.AllocTemp()
			if err != nil {
				return err
			}
			defer c.Alloc.Free(cnt)
			buf.EmitAll(c.Backend.ANDImm(cnt.Reg, countReg.Reg, 0x3F, false))

			posReg, err := c.Alloc.AllocTemp()
			if err != nil {
				return err
			}
			defer c.Alloc.Free(posReg)
			carryBit, err := c.Alloc.AllocTemp()
			if err != nil {
				return err
			}
			defer c.Alloc.Free(carryBit)
			if dirLeft {
				c.subFromConst(buf, posReg.Reg, size.Bits(), cnt.Reg)
			} else {
				buf.EmitAll(c.Backend.SUBImm(posReg.Reg, cnt.Reg, 1))
			}
			buf.EmitAll(c.Backend.ANDImm(posReg.Reg, posReg.Reg, 31, false))
			buf.EmitAll(c.Backend.ShiftReg(carryBit.Reg, work.Reg, posReg.Reg, hostisa.LSR, false))

			// A count >= size.Bits() must fully shift the operand out: zero
			// for logical shifts, the replicated sign bit for arithmetic
			// right shifts (spec.md's shift-count boundary case). Neither
			// host ISA's native shift-by-register matches this at the
			// boundary on its own -- AArch64's LSLV/LSRV/ASRV wrap the
			// amount modulo the register width, and ARM32's barrel shifter
			// saturates within its own wider register rather than the
			// guest's narrower byte/word field -- so the fully-shifted case
			// is computed explicitly and selected in branch-free, using a
			// 0/all-ones mask built from a host compare.
			overflow, err := c.Alloc.AllocTemp()
			if err != nil {
				return err
			}
			defer c.Alloc.Free(overflow)
			buf.EmitAll(c.Backend.CMPImm(cnt.Reg, uint32(size.Bits())))
			buf.EmitAll(c.Backend.CSET(overflow.Reg, hostisa.CondCS))
			buf.EmitAll(c.Backend.ShiftImm(overflow.Reg, overflow.Reg, hostisa.LSL, 31, false))
			buf.EmitAll(c.Backend.ShiftImm(overflow.Reg, overflow.Reg, hostisa.ASR, 31, false))

			var sat regalloc.HostReg
			if signed && !dirLeft {
				satH, err := c.Alloc.AllocTemp()
				if err != nil {
					return err
				}
				defer c.Alloc.Free(satH)
				buf.EmitAll(c.Backend.ShiftImm(satH.Reg, work.Reg, hostisa.ASR, 31, false))
				sat = satH.Reg
			}

			buf.EmitAll(c.Backend.ShiftReg(work.Reg, work.Reg, cnt.Reg, kind, false))
			buf.EmitAll(c.Backend.BIC(work.Reg, work.Reg, overflow.Reg))
			if signed && !dirLeft {
				buf.EmitAll(c.Backend.AND(sat, sat, overflow.Reg, false))
				buf.EmitAll(c.Backend.ORR(work.Reg, work.Reg, sat))
			}
			// A count past the operand width shifts out only fill bits:
			// the carry is zero, or the sign for ASR.
			gt, err := c.Alloc.AllocTemp()
			if err != nil {
				return err
			}
			defer c.Alloc.Free(gt)
			buf.EmitAll(c.Backend.CMPImm(cnt.Reg, uint32(size.Bits()+1)))
			buf.EmitAll(c.Backend.CSET(gt.Reg, hostisa.CondCS))
			buf.EmitAll(c.Backend.BIC(carryBit.Reg, carryBit.Reg, gt.Reg))
			if signed && !dirLeft {
				buf.EmitAll(c.Backend.AND(gt.Reg, gt.Reg, sat, false))
				buf.EmitAll(c.Backend.ORR(carryBit.Reg, carryBit.Reg, gt.Reg))
			}
			// Tested after the compares above, which replace the host
			// flags.
			buf.EmitAll(c.Backend.TSTImm(carryBit.Reg, 1))
		}
		carryCond = hostisa.CondNE
		buf.EmitAll(c.Backend.BFI(dh.Reg, work.Reg, 0, size.Bits()))
	}

	c.Alloc.SetDirty(destReg)
	c.PC.AdvancePC(buf, 2)

	if mask != 0 {
		c.clearMask(buf, mask)
		m := mask
		// C and X first: setFromNZ and the V compare replace the host
		// flags carryCond reads.
		c.setFromC(buf, carryCond, &m)
		if typ != typeROx {
			c.setFromX(buf, carryCond, &m)
		}
		c.setFromNZ(buf, dh.Reg, size, &m)
		if typ == typeASx && dirLeft {
			c.emitASLOverflow(buf, orig.Reg, dh.Reg, size, immediate, immCount, countReg, haveCountReg, &m)
		}
	}
	return nil
}

// emitASLOverflow computes V for ASL faithfully: the sign-extend/shift
// round trip reproduces the original value iff no bit equal in value to
// the final sign bit was lost off the top during the shift.
func (c *Core) emitASLOverflow(buf *hostbuf.Buffer, origVal, shiftedVal regalloc.HostReg, size m68k.Size, immediate bool, immCount uint, countReg regalloc.Handle, haveCountReg bool, mask *m68k.CCRMask) {
	se, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(se)
	rt, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(rt)

	if size == m68k.Long {
		buf.EmitAll(c.Backend.MOVReg(se.Reg, origVal))
	} else {
		buf.EmitAll(c.Backend.SignExtend(se.Reg, origVal, size))
	}
	if immediate {
		buf.EmitAll(c.Backend.ShiftImm(rt.Reg, se.Reg, hostisa.LSL, immCount, false))
	} else {
		buf.EmitAll(c.Backend.ShiftReg(rt.Reg, se.Reg, countReg.Reg, hostisa.LSL, false))
	}
	// Re-examine the shifted value at the operand's own width.
	if size != m68k.Long {
		buf.EmitAll(c.Backend.SignExtend(rt.Reg, rt.Reg, size))
	}
	if immediate {
		buf.EmitAll(c.Backend.ShiftImm(rt.Reg, rt.Reg, hostisa.ASR, immCount, false))
	} else {
		buf.EmitAll(c.Backend.ShiftReg(rt.Reg, rt.Reg, countReg.Reg, hostisa.ASR, false))
	}
	buf.EmitAll(c.Backend.CMPReg(rt.Reg, se.Reg))
	c.setFromV(buf, hostisa.CondNE, mask)
}
