package linee

import (
	"github.com/retrojit/m68k-arm-jit/hostbuf"
	"github.com/retrojit/m68k-arm-jit/hostisa"
	"github.com/retrojit/m68k-arm-jit/m68k"
	"github.com/retrojit/m68k-arm-jit/regalloc"
)

// bfField decodes the extension word shared by every bit-field opcode.
type bfField struct {
	offsetReg bool
	offset    uint8 // immediate value, or Do register number
	widthReg  bool
	width     uint8 // immediate value (0 means 32), or Dw register number
	destReg   uint8 // bits 14-12: result register (EXTU/EXTS/FFO) or insert-source register (INS)
}

func decodeBFField(ext uint16) bfField {
	return bfField{
		offsetReg: (ext>>11)&1 != 0,
		offset:    uint8((ext >> 6) & 0x1F),
		widthReg:  (ext>>5)&1 != 0,
		width:     uint8(ext & 0x1F),
		destReg:   uint8((ext >> 12) & 7),
	}
}

// resolveWidth materializes the field width as a plain Go value where it
// is immediate (an immediate 0 means 32), or as a host register where it
// is register-sourced. A register-sourced width whose low 5 bits are
// zero means 32; the emitted code forces that here.
func (c *Core) resolveWidth(buf *hostbuf.Buffer, f bfField) (immWidth uint, widthReg regalloc.HostReg, isImm bool) {
	if !f.widthReg {
		w := uint(f.width)
		if w == 0 {
			w = 32
		}
		return w, 0, true
	}
	h, err := c.Alloc.MapRead(m68k.D(f.width))
	if err != nil {
		panic(err)
	}
	wreg, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	buf.EmitAll(c.Backend.ANDImm(wreg.Reg, h.Reg, 0x1F, false))
	// A sourced width of 0 (mod 32) means 32, not 0.
	buf.EmitAll(c.Backend.TSTImm(wreg.Reg, 0x1F))
	zero, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(zero)
	buf.EmitAll(c.Backend.CSET(zero.Reg, hostisa.CondEQ))
	buf.EmitAll(c.Backend.ShiftImm(zero.Reg, zero.Reg, hostisa.LSL, 5, false))
	buf.EmitAll(c.Backend.ORR(wreg.Reg, wreg.Reg, zero.Reg))
	return 0, wreg.Reg, false
}

// topJustifyPair combines a byte-aligned 64-bit memory window (lo at the
// base, hi at base+4) into a single top-justified 32-bit register: bits
// [31 downto 32-width] of the result hold the field regardless of a
// 0..7 bit shift past the base byte, because a field of width <= 32 at
// such a shift spans at most 39 of the 64 loaded bits and so always
// lands entirely within one shifted-left-by-offset 32-bit word. offset
// is either a compile-time 0..7 value (offsetIsImm) or a register
// already reduced to 0..7.
func (c *Core) topJustifyPair(buf *hostbuf.Buffer, dst, lo, hi regalloc.HostReg, offsetIsImm bool, immOffset uint, offsetReg regalloc.HostReg) {
	if offsetIsImm {
		if immOffset == 0 {
			buf.EmitAll(c.Backend.MOVReg(dst, lo))
			return
		}
		tmp, err := c.Alloc.AllocTemp()
		if err != nil {
			panic(err)
		}
		defer c.Alloc.Free(tmp)
		buf.EmitAll(c.Backend.ShiftImm(dst, lo, hostisa.LSL, immOffset, false))
		buf.EmitAll(c.Backend.ShiftImm(tmp.Reg, hi, hostisa.LSR, 32-immOffset, false))
		buf.EmitAll(c.Backend.ORR(dst, dst, tmp.Reg))
		return
	}

	// The host shift-by-register primitives disagree on a shift amount
	// of exactly 32 (AArch64 wraps it to a no-op shift-by-0, ARM32
	// saturates to zero), so the offset==0 case — the only one that
	// needs a shift of 32 here — is selected branch-free with an
	// explicit 0/all-ones mask instead of relying on either behaviour.
	nz, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(nz)
	buf.EmitAll(c.Backend.TSTImm(offsetReg, 7))
	buf.EmitAll(c.Backend.CSET(nz.Reg, hostisa.CondNE))
	buf.EmitAll(c.Backend.ShiftImm(nz.Reg, nz.Reg, hostisa.LSL, 31, false))
	buf.EmitAll(c.Backend.ShiftImm(nz.Reg, nz.Reg, hostisa.ASR, 31, false))

	rawShift, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(rawShift)
	c.subFromConst(buf, rawShift.Reg, 32, offsetReg)

	tmp, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(tmp)
	buf.EmitAll(c.Backend.ShiftReg(dst, lo, offsetReg, hostisa.LSL, false))
	buf.EmitAll(c.Backend.ShiftReg(tmp.Reg, hi, rawShift.Reg, hostisa.LSR, false))
	buf.EmitAll(c.Backend.AND(tmp.Reg, tmp.Reg, nz.Reg, false))
	buf.EmitAll(c.Backend.ORR(dst, dst, tmp.Reg))
}

// unshiftPair is the writeback inverse of topJustifyPair: given a value
// already aligned to the top-justified window (a mask or a value to
// insert), it scatters the bits back to the lo/hi contribution each
// word needs so an EOR/BIC/ORR against the original lo/hi lands on the
// right bit positions.
func (c *Core) unshiftPair(buf *hostbuf.Buffer, dstLo, dstHi, src regalloc.HostReg, offsetIsImm bool, immOffset uint, offsetReg regalloc.HostReg) {
	if offsetIsImm {
		if immOffset == 0 {
			buf.EmitAll(c.Backend.MOVReg(dstLo, src))
			buf.EmitAll(c.Backend.MOVImm(dstHi, 0))
			return
		}
		buf.EmitAll(c.Backend.ShiftImm(dstLo, src, hostisa.LSR, immOffset, false))
		buf.EmitAll(c.Backend.ShiftImm(dstHi, src, hostisa.LSL, 32-immOffset, false))
		return
	}

	nz, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(nz)
	buf.EmitAll(c.Backend.TSTImm(offsetReg, 7))
	buf.EmitAll(c.Backend.CSET(nz.Reg, hostisa.CondNE))
	buf.EmitAll(c.Backend.ShiftImm(nz.Reg, nz.Reg, hostisa.LSL, 31, false))
	buf.EmitAll(c.Backend.ShiftImm(nz.Reg, nz.Reg, hostisa.ASR, 31, false))

	rawShift, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(rawShift)
	c.subFromConst(buf, rawShift.Reg, 32, offsetReg)

	buf.EmitAll(c.Backend.ShiftReg(dstLo, src, offsetReg, hostisa.LSR, false))
	buf.EmitAll(c.Backend.ShiftReg(dstHi, src, rawShift.Reg, hostisa.LSL, false))
	buf.EmitAll(c.Backend.AND(dstHi, dstHi, nz.Reg, false))
}

// emitBitfield implements the BFTST/BFEXTU/BFEXTS/BFCHG/BFCLR/BFSET/
// BFFFO/BFINS family in both its register-source (§4.4) and
// memory-source (§4.5) forms, which differ only in how the operand
// register is obtained and how the result is written back.
func emitBitfield(c *Core, buf *hostbuf.Buffer, opcode uint16, stream *m68k.Stream, mask m68k.CCRMask) error {
	op := bfOp((opcode >> 8) & 7)
	mode := uint8((opcode >> 3) & 7)
	eaReg := uint8(opcode & 7)

	extWord, err := stream.Next()
	if err != nil {
		return err
	}
	f := decodeBFField(extWord)

	immWidth, widthReg, widthIsImm := c.resolveWidth(buf, f)

	isRegisterSource := mode == 0
	var extWords int

	// topLo holds the operand top-justified so the field occupies its
	// top `width` bits, the representation every read-only operation
	// (TST/EXTU/EXTS/FFO, and the mask construction below) works from
	// regardless of which source form produced it.
	var topLo regalloc.HostReg

	// Register-source state (operand is the Dn register itself, field
	// offset wraps mod 32 within that one register).
	var operand regalloc.Handle

	// Memory-source state: the field lives in a 64-bit window (loH:hiH)
	// straddling the base byte, so any field <= 32 bits wide is fully
	// contained regardless of a 0..7 bit shift past that byte.
	var loH, hiH regalloc.Handle
	var memBase regalloc.HostReg

	var offsetIsImm bool
	var immOffset uint
	var offsetReg regalloc.HostReg // reduced to 0..31 (register form) or 0..7 (memory form)
	var fullOffsetReg regalloc.HostReg
	var haveFullOffsetReg bool

	if isRegisterSource {
		operand, err = c.Alloc.MapRead(m68k.D(eaReg))
		if err != nil {
			return err
		}

		offsetIsImm = !f.offsetReg
		immOffset = uint(f.offset)
		if f.offsetReg {
			h, err := c.Alloc.MapRead(m68k.D(f.offset))
			if err != nil {
				return err
			}
			tmp, err := c.Alloc.AllocTemp()
			if err != nil {
				return err
			}
			defer c.Alloc.Free(tmp)
			buf.EmitAll(c.Backend.ANDImm(tmp.Reg, h.Reg, 0x1F, false))
			offsetReg = tmp.Reg
		}

		rotated, err := c.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		defer c.Alloc.Free(rotated)
		if offsetIsImm {
			amt := (32 - immOffset%32) % 32
			buf.EmitAll(c.Backend.ShiftImm(rotated.Reg, operand.Reg, hostisa.ROR, amt, false))
		} else {
			amtReg, err := c.Alloc.AllocTemp()
			if err != nil {
				return err
			}
			defer c.Alloc.Free(amtReg)
			c.subFromConst(buf, amtReg.Reg, 32, offsetReg)
			buf.EmitAll(c.Backend.ShiftReg(rotated.Reg, operand.Reg, amtReg.Reg, hostisa.ROR, false))
		}
		topLo = rotated.Reg
	} else {
		base, err := c.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		defer c.Alloc.Free(base)
		extWords, err = c.EA.LoadEA(buf, base.Reg, uint8(opcode&0x3F), stream)
		if err != nil {
			return err
		}

		offsetIsImm = !f.offsetReg
		if offsetIsImm {
			// The offset is a compile-time 0..31 value: split it once,
			// at translation time, into a byte advance and a 0..7 bit
			// shift, rather than carrying the full offset into the
			// runtime rotate the way the single-word version did.
			byteAdv := uint32(f.offset) >> 3
			if byteAdv != 0 {
				buf.EmitAll(c.Backend.ADDImm(base.Reg, base.Reg, byteAdv))
			}
			immOffset = uint(f.offset) & 7
		} else {
			// A register-sourced offset for a memory operand is a full
			// signed value (negative offsets address earlier bytes), not
			// a 0..31 rotate amount — it must advance the base by
			// offset/8 (arithmetic shift, flooring toward -infinity) and
			// use offset mod 8 (always 0..7, via a plain AND — mod 8
			// being a power of two keeps that valid even for negative
			// two's-complement values) as the remaining bit shift.
			h, err := c.Alloc.MapRead(m68k.D(f.offset))
			if err != nil {
				return err
			}
			fullOffsetReg = h.Reg
			haveFullOffsetReg = true

			byteAdv, err := c.Alloc.AllocTemp()
			if err != nil {
				return err
			}
			defer c.Alloc.Free(byteAdv)
			buf.EmitAll(c.Backend.ShiftImm(byteAdv.Reg, h.Reg, hostisa.ASR, 3, false))
			buf.EmitAll(c.Backend.ADD(base.Reg, base.Reg, byteAdv.Reg))

			bitShift, err := c.Alloc.AllocTemp()
			if err != nil {
				return err
			}
			defer c.Alloc.Free(bitShift)
			buf.EmitAll(c.Backend.ANDImm(bitShift.Reg, h.Reg, 7, false))
			offsetReg = bitShift.Reg
		}
		memBase = base.Reg

		loH, err = c.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		hiH, err = c.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		buf.EmitAll(c.Backend.LDR(loH.Reg, memBase, 0, 4, hostisa.AddrOffset))
		buf.EmitAll(c.Backend.LDR(hiH.Reg, memBase, 4, 4, hostisa.AddrOffset))

		top, err := c.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		defer c.Alloc.Free(top)
		c.topJustifyPair(buf, top.Reg, loH.Reg, hiH.Reg, offsetIsImm, immOffset, offsetReg)
		topLo = top.Reg

		defer func() {
			if op == bfCHG || op == bfCLR || op == bfSET || op == bfINS {
				buf.EmitAll(c.Backend.STR(loH.Reg, memBase, 0, 4, hostisa.AddrOffset))
				buf.EmitAll(c.Backend.STR(hiH.Reg, memBase, 4, 4, hostisa.AddrOffset))
			}
		}()
	}

	// maskTop: `width` leading 1 bits, zero below. fieldTop: the field
	// value kept top-justified; fieldVal: the same value right-justified.
	maskTop, err := c.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	defer c.Alloc.Free(maskTop)
	shiftDown, err := c.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	defer c.Alloc.Free(shiftDown)
	if widthIsImm {
		w := immWidth
		buf.EmitAll(c.Backend.MOVImm(maskTop.Reg, uint64(size32Mask(w))<<(32-w)&0xFFFFFFFF))
		buf.EmitAll(c.Backend.MOVImm(shiftDown.Reg, uint64(32-w)))
	} else {
		allOnes, err := c.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		defer c.Alloc.Free(allOnes)
		buf.EmitAll(c.Backend.MOVImm(allOnes.Reg, 0xFFFFFFFF))
		c.subFromConst(buf, shiftDown.Reg, 32, widthReg)
		// LSL of all-ones by (32-width) leaves width leading ones.
		buf.EmitAll(c.Backend.ShiftReg(maskTop.Reg, allOnes.Reg, shiftDown.Reg, hostisa.LSL, false))
	}

	fieldTop, err := c.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	defer c.Alloc.Free(fieldTop)
	buf.EmitAll(c.Backend.AND(fieldTop.Reg, topLo, maskTop.Reg, false))

	fieldVal, err := c.Alloc.AllocTemp()
	if err != nil {
		return err
	}
	defer c.Alloc.Free(fieldVal)
	buf.EmitAll(c.Backend.ShiftReg(fieldVal.Reg, fieldTop.Reg, shiftDown.Reg, hostisa.LSR, false))

	// scatterMask applies maskTop (or any top-justified value) back to
	// the operand(s), via f, to either the register-source operand or
	// the memory-source lo/hi pair.
	scatterMask := func(topJustified regalloc.HostReg) (opLo, opHi regalloc.HostReg, isPair bool) {
		if isRegisterSource {
			orig, err := c.Alloc.AllocTemp()
			if err != nil {
				panic(err)
			}
			c.unrotate(buf, orig.Reg, topJustified, offsetIsImm, uint8(immOffset), offsetReg)
			return orig.Reg, 0, false
		}
		oLo, err := c.Alloc.AllocTemp()
		if err != nil {
			panic(err)
		}
		oHi, err := c.Alloc.AllocTemp()
		if err != nil {
			panic(err)
		}
		c.unshiftPair(buf, oLo.Reg, oHi.Reg, topJustified, offsetIsImm, immOffset, offsetReg)
		return oLo.Reg, oHi.Reg, true
	}

	switch op {
	case bfTST, bfEXTU, bfEXTS:
		c.bfSetFlagsFromField(buf, fieldTop.Reg, mask)
		if op == bfEXTU {
			dst, err := c.Alloc.MapWrite(m68k.D(f.destReg))
			if err != nil {
				return err
			}
			buf.EmitAll(c.Backend.MOVReg(dst.Reg, fieldVal.Reg))
		} else if op == bfEXTS {
			dst, err := c.Alloc.MapWrite(m68k.D(f.destReg))
			if err != nil {
				return err
			}
			buf.EmitAll(c.Backend.ShiftReg(dst.Reg, fieldTop.Reg, shiftDown.Reg, hostisa.ASR, false))
		}

	case bfCHG, bfCLR, bfSET:
		c.bfSetFlagsFromField(buf, fieldTop.Reg, mask)
		maskOrigLo, maskOrigHi, isPair := scatterMask(maskTop.Reg)
		if isPair {
			switch op {
			case bfCHG:
				buf.EmitAll(c.Backend.EOR(loH.Reg, loH.Reg, maskOrigLo))
				buf.EmitAll(c.Backend.EOR(hiH.Reg, hiH.Reg, maskOrigHi))
			case bfCLR:
				buf.EmitAll(c.Backend.BIC(loH.Reg, loH.Reg, maskOrigLo))
				buf.EmitAll(c.Backend.BIC(hiH.Reg, hiH.Reg, maskOrigHi))
			case bfSET:
				buf.EmitAll(c.Backend.ORR(loH.Reg, loH.Reg, maskOrigLo))
				buf.EmitAll(c.Backend.ORR(hiH.Reg, hiH.Reg, maskOrigHi))
			}
		} else {
			switch op {
			case bfCHG:
				buf.EmitAll(c.Backend.EOR(operand.Reg, operand.Reg, maskOrigLo))
			case bfCLR:
				buf.EmitAll(c.Backend.BIC(operand.Reg, operand.Reg, maskOrigLo))
			case bfSET:
				buf.EmitAll(c.Backend.ORR(operand.Reg, operand.Reg, maskOrigLo))
			}
			c.Alloc.SetDirty(m68k.D(eaReg))
		}

	case bfFFO:
		complement, err := c.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		defer c.Alloc.Free(complement)
		buf.EmitAll(c.Backend.MOVImm(complement.Reg, 0xFFFFFFFF))
		buf.EmitAll(c.Backend.BIC(complement.Reg, complement.Reg, maskTop.Reg))
		buf.EmitAll(c.Backend.ORR(complement.Reg, complement.Reg, fieldTop.Reg))
		lead, err := c.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		defer c.Alloc.Free(lead)
		buf.EmitAll(c.Backend.CLZ(lead.Reg, complement.Reg))
		dst, err := c.Alloc.MapWrite(m68k.D(f.destReg))
		if err != nil {
			return err
		}
		if offsetIsImm {
			buf.EmitAll(c.Backend.ADDImm(dst.Reg, lead.Reg, uint32(f.offset)))
		} else if haveFullOffsetReg {
			// The full (unreduced) signed offset register reconstructs
			// the real bit position directly: the byte advance and
			// 0..7 remainder were both derived from it, so adding it to
			// the CLZ result undoes that split exactly.
			buf.EmitAll(c.Backend.ADD(dst.Reg, lead.Reg, fullOffsetReg))
		} else {
			buf.EmitAll(c.Backend.ADD(dst.Reg, lead.Reg, offsetReg))
		}
		c.bfSetFlagsFromField(buf, fieldTop.Reg, mask)

	case bfINS:
		src, err := c.Alloc.MapRead(m68k.D(f.destReg))
		if err != nil {
			return err
		}
		insTop, err := c.Alloc.AllocTemp()
		if err != nil {
			return err
		}
		defer c.Alloc.Free(insTop)
		buf.EmitAll(c.Backend.ShiftReg(insTop.Reg, src.Reg, shiftDown.Reg, hostisa.LSL, false))
		buf.EmitAll(c.Backend.AND(insTop.Reg, insTop.Reg, maskTop.Reg, false))
		c.bfSetFlagsFromField(buf, insTop.Reg, mask)

		maskOrigLo, maskOrigHi, isPair := scatterMask(maskTop.Reg)
		insOrigLo, insOrigHi, _ := scatterMask(insTop.Reg)

		if isPair {
			buf.EmitAll(c.Backend.BIC(loH.Reg, loH.Reg, maskOrigLo))
			buf.EmitAll(c.Backend.ORR(loH.Reg, loH.Reg, insOrigLo))
			buf.EmitAll(c.Backend.BIC(hiH.Reg, hiH.Reg, maskOrigHi))
			buf.EmitAll(c.Backend.ORR(hiH.Reg, hiH.Reg, insOrigHi))
		} else {
			buf.EmitAll(c.Backend.BIC(operand.Reg, operand.Reg, maskOrigLo))
			buf.EmitAll(c.Backend.ORR(operand.Reg, operand.Reg, insOrigLo))
			c.Alloc.SetDirty(m68k.D(eaReg))
		}
	}

	c.PC.AdvancePC(buf, 4+2*extWords)
	return nil
}

// unrotate reverses the left-rotate-by-offset that aligned a
// register-source field to the top of the operand register, so a
// top-justified mask or value can be applied back to the operand's
// original bit positions.
func (c *Core) unrotate(buf *hostbuf.Buffer, dst, topJustified regalloc.HostReg, offsetIsImm bool, offset uint8, offsetReg regalloc.HostReg) {
	if offsetIsImm {
		amt := uint(offset) % 32
		buf.EmitAll(c.Backend.ShiftImm(dst, topJustified, hostisa.ROR, amt, false))
		return
	}
	buf.EmitAll(c.Backend.ShiftReg(dst, topJustified, offsetReg, hostisa.ROR, false))
}

// bfSetFlagsFromField sets N/Z from a top-justified field value (bit 31
// is the field's sign bit regardless of its width) and clears V/C, the
// flag behaviour common to every bit-field operation.
func (c *Core) bfSetFlagsFromField(buf *hostbuf.Buffer, fieldTop regalloc.HostReg, mask m68k.CCRMask) {
	if mask == 0 {
		return
	}
	c.clearMask(buf, mask)
	m := mask
	if m.Has(m68k.FlagN) {
		buf.EmitAll(c.Backend.TestBit(fieldTop, 31))
		c.setBitFromCond(buf, hostisa.CondNE, m68k.FlagN)
		m &^= m68k.FlagN
	}
	if m.Has(m68k.FlagZ) {
		buf.EmitAll(c.Backend.CMPImm(fieldTop, 0))
		c.setBitFromCond(buf, hostisa.CondEQ, m68k.FlagZ)
	}
}
