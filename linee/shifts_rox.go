package linee

import (
	"github.com/retrojit/m68k-arm-jit/hostbuf"
	"github.com/retrojit/m68k-arm-jit/hostisa"
	"github.com/retrojit/m68k-arm-jit/m68k"
	"github.com/retrojit/m68k-arm-jit/regalloc"
)

// emitRotateExtended implements ROXL/ROXR: the X bit participates in the
// rotation as an extra logical bit above the operand's own width, so the
// rotation is really over a (width+1)-bit field. dh already holds the
// operand (mapped for read); the rotated result is written back into
// dh.Reg and the function returns the host condition that reads the new
// C/X value.
func (c *Core) emitRotateExtended(buf *hostbuf.Buffer, dh regalloc.Handle, size m68k.Size, dirLeft, immediate bool, immCount uint, countReg regalloc.Handle, haveCountReg bool) hostisa.Cond {
	width := size.Bits()
	n := width + 1 // size of the field the X bit extends the operand to

	xreg, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(xreg)
	buf.EmitAll(c.Backend.TestBit(c.getCCHandle(), ccBit(m68k.FlagX)))
	buf.EmitAll(c.Backend.CSET(xreg.Reg, hostisa.CondNE))

	value, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(value)
	if size == m68k.Long {
		buf.EmitAll(c.Backend.MOVReg(value.Reg, dh.Reg))
	} else {
		buf.EmitAll(c.Backend.ZeroExtend(value.Reg, dh.Reg, size))
	}

	if immediate {
		count := immCount % n
		if count == 0 {
			// Rotation is the identity; C/X both read back the
			// current X bit unchanged.
			buf.EmitAll(c.Backend.TSTImm(xreg.Reg, 1))
			return hostisa.CondNE
		}
		newValue, newX := c.rotateExtendedImm(buf, value.Reg, xreg.Reg, width, n, count, dirLeft)
		buf.EmitAll(c.Backend.BFI(dh.Reg, newValue, 0, width))
		buf.EmitAll(c.Backend.TSTImm(newX, 1))
		return hostisa.CondNE
	}

	newValue, newX := c.rotateExtendedReg(buf, value.Reg, xreg.Reg, width, n, countReg.Reg, dirLeft)
	buf.EmitAll(c.Backend.BFI(dh.Reg, newValue, 0, width))
	buf.EmitAll(c.Backend.TSTImm(newX, 1))
	return hostisa.CondNE
}

// rotateExtendedImm performs the (width+1)-bit rotate for a compile-time
// known, non-zero count, returning registers holding the new value
// (low width bits significant) and the new X/C bit (bit 0 significant).
func (c *Core) rotateExtendedImm(buf *hostbuf.Buffer, value, x regalloc.HostReg, width, n, count uint, dirLeft bool) (regalloc.HostReg, regalloc.HostReg) {
	result, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	newX, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	tmp, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(tmp)

	if dirLeft {
		// result = (value << count) | (x << (count-1)) | (value >> (n-count))
		buf.EmitAll(c.Backend.ShiftImm(result.Reg, value, hostisa.LSL, count, false))
		buf.EmitAll(c.Backend.ShiftImm(tmp.Reg, x, hostisa.LSL, count-1, false))
		buf.EmitAll(c.Backend.ORR(result.Reg, result.Reg, tmp.Reg))
		if count > 1 {
			buf.EmitAll(c.Backend.ShiftImm(tmp.Reg, value, hostisa.LSR, n-count, false))
			buf.EmitAll(c.Backend.ORR(result.Reg, result.Reg, tmp.Reg))
		}
		buf.EmitAll(c.Backend.ShiftImm(newX.Reg, value, hostisa.LSR, width-count, false))
		buf.EmitAll(c.Backend.ANDImm(newX.Reg, newX.Reg, 1, false))
	} else {
		// result = (value >> count) | (x << (width-count)) | (value << (n-count))
		buf.EmitAll(c.Backend.ShiftImm(result.Reg, value, hostisa.LSR, count, false))
		buf.EmitAll(c.Backend.ShiftImm(tmp.Reg, x, hostisa.LSL, width-count, false))
		buf.EmitAll(c.Backend.ORR(result.Reg, result.Reg, tmp.Reg))
		if count > 1 {
			buf.EmitAll(c.Backend.ShiftImm(tmp.Reg, value, hostisa.LSL, n-count, false))
			buf.EmitAll(c.Backend.ORR(result.Reg, result.Reg, tmp.Reg))
		}
		buf.EmitAll(c.Backend.ShiftImm(newX.Reg, value, hostisa.LSR, count-1, false))
		buf.EmitAll(c.Backend.ANDImm(newX.Reg, newX.Reg, 1, false))
	}
	buf.EmitAll(c.Backend.ANDImm(result.Reg, result.Reg, size32Mask(width), false))
	return result.Reg, newX.Reg
}

func size32Mask(width uint) uint32 {
	if width >= 32 {
		return 0xFFFFFFFF
	}
	return uint32(1)<<width - 1
}

// rotateExtendedReg is the register-count path: it reduces the count
// modulo (width+1) and applies the same arithmetic as the immediate
// path with register shift amounts. A count that reduces to zero is
// handled at the end, branch-free: the untouched operand and the current
// X bit are selected back in through a 0/all-ones mask, so the rotation
// is the identity and C/X read back the current X bit.
func (c *Core) rotateExtendedReg(buf *hostbuf.Buffer, value, x regalloc.HostReg, width, n uint, countReg regalloc.HostReg, dirLeft bool) (regalloc.HostReg, regalloc.HostReg) {
	cnt, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(cnt)
	// The count source register contributes only its low 6 bits (count
	// modulo 64, same as every other register-sourced shift/rotate
	// count), then that value is reduced modulo n.
	buf.EmitAll(c.Backend.ANDImm(cnt.Reg, countReg, 0x3F, false))
	c.modConst(buf, cnt.Reg, n)

	result, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	newX, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	tmp, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(tmp)
	wrapAmt, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(wrapAmt)

	if dirLeft {
		// result = (value << cnt) | (x << (cnt-1)) | (value >> (n-cnt))
		buf.EmitAll(c.Backend.ShiftReg(result.Reg, value, cnt.Reg, hostisa.LSL, false))
		buf.EmitAll(c.Backend.SUBImm(tmp.Reg, cnt.Reg, 1))
		buf.EmitAll(c.Backend.ShiftReg(tmp.Reg, x, tmp.Reg, hostisa.LSL, false))
		buf.EmitAll(c.Backend.ORR(result.Reg, result.Reg, tmp.Reg))
		c.subFromConst(buf, wrapAmt.Reg, n, cnt.Reg)
		buf.EmitAll(c.Backend.ShiftReg(tmp.Reg, value, wrapAmt.Reg, hostisa.LSR, false))
		buf.EmitAll(c.Backend.ORR(result.Reg, result.Reg, tmp.Reg))
		c.subFromConst(buf, newX.Reg, width, cnt.Reg)
		buf.EmitAll(c.Backend.ShiftReg(newX.Reg, value, newX.Reg, hostisa.LSR, false))
	} else {
		// result = (value >> cnt) | (x << (width-cnt)) | (value << (n-cnt))
		buf.EmitAll(c.Backend.ShiftReg(result.Reg, value, cnt.Reg, hostisa.LSR, false))
		c.subFromConst(buf, tmp.Reg, width, cnt.Reg)
		buf.EmitAll(c.Backend.ShiftReg(tmp.Reg, x, tmp.Reg, hostisa.LSL, false))
		buf.EmitAll(c.Backend.ORR(result.Reg, result.Reg, tmp.Reg))
		c.subFromConst(buf, wrapAmt.Reg, n, cnt.Reg)
		buf.EmitAll(c.Backend.ShiftReg(tmp.Reg, value, wrapAmt.Reg, hostisa.LSL, false))
		buf.EmitAll(c.Backend.ORR(result.Reg, result.Reg, tmp.Reg))
		buf.EmitAll(c.Backend.SUBImm(newX.Reg, cnt.Reg, 1))
		buf.EmitAll(c.Backend.ShiftReg(newX.Reg, value, newX.Reg, hostisa.LSR, false))
	}
	buf.EmitAll(c.Backend.ANDImm(newX.Reg, newX.Reg, 1, false))
	buf.EmitAll(c.Backend.ANDImm(result.Reg, result.Reg, size32Mask(width), false))
	// Zero count: wrapAmt becomes all-ones, selecting value and x back in.
	buf.EmitAll(c.Backend.CMPImm(cnt.Reg, 0))
	buf.EmitAll(c.Backend.CSET(wrapAmt.Reg, hostisa.CondEQ))
	buf.EmitAll(c.Backend.ShiftImm(wrapAmt.Reg, wrapAmt.Reg, hostisa.LSL, 31, false))
	buf.EmitAll(c.Backend.ShiftImm(wrapAmt.Reg, wrapAmt.Reg, hostisa.ASR, 31, false))
	buf.EmitAll(c.Backend.BIC(result.Reg, result.Reg, wrapAmt.Reg))
	buf.EmitAll(c.Backend.BIC(newX.Reg, newX.Reg, wrapAmt.Reg))
	buf.EmitAll(c.Backend.AND(tmp.Reg, value, wrapAmt.Reg, false))
	buf.EmitAll(c.Backend.ORR(result.Reg, result.Reg, tmp.Reg))
	buf.EmitAll(c.Backend.AND(tmp.Reg, x, wrapAmt.Reg, false))
	buf.EmitAll(c.Backend.ORR(newX.Reg, newX.Reg, tmp.Reg))
	return result.Reg, newX.Reg
}

// modConst reduces reg modulo n in place, for n not necessarily a power
// of two (the extended rotates use n = width+1 ∈ {9, 17, 33}, so a
// bitwise AND mask — valid only when the modulus is a power of two —
// would silently discard almost every count value). This is a
// branch-free restoring division: reg is assumed bounded to 0..63
// (mod-64, the real count-register range) on entry, so six conditional
// subtractions of n, 2n, 4n, ..., 32n suffice to reduce it fully. Each
// step builds a 0/all-ones mask from a host compare (there is no
// conditional-select primitive) and subtracts m only when reg >= m.
func (c *Core) modConst(buf *hostbuf.Buffer, reg regalloc.HostReg, n uint) {
	for k := 5; k >= 0; k-- {
		m := n << uint(k)
		mask, err := c.Alloc.AllocTemp()
		if err != nil {
			panic(err)
		}
		buf.EmitAll(c.Backend.CMPImm(reg, uint32(m)))
		buf.EmitAll(c.Backend.CSET(mask.Reg, hostisa.CondCS))
		buf.EmitAll(c.Backend.ShiftImm(mask.Reg, mask.Reg, hostisa.LSL, 31, false))
		buf.EmitAll(c.Backend.ShiftImm(mask.Reg, mask.Reg, hostisa.ASR, 31, false))
		buf.EmitAll(c.Backend.ANDImm(mask.Reg, mask.Reg, uint32(m), false))
		buf.EmitAll(c.Backend.SUB(reg, reg, mask.Reg))
		c.Alloc.Free(mask)
	}
}

// subFromConst computes dst = k - reg (modulo 2^32, as ^reg + k + 1),
// used to derive complementary shift amounts such as the
// extended-rotate formulas' n-cnt and width-cnt without first
// materialising k in a register.
func (c *Core) subFromConst(buf *hostbuf.Buffer, dst regalloc.HostReg, k uint, reg regalloc.HostReg) {
	buf.EmitAll(c.Backend.EORImm(dst, reg, 0xFFFFFFFF))
	buf.EmitAll(c.Backend.ADDImm(dst, dst, uint32(k+1)))
}
