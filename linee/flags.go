package linee

import (
	"github.com/retrojit/m68k-arm-jit/hostbuf"
	"github.com/retrojit/m68k-arm-jit/hostisa"
	"github.com/retrojit/m68k-arm-jit/m68k"
	"github.com/retrojit/m68k-arm-jit/regalloc"
)

// ccBit returns the packed-CCR bit position for a single flag, matching
// the real 68000 SR low byte layout (X N Z V C, bit 4 down to bit 0).
func ccBit(f m68k.CCRMask) uint {
	switch f {
	case m68k.FlagC:
		return 0
	case m68k.FlagV:
		return 1
	case m68k.FlagZ:
		return 2
	case m68k.FlagN:
		return 3
	case m68k.FlagX:
		return 4
	default:
		return 0
	}
}

// getCCHandle is get_cc_handle: the host register caching the CCR,
// marked dirty for the remainder of this emission.
func (c *Core) getCCHandle() regalloc.HostReg {
	return c.Alloc.ModifyCC()
}

// clearMask is clear_mask: AND the bits of mask out of the cached CCR.
// A zero mask elides the instruction entirely.
func (c *Core) clearMask(buf *hostbuf.Buffer, mask m68k.CCRMask) {
	if mask == 0 {
		return
	}
	cc := c.getCCHandle()
	var bits uint32
	for _, f := range []m68k.CCRMask{m68k.FlagC, m68k.FlagV, m68k.FlagZ, m68k.FlagN, m68k.FlagX} {
		if mask.Has(f) {
			bits |= 1 << ccBit(f)
		}
	}
	tmp, err := c.Alloc.AllocTemp()
	if err != nil {
		// Allocator exhaustion is a hard programming error (§7); the
		// table's static temp budget is sized so this cannot happen
		// for a well-formed emitter.
		panic(err)
	}
	defer c.Alloc.Free(tmp)
	buf.EmitAll(c.Backend.MOVImm(tmp.Reg, uint64(bits)))
	buf.EmitAll(c.Backend.BIC(cc, cc, tmp.Reg))
}

// setBitFromCond ORs a single flag bit into the cached CCR based on a
// host condition, consuming one temporary register.
func (c *Core) setBitFromCond(buf *hostbuf.Buffer, cond hostisa.Cond, flag m68k.CCRMask) {
	cc := c.getCCHandle()
	tmp, err := c.Alloc.AllocTemp()
	if err != nil {
		panic(err)
	}
	defer c.Alloc.Free(tmp)
	buf.EmitAll(c.Backend.CSET(tmp.Reg, cond))
	bit := ccBit(flag)
	if bit > 0 {
		buf.EmitAll(c.Backend.ShiftImm(tmp.Reg, tmp.Reg, hostisa.LSL, bit, false))
	}
	buf.EmitAll(c.Backend.ORR(cc, cc, tmp.Reg))
}

// setFromNZ is set_from_nz: re-assert N and Z from value re-examined at
// size's width, consuming those bits out of mask as they are handled.
func (c *Core) setFromNZ(buf *hostbuf.Buffer, value regalloc.HostReg, size m68k.Size, mask *m68k.CCRMask) {
	if mask.Has(m68k.FlagN) {
		buf.EmitAll(c.Backend.TestBit(value, size.Bits()-1))
		c.setBitFromCond(buf, hostisa.CondNE, m68k.FlagN)
		*mask &^= m68k.FlagN
	}
	if mask.Has(m68k.FlagZ) {
		buf.EmitAll(c.Backend.TSTImm(value, size.Mask()))
		c.setBitFromCond(buf, hostisa.CondEQ, m68k.FlagZ)
		*mask &^= m68k.FlagZ
	}
}

// setFromC is set_from_c: re-assert C from a host condition already
// current (e.g. the carry out of a flag-setting shift), consuming C out
// of mask.
func (c *Core) setFromC(buf *hostbuf.Buffer, cond hostisa.Cond, mask *m68k.CCRMask) {
	if !mask.Has(m68k.FlagC) {
		return
	}
	c.setBitFromCond(buf, cond, m68k.FlagC)
	*mask &^= m68k.FlagC
}

// setFromX is set_from_x: re-assert X, normally mirroring the same
// condition used for C in this family.
func (c *Core) setFromX(buf *hostbuf.Buffer, cond hostisa.Cond, mask *m68k.CCRMask) {
	if !mask.Has(m68k.FlagX) {
		return
	}
	c.setBitFromCond(buf, cond, m68k.FlagX)
	*mask &^= m68k.FlagX
}

// setFromV re-asserts V from a host condition. Only ASL computes V
// explicitly (the overflow-on-sign-change behaviour); every other
// emitter in this family clears V via clearMask and never re-sets it,
// which matches the bit pattern clearMask already leaves behind.
func (c *Core) setFromV(buf *hostbuf.Buffer, cond hostisa.Cond, mask *m68k.CCRMask) {
	if !mask.Has(m68k.FlagV) {
		return
	}
	c.setBitFromCond(buf, cond, m68k.FlagV)
	*mask &^= m68k.FlagV
}
