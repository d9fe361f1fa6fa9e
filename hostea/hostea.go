// Package hostea implements the EAEmitter collaborator the linee core
// is written against: it turns a guest effective-address mode/register
// field into host code that leaves the resolved address in a register.
// It is the code-emitting counterpart of the teacher's text-mode
// addressing parser (encoder/memory.go's encodeAddressingMode), reading
// opcode bit fields instead of assembly syntax.
package hostea

import (
	"fmt"

	"github.com/retrojit/m68k-arm-jit/hostbuf"
	"github.com/retrojit/m68k-arm-jit/hostisa"
	"github.com/retrojit/m68k-arm-jit/m68k"
	"github.com/retrojit/m68k-arm-jit/regalloc"
)

// Emitter is the reference EAEmitter: it resolves the six memory
// addressing modes the shift/rotate and bit-field memory forms accept
// (register indirect, postincrement, predecrement, displacement,
// indexed, and the two absolute forms), against an Allocator and
// Backend shared with the rest of the block being translated.
type Emitter struct {
	Backend hostisa.Backend
	Alloc   regalloc.Allocator
}

// New builds an Emitter over backend and alloc.
func New(backend hostisa.Backend, alloc regalloc.Allocator) *Emitter {
	return &Emitter{Backend: backend, Alloc: alloc}
}

func (e *Emitter) addConst(buf *hostbuf.Buffer, dst, src regalloc.HostReg, delta int32) {
	if src != dst {
		buf.EmitAll(e.Backend.MOVReg(dst, src))
	}
	if delta == 0 {
		return
	}
	if delta > 0 {
		buf.EmitAll(e.Backend.ADDImm(dst, dst, uint32(delta)))
	} else {
		buf.EmitAll(e.Backend.SUBImm(dst, dst, uint32(-delta)))
	}
}

// LoadEA implements linee.EAEmitter.
func (e *Emitter) LoadEA(buf *hostbuf.Buffer, out regalloc.HostReg, modeBits uint8, stream *m68k.Stream) (extWords int, err error) {
	mode := (modeBits >> 3) & 7
	reg := modeBits & 7

	switch mode {
	case 2: // (An)
		an, err := e.Alloc.MapRead(m68k.A(reg))
		if err != nil {
			return 0, err
		}
		buf.EmitAll(e.Backend.MOVReg(out, an.Reg))
		return 0, nil

	case 3: // (An)+: address is An as-is; the caller post-increments it.
		an, err := e.Alloc.MapRead(m68k.A(reg))
		if err != nil {
			return 0, err
		}
		buf.EmitAll(e.Backend.MOVReg(out, an.Reg))
		return 0, nil

	case 4: // -(An): address is An as-is; the caller pre-decrements it.
		an, err := e.Alloc.MapRead(m68k.A(reg))
		if err != nil {
			return 0, err
		}
		buf.EmitAll(e.Backend.MOVReg(out, an.Reg))
		return 0, nil

	case 5: // (d16,An)
		an, err := e.Alloc.MapRead(m68k.A(reg))
		if err != nil {
			return 0, err
		}
		ext, err := stream.Next()
		if err != nil {
			return 0, err
		}
		e.addConst(buf, out, an.Reg, int32(int16(ext)))
		return 1, nil

	case 6: // (d8,An,Xn): brief extension word format
		an, err := e.Alloc.MapRead(m68k.A(reg))
		if err != nil {
			return 0, err
		}
		ext, err := stream.Next()
		if err != nil {
			return 0, err
		}
		xnIsAddr := (ext>>15)&1 != 0
		xnNum := uint8((ext >> 12) & 7)
		longIndex := (ext>>11)&1 != 0
		disp := int32(int8(ext & 0xFF))

		var xn m68k.GuestReg
		if xnIsAddr {
			xn = m68k.A(xnNum)
		} else {
			xn = m68k.D(xnNum)
		}
		xh, err := e.Alloc.MapRead(xn)
		if err != nil {
			return 0, err
		}
		index, err := e.Alloc.AllocTemp()
		if err != nil {
			return 0, err
		}
		defer e.Alloc.Free(index)
		if longIndex {
			buf.EmitAll(e.Backend.MOVReg(index.Reg, xh.Reg))
		} else {
			buf.EmitAll(e.Backend.SignExtend(index.Reg, xh.Reg, m68k.Word))
		}

		buf.EmitAll(e.Backend.ADD(out, an.Reg, index.Reg))
		if disp != 0 {
			e.addConst(buf, out, out, disp)
		}
		return 1, nil

	case 7:
		switch reg {
		case 0: // (xxx).W absolute short, sign-extended
			ext, err := stream.Next()
			if err != nil {
				return 0, err
			}
			buf.EmitAll(e.Backend.MOVImm(out, uint64(uint32(int32(int16(ext))))))
			return 1, nil
		case 1: // (xxx).L absolute long
			hi, err := stream.Next()
			if err != nil {
				return 0, err
			}
			lo, err := stream.Next()
			if err != nil {
				return 0, err
			}
			buf.EmitAll(e.Backend.MOVImm(out, uint64(hi)<<16|uint64(lo)))
			return 2, nil
		default:
			return 0, fmt.Errorf("hostea: addressing mode 7/%d (PC-relative) is not a supported memory operand for this family", reg)
		}

	default:
		return 0, fmt.Errorf("hostea: mode %d is not a valid memory addressing mode", mode)
	}
}

