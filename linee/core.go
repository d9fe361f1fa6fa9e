// Package linee implements the line-E instruction family of the m68k
// JIT: shifts, rotates and the bit-field group. It is written once
// against the hostisa.Backend and regalloc.Allocator interfaces, and
// against three small external collaborator interfaces (EAEmitter,
// PCAdvancer, ExceptionEmitter) that the outer dispatch driver supplies.
package linee

import (
	"github.com/retrojit/m68k-arm-jit/hostbuf"
	"github.com/retrojit/m68k-arm-jit/hostisa"
	"github.com/retrojit/m68k-arm-jit/m68k"
	"github.com/retrojit/m68k-arm-jit/regalloc"
)

// EAEmitter computes a guest effective address into a host register. It
// is the core's only memory-addressing collaborator; the core never
// decodes EA extension words itself.
type EAEmitter interface {
	// LoadEA emits code that leaves the address for modeBits (the
	// low 6 bits of the opcode: 3-bit mode, 3-bit register) in out.
	// extWords reports how many guest extension words the mode
	// consumed (0 for register-direct forms, up to 2 for indexed and
	// absolute-long modes).
	LoadEA(buf *hostbuf.Buffer, out regalloc.HostReg, modeBits uint8, stream *m68k.Stream) (extWords int, err error)
}

// PCAdvancer inserts the host code that advances the cached guest
// program counter by a fixed number of bytes.
type PCAdvancer interface {
	AdvancePC(buf *hostbuf.Buffer, bytes int)
}

// ExceptionEmitter raises a guest exception (by vector number) and
// terminates the block being translated.
type ExceptionEmitter interface {
	EmitException(buf *hostbuf.Buffer, vector uint32, aux uint32)
}

const vectorIllegalInstruction = 4

// Core bundles every collaborator the line-E emitters are written
// against. One Core is built per translated block by the outer driver
// and handed down through every emit call.
type Core struct {
	Backend hostisa.Backend
	Alloc   regalloc.Allocator
	EA      EAEmitter
	PC      PCAdvancer
	Exc     ExceptionEmitter
}

// NewCore wires a Core from its collaborators.
func NewCore(backend hostisa.Backend, alloc regalloc.Allocator, ea EAEmitter, pc PCAdvancer, exc ExceptionEmitter) *Core {
	return &Core{Backend: backend, Alloc: alloc, EA: ea, PC: pc, Exc: exc}
}

// EmitLineE is the family entrypoint: emit_line_e. It reads one guest
// opcode from stream, tries the byte-reverse peephole, and otherwise
// dispatches through the table. guestInsns reports how many guest
// instructions were consumed (1, or 3 when the peephole fires).
func (c *Core) EmitLineE(buf *hostbuf.Buffer, stream *m68k.Stream, updateMask m68k.CCRMask) (guestInsns int, err error) {
	opcode := stream.Opcode()

	if n, ok, perr := c.tryByteReversePeephole(buf, opcode, stream, updateMask); ok {
		return n, perr
	}

	e := table[opcode&0x0FFF]
	if e.emit == nil {
		c.PC.AdvancePC(buf, 2)
		c.Exc.EmitException(buf, vectorIllegalInstruction, uint32(opcode))
		return 1, nil
	}
	if err := e.emit(c, buf, opcode, stream, updateMask&e.sets); err != nil {
		return 0, err
	}
	return 1, nil
}

// SRInfo is the sr_info query: the CCR bits opcode reads and writes.
func SRInfo(opcode uint16) (needs, sets m68k.CCRMask) {
	e := table[opcode&0x0FFF]
	if e.emit == nil {
		return m68k.AllFlags, 0
	}
	return e.needs, e.sets
}

// Length is the line_e_length query: the encoded length, in 16-bit
// words, of the guest instruction at the front of stream.
func Length(stream *m68k.Stream, ea EAEmitter) (int, error) {
	opcode := stream.Opcode()
	e := table[opcode&0x0FFF]
	if e.emit == nil {
		return 1, nil
	}
	length := e.baseLength
	if e.hasEA {
		// Peek the EA length without emitting anything by handing the
		// emitter a scratch buffer; the real address register content
		// is irrelevant to the word count.
		scratch := hostbuf.New()
		n, err := ea.LoadEA(scratch, 0, uint8(opcode&0x3F), stream)
		if err != nil {
			return 0, err
		}
		length += n
	}
	return length, nil
}
