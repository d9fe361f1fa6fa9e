// Package pcmem implements the two small collaborators the linee core
// needs beyond addressing and register allocation: advancing the
// cached guest program counter, and raising a guest exception. Both
// are grounded on the teacher's CPU bookkeeping (vm/cpu.go's
// IncrementPC/Branch and the VM's exception vector dispatch), adapted
// from interpreter state mutation into JIT code emission.
package pcmem

import (
	"github.com/retrojit/m68k-arm-jit/hostbuf"
	"github.com/retrojit/m68k-arm-jit/hostisa"
	"github.com/retrojit/m68k-arm-jit/regalloc"
)

// Advancer is the reference PCAdvancer: the guest PC lives for the
// duration of a translated block in a reserved host register (one of
// the Pool's "reserved" slots, alongside the CCR cache), and advancing
// it is a single host ADD.
type Advancer struct {
	Backend hostisa.Backend
	PCReg   regalloc.HostReg
}

// NewAdvancer builds an Advancer over the host register holding the
// guest PC.
func NewAdvancer(backend hostisa.Backend, pcReg regalloc.HostReg) *Advancer {
	return &Advancer{Backend: backend, PCReg: pcReg}
}

// AdvancePC implements linee.PCAdvancer.
func (a *Advancer) AdvancePC(buf *hostbuf.Buffer, bytes int) {
	if bytes == 0 {
		return
	}
	buf.EmitAll(a.Backend.ADDImm(a.PCReg, a.PCReg, uint32(bytes)))
}

// Exceptions is the reference ExceptionEmitter. Exception vectors are
// not dispatched inline in translated code: the block simply records
// the vector and faulting opcode/address at a fixed scratch location
// and traps out to the host runtime, which owns the guest exception
// table the way the teacher's VM owns its stack-frame push on a guest
// trap.
type Exceptions struct {
	Backend hostisa.Backend
	// VectorReg and AuxReg are reserved host registers the runtime
	// reads after a Trap to learn what happened, mirroring how the
	// teacher's VM reads CPU.PC and the faulting instruction after an
	// interpreter-level panic/recover around a single step.
	VectorReg regalloc.HostReg
	AuxReg    regalloc.HostReg
}

// NewExceptions builds an Exceptions emitter over the two scratch
// registers the runtime inspects after a trap.
func NewExceptions(backend hostisa.Backend, vectorReg, auxReg regalloc.HostReg) *Exceptions {
	return &Exceptions{Backend: backend, VectorReg: vectorReg, AuxReg: auxReg}
}

// EmitException implements linee.ExceptionEmitter: it records vector
// and aux into their scratch registers and traps to the runtime. The
// translated block never resumes past this point, matching the 68000
// requirement that an illegal instruction aborts the current
// instruction's effects before the exception is taken.
func (e *Exceptions) EmitException(buf *hostbuf.Buffer, vector uint32, aux uint32) {
	buf.EmitAll(e.Backend.MOVImm(e.VectorReg, uint64(vector)))
	buf.EmitAll(e.Backend.MOVImm(e.AuxReg, uint64(aux)))
	buf.EmitAll(e.Backend.Trap(vector))
}
