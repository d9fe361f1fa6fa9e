// Package regalloc defines the register-allocator contract the line-E
// core consumes, plus a reference implementation used by the core's own
// tests and by the developer-facing tooling.
//
// The real allocator lives alongside the outer dispatch driver (it is
// shared across every instruction family, not just line E) and is
// therefore treated as an external collaborator: the core only ever
// talks to it through the Allocator interface below.
package regalloc

import (
	"fmt"

	"github.com/retrojit/m68k-arm-jit/m68k"
)

// HostReg identifies a host register by backend-relative number. What
// it names (an AArch64 Xn or an ARM32 Rn) is a property of the
// hostisa.Backend in use, not of the allocator.
type HostReg uint8

// Handle is an opaque allocation: either a guest-register binding (Map*)
// or a caller-owned temporary (Copy, AllocTemp). It carries enough
// information for Free to release the right thing.
type Handle struct {
	Reg      HostReg
	temp     bool
	guest    m68k.GuestReg
	hasGuest bool
}

// Allocator binds guest registers to host registers on demand, tracks
// dirtiness, and manages temporaries. Every AllocTemp/Copy must be
// matched by a Free on every exit path of the emitter that allocated it.
type Allocator interface {
	// MapRead binds reg for reading; the returned handle must not be
	// written through without also calling SetDirty or MapWrite.
	MapRead(reg m68k.GuestReg) (Handle, error)
	// MapWrite binds reg for writing, invalidating any prior mapping,
	// and marks it dirty.
	MapWrite(reg m68k.GuestReg) (Handle, error)
	// Copy produces an independent temporary holding a copy of reg's
	// current value, owned by the caller until Free.
	Copy(reg m68k.GuestReg) (Handle, error)
	// AllocTemp reserves a scratch host register with no guest binding.
	AllocTemp() (Handle, error)
	// Free releases a handle obtained from Copy or AllocTemp. Freeing a
	// Map* handle is a no-op: guest bindings persist across emitters.
	Free(h Handle)
	// SetDirty marks a previously mapped guest register as dirty.
	SetDirty(reg m68k.GuestReg)
	// ModifyCC returns the host register caching the guest CCR and
	// marks it dirty for the remainder of this emission.
	ModifyCC() HostReg
}

// Pool is the reference Allocator: a direct binding table over a fixed
// host register file, modeled on the bookkeeping in a typical ARM
// register-file implementation (one host slot per guest register, a
// dirty bit, and a free list of temporaries).
type Pool struct {
	numHost  int
	ccReg    HostReg
	reserved map[HostReg]bool // registers never handed out as temps (PC cache, CC cache, link reg...)

	binding map[m68k.GuestReg]HostReg
	dirty   map[m68k.GuestReg]bool

	free []HostReg // available temporaries, LIFO
	used map[HostReg]bool
}

// NewPool builds a pool over host registers [0, numHost), reserving
// ccReg for the CCR cache and any additional registers listed in
// reserved (e.g. the link register, the guest-PC cache register).
func NewPool(numHost int, ccReg HostReg, reserved ...HostReg) *Pool {
	p := &Pool{
		numHost:  numHost,
		ccReg:    ccReg,
		reserved: map[HostReg]bool{ccReg: true},
		binding:  make(map[m68k.GuestReg]HostReg),
		dirty:    make(map[m68k.GuestReg]bool),
		used:     make(map[HostReg]bool),
	}
	for _, r := range reserved {
		p.reserved[r] = true
	}
	// Build the free list in descending order so low registers (often
	// cheaper to address in short-form encodings) are handed out first.
	for r := HostReg(numHost - 1); ; r-- {
		if !p.reserved[r] {
			p.free = append(p.free, r)
		}
		if r == 0 {
			break
		}
	}
	return p
}

func (p *Pool) takeFree() (HostReg, error) {
	if len(p.free) == 0 {
		return 0, fmt.Errorf("regalloc: host register pool exhausted (%d registers, %d reserved)", p.numHost, len(p.reserved))
	}
	r := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.used[r] = true
	return r, nil
}

func (p *Pool) bindingFor(reg m68k.GuestReg) (HostReg, bool) {
	r, ok := p.binding[reg]
	return r, ok
}

// MapRead implements Allocator.
func (p *Pool) MapRead(reg m68k.GuestReg) (Handle, error) {
	if r, ok := p.bindingFor(reg); ok {
		return Handle{Reg: r, guest: reg, hasGuest: true}, nil
	}
	r, err := p.takeFree()
	if err != nil {
		return Handle{}, err
	}
	p.binding[reg] = r
	return Handle{Reg: r, guest: reg, hasGuest: true}, nil
}

// MapWrite implements Allocator. A prior binding for reg is dropped (its
// host register returns to the free pool) and a fresh one is issued, so
// stale copies of the guest register's old value are never read back
// through this binding.
func (p *Pool) MapWrite(reg m68k.GuestReg) (Handle, error) {
	if r, ok := p.bindingFor(reg); ok {
		delete(p.binding, reg)
		delete(p.used, r)
		p.free = append(p.free, r)
	}
	r, err := p.takeFree()
	if err != nil {
		return Handle{}, err
	}
	p.binding[reg] = r
	p.dirty[reg] = true
	return Handle{Reg: r, guest: reg, hasGuest: true}, nil
}

// Copy implements Allocator.
func (p *Pool) Copy(reg m68k.GuestReg) (Handle, error) {
	r, err := p.takeFree()
	if err != nil {
		return Handle{}, err
	}
	return Handle{Reg: r, temp: true}, nil
}

// AllocTemp implements Allocator.
func (p *Pool) AllocTemp() (Handle, error) {
	r, err := p.takeFree()
	if err != nil {
		return Handle{}, err
	}
	return Handle{Reg: r, temp: true}, nil
}

// Free implements Allocator.
func (p *Pool) Free(h Handle) {
	if !h.temp {
		return
	}
	if p.used[h.Reg] {
		delete(p.used, h.Reg)
		p.free = append(p.free, h.Reg)
	}
}

// SetDirty implements Allocator.
func (p *Pool) SetDirty(reg m68k.GuestReg) {
	p.dirty[reg] = true
}

// IsDirty reports whether reg has been written since it was mapped.
func (p *Pool) IsDirty(reg m68k.GuestReg) bool {
	return p.dirty[reg]
}

// ModifyCC implements Allocator.
func (p *Pool) ModifyCC() HostReg {
	return p.ccReg
}

// Reset drops all guest bindings, returning every non-reserved register
// to the free pool. Called by the driver between translated blocks.
func (p *Pool) Reset() {
	p.binding = make(map[m68k.GuestReg]HostReg)
	p.dirty = make(map[m68k.GuestReg]bool)
	p.used = make(map[HostReg]bool)
	p.free = p.free[:0]
	for r := HostReg(p.numHost - 1); ; r-- {
		if !p.reserved[r] {
			p.free = append(p.free, r)
		}
		if r == 0 {
			break
		}
	}
}
