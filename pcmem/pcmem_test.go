package pcmem

import (
	"testing"

	"github.com/retrojit/m68k-arm-jit/hostbuf"
	"github.com/retrojit/m68k-arm-jit/hostisa"
)

func TestAdvancePCEmitsAdd(t *testing.T) {
	backend := hostisa.AArch64{}
	a := NewAdvancer(backend, 29)
	buf := hostbuf.New()
	a.AdvancePC(buf, 4)

	want := backend.ADDImm(29, 29, 4)
	if len(buf.Words) != len(want) {
		t.Fatalf("got %d words, want %d", len(buf.Words), len(want))
	}
	for i := range want {
		if buf.Words[i] != want[i] {
			t.Errorf("word %d: got %#x, want %#x", i, buf.Words[i], want[i])
		}
	}
}

func TestAdvancePCByZeroEmitsNothing(t *testing.T) {
	a := NewAdvancer(hostisa.AArch64{}, 29)
	buf := hostbuf.New()
	a.AdvancePC(buf, 0)
	if len(buf.Words) != 0 {
		t.Errorf("expected no instructions for a zero-byte advance, got %d", len(buf.Words))
	}
}

func TestEmitExceptionWritesVectorAuxThenTraps(t *testing.T) {
	backend := hostisa.AArch64{}
	e := NewExceptions(backend, 28, 27)
	buf := hostbuf.New()
	e.EmitException(buf, 4, 0xE358)

	var want []uint32
	want = append(want, backend.MOVImm(28, 4)...)
	want = append(want, backend.MOVImm(27, 0xE358)...)
	want = append(want, backend.Trap(4)...)

	if len(buf.Words) != len(want) {
		t.Fatalf("got %d words, want %d", len(buf.Words), len(want))
	}
	for i := range want {
		if buf.Words[i] != want[i] {
			t.Errorf("word %d: got %#x, want %#x", i, buf.Words[i], want[i])
		}
	}
}
