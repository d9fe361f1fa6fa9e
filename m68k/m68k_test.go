package m68k

import "testing"

func TestSizeMaskCoversOnlyLowBits(t *testing.T) {
	if Byte.Mask() != 0xFF {
		t.Errorf("Byte.Mask(): got %#x, want 0xff", Byte.Mask())
	}
	if Word.Mask() != 0xFFFF {
		t.Errorf("Word.Mask(): got %#x, want 0xffff", Word.Mask())
	}
	if Long.Mask() != 0xFFFFFFFF {
		t.Errorf("Long.Mask(): got %#x, want 0xffffffff", Long.Mask())
	}
}

func TestSizeBits(t *testing.T) {
	if Byte.Bits() != 8 || Word.Bits() != 16 || Long.Bits() != 32 {
		t.Errorf("got B=%d W=%d L=%d, want 8/16/32", Byte.Bits(), Word.Bits(), Long.Bits())
	}
}

func TestDAndAMaskRegisterNumberToThreeBits(t *testing.T) {
	r := D(11) // only the low 3 bits of the register number are meaningful
	if r.Num != 3 {
		t.Errorf("D(11).Num: got %d, want 3", r.Num)
	}
	if r.Class != DataReg {
		t.Error("D() must produce a data register")
	}
	a := A(9)
	if a.Num != 1 || a.Class != AddressReg {
		t.Errorf("A(9): got {%d %d}, want {1 AddressReg}", a.Num, a.Class)
	}
}

func TestCCRMaskHasAndString(t *testing.T) {
	m := FlagN | FlagC
	if !m.Has(FlagN) || !m.Has(FlagC) {
		t.Error("expected Has to report both set flags")
	}
	if m.Has(FlagZ) || m.Has(FlagV) || m.Has(FlagX) {
		t.Error("expected Has to report unset flags as false")
	}
	if CCRMask(0).String() != "-" {
		t.Errorf("empty mask String(): got %q, want \"-\"", CCRMask(0).String())
	}
}

func TestStreamOpcodeAndNext(t *testing.T) {
	s := NewStream([]uint16{0x1234, 0xAAAA, 0xBBBB})
	if s.Opcode() != 0x1234 {
		t.Errorf("Opcode(): got %#x, want 0x1234", s.Opcode())
	}
	w, err := s.Next()
	if err != nil || w != 0xAAAA {
		t.Fatalf("Next(): got (%#x, %v), want (0xaaaa, nil)", w, err)
	}
	if s.Consumed() != 2 {
		t.Errorf("Consumed(): got %d, want 2", s.Consumed())
	}
	w, err = s.Next()
	if err != nil || w != 0xBBBB {
		t.Fatalf("second Next(): got (%#x, %v), want (0xbbbb, nil)", w, err)
	}
	if _, err := s.Next(); err == nil {
		t.Error("expected an error reading past the end of the stream")
	}
}

func TestStreamOpcodeOnEmptyStream(t *testing.T) {
	s := NewStream(nil)
	if s.Opcode() != 0 {
		t.Errorf("Opcode() on empty stream: got %#x, want 0", s.Opcode())
	}
}
