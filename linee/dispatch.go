package linee

import (
	"github.com/retrojit/m68k-arm-jit/hostbuf"
	"github.com/retrojit/m68k-arm-jit/m68k"
)

// emitFunc is the per-opcode emitter signature stored in the dispatch
// table: it consumes the already-narrowed update mask (sets_mask ∩
// update_mask) and appends host code for one guest instruction.
type emitFunc func(c *Core, buf *hostbuf.Buffer, opcode uint16, stream *m68k.Stream, mask m68k.CCRMask) error

// entry is one dispatch table row: {emitter, needs_mask, sets_mask,
// base_length_words, has_ea, op_size}.
type entry struct {
	emit       emitFunc
	needs      m68k.CCRMask
	sets       m68k.CCRMask
	baseLength int
	hasEA      bool
	opSize     m68k.Size
}

// table is the 4,096-entry designated initialiser, built once at
// package init from a small set of pattern rules (one per opcode
// family/variant) rather than hand-enumerated, per the flat-table
// re-architecture. It is read-only after init.
var table [4096]entry

func init() {
	buildShiftRegisterRules(&table)
	buildShiftMemoryRules(&table)
	buildBitfieldRules(&table)
}

// shiftType is the 2-bit operation selector common to both shift/rotate
// opcode forms.
type shiftType uint8

const (
	typeASx  shiftType = 0
	typeLSx  shiftType = 1
	typeROXx shiftType = 2
	typeROx  shiftType = 3
)

func (t shiftType) needsSets() (needs, sets m68k.CCRMask) {
	switch t {
	case typeASx, typeLSx:
		return 0, m68k.AllFlags
	case typeROXx:
		return m68k.FlagX, m68k.AllFlags
	case typeROx:
		return 0, m68k.FlagN | m68k.FlagZ | m68k.FlagV | m68k.FlagC
	default:
		return 0, 0
	}
}

// buildShiftRegisterRules fills every index whose bits 7-6 are not 11:
// the register shift/rotate form, size encoded directly in those bits.
func buildShiftRegisterRules(t *[4096]entry) {
	sizes := [3]m68k.Size{m68k.Byte, m68k.Word, m68k.Long}
	for countReg := uint16(0); countReg < 8; countReg++ {
		for dir := uint16(0); dir < 2; dir++ {
			for sizeBits := uint16(0); sizeBits < 3; sizeBits++ {
				for ir := uint16(0); ir < 2; ir++ {
					for typ := uint16(0); typ < 4; typ++ {
						for reg := uint16(0); reg < 8; reg++ {
							idx := (countReg << 9) | (dir << 8) | (sizeBits << 6) | (ir << 5) | (typ << 3) | reg
							needs, sets := shiftType(typ).needsSets()
							t[idx] = entry{
								emit:       emitShiftReg,
								needs:      needs,
								sets:       sets,
								baseLength: 1,
								hasEA:      false,
								opSize:     sizes[sizeBits],
							}
						}
					}
				}
			}
		}
	}
}

// buildShiftMemoryRules fills bit11=0, bits7-6=11: the fixed-word-size
// memory shift/rotate form, with an EA instead of a register/count
// field.
func buildShiftMemoryRules(t *[4096]entry) {
	for typ := uint16(0); typ < 4; typ++ {
		for dir := uint16(0); dir < 2; dir++ {
			for ea := uint16(0); ea < 64; ea++ {
				idx := (typ << 9) | (dir << 8) | (0b11 << 6) | ea
				needs, sets := shiftType(typ).needsSets()
				t[idx] = entry{
					emit:       emitShiftMem,
					needs:      needs,
					sets:       sets,
					baseLength: 1,
					hasEA:      true,
					opSize:     m68k.Word,
				}
			}
		}
	}
}

// bfOp is the 3-bit bit-field operation selector.
type bfOp uint8

const (
	bfTST bfOp = iota
	bfEXTU
	bfCHG
	bfEXTS
	bfCLR
	bfFFO
	bfSET
	bfINS
)

var bfFlagSets = m68k.FlagN | m68k.FlagZ | m68k.FlagV | m68k.FlagC

// buildBitfieldRules fills bit11=1, bits7-6=11: the bit-field group. An
// extension word always follows, so base length is 2 guest words before
// any EA extension words.
func buildBitfieldRules(t *[4096]entry) {
	for op := uint16(0); op < 8; op++ {
		for ea := uint16(0); ea < 64; ea++ {
			idx := (1 << 11) | (op << 8) | (0b11 << 6) | ea
			t[idx] = entry{
				emit:       emitBitfield,
				needs:      0,
				sets:       bfFlagSets,
				baseLength: 2,
				// Register-source form (ea mode 0, Dn direct) has no
				// EA extension words; only the memory-source forms do.
				hasEA:  (ea>>3)&7 != 0,
				opSize: m68k.Long,
			}
		}
	}
}
