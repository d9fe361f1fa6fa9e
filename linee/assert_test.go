package linee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrojit/m68k-arm-jit/m68k"
)

// TestInspectReportsMasksWithinCCRBits is an assertion-style companion
// to the table-partition coverage checked in linee_test.go, written
// with testify to match the corpus's other assertion-heavy suites.
func TestInspectReportsMasksWithinCCRBits(t *testing.T) {
	for i := 0; i < TableSize; i++ {
		info := Inspect(uint16(i))
		if !info.Implemented {
			continue
		}
		assert.Zero(t, info.Needs & ^m68k.AllFlags, "needs mask out of range at index %#x", i)
		assert.Zero(t, info.Sets & ^m68k.AllFlags, "sets mask out of range at index %#x", i)
	}
}

func TestSRInfoRegisterShiftMatchesInspect(t *testing.T) {
	const opcode = 0xE348 // LSL.W #1,D0
	needs, sets := SRInfo(opcode)
	info := Inspect(opcode)

	require.True(t, info.Implemented, "opcode %#04x should have a concrete emitter", opcode)
	assert.Equal(t, info.Needs, needs)
	assert.Equal(t, info.Sets, sets)
}
