package hostisa

// ARM-family instruction field bit positions, shared by the ARM32
// backend and (where the AArch64 encoding reuses the same field, e.g.
// the condition-ish Rd/Rn slots of a different instruction class) noted
// in aarch64.go where they diverge.
const (
	condShift = 28
	opcShift  = 21
	sBitShift = 20
	rnShift   = 16
	rdShift   = 12
	rsShift   = 8

	pBitShift = 24
	uBitShift = 23
	bBitShift = 22
	wBitShift = 21 // ARM32 LDR/STR W (writeback) bit position
	lBitShift = 20
)

// arm32 condition field value used for every host instruction the core
// emits: line-E host sequences are unconditional at the host level
// (guest conditionality belongs to the branch family, not this one).
const condAL = 0xE

// Data-processing opcodes (ARM32), mirrored from the teacher encoder.
const (
	dpAND = 0x0
	dpEOR = 0x1
	dpSUB = 0x2
	dpRSB = 0x3
	dpADD = 0x4
	dpADC = 0x5
	dpSBC = 0x6
	dpRSC = 0x7
	dpTST = 0x8
	dpTEQ = 0x9
	dpCMP = 0xA
	dpCMN = 0xB
	dpORR = 0xC
	dpMOV = 0xD
	dpBIC = 0xE
	dpMVN = 0xF
)
