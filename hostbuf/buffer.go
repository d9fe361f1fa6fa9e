// Package hostbuf implements the append-only host instruction buffer.
// The core never reads back what it has written: emitters take a
// *Buffer and advance it, and the caller owns the backing storage.
package hostbuf

// Buffer is a packed, append-only sequence of 32-bit native host
// instruction words.
type Buffer struct {
	Words []uint32
}

// New returns an empty buffer ready for appending.
func New() *Buffer {
	return &Buffer{}
}

// Emit appends one host instruction word and returns the new cursor
// (the buffer's length after the append).
func (b *Buffer) Emit(word uint32) int {
	b.Words = append(b.Words, word)
	return len(b.Words)
}

// EmitAll appends a sequence of host instruction words in order.
func (b *Buffer) EmitAll(words []uint32) int {
	b.Words = append(b.Words, words...)
	return len(b.Words)
}

// Cursor returns the current write position (== len(Words)).
func (b *Buffer) Cursor() int {
	return len(b.Words)
}
