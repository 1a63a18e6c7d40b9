package engine

// DefaultBufferSize is the number of recent characters kept for matching
const DefaultBufferSize = 100

// Buffer is a bounded window over the most recently typed characters. It is
// not safe for concurrent use; Engine guards it with its mutex.
type Buffer struct {
	runes []rune
	size  int
}

// NewBuffer creates a buffer holding at most size runes
func NewBuffer(size int) *Buffer {
	if size < 2 {
		size = DefaultBufferSize
	}
	return &Buffer{
		runes: make([]rune, 0, size),
		size:  size,
	}
}

// Push appends r, dropping the oldest rune when the window is full
func (b *Buffer) Push(r rune) {
	if len(b.runes) == b.size {
		copy(b.runes, b.runes[1:])
		b.runes = b.runes[:len(b.runes)-1]
	}
	b.runes = append(b.runes, r)
}

// Pop removes the most recent rune. It is a no-op on an empty buffer.
func (b *Buffer) Pop() {
	if len(b.runes) > 0 {
		b.runes = b.runes[:len(b.runes)-1]
	}
}

// Len returns the number of buffered runes
func (b *Buffer) Len() int {
	return len(b.runes)
}

// Cap returns the window size
func (b *Buffer) Cap() int {
	return b.size
}

// String returns the buffered text
func (b *Buffer) String() string {
	return string(b.runes)
}

// Runes returns the buffered runes. The slice is only valid until the next
// mutation.
func (b *Buffer) Runes() []rune {
	return b.runes
}

// TrimSuffix removes suffix from the end of the buffer if it is there
func (b *Buffer) TrimSuffix(suffix string) bool {
	s := []rune(suffix)
	if len(s) == 0 || len(s) > len(b.runes) {
		return false
	}
	tail := b.runes[len(b.runes)-len(s):]
	for i := range s {
		if tail[i] != s[i] {
			return false
		}
	}
	b.runes = b.runes[:len(b.runes)-len(s)]
	return true
}

// Reset empties the buffer
func (b *Buffer) Reset() {
	b.runes = b.runes[:0]
}
