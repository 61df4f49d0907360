package compound

import (
	"strings"

	"github.com/minilang/ml/values"
)

// StringBufferT is the type of a growable string-under-construction buffer.
var StringBufferT = values.NewType(values.AnyT, "StringBuffer")

// stringBufferNodeSize is each chain node's byte capacity: a new node is
// linked on once it fills, balancing allocation count against wasted tail
// space for typical short-to-medium built strings.
const stringBufferNodeSize = 248

type stringBufferNode struct {
	data [stringBufferNodeSize]byte
	used int
	next *stringBufferNode
}

// StringBuffer accumulates string content across a chain of fixed-size
// nodes so STRING_NEW/STRING_ADDS/STRING_ADD can append without
// repeatedly reallocating a growing contiguous buffer.
type StringBuffer struct {
	head, tail *stringBufferNode
	length     int
}

// NewStringBuffer constructs an empty buffer.
func NewStringBuffer() *values.Value {
	return values.NewOfType(StringBufferT, &StringBuffer{})
}

// StringBufferData extracts the *StringBuffer payload from v, or nil.
func StringBufferData(v *values.Value) *StringBuffer {
	d, _ := v.Data.(*StringBuffer)
	return d
}

// WriteString appends s to the buffer, spilling into new chain nodes as
// needed (STRING_ADDS/STRING_ADD opcodes).
func (b *StringBuffer) WriteString(s string) {
	b.length += len(s)
	for len(s) > 0 {
		if b.tail == nil || b.tail.used == stringBufferNodeSize {
			n := &stringBufferNode{}
			if b.tail != nil {
				b.tail.next = n
			} else {
				b.head = n
			}
			b.tail = n
		}
		n := b.tail
		room := stringBufferNodeSize - n.used
		take := len(s)
		if take > room {
			take = room
		}
		copy(n.data[n.used:], s[:take])
		n.used += take
		s = s[take:]
	}
}

// WriteByte appends a single byte.
func (b *StringBuffer) WriteByte(c byte) {
	b.WriteString(string(c))
}

// Len returns the total accumulated byte length.
func (b *StringBuffer) Len() int { return b.length }

// String renders the accumulated content as a single Go string (STRING_END
// opcode: finalizes the buffer into an immutable minilang String value).
func (b *StringBuffer) String() string {
	var sb strings.Builder
	sb.Grow(b.length)
	for n := b.head; n != nil; n = n.next {
		sb.Write(n.data[:n.used])
	}
	return sb.String()
}
