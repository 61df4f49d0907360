package opcodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpcodeNamesAreDistinct(t *testing.T) {
	seen := map[string]Opcode{}
	for op := NIL; op <= IF_DEBUG; op++ {
		name := op.String()
		assert.NotEqual(t, "UNKNOWN", name, "opcode %d must be named", op)
		if prev, dup := seen[name]; dup {
			t.Fatalf("opcodes %d and %d share the name %q", prev, op, name)
		}
		seen[name] = op
	}
	assert.Equal(t, "UNKNOWN", Opcode(9999).String())
}

func TestNextReturnsTrailingInstructionParam(t *testing.T) {
	ret := New(RETURN, 2)
	load := New(LOAD, 1, 42, ret)

	assert.Same(t, ret, load.Next())
	assert.Nil(t, ret.Next(), "RETURN has no successor")

	// A trailing non-instruction param means no fall-through edge.
	local := New(LOCAL, 1, 0)
	assert.Nil(t, local.Next())
}

func TestPreemptPointsCoverSuspensionOpcodes(t *testing.T) {
	for _, op := range []Opcode{CALL, CONST_CALL, RESOLVE, FOR, ITER, VALUE, KEY, NEXT, SUSPEND, ASSIGN} {
		assert.True(t, PreemptPoints[op], "%s must be a preemption point", op)
	}
	for _, op := range []Opcode{NIL, LOAD, GOTO, RETURN} {
		assert.False(t, PreemptPoints[op], "%s must not be a preemption point", op)
	}
}
