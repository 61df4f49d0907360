package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minilang/ml/values"
)

type fakeRunner struct {
	resumed *values.Value
	err     error
}

func (r *fakeRunner) Resume(v *values.Value) error {
	r.resumed = v
	return r.err
}

func TestTickExhaustsQuantumAndResets(t *testing.T) {
	s := New(3, nil)
	assert.False(t, s.Tick())
	assert.False(t, s.Tick())
	assert.True(t, s.Tick())
	assert.False(t, s.Tick())
}

func TestNewDefaultsInvalidQuantum(t *testing.T) {
	s := New(0, nil)
	for i := 0; i < DefaultQuantum-1; i++ {
		require.False(t, s.Tick())
	}
	assert.True(t, s.Tick())
}

func TestEnqueueAssignsAUniqueIDAndDrainResumes(t *testing.T) {
	s := New(10, nil)
	r := &fakeRunner{}
	id := s.Enqueue(r, values.Int(7))
	assert.NotZero(t, id)

	require.NoError(t, s.Drain())
	require.NotNil(t, r.resumed)
	assert.Equal(t, int64(7), r.resumed.Data)
}

func TestDrainStopsOnFirstError(t *testing.T) {
	s := New(10, nil)
	boom := assert.AnError
	s.Enqueue(&fakeRunner{err: boom}, values.Nil)
	s.Enqueue(&fakeRunner{}, values.Nil)

	err := s.Drain()
	assert.Equal(t, boom, err)
}

func TestInlineQueueIsFIFO(t *testing.T) {
	q := &InlineQueue{}
	q.Push(Task{Value: values.Int(1)})
	q.Push(Task{Value: values.Int(2)})

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(1), first.Value.Data)

	second, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(2), second.Value.Data)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestWorkStealingQueuePopIsLIFOAndStealIsFIFO(t *testing.T) {
	q := &WorkStealingQueue{}
	q.Push(Task{Value: values.Int(1)})
	q.Push(Task{Value: values.Int(2)})
	q.Push(Task{Value: values.Int(3)})

	owned, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(3), owned.Value.Data, "owning thread pops its own most recent push")

	stolen, ok := q.Steal()
	require.True(t, ok)
	assert.Equal(t, int64(1), stolen.Value.Data, "a thief takes from the other end")
}

func TestSetQueueInstallsANewDestination(t *testing.T) {
	s := New(10, nil)
	shared := &WorkStealingQueue{}
	s.SetQueue(shared)
	s.Enqueue(&fakeRunner{}, values.Nil)

	_, ok := shared.Pop()
	assert.True(t, ok)
}
