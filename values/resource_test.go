package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewResourceGetsAUniqueID(t *testing.T) {
	a := NewResource("file-handle-1")
	b := NewResource("file-handle-1")
	assert.NotEqual(t, ResourceData(a).ID, ResourceData(b).ID)
	assert.Equal(t, "file-handle-1", ResourceData(a).Payload)
}

func TestResourceHashIsStableAndTypeIsResource(t *testing.T) {
	r := NewResource(42)
	assert.Equal(t, ResourceT, TypeOf(r))
	assert.Equal(t, Hash(r, nil), Hash(r, nil))
}

func TestResourceDataOnNonResourceIsNil(t *testing.T) {
	assert.Nil(t, ResourceData(Int(1)))
}
