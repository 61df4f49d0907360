package values

import "github.com/google/uuid"

// ResourceT is the type of an opaque embedder-supplied handle: an
// embedder's own native resource - a file descriptor, a socket, a DB
// cursor - is wrapped this way rather than forced through one of the core
// compound types. ResourceT itself carries no Call/Deref/Assign slot;
// an embedder wanting resource-specific behaviour derives its own type
// with NewType(ResourceT, ...) and installs its own slots, the same way
// the core's own built-in types do.
var ResourceT = NewType(AnyT, "Resource")

// Resource pairs an embedder-opaque payload with a process-unique ID, so
// two resources wrapping equal-looking native data still hash and compare
// distinctly (hash otherwise falls back to the identity hash, which is
// enough on its own; the ID additionally gives an
// embedder something stable to log or key a side-table by across a
// resource's lifetime, e.g. in trace output).
type Resource struct {
	ID      uuid.UUID
	Payload interface{}
}

func init() {
	ResourceT.Hash = func(v *Value, _ *HashLink) int64 {
		r := v.Data.(*Resource)
		lo, hi := uuid128(r.ID)
		return int64(lo ^ hi)
	}
}

// uuid128 splits a UUID's 16 bytes into two 64-bit halves for hashing.
func uuid128(id uuid.UUID) (lo, hi uint64) {
	for i := 0; i < 8; i++ {
		lo = lo<<8 | uint64(id[i])
	}
	for i := 8; i < 16; i++ {
		hi = hi<<8 | uint64(id[i])
	}
	return lo, hi
}

// NewResource wraps payload as a fresh, uniquely-identified resource value.
func NewResource(payload interface{}) *Value {
	return NewOfType(ResourceT, &Resource{ID: uuid.New(), Payload: payload})
}

// ResourceData extracts the *Resource payload from v, or nil.
func ResourceData(v *Value) *Resource {
	d, _ := v.Data.(*Resource)
	return d
}
