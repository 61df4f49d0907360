package vm

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/minilang/ml/opcodes"
	"github.com/minilang/ml/values"
)

// Decl is one link in a frame's visible-declaration chain, used only for
// debug reporting.
type Decl struct {
	Name  string
	Index int
	Next  *Decl
}

// ClosureInfo is the immutable, emitter-produced description of a bytecode
// closure's shape: its entry instruction, frame size, a
// signed parameter count (negative means variadic, the bit-complement
// giving the named arity), a parameter-name table for named-argument
// calls, upvalue count, and a SHA-256 content hash so two closures built
// from the same info hash and compare equal regardless of which call
// produced them.
type ClosureInfo struct {
	Source      string
	Entry       *opcodes.Instruction
	Return      *opcodes.Instruction // default on_error / fall-through-return target
	FrameSize   int
	NumParams   int // negative => variadic, ^NumParams is the named arity
	ParamNames  []string
	NumUpvalues int
	Decls       *Decl
	Hash        [sha256.Size]byte
}

// NumArity returns the closure's declared (non-variadic) parameter count
// and whether it is variadic.
func (ci *ClosureInfo) NumArity() (n int, variadic bool) {
	if ci.NumParams < 0 {
		return ^ci.NumParams, true
	}
	return ci.NumParams, false
}

// NewClosureInfo builds closure info and computes its content hash by
// walking the instruction graph. The walk tracks visited instructions so
// cyclic graphs (loop back-edges, LINK chains) terminate.
func NewClosureInfo(source string, entry *opcodes.Instruction, frameSize, numParams int, paramNames []string, numUpvalues int, decls *Decl) *ClosureInfo {
	ci := &ClosureInfo{
		Source:      source,
		Entry:       entry,
		Return:      nil,
		FrameSize:   frameSize,
		NumParams:   numParams,
		ParamNames:  paramNames,
		NumUpvalues: numUpvalues,
		Decls:       decls,
	}
	// Return is left nil: no active try scope means an error propagates
	// straight to the caller rather than jumping within this frame's own
	// instruction graph.
	ci.Hash = contentHash(ci)
	return ci
}

func contentHash(ci *ClosureInfo) [sha256.Size]byte {
	h := sha256.New()
	var buf [8]byte
	writeInt := func(n int) {
		binary.BigEndian.PutUint64(buf[:], uint64(int64(n)))
		h.Write(buf[:])
	}
	writeInt(ci.FrameSize)
	writeInt(ci.NumParams)
	writeInt(ci.NumUpvalues)
	for _, n := range ci.ParamNames {
		h.Write([]byte(n))
		h.Write([]byte{0})
	}
	visited := map[*opcodes.Instruction]bool{}
	var walk func(in *opcodes.Instruction)
	walk = func(in *opcodes.Instruction) {
		if in == nil || visited[in] {
			return
		}
		visited[in] = true
		h.Write([]byte{byte(in.Op)})
		writeInt(in.Line)
		for _, p := range in.Params {
			switch pv := p.(type) {
			case *opcodes.Instruction:
				walk(pv)
			case int:
				writeInt(pv)
			case string:
				h.Write([]byte(pv))
			}
		}
	}
	walk(ci.Entry)
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ClosureT is the type of a bound bytecode closure.
var ClosureT = values.NewType(values.AnyT, "Closure")

// Closure pairs immutable closure info with its captured upvalues. Two
// closures with the same Info and equal Upvalues hash identically, since
// ClosureT.Hash only reads Info.Hash.
type Closure struct {
	Info     *ClosureInfo
	Upvalues []*values.Value
	DeclType *values.Type // set by CLOSURE_TYPED; the type the emitter attached to this closure (e.g. a method's declaring type)
}

func init() {
	ClosureT.Call = func(caller values.Caller, v *values.Value, args []*values.Value) error {
		cl := v.Data.(*Closure)
		return Invoke(ctxFrom(caller), caller, cl, args)
	}
	ClosureT.Hash = func(v *values.Value, _ *values.HashLink) int64 {
		cl := v.Data.(*Closure)
		return int64(binary.BigEndian.Uint64(cl.Info.Hash[:8]))
	}
}

// NewClosure constructs a closure value over info, capturing upvalues.
func NewClosure(info *ClosureInfo, upvalues []*values.Value) *values.Value {
	return values.NewOfType(ClosureT, &Closure{Info: info, Upvalues: upvalues})
}

// ClosureData extracts the *Closure payload from v, or nil.
func ClosureData(v *values.Value) *Closure {
	d, _ := v.Data.(*Closure)
	return d
}
