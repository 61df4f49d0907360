package cborcodec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/minilang/ml/opcodes"
	"github.com/minilang/ml/values"
	"github.com/minilang/ml/vm"
)

// EncodeClosure serialises cl under the bytecode-closure tag. The
// instruction graph is walked once
// in visitation order, each node assigned an index; Params entries that
// reference another instruction are replaced by a TagInstrRef to that
// index, so the reader can allocate every instruction shell up front and
// wire successors afterwards by index (this also covers forward
// references, since loop bodies reference their own header before it is
// otherwise reachable).
func EncodeClosure(cl *vm.Closure) ([]byte, error) {
	node, err := encodeClosureNode(cl)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(node)
}

// DecodeClosure is EncodeClosure's inverse.
func DecodeClosure(data []byte) (*vm.Closure, error) {
	var node interface{}
	if err := cbor.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("cborcodec: %w", err)
	}
	tag, ok := node.(cbor.Tag)
	if !ok || tag.Number != TagClosure {
		return nil, fmt.Errorf("cborcodec: expected closure tag, got %T", node)
	}
	return decodeClosureTag(tag)
}

func encodeClosureNode(cl *vm.Closure) (interface{}, error) {
	infoNode, err := encodeClosureInfo(cl.Info)
	if err != nil {
		return nil, err
	}
	upvalues := make([]interface{}, len(cl.Upvalues))
	for i, uv := range cl.Upvalues {
		n, err := encodeNode(uv)
		if err != nil {
			return nil, err
		}
		upvalues[i] = n
	}
	return cbor.Tag{Number: TagClosure, Content: []interface{}{infoNode, upvalues}}, nil
}

// encodeClosureInfo walks info's instruction graph in visitation order and
// returns a positional array: [source, frameSize, numParams, paramNames,
// numUpvalues, hash, entryIndex, instructions]. Decl chains are debug-only
// metadata that do not affect execution or the content hash
// (vm.contentHash itself only reads Op/Line/int/string params and
// instruction successors, see vm/closure.go) so they are not round-tripped.
func encodeClosureInfo(info *vm.ClosureInfo) (interface{}, error) {
	order, index := walkInstructions(info.Entry)

	wireInsts := make([]interface{}, len(order))
	for i, in := range order {
		params := make([]interface{}, len(in.Params))
		for j, p := range in.Params {
			pv, err := encodeParam(p, index)
			if err != nil {
				return nil, fmt.Errorf("cborcodec: instruction %d param %d: %w", i, j, err)
			}
			params[j] = pv
		}
		wireInsts[i] = []interface{}{int64(in.Op), int64(in.Line), params}
	}

	paramNames := make([]interface{}, len(info.ParamNames))
	for i, n := range info.ParamNames {
		paramNames[i] = n
	}

	entryIndex := int64(-1)
	if idx, ok := index[info.Entry]; ok {
		entryIndex = int64(idx)
	}

	hash := append([]byte(nil), info.Hash[:]...)

	return []interface{}{
		info.Source,
		int64(info.FrameSize),
		int64(info.NumParams),
		paramNames,
		int64(info.NumUpvalues),
		hash,
		entryIndex,
		wireInsts,
	}, nil
}

// walkInstructions assigns each reachable instruction an index in
// visitation order (a BFS-ish DFS preorder), which is sufficient for the
// reader to allocate shells before resolving any reference, forward or
// back. A nested *vm.ClosureInfo param (CLOSURE/CLOSURE_TYPED)
// is encoded by its own independent encodeClosureInfo call with its own
// index space, so this walk does not cross into one.
func walkInstructions(entry *opcodes.Instruction) ([]*opcodes.Instruction, map[*opcodes.Instruction]int) {
	index := map[*opcodes.Instruction]int{}
	var order []*opcodes.Instruction
	var walk func(in *opcodes.Instruction)
	walk = func(in *opcodes.Instruction) {
		if in == nil {
			return
		}
		if _, seen := index[in]; seen {
			return
		}
		index[in] = len(order)
		order = append(order, in)
		for _, p := range in.Params {
			if succ, ok := p.(*opcodes.Instruction); ok {
				walk(succ)
			}
		}
	}
	walk(entry)
	return order, index
}

func encodeParam(p interface{}, index map[*opcodes.Instruction]int) (interface{}, error) {
	switch pv := p.(type) {
	case nil:
		return nil, nil
	case *opcodes.Instruction:
		idx, ok := index[pv]
		if !ok {
			return nil, fmt.Errorf("reference to unvisited instruction")
		}
		return cbor.Tag{Number: TagInstrRef, Content: int64(idx)}, nil
	case int:
		return int64(pv), nil
	case string:
		return pv, nil
	case []string:
		out := make([]interface{}, len(pv))
		for i, s := range pv {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]interface{}, len(pv))
		for i, n := range pv {
			out[i] = int64(n)
		}
		return out, nil
	case *values.Value:
		n, err := encodeNode(pv)
		if err != nil {
			return nil, err
		}
		// Wrapped so decode can tell a boxed value apart from a plain int
		// or string param that happens to share the same wire shape (e.g.
		// LOAD's integer constant vs. LOCAL's plain slot index).
		return cbor.Tag{Number: TagValueParam, Content: n}, nil
	case *vm.ClosureInfo:
		n, err := encodeClosureInfo(pv)
		if err != nil {
			return nil, err
		}
		return cbor.Tag{Number: TagNestedInfo, Content: n}, nil
	default:
		// Decl chains and any other debug-only payload are dropped (see
		// encodeClosureInfo's doc comment); represented as null so param
		// counts stay aligned on decode.
		return nil, nil
	}
}

func decodeClosureTag(tag cbor.Tag) (*vm.Closure, error) {
	content, ok := tag.Content.([]interface{})
	if !ok || len(content) != 2 {
		return nil, fmt.Errorf("cborcodec: malformed closure tag")
	}
	infoNode, ok := content[0].([]interface{})
	if !ok {
		return nil, fmt.Errorf("cborcodec: malformed closure info")
	}
	info, err := decodeClosureInfo(infoNode)
	if err != nil {
		return nil, err
	}
	upNodes, _ := content[1].([]interface{})
	upvalues := make([]*values.Value, len(upNodes))
	for i, n := range upNodes {
		v, err := decodeNode(n)
		if err != nil {
			return nil, err
		}
		upvalues[i] = v
	}
	return vm.ClosureData(vm.NewClosure(info, upvalues)), nil
}

func decodeClosureInfo(content []interface{}) (*vm.ClosureInfo, error) {
	if len(content) != 8 {
		return nil, fmt.Errorf("cborcodec: malformed closure info (want 8 fields, got %d)", len(content))
	}
	source, _ := content[0].(string)
	frameSize := int(toInt64(content[1]))
	numParams := int(toInt64(content[2]))
	paramNameNodes, _ := content[3].([]interface{})
	paramNames := make([]string, len(paramNameNodes))
	for i, n := range paramNameNodes {
		paramNames[i], _ = n.(string)
	}
	numUpvalues := int(toInt64(content[4]))
	instNodes, _ := content[7].([]interface{})

	shells := make([]*opcodes.Instruction, len(instNodes))
	for i := range instNodes {
		shells[i] = &opcodes.Instruction{}
	}
	for i, n := range instNodes {
		rec, ok := n.([]interface{})
		if !ok || len(rec) != 3 {
			return nil, fmt.Errorf("cborcodec: malformed instruction record %d", i)
		}
		op := opcodes.Opcode(toInt64(rec[0]))
		line := int(toInt64(rec[1]))
		paramNodes, _ := rec[2].([]interface{})
		params := make([]interface{}, len(paramNodes))
		for j, pn := range paramNodes {
			pv, err := decodeParam(pn, shells)
			if err != nil {
				return nil, fmt.Errorf("cborcodec: instruction %d param %d: %w", i, j, err)
			}
			params[j] = pv
		}
		shells[i].Op = op
		shells[i].Line = line
		shells[i].Params = params
	}

	entryIndex := toInt64(content[6])
	var entry *opcodes.Instruction
	if entryIndex >= 0 && int(entryIndex) < len(shells) {
		entry = shells[entryIndex]
	}

	info := vm.NewClosureInfo(source, entry, frameSize, numParams, paramNames, numUpvalues, nil)
	return info, nil
}

func decodeParam(n interface{}, shells []*opcodes.Instruction) (interface{}, error) {
	switch v := n.(type) {
	case nil:
		return nil, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case string:
		return v, nil
	case []interface{}:
		if len(v) == 0 {
			// Ambiguous on the wire; the only opcode with a plausibly empty
			// slice param is CLOSURE's upvalue index list.
			return []int{}, nil
		}
		if _, ok := v[0].(string); ok {
			out := make([]string, len(v))
			for i, e := range v {
				out[i], _ = e.(string)
			}
			return out, nil
		}
		out := make([]int, len(v))
		for i, e := range v {
			out[i] = int(toInt64(e))
		}
		return out, nil
	case cbor.Tag:
		switch v.Number {
		case TagInstrRef:
			idx := int(toInt64(v.Content))
			if idx < 0 || idx >= len(shells) {
				return nil, fmt.Errorf("instruction ref out of range: %d", idx)
			}
			return shells[idx], nil
		case TagValueParam:
			return decodeNode(v.Content)
		case TagNestedInfo:
			content, ok := v.Content.([]interface{})
			if !ok {
				return nil, fmt.Errorf("cborcodec: malformed nested closure info")
			}
			return decodeClosureInfo(content)
		default:
			return decodeNode(v)
		}
	default:
		return nil, fmt.Errorf("cborcodec: unrecognised param node %T", n)
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	default:
		return 0
	}
}
