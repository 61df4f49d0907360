// Package cborcodec implements minilang's CBOR interop: tuples, lists,
// maps, strings, integers, reals, booleans, nil, methods and errors map to
// CBOR tags so a value graph can round-trip through a byte stream, via
// github.com/fxamacker/cbor/v2. Bytecode closures get their own tag and
// topologically-ordered encoding in closure.go.
package cborcodec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/minilang/ml/compound"
	"github.com/minilang/ml/methods"
	"github.com/minilang/ml/mlerr"
	"github.com/minilang/ml/values"
)

// Tag numbers used for minilang's non-scalar values. These are process-
// private (not registered with IANA); scalars (nil, bool, integer, real,
// string) use CBOR's own native major types and need no tag at all.
const (
	TagTuple        = 40_300
	TagList         = 40_301
	TagMap          = 40_302
	TagError        = 40_303
	TagMethod       = 40_304
	TagStringBuffer = 40_305
	TagClosure      = 40_306 // see closure.go; the USE_ML_CBOR_BYTECODE tag
	TagInstrRef     = 40_307 // back-reference to an instruction by index, closure.go only
	TagValueParam   = 40_308 // closure.go only: marks an instruction param as a boxed *values.Value, disambiguating it from a plain int/string param carrying the same wire shape
	TagNestedInfo   = 40_309 // closure.go only: marks a param as a nested *vm.ClosureInfo (CLOSURE/CLOSURE_TYPED), disambiguating its positional array from a []string/[]int param
)

// Encode serialises v to CBOR bytes.
func Encode(v *values.Value) ([]byte, error) {
	node, err := encodeNode(v)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(node)
}

// Decode parses CBOR bytes back into a value.
func Decode(data []byte) (*values.Value, error) {
	var node interface{}
	if err := cbor.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("cborcodec: %w", err)
	}
	return decodeNode(node)
}

func encodeNode(v *values.Value) (interface{}, error) {
	d := values.Deref(v)
	if d == nil || d == values.Nil {
		return nil, nil
	}
	t := values.TypeOf(d)
	switch t {
	case values.IntegerT:
		return d.Data.(int64), nil
	case values.RealT:
		return d.Data.(float64), nil
	case values.StringT:
		return d.Data.(string), nil
	case values.BooleanT:
		return d.Data.(bool), nil
	case values.MethodT:
		m := d.Data.(*methods.Method)
		return cbor.Tag{Number: TagMethod, Content: m.Name}, nil
	case compound.TupleT:
		return encodeTuple(compound.TupleData(d))
	case compound.ListT:
		return encodeList(compound.ListData(d))
	case compound.MapT:
		return encodeMap(compound.MapData(d))
	case compound.StringBufferT:
		return cbor.Tag{Number: TagStringBuffer, Content: compound.StringBufferData(d).String()}, nil
	}
	if mlerr.Is(d) {
		return encodeError(d)
	}
	return nil, fmt.Errorf("cborcodec: no CBOR mapping for type %s", t.Name)
}

func encodeTuple(tp *compound.Tuple) (interface{}, error) {
	elems := make([]interface{}, len(tp.Elems))
	for i, e := range tp.Elems {
		node, err := encodeNode(e)
		if err != nil {
			return nil, err
		}
		elems[i] = node
	}
	return cbor.Tag{Number: TagTuple, Content: elems}, nil
}

func encodeList(l *compound.List) (interface{}, error) {
	elems := make([]interface{}, 0, l.Len())
	var encErr error
	l.Each(func(_ int, v *values.Value) bool {
		node, err := encodeNode(v)
		if err != nil {
			encErr = err
			return false
		}
		elems = append(elems, node)
		return true
	})
	if encErr != nil {
		return nil, encErr
	}
	return cbor.Tag{Number: TagList, Content: elems}, nil
}

func encodeMap(m *compound.Map) (interface{}, error) {
	pairs := make([]interface{}, 0, m.Len())
	var encErr error
	m.Each(func(k, v *values.Value) bool {
		kn, err := encodeNode(k)
		if err != nil {
			encErr = err
			return false
		}
		vn, err := encodeNode(v)
		if err != nil {
			encErr = err
			return false
		}
		pairs = append(pairs, []interface{}{kn, vn})
		return true
	})
	if encErr != nil {
		return nil, encErr
	}
	return cbor.Tag{Number: TagMap, Content: pairs}, nil
}

func encodeError(v *values.Value) (interface{}, error) {
	trace := mlerr.Trace(v)
	frames := make([]interface{}, len(trace))
	for i, f := range trace {
		frames[i] = []interface{}{f.Source, int64(f.Line)}
	}
	content := []interface{}{mlerr.Kind(v), mlerr.Message(v), frames}
	return cbor.Tag{Number: TagError, Content: content}, nil
}

func decodeNode(node interface{}) (*values.Value, error) {
	switch n := node.(type) {
	case nil:
		return values.Nil, nil
	case bool:
		return values.Bool(n), nil
	case int64:
		return values.Int(n), nil
	case uint64:
		return values.Int(int64(n)), nil
	case float64:
		return values.Real(n), nil
	case string:
		return values.Str(n), nil
	case cbor.Tag:
		return decodeTag(n)
	default:
		return nil, fmt.Errorf("cborcodec: unrecognised decoded node %T", node)
	}
}

func decodeTag(tag cbor.Tag) (*values.Value, error) {
	switch tag.Number {
	case TagMethod:
		name, _ := tag.Content.(string)
		return methods.AsValue(methods.Intern(name)), nil
	case TagStringBuffer:
		s, _ := tag.Content.(string)
		sv := compound.NewStringBuffer()
		compound.StringBufferData(sv).WriteString(s)
		return sv, nil
	case TagTuple:
		items, _ := tag.Content.([]interface{})
		elems := make([]*values.Value, len(items))
		for i, it := range items {
			v, err := decodeNode(it)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return compound.NewTuple(elems), nil
	case TagList:
		items, _ := tag.Content.([]interface{})
		lv := compound.NewList()
		ld := compound.ListData(lv)
		for _, it := range items {
			v, err := decodeNode(it)
			if err != nil {
				return nil, err
			}
			ld.Append(v)
		}
		return lv, nil
	case TagMap:
		pairs, _ := tag.Content.([]interface{})
		mv := compound.NewMap()
		md := compound.MapData(mv)
		for _, p := range pairs {
			pair, ok := p.([]interface{})
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("cborcodec: malformed map pair")
			}
			k, err := decodeNode(pair[0])
			if err != nil {
				return nil, err
			}
			v, err := decodeNode(pair[1])
			if err != nil {
				return nil, err
			}
			md.Insert(k, v)
		}
		return mv, nil
	case TagError:
		content, ok := tag.Content.([]interface{})
		if !ok || len(content) != 3 {
			return nil, fmt.Errorf("cborcodec: malformed error")
		}
		kind, _ := content[0].(string)
		msg, _ := content[1].(string)
		errVal := mlerr.New(kind, msg)
		frames, _ := content[2].([]interface{})
		for _, f := range frames {
			fr, ok := f.([]interface{})
			if !ok || len(fr) != 2 {
				continue
			}
			src, _ := fr[0].(string)
			line := toInt(fr[1])
			mlerr.PushTrace(errVal, src, line)
		}
		return errVal, nil
	default:
		return nil, fmt.Errorf("cborcodec: unknown tag %d", tag.Number)
	}
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case uint64:
		return int(n)
	default:
		return 0
	}
}
