package debug

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"unsafe"

	"github.com/minilang/ml/opcodes"
)

// DotGraph renders the instruction graph rooted at entry as a Graphviz
// digraph named after its source unit: one node per instruction, edges to
// every successor named in its Params, branch edges labelled "not
// nil"/"nil" for IF/ELSE/IF_VAR/IF_LET and "error" for a TRY's handler
// edge. Try-scope interiors are filled with a colour hashed from the
// handler instruction's identity so nested and sibling try scopes are
// visually distinguishable.
func DotGraph(source string, entry *opcodes.Instruction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", source)
	b.WriteString("  node [shape=box, fontname=monospace];\n")

	visited := map[*opcodes.Instruction]string{}
	var order []*opcodes.Instruction
	nextID := 0

	assign := func(in *opcodes.Instruction) string {
		if id, ok := visited[in]; ok {
			return id
		}
		n := fmt.Sprintf("n%d", nextID)
		nextID++
		visited[in] = n
		order = append(order, in)
		return n
	}

	// tryColor is set for every instruction lexically inside a try scope,
	// keyed by that scope's handler instruction.
	tryColor := map[*opcodes.Instruction]string{}

	var walk func(in *opcodes.Instruction, handler *opcodes.Instruction)
	seen := map[*opcodes.Instruction]bool{}
	walk = func(in *opcodes.Instruction, handler *opcodes.Instruction) {
		if in == nil || seen[in] {
			return
		}
		seen[in] = true
		assign(in)
		if handler != nil {
			tryColor[in] = handlerColor(handler)
		}

		nextHandler := handler
		if in.Op == opcodes.TRY {
			if h, ok := in.Params[0].(*opcodes.Instruction); ok {
				nextHandler = h
			}
		}

		for _, p := range in.Params {
			if succ, ok := p.(*opcodes.Instruction); ok {
				walk(succ, nextHandler)
			}
		}
	}
	walk(entry, nil)

	for _, in := range order {
		id := visited[in]
		label := in.Op.String()
		attrs := fmt.Sprintf(`label="%s\nline %d"`, label, in.Line)
		if color, ok := tryColor[in]; ok {
			attrs += fmt.Sprintf(`, style=filled, fillcolor="%s"`, color)
		}
		fmt.Fprintf(&b, "  %s [%s];\n", id, attrs)
	}

	for _, in := range order {
		id := visited[in]
		switch in.Op {
		case opcodes.ELSE:
			if trueT, ok := in.Params[0].(*opcodes.Instruction); ok {
				fmt.Fprintf(&b, "  %s -> %s [label=\"not nil\"];\n", id, visited[trueT])
			}
			if falseT, ok := in.Params[1].(*opcodes.Instruction); ok {
				fmt.Fprintf(&b, "  %s -> %s [label=\"nil\"];\n", id, visited[falseT])
			}
		case opcodes.IF, opcodes.IF_VAR, opcodes.IF_LET:
			if falseT, ok := in.Params[0].(*opcodes.Instruction); ok {
				fmt.Fprintf(&b, "  %s -> %s [label=\"nil\"];\n", id, visited[falseT])
			}
			if trueT, ok := in.Params[1].(*opcodes.Instruction); ok {
				fmt.Fprintf(&b, "  %s -> %s [label=\"not nil\"];\n", id, visited[trueT])
			}
		case opcodes.TRY:
			if h, ok := in.Params[0].(*opcodes.Instruction); ok {
				fmt.Fprintf(&b, "  %s -> %s [label=\"error\", style=dashed];\n", id, visited[h])
			}
			if next := in.Next(); next != nil {
				fmt.Fprintf(&b, "  %s -> %s;\n", id, visited[next])
			}
		default:
			for _, p := range in.Params {
				if succ, ok := p.(*opcodes.Instruction); ok {
					fmt.Fprintf(&b, "  %s -> %s;\n", id, visited[succ])
				}
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// handlerColor derives a stable fill colour from a try scope's handler
// instruction identity, so the same scope always renders the same colour
// across repeated dot-graph emissions within one process.
func handlerColor(handler *opcodes.Instruction) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(uintptr(unsafe.Pointer(handler))))
	sum := sha256.Sum256(buf[:])
	return fmt.Sprintf("#%02x%02x%02x", sum[0]|0x80, sum[1]|0x80, sum[2]|0x80)
}
