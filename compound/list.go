package compound

import "github.com/minilang/ml/values"

// ListT is the type of minilang's mutable, doubly-linked list.
var ListT = values.NewType(values.AnyT, "List")

// listNode is one link in the list's backing chain.
type listNode struct {
	value      *values.Value
	prev, next *listNode
}

// List is a doubly-linked sequence with an index cache: the last node
// reached by positional access is remembered alongside its index so a
// subsequent nearby access walks from there instead of from an end.
type List struct {
	head, tail *listNode
	length     int
	cacheNode  *listNode
	cacheIndex int
}

func init() {
	ListT.Hash = func(v *values.Value, chain *values.HashLink) int64 {
		l := v.Data.(*List)
		if idx, seen := chain.Find(v); seen {
			return int64(idx)
		}
		link := &values.HashLink{Value: v, Index: l.length, Prev: chain}
		h := int64(l.length)
		for n := l.head; n != nil; n = n.next {
			h = h*31 + values.Hash(n.value, link)
		}
		return h
	}
}

// NewList constructs an empty list.
func NewList() *values.Value {
	return values.NewOfType(ListT, &List{cacheIndex: -1})
}

// ListData extracts the *List payload from v, or nil.
func ListData(v *values.Value) *List {
	d, _ := v.Data.(*List)
	return d
}

// Len returns the number of elements.
func (l *List) Len() int { return l.length }

// Append adds a value to the end of the list.
func (l *List) Append(v *values.Value) {
	n := &listNode{value: v, prev: l.tail}
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.length++
}

// Prepend adds a value to the front of the list.
func (l *List) Prepend(v *values.Value) {
	n := &listNode{value: v, next: l.head}
	if l.head != nil {
		l.head.prev = n
	} else {
		l.tail = n
	}
	l.head = n
	l.length++
	if l.cacheNode != nil {
		l.cacheIndex++
	}
}

// nodeAt walks to the node at i, preferring to resume from the cached
// position if it is closer than either end.
func (l *List) nodeAt(i int) *listNode {
	if i < 0 || i >= l.length {
		return nil
	}
	distFromHead := i
	distFromTail := l.length - 1 - i
	distFromCache := l.length // sentinel: worse than either end
	if l.cacheNode != nil {
		if l.cacheIndex >= i {
			distFromCache = l.cacheIndex - i
		} else {
			distFromCache = i - l.cacheIndex
		}
	}

	var n *listNode
	switch {
	case distFromCache <= distFromHead && distFromCache <= distFromTail:
		n = l.cacheNode
		for idx := l.cacheIndex; idx < i; idx++ {
			n = n.next
		}
		for idx := l.cacheIndex; idx > i; idx-- {
			n = n.prev
		}
	case distFromHead <= distFromTail:
		n = l.head
		for idx := 0; idx < i; idx++ {
			n = n.next
		}
	default:
		n = l.tail
		for idx := l.length - 1; idx > i; idx-- {
			n = n.prev
		}
	}
	l.cacheNode, l.cacheIndex = n, i
	return n
}

// At returns the element at 0-based index i, or Nil if out of range.
func (l *List) At(i int) *values.Value {
	n := l.nodeAt(i)
	if n == nil {
		return values.Nil
	}
	return n.value
}

// Set overwrites the element at index i, reporting whether i was in range.
func (l *List) Set(i int, v *values.Value) bool {
	n := l.nodeAt(i)
	if n == nil {
		return false
	}
	n.value = v
	return true
}

// Each calls f for every element in order, stopping early if f returns
// false.
func (l *List) Each(f func(i int, v *values.Value) bool) {
	i := 0
	for n := l.head; n != nil; n = n.next {
		if !f(i, n.value) {
			return
		}
		i++
	}
}
