package compound

import "github.com/minilang/ml/values"

// MapT is the type of minilang's insertion-ordered map.
var MapT = values.NewType(values.AnyT, "Map")

type mapEntry struct {
	key, value *values.Value
	hash       int64
	deleted    bool
}

// Map is an open-addressed hash table that preserves insertion order by
// keeping entries in a flat slice and probing a parallel index table,
// rather than chaining buckets; iteration order is insertion order.
type Map struct {
	entries []mapEntry
	index   []int // open-addressed slot -> position in entries, -1 empty
	count   int
}

func init() {
	MapT.Hash = func(v *values.Value, chain *values.HashLink) int64 {
		m := v.Data.(*Map)
		if idx, seen := chain.Find(v); seen {
			return int64(idx)
		}
		link := &values.HashLink{Value: v, Index: m.count, Prev: chain}
		var h int64 = int64(m.count)
		for _, e := range m.entries {
			if e.deleted {
				continue
			}
			h ^= values.Hash(e.key, link)*31 + values.Hash(e.value, link)
		}
		return h
	}
}

// NewMap constructs an empty map.
func NewMap() *values.Value {
	return values.NewOfType(MapT, &Map{index: newSlots(8)})
}

func newSlots(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = -1
	}
	return s
}

// MapData extracts the *Map payload from v, or nil.
func MapData(v *values.Value) *Map {
	d, _ := v.Data.(*Map)
	return d
}

// Len returns the number of live key/value pairs.
func (m *Map) Len() int { return m.count }

func (m *Map) slotFor(key *values.Value, hash int64) int {
	mask := len(m.index) - 1
	slot := int(hash) & mask
	if slot < 0 {
		slot += len(m.index)
	}
	for {
		pos := m.index[slot]
		if pos == -1 {
			return slot
		}
		e := &m.entries[pos]
		if !e.deleted && e.hash == hash && valuesEqual(e.key, key) {
			return slot
		}
		slot = (slot + 1) & mask
	}
}

func valuesEqual(a, b *values.Value) bool {
	a, b = values.Deref(a), values.Deref(b)
	if a == b {
		return true
	}
	if values.TypeOf(a) != values.TypeOf(b) {
		return false
	}
	return values.Hash(a, nil) == values.Hash(b, nil) && a.Data == b.Data
}

func (m *Map) grow() {
	old := m.entries
	m.entries = m.entries[:0]
	m.index = newSlots(len(m.index) * 2)
	m.count = 0
	for _, e := range old {
		if !e.deleted {
			m.Insert(e.key, e.value)
		}
	}
}

// Insert sets key to value, inserting or overwriting in place; returns the
// previous value, or Nil if key was absent.
func (m *Map) Insert(key, value *values.Value) *values.Value {
	if m.index == nil {
		m.index = newSlots(8)
	}
	if (m.count+1)*2 > len(m.index) {
		m.grow()
	}
	hash := values.Hash(key, nil)
	slot := m.slotFor(key, hash)
	if pos := m.index[slot]; pos != -1 {
		prev := m.entries[pos].value
		m.entries[pos].value = value
		return prev
	}
	m.index[slot] = len(m.entries)
	m.entries = append(m.entries, mapEntry{key: key, value: value, hash: hash})
	m.count++
	return values.Nil
}

// Get looks up key, returning (value, true) if present.
func (m *Map) Get(key *values.Value) (*values.Value, bool) {
	if m.index == nil {
		return nil, false
	}
	hash := values.Hash(key, nil)
	slot := m.slotFor(key, hash)
	pos := m.index[slot]
	if pos == -1 {
		return nil, false
	}
	return m.entries[pos].value, true
}

// Delete removes key, reporting whether it was present. The entry is
// tombstoned rather than physically removed so later entries' insertion
// positions (and any in-flight iteration) remain stable.
func (m *Map) Delete(key *values.Value) bool {
	if m.index == nil {
		return false
	}
	hash := values.Hash(key, nil)
	slot := m.slotFor(key, hash)
	pos := m.index[slot]
	if pos == -1 {
		return false
	}
	m.entries[pos].deleted = true
	m.index[slot] = -1
	m.count--
	// Re-seat the rest of the probe cluster so keys that probed past the
	// emptied slot are still reachable.
	mask := len(m.index) - 1
	for s := (slot + 1) & mask; m.index[s] != -1; s = (s + 1) & mask {
		p := m.index[s]
		m.index[s] = -1
		m.index[m.slotFor(m.entries[p].key, m.entries[p].hash)] = p
	}
	return true
}

// Each calls f for every live entry in insertion order, stopping early if f
// returns false.
func (m *Map) Each(f func(key, value *values.Value) bool) {
	for _, e := range m.entries {
		if e.deleted {
			continue
		}
		if !f(e.key, e.value) {
			return
		}
	}
}
