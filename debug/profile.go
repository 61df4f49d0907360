package debug

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Profile tracks VM execution statistics: a mutex-guarded counter set
// updated from the hot decode loop, read back for a one-shot report.
type Profile struct {
	mu                sync.Mutex
	start             time.Time
	totalInstructions uint64
	instructionCounts map[string]uint64
	instructionTime   map[string]time.Duration
}

// NewProfile starts a fresh profiling window.
func NewProfile() *Profile {
	return &Profile{
		start:             time.Now(),
		instructionCounts: map[string]uint64{},
		instructionTime:   map[string]time.Duration{},
	}
}

// RecordInstruction tallies one executed opcode and the time it took.
func (p *Profile) RecordInstruction(opcodeName string, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalInstructions++
	p.instructionCounts[opcodeName]++
	p.instructionTime[opcodeName] += dur
}

// hotEntry is one row of a rendered report: an opcode and its counters.
type hotEntry struct {
	name  string
	count uint64
	dur   time.Duration
}

// Report renders a human-readable summary of the profiling window, using
// go-humanize so counts and throughput read as units rather than raw
// integers.
func (p *Profile) Report() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.start)
	entries := make([]hotEntry, 0, len(p.instructionCounts))
	for name, count := range p.instructionCounts {
		entries = append(entries, hotEntry{name: name, count: count, dur: p.instructionTime[name]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].count > entries[j].count })

	var b strings.Builder
	fmt.Fprintf(&b, "instructions: %s in %s\n",
		humanize.Comma(int64(p.totalInstructions)), elapsed.Round(time.Microsecond))
	if elapsed > 0 {
		perSec := float64(p.totalInstructions) / elapsed.Seconds()
		fmt.Fprintf(&b, "throughput: %s instructions/sec\n", humanize.Comma(int64(perSec)))
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "  %-14s %8s calls  %10s\n", e.name, humanize.Comma(int64(e.count)), e.dur.Round(time.Microsecond))
	}
	return b.String()
}
