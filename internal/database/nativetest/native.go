// Package nativetest provides a scripted client library for tests.
package nativetest

import (
	"sync"
	"time"

	"github.com/joacominatel/asyncprep/internal/database"
)

// Result is the scripted outcome of one prepare call.
type Result struct {
	Code    int32
	Outputs []database.Descriptor
}

// Hold is one interval during which a connection was acquired.
type Hold struct {
	ConnID string
	Start  time.Time
	End    time.Time
}

// Native implements database.Native from scripted answers and records
// every acquire, release and prepare it sees.
type Native struct {
	// AcquireCodes makes Acquire fail for a connection id.
	AcquireCodes map[string]int32
	// Results keyed by statement id; Default is used otherwise.
	Results map[string]Result
	Default Result
	// Delay is slept inside Prepare, while the connection is held.
	Delay time.Duration
	// Threaded makes the native report itself as thread bound.
	Threaded bool

	mu        sync.Mutex
	acquires  int
	releases  int
	prepares  []string
	open      map[string]time.Time
	holds     []Hold
	overlaps  int
	unguarded int
}

// New returns a Native whose prepares succeed as queries with no outputs.
func New() *Native {
	return &Native{
		AcquireCodes: make(map[string]int32),
		Results:      make(map[string]Result),
		Default:      Result{Code: int32(database.KindQuery)},
		open:         make(map[string]time.Time),
	}
}

var (
	_ database.Native      = (*Native)(nil)
	_ database.ThreadBound = (*Native)(nil)
)

func (n *Native) ThreadBound() bool {
	return n.Threaded
}

func (n *Native) Acquire(connID string) int32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	if code, ok := n.AcquireCodes[connID]; ok && code < 0 {
		return code
	}
	if _, busy := n.open[connID]; busy {
		n.overlaps++
	}
	n.open[connID] = time.Now()
	n.acquires++
	return database.CodeOK
}

func (n *Native) Release(connID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if start, ok := n.open[connID]; ok {
		n.holds = append(n.holds, Hold{ConnID: connID, Start: start, End: time.Now()})
		delete(n.open, connID)
	}
	n.releases++
}

func (n *Native) ErrorMessage(code int32) string {
	return database.Message(code)
}

func (n *Native) Prepare(connID, stmtID, sql string, in []database.Descriptor, out *[]database.Descriptor) int32 {
	n.mu.Lock()
	if _, held := n.open[connID]; !held {
		n.unguarded++
	}
	n.prepares = append(n.prepares, stmtID)
	res, ok := n.Results[stmtID]
	if !ok {
		res = n.Default
	}
	delay := n.Delay
	n.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if res.Code < 0 {
		return res.Code
	}
	*out = append((*out)[:0], res.Outputs...)
	return res.Code
}

// Counts returns how many acquires and releases succeeded so far.
func (n *Native) Counts() (acquires, releases int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.acquires, n.releases
}

// Prepares returns the statement ids passed to Prepare, in call order.
func (n *Native) Prepares() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.prepares...)
}

// Overlaps returns how many times a connection was acquired while already held.
func (n *Native) Overlaps() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.overlaps
}

// Unguarded returns how many prepares ran on a connection that was not held.
func (n *Native) Unguarded() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unguarded
}

// Holds returns the completed hold intervals.
func (n *Native) Holds() []Hold {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Hold(nil), n.holds...)
}

// OverlappingHolds reports pairs of holds on the same connection whose
// intervals intersect.
func OverlappingHolds(holds []Hold) int {
	count := 0
	for i := range holds {
		for j := i + 1; j < len(holds); j++ {
			a, b := holds[i], holds[j]
			if a.ConnID != b.ConnID {
				continue
			}
			if a.Start.Before(b.End) && b.Start.Before(a.End) {
				count++
			}
		}
	}
	return count
}
