// Package status derives the staleness relationship between the live
// source text and the source snapshot embedded in the last compiled
// artifact.
package status

import "sync"

// Status is the derived sync status of the document.
type Status int

const (
	// Pending means no artifact has ever been produced.
	Pending Status = iota
	// Loading means a compile request is in flight.
	Loading
	// Ready means the source exactly equals the last artifact's snapshot.
	Ready
	// Dirty means the source has diverged from the last artifact.
	Dirty
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Dirty:
		return "dirty"
	default:
		return "unknown"
	}
}

// Machine recomputes the sync status from its inputs. It holds no
// state beyond the current label and the last snapshot, so it is
// recomputed eagerly after every text mutation, compile completion,
// and animation commit rather than patched incrementally.
type Machine struct {
	mu          sync.RWMutex
	status      Status
	snapshot    string
	hasArtifact bool
	inFlight    int
}

// NewMachine creates a machine in the Pending state.
func NewMachine() *Machine {
	return &Machine{status: Pending}
}

// Status returns the current status label.
func (m *Machine) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// BeginCompile marks a compile request as in flight and recomputes.
func (m *Machine) BeginCompile(current string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight++
	return m.recomputeLocked(current)
}

// EndCompile marks a compile request as finished and recomputes.
// Called for both successful and failed responses.
func (m *Machine) EndCompile(current string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight > 0 {
		m.inFlight--
	}
	return m.recomputeLocked(current)
}

// SetSnapshot records the source snapshot of a newly produced
// artifact and recomputes. The comparison baseline is always the
// snapshot the compiler returned, not the request payload: a server
// that normalizes whitespace may yield Dirty immediately after a
// successful compile.
func (m *Machine) SetSnapshot(snapshot, current string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snapshot
	m.hasArtifact = true
	return m.recomputeLocked(current)
}

// Recompute re-derives the status from the current source text.
func (m *Machine) Recompute(current string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recomputeLocked(current)
}

// recomputeLocked applies the derivation table. Caller holds the lock.
// Comparison is exact string equality — no normalization, no hashing
// shortcut that could produce a false positive.
func (m *Machine) recomputeLocked(current string) Status {
	switch {
	case m.inFlight > 0:
		m.status = Loading
	case !m.hasArtifact:
		m.status = Pending
	case current == m.snapshot:
		m.status = Ready
	default:
		m.status = Dirty
	}
	return m.status
}
