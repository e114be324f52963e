package status

import "testing"

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Pending, "pending"},
		{Loading, "loading"},
		{Ready, "ready"},
		{Dirty, "dirty"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestInitialStatePending(t *testing.T) {
	m := NewMachine()
	if got := m.Status(); got != Pending {
		t.Errorf("initial status = %v, want Pending", got)
	}
	if got := m.Recompute("anything"); got != Pending {
		t.Errorf("Recompute with no artifact = %v, want Pending", got)
	}
}

func TestLoadingDuringCompile(t *testing.T) {
	m := NewMachine()

	if got := m.BeginCompile("src"); got != Loading {
		t.Errorf("BeginCompile = %v, want Loading", got)
	}
	// Loading overrides artifact comparison for the flight's duration.
	m.SetSnapshot("src", "src")
	if got := m.Status(); got != Loading {
		t.Errorf("status during flight = %v, want Loading", got)
	}
	if got := m.EndCompile("src"); got != Ready {
		t.Errorf("EndCompile = %v, want Ready", got)
	}
}

func TestReadyIffExactEquality(t *testing.T) {
	m := NewMachine()
	m.SetSnapshot("A\nB\nC", "A\nB\nC")

	if got := m.Status(); got != Ready {
		t.Errorf("status = %v, want Ready", got)
	}

	// Any single-character mutation flips to Dirty.
	if got := m.Recompute("A\nB\nc"); got != Dirty {
		t.Errorf("after mutation = %v, want Dirty", got)
	}
	if got := m.Recompute("A\nB\nC"); got != Ready {
		t.Errorf("after revert = %v, want Ready", got)
	}

	// No whitespace normalization.
	if got := m.Recompute("A\nB\nC "); got != Dirty {
		t.Errorf("trailing space = %v, want Dirty", got)
	}
}

func TestSnapshotFromServerNotRequest(t *testing.T) {
	// The server normalized whitespace: the returned snapshot differs
	// from the request payload, so the status is immediately Dirty.
	m := NewMachine()
	requested := "A \nB"
	returned := "A\nB"

	m.BeginCompile(requested)
	m.SetSnapshot(returned, requested)
	if got := m.EndCompile(requested); got != Dirty {
		t.Errorf("status after normalized compile = %v, want Dirty", got)
	}

	// Editing the source to match the snapshot makes it Ready.
	if got := m.Recompute(returned); got != Ready {
		t.Errorf("status after matching snapshot = %v, want Ready", got)
	}
}

func TestFailedCompileKeepsPriorArtifact(t *testing.T) {
	m := NewMachine()
	m.SetSnapshot("v1", "v1")

	m.BeginCompile("v2")
	// Compile failed: no SetSnapshot call. Prior artifact remains
	// authoritative.
	if got := m.EndCompile("v2"); got != Dirty {
		t.Errorf("after failed compile = %v, want Dirty", got)
	}
	if got := m.Recompute("v1"); got != Ready {
		t.Errorf("reverted source = %v, want Ready", got)
	}
}

func TestOverlappingCompiles(t *testing.T) {
	m := NewMachine()

	m.BeginCompile("src")
	m.BeginCompile("src")
	if got := m.EndCompile("src"); got != Loading {
		t.Errorf("one of two flights done = %v, want Loading", got)
	}
	if got := m.EndCompile("src"); got != Pending {
		t.Errorf("all flights done, no artifact = %v, want Pending", got)
	}
}
