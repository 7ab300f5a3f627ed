package efistub_test

import (
	"errors"
	"testing"

	"github.com/blacktop/go-efistub"
	"github.com/blacktop/go-efistub/pkg/firmware/fake"
	"github.com/blacktop/go-efistub/types"
)

func snapshotted(t *testing.T, m *fake.Machine) (*efistub.Stub, *efistub.Snapshot) {
	t.Helper()
	s := newStub(t, m, smallConfig())
	if err := s.LoadImages(); err != nil {
		t.Fatal(err)
	}
	snap, err := s.SnapshotMemoryMap()
	if err != nil {
		t.Fatal(err)
	}
	return s, snap
}

func TestHandoff(t *testing.T) {
	m := newMachine(t, defaultFiles(), conventional(0x400000, 4))
	s, snap := snapshotted(t, m)

	var entry, handoff types.PhysAddr
	m.CPU.OnTransfer = func(e, h types.PhysAddr) {
		entry, handoff = e, h
		if !m.Platform.Exited() {
			t.Error("control transferred before boot services were exited")
		}
	}
	if m.Run(func() { s.Handoff(snap) }) {
		t.Fatal("Handoff() returned")
	}
	if entry != s.Images().Entry() {
		t.Errorf("entry = %s, want %s", entry, s.Images().Entry())
	}
	if handoff != s.HandoffBlock() {
		t.Errorf("handoff = %s, want %s", handoff, s.HandoffBlock())
	}
	if m.Platform.Calls[fake.OpExitBootServices] != 1 {
		t.Errorf("ExitBootServices called %d times", m.Platform.Calls[fake.OpExitBootServices])
	}
}

func TestHandoffStaleKey(t *testing.T) {
	m := newMachine(t, defaultFiles(), conventional(0x400000, 4))
	s, snap := snapshotted(t, m)
	m.Platform.Invalidate()

	err := s.Handoff(snap)
	if !errors.Is(err, efistub.ErrProtocolViolation) {
		t.Fatalf("Handoff() error = %v, want %v", err, efistub.ErrProtocolViolation)
	}
	var be *efistub.BootError
	if !errors.As(err, &be) || be.Diagnostic != "Failed to exit EFI" {
		t.Errorf("Handoff() error = %v", err)
	}
	if m.CPU.Jumped {
		t.Error("control transferred with a stale key")
	}
	if m.Platform.Calls[fake.OpExitBootServices] != 1 {
		t.Errorf("ExitBootServices called %d times, want 1", m.Platform.Calls[fake.OpExitBootServices])
	}
}

func TestHandoffForeignSnapshot(t *testing.T) {
	tests := []struct {
		name string
		snap func(*efistub.Snapshot) *efistub.Snapshot
	}{
		{"nil", func(*efistub.Snapshot) *efistub.Snapshot { return nil }},
		{"copy", func(s *efistub.Snapshot) *efistub.Snapshot { c := *s; return &c }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMachine(t, defaultFiles(), conventional(0x400000, 4))
			s, snap := snapshotted(t, m)

			if err := s.Handoff(tt.snap(snap)); !errors.Is(err, efistub.ErrProtocolViolation) {
				t.Fatalf("Handoff() error = %v, want %v", err, efistub.ErrProtocolViolation)
			}
			if m.Platform.Calls[fake.OpExitBootServices] != 0 {
				t.Error("ExitBootServices called with a foreign snapshot")
			}
		})
	}
}

func TestHandoffLoaderReturns(t *testing.T) {
	m := newMachine(t, defaultFiles(), conventional(0x400000, 4))
	m.CPU.Return = true
	s, snap := snapshotted(t, m)

	err := s.Handoff(snap)
	if !errors.Is(err, efistub.ErrLoaderReturned) {
		t.Fatalf("Handoff() error = %v, want %v", err, efistub.ErrLoaderReturned)
	}
	var be *efistub.BootError
	if !errors.As(err, &be) || be.State != efistub.BootServicesExited || be.Kind != efistub.KindInternal {
		t.Errorf("Handoff() error = %#v", err)
	}
	if s.State() != efistub.Aborted {
		t.Errorf("State() = %s, want %s", s.State(), efistub.Aborted)
	}
	if len(m.Platform.Violations) > 0 {
		t.Errorf("firmware used after exit: %v", m.Platform.Violations)
	}
	if err := s.Handoff(snap); err == nil {
		t.Error("second Handoff() succeeded")
	}
}
