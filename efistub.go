// Package efistub implements a second-stage UEFI boot stub: it loads a loader
// and a kernel image from the boot volume, records the reusable physical
// memory, exits boot services and jumps to the loader.
package efistub

import (
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/go-efistub/pkg/firmware"
	"github.com/blacktop/go-efistub/types"
)

const banner = "Beginning EFI Boot..."

// Stub drives one boot attempt
type Stub struct {
	conf  Config
	image types.Handle
	st    *firmware.SystemTable
	state State

	observers []func(from, to State)
	quiesce   []func()

	mmap     []byte // memory map scratch arena
	images   *ImageRegion
	handoff  types.PhysAddr
	regions  *types.RegionList
	snapshot *Snapshot
}

// Option configures a Stub
type Option func(*Stub)

// WithObserver registers fn to be called on every state transition
func WithObserver(fn func(from, to State)) Option {
	return func(s *Stub) {
		s.observers = append(s.observers, fn)
	}
}

// WithQuiesce registers fn to be called right before the memory map snapshot.
// Nothing may touch the firmware console once it has returned.
func WithQuiesce(fn func()) Option {
	return func(s *Stub) {
		s.quiesce = append(s.quiesce, fn)
	}
}

// New prepares a boot attempt for the running image
func New(image types.Handle, st *firmware.SystemTable, conf Config, opts ...Option) (*Stub, error) {
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid system table: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Stub{
		conf:  conf,
		image: image,
		st:    st,
		state: Init,
		mmap:  make([]byte, conf.MemoryMapBufferSize),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// State returns the current state of the attempt
func (s *Stub) State() State { return s.state }

// Images returns the reserved image region once the images are loaded
func (s *Stub) Images() *ImageRegion { return s.images }

// Regions returns the free memory region list built by SnapshotMemoryMap
func (s *Stub) Regions() *types.RegionList { return s.regions }

// HandoffBlock returns the physical address of the region list handed to the loader
func (s *Stub) HandoffBlock() types.PhysAddr { return s.handoff }

// Boot runs the whole sequence. It only returns on failure.
func (s *Stub) Boot() error {
	if err := s.LoadImages(); err != nil {
		return err
	}

	snap, err := s.SnapshotMemoryMap()
	if err != nil {
		return err
	}

	return s.Handoff(snap)
}

func (s *Stub) expect(want State) error {
	if s.state != want {
		return s.abort(KindProtocolViolation, "Boot stub steps ran out of order!",
			fmt.Errorf("expected state %s, got %s", want, s.state))
	}
	return nil
}

func (s *Stub) transition() {
	from := s.state
	to, ok := from.next()
	if !ok {
		return
	}
	s.state = to
	log.WithFields(log.Fields{"from": from, "to": to}).Debug("boot state")
	for _, fn := range s.observers {
		fn(from, to)
	}
}

func (s *Stub) abort(kind ErrorKind, diagnostic string, err error) error {
	be := &BootError{
		Kind:       kind,
		State:      s.state,
		Diagnostic: diagnostic,
		Err:        err,
	}
	if s.state != Aborted {
		from := s.state
		s.state = Aborted
		for _, fn := range s.observers {
			fn(from, Aborted)
		}
	}
	return be
}

// Main is the firmware entry: it clears the console, runs the boot attempt and,
// should the attempt fail, reports the diagnostic and returns a non-zero status.
func Main(image types.Handle, st *firmware.SystemTable, conf Config, opts ...Option) types.Status {
	if err := st.Validate(); err != nil {
		log.WithError(err).Error("no usable system table")
		return types.EFI_INVALID_PARAMETER
	}

	if err := st.ConOut.ClearScreen(); err != nil {
		log.WithError(err).Warn("failed to clear screen")
	}
	firmware.Println(st.ConOut, banner)

	stub, err := New(image, st, conf, opts...)
	if err != nil {
		firmware.Println(st.ConOut, "Invalid boot stub configuration!")
		log.WithError(err).Error("boot aborted")
		return types.EFI_INVALID_PARAMETER
	}

	err = stub.Boot()
	if err == nil {
		err = &BootError{Kind: KindInternal, State: stub.State(), Diagnostic: "Boot returned without error!", Err: ErrLoaderReturned}
	}

	var be *BootError
	if errors.As(err, &be) && be.State < BootServicesExited {
		firmware.Println(st.ConOut, be.Diagnostic)
	}
	log.WithError(err).Error("boot aborted")

	return ExitStatus(err)
}
