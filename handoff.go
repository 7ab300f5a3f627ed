package efistub

import (
	"fmt"

	"github.com/apex/log"
)

// Handoff exits boot services with the snapshot key and jumps to the loader.
// It only returns when something went wrong; once boot services are gone no
// firmware capability is used again.
func (s *Stub) Handoff(snap *Snapshot) error {
	if err := s.expect(MapSnapshotted); err != nil {
		return err
	}
	if snap == nil || snap != s.snapshot || snap.consumed {
		return s.abort(KindProtocolViolation, "Failed to exit EFI", fmt.Errorf("stale or foreign memory map snapshot"))
	}
	snap.consumed = true

	// TODO: on a stale key, re-read the memory map into the same arena and retry once
	if err := s.st.BootServices.ExitBootServices(s.image, snap.Key); err != nil {
		return s.abort(KindProtocolViolation, "Failed to exit EFI", err)
	}
	s.transition()

	log.WithFields(log.Fields{
		"entry":   s.images.Entry(),
		"regions": s.handoff,
	}).Info("starting the loader")

	s.st.CPU.Transfer(s.images.Entry(), s.handoff)

	return s.abort(KindInternal, "Loader returned to the boot stub!", ErrLoaderReturned)
}
