package efistub

import (
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/go-efistub/pkg/firmware"
	"github.com/blacktop/go-efistub/types"
)

// Snapshot is a consistent read of the firmware memory map. Its key stays
// valid only until the next allocation or free.
type Snapshot struct {
	Key               types.MapKey
	DescriptorSize    uint64
	DescriptorVersion uint32
	MapStats

	consumed bool
}

// MapStats counts what BuildRegionList did with the descriptors
type MapStats struct {
	Descriptors int // descriptors in the map
	Kept        int // copied to the region list
	Dropped     int // wrong type or below the threshold
	Overflow    int // never examined because the list was full
}

// BuildRegionList walks the descriptors in buf using the firmware reported
// stride and keeps every conventional memory range starting at or above
// threshold. The list is always terminated, even when nothing qualifies.
func BuildRegionList(buf []byte, info firmware.MemoryMapInfo, threshold types.PhysAddr, list *types.RegionList) (MapStats, error) {
	var stats MapStats

	if info.DescriptorSize < types.MemoryDescriptorSize {
		return stats, fmt.Errorf("descriptor size %d is smaller than EFI_MEMORY_DESCRIPTOR (%d)", info.DescriptorSize, types.MemoryDescriptorSize)
	}
	if info.Size > uint64(len(buf)) {
		return stats, fmt.Errorf("memory map size %d exceeds buffer of %d bytes", info.Size, len(buf))
	}

	list.Reset()

	stats.Descriptors = info.Count()
	i := 0
	for ; i < stats.Descriptors && !list.Full(); i++ {
		off := uint64(i) * info.DescriptorSize
		desc, err := types.ParseMemoryDescriptor(buf[off : off+info.DescriptorSize])
		if err != nil {
			return stats, fmt.Errorf("failed to parse descriptor %d: %w", i, err)
		}
		if desc.Type == types.EfiConventionalMemory && desc.PhysicalStart >= threshold &&
			list.Append(types.Region{Base: desc.PhysicalStart, Pages: desc.NumberOfPages}) {
			stats.Kept++
			continue
		}
		stats.Dropped++
	}
	stats.Overflow = stats.Descriptors - i

	list.Terminate()

	return stats, nil
}

// SnapshotMemoryMap reads the memory map into the scratch arena and builds the
// free region list in the handoff block. Nothing between this call and
// Handoff may allocate or free memory.
func (s *Stub) SnapshotMemoryMap() (*Snapshot, error) {
	if err := s.expect(ImagesLoaded); err != nil {
		return nil, err
	}

	log.WithField("buffer", len(s.mmap)).Debug("reading memory map")
	for _, fn := range s.quiesce {
		fn()
	}

	info, err := s.st.BootServices.GetMemoryMap(s.mmap)
	if err != nil {
		var tooSmall *firmware.BufferTooSmallError
		if errors.As(err, &tooSmall) {
			return nil, s.abort(KindSizeExceeded, "Failed to get memory map!", err)
		}
		return nil, s.abort(KindCapabilityUnavailable, "Failed to get memory map!", err)
	}

	stats, err := BuildRegionList(s.mmap, info, s.conf.LowMemoryThreshold, s.regions)
	if err != nil {
		return nil, s.abort(KindProtocolViolation, "Failed to parse memory map!", err)
	}

	s.snapshot = &Snapshot{
		Key:               info.Key,
		DescriptorSize:    info.DescriptorSize,
		DescriptorVersion: info.DescriptorVersion,
		MapStats:          stats,
	}

	log.WithFields(log.Fields{
		"key":         info.Key,
		"stride":      info.DescriptorSize,
		"version":     info.DescriptorVersion,
		"descriptors": stats.Descriptors,
		"kept":        stats.Kept,
		"dropped":     stats.Dropped,
		"overflow":    stats.Overflow,
	}).Debug("memory map snapshot")
	if stats.Overflow > 0 {
		log.Warnf("region list full, ignored %d descriptors", stats.Overflow)
	}

	s.transition()
	return s.snapshot, nil
}
