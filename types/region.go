package types

import (
	"encoding/binary"
	"fmt"

	"github.com/dustin/go-humanize"
)

// RegionEntrySize is the encoded size of one Region: {base u64, pages u64}
const RegionEntrySize = 16

// Region is one contiguous run of reusable physical memory
type Region struct {
	Base  PhysAddr `plist:"base" mapstructure:"base"`
	Pages uint64   `plist:"pages" mapstructure:"pages"`
}

func (r Region) String() string {
	return fmt.Sprintf("%#016x pages=%d (%s)", uint64(r.Base), r.Pages, humanize.IBytes(r.Pages*PageSize))
}

// RegionListSize returns the bytes needed for capacity entries plus the sentinel
func RegionListSize(capacity int) int {
	return (capacity + 1) * RegionEntrySize
}

// RegionList is a fixed-capacity, sentinel terminated list of free regions
// encoded directly into caller owned memory. The backing buffer always has
// room for one more slot than the capacity so the terminator fits.
type RegionList struct {
	buf      []byte
	capacity int
	count    int
}

// NewRegionList lays a region list over buf and terminates it empty
func NewRegionList(buf []byte) (*RegionList, error) {
	slots := len(buf) / RegionEntrySize
	if slots < 1 {
		return nil, fmt.Errorf("region list buffer too small: %d bytes", len(buf))
	}
	l := &RegionList{
		buf:      buf[:slots*RegionEntrySize],
		capacity: slots - 1,
	}
	l.Reset()
	return l, nil
}

// Cap returns the maximum number of real entries
func (l *RegionList) Cap() int { return l.capacity }

// Len returns the number of entries appended since the last Reset
func (l *RegionList) Len() int { return l.count }

// Full reports whether no further entries can be appended
func (l *RegionList) Full() bool { return l.count >= l.capacity }

// Reset empties the list
func (l *RegionList) Reset() {
	l.count = 0
	l.Terminate()
}

// Append stores r after the last entry. It refuses entries once the list is
// full and entries with a zero base, which would read back as the terminator.
func (l *RegionList) Append(r Region) bool {
	if l.Full() || r.Base == 0 {
		return false
	}
	off := l.count * RegionEntrySize
	binary.LittleEndian.PutUint64(l.buf[off:], uint64(r.Base))
	binary.LittleEndian.PutUint64(l.buf[off+8:], r.Pages)
	l.count++
	return true
}

// Terminate writes the zero base sentinel right after the last entry. The
// sentinel's page count is left as whatever the slot held.
func (l *RegionList) Terminate() {
	binary.LittleEndian.PutUint64(l.buf[l.count*RegionEntrySize:], 0)
}

// Bytes returns the encoded list including every slot
func (l *RegionList) Bytes() []byte {
	return l.buf
}

// Regions decodes the list the way a consumer does
func (l *RegionList) Regions() []Region {
	return ReadRegionList(l.buf)
}

// ReadRegionList decodes entries from b until the first zero base
func ReadRegionList(b []byte) []Region {
	var regions []Region
	for off := 0; off+RegionEntrySize <= len(b); off += RegionEntrySize {
		base := binary.LittleEndian.Uint64(b[off:])
		if base == 0 {
			break
		}
		regions = append(regions, Region{
			Base:  PhysAddr(base),
			Pages: binary.LittleEndian.Uint64(b[off+8:]),
		})
	}
	return regions
}
