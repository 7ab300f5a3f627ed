// Package firmware declares the UEFI boot service capabilities the boot stub
// consumes. The production binding lives in pkg/firmware/uefi and an in-memory
// implementation for tests and simulation lives in pkg/firmware/fake.
package firmware

import (
	"fmt"

	"github.com/blacktop/go-efistub/types"
)

// Console is the EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL subset used for diagnostics
type Console interface {
	ClearScreen() error
	OutputString(s string) error
}

// Println writes s followed by the firmware line terminator
func Println(c Console, s string) error {
	if err := c.OutputString(s); err != nil {
		return err
	}
	return c.OutputString("\n\r")
}

// LoadedImage is the EFI_LOADED_IMAGE_PROTOCOL subset: the provenance of the running image
type LoadedImage interface {
	DeviceHandle() types.Handle
}

// SimpleFileSystem is a EFI_SIMPLE_FILE_SYSTEM_PROTOCOL
type SimpleFileSystem interface {
	OpenVolume() (File, error)
}

// File is a EFI_FILE_PROTOCOL handle
type File interface {
	// Open opens name relative to this file (which must be a directory)
	Open(name string, mode types.FileMode) (File, error)
	// Read reads up to len(p) bytes in a single firmware call
	Read(p []byte) (int, error)
	Close() error
}

// ProtocolBinder resolves a protocol interface installed on a handle
type ProtocolBinder interface {
	OpenProtocol(handle types.Handle, protocol types.GUID, agent types.Handle) (interface{}, error)
}

// PageAllocator reserves physical pages
type PageAllocator interface {
	AllocatePages(allocateType types.AllocateType, memoryType types.MemoryType, pages uint64) (types.PhysAddr, error)
}

// MemoryMapInfo is everything GetMemoryMap() returns besides the descriptors themselves
type MemoryMapInfo struct {
	Size              uint64 // bytes of descriptors written to the buffer
	Key               types.MapKey
	DescriptorSize    uint64
	DescriptorVersion uint32
}

// Count returns the number of descriptors in the map
func (m MemoryMapInfo) Count() int {
	if m.DescriptorSize == 0 {
		return 0
	}
	return int(m.Size / m.DescriptorSize)
}

// MemoryMapper snapshots the current memory map into a caller buffer
type MemoryMapper interface {
	GetMemoryMap(buf []byte) (MemoryMapInfo, error)
}

// Exiter terminates boot services
type Exiter interface {
	ExitBootServices(image types.Handle, key types.MapKey) error
}

// BootServices is the EFI_BOOT_SERVICES subset used by the stub
type BootServices interface {
	ProtocolBinder
	PageAllocator
	MemoryMapper
	Exiter
}

// PhysicalMemory gives byte access to reserved physical ranges
type PhysicalMemory interface {
	Slice(addr types.PhysAddr, length uint64) ([]byte, error)
}

// Transferer hands the CPU to a loaded image. Transfer must not return; if it
// does the caller treats it as a fatal internal error.
type Transferer interface {
	Transfer(entry types.PhysAddr, handoff types.PhysAddr)
}

// SystemTable bundles the capabilities available to the running image
type SystemTable struct {
	ConOut       Console
	BootServices BootServices
	Memory       PhysicalMemory
	CPU          Transferer
}

// Validate checks every capability is present
func (st *SystemTable) Validate() error {
	switch {
	case st == nil:
		return fmt.Errorf("system table is nil")
	case st.ConOut == nil:
		return fmt.Errorf("system table has no console")
	case st.BootServices == nil:
		return fmt.Errorf("system table has no boot services")
	case st.Memory == nil:
		return fmt.Errorf("system table has no physical memory accessor")
	case st.CPU == nil:
		return fmt.Errorf("system table has no transfer capability")
	}
	return nil
}

// BufferTooSmallError is returned by GetMemoryMap() when the caller buffer can not hold the map
type BufferTooSmallError struct {
	Required uint64
	Got      uint64
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("memory map buffer too small: need %d bytes, have %d", e.Required, e.Got)
}

// Unwrap lets errors.Is match types.EFI_BUFFER_TOO_SMALL
func (e *BufferTooSmallError) Unwrap() error {
	return types.EFI_BUFFER_TOO_SMALL
}
