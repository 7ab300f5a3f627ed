package types

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// PageSize is the UEFI page granularity
const PageSize = 0x1000

// PhysAddr is a EFI_PHYSICAL_ADDRESS
type PhysAddr uint64

func (a PhysAddr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// MapKey is the snapshot token returned by GetMemoryMap() and consumed by ExitBootServices()
type MapKey uint64

// Pages returns the number of pages needed to hold size bytes
func Pages(size uint64) uint64 {
	return (size + PageSize - 1) / PageSize
}

// AllocateType is a EFI_ALLOCATE_TYPE
type AllocateType uint32

// EFI_ALLOCATE_TYPE
const (
	AllocateAnyPages AllocateType = iota
	AllocateMaxAddress
	AllocateAddress
	MaxAllocateType
)

// MemoryType is a EFI_MEMORY_TYPE
type MemoryType uint32

// EFI_MEMORY_TYPE
const (
	EfiReservedMemoryType MemoryType = iota
	EfiLoaderCode
	EfiLoaderData
	EfiBootServicesCode
	EfiBootServicesData
	EfiRuntimeServicesCode
	EfiRuntimeServicesData
	EfiConventionalMemory
	EfiUnusableMemory
	EfiACPIReclaimMemory
	EfiACPIMemoryNVS
	EfiMemoryMappedIO
	EfiMemoryMappedIOPortSpace
	EfiPalCode
	EfiPersistentMemory
	EfiUnacceptedMemoryType
	EfiMaxMemoryType
)

var memoryTypeNames = [...]string{
	"EfiReservedMemoryType",
	"EfiLoaderCode",
	"EfiLoaderData",
	"EfiBootServicesCode",
	"EfiBootServicesData",
	"EfiRuntimeServicesCode",
	"EfiRuntimeServicesData",
	"EfiConventionalMemory",
	"EfiUnusableMemory",
	"EfiACPIReclaimMemory",
	"EfiACPIMemoryNVS",
	"EfiMemoryMappedIO",
	"EfiMemoryMappedIOPortSpace",
	"EfiPalCode",
	"EfiPersistentMemory",
	"EfiUnacceptedMemoryType",
}

func (t MemoryType) String() string {
	if int(t) < len(memoryTypeNames) {
		return memoryTypeNames[t]
	}
	return fmt.Sprintf("MemoryType(%#x)", uint32(t))
}

// ParseMemoryType looks a memory type up by name, with or without the Efi prefix
func ParseMemoryType(name string) (MemoryType, error) {
	for i, n := range memoryTypeNames {
		if strings.EqualFold(n, name) || strings.EqualFold(strings.TrimPrefix(n, "Efi"), name) {
			return MemoryType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown memory type %q", name)
}

var (
	freeColor     = color.New(color.Bold, color.FgGreen).SprintFunc()
	loaderColor   = color.New(color.FgCyan).SprintFunc()
	bootSvcColor  = color.New(color.FgYellow).SprintFunc()
	reservedColor = color.New(color.Faint, color.FgWhite).SprintFunc()
	runtimeColor  = color.New(color.FgMagenta).SprintFunc()
)

// Color returns the type name colorized by how reusable the memory is after boot
func (t MemoryType) Color() string {
	switch t {
	case EfiConventionalMemory:
		return freeColor(t.String())
	case EfiLoaderCode, EfiLoaderData:
		return loaderColor(t.String())
	case EfiBootServicesCode, EfiBootServicesData:
		return bootSvcColor(t.String())
	case EfiRuntimeServicesCode, EfiRuntimeServicesData, EfiACPIMemoryNVS:
		return runtimeColor(t.String())
	default:
		return reservedColor(t.String())
	}
}

// MemoryDescriptorSize is the size of the EFI_MEMORY_DESCRIPTOR structure as
// declared by the specification. Firmware may report a larger stride.
const MemoryDescriptorSize = 40

// EFI_MEMORY_DESCRIPTOR version implemented by this package
const EFI_MEMORY_DESCRIPTOR_VERSION = 1

// MemoryDescriptor is a EFI_MEMORY_DESCRIPTOR struct
type MemoryDescriptor struct {
	Type          MemoryType
	Pad           uint32
	PhysicalStart PhysAddr
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     uint64
}

func (d MemoryDescriptor) String() string {
	return fmt.Sprintf("%s [%#016x-%#016x] pages=%d (%s) attr=%#x",
		d.Type,
		uint64(d.PhysicalStart),
		uint64(d.End()),
		d.NumberOfPages,
		humanize.IBytes(d.Size()),
		d.Attribute,
	)
}

// Size returns the size in bytes described by the descriptor
func (d MemoryDescriptor) Size() uint64 {
	return d.NumberOfPages * PageSize
}

// End returns the first address past the described range
func (d MemoryDescriptor) End() PhysAddr {
	return d.PhysicalStart + PhysAddr(d.Size())
}

// ParseMemoryDescriptor decodes one descriptor from the start of b. Only the
// first MemoryDescriptorSize bytes are interpreted, any trailing bytes of a
// larger firmware stride are ignored.
func ParseMemoryDescriptor(b []byte) (MemoryDescriptor, error) {
	if len(b) < MemoryDescriptorSize {
		return MemoryDescriptor{}, fmt.Errorf("memory descriptor too short: got %d bytes, need %d", len(b), MemoryDescriptorSize)
	}
	return MemoryDescriptor{
		Type:          MemoryType(binary.LittleEndian.Uint32(b[0:])),
		Pad:           binary.LittleEndian.Uint32(b[4:]),
		PhysicalStart: PhysAddr(binary.LittleEndian.Uint64(b[8:])),
		VirtualStart:  binary.LittleEndian.Uint64(b[16:]),
		NumberOfPages: binary.LittleEndian.Uint64(b[24:]),
		Attribute:     binary.LittleEndian.Uint64(b[32:]),
	}, nil
}

// Put encodes the descriptor into the start of b
func (d MemoryDescriptor) Put(b []byte) error {
	if len(b) < MemoryDescriptorSize {
		return fmt.Errorf("memory descriptor buffer too short: got %d bytes, need %d", len(b), MemoryDescriptorSize)
	}
	binary.LittleEndian.PutUint32(b[0:], uint32(d.Type))
	binary.LittleEndian.PutUint32(b[4:], d.Pad)
	binary.LittleEndian.PutUint64(b[8:], uint64(d.PhysicalStart))
	binary.LittleEndian.PutUint64(b[16:], d.VirtualStart)
	binary.LittleEndian.PutUint64(b[24:], d.NumberOfPages)
	binary.LittleEndian.PutUint64(b[32:], d.Attribute)
	return nil
}
