// Package fake is an in-memory UEFI platform for tests and host simulation.
package fake

import (
	"fmt"

	"github.com/blacktop/go-efistub/pkg/firmware"
	"github.com/blacktop/go-efistub/types"
)

// Op names a firmware call for fault injection and call accounting
type Op string

const (
	OpAllocatePages    Op = "AllocatePages"
	OpOpenProtocol     Op = "OpenProtocol"
	OpGetMemoryMap     Op = "GetMemoryMap"
	OpExitBootServices Op = "ExitBootServices"
	OpClearScreen      Op = "ClearScreen"
	OpOutputString     Op = "OutputString"
)

const (
	// DefaultDescriptorSize is the stride most x64 firmware reports
	DefaultDescriptorSize = 48
	// DefaultAllocBase is where simulated page allocations start
	DefaultAllocBase = 0x100000000
)

type allocation struct {
	base  types.PhysAddr
	pages uint64
	kind  types.MemoryType
	mem   []byte
}

// Platform simulates boot services: a protocol database, a page allocator,
// the memory map with its snapshot key, and ExitBootServices.
type Platform struct {
	// Descriptors is the firmware owned part of the memory map, reported verbatim
	Descriptors       []types.MemoryDescriptor
	DescriptorSize    uint64
	DescriptorVersion uint32
	AllocBase         types.PhysAddr

	// Faults makes the named call fail with the given error
	Faults map[Op]error
	// Calls counts every firmware call by name
	Calls map[Op]int
	// Violations records calls made after ExitBootServices
	Violations []string

	key         types.MapKey
	next        types.PhysAddr
	allocations []allocation
	protocols   map[types.Handle]map[types.GUID]interface{}
	exited      bool
}

// NewPlatform returns a platform reporting descs as its memory map
func NewPlatform(descs ...types.MemoryDescriptor) *Platform {
	return &Platform{
		Descriptors:       descs,
		DescriptorSize:    DefaultDescriptorSize,
		DescriptorVersion: types.EFI_MEMORY_DESCRIPTOR_VERSION,
		AllocBase:         DefaultAllocBase,
		Faults:            make(map[Op]error),
		Calls:             make(map[Op]int),
		protocols:         make(map[types.Handle]map[types.GUID]interface{}),
		key:               1,
	}
}

func (p *Platform) call(op Op) error {
	p.Calls[op]++
	if p.exited {
		p.Violations = append(p.Violations, string(op))
		return fmt.Errorf("%s called after ExitBootServices: %w", op, types.EFI_UNSUPPORTED)
	}
	if err, ok := p.Faults[op]; ok {
		return err
	}
	return nil
}

// Exited reports whether ExitBootServices succeeded
func (p *Platform) Exited() bool {
	return p.exited
}

// Key returns the current memory map key
func (p *Platform) Key() types.MapKey {
	return p.key
}

// Invalidate changes the memory map behind the caller's back, as a firmware
// timer or driver event would
func (p *Platform) Invalidate() {
	p.key++
}

// Install adds a protocol interface to a handle
func (p *Platform) Install(handle types.Handle, protocol types.GUID, iface interface{}) {
	if p.protocols[handle] == nil {
		p.protocols[handle] = make(map[types.GUID]interface{})
	}
	p.protocols[handle][protocol] = iface
}

// OpenProtocol looks protocol up on handle
func (p *Platform) OpenProtocol(handle types.Handle, protocol types.GUID, agent types.Handle) (interface{}, error) {
	if err := p.call(OpOpenProtocol); err != nil {
		return nil, err
	}
	iface, ok := p.protocols[handle][protocol]
	if !ok {
		return nil, fmt.Errorf("protocol %s not installed on %s: %w", protocol, handle, types.EFI_UNSUPPORTED)
	}
	return iface, nil
}

// AllocatePages hands out zeroed pages above AllocBase; every allocation changes the map key
func (p *Platform) AllocatePages(allocateType types.AllocateType, memoryType types.MemoryType, pages uint64) (types.PhysAddr, error) {
	if err := p.call(OpAllocatePages); err != nil {
		return 0, err
	}
	if allocateType != types.AllocateAnyPages {
		return 0, fmt.Errorf("allocate type %d: %w", allocateType, types.EFI_UNSUPPORTED)
	}
	if pages == 0 {
		return 0, types.EFI_INVALID_PARAMETER
	}
	if p.next == 0 {
		p.next = p.AllocBase
	}

	a := allocation{
		base:  p.next,
		pages: pages,
		kind:  memoryType,
		mem:   make([]byte, pages*types.PageSize),
	}
	p.allocations = append(p.allocations, a)
	p.next += types.PhysAddr(pages * types.PageSize)
	p.key++

	return a.base, nil
}

// Slice returns the backing bytes of an allocated physical range
func (p *Platform) Slice(addr types.PhysAddr, length uint64) ([]byte, error) {
	for _, a := range p.allocations {
		end := a.base + types.PhysAddr(len(a.mem))
		if addr >= a.base && addr+types.PhysAddr(length) <= end {
			off := uint64(addr - a.base)
			return a.mem[off : off+length], nil
		}
	}
	return nil, fmt.Errorf("range %s+%#x is not allocated: %w", addr, length, types.EFI_INVALID_PARAMETER)
}

// MemoryMap returns the descriptors GetMemoryMap would report right now
func (p *Platform) MemoryMap() []types.MemoryDescriptor {
	descs := make([]types.MemoryDescriptor, 0, len(p.Descriptors)+len(p.allocations))
	descs = append(descs, p.Descriptors...)
	for _, a := range p.allocations {
		descs = append(descs, types.MemoryDescriptor{
			Type:          a.kind,
			PhysicalStart: a.base,
			NumberOfPages: a.pages,
		})
	}
	return descs
}

// GetMemoryMap encodes the current map with the platform stride
func (p *Platform) GetMemoryMap(buf []byte) (firmware.MemoryMapInfo, error) {
	if err := p.call(OpGetMemoryMap); err != nil {
		return firmware.MemoryMapInfo{}, err
	}

	stride := p.DescriptorSize
	descs := p.MemoryMap()
	required := uint64(len(descs)) * stride
	if uint64(len(buf)) < required {
		return firmware.MemoryMapInfo{}, &firmware.BufferTooSmallError{Required: required, Got: uint64(len(buf))}
	}

	for i, desc := range descs {
		slot := buf[uint64(i)*stride : uint64(i+1)*stride]
		for j := range slot {
			slot[j] = 0
		}
		if err := desc.Put(slot); err != nil {
			return firmware.MemoryMapInfo{}, fmt.Errorf("failed to encode descriptor %d: %w", i, err)
		}
	}

	return firmware.MemoryMapInfo{
		Size:              required,
		Key:               p.key,
		DescriptorSize:    stride,
		DescriptorVersion: p.DescriptorVersion,
	}, nil
}

// ExitBootServices succeeds only with the current map key
func (p *Platform) ExitBootServices(image types.Handle, key types.MapKey) error {
	if err := p.call(OpExitBootServices); err != nil {
		return err
	}
	if key != p.key {
		return fmt.Errorf("stale map key %d (current %d): %w", key, p.key, types.EFI_INVALID_PARAMETER)
	}
	p.exited = true
	return nil
}
