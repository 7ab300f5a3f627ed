//go:build tamago && amd64

package uefi

import (
	"fmt"
	"runtime"

	"github.com/blacktop/go-efistub/pkg/firmware"
	"github.com/blacktop/go-efistub/types"
)

// EFI Boot Services offsets
const (
	allocatePages    = 0x28
	getMemoryMap     = 0x38
	exit             = 0xd8
	exitBootServices = 0xe8
	openProtocol     = 0x118
)

// BootServices is the EFI_BOOT_SERVICES table
type BootServices struct {
	base  uint64
	image types.Handle
}

// AllocatePages calls EFI_BOOT_SERVICES.AllocatePages().
func (s *BootServices) AllocatePages(allocateType types.AllocateType, memoryType types.MemoryType, pages uint64) (types.PhysAddr, error) {
	out.addr = 0
	status := call(s.base, allocatePages,
		uint64(allocateType),
		uint64(memoryType),
		pages,
		ptrval(&out.addr),
	)
	if err := types.ParseStatus(status); err != nil {
		return 0, err
	}
	return types.PhysAddr(out.addr), nil
}

// GetMemoryMap calls EFI_BOOT_SERVICES.GetMemoryMap().
func (s *BootServices) GetMemoryMap(buf []byte) (firmware.MemoryMapInfo, error) {
	if len(buf) == 0 {
		return firmware.MemoryMapInfo{}, types.EFI_INVALID_PARAMETER
	}

	out.size = uint64(len(buf))
	status := call(s.base, getMemoryMap,
		ptrval(&out.size),
		ptrval(&buf[0]),
		ptrval(&out.key),
		ptrval(&out.descSize),
		ptrval(&out.version),
	)
	runtime.KeepAlive(buf)

	if types.Status(status) == types.EFI_BUFFER_TOO_SMALL {
		return firmware.MemoryMapInfo{}, &firmware.BufferTooSmallError{Required: out.size, Got: uint64(len(buf))}
	}
	if err := types.ParseStatus(status); err != nil {
		return firmware.MemoryMapInfo{}, err
	}

	return firmware.MemoryMapInfo{
		Size:              out.size,
		Key:               types.MapKey(out.key),
		DescriptorSize:    out.descSize,
		DescriptorVersion: out.version,
	}, nil
}

// ExitBootServices calls EFI_BOOT_SERVICES.ExitBootServices().
func (s *BootServices) ExitBootServices(image types.Handle, key types.MapKey) error {
	return types.ParseStatus(call(s.base, exitBootServices, uint64(image), uint64(key)))
}

// Exit calls EFI_BOOT_SERVICES.Exit().
func (s *BootServices) Exit(status types.Status) error {
	return types.ParseStatus(call(s.base, exit, uint64(s.image), uint64(status), 0, 0))
}

// OpenProtocol calls EFI_BOOT_SERVICES.OpenProtocol() and wraps the
// interface for the protocols the stub knows.
func (s *BootServices) OpenProtocol(handle types.Handle, protocol types.GUID, agent types.Handle) (interface{}, error) {
	out.guid = protocol.Bytes()
	out.iface = 0
	status := call(s.base, openProtocol,
		uint64(handle),
		ptrval(&out.guid),
		ptrval(&out.iface),
		uint64(agent),
		0,
		types.EFI_OPEN_PROTOCOL_GET_PROTOCOL,
	)
	if err := types.ParseStatus(status); err != nil {
		return nil, err
	}

	switch protocol {
	case types.EFI_LOADED_IMAGE_PROTOCOL_GUID:
		return &loadedImage{base: out.iface}, nil
	case types.EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_GUID:
		return &simpleFileSystem{base: out.iface}, nil
	}
	return nil, fmt.Errorf("no binding for protocol %s: %w", protocol, types.EFI_UNSUPPORTED)
}
