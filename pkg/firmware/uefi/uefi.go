//go:build tamago && amd64

package uefi

import (
	"fmt"
	"unsafe"

	"github.com/blacktop/go-efistub/pkg/firmware"
	"github.com/blacktop/go-efistub/types"
)

// set by efi_main
var (
	imageHandle uint64
	systemTable uint64
	heapBase    uint64
	heapPages   uint64
)

// EFI_SYSTEM_TABLE
const (
	systemTableSignature = 0x5453595320494249 // "IBI SYST"

	conOutOffset       = 64
	bootServicesOffset = 96
)

// out parameters handed to firmware must never move
var out struct {
	addr     uint64
	size     uint64
	key      uint64
	descSize uint64
	version  uint32
	iface    uint64
	guid     [16]byte
}

var bootServices *BootServices

func ptrval[T any](p *T) uint64 {
	return uint64(uintptr(unsafe.Pointer(p)))
}

func read64(addr uint64) uint64 {
	return *(*uint64)(unsafe.Pointer(uintptr(addr)))
}

// call invokes the function pointer stored at table+off
func call(table, off uint64, args ...uint64) uint64 {
	var a [6]uint64
	copy(a[:], args)
	return callService(read64(table+off), a[0], a[1], a[2], a[3], a[4], a[5])
}

// Init binds the system table handed to efi_main
func Init() (types.Handle, *firmware.SystemTable, error) {
	if imageHandle == 0 || systemTable == 0 {
		return 0, nil, fmt.Errorf("image was not started through efi_main")
	}
	if sig := read64(systemTable); sig != systemTableSignature {
		return 0, nil, fmt.Errorf("invalid system table signature %#x", sig)
	}
	if base, pages := HeapRange(heapBase); base != heapBase || pages != heapPages {
		return 0, nil, fmt.Errorf("heap reserved at %#x (%d pages), want %#x (%d pages)", heapBase, heapPages, base, pages)
	}

	image := types.Handle(imageHandle)
	bootServices = &BootServices{
		base:  read64(systemTable + bootServicesOffset),
		image: image,
	}

	return image, &firmware.SystemTable{
		ConOut:       &Console{base: read64(systemTable + conOutOffset)},
		BootServices: bootServices,
		Memory:       memory{},
		CPU:          cpu{},
	}, nil
}

// Exit returns status to the firmware image loader
func Exit(status types.Status) error {
	if bootServices == nil {
		return fmt.Errorf("boot services are not bound")
	}
	return bootServices.Exit(status)
}

type memory struct{}

// Slice maps a physical range; boot services run identity mapped
func (memory) Slice(addr types.PhysAddr, length uint64) ([]byte, error) {
	if addr == 0 {
		return nil, fmt.Errorf("refusing to map the zero page: %w", types.EFI_INVALID_PARAMETER)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), length), nil
}

type cpu struct{}

func (cpu) Transfer(entry, handoff types.PhysAddr) {
	jump(uint64(entry), uint64(handoff))
}

// defined in call_amd64.s
func callService(fn, a1, a2, a3, a4, a5, a6 uint64) uint64
func jump(entry, handoff uint64)
