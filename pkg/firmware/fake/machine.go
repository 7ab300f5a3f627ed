package fake

import (
	"runtime"

	"github.com/blacktop/go-efistub/pkg/firmware"
	"github.com/blacktop/go-efistub/types"
)

const (
	ImageHandle  types.Handle = 0x1000
	DeviceHandle types.Handle = 0x2000
)

// LoadedImage is a EFI_LOADED_IMAGE_PROTOCOL stand-in
type LoadedImage struct {
	Device types.Handle
}

func (l *LoadedImage) DeviceHandle() types.Handle {
	return l.Device
}

// CPU records the control transfer. Unless Return is set, Transfer ends the
// calling goroutine so it never returns to the boot stub.
type CPU struct {
	Entry   types.PhysAddr
	Handoff types.PhysAddr
	Jumped  bool
	Return  bool

	OnTransfer func(entry, handoff types.PhysAddr)
}

func (c *CPU) Transfer(entry, handoff types.PhysAddr) {
	c.Entry = entry
	c.Handoff = handoff
	c.Jumped = true
	if c.OnTransfer != nil {
		c.OnTransfer(entry, handoff)
	}
	if c.Return {
		return
	}
	runtime.Goexit()
}

// Machine wires a platform, console and CPU around one running image
// loaded from a device carrying fs
type Machine struct {
	Platform *Platform
	Console  *Console
	CPU      *CPU
	Image    types.Handle
	Device   types.Handle
}

// NewMachine returns a machine booting from fs with descs as firmware memory map.
// A nil fs leaves the boot device without a file system protocol.
func NewMachine(fs firmware.SimpleFileSystem, descs ...types.MemoryDescriptor) *Machine {
	p := NewPlatform(descs...)
	m := &Machine{
		Platform: p,
		Console:  NewConsole(p),
		CPU:      &CPU{},
		Image:    ImageHandle,
		Device:   DeviceHandle,
	}
	p.Install(m.Image, types.EFI_LOADED_IMAGE_PROTOCOL_GUID, &LoadedImage{Device: m.Device})
	if fs != nil {
		p.Install(m.Device, types.EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_GUID, fs)
	}
	return m
}

// SystemTable returns the capabilities of the machine
func (m *Machine) SystemTable() *firmware.SystemTable {
	return &firmware.SystemTable{
		ConOut:       m.Console,
		BootServices: m.Platform,
		Memory:       m.Platform,
		CPU:          m.CPU,
	}
}

// Run calls fn on its own goroutine and reports whether fn returned. It
// returns false when fn was ended by a control transfer.
func (m *Machine) Run(fn func()) (returned bool) {
	done := make(chan bool)
	go func() {
		ok := false
		defer func() { done <- ok }()
		fn()
		ok = true
	}()
	return <-done
}
