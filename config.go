package efistub

import (
	"fmt"

	"github.com/blacktop/go-efistub/types"
)

const (
	LoaderFile = "loader.bin"
	KernelFile = "kernel.o"

	LoaderBufferSize = 1 * 1024 * 1024
	KernelBufferSize = 1 * 1024 * 1024

	MemMapBufferSize = 16 * 1024
	MaxMemRegions    = 1024

	// free memory below this address is left to early boot structures
	LowMemoryThreshold = 0x300000
)

// Config holds the fixed layout of a boot attempt
type Config struct {
	LoaderPath          string         `mapstructure:"loader"`
	KernelPath          string         `mapstructure:"kernel"`
	LoaderSlotSize      uint64         `mapstructure:"loader_slot"`
	KernelSlotSize      uint64         `mapstructure:"kernel_slot"`
	MemoryMapBufferSize uint64         `mapstructure:"memory_map_buffer"`
	MaxRegions          int            `mapstructure:"max_regions"`
	LowMemoryThreshold  types.PhysAddr `mapstructure:"low_memory_threshold"`
}

// DefaultConfig returns the layout the firmware build boots with
func DefaultConfig() Config {
	return Config{
		LoaderPath:          LoaderFile,
		KernelPath:          KernelFile,
		LoaderSlotSize:      LoaderBufferSize,
		KernelSlotSize:      KernelBufferSize,
		MemoryMapBufferSize: MemMapBufferSize,
		MaxRegions:          MaxMemRegions,
		LowMemoryThreshold:  LowMemoryThreshold,
	}
}

// Validate rejects layouts the boot sequence can not honor
func (c Config) Validate() error {
	switch {
	case c.LoaderPath == "" || c.KernelPath == "":
		return fmt.Errorf("loader and kernel paths must be set")
	case c.LoaderSlotSize == 0 || c.KernelSlotSize == 0:
		return fmt.Errorf("slot sizes must be non-zero")
	case c.LoaderSlotSize%types.PageSize != 0 || c.KernelSlotSize%types.PageSize != 0:
		return fmt.Errorf("slot sizes must be multiples of the page size %#x", types.PageSize)
	case c.MemoryMapBufferSize < types.MemoryDescriptorSize:
		return fmt.Errorf("memory map buffer must hold at least one descriptor")
	case c.MaxRegions < 0:
		return fmt.Errorf("max regions must not be negative")
	case c.LowMemoryThreshold == 0:
		return fmt.Errorf("low memory threshold must be non-zero")
	}
	return nil
}

// ImageRegionSize returns the bytes reserved for both payload slots
func (c Config) ImageRegionSize() uint64 {
	return c.LoaderSlotSize + c.KernelSlotSize
}
