/*
Copyright © 2026 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/blacktop/go-efistub/pkg/firmware/fake"
	"github.com/blacktop/go-efistub/pkg/firmware/uefi"
	"github.com/blacktop/go-efistub/pkg/volume"
	"github.com/blacktop/go-efistub/types"
	"github.com/blacktop/go-plist"
	"github.com/spf13/viper"
)

// Profile describes the firmware of a simulated platform
type Profile struct {
	Name           string              `plist:"name" mapstructure:"name"`
	DescriptorSize uint64              `plist:"descriptor_size,omitempty" mapstructure:"descriptor_size"`
	AllocBase      uint64              `plist:"alloc_base,omitempty" mapstructure:"alloc_base"`
	Descriptors    []ProfileDescriptor `plist:"descriptors" mapstructure:"descriptors"`
}

// ProfileDescriptor is one firmware owned memory map entry
type ProfileDescriptor struct {
	Type      string `plist:"type" mapstructure:"type"`
	Base      uint64 `plist:"base" mapstructure:"base"`
	Pages     uint64 `plist:"pages" mapstructure:"pages"`
	Attribute uint64 `plist:"attribute,omitempty" mapstructure:"attribute"`
}

// simImageSize is the span of the stub's own sections in the default profile
const simImageSize = 0x400000

// defaultProfile is a QEMU/OVMF guest with 512MB of RAM running the stub image
// with its heap reserved
func defaultProfile() *Profile {
	heapBase, heapPages := uefi.HeapRange(uefi.RamStart + simImageSize)
	return &Profile{
		Name:           "qemu-ovmf-512m",
		DescriptorSize: fake.DefaultDescriptorSize,
		Descriptors: []ProfileDescriptor{
			{Type: "BootServicesCode", Base: 0x0, Pages: 0x1},
			{Type: "ConventionalMemory", Base: 0x1000, Pages: 0x9f},
			{Type: "ConventionalMemory", Base: 0x100000, Pages: 0x700},
			{Type: "ACPIMemoryNVS", Base: 0x800000, Pages: 0x8},
			{Type: "ConventionalMemory", Base: 0x808000, Pages: 0x7f8},
			{Type: "BootServicesData", Base: 0x1000000, Pages: 0x100},
			{Type: "ConventionalMemory", Base: 0x1100000, Pages: (uefi.RamStart - 0x1100000) / types.PageSize},
			{Type: "LoaderCode", Base: uefi.RamStart, Pages: simImageSize / types.PageSize},
			{Type: "LoaderData", Base: heapBase, Pages: heapPages},
			{Type: "ConventionalMemory", Base: uefi.RamStart + uefi.RamSize, Pages: (0x1cd00000 - uefi.RamStart - uefi.RamSize) / types.PageSize},
			{Type: "LoaderCode", Base: 0x1cd00000, Pages: 0x200},
			{Type: "BootServicesCode", Base: 0x1cf00000, Pages: 0x800},
			{Type: "RuntimeServicesData", Base: 0x1f700000, Pages: 0x100},
			{Type: "ACPIReclaimMemory", Base: 0x1f800000, Pages: 0x80},
			{Type: "ReservedMemoryType", Base: 0x1f880000, Pages: 0x780},
			{Type: "MemoryMappedIO", Base: 0xffc00000, Pages: 0x400},
		},
	}
}

// loadProfile reads a platform profile plist. Without a path the profile comes
// from the platform key of the config, or is the default one.
func loadProfile(path string) (*Profile, error) {
	if path == "" {
		if !viper.IsSet("platform") {
			return defaultProfile(), nil
		}
		var p Profile
		if err := viper.UnmarshalKey("platform", &p); err != nil {
			return nil, fmt.Errorf("failed to parse platform config: %v", err)
		}
		if len(p.Descriptors) == 0 {
			return nil, fmt.Errorf("platform config has no memory map")
		}
		return &p, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var p Profile
	if err := plist.NewDecoder(f).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse platform profile %s: %v", path, err)
	}
	if len(p.Descriptors) == 0 {
		return nil, fmt.Errorf("platform profile %s has no memory map", path)
	}
	return &p, nil
}

// MemoryMap converts the profile into firmware descriptors
func (p *Profile) MemoryMap() ([]types.MemoryDescriptor, error) {
	descs := make([]types.MemoryDescriptor, 0, len(p.Descriptors))
	for i, d := range p.Descriptors {
		typ, err := types.ParseMemoryType(d.Type)
		if err != nil {
			return nil, fmt.Errorf("descriptor %d: %v", i, err)
		}
		descs = append(descs, types.MemoryDescriptor{
			Type:          typ,
			PhysicalStart: types.PhysAddr(d.Base),
			NumberOfPages: d.Pages,
			Attribute:     d.Attribute,
		})
	}
	return descs, nil
}

// newMachine builds a simulated machine booting from the host directory dir.
// An empty dir boots from an empty volume.
func newMachine(dir string, p *Profile) (*fake.Machine, *volume.Volume, error) {
	descs, err := p.MemoryMap()
	if err != nil {
		return nil, nil, err
	}

	var vol *volume.Volume
	if dir != "" {
		vol, err = volume.Open(dir, &volume.Config{DisableCache: true})
		if err != nil {
			return nil, nil, err
		}
	}

	var m *fake.Machine
	if vol != nil {
		m = fake.NewMachine(vol, descs...)
	} else {
		m = fake.NewMachine(nil, descs...)
	}
	if p.DescriptorSize != 0 {
		m.Platform.DescriptorSize = p.DescriptorSize
	}
	if p.AllocBase != 0 {
		m.Platform.AllocBase = types.PhysAddr(p.AllocBase)
	}

	return m, vol, nil
}
