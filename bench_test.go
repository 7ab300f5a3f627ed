package efistub_test

import (
	"testing"

	"github.com/blacktop/go-efistub"
	"github.com/blacktop/go-efistub/pkg/firmware/fake"
	"github.com/blacktop/go-efistub/types"
)

// benchMap is a map shaped like one from a QEMU/OVMF guest with 2GiB of RAM
func benchMap(n int) []types.MemoryDescriptor {
	descs := make([]types.MemoryDescriptor, 0, n)
	base := types.PhysAddr(0x100000)
	for i := 0; i < n; i++ {
		typ := types.EfiConventionalMemory
		switch i % 4 {
		case 1:
			typ = types.EfiBootServicesData
		case 2:
			typ = types.EfiLoaderCode
		}
		descs = append(descs, types.MemoryDescriptor{Type: typ, PhysicalStart: base, NumberOfPages: 0x80})
		base += 0x80 * types.PageSize
	}
	return descs
}

// BenchmarkBuildRegionList measures one pass over a full map buffer
func BenchmarkBuildRegionList(b *testing.B) {
	buf, info := encodeMap(b, benchMap(efistub.MemMapBufferSize/fake.DefaultDescriptorSize), fake.DefaultDescriptorSize)
	list, err := types.NewRegionList(make([]byte, types.RegionListSize(efistub.MaxMemRegions)))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.SetBytes(int64(info.Size))
	for i := 0; i < b.N; i++ {
		if _, err := efistub.BuildRegionList(buf, info, efistub.LowMemoryThreshold, list); err != nil {
			b.Fatalf("failed to build region list: %v", err)
		}
	}
}

// BenchmarkBoot measures a whole boot attempt against the in-memory firmware
func BenchmarkBoot(b *testing.B) {
	files := map[string][]byte{
		efistub.LoaderFile: payload(64*1024, 0xAA),
		efistub.KernelFile: payload(512*1024, 0xBB),
	}
	descs := benchMap(256)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := newMachine(b, files, descs...)
		var status types.Status
		if m.Run(func() { status = efistub.Main(m.Image, m.SystemTable(), efistub.DefaultConfig()) }) {
			b.Fatalf("boot failed: %s", status)
		}
	}
}
