package efistub_test

import (
	"testing"

	"github.com/blacktop/go-efistub"
	"github.com/blacktop/go-efistub/pkg/firmware"
	"github.com/blacktop/go-efistub/pkg/firmware/fake"
	"github.com/blacktop/go-efistub/pkg/volume"
	"github.com/blacktop/go-efistub/types"
	"github.com/spf13/afero"
)

func conventional(base types.PhysAddr, pages uint64) types.MemoryDescriptor {
	return types.MemoryDescriptor{
		Type:          types.EfiConventionalMemory,
		PhysicalStart: base,
		NumberOfPages: pages,
	}
}

func newVolume(t testing.TB, files map[string][]byte) firmware.SimpleFileSystem {
	t.Helper()
	mfs := afero.NewMemMapFs()
	for name, data := range files {
		if err := afero.WriteFile(mfs, "/"+name, data, 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	vol, err := volume.New(mfs, &volume.Config{DisableCache: true})
	if err != nil {
		t.Fatalf("failed to create volume: %v", err)
	}
	return vol
}

func newMachine(t testing.TB, files map[string][]byte, descs ...types.MemoryDescriptor) *fake.Machine {
	t.Helper()
	return fake.NewMachine(newVolume(t, files), descs...)
}

// smallConfig keeps the slots to a few pages
func smallConfig() efistub.Config {
	conf := efistub.DefaultConfig()
	conf.LoaderSlotSize = 2 * types.PageSize
	conf.KernelSlotSize = 4 * types.PageSize
	conf.MaxRegions = 8
	return conf
}

func payload(n int, fill byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill
	}
	return b
}

func defaultFiles() map[string][]byte {
	return map[string][]byte{
		efistub.LoaderFile: payload(10, 0xAA),
		efistub.KernelFile: payload(20, 0xBB),
	}
}

func newStub(t testing.TB, m *fake.Machine, conf efistub.Config, opts ...efistub.Option) *efistub.Stub {
	t.Helper()
	s, err := efistub.New(m.Image, m.SystemTable(), conf, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}
