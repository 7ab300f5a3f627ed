package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/go-efistub"
	"github.com/blacktop/go-efistub/pkg/firmware/uefi"
	"github.com/blacktop/go-efistub/types"
	"github.com/blacktop/go-plist"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfile(t *testing.T) {
	descs, err := defaultProfile().MemoryMap()
	require.NoError(t, err)
	assert.Len(t, descs, len(defaultProfile().Descriptors))
	assert.Equal(t, types.EfiConventionalMemory, descs[1].Type)
}

func TestLoadProfile(t *testing.T) {
	want := &Profile{
		Name:           "tiny",
		DescriptorSize: 64,
		Descriptors: []ProfileDescriptor{
			{Type: "EfiConventionalMemory", Base: 0x400000, Pages: 4},
		},
	}
	data, err := plist.Marshal(want, plist.XMLFormat)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tiny.plist")
	require.NoError(t, os.WriteFile(path, data, 0644))

	got, err := loadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	bad := &Profile{Name: "bad", Descriptors: []ProfileDescriptor{{Type: "Free", Base: 0x1000, Pages: 1}}}
	_, err = bad.MemoryMap()
	assert.Error(t, err)

	_, err = loadProfile(filepath.Join(t.TempDir(), "missing.plist"))
	assert.Error(t, err)
}

func TestSimulate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, efistub.LoaderFile), make([]byte, 10), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, efistub.KernelFile), make([]byte, 20), 0644))

	p := defaultProfile()
	m, vol, err := newMachine(dir, p)
	require.NoError(t, err)
	require.NotNil(t, vol)

	r := simulate(m, p, efistub.DefaultConfig(), false)
	require.True(t, r.Jumped)
	assert.Equal(t, "EFI_SUCCESS", r.Status)
	assert.Equal(t, r.Entry+efistub.LoaderBufferSize, r.Kernel)
	assert.Contains(t, r.Regions, types.Region{Base: 0x1100000, Pages: 0xef00})
	assert.Contains(t, r.Regions, types.Region{Base: 0x18000000, Pages: 0x4d00})
	for _, reg := range r.Regions {
		end := uint64(reg.Base) + reg.Pages*types.PageSize
		assert.False(t, uint64(reg.Base) < uefi.RamStart+uefi.RamSize && end > uefi.RamStart,
			"region %v overlaps the stub image and heap", reg)
	}
	assert.NotContains(t, r.Regions, types.Region{Base: 0x100000, Pages: 0x700})
	assert.Equal(t, []string{"Beginning EFI Boot...", "Loaded the loader and kernel!"}, r.Console)
}

func TestSimulateFailure(t *testing.T) {
	p := defaultProfile()
	m, _, err := newMachine(t.TempDir(), p)
	require.NoError(t, err)

	r := simulate(m, p, efistub.DefaultConfig(), false)
	assert.False(t, r.Jumped)
	assert.Equal(t, types.EFI_NOT_FOUND.String(), r.Status)
	assert.Equal(t, "Failed to open loader.bin!", r.Console[len(r.Console)-1])
}

func TestProfileFromConfig(t *testing.T) {
	defer viper.Reset()
	viper.Set("platform", map[string]interface{}{
		"name":       "from-config",
		"alloc_base": 0x200000000,
		"descriptors": []map[string]interface{}{
			{"type": "ConventionalMemory", "base": 0x400000, "pages": 4},
		},
	})

	p, err := loadProfile("")
	require.NoError(t, err)
	assert.Equal(t, "from-config", p.Name)
	assert.EqualValues(t, 0x200000000, p.AllocBase)
	require.Len(t, p.Descriptors, 1)

	m, _, err := newMachine("", p)
	require.NoError(t, err)
	assert.EqualValues(t, 0x200000000, m.Platform.AllocBase)
}
