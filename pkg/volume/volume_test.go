package volume

import (
	"testing"

	"github.com/blacktop/go-efistub/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVolume(t *testing.T, c *Config) *Volume {
	t.Helper()
	mfs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mfs, "/loader.bin", []byte("0123456789"), 0644))
	require.NoError(t, afero.WriteFile(mfs, "/EFI/BOOT/kernel.o", []byte("kernel"), 0644))
	v, err := New(mfs, c)
	require.NoError(t, err)
	return v
}

func TestClean(t *testing.T) {
	tests := []struct {
		dir  string
		name string
		want string
	}{
		{"/", "loader.bin", "/loader.bin"},
		{"/", `\EFI\BOOT\kernel.o`, "/EFI/BOOT/kernel.o"},
		{"/EFI", `BOOT\kernel.o`, "/EFI/BOOT/kernel.o"},
		{"/EFI/BOOT", `..\..\loader.bin`, "/loader.bin"},
		{"/", `..\..\etc\passwd`, "/etc/passwd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.dir, tt.name))
		})
	}
}

func TestOpenRead(t *testing.T) {
	v := newTestVolume(t, nil)

	root, err := v.OpenVolume()
	require.NoError(t, err)

	f, err := root.Open("loader.bin", types.EFI_FILE_MODE_READ)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 4)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(buf))

	big := make([]byte, 64)
	n, err = f.Read(big)
	require.NoError(t, err)
	assert.Equal(t, "456789", string(big[:n]))

	n, err = f.Read(big)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenRelativeNames(t *testing.T) {
	tests := []struct {
		name  string
		write string
	}{
		{"absolute", "/loader.bin"},
		{"relative", "loader.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mfs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(mfs, tt.write, []byte("loader"), 0644))
			v, err := New(mfs, nil)
			require.NoError(t, err)

			fi, err := v.Stat(`\loader.bin`)
			require.NoError(t, err)
			assert.EqualValues(t, 6, fi.Size())

			root, err := v.OpenVolume()
			require.NoError(t, err)
			f, err := root.Open("loader.bin", types.EFI_FILE_MODE_READ)
			require.NoError(t, err)
			buf := make([]byte, 16)
			n, err := f.Read(buf)
			require.NoError(t, err)
			assert.Equal(t, "loader", string(buf[:n]))

			_, err = root.Open("kernel.o", types.EFI_FILE_MODE_READ)
			assert.ErrorIs(t, err, types.EFI_NOT_FOUND)
		})
	}
}

func TestOpenNested(t *testing.T) {
	v := newTestVolume(t, nil)
	root, err := v.OpenVolume()
	require.NoError(t, err)

	dir, err := root.Open(`\EFI\BOOT`, types.EFI_FILE_MODE_READ)
	require.NoError(t, err)

	_, err = dir.Read(make([]byte, 8))
	assert.ErrorIs(t, err, types.EFI_UNSUPPORTED)

	f, err := dir.Open("kernel.o", types.EFI_FILE_MODE_READ)
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "kernel", string(buf[:n]))
}

func TestOpenErrors(t *testing.T) {
	v := newTestVolume(t, nil)
	root, err := v.OpenVolume()
	require.NoError(t, err)

	_, err = root.Open("missing.bin", types.EFI_FILE_MODE_READ)
	assert.ErrorIs(t, err, types.EFI_NOT_FOUND)

	_, err = root.Open("loader.bin", types.EFI_FILE_MODE_READ|types.EFI_FILE_MODE_WRITE)
	assert.ErrorIs(t, err, types.EFI_WRITE_PROTECTED)

	f, err := root.Open("loader.bin", types.EFI_FILE_MODE_READ)
	require.NoError(t, err)
	_, err = f.Open("other", types.EFI_FILE_MODE_READ)
	assert.ErrorIs(t, err, types.EFI_INVALID_PARAMETER)

	require.NoError(t, f.Close())
	_, err = f.Read(make([]byte, 1))
	assert.ErrorIs(t, err, types.EFI_INVALID_PARAMETER)
}

func TestCache(t *testing.T) {
	tests := []struct {
		name          string
		c             *Config
		wantEvictions uint64
	}{
		{
			name: "default",
			c:    nil,
		},
		{
			name:          "tiny",
			c:             &Config{CacheSize: 1},
			wantEvictions: 1,
		},
		{
			name: "disabled",
			c:    &Config{DisableCache: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVolume(t, tt.c)
			root, err := v.OpenVolume()
			require.NoError(t, err)
			for _, name := range []string{"loader.bin", `EFI\BOOT\kernel.o`, "loader.bin"} {
				f, err := root.Open(name, types.EFI_FILE_MODE_READ)
				require.NoError(t, err)
				require.NoError(t, f.Close())
			}
			if tt.wantEvictions > 0 {
				assert.GreaterOrEqual(t, v.Evictions(), tt.wantEvictions)
			} else {
				assert.Zero(t, v.Evictions())
			}
		})
	}
}

func TestReadDir(t *testing.T) {
	v := newTestVolume(t, nil)
	infos, err := v.ReadDir(`\`)
	require.NoError(t, err)
	var names []string
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	assert.ElementsMatch(t, []string{"EFI", "loader.bin"}, names)

	fi, err := v.Stat(`\EFI\BOOT\kernel.o`)
	require.NoError(t, err)
	assert.EqualValues(t, 6, fi.Size())
}

func TestOpenDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, afero.WriteFile(afero.NewOsFs(), dir+"/loader.bin", []byte("abc"), 0644))

	v, err := Open(dir, &Config{DisableCache: true})
	require.NoError(t, err)
	root, err := v.OpenVolume()
	require.NoError(t, err)
	f, err := root.Open("loader.bin", types.EFI_FILE_MODE_READ)
	require.NoError(t, err)
	buf := make([]byte, 8)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))

	_, err = Open(dir+"/loader.bin", nil)
	assert.Error(t, err)
}
