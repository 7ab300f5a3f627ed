// Package volume serves a host directory (or any afero file system) as an
// EFI_SIMPLE_FILE_SYSTEM_PROTOCOL boot volume.
package volume

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/apex/log"
	"github.com/blacktop/go-efistub/pkg/firmware"
	"github.com/blacktop/go-efistub/types"
	"github.com/fatih/color"
	lru "github.com/hashicorp/golang-lru"
	"github.com/spf13/afero"
)

// DefaultCacheSize is the number of file contents kept in memory
const DefaultCacheSize = 16

var volReadColor = color.New(color.Faint, color.FgWhite).SprintfFunc()

// Config is the volume config
type Config struct {
	DisableCache bool
	CacheSize    int
}

// Volume is a read-only boot volume
type Volume struct {
	fs     afero.Fs
	cache  *lru.Cache
	config Config

	evictCounter uint64
}

// Open serves the host directory dir as a boot volume
func Open(dir string, c *Config) (*Volume, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), c)
}

// New wraps fs as a boot volume. The volume never writes to fs. Names are
// looked up as absolute paths first, then relative to the root of fs, so an
// afero.MemMapFs populated with either form serves the same files.
func New(fsys afero.Fs, c *Config) (*Volume, error) {
	v := &Volume{fs: afero.NewReadOnlyFs(fsys)}
	if c != nil {
		v.config = *c
	}
	if v.config.CacheSize <= 0 {
		v.config.CacheSize = DefaultCacheSize
	}
	if !v.config.DisableCache {
		var err error
		v.cache, err = lru.NewWithEvict(v.config.CacheSize, func(k interface{}, _ interface{}) {
			v.evictCounter++
			log.WithField("path", k).Debug("evicted file from volume read cache")
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize volume read cache: %w", err)
		}
	}
	return v, nil
}

// OpenVolume returns the root directory of the volume
func (v *Volume) OpenVolume() (firmware.File, error) {
	return &file{vol: v, path: "/", dir: true}, nil
}

// Stat returns info about an EFI style path
func (v *Volume) Stat(name string) (os.FileInfo, error) {
	_, fi, err := v.lookup(Clean("/", name))
	return fi, err
}

// ReadDir lists an EFI style directory path
func (v *Volume) ReadDir(name string) ([]os.FileInfo, error) {
	return afero.ReadDir(v.fs, Clean("/", name))
}

// Evictions returns the number of cache evictions so far
func (v *Volume) Evictions() uint64 {
	return v.evictCounter
}

// lookup stats the absolute path p, falling back to its root relative form
func (v *Volume) lookup(p string) (string, os.FileInfo, error) {
	fi, err := v.fs.Stat(p)
	if err == nil || p == "/" || !errors.Is(err, fs.ErrNotExist) {
		return p, fi, err
	}
	rel := strings.TrimPrefix(p, "/")
	if rfi, rerr := v.fs.Stat(rel); rerr == nil {
		return rel, rfi, nil
	}
	return p, nil, err
}

func (v *Volume) read(p string) ([]byte, error) {
	if v.cache != nil {
		if val, found := v.cache.Get(p); found {
			if data, ok := val.([]byte); ok {
				log.Debugf(volReadColor("Read %#x bytes of %s from cache", len(data), p))
				return data, nil
			}
		}
	}
	data, err := afero.ReadFile(v.fs, p)
	if err != nil {
		return nil, err
	}
	log.Debugf(volReadColor("Read %#x bytes of %s", len(data), p))
	if v.cache != nil {
		v.cache.Add(p, data)
	}
	return data, nil
}

// Clean resolves an EFI file name (backslash separated, relative to dir
// unless it starts with a separator) into a slash separated absolute path
func Clean(dir, name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(name, "/") {
		return path.Clean(name)
	}
	return path.Clean(path.Join("/", dir, name))
}

type file struct {
	vol    *Volume
	path   string
	dir    bool
	data   []byte
	off    int
	closed bool
}

func (f *file) Open(name string, mode types.FileMode) (firmware.File, error) {
	if f.closed {
		return nil, fmt.Errorf("%s is closed: %w", f.path, types.EFI_INVALID_PARAMETER)
	}
	if !f.dir {
		return nil, fmt.Errorf("%s is not a directory: %w", f.path, types.EFI_INVALID_PARAMETER)
	}
	if mode&(types.EFI_FILE_MODE_WRITE|types.EFI_FILE_MODE_CREATE) != 0 {
		return nil, fmt.Errorf("failed to open %s for writing: %w", name, types.EFI_WRITE_PROTECTED)
	}

	p := Clean(f.path, name)
	key, fi, err := f.vol.lookup(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to open %s: %w", p, types.EFI_NOT_FOUND)
		}
		return nil, fmt.Errorf("failed to stat %s: %v: %w", p, err, types.EFI_DEVICE_ERROR)
	}
	if fi.IsDir() {
		return &file{vol: f.vol, path: p, dir: true}, nil
	}

	data, err := f.vol.read(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v: %w", p, err, types.EFI_DEVICE_ERROR)
	}
	return &file{vol: f.vol, path: p, data: data}, nil
}

// Read copies from the current position. Reading at end of file returns 0
// bytes and no error, as EFI_FILE_PROTOCOL.Read() does.
func (f *file) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("%s is closed: %w", f.path, types.EFI_INVALID_PARAMETER)
	}
	if f.dir {
		return 0, fmt.Errorf("directory reads are not supported: %w", types.EFI_UNSUPPORTED)
	}
	n := copy(p, f.data[f.off:])
	f.off += n
	return n, nil
}

func (f *file) Close() error {
	f.closed = true
	f.data = nil
	return nil
}
