//go:build tamago && amd64

package uefi

import (
	"runtime"

	"github.com/blacktop/go-efistub/pkg/firmware"
	"github.com/blacktop/go-efistub/types"
)

// EFI_LOADED_IMAGE_PROTOCOL
const deviceHandleOffset = 24

type loadedImage struct {
	base uint64
}

func (l *loadedImage) DeviceHandle() types.Handle {
	return types.Handle(read64(l.base + deviceHandleOffset))
}

// EFI_SIMPLE_FILE_SYSTEM_PROTOCOL
const openVolume = 0x08

type simpleFileSystem struct {
	base uint64
}

// OpenVolume calls EFI_SIMPLE_FILE_SYSTEM_PROTOCOL.OpenVolume().
func (fs *simpleFileSystem) OpenVolume() (firmware.File, error) {
	out.iface = 0
	if err := types.ParseStatus(call(fs.base, openVolume, fs.base, ptrval(&out.iface))); err != nil {
		return nil, err
	}
	return &file{base: out.iface}, nil
}

// EFI_FILE_PROTOCOL offsets
const (
	fileOpen  = 0x08
	fileClose = 0x10
	fileRead  = 0x20
)

type file struct {
	base uint64
}

// Open calls EFI_FILE_PROTOCOL.Open().
func (f *file) Open(name string, mode types.FileMode) (firmware.File, error) {
	str := utf16z(name)
	out.iface = 0
	status := call(f.base, fileOpen, f.base, ptrval(&out.iface), ptrval(&str[0]), uint64(mode), 0)
	runtime.KeepAlive(str)
	if err := types.ParseStatus(status); err != nil {
		return nil, err
	}
	return &file{base: out.iface}, nil
}

// Read calls EFI_FILE_PROTOCOL.Read() once.
func (f *file) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	out.size = uint64(len(p))
	status := call(f.base, fileRead, f.base, ptrval(&out.size), ptrval(&p[0]))
	runtime.KeepAlive(p)
	if err := types.ParseStatus(status); err != nil {
		return 0, err
	}
	return int(out.size), nil
}

// Close calls EFI_FILE_PROTOCOL.Close().
func (f *file) Close() error {
	return types.ParseStatus(call(f.base, fileClose, f.base))
}
