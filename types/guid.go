package types

import (
	"encoding/binary"
	"fmt"
)

// GUID is a EFI_GUID struct
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

func (g GUID) String() string {
	return fmt.Sprintf("%08X-%04X-%04X-%X-%X", g.Data1, g.Data2, g.Data3, g.Data4[:2], g.Data4[2:])
}

// Bytes returns the mixed-endian wire encoding firmware expects
func (g GUID) Bytes() [16]byte {
	var b [16]byte
	binary.LittleEndian.PutUint32(b[0:], g.Data1)
	binary.LittleEndian.PutUint16(b[4:], g.Data2)
	binary.LittleEndian.PutUint16(b[6:], g.Data3)
	copy(b[8:], g.Data4[:])
	return b
}

var (
	EFI_LOADED_IMAGE_PROTOCOL_GUID = GUID{
		0x5B1B31A1, 0x9562, 0x11d2,
		[8]byte{0x8E, 0x3F, 0x00, 0xA0, 0xC9, 0x69, 0x72, 0x3B},
	}
	EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_GUID = GUID{
		0x0964e5b22, 0x6459, 0x11d2,
		[8]byte{0x8e, 0x39, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b},
	}
)

// Handle is a EFI_HANDLE
type Handle uintptr

func (h Handle) String() string {
	return fmt.Sprintf("handle@%#x", uintptr(h))
}

// OpenProtocol attributes
const (
	EFI_OPEN_PROTOCOL_BY_HANDLE_PROTOCOL = 0x00000001
	EFI_OPEN_PROTOCOL_GET_PROTOCOL       = 0x00000002
)

// FileMode is an EFI_FILE_PROTOCOL.Open() mode
type FileMode uint64

const (
	EFI_FILE_MODE_READ   FileMode = 0x0000000000000001
	EFI_FILE_MODE_WRITE  FileMode = 0x0000000000000002
	EFI_FILE_MODE_CREATE FileMode = 0x8000000000000000
)
