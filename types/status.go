package types

import "fmt"

// Status is a EFI_STATUS value
type Status uint64

const errorBit = 1 << 63

// EFI_STATUS codes (UEFI 2.10 Appendix D)
const (
	EFI_SUCCESS              Status = 0
	EFI_LOAD_ERROR           Status = errorBit | 1
	EFI_INVALID_PARAMETER    Status = errorBit | 2
	EFI_UNSUPPORTED          Status = errorBit | 3
	EFI_BAD_BUFFER_SIZE      Status = errorBit | 4
	EFI_BUFFER_TOO_SMALL     Status = errorBit | 5
	EFI_NOT_READY            Status = errorBit | 6
	EFI_DEVICE_ERROR         Status = errorBit | 7
	EFI_WRITE_PROTECTED      Status = errorBit | 8
	EFI_OUT_OF_RESOURCES     Status = errorBit | 9
	EFI_VOLUME_CORRUPTED     Status = errorBit | 10
	EFI_VOLUME_FULL          Status = errorBit | 11
	EFI_NO_MEDIA             Status = errorBit | 12
	EFI_MEDIA_CHANGED        Status = errorBit | 13
	EFI_NOT_FOUND            Status = errorBit | 14
	EFI_ACCESS_DENIED        Status = errorBit | 15
	EFI_NO_RESPONSE          Status = errorBit | 16
	EFI_NO_MAPPING           Status = errorBit | 17
	EFI_TIMEOUT              Status = errorBit | 18
	EFI_NOT_STARTED          Status = errorBit | 19
	EFI_ALREADY_STARTED      Status = errorBit | 20
	EFI_ABORTED              Status = errorBit | 21
	EFI_ICMP_ERROR           Status = errorBit | 22
	EFI_TFTP_ERROR           Status = errorBit | 23
	EFI_PROTOCOL_ERROR       Status = errorBit | 24
	EFI_INCOMPATIBLE_VERSION Status = errorBit | 25
	EFI_SECURITY_VIOLATION   Status = errorBit | 26
)

var statusNames = map[Status]string{
	EFI_SUCCESS:              "EFI_SUCCESS",
	EFI_LOAD_ERROR:           "EFI_LOAD_ERROR",
	EFI_INVALID_PARAMETER:    "EFI_INVALID_PARAMETER",
	EFI_UNSUPPORTED:          "EFI_UNSUPPORTED",
	EFI_BAD_BUFFER_SIZE:      "EFI_BAD_BUFFER_SIZE",
	EFI_BUFFER_TOO_SMALL:     "EFI_BUFFER_TOO_SMALL",
	EFI_NOT_READY:            "EFI_NOT_READY",
	EFI_DEVICE_ERROR:         "EFI_DEVICE_ERROR",
	EFI_WRITE_PROTECTED:      "EFI_WRITE_PROTECTED",
	EFI_OUT_OF_RESOURCES:     "EFI_OUT_OF_RESOURCES",
	EFI_VOLUME_CORRUPTED:     "EFI_VOLUME_CORRUPTED",
	EFI_VOLUME_FULL:          "EFI_VOLUME_FULL",
	EFI_NO_MEDIA:             "EFI_NO_MEDIA",
	EFI_MEDIA_CHANGED:        "EFI_MEDIA_CHANGED",
	EFI_NOT_FOUND:            "EFI_NOT_FOUND",
	EFI_ACCESS_DENIED:        "EFI_ACCESS_DENIED",
	EFI_NO_RESPONSE:          "EFI_NO_RESPONSE",
	EFI_NO_MAPPING:           "EFI_NO_MAPPING",
	EFI_TIMEOUT:              "EFI_TIMEOUT",
	EFI_NOT_STARTED:          "EFI_NOT_STARTED",
	EFI_ALREADY_STARTED:      "EFI_ALREADY_STARTED",
	EFI_ABORTED:              "EFI_ABORTED",
	EFI_ICMP_ERROR:           "EFI_ICMP_ERROR",
	EFI_TFTP_ERROR:           "EFI_TFTP_ERROR",
	EFI_PROTOCOL_ERROR:       "EFI_PROTOCOL_ERROR",
	EFI_INCOMPATIBLE_VERSION: "EFI_INCOMPATIBLE_VERSION",
	EFI_SECURITY_VIOLATION:   "EFI_SECURITY_VIOLATION",
}

// IsError reports whether the high bit of the status is set
func (s Status) IsError() bool {
	return s&errorBit != 0
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	if s.IsError() {
		return fmt.Sprintf("EFI_STATUS(error %#x)", uint64(s&^errorBit))
	}
	return fmt.Sprintf("EFI_STATUS(warning %#x)", uint64(s))
}

func (s Status) Error() string {
	return s.String()
}

// ParseStatus converts a raw EFI_STATUS into an error, nil on EFI_SUCCESS.
// Warnings (non-zero codes without the error bit) are not treated as failures.
func ParseStatus(status uint64) error {
	if s := Status(status); s.IsError() {
		return s
	}
	return nil
}
