package efistub

import (
	"errors"
	"fmt"

	"github.com/blacktop/go-efistub/types"
)

// ErrorKind classifies why a boot attempt was aborted
type ErrorKind uint8

const (
	KindResourceExhausted ErrorKind = iota + 1
	KindCapabilityUnavailable
	KindSizeExceeded
	KindProtocolViolation
	KindInternal
)

var (
	ErrResourceExhausted     = errors.New("resource exhausted")
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrSizeExceeded          = errors.New("size exceeded")
	ErrProtocolViolation     = errors.New("protocol violation")
	ErrLoaderReturned        = errors.New("loader returned control")
)

func (k ErrorKind) String() string {
	switch k {
	case KindResourceExhausted:
		return "resource-exhausted"
	case KindCapabilityUnavailable:
		return "capability-unavailable"
	case KindSizeExceeded:
		return "size-exceeded"
	case KindProtocolViolation:
		return "protocol-violation"
	case KindInternal:
		return "internal"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindResourceExhausted:
		return ErrResourceExhausted
	case KindCapabilityUnavailable:
		return ErrCapabilityUnavailable
	case KindSizeExceeded:
		return ErrSizeExceeded
	case KindProtocolViolation:
		return ErrProtocolViolation
	case KindInternal:
		return ErrLoaderReturned
	}
	return nil
}

func (k ErrorKind) status() types.Status {
	switch k {
	case KindResourceExhausted:
		return types.EFI_OUT_OF_RESOURCES
	case KindCapabilityUnavailable:
		return types.EFI_NOT_FOUND
	case KindSizeExceeded:
		return types.EFI_BUFFER_TOO_SMALL
	case KindProtocolViolation:
		return types.EFI_PROTOCOL_ERROR
	}
	return types.EFI_LOAD_ERROR
}

// BootError is the single fatal error of an aborted boot attempt
type BootError struct {
	Kind       ErrorKind
	State      State  // state the attempt was in when it failed
	Diagnostic string // fixed console message
	Err        error
}

func (e *BootError) Error() string {
	if e.Err == nil {
		return e.Diagnostic
	}
	return fmt.Sprintf("%s: %v", e.Diagnostic, e.Err)
}

func (e *BootError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *BootError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// ExitStatus maps the outcome of a boot attempt to the status returned to the firmware
func ExitStatus(err error) types.Status {
	if err == nil {
		return types.EFI_SUCCESS
	}
	var status types.Status
	if errors.As(err, &status) && status.IsError() {
		return status
	}
	var be *BootError
	if errors.As(err, &be) {
		return be.Kind.status()
	}
	return types.EFI_LOAD_ERROR
}
