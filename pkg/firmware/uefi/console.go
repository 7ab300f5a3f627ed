//go:build tamago && amd64

package uefi

import (
	"runtime"
	"unicode/utf16"

	"github.com/blacktop/go-efistub/types"
)

// EFI Simple Text Output Protocol offsets
const (
	outputString = 0x08
	clearScreen  = 0x30
)

// Console is the EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL installed as ConOut
type Console struct {
	base uint64
}

// utf16z encodes s as a NUL terminated CHAR16 string
func utf16z(s string) []uint16 {
	return append(utf16.Encode([]rune(s)), 0)
}

// OutputString calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.OutputString().
func (c *Console) OutputString(s string) error {
	str := utf16z(s)
	status := call(c.base, outputString, c.base, ptrval(&str[0]))
	runtime.KeepAlive(str)
	return types.ParseStatus(status)
}

// ClearScreen calls EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.ClearScreen().
func (c *Console) ClearScreen() error {
	return types.ParseStatus(call(c.base, clearScreen, c.base))
}
