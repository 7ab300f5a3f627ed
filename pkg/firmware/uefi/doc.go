// Package uefi binds the firmware interfaces to the real EFI system table of
// an x64 image built with GOOS=tamago. On every other target the package only
// describes the image layout.
//
// The image entry point is efi_main, which records the image handle and the
// system table pointer, reserves the heap range returned by HeapRange and
// then starts the Go runtime.
package uefi
