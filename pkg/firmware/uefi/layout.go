package uefi

import "github.com/blacktop/go-efistub/types"

// The image is linked to run from RamStart. efi_main reserves the rest of the
// range, up to RamStart+RamSize, as EfiLoaderData for the Go heap and stacks
// before the runtime starts.
const (
	RamStart = 0x10000000
	RamSize  = 0x08000000 // 128MB
)

// HeapRange returns the page aligned range efi_main reserves for an image
// whose sections end at imageEnd. pages is 0 when the image fills the range.
func HeapRange(imageEnd uint64) (base, pages uint64) {
	base = (imageEnd + types.PageSize - 1) &^ (types.PageSize - 1)
	if base < RamStart {
		base = RamStart
	}
	if base >= RamStart+RamSize {
		return base, 0
	}
	return base, (RamStart + RamSize - base) / types.PageSize
}
