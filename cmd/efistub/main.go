//go:build tamago && amd64

/*
Copyright © 2026 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

// Command efistub is the firmware image: it loads loader.bin and kernel.o from
// its boot volume, exits boot services and jumps to the loader.
//
// Build with `make efistub`: the ELF is linked inside uefi.RamStart with
// efi_main as entry point and converted to a PE32+ EFI application. The heap
// above the image is reserved by efi_main at load time.
package main

import (
	"github.com/apex/log"
	"github.com/blacktop/go-efistub"
	"github.com/blacktop/go-efistub/pkg/firmware/conlog"
	"github.com/blacktop/go-efistub/pkg/firmware/uefi"
)

func main() {
	image, st, err := uefi.Init()
	if err != nil {
		halt()
	}

	h := conlog.New(st.ConOut)
	log.SetHandler(h)
	log.SetLevel(log.InfoLevel)

	var exited bool
	status := efistub.Main(image, st, efistub.DefaultConfig(),
		efistub.WithQuiesce(h.Detach),
		efistub.WithQuiesce(uefi.Detach),
		efistub.WithObserver(func(_, to efistub.State) {
			if to == efistub.BootServicesExited {
				exited = true
			}
		}),
	)
	if exited {
		// nothing left to return to
		halt()
	}

	uefi.Exit(status)
	halt()
}

func halt() {
	for {
	}
}
