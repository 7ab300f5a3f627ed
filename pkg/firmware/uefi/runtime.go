//go:build tamago && amd64

package uefi

import (
	_ "unsafe"
)

//go:linkname ramStart runtime.ramStart
var ramStart uint64 = RamStart

//go:linkname ramSize runtime.ramSize
var ramSize uint64 = RamSize

//go:linkname ramStackOffset runtime.ramStackOffset
var ramStackOffset uint64 = 0x100

var (
	ticks    int64
	detached bool
)

//go:linkname nanotime1 runtime.nanotime1
func nanotime1() int64 {
	ticks += 1000
	return ticks
}

//go:linkname hwinit1 runtime.hwinit1
func hwinit1() {}

// printk writes runtime output to the firmware console until boot services
// are gone
//
//go:linkname printk runtime.printk
func printk(c byte) {
	if detached || systemTable == 0 {
		return
	}
	con := &Console{base: read64(systemTable + conOutOffset)}
	con.OutputString(string(c))
}

//go:linkname initRNG runtime.initRNG
func initRNG() {}

//go:linkname getRandomData runtime.getRandomData
func getRandomData(b []byte) {
	seed := uint64(ticks) | 1
	for i := range b {
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		b[i] = byte(seed)
	}
}

// Detach stops runtime output to the console
func Detach() {
	detached = true
}
