package uefi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeapRange(t *testing.T) {
	tests := []struct {
		name      string
		imageEnd  uint64
		wantBase  uint64
		wantPages uint64
	}{
		{"aligned", RamStart + 0x400000, RamStart + 0x400000, 0x7c00},
		{"rounded up", RamStart + 0x400001, RamStart + 0x401000, 0x7bff},
		{"below range", 0x100000, RamStart, RamSize / 0x1000},
		{"last page", RamStart + RamSize - 1, RamStart + RamSize, 0},
		{"past range", RamStart + RamSize + 0x1000, RamStart + RamSize + 0x1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, pages := HeapRange(tt.imageEnd)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.wantPages, pages)
			if pages > 0 {
				assert.Equal(t, uint64(RamStart+RamSize), base+pages*0x1000)
			}
		})
	}
}
