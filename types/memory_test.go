package types

import (
	"strings"
	"testing"
)

func TestParseMemoryDescriptor(t *testing.T) {
	want := MemoryDescriptor{
		Type:          EfiConventionalMemory,
		PhysicalStart: 0x400000,
		VirtualStart:  0xffff800000400000,
		NumberOfPages: 4,
		Attribute:     0xf,
	}
	b := make([]byte, 48)
	for i := range b {
		b[i] = 0xAB
	}
	if err := want.Put(b); err != nil {
		t.Fatal(err)
	}

	got, err := ParseMemoryDescriptor(b)
	if err != nil {
		t.Fatalf("ParseMemoryDescriptor() error = %v", err)
	}
	if got != want {
		t.Errorf("ParseMemoryDescriptor() = %+v, want %+v", got, want)
	}
	if got.End() != 0x404000 || got.Size() != 0x4000 {
		t.Errorf("End() = %s Size() = %#x", got.End(), got.Size())
	}
	if !strings.Contains(got.String(), "EfiConventionalMemory") || !strings.Contains(got.String(), "16 KiB") {
		t.Errorf("String() = %s", got.String())
	}

	if _, err := ParseMemoryDescriptor(b[:MemoryDescriptorSize-1]); err == nil {
		t.Error("ParseMemoryDescriptor() accepted a short buffer")
	}
	if err := want.Put(make([]byte, 8)); err == nil {
		t.Error("Put() accepted a short buffer")
	}
}

func TestMemoryType(t *testing.T) {
	tests := []struct {
		t    MemoryType
		want string
	}{
		{EfiReservedMemoryType, "EfiReservedMemoryType"},
		{EfiLoaderData, "EfiLoaderData"},
		{EfiConventionalMemory, "EfiConventionalMemory"},
		{EfiUnacceptedMemoryType, "EfiUnacceptedMemoryType"},
		{MemoryType(0x70000000), "MemoryType(0x70000000)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.t.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if !strings.Contains(tt.t.Color(), tt.want) {
				t.Errorf("Color() = %q", tt.t.Color())
			}
		})
	}
}

func TestPages(t *testing.T) {
	tests := []struct {
		size uint64
		want uint64
	}{
		{0, 0},
		{1, 1},
		{PageSize, 1},
		{PageSize + 1, 2},
		{2 * 1024 * 1024, 0x200},
	}
	for _, tt := range tests {
		if got := Pages(tt.size); got != tt.want {
			t.Errorf("Pages(%#x) = %#x, want %#x", tt.size, got, tt.want)
		}
	}
}

func TestParseMemoryType(t *testing.T) {
	tests := []struct {
		name    string
		want    MemoryType
		wantErr bool
	}{
		{"EfiConventionalMemory", EfiConventionalMemory, false},
		{"ConventionalMemory", EfiConventionalMemory, false},
		{"efiloaderdata", EfiLoaderData, false},
		{"MemoryMappedIO", EfiMemoryMappedIO, false},
		{"Free", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMemoryType(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMemoryType() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMemoryType() = %s, want %s", got, tt.want)
			}
		})
	}
}
