package efistub

import (
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/go-efistub/pkg/firmware"
	"github.com/blacktop/go-efistub/types"
	"github.com/dustin/go-humanize"
)

// ImageRegion is the contiguous reservation holding the loader slot followed by the kernel slot
type ImageRegion struct {
	Base           types.PhysAddr
	LoaderSlotSize uint64
	KernelSlotSize uint64

	// bytes read into each slot
	LoaderLen int
	KernelLen int

	mem []byte
}

// Entry is where control is transferred: the first byte of the loader slot
func (r *ImageRegion) Entry() types.PhysAddr {
	return r.Base
}

// KernelBase is the physical address of the kernel slot
func (r *ImageRegion) KernelBase() types.PhysAddr {
	return r.Base + types.PhysAddr(r.LoaderSlotSize)
}

// LoaderSlot returns the whole loader slot
func (r *ImageRegion) LoaderSlot() []byte {
	return r.mem[:r.LoaderSlotSize]
}

// KernelSlot returns the whole kernel slot
func (r *ImageRegion) KernelSlot() []byte {
	return r.mem[r.LoaderSlotSize : r.LoaderSlotSize+r.KernelSlotSize]
}

// LoaderImage returns the loader bytes read from the volume
func (r *ImageRegion) LoaderImage() []byte {
	return r.mem[:r.LoaderLen]
}

// KernelImage returns the kernel bytes read from the volume
func (r *ImageRegion) KernelImage() []byte {
	return r.KernelSlot()[:r.KernelLen]
}

// LoadImages reserves the image region and the handoff block, then reads the
// loader and the kernel from the volume the running image was loaded from.
func (s *Stub) LoadImages() error {
	if err := s.expect(Init); err != nil {
		return err
	}

	bs := s.st.BootServices

	size := s.conf.ImageRegionSize()
	base, err := bs.AllocatePages(types.AllocateAnyPages, types.EfiLoaderData, types.Pages(size))
	if err != nil {
		return s.abort(KindResourceExhausted, "Failed to allocate space for loader + kernel!", err)
	}
	mem, err := s.st.Memory.Slice(base, size)
	if err != nil {
		return s.abort(KindResourceExhausted, "Failed to map loader + kernel region!", err)
	}
	s.images = &ImageRegion{
		Base:           base,
		LoaderSlotSize: s.conf.LoaderSlotSize,
		KernelSlotSize: s.conf.KernelSlotSize,
		mem:            mem,
	}

	log.WithFields(log.Fields{
		"base":   base,
		"size":   humanize.IBytes(size),
		"loader": s.images.Entry(),
		"kernel": s.images.KernelBase(),
	}).Debug("reserved image region")

	// the region list must live in memory reserved before the snapshot
	listSize := uint64(types.RegionListSize(s.conf.MaxRegions))
	s.handoff, err = bs.AllocatePages(types.AllocateAnyPages, types.EfiLoaderData, types.Pages(listSize))
	if err != nil {
		return s.abort(KindResourceExhausted, "Failed to allocate space for memory regions!", err)
	}
	listMem, err := s.st.Memory.Slice(s.handoff, listSize)
	if err != nil {
		return s.abort(KindResourceExhausted, "Failed to map memory region list!", err)
	}
	if s.regions, err = types.NewRegionList(listMem); err != nil {
		return s.abort(KindResourceExhausted, "Failed to map memory region list!", err)
	}

	root, err := s.openBootVolume()
	if err != nil {
		return err
	}
	defer root.Close()

	if s.images.LoaderLen, err = s.readImage(root, s.conf.LoaderPath, "Loader", s.images.LoaderSlot()); err != nil {
		return err
	}
	if s.images.KernelLen, err = s.readImage(root, s.conf.KernelPath, "Kernel", s.images.KernelSlot()); err != nil {
		return err
	}

	firmware.Println(s.st.ConOut, "Loaded the loader and kernel!")
	log.WithFields(log.Fields{
		"loader": humanize.IBytes(uint64(s.images.LoaderLen)),
		"kernel": humanize.IBytes(uint64(s.images.KernelLen)),
	}).Info("loaded payload images")

	s.transition()
	return nil
}

// openBootVolume resolves the device the running image came from and opens its root directory
func (s *Stub) openBootVolume() (firmware.File, error) {
	bs := s.st.BootServices

	proto, err := bs.OpenProtocol(s.image, types.EFI_LOADED_IMAGE_PROTOCOL_GUID, s.image)
	if err != nil {
		return nil, s.abort(KindCapabilityUnavailable, "Failed to load img protocol!", err)
	}
	img, ok := proto.(firmware.LoadedImage)
	if !ok {
		return nil, s.abort(KindCapabilityUnavailable, "Failed to load img protocol!",
			fmt.Errorf("unexpected loaded image interface %T", proto))
	}

	dev := img.DeviceHandle()
	log.WithField("device", dev).Debug("boot volume")

	proto, err = bs.OpenProtocol(dev, types.EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_GUID, s.image)
	if err != nil {
		return nil, s.abort(KindCapabilityUnavailable, "Failed to load fs protocol!", err)
	}
	fs, ok := proto.(firmware.SimpleFileSystem)
	if !ok {
		return nil, s.abort(KindCapabilityUnavailable, "Failed to load fs protocol!",
			fmt.Errorf("unexpected simple file system interface %T", proto))
	}

	root, err := fs.OpenVolume()
	if err != nil {
		return nil, s.abort(KindCapabilityUnavailable, "Failed to open fs root!", err)
	}

	return root, nil
}

// readImage reads name into slot with a single read. A read that fills the
// slot completely is treated as a truncated image.
func (s *Stub) readImage(root firmware.File, name, what string, slot []byte) (int, error) {
	f, err := root.Open(name, types.EFI_FILE_MODE_READ)
	if err != nil {
		return 0, s.abort(KindCapabilityUnavailable, fmt.Sprintf("Failed to open %s!", name), err)
	}
	defer f.Close()

	n, err := f.Read(slot)
	if err != nil {
		return 0, s.abort(KindCapabilityUnavailable, fmt.Sprintf("Failed to read %s!", name), err)
	}
	if n == len(slot) {
		return 0, s.abort(KindSizeExceeded, fmt.Sprintf("%s too large to fit into buffer!", what),
			fmt.Errorf("%s filled its %s slot", name, humanize.IBytes(uint64(len(slot)))))
	}

	log.WithFields(log.Fields{
		"file": name,
		"size": n,
	}).Debug("read payload image")

	return n, nil
}
