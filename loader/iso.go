package loader

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// BlockSize is the ISO9660 logical sector size.
const BlockSize = 2048

const (
	// systemAreaBlocks precede the volume descriptor set.
	systemAreaBlocks = 16

	descriptorTypeBootRecord = 0
	descriptorTypeTerminator = 255

	catalogPointerOffset = 71

	validationHeaderID = 0x01
	initialEntryOffset = 32
	entrySize          = 32
	bootIndicator      = 0x88
)

var standardIdentifier = []byte("CD001")

// BootEntry is the initial/default entry of an El Torito boot catalog.
type BootEntry struct {
	// MediaType is the emulation type (0 means no emulation).
	MediaType uint8
	// LoadSegment is the real-mode segment the BIOS would load to.
	LoadSegment uint16
	// SectorCount is the number of sectors to copy.
	SectorCount uint16
	// LoadRBA is the first block of the boot image.
	LoadRBA uint32
}

// Size returns the boot image length in bytes.
func (b BootEntry) Size() int {
	return int(b.SectorCount) * BlockSize
}

// FindBootCatalog scans the volume descriptor set for the El Torito boot
// record and returns the block number of the boot catalog.
func FindBootCatalog(image []byte) (uint32, error) {
	if len(image) < systemAreaBlocks*BlockSize {
		return 0, fmt.Errorf("image of %d bytes is too small for a volume descriptor set: %w",
			len(image), ErrInvalidInput)
	}

	for offset := systemAreaBlocks * BlockSize; offset+BlockSize <= len(image); offset += BlockSize {
		descriptor := image[offset : offset+BlockSize]

		switch descriptor[0] {
		case descriptorTypeBootRecord:
			if !bytes.Equal(descriptor[1:6], standardIdentifier) {
				return 0, fmt.Errorf("boot record at offset %d has identifier %q: %w",
					offset, descriptor[1:6], ErrInvalidInput)
			}
			return binary.LittleEndian.Uint32(descriptor[catalogPointerOffset:]), nil
		case descriptorTypeTerminator:
			return 0, fmt.Errorf("no boot record before terminator at offset %d: %w",
				offset, ErrNotFound)
		}
	}

	return 0, fmt.Errorf("no boot record in volume descriptor set: %w", ErrNotFound)
}

// ParseBootCatalog validates the catalog's validation entry and returns its
// initial/default entry.
func ParseBootCatalog(catalog []byte) (BootEntry, error) {
	if len(catalog) < initialEntryOffset+entrySize {
		return BootEntry{}, fmt.Errorf("boot catalog of %d bytes is truncated: %w",
			len(catalog), ErrInvalidInput)
	}

	if catalog[0] != validationHeaderID {
		return BootEntry{}, fmt.Errorf("validation entry header id is 0x%02x: %w",
			catalog[0], ErrInvalidInput)
	}

	if catalog[2] != 0 || catalog[3] != 0 {
		return BootEntry{}, fmt.Errorf("validation entry reserved word is 0x%02x%02x: %w",
			catalog[3], catalog[2], ErrInvalidInput)
	}

	entry := catalog[initialEntryOffset : initialEntryOffset+entrySize]
	if entry[0] != bootIndicator {
		return BootEntry{}, fmt.Errorf("boot indicator is 0x%02x, not bootable: %w",
			entry[0], ErrInvalidInput)
	}

	return BootEntry{
		MediaType:   entry[1],
		LoadSegment: binary.LittleEndian.Uint16(entry[2:4]),
		SectorCount: binary.LittleEndian.Uint16(entry[6:8]),
		LoadRBA:     binary.LittleEndian.Uint32(entry[8:12]),
	}, nil
}

// CopyBootImage copies exactly sectorCount blocks starting at startBlock
// into dst.
func CopyBootImage(image []byte, startBlock uint32, sectorCount uint16, dst []byte) error {
	size := int(sectorCount) * BlockSize
	start := int(startBlock) * BlockSize

	if len(dst) < size {
		return fmt.Errorf("destination buffer is too small (%d < %d): %w",
			len(dst), size, ErrInvalidInput)
	}

	if start+size > len(image) {
		return fmt.Errorf("not enough data in source buffer for blocks %d+%d: %w",
			startBlock, sectorCount, ErrInvalidInput)
	}

	copy(dst, image[start:start+size])

	return nil
}

// ExtractBootImage locates the boot catalog in an ISO image and returns a
// copy of the boot image it describes.
func ExtractBootImage(image []byte) ([]byte, BootEntry, error) {
	catalogBlock, err := FindBootCatalog(image)
	if err != nil {
		return nil, BootEntry{}, fmt.Errorf("failed to find boot catalog: %w", err)
	}

	catalogStart := int(catalogBlock) * BlockSize
	if catalogStart+BlockSize > len(image) {
		return nil, BootEntry{}, fmt.Errorf("boot catalog block %d is out of bounds: %w",
			catalogBlock, ErrInvalidInput)
	}

	entry, err := ParseBootCatalog(image[catalogStart : catalogStart+BlockSize])
	if err != nil {
		return nil, BootEntry{}, fmt.Errorf("failed to parse boot catalog: %w", err)
	}

	bootImage := make([]byte, entry.Size())
	if err := CopyBootImage(image, entry.LoadRBA, entry.SectorCount, bootImage); err != nil {
		return nil, BootEntry{}, fmt.Errorf("failed to copy boot image: %w", err)
	}

	return bootImage, entry, nil
}

// LoadISO reads an El Torito ISO image and places its boot image at
// loadAddr, entered at its first byte.
func LoadISO(path string, loadAddr uint64) (*Program, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ISO image: %w", err)
	}

	bootImage, _, err := ExtractBootImage(image)
	if err != nil {
		return nil, err
	}

	if len(bootImage) == 0 {
		return nil, fmt.Errorf("boot image in %s is empty: %w", path, ErrInvalidInput)
	}

	return newFlatProgram(bootImage, loadAddr), nil
}
