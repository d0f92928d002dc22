package loader_test

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
)

const (
	bootRecordBlock = 16
	terminatorBlock = 17
	catalogBlock    = 18
	bootImageBlock  = 19
)

// isoImage builds a minimal El Torito image: a boot record, a terminator,
// a boot catalog and a boot image of the given number of sectors.
type isoImage struct {
	bytes []byte
}

func newISOImage(bootSectors uint16, payload []byte) *isoImage {
	blocks := bootImageBlock + int(bootSectors)
	img := &isoImage{bytes: make([]byte, blocks*loader.BlockSize)}

	br := img.block(bootRecordBlock)
	br[0] = 0
	copy(br[1:6], "CD001")
	br[6] = 1
	copy(br[7:], "EL TORITO SPECIFICATION")
	binary.LittleEndian.PutUint32(br[71:75], catalogBlock)

	term := img.block(terminatorBlock)
	term[0] = 255
	copy(term[1:6], "CD001")
	term[6] = 1

	cat := img.block(catalogBlock)
	cat[0] = 0x01
	cat[30], cat[31] = 0x55, 0xAA
	entry := cat[32:64]
	entry[0] = 0x88
	entry[1] = 0
	binary.LittleEndian.PutUint16(entry[2:4], 0x07C0)
	binary.LittleEndian.PutUint16(entry[6:8], bootSectors)
	binary.LittleEndian.PutUint32(entry[8:12], bootImageBlock)

	copy(img.bytes[bootImageBlock*loader.BlockSize:], payload)

	return img
}

func (i *isoImage) block(n int) []byte {
	return i.bytes[n*loader.BlockSize : (n+1)*loader.BlockSize]
}

var _ = Describe("El Torito", func() {
	var img *isoImage

	// addi a0, x0, 42; ebreak
	payload := []byte{0x13, 0x05, 0xA0, 0x02, 0x73, 0x00, 0x10, 0x00}

	BeforeEach(func() {
		img = newISOImage(2, payload)
	})

	Describe("FindBootCatalog", func() {
		It("should return the catalog block from the boot record", func() {
			block, err := loader.FindBootCatalog(img.bytes)
			Expect(err).NotTo(HaveOccurred())
			Expect(block).To(Equal(uint32(catalogBlock)))
		})

		It("should skip other descriptor types", func() {
			pvd := make([]byte, loader.BlockSize)
			pvd[0] = 1
			copy(pvd[1:6], "CD001")
			shifted := append([]byte{}, img.bytes[:bootRecordBlock*loader.BlockSize]...)
			shifted = append(shifted, pvd...)
			shifted = append(shifted, img.bytes[bootRecordBlock*loader.BlockSize:]...)

			block, err := loader.FindBootCatalog(shifted)

			Expect(err).NotTo(HaveOccurred())
			Expect(block).To(Equal(uint32(catalogBlock)))
		})

		It("should stop at the terminator", func() {
			img.block(bootRecordBlock)[0] = 255

			_, err := loader.FindBootCatalog(img.bytes)

			Expect(err).To(MatchError(loader.ErrNotFound))
		})

		It("should report not found at the end of data", func() {
			_, err := loader.FindBootCatalog(img.bytes[:bootRecordBlock*loader.BlockSize])
			Expect(err).To(MatchError(loader.ErrNotFound))

			img.block(bootRecordBlock)[0] = 2
			img.block(terminatorBlock)[0] = 2
			_, err = loader.FindBootCatalog(img.bytes[:catalogBlock*loader.BlockSize])
			Expect(err).To(MatchError(loader.ErrNotFound))
		})

		It("should reject a boot record with a bad identifier", func() {
			copy(img.block(bootRecordBlock)[1:6], "CD002")

			_, err := loader.FindBootCatalog(img.bytes)

			Expect(err).To(MatchError(loader.ErrInvalidInput))
		})

		It("should reject images smaller than the system area", func() {
			_, err := loader.FindBootCatalog(make([]byte, 100))
			Expect(err).To(MatchError(loader.ErrInvalidInput))

			_, err = loader.FindBootCatalog(make([]byte, 3*loader.BlockSize))
			Expect(err).To(MatchError(loader.ErrInvalidInput))
		})
	})

	Describe("ParseBootCatalog", func() {
		var catalog []byte

		BeforeEach(func() {
			catalog = img.block(catalogBlock)
		})

		It("should return the initial entry", func() {
			entry, err := loader.ParseBootCatalog(catalog)

			Expect(err).NotTo(HaveOccurred())
			want := loader.BootEntry{
				MediaType:   0,
				LoadSegment: 0x07C0,
				SectorCount: 2,
				LoadRBA:     bootImageBlock,
			}
			Expect(cmp.Diff(want, entry)).To(BeEmpty())
			Expect(entry.Size()).To(Equal(2 * loader.BlockSize))
		})

		It("should reject a bad header id", func() {
			catalog[0] = 0x02
			_, err := loader.ParseBootCatalog(catalog)
			Expect(err).To(MatchError(loader.ErrInvalidInput))
		})

		DescribeTable("should require both reserved bytes to be zero",
			func(offset int) {
				catalog[offset] = 0x01
				_, err := loader.ParseBootCatalog(catalog)
				Expect(err).To(MatchError(loader.ErrInvalidInput))
			},
			Entry("low byte", 2),
			Entry("high byte", 3),
		)

		It("should reject a non-bootable entry", func() {
			catalog[32] = 0x00
			_, err := loader.ParseBootCatalog(catalog)
			Expect(err).To(MatchError(loader.ErrInvalidInput))
		})

		It("should reject a truncated catalog", func() {
			_, err := loader.ParseBootCatalog(catalog[:40])
			Expect(err).To(MatchError(loader.ErrInvalidInput))
		})
	})

	Describe("CopyBootImage", func() {
		It("should copy exactly sectorCount blocks", func() {
			dst := make([]byte, 2*loader.BlockSize+4)
			for i := range dst {
				dst[i] = 0xEE
			}

			err := loader.CopyBootImage(img.bytes, bootImageBlock, 2, dst)

			Expect(err).NotTo(HaveOccurred())
			Expect(dst[:len(payload)]).To(Equal(payload))
			Expect(dst[len(payload) : 2*loader.BlockSize]).To(HaveEach(byte(0)))
			Expect(dst[2*loader.BlockSize:]).To(HaveEach(byte(0xEE)))
		})

		It("should reject a destination that is too small", func() {
			err := loader.CopyBootImage(img.bytes, bootImageBlock, 2, make([]byte, loader.BlockSize))
			Expect(err).To(MatchError(loader.ErrInvalidInput))
			Expect(err.Error()).To(ContainSubstring("destination buffer is too small"))
		})

		It("should reject a source that is too short", func() {
			err := loader.CopyBootImage(img.bytes, bootImageBlock, 3, make([]byte, 3*loader.BlockSize))
			Expect(err).To(MatchError(loader.ErrInvalidInput))
			Expect(err.Error()).To(ContainSubstring("not enough data"))
		})

		It("should accept a zero sector count", func() {
			Expect(loader.CopyBootImage(img.bytes, 0, 0, nil)).To(Succeed())
		})
	})

	Describe("ExtractBootImage", func() {
		It("should return the boot image and its entry", func() {
			boot, entry, err := loader.ExtractBootImage(img.bytes)

			Expect(err).NotTo(HaveOccurred())
			Expect(boot).To(HaveLen(2 * loader.BlockSize))
			Expect(boot[:len(payload)]).To(Equal(payload))
			Expect(entry.LoadRBA).To(Equal(uint32(bootImageBlock)))
		})

		It("should reject a catalog pointer beyond the image", func() {
			binary.LittleEndian.PutUint32(img.block(bootRecordBlock)[71:75], 1000)

			_, _, err := loader.ExtractBootImage(img.bytes)

			Expect(err).To(MatchError(loader.ErrInvalidInput))
		})

		It("should pass through not found", func() {
			img.block(bootRecordBlock)[0] = 255

			_, _, err := loader.ExtractBootImage(img.bytes)

			Expect(errors.Is(err, loader.ErrNotFound)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("failed to find boot catalog"))
		})
	})

	Describe("LoadISO", func() {
		var path string

		BeforeEach(func() {
			path = filepath.Join(GinkgoT().TempDir(), "boot.iso")
			Expect(os.WriteFile(path, img.bytes, 0o644)).To(Succeed())
		})

		It("should place the boot image at the load address", func() {
			prog, err := loader.LoadISO(path, 0x80000000)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint64(0x80000000)))
			Expect(prog.Segments).To(HaveLen(1))
			Expect(prog.Segments[0].VirtAddr).To(Equal(uint64(0x80000000)))
			Expect(prog.Segments[0].MemSize).To(Equal(uint64(2 * loader.BlockSize)))
			Expect(prog.InitialSP).To(BeZero())
		})

		It("should boot the image in the emulator", func() {
			prog, err := loader.LoadISO(path, 0x80000000)
			Expect(err).NotTo(HaveOccurred())

			e := emu.NewEmulator(emu.WithStrict(true))
			prog.LoadInto(e.Memory())
			e.SetPC(prog.EntryPoint)

			exitCode, err := e.Run(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(exitCode).To(Equal(int64(42)))
		})

		It("should reject an empty boot image", func() {
			img = newISOImage(0, nil)
			Expect(os.WriteFile(path, img.bytes, 0o644)).To(Succeed())

			_, err := loader.LoadISO(path, 0)

			Expect(err).To(MatchError(loader.ErrInvalidInput))
		})

		It("should fail for a missing file", func() {
			_, err := loader.LoadISO(path+".missing", 0)
			Expect(err).To(MatchError(ContainSubstring("failed to read ISO image")))
		})
	})
})
