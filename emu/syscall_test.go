package emu_test

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func negErrno(errno int64) uint64 {
	return uint64(-errno)
}

var _ = Describe("Syscall Handler", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		stdout  *bytes.Buffer
		stderr  *bytes.Buffer
		handler *emu.DefaultSyscallHandler
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemory()
		stdout = new(bytes.Buffer)
		stderr = new(bytes.Buffer)
		handler = emu.NewDefaultSyscallHandler(regFile, memory, stdout, stderr)
	})

	Describe("Unknown syscall", func() {
		It("should return -ENOSYS in a0", func() {
			regFile.WriteReg(emu.RegA7, 999)

			result := handler.Handle()

			Expect(result.Exited).To(BeFalse())
			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(negErrno(emu.ENOSYS)))
		})

		It("should treat syscall 0 as unknown", func() {
			result := handler.Handle()

			Expect(result.Exited).To(BeFalse())
			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(negErrno(emu.ENOSYS)))
		})
	})

	Describe("exit", func() {
		DescribeTable("should halt with a0 as exit code",
			func(number uint64) {
				regFile.WriteReg(emu.RegA7, number)
				regFile.WriteReg(emu.RegA0, 3)

				result := handler.Handle()

				Expect(result.Exited).To(BeTrue())
				Expect(result.ExitCode).To(Equal(int64(3)))
			},
			Entry("exit", emu.SyscallExit),
			Entry("exit_group", emu.SyscallExitGroup),
		)
	})

	Describe("write", func() {
		BeforeEach(func() {
			memory.LoadProgram(0x4000, []byte("Hello, world"))
			regFile.WriteReg(emu.RegA7, emu.SyscallWrite)
			regFile.WriteReg(emu.RegA1, 0x4000)
			regFile.WriteReg(emu.RegA2, 5)
		})

		It("should write to stdout", func() {
			regFile.WriteReg(emu.RegA0, 1)

			result := handler.Handle()

			Expect(result.Exited).To(BeFalse())
			Expect(stdout.String()).To(Equal("Hello"))
			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(uint64(5)))
		})

		It("should write to stderr", func() {
			regFile.WriteReg(emu.RegA0, 2)

			handler.Handle()

			Expect(stderr.String()).To(Equal("Hello"))
			Expect(stdout.Len()).To(BeZero())
		})

		It("should reject other descriptors with -EBADF", func() {
			regFile.WriteReg(emu.RegA0, 7)

			handler.Handle()

			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(negErrno(emu.EBADF)))
		})

		It("should report writer failures as -EIO", func() {
			handler = emu.NewDefaultSyscallHandler(regFile, memory, failingWriter{}, stderr)
			regFile.WriteReg(emu.RegA0, 1)

			handler.Handle()

			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(negErrno(emu.EIO)))
		})

		It("should reject a negative count with -EINVAL", func() {
			regFile.WriteReg(emu.RegA0, 1)
			regFile.WriteReg(emu.RegA2, ^uint64(0))

			Expect(func() { handler.Handle() }).NotTo(Panic())
			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(negErrno(emu.EINVAL)))
			Expect(stdout.Len()).To(BeZero())
		})

		It("should write buffers larger than one chunk", func() {
			payload := bytes.Repeat([]byte("0123456789"), 1000)
			memory.LoadProgram(0x8000, payload)
			regFile.WriteReg(emu.RegA0, 1)
			regFile.WriteReg(emu.RegA1, 0x8000)
			regFile.WriteReg(emu.RegA2, uint64(len(payload)))

			handler.Handle()

			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(uint64(len(payload))))
			Expect(stdout.Bytes()).To(Equal(payload))
		})
	})

	Describe("read", func() {
		BeforeEach(func() {
			regFile.WriteReg(emu.RegA7, emu.SyscallRead)
			regFile.WriteReg(emu.RegA1, 0x5000)
			regFile.WriteReg(emu.RegA2, 4)
		})

		It("should copy stdin into memory", func() {
			handler.SetStdin(strings.NewReader("abcdefg"))

			handler.Handle()

			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(uint64(4)))
			Expect(memory.ReadBytes(0x5000, 5)).To(Equal([]byte{'a', 'b', 'c', 'd', 0}))
		})

		It("should return 0 at end of input", func() {
			handler.SetStdin(strings.NewReader(""))

			handler.Handle()

			Expect(regFile.ReadReg(emu.RegA0)).To(BeZero())
		})

		It("should return 0 when no stdin is configured", func() {
			handler.Handle()

			Expect(regFile.ReadReg(emu.RegA0)).To(BeZero())
			Expect(memory.Addresses()).To(BeEmpty())
		})

		It("should reject descriptors other than stdin", func() {
			handler.SetStdin(strings.NewReader("abc"))
			regFile.WriteReg(emu.RegA0, 3)

			handler.Handle()

			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(negErrno(emu.EBADF)))
		})

		It("should reject a negative count with -EINVAL", func() {
			handler.SetStdin(strings.NewReader("abc"))
			regFile.WriteReg(emu.RegA0, 0)
			regFile.WriteReg(emu.RegA2, ^uint64(0))

			Expect(func() { handler.Handle() }).NotTo(Panic())
			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(negErrno(emu.EINVAL)))
			Expect(memory.Addresses()).To(BeEmpty())
		})

		It("should not size the host buffer from a huge count", func() {
			handler.SetStdin(strings.NewReader("abcdefg"))
			regFile.WriteReg(emu.RegA0, 0)
			regFile.WriteReg(emu.RegA2, 1<<40)

			handler.Handle()

			Expect(regFile.ReadReg(emu.RegA0)).To(Equal(uint64(7)))
			Expect(memory.ReadBytes(0x5000, 7)).To(Equal([]byte("abcdefg")))
		})
	})
})
