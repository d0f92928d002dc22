// Package emu provides functional RV64I emulation.
package emu

import "io"

// RISC-V Linux syscall numbers.
const (
	SyscallRead      uint64 = 63 // read(fd, buf, count)
	SyscallWrite     uint64 = 64 // write(fd, buf, count)
	SyscallExit      uint64 = 93 // exit(status)
	SyscallExitGroup uint64 = 94 // exit_group(status)
)

// Linux error codes.
const (
	EBADF  = 9  // Bad file descriptor
	ENOSYS = 38 // Function not implemented
	EIO    = 5  // I/O error
	EINVAL = 22 // Invalid argument
)

// maxRWCount caps a single read or write the way Linux does. Guest buffers
// are moved through the host in ioChunkSize pieces.
const (
	maxRWCount  = 0x7ffff000
	ioChunkSize = 4096
)

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Exited is true if the syscall caused program termination.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64
}

// SyscallHandler is the interface for handling ECALL.
type SyscallHandler interface {
	// Handle executes the syscall indicated by the register file state.
	// RISC-V Linux syscall convention:
	//   - Syscall number in a7 (x17)
	//   - Arguments in a0-a5 (x10-x15)
	//   - Return value in a0
	Handle() SyscallResult
}

// DefaultSyscallHandler provides a basic syscall handler implementation.
type DefaultSyscallHandler struct {
	regFile *RegFile
	memory  *Memory
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// NewDefaultSyscallHandler creates a default syscall handler.
func NewDefaultSyscallHandler(regFile *RegFile, memory *Memory, stdout, stderr io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		regFile: regFile,
		memory:  memory,
		stdout:  stdout,
		stderr:  stderr,
	}
}

// SetStdin sets the stdin reader for the syscall handler.
func (h *DefaultSyscallHandler) SetStdin(stdin io.Reader) {
	h.stdin = stdin
}

// Handle executes the syscall indicated by the register file state.
func (h *DefaultSyscallHandler) Handle() SyscallResult {
	switch h.regFile.ReadReg(RegA7) {
	case SyscallRead:
		return h.handleRead()
	case SyscallWrite:
		return h.handleWrite()
	case SyscallExit, SyscallExitGroup:
		return h.handleExit()
	default:
		return h.handleUnknown()
	}
}

func (h *DefaultSyscallHandler) handleExit() SyscallResult {
	return SyscallResult{
		Exited:   true,
		ExitCode: int64(h.regFile.ReadReg(RegA0)),
	}
}

func (h *DefaultSyscallHandler) handleRead() SyscallResult {
	fd := h.regFile.ReadReg(RegA0)
	bufPtr := h.regFile.ReadReg(RegA1)
	count := h.regFile.ReadReg(RegA2)

	// Only stdin (fd=0) is supported
	if fd != 0 {
		h.setError(EBADF)
		return SyscallResult{}
	}

	// No stdin configured reads as EOF
	if h.stdin == nil {
		h.regFile.WriteReg(RegA0, 0)
		return SyscallResult{}
	}

	if int64(count) < 0 {
		h.setError(EINVAL)
		return SyscallResult{}
	}

	// A short read is valid, so one chunk is enough.
	buf := make([]byte, min(count, ioChunkSize))
	n, err := h.stdin.Read(buf)
	if err != nil && n == 0 {
		h.regFile.WriteReg(RegA0, 0)
		return SyscallResult{}
	}

	h.memory.LoadProgram(bufPtr, buf[:n])
	h.regFile.WriteReg(RegA0, uint64(n))
	return SyscallResult{}
}

func (h *DefaultSyscallHandler) handleWrite() SyscallResult {
	fd := h.regFile.ReadReg(RegA0)
	bufPtr := h.regFile.ReadReg(RegA1)
	count := h.regFile.ReadReg(RegA2)

	var writer io.Writer
	switch fd {
	case 1:
		writer = h.stdout
	case 2:
		writer = h.stderr
	default:
		h.setError(EBADF)
		return SyscallResult{}
	}

	if int64(count) < 0 {
		h.setError(EINVAL)
		return SyscallResult{}
	}
	count = min(count, maxRWCount)

	var written uint64
	for written < count {
		chunk := min(count-written, ioChunkSize)
		n, err := writer.Write(h.memory.ReadBytes(bufPtr+written, int(chunk)))
		written += uint64(n)
		if err != nil {
			if written == 0 {
				h.setError(EIO)
				return SyscallResult{}
			}
			break
		}
		if uint64(n) < chunk {
			break
		}
	}

	h.regFile.WriteReg(RegA0, written)
	return SyscallResult{}
}

func (h *DefaultSyscallHandler) handleUnknown() SyscallResult {
	h.setError(ENOSYS)
	return SyscallResult{}
}

// setError sets a0 to -errno (as two's complement).
func (h *DefaultSyscallHandler) setError(errno int) {
	h.regFile.WriteReg(RegA0, uint64(-int64(errno)))
}
