package benchmarks

import "encoding/binary"

// Major opcodes used by the encoders below.
const (
	opLoad   = 0b0000011
	opOpImm  = 0b0010011
	opStore  = 0b0100011
	opOp     = 0b0110011
	opBranch = 0b1100011
	opJALR   = 0b1100111
	opJAL    = 0b1101111
)

// Fixed SYSTEM encodings.
const (
	WordECALL  uint32 = 0x00000073
	WordEBREAK uint32 = 0x00100073
)

// BuildProgram assembles instruction words into little-endian bytes.
func BuildProgram(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

func encodeI(opcode uint32, imm int32, rs1, funct3, rd uint8) uint32 {
	return uint32(imm&0xFFF)<<20 | uint32(rs1&0x1F)<<15 |
		uint32(funct3&0x7)<<12 | uint32(rd&0x1F)<<7 | opcode
}

// EncodeADDI encodes addi rd, rs1, imm.
func EncodeADDI(rd, rs1 uint8, imm int32) uint32 {
	return encodeI(opOpImm, imm, rs1, 0b000, rd)
}

// EncodeADD encodes add rd, rs1, rs2.
func EncodeADD(rd, rs1, rs2 uint8) uint32 {
	return uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 | uint32(rd&0x1F)<<7 | opOp
}

// EncodeLW encodes lw rd, imm(rs1).
func EncodeLW(rd, rs1 uint8, imm int32) uint32 {
	return encodeI(opLoad, imm, rs1, 0b010, rd)
}

// EncodeSW encodes sw rs2, imm(rs1).
func EncodeSW(rs2, rs1 uint8, imm int32) uint32 {
	u := uint32(imm) & 0xFFF
	return (u>>5)<<25 | uint32(rs2&0x1F)<<20 | uint32(rs1&0x1F)<<15 |
		0b010<<12 | (u&0x1F)<<7 | opStore
}

func encodeB(offset int32, rs2, rs1, funct3 uint8) uint32 {
	u := uint32(offset) & 0x1FFF
	return (u>>12&1)<<31 | (u>>5&0x3F)<<25 | uint32(rs2&0x1F)<<20 |
		uint32(rs1&0x1F)<<15 | uint32(funct3&0x7)<<12 |
		(u>>1&0xF)<<8 | (u>>11&1)<<7 | opBranch
}

// EncodeBEQ encodes beq rs1, rs2, offset. offset is relative to the branch.
func EncodeBEQ(rs1, rs2 uint8, offset int32) uint32 {
	return encodeB(offset, rs2, rs1, 0b000)
}

// EncodeBNE encodes bne rs1, rs2, offset. offset is relative to the branch.
func EncodeBNE(rs1, rs2 uint8, offset int32) uint32 {
	return encodeB(offset, rs2, rs1, 0b001)
}

// EncodeJAL encodes jal rd, offset.
func EncodeJAL(rd uint8, offset int32) uint32 {
	u := uint32(offset) & 0x1FFFFF
	return (u>>20&1)<<31 | (u>>1&0x3FF)<<21 | (u>>11&1)<<20 |
		(u>>12&0xFF)<<12 | uint32(rd&0x1F)<<7 | opJAL
}

// EncodeJALR encodes jalr rd, imm(rs1).
func EncodeJALR(rd, rs1 uint8, imm int32) uint32 {
	return encodeI(opJALR, imm, rs1, 0b000, rd)
}
