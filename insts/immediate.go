package insts

// SignExtend replicates bit (bits-1) of value into every higher bit of the
// 32-bit result. bits must be in [1, 32].
func SignExtend(value uint32, bits uint) uint32 {
	shift := 32 - bits
	return uint32(int32(value<<shift) >> shift)
}

// ImmI decodes the I-type immediate: imm[11:0] = inst[31:20].
func ImmI(word uint32) uint32 {
	return SignExtend(word>>20, 12)
}

// ImmS decodes the S-type immediate: imm[11:5] = inst[31:25],
// imm[4:0] = inst[11:7].
func ImmS(word uint32) uint32 {
	imm := (word>>25)<<5 | (word>>7)&0x1f
	return SignExtend(imm, 12)
}

// ImmB decodes the B-type immediate: imm[12] = inst[31], imm[11] = inst[7],
// imm[10:5] = inst[30:25], imm[4:1] = inst[11:8]. Bit 0 is always zero.
func ImmB(word uint32) uint32 {
	imm := (word>>31)&0x1<<12 |
		(word>>7)&0x1<<11 |
		(word>>25)&0x3f<<5 |
		(word>>8)&0xf<<1
	return SignExtend(imm, 13)
}

// ImmU decodes the U-type immediate: imm[31:12] = inst[31:12]. The value is
// already positioned in the upper bits.
func ImmU(word uint32) uint32 {
	return word & 0xfffff000
}

// ImmJ decodes the J-type immediate: imm[20] = inst[31],
// imm[10:1] = inst[30:21], imm[11] = inst[20], imm[19:12] = inst[19:12].
// Bit 0 is always zero.
func ImmJ(word uint32) uint32 {
	imm := (word>>31)&0x1<<20 |
		(word>>21)&0x3ff<<1 |
		(word>>20)&0x1<<11 |
		(word>>12)&0xff<<12
	return SignExtend(imm, 21)
}
