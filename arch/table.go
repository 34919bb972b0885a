// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arch

// Machine numbers. These match the values object formats and older
// tools use, so they are not contiguous.
const (
	MachI386Intel       = 1 << 0
	MachI8086           = 1 << 1
	MachI386            = 1 << 2
	MachX86_64          = 1 << 3
	MachX64_32          = 1 << 4
	MachI386IntelSyntax = MachI386 | MachI386Intel

	MachM68000          = 1
	MachM68008          = 2
	MachM68010          = 3
	MachM68020          = 4
	MachM68030          = 5
	MachM68040          = 6
	MachM68060          = 7
	MachCPU32           = 8
	MachFido            = 9
	MachMCFISAANoDiv    = 10
	MachMCFISAA         = 11
	MachMCFISAAMAC      = 12
	MachMCFISAAEMAC     = 13
	MachMCFISAAPlus     = 14
	MachMCFISAAPlusMAC  = 15
	MachMCFISAAPlusEMAC = 16
	MachMCFISABNoUSP    = 17
	MachMCFISABNoUSPMAC = 18

	MachMIPS3000  = 3000
	MachMIPS4000  = 4000
	MachMIPS6000  = 6000
	MachMIPS8000  = 8000
	MachMIPS10000 = 10000
	MachMIPSISA32 = 32
	MachMIPSISA64 = 64

	MachRS6K    = 6000
	MachRS6KRS1 = 6001
	MachRS6KRS2 = 6002
	MachRS6KRSC = 6003

	MachPPC       = 32
	MachPPC64     = 64
	MachPPC603    = 603
	MachPPC604    = 604
	MachPPC750    = 750
	MachPPC7400   = 7400
	MachPPCE500   = 500
	MachPPC64Cell = 620

	MachSH     = 1
	MachSH2    = 0x20
	MachSH2A   = 0x2a
	MachSHDSP  = 0x2d
	MachSH3    = 0x30
	MachSH3DSP = 0x3d
	MachSH3E   = 0x3e
	MachSH4    = 0x40
	MachSH4A   = 0x4a

	MachH8300    = 1
	MachH8300H   = 2
	MachH8300S   = 3
	MachH8300HN  = 4
	MachH8300SN  = 5
	MachH8300SX  = 6
	MachH8300SXN = 7

	MachAVR1    = 1
	MachAVR2    = 2
	MachAVR25   = 25
	MachAVR3    = 3
	MachAVR31   = 31
	MachAVR35   = 35
	MachAVR4    = 4
	MachAVR5    = 5
	MachAVR51   = 51
	MachAVR6    = 6
	MachAVRTiny = 100
	MachXMega1  = 101
	MachXMega2  = 102
	MachXMega3  = 103
	MachXMega4  = 104
	MachXMega5  = 105
	MachXMega6  = 106
	MachXMega7  = 107

	MachARMUnknown = 0
	MachARM2       = 1
	MachARM2a      = 2
	MachARM3       = 3
	MachARM3M      = 4
	MachARM4       = 5
	MachARM4T      = 6
	MachARM5       = 7
	MachARM5T      = 8
	MachARM5TE     = 9
	MachARMXScale  = 10

	MachAArch64      = 0
	MachAArch64ILP32 = 32

	MachRISCV32 = 132
	MachRISCV64 = 164

	MachSPARC          = 1
	MachSPARCSparclet  = 2
	MachSPARCSparclite = 3
	MachSPARCV8Plus    = 4
	MachSPARCV8PlusA   = 5
	MachSPARCV9        = 7
	MachSPARCV9A       = 8

	MachS390_31 = 31
	MachS390_64 = 64

	MachAlphaEV4 = 0x10
	MachAlphaEV5 = 0x20
	MachAlphaEV6 = 0x30

	MachIA64ELF64 = 64
	MachIA64ELF32 = 32

	MachLoongArch32 = 1
	MachLoongArch64 = 2
)

// n builds one descriptor. It exists to keep the tables below
// readable.
func n(word, addr int, arch Architecture, mach uint64, archName, printable string, align uint, def bool, b Behavior) *Info {
	return &Info{
		BitsPerWord:       word,
		BitsPerAddress:    addr,
		BitsPerByte:       8,
		Arch:              arch,
		Mach:              mach,
		ArchName:          archName,
		PrintableName:     printable,
		SectionAlignPower: align,
		Default:           def,
		behavior:          b,
	}
}

var (
	dflt  = DefaultBehavior{}
	i386b = i386Behavior{}
	i8086 = i8086Behavior{}
	ppcb  = powerpcBehavior{}
	h8b   = h8300Behavior{}
	avrb  = avrBehavior{}
)

var aarch64Chain = []*Info{
	n(64, 64, ArchAArch64, MachAArch64, "aarch64", "aarch64", 4, true, dflt),
	n(32, 32, ArchAArch64, MachAArch64ILP32, "aarch64", "aarch64:ilp32", 4, false, dflt),
}

var alphaChain = []*Info{
	n(64, 64, ArchAlpha, 0, "alpha", "alpha", 4, true, dflt),
	n(64, 64, ArchAlpha, MachAlphaEV4, "alpha", "alpha:ev4", 4, false, dflt),
	n(64, 64, ArchAlpha, MachAlphaEV5, "alpha", "alpha:ev5", 4, false, dflt),
	n(64, 64, ArchAlpha, MachAlphaEV6, "alpha", "alpha:ev6", 4, false, dflt),
}

var armChain = []*Info{
	n(32, 32, ArchARM, MachARMUnknown, "arm", "arm", 4, true, dflt),
	n(32, 32, ArchARM, MachARM2, "arm", "armv2", 4, false, dflt),
	n(32, 32, ArchARM, MachARM2a, "arm", "armv2a", 4, false, dflt),
	n(32, 32, ArchARM, MachARM3, "arm", "armv3", 4, false, dflt),
	n(32, 32, ArchARM, MachARM3M, "arm", "armv3m", 4, false, dflt),
	n(32, 32, ArchARM, MachARM4, "arm", "armv4", 4, false, dflt),
	n(32, 32, ArchARM, MachARM4T, "arm", "armv4t", 4, false, dflt),
	n(32, 32, ArchARM, MachARM5, "arm", "armv5", 4, false, dflt),
	n(32, 32, ArchARM, MachARM5T, "arm", "armv5t", 4, false, dflt),
	n(32, 32, ArchARM, MachARM5TE, "arm", "armv5te", 4, false, dflt),
	n(32, 32, ArchARM, MachARMXScale, "arm", "xscale", 4, false, dflt),
}

var avrChain = []*Info{
	n(8, 16, ArchAVR, MachAVR2, "avr", "avr:2", 1, true, avrb),
	n(8, 16, ArchAVR, MachAVR1, "avr", "avr:1", 1, false, avrb),
	n(8, 16, ArchAVR, MachAVR25, "avr", "avr:25", 1, false, avrb),
	n(8, 22, ArchAVR, MachAVR3, "avr", "avr:3", 1, false, avrb),
	n(8, 22, ArchAVR, MachAVR31, "avr", "avr:31", 1, false, avrb),
	n(8, 16, ArchAVR, MachAVR35, "avr", "avr:35", 1, false, avrb),
	n(8, 16, ArchAVR, MachAVR4, "avr", "avr:4", 1, false, avrb),
	n(8, 22, ArchAVR, MachAVR5, "avr", "avr:5", 1, false, avrb),
	n(8, 22, ArchAVR, MachAVR51, "avr", "avr:51", 1, false, avrb),
	n(8, 22, ArchAVR, MachAVR6, "avr", "avr:6", 1, false, avrb),
	n(8, 16, ArchAVR, MachAVRTiny, "avr", "avr:100", 1, false, avrb),
	n(8, 24, ArchAVR, MachXMega1, "avr", "avr:101", 1, false, avrb),
	n(8, 24, ArchAVR, MachXMega2, "avr", "avr:102", 1, false, avrb),
	n(8, 24, ArchAVR, MachXMega3, "avr", "avr:103", 1, false, avrb),
	n(8, 24, ArchAVR, MachXMega4, "avr", "avr:104", 1, false, avrb),
	n(8, 24, ArchAVR, MachXMega5, "avr", "avr:105", 1, false, avrb),
	n(8, 24, ArchAVR, MachXMega6, "avr", "avr:106", 1, false, avrb),
	n(8, 24, ArchAVR, MachXMega7, "avr", "avr:107", 1, false, avrb),
}

var h8300Chain = []*Info{
	n(16, 16, ArchH8300, MachH8300, "h8300", "h8300", 1, true, h8b),
	n(32, 32, ArchH8300, MachH8300H, "h8300", "h8300h", 1, false, h8b),
	n(32, 32, ArchH8300, MachH8300S, "h8300", "h8300s", 1, false, h8b),
	n(32, 16, ArchH8300, MachH8300HN, "h8300", "h8300hn", 1, false, h8b),
	n(32, 16, ArchH8300, MachH8300SN, "h8300", "h8300sn", 1, false, h8b),
	n(32, 32, ArchH8300, MachH8300SX, "h8300", "h8300sx", 1, false, h8b),
	n(32, 16, ArchH8300, MachH8300SXN, "h8300", "h8300sxn", 1, false, h8b),
}

var i386Chain = []*Info{
	n(32, 32, ArchI386, MachI386, "i386", "i386", 3, true, i386b),
	n(32, 32, ArchI386, MachI8086, "i386", "i8086", 3, false, i8086),
	n(32, 32, ArchI386, MachI386IntelSyntax, "i386", "i386:intel", 3, false, i386b),
	n(64, 64, ArchI386, MachX86_64, "i386", "i386:x86-64", 3, false, i386b),
	n(64, 32, ArchI386, MachX64_32, "i386", "i386:x64-32", 3, false, i386b),
}

var ia64Chain = []*Info{
	n(64, 64, ArchIA64, MachIA64ELF64, "ia64", "ia64-elf64", 3, true, dflt),
	n(32, 32, ArchIA64, MachIA64ELF32, "ia64", "ia64-elf32", 3, false, dflt),
}

var loongarchChain = []*Info{
	n(64, 64, ArchLoongArch, MachLoongArch64, "loongarch", "loongarch64", 3, true, dflt),
	n(32, 32, ArchLoongArch, MachLoongArch32, "loongarch", "loongarch32", 3, false, dflt),
}

var m68kChain = []*Info{
	n(32, 32, ArchM68K, 0, "m68k", "m68k", 2, true, dflt),
	n(32, 32, ArchM68K, MachM68000, "m68k", "m68k:68000", 2, false, dflt),
	n(32, 32, ArchM68K, MachM68008, "m68k", "m68k:68008", 2, false, dflt),
	n(32, 32, ArchM68K, MachM68010, "m68k", "m68k:68010", 2, false, dflt),
	n(32, 32, ArchM68K, MachM68020, "m68k", "m68k:68020", 2, false, dflt),
	n(32, 32, ArchM68K, MachM68030, "m68k", "m68k:68030", 2, false, dflt),
	n(32, 32, ArchM68K, MachM68040, "m68k", "m68k:68040", 2, false, dflt),
	n(32, 32, ArchM68K, MachM68060, "m68k", "m68k:68060", 2, false, dflt),
	n(32, 32, ArchM68K, MachCPU32, "m68k", "m68k:cpu32", 2, false, dflt),
	n(32, 32, ArchM68K, MachFido, "m68k", "m68k:fido", 2, false, dflt),
	n(32, 32, ArchM68K, MachMCFISAANoDiv, "m68k", "m68k:isa-a:nodiv", 2, false, dflt),
	n(32, 32, ArchM68K, MachMCFISAA, "m68k", "m68k:isa-a", 2, false, dflt),
	n(32, 32, ArchM68K, MachMCFISAAMAC, "m68k", "m68k:isa-a:mac", 2, false, dflt),
	n(32, 32, ArchM68K, MachMCFISAAEMAC, "m68k", "m68k:isa-a:emac", 2, false, dflt),
	n(32, 32, ArchM68K, MachMCFISAAPlus, "m68k", "m68k:isa-aplus", 2, false, dflt),
	n(32, 32, ArchM68K, MachMCFISAAPlusMAC, "m68k", "m68k:isa-aplus:mac", 2, false, dflt),
	n(32, 32, ArchM68K, MachMCFISAAPlusEMAC, "m68k", "m68k:isa-aplus:emac", 2, false, dflt),
	n(32, 32, ArchM68K, MachMCFISABNoUSP, "m68k", "m68k:isa-b:nousp", 2, false, dflt),
	n(32, 32, ArchM68K, MachMCFISABNoUSPMAC, "m68k", "m68k:isa-b:nousp:mac", 2, false, dflt),
}

var mipsChain = []*Info{
	n(32, 32, ArchMIPS, 0, "mips", "mips", 3, true, dflt),
	n(32, 32, ArchMIPS, MachMIPS3000, "mips", "mips:3000", 3, false, dflt),
	n(64, 64, ArchMIPS, MachMIPS4000, "mips", "mips:4000", 3, false, dflt),
	n(32, 32, ArchMIPS, MachMIPS6000, "mips", "mips:6000", 3, false, dflt),
	n(64, 64, ArchMIPS, MachMIPS8000, "mips", "mips:8000", 3, false, dflt),
	n(64, 64, ArchMIPS, MachMIPS10000, "mips", "mips:10000", 3, false, dflt),
	n(32, 32, ArchMIPS, MachMIPSISA32, "mips", "mips:isa32", 3, false, dflt),
	n(64, 64, ArchMIPS, MachMIPSISA64, "mips", "mips:isa64", 3, false, dflt),
}

var powerpcChain = []*Info{
	n(32, 32, ArchPowerPC, MachPPC, "powerpc", "powerpc:common", 3, true, ppcb),
	n(64, 64, ArchPowerPC, MachPPC64, "powerpc", "powerpc:common64", 3, false, ppcb),
	n(32, 32, ArchPowerPC, MachPPCE500, "powerpc", "powerpc:e500", 3, false, ppcb),
	n(32, 32, ArchPowerPC, MachPPC603, "powerpc", "powerpc:603", 3, false, ppcb),
	n(32, 32, ArchPowerPC, MachPPC604, "powerpc", "powerpc:604", 3, false, ppcb),
	n(64, 64, ArchPowerPC, MachPPC64Cell, "powerpc", "powerpc:620", 3, false, ppcb),
	n(32, 32, ArchPowerPC, MachPPC750, "powerpc", "powerpc:750", 3, false, ppcb),
	n(32, 32, ArchPowerPC, MachPPC7400, "powerpc", "powerpc:7400", 3, false, ppcb),
}

var riscvChain = []*Info{
	n(64, 64, ArchRISCV, 0, "riscv", "riscv", 3, true, dflt),
	n(32, 32, ArchRISCV, MachRISCV32, "riscv", "riscv:rv32", 3, false, dflt),
	n(64, 64, ArchRISCV, MachRISCV64, "riscv", "riscv:rv64", 3, false, dflt),
}

var rs6000Chain = []*Info{
	n(32, 32, ArchRS6000, MachRS6K, "rs6000", "rs6000:6000", 3, true, ppcb),
	n(32, 32, ArchRS6000, MachRS6KRS1, "rs6000", "rs6000:rs1", 3, false, ppcb),
	n(32, 32, ArchRS6000, MachRS6KRS2, "rs6000", "rs6000:rs2", 3, false, ppcb),
	n(32, 32, ArchRS6000, MachRS6KRSC, "rs6000", "rs6000:rsc", 3, false, ppcb),
}

var s390Chain = []*Info{
	n(32, 32, ArchS390, MachS390_31, "s390", "s390:31-bit", 3, true, dflt),
	n(64, 64, ArchS390, MachS390_64, "s390", "s390:64-bit", 3, false, dflt),
}

var shChain = []*Info{
	n(32, 32, ArchSH, MachSH, "sh", "sh", 1, true, dflt),
	n(32, 32, ArchSH, MachSH2, "sh", "sh2", 1, false, dflt),
	n(32, 32, ArchSH, MachSH2A, "sh", "sh2a", 1, false, dflt),
	n(32, 32, ArchSH, MachSHDSP, "sh", "sh-dsp", 1, false, dflt),
	n(32, 32, ArchSH, MachSH3, "sh", "sh3", 1, false, dflt),
	n(32, 32, ArchSH, MachSH3DSP, "sh", "sh3-dsp", 1, false, dflt),
	n(32, 32, ArchSH, MachSH3E, "sh", "sh3e", 1, false, dflt),
	n(32, 32, ArchSH, MachSH4, "sh", "sh4", 1, false, dflt),
	n(32, 32, ArchSH, MachSH4A, "sh", "sh4a", 1, false, dflt),
}

var sparcChain = []*Info{
	n(32, 32, ArchSPARC, MachSPARC, "sparc", "sparc", 3, true, dflt),
	n(32, 32, ArchSPARC, MachSPARCSparclet, "sparc", "sparc:sparclet", 3, false, dflt),
	n(32, 32, ArchSPARC, MachSPARCSparclite, "sparc", "sparc:sparclite", 3, false, dflt),
	n(32, 32, ArchSPARC, MachSPARCV8Plus, "sparc", "sparc:v8plus", 3, false, dflt),
	n(32, 32, ArchSPARC, MachSPARCV8PlusA, "sparc", "sparc:v8plusa", 3, false, dflt),
	n(64, 64, ArchSPARC, MachSPARCV9, "sparc", "sparc:v9", 3, false, dflt),
	n(64, 64, ArchSPARC, MachSPARCV9A, "sparc", "sparc:v9a", 3, false, dflt),
}

var vaxChain = []*Info{
	n(32, 32, ArchVAX, 0, "vax", "vax", 3, true, dflt),
}

var builtinChains = [][]*Info{
	aarch64Chain,
	alphaChain,
	armChain,
	avrChain,
	h8300Chain,
	i386Chain,
	ia64Chain,
	loongarchChain,
	m68kChain,
	mipsChain,
	powerpcChain,
	riscvChain,
	rs6000Chain,
	s390Chain,
	shChain,
	sparcChain,
	vaxChain,
}
