// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch describes CPU architectures and their machine variants.
//
// Each architecture family contributes a chain of Info descriptors,
// one per machine variant. Exactly one descriptor in a chain is the
// default, which is what a lookup with machine 0 resolves to. The
// tables are built once at package initialization and are read-only
// after that, so a Registry is safe for concurrent use.
package arch

import (
	"errors"
	"fmt"
)

// An Architecture identifies a CPU architecture family.
type Architecture int

const (
	ArchUnknown Architecture = iota
	ArchObscure
	ArchAArch64
	ArchAlpha
	ArchARM
	ArchAVR
	ArchH8300
	ArchI386
	ArchIA64
	ArchLoongArch
	ArchM68K
	ArchMIPS
	ArchPowerPC
	ArchRISCV
	ArchRS6000
	ArchS390
	ArchSH
	ArchSPARC
	ArchVAX
)

var archNames = [...]string{
	ArchUnknown:   "unknown",
	ArchObscure:   "obscure",
	ArchAArch64:   "aarch64",
	ArchAlpha:     "alpha",
	ArchARM:       "arm",
	ArchAVR:       "avr",
	ArchH8300:     "h8300",
	ArchI386:      "i386",
	ArchIA64:      "ia64",
	ArchLoongArch: "loongarch",
	ArchM68K:      "m68k",
	ArchMIPS:      "mips",
	ArchPowerPC:   "powerpc",
	ArchRISCV:     "riscv",
	ArchRS6000:    "rs6000",
	ArchS390:      "s390",
	ArchSH:        "sh",
	ArchSPARC:     "sparc",
	ArchVAX:       "vax",
}

func (a Architecture) String() string {
	if a >= 0 && int(a) < len(archNames) && archNames[a] != "" {
		return archNames[a]
	}
	return fmt.Sprintf("Architecture(%d)", int(a))
}

// Info describes one (architecture, machine) pair.
type Info struct {
	BitsPerWord    int
	BitsPerAddress int
	BitsPerByte    int
	Arch           Architecture
	// Mach is the machine number. Zero means "unspecified", but a
	// chain's default descriptor need not have Mach zero.
	Mach          uint64
	ArchName      string
	PrintableName string
	// SectionAlignPower is the log2 of the default section
	// alignment.
	SectionAlignPower uint
	// Default is set on the descriptor a machine-0 lookup resolves
	// to. Exactly one per chain.
	Default bool

	MaxRelocOffsetIntoInsn int

	behavior Behavior
}

func (i *Info) String() string {
	return i.PrintableName
}

// OctetsPerByte returns the number of 8-bit octets in one target
// byte.
func (i *Info) OctetsPerByte() int {
	if i.BitsPerByte <= 8 {
		return 1
	}
	return i.BitsPerByte / 8
}

// Scan reports whether s names this descriptor.
func (i *Info) Scan(s string) bool {
	return i.behaviorOrDefault().Scan(i, s)
}

// Compatible returns whichever of i and other is the more capable
// machine that both can run as, or nil if the two cannot be mixed.
func (i *Info) Compatible(other *Info) *Info {
	return i.behaviorOrDefault().Compatible(i, other)
}

// Fill returns a buffer of n padding bytes. If code is set the
// buffer may be filled with no-op instructions in the requested byte
// order; otherwise it is zeroed.
func (i *Info) Fill(n int, bigEndian, code bool) []byte {
	return i.behaviorOrDefault().Fill(n, bigEndian, code)
}

func (i *Info) behaviorOrDefault() Behavior {
	if i.behavior == nil {
		return DefaultBehavior{}
	}
	return i.behavior
}

// A Behavior supplies the per-architecture rules of an Info.
type Behavior interface {
	// Compatible returns a or b, whichever should be used for a
	// combination of the two, or nil if they are incompatible.
	Compatible(a, b *Info) *Info
	// Scan reports whether s names info. It must return false,
	// not panic, on any input it does not recognize.
	Scan(info *Info, s string) bool
	// Fill returns n bytes of padding.
	Fill(n int, bigEndian, code bool) []byte
}

// DefaultBehavior implements the rules shared by most architectures.
// Architectures with irregular rules embed it and override the
// methods that differ.
type DefaultBehavior struct{}

// Compatible requires the same architecture and word size and picks
// the higher machine number, preferring a on a tie.
func (DefaultBehavior) Compatible(a, b *Info) *Info {
	if a.Arch != b.Arch || a.BitsPerWord != b.BitsPerWord {
		return nil
	}
	if a.Mach >= b.Mach {
		return a
	}
	return b
}

// Scan implements the default name matching. See defaultScan.
func (DefaultBehavior) Scan(info *Info, s string) bool {
	return defaultScan(info, s)
}

// Fill returns n zero bytes.
func (DefaultBehavior) Fill(n int, bigEndian, code bool) []byte {
	if n < 0 {
		n = 0
	}
	return make([]byte, n)
}

// Unknown is the descriptor of a file whose architecture has not been
// determined. It is not part of any Registry.
var Unknown = &Info{
	BitsPerWord:       32,
	BitsPerAddress:    32,
	BitsPerByte:       8,
	Arch:              ArchUnknown,
	Mach:              0,
	ArchName:          "unknown",
	PrintableName:     "unknown",
	SectionAlignPower: 2,
	Default:           true,
}

// ErrIncompatible is returned by Compatible when two descriptors
// cannot be combined.
var ErrIncompatible = errors.New("file format is incompatible")

// An Operand is one side of a compatibility check.
type Operand struct {
	Info *Info
	// Binary is set if the file uses the raw "binary" format,
	// which carries no architecture of its own.
	Binary bool
	// Plugin is set if the file was produced by a compiler plugin
	// (LTO IR), which is also architecture-neutral.
	Plugin bool
}

func (o Operand) unknown() bool {
	return o.Info == nil || o.Info.Arch == ArchUnknown
}

// Compatible decides which descriptor results from combining a and b.
// If either side has an unknown architecture, the other side wins
// when acceptUnknown is set or the unknown side is a binary or plugin
// file. Otherwise the decision is delegated to a's rules.
func Compatible(a, b Operand, acceptUnknown bool) (*Info, error) {
	ua, ub := a.unknown(), b.unknown()
	if ua || ub {
		switch {
		case ua && (acceptUnknown || a.Binary || a.Plugin):
			return b.infoOrUnknown(), nil
		case ub && (acceptUnknown || b.Binary || b.Plugin):
			return a.infoOrUnknown(), nil
		}
		return nil, ErrIncompatible
	}
	if info := a.Info.Compatible(b.Info); info != nil {
		return info, nil
	}
	return nil, ErrIncompatible
}

func (o Operand) infoOrUnknown() *Info {
	if o.Info == nil {
		return Unknown
	}
	return o.Info
}
