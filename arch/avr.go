// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arch

// avrBehavior orders the classic AVR cores by capability rather
// than by machine number, whose sub-revisions (25, 31, 35, 51) do
// not sort sensibly.
type avrBehavior struct{ DefaultBehavior }

var avrRank = map[uint64]int{
	MachAVR1:  1,
	MachAVR2:  2,
	MachAVR25: 3,
	MachAVR3:  4,
	MachAVR31: 5,
	MachAVR35: 6,
	MachAVR4:  7,
	MachAVR5:  8,
	MachAVR51: 9,
}

func isXMega(mach uint64) bool {
	return mach >= MachXMega1 && mach <= MachXMega7
}

func (avrBehavior) Compatible(a, b *Info) *Info {
	if a.Arch != b.Arch {
		return nil
	}
	if a.Mach == b.Mach {
		return a
	}

	// avr:6 saves a 3-byte return address, so its calling
	// convention is its own.
	if a.Mach == MachAVR6 || b.Mach == MachAVR6 {
		return nil
	}
	// avrtiny has half the registers.
	if a.Mach == MachAVRTiny || b.Mach == MachAVRTiny {
		return nil
	}
	// ATmega103 (avr:3) and ATmega83 (avr:4) have disjoint
	// instruction sets.
	if (a.Mach == MachAVR3 && b.Mach == MachAVR4) || (a.Mach == MachAVR4 && b.Mach == MachAVR3) {
		return nil
	}

	if isXMega(a.Mach) || isXMega(b.Mach) {
		if !isXMega(a.Mach) || !isXMega(b.Mach) {
			return nil
		}
		if a.Mach > b.Mach {
			return a
		}
		return b
	}

	ra, oka := avrRank[a.Mach]
	rb, okb := avrRank[b.Mach]
	if !oka || !okb {
		return nil
	}
	if ra >= rb {
		return a
	}
	return b
}
