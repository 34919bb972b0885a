// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arch

import "strings"

// defaultScan reports whether s names info. It accepts, in order:
//
//   - the bare architecture name, if info is the chain default;
//   - the printable name;
//   - "arch:mach" or "archmach" when the printable name has no colon;
//   - "archmach" when the printable name is "arch:mach";
//   - an architecture prefix followed by one of a fixed set of
//     historical machine numbers.
//
// All but the last are case-insensitive.
func defaultScan(info *Info, s string) bool {
	if info.Default && strings.EqualFold(s, info.ArchName) {
		return true
	}
	if strings.EqualFold(s, info.PrintableName) {
		return true
	}

	colon := strings.IndexByte(info.PrintableName, ':')
	if colon < 0 {
		n := len(info.ArchName)
		if len(s) >= n && strings.EqualFold(s[:n], info.ArchName) {
			rest := s[n:]
			rest = strings.TrimPrefix(rest, ":")
			if strings.EqualFold(rest, info.PrintableName) {
				return true
			}
		}
	} else {
		if len(s) >= colon && strings.EqualFold(s[:colon], info.PrintableName[:colon]) &&
			strings.EqualFold(s[colon:], info.PrintableName[colon+1:]) {
			return true
		}
	}

	return legacyScan(info, s)
}

// legacyMachines maps old bare machine numbers onto the descriptors
// they used to select. Machine numbers not in this table never match
// by number. Do not add to it.
var legacyMachines = map[uint64]struct {
	arch Architecture
	mach uint64
}{
	68000: {ArchM68K, MachM68000},
	68010: {ArchM68K, MachM68010},
	68020: {ArchM68K, MachM68020},
	68030: {ArchM68K, MachM68030},
	68040: {ArchM68K, MachM68040},
	68060: {ArchM68K, MachM68060},
	68332: {ArchM68K, MachCPU32},
	5200:  {ArchM68K, MachMCFISAANoDiv},
	5206:  {ArchM68K, MachMCFISAAMAC},
	5307:  {ArchM68K, MachMCFISAAMAC},
	5407:  {ArchM68K, MachMCFISABNoUSPMAC},
	5282:  {ArchM68K, MachMCFISAAPlusEMAC},

	3000: {ArchMIPS, MachMIPS3000},
	4000: {ArchMIPS, MachMIPS4000},
	6000: {ArchRS6000, MachRS6K},
	7410: {ArchSH, MachSHDSP},
	7708: {ArchSH, MachSH3},
	7729: {ArchSH, MachSH3DSP},
	7750: {ArchSH, MachSH4},
}

// legacyScan matches as much of info's architecture name as s has
// (case-sensitively), skips one colon, and then either accepts the
// chain default if nothing is left or parses a decimal machine
// number and looks it up in legacyMachines.
func legacyScan(info *Info, s string) bool {
	i := 0
	for i < len(s) && i < len(info.ArchName) && s[i] == info.ArchName[i] {
		i++
	}
	if i < len(s) && s[i] == ':' {
		i++
	}
	if i == len(s) {
		return info.Default
	}

	var number uint64
	for ; i < len(s) && '0' <= s[i] && s[i] <= '9'; i++ {
		number = number*10 + uint64(s[i]-'0')
	}

	m, ok := legacyMachines[number]
	if !ok {
		return false
	}
	return m.arch == info.Arch && m.mach == info.Mach
}
