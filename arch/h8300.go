// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arch

// h8300Behavior accepts the many spellings of H8/300 variants and
// refuses to mix addressing modes.
type h8300Behavior struct{ DefaultBehavior }

// Scan accepts an optional "/" after "H8", an optional "-" after
// "300", an optional ":" followed by another H8 name, and then a
// suffix of "", "h", "hn", "s", "sn", "sx" or "sxn", each letter in
// either case.
func (h8300Behavior) Scan(info *Info, s string) bool {
	accept := func(prefix string) bool {
		if len(s) == 0 || (s[0] != prefix[0] && s[0] != prefix[0]-'a'+'A') {
			return false
		}
		s = s[1:]
		return true
	}
	opt := func(c byte) {
		if len(s) > 0 && (s[0] == c || (c >= 'a' && c <= 'z' && s[0] == c-'a'+'A')) {
			s = s[1:]
		}
	}
	digit := func(c byte) bool {
		if len(s) == 0 || s[0] != c {
			return false
		}
		s = s[1:]
		return true
	}

	if !accept("h") || !digit('8') {
		return false
	}
	opt('/')
	if !digit('3') || !digit('0') || !digit('0') {
		return false
	}
	opt('-')

	if len(s) > 0 && s[0] == ':' {
		return h8300Behavior{}.Scan(info, s[1:])
	}

	is := func(c byte) bool {
		return len(s) > 0 && (s[0] == c || s[0] == c-'a'+'A')
	}
	switch {
	case is('h'):
		s = s[1:]
		if is('n') {
			return info.Mach == MachH8300HN
		}
		return info.Mach == MachH8300H
	case is('s'):
		s = s[1:]
		if is('n') {
			return info.Mach == MachH8300SN
		}
		if is('x') {
			s = s[1:]
			if is('n') {
				return info.Mach == MachH8300SXN
			}
			return info.Mach == MachH8300SX
		}
		return info.Mach == MachH8300S
	}
	return info.Mach == MachH8300
}

// Compatible lets an SX object link with an S object (and the
// normal-mode equivalents) and otherwise requires an exact match.
func (h8300Behavior) Compatible(in, out *Info) *Info {
	if in.Arch != out.Arch {
		return nil
	}
	switch {
	case in.Mach == MachH8300SX && out.Mach == MachH8300S,
		in.Mach == MachH8300SXN && out.Mach == MachH8300SN:
		return in
	case in.Mach == MachH8300S && out.Mach == MachH8300SX,
		in.Mach == MachH8300SN && out.Mach == MachH8300SXN:
		return out
	}
	if in.Mach != out.Mach {
		return nil
	}
	return in
}
