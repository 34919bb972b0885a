// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arch

// A Registry is an ordered list of architecture chains.
type Registry struct {
	chains [][]*Info
}

// NewRegistry returns a registry over chains. Each chain lists the
// machine variants of one architecture. The registry does not copy
// the descriptors; they must not be modified afterward.
func NewRegistry(chains ...[]*Info) *Registry {
	return &Registry{chains: chains}
}

// Default is the registry of all built-in architectures.
var Default = NewRegistry(builtinChains...)

// Scan returns the first descriptor that accepts name, searching
// chains in registry order and each chain in order.
func (r *Registry) Scan(name string) (*Info, bool) {
	for _, chain := range r.chains {
		for _, info := range chain {
			if info.Scan(name) {
				return info, true
			}
		}
	}
	return nil, false
}

// Lookup returns the descriptor for arch and mach. A mach of 0
// resolves to the chain's default descriptor.
func (r *Registry) Lookup(arch Architecture, mach uint64) (*Info, bool) {
	for _, chain := range r.chains {
		for _, info := range chain {
			if info.Arch != arch {
				break
			}
			if info.Mach == mach || (mach == 0 && info.Default) {
				return info, true
			}
		}
	}
	return nil, false
}

// PrintableNames returns the printable name of every descriptor, in
// registry order. Each call returns a new slice.
func (r *Registry) PrintableNames() []string {
	var names []string
	for _, chain := range r.chains {
		for _, info := range chain {
			names = append(names, info.PrintableName)
		}
	}
	return names
}

// Architectures returns the architecture of every chain in registry
// order.
func (r *Registry) Architectures() []Architecture {
	out := make([]Architecture, 0, len(r.chains))
	for _, chain := range r.chains {
		if len(chain) > 0 {
			out = append(out, chain[0].Arch)
		}
	}
	return out
}

// Infos returns every descriptor in registry order.
func (r *Registry) Infos() []*Info {
	var out []*Info
	for _, chain := range r.chains {
		out = append(out, chain...)
	}
	return out
}

// Scan looks up name in the Default registry.
func Scan(name string) (*Info, bool) {
	return Default.Scan(name)
}

// Lookup looks up arch and mach in the Default registry.
func Lookup(arch Architecture, mach uint64) (*Info, bool) {
	return Default.Lookup(arch, mach)
}

// PrintableNames lists the Default registry.
func PrintableNames() []string {
	return Default.PrintableNames()
}
