// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command bfdinfo prints the format, architecture, sections and
// companion debug files of object files.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/aclements/go-bfd/bfd"
	"github.com/aclements/go-bfd/internal/config"
)

var (
	targetFlag     = flag.String("target", "", "read files as `target` instead of probing")
	decompressFlag = flag.Bool("decompress", false, "present compressed debug sections decompressed")
	symsFlag       = flag.Bool("syms", false, "print the symbol table")
	disasmFlag     = flag.String("d", "", "disassemble `symbol`")
	debugDirFlag   = flag.String("debug-dir", "", "search `dir` for separate debug files")
	verboseFlag    = flag.Bool("v", false, "log file and cache activity")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] objfile...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verboseFlag {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			log.Fatal(err)
		}
		defer logger.Sync()
	}
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	if *targetFlag != "" {
		cfg.DefaultTarget = *targetFlag
	}
	ctx := bfd.NewContext(bfd.WithConfig(cfg), bfd.WithLogger(logger))

	opts := options{
		decompress: *decompressFlag,
		syms:       *symsFlag,
		disasm:     *disasmFlag,
		debugDir:   *debugDirFlag,
	}
	status := 0
	for _, name := range flag.Args() {
		if err := report(os.Stdout, ctx, name, opts); err != nil {
			log.Print(err)
			status = 1
		}
	}
	os.Exit(status)
}

type options struct {
	decompress bool
	syms       bool
	disasm     string
	debugDir   string
}

func report(w io.Writer, ctx *bfd.Context, name string, opts options) error {
	f, err := ctx.OpenRead(name, "")
	if err != nil {
		return err
	}
	defer f.Close()
	if opts.decompress {
		f.SetFlags(f.Flags() | bfd.Decompress)
	}
	if err := f.CheckFormat(bfd.FormatObject); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: file format %s\n", f.Name(), f.Target())
	fmt.Fprintf(w, "architecture: %s, flags 0x%08x:\n%s\n\n", f.Arch(), uint32(f.Flags()), f.Flags())

	tw := tabwriter.NewWriter(w, 1, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Idx\tName\tSize\tVMA\tLMA\tFile off\tAlgn\tFlags\n")
	for _, s := range f.Sections() {
		fmt.Fprintf(tw, "%d\t%s\t%08x\t%016x\t%016x\t%08x\t2**%d\t%s", s.Index, s.Name, s.Size, s.VMA, s.LMA, s.FilePos, s.AlignPower, s.Flags)
		if st := s.CompressStatus(); st != bfd.CompressNone {
			fmt.Fprintf(tw, " (%s)", st)
		}
		fmt.Fprintf(tw, "\n")
	}
	tw.Flush()

	if id, err := f.BuildID(); err == nil {
		fmt.Fprintf(w, "\nbuild-id: %s\n", hex.EncodeToString(id))
		if path, err := f.FollowBuildIDDebuglink(opts.debugDir); err == nil {
			fmt.Fprintf(w, "  debug file: %s\n", path)
		}
	}
	if link, crc, err := f.DebugLinkInfo(); err == nil {
		fmt.Fprintf(w, "\ndebuglink: %s (crc %08x)\n", link, crc)
		if path, err := f.FollowGNUDebuglink(opts.debugDir); err == nil {
			fmt.Fprintf(w, "  debug file: %s\n", path)
		} else {
			fmt.Fprintf(w, "  not found\n")
		}
	}
	if link, _, err := f.AltDebugLinkInfo(); err == nil {
		fmt.Fprintf(w, "\ndebugaltlink: %s\n", link)
		if path, err := f.FollowGNUDebugaltlink(opts.debugDir); err == nil {
			fmt.Fprintf(w, "  alt file: %s\n", path)
		}
	}

	if !opts.syms && opts.disasm == "" {
		return nil
	}
	syms, err := f.Symbols()
	if err != nil {
		return err
	}
	tab := bfd.NewSymbolTable(syms)
	if opts.syms {
		fmt.Fprintf(w, "\nSYMBOL TABLE:\n")
		for _, s := range tab.Syms() {
			kind := s.Kind.String()
			if s.Local && s.Kind != bfd.SymUndef {
				kind = string(rune(s.Kind) + 'a' - 'A')
			}
			fmt.Fprintf(w, "%016x %s %8d %s\n", s.Value, kind, s.Size, s.Name)
		}
	}
	if opts.disasm != "" {
		return disasmSym(w, f, tab, opts.disasm)
	}
	return nil
}

func disasmSym(w io.Writer, f *bfd.File, tab *bfd.SymbolTable, name string) error {
	sym, ok := tab.Name(name)
	if !ok {
		return fmt.Errorf("%s: no symbol %s", f.Name(), name)
	}
	dec, err := decoderFor(f.Arch(), f.Target().ByteOrder)
	if err != nil {
		return err
	}
	data, err := f.SymbolData(sym)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%016x <%s>:\n", sym.Value, sym.Name)
	for _, in := range disasm(dec, data, sym.Value, tab.SymName) {
		fmt.Fprintf(w, "  %x:\t%-24x\t%s\n", in.pc, in.enc, in.text)
	}
	return nil
}
