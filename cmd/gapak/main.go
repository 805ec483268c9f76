// Command gapak lists, inspects, and extracts VPK1, VPK2, WAD, and PAK
// archives behind one flag set, regardless of which format each argument
// turns out to be.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	gamearchive "github.com/binarchive/gamearchive"
	"github.com/binarchive/gamearchive/internal"
)

var (
	List    = pflag.BoolP("list", "l", false, "List fully qualified entry names")
	Details = pflag.BoolP("details", "d", false, "With --list, also print size, preload size, archive index, and CRC32")
	Info    = pflag.BoolP("info", "i", false, "Print archive-level metadata")
	Extract = pflag.BoolP("extract", "x", false, "Extract entries to disk")

	Pattern = pflag.StringArrayP("pattern", "p", nil, "Only process entries whose fully qualified name matches this regex (may be repeated)")
	OutDir  = pflag.StringP("outdir", "o", "", "Destination root for extraction (default: the archive's base name)")
	Find    = pflag.StringArrayP("find", "f", nil, "Report whether each name is present in the archive (may be repeated)")

	Exclude = pflag.StringSlice("exclude", nil, "Excludes files or directories matching the provided glob (anchor to the start with /)")
	Include = pflag.StringSlice("include", nil, "Negates --exclude for files or directories matching the provided glob")

	Help = pflag.BoolP("help", "h", false, "Show this help message")
)

// globExcluded applies --exclude/--include on top of the regex --pattern
// filter, mirroring older Titanfall2-era tooling's include/exclude globs.
func globExcluded(name string) (bool, error) {
	return internal.ResolveGlobExclusion(*Exclude, *Include, name)
}

func main() {
	pflag.Parse()

	if *Help || pflag.NArg() == 0 {
		usage()
		if *Help {
			os.Exit(0)
		}
		os.Exit(1)
	}

	failed := false
	for _, path := range pflag.Args() {
		if err := process(path); err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [options] archive...\n\noptions:\n%s", filepath.Base(os.Args[0]), pflag.CommandLine.FlagUsages())
}

func process(path string) error {
	a, err := gamearchive.ReadFromDisk(path)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case *Info:
		return printInfo(a)
	case len(*Find) > 0:
		return runFind(a)
	case *Extract:
		return runExtract(a)
	case *List:
		return runList(a)
	default:
		return runList(a)
	}
}

func printInfo(a *gamearchive.Archive) error {
	fmt.Printf("format:    %s\n", a.Format())
	fmt.Printf("base name: %s\n", a.BaseName())
	fmt.Printf("files:     %d\n", a.Len())

	var total int64
	it := a.IterAll()
	for {
		_, h, ok := it.Next()
		if !ok {
			break
		}
		if size, err := a.Size(h); err == nil {
			total += size
		}
	}
	fmt.Printf("size:      %s\n", internal.FormatBytesSI(total))

	if pk, ok := a.VPKInfo(); ok {
		fmt.Printf("version:   %d\n", pk.Version)
		if pk.HasOtherMD5 {
			fmt.Printf("archive md5 entries: %d\n", len(pk.ArchiveMD5))
			fmt.Printf("tree checksum:        %s\n", hex.EncodeToString(pk.TreeChecksum[:]))
			fmt.Printf("archive md5 checksum: %s\n", hex.EncodeToString(pk.ArchiveMD5Sum[:]))
			fmt.Printf("other checksum:       %s\n", hex.EncodeToString(pk.OtherMD5Unk[:]))
		}
		if len(pk.Signature) > 0 {
			fmt.Printf("pubkey:    %s\n", hex.EncodeToString(pk.PubKey))
			fmt.Printf("signature: %s\n", hex.EncodeToString(pk.Signature))
		} else {
			fmt.Printf("signature: (none)\n")
		}
	}
	return nil
}

func runFind(a *gamearchive.Archive) error {
	var missing bool
	for _, name := range *Find {
		_, err := a.Find(name)
		if err != nil {
			fmt.Printf("%s: absent\n", name)
			missing = true
			continue
		}
		fmt.Printf("%s: present\n", name)
	}
	if missing {
		return fmt.Errorf("one or more names not found")
	}
	return nil
}

func runList(a *gamearchive.Archive) error {
	rs, err := internal.NewRegexSet(*Pattern)
	if err != nil {
		return err
	}
	it := a.IterAll()
	for {
		e, h, ok := it.Next()
		if !ok {
			break
		}
		qn := e.QualifiedName()
		if !rs.MatchAny(qn) {
			continue
		}
		if excluded, err := globExcluded(qn); err != nil {
			return err
		} else if excluded {
			continue
		}
		if *Details {
			size, _ := a.Size(h)
			preload, _ := a.PreloadSize(h)
			idx, _ := a.ArchiveIndex(h)
			crc, _ := a.CRC32(h)
			fmt.Printf("%10d %6d %5d %08x  %s\n", size, preload, idx, crc, qn)
		} else {
			fmt.Println(qn)
		}
	}
	return nil
}

func runExtract(a *gamearchive.Archive) error {
	rs, err := internal.NewRegexSet(*Pattern)
	if err != nil {
		return err
	}
	outDir := *OutDir
	if outDir == "" {
		outDir = a.BaseName()
	}

	it := a.IterAll()
	for {
		e, h, ok := it.Next()
		if !ok {
			break
		}
		qn := e.QualifiedName()
		if !rs.MatchAny(qn) {
			continue
		}
		if excluded, err := globExcluded(qn); err != nil {
			return err
		} else if excluded {
			continue
		}
		data, err := a.Read(h)
		if err != nil {
			return fmt.Errorf("extract %q: %w", qn, err)
		}
		dest := filepath.Join(outDir, filepath.FromSlash(strings.TrimPrefix(qn, "/")))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("extract %q: %w", qn, err)
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return fmt.Errorf("extract %q: %w", qn, err)
		}
	}
	return nil
}
