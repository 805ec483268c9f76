package gamearchive

import (
	"fmt"
	"os"
	"strings"

	"github.com/binarchive/gamearchive/layout"
)

// Format identifies which of the four supported archive formats an Archive
// holds.
type Format int

// Supported archive formats.
const (
	FormatVPK1 Format = iota
	FormatVPK2
	FormatWAD
	FormatPAK
)

// String returns a short human-readable format name, used by the CLI's
// --info mode.
func (f Format) String() string {
	switch f {
	case FormatVPK1:
		return "VPK1"
	case FormatVPK2:
		return "VPK2"
	case FormatWAD:
		return "WAD"
	case FormatPAK:
		return "PAK"
	default:
		return "unknown"
	}
}

// Archive is the polymorphic in-memory model of one on-disk archive: an
// ordered sequence of file entries plus whatever format-specific side
// tables that format needs (spec §3).
type Archive struct {
	baseName string
	format   Format
	entries  []*FileEntry
	byName   map[string]int

	// VPK side tables (nil/zero for non-VPK archives).
	vpkVersion         uint32
	vpkMaxArchiveIndex uint16
	vpkHasArchiveIndex bool
	vpkArchiveMD5      []layout.VPKArchiveMD5Entry
	vpkOtherMD5        *layout.VPKOtherMD5Section
	vpkPubKey          []byte
	vpkSignature       []byte
	vpkDataStart       int
	pool               *handlePool

	// vpkConfiguredMaxPreload/vpkConfiguredSizeBudget override the write
	// path's defaults when set via SetVPKBudget (0 means "use default").
	vpkConfiguredMaxPreload int64
	vpkConfiguredSizeBudget int64

	// WAD side table.
	wadKind string // "IWAD" or "PWAD"

	// singleFile is the lazily opened on-disk handle shared by WAD and
	// PAK reads (formats without a sibling-archive pool).
	singlePath string
	singleFile *os.File
}

// singleHandle returns the lazily opened handle to the archive's own file,
// used by WAD and PAK reads.
func (a *Archive) singleHandle() (*os.File, error) {
	if a.singleFile != nil {
		return a.singleFile, nil
	}
	if a.singlePath == "" {
		return nil, fmt.Errorf("archive has no backing file: %w", ErrSiblingMissing)
	}
	f, err := os.Open(a.singlePath)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", a.singlePath, ErrSiblingMissing)
	}
	a.singleFile = f
	return f, nil
}

// BaseName returns the archive's base name: the path with the "_dir.vpk"
// suffix stripped for VPK (or the ".vpk" suffix for a standalone VPK), or
// the on-disk path otherwise.
func (a *Archive) BaseName() string { return a.baseName }

// Format returns the archive's format tag.
func (a *Archive) Format() Format { return a.format }

// Len returns the number of entries currently in the archive.
func (a *Archive) Len() int { return len(a.entries) }

// VPKMetadata summarizes the archive-level fields the CLI's --info mode
// prints for a VPK archive.
type VPKMetadata struct {
	Version       uint32
	ArchiveMD5    []layout.VPKArchiveMD5Entry
	HasOtherMD5   bool
	TreeChecksum  [16]byte
	ArchiveMD5Sum [16]byte
	OtherMD5Unk   [16]byte
	PubKey        []byte
	Signature     []byte
}

// VPKInfo returns the archive's VPK-specific metadata, including the VPK2
// ArchiveMD5 entries and OtherMD5 checksums (populated only for VPK2). ok is
// false for non-VPK archives.
func (a *Archive) VPKInfo() (VPKMetadata, bool) {
	if a.format != FormatVPK1 && a.format != FormatVPK2 {
		return VPKMetadata{}, false
	}
	m := VPKMetadata{
		Version:    a.vpkVersion,
		ArchiveMD5: a.vpkArchiveMD5,
		PubKey:     a.vpkPubKey,
		Signature:  a.vpkSignature,
	}
	if a.vpkOtherMD5 != nil {
		m.HasOtherMD5 = true
		m.TreeChecksum = a.vpkOtherMD5.TreeChecksum
		m.ArchiveMD5Sum = a.vpkOtherMD5.ArchiveMD5SectionChecksum
		m.OtherMD5Unk = a.vpkOtherMD5.Unknown
	}
	return m, true
}

// NewEmpty creates a new, empty archive of the given format ready to accept
// added files and be written out. baseName is used the same way as for an
// archive loaded from disk (spec §3).
func NewEmpty(format Format, baseName string) *Archive {
	a := &Archive{
		baseName: baseName,
		format:   format,
		byName:   map[string]int{},
	}
	if format == FormatVPK1 || format == FormatVPK2 {
		if format == FormatVPK1 {
			a.vpkVersion = 1
		} else {
			a.vpkVersion = 2
		}
		a.pool = newHandlePool(a.baseName, 0)
	}
	if format == FormatWAD {
		a.wadKind = layout.WADSignaturePWAD
		a.singlePath = baseName
	}
	if format == FormatPAK {
		a.singlePath = baseName
	}
	return a
}

// ReadFromDisk loads an archive from path, dispatching to the correct
// format-specific parser based on the file's leading magic bytes.
//
// WAD archives are recognized by an "IWAD"/"PWAD" signature and PAK
// archives by the "PACK" magic. Every other file is handed to the VPK
// parser, which rejects it unless it starts with the uint32 magic
// 0x55AA1234. Since VPK is the only format whose path
// encodes split-archive semantics ("_dir.vpk" suffix), callers that already
// know the format should prefer ReadVPK/ReadWAD/ReadPAK directly.
func ReadFromDisk(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %q: %w", path, ErrFileNotFound)
		}
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	switch {
	case len(data) >= 4 && string(data[:4]) == layout.WADSignatureIWAD || len(data) >= 4 && string(data[:4]) == layout.WADSignaturePWAD:
		return readWADBytes(path, data)
	case len(data) >= 4 && data[0] == layout.PAKMagic[0] && data[1] == layout.PAKMagic[1] && data[2] == layout.PAKMagic[2] && data[3] == layout.PAKMagic[3]:
		return readPAKBytes(path, data)
	default:
		return readVPKFromDisk(path, data)
	}
}

// Write serializes the archive back to disk in its own format: the VPK1/
// VPK2 tree-rebuild writer (spec §4.9), or the WAD/PAK header-then-data-
// then-directory writer (spec §4.10). It is a safe overwrite: content is
// staged to a sibling ".tmp" file and only renamed over the original once
// fully written.
func (a *Archive) Write() error {
	switch a.format {
	case FormatVPK1, FormatVPK2:
		return a.writeVPKDefault()
	case FormatWAD:
		return a.writeWAD()
	case FormatPAK:
		return a.writePAK()
	default:
		return fmt.Errorf("write: %w: unknown format", ErrMalformedArchive)
	}
}

// Close releases the archive's open file handles: the VPK handle pool, if
// any, and the WAD/PAK archive file handle.
func (a *Archive) Close() error {
	var err error
	if a.pool != nil {
		err = a.pool.closeAll()
	}
	if a.singleFile != nil {
		if cerr := a.singleFile.Close(); err == nil {
			err = cerr
		}
		a.singleFile = nil
	}
	return err
}

// indexEntry appends e to the archive's entry list and indexes its
// qualified name, enforcing invariant 1 (no duplicate fully qualified
// names).
func (a *Archive) indexEntry(e *FileEntry) error {
	qn := e.QualifiedName()
	if _, exists := a.byName[qn]; exists {
		return fmt.Errorf("add entry %q: %w: duplicate name", qn, ErrMalformedArchive)
	}
	a.byName[qn] = len(a.entries)
	a.entries = append(a.entries, e)
	return nil
}

// Remove deletes the entry with the given fully qualified name from the
// archive. It returns ErrEntryNotFound if no such entry exists.
func (a *Archive) Remove(name string) error {
	idx, ok := a.byName[name]
	if !ok {
		return fmt.Errorf("remove %q: %w", name, ErrEntryNotFound)
	}
	a.entries = append(a.entries[:idx], a.entries[idx+1:]...)
	delete(a.byName, name)
	for qn, i := range a.byName {
		if i > idx {
			a.byName[qn] = i - 1
		}
	}
	return nil
}

// RemovePrefix deletes every entry whose fully qualified name equals prefix
// or begins with prefix+"/", returning the number of entries removed.
func (a *Archive) RemovePrefix(prefix string) int {
	var removed int
	kept := a.entries[:0]
	for _, e := range a.entries {
		qn := e.QualifiedName()
		if qn == prefix || strings.HasPrefix(qn, prefix+"/") {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	a.entries = kept
	a.byName = map[string]int{}
	for i, e := range a.entries {
		a.byName[e.QualifiedName()] = i
	}
	return removed
}
