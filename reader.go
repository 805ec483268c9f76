package gamearchive

import (
	"fmt"
	"os"
	"strings"

	"github.com/binarchive/gamearchive/layout"
)

// Find looks up an entry by its fully qualified name (spec §4.8).
func (a *Archive) Find(name string) (Handle, error) {
	idx, ok := a.byName[name]
	if !ok {
		return 0, fmt.Errorf("find %q: %w", name, ErrEntryNotFound)
	}
	return Handle(idx), nil
}

// Entry returns the FileEntry behind a Handle.
func (a *Archive) Entry(h Handle) (*FileEntry, error) {
	if int(h) < 0 || int(h) >= len(a.entries) {
		return nil, fmt.Errorf("handle %d: %w", h, ErrEntryNotFound)
	}
	return a.entries[h], nil
}

// Size returns preload_size + entry_length for VPK, or size for WAD/PAK
// (spec §8 invariant 2).
func (a *Archive) Size(h Handle) (int64, error) {
	e, err := a.Entry(h)
	if err != nil {
		return 0, err
	}
	return e.size, nil
}

// PreloadSize returns the number of inline preload bytes for a VPK entry,
// or 0 for WAD/PAK.
func (a *Archive) PreloadSize(h Handle) (int, error) {
	e, err := a.Entry(h)
	if err != nil {
		return 0, err
	}
	if e.vpk == nil {
		return 0, nil
	}
	return int(e.vpk.preloadSize), nil
}

// ReadPreload returns a copy of an entry's inline preload bytes (empty for
// non-VPK entries or entries with no preload).
func (a *Archive) ReadPreload(h Handle) ([]byte, error) {
	e, err := a.Entry(h)
	if err != nil {
		return nil, err
	}
	if e.vpk == nil || len(e.vpk.preloadBytes) == 0 {
		return nil, nil
	}
	out := make([]byte, len(e.vpk.preloadBytes))
	copy(out, e.vpk.preloadBytes)
	return out, nil
}

// CRC32 returns the entry's stored CRC32 (VPK only; 0 otherwise). The
// library never recomputes or verifies this value (spec §1, §4.8).
func (a *Archive) CRC32(h Handle) (uint32, error) {
	e, err := a.Entry(h)
	if err != nil {
		return 0, err
	}
	if e.vpk == nil {
		return 0, nil
	}
	return e.vpk.crc32, nil
}

// ArchiveIndex returns the entry's VPK archive_index (VPK only; 0 for
// others).
func (a *Archive) ArchiveIndex(h Handle) (uint16, error) {
	e, err := a.Entry(h)
	if err != nil {
		return 0, err
	}
	if e.vpk == nil {
		return 0, nil
	}
	return e.vpk.archiveIndex, nil
}

// Read returns the full content of an entry: preload bytes concatenated
// with archive data for VPK, or the plain lump/record bytes for WAD/PAK
// (spec §8 invariants 3, 4). The caller receives a freshly allocated copy.
func (a *Archive) Read(h Handle) ([]byte, error) {
	e, err := a.Entry(h)
	if err != nil {
		return nil, err
	}
	switch {
	case e.vpk != nil:
		return a.readVPKEntry(e)
	case e.wad != nil:
		return a.readWADEntry(e)
	case e.pak != nil:
		return a.readPAKEntry(e)
	default:
		return nil, fmt.Errorf("entry has no payload: %w", ErrMalformedArchive)
	}
}

func (a *Archive) readVPKEntry(e *FileEntry) ([]byte, error) {
	p := e.vpk
	if e.dirty && !e.onDisk && p.sourcePath != "" {
		return os.ReadFile(p.sourcePath)
	}

	out := make([]byte, 0, e.size)
	out = append(out, p.preloadBytes...)

	if p.entryLength == 0 {
		return out, nil
	}

	var (
		f   *os.File
		off int64
		err error
	)
	if p.archiveIndex == layout.VPKArchiveIndexDir {
		f, err = a.pool.get(layout.VPKArchiveIndexDir)
		off = int64(a.vpkDataStart) + int64(p.entryOffset)
	} else {
		f, err = a.pool.get(p.archiveIndex)
		off = int64(p.entryOffset)
	}
	if err != nil {
		return nil, err
	}

	buf := make([]byte, p.entryLength)
	if _, err := f.ReadAt(buf, off); err != nil {
		return nil, fmt.Errorf("read entry data: %w", ErrTruncated)
	}
	return append(out, buf...), nil
}

func (a *Archive) readWADEntry(e *FileEntry) ([]byte, error) {
	p := e.wad
	if e.dirty && !e.onDisk {
		if p.inMemory {
			out := make([]byte, len(p.data))
			copy(out, p.data)
			return out, nil
		}
		return os.ReadFile(p.sourcePath)
	}
	f, err := a.singleHandle()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, p.lumpSize)
	if _, err := f.ReadAt(buf, int64(p.lumpOffset)); err != nil {
		return nil, fmt.Errorf("read lump data: %w", ErrTruncated)
	}
	return buf, nil
}

func (a *Archive) readPAKEntry(e *FileEntry) ([]byte, error) {
	p := e.pak
	if e.dirty && !e.onDisk {
		if p.data != nil {
			out := make([]byte, len(p.data))
			copy(out, p.data)
			return out, nil
		}
		return os.ReadFile(p.sourcePath)
	}
	f, err := a.singleHandle()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, e.size)
	if _, err := f.ReadAt(buf, e.offset); err != nil {
		return nil, fmt.Errorf("read pak entry data: %w", ErrTruncated)
	}
	return buf, nil
}

// Iterator is a single-pass, finite sequence over an Archive's entries.
type Iterator struct {
	entries []*FileEntry
	start   int
	pos     int
}

// Next advances the iterator, returning false once exhausted.
func (it *Iterator) Next() (*FileEntry, Handle, bool) {
	if it.pos >= len(it.entries) {
		return nil, 0, false
	}
	e := it.entries[it.pos]
	h := Handle(it.start + it.pos)
	it.pos++
	return e, h, true
}

// IterAll returns a fresh, restartable iterator over every entry in load/
// insertion order.
func (a *Archive) IterAll() *Iterator {
	return &Iterator{entries: a.entries, start: 0}
}

// IterInDirectory returns an iterator over the contiguous run of entries
// whose fully qualified name begins with prefix. Because VPK's on-disk
// tree groups entries by extension-then-directory (not by directory
// alone), a directory's files are not always contiguous across
// extensions; per spec §4.8 this returns only the first matching run, not
// every match in the archive.
func (a *Archive) IterInDirectory(prefix string) *Iterator {
	var start, end int
	found := false
	for i, e := range a.entries {
		qn := e.QualifiedName()
		match := qn == prefix || strings.HasPrefix(qn, prefix+"/")
		if match && !found {
			start, found = i, true
		}
		if found {
			if !match {
				break
			}
			end = i + 1
		}
	}
	if !found {
		return &Iterator{entries: nil, start: 0}
	}
	return &Iterator{entries: a.entries[start:end], start: start}
}
