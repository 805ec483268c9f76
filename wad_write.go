package gamearchive

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/binarchive/gamearchive/layout"
)

// AddBytes stages an in-memory buffer to be added to a WAD or PAK archive
// under the given lump/entry name. Unlike AddFile, the data is held in
// memory until Write, matching the small, fixed-size records these two
// legacy formats favor.
func (a *Archive) AddBytes(name string, data []byte) error {
	switch a.format {
	case FormatWAD:
		buf := make([]byte, len(data))
		copy(buf, data)
		e := &FileEntry{
			name:   name,
			size:   int64(len(buf)),
			dirty:  true,
			onDisk: false,
			wad: &wadPayload{
				inMemory: true,
				data:     buf,
			},
		}
		return a.indexEntry(e)
	case FormatPAK:
		dir, ext := splitPAKPath(name)
		buf := make([]byte, len(data))
		copy(buf, data)
		e := &FileEntry{
			name:      name,
			directory: dir,
			extension: ext,
			size:      int64(len(buf)),
			dirty:     true,
			onDisk:    false,
			pak: &pakPayload{
				data: buf,
			},
		}
		return a.indexEntry(e)
	default:
		return fmt.Errorf("add bytes: %w: not a wad or pak archive", ErrMalformedArchive)
	}
}

// writeWAD serializes a WAD archive to its backing path (spec §4.10). Every
// entry's data is copied into the output in entry order, right after the
// header: dirty entries (added since load, never on disk) from their
// in-memory buffer or source file, loaded entries from the original file.
// The lump directory follows the data.
func (a *Archive) writeWAD() error {
	path := a.singlePath
	if path == "" {
		return fmt.Errorf("write: %w: no backing path set", ErrWriteFailed)
	}
	out, err := os.Create(path + ".tmp")
	if err != nil {
		return fmt.Errorf("create %q: %w: %v", path, ErrWriteFailed, err)
	}
	w := bufio.NewWriter(out)

	sig := a.wadKind
	if sig == "" {
		sig = layout.WADSignaturePWAD
	}
	hdr := layout.WADHeader{Entries: int32(len(a.entries))}
	copy(hdr.Signature[:], sig)
	if err := binaryWrite(w, hdr); err != nil {
		return a.abortWADWrite(out, path, err)
	}

	var offset int64 = 12
	for _, e := range a.entries {
		data, err := a.wadEntryBytes(e)
		if err != nil {
			return a.abortWADWrite(out, path, err)
		}
		if _, err := w.Write(data); err != nil {
			return a.abortWADWrite(out, path, err)
		}
		e.wad.lumpOffset = int32(offset)
		e.wad.lumpSize = int32(len(data))
		e.offset = offset
		e.size = int64(len(data))
		offset += int64(len(data))
	}

	dirOffset := offset
	for _, e := range a.entries {
		var rec layout.WADDirectoryEntry
		rec.Offset = e.wad.lumpOffset
		rec.Size = e.wad.lumpSize
		copy(rec.Name[:], e.name)
		if err := binaryWrite(w, rec); err != nil {
			return a.abortWADWrite(out, path, err)
		}
	}

	if err := w.Flush(); err != nil {
		return a.abortWADWrite(out, path, err)
	}
	if err := patchWADHeader(out, int32(dirOffset)); err != nil {
		return a.abortWADWrite(out, path, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path + ".tmp")
		return fmt.Errorf("close %q: %w", path, ErrWriteFailed)
	}
	if err := os.Rename(path+".tmp", path); err != nil {
		return fmt.Errorf("rename %q: %w", path, ErrWriteFailed)
	}

	if a.singleFile != nil {
		a.singleFile.Close()
		a.singleFile = nil
	}
	for _, e := range a.entries {
		e.onDisk = true
		e.dirty = false
	}
	return nil
}

func (a *Archive) wadEntryBytes(e *FileEntry) ([]byte, error) {
	p := e.wad
	if e.dirty && !e.onDisk {
		if p.inMemory {
			return p.data, nil
		}
		return os.ReadFile(p.sourcePath)
	}
	return a.readWADEntry(e)
}

func (a *Archive) abortWADWrite(f *os.File, path string, cause error) error {
	f.Close()
	os.Remove(path + ".tmp")
	return fmt.Errorf("write %q: %w: %v", path, ErrWriteFailed, cause)
}

func patchWADHeader(f *os.File, dirOffset int32) error {
	if _, err := f.Seek(8, io.SeekStart); err != nil {
		return err
	}
	if err := binaryWrite(f, dirOffset); err != nil {
		return err
	}
	_, err := f.Seek(0, io.SeekEnd)
	return err
}
