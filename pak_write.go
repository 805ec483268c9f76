package gamearchive

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/binarchive/gamearchive/layout"
)

// writePAK serializes a PAK archive symmetrically to writeWAD: fixed
// header with a placeholder dir_offset, entry data streamed first, then the
// 64-byte directory records, then the header patched (spec §4.10's PAK
// writer note — the original leaves this path unimplemented).
func (a *Archive) writePAK() error {
	path := a.singlePath
	if path == "" {
		return fmt.Errorf("write: %w: no backing path set", ErrWriteFailed)
	}
	out, err := os.Create(path + ".tmp")
	if err != nil {
		return fmt.Errorf("create %q: %w: %v", path, ErrWriteFailed, err)
	}
	w := bufio.NewWriter(out)

	hdr := layout.PAKHeader{Magic: layout.PAKMagic}
	if err := binaryWrite(w, hdr); err != nil {
		return a.abortWADWrite(out, path, err)
	}

	var offset int64 = 12
	for _, e := range a.entries {
		data, err := a.pakEntryBytes(e)
		if err != nil {
			return a.abortWADWrite(out, path, err)
		}
		if _, err := w.Write(data); err != nil {
			return a.abortWADWrite(out, path, err)
		}
		e.offset = offset
		e.size = int64(len(data))
		offset += int64(len(data))
	}

	dirOffset := offset
	for _, e := range a.entries {
		var rec layout.PAKDirectoryEntry
		copy(rec.Name[:], e.name)
		rec.Offset = uint32(e.offset)
		rec.Size = uint32(e.size)
		if err := binaryWrite(w, rec); err != nil {
			return a.abortWADWrite(out, path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return a.abortWADWrite(out, path, err)
	}
	if err := patchPAKHeader(out, uint32(dirOffset), uint32(len(a.entries))*pakDirectoryEntrySize); err != nil {
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

func (a *Archive) pakEntryBytes(e *FileEntry) ([]byte, error) {
	p := e.pak
	if e.dirty && !e.onDisk {
		if p.data != nil {
			return p.data, nil
		}
		return os.ReadFile(p.sourcePath)
	}
	return a.readPAKEntry(e)
}

func patchPAKHeader(f *os.File, dirOffset, dirSize uint32) error {
	if _, err := f.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if err := binaryWrite(f, dirOffset); err != nil {
		return err
	}
	if err := binaryWrite(f, dirSize); err != nil {
		return err
	}
	_, err := f.Seek(0, io.SeekEnd)
	return err
}
