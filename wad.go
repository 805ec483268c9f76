package gamearchive

import (
	"fmt"
	"os"

	"github.com/binarchive/gamearchive/bytereader"
	"github.com/binarchive/gamearchive/layout"
)

// ReadWAD loads a DOOM-style IWAD/PWAD archive from path (spec §4.5).
func ReadWAD(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %q: %w", path, ErrFileNotFound)
		}
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return readWADBytes(path, data)
}

func readWADBytes(path string, data []byte) (*Archive, error) {
	br := bytereader.New(data)

	var hdr layout.WADHeader
	if err := br.ReadInto(&hdr); err != nil {
		return nil, fmt.Errorf("read wad header: %w", err)
	}
	sig := string(hdr.Signature[:])
	if sig != layout.WADSignatureIWAD && sig != layout.WADSignaturePWAD {
		return nil, fmt.Errorf("read wad header: %w", ErrInvalidSignature)
	}
	if hdr.Entries < 0 || hdr.DirOffset < 0 {
		return nil, fmt.Errorf("read wad header: negative entry count or directory offset: %w", ErrMalformedArchive)
	}

	if err := br.Seek(int(hdr.DirOffset)); err != nil {
		return nil, fmt.Errorf("seek to lump directory: %w", err)
	}

	a := &Archive{
		baseName:   path,
		format:     FormatWAD,
		byName:     map[string]int{},
		wadKind:    sig,
		singlePath: path,
	}

	for i := 0; i < int(hdr.Entries); i++ {
		var rec layout.WADDirectoryEntry
		if err := br.ReadInto(&rec); err != nil {
			return nil, fmt.Errorf("read lump directory record %d: %w", i, err)
		}
		// Force termination even for a malformed, unterminated 8-byte name
		// by copying into a 9-byte buffer (spec §4.5).
		nameBuf := make([]byte, 9)
		copy(nameBuf, rec.Name[:])
		name := cstring(nameBuf)

		e := &FileEntry{
			name:   name,
			size:   int64(rec.Size),
			offset: int64(rec.Offset),
			onDisk: true,
			wad: &wadPayload{
				lumpOffset: rec.Offset,
				lumpSize:   rec.Size,
			},
		}
		if err := a.indexEntry(e); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// cstring returns the portion of b before its first NUL byte.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
