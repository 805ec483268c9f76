package gamearchive

import (
	"fmt"
	"os"
	"strings"

	"github.com/binarchive/gamearchive/bytereader"
	"github.com/binarchive/gamearchive/layout"
)

const pakDirectoryEntrySize = 56 + 4 + 4

// ReadPAK loads a Quake-era PACK archive from path (spec §4.6).
func ReadPAK(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %q: %w", path, ErrFileNotFound)
		}
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return readPAKBytes(path, data)
}

func readPAKBytes(path string, data []byte) (*Archive, error) {
	br := bytereader.New(data)

	var hdr layout.PAKHeader
	if err := br.ReadInto(&hdr); err != nil {
		return nil, fmt.Errorf("read pak header: %w", err)
	}
	if hdr.Magic != layout.PAKMagic {
		return nil, fmt.Errorf("read pak header: %w", ErrInvalidSignature)
	}

	// A dir_size that is not a multiple of the 64-byte record size
	// truncates to floor division (spec §8 boundary behavior). dir_offset
	// is not seeked to: directory records are read sequentially from
	// wherever the cursor sits right after the header, matching the
	// original reader.
	count := int(hdr.DirSize) / pakDirectoryEntrySize

	a := &Archive{
		baseName:   path,
		format:     FormatPAK,
		byName:     map[string]int{},
		singlePath: path,
	}

	for i := 0; i < count; i++ {
		var rec layout.PAKDirectoryEntry
		if err := br.ReadInto(&rec); err != nil {
			return nil, fmt.Errorf("read pak directory record %d: %w", i, err)
		}
		nameBuf := make([]byte, 57)
		copy(nameBuf, rec.Name[:])
		name := cstring(nameBuf)
		dir, ext := splitPAKPath(name)

		e := &FileEntry{
			name:      name,
			directory: dir,
			extension: ext,
			size:      int64(rec.Size),
			offset:    int64(rec.Offset),
			onDisk:    true,
			pak:       &pakPayload{},
		}
		if err := a.indexEntry(e); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// splitPAKPath derives a PAK entry's directory (substring up to the last
// "/") and extension (substring from the last "." onward, with the leading
// dot kept) from its full stored path (spec §4.6).
func splitPAKPath(path string) (dir, ext string) {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		dir = path[:i]
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		ext = path[i:]
	}
	return
}
