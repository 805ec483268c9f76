package gamearchive

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/binarchive/gamearchive/layout"
)

func writePAKDirEntry(buf *bytes.Buffer, name string, offset, size uint32) {
	nameBuf := make([]byte, 56)
	copy(nameBuf, name)
	buf.Write(nameBuf)
	binary.Write(buf, binary.LittleEndian, offset)
	binary.Write(buf, binary.LittleEndian, size)
}

// TestPAKLookup covers scenario 5.
func TestPAKLookup(t *testing.T) {
	bspData := bytes.Repeat([]byte{0xAA}, 10)
	wavData := bytes.Repeat([]byte{0xBB}, 20)

	var body bytes.Buffer
	body.Write(bspData)
	body.Write(wavData)

	// The directory (two 64-byte records) follows the header at offset 12;
	// file data starts right after it, at 12+128.
	var dirBuf bytes.Buffer
	writePAKDirEntry(&dirBuf, "maps/demo.bsp", 12+128, uint32(len(bspData)))
	writePAKDirEntry(&dirBuf, "sound/boom.wav", 12+128+uint32(len(bspData)), uint32(len(wavData)))

	var full bytes.Buffer
	full.Write(layout.PAKMagic[:])
	binary.Write(&full, binary.LittleEndian, uint32(12))
	binary.Write(&full, binary.LittleEndian, uint32(dirBuf.Len()))
	full.Write(dirBuf.Bytes())
	full.Write(body.Bytes())

	dir := t.TempDir()
	path := filepath.Join(dir, "test.pak")
	if err := os.WriteFile(path, full.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	a, err := ReadPAK(path)
	if err != nil {
		t.Fatalf("ReadPAK: %v", err)
	}
	defer a.Close()
	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}

	h, err := a.Find("maps/demo.bsp")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	e, err := a.Entry(h)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if e.Directory() != "maps" {
		t.Errorf("Directory() = %q, want %q", e.Directory(), "maps")
	}
	if e.Extension() != ".bsp" {
		t.Errorf("Extension() = %q, want %q", e.Extension(), ".bsp")
	}
	size, err := a.Size(h)
	if err != nil || size != int64(len(bspData)) {
		t.Errorf("Size() = %d, %v, want %d, nil", size, err, len(bspData))
	}
	data, err := a.Read(h)
	if err != nil || !bytes.Equal(data, bspData) {
		t.Errorf("Read() mismatch, err=%v", err)
	}
}

// TestPAKDirSizeFloorDivision covers the boundary behavior of a dir_size
// that is not a multiple of the 64-byte record size.
func TestPAKDirSizeFloorDivision(t *testing.T) {
	var dirBuf bytes.Buffer
	writePAKDirEntry(&dirBuf, "a.txt", 12, 3)
	dirBuf.WriteByte(0) // one extra trailing byte, not a full record

	var full bytes.Buffer
	full.Write(layout.PAKMagic[:])
	binary.Write(&full, binary.LittleEndian, uint32(12))
	binary.Write(&full, binary.LittleEndian, uint32(dirBuf.Len()))
	full.Write([]byte("abc"))
	full.Write(dirBuf.Bytes())

	dir := t.TempDir()
	path := filepath.Join(dir, "trunc.pak")
	if err := os.WriteFile(path, full.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	a, err := ReadPAK(path)
	if err != nil {
		t.Fatalf("ReadPAK: %v", err)
	}
	defer a.Close()
	if a.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (floor division of dir_size)", a.Len())
	}
}
