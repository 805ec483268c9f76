package gamearchive

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/binarchive/gamearchive/layout"
)

func le32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }

func vpkDirEntryBytes(t *testing.T, e layout.VPKDirectoryEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, e); err != nil {
		t.Fatalf("encode directory entry: %v", err)
	}
	return buf.Bytes()
}

// TestVPK1MinimalRoundTrip covers scenario 1: an empty tree round-trips
// byte-for-byte.
func TestVPK1MinimalRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(le32(layout.VPKMagic))
	buf.Write(le32(1))
	buf.Write(le32(1)) // tree_size: one terminating NUL
	buf.WriteByte(0)   // empty extension terminates the tree

	dir := t.TempDir()
	path := filepath.Join(dir, "test_dir.vpk")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	a, err := ReadVPK(path)
	if err != nil {
		t.Fatalf("ReadVPK: %v", err)
	}
	defer a.Close()
	if a.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", a.Len())
	}

	if err := a.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(out, buf.Bytes()) {
		t.Errorf("round trip mismatch:\n got % x\nwant % x", out, buf.Bytes())
	}
}

// TestVPK1SingleInlineFile covers scenario 2.
func TestVPK1SingleInlineFile(t *testing.T) {
	var tree bytes.Buffer
	tree.WriteString("txt")
	tree.WriteByte(0)
	tree.WriteString(layout.VPKRootDirectory)
	tree.WriteByte(0)
	tree.WriteString("readme")
	tree.WriteByte(0)
	tree.Write(vpkDirEntryBytes(t, layout.VPKDirectoryEntry{
		CRC:          0xDEADBEEF,
		PreloadBytes: 5,
		ArchiveIndex: layout.VPKArchiveIndexDir,
		EntryOffset:  0,
		EntryLength:  0,
		Terminator:   layout.VPKEntryTerminator,
	}))
	tree.WriteString("hello")
	tree.WriteByte(0) // end of filenames under this dir
	tree.WriteByte(0) // end of dirs under this extension
	tree.WriteByte(0) // end of extensions

	var full bytes.Buffer
	full.Write(le32(layout.VPKMagic))
	full.Write(le32(1))
	full.Write(le32(uint32(tree.Len())))
	full.Write(tree.Bytes())

	dir := t.TempDir()
	path := filepath.Join(dir, "test_dir.vpk")
	if err := os.WriteFile(path, full.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	a, err := ReadVPK(path)
	if err != nil {
		t.Fatalf("ReadVPK: %v", err)
	}
	defer a.Close()
	if a.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", a.Len())
	}

	h, err := a.Find("readme.txt")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	size, err := a.Size(h)
	if err != nil || size != 5 {
		t.Fatalf("Size() = %d, %v, want 5, nil", size, err)
	}
	data, err := a.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Read() = %q, want %q", data, "hello")
	}
	crc, err := a.CRC32(h)
	if err != nil || crc != 0xDEADBEEF {
		t.Errorf("CRC32() = %#x, %v, want 0xdeadbeef, nil", crc, err)
	}

	if err := a.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(out, full.Bytes()) {
		t.Errorf("round trip mismatch:\n got % x\nwant % x", out, full.Bytes())
	}
}

// TestVPK2SplitArchive covers scenario 3, including the handle pool
// invariant.
func TestVPK2SplitArchive(t *testing.T) {
	var tree bytes.Buffer
	tree.WriteString("bin")
	tree.WriteByte(0)
	tree.WriteString("a")
	tree.WriteByte(0)
	tree.WriteString("b")
	tree.WriteByte(0)
	tree.Write(vpkDirEntryBytes(t, layout.VPKDirectoryEntry{
		CRC:          0,
		PreloadBytes: 0,
		ArchiveIndex: 0,
		EntryOffset:  0,
		EntryLength:  4,
		Terminator:   layout.VPKEntryTerminator,
	}))
	tree.WriteByte(0)
	tree.WriteByte(0)
	tree.WriteByte(0)

	var full bytes.Buffer
	full.Write(le32(layout.VPKMagic))
	full.Write(le32(2))
	full.Write(le32(uint32(tree.Len())))
	full.Write(le32(0)) // FileDataSectionSize
	full.Write(le32(0)) // ArchiveMD5SectionSize
	full.Write(le32(0)) // OtherMD5SectionSize
	full.Write(le32(0)) // SignatureSectionSize
	full.Write(tree.Bytes())
	full.Write(make([]byte, 48)) // fixed OtherMD5Section

	dir := t.TempDir()
	dirPath := filepath.Join(dir, "foo_dir.vpk")
	if err := os.WriteFile(dirPath, full.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	siblingPath := filepath.Join(dir, "foo_000.vpk")
	if err := os.WriteFile(siblingPath, []byte{0x01, 0x02, 0x03, 0x04}, 0o644); err != nil {
		t.Fatalf("write sibling fixture: %v", err)
	}

	a, err := ReadVPK(dirPath)
	if err != nil {
		t.Fatalf("ReadVPK: %v", err)
	}
	defer a.Close()

	h, err := a.Find("a/b.bin")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	data, err := a.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(data, []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("Read() = % x, want 01 02 03 04", data)
	}
	if n := a.pool.openHandleCount(); n != 1 {
		t.Errorf("openHandleCount() = %d, want 1", n)
	}
}

// TestVPK1AddAndWrite covers scenario 6.
func TestVPK1AddAndWrite(t *testing.T) {
	var tree bytes.Buffer
	tree.WriteString("txt")
	tree.WriteByte(0)
	tree.WriteString(layout.VPKRootDirectory)
	tree.WriteByte(0)
	tree.WriteString("first")
	tree.WriteByte(0)
	tree.Write(vpkDirEntryBytes(t, layout.VPKDirectoryEntry{
		CRC:          0x1,
		PreloadBytes: 3,
		ArchiveIndex: layout.VPKArchiveIndexDir,
		EntryOffset:  0,
		EntryLength:  0,
		Terminator:   layout.VPKEntryTerminator,
	}))
	tree.WriteString("abc")
	tree.WriteByte(0)
	tree.WriteByte(0)
	tree.WriteByte(0)

	var full bytes.Buffer
	full.Write(le32(layout.VPKMagic))
	full.Write(le32(1))
	full.Write(le32(uint32(tree.Len())))
	full.Write(tree.Bytes())

	dir := t.TempDir()
	path := filepath.Join(dir, "test_dir.vpk")
	if err := os.WriteFile(path, full.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	a, err := ReadVPK(path)
	if err != nil {
		t.Fatalf("ReadVPK: %v", err)
	}
	defer a.Close()

	payload := bytes.Repeat([]byte{0x42}, 1024)
	srcPath := filepath.Join(dir, "second.txt")
	if err := os.WriteFile(srcPath, payload, 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	a.SetVPKBudget(2048, 0)
	if err := a.AddFile("second.txt", srcPath); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if err := a.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	a.Close()

	reloaded, err := ReadVPK(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	defer reloaded.Close()
	if reloaded.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reloaded.Len())
	}

	h1, err := reloaded.Find("first.txt")
	if err != nil {
		t.Fatalf("Find(first.txt): %v", err)
	}
	d1, err := reloaded.Read(h1)
	if err != nil || string(d1) != "abc" {
		t.Errorf("Read(first.txt) = %q, %v, want %q, nil", d1, err, "abc")
	}

	h2, err := reloaded.Find("second.txt")
	if err != nil {
		t.Fatalf("Find(second.txt): %v", err)
	}
	preload, err := reloaded.PreloadSize(h2)
	if err != nil || preload != 1024 {
		t.Errorf("PreloadSize(second.txt) = %d, %v, want 1024, nil", preload, err)
	}
	idx, err := reloaded.ArchiveIndex(h2)
	if err != nil || idx != 0 {
		t.Errorf("ArchiveIndex(second.txt) = %d, %v, want 0", idx, err)
	}
	d2, err := reloaded.Read(h2)
	if err != nil || !bytes.Equal(d2, payload) {
		t.Errorf("Read(second.txt) mismatch, err=%v", err)
	}
}
