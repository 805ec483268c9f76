package gamearchive

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/binarchive/gamearchive/layout"
)

func TestReadVPKTruncatedHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "short_dir.vpk")
	if err := os.WriteFile(path, []byte{0x34, 0x12, 0xAA}, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	_, err := ReadVPK(path)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("ReadVPK error = %v, want ErrTruncated", err)
	}
}

func TestReadVPKUnsupportedVersion(t *testing.T) {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, layout.VPKMagic)
	buf = binary.LittleEndian.AppendUint32(buf, 3)
	buf = binary.LittleEndian.AppendUint32(buf, 0)

	dir := t.TempDir()
	path := filepath.Join(dir, "v3_dir.vpk")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	_, err := ReadVPK(path)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("ReadVPK error = %v, want ErrInvalidSignature", err)
	}
}

func TestArchiveRemoveAndRemovePrefix(t *testing.T) {
	a := NewEmpty(FormatVPK1, filepath.Join(t.TempDir(), "test"))
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("indexEntry: %v", err)
		}
	}
	must(a.indexEntry(&FileEntry{name: "a", extension: "txt", vpk: &vpkPayload{}}))
	must(a.indexEntry(&FileEntry{name: "b", directory: "models", extension: "mdl", vpk: &vpkPayload{}}))
	must(a.indexEntry(&FileEntry{name: "c", directory: "models", extension: "mdl", vpk: &vpkPayload{}}))
	must(a.indexEntry(&FileEntry{name: "d", directory: "models/props", extension: "mdl", vpk: &vpkPayload{}}))

	if err := a.Remove("a.txt"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if a.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", a.Len())
	}
	if _, err := a.Find("a.txt"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("Find(a.txt) error = %v, want ErrEntryNotFound", err)
	}

	n := a.RemovePrefix("models")
	if n != 3 {
		t.Fatalf("RemovePrefix() = %d, want 3", n)
	}
	if a.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", a.Len())
	}
}

func TestFindConsistentWithIterAll(t *testing.T) {
	a := NewEmpty(FormatVPK1, filepath.Join(t.TempDir(), "test"))
	for _, n := range []string{"a", "b", "c"} {
		if err := a.indexEntry(&FileEntry{name: n, extension: "txt", vpk: &vpkPayload{}}); err != nil {
			t.Fatalf("indexEntry: %v", err)
		}
	}
	it := a.IterAll()
	for {
		e, h, ok := it.Next()
		if !ok {
			break
		}
		fh, err := a.Find(e.QualifiedName())
		if err != nil {
			t.Fatalf("Find(%q): %v", e.QualifiedName(), err)
		}
		if fh != h {
			t.Errorf("Find(%q) = %d, want %d", e.QualifiedName(), fh, h)
		}
	}
}

func TestIterInDirectory(t *testing.T) {
	a := NewEmpty(FormatVPK1, filepath.Join(t.TempDir(), "test"))
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("indexEntry: %v", err)
		}
	}
	must(a.indexEntry(&FileEntry{name: "a", extension: "txt", vpk: &vpkPayload{}}))
	must(a.indexEntry(&FileEntry{name: "b", directory: "models", extension: "mdl", vpk: &vpkPayload{}}))
	must(a.indexEntry(&FileEntry{name: "c", directory: "models", extension: "mdl", vpk: &vpkPayload{}}))
	must(a.indexEntry(&FileEntry{name: "d", directory: "models/props", extension: "mdl", vpk: &vpkPayload{}}))
	must(a.indexEntry(&FileEntry{name: "e", extension: "txt", vpk: &vpkPayload{}}))

	it := a.IterInDirectory("models")
	var got []string
	for {
		e, _, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, e.QualifiedName())
	}
	want := []string{"models/b.mdl", "models/c.mdl", "models/props/d.mdl"}
	if len(got) != len(want) {
		t.Fatalf("IterInDirectory(models) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}

	empty := a.IterInDirectory("nonexistent")
	if _, _, ok := empty.Next(); ok {
		t.Errorf("IterInDirectory(nonexistent) yielded an entry, want none")
	}
}

func TestFormatString(t *testing.T) {
	for _, x := range []struct {
		f    Format
		want string
	}{
		{FormatVPK1, "VPK1"},
		{FormatVPK2, "VPK2"},
		{FormatWAD, "WAD"},
		{FormatPAK, "PAK"},
	} {
		if got := x.f.String(); got != x.want {
			t.Errorf("Format(%d).String() = %q, want %q", x.f, got, x.want)
		}
	}
}
