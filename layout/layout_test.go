package layout

import (
	"encoding/binary"
	"testing"
)

func TestRecordSizes(t *testing.T) {
	for _, tc := range []struct {
		name string
		v    any
		want int
	}{
		{"VPKHeader", VPKHeader{}, 12},
		{"VPKHeaderV2", VPKHeaderV2{}, 16},
		{"VPKDirectoryEntry", VPKDirectoryEntry{}, 18},
		{"VPKArchiveMD5Entry", VPKArchiveMD5Entry{}, 28},
		{"VPKOtherMD5Section", VPKOtherMD5Section{}, 48},
		{"WADHeader", WADHeader{}, 12},
		{"WADDirectoryEntry", WADDirectoryEntry{}, 16},
		{"PAKHeader", PAKHeader{}, 12},
		{"PAKDirectoryEntry", PAKDirectoryEntry{}, 64},
	} {
		if got := binary.Size(tc.v); got != tc.want {
			t.Errorf("%s: expected size %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestNormalizeDenormalizeVPKDirectory(t *testing.T) {
	if got := NormalizeVPKDirectory(" "); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
	if got := NormalizeVPKDirectory("a/b"); got != "a/b" {
		t.Errorf("expected %q, got %q", "a/b", got)
	}
	if got := DenormalizeVPKDirectory(""); got != " " {
		t.Errorf("expected %q, got %q", " ", got)
	}
	if got := DenormalizeVPKDirectory("a/b"); got != "a/b" {
		t.Errorf("expected %q, got %q", "a/b", got)
	}
}
