package gamearchive

// Handle is an opaque, archive-local reference to a FileEntry. Adding
// entries appends them and leaves existing handles valid; Remove and
// RemovePrefix shift entry positions and invalidate handles taken before.
type Handle int

// vpkPayload holds VPK-specific per-entry state (spec §3, VPK payload).
type vpkPayload struct {
	archiveIndex uint16
	preloadSize  uint16
	preloadBytes []byte
	entryOffset  uint32
	entryLength  uint32
	crc32        uint32
	sourcePath   string
}

// wadPayload holds WAD-specific per-entry state (spec §3, WAD payload).
type wadPayload struct {
	inMemory   bool
	data       []byte
	sourcePath string
	lumpOffset int32
	lumpSize   int32
}

// pakPayload holds PAK-specific per-entry state (spec §3, PAK payload).
type pakPayload struct {
	sourcePath string
	data       []byte
}

// FileEntry is a format-agnostic record of one archived file. The format
// discriminant lives on the owning Archive; exactly one of the unexported
// payload pointers below is non-nil, matching that discriminant, so no
// runtime type assertion is needed to use an entry — only to build one.
type FileEntry struct {
	name      string
	directory string
	extension string
	size      int64
	offset    int64
	onDisk    bool
	dirty     bool

	vpk *vpkPayload
	wad *wadPayload
	pak *pakPayload
}

// Name returns the entry's basename (no extension for VPK; the full 8-char
// lump name for WAD; the full path for PAK).
func (e *FileEntry) Name() string { return e.name }

// Directory returns the directory portion of the entry's path (empty for
// WAD).
func (e *FileEntry) Directory() string { return e.directory }

// Extension returns the entry's extension: without the leading dot for VPK,
// with it for PAK (".bsp"), and empty for WAD.
func (e *FileEntry) Extension() string { return e.extension }

// Size returns the entry's data length in bytes.
func (e *FileEntry) Size() int64 { return e.size }

// Offset returns the entry's offset within its containing archive.
func (e *FileEntry) Offset() int64 { return e.offset }

// OnDisk reports whether the entry backs existing archive bytes.
func (e *FileEntry) OnDisk() bool { return e.onDisk }

// Dirty reports whether the entry was added or modified since load.
func (e *FileEntry) Dirty() bool { return e.dirty }

// QualifiedName returns the fully qualified name used for lookups: for VPK,
// "directory/name.extension" (or "name.extension" with no directory); for
// WAD, the lump name; for PAK, the full stored path.
func (e *FileEntry) QualifiedName() string {
	switch {
	case e.wad != nil:
		return e.name
	case e.pak != nil:
		return e.name
	default:
		if e.directory == "" {
			return e.name + "." + e.extension
		}
		return e.directory + "/" + e.name + "." + e.extension
	}
}
