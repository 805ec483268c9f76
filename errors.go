// Package gamearchive reads, inspects, modifies, and creates archive files
// for the VPK1, VPK2, WAD, and PAK formats behind one polymorphic
// interface, providing byte-for-byte-identical serialization for
// unmodified WAD and VPK1 archives.
package gamearchive

import (
	"errors"

	"github.com/binarchive/gamearchive/bytereader"
)

// Error kinds surfaced by the core, per the archive format specifications.
var (
	// ErrFileNotFound means the archive path could not be opened.
	ErrFileNotFound = errors.New("gamearchive: file not found")
	// ErrInvalidSignature means the magic bytes did not match the format,
	// or a VPK's version is outside {1, 2}.
	ErrInvalidSignature = errors.New("gamearchive: invalid signature")
	// ErrTruncated means a parser read exceeded the byte-slice bounds.
	ErrTruncated = bytereader.ErrTruncated
	// ErrMalformedArchive means a structural invariant was violated
	// during parsing.
	ErrMalformedArchive = errors.New("gamearchive: malformed archive")
	// ErrEntryNotFound means a lookup by name or handle failed.
	ErrEntryNotFound = errors.New("gamearchive: entry not found")
	// ErrSiblingMissing means a VPK sibling archive referenced by a
	// directory entry could not be opened.
	ErrSiblingMissing = errors.New("gamearchive: sibling archive missing")
	// ErrWriteFailed means the output file could not be opened, or a
	// write returned short, or a dirty entry's backing source vanished.
	ErrWriteFailed = errors.New("gamearchive: write failed")
)
