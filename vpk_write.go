package gamearchive

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/binarchive/gamearchive/layout"
)

// binaryWrite serializes v in little-endian order, matching every other
// fixed-record read/write in this package.
func binaryWrite(w io.Writer, v any) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func binaryWriteUint32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// Default budgeting constants for the VPK1 add path, matching
// original_source/src/vpk1.h's DefaultVPK1Settings (512 MiB size budget,
// 2048-byte preload threshold).
const (
	DefaultVPKMaxPreloadSize    = 2048
	DefaultVPKArchiveSizeBudget = 512 * 1024 * 1024
)

// AddFile stages a file on disk to be added to a VPK archive under
// qualifiedName ("dir/name.ext" or "name.ext"). The backing file is read
// once here to compute and store the entry's CRC32 (spec §4.9); its
// contents are copied into the archive when Write is called.
func (a *Archive) AddFile(qualifiedName, sourcePath string) error {
	if a.format != FormatVPK1 && a.format != FormatVPK2 {
		return fmt.Errorf("add file: %w: not a vpk archive", ErrMalformedArchive)
	}
	info, err := os.Stat(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("stat %q: %w", sourcePath, ErrFileNotFound)
		}
		return fmt.Errorf("stat %q: %w", sourcePath, err)
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open %q: %w", sourcePath, err)
	}
	defer f.Close()

	crc := crc32.NewIEEE()
	if _, err := io.Copy(crc, f); err != nil {
		return fmt.Errorf("hash %q: %w", sourcePath, err)
	}

	dir, ext, name := splitVPKQualifiedName(qualifiedName)
	e := &FileEntry{
		name:      name,
		directory: dir,
		extension: ext,
		size:      info.Size(),
		onDisk:    false,
		dirty:     true,
		vpk: &vpkPayload{
			sourcePath: sourcePath,
			crc32:      crc.Sum32(),
		},
	}
	return a.indexEntry(e)
}

// splitVPKQualifiedName splits "dir/name.ext" (or "name.ext") into its
// directory, extension (without leading dot), and basename components.
func splitVPKQualifiedName(qn string) (dir, ext, name string) {
	base := qn
	for i := len(qn) - 1; i >= 0; i-- {
		if qn[i] == '/' {
			dir = qn[:i]
			base = qn[i+1:]
			break
		}
	}
	name = base
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			ext = base[i+1:]
			name = base[:i]
			break
		}
	}
	return
}

// vpkPlacement records where a dirty entry's data will land once Write
// decides the space-budgeting outcome (spec §4.9).
type vpkPlacement struct {
	inline       bool
	idx          uint16
	offset       int64
	preloadBytes []byte // populated for inline placements once their source is read
}

// vpkWriteOptions controls the space-budgeting behavior of Write for a VPK
// archive (spec §4.9).
type vpkWriteOptions struct {
	maxPreloadSize    int64
	archiveSizeBudget int64
}

// SetVPKBudget overrides the space-budgeting constants used by Write for a
// VPK archive's dirty entries. Passing 0 for either argument keeps that
// argument's default (spec §4.9).
func (a *Archive) SetVPKBudget(maxPreloadSize, archiveSizeBudget int64) {
	a.vpkConfiguredMaxPreload = maxPreloadSize
	a.vpkConfiguredSizeBudget = archiveSizeBudget
}

// writeVPKDefault serializes a VPK archive to basename+"_dir.vpk" (or, for a
// standalone single-file archive, the file it was loaded from), assigning archive slots
// to any dirty entries added via AddFile and streaming their data into
// sibling archives as needed (spec §4.9).
func (a *Archive) writeVPKDefault() error {
	opts := vpkWriteOptions{
		maxPreloadSize:    DefaultVPKMaxPreloadSize,
		archiveSizeBudget: DefaultVPKArchiveSizeBudget,
	}
	if a.vpkConfiguredMaxPreload > 0 {
		opts.maxPreloadSize = a.vpkConfiguredMaxPreload
	}
	if a.vpkConfiguredSizeBudget > 0 {
		opts.archiveSizeBudget = a.vpkConfiguredSizeBudget
	}
	return a.writeVPK(opts)
}

// siblingState tracks the current on-disk length of each sibling archive
// during a write pass, so new entries can be bin-packed against the
// configured size budget.
type siblingState struct {
	sizes map[uint16]int64
	max   uint16
	has   bool
}

func (s *siblingState) sizeOf(idx uint16) int64 { return s.sizes[idx] }

// pick returns the lowest archive_index whose cumulative size plus need
// still fits within budget, allocating a new sibling if none do.
func (s *siblingState) pick(need, budget int64) uint16 {
	if s.has {
		for i := uint16(0); i <= s.max; i++ {
			if s.sizes[i]+need <= budget {
				return i
			}
		}
	}
	next := uint16(0)
	if s.has {
		next = s.max + 1
	}
	return next
}

func (s *siblingState) grow(idx uint16, n int64) {
	s.sizes[idx] += n
	if !s.has || idx > s.max {
		s.max = idx
	}
	s.has = true
}

func (a *Archive) abortWrite(f *os.File, path string, cause error) error {
	f.Close()
	os.Remove(path + ".tmp")
	return fmt.Errorf("write %q: %w: %v", path, ErrWriteFailed, cause)
}

func (a *Archive) writeVPK(opts vpkWriteOptions) error {
	dirPath := a.baseName + "_dir.vpk"
	if a.baseName == "" {
		dirPath = "_dir.vpk"
	}
	if a.pool != nil && a.pool.dirPath != "" {
		dirPath = a.pool.dirPath
	}

	siblings := &siblingState{sizes: map[uint16]int64{}}
	if a.vpkHasArchiveIndex {
		siblings.max = a.vpkMaxArchiveIndex
		siblings.has = true
		for i := 0; i <= int(siblings.max); i++ {
			if fi, err := os.Stat(fmt.Sprintf("%s_%03d.vpk", a.baseName, i)); err == nil {
				siblings.sizes[uint16(i)] = fi.Size()
			}
		}
	}

	plans := make(map[*FileEntry]*vpkPlacement)
	for _, e := range a.entries {
		if !e.dirty || e.onDisk || e.vpk == nil || e.vpk.sourcePath == "" {
			continue
		}
		if e.size <= opts.maxPreloadSize {
			plans[e] = &vpkPlacement{inline: true}
			continue
		}
		idx := siblings.pick(e.size, opts.archiveSizeBudget)
		off := siblings.sizeOf(idx)
		siblings.grow(idx, e.size)
		plans[e] = &vpkPlacement{idx: idx, offset: off}
	}

	dirFile, err := os.Create(dirPath + ".tmp")
	if err != nil {
		return fmt.Errorf("create %q: %w: %v", dirPath, ErrWriteFailed, err)
	}
	w := bufio.NewWriter(dirFile)

	version := uint32(1)
	if a.format == FormatVPK2 {
		version = 2
	}
	headerSize := 12
	if version == 2 {
		headerSize += 16
	}
	if _, err := w.Write(make([]byte, headerSize)); err != nil {
		return a.abortWrite(dirFile, dirPath, err)
	}

	var inlineBufs [][]byte
	if err := a.writeVPKTree(w, plans, &inlineBufs); err != nil {
		return a.abortWrite(dirFile, dirPath, err)
	}

	if err := w.Flush(); err != nil {
		return a.abortWrite(dirFile, dirPath, err)
	}
	treeEnd, err := dirFile.Seek(0, io.SeekCurrent)
	if err != nil {
		return a.abortWrite(dirFile, dirPath, err)
	}
	treeSize := uint32(treeEnd - int64(headerSize))

	var fileDataSize uint32
	for _, buf := range inlineBufs {
		if _, err := dirFile.Write(buf); err != nil {
			return a.abortWrite(dirFile, dirPath, err)
		}
		fileDataSize += uint32(len(buf))
	}

	var extHdr layout.VPKHeaderV2
	if version == 2 {
		extHdr.FileDataSectionSize = fileDataSize
		extHdr.ArchiveMD5SectionSize = uint32(len(a.vpkArchiveMD5) * vpkArchiveMD5EntrySize)
		extHdr.OtherMD5SectionSize = vpkOtherMD5SectionSize
		if len(a.vpkSignature) > 0 {
			extHdr.SignatureSectionSize = uint32(4+len(a.vpkPubKey)) + uint32(4+len(a.vpkSignature))
		}
		if err := a.writeVPK2Trailer(dirFile); err != nil {
			return a.abortWrite(dirFile, dirPath, err)
		}
	}

	if err := patchVPKHeader(dirFile, version, treeSize, extHdr); err != nil {
		return a.abortWrite(dirFile, dirPath, err)
	}

	if err := dirFile.Close(); err != nil {
		os.Remove(dirPath + ".tmp")
		return fmt.Errorf("close %q: %w", dirPath, ErrWriteFailed)
	}

	if err := a.flushVPKSiblings(plans, opts); err != nil {
		os.Remove(dirPath + ".tmp")
		return err
	}

	if err := os.Rename(dirPath+".tmp", dirPath); err != nil {
		return fmt.Errorf("rename %q: %w", dirPath, ErrWriteFailed)
	}

	for e, pl := range plans {
		e.onDisk = true
		e.dirty = false
		if pl.inline {
			// Matches the add path's literal convention (spec §4.9): a
			// fully preloaded entry gets archive_index 0, not the
			// stored-inline sentinel. Since entry_length is also 0, no
			// reader ever dereferences this index.
			e.vpk.archiveIndex = 0
			e.vpk.entryOffset = 0
			e.vpk.entryLength = 0
			e.vpk.preloadSize = uint16(len(pl.preloadBytes))
			e.vpk.preloadBytes = pl.preloadBytes
		} else {
			e.vpk.archiveIndex = pl.idx
			e.vpk.entryOffset = uint32(pl.offset)
			e.vpk.entryLength = uint32(e.size)
			e.vpk.preloadSize = 0
			e.vpk.preloadBytes = nil
		}
	}
	if siblings.has {
		a.vpkHasArchiveIndex = true
		a.vpkMaxArchiveIndex = siblings.max
		if a.pool != nil {
			a.pool.grow(siblings.max)
		}
	}
	return nil
}

// writeVPKTree implements the grouping algorithm of spec §4.9: an outer
// loop over extensions, a middle loop over directories within the current
// extension, and an inner loop emitting every entry matching the current
// (extension, directory) pair, repeated until every entry has been written,
// followed by the empty extension that ends the tree.
func (a *Archive) writeVPKTree(w *bufio.Writer, plans map[*FileEntry]*vpkPlacement, inlineBufs *[][]byte) error {
	written := make(map[*FileEntry]bool, len(a.entries))

	for {
		curExt, ok := firstUnwrittenExt(a.entries, written)
		if !ok {
			break
		}
		if _, err := w.WriteString(curExt); err != nil {
			return err
		}
		if err := w.WriteByte(0); err != nil {
			return err
		}

		for {
			curDir, ok := firstUnwrittenDir(a.entries, written, curExt)
			if !ok {
				break
			}
			if _, err := w.WriteString(layout.DenormalizeVPKDirectory(curDir)); err != nil {
				return err
			}
			if err := w.WriteByte(0); err != nil {
				return err
			}

			for _, e := range a.entries {
				if written[e] || e.extension != curExt || e.directory != curDir {
					continue
				}
				if err := a.writeVPKEntryRecord(w, e, plans, inlineBufs); err != nil {
					return err
				}
				written[e] = true
			}
			if err := w.WriteByte(0); err != nil {
				return err
			}
		}
		if err := w.WriteByte(0); err != nil {
			return err
		}
	}
	// An empty extension terminates the tree.
	return w.WriteByte(0)
}

func firstUnwrittenExt(entries []*FileEntry, written map[*FileEntry]bool) (string, bool) {
	for _, e := range entries {
		if !written[e] {
			return e.extension, true
		}
	}
	return "", false
}

func firstUnwrittenDir(entries []*FileEntry, written map[*FileEntry]bool, ext string) (string, bool) {
	for _, e := range entries {
		if !written[e] && e.extension == ext {
			return e.directory, true
		}
	}
	return "", false
}

// writeVPKEntryRecord emits one file's tree record: NUL-terminated name,
// the 18-byte fixed directory entry, then the entry's preload bytes (for an
// inline placement, the whole backing file). The archive data of an
// untouched on-disk entry stored in the dir file itself (archive_index
// 0x7FFF with a non-zero entry_length) is deferred into inlineBufs so it can
// be appended once tree_size is known.
func (a *Archive) writeVPKEntryRecord(w *bufio.Writer, e *FileEntry, plans map[*FileEntry]*vpkPlacement, inlineBufs *[][]byte) error {
	if _, err := w.WriteString(e.name); err != nil {
		return err
	}
	if err := w.WriteByte(0); err != nil {
		return err
	}

	p := e.vpk
	plan, isDirty := plans[e]

	var preloadSize uint16
	var preloadBytes []byte
	var archiveIndex uint16
	var entryOffset, entryLength uint32
	var crc uint32 = p.crc32

	switch {
	case isDirty && plan.inline:
		data, err := os.ReadFile(p.sourcePath)
		if err != nil {
			return fmt.Errorf("read %q: %w", p.sourcePath, err)
		}
		preloadSize = uint16(len(data))
		preloadBytes = data
		archiveIndex = 0
		plan.preloadBytes = data
	case isDirty && !plan.inline:
		archiveIndex = plan.idx
		entryOffset = uint32(plan.offset)
		entryLength = uint32(e.size)
	default:
		preloadSize = p.preloadSize
		preloadBytes = p.preloadBytes
		archiveIndex = p.archiveIndex
		entryOffset = p.entryOffset
		entryLength = p.entryLength
		if archiveIndex == layout.VPKArchiveIndexDir && entryLength > 0 {
			buf, err := a.readVPKEntry(e)
			if err != nil {
				return fmt.Errorf("copy inline data for %q: %w", e.QualifiedName(), err)
			}
			buf = buf[preloadSize:]
			*inlineBufs = append(*inlineBufs, buf)
		}
	}

	rec := layout.VPKDirectoryEntry{
		CRC:          crc,
		PreloadBytes: preloadSize,
		ArchiveIndex: archiveIndex,
		EntryOffset:  entryOffset,
		EntryLength:  entryLength,
		Terminator:   layout.VPKEntryTerminator,
	}
	if err := binaryWrite(w, rec); err != nil {
		return err
	}
	if len(preloadBytes) > 0 {
		if _, err := w.Write(preloadBytes); err != nil {
			return err
		}
	}
	return nil
}

// flushVPKSiblings streams the backing files of newly bin-packed dirty
// entries into their assigned sibling archives, appending to each.
func (a *Archive) flushVPKSiblings(plans map[*FileEntry]*vpkPlacement, opts vpkWriteOptions) error {
	byIdx := map[uint16][]*FileEntry{}
	for e, pl := range plans {
		if !pl.inline {
			byIdx[pl.idx] = append(byIdx[pl.idx], e)
		}
	}
	for idx, entries := range byIdx {
		name := fmt.Sprintf("%s_%03d.vpk", a.baseName, idx)
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open sibling %q: %w", name, ErrWriteFailed)
		}
		for _, e := range entries {
			src, err := os.Open(e.vpk.sourcePath)
			if err != nil {
				f.Close()
				return fmt.Errorf("open %q: %w", e.vpk.sourcePath, ErrWriteFailed)
			}
			if _, err := io.Copy(f, src); err != nil {
				src.Close()
				f.Close()
				return fmt.Errorf("write sibling %q: %w", name, ErrWriteFailed)
			}
			src.Close()
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close sibling %q: %w", name, ErrWriteFailed)
		}
	}
	return nil
}

// writeVPK2Trailer re-emits the VPK2 post-tree sections (ArchiveMD5, other
// MD5, and optional signature) unchanged from what was parsed, since this
// repo does not recompute checksums or signatures on write.
func (a *Archive) writeVPK2Trailer(f *os.File) error {
	for _, e := range a.vpkArchiveMD5 {
		if err := binaryWrite(f, e); err != nil {
			return err
		}
	}
	other := layout.VPKOtherMD5Section{}
	if a.vpkOtherMD5 != nil {
		other = *a.vpkOtherMD5
	}
	if err := binaryWrite(f, other); err != nil {
		return err
	}
	if len(a.vpkSignature) > 0 {
		if err := binaryWriteUint32(f, uint32(len(a.vpkPubKey))); err != nil {
			return err
		}
		if _, err := f.Write(a.vpkPubKey); err != nil {
			return err
		}
		if err := binaryWriteUint32(f, uint32(len(a.vpkSignature))); err != nil {
			return err
		}
		if _, err := f.Write(a.vpkSignature); err != nil {
			return err
		}
	}
	return nil
}

// patchVPKHeader seeks to the start of dirFile and rewrites the fixed
// header with the final tree_size and (for VPK2) the trailer section sizes,
// now that the tree and trailer have been written.
func patchVPKHeader(dirFile *os.File, version uint32, treeSize uint32, ext layout.VPKHeaderV2) error {
	if _, err := dirFile.Seek(0, io.SeekStart); err != nil {
		return err
	}
	hdr := layout.VPKHeader{
		Signature: layout.VPKMagic,
		Version:   version,
		TreeSize:  treeSize,
	}
	if err := binaryWrite(dirFile, hdr); err != nil {
		return err
	}
	if version == 2 {
		if err := binaryWrite(dirFile, ext); err != nil {
			return err
		}
	}
	_, err := dirFile.Seek(0, io.SeekEnd)
	return err
}
