package gamearchive

import (
	"fmt"
	"os"
	"strings"

	"github.com/binarchive/gamearchive/bytereader"
	"github.com/binarchive/gamearchive/layout"
)

const (
	vpkArchiveMD5EntrySize = 4 + 4 + 4 + 16
	vpkOtherMD5SectionSize = 16 + 16 + 16
)

// ReadVPK loads a VPK1 or VPK2 archive from path (spec §4.4).
//
// If path ends in "_dir.vpk", the archive is treated as a split archive:
// the base archive name is path with that suffix removed, and file data
// with a non-sentinel archive_index is fetched lazily from sibling files
// named "<base>_NNN.vpk". Otherwise the archive is treated as standalone
// (a single-file VPK where every entry uses the inline sentinel).
func ReadVPK(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %q: %w", path, ErrFileNotFound)
		}
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return readVPKFromDisk(path, data)
}

func readVPKFromDisk(path string, data []byte) (*Archive, error) {
	baseName, ok := strings.CutSuffix(path, "_dir.vpk")
	if !ok {
		baseName = strings.TrimSuffix(path, ".vpk")
	}
	a, err := parseVPK(baseName, data)
	if err != nil {
		return nil, err
	}
	// Inline (0x7FFF) data is read back from this same file, which for a
	// standalone VPK is not basename+"_dir.vpk".
	a.pool.dirPath = path
	return a, nil
}

// parseVPK decodes the in-memory bytes of a _dir.vpk (or standalone .vpk)
// file into an Archive.
func parseVPK(baseName string, data []byte) (*Archive, error) {
	br := bytereader.New(data)

	var hdr layout.VPKHeader
	if err := br.ReadInto(&hdr); err != nil {
		return nil, fmt.Errorf("read vpk header: %w", err)
	}
	if hdr.Signature != layout.VPKMagic || (hdr.Version != 1 && hdr.Version != 2) {
		return nil, fmt.Errorf("read vpk header: %w", ErrInvalidSignature)
	}

	format := FormatVPK1
	headerSize := 12
	var extHdr layout.VPKHeaderV2
	if hdr.Version == 2 {
		format = FormatVPK2
		if err := br.ReadInto(&extHdr); err != nil {
			return nil, fmt.Errorf("read vpk2 extended header: %w", err)
		}
		headerSize += 16
	}

	type pending struct {
		name, dir, ext string
		de             layout.VPKDirectoryEntry
		preload        []byte
	}
	var order []pending

	var maxArchiveIndex uint16
	var hasArchiveIndex bool
	var totalInlineDataSize int64

	for {
		ext, err := br.ReadString(0)
		if err != nil {
			return nil, fmt.Errorf("read directory tree extension: %w", err)
		}
		if ext == "" {
			break
		}
		for {
			dir, err := br.ReadString(0)
			if err != nil {
				return nil, fmt.Errorf("read directory tree path: %w", err)
			}
			if dir == "" {
				break
			}
			normDir := layout.NormalizeVPKDirectory(dir)
			for {
				name, err := br.ReadString(0)
				if err != nil {
					return nil, fmt.Errorf("read directory tree filename: %w", err)
				}
				if name == "" {
					break
				}

				var de layout.VPKDirectoryEntry
				if err := br.ReadInto(&de); err != nil {
					return nil, fmt.Errorf("read directory entry for %q: %w", name, err)
				}
				if de.Terminator != layout.VPKEntryTerminator {
					return nil, fmt.Errorf("read directory entry for %q: bad terminator %#x: %w", name, de.Terminator, ErrMalformedArchive)
				}
				preload, err := br.ReadBytes(int(de.PreloadBytes))
				if err != nil {
					return nil, fmt.Errorf("read preload data for %q: %w", name, err)
				}

				if de.ArchiveIndex == layout.VPKArchiveIndexDir {
					totalInlineDataSize += int64(de.EntryLength)
				} else if !hasArchiveIndex || de.ArchiveIndex > maxArchiveIndex {
					maxArchiveIndex = de.ArchiveIndex
					hasArchiveIndex = true
				}

				order = append(order, pending{name, normDir, ext, de, preload})
			}
		}
	}

	a := &Archive{
		baseName: baseName,
		format:   format,
		byName:   map[string]int{},
		vpkVersion: hdr.Version,
	}
	for _, p := range order {
		e := &FileEntry{
			name:      p.name,
			directory: p.dir,
			extension: p.ext,
			size:      int64(p.de.PreloadBytes) + int64(p.de.EntryLength),
			onDisk:    true,
			vpk: &vpkPayload{
				archiveIndex: p.de.ArchiveIndex,
				preloadSize:  p.de.PreloadBytes,
				preloadBytes: p.preload,
				entryOffset:  p.de.EntryOffset,
				entryLength:  p.de.EntryLength,
				crc32:        p.de.CRC,
			},
		}
		if err := a.indexEntry(e); err != nil {
			return nil, err
		}
	}
	a.vpkMaxArchiveIndex = maxArchiveIndex
	a.vpkHasArchiveIndex = hasArchiveIndex

	if format == FormatVPK2 {
		dataStart := headerSize + int(hdr.TreeSize)
		if err := br.Seek(dataStart + int(totalInlineDataSize)); err != nil {
			return nil, fmt.Errorf("skip inline file data: %w", err)
		}

		n := int(extHdr.ArchiveMD5SectionSize) / vpkArchiveMD5EntrySize
		a.vpkArchiveMD5 = make([]layout.VPKArchiveMD5Entry, 0, n)
		for i := 0; i < n; i++ {
			var e layout.VPKArchiveMD5Entry
			if err := br.ReadInto(&e); err != nil {
				return nil, fmt.Errorf("read archive md5 entry %d: %w", i, err)
			}
			a.vpkArchiveMD5 = append(a.vpkArchiveMD5, e)
		}

		var other layout.VPKOtherMD5Section
		if err := br.ReadInto(&other); err != nil {
			return nil, fmt.Errorf("read other md5 section: %w", err)
		}
		a.vpkOtherMD5 = &other

		if extHdr.SignatureSectionSize > 0 {
			pubKeySize, err := br.ReadUint32()
			if err != nil {
				return nil, fmt.Errorf("read pubkey size: %w", err)
			}
			pubKey, err := br.ReadBytes(int(pubKeySize))
			if err != nil {
				return nil, fmt.Errorf("read pubkey: %w", err)
			}
			sigSize, err := br.ReadUint32()
			if err != nil {
				return nil, fmt.Errorf("read signature size: %w", err)
			}
			sig, err := br.ReadBytes(int(sigSize))
			if err != nil {
				return nil, fmt.Errorf("read signature: %w", err)
			}
			a.vpkPubKey = pubKey
			a.vpkSignature = sig
		}
	}

	var poolMax uint16
	if hasArchiveIndex {
		poolMax = maxArchiveIndex
	}
	a.pool = newHandlePool(a.baseName, poolMax)
	a.vpkDataStart = headerSize + int(hdr.TreeSize)

	return a, nil
}
