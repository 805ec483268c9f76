package gamearchive

import (
	"fmt"
	"os"

	"github.com/binarchive/gamearchive/layout"
)

// handlePool is a lazy, indexed pool of file handles to a split VPK's
// sibling archives, plus a dedicated handle to the _dir.vpk file itself for
// entries using the layout.VPKArchiveIndexDir sentinel (spec §4.7).
//
// It is not safe for concurrent use, matching the single-owner archive
// model (spec §5).
type handlePool struct {
	baseName string
	handles  []*os.File // indexed by archive_index; nil until opened
	dirPath  string
	dirFile  *os.File
}

// newHandlePool creates a pool sized maxArchiveIndex+1 (spec §4.7,
// resolving the open question about off-by-one sizing).
func newHandlePool(baseName string, maxArchiveIndex uint16) *handlePool {
	return &handlePool{
		baseName: baseName,
		handles:  make([]*os.File, int(maxArchiveIndex)+1),
		dirPath:  baseName + "_dir.vpk",
	}
}

// grow ensures the pool has room for archiveIndex, used when new sibling
// archives are allocated by the writer's add path.
func (p *handlePool) grow(archiveIndex uint16) {
	need := int(archiveIndex) + 1
	if need > len(p.handles) {
		grown := make([]*os.File, need)
		copy(grown, p.handles)
		p.handles = grown
	}
}

// get returns an open handle to sibling archive_index, opening it lazily on
// first demand and caching it for subsequent calls.
func (p *handlePool) get(archiveIndex uint16) (*os.File, error) {
	if archiveIndex == layout.VPKArchiveIndexDir {
		return p.dir()
	}
	i := int(archiveIndex)
	if i >= len(p.handles) {
		return nil, fmt.Errorf("archive index %d: %w", archiveIndex, ErrSiblingMissing)
	}
	if p.handles[i] != nil {
		return p.handles[i], nil
	}
	name := fmt.Sprintf("%s_%03d.vpk", p.baseName, archiveIndex)
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open sibling archive %q: %w", name, ErrSiblingMissing)
	}
	p.handles[i] = f
	return f, nil
}

// dir returns the handle to the _dir.vpk file, opening it lazily.
func (p *handlePool) dir() (*os.File, error) {
	if p.dirFile != nil {
		return p.dirFile, nil
	}
	f, err := os.Open(p.dirPath)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", p.dirPath, ErrSiblingMissing)
	}
	p.dirFile = f
	return f, nil
}

// openHandleCount reports how many sibling handles are currently open,
// excluding the dir handle. Used by tests to verify spec invariant 5 (one
// handle per distinct archive index, regardless of entry count).
func (p *handlePool) openHandleCount() int {
	var n int
	for _, h := range p.handles {
		if h != nil {
			n++
		}
	}
	return n
}

// closeAll closes every open handle in the pool, guaranteeing release
// regardless of how the archive was destroyed (spec §5).
func (p *handlePool) closeAll() error {
	var firstErr error
	for i, h := range p.handles {
		if h == nil {
			continue
		}
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close sibling archive %d: %w", i, err)
		}
		p.handles[i] = nil
	}
	if p.dirFile != nil {
		if err := p.dirFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %q: %w", p.dirPath, err)
		}
		p.dirFile = nil
	}
	return firstErr
}
