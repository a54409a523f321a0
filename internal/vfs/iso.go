package vfs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const (
	isoSectorSize        = 2048
	isoFirstDescriptor   = 16
	isoDescriptorPrimary = 1
	isoDescriptorEnd     = 255
	isoMaxDescriptors    = 64
	isoMaxDepth          = 16

	// Offsets inside the primary volume descriptor.
	pvdVolumeIDOffset = 40
	pvdVolumeIDLength = 32
	pvdRootRecord     = 156
)

var errNotISO = errors.New("not an ISO-9660 image")

// isoEntry is one file extent inside the image.
type isoEntry struct {
	lba  uint32
	size uint32
}

// ISOPackage exposes the files of an ISO-9660 image. Entry names are matched
// case-insensitively with version suffixes (";1") removed.
type ISOPackage struct {
	name    string
	label   string
	file    afero.File
	entries map[string]isoEntry
}

// OpenISO parses the primary volume descriptor and directory tree of the image at path.
func OpenISO(base afero.Fs, path string) (*ISOPackage, error) {
	f, err := base.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open iso %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat iso %s: %w", path, err)
	}

	pkg, err := readISO(f, path, info.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	return pkg, nil
}

func readISO(f afero.File, path string, fileSize int64) (*ISOPackage, error) {
	pvd := make([]byte, isoSectorSize)
	found := false
	for i := 0; i < isoMaxDescriptors; i++ {
		if _, err := f.ReadAt(pvd, int64(isoFirstDescriptor+i)*isoSectorSize); err != nil {
			return nil, fmt.Errorf("iso %s: read volume descriptor: %w", path, err)
		}
		if string(pvd[1:6]) != "CD001" {
			return nil, fmt.Errorf("iso %s: %w", path, errNotISO)
		}
		if pvd[0] == isoDescriptorPrimary {
			found = true
			break
		}
		if pvd[0] == isoDescriptorEnd {
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("iso %s: no primary volume descriptor: %w", path, errNotISO)
	}

	root := pvd[pvdRootRecord : pvdRootRecord+34]
	rootLBA := binary.LittleEndian.Uint32(root[2:6])
	rootSize := binary.LittleEndian.Uint32(root[10:14])

	files, err := isoWalk(f, fileSize, rootLBA, rootSize, "", 0)
	if err != nil {
		return nil, fmt.Errorf("iso %s: read root directory: %w", path, err)
	}

	entries := make(map[string]isoEntry, len(files))
	for name, e := range files {
		entries[strings.ToUpper(name)] = e
	}

	return &ISOPackage{
		name:    path,
		label:   strings.TrimSpace(string(pvd[pvdVolumeIDOffset : pvdVolumeIDOffset+pvdVolumeIDLength])),
		file:    f,
		entries: entries,
	}, nil
}

// isoListDir returns all non-dot records of one directory extent. Extents
// reaching past the end of the image are rejected before anything is read.
func isoListDir(r io.ReaderAt, fileSize int64, lba, size uint32) ([]isoDirRecord, error) {
	if int64(lba)*isoSectorSize+int64(size) > fileSize {
		return nil, fmt.Errorf("directory extent at sector %d (%d bytes) lies beyond the image: %w", lba, size, errNotISO)
	}
	data := make([]byte, size)
	if _, err := r.ReadAt(data, int64(lba)*isoSectorSize); err != nil {
		return nil, err
	}

	var records []isoDirRecord
	offset := 0
	for offset < int(size) {
		recLen := int(data[offset])
		if recLen == 0 {
			// records never span sectors; skip the sector padding
			next := ((offset / isoSectorSize) + 1) * isoSectorSize
			if next >= int(size) {
				break
			}
			offset = next
			continue
		}
		if offset+recLen > int(size) || recLen < 34 {
			break
		}

		nameLen := int(data[offset+32])
		if nameLen == 0 || offset+33+nameLen > int(size) {
			offset += recLen
			continue
		}

		identifier := string(data[offset+33 : offset+33+nameLen])
		if identifier == "\x00" || identifier == "\x01" {
			offset += recLen
			continue
		}
		if idx := strings.Index(identifier, ";"); idx >= 0 {
			identifier = identifier[:idx]
		}

		records = append(records, isoDirRecord{
			name:  strings.TrimSuffix(identifier, "."),
			isDir: data[offset+25]&0x02 != 0,
			lba:   binary.LittleEndian.Uint32(data[offset+2 : offset+6]),
			size:  binary.LittleEndian.Uint32(data[offset+10 : offset+14]),
		})
		offset += recLen
	}
	return records, nil
}

type isoDirRecord struct {
	name  string
	isDir bool
	lba   uint32
	size  uint32
}

func isoWalk(r io.ReaderAt, fileSize int64, lba, size uint32, prefix string, depth int) (map[string]isoEntry, error) {
	records, err := isoListDir(r, fileSize, lba, size)
	if err != nil {
		return nil, err
	}

	result := make(map[string]isoEntry)
	for _, rec := range records {
		p := rec.name
		if prefix != "" {
			p = prefix + "/" + rec.name
		}

		if !rec.isDir {
			result[p] = isoEntry{lba: rec.lba, size: rec.size}
			continue
		}
		if depth >= isoMaxDepth {
			continue
		}
		sub, err := isoWalk(r, fileSize, rec.lba, rec.size, p, depth+1)
		if err != nil {
			continue // unreadable subdirectories are skipped
		}
		for k, v := range sub {
			result[k] = v
		}
	}
	return result, nil
}

func (p *ISOPackage) Name() string { return p.name }

// Label returns the trimmed volume identifier.
func (p *ISOPackage) Label() string { return p.label }

func (p *ISOPackage) Contains(entry string) bool {
	_, ok := p.entries[strings.ToUpper(cleanEntry(entry))]
	return ok
}

func (p *ISOPackage) Contents() []string {
	names := make([]string, 0, len(p.entries))
	for name := range p.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *ISOPackage) GetStream(entry string) (io.ReadSeekCloser, error) {
	e, ok := p.entries[strings.ToUpper(cleanEntry(entry))]
	if !ok {
		return nil, &EntryError{Package: p.name, Entry: entry, Err: ErrNotFound}
	}
	return sectionStream{io.NewSectionReader(p.file, int64(e.lba)*isoSectorSize, int64(e.size))}, nil
}

func (p *ISOPackage) Close() error {
	return p.file.Close()
}

// sectionStream adapts a SectionReader to io.ReadSeekCloser; the image file
// is owned by the package.
type sectionStream struct {
	*io.SectionReader
}

func (sectionStream) Close() error { return nil }
