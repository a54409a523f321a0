// Package isotest builds minimal ISO-9660 images for tests.
package isotest

import (
	"encoding/binary"
	"sort"
	"strings"
)

const sector = 2048

// Build returns an image with the given volume label and flat root-directory
// files. File names are stored upper-cased with a ";1" version suffix.
func Build(label string, files map[string][]byte) []byte {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	const rootLBA = 18
	next := uint32(rootLBA + 1)
	lbas := make(map[string]uint32, len(names))
	for _, name := range names {
		lbas[name] = next
		n := (len(files[name]) + sector - 1) / sector
		if n == 0 {
			n = 1
		}
		next += uint32(n)
	}

	img := make([]byte, int(next)*sector)

	pvd := img[16*sector : 17*sector]
	pvd[0] = 1
	copy(pvd[1:6], "CD001")
	pvd[6] = 1
	vol := []byte(strings.Repeat(" ", 32))
	copy(vol, label)
	copy(pvd[40:72], vol)
	writeRecord(pvd[156:190], "\x00", rootLBA, sector, true)

	term := img[17*sector : 18*sector]
	term[0] = 255
	copy(term[1:6], "CD001")
	term[6] = 1

	dir := img[rootLBA*sector : (rootLBA+1)*sector]
	off := writeRecord(dir, "\x00", rootLBA, sector, true)
	off += writeRecord(dir[off:], "\x01", rootLBA, sector, true)
	for _, name := range names {
		off += writeRecord(dir[off:], strings.ToUpper(name)+";1", lbas[name], uint32(len(files[name])), false)
		copy(img[int(lbas[name])*sector:], files[name])
	}

	return img
}

func writeRecord(buf []byte, name string, lba, size uint32, isDir bool) int {
	n := 33 + len(name)
	if n%2 == 1 {
		n++
	}
	buf[0] = byte(n)
	binary.LittleEndian.PutUint32(buf[2:6], lba)
	binary.BigEndian.PutUint32(buf[6:10], lba)
	binary.LittleEndian.PutUint32(buf[10:14], size)
	binary.BigEndian.PutUint32(buf[14:18], size)
	if isDir {
		buf[25] = 0x02
	}
	buf[32] = byte(len(name))
	copy(buf[33:], name)
	return n
}
