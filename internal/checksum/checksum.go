// Package checksum identifies content by SHA-1 digests of package entries.
package checksum

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/spf13/afero"
)

var log = logging.L("checksum")

// IDFile identifies one package entry. A zero Offset and Length hashes the
// whole entry; otherwise exactly Length bytes starting at Offset are hashed.
type IDFile struct {
	SHA1   string
	Offset int64
	Length int64
}

// Ranged reports whether the digest covers a sub-range of the entry.
func (f IDFile) Ranged() bool {
	return f.Offset != 0 || f.Length != 0
}

// Result is the outcome of checking a set of IDFiles.
type Result int

const (
	Match Result = iota
	Mismatch
	Unreadable
)

func (r Result) String() string {
	switch r {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "unreadable"
	}
}

// Package is the subset of a mounted package needed for verification.
type Package interface {
	GetStream(entry string) (io.ReadSeekCloser, error)
}

// Verify reports whether every IDFile is present in pkg with the expected digest.
func Verify(pkg Package, idFiles map[string]IDFile) bool {
	return Check(pkg, idFiles) == Match
}

// Check verifies idFiles in name order. A missing or unreadable entry stops
// the check immediately; a readable mismatch is recorded and checking continues.
func Check(pkg Package, idFiles map[string]IDFile) Result {
	names := make([]string, 0, len(idFiles))
	for name := range idFiles {
		names = append(names, name)
	}
	sort.Strings(names)

	result := Match
	for _, name := range names {
		switch checkEntry(pkg, name, idFiles[name]) {
		case Unreadable:
			return Unreadable
		case Mismatch:
			result = Mismatch
		}
	}
	return result
}

func checkEntry(pkg Package, name string, id IDFile) Result {
	stream, err := pkg.GetStream(name)
	if err != nil {
		log.Debug("id file unavailable", "entry", name, logging.KeyError, err)
		return Unreadable
	}
	defer stream.Close()

	var actual string
	if id.Ranged() {
		if id.Offset < 0 || id.Length < 0 {
			return Unreadable
		}
		if _, err := stream.Seek(id.Offset, io.SeekStart); err != nil {
			return Unreadable
		}
		h := sha1.New()
		if _, err := io.CopyN(h, stream, id.Length); err != nil {
			log.Debug("id file range unreadable", "entry", name, "offset", id.Offset, "length", id.Length, logging.KeyError, err)
			return Unreadable
		}
		actual = hex.EncodeToString(h.Sum(nil))
	} else {
		actual, err = HashReader(stream)
		if err != nil {
			log.Debug("id file unreadable", "entry", name, logging.KeyError, err)
			return Unreadable
		}
	}

	if !Equal(actual, id.SHA1) {
		log.Debug("id file mismatch", "entry", name, "expected", Normalize(id.SHA1), "actual", actual)
		return Mismatch
	}
	return Match
}

// Normalize canonicalises a hex digest for comparison.
func Normalize(digest string) string {
	return strings.ToLower(strings.TrimSpace(digest))
}

// Equal compares two hex digests ignoring case and surrounding whitespace.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// HashBytes returns the lowercase hex SHA-1 of data.
func HashBytes(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// HashReader returns the lowercase hex SHA-1 of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFile returns the lowercase hex SHA-1 of the file at path.
func HashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()

	sum, err := HashReader(f)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}
