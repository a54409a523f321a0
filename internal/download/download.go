// Package download fetches the quick-install package: mirror selection,
// transfer to a temporary file, SHA-1 verification and saving to the
// support directory.
package download

import (
	"bufio"
	"errors"
	"strings"

	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/openra-mobius/mobius-content/internal/manifest"
)

var log = logging.L("download")

// Download describes one downloadable package. MirrorList takes precedence
// over URL when both are set.
type Download struct {
	Title      string
	URL        string
	MirrorList string
	SHA1       string
	Path       string
}

// DecodeDownload reads a download node.
func DecodeDownload(n *manifest.Node) (*Download, error) {
	d := &Download{
		Title:      manifest.String(n, "Title", n.Key),
		URL:        strings.TrimSpace(manifest.String(n, "URL", "")),
		MirrorList: strings.TrimSpace(manifest.String(n, "MirrorList", "")),
		SHA1:       strings.TrimSpace(manifest.String(n, "SHA1", "")),
	}
	if d.URL == "" && d.MirrorList == "" {
		return nil, &manifest.FieldError{Path: "URL", Line: n.Line, Err: errors.New("one of URL or MirrorList is required")}
	}

	var err error
	if d.Path, err = manifest.Required(n, "Path"); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseMirrorList returns the non-blank lines of a mirror list.
func ParseMirrorList(text string) []string {
	var out []string
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	return out
}
