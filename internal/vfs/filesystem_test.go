package vfs

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/openra-mobius/mobius-content/internal/isotest"
	"github.com/openra-mobius/mobius-content/internal/platform"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPaths() platform.Paths {
	return platform.Paths{OS: platform.Other, HomeDir: "/home/player", SupportDir: "/support"}
}

func writeZip(t *testing.T, fs afero.Fs, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0o644))
}

func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestFolderPackage(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/games/cnc/CONQUER.MIX", []byte("conquer"), 0o644))
	require.NoError(t, afero.WriteFile(base, "/games/cnc/movies/INTRO.VQA", []byte("intro"), 0o644))

	fs := New(base, testPaths())
	pkg, err := fs.OpenPackage("/games/cnc")
	require.NoError(t, err)

	assert.True(t, pkg.Contains("CONQUER.MIX"))
	assert.True(t, pkg.Contains("movies/INTRO.VQA"))
	assert.False(t, pkg.Contains("movies"))
	assert.Equal(t, []string{"CONQUER.MIX", "movies/INTRO.VQA"}, pkg.Contents())

	s, err := pkg.GetStream("movies/INTRO.VQA")
	require.NoError(t, err)
	assert.Equal(t, "intro", readAll(t, s))

	_, err = pkg.GetStream("missing.mix")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestZipPackage(t *testing.T) {
	base := afero.NewMemMapFs()
	writeZip(t, base, "/support/Content/cnc/quickinstall.zip", map[string]string{
		"conquer.mix":    "conquer-data",
		"speech/eva.aud": "eva",
	})

	fs := New(base, testPaths())
	require.True(t, fs.Exists("^SupportDir|Content/cnc/quickinstall.zip"))

	pkg, err := fs.OpenPackage("^SupportDir|Content/cnc/quickinstall.zip")
	require.NoError(t, err)
	defer pkg.Close()

	assert.Equal(t, []string{"conquer.mix", "speech/eva.aud"}, pkg.Contents())

	s, err := pkg.GetStream("speech/eva.aud")
	require.NoError(t, err)
	assert.Equal(t, "eva", readAll(t, s))

	s, err = pkg.GetStream("conquer.mix")
	require.NoError(t, err)
	_, err = s.Seek(8, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, "data", readAll(t, s))
}

func TestISOPackage(t *testing.T) {
	base := afero.NewMemMapFs()
	img := isotest.Build("GDI95", map[string][]byte{
		"install.mix": []byte("gdi-install"),
		"readme":      bytes.Repeat([]byte("r"), 3000),
	})
	require.NoError(t, afero.WriteFile(base, "/isos/GDI95.ISO", img, 0o644))

	fs := New(base, testPaths())
	pkg, err := fs.OpenPackage("/isos/GDI95.ISO")
	require.NoError(t, err)
	defer pkg.Close()

	iso, ok := pkg.(*ISOPackage)
	require.True(t, ok)
	assert.Equal(t, "GDI95", iso.Label())
	assert.True(t, pkg.Contains("install.mix"))
	assert.True(t, pkg.Contains("README"))

	s, err := pkg.GetStream("INSTALL.MIX")
	require.NoError(t, err)
	assert.Equal(t, "gdi-install", readAll(t, s))

	s, err = pkg.GetStream("readme")
	require.NoError(t, err)
	assert.Len(t, readAll(t, s), 3000)
}

func TestOpenISORejectsNonImage(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/isos/BAD.ISO", make([]byte, 40000), 0o644))

	_, err := OpenISO(base, "/isos/BAD.ISO")
	assert.Error(t, err)
}

func TestOpenISORejectsOversizedDirectoryExtent(t *testing.T) {
	img := isotest.Build("GDI95", map[string][]byte{"install.mix": []byte("gdi")})
	// root directory record size in the primary volume descriptor
	binary.LittleEndian.PutUint32(img[16*2048+156+10:], 0xFFFFFFF0)

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/isos/GDI95.ISO", img, 0o644))

	require.NotPanics(t, func() {
		_, err := New(base, testPaths()).OpenPackage("/isos/GDI95.ISO")
		assert.ErrorContains(t, err, "beyond the image")
	})
}

func TestMountOrderOverrides(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/a/rules.yaml", []byte("first"), 0o644))
	require.NoError(t, afero.WriteFile(base, "/b/rules.yaml", []byte("second"), 0o644))
	require.NoError(t, afero.WriteFile(base, "/a/only-a.yaml", []byte("a"), 0o644))

	fs := New(base, testPaths())
	require.NoError(t, fs.Mount("/a", "base"))
	require.NoError(t, fs.Mount("/b", "override"))

	s, err := fs.Open("rules.yaml")
	require.NoError(t, err)
	assert.Equal(t, "second", readAll(t, s))

	s, err = fs.Open("base|rules.yaml")
	require.NoError(t, err)
	assert.Equal(t, "first", readAll(t, s))

	assert.True(t, fs.Exists("only-a.yaml"))
	assert.True(t, fs.Exists("base|only-a.yaml"))
	assert.False(t, fs.Exists("override|only-a.yaml"))
	assert.False(t, fs.Exists("unknown|rules.yaml"))

	assert.Equal(t, []MountInfo{{Name: "base", Package: "/a"}, {Name: "override", Package: "/b"}}, fs.Mounts())

	assert.True(t, fs.Unmount("override"))
	assert.False(t, fs.Unmount("override"))
	s, err = fs.Open("rules.yaml")
	require.NoError(t, err)
	assert.Equal(t, "first", readAll(t, s))

	fs.UnmountAll()
	assert.Empty(t, fs.Mounts())
}

func TestOpenPackageInsideMountedFolder(t *testing.T) {
	base := afero.NewMemMapFs()
	writeZip(t, base, "/steam/common/CnC/Data/CNCDATA/TIBERIAN_DAWN/CD1/GDI.zip", map[string]string{"gdi.mix": "gdi"})

	fs := New(base, testPaths())
	require.NoError(t, fs.Mount("/steam/common/CnC/Data", "remaster"))

	pkg, err := fs.OpenPackage("remaster|CNCDATA/TIBERIAN_DAWN/CD1/GDI.zip")
	require.NoError(t, err)
	defer pkg.Close()
	assert.True(t, pkg.Contains("gdi.mix"))

	_, err = fs.OpenPackage("missing|x.zip")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenPackageUnknownType(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/data/conquer.mix", []byte("x"), 0o644))

	fs := New(base, testPaths())
	_, err := fs.OpenPackage("/data/conquer.mix")
	assert.ErrorIs(t, err, ErrUnknownPackage)

	_, err = fs.OpenPackage("/data/missing.zip")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenPackageSniffsSignature(t *testing.T) {
	base := afero.NewMemMapFs()
	img := isotest.Build("CNC95", map[string][]byte{"game.dat": []byte("dat")})
	require.NoError(t, afero.WriteFile(base, "/media/GAME.BIN", img, 0o644))
	writeZip(t, base, "/media/DATA.CD", map[string]string{"conquer.mix": "c"})

	fs := New(base, testPaths())
	pkg, err := fs.OpenPackage("/media/GAME.BIN")
	require.NoError(t, err)
	assert.True(t, pkg.Contains("game.dat"))
	pkg.Close()

	pkg, err = fs.OpenPackage("/media/DATA.CD")
	require.NoError(t, err)
	assert.True(t, pkg.Contains("conquer.mix"))
	pkg.Close()
}
