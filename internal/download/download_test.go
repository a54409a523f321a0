package download

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openra-mobius/mobius-content/internal/checksum"
	"github.com/openra-mobius/mobius-content/internal/fetch"
	"github.com/openra-mobius/mobius-content/internal/httputil"
	"github.com/openra-mobius/mobius-content/internal/manifest"
	"github.com/openra-mobius/mobius-content/internal/platform"
	"github.com/openra-mobius/mobius-content/internal/tick"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = "quick install archive contents"

type fixture struct {
	fs      afero.Fs
	manager *Manager
	srv     *httptest.Server
	mu      sync.Mutex
	events  []Event
}

func newFixture(t *testing.T, handler http.Handler) *fixture {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/tmp", 0o755))

	reg := fetch.NewRegistry()
	reg.Register(&fetch.HTTP{Client: srv.Client(), Retry: httputil.NoRetry()}, "http")

	m := NewManager(reg, fs, platform.Paths{OS: platform.Other, HomeDir: "/home/player", SupportDir: "/support"})
	m.TempDir = "/tmp"
	m.DiskUsage = func(string) (*disk.UsageStat, error) { return &disk.UsageStat{Free: 1 << 30}, nil }
	return &fixture{fs: fs, manager: m, srv: srv}
}

func (f *fixture) emit(e Event) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

func (f *fixture) states() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []State
	for _, e := range f.events {
		if len(out) == 0 || out[len(out)-1] != e.State {
			out = append(out, e.State)
		}
	}
	return out
}

func assertNoTempFiles(t *testing.T, fs afero.Fs) {
	t.Helper()
	entries, err := afero.ReadDir(fs, "/tmp")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func serve(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	})
}

func quickInstall(url string) *Download {
	return &Download{
		Title: "Quick Install",
		URL:   url,
		SHA1:  checksum.HashBytes([]byte(payload)),
		Path:  "^SupportDir|Content/cnc/quickinstall.zip",
	}
}

func TestDecodeDownload(t *testing.T) {
	root, err := manifest.LoadYAML(strings.NewReader(`
QuickInstall:
  Title: Quick Install Package
  MirrorList: https://www.openra.net/packages/cnc-quickinstall-mirrors.txt
  SHA1: 44241f68e69db9511db82cf83c174737ccda300b
  Path: ^SupportDir|Content/cnc/quickinstall.zip
`))
	require.NoError(t, err)
	dl, err := DecodeDownload(root.Get("QuickInstall"))
	require.NoError(t, err)
	assert.Equal(t, "Quick Install Package", dl.Title)
	assert.Equal(t, "", dl.URL)
	assert.Contains(t, dl.MirrorList, "mirrors.txt")
	assert.Equal(t, "^SupportDir|Content/cnc/quickinstall.zip", dl.Path)

	root, err = manifest.LoadYAML(strings.NewReader("QuickInstall:\n  Path: a.zip\n"))
	require.NoError(t, err)
	_, err = DecodeDownload(root.Get("QuickInstall"))
	var fe *manifest.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "URL", fe.Path)

	root, err = manifest.LoadYAML(strings.NewReader("QuickInstall:\n  URL: http://example.com/a.zip\n"))
	require.NoError(t, err)
	_, err = DecodeDownload(root.Get("QuickInstall"))
	assert.ErrorIs(t, err, manifest.ErrMissing)
}

func TestParseMirrorList(t *testing.T) {
	got := ParseMirrorList("http://a/x.zip\n\n   \n  http://b/x.zip  \r\nhttp://c/x.zip")
	assert.Equal(t, []string{"http://a/x.zip", "http://b/x.zip", "http://c/x.zip"}, got)
	assert.Empty(t, ParseMirrorList(" \n\n"))
}

func TestSizeFormatting(t *testing.T) {
	assert.Equal(t, 0, Magnitude(0))
	assert.Equal(t, 0, Magnitude(1023))
	assert.Equal(t, 1, Magnitude(1024))
	assert.Equal(t, 2, Magnitude(5<<20))
	assert.Equal(t, "0.00 bytes", FormatSize(0))
	assert.Equal(t, "1.50 KB", FormatSize(1536))
	assert.Equal(t, "3.00 GB", FormatSize(3<<30))
	assert.Equal(t, "YB", SizeSuffix(8))
	assert.Equal(t, "bytes", SizeSuffix(42))

	p := newProgress("mirror.example", 1<<20, 4<<20)
	assert.Equal(t, 25, p.Percentage)
	assert.Equal(t, "Downloading from mirror.example (1.00/4.00 MB, 25%)", p.String())

	p = newProgress("", 1536, -1)
	assert.True(t, p.Indeterminate())
	assert.Equal(t, "Downloading from unknown host (1.50 KB)", p.String())
}

func TestDisplayHost(t *testing.T) {
	assert.Equal(t, "bücher.example", DisplayHost("https://xn--bcher-kva.example/pkg.zip"))
	assert.Equal(t, "mirror.openra.net", DisplayHost("http://mirror.openra.net:8080/pkg.zip"))
	assert.Equal(t, UnknownHost, DisplayHost("not a url"))
}

func TestErrorCategories(t *testing.T) {
	cause := errors.New("boom")
	err := error(&Error{Stage: StateVerifying, Err: cause})
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTransfer)
	assert.Contains(t, err.Error(), "validation failed")

	assert.ErrorIs(t, &Error{Stage: StateFetchingMirrorList, Err: cause}, ErrMirrorList)
	assert.ErrorIs(t, &Error{Stage: StateDownloading, Err: cause}, ErrTransfer)
	assert.ErrorIs(t, &Error{Stage: StateSaving, Err: cause}, ErrSave)
}

func TestRunSavesVerifiedDownload(t *testing.T) {
	f := newFixture(t, serve(payload))

	target, err := f.manager.Run(context.Background(), quickInstall(f.srv.URL+"/quickinstall.zip"), f.emit)
	require.NoError(t, err)
	assert.Equal(t, "/support/Content/cnc/quickinstall.zip", target)

	data, err := afero.ReadFile(f.fs, target)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
	exists, _ := afero.Exists(f.fs, target+".part")
	assert.False(t, exists)
	assertNoTempFiles(t, f.fs)

	assert.Equal(t, []State{StateDownloading, StateVerifying, StateSaving, StateDone}, f.states())
}

func TestRunSkipsVerificationWithoutSHA1(t *testing.T) {
	f := newFixture(t, serve(payload))
	dl := quickInstall(f.srv.URL)
	dl.SHA1 = ""

	_, err := f.manager.Run(context.Background(), dl, f.emit)
	require.NoError(t, err)
	assert.NotContains(t, f.states(), StateVerifying)
}

func TestRunIntegrityMismatch(t *testing.T) {
	f := newFixture(t, serve("tampered"))

	_, err := f.manager.Run(context.Background(), quickInstall(f.srv.URL), f.emit)
	assert.ErrorIs(t, err, ErrIntegrity)
	exists, _ := afero.Exists(f.fs, "/support/Content/cnc/quickinstall.zip")
	assert.False(t, exists)
	assertNoTempFiles(t, f.fs)
}

func TestRunUsesMirrorList(t *testing.T) {
	mux := http.NewServeMux()
	var f *fixture
	mux.HandleFunc("/mirrors.txt", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "\n"+f.srv.URL+"/a.zip\n  \n"+f.srv.URL+"/b.zip\n")
	})
	mux.HandleFunc("/a.zip", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "wrong") })
	mux.HandleFunc("/b.zip", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, payload) })
	f = newFixture(t, mux)

	var offered int
	f.manager.Pick = func(n int) int { offered = n; return 1 }
	dl := quickInstall("")
	dl.MirrorList = f.srv.URL + "/mirrors.txt"

	_, err := f.manager.Run(context.Background(), dl, f.emit)
	require.NoError(t, err)
	assert.Equal(t, 2, offered)
	assert.Equal(t, StateFetchingMirrorList, f.states()[0])
}

func TestRunMirrorListFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/empty.txt", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, " \n\n") })
	mux.HandleFunc("/broken.txt", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	f := newFixture(t, mux)

	for _, name := range []string{"/empty.txt", "/broken.txt"} {
		dl := quickInstall("")
		dl.MirrorList = f.srv.URL + name
		_, err := f.manager.Run(context.Background(), dl, nil)
		assert.ErrorIs(t, err, ErrMirrorList, name)
	}
	assertNoTempFiles(t, f.fs)
}

func TestRunTransferFailure(t *testing.T) {
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := f.manager.Run(context.Background(), quickInstall(f.srv.URL), nil)
	assert.ErrorIs(t, err, ErrTransfer)
	var se *httputil.StatusError
	assert.ErrorAs(t, err, &se)
	assertNoTempFiles(t, f.fs)
}

func TestRunInsufficientSpace(t *testing.T) {
	f := newFixture(t, serve(payload))
	var queried string
	f.manager.DiskUsage = func(path string) (*disk.UsageStat, error) {
		queried = path
		return &disk.UsageStat{Free: 4}, nil
	}

	_, err := f.manager.Run(context.Background(), quickInstall(f.srv.URL), nil)
	assert.ErrorIs(t, err, ErrSave)
	assert.Equal(t, "/", queried)
	assertNoTempFiles(t, f.fs)
}

func TestRunMinFreeSpace(t *testing.T) {
	f := newFixture(t, serve(payload))
	f.manager.MinFreeSpace = 2 << 30

	_, err := f.manager.Run(context.Background(), quickInstall(f.srv.URL), nil)
	assert.ErrorIs(t, err, ErrSave)
}

func blockingServer(started chan<- struct{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.Write([]byte(strings.Repeat("a", 512)))
		w.(http.Flusher).Flush()
		close(started)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
}

func TestRunCancelled(t *testing.T) {
	started := make(chan struct{})
	f := newFixture(t, blockingServer(started))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := f.manager.Run(ctx, quickInstall(f.srv.URL), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assertNoTempFiles(t, f.fs)
}

// drain pumps the tick queue until cond holds.
func drain(t *testing.T, q *tick.Queue, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out draining tick queue")
		}
		q.Drain()
		time.Sleep(time.Millisecond)
	}
}

func TestTaskDeliversEventsOnDrain(t *testing.T) {
	f := newFixture(t, serve(payload))
	q := tick.NewQueue()

	var mu sync.Mutex
	var events []Event
	var saved string
	task := NewTask(f.manager, quickInstall(f.srv.URL), q,
		func(e Event) { mu.Lock(); events = append(events, e); mu.Unlock() },
		func(path string) { mu.Lock(); saved = path; mu.Unlock() })
	defer task.Close(context.Background())

	require.NoError(t, task.Start(context.Background()))
	require.NoError(t, task.Wait(context.Background()))

	mu.Lock()
	assert.Empty(t, events, "callbacks must wait for Drain")
	mu.Unlock()

	drain(t, q, func() bool { mu.Lock(); defer mu.Unlock(); return saved != "" })
	assert.Equal(t, "/support/Content/cnc/quickinstall.zip", saved)
	assert.Equal(t, StateDone, task.State())
	assert.Equal(t, StateDone, events[len(events)-1].State)
}

func TestTaskCancelSuppressesSuccess(t *testing.T) {
	f := newFixture(t, serve(payload))
	q := tick.NewQueue()
	succeeded := false
	var last Event
	task := NewTask(f.manager, quickInstall(f.srv.URL), q,
		func(e Event) { last = e },
		func(string) { succeeded = true })
	defer task.Close(context.Background())

	require.NoError(t, task.Start(context.Background()))
	require.NoError(t, task.Wait(context.Background()))
	task.Cancel()
	q.Drain()
	assert.False(t, succeeded)
	assert.Equal(t, StateCancelled, last.State)
	assert.Equal(t, StateCancelled, task.State())
}

func TestTaskRetryOnlyWhenTerminal(t *testing.T) {
	started := make(chan struct{})
	var failing atomic.Bool
	block := blockingServer(started)
	f := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		block.ServeHTTP(w, r)
	}))
	q := tick.NewQueue()
	var last Event
	task := NewTask(f.manager, quickInstall(f.srv.URL), q, func(e Event) { last = e }, nil)
	defer task.Close(context.Background())

	require.NoError(t, task.Start(context.Background()))
	<-started
	assert.ErrorIs(t, task.Retry(context.Background()), ErrBusy)
	assert.ErrorIs(t, task.Start(context.Background()), ErrBusy)

	task.Cancel()
	require.NoError(t, task.Wait(context.Background()))
	drain(t, q, func() bool { return last.State == StateCancelled })
	assert.Equal(t, StateCancelled, task.State())

	// The server now fails, so a retry ends in a transfer error.
	failing.Store(true)
	require.NoError(t, task.Retry(context.Background()))
	require.NoError(t, task.Wait(context.Background()))
	drain(t, q, func() bool { return last.State == StateError })
	assert.ErrorIs(t, task.Err(), ErrTransfer)
	assert.Contains(t, last.Status(), "Error:")
}
