package download

import (
	"fmt"
	"net/url"

	"golang.org/x/net/idna"
)

// State is a stage of the download pipeline.
type State string

const (
	StateIdle               State = "idle"
	StateFetchingMirrorList State = "fetching-mirror-list"
	StateDownloading        State = "downloading"
	StateVerifying          State = "verifying"
	StateSaving             State = "saving"
	StateDone               State = "done"
	StateError              State = "error"
	StateCancelled          State = "cancelled"
)

// Terminal reports whether no further events follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError || s == StateCancelled
}

// UnknownHost is displayed before a mirror host is known.
const UnknownHost = "unknown host"

// Progress describes the transfer at one point in time. Total is -1 when the
// mirror did not report a size.
type Progress struct {
	Host       string
	Received   int64
	Total      int64
	Percentage int
}

func newProgress(host string, received, total int64) Progress {
	p := Progress{Host: host, Received: received, Total: total}
	if total > 0 {
		p.Percentage = int(received * 100 / total)
	}
	return p
}

// Indeterminate reports whether no percentage can be shown.
func (p Progress) Indeterminate() bool { return p.Total < 0 }

func (p Progress) String() string {
	host := p.Host
	if host == "" {
		host = UnknownHost
	}
	if p.Total < 0 {
		mag := Magnitude(p.Received)
		return fmt.Sprintf("Downloading from %s (%.2f %s)", host, Scaled(p.Received, mag), SizeSuffix(mag))
	}
	mag := Magnitude(p.Total)
	return fmt.Sprintf("Downloading from %s (%.2f/%.2f %s, %d%%)",
		host, Scaled(p.Received, mag), Scaled(p.Total, mag), SizeSuffix(mag), p.Percentage)
}

// Event is published on every state change and progress update.
type Event struct {
	State    State
	Progress Progress
	Err      error
}

// Status returns the human-readable status line for e.
func (e Event) Status() string {
	switch e.State {
	case StateFetchingMirrorList:
		return "Fetching list of mirrors..."
	case StateDownloading:
		return e.Progress.String()
	case StateVerifying:
		return "Verifying archive..."
	case StateSaving:
		return "Saving..."
	case StateDone:
		return "Download complete"
	case StateCancelled:
		return "Download cancelled"
	case StateError:
		host := e.Progress.Host
		if host == "" {
			host = UnknownHost
		}
		return fmt.Sprintf("%s: Error: %v", host, e.Err)
	default:
		return ""
	}
}

// DisplayHost returns the host of rawURL for display, converting punycode
// labels to Unicode.
func DisplayHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return UnknownHost
	}
	host := u.Hostname()
	if uni, err := idna.ToUnicode(host); err == nil {
		return uni
	}
	return host
}
