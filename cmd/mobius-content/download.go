package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openra-mobius/mobius-content/internal/download"
	"github.com/openra-mobius/mobius-content/internal/fetch"
	"github.com/openra-mobius/mobius-content/internal/httputil"
	"github.com/openra-mobius/mobius-content/internal/tick"
	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the quick-install package (Ctrl-C cancels)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.selector()
		if err != nil {
			return err
		}
		dl := s.Content.QuickInstall
		if dl == nil {
			return fmt.Errorf("%s has no quick-install package", s.Content.Mod)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runDownload(ctx, a, dl)
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}

func (a *app) transport() *fetch.Registry {
	retry := httputil.DefaultRetryConfig()
	retry.MaxRetries = a.cfg.Retries
	return fetch.NewDefaultRegistry(fetch.Options{
		HTTPClient:         fetch.NewHTTPClient(time.Duration(a.cfg.HTTPTimeout) * time.Second),
		Retry:              retry,
		UserAgent:          "mobius-content/" + version,
		S3Region:           a.cfg.Mirror.S3Region,
		S3Endpoint:         a.cfg.Mirror.S3Endpoint,
		S3AccessKey:        a.cfg.Mirror.S3AccessKey,
		S3SecretKey:        a.cfg.Mirror.S3SecretKey,
		GCSAnonymous:       a.cfg.Mirror.GCSAnonymous,
		GCSCredentialsFile: a.cfg.Mirror.GCSCredentialsFile,
		AzureEndpoint:      a.cfg.Mirror.AzureEndpoint,
		B2Account:          a.cfg.Mirror.B2Account,
		B2Key:              a.cfg.Mirror.B2Key,
	})
}

// runDownload drives the task from this goroutine, which plays the role of
// the host update loop.
func runDownload(ctx context.Context, a *app, dl *download.Download) error {
	m := download.NewManager(a.transport(), a.fs, a.paths)
	m.MinFreeSpace = uint64(a.cfg.MinFreeMB) << 20

	q := tick.NewQueue()
	var saved string
	var last download.Event
	task := download.NewTask(m, dl, q,
		func(e download.Event) {
			last = e
			fmt.Fprintf(os.Stderr, "\r\033[K%s", e.Status())
		},
		func(path string) { saved = path })
	defer task.Close(context.Background())

	fmt.Fprintf(os.Stderr, "Downloading %s\n", dl.Title)
	if err := task.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	interrupted := ctx.Done()
	for {
		select {
		case <-q.Ready():
		case <-ticker.C:
		case <-interrupted:
			task.Cancel()
			interrupted = nil
		}
		q.Drain()

		switch {
		case saved != "":
			fmt.Fprintf(os.Stderr, "\nsaved to %s\n", saved)
			return nil
		case last.State == download.StateCancelled:
			fmt.Fprintln(os.Stderr)
			return context.Canceled
		case last.State == download.StateError:
			fmt.Fprintln(os.Stderr)
			return last.Err
		}
	}
}
