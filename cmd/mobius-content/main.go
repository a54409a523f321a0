package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/openra-mobius/mobius-content/internal/config"
	"github.com/openra-mobius/mobius-content/internal/locator"
	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/openra-mobius/mobius-content/internal/manifest"
	"github.com/openra-mobius/mobius-content/internal/origin"
	"github.com/openra-mobius/mobius-content/internal/platform"
	"github.com/openra-mobius/mobius-content/internal/settings"
	"github.com/openra-mobius/mobius-content/internal/vfs"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var log = logging.L("main")

var (
	version      = "0.1.0"
	cfgFile      string
	manifestPath string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:           "mobius-content",
	Short:         "Mobius content source manager",
	Long:          `mobius-content locates, verifies, mounts and downloads the game content a mod needs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mobius-content v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is mobius-content.yaml in the support directory)")
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "content manifest (overrides the manifest config key)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
}

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(os.Stderr, ee.msg)
		}
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// app bundles what every content command needs.
type app struct {
	cfg     *config.Config
	paths   platform.Paths
	fs      afero.Fs
	env     *origin.Env
	factory *origin.Factory
	logOut  io.Closer
}

// newApp loads config and sets up logging. The manifest is read separately
// since locate commands do not need one.
func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if manifestPath != "" {
		cfg.Manifest = manifestPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(result.Fatals...))
	}

	a := &app{cfg: cfg, paths: cfg.Paths(), fs: afero.NewOsFs(), factory: origin.DefaultFactory()}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		w, err := logging.NewRotatingWriter(a.paths.ResolvePath(cfg.LogFile), cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out, a.logOut = w, w
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)
	for _, w := range result.Warnings {
		log.Warn("config adjusted", logging.KeyError, w)
	}

	a.env = &origin.Env{
		FS:      vfs.New(a.fs, a.paths),
		Locator: locator.New(a.fs, a.paths),
	}
	return a, nil
}

func (a *app) manifest() (*manifest.Node, error) {
	path := a.paths.ResolvePath(a.cfg.Manifest)
	root, err := manifest.LoadFile(a.fs, path)
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", path, err)
	}
	return root, nil
}

func (a *app) store() *settings.Store {
	return settings.NewStore(a.fs, a.cfg.SettingsPath(a.paths))
}

func (a *app) Close() {
	a.env.FS.UnmountAll()
	if a.logOut != nil {
		a.logOut.Close()
	}
}
