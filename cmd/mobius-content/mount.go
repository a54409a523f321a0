package main

import (
	"fmt"
	"strings"

	"github.com/openra-mobius/mobius-content/internal/content"
	"github.com/openra-mobius/mobius-content/internal/manifest"
	"github.com/spf13/cobra"
)

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount the selected content source as the mod loader would",
	Long: `Mounts system packages, the persisted content source and override packages,
then prints the resulting mount table. Exits with status 2 when content is
unavailable and the content selector mod should be loaded instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		root, err := a.manifest()
		if err != nil {
			return err
		}
		mod, err := manifest.Required(root, "Mod")
		if err != nil {
			return err
		}
		loader, err := content.DecodeLoader(root, a.factory)
		if err != nil {
			return err
		}
		sel, err := a.store().Load(mod)
		if err != nil {
			return err
		}

		avail, err := loader.Mount(a.env, sel)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, m := range a.env.FS.Mounts() {
			name := m.Name
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(out, "%2d  %-12s %s\n", i, name, m.Package)
		}
		if !avail.Available {
			source := avail.Source
			if strings.TrimSpace(source) == "" {
				source = "(none)"
			}
			return &exitError{code: 2, msg: fmt.Sprintf("content source %s unavailable; load %s", source, avail.Redirect)}
		}
		fmt.Fprintf(out, "content available from %s\n", avail.Source)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mountCmd)
}
