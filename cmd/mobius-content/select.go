package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var selectCmd = &cobra.Command{
	Use:   "select [source] [attr=value...]",
	Short: "Persist a content source and attribute choice",
	Long: `With no arguments the stored selection is normalised: an unavailable source
is replaced by the first available one and attributes are defaulted.`,
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

		if len(args) == 0 {
			sel, err := s.Normalize(cmd.Context())
			if err != nil {
				return err
			}
			if sel.Source == "" {
				return errors.New("no content source is available")
			}
		} else {
			if _, err := s.Select(cmd.Context(), args[0]); err != nil {
				return err
			}
			for _, kv := range args[1:] {
				attr, value, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("expected attr=value, got %q", kv)
				}
				if _, err := s.SetAttribute(attr, value); err != nil {
					return err
				}
			}
		}

		sel, err := s.Store.Load(s.Content.Mod)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n", s.Content.Mod, sel.Source)
		names := make([]string, 0, len(sel.Attributes))
		for name := range sel.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			label := sel.Attributes[name]
			if attr, ok := s.Content.Attribute(name); ok {
				label = attr.Label(label)
			}
			fmt.Fprintf(out, "  %s: %s\n", name, label)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(selectCmd)
}
