package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/openra-mobius/mobius-content/internal/content"
	"github.com/openra-mobius/mobius-content/internal/origin"
	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List content sources and whether they can be mounted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sel, err := a.selector()
		if err != nil {
			return err
		}
		return listSources(cmd.Context(), cmd.OutOrStdout(), sel)
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func (a *app) selector() (*content.Selector, error) {
	root, err := a.manifest()
	if err != nil {
		return nil, err
	}
	mc, err := content.DecodeModContent(root, a.factory)
	if err != nil {
		return nil, err
	}
	return &content.Selector{Content: mc, Env: a.env, Store: a.store()}, nil
}

func listSources(ctx context.Context, out io.Writer, s *content.Selector) error {
	candidates, err := s.Candidates(ctx)
	if err != nil {
		return err
	}
	current, err := s.Store.Load(s.Content.Mod)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tSOURCE\tTITLE\tAVAILABLE\tATTRIBUTES")
	for _, c := range candidates {
		marker := ""
		if c.Source.Name == current.Source {
			marker = "*"
		}
		avail := "no"
		if c.Available {
			avail = "yes"
			if s.NeedsQuickInstall(c.Source) {
				avail = "needs download"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", marker, c.Source.Name, c.Source.Title, avail, formatAttributes(c.Attributes))
	}
	return tw.Flush()
}

func formatAttributes(attrs origin.Attributes) string {
	parts := make([]string, 0, len(attrs))
	for _, name := range attrs.Names() {
		parts = append(parts, name+"="+strings.Join(attrs[name], ","))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
