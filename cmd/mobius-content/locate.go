package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/openra-mobius/mobius-content/internal/locator"
	"github.com/spf13/cobra"
)

var registryPrefixes []string

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Search the machine for installed content",
}

var locateSteamCmd = &cobra.Command{
	Use:   "steam <appid>",
	Short: "Find a Steam installation by app id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid app id %q", args[0])
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		for _, lib := range a.env.Locator.SteamLibraries() {
			fmt.Fprintf(out, "library  %s\n", lib)
		}
		dir, ok := a.env.Locator.FindSteamInstallation(appID)
		if !ok {
			return &exitError{code: 2, msg: fmt.Sprintf("steam app %d is not installed", appID)}
		}
		fmt.Fprintf(out, "install  %s\n", dir)
		return nil
	},
}

var locateISOCmd = &cobra.Command{
	Use:   "iso <dir>",
	Short: "List ISO images in a directory by volume label",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		volumes, err := locator.ScanISOVolumes(a.fs, a.paths.ResolvePath(args[0]))
		if err != nil {
			return err
		}
		labels := make([]string, 0, len(volumes))
		for label := range volumes {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			fmt.Fprintf(cmd.OutOrStdout(), "%-32s %s\n", label, volumes[label])
		}
		return nil
	},
}

var locateRegistryCmd = &cobra.Command{
	Use:   "registry <key> <value>",
	Short: "Resolve an install directory from the Windows registry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		dirs := a.env.Locator.RegistryDirectories(registryPrefixes, args[0], args[1])
		if len(dirs) == 0 {
			return &exitError{code: 2, msg: "no registry directory found"}
		}
		for _, d := range dirs {
			fmt.Fprintln(cmd.OutOrStdout(), d)
		}
		return nil
	},
}

var locateDrivesCmd = &cobra.Command{
	Use:   "drives",
	Short: "List mounted volumes searched for original discs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		for _, d := range a.env.Locator.Drives() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-10s %s\n", d.Mountpoint, d.Fstype, d.Device)
		}
		return nil
	},
}

func init() {
	locateRegistryCmd.Flags().StringSliceVar(&registryPrefixes, "prefix", locator.DefaultRegistryPrefixes, "registry key prefixes to try in order")

	locateCmd.AddCommand(locateSteamCmd, locateISOCmd, locateRegistryCmd, locateDrivesCmd)
	rootCmd.AddCommand(locateCmd)
}
