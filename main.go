// Copyright 2026 Bjørn Erik Pedersen
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/bep/gitarchiveall/internal/lib"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd := newCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gitarchiveall [flags] OUTPUT_FILE",
		Short: "Archive a git repository including its submodules",
		Long: `Archive all files tracked by a git repository and its submodules.

Files matched by export-ignore patterns in .gitattributes, .git/info/attributes
or core.attributesfile are left out. The archive format (zip, tar, gz, tgz, bz2)
is taken from the output file extension unless --format is given.

Every flag can also be set with a GITARCHIVEALL_ environment variable,
e.g. GITARCHIVEALL_PREFIX.`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.Flags()
	flags.String("prefix", "", "prepend `PREFIX` to each filename in the archive (default: output file name without extension)")
	flags.BoolP("verbose", "v", false, "enable verbose mode")
	flags.Bool("no-exclude", false, "don't read .gitattributes files for patterns containing the export-ignore attribute")
	flags.Bool("force-submodules", false, "run git submodule init and update at each level before iterating submodules")
	flags.StringArray("extra", nil, "additional `FILE` to include in the archive (repeatable)")
	flags.Bool("dry-run", false, "don't archive anything, just show what would be done")
	flags.String("format", "", "archive `FORMAT`: zip, tar, gz, tgz or bz2")
	flags.StringP("dir", "C", ".", "run as if started in `DIR`")
	flags.Int("jobs", 1, "number of submodules to list concurrently")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args[0])
		if err != nil {
			return err
		}
		return lib.Create(cfg)
	}

	return cmd
}

func loadConfig(cmd *cobra.Command, output string) (lib.Config, error) {
	v := viper.New()
	v.SetEnvPrefix("gitarchiveall")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return lib.Config{}, err
	}

	if fi, err := os.Stat(output); err == nil && fi.IsDir() {
		return lib.Config{}, fmt.Errorf("you cannot use directory as output: %s", output)
	}

	return lib.Config{
		Root:            v.GetString("dir"),
		Output:          output,
		Prefix:          v.GetString("prefix"),
		Format:          v.GetString("format"),
		Verbose:         v.GetBool("verbose"),
		NoExclude:       v.GetBool("no-exclude"),
		ForceSubmodules: v.GetBool("force-submodules"),
		Extra:           v.GetStringSlice("extra"),
		DryRun:          v.GetBool("dry-run"),
		Jobs:            v.GetInt("jobs"),
	}, nil
}
