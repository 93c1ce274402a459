// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"runtime/debug"

	"github.com/aibor/shoelace/internal/config"
	"github.com/spf13/cobra"
)

type flags struct {
	ConfigPath string
	Init       string
	Busybox    string
	Debug      bool
	KeepInitrd bool
}

func newRootCommand(flags *flags, cfg IO) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shoelace",
		Short: "Boot a kernel in QEMU with a freshly built initramfs",
		Long: `shoelace builds an initramfs containing busybox, an init program,
kernel modules and extra files, and boots the given kernel with it in QEMU.

Settings are read from a shoelace.toml file. If no file is given, the
shoelace.toml in the current directory is used if present. Otherwise the
host's kernel is booted.`,
		Args:          cobra.NoArgs,
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetIn(cfg.Stdin)
	rootCmd.SetOut(cfg.Stdout)
	rootCmd.SetErr(cfg.Stderr)

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ParseArgsError{err: err, msg: "parse args"}
	})

	f := rootCmd.Flags()
	f.StringVarP(&flags.ConfigPath, "config", "c", "",
		"path to a shoelace.toml config file")
	f.StringVarP(&flags.Init, "init", "i", "",
		"program to run as init; if not given, busybox is used")
	f.StringVar(&flags.Busybox, "busybox", "",
		"path to statically linked busybox binary (default: from PATH)")
	f.BoolVar(&flags.Debug, "debug", false,
		"enable debug output and verbose guest kernel")
	f.BoolVar(&flags.KeepInitrd, "keep-initrd", false,
		"do not remove the initrd file after QEMU exited")

	return rootCmd
}

// configPath returns the config file to use. If none is set, the default
// file in the current directory is used if present.
func (f *flags) configPath() (string, error) {
	if f.ConfigPath != "" {
		return f.ConfigPath, nil
	}

	_, err := os.Stat(config.DefaultFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}

		return "", fmt.Errorf("default config: %w", err)
	}

	return config.DefaultFile, nil
}

// busyboxPath returns the busybox binary to use. If none is set, it is
// looked up in PATH.
func (f *flags) busyboxPath() (string, error) {
	if f.Busybox != "" {
		return f.Busybox, nil
	}

	path, err := exec.LookPath("busybox")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoBusybox, err)
	}

	return path, nil
}

func version() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return ErrReadBuildInfo.Error()
	}

	return buildInfo.Main.Version
}
