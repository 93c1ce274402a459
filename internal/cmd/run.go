// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aibor/shoelace/internal/config"
	"github.com/aibor/shoelace/internal/initrd"
	"github.com/aibor/shoelace/internal/kernel"
	"github.com/aibor/shoelace/internal/qemu"
	"github.com/spf13/cobra"
)

// IO provides input and output details for the command.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// kernelArgs returns the kernel command line arguments. The config's
// arguments are appended last so they can override the defaults.
func kernelArgs(debug bool, extra []string) []string {
	args := []string{
		"console=ttyS0",
		"rdinit=" + initrd.InitPath,
	}

	if !debug {
		args = append(args, "quiet")
	}

	return append(args, extra...)
}

func run(ctx context.Context, flags *flags, cfg IO) error {
	configPath, err := flags.configPath()
	if err != nil {
		return err
	}

	conf, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	busyboxPath, err := flags.busyboxPath()
	if err != nil {
		return err
	}

	version, err := kernel.VersionFile(conf.Kernel.Image)
	if err != nil {
		return fmt.Errorf("kernel version: %w", err)
	}

	release := kernel.Release(version)

	slog.Info("Detected kernel version", slog.String("release", release))

	spec := initrd.Spec{
		Busybox:       busyboxPath,
		Init:          flags.Init,
		KernelRelease: release,
		ModulesDir:    conf.Kernel.ModulesDir,
		Modules:       conf.Initrd.Modules,
		ExtModules:    conf.Initrd.ExtModules,
		Files:         conf.Initrd.Files,
	}

	initrdPath, removeInitrd, err := initrd.BuildTempFile(ctx, "", spec, flags.KeepInitrd)
	if err != nil {
		return err
	}

	defer func() {
		err := removeInitrd()
		if err != nil {
			slog.Error("Failed to remove initrd",
				slog.String("path", initrdPath),
				slog.Any("error", err))
		}
	}()

	qemuSpec := qemu.CommandSpec{
		Kernel:     conf.Kernel.Image,
		Initrd:     initrdPath,
		KernelArgs: kernelArgs(flags.Debug, conf.Kernel.Args),
		Memory:     conf.Qemu.Memory,
		CPUs:       conf.Qemu.CPUs,
		Options:    conf.Qemu.Options,
		Devices:    conf.Qemu.Devices,
	}

	cmd, err := qemu.NewCommand(qemuSpec, cfg.Stdin, cfg.Stdout, cfg.Stderr)
	if err != nil {
		return fmt.Errorf("qemu command: %w", err)
	}

	return cmd.Run(ctx)
}

func handleRunError(err error) int {
	exitCode := 1

	var qemuErr *qemu.CommandError
	if errors.As(err, &qemuErr) && qemuErr.ExitCode != 0 {
		exitCode = qemuErr.ExitCode
	}

	// QEMU reports its own errors on stderr already.
	if !errors.Is(err, qemu.ErrNonZeroExitCode) {
		slog.Error(err.Error())
	}

	return exitCode
}

// Run is the main entry point for the CLI command. It returns the exit code.
func Run(ctx context.Context, args []string, cfg IO) int {
	var flags flags

	rootCmd := newRootCommand(&flags, cfg)
	rootCmd.SetArgs(args)
	rootCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		setupLogging(cfg.Stderr, flags.Debug)

		return run(cmd.Context(), &flags, cfg)
	}

	setupLogging(cfg.Stderr, false)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		return handleRunError(err)
	}

	return 0
}
