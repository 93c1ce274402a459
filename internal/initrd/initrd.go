// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package initrd assembles the initramfs booted by shoelace: busybox, the
// init program, static system files, kernel modules and extra files.
package initrd

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"slices"

	"github.com/aibor/shoelace/internal/busybox"
	"github.com/aibor/shoelace/internal/initramfs"
	"github.com/aibor/shoelace/internal/kmod"
)

// InitPath is the path of the init program in the archive. The kernel must
// be told about it with "rdinit=".
const InitPath = "/init"

// ErrNoModulesDir is returned if modules are requested but no modules
// directory is set.
var ErrNoModulesDir = errors.New("modules directory not set")

//go:embed static
var static embed.FS

var installBusybox = busybox.Install

// Directories the init script mounts file systems on.
var mountPoints = []string{"/dev", "/proc", "/run", "/sys", "/tmp"}

// Spec describes the content of an initramfs.
type Spec struct {
	// Busybox is the host path of a statically linked busybox binary.
	Busybox string

	// Init is the host path of the program to run as init. If empty,
	// busybox is used.
	Init string

	// KernelRelease selects the module tree in ModulesDir.
	KernelRelease string

	// ModulesDir is the host directory containing module trees, usually
	// /lib/modules. Required if any modules are requested.
	ModulesDir string

	// Modules are names of modules in the module tree to add.
	Modules []string

	// ExtModules are host paths of additional module files.
	ExtModules []string

	// Files maps archive paths to host paths of additional files.
	Files map[string]string
}

// Build writes the initramfs described by spec to w. If w is an [os.File] it
// must be opened write-only.
func Build(ctx context.Context, w io.Writer, spec Spec) error {
	archive, err := initramfs.New(w)
	if err != nil {
		return err
	}
	defer archive.Close()

	err = installBusybox(ctx, archive, spec.Busybox)
	if err != nil {
		return err
	}

	err = addInit(archive, spec.Init)
	if err != nil {
		return err
	}

	for _, dir := range mountPoints {
		err := archive.AddDirectory(dir, initramfs.DirPermission)
		if err != nil {
			return fmt.Errorf("add mount point: %w", err)
		}
	}

	staticFS, err := fs.Sub(static, "static")
	if err != nil {
		return fmt.Errorf("static content: %w", err)
	}

	err = initramfs.WriteFS(archive, staticFS, "/", staticPermission)
	if err != nil {
		return fmt.Errorf("add static content: %w", err)
	}

	if len(spec.Modules) > 0 || len(spec.ExtModules) > 0 {
		if spec.ModulesDir == "" {
			return ErrNoModulesDir
		}

		tree := kmod.NewTree(spec.ModulesDir, spec.KernelRelease)

		err := kmod.CopyModules(ctx, archive, tree, spec.Modules, spec.ExtModules)
		if err != nil {
			return fmt.Errorf("copy modules: %w", err)
		}
	}

	for _, guestPath := range slices.Sorted(maps.Keys(spec.Files)) {
		err := archive.AddFile(guestPath, initramfs.HostFile(spec.Files[guestPath]))
		if err != nil {
			return fmt.Errorf("add file: %w", err)
		}
	}

	err = archive.Close()
	if err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	return nil
}

func addInit(archive *initramfs.Archive, init string) error {
	if init == "" {
		return archive.AddSymlink(InitPath, busybox.Path)
	}

	err := archive.AddFile(InitPath, initramfs.HostFile(init))
	if err != nil {
		return fmt.Errorf("add init: %w", err)
	}

	return nil
}

// staticPermission makes init scripts executable and all other static files
// world readable.
func staticPermission(name string, _ fs.FileMode) fs.FileMode {
	if path.Dir(name) == "etc/init.d" {
		return 0o755
	}

	return 0o644
}

// BuildTempFile builds the initramfs into a new temporary file in the given
// directory. If dir is the empty string, the default directory is used as
// returned by [os.TempDir].
//
// It returns the path to the created file and a function that removes the
// file, unless keep is true. The caller is responsible for calling it once
// the file is not needed anymore.
func BuildTempFile(
	ctx context.Context,
	dir string,
	spec Spec,
	keep bool,
) (string, func() error, error) {
	name, err := writeTempFile(ctx, dir, spec)
	if err != nil {
		return "", nil, err
	}

	slog.Info("Initrd created", slog.String("path", name))

	var removeFn func() error

	if keep {
		removeFn = func() error {
			slog.Info("Keep initrd", slog.String("path", name))
			return nil
		}
	} else {
		removeFn = func() error {
			slog.Debug("Remove initrd", slog.String("path", name))
			return os.Remove(name)
		}
	}

	return name, removeFn, nil
}

func writeTempFile(ctx context.Context, dir string, spec Spec) (string, error) {
	tmpFile, err := os.CreateTemp(dir, "shoelace_initrd_*.img")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	name := tmpFile.Name()
	_ = tmpFile.Close()

	// The archive requires a write-only sink.
	file, err := os.OpenFile(name, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("open temp file: %w", err)
	}

	err = Build(ctx, file, spec)

	closeErr := file.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("close temp file: %w", closeErr)
	}

	if err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("build initrd: %w", err)
	}

	return name, nil
}
