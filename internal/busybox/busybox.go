// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package busybox installs a statically linked busybox binary and links for
// all of its applets into an initramfs.
package busybox

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/aibor/shoelace/internal/initramfs"
)

const (
	// Path is where busybox is installed in the archive.
	Path = "/bin/busybox"

	listTimeout = 5 * time.Second
)

// Adder adds files and symbolic links to an archive.
type Adder interface {
	AddFile(path string, contents initramfs.Contents, opts ...initramfs.Option) error
	AddSymlink(path, target string) error
}

type listFunc func(ctx context.Context, binary string) ([]string, error)

// Install adds the busybox binary at the given host path to the archive at
// [Path] and creates a symbolic link to it for each applet.
//
// The binary must be statically linked, since no shared objects are added.
// It is executed to list the applets, so it must be runnable on the host.
func Install(ctx context.Context, archive Adder, binary string) error {
	return install(ctx, archive, binary, listApplets)
}

func install(ctx context.Context, archive Adder, binary string, list listFunc) error {
	err := checkStatic(binary)
	if err != nil {
		return fmt.Errorf("busybox: %w", err)
	}

	err = archive.AddFile(Path, initramfs.HostFile(binary))
	if err != nil {
		return fmt.Errorf("add busybox: %w", err)
	}

	applets, err := list(ctx, binary)
	if err != nil {
		return err
	}

	for _, applet := range applets {
		slog.Debug("Busybox applet", slog.String("path", applet))

		err := archive.AddSymlink(applet, Path)
		if err != nil {
			return fmt.Errorf("add applet: %w", err)
		}
	}

	return nil
}

// listApplets runs the busybox binary to print the full paths of all its
// applets.
func listApplets(ctx context.Context, binary string) ([]string, error) {
	ctx, stop := context.WithTimeout(ctx, listTimeout)
	defer stop()

	var stdoutBuf, stderrBuf bytes.Buffer

	cmd := exec.CommandContext(ctx, binary, "--list-full")
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	if err != nil {
		return nil, fmt.Errorf("list applets: %w: %s", err, stderrBuf.String())
	}

	return parseApplets(&stdoutBuf)
}

// parseApplets returns the absolute path of each applet in the output of
// "busybox --list-full". Entries referring to busybox itself are skipped.
func parseApplets(r io.Reader) ([]string, error) {
	var applets []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.Contains(line, "busybox") {
			continue
		}

		applets = append(applets, "/"+strings.TrimPrefix(line, "/"))
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read applet list: %w", err)
	}

	return applets, nil
}
