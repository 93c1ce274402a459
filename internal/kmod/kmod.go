// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package kmod copies kernel modules and their direct dependencies from a
// host module tree into an initramfs.
//
// Only direct dependencies as listed in modules.dep are copied. Dependencies
// of dependencies are not followed.
package kmod

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aibor/shoelace/internal/initramfs"
	"golang.org/x/sync/errgroup"
)

const (
	// ModuleExtension is the file name extension of kernel modules.
	ModuleExtension = ".ko"

	// ModulesDir is the directory module trees are installed in.
	ModulesDir = "/lib/modules"

	// AutoloadFile lists the modules to load at boot.
	AutoloadFile = "/etc/modules"

	// DepFile is the dependency file within a module tree.
	DepFile = "modules.dep"

	kernelDir = "kernel"
	extraDir  = "extra"

	prefetchLimit     = 4
	initialLineBuffer = 64 * 1024
	maxLineLength     = 1024 * 1024
)

// MetadataFiles are copied from the module tree as they are.
var MetadataFiles = []string{
	"modules.alias",
	"modules.builtin",
	DepFile,
	"modules.devname",
	"modules.order",
	"modules.softdep",
	"modules.symbols",
}

// Adder adds files to an archive.
type Adder interface {
	AddFile(path string, contents initramfs.Contents, opts ...initramfs.Option) error
}

// Tree is a module tree of a specific kernel release, usually
// /lib/modules/<release>.
type Tree struct {
	FS      fs.FS
	Release string
}

// NewTree returns the [Tree] for the given release in the given base
// directory.
func NewTree(modulesDir, release string) Tree {
	return Tree{
		FS:      os.DirFS(filepath.Join(modulesDir, release)),
		Release: release,
	}
}

// Target returns the directory the tree is copied to in the archive.
func (t Tree) Target() string {
	return path.Join(ModulesDir, t.Release)
}

type prefetched struct {
	relPath string
	data    []byte
	perm    fs.FileMode
	err     error
}

type copier struct {
	archive Adder
	tree    Tree
	copied  map[string]struct{}
}

// CopyModules copies the metadata files of the tree, the modules with the
// given names and their direct dependencies into the archive. External
// modules are host paths of module files that are copied into the "extra"
// directory of the tree. Finally, [AutoloadFile] is written listing all
// module names in the given order, followed by the external ones.
//
// Each file is copied only once. Any error aborts the copying. Files already
// written are not removed from the archive.
func CopyModules(
	ctx context.Context,
	archive Adder,
	tree Tree,
	names []string,
	external []string,
) error {
	index, err := BuildNameIndex(tree.FS)
	if err != nil {
		return err
	}

	depFile, err := tree.FS.Open(DepFile)
	if err != nil {
		return fmt.Errorf("open dependency file: %w", err)
	}

	graph, err := ParseDepGraph(depFile)
	_ = depFile.Close()

	if err != nil {
		return err
	}

	slog.Debug("Module tree indexed",
		slog.String("release", tree.Release),
		slog.Int("modules", len(index)),
		slog.Int("dependency_entries", len(graph)))

	c := copier{
		archive: archive,
		tree:    tree,
		copied:  make(map[string]struct{}),
	}

	err = c.copy(ctx, MetadataFiles)
	if err != nil {
		return err
	}

	for _, name := range names {
		relPath, exists := index[name]
		if !exists {
			return &UnknownModuleError{Name: name}
		}

		files := append([]string{relPath}, graph[relPath]...)

		err := c.copy(ctx, files)
		if err != nil {
			return fmt.Errorf("module %s: %w", name, err)
		}
	}

	externalNames, err := c.copyExternal(index, external)
	if err != nil {
		return err
	}

	return writeAutoload(archive, append(slices.Clone(names), externalNames...))
}

// copy reads all files not copied yet concurrently and adds them to the
// archive in the given order.
func (c *copier) copy(ctx context.Context, relPaths []string) error {
	var pending []*prefetched

	seen := make(map[string]struct{})

	for _, relPath := range relPaths {
		if _, exists := c.copied[relPath]; exists {
			continue
		}

		if _, exists := seen[relPath]; exists {
			continue
		}

		seen[relPath] = struct{}{}

		pending = append(pending, &prefetched{relPath: relPath})
	}

	var eg errgroup.Group

	eg.SetLimit(prefetchLimit)

	for _, file := range pending {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err //nolint:wrapcheck
			}

			file.data, file.perm, file.err = initramfs.FSFile{
				FS:   c.tree.FS,
				Name: file.relPath,
			}.Read()

			// Failures are reported in list order below.
			return nil
		})
	}

	err := eg.Wait()
	if err != nil {
		return fmt.Errorf("read module files: %w", err)
	}

	for _, file := range pending {
		if file.err != nil {
			return fmt.Errorf("%w: %w", initramfs.ErrContentsRead, file.err)
		}
	}

	for _, file := range pending {
		err := c.archive.AddFile(
			path.Join(c.tree.Target(), file.relPath),
			initramfs.Bytes(file.data),
			initramfs.WithPermission(file.perm),
		)
		if err != nil {
			return err
		}

		c.copied[file.relPath] = struct{}{}
	}

	return nil
}

// copyExternal copies the given host module files into the extra directory
// and returns their module names.
func (c *copier) copyExternal(index NameIndex, files []string) ([]string, error) {
	names := make([]string, 0, len(files))
	added := make(map[string]string, len(files))

	for _, file := range files {
		name := ModuleName(file)

		if existing, exists := index[name]; exists {
			return nil, &DuplicateModuleNameError{
				Name:   name,
				First:  existing,
				Second: file,
			}
		}

		if existing, exists := added[name]; exists {
			return nil, &DuplicateModuleNameError{
				Name:   name,
				First:  existing,
				Second: file,
			}
		}

		added[name] = file

		err := c.archive.AddFile(
			path.Join(c.tree.Target(), extraDir, filepath.Base(file)),
			initramfs.HostFile(file),
		)
		if err != nil {
			return nil, fmt.Errorf("external module %s: %w", name, err)
		}

		names = append(names, name)
	}

	return names, nil
}

func writeAutoload(archive Adder, names []string) error {
	var content strings.Builder

	for _, name := range names {
		content.WriteString(name)
		content.WriteByte('\n')
	}

	err := archive.AddFile(AutoloadFile, initramfs.Bytes(content.String()))
	if err != nil {
		return fmt.Errorf("write autoload file: %w", err)
	}

	return nil
}
