// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"strings"
)

const (
	// DirPermission is the permission of implicitly created directories.
	DirPermission fs.FileMode = 0o755

	// LinkPermission is the permission of symbolic links.
	LinkPermission fs.FileMode = 0o777
)

// Option modifies how a single entry is added.
type Option func(*entryOptions)

type entryOptions struct {
	perm    fs.FileMode
	permSet bool
}

// WithPermission sets the permission bits of the entry. Without it, the
// default permission of the [Contents] is used.
func WithPermission(perm fs.FileMode) Option {
	return func(o *entryOptions) {
		o.perm = perm
		o.permSet = true
	}
}

// Archive is an append-only initramfs archive.
//
// Create a new instance with [New]. Add entries with [Archive.AddFile],
// [Archive.AddSymlink] and [Archive.AddDirectory]. Each archive path must be
// absolute. Once done, call [Archive.Close] to write the trailer. It is safe
// to defer [Archive.Close] right after [New] in addition to an explicit call,
// the trailer is written only once.
//
// Adding a regular file or symbolic link with a path that is already present
// is not detected and results in an archive with undefined content.
//
// An Archive is not safe for concurrent use.
type Archive struct {
	writer    Writer
	dirsAdded map[string]struct{}
	closed    bool
}

// New creates a new [Archive] writing to the given sink. If the sink is an
// [os.File] it must be opened write-only, otherwise [ErrSinkState] is
// returned.
func New(sink io.Writer) (*Archive, error) {
	err := checkSink(sink)
	if err != nil {
		return nil, err
	}

	return newArchive(NewCPIOWriter(sink)), nil
}

func newArchive(writer Writer) *Archive {
	return &Archive{
		writer:    writer,
		dirsAdded: make(map[string]struct{}),
	}
}

// AddFile adds a regular file at the given path. The contents are read
// completely before anything is written. Missing parent directories are
// created with [DirPermission].
func (a *Archive) AddFile(
	path string,
	contents Contents,
	opts ...Option,
) error {
	name, err := a.prepare("add", path)
	if err != nil {
		return err
	}

	data, perm, err := contents.Read()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrContentsRead, err)
	}

	var options entryOptions
	for _, opt := range opts {
		opt(&options)
	}

	if options.permSet {
		perm = options.perm
	}

	slog.Debug("Adding file to initramfs",
		slog.String("name", name),
		slog.Int("size", len(data)),
		slog.String("permission", perm.Perm().String()))

	err = a.addParents(name)
	if err != nil {
		return err
	}

	return a.writer.WriteRegular(name, data, perm)
}

// AddSymlink adds a symbolic link at the given path pointing to target. The
// target is written as is. Missing parent directories are created with
// [DirPermission].
func (a *Archive) AddSymlink(path, target string) error {
	name, err := a.prepare("symlink", path)
	if err != nil {
		return err
	}

	err = a.addParents(name)
	if err != nil {
		return err
	}

	slog.Debug("Adding symlink to initramfs",
		slog.String("name", name),
		slog.String("target", target))

	return a.writer.WriteLink(name, target, LinkPermission)
}

// AddDirectory adds a directory at the given path with the given permission.
// It is a no-op if the directory has been added already, either explicitly
// or as parent of another entry.
func (a *Archive) AddDirectory(path string, perm fs.FileMode) error {
	name, err := a.prepare("mkdir", path)
	if err != nil {
		return err
	}

	err = a.addParents(name)
	if err != nil {
		return err
	}

	return a.addDirectory(name, perm)
}

// Close writes the archive trailer. Subsequent calls do nothing and return
// nil. Adding entries after Close fails with [ErrArchiveClosed].
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}

	a.closed = true

	return a.writer.Close()
}

// prepare checks the archive is still open and returns the archive entry
// name for the given path.
func (a *Archive) prepare(op, path string) (string, error) {
	if a.closed {
		return "", &PathError{Op: op, Path: path, Err: ErrArchiveClosed}
	}

	name, err := entryName(path)
	if err != nil {
		return "", &PathError{Op: op, Path: path, Err: err}
	}

	return name, nil
}

// addParents creates all missing ancestor directories of the given name,
// top-most first.
func (a *Archive) addParents(name string) error {
	var parents []string

	for dir := path.Dir(name); dir != "."; dir = path.Dir(dir) {
		parents = append(parents, dir)
	}

	for idx := len(parents) - 1; idx >= 0; idx-- {
		err := a.addDirectory(parents[idx], DirPermission)
		if err != nil {
			return err
		}
	}

	return nil
}

func (a *Archive) addDirectory(name string, perm fs.FileMode) error {
	if _, exists := a.dirsAdded[name]; exists {
		return nil
	}

	a.dirsAdded[name] = struct{}{}

	slog.Debug("Creating directory in initramfs", slog.String("name", name))

	return a.writer.WriteDirectory(name, perm)
}

// entryName converts an absolute archive path into the entry name written
// into the archive, which is the cleaned path without the leading slash.
func entryName(p string) (string, error) {
	if !path.IsAbs(p) {
		return "", ErrInvalidPath
	}

	name := strings.TrimPrefix(path.Clean(p), "/")
	if name == "" {
		return "", ErrInvalidPath
	}

	return name, nil
}
