// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"fmt"
	"io/fs"
	"path"
)

// PermissionFunc returns the permission for the file at the given name
// within a [fs.FS]. The mode is the one reported by the source.
type PermissionFunc func(name string, mode fs.FileMode) fs.FileMode

// WriteFS adds all regular files and symbolic links of the given [fs.FS] to
// the archive below dest. Directories are created implicitly. Files are
// added in lexical order as walked by [fs.WalkDir].
//
// If permFn is nil, the source file mode is used.
//
// Symbolic links are only supported if fsys implements [ReadLinkFS]. Any
// other file type results in [ErrUnsupportedType].
func WriteFS(archive *Archive, fsys fs.FS, dest string, permFn PermissionFunc) error {
	err := fs.WalkDir(fsys, ".", func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		target := path.Join(dest, name)

		switch entry.Type() {
		case fs.ModeDir:
			return nil
		case fs.ModeSymlink:
			link, err := ReadLink(fsys, name)
			if err != nil {
				return err
			}

			return archive.AddSymlink(target, link)
		case 0:
			info, err := entry.Info()
			if err != nil {
				return err //nolint:wrapcheck
			}

			var opts []Option
			if permFn != nil {
				opts = append(opts, WithPermission(permFn(name, info.Mode().Perm())))
			}

			return archive.AddFile(target, FSFile{FS: fsys, Name: name}, opts...)
		default:
			return &PathError{Op: "walk", Path: name, Err: ErrUnsupportedType}
		}
	})
	if err != nil {
		return fmt.Errorf("write fs to %s: %w", dest, err)
	}

	return nil
}
