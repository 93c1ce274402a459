// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import "io/fs"

// ReadLinkFS is a [fs.FS] with an additional method for reading the target of
// a symbolic link.
//
// Replace with [fs.ReadLinkFS] once the module requires Go 1.25.
type ReadLinkFS interface {
	fs.FS

	ReadLink(name string) (string, error)
}

// ReadLink returns the destination a symbolic link points to.
//
// The given [fs.FS] must implement [ReadLinkFS], otherwise
// [ErrUnsupportedType] is returned.
func ReadLink(fsys fs.FS, name string) (string, error) {
	rlFS, ok := fsys.(ReadLinkFS)
	if !ok {
		return "", &PathError{
			Op:   "readlink",
			Path: name,
			Err:  ErrUnsupportedType,
		}
	}

	return rlFS.ReadLink(name) //nolint:wrapcheck
}
