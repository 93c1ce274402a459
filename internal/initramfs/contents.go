// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"fmt"
	"io/fs"
	"os"
)

// DefaultPermission is the permission of files added from raw bytes if no
// permission is given explicitly.
const DefaultPermission fs.FileMode = 0o664

// Contents is the source of the data of a regular file in the archive.
type Contents interface {
	// Read returns the complete data and the permission bits to use if the
	// caller does not set them explicitly.
	Read() ([]byte, fs.FileMode, error)
}

var (
	_ Contents = Bytes(nil)
	_ Contents = HostFile("")
	_ Contents = FSFile{}
)

// Bytes are raw file contents. Their default permission is
// [DefaultPermission].
type Bytes []byte

// Read implements [Contents].
func (b Bytes) Read() ([]byte, fs.FileMode, error) {
	return b, DefaultPermission, nil
}

// HostFile is the path of a file on the host. It is read completely when
// added. The default permission is taken from the file's mode bits.
type HostFile string

// Read implements [Contents].
func (f HostFile) Read() ([]byte, fs.FileMode, error) {
	info, err := os.Stat(string(f))
	if err != nil {
		return nil, 0, err
	}

	if !info.Mode().IsRegular() {
		return nil, 0, &PathError{
			Op:   "read",
			Path: string(f),
			Err:  ErrFileNotRegular,
		}
	}

	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, 0, err
	}

	return data, info.Mode().Perm(), nil
}

// FSFile is a file in an [fs.FS]. Like [HostFile] it is read completely and
// its default permission is taken from the file's mode bits.
type FSFile struct {
	FS   fs.FS
	Name string
}

// Read implements [Contents].
func (f FSFile) Read() ([]byte, fs.FileMode, error) {
	if f.FS == nil {
		return nil, 0, fmt.Errorf("%s: no file system", f.Name)
	}

	info, err := fs.Stat(f.FS, f.Name)
	if err != nil {
		return nil, 0, err
	}

	if !info.Mode().IsRegular() {
		return nil, 0, &PathError{
			Op:   "read",
			Path: f.Name,
			Err:  ErrFileNotRegular,
		}
	}

	data, err := fs.ReadFile(f.FS, f.Name)
	if err != nil {
		return nil, 0, err
	}

	return data, info.Mode().Perm(), nil
}
