// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"errors"
	"io/fs"
)

var (
	// ErrInvalidPath is returned if an archive path is not absolute or
	// refers to the root directory itself.
	ErrInvalidPath = errors.New("path must be absolute")

	// ErrSinkState is returned if the output sink can not be used for
	// sequential writing.
	ErrSinkState = errors.New("sink is not write-only")

	// ErrContentsRead is returned if the contents of a file can not be read.
	ErrContentsRead = errors.New("read contents")

	// ErrArchiveClosed is returned if an entry is added after the archive has
	// been closed.
	ErrArchiveClosed = errors.New("archive is closed")

	// ErrFileNotRegular is returned if the source is not a regular file.
	ErrFileNotRegular = errors.New("source is not a regular file")

	// ErrUnsupportedType is returned if a file type can not be added to the
	// archive.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// PathError records an error and the operation and file path that caused it.
type PathError = fs.PathError
