// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import "io/fs"

// Writer defines the low level archive writer interface. Names are relative
// to the archive root and are written as given.
type Writer interface {
	WriteRegular(name string, data []byte, perm fs.FileMode) error
	WriteDirectory(name string, perm fs.FileMode) error
	WriteLink(name, target string, perm fs.FileMode) error
	Close() error
}
