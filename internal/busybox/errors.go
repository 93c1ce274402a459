// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package busybox

import "errors"

var (
	// ErrNotELFFile is returned if the file does not have an ELF magic number.
	ErrNotELFFile = errors.New("is not an ELF file")

	// ErrNotStatic is returned if the binary is dynamically linked.
	ErrNotStatic = errors.New("not statically linked")
)
