// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// checkSink verifies the sink can be used for the archive. Files must be
// opened write-only. Any other non-nil [io.Writer] is accepted as is.
func checkSink(sink io.Writer) error {
	if sink == nil {
		return fmt.Errorf("%w: no sink", ErrSinkState)
	}

	file, isFile := sink.(*os.File)
	if !isFile {
		return nil
	}

	if file == nil {
		return fmt.Errorf("%w: nil file", ErrSinkState)
	}

	flags, err := unix.FcntlInt(file.Fd(), unix.F_GETFL, 0)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSinkState, file.Name(), err)
	}

	if flags&unix.O_ACCMODE != unix.O_WRONLY {
		return fmt.Errorf("%w: %s", ErrSinkState, file.Name())
	}

	return nil
}
