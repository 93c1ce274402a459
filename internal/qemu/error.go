// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"errors"
	"fmt"
)

var (
	// ErrArgumentCollision is returned if a unique QEMU argument is given
	// more than once, like a second "-kernel" in the extra options.
	ErrArgumentCollision = errors.New("qemu argument given twice")

	// ErrInvalidSpec is returned if a [CommandSpec] can not be turned into a
	// command line.
	ErrInvalidSpec = errors.New("invalid qemu command spec")

	// ErrNonZeroExitCode is returned if QEMU exited with a code other than 0.
	ErrNonZeroExitCode = errors.New("qemu exited with non-zero code")
)

// SpecError names the [CommandSpec] field that is missing or invalid.
type SpecError struct {
	Field  string
	Reason string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidSpec, e.Field, e.Reason)
}

// Is matches [ErrInvalidSpec] and any *SpecError.
func (*SpecError) Is(other error) bool {
	if other == ErrInvalidSpec {
		return true
	}

	_, ok := other.(*SpecError)

	return ok
}

// CommandError is returned by [Command.Run]. ExitCode is set if QEMU ran and
// exited with a non-zero code, in which case Err wraps
// [ErrNonZeroExitCode]. Otherwise QEMU could not be started or its output
// could not be forwarded.
type CommandError struct {
	Err      error
	ExitCode int
}

func (e *CommandError) Error() string {
	if e.Err == nil {
		return "run qemu"
	}

	return "run qemu: " + e.Err.Error()
}

// Is matches any *CommandError.
func (*CommandError) Is(other error) bool {
	_, ok := other.(*CommandError)
	return ok
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
