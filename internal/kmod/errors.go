// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kmod

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateModuleName is returned if two module files share the same
	// name.
	ErrDuplicateModuleName = errors.New("duplicate module name")

	// ErrDependencyFormat is returned if modules.dep is malformed.
	ErrDependencyFormat = errors.New("malformed dependency file")

	// ErrUnknownModule is returned if a requested module is not found in the
	// module tree.
	ErrUnknownModule = errors.New("unknown module")
)

// DuplicateModuleNameError is returned if a module name maps to more than
// one file.
type DuplicateModuleNameError struct {
	Name   string
	First  string
	Second string
}

// Error implements the [error] interface.
func (e *DuplicateModuleNameError) Error() string {
	return fmt.Sprintf("%s: %s: %s and %s",
		ErrDuplicateModuleName, e.Name, e.First, e.Second)
}

// Is implements the [errors.Is] interface.
func (*DuplicateModuleNameError) Is(other error) bool {
	if other == ErrDuplicateModuleName {
		return true
	}

	_, ok := other.(*DuplicateModuleNameError)

	return ok
}

// DependencyFormatError indicates a malformed line in modules.dep.
type DependencyFormatError struct {
	Line int
	Text string
}

// Error implements the [error] interface.
func (e *DependencyFormatError) Error() string {
	return fmt.Sprintf("%s: line %d: %q", ErrDependencyFormat, e.Line, e.Text)
}

// Is implements the [errors.Is] interface.
func (*DependencyFormatError) Is(other error) bool {
	if other == ErrDependencyFormat {
		return true
	}

	_, ok := other.(*DependencyFormatError)

	return ok
}

// UnknownModuleError is returned if a module name is not found in the tree.
type UnknownModuleError struct {
	Name string
}

// Error implements the [error] interface.
func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownModule, e.Name)
}

// Is implements the [errors.Is] interface.
func (*UnknownModuleError) Is(other error) bool {
	if other == ErrUnknownModule {
		return true
	}

	_, ok := other.(*UnknownModuleError)

	return ok
}
