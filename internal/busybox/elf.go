// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: MIT

package busybox

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// checkStatic verifies the ELF file at the given path is statically linked.
// If the file does not have an ELF magic number, [ErrNotELFFile] is
// returned. If it has an interpreter, [ErrNotStatic] is returned.
func checkStatic(path string) error {
	interpreter, err := readInterpreter(path)
	if errors.Is(err, errNoInterpreter) {
		return nil
	}

	if err != nil {
		return err
	}

	return fmt.Errorf("%w: interpreter %s", ErrNotStatic, interpreter)
}

var errNoInterpreter = errors.New("no interpreter in ELF file")

// readInterpreter fetches the ELF interpreter path from the ELF file.
func readInterpreter(path string) (string, error) {
	elfFile, err := elf.Open(path)
	if err != nil {
		var formatErr *elf.FormatError
		if errors.As(err, &formatErr) ||
			errors.Is(err, io.EOF) ||
			errors.Is(err, io.ErrUnexpectedEOF) {
			return "", fmt.Errorf("%w: %s: %v", ErrNotELFFile, path, err)
		}

		return "", err //nolint:wrapcheck
	}
	defer elfFile.Close()

	for _, prog := range elfFile.Progs {
		if prog.Type != elf.PT_INTERP {
			continue
		}

		buf := make([]byte, prog.Filesz)

		_, err := io.ReadFull(prog.Open(), buf)
		if err != nil {
			return "", fmt.Errorf("read interpreter: %w", err)
		}

		// Only terminate if the found path is not empty. If there is no other
		// prog with a valid path, it will result in the final errNoInterpreter.
		interpreter := unix.ByteSliceToString(buf)
		if interpreter != "" {
			return interpreter, nil
		}
	}

	return "", errNoInterpreter
}
