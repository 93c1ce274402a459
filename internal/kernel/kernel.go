// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package kernel reads metadata from x86 Linux kernel images.
package kernel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// Offset of the "HdrS" magic of the x86 boot protocol setup header.
	headerMagicOffset = 0x202

	// Offset of the kernel_version field. Its value is the offset of the
	// version string relative to the start of the setup header at 0x200.
	versionOffsetField = 0x20e

	setupHeaderBase = 0x200

	// Version strings are read in chunks of this size until the terminating
	// NUL byte is found.
	chunkSize = 64
)

var headerMagic = []byte("HdrS")

// ErrInvalidImage is returned if the data is not a bzImage with a readable
// version string.
var ErrInvalidImage = errors.New("invalid kernel image")

// Version returns the version string embedded in the given bzImage. Only
// positional reads are used, so the reader's cursor, if any, is untouched.
func Version(image io.ReaderAt) (string, error) {
	magic := make([]byte, len(headerMagic))

	err := readAt(image, magic, headerMagicOffset)
	if err != nil {
		return "", fmt.Errorf("read magic: %w", err)
	}

	if !bytes.Equal(magic, headerMagic) {
		return "", fmt.Errorf("%w: missing setup header magic", ErrInvalidImage)
	}

	field := make([]byte, 2)

	err = readAt(image, field, versionOffsetField)
	if err != nil {
		return "", fmt.Errorf("read version offset: %w", err)
	}

	offset := setupHeaderBase + int64(binary.LittleEndian.Uint16(field))

	version, err := readCString(image, offset)
	if err != nil {
		return "", fmt.Errorf("read version string: %w", err)
	}

	return version, nil
}

// VersionFile returns the version string of the bzImage at the given path.
func VersionFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	version, err := Version(file)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	return version, nil
}

// Release returns the release part of a kernel version string, which is the
// first whitespace separated field. This is the name of the directory in
// /lib/modules the kernel's modules are installed in.
func Release(version string) string {
	fields := strings.Fields(version)
	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}

// readCString reads a NUL-terminated ASCII string starting at offset.
func readCString(image io.ReaderAt, offset int64) (string, error) {
	var result []byte

	chunk := make([]byte, chunkSize)

	for {
		n, err := image.ReadAt(chunk, offset)
		if n == 0 && err != nil {
			return "", shortReadError(err)
		}

		if idx := bytes.IndexByte(chunk[:n], 0); idx >= 0 {
			result = append(result, chunk[:idx]...)
			break
		}

		if err != nil {
			return "", shortReadError(err)
		}

		result = append(result, chunk[:n]...)
		offset += int64(n)
	}

	for _, b := range result {
		if b > 0x7f {
			return "", fmt.Errorf("%w: non-ASCII version string", ErrInvalidImage)
		}
	}

	return string(result), nil
}

// readAt fills buf from the given offset. Running out of data is reported as
// [ErrInvalidImage].
func readAt(image io.ReaderAt, buf []byte, offset int64) error {
	n, err := image.ReadAt(buf, offset)
	if n == len(buf) {
		return nil
	}

	return shortReadError(err)
}

func shortReadError(err error) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: unexpected end of data", ErrInvalidImage)
	}

	return err
}
