// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: MIT

package busybox

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	elfHeaderSize = 64
	progSize      = 56
)

// writeELF writes a minimal x86_64 ELF executable without sections. If
// interpreter is not empty, a PT_INTERP program header is added.
func writeELF(t *testing.T, interpreter string) string {
	t.Helper()

	var phnum uint16
	if interpreter != "" {
		phnum = 1
	}

	header := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Phoff:     elfHeaderSize,
		Ehsize:    elfHeaderSize,
		Phentsize: progSize,
		Phnum:     phnum,
	}
	copy(header.Ident[:], elf.ELFMAG)
	header.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	header.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	header.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var buf bytes.Buffer

	require.NoError(t, binary.Write(&buf, binary.LittleEndian, header))

	if interpreter != "" {
		data := append([]byte(interpreter), 0)
		prog := elf.Prog64{
			Type:   uint32(elf.PT_INTERP),
			Flags:  uint32(elf.PF_R),
			Off:    elfHeaderSize + progSize,
			Filesz: uint64(len(data)),
			Memsz:  uint64(len(data)),
			Align:  1,
		}

		require.NoError(t, binary.Write(&buf, binary.LittleEndian, prog))
		buf.Write(data)
	}

	path := filepath.Join(t.TempDir(), "elf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o755))

	return path
}

func TestReadInterpreter(t *testing.T) {
	interpreter, err := readInterpreter(writeELF(t, "/lib64/ld-linux-x86-64.so.2"))
	require.NoError(t, err)
	assert.Equal(t, "/lib64/ld-linux-x86-64.so.2", interpreter)
}

func TestCheckStatic(t *testing.T) {
	notELF := filepath.Join(t.TempDir(), "script")
	require.NoError(t, os.WriteFile(notELF, []byte("#!/bin/sh\n"), 0o755))

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o755))

	tests := []struct {
		name        string
		path        string
		expectedErr error
	}{
		{
			name: "static",
			path: writeELF(t, ""),
		},
		{
			name:        "dynamic",
			path:        writeELF(t, "/lib/ld-musl-x86_64.so.1"),
			expectedErr: ErrNotStatic,
		},
		{
			name:        "script",
			path:        notELF,
			expectedErr: ErrNotELFFile,
		},
		{
			name:        "empty",
			path:        empty,
			expectedErr: ErrNotELFFile,
		},
		{
			name:        "missing",
			path:        filepath.Join(t.TempDir(), "missing"),
			expectedErr: os.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkStatic(tt.path)
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}
}
