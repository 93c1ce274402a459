// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kmod_test

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/aibor/shoelace/internal/kmod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNameIndex(t *testing.T) {
	tests := []struct {
		name        string
		fsys        fstest.MapFS
		expected    kmod.NameIndex
		expectedErr error
	}{
		{
			name: "nested",
			fsys: fstest.MapFS{
				"kernel/fs/ext4/ext4.ko":         {},
				"kernel/lib/crc16.ko":            {},
				"kernel/drivers/net/virtio.ko.x": {},
				"kernel/README":                  {},
				"extra/outside.ko":               {},
			},
			expected: kmod.NameIndex{
				"ext4":  "kernel/fs/ext4/ext4.ko",
				"crc16": "kernel/lib/crc16.ko",
			},
		},
		{
			name:     "no kernel dir",
			fsys:     fstest.MapFS{"modules.dep": {}},
			expected: kmod.NameIndex{},
		},
		{
			name: "duplicate",
			fsys: fstest.MapFS{
				"kernel/a/dup.ko": {},
				"kernel/b/dup.ko": {},
			},
			expectedErr: kmod.ErrDuplicateModuleName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, err := kmod.BuildNameIndex(tt.fsys)
			require.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expected, index)
		})
	}
}

func TestBuildNameIndexDuplicateError(t *testing.T) {
	fsys := fstest.MapFS{
		"kernel/a/dup.ko": {},
		"kernel/b/dup.ko": {},
	}

	_, err := kmod.BuildNameIndex(fsys)

	var dupErr *kmod.DuplicateModuleNameError

	require.ErrorAs(t, err, &dupErr)
	assert.Equal(t, "dup", dupErr.Name)
	assert.Equal(t, "kernel/a/dup.ko", dupErr.First)
	assert.Equal(t, "kernel/b/dup.ko", dupErr.Second)
}

func TestParseDepGraph(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		expected     kmod.DepGraph
		expectedLine int
	}{
		{
			name: "valid",
			input: "kernel/fs/ext4/ext4.ko: kernel/lib/crc16.ko kernel/fs/mbcache.ko\n" +
				"kernel/lib/crc16.ko:\n" +
				"\n" +
				"kernel/fs/mbcache.ko:   \n",
			expected: kmod.DepGraph{
				"kernel/fs/ext4/ext4.ko": {"kernel/lib/crc16.ko", "kernel/fs/mbcache.ko"},
				"kernel/lib/crc16.ko":    {},
				"kernel/fs/mbcache.ko":   {},
			},
		},
		{
			name:     "empty",
			input:    "",
			expected: kmod.DepGraph{},
		},
		{
			name:         "missing colon",
			input:        "kernel/a.ko:\nkernel/b.ko kernel/a.ko\n",
			expectedLine: 2,
		},
		{
			name:         "bare colon",
			input:        "\n\n: kernel/a.ko\n",
			expectedLine: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph, err := kmod.ParseDepGraph(strings.NewReader(tt.input))

			if tt.expectedLine == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, graph)

				return
			}

			var formatErr *kmod.DependencyFormatError

			require.ErrorAs(t, err, &formatErr)
			require.ErrorIs(t, err, kmod.ErrDependencyFormat)
			assert.Equal(t, tt.expectedLine, formatErr.Line)
		})
	}
}

func TestModuleName(t *testing.T) {
	assert.Equal(t, "ext4", kmod.ModuleName("kernel/fs/ext4/ext4.ko"))
	assert.Equal(t, "hello", kmod.ModuleName("/home/user/hello.ko"))
}
