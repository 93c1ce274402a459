// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteRegular(name string, data []byte, perm fs.FileMode) error {
	return m.Called(name, data, perm).Error(0)
}

func (m *MockWriter) WriteDirectory(name string, perm fs.FileMode) error {
	return m.Called(name, perm).Error(0)
}

func (m *MockWriter) WriteLink(name, target string, perm fs.FileMode) error {
	return m.Called(name, target, perm).Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

type failingContents struct{}

func (failingContents) Read() ([]byte, fs.FileMode, error) {
	return nil, 0, assert.AnError
}

func TestArchiveWriter(t *testing.T) {
	tests := []struct {
		name      string
		prepare   func(m *MockWriter)
		run       func(a *Archive) error
		assertErr require.ErrorAssertionFunc
	}{
		{
			name: "parents before file",
			prepare: func(m *MockWriter) {
				m.On("WriteDirectory", "etc", DirPermission).
					Once().Return(nil)
				m.On("WriteDirectory", "etc/init.d", DirPermission).
					Once().Return(nil)
				m.On("WriteRegular", "etc/init.d/rcS", []byte("#!/bin/sh"), fs.FileMode(0o755)).
					Once().Return(nil)
			},
			run: func(a *Archive) error {
				return a.AddFile("/etc/init.d/rcS", Bytes("#!/bin/sh"), WithPermission(0o755))
			},
			assertErr: require.NoError,
		},
		{
			name: "unclean path",
			prepare: func(m *MockWriter) {
				m.On("WriteDirectory", "bin", DirPermission).
					Once().Return(nil)
				m.On("WriteLink", "bin/sh", "busybox", LinkPermission).
					Once().Return(nil)
			},
			run: func(a *Archive) error {
				return a.AddSymlink("//bin/./sh", "busybox")
			},
			assertErr: require.NoError,
		},
		{
			name:    "contents read fails before any write",
			prepare: func(_ *MockWriter) {},
			run: func(a *Archive) error {
				return a.AddFile("/some/file", failingContents{})
			},
			assertErr: func(t require.TestingT, err error, a ...any) {
				require.ErrorIs(t, err, ErrContentsRead, a...)
				require.ErrorIs(t, err, assert.AnError, a...)
			},
		},
		{
			name: "directory write fails",
			prepare: func(m *MockWriter) {
				m.On("WriteDirectory", "dir", DirPermission).
					Once().Return(assert.AnError)
			},
			run: func(a *Archive) error {
				return a.AddFile("/dir/file", Bytes(nil))
			},
			assertErr: func(t require.TestingT, err error, a ...any) {
				require.ErrorIs(t, err, assert.AnError, a...)
			},
		},
		{
			name: "close once",
			prepare: func(m *MockWriter) {
				m.On("Close").Once().Return(nil)
			},
			run: func(a *Archive) error {
				err := a.Close()
				if err != nil {
					return err
				}

				return a.Close()
			},
			assertErr: require.NoError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := MockWriter{}
			tt.prepare(&writer)

			err := tt.run(newArchive(&writer))
			tt.assertErr(t, err)

			writer.AssertExpectations(t)
		})
	}
}

func TestEntryName(t *testing.T) {
	tests := []struct {
		path     string
		expected string
		err      error
	}{
		{path: "/init", expected: "init"},
		{path: "/a/b/../c", expected: "a/c"},
		{path: "/a/b/", expected: "a/b"},
		{path: "/", err: ErrInvalidPath},
		{path: "/..", err: ErrInvalidPath},
		{path: "", err: ErrInvalidPath},
		{path: "rel/path", err: ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			name, err := entryName(tt.path)
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.expected, name)
		})
	}
}
