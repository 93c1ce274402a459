// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs_test

import (
	"bytes"
	"io"
	"io/fs"
	"testing"

	"github.com/aibor/shoelace/internal/initramfs"
	"github.com/cavaliergopher/cpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPIOWriter(t *testing.T) {
	regularFileBody := make([]byte, 200)
	for idx := range regularFileBody {
		regularFileBody[idx] = byte(idx)
	}

	tests := []struct {
		name         string
		run          func(w *initramfs.CPIOWriter) error
		expectedErr  error
		assertHeader func(t assert.TestingT, hdr *cpio.Header)
		expectedBody []byte
	}{
		{
			name: "write directory",
			run: func(w *initramfs.CPIOWriter) error {
				return w.WriteDirectory("test", 0o755)
			},
			assertHeader: func(t assert.TestingT, hdr *cpio.Header) {
				assert.Equal(t, "test", hdr.Name, "name")
				assert.EqualValues(t, 0o755|cpio.TypeDir, hdr.Mode, "mode")
				assert.EqualValues(t, 0, hdr.Size, "size")
				assert.Equal(t, 2, hdr.Links, "links")
			},
		},
		{
			name: "write link",
			run: func(w *initramfs.CPIOWriter) error {
				return w.WriteLink("test", "target", 0o777)
			},
			assertHeader: func(t assert.TestingT, hdr *cpio.Header) {
				assert.Equal(t, "test", hdr.Name, "name")
				assert.EqualValues(t, 0o777|cpio.TypeSymlink, hdr.Mode, "mode")
				assert.Equal(t, "target", hdr.Linkname, "link name")
				assert.Equal(t, 1, hdr.Links, "links")
			},
		},
		{
			name: "write regular",
			run: func(w *initramfs.CPIOWriter) error {
				return w.WriteRegular("test", regularFileBody, 0o640)
			},
			assertHeader: func(t assert.TestingT, hdr *cpio.Header) {
				assert.Equal(t, "test", hdr.Name, "name")
				assert.EqualValues(t, 0o640|cpio.TypeReg, hdr.Mode, "mode")
				assert.EqualValues(t, 200, hdr.Size, "size")
				assert.Equal(t, 1, hdr.Links, "links")
			},
			expectedBody: regularFileBody,
		},
		{
			name: "write regular empty",
			run: func(w *initramfs.CPIOWriter) error {
				return w.WriteRegular("empty", nil, 0o644)
			},
			assertHeader: func(t assert.TestingT, hdr *cpio.Header) {
				assert.Equal(t, "empty", hdr.Name, "name")
				assert.EqualValues(t, 0o644|cpio.TypeReg, hdr.Mode, "mode")
				assert.EqualValues(t, 0, hdr.Size, "size")
			},
		},
		{
			name: "write regular setuid",
			run: func(w *initramfs.CPIOWriter) error {
				return w.WriteRegular("su", nil, fs.ModeSetuid|fs.ModeSetgid|0o755)
			},
			assertHeader: func(t assert.TestingT, hdr *cpio.Header) {
				assert.EqualValues(t, cpio.TypeReg|cpio.ModeSetuid|cpio.ModeSetgid|0o755, hdr.Mode, "mode")
			},
		},
		{
			name: "write directory sticky flag",
			run: func(w *initramfs.CPIOWriter) error {
				return w.WriteDirectory("tmp", fs.ModeSticky|0o777)
			},
			assertHeader: func(t assert.TestingT, hdr *cpio.Header) {
				assert.EqualValues(t, cpio.TypeDir|cpio.ModeSticky|0o777, hdr.Mode, "mode")
			},
		},
		{
			name: "write directory sticky octal",
			run: func(w *initramfs.CPIOWriter) error {
				return w.WriteDirectory("tmp", 0o1777)
			},
			assertHeader: func(t assert.TestingT, hdr *cpio.Header) {
				assert.EqualValues(t, cpio.TypeDir|cpio.ModeSticky|0o777, hdr.Mode, "mode")
			},
		},
		{
			name: "write closed",
			run: func(w *initramfs.CPIOWriter) error {
				err := w.Close()
				require.NoError(t, err)

				return w.WriteLink("test", "target", 0o777)
			},
			expectedErr: cpio.ErrWriteAfterClose,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var archive bytes.Buffer

			w := initramfs.NewCPIOWriter(&archive)

			err := tt.run(w)
			require.ErrorIs(t, err, tt.expectedErr)

			if tt.assertHeader == nil {
				return
			}

			require.NoError(t, w.Close())

			r := cpio.NewReader(&archive)

			h, err := r.Next()
			require.NoError(t, err)

			tt.assertHeader(t, h)

			if tt.expectedBody != nil {
				body, err := io.ReadAll(r)
				require.NoError(t, err)
				assert.Equal(t, tt.expectedBody, body)
			}

			_, err = r.Next()
			require.ErrorIs(t, err, io.EOF, "trailer expected")
		})
	}
}
