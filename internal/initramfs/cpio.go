// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package initramfs

import (
	"fmt"
	"io"
	"io/fs"

	"github.com/cavaliergopher/cpio"
)

const (
	dirLinks  = 2
	fileLinks = 1

	specialBits = cpio.ModeSetuid | cpio.ModeSetgid | cpio.ModeSticky
)

var _ Writer = (*CPIOWriter)(nil)

// CPIOWriter implements [Writer] for the CPIO "newc" format.
type CPIOWriter struct {
	cpioWriter *cpio.Writer
}

// NewCPIOWriter creates a new archive writer.
func NewCPIOWriter(w io.Writer) *CPIOWriter {
	return &CPIOWriter{cpio.NewWriter(w)}
}

// Close writes the trailer and flushes the padding of the last entry. Calling
// it again is a no-op.
func (w *CPIOWriter) Close() error {
	err := w.cpioWriter.Close()
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	return nil
}

func (w *CPIOWriter) writeHeader(hdr *cpio.Header) error {
	if err := w.cpioWriter.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header for %s: %w", hdr.Name, err)
	}

	return nil
}

func (w *CPIOWriter) writeBody(name string, body []byte) error {
	if _, err := w.cpioWriter.Write(body); err != nil {
		return fmt.Errorf("write body for %s: %w", name, err)
	}

	return nil
}

// WriteDirectory adds a directory entry for the given name to the archive.
func (w *CPIOWriter) WriteDirectory(name string, perm fs.FileMode) error {
	header := &cpio.Header{
		Name:  name,
		Mode:  cpio.TypeDir | modeBits(perm),
		Links: dirLinks,
	}

	return w.writeHeader(header)
}

// WriteLink adds a symbolic link for the given name pointing to the given
// target.
func (w *CPIOWriter) WriteLink(name, target string, perm fs.FileMode) error {
	header := &cpio.Header{
		Name:  name,
		Mode:  cpio.TypeSymlink | modeBits(perm),
		Links: fileLinks,
		Size:  int64(len(target)),
	}
	if err := w.writeHeader(header); err != nil {
		return err
	}

	// Body of a link is the path of the target file.
	return w.writeBody(name, []byte(target))
}

// WriteRegular adds a regular file with the given data.
func (w *CPIOWriter) WriteRegular(name string, data []byte, perm fs.FileMode) error {
	header := &cpio.Header{
		Name:  name,
		Mode:  cpio.TypeReg | modeBits(perm),
		Links: fileLinks,
		Size:  int64(len(data)),
	}
	if err := w.writeHeader(header); err != nil {
		return err
	}

	return w.writeBody(name, data)
}

// modeBits converts the permission and special bits into their CPIO
// representation. Special bits are taken from both the [fs.FileMode] flags
// and plain octal notation like 0o1777.
func modeBits(perm fs.FileMode) cpio.FileMode {
	mode := cpio.FileMode(perm & (fs.ModePerm | specialBits))

	if perm&fs.ModeSetuid != 0 {
		mode |= cpio.ModeSetuid
	}

	if perm&fs.ModeSetgid != 0 {
		mode |= cpio.ModeSetgid
	}

	if perm&fs.ModeSticky != 0 {
		mode |= cpio.ModeSticky
	}

	return mode
}
