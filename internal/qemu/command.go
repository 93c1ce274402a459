// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package qemu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultExecutable is the QEMU binary used if none is given.
	DefaultExecutable = "qemu-system-x86_64"

	// DefaultMemory is the guest memory used if none is given.
	DefaultMemory = "1G"
)

// CommandSpec defines the parameters for a [Command].
type CommandSpec struct {
	// Path to the qemu-system binary. Defaults to [DefaultExecutable].
	Executable string

	// Path to the kernel to boot.
	Kernel string

	// Path to the initramfs to boot with.
	Initrd string

	// KernelArgs are joined with spaces into the kernel command line.
	KernelArgs []string

	// Memory for the guest in QEMU's size notation, like "1G". Defaults to
	// [DefaultMemory].
	Memory string

	// Number of CPU cores of the guest. If 0, QEMU's default is used.
	CPUs int

	// Options are passed to QEMU as they are, after all other arguments
	// except devices.
	Options []string

	// Devices are each passed with "-device".
	Devices []string
}

// Validate checks the spec for missing or invalid values.
func (s *CommandSpec) Validate() error {
	switch {
	case s.Kernel == "":
		return &SpecError{Field: "kernel", Reason: "not set"}
	case s.Initrd == "":
		return &SpecError{Field: "initrd", Reason: "not set"}
	case s.CPUs < 0:
		return &SpecError{Field: "cpus", Reason: "negative: " + strconv.Itoa(s.CPUs)}
	}

	return nil
}

// Arguments returns the essential QEMU arguments of the spec. Devices are
// included, options are not.
func (s *CommandSpec) Arguments() []Argument {
	memory := s.Memory
	if memory == "" {
		memory = DefaultMemory
	}

	args := []Argument{
		UniqueArg("machine", "accel=kvm"),
		UniqueArg("m", memory),
		UniqueArg("nographic"),
		UniqueArg("kernel", s.Kernel),
		UniqueArg("initrd", s.Initrd),
	}

	if len(s.KernelArgs) > 0 {
		args = append(args, UniqueArg("append", strings.Join(s.KernelArgs, " ")))
	}

	if s.CPUs > 0 {
		args = append(args, UniqueArg("smp", "cores="+strconv.Itoa(s.CPUs)))
	}

	return args
}

// Args compiles the complete argument list for the QEMU binary.
func (s *CommandSpec) Args() ([]string, error) {
	err := s.Validate()
	if err != nil {
		return nil, err
	}

	args, err := BuildArgumentStrings(s.Arguments())
	if err != nil {
		return nil, err
	}

	args = append(args, s.Options...)

	devices := make([]Argument, 0, len(s.Devices))
	for _, device := range s.Devices {
		devices = append(devices, RepeatableArg("device", device))
	}

	deviceArgs, err := BuildArgumentStrings(devices)
	if err != nil {
		return nil, err
	}

	return append(args, deviceArgs...), nil
}

// Command is a QEMU command ready to run.
type Command struct {
	name   string
	args   []string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewCommand builds a new [Command] from the given [CommandSpec].
//
// The guest console is connected to the given stdio streams. If any of them
// is nil, the respective stream of the current process is used.
func NewCommand(spec CommandSpec, stdin io.Reader, stdout, stderr io.Writer) (*Command, error) {
	args, err := spec.Args()
	if err != nil {
		return nil, err
	}

	name := spec.Executable
	if name == "" {
		name = DefaultExecutable
	}

	if stdin == nil {
		stdin = os.Stdin
	}

	if stdout == nil {
		stdout = os.Stdout
	}

	if stderr == nil {
		stderr = os.Stderr
	}

	return &Command{
		name:   name,
		args:   args,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

// String returns the command line.
func (c *Command) String() string {
	return c.name + " " + strings.Join(c.args, " ")
}

// Name returns the QEMU binary name.
func (c *Command) Name() string {
	return c.name
}

// Args returns the arguments passed to the QEMU binary.
func (c *Command) Args() []string {
	return c.args
}

// Run runs the command and waits for it to exit.
//
// If QEMU exits with a non-zero exit code, a [CommandError] wrapping
// [ErrNonZeroExitCode] is returned with the exit code set.
func (c *Command) Run(ctx context.Context) error {
	if !KVMAvailable() {
		slog.Warn("KVM not available, QEMU might fail to start")
	}

	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stdin = c.stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &CommandError{Err: err}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &CommandError{Err: err}
	}

	slog.Debug("Run QEMU", slog.String("command", c.String()))

	err = cmd.Start()
	if err != nil {
		return &CommandError{Err: err}
	}

	var outputGroup errgroup.Group

	outputGroup.Go(func() error {
		_, err := io.Copy(c.stdout, stdout)
		return err //nolint:wrapcheck
	})
	outputGroup.Go(func() error {
		_, err := io.Copy(c.stderr, stderr)
		return err //nolint:wrapcheck
	})

	// Output must be consumed before waiting, since Wait closes the pipes.
	copyErr := outputGroup.Wait()

	err = cmd.Wait()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
			return &CommandError{
				Err:      fmt.Errorf("%w: %d", ErrNonZeroExitCode, exitErr.ExitCode()),
				ExitCode: exitErr.ExitCode(),
			}
		}

		return &CommandError{Err: err}
	}

	if copyErr != nil {
		return &CommandError{Err: fmt.Errorf("copy output: %w", copyErr)}
	}

	return nil
}
