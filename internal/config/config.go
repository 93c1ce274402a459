// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the shoelace TOML configuration.
//
// All settings live in the "shoelace" table:
//
//	[shoelace.kernel]
//	image = "bzImage"
//	modules_dir = "modules"
//	args = ["loglevel=7"]
//
//	[shoelace.initrd]
//	modules = ["virtio_net"]
//	ext_modules = ["hello.ko"]
//	files = { "/data/input" = "input.txt" }
//
//	[shoelace.qemu]
//	memory = "2G"
//	cpus = 2
//	options = ["-no-reboot"]
//	devices = ["virtio-rng-pci"]
//
// Relative host paths are resolved against the directory of the config file
// and must exist.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sys/unix"
)

const (
	// DefaultFile is the config file looked up in the working directory.
	DefaultFile = "shoelace.toml"

	// DefaultMemory is the amount of memory of the VM.
	DefaultMemory = "1G"

	// DefaultCPUs is the number of CPU cores of the VM.
	DefaultCPUs = 1

	hostKernelPrefix = "/boot/vmlinuz-"
	hostModulesDir   = "/lib/modules"
)

var (
	// ErrParse is returned if the config file is not valid TOML or contains
	// unknown keys.
	ErrParse = errors.New("parse error")

	// ErrPathNotFound is returned if a configured host path does not exist.
	ErrPathNotFound = errors.New("specified path not found")

	// ErrInvalidValue is returned if a value is out of range.
	ErrInvalidValue = errors.New("invalid value")
)

// Config is the complete shoelace configuration.
type Config struct {
	Kernel Kernel `toml:"kernel"`
	Initrd Initrd `toml:"initrd"`
	Qemu   Qemu   `toml:"qemu"`
}

// Kernel selects the kernel to boot.
type Kernel struct {
	// Image is the path of the bzImage. Defaults to the host's kernel.
	Image string `toml:"image"`

	// ModulesDir contains the module trees, one per kernel release.
	// Defaults to the host's module directory if the host's kernel is used.
	ModulesDir string `toml:"modules_dir"`

	// Args are added to the kernel command line.
	Args []string `toml:"args"`
}

// Initrd describes additional content of the initramfs.
type Initrd struct {
	Modules    []string          `toml:"modules"`
	ExtModules []string          `toml:"ext_modules"`
	Files      map[string]string `toml:"files"`
}

// Qemu configures the virtual machine.
type Qemu struct {
	Memory  string   `toml:"memory"`
	CPUs    int      `toml:"cpus"`
	Options []string `toml:"options"`
	Devices []string `toml:"devices"`
}

type file struct {
	Shoelace Config `toml:"shoelace"`
}

var hostRelease = func() (string, error) {
	var uts unix.Utsname

	err := unix.Uname(&uts)
	if err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}

	return unix.ByteSliceToString(uts.Release[:]), nil
}

func defaults() Config {
	return Config{
		Qemu: Qemu{
			Memory: DefaultMemory,
			CPUs:   DefaultCPUs,
		},
	}
}

// Default returns the configuration used if no config file is given. It
// boots the host's kernel.
func Default() (Config, error) {
	cfg := defaults()

	err := cfg.applyHostKernel()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Load reads the config file at the given path. If path is empty, [Default]
// is returned.
func Load(path string) (Config, error) {
	if path == "" {
		return Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	parsed := file{Shoelace: defaults()}

	err = toml.NewDecoder(f).DisallowUnknownFields().Decode(&parsed)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrParse, path, err)
	}

	cfg := parsed.Shoelace

	err = cfg.resolve(filepath.Dir(path))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) applyHostKernel() error {
	release, err := hostRelease()
	if err != nil {
		return err
	}

	c.Kernel.Image = hostKernelPrefix + release

	if c.Kernel.ModulesDir == "" {
		c.Kernel.ModulesDir = hostModulesDir
	}

	return nil
}

// resolve converts all host paths into absolute ones, applies the host kernel
// defaults and validates the values. All problems found are returned at
// once.
func (c *Config) resolve(baseDir string) error {
	var result *multierror.Error

	resolve := func(p *string) {
		resolved, err := resolvePath(baseDir, *p)
		if err != nil {
			result = multierror.Append(result, err)
			return
		}

		*p = resolved
	}

	useHostKernel := c.Kernel.Image == ""

	if !useHostKernel {
		resolve(&c.Kernel.Image)
	}

	if c.Kernel.ModulesDir != "" {
		resolve(&c.Kernel.ModulesDir)
	}

	if useHostKernel {
		err := c.applyHostKernel()
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	for idx := range c.Initrd.ExtModules {
		resolve(&c.Initrd.ExtModules[idx])
	}

	for guestPath, hostPath := range c.Initrd.Files {
		if !strings.HasPrefix(guestPath, "/") {
			result = multierror.Append(result,
				fmt.Errorf("%w: guest path must be absolute: %s", ErrInvalidValue, guestPath))
		}

		resolve(&hostPath)
		c.Initrd.Files[guestPath] = hostPath
	}

	if c.Qemu.CPUs < 0 {
		result = multierror.Append(result,
			fmt.Errorf("%w: cpus must not be negative: %d", ErrInvalidValue, c.Qemu.CPUs))
	}

	if c.Qemu.Memory == "" {
		result = multierror.Append(result,
			fmt.Errorf("%w: memory must not be empty", ErrInvalidValue))
	}

	return result.ErrorOrNil()
}

// resolvePath expands a leading "~", makes relative paths absolute using
// baseDir and verifies the path exists.
func resolvePath(baseDir, path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", path, err)
		}

		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	_, err = os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}

	return path, nil
}
