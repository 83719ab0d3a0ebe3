// Package install copies the running portprobe binary into the user's
// ~/bin directory and removes it again.
package install

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/anstrom/portprobe/internal/logging"
)

const (
	// BinaryName is the installed executable name, without extension.
	BinaryName = "portprobe"

	binDirPerm = 0755
	binPerm    = 0755
)

// ErrNotInstalled is returned by Uninstall when there is nothing to remove.
var ErrNotInstalled = stderrors.New("portprobe is not installed")

// Dir returns the install directory, ~/bin.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, "bin"), nil
}

// Path returns the full path of the installed executable.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	name := BinaryName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(dir, name), nil
}

// Install copies the running executable to Path, creating ~/bin if needed,
// and returns the destination.
func Install() (string, error) {
	src, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate running executable: %w", err)
	}

	dst, err := Path()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dst), binDirPerm); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}

	if err := copyFile(src, dst); err != nil {
		return "", err
	}

	logging.Info("Installed executable", "source", src, "destination", dst)
	return dst, nil
}

// Uninstall removes the installed executable and returns its former path.
func Uninstall() (string, error) {
	dst, err := Path()
	if err != nil {
		return "", err
	}

	if err := os.Remove(dst); err != nil {
		if os.IsNotExist(err) {
			return dst, ErrNotInstalled
		}
		return dst, fmt.Errorf("failed to remove %s: %w", dst, err)
	}

	logging.Info("Removed executable", "path", dst)
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	// Write beside the destination and rename so a running copy is never
	// left half written.
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+BinaryName+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to copy executable: %w", err)
	}
	if err := tmp.Chmod(binPerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write executable: %w", err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to install to %s: %w", dst, err)
	}
	return nil
}
