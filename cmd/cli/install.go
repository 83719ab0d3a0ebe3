package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/anstrom/portprobe/internal/install"
)

func newInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Copy this executable to ~/bin",
		Long: `Copy the running portprobe executable into ~/bin, creating the directory
if needed. Add ~/bin to PATH to run portprobe from anywhere.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInstall(cmd.OutOrStdout())
		},
	}
}

func newUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the executable from ~/bin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUninstall(cmd.OutOrStdout())
		},
	}
}

func runInstall(out io.Writer) error {
	dst, err := install.Install()
	if err != nil {
		return fmt.Errorf("install failed: %w", err)
	}

	fmt.Fprintf(out, "portprobe installed to %s\n", dst)
	fmt.Fprintf(out, "Make sure %s is on your PATH.\n", filepath.Dir(dst))
	fmt.Fprintln(out, "Example: portprobe example.org -p 80,443")
	fmt.Fprintln(out, "To uninstall, run: portprobe --uninstall")
	return nil
}

func runUninstall(out io.Writer) error {
	dst, err := install.Uninstall()
	if stderrors.Is(err, install.ErrNotInstalled) {
		fmt.Fprintf(out, "portprobe not found in %s\n", filepath.Dir(dst))
		return nil
	}
	if err != nil {
		return fmt.Errorf("uninstall failed: %w", err)
	}

	fmt.Fprintf(out, "portprobe removed from %s\n", filepath.Dir(dst))
	return nil
}
