package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewCleanCommand creates the clean command.
func NewCleanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove reports and temporary files",
		Long: `Delete the reports and tmp directories of the workspace.

Example:
  construct clean -C ./project`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return cleanWorkspace(e)
		},
	}
}

func cleanWorkspace(e *env) error {
	for _, dir := range []string{e.layout.ReportsDir, e.layout.TmpDir} {
		abs := e.layout.Abs(dir)
		info, err := os.Stat(abs)
		if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
			fmt.Fprintf(e.out, "Skipped (not found): %s\n", dir)
			continue
		}
		if err != nil {
			return WrapExitError(ExitFailure, "failed to clean "+dir, err)
		}
		if err := os.RemoveAll(abs); err != nil {
			return WrapExitError(ExitFailure, "failed to clean "+dir, err)
		}
		fmt.Fprintf(e.out, "Deleted: %s\n", dir)
	}
	return nil
}
