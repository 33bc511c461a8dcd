// Command uploadctl is a minimal CLI around the upload orchestrator: it
// wires a JSON-file-backed files database and collections service in place
// of the host application's own, for driving or inspecting uploads from a
// terminal.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	statePath  string
	tokenFlag  string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uploadctl",
		Short: "Drive the upload orchestrator from the command line",
		Long: `uploadctl enqueues files for encrypted upload and reports on their
status, using the same orchestrator the host application embeds.

Examples:
  # Upload one file into a collection
  uploadctl enqueue --path ./photo.jpg --collection 42

  # List locally tracked files and their upload state
  uploadctl status`,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the uploadcore INI config (default: per-OS config dir)")
	cmd.PersistentFlags().StringVar(&statePath, "state", "", "path to the local JSON state file (default: uploadctl-state.json in the configured temp_dir)")
	cmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "auth token override (falls back to the token file, then UPLOADCORE_AUTH_TOKEN)")

	cmd.AddCommand(newEnqueueCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}
