package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ente-io/uploadcore/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the uploadctl build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("uploadctl %s (built %s)\n", version.Version, version.BuildTime)
			return nil
		},
	}
}
