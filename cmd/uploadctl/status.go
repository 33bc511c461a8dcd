package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	ustrings "github.com/ente-io/uploadcore/internal/util/strings"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List locally tracked files and their upload state",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sp, err := loadConfigAndState()
			if err != nil {
				return err
			}

			state, err := openLocalState(sp)
			if err != nil {
				return fmt.Errorf("open local state: %w", err)
			}

			state.mu.Lock()
			defer state.mu.Unlock()

			if len(state.data.Files) == 0 {
				fmt.Println("no locally tracked files")
				return nil
			}

			ids := make([]string, 0, len(state.data.Files))
			for id := range state.data.Files {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			for _, id := range ids {
				f := state.data.Files[id]
				status := "pending"
				if f.IsDeleted {
					status = "invalid"
				} else if f.HasValidRemoteID() {
					status = fmt.Sprintf("uploaded (remote id %d)", f.UploadedFileID)
				}
				fmt.Printf("%s  collection=%d  %s  %s\n", id[:12], f.CollectionID, status, f.Title)
			}
			fmt.Printf("%d %s tracked\n", len(ids), ustrings.Pluralize("file", int64(len(ids))))
			return nil
		},
	}
	return cmd
}
