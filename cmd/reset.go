package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the crawl cursor so the next crawl starts from the first entity",
		Long:  "Deletes the persisted cursor. Stored observations are kept; a new crawl overwrites them in place.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Store().Reset(cmd.Context()); err != nil {
				return fmt.Errorf("reset cursor: %w", err)
			}
			appInstance.Logger().Info("crawl cursor cleared")
			fmt.Fprintln(cmd.OutOrStdout(), "cursor cleared")
			return nil
		},
	}
}
