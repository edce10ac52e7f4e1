package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var postID int64
	var force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger an enrichment cycle, or enrich a single post with --post",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				out := cmd.OutOrStdout()
				if postID > 0 {
					if err := client.Enrich(cmd.Context(), postID, force); err != nil {
						return err
					}
					fmt.Fprintf(out, "Post %d enriched\n", postID)
					return nil
				}

				result, err := client.Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cycle %s finished: %d eligible, %d processed, %d succeeded, %d failed, %d skipped\n",
					result.CycleID, result.Eligible, result.Processed, result.Succeeded, result.Failed, result.Skipped)
				if result.Aborted {
					fmt.Fprintln(out, "Cycle aborted early: all credentials are exhausted")
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&postID, "post", 0, "Enrich only the given post ID")
	cmd.Flags().BoolVar(&force, "force", false, "Enrich even if the post was already enriched")
	return cmd
}
