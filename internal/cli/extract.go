package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var extractNoWait bool

var extractCmd = &cobra.Command{
	Use:   "extract <discussion-id>",
	Short: "Submit a batch extraction job for a discussion",
	Long: `Ask the server to extract structured items from a discussion's
history and track the job until it completes.

Examples:
  confab extract disc-42
  confab extract disc-42 --no-wait`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractNoWait, "no-wait", false, "submit without waiting for completion")
}

func runExtract(cmd *cobra.Command, args []string) error {
	discussionID := args[0]

	jobID, err := syncClient.SubmitExtraction(context.Background(), discussionID)
	if err != nil {
		return fmt.Errorf("submit extraction: %w", err)
	}

	fmt.Printf("Extraction job %s submitted for %s\n", jobID, discussionID)
	if extractNoWait {
		fmt.Printf("Use 'confab jobs %s' to check status.\n", jobID)
		return nil
	}

	return followJob(jobID)
}
