package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var trackCmd = &cobra.Command{
	Use:   "track <job-id>",
	Short: "Attach a live progress display to a job",
	Long: `Begin (or resume) tracking an already-submitted job and show its
progress until it reaches a terminal state.

Examples:
  confab track abc123`,
	Args: cobra.ExactArgs(1),
	RunE: runTrack,
}

func runTrack(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	syncClient.Track(jobID)
	return followJob(jobID)
}

// followJob blocks on the progress UI until the job is terminal or the
// user detaches.
func followJob(jobID string) error {
	if err := runProgress(syncClient, jobID); err != nil {
		return fmt.Errorf("job %s: %w", jobID, err)
	}
	return nil
}
