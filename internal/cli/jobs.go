package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	jobsRemove bool
	jobsStats  bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect tracked jobs",
	Long: `List all tracked jobs or inspect a specific job by ID.

Examples:
  confab jobs                # List all tracked jobs
  confab jobs abc123         # Show details for job abc123
  confab jobs abc123 --remove  # Stop tracking abc123 and drop its record
  confab jobs --stats        # Show sync core statistics`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().BoolVar(&jobsRemove, "remove", false, "stop tracking the job and delete its record")
	jobsCmd.Flags().BoolVar(&jobsStats, "stats", false, "show runtime statistics")
}

func runJobs(cmd *cobra.Command, args []string) error {
	if jobsStats {
		return showStats()
	}

	if len(args) == 1 {
		if jobsRemove {
			syncClient.Untrack(args[0])
			fmt.Printf("Removed job %s\n", args[0])
			return nil
		}
		return showJob(args[0])
	}

	return listJobs()
}

func listJobs() error {
	records := syncClient.Jobs()
	if len(records) == 0 {
		fmt.Println("No jobs tracked")
		return nil
	}

	fmt.Printf("%-12s %-12s %-10s %s\n", "ID", "STATUS", "PROGRESS", "STARTED")
	fmt.Println("------------------------------------------------")
	for _, rec := range records {
		progress := fmt.Sprintf("%d%%", rec.Progress)
		started := rec.StartTime.Format("15:04:05")
		fmt.Printf("%-12s %-12s %-10s %s\n", rec.ID, rec.Status, progress, started)
	}
	return nil
}

func showJob(id string) error {
	rec := syncClient.Job(id)
	if rec == nil {
		return fmt.Errorf("job not tracked: %s", id)
	}

	fmt.Printf("Job: %s\n", rec.ID)
	fmt.Printf("  Status: %s\n", rec.Status)
	fmt.Printf("  Progress: %d%%\n", rec.Progress)
	if rec.TotalFiles > 0 {
		fmt.Printf("  Files: %d/%d\n", rec.FilesProcessed, rec.TotalFiles)
	}
	if rec.ExtractedItems > 0 {
		fmt.Printf("  Extracted items: %d\n", rec.ExtractedItems)
	}
	fmt.Printf("  Started: %s\n", rec.StartTime.Format(time.RFC3339))
	if rec.EndTime != nil {
		fmt.Printf("  Ended: %s\n", rec.EndTime.Format(time.RFC3339))
		fmt.Printf("  Duration: %s\n", rec.EndTime.Sub(rec.StartTime).Round(time.Second))
	}
	if rec.Error != "" {
		fmt.Printf("  Error: %s\n", rec.Error)
	}
	if len(rec.Results) > 0 {
		fmt.Println("\nResults:")
		for k, v := range rec.Results {
			fmt.Printf("  %s: %v\n", k, v)
		}
	}
	return nil
}

func showStats() error {
	snap := syncClient.Stats()
	fmt.Printf("Uptime: %.0fs\n", snap.UptimeSeconds)
	if snap.Connect != nil {
		fmt.Printf("Connects:    %d (avg %.0fms)\n", snap.Connect.Count, snap.Connect.AvgTimeMs)
	}
	if snap.Reconnect != nil {
		fmt.Printf("Reconnects:  %d\n", snap.Reconnect.Count)
	}
	if snap.Dispatch != nil {
		fmt.Printf("Events:      %d dispatched\n", snap.Dispatch.Count)
	}
	if snap.JobSubmit != nil {
		fmt.Printf("Submissions: %d (avg %.0fms)\n", snap.JobSubmit.Count, snap.JobSubmit.AvgTimeMs)
	}
	if snap.JobQuery != nil {
		fmt.Printf("Queries:     %d (avg %.0fms)\n", snap.JobQuery.Count, snap.JobQuery.AvgTimeMs)
	}
	return nil
}
