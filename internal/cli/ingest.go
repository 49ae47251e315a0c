package cli

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	ingestNoWait bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Submit a file ingestion job",
	Long: `Submit a directory of files for server-side ingestion and track the
job's progress until it completes.

By default a live progress display is shown; use --no-wait to submit and
return immediately (check later with 'confab jobs').

Examples:
  confab ingest ./transcripts
  confab ingest ./transcripts --no-wait`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestNoWait, "no-wait", false, "submit without waiting for completion")
}

func runIngest(cmd *cobra.Command, args []string) error {
	dir := args[0]

	files, err := collectFiles(dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		fmt.Printf("No files found in %s\n", dir)
		return nil
	}

	ctx := context.Background()
	jobID, err := syncClient.SubmitIngestion(ctx, dir, files)
	if err != nil {
		return fmt.Errorf("submit ingestion: %w", err)
	}

	fmt.Printf("Ingestion job %s submitted (%d files)\n", jobID, len(files))
	if ingestNoWait {
		fmt.Printf("Use 'confab jobs %s' to check status.\n", jobID)
		return nil
	}

	return followJob(jobID)
}

func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory does not exist")
		}
		return nil, err
	}
	return files, nil
}
