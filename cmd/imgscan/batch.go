package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"imgscan/pkg/logger"
	"imgscan/pkg/scan"
	"imgscan/pkg/scrape"
	"imgscan/pkg/ui"
)

var (
	batchDeep bool
	batchFile string
)

// batchCmd scans multiple URLs concurrently through the request queue.
var batchCmd = &cobra.Command{
	Use:   "batch [urls...]",
	Short: "Scan multiple web pages for images",
	Long: `Scan a batch of web page URLs and collect every image they reference.

URLs may be given as arguments, as a single comma/newline separated
string, or read from a file with --file. Requests run concurrently up to
the configured limit; one URL failing never aborts the rest. Duplicate
images discovered on several pages are collapsed to one record.`,
	Example: `  # Scan three pages and archive everything found
  imgscan batch https://a.com https://b.com https://c.com --archive

  # Read the URL list from a file
  imgscan batch --file urls.txt --min-width 500`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawInput := strings.Join(args, "\n")
		if batchFile != "" {
			data, err := os.ReadFile(batchFile)
			if err != nil {
				return fmt.Errorf("failed to read URL file: %w", err)
			}
			rawInput = rawInput + "\n" + string(data)
		}

		log := logger.GetLogger()
		client := scrape.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout, log)
		session := scan.NewSession(client, scan.Options{
			ConcurrentRequests: cfg.Scan.ConcurrentRequests,
			MaxRetries:         cfg.Scan.MaxRetries,
			Logger:             log,
		})

		progress := ui.NewProgress(quiet)
		mirrorCtx, stopMirror := context.WithCancel(cmd.Context())
		go func() {
			ticker := time.NewTicker(200 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-mirrorCtx.Done():
					return
				case <-ticker.C:
					snap := session.Snapshot()
					done, failed, active, queued := 0, 0, 0, 0
					for _, b := range snap.Batch {
						switch b.Status {
						case scan.URLCompleted:
							done++
						case scan.URLFailed:
							failed++
							done++
						case scan.URLProcessing:
							active++
						case scan.URLPending:
							queued++
						}
					}
					progress.BatchStatus(done, failed, active, queued, len(snap.Batch))
				}
			}
		}()

		err := session.ScanBatch(cmd.Context(), rawInput, batchDeep || cfg.Scan.DeepScrape)
		stopMirror()
		progress.Done()
		if err != nil {
			return err
		}

		session.SetFilter(buildFilter())
		printResults(session)

		if noDownload {
			return nil
		}
		return downloadResults(session)
	},
}

func init() {
	batchCmd.Flags().BoolVar(&batchDeep, "deep", false, "execute client-side scripts before collecting")
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "file containing URLs, one per line")
	addResultFlags(batchCmd)
	rootCmd.AddCommand(batchCmd)
}
