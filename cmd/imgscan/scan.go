package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"imgscan/pkg/logger"
	"imgscan/pkg/scan"
	"imgscan/pkg/scrape"
	"imgscan/pkg/ui"
)

var deepScrape bool

// scanCmd scans a single URL over the streaming endpoint.
var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Scan a single web page for images",
	Long: `Scan one web page URL and collect every image it references.

Progress is streamed from the extraction backend as the scan runs. Use
--deep to execute the page's client-side scripts before collecting, which
also reveals dynamically injected images.`,
	Example: `  # Scan a page and download everything it references
  imgscan scan https://example.com

  # Deep scan with script execution, keep only large JPGs
  imgscan scan https://example.com --deep --format JPG --min-width 800

  # Just list what was found
  imgscan scan https://example.com --list-only`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.GetLogger()
		client := scrape.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout, log)
		session := scan.NewSession(client, scan.Options{
			ConcurrentRequests: cfg.Scan.ConcurrentRequests,
			MaxRetries:         cfg.Scan.MaxRetries,
			Logger:             log,
		})

		progress := ui.NewProgress(quiet)
		session.OnSuccess(func(total int) {
			log.InfoWithFields("scan found images", map[string]interface{}{
				"total": total,
			})
		})

		// Mirror streamed progress into the terminal while the scan runs.
		mirrorCtx, stopMirror := context.WithCancel(cmd.Context())
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-mirrorCtx.Done():
					return
				case <-ticker.C:
					snap := session.Snapshot()
					progress.Update(snap.Progress, snap.Message)
				}
			}
		}()

		err := session.ScanSingle(cmd.Context(), args[0], deepScrape || cfg.Scan.DeepScrape)
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
	scanCmd.Flags().BoolVar(&deepScrape, "deep", false, "execute client-side scripts before collecting")
	addResultFlags(scanCmd)
	rootCmd.AddCommand(scanCmd)
}
