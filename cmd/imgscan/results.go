package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"imgscan/pkg/export"
	"imgscan/pkg/images"
	"imgscan/pkg/logger"
	"imgscan/pkg/ratelimit"
	"imgscan/pkg/scan"
	"imgscan/pkg/storage"
)

// Shared filter/export flags for scan and batch commands.
var (
	filterFormats  []string
	filterMinWidth int
	filterSearch   string
	filterSources  []string
	outputDir      string
	archiveFlag    bool
	noDownload     bool
)

func addResultFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&filterFormats, "format", nil, "only keep these formats (e.g. JPG,PNG)")
	cmd.Flags().IntVar(&filterMinWidth, "min-width", 0, "only keep images at least this wide")
	cmd.Flags().StringVar(&filterSearch, "search", "", "only keep images whose name contains this text")
	cmd.Flags().StringSliceVar(&filterSources, "source", nil, "only keep images from these source URLs")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads")
	cmd.Flags().BoolVar(&archiveFlag, "archive", false, "pack downloads into a single ZIP archive")
	cmd.Flags().BoolVar(&noDownload, "list-only", false, "list discovered images without downloading")
}

// buildFilter assembles the filter state from the command flags.
func buildFilter() images.FilterState {
	f := images.FilterState{
		MinWidth:    filterMinWidth,
		SearchQuery: filterSearch,
	}
	if len(filterFormats) > 0 {
		f.SelectedFormats = make(map[string]bool, len(filterFormats))
		for _, format := range filterFormats {
			f.SelectedFormats[strings.ToUpper(strings.TrimSpace(format))] = true
		}
	}
	if len(filterSources) > 0 {
		f.SelectedSourceURLs = make(map[string]bool, len(filterSources))
		for _, src := range filterSources {
			f.SelectedSourceURLs[strings.TrimSpace(src)] = true
		}
	}
	return f
}

// printResults lists the filtered result set and batch failures.
func printResults(session *scan.Session) {
	snap := session.Snapshot()
	visible := session.Filtered()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDIMENSIONS\tSOURCE")
	for _, rec := range visible {
		dims := rec.Dimensions
		if dims == "" {
			dims = "Unknown"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", rec.ID, rec.Name, dims, rec.SourceURL)
	}
	w.Flush()

	fmt.Printf("\n%d images", len(snap.Images))
	if len(visible) != len(snap.Images) {
		fmt.Printf(" (%d after filters)", len(visible))
	}
	if snap.DuplicatesRemoved > 0 {
		fmt.Printf(", %d duplicates removed", snap.DuplicatesRemoved)
	}
	fmt.Println()

	for _, b := range snap.Batch {
		if b.Status == scan.URLFailed {
			fmt.Printf("failed: %s: %s\n", b.URL, b.Error)
		}
	}
}

// downloadResults saves the currently filtered, selected images: a
// direct save for one image, a ZIP archive when more are selected or
// --archive was given.
func downloadResults(session *scan.Session) error {
	// Narrow the reseeded all-selected state to the filtered view.
	session.Selection().Clear()
	for _, rec := range session.Filtered() {
		session.Selection().Toggle(rec.ID)
	}

	selected := session.SelectedRecords()
	if len(selected) == 0 {
		fmt.Println("nothing to download")
		return nil
	}

	dir := cfg.Export.OutputDirectory
	if outputDir != "" {
		dir = outputDir
	}
	store, err := storage.NewManager(dir)
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	fetcher := export.NewHTTPFetcher(cfg.Export.FetchTimeout, cfg.Backend.UserAgent, log)
	limiter := ratelimit.NewTokenBucket(cfg.Export.RequestsPerMinute, time.Minute)
	exporter := export.New(fetcher, store, limiter, cfg.Export.ConcurrentFetches, log)

	ctx := rootCmd.Context()

	if len(selected) == 1 && !archiveFlag {
		path, err := exporter.SaveOne(ctx, selected[0])
		if err != nil {
			return err
		}
		fmt.Printf("saved %s\n", path)
		return nil
	}

	summary, err := exporter.SaveArchive(ctx, selected, cfg.Export.ArchiveName)
	if err != nil {
		return err
	}
	fmt.Printf("saved %s (%d images", summary.Path, summary.Packed)
	if summary.Skipped > 0 {
		fmt.Printf(", %d skipped", summary.Skipped)
	}
	fmt.Println(")")
	return nil
}
