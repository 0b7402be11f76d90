package ui

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"igepub/pkg/archive"
	"igepub/pkg/scraper"
)

// PrintFetchSummary prints the outcome of a fetch
func PrintFetchSummary(result *scraper.Result, postsFile string) {
	if quiet || result == nil {
		return
	}

	fmt.Fprintf(out, "%s %s of %s candidates matched\n",
		Green("✓"),
		humanize.Comma(int64(result.Accepted)),
		humanize.Comma(int64(result.Processed)),
	)
	if result.Failed > 0 {
		fmt.Fprintf(out, "  %s %d images could not be downloaded\n", Dim("•"), result.Failed)
	}
	if result.Truncated {
		fmt.Fprintf(out, "  %s stopped early: %s\n", Dim("•"), Yellow(result.Reason))
	}
	if len(result.Posts) == 0 {
		fmt.Fprintf(out, "  %s nothing matched, %s left unchanged\n", Dim("•"), postsFile)
		return
	}
	fmt.Fprintf(out, "  %s saved to %s\n", Dim("•"), postsFile)
}

// PrintBuildSummary prints the outcome of a build
func PrintBuildSummary(report *archive.Report) {
	if quiet || report == nil {
		return
	}
	if report.Empty {
		fmt.Fprintln(out, Yellow("No posts to build, nothing written"))
		return
	}

	fmt.Fprintf(out, "%s %s written with %s chapters\n",
		Green("✓"),
		Cyan(report.Output),
		humanize.Comma(int64(report.Chapters)),
	)
	fmt.Fprintf(out, "  %s title: %s\n", Dim("•"), report.Title)
	for _, skipped := range report.Skipped {
		fmt.Fprintf(out, "  %s skipped %s (%s): %v\n", Dim("•"), skipped.ID, skipped.Reason, skipped.Err)
	}
}
