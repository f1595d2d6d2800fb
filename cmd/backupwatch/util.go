package main

import (
	"fmt"
	"io"

	"github.com/backupwatch/backupwatch/internal/monitor"
)

// printReport writes the report body to w, one line per check plus any run
// errors. This is the console counterpart of the notification email.
func printReport(w io.Writer, report *monitor.Report) {
	for _, res := range report.Results {
		marker := "OK  "
		if !res.OK {
			marker = "FAIL"
		}
		fmt.Fprintf(w, "%s %s: %s", marker, res.Name, res.TotalSizeHuman)
		if res.AgeSummary != "" {
			fmt.Fprintf(w, " (%s)", res.AgeSummary)
		}
		fmt.Fprintln(w)
		if !res.OK {
			fmt.Fprintf(w, "     %s\n", res.Err)
		}
	}

	for _, msg := range report.Errors {
		fmt.Fprintf(w, "error: %s\n", msg)
	}

	if report.DiskStatus != "" {
		fmt.Fprintf(w, "disk: %s\n", report.DiskStatus)
	}
	fmt.Fprintf(w, "%d/%d checks passed in %.2fs\n",
		report.Succeeded(), len(report.Results), report.Duration.Seconds())
}
