package monitor

import (
	"fmt"
	"os"
	"strings"
)

// BuildEmail renders the report as a plain-text email. The subject carries
// the overall verdict so inbox rules can route alerts.
func BuildEmail(report *Report) (subject, body string) {
	ts := report.Timestamp.Format("2006-01-02 15:04")

	verdict := "[OK]"
	if !report.AllOK() {
		verdict = "[ALERT]"
	}
	subject = fmt.Sprintf("%s Backup Check Report - %s", verdict, ts)

	var b strings.Builder
	b.WriteString("Backup Check Report\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", ts)
	if report.AllOK() {
		b.WriteString("Status: ALL CHECKS PASSED\n")
	} else {
		b.WriteString("Status: PROBLEMS DETECTED\n")
	}
	fmt.Fprintf(&b, "Duration: %.2f seconds\n", report.Duration.Seconds())
	if report.DiskStatus != "" {
		fmt.Fprintf(&b, "Disk: %s\n", report.DiskStatus)
	}
	b.WriteString("\n")

	b.WriteString("BACKUP CHECK RESULTS:\n")
	b.WriteString(strings.Repeat("-", 25) + "\n")
	for _, res := range report.Results {
		marker := "OK"
		if !res.OK {
			marker = "FAIL"
		}
		fmt.Fprintf(&b, "%s %s: %s", marker, res.Name, res.TotalSizeHuman)
		if res.AgeSummary != "" {
			fmt.Fprintf(&b, " (%s)", res.AgeSummary)
		}
		b.WriteString("\n")
		if !res.OK {
			fmt.Fprintf(&b, "   Error: %s\n", res.Err)
		}
		if res.Recovered {
			b.WriteString("   Recovered since the previous run\n")
		}
	}

	if len(report.Errors) > 0 {
		b.WriteString("\nERRORS DETECTED:\n")
		b.WriteString(strings.Repeat("-", 16) + "\n")
		for i, msg := range report.Errors {
			fmt.Fprintf(&b, "%d. %s\n", i+1, msg)
		}
	}

	b.WriteString("\n" + strings.Repeat("-", 40) + "\n")
	b.WriteString("Generated by backupwatch\n")
	if host, err := os.Hostname(); err == nil {
		fmt.Fprintf(&b, "Server: %s\n", host)
	}

	return subject, b.String()
}
