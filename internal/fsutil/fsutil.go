// Package fsutil provides filesystem checks for backup monitoring: directory
// accessibility, disk usage, free-space thresholds, and file age summaries.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/backupwatch/backupwatch/internal/sizeconv"
	"github.com/backupwatch/backupwatch/internal/types"
)

// CheckDirAccessible verifies that path exists, is a directory, and is
// readable. The returned error describes the first failed check.
func CheckDirAccessible(path string) error {
	full, err := ExpandPath(path)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", path, err)
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return fmt.Errorf("stat %q: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Listing the directory is the definitive readability test: it fails on
	// permission problems and on stale or broken mounts.
	dir, err := os.Open(full)
	if err != nil {
		return fmt.Errorf("directory not readable: %s: %w", path, err)
	}
	defer func() { _ = dir.Close() }()
	if _, err := dir.ReadDir(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("directory not accessible: %s: %w", path, err)
	}

	return nil
}

// Accessible reports whether CheckDirAccessible succeeds for path.
func Accessible(path string) bool {
	return CheckDirAccessible(path) == nil
}

// ExpandPath expands a leading ~ to the user's home directory and returns an
// absolute path.
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// Usage holds disk usage statistics for a mounted filesystem, in bytes.
type Usage struct {
	Total int64
	Used  int64
	Free  int64
}

// DiskUsage returns disk usage statistics for the filesystem containing path.
func DiskUsage(path string) (Usage, error) {
	full, err := ExpandPath(path)
	if err != nil {
		return Usage{}, fmt.Errorf("resolve %q: %w", path, err)
	}
	if err := CheckDirAccessible(full); err != nil {
		return Usage{}, err
	}

	stat, err := disk.Usage(full)
	if err != nil {
		return Usage{}, fmt.Errorf("disk usage for %q: %w", path, err)
	}

	return Usage{
		Total: int64(stat.Total),
		Used:  int64(stat.Used),
		Free:  int64(stat.Free),
	}, nil
}

// FormatUsage renders disk usage as a human-readable line, e.g.
// "953.7 MB total, 572.2 MB used (60.0%), 381.5 MB free".
func FormatUsage(u Usage) string {
	if u.Total == 0 {
		return "Disk usage unavailable"
	}

	usedPercent := float64(u.Used) / float64(u.Total) * 100

	total, _ := sizeconv.FormatBytes(u.Total)
	used, _ := sizeconv.FormatBytes(u.Used)
	free, _ := sizeconv.FormatBytes(u.Free)

	return fmt.Sprintf("%s total, %s used (%.1f%%), %s free", total, used, usedPercent, free)
}

// CheckMinFreeSpace reports whether the filesystem containing path has at
// least minFree bytes available, with a status message either way.
func CheckMinFreeSpace(path string, minFree int64) (bool, string, error) {
	u, err := DiskUsage(path)
	if err != nil {
		return false, fmt.Sprintf("cannot determine disk usage for %s", path), err
	}

	free, _ := sizeconv.FormatBytes(u.Free)
	required, _ := sizeconv.FormatBytes(minFree)

	if u.Free >= minFree {
		return true, fmt.Sprintf("sufficient free space: %s available (required: %s)", free, required), nil
	}
	return false, fmt.Sprintf("insufficient free space: %s available, %s required", free, required), nil
}

// TotalSize sums the sizes of the given files.
func TotalSize(files []*types.FileInfo) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// AgeSummary describes the age spread of a file set relative to now, e.g.
// "3 files: newest 1.2 hours ago, oldest 2.5 days ago".
func AgeSummary(files []*types.FileInfo, now time.Time) string {
	if len(files) == 0 {
		return "No files found"
	}

	byAge := types.NewFilesByAge(files)
	newest := now.Sub(byAge.Last().ModTime)
	oldest := now.Sub(byAge.First().ModTime)

	if len(files) == 1 {
		return fmt.Sprintf("1 file: modified %s", formatAge(newest))
	}
	return fmt.Sprintf("%d files: newest %s, oldest %s", len(files), formatAge(newest), formatAge(oldest))
}

// formatAge renders a duration in the largest readable unit.
func formatAge(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%.1f minutes ago", d.Minutes())
	case d < 24*time.Hour:
		return fmt.Sprintf("%.1f hours ago", d.Hours())
	default:
		return fmt.Sprintf("%.1f days ago", d.Hours()/24)
	}
}
