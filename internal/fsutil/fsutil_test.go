package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/backupwatch/backupwatch/internal/types"
)

func TestCheckDirAccessible(t *testing.T) {
	dir := t.TempDir()

	if err := CheckDirAccessible(dir); err != nil {
		t.Errorf("expected accessible, got %v", err)
	}

	if err := CheckDirAccessible(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}

	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CheckDirAccessible(file); err == nil {
		t.Error("expected error for non-directory path")
	}
}

func TestAccessible(t *testing.T) {
	dir := t.TempDir()
	if !Accessible(dir) {
		t.Error("Accessible = false for temp dir")
	}
	if Accessible(filepath.Join(dir, "nope")) {
		t.Error("Accessible = true for missing dir")
	}
}

func TestDiskUsage(t *testing.T) {
	u, err := DiskUsage(t.TempDir())
	if err != nil {
		t.Fatalf("DiskUsage error: %v", err)
	}
	if u.Total <= 0 {
		t.Errorf("Total = %d, want > 0", u.Total)
	}
	if u.Used < 0 || u.Free < 0 {
		t.Errorf("negative usage: %+v", u)
	}
}

func TestDiskUsageMissingPath(t *testing.T) {
	_, err := DiskUsage(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for missing path")
	}
}

func TestFormatUsage(t *testing.T) {
	got := FormatUsage(Usage{Total: 1000000000, Used: 600000000, Free: 400000000})
	want := "953.7 MB total, 572.2 MB used (60.0%), 381.5 MB free"
	if got != want {
		t.Errorf("FormatUsage = %q, want %q", got, want)
	}

	if got := FormatUsage(Usage{}); got != "Disk usage unavailable" {
		t.Errorf("FormatUsage(zero) = %q", got)
	}
}

func TestCheckMinFreeSpace(t *testing.T) {
	dir := t.TempDir()

	ok, msg, err := CheckMinFreeSpace(dir, 1)
	if err != nil {
		t.Fatalf("CheckMinFreeSpace error: %v", err)
	}
	if !ok {
		t.Errorf("expected at least 1 byte free, got %q", msg)
	}

	// No filesystem has an exabyte spare.
	ok, msg, err = CheckMinFreeSpace(dir, 1<<60)
	if err != nil {
		t.Fatalf("CheckMinFreeSpace error: %v", err)
	}
	if ok {
		t.Error("expected insufficient space for 1 EB")
	}
	if msg == "" {
		t.Error("expected a status message")
	}
}

func TestTotalSize(t *testing.T) {
	files := []*types.FileInfo{{Size: 1000}, {Size: 2000}}
	if got := TotalSize(files); got != 3000 {
		t.Errorf("TotalSize = %d, want 3000", got)
	}
	if got := TotalSize(nil); got != 0 {
		t.Errorf("TotalSize(nil) = %d, want 0", got)
	}
}

func TestAgeSummary(t *testing.T) {
	now := time.Now()

	if got := AgeSummary(nil, now); got != "No files found" {
		t.Errorf("AgeSummary(nil) = %q", got)
	}

	one := []*types.FileInfo{{ModTime: now.Add(-30 * time.Minute)}}
	if got := AgeSummary(one, now); got != "1 file: modified 30.0 minutes ago" {
		t.Errorf("AgeSummary(one) = %q", got)
	}

	many := []*types.FileInfo{
		{ModTime: now.Add(-72 * time.Minute)}, // 1.2 hours
		{ModTime: now.Add(-60 * time.Hour)},   // 2.5 days
		{ModTime: now.Add(-36 * time.Hour)},   // 1.5 days
	}
	want := "3 files: newest 1.2 hours ago, oldest 2.5 days ago"
	if got := AgeSummary(many, now); got != want {
		t.Errorf("AgeSummary = %q, want %q", got, want)
	}
}
