package monitor

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backupwatch/backupwatch/internal/config"
	"github.com/backupwatch/backupwatch/internal/history"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func createFile(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		MinFreeSpace: "1 KB",
		Checks: []config.CheckConfig{
			{
				Name:      "proxmox",
				BackupDir: dir,
				Days:      7,
				MinSize:   "1 KB",
			},
		},
	}
}

func newTestMonitor(t *testing.T, cfg *config.Config) *Monitor {
	t.Helper()
	store, err := history.Open("")
	require.NoError(t, err)
	return New(cfg, testLog(), store, 2, false)
}

func TestRunAllOK(t *testing.T) {
	dir := t.TempDir()
	createFile(t, filepath.Join(dir, "vzdump-qemu-100.vma.zst"), 2048, time.Now())
	createFile(t, filepath.Join(dir, "vzdump-qemu-101.vma.zst"), 4096, time.Now())

	report := newTestMonitor(t, testConfig(dir)).Run()

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.True(t, res.OK)
	assert.Empty(t, res.Err)
	assert.Equal(t, "proxmox", res.Name)
	assert.Equal(t, 2, res.FileCount)
	assert.Equal(t, int64(6144), res.TotalSize)
	assert.Equal(t, "6 KB", res.TotalSizeHuman)
	assert.Contains(t, res.AgeSummary, "2 files")

	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, 0, report.Failed())
	assert.True(t, report.AllOK())
	assert.NotEmpty(t, report.DiskStatus)
}

func TestRunMissingDirectory(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "nope"))
	report := newTestMonitor(t, cfg).Run()

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Err)
	assert.Equal(t, "N/A", res.TotalSizeHuman)
	assert.False(t, report.AllOK())
}

func TestRunNoRecentFiles(t *testing.T) {
	dir := t.TempDir()
	createFile(t, filepath.Join(dir, "stale.tar"), 2048, time.Now().Add(-30*24*time.Hour))

	report := newTestMonitor(t, testConfig(dir)).Run()

	res := report.Results[0]
	assert.False(t, res.OK)
	assert.Contains(t, res.Err, "no backup files newer than 7 days")
	assert.Equal(t, 0, res.FileCount)
}

func TestRunSizeBelowMinimum(t *testing.T) {
	dir := t.TempDir()
	createFile(t, filepath.Join(dir, "tiny.tar"), 100, time.Now())

	cfg := testConfig(dir)
	cfg.Checks[0].MinSize = "1 GB"
	report := newTestMonitor(t, cfg).Run()

	res := report.Results[0]
	assert.False(t, res.OK)
	assert.Contains(t, res.Err, "below required 1 GB")
	assert.Equal(t, 1, res.FileCount)
}

func TestRunRespectsExcludes(t *testing.T) {
	dir := t.TempDir()
	createFile(t, filepath.Join(dir, "backup.tar"), 2048, time.Now())
	createFile(t, filepath.Join(dir, "backup.tmp"), 4096, time.Now())

	cfg := testConfig(dir)
	cfg.Checks[0].Exclude = []string{"*.tmp"}
	report := newTestMonitor(t, cfg).Run()

	res := report.Results[0]
	assert.True(t, res.OK)
	assert.Equal(t, 1, res.FileCount)
	assert.Equal(t, int64(2048), res.TotalSize)
}

func TestRunFreeSpaceUnsatisfied(t *testing.T) {
	dir := t.TempDir()
	createFile(t, filepath.Join(dir, "backup.tar"), 2048, time.Now())

	cfg := testConfig(dir)
	cfg.MinFreeSpace = "100 TB" // more than any test machine has free
	report := newTestMonitor(t, cfg).Run()

	assert.True(t, report.Results[0].OK)
	assert.False(t, report.AllOK())
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "free space")
}

func TestTransitions(t *testing.T) {
	dir := t.TempDir()
	store, err := history.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer store.Close()

	cfg := testConfig(dir)
	m := New(cfg, testLog(), store, 2, false)

	// First run fails: nothing to find yet.
	res := m.Run().Results[0]
	assert.False(t, res.OK)
	assert.True(t, res.FirstFailure)
	assert.False(t, res.Recovered)

	// Second run still fails, but it is no longer news.
	res = m.Run().Results[0]
	assert.False(t, res.FirstFailure)
	assert.False(t, res.Recovered)

	// Backup appears: the check recovers exactly once.
	createFile(t, filepath.Join(dir, "backup.tar"), 2048, time.Now())
	res = m.Run().Results[0]
	assert.True(t, res.OK)
	assert.True(t, res.Recovered)

	res = m.Run().Results[0]
	assert.True(t, res.OK)
	assert.False(t, res.Recovered)
}

func TestBuildEmailAllOK(t *testing.T) {
	report := &Report{
		Timestamp: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Results: []CheckResult{
			{Name: "proxmox", OK: true, FileCount: 3, TotalSizeHuman: "10.5 GB", AgeSummary: "3 files: newest 1.2 hours ago, oldest 2.5 days ago"},
		},
		DiskStatus: "100 GB total, 40 GB used (40.0%), 60 GB free",
	}

	subject, body := BuildEmail(report)

	assert.Equal(t, "[OK] Backup Check Report - 2025-03-14 09:30", subject)
	assert.Contains(t, body, "Status: ALL CHECKS PASSED")
	assert.Contains(t, body, "Duration: 1.50 seconds")
	assert.Contains(t, body, "Disk: 100 GB total")
	assert.Contains(t, body, "OK proxmox: 10.5 GB (3 files: newest 1.2 hours ago, oldest 2.5 days ago)")
	assert.NotContains(t, body, "ERRORS DETECTED")
	assert.Contains(t, body, "Generated by backupwatch")
}

func TestBuildEmailWithFailures(t *testing.T) {
	report := &Report{
		Timestamp: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Results: []CheckResult{
			{Name: "proxmox", OK: true, TotalSizeHuman: "10.5 GB"},
			{Name: "homeassistant", OK: false, TotalSizeHuman: "N/A", Err: "directory not accessible"},
		},
		Errors: []string{"free space check failed"},
	}

	subject, body := BuildEmail(report)

	assert.Equal(t, "[ALERT] Backup Check Report - 2025-03-14 09:30", subject)
	assert.Contains(t, body, "Status: PROBLEMS DETECTED")
	assert.Contains(t, body, "FAIL homeassistant: N/A")
	assert.Contains(t, body, "   Error: directory not accessible")
	assert.Contains(t, body, "ERRORS DETECTED")
	assert.Contains(t, body, "1. free space check failed")
}

func TestBuildEmailRecovered(t *testing.T) {
	report := &Report{
		Timestamp: time.Now(),
		Results: []CheckResult{
			{Name: "proxmox", OK: true, TotalSizeHuman: "10.5 GB", Recovered: true},
		},
	}

	_, body := BuildEmail(report)
	assert.Contains(t, body, "Recovered since the previous run")
}

func TestDispatchKumaUp(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	report := &Report{
		Duration: 2500 * time.Millisecond,
		Results:  []CheckResult{{Name: "proxmox", OK: true}, {Name: "homeassistant", OK: true}},
	}

	m := newTestMonitor(t, testConfig(t.TempDir()))
	failures := m.Dispatch(report, Notifiers{KumaURL: srv.URL})

	assert.Equal(t, 0, failures)
	require.NotNil(t, gotQuery)
	assert.Equal(t, []string{"up"}, gotQuery["status"])
	assert.Equal(t, []string{"2/2 checks passed"}, gotQuery["msg"])
	assert.Equal(t, []string{"2500"}, gotQuery["ping"])
}

func TestDispatchKumaDown(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	report := &Report{
		Results: []CheckResult{{Name: "proxmox", OK: false, Err: "boom"}},
	}

	m := newTestMonitor(t, testConfig(t.TempDir()))
	failures := m.Dispatch(report, Notifiers{KumaURL: srv.URL})

	assert.Equal(t, 0, failures)
	require.NotNil(t, gotQuery)
	assert.Equal(t, []string{"down"}, gotQuery["status"])
	assert.Equal(t, []string{"0/1 checks passed"}, gotQuery["msg"])
}

func TestDispatchKumaFailureCounted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	report := &Report{Results: []CheckResult{{Name: "proxmox", OK: true}}}
	m := newTestMonitor(t, testConfig(t.TempDir()))

	failures := m.Dispatch(report, Notifiers{KumaURL: srv.URL})
	assert.Equal(t, 1, failures)
}

func TestDispatchNothingConfigured(t *testing.T) {
	report := &Report{Results: []CheckResult{{Name: "proxmox", OK: true}}}
	m := newTestMonitor(t, testConfig(t.TempDir()))

	assert.Equal(t, 0, m.Dispatch(report, Notifiers{}))
}
