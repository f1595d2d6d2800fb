// Package monitor runs the configured backup checks and dispatches the
// results to the notification channels.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/backupwatch/backupwatch/internal/config"
	"github.com/backupwatch/backupwatch/internal/fsutil"
	"github.com/backupwatch/backupwatch/internal/history"
	"github.com/backupwatch/backupwatch/internal/notify"
	"github.com/backupwatch/backupwatch/internal/scanner"
	"github.com/backupwatch/backupwatch/internal/sizeconv"
)

// CheckResult is the outcome of one backup check.
type CheckResult struct {
	Name           string
	OK             bool
	Err            string // failure description when !OK
	FileCount      int
	TotalSize      int64
	TotalSizeHuman string
	AgeSummary     string

	// Transitions relative to the previous run (requires a history store).
	FirstFailure bool
	Recovered    bool
}

// Report aggregates one monitoring run.
type Report struct {
	Timestamp  time.Time
	Duration   time.Duration
	Results    []CheckResult
	Errors     []string // non-fatal errors encountered during the run
	DiskStatus string   // free-space summary for the backup filesystem
}

// Succeeded returns the number of passing checks.
func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK {
			n++
		}
	}
	return n
}

// Failed returns the number of failing checks.
func (r *Report) Failed() int { return len(r.Results) - r.Succeeded() }

// AllOK reports whether every check passed and no run errors occurred.
func (r *Report) AllOK() bool { return r.Failed() == 0 && len(r.Errors) == 0 }

// Monitor executes backup checks according to the configuration.
type Monitor struct {
	cfg          *config.Config
	log          *logrus.Entry
	store        *history.Store
	workers      int
	showProgress bool

	now func() time.Time // swappable for tests
}

// New creates a Monitor. The history store may be disabled (see history.Open
// with an empty path); transitions are then never reported.
func New(cfg *config.Config, log *logrus.Entry, store *history.Store, workers int, showProgress bool) *Monitor {
	return &Monitor{
		cfg:          cfg,
		log:          log,
		store:        store,
		workers:      workers,
		showProgress: showProgress,
		now:          time.Now,
	}
}

// Run executes all configured checks and the global free-space check.
func (m *Monitor) Run() *Report {
	start := m.now()
	report := &Report{Timestamp: start}

	// Collect scanner errors (permission denied, vanished files) without
	// failing a whole check over them.
	errCh := make(chan error, 100)
	var errMu sync.Mutex
	var drainWg sync.WaitGroup
	drainWg.Add(1)
	go func() {
		defer drainWg.Done()
		for err := range errCh {
			m.log.Warnf("scan: %v", err)
			errMu.Lock()
			report.Errors = append(report.Errors, err.Error())
			errMu.Unlock()
		}
	}()

	for i := range m.cfg.Checks {
		result := m.runCheck(&m.cfg.Checks[i], errCh)
		m.applyHistory(&result)
		report.Results = append(report.Results, result)

		if result.OK {
			m.log.Infof("check %s: OK, %s in %d files", result.Name, result.TotalSizeHuman, result.FileCount)
		} else {
			m.log.Errorf("check %s: %s", result.Name, result.Err)
		}
	}

	close(errCh)
	drainWg.Wait()

	m.checkFreeSpace(report)

	report.Duration = m.now().Sub(start)
	return report
}

// runCheck verifies one backup directory: accessibility, recency, and size.
func (m *Monitor) runCheck(check *config.CheckConfig, errCh chan error) CheckResult {
	result := CheckResult{Name: check.Name, TotalSizeHuman: "N/A"}

	if err := fsutil.CheckDirAccessible(check.BackupDir); err != nil {
		result.Err = err.Error()
		return result
	}

	cutoff := m.now().Add(-time.Duration(check.Days) * 24 * time.Hour)
	files := scanner.New(check.BackupDir, cutoff, check.IncludeSubdirs, check.Exclude, m.workers, m.showProgress, errCh).Run()

	result.FileCount = len(files)
	result.TotalSize = fsutil.TotalSize(files)
	if human, err := sizeconv.FormatBytes(result.TotalSize); err == nil {
		result.TotalSizeHuman = human
	}
	result.AgeSummary = fsutil.AgeSummary(files, m.now())

	if len(files) == 0 {
		result.Err = fmt.Sprintf("no backup files newer than %d days in %s", check.Days, check.BackupDir)
		return result
	}

	minSize, err := check.MinSizeBytes()
	if err != nil {
		// Validation should have caught this; treat as a failed check.
		result.Err = fmt.Sprintf("invalid min_size %q: %v", check.MinSize, err)
		return result
	}
	if result.TotalSize < minSize {
		result.Err = fmt.Sprintf("total size %s below required %s", result.TotalSizeHuman, check.MinSize)
		return result
	}

	result.OK = true
	return result
}

// applyHistory marks state transitions against the previous run and records
// the new state. History problems degrade to log warnings.
func (m *Monitor) applyHistory(result *CheckResult) {
	prev, found, err := m.store.Last(result.Name)
	if err != nil {
		m.log.Warnf("history lookup for %s: %v", result.Name, err)
	} else {
		result.FirstFailure = !result.OK && (!found || prev.OK)
		result.Recovered = result.OK && found && !prev.OK
	}

	err = m.store.Record(result.Name, history.CheckState{
		OK:        result.OK,
		TotalSize: result.TotalSize,
		RunTime:   m.now(),
	})
	if err != nil {
		m.log.Warnf("history record for %s: %v", result.Name, err)
	}
}

// checkFreeSpace evaluates the global min_free_space requirement against the
// filesystem holding the first configured backup directory.
func (m *Monitor) checkFreeSpace(report *Report) {
	minFree, err := m.cfg.MinFreeSpaceBytes()
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("invalid min_free_space: %v", err))
		return
	}

	path := m.cfg.Checks[0].BackupDir
	ok, msg, err := fsutil.CheckMinFreeSpace(path, minFree)
	if err != nil {
		report.DiskStatus = msg
		report.Errors = append(report.Errors, fmt.Sprintf("free space check: %v", err))
		return
	}

	if u, uerr := fsutil.DiskUsage(path); uerr == nil {
		report.DiskStatus = fsutil.FormatUsage(u)
	} else {
		report.DiskStatus = msg
	}

	if !ok {
		report.Errors = append(report.Errors, msg)
		m.log.Warn(msg)
	} else {
		m.log.Debug(msg)
	}
}

// Notifiers bundles the configured notification channels. Nil channels and
// an empty heartbeat URL are skipped.
type Notifiers struct {
	Email    *notify.EmailNotifier
	Pushover *notify.Pushover
	KumaURL  string
}

// Dispatch sends the report to every configured channel. Delivery failures
// are logged and counted, never fatal: a broken SMTP server must not stop
// the heartbeat.
func (m *Monitor) Dispatch(report *Report, n Notifiers) int {
	failures := 0

	if n.Email != nil {
		subject, body := BuildEmail(report)
		if err := n.Email.Send(m.cfg.ToEmail, subject, body); err != nil {
			m.log.Errorf("email notification: %v", err)
			failures++
		}
	}

	if n.Pushover != nil {
		if err := n.Pushover.SendSummary(len(report.Results), report.Succeeded(), report.Failed(),
			report.Duration, m.cfg.PushoverPriority); err != nil {
			m.log.Errorf("pushover summary: %v", err)
			failures++
		}

		// Page only on state transitions, not on every run of a known failure.
		for _, res := range report.Results {
			if res.FirstFailure {
				if err := n.Pushover.SendAlert(res.Name, res.Err); err != nil {
					m.log.Errorf("pushover alert for %s: %v", res.Name, err)
					failures++
				}
			}
		}
	}

	if n.KumaURL != "" {
		hb := notify.Heartbeat{
			Status: "up",
			Msg:    fmt.Sprintf("%d/%d checks passed", report.Succeeded(), len(report.Results)),
			Ping:   report.Duration.Milliseconds(),
		}
		if !report.AllOK() {
			hb.Status = "down"
		}
		if err := notify.SendHeartbeat(n.KumaURL, hb, nil); err != nil {
			m.log.Warnf("uptime kuma heartbeat: %v", err)
			failures++
		}
	}

	return failures
}
