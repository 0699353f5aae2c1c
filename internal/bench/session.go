package bench

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// SessionLogger appends benchmark reports to a per-session JSON file so
// results survive a crash mid-run.
type SessionLogger struct {
	mu          sync.Mutex
	reports     []*Report
	logDir      string
	sessionFile string
}

// NewSessionLogger starts a session file in logDir named after the session
// and the current time.
func NewSessionLogger(logDir, sessionName string) (*SessionLogger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create log directory")
	}

	timestamp := time.Now().Format("20060102_150405")
	sl := &SessionLogger{
		logDir:      logDir,
		sessionFile: filepath.Join(logDir, fmt.Sprintf("%s_%s.json", sessionName, timestamp)),
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl, sl.flush()
}

// Path returns the session file.
func (sl *SessionLogger) Path() string {
	return sl.sessionFile
}

// Log records a report and flushes the session to disk immediately.
func (sl *SessionLogger) Log(r *Report) error {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.reports = append(sl.reports, r)
	return sl.flush()
}

// flush writes reports to disk
func (sl *SessionLogger) flush() error {
	data, err := json.MarshalIndent(sl.reports, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal reports")
	}
	return os.WriteFile(sl.sessionFile, data, 0o644)
}

// LatestSessionFile returns the path to the most recent session file in
// logDir.
func LatestSessionFile(logDir string) (string, error) {
	files, err := filepath.Glob(filepath.Join(logDir, "*.json"))
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", errors.Errorf("no log files found in %s", logDir)
	}

	var latest string
	var latestTime time.Time
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latest = file
			latestTime = info.ModTime()
		}
	}
	return latest, nil
}

// LoadSession reads every report of a session file.
func LoadSession(path string) ([]*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reports []*Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, errors.Wrapf(err, "parse session %s", path)
	}
	return reports, nil
}

// SessionSummary describes the reports of a session file, one line each.
func SessionSummary(path string) (string, error) {
	reports, err := LoadSession(path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Benchmark session %s:\n", filepath.Base(path))
	sb.WriteString(strings.Repeat("=", 62) + "\n")
	for _, r := range reports {
		best := 0.0
		for _, res := range r.Results {
			best = max(best, res.GBps)
		}
		fmt.Fprintf(&sb, "%s  %-8s %3d results  peak %6.1f GB/s  (%s)\n",
			r.SessionID[:min(8, len(r.SessionID))], r.DType, len(r.Results), best, humanize.Time(r.Timestamp))
	}
	sb.WriteString(strings.Repeat("=", 62) + "\n")
	fmt.Fprintf(&sb, "Total: %d sessions\n", len(reports))
	return sb.String(), nil
}
