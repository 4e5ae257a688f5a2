package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"pricedb-harness/internal/types"
)

// Logger writes the per-run log file. Every probe outcome is recorded here
// so no classification is silently dropped, whatever the run verdict.
type Logger struct {
	*log.Logger
	file *os.File
}

// NewLogger creates a new run logger
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("run_%s.log", timestamp))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := log.New(file, "", log.LstdFlags)
	return &Logger{
		Logger: logger,
		file:   file,
	}, nil
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// LogCheck records one finished check.
func (l *Logger) LogCheck(name string, verdict types.Verdict, duration time.Duration) {
	l.Printf("check=%s verdict=%s duration=%s", name, verdict, duration)
}

// LogProbe records one classified probe outcome.
func (l *Logger) LogProbe(p types.ProbeResult) {
	if p.Error != "" {
		l.Printf("  probe %s %s slot=%s class=%s status=%d err=%q",
			p.Method, p.Endpoint, p.Slot, p.Classification, p.Status, p.Error)
		return
	}
	l.Printf("  probe %s %s slot=%s class=%s status=%d digest=%s",
		p.Method, p.Endpoint, p.Slot, p.Classification, p.Status, p.BodyDigest)
}

// LogTriage records an LLM triage interaction.
func (l *Logger) LogTriage(input int, output string, err error) {
	if err != nil {
		l.Printf("triage probes=%d error=%v", input, err)
		return
	}
	l.Printf("triage probes=%d notes=%q", input, output)
}
