// Package logging builds the application *log.Logger: a rotating log file
// teed into a bounded channel that feeds the on-screen log pane.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lowaak/dojo-trainer/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultUIBuffer is the number of log lines held for the UI before new lines are dropped
const DefaultUIBuffer = 256

// Sink owns the log file and the UI line channel
type Sink struct {
	logger  *log.Logger
	file    *lumberjack.Logger
	lines   chan string
	dropped atomic.Int64
}

// Options tune New. Echo, when set, receives every line as well (e.g. os.Stderr)
type Options struct {
	UIBuffer int
	Echo     io.Writer
}

// New creates the file directory if needed and returns a Sink writing to it
func New(cfg config.LogConfig, opts Options) (*Sink, error) {
	if opts.UIBuffer <= 0 {
		opts.UIBuffer = DefaultUIBuffer
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, err
	}
	s := &Sink{
		file: &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		},
		lines: make(chan string, opts.UIBuffer),
	}
	writers := []io.Writer{s.file, uiWriter{s}}
	if opts.Echo != nil {
		writers = append(writers, opts.Echo)
	}
	s.logger = log.New(io.MultiWriter(writers...), "", log.LstdFlags|log.Lmicroseconds)
	return s, nil
}

// Logger returns the shared logger
func (s *Sink) Logger() *log.Logger {
	return s.logger
}

// UILines returns the channel consumed by the UI model
func (s *Sink) UILines() <-chan string {
	return s.lines
}

// Dropped reports how many lines the UI channel could not take
func (s *Sink) Dropped() int64 {
	return s.dropped.Load()
}

// Close flushes and closes the log file. The UI channel stays open so late
// writers never panic.
func (s *Sink) Close() error {
	return s.file.Close()
}

type uiWriter struct {
	s *Sink
}

// Write never blocks: the logger is used from the player loop and BLE callbacks
func (w uiWriter) Write(p []byte) (int, error) {
	line := time.Now().Format("15:04:05") + " " + strings.TrimRight(stripPrefix(string(p)), "\n") + "\n"
	select {
	case w.s.lines <- line:
	default:
		w.s.dropped.Add(1)
	}
	return len(p), nil
}

// stripPrefix removes the date and time written by log.LstdFlags|log.Lmicroseconds
func stripPrefix(line string) string {
	// "2006/01/02 15:04:05.000000 "
	const stamp = len("2006/01/02 15:04:05.000000 ")
	if len(line) >= stamp && line[4] == '/' && line[7] == '/' {
		return line[stamp:]
	}
	return line
}
