package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFormatter renders entries as:
// [2026-01-02 15:04:05] [debug] [validator.go:61] message | key=value
type LogFormatter struct{}

// Format renders a single log entry.
func (f *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	buffer := entry.Buffer
	if buffer == nil {
		buffer = &bytes.Buffer{}
	}

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	message := strings.TrimRight(entry.Message, "\r\n")
	timestamp := entry.Time.Format("2006-01-02 15:04:05")

	if entry.Caller != nil {
		fmt.Fprintf(buffer, "[%s] [%-5s] [%s:%d] %s", timestamp, level, filepath.Base(entry.Caller.File), entry.Caller.Line, message)
	} else {
		fmt.Fprintf(buffer, "[%s] [%-5s] %s", timestamp, level, message)
	}

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buffer.WriteString(" |")
		for i, k := range keys {
			if i > 0 {
				buffer.WriteString(",")
			}
			fmt.Fprintf(buffer, " %s=%v", k, entry.Data[k])
		}
	}
	buffer.WriteString("\n")
	return buffer.Bytes(), nil
}

// Options controls where diagnostics go.
type Options struct {
	Verbose bool
	// File, when set, receives logs through a rotating writer instead of
	// stderr.
	File string
}

// Setup configures the shared logrus instance. The returned closer flushes
// the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	log.SetFormatter(&LogFormatter{})
	log.SetReportCaller(opts.Verbose)
	log.SetLevel(log.WarnLevel)
	if opts.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	if opts.File == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("logging: failed to create log directory: %w", err)
	}
	writer := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10,
		MaxBackups: 3,
		Compress:   false,
	}
	log.SetOutput(writer)
	// The file gets everything; the terminal stays clean.
	log.SetLevel(log.DebugLevel)
	return writer, nil
}
