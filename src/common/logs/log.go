// Package logs provides the common logging facility for s6build.
// Output can go to the console, to a build log file, or to both at
// once, which mirrors how firmware build pipelines are usually run:
// interactively during bring-up, with a persistent BUILDLOG for CI.
package logs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// LogOutput defines the output destination for logs
type LogOutput string

const (
	// OutputStdout sends logs to standard output only
	OutputStdout LogOutput = "stdout"
	// OutputFile sends logs to the build log file only
	OutputFile LogOutput = "file"
	// OutputSplit sends logs to both stdout and the build log file
	OutputSplit LogOutput = "split"
)

// Logger wraps the charm log.Logger with the file handle it owns, if any
type Logger struct {
	*log.Logger
	output LogOutput
	file   *os.File
}

// Config holds the configuration for the logger
type Config struct {
	// Output selects the destination (stdout, file, split)
	Output LogOutput
	// Level sets the minimum log level (debug, info, warn, error)
	Level string
	// Prefix sets a prefix for all log messages
	Prefix string
	// FilePath is the build log file used by the file and split outputs
	FilePath string
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Output: OutputStdout,
		Level:  "info",
		Prefix: "",
	}
}

// parseLevel converts a string level to log.Level
func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// openLogFile opens (or creates) the build log file, creating parent
// directories as needed. Returns nil when the file cannot be opened so
// logging degrades to stdout instead of failing the run.
func openLogFile(path string) *os.File {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil
	}
	return f
}

// New creates a new Logger with the given configuration
func New(cfg Config) *Logger {
	var writer io.Writer
	var file *os.File
	output := cfg.Output

	switch cfg.Output {
	case OutputFile:
		file = openLogFile(cfg.FilePath)
		if file != nil {
			writer = file
		} else {
			writer = os.Stdout
			output = OutputStdout
		}
	case OutputSplit:
		file = openLogFile(cfg.FilePath)
		if file != nil {
			writer = io.MultiWriter(os.Stdout, file)
		} else {
			writer = os.Stdout
			output = OutputStdout
		}
	default:
		writer = os.Stdout
		output = OutputStdout
	}

	logger := log.NewWithOptions(writer, log.Options{
		Level:           parseLevel(cfg.Level),
		Prefix:          cfg.Prefix,
		ReportTimestamp: true,
		ReportCaller:    false,
	})

	return &Logger{
		Logger: logger,
		output: output,
		file:   file,
	}
}

// NewDefault creates a new Logger with default configuration
func NewDefault() *Logger {
	return New(DefaultConfig())
}

// Output returns the current output destination
func (l *Logger) Output() LogOutput {
	return l.output
}

// Writer returns an io.Writer that appends raw lines at the given
// level. The engine runner uses this to stream external tool output
// through the logger.
func (l *Logger) Writer(level log.Level) io.Writer {
	return &levelWriter{logger: l.Logger, level: level}
}

// Close releases the build log file, if one is open
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// levelWriter adapts a charm logger to io.Writer for process output
type levelWriter struct {
	logger *log.Logger
	level  log.Level
}

func (w *levelWriter) Write(p []byte) (int, error) {
	msg := string(p)
	// Trim the trailing newline a line-oriented scanner leaves behind
	for len(msg) > 0 && (msg[len(msg)-1] == '\n' || msg[len(msg)-1] == '\r') {
		msg = msg[:len(msg)-1]
	}
	w.logger.Log(w.level, msg)
	return len(p), nil
}
