package observability

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSinkConfig configures a rotating trace file.
type FileSinkConfig struct {
	// Path is the trace file location.
	Path string

	// MaxSizeMB rotates the file past this size. Defaults to 50.
	MaxSizeMB int

	// MaxBackups bounds the rotated files kept. Defaults to 3.
	MaxBackups int
}

// DefaultFileSinkConfig returns the default rotation settings for path.
func DefaultFileSinkConfig(path string) FileSinkConfig {
	return FileSinkConfig{Path: path, MaxSizeMB: 50, MaxBackups: 3}
}

// FileSink is a JSONSink backed by a size-rotated file.
type FileSink struct {
	*JSONSink
	out io.Closer
}

// NewFileSink opens a rotating JSON-lines trace file.
func NewFileSink(cfg FileSinkConfig) *FileSink {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 50
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	out := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	return &FileSink{JSONSink: NewJSONSink(out), out: out}
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	return s.out.Close()
}
