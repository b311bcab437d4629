// Package logging builds the dedicated log channels used next to the
// standard logger.
//
// The book import channel writes to a size-rotated file so that long
// running servers keep a bounded history of every import run.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mrlokans/librarian/internal/config"
)

// BookImportsPrefix marks every line written to the import channel.
const BookImportsPrefix = "[book_imports] "

// Channel is a *log.Logger bound to a closable sink.
type Channel struct {
	*log.Logger
	sink io.Closer
}

// Close flushes and closes the rotating file. Safe to call on a nil Channel.
func (c *Channel) Close() error {
	if c == nil || c.sink == nil {
		return nil
	}
	return c.sink.Close()
}

// NewBookImportsChannel opens the rotating import log described by cfg.
// An empty path logs to stderr only.
func NewBookImportsChannel(cfg config.ImportLog) (*Channel, error) {
	if cfg.Path == "" {
		return &Channel{Logger: log.New(os.Stderr, BookImportsPrefix, log.LstdFlags)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	var out io.Writer = rotating
	if cfg.Stderr {
		out = io.MultiWriter(rotating, os.Stderr)
	}

	return &Channel{
		Logger: log.New(out, BookImportsPrefix, log.LstdFlags),
		sink:   rotating,
	}, nil
}
