// Package logging builds the CLI's logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"

	prefixed "github.com/BertoldVdb/logrus-prefixed-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level and destination. An empty File logs to stderr.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
}

// New returns the root entry and a function that releases the log file.
func New(opts Options) (*logrus.Entry, func() error, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		var err error
		level, err = logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	logrus.ErrorKey = "$error"
	logger := logrus.New()
	logger.SetLevel(level)

	customFormatter := new(prefixed.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02 15:04:05"
	customFormatter.FullTimestamp = true
	customFormatter.PrefixPadding = 20
	customFormatter.SpacePadding = 50

	var out io.Writer = os.Stderr
	closeFn := func() error { return nil }
	if opts.File != "" {
		writer := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   opts.Compress,
		}
		out = writer
		closeFn = writer.Close
		customFormatter.DisableColors = true
	}

	logger.SetFormatter(customFormatter)
	logger.SetOutput(out)
	return logrus.NewEntry(logger), closeFn, nil
}

// Discard returns an entry that drops everything.
func Discard() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
