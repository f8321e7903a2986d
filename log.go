package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

const (
	logDir    = "log"
	logLatest = "latest.txt"
	logLast   = "last.txt"
)

// newLogger writes to stdout and log/latest.txt.
// The previous log file is kept as log/last.txt.
func newLogger(dir, level string) (*logrus.Logger, io.Closer, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return nil, nil, err
	}

	latest := filepath.Join(dir, logLatest)
	os.Rename(latest, filepath.Join(dir, logLast))

	f, err := os.OpenFile(latest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, nil, err
	}

	l := &logrus.Logger{
		Out: io.MultiWriter(os.Stdout, f),
		Formatter: &logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
			DisableSorting:  true,
		},
		Hooks: make(logrus.LevelHooks),
		Level: lvl,
	}

	return l, f, nil
}
