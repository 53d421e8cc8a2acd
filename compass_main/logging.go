/*
	Copyright (c) 2023 Adrian Batzill
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	logging.go: Initialize logrus, watch log file size and rotate, delete old logs

*/

package main

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/ricochet2200/go-disk-usage/du"
	"github.com/sirupsen/logrus"
)

const (
	debugLogFile = "compass.log"

	maxLogSize     = 10 * 1024 * 1024 // rotate above 10mb
	maxLogFiles    = 9
	minFreeLogDisk = 50 * 1024 * 1024 // leave 50mb free
)

type logFiles struct {
	dir    string
	path   string
	logger *logrus.Logger

	mu sync.Mutex
	fp *os.File

	freeBytes func(dir string) int64
}

func newLogFiles(dir string, logger *logrus.Logger) *logFiles {
	return &logFiles{
		dir:    dir,
		path:   filepath.Join(dir, debugLogFile),
		logger: logger,
		freeBytes: func(dir string) int64 {
			return int64(du.NewDiskUsage(dir).Free())
		},
	}
}

// rotated returns the numbered generations, newest first.
func (l *logFiles) rotated() []string {
	entries, err := os.ReadDir(l.dir)
	logs := make([]string, 0)
	if err != nil {
		return logs
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), debugLogFile+".") {
			logs = append(logs, filepath.Join(l.dir, e.Name()))
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logNum(logs[i]) < logNum(logs[j]) })
	return logs
}

func logNum(path string) int {
	parts := strings.Split(path, ".")
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return -1
	}
	return n
}

func (l *logFiles) rotate() error {
	logs := l.rotated()

	// rename suffix, remove if > maxLogFiles
	for i := len(logs) - 1; i >= 0; i-- {
		n := logNum(logs[i])
		if n < 0 {
			continue
		}
		if n >= maxLogFiles {
			os.Remove(logs[i])
		} else {
			os.Rename(logs[i], l.path+"."+strconv.Itoa(n+1))
		}
	}

	// Now rename current log file and re-open
	os.Rename(l.path, l.path+".1")
	return l.open()
}

func (l *logFiles) deleteOldest() int64 {
	logs := l.rotated()
	if len(logs) == 0 {
		return 0
	}
	oldest := logs[len(logs)-1]
	stat, err := os.Stat(oldest)
	if err != nil {
		return 0
	}
	if err := os.Remove(oldest); err != nil {
		return 0
	}
	return stat.Size()
}

func (l *logFiles) open() error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", l.dir)
	}
	fp, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return errors.Wrapf(err, "failed to open '%s'", l.path)
	}

	l.mu.Lock()
	old := l.fp
	l.fp = fp
	l.mu.Unlock()

	l.logger.SetOutput(io.MultiWriter(fp, os.Stdout))
	if old != nil {
		old.Close()
	}
	return nil
}

// check rotates an oversized log and trims old generations while the disk
// is low on space.
func (l *logFiles) check() {
	if st, err := os.Stat(l.path); err == nil && st.Size() > maxLogSize {
		if err := l.rotate(); err != nil {
			l.logger.WithError(err).Warn("log rotation failed")
		}
	}

	free := l.freeBytes(l.dir)
	for free < minFreeLogDisk {
		deleted := l.deleteOldest()
		if deleted == 0 {
			break
		}
		free += deleted
	}
}

func (l *logFiles) watch(stop <-chan struct{}) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		l.check()
		select {
		case <-t.C:
		case <-stop:
			return
		}
	}
}

func (l *logFiles) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fp == nil {
		return nil
	}
	err := l.fp.Close()
	l.fp = nil
	return err
}

// initLogging points logger at dir/compass.log and starts the rotation watcher.
func initLogging(dir string, debug bool, logger *logrus.Logger, stop <-chan struct{}) (*logFiles, error) {
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	lf := newLogFiles(dir, logger)
	if err := lf.open(); err != nil {
		return nil, err
	}
	go lf.watch(stop)
	return lf, nil
}
