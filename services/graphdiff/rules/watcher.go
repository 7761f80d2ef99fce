// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Rename-style saves replace the watched inode, so the watch has to be
// re-established. The new file may not be linked in yet when the event
// arrives; retry briefly before giving up.
const (
	rewatchAttempts = 20
	rewatchDelay    = 25 * time.Millisecond
)

// Watcher keeps a Set in sync with a YAML rules file on disk.
//
// On every write or create event for the watched file, the Watcher reloads
// the file and replaces the Set contents. Rename and remove events trigger
// a rewatch first, so atomic replace-style saves keep hot reload working.
// A reload that fails to parse is logged and skipped; the previous rules
// stay active.
type Watcher struct {
	path    string
	set     *Set
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Watch starts watching path and applying its transitions to set.
//
// The initial file contents are loaded synchronously before returning, so
// a successful Watch means set already reflects the file. Call Close to
// stop watching.
func Watch(path string, set *Set, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	transitions, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	set.Replace(transitions)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create rules watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch rules file %s: %w", path, err)
	}

	w := &Watcher{
		path:    path,
		set:     set,
		logger:  logger,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			switch {
			case event.Op&(fsnotify.Rename|fsnotify.Remove) != 0:
				// Editors and config tools that save atomically rename a
				// new file over the watched path, which kills the watch.
				if !w.rewatch() {
					continue
				}
			case event.Op&(fsnotify.Write|fsnotify.Create) == 0:
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rules watcher error", "error", err.Error())
		}
	}
}

// rewatch re-establishes the watch after the original inode went away.
// Returns false if the path never reappeared.
func (w *Watcher) rewatch() bool {
	w.watcher.Remove(w.path)
	for i := 0; i < rewatchAttempts; i++ {
		if err := w.watcher.Add(w.path); err == nil {
			return true
		}
		time.Sleep(rewatchDelay)
	}
	w.logger.Warn("rules file disappeared, hot reload suspended", "path", w.path)
	return false
}

func (w *Watcher) reload() {
	transitions, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("rules reload failed, keeping previous set",
			"path", w.path, "error", err.Error())
		return
	}
	w.set.Replace(transitions)
	w.logger.Info("rules reloaded",
		"path", w.path, "transitions", len(transitions))
}

// Close stops the watcher and waits for the reload goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
