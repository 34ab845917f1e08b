// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Watcher hot-reloads a config file, debouncing rapid successive writes the
// same way trellis's binary watcher debounces filesystem churn.
type Watcher struct {
	path   string
	loader *Loader
	onLoad func(*Config)

	mu      sync.Mutex
	timer   *time.Timer
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for path that calls onLoad whenever the file
// changes and reloads cleanly.
func NewWatcher(path string, onLoad func(*Config)) *Watcher {
	return &Watcher{
		path:   path,
		loader: NewLoader(),
		onLoad: onLoad,
	}
}

// Start begins watching. It returns once the initial watch is established;
// reload events are delivered asynchronously until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) debounceReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, func() {
		cfg, err := w.loader.LoadWithDefaults(context.Background(), w.path)
		if err != nil {
			log.Printf("config reload failed, keeping previous config: %v", err)
			return
		}
		w.onLoad(cfg)
	})
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
}
