// Package watcher reports changes below the books root to in-process subscribers.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Event describes one change. Path is relative to the root, slash separated.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher registers every directory below root with fsnotify, including
// directories created later, and fans events out to subscribers. A subscriber
// that does not keep up loses events; the watcher never blocks on one.
type Watcher struct {
	root   string
	buffer int
	fw     *fsnotify.Watcher

	mu     sync.Mutex
	subs   []chan Event
	closed bool
}

// New creates a Watcher for root. bufferSize is the capacity of each
// subscriber channel.
func New(root string, bufferSize int) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{root: abs, buffer: max(bufferSize, 1), fw: fw}
	if err := w.addTree(abs); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Subscribe returns a channel of events. It is closed when Run returns.
func (w *Watcher) Subscribe() <-chan Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan Event, w.buffer)
	if w.closed {
		close(ch)
		return ch
	}
	w.subs = append(w.subs, ch)
	return ch
}

// Run delivers events until ctx is cancelled, then releases the fsnotify
// watcher and closes all subscriber channels.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	if hidden(rel) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				slog.Warn("watch new directory failed", "path", rel, "error", err)
			}
		}
	}
	w.publish(Event{Path: rel, Op: ev.Op})
}

func (w *Watcher) publish(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("watcher subscriber full, dropping event", "path", ev.Path)
		}
	}
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p != dir && errors.Is(err, fs.ErrNotExist) {
				// removed while walking
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) shutdown() {
	w.fw.Close()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for _, ch := range w.subs {
		close(ch)
	}
	w.subs = nil
}

func hidden(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
