package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/finsight/internal/logger"
)

// ChangeType describes what happened to a corpus file.
type ChangeType string

// Change types.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is a corpus file event with the metadata derived from its path.
type Change struct {
	Type  ChangeType
	Entry Entry
}

// Watcher reports changes to indexable files under a corpus root.
type Watcher struct {
	root   string
	period string
	exts   map[string]bool
}

// NewWatcher creates a watcher for root. period overrides filename
// periods when set; exts limits which files are reported.
func NewWatcher(root, period string, exts []string) *Watcher {
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}
	return &Watcher{root: root, period: period, exts: allowed}
}

// Run watches the corpus until ctx is cancelled, calling handle for every
// change. New ticker directories are picked up as they appear.
func (w *Watcher) Run(ctx context.Context, handle func(Change)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	tickers, err := DiscoverTickers(w.root)
	if err != nil {
		return err
	}
	for _, t := range tickers {
		if dir, ok := tickerDir(w.root, t); ok {
			if err := fw.Add(dir); err != nil {
				logger.Warn("Cannot watch %s: %v", dir, err)
			}
		}
	}
	logger.Info("Watching %s (%d tickers)", w.root, len(tickers))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.isNewTickerDir(event) {
				logger.Debug("New ticker directory %s", event.Name)
				if err := fw.Add(event.Name); err != nil {
					logger.Warn("Cannot watch %s: %v", event.Name, err)
				}
				continue
			}
			if change := w.handleFsEvent(event); change != nil {
				handle(*change)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) isNewTickerDir(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) || filepath.Dir(event.Name) != filepath.Clean(w.root) {
		return false
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.IsDir() && !isHidden(filepath.Base(event.Name))
}

// handleFsEvent converts a filesystem event into a change, or nil when
// the event is irrelevant.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *Change {
	if isHidden(filepath.Base(event.Name)) || !w.exts[strings.ToLower(filepath.Ext(event.Name))] {
		return nil
	}

	var typ ChangeType
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		typ = ChangeDeleted
	case event.Has(fsnotify.Create):
		typ = ChangeCreated
	case event.Has(fsnotify.Write):
		typ = ChangeUpdated
	default:
		return nil
	}

	if typ != ChangeDeleted {
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
	}

	meta, err := MetaFromPath(event.Name, w.period)
	if err != nil {
		logger.Debug("Ignoring %s: %v", event.Name, err)
		return nil
	}
	return &Change{Type: typ, Entry: Entry{Path: event.Name, Meta: meta}}
}
