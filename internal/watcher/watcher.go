// Package watcher triggers re-ingestion when workbooks in the documents
// directory are added or modified.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/qa-insight/qa-rag-server/internal/indexer"
)

// Trigger requests an ingestion run; indexer.Runner implements it.
type Trigger interface {
	Trigger() error
}

// Watcher watches a documents directory for workbook changes.
type Watcher struct {
	fs      *fsnotify.Watcher
	trigger Trigger
	logger  *slog.Logger
}

// New creates a watcher on the given directory. Only .xlsx create and write
// events trigger ingestion.
func New(docsDir string, trigger Trigger, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fs.Add(docsDir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", docsDir, err)
	}

	return &Watcher{
		fs:      fs,
		trigger: trigger,
		logger:  logger,
	}, nil
}

// Start runs the event loop until ctx is cancelled. Triggers dropped by the
// single-flight guard are logged and lost; whoever changed the file must
// retrigger once the running ingestion completes.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		defer w.fs.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fs.Events:
				if !ok {
					return
				}
				w.handle(event)
			case err, ok := <-w.fs.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watcher error", "error", err)
			}
		}
	}()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}
	if !strings.HasSuffix(strings.ToLower(event.Name), ".xlsx") {
		return
	}

	w.logger.Info("detected workbook change, triggering ingestion", "file", event.Name)
	if err := w.trigger.Trigger(); err != nil {
		if errors.Is(err, indexer.ErrAlreadyRunning) {
			w.logger.Info("ingestion already in progress, trigger dropped", "file", event.Name)
			return
		}
		w.logger.Warn("trigger failed", "error", err)
	}
}
