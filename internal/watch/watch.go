package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/HThanh-how/mkvprocesser/internal/config"
	"github.com/HThanh-how/mkvprocesser/internal/logging"
)

const defaultDebounce = 10 * time.Second

// Trigger runs one processing pass.
type Trigger func(ctx context.Context) error

// Options selects what the watcher reacts to.
type Options struct {
	Folder     string
	Extensions []string
	Recursive  bool
	Debounce   time.Duration
	// SkipDirs are never watched, typically output folders inside the input.
	SkipDirs []string
}

// OptionsFromConfig builds watch options for folder (paths.input_dir when empty).
func OptionsFromConfig(cfg *config.Config, folder string) Options {
	if strings.TrimSpace(folder) == "" {
		folder = cfg.Paths.InputDir
	}
	return Options{
		Folder:     folder,
		Extensions: cfg.Scan.Extensions,
		Recursive:  cfg.Scan.Recursive,
		Debounce:   time.Duration(cfg.Workflow.WatchDebounceSeconds) * time.Second,
		SkipDirs:   []string{cfg.DubbedOutputDir(), cfg.OriginalOutputDir(), cfg.SubtitleOutputDir()},
	}
}

// Watcher calls its trigger once at start and again whenever a matching file
// changes.
type Watcher struct {
	opts    Options
	exts    map[string]struct{}
	skip    map[string]struct{}
	trigger Trigger
	logger  *slog.Logger
}

// New creates a watcher.
func New(opts Options, trigger Trigger, logger *slog.Logger) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	opts.Folder = filepath.Clean(opts.Folder)
	w := &Watcher{
		opts:    opts,
		exts:    make(map[string]struct{}, len(opts.Extensions)),
		skip:    make(map[string]struct{}, len(opts.SkipDirs)),
		trigger: trigger,
		logger:  logging.NewComponentLogger(logger, "watch"),
	}
	for _, ext := range opts.Extensions {
		w.exts[strings.ToLower(ext)] = struct{}{}
	}
	for _, dir := range opts.SkipDirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if dir = filepath.Clean(dir); dir != opts.Folder {
			w.skip[dir] = struct{}{}
		}
	}
	return w
}

// Run blocks until ctx is cancelled. Trigger errors are logged and do not stop
// the watcher; only a failure to watch the folder is returned.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.opts.Folder); err != nil {
		return err
	}
	w.logger.Info("watching folder",
		logging.String(logging.FieldEventType, "watch_started"),
		logging.String("folder", w.opts.Folder),
		logging.Bool("recursive", w.opts.Recursive),
		logging.Duration("debounce", w.opts.Debounce),
	)

	w.fire(ctx, "startup")

	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer timer.Stop()
	var lastPath string

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watch stopped", logging.String(logging.FieldEventType, "watch_stopped"))
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.opts.Recursive && event.Has(fsnotify.Create) && w.watchableDir(event.Name) {
				if err := w.addTree(fw, event.Name); err != nil {
					w.logger.Warn("watch subfolder failed",
						logging.String("folder", event.Name),
						logging.Error(err),
						logging.String(logging.FieldEventType, "watch_add_failed"),
						logging.String(logging.FieldErrorHint, "check inotify limits (fs.inotify.max_user_watches)"),
						logging.String(logging.FieldImpact, "new files in this folder are picked up on the next full run only"),
					)
				}
				lastPath = event.Name
				timer.Reset(w.opts.Debounce)
				continue
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("media change detected",
				logging.String("path", event.Name),
				logging.String("op", event.Op.String()),
			)
			lastPath = event.Name
			timer.Reset(w.opts.Debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "watch_error"),
				logging.String(logging.FieldErrorHint, "check inotify limits and folder permissions"),
				logging.String(logging.FieldImpact, "some changes may be missed until the next event"),
			)
		case <-timer.C:
			w.fire(ctx, lastPath)
		}
	}
}

func (w *Watcher) fire(ctx context.Context, cause string) {
	if ctx.Err() != nil {
		return
	}
	w.logger.Info("starting run",
		logging.String(logging.FieldEventType, "watch_trigger"),
		logging.String("cause", cause),
	)
	if err := w.trigger(ctx); err != nil {
		logging.WarnWithContext(w.logger, "watch run failed", "watch_run_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see the run error; the next change retries"),
			logging.String(logging.FieldImpact, "files stay unprocessed until the next run"),
		)
	}
}

// relevant reports whether event concerns a candidate media file.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".part") {
		return false
	}
	if len(w.exts) == 0 {
		return true
	}
	_, ok := w.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (w *Watcher) watchableDir(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	if _, ok := w.skip[filepath.Clean(path)]; ok {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	if !w.opts.Recursive {
		if err := fw.Add(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && !w.watchableDir(path) {
			return fs.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
