package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/openfroyo/vnflcm/pkg/descriptor"
	"github.com/openfroyo/vnflcm/pkg/engine"
)

// DefaultDebounce is how long a Watcher waits for writes to settle.
const DefaultDebounce = 300 * time.Millisecond

// ApplyDescriptors loads, validates and applies descriptor files to a
// context.
func (m *Manager) ApplyDescriptors(ctx context.Context, contextName string, paths ...string) (*engine.Model, error) {
	batch, err := LoadBatch(ctx, paths...)
	if err != nil {
		return nil, err
	}
	return m.Apply(ctx, contextName, batch)
}

// LoadBatch reads descriptor files and converts them into a batch. Schema
// findings are returned as a validation error.
func LoadBatch(ctx context.Context, paths ...string) (engine.Batch, error) {
	doc, err := descriptor.Load(ctx, paths...)
	if err != nil {
		return nil, engine.NewValidationError("failed to load descriptors", err).
			WithCode(engine.ErrCodeValidation)
	}

	findings, err := descriptor.Validate(doc)
	if err != nil {
		return nil, err
	}
	if len(findings) > 0 {
		return nil, engine.NewValidationError(
			fmt.Sprintf("descriptor has %d schema findings", len(findings)),
			descriptor.ValidationErrors(findings),
		).WithCode(engine.ErrCodeValidation)
	}

	return descriptor.ToBatch(doc)
}

// Report is the outcome of one Watcher apply.
type Report struct {
	Time  time.Time
	Model *engine.Model
	Err   error
}

// Watcher re-applies descriptor files to a context whenever they change.
type Watcher struct {
	manager     *Manager
	contextName string
	paths       []string
	debounce    time.Duration
	onApply     func(Report)
	logger      zerolog.Logger
}

// NewWatcher creates a watcher over descriptor files or directories.
func NewWatcher(manager *Manager, contextName string, paths []string, logger zerolog.Logger) *Watcher {
	return &Watcher{
		manager:     manager,
		contextName: contextName,
		paths:       paths,
		debounce:    DefaultDebounce,
		onApply:     func(Report) {},
		logger:      logger.With().Str("component", "watcher").Str("context", contextName).Logger(),
	}
}

// WithDebounce sets the settle delay.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// OnApply sets the callback receiving every apply outcome.
func (w *Watcher) OnApply(fn func(Report)) *Watcher {
	w.onApply = fn
	return w
}

// Run applies the descriptors once, then again after every burst of changes,
// until ctx is done. Apply failures are reported, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// parent directories are watched so editors replacing files by rename
	// keep being noticed
	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, path := range w.paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		watchDir := abs
		if info.IsDir() {
			dirs[abs] = true
		} else {
			files[abs] = true
			watchDir = filepath.Dir(abs)
		}
		if err := watcher.Add(watchDir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", watchDir, err)
		}
	}

	relevant := func(name string) bool {
		if files[name] {
			return true
		}
		return dirs[filepath.Dir(name)] && descriptor.IsDescriptorFile(name)
	}

	w.logger.Info().Strs("paths", w.paths).Msg("Watching descriptors")
	w.apply(ctx)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if abs, err := filepath.Abs(event.Name); err != nil || !relevant(abs) {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Descriptor changed")
			timer.Reset(w.debounce)

		case <-timer.C:
			w.apply(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) apply(ctx context.Context) {
	model, err := w.manager.ApplyDescriptors(ctx, w.contextName, w.paths...)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Descriptors not applied")
	}
	w.onApply(Report{Time: time.Now().UTC(), Model: model, Err: err})
}
