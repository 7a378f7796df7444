// Package models tracks on-disk presence and download status of the
// three managed weight files (DTLN's two stages and the shared STT
// model), the same bounded mutex-guarded map shape as the recipe
// source, repointed at ModelKind -> Status.
package models

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/whiskerware/voicecore/internal/domain"
	"github.com/whiskerware/voicecore/internal/logger"
)

// State is one entry's download/presence state.
type State int

const (
	// StateMissing means no file exists at the configured path yet.
	StateMissing State = iota
	// StateDownloading means a download is in progress.
	StateDownloading
	// StateReady means the file is present on disk.
	StateReady
	// StateFailed means the most recent download attempt failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateDownloading:
		return "downloading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status reports one model's location and current state.
type Status struct {
	Kind  domain.ModelKind
	Path  string
	State State
	Err   error
}

// Fetcher retrieves a model's bytes from wherever they are hosted.
// The registry never assumes a transport; callers supply one (an HTTP
// client, a local mirror, a test stub).
type Fetcher func(ctx context.Context, kind domain.ModelKind) (io.ReadCloser, error)

// Registry tracks the three managed model files. Safe for concurrent
// use.
type Registry struct {
	mu     sync.RWMutex
	paths  map[domain.ModelKind]string
	status map[domain.ModelKind]State
	errs   map[domain.ModelKind]error
	fetch  Fetcher
	log    *logger.Logger
}

// New creates a Registry for the three managed kinds, reading initial
// on-disk presence from paths (keyed by kind). fetch supplies bytes
// for Download; a nil fetch makes Download always fail with
// domain.ErrModelNotFound.
func New(paths map[domain.ModelKind]string, fetch Fetcher, log *logger.Logger) *Registry {
	r := &Registry{
		paths:  make(map[domain.ModelKind]string, len(paths)),
		status: make(map[domain.ModelKind]State, len(paths)),
		errs:   make(map[domain.ModelKind]error, len(paths)),
		fetch:  fetch,
		log:    log,
	}
	for kind, path := range paths {
		r.paths[kind] = path
		if path != "" {
			if _, err := os.Stat(path); err == nil {
				r.status[kind] = StateReady
				continue
			}
		}
		r.status[kind] = StateMissing
	}
	return r
}

// Status returns the current status of kind.
func (r *Registry) Status(kind domain.ModelKind) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{
		Kind:  kind,
		Path:  r.paths[kind],
		State: r.status[kind],
		Err:   r.errs[kind],
	}
}

// All returns the status of every managed kind, in a stable order.
func (r *Registry) All() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := []domain.ModelKind{domain.ModelKindDenoiseStage1, domain.ModelKindDenoiseStage2, domain.ModelKindSTT}
	out := make([]Status, 0, len(kinds))
	for _, k := range kinds {
		if _, tracked := r.paths[k]; !tracked {
			continue
		}
		out = append(out, Status{Kind: k, Path: r.paths[k], State: r.status[k], Err: r.errs[k]})
	}
	return out
}

// Download fetches kind's weight file and writes it atomically: the
// stream lands in a temp file beside the target path, which is
// fsynced and renamed into place only once it has landed in full, so
// a crash mid-download never leaves a truncated file masquerading as
// a ready model.
func (r *Registry) Download(ctx context.Context, kind domain.ModelKind) error {
	r.mu.Lock()
	path, tracked := r.paths[kind]
	if !tracked || path == "" {
		r.mu.Unlock()
		return &domain.ModelError{Kind: kind, Err: domain.ErrModelNotFound}
	}
	r.status[kind] = StateDownloading
	r.errs[kind] = nil
	r.mu.Unlock()

	if err := r.download(ctx, kind, path); err != nil {
		r.mu.Lock()
		r.status[kind] = StateFailed
		r.errs[kind] = err
		r.mu.Unlock()
		r.log.Error("model download failed: %s: %v", kind, err)
		return &domain.ModelError{Kind: kind, Path: path, Err: err}
	}

	r.mu.Lock()
	r.status[kind] = StateReady
	r.errs[kind] = nil
	r.mu.Unlock()
	r.log.Info("model download complete: %s -> %s", kind, path)
	return nil
}

func (r *Registry) download(ctx context.Context, kind domain.ModelKind, path string) error {
	if r.fetch == nil {
		return domain.ErrModelNotFound
	}

	src, err := r.fetch(ctx, kind)
	if err != nil {
		return err
	}
	defer src.Close()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".model-download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
