// Package engine implements the catalog's publication lifecycle: moderation
// status transitions, the edit queue for published objects, and resolution of
// declared dependencies against the live catalog.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"mod-catalog/cache"
	"mod-catalog/db"
	"mod-catalog/notify"

	"go.uber.org/zap"
)

// Catalog is the cached, id-indexed view of the catalog the engine reads and
// refreshes after committed mutations.
type Catalog interface {
	Refresh(ctx context.Context, kind cache.Kind) error
	ProjectsByID(ctx context.Context) (map[uint]db.Project, error)
	Versions(ctx context.Context) ([]db.Version, error)
	VersionsByID(ctx context.Context) (map[uint]db.Version, error)
	GameVersionsByID(ctx context.Context) (map[uint]db.GameVersion, error)
}

// FileStore answers whether an uploaded archive still exists.
type FileStore interface {
	Exists(ctx context.Context, hash string) (bool, error)
}

// Options wires an Engine to its collaborators. Notifier and Now are optional.
type Options struct {
	Repo     db.Repository
	Catalog  Catalog
	Notifier notify.Notifier
	Files    FileStore
	Log      *zap.SugaredLogger
	Now      func() time.Time
}

// Engine is safe for concurrent use.
type Engine struct {
	repo     db.Repository
	catalog  Catalog
	notifier notify.Notifier
	files    FileStore
	log      *zap.SugaredLogger
	now      func() time.Time
	locks    keyedMutex
}

func New(opts Options) *Engine {
	e := &Engine{
		repo:     opts.Repo,
		catalog:  opts.Catalog,
		notifier: opts.Notifier,
		files:    opts.Files,
		log:      opts.Log,
		now:      opts.Now,
	}
	if e.notifier == nil {
		e.notifier = notify.Nop{}
	}
	if e.log == nil {
		e.log = zap.NewNop().Sugar()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Kind tags which entity a Target holds.
type Kind string

const (
	KindProject Kind = "project"
	KindVersion Kind = "version"
)

// Target is a project or a version. Exactly one pointer is set.
type Target struct {
	Project *db.Project
	Version *db.Version
}

func ProjectTarget(p *db.Project) Target { return Target{Project: p} }

func VersionTarget(v *db.Version) Target { return Target{Version: v} }

func (t Target) Kind() Kind {
	if t.Version != nil {
		return KindVersion
	}
	return KindProject
}

func (t Target) valid() bool {
	return (t.Project == nil) != (t.Version == nil)
}

func (t Target) ID() uint {
	if t.Version != nil {
		return t.Version.ID
	}
	if t.Project != nil {
		return t.Project.ID
	}
	return 0
}

func (t Target) Status() db.Status {
	if t.Version != nil {
		return t.Version.Status
	}
	if t.Project != nil {
		return t.Project.Status
	}
	return ""
}

func (t Target) table() db.EditTable {
	if t.Kind() == KindVersion {
		return db.EditTableVersions
	}
	return db.EditTableProjects
}

func (t Target) cacheKind() cache.Kind {
	if t.Kind() == KindVersion {
		return cache.KindVersions
	}
	return cache.KindProjects
}

func (t Target) logFields() []any {
	return []any{zap.String("kind", string(t.Kind())), zap.Uint("id", t.ID())}
}

// refresh tells the cache the given kinds changed. The mutation is already
// committed, so a failed refresh is logged and the cache reloads on next read.
func (e *Engine) refresh(ctx context.Context, kinds ...cache.Kind) {
	if e.catalog == nil {
		return
	}
	for _, k := range kinds {
		if err := e.catalog.Refresh(ctx, k); err != nil {
			e.log.Warnw("Cache refresh after mutation failed", zap.String("kind", string(k)), zap.Error(err))
		}
	}
}

// emit hands an event to the notifier. Pointers are copied so later mutation
// of the caller's objects cannot race the delivery.
func (e *Engine) emit(ctx context.Context, kind notify.EventKind, project *db.Project, version *db.Version, edit *db.EditQueue, actor *db.User, reason string) {
	ev := notify.Event{Kind: kind, Reason: reason, At: e.now()}
	if project != nil {
		p := *project
		ev.Project = &p
	}
	if version != nil {
		v := *version
		ev.Version = &v
	}
	if edit != nil {
		q := *edit
		ev.Edit = &q
	}
	if actor != nil {
		a := *actor
		ev.Actor = &a
	}
	e.notifier.Notify(ctx, ev)
}

const defaultReason = "No reason provided."

func normalizeReason(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return defaultReason
	}
	return strings.TrimSpace(reason)
}

// keyedMutex serializes work per key, e.g. per edit-queue target.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns its unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
