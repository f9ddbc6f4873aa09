// Package cache keeps read-through, id-indexed snapshots of the catalog.
//
// Each kind is loaded on first access and reloaded when Refresh is called
// after a committed mutation. Callers receive copies of the maps, so a
// snapshot stays consistent while the engine walks it.
package cache

import (
	"context"
	"fmt"
	"sync"

	"mod-catalog/db"

	"go.uber.org/zap"
)

// Kind names a cached entity type.
type Kind string

const (
	KindProjects     Kind = "projects"
	KindVersions     Kind = "versions"
	KindGameVersions Kind = "gameVersions"
	KindGames        Kind = "games"
	KindEditQueue    Kind = "editQueue"
)

// Source lists every record of each cached kind.
type Source interface {
	ListProjects(ctx context.Context) ([]db.Project, error)
	ListVersions(ctx context.Context) ([]db.Version, error)
	ListGameVersions(ctx context.Context) ([]db.GameVersion, error)
	ListGames(ctx context.Context) ([]db.Game, error)
	ListEdits(ctx context.Context) ([]db.EditQueue, error)
}

type table[T any] struct {
	loaded bool
	all    []T
	byID   map[uint]T
}

func (t *table[T]) fill(rows []T, id func(T) uint) {
	t.all = rows
	t.byID = make(map[uint]T, len(rows))
	for _, row := range rows {
		t.byID[id(row)] = row
	}
	t.loaded = true
}

// Cache is the catalog snapshot shared by the engine and its callers.
type Cache struct {
	src Source
	log *zap.SugaredLogger

	mu           sync.RWMutex
	projects     table[db.Project]
	versions     table[db.Version]
	gameVersions table[db.GameVersion]
	games        table[db.Game]
	edits        table[db.EditQueue]
}

func New(src Source, log *zap.SugaredLogger) *Cache {
	return &Cache{src: src, log: log}
}

// Refresh reloads one kind. On failure the kind is marked stale so the next
// read retries the load.
func (c *Cache) Refresh(ctx context.Context, kind Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx, kind); err != nil {
		c.invalidateLocked(kind)
		c.log.Warnw("Cache refresh failed", zap.String("kind", string(kind)), zap.Error(err))
		return err
	}
	c.log.Debugw("Cache refreshed", zap.String("kind", string(kind)))
	return nil
}

func (c *Cache) invalidateLocked(kind Kind) {
	switch kind {
	case KindProjects:
		c.projects.loaded = false
	case KindVersions:
		c.versions.loaded = false
	case KindGameVersions:
		c.gameVersions.loaded = false
	case KindGames:
		c.games.loaded = false
	case KindEditQueue:
		c.edits.loaded = false
	}
}

func (c *Cache) loadLocked(ctx context.Context, kind Kind) error {
	switch kind {
	case KindProjects:
		rows, err := c.src.ListProjects(ctx)
		if err != nil {
			return err
		}
		c.projects.fill(rows, func(p db.Project) uint { return p.ID })
	case KindVersions:
		rows, err := c.src.ListVersions(ctx)
		if err != nil {
			return err
		}
		c.versions.fill(rows, func(v db.Version) uint { return v.ID })
	case KindGameVersions:
		rows, err := c.src.ListGameVersions(ctx)
		if err != nil {
			return err
		}
		c.gameVersions.fill(rows, func(gv db.GameVersion) uint { return gv.ID })
	case KindGames:
		rows, err := c.src.ListGames(ctx)
		if err != nil {
			return err
		}
		c.games.fill(rows, func(g db.Game) uint { return g.ID })
	case KindEditQueue:
		rows, err := c.src.ListEdits(ctx)
		if err != nil {
			return err
		}
		c.edits.fill(rows, func(e db.EditQueue) uint { return e.ID })
	default:
		return fmt.Errorf("unknown cache kind %q", kind)
	}
	return nil
}

// ensure loads kind if it is not loaded yet. loaded reads t.loaded under the
// read lock.
func (c *Cache) ensure(ctx context.Context, kind Kind, loaded func() bool) error {
	c.mu.RLock()
	ok := loaded()
	c.mu.RUnlock()
	if ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if loaded() {
		return nil
	}
	return c.loadLocked(ctx, kind)
}

func snapshot[T any](ctx context.Context, c *Cache, kind Kind, t *table[T]) ([]T, map[uint]T, error) {
	if err := c.ensure(ctx, kind, func() bool { return t.loaded }); err != nil {
		return nil, nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	all := make([]T, len(t.all))
	copy(all, t.all)
	byID := make(map[uint]T, len(t.byID))
	for id, row := range t.byID {
		byID[id] = row
	}
	return all, byID, nil
}

func (c *Cache) Projects(ctx context.Context) ([]db.Project, error) {
	all, _, err := snapshot(ctx, c, KindProjects, &c.projects)
	return all, err
}

func (c *Cache) ProjectsByID(ctx context.Context) (map[uint]db.Project, error) {
	_, byID, err := snapshot(ctx, c, KindProjects, &c.projects)
	return byID, err
}

func (c *Cache) Versions(ctx context.Context) ([]db.Version, error) {
	all, _, err := snapshot(ctx, c, KindVersions, &c.versions)
	return all, err
}

func (c *Cache) VersionsByID(ctx context.Context) (map[uint]db.Version, error) {
	_, byID, err := snapshot(ctx, c, KindVersions, &c.versions)
	return byID, err
}

func (c *Cache) GameVersions(ctx context.Context) ([]db.GameVersion, error) {
	all, _, err := snapshot(ctx, c, KindGameVersions, &c.gameVersions)
	return all, err
}

func (c *Cache) GameVersionsByID(ctx context.Context) (map[uint]db.GameVersion, error) {
	_, byID, err := snapshot(ctx, c, KindGameVersions, &c.gameVersions)
	return byID, err
}

func (c *Cache) Games(ctx context.Context) ([]db.Game, error) {
	all, _, err := snapshot(ctx, c, KindGames, &c.games)
	return all, err
}

func (c *Cache) Edits(ctx context.Context) ([]db.EditQueue, error) {
	all, _, err := snapshot(ctx, c, KindEditQueue, &c.edits)
	return all, err
}
