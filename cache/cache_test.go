package cache

import (
	"context"
	"errors"
	"testing"

	"mod-catalog/db"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeSource struct {
	projects []db.Project
	calls    int
	fail     error
}

func (f *fakeSource) ListProjects(context.Context) ([]db.Project, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	return f.projects, nil
}

func (f *fakeSource) ListVersions(context.Context) ([]db.Version, error) { return nil, nil }

func (f *fakeSource) ListGameVersions(context.Context) ([]db.GameVersion, error) { return nil, nil }

func (f *fakeSource) ListGames(context.Context) ([]db.Game, error) { return nil, nil }

func (f *fakeSource) ListEdits(context.Context) ([]db.EditQueue, error) { return nil, nil }

func project(id uint, name string) db.Project {
	return db.Project{Model: gorm.Model{ID: id}, Name: name}
}

func TestCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{projects: []db.Project{project(1, "Foo"), project(2, "Bar")}}
	c := New(src, zap.NewNop().Sugar())

	byID, err := c.ProjectsByID(ctx)
	if err != nil {
		t.Fatalf("ProjectsByID() failed: %v", err)
	}
	if byID[2].Name != "Bar" {
		t.Fatalf("expected project 2 to be Bar, got %q", byID[2].Name)
	}

	if _, err := c.Projects(ctx); err != nil {
		t.Fatalf("Projects() failed: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected a single load, got %d", src.calls)
	}
}

func TestCacheRefresh(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{projects: []db.Project{project(1, "Foo")}}
	c := New(src, zap.NewNop().Sugar())

	if _, err := c.Projects(ctx); err != nil {
		t.Fatalf("Projects() failed: %v", err)
	}

	src.projects = append(src.projects, project(2, "Bar"))
	if err := c.Refresh(ctx, KindProjects); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	all, _ := c.Projects(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 projects after refresh, got %d", len(all))
	}
}

func TestCacheRefreshFailureMarksStale(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{projects: []db.Project{project(1, "Foo")}}
	c := New(src, zap.NewNop().Sugar())

	if _, err := c.Projects(ctx); err != nil {
		t.Fatalf("Projects() failed: %v", err)
	}

	src.fail = errors.New("database gone")
	if err := c.Refresh(ctx, KindProjects); err == nil {
		t.Fatal("expected refresh error")
	}
	if _, err := c.Projects(ctx); err == nil {
		t.Fatal("expected stale kind to retry and fail")
	}

	src.fail = nil
	all, err := c.Projects(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("expected recovery after source heals, got %v, %v", all, err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{projects: []db.Project{project(1, "Foo")}}
	c := New(src, zap.NewNop().Sugar())

	byID, _ := c.ProjectsByID(ctx)
	delete(byID, 1)

	again, _ := c.ProjectsByID(ctx)
	if _, ok := again[1]; !ok {
		t.Fatal("mutating a snapshot must not affect the cache")
	}
}

func TestRefreshUnknownKind(t *testing.T) {
	c := New(&fakeSource{}, zap.NewNop().Sugar())
	if err := c.Refresh(context.Background(), Kind("users")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
