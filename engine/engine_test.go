package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mod-catalog/cache"
	"mod-catalog/db"
	"mod-catalog/files"
	"mod-catalog/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, e notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) kinds() []notify.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recordingNotifier) last() notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	ctx   context.Context
	gdb   *gorm.DB
	store *db.Store
	cache *cache.Cache
	files *files.DiskStore
	notes *recordingNotifier
	eng   *Engine

	admin  *db.User
	author *db.User
	other  *db.User
	gv1    *db.GameVersion
	gv2    *db.GameVersion
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	log := zap.NewNop().Sugar()
	store := db.NewStore(gdb)

	var clockMu sync.Mutex
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	f := &fixture{
		ctx:   context.Background(),
		gdb:   gdb,
		store: store,
		cache: cache.New(store, log),
		files: files.NewDiskStore(t.TempDir()),
		notes: &recordingNotifier{},
	}
	f.eng = New(Options{Repo: store, Catalog: f.cache, Notifier: f.notes, Files: f.files, Log: log, Now: now})

	f.admin = f.user(t, "admin", db.RoleSet{Sitewide: []db.Role{db.RoleAllPermissions}})
	f.author = f.user(t, "author", db.RoleSet{})
	f.other = f.user(t, "other", db.RoleSet{})

	if _, err := f.eng.CreateGame(f.ctx, "BeatSaber", f.admin); err != nil {
		t.Fatalf("CreateGame() failed: %v", err)
	}
	if f.gv1, err = f.eng.CreateGameVersion(f.ctx, "BeatSaber", "1.29.1", f.admin); err != nil {
		t.Fatalf("CreateGameVersion() failed: %v", err)
	}
	if f.gv2, err = f.eng.CreateGameVersion(f.ctx, "BeatSaber", "1.34.2", f.admin); err != nil {
		t.Fatalf("CreateGameVersion() failed: %v", err)
	}
	return f
}

func (f *fixture) user(t *testing.T, name string, roles db.RoleSet) *db.User {
	t.Helper()
	u := &db.User{Username: name, Roles: roles}
	if err := f.store.CreateUser(f.ctx, u); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", name, err)
	}
	return u
}

// project creates a project by f.author and moves it to status.
func (f *fixture) project(t *testing.T, name string, status db.Status) *db.Project {
	t.Helper()
	p, err := f.eng.CreateProject(f.ctx, NewProject{Name: name, GameName: "BeatSaber", Category: "Other", Summary: name + " summary"}, f.author)
	if err != nil {
		t.Fatalf("CreateProject(%s) failed: %v", name, err)
	}
	if status != db.StatusPrivate {
		if err := f.eng.SetStatus(f.ctx, ProjectTarget(p), status, f.admin, ""); err != nil {
			t.Fatalf("SetStatus(%s) failed: %v", name, err)
		}
	}
	f.notes.reset()
	return p
}

type versionOpts struct {
	platform     db.Platform
	gameVersions []uint
	deps         []db.Dependency
	zipHash      string
}

// version creates a version of p by f.author and moves it to status.
func (f *fixture) version(t *testing.T, p *db.Project, modVersion string, status db.Status, opts versionOpts) *db.Version {
	t.Helper()
	if opts.platform == "" {
		opts.platform = db.PlatformUniversalPC
	}
	if len(opts.gameVersions) == 0 {
		opts.gameVersions = []uint{f.gv1.ID}
	}
	v, err := f.eng.CreateVersion(f.ctx, NewVersion{
		ProjectID:               p.ID,
		ModVersion:              modVersion,
		Platform:                opts.platform,
		SupportedGameVersionIDs: opts.gameVersions,
		Dependencies:            opts.deps,
		ZipHash:                 opts.zipHash,
	}, f.author)
	if err != nil {
		t.Fatalf("CreateVersion(%s %s) failed: %v", p.Name, modVersion, err)
	}
	if status != db.StatusPrivate {
		if err := f.eng.SetStatus(f.ctx, VersionTarget(v), status, f.admin, ""); err != nil {
			t.Fatalf("SetStatus(%s %s) failed: %v", p.Name, modVersion, err)
		}
	}
	f.notes.reset()
	return v
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	var k keyedMutex
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("projects:1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("expected 50 increments, got %d", counter)
	}
	if len(k.locks) != 0 {
		t.Errorf("expected lock table to be empty after use, got %d entries", len(k.locks))
	}
}

func TestNormalizeReason(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", defaultReason},
		{"   \t", defaultReason},
		{" looks good ", "looks good"},
	}
	for _, tt := range tests {
		if got := normalizeReason(tt.in); got != tt.want {
			t.Errorf("normalizeReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTargetAccessors(t *testing.T) {
	p := &db.Project{Status: db.StatusPending}
	p.ID = 3
	v := &db.Version{Status: db.StatusVerified}
	v.ID = 9

	pt, vt := ProjectTarget(p), VersionTarget(v)
	if pt.Kind() != KindProject || vt.Kind() != KindVersion {
		t.Errorf("unexpected kinds %s %s", pt.Kind(), vt.Kind())
	}
	if pt.ID() != 3 || vt.ID() != 9 {
		t.Errorf("unexpected ids %d %d", pt.ID(), vt.ID())
	}
	if pt.table() != db.EditTableProjects || vt.table() != db.EditTableVersions {
		t.Errorf("unexpected tables %s %s", pt.table(), vt.table())
	}
	if (Target{}).valid() || (Target{Project: p, Version: v}).valid() {
		t.Error("expected empty and doubly-set targets to be invalid")
	}
	if vt.Status() != db.StatusVerified || pt.Status() != db.StatusPending {
		t.Errorf("unexpected statuses %s %s", pt.Status(), vt.Status())
	}
}
