package engine

import (
	"slices"
	"testing"

	"mod-catalog/apperr"
	"mod-catalog/db"
	"mod-catalog/notify"
)

func TestCreateProject(t *testing.T) {
	f := newFixture(t)

	p, err := f.eng.CreateProject(f.ctx, NewProject{Name: " Foo ", GameName: "BeatSaber", Category: "Core"}, f.author)
	if err != nil {
		t.Fatalf("CreateProject() failed: %v", err)
	}
	if p.Name != "Foo" || p.Status != db.StatusPrivate {
		t.Errorf("unexpected project %+v", p)
	}
	if !slices.Equal(p.AuthorIDs, []uint{f.author.ID}) {
		t.Errorf("expected submitter as default author, got %v", p.AuthorIDs)
	}
	if len(p.StatusHistory) != 1 || p.StatusHistory[0].Status != db.StatusPrivate {
		t.Errorf("expected an initial private history entry, got %+v", p.StatusHistory)
	}
	if got := f.notes.kinds(); !slices.Equal(got, []notify.EventKind{notify.EventCreated}) {
		t.Errorf("expected a created event, got %v", got)
	}

	tests := []struct {
		name string
		in   NewProject
	}{
		{"duplicate name", NewProject{Name: "Foo", GameName: "BeatSaber", Category: "Core"}},
		{"empty name", NewProject{Name: "  ", GameName: "BeatSaber", Category: "Core"}},
		{"unknown game", NewProject{Name: "Baz", GameName: "Pong", Category: "Core"}},
		{"unknown category", NewProject{Name: "Baz", GameName: "BeatSaber", Category: "Lighting"}},
		{"missing category", NewProject{Name: "Baz", GameName: "BeatSaber"}},
		{"unknown author", NewProject{Name: "Baz", GameName: "BeatSaber", Category: "Core", AuthorIDs: []uint{999}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.eng.CreateProject(f.ctx, tt.in, f.author); !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateVersionValidation(t *testing.T) {
	f := newFixture(t)
	foo := f.project(t, "Foo", db.StatusVerified)
	f.version(t, foo, "1.0.0", db.StatusVerified, versionOpts{})
	bar := f.project(t, "Bar", db.StatusVerified)
	f.version(t, bar, "1.0.0", db.StatusVerified, versionOpts{})

	if _, err := f.eng.CreateGame(f.ctx, "Pong", f.admin); err != nil {
		t.Fatal(err)
	}
	pongVersion, err := f.eng.CreateGameVersion(f.ctx, "Pong", "1.0.0", f.admin)
	if err != nil {
		t.Fatal(err)
	}

	base := func() NewVersion {
		return NewVersion{
			ProjectID:               bar.ID,
			ModVersion:              "1.1.0",
			Platform:                db.PlatformUniversalPC,
			SupportedGameVersionIDs: []uint{f.gv1.ID},
		}
	}
	tests := []struct {
		name   string
		mutate func(*NewVersion)
		actor  *db.User
		kind   apperr.Kind
	}{
		{"self dependency", func(v *NewVersion) {
			v.Dependencies = []db.Dependency{{ParentProjectID: bar.ID, VersionRange: "^1.0.0"}}
		}, f.author, apperr.KindValidation},
		{"duplicate dependency", func(v *NewVersion) {
			v.Dependencies = []db.Dependency{{ParentProjectID: foo.ID, VersionRange: "^1.0.0"}, {ParentProjectID: foo.ID, VersionRange: ">=1.0.0"}}
		}, f.author, apperr.KindValidation},
		{"unknown dependency project", func(v *NewVersion) {
			v.Dependencies = []db.Dependency{{ParentProjectID: 999, VersionRange: "^1.0.0"}}
		}, f.author, apperr.KindValidation},
		{"malformed range", func(v *NewVersion) {
			v.Dependencies = []db.Dependency{{ParentProjectID: foo.ID, VersionRange: "banana"}}
		}, f.author, apperr.KindValidation},
		{"no published version in range", func(v *NewVersion) {
			v.Dependencies = []db.Dependency{{ParentProjectID: foo.ID, VersionRange: "^5.0.0"}}
		}, f.author, apperr.KindValidation},
		{"unknown game version", func(v *NewVersion) { v.SupportedGameVersionIDs = []uint{999} }, f.author, apperr.KindValidation},
		{"game version of another game", func(v *NewVersion) { v.SupportedGameVersionIDs = []uint{pongVersion.ID} }, f.author, apperr.KindValidation},
		{"no game versions", func(v *NewVersion) { v.SupportedGameVersionIDs = nil }, f.author, apperr.KindValidation},
		{"malformed version", func(v *NewVersion) { v.ModVersion = "banana" }, f.author, apperr.KindValidation},
		{"duplicate version", func(v *NewVersion) { v.ModVersion = "1.0.0" }, f.author, apperr.KindValidation},
		{"unknown platform", func(v *NewVersion) { v.Platform = "switch" }, f.author, apperr.KindValidation},
		{"stranger", func(v *NewVersion) {}, f.other, apperr.KindForbidden},
		{"unknown project", func(v *NewVersion) { v.ProjectID = 999 }, f.author, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base()
			tt.mutate(&in)
			if _, err := f.eng.CreateVersion(f.ctx, in, tt.actor); !apperr.Is(err, tt.kind) {
				t.Errorf("expected %s error, got %v", tt.kind, err)
			}
		})
	}
}

func TestCreateVersionNormalizes(t *testing.T) {
	f := newFixture(t)
	foo := f.project(t, "Foo", db.StatusVerified)
	foo1 := f.version(t, foo, "1.0.0", db.StatusVerified, versionOpts{gameVersions: []uint{f.gv1.ID, f.gv2.ID}})
	f.version(t, foo, "1.5.0", db.StatusPending, versionOpts{})
	bar := f.project(t, "Bar", db.StatusVerified)

	v, err := f.eng.CreateVersion(f.ctx, NewVersion{
		ProjectID:               bar.ID,
		ModVersion:              "0.1.0",
		Platform:                db.PlatformSteamPC,
		SupportedGameVersionIDs: []uint{f.gv2.ID, f.gv1.ID, f.gv2.ID},
		Dependencies:            []db.Dependency{{ParentProjectID: foo.ID, VersionRange: " ^1.0.0 "}},
	}, f.author)
	if err != nil {
		t.Fatalf("CreateVersion() failed: %v", err)
	}
	if !slices.Equal(v.SupportedGameVersionIDs, []uint{f.gv1.ID, f.gv2.ID}) {
		t.Errorf("expected de-duplicated, sorted game versions, got %v", v.SupportedGameVersionIDs)
	}
	if len(v.Dependencies) != 1 || v.Dependencies[0].VersionID != foo1.ID || v.Dependencies[0].VersionRange != "^1.0.0" {
		t.Errorf("expected the latest public Foo in range to be recorded, got %+v", v.Dependencies)
	}
	if v.Status != db.StatusPrivate || v.AuthorID != f.author.ID {
		t.Errorf("unexpected version %+v", v)
	}

	// Same semantic version on another platform is a separate build.
	if _, err := f.eng.CreateVersion(f.ctx, NewVersion{
		ProjectID:               bar.ID,
		ModVersion:              "0.1.0",
		Platform:                db.PlatformUniversalQuest,
		SupportedGameVersionIDs: []uint{f.gv1.ID},
	}, f.author); err != nil {
		t.Errorf("expected a second platform build to be accepted, got %v", err)
	}
}
