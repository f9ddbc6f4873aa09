package cmd

import (
	"slices"
	"testing"

	"mod-catalog/db"

	"gorm.io/gorm"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		raw     string
		want    []uint
		wantErr bool
	}{
		{"", nil, false},
		{"3", []uint{3}, false},
		{"1, 2,3", []uint{1, 2, 3}, false},
		{"1,,2", nil, true},
		{"0", nil, true},
		{"-1", nil, true},
		{"abc", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseIDs(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseIDs(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("parseIDs(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDependency(t *testing.T) {
	tests := []struct {
		raw     string
		want    db.Dependency
		wantErr bool
	}{
		{"12:^1.0.0", db.Dependency{ParentProjectID: 12, VersionRange: "^1.0.0"}, false},
		{"7: >=1.2.0 <2.0.0", db.Dependency{ParentProjectID: 7, VersionRange: ">=1.2.0 <2.0.0"}, false},
		{"12", db.Dependency{}, true},
		{"12:", db.Dependency{}, true},
		{"x:^1.0.0", db.Dependency{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseDependency(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDependency(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseDependency(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseStatuses(t *testing.T) {
	got, err := parseStatuses("Verified, pending")
	if err != nil {
		t.Fatalf("parseStatuses() failed: %v", err)
	}
	if !slices.Equal(got, []db.Status{db.StatusVerified, db.StatusPending}) {
		t.Errorf("unexpected statuses %v", got)
	}
	if _, err := parseStatuses("verified,archived"); err == nil {
		t.Error("expected error for an unknown status")
	}
	if got, _ := parseStatuses(" "); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestParseRoles(t *testing.T) {
	roles, err := parseRoles([]string{"admin", "BeatSaber:approver", "BeatSaber:GameManager"})
	if err != nil {
		t.Fatalf("parseRoles() failed: %v", err)
	}
	if !slices.Equal(roles.Sitewide, []db.Role{db.RoleAdmin}) {
		t.Errorf("unexpected sitewide roles %v", roles.Sitewide)
	}
	if !slices.Equal(roles.PerGame["BeatSaber"], []db.Role{db.RoleApprover, db.RoleGameManager}) {
		t.Errorf("unexpected per-game roles %v", roles.PerGame)
	}

	if _, err := parseRoles([]string{"overlord"}); err == nil {
		t.Error("expected error for an unknown role")
	}
}

func TestDescribeEdit(t *testing.T) {
	tests := []struct {
		name string
		edit db.EditQueue
		want string
	}{
		{"project", db.EditQueue{ProjectEdit: &db.ProjectEdit{Summary: "new", AuthorIDs: []uint{1, 2}}}, `summary="new" authors=[1 2]`},
		{"version", db.EditQueue{VersionEdit: &db.VersionEdit{ModVersion: "1.2.0", Dependencies: []db.Dependency{{ParentProjectID: 3, VersionRange: "^1.0.0"}}}}, "version=1.2.0 dep=3:^1.0.0"},
		{"empty", db.EditQueue{}, "(no changes)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeEdit(tt.edit); got != tt.want {
				t.Errorf("describeEdit() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPendingCounts(t *testing.T) {
	approved := true
	edits := []db.EditQueue{
		{ObjectTableName: db.EditTableProjects, ObjectID: 1},
		{ObjectTableName: db.EditTableProjects, ObjectID: 1, Approved: &approved},
		{ObjectTableName: db.EditTableVersions, ObjectID: 1},
	}
	counts := pendingCounts(edits)
	if counts["projects:1"] != 1 || counts["versions:1"] != 1 || len(counts) != 2 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestGameVersionsOf(t *testing.T) {
	all := []db.GameVersion{
		{Model: gorm.Model{ID: 1}, GameName: "BeatSaber", Version: "1.29.1"},
		{Model: gorm.Model{ID: 2}, GameName: "Pong", Version: "1.0.0"},
		{Model: gorm.Model{ID: 3}, GameName: "BeatSaber", Version: "1.3.0"},
		{Model: gorm.Model{ID: 4}, GameName: "BeatSaber", Version: "1.10.0"},
	}

	var got []uint
	for _, gv := range gameVersionsOf(all, "BeatSaber") {
		got = append(got, gv.ID)
	}
	if want := []uint{3, 4, 1}; !slices.Equal(got, want) {
		t.Errorf("gameVersionsOf() = %v, want %v", got, want)
	}
	if got := gameVersionsOf(all, "Tetris"); len(got) != 0 {
		t.Errorf("expected no versions for unknown game, got %v", got)
	}
}
