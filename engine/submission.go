package engine

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"mod-catalog/apperr"
	"mod-catalog/cache"
	"mod-catalog/db"
	"mod-catalog/notify"
	"mod-catalog/permission"
	"mod-catalog/semver"

	"go.uber.org/zap"
)

// publicStatuses are the states a dependency can be recorded against at submission.
var publicStatuses = []db.Status{db.StatusVerified, db.StatusUnverified}

// NewProject is a project as submitted by its author.
type NewProject struct {
	Name         string
	Summary      string
	Description  string
	GameName     string
	Category     string
	GitURL       string
	IconFileName string
	AuthorIDs    []uint // Defaults to the submitter
}

// NewVersion is a release as submitted for an existing project.
type NewVersion struct {
	ProjectID               uint
	ModVersion              string
	Platform                db.Platform
	SupportedGameVersionIDs []uint
	Dependencies            []db.Dependency
	ZipHash                 string
	ContentHashes           []db.ContentHash
	FileSize                int64
}

// CreateProject validates and stores a new private project.
func (e *Engine) CreateProject(ctx context.Context, in NewProject, submitter *db.User) (*db.Project, error) {
	if submitter == nil {
		return nil, apperr.Validation("projects need a submitter")
	}
	authors := in.AuthorIDs
	if len(authors) == 0 {
		authors = []uint{submitter.ID}
	}

	p := &db.Project{
		Summary:      strings.TrimSpace(in.Summary),
		Description:  in.Description,
		GameName:     in.GameName,
		GitURL:       strings.TrimSpace(in.GitURL),
		IconFileName: in.IconFileName,
	}
	edit := db.ProjectEdit{Name: in.Name, Category: in.Category, AuthorIDs: authors}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.Validation("project name must not be empty")
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, apperr.Validation("project category must not be empty")
	}
	if err := e.validateProjectEdit(ctx, p, &edit); err != nil {
		return nil, err
	}
	applyProjectEdit(p, edit)

	p.Status = db.StatusPrivate
	p.StatusHistory = []db.StatusEntry{{Status: db.StatusPrivate, Reason: "Created.", UserID: submitter.ID, SetAt: e.now()}}
	updater := submitter.ID
	p.LastUpdatedByID = &updater

	if err := e.repo.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project %q: %w", p.Name, err)
	}
	e.log.Infow("Project created", zap.Uint("id", p.ID), zap.String("name", p.Name), zap.Uint("submitter", submitter.ID))
	e.refresh(ctx, cache.KindProjects)
	e.emit(ctx, notify.EventCreated, p, nil, nil, submitter, "")
	return p, nil
}

// CreateVersion validates and stores a new private version. Each dependency
// records the newest public version satisfying its range at this moment.
func (e *Engine) CreateVersion(ctx context.Context, in NewVersion, submitter *db.User) (*db.Version, error) {
	if submitter == nil {
		return nil, apperr.Validation("versions need a submitter")
	}
	project, err := e.repo.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if !permission.CanEdit(submitter, permission.ProjectSubject(*project)) {
		return nil, apperr.Forbidden("not allowed to upload versions of project %d", project.ID)
	}

	v := &db.Version{
		ProjectID:     project.ID,
		AuthorID:      submitter.ID,
		ZipHash:       in.ZipHash,
		ContentHashes: in.ContentHashes,
		FileSize:      in.FileSize,
	}
	edit := db.VersionEdit{
		ModVersion:              in.ModVersion,
		Platform:                in.Platform,
		SupportedGameVersionIDs: in.SupportedGameVersionIDs,
		Dependencies:            in.Dependencies,
	}
	if strings.TrimSpace(in.ModVersion) == "" {
		return nil, apperr.Validation("version string must not be empty")
	}
	if in.Platform == "" {
		return nil, apperr.Validation("platform must not be empty")
	}
	if len(in.SupportedGameVersionIDs) == 0 {
		return nil, apperr.Validation("a version must support at least one game version")
	}
	if err := e.validateVersionEdit(ctx, project, v, &edit); err != nil {
		return nil, err
	}
	applyVersionEdit(v, edit)

	v.Status = db.StatusPrivate
	v.StatusHistory = []db.StatusEntry{{Status: db.StatusPrivate, Reason: "Created.", UserID: submitter.ID, SetAt: e.now()}}
	updater := submitter.ID
	v.LastUpdatedByID = &updater

	if err := e.repo.CreateVersion(ctx, v); err != nil {
		return nil, fmt.Errorf("create version %s of project %d: %w", v.ModVersion, project.ID, err)
	}
	e.log.Infow("Version created",
		zap.Uint("id", v.ID),
		zap.Uint("project", project.ID),
		zap.String("version", v.ModVersion),
		zap.String("platform", string(v.Platform)),
	)
	e.refresh(ctx, cache.KindVersions)
	e.emit(ctx, notify.EventCreated, project, v, nil, submitter, "")
	return v, nil
}

// validateProjectEdit checks the non-zero fields of edit against the catalog
// and normalizes them in place. Nothing is written.
func (e *Engine) validateProjectEdit(ctx context.Context, live *db.Project, edit *db.ProjectEdit) error {
	if edit.Name != "" {
		edit.Name = strings.TrimSpace(edit.Name)
		if edit.Name == "" {
			return apperr.Validation("project name must not be blank")
		}
		other, err := e.repo.GetProjectByName(ctx, edit.Name)
		switch {
		case err == nil && other.ID != live.ID:
			return apperr.Validation("project name %q is already taken", edit.Name)
		case err != nil && !apperr.Is(err, apperr.KindNotFound):
			return err
		}
	}

	if edit.Category != "" || live.ID == 0 {
		game, err := e.repo.GetGame(ctx, live.GameName)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Validation("unknown game %q", live.GameName)
			}
			return err
		}
		if edit.Category != "" && !slices.Contains(game.Categories, edit.Category) {
			return apperr.Validation("category %q is not a category of %s", edit.Category, game.Name)
		}
	}

	if len(edit.AuthorIDs) > 0 {
		authors := dedupe(edit.AuthorIDs)
		for _, id := range authors {
			if _, err := e.repo.GetUser(ctx, id); err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					return apperr.Validation("unknown author %d", id)
				}
				return err
			}
		}
		edit.AuthorIDs = authors
	}
	return nil
}

// validateVersionEdit checks the non-zero fields of edit for a version of
// project and normalizes them in place: game versions are de-duplicated and
// sorted, dependencies get their concrete version recorded. A platform or
// game version change pulls live's dependencies into edit.
func (e *Engine) validateVersionEdit(ctx context.Context, project *db.Project, live *db.Version, edit *db.VersionEdit) error {
	modVersion := live.ModVersion
	if edit.ModVersion != "" {
		edit.ModVersion = strings.TrimSpace(edit.ModVersion)
		if _, err := semver.ParseVersion(edit.ModVersion); err != nil {
			return apperr.Wrap(err, apperr.KindValidation, "invalid version string")
		}
		modVersion = edit.ModVersion
	}

	platform := live.Platform
	if edit.Platform != "" {
		p, err := db.ParsePlatform(string(edit.Platform))
		if err != nil {
			return apperr.Wrap(err, apperr.KindValidation, "invalid platform")
		}
		edit.Platform = p
		platform = p
	}

	if edit.ModVersion != "" || edit.Platform != "" {
		if err := e.checkVersionUnique(ctx, project.ID, live.ID, modVersion, platform); err != nil {
			return err
		}
	}

	gameVersionIDs := live.SupportedGameVersionIDs
	if len(edit.SupportedGameVersionIDs) > 0 {
		ids, err := e.normalizeGameVersions(ctx, project.GameName, edit.SupportedGameVersionIDs)
		if err != nil {
			return err
		}
		edit.SupportedGameVersionIDs = ids
		gameVersionIDs = ids
	}

	// Recorded dependency versions must match the platform and game versions
	// the version ends up with, so moving either re-records the live edges.
	deps := edit.Dependencies
	moved := (edit.Platform != "" && edit.Platform != live.Platform) ||
		(len(edit.SupportedGameVersionIDs) > 0 && !slices.Equal(edit.SupportedGameVersionIDs, live.SupportedGameVersionIDs))
	if len(deps) == 0 && moved {
		deps = live.Dependencies
	}
	if len(deps) > 0 {
		normalized, err := e.normalizeDependencies(ctx, project.ID, platform, gameVersionIDs, deps)
		if err != nil {
			return err
		}
		edit.Dependencies = normalized
	}
	return nil
}

func (e *Engine) checkVersionUnique(ctx context.Context, projectID, selfID uint, modVersion string, platform db.Platform) error {
	siblings, err := e.repo.ListProjectVersions(ctx, projectID)
	if err != nil {
		return err
	}
	want, _ := semver.ParseVersion(modVersion)
	for _, s := range siblings {
		if s.ID == selfID || s.Platform != platform {
			continue
		}
		have, err := semver.ParseVersion(s.ModVersion)
		if err != nil {
			continue
		}
		if semver.Compare(have, want) == 0 {
			return apperr.Validation("version %s for %s already exists (id %d)", modVersion, platform, s.ID)
		}
	}
	return nil
}

// normalizeGameVersions checks every id names a game version of game and
// returns them de-duplicated and sorted ascending by semantic version.
func (e *Engine) normalizeGameVersions(ctx context.Context, game string, ids []uint) ([]uint, error) {
	type entry struct {
		id      uint
		version semver.Version
		raw     string
	}
	var entries []entry
	for _, id := range dedupe(ids) {
		gv, err := e.repo.GetGameVersion(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return nil, apperr.Validation("unknown game version %d", id)
			}
			return nil, err
		}
		if gv.GameName != game {
			return nil, apperr.Validation("game version %d belongs to %s, not %s", id, gv.GameName, game)
		}
		parsed, _ := semver.ParseVersion(gv.Version)
		entries = append(entries, entry{id: id, version: parsed, raw: gv.Version})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if cmp := semver.Compare(entries[i].version, entries[j].version); cmp != 0 {
			return cmp < 0
		}
		if entries[i].raw != entries[j].raw {
			return entries[i].raw < entries[j].raw
		}
		return entries[i].id < entries[j].id
	})
	out := make([]uint, len(entries))
	for i, en := range entries {
		out[i] = en.id
	}
	return out, nil
}

// normalizeDependencies validates declared edges and records, for each, the
// newest public version of the target satisfying its range.
func (e *Engine) normalizeDependencies(ctx context.Context, projectID uint, platform db.Platform, gameVersionIDs []uint, deps []db.Dependency) ([]db.Dependency, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]bool, len(deps))
	out := make([]db.Dependency, 0, len(deps))
	for _, d := range deps {
		if d.ParentProjectID == projectID {
			return nil, apperr.Validation("a version cannot depend on its own project")
		}
		if seen[d.ParentProjectID] {
			return nil, apperr.Validation("duplicate dependency on project %d", d.ParentProjectID)
		}
		seen[d.ParentProjectID] = true

		target, err := e.repo.GetProject(ctx, d.ParentProjectID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return nil, apperr.Validation("dependency project %d does not exist", d.ParentProjectID)
			}
			return nil, err
		}
		rng := strings.TrimSpace(d.VersionRange)
		constraint, err := semver.ParseConstraint(rng)
		if err != nil {
			return nil, apperr.Wrap(err, apperr.KindValidation, fmt.Sprintf("invalid version range for dependency on %s", target.Name))
		}

		var recorded *db.Version
		for _, gv := range gameVersionIDs {
			q := candidateQuery{projectID: target.ID, gameVersionID: gv, platform: platform, statuses: publicStatuses, constraint: &constraint}
			if best := snap.latest(q); best != nil && (recorded == nil || newer(*best, *recorded)) {
				recorded = best
			}
		}
		if recorded == nil {
			return nil, apperr.Validation("no published version of %s satisfies %s for this version's game versions", target.Name, rng)
		}
		out = append(out, db.Dependency{ParentProjectID: target.ID, VersionRange: rng, VersionID: recorded.ID})
	}
	return out, nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
