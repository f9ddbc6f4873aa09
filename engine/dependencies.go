package engine

import (
	"context"
	"slices"
	"time"

	"mod-catalog/apperr"
	"mod-catalog/db"
	"mod-catalog/semver"

	"go.uber.org/zap"
)

// Reasons a dependency is reported unavailable.
const (
	ReasonNoRecord         = "no dependency record found"
	ReasonProjectNotFound  = "dependency project not found"
	ReasonNoLiveCandidates = "no live candidates for this game version"
	ReasonStatusExcluded   = "candidate status excluded"
	ReasonInvalidRange     = "invalid version range"
)

// DependencyStatus is the outcome for one declared dependency.
type DependencyStatus struct {
	ParentProjectID   uint        `json:"parentId"`
	VersionRange      string      `json:"sv"`
	RecordedVersionID uint        `json:"recordedVersionId"`
	Recorded          *db.Version `json:"recorded,omitempty"`
	Available         bool        `json:"available"`
	NewerDependencyID uint        `json:"newerDependencyId,omitempty"`
	Reason            string      `json:"reason,omitempty"`
}

// DependencyResolution is the result of ResolveDependencies. When Live is
// false a reference was missing and Fallback holds the versions recorded at
// submission, unresolved against the requested game version.
type DependencyResolution struct {
	Live         bool               `json:"live"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Fallback     []db.Version       `json:"fallback,omitempty"`
}

// catalogSnapshot is an id-indexed view of the catalog for one computation.
type catalogSnapshot struct {
	projects     map[uint]db.Project
	versions     []db.Version
	versionsByID map[uint]db.Version
	gameVersions map[uint]db.GameVersion
}

func (e *Engine) snapshot(ctx context.Context) (*catalogSnapshot, error) {
	if e.catalog != nil {
		projects, err := e.catalog.ProjectsByID(ctx)
		if err != nil {
			return nil, err
		}
		versions, err := e.catalog.Versions(ctx)
		if err != nil {
			return nil, err
		}
		versionsByID, err := e.catalog.VersionsByID(ctx)
		if err != nil {
			return nil, err
		}
		gameVersions, err := e.catalog.GameVersionsByID(ctx)
		if err != nil {
			return nil, err
		}
		return &catalogSnapshot{projects: projects, versions: versions, versionsByID: versionsByID, gameVersions: gameVersions}, nil
	}

	projects, err := e.repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	versions, err := e.repo.ListVersions(ctx)
	if err != nil {
		return nil, err
	}
	gameVersions, err := e.repo.ListGameVersions(ctx)
	if err != nil {
		return nil, err
	}
	s := &catalogSnapshot{
		projects:     make(map[uint]db.Project, len(projects)),
		versions:     versions,
		versionsByID: make(map[uint]db.Version, len(versions)),
		gameVersions: make(map[uint]db.GameVersion, len(gameVersions)),
	}
	for _, p := range projects {
		s.projects[p.ID] = p
	}
	for _, v := range versions {
		s.versionsByID[v.ID] = v
	}
	for _, gv := range gameVersions {
		s.gameVersions[gv.ID] = gv
	}
	return s, nil
}

// supports reports whether v runs on game version id, directly or through a
// game version linked as equivalent.
func (s *catalogSnapshot) supports(v db.Version, id uint) bool {
	if slices.Contains(v.SupportedGameVersionIDs, id) {
		return true
	}
	gv, ok := s.gameVersions[id]
	if !ok {
		return false
	}
	for _, linked := range gv.LinkedVersionIDs {
		if slices.Contains(v.SupportedGameVersionIDs, linked) {
			return true
		}
	}
	return false
}

// platformCompatible reports whether a dependency built for candidate can be
// used by a version built for requested.
func platformCompatible(requested, candidate db.Platform) bool {
	if requested == candidate {
		return true
	}
	return candidate.Universal() && candidate.Family() == requested.Family()
}

// newer orders versions by semantic version, then creation time, then id.
func newer(a, b db.Version) bool {
	av, _ := semver.ParseVersion(a.ModVersion)
	bv, _ := semver.ParseVersion(b.ModVersion)
	if cmp := semver.Compare(av, bv); cmp != 0 {
		return cmp > 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

type candidateQuery struct {
	projectID     uint
	gameVersionID uint
	platform      db.Platform
	statuses      []db.Status // nil matches any status
	constraint    *semver.Constraint
}

func (s *catalogSnapshot) latest(q candidateQuery) *db.Version {
	var best *db.Version
	for i := range s.versions {
		v := s.versions[i]
		if v.ProjectID != q.projectID {
			continue
		}
		if q.statuses != nil && !slices.Contains(q.statuses, v.Status) {
			continue
		}
		if q.platform != "" && !platformCompatible(q.platform, v.Platform) {
			continue
		}
		if !s.supports(v, q.gameVersionID) {
			continue
		}
		if q.constraint != nil {
			parsed, err := semver.ParseVersion(v.ModVersion)
			if err != nil || !semver.Satisfies(parsed, *q.constraint) {
				continue
			}
		}
		if best == nil || newer(v, *best) {
			best = &v
		}
	}
	return best
}

func normalizeStatuses(statuses []db.Status) []db.Status {
	if len(statuses) == 0 {
		return publicStatuses
	}
	return statuses
}

// ResolveDependencies checks each dependency v declares against the live
// catalog for a game version, accepting candidates whose status is in
// statuses (Verified and Unverified when empty). Missing references are
// reported per dependency; only storage faults are returned as errors.
func (e *Engine) ResolveDependencies(ctx context.Context, v db.Version, gameVersionID uint, statuses []db.Status) (DependencyResolution, error) {
	start := time.Now()
	defer func() { dependencyResolutionDuration.Observe(time.Since(start).Seconds()) }()

	snap, err := e.snapshot(ctx)
	if err != nil {
		return DependencyResolution{}, err
	}
	if _, ok := snap.gameVersions[gameVersionID]; !ok {
		return DependencyResolution{}, apperr.NotFound("game version %d not found", gameVersionID)
	}
	statuses = normalizeStatuses(statuses)

	res := DependencyResolution{Live: true, Dependencies: make([]DependencyStatus, 0, len(v.Dependencies))}
	for _, d := range v.Dependencies {
		ds := DependencyStatus{ParentProjectID: d.ParentProjectID, VersionRange: d.VersionRange, RecordedVersionID: d.VersionID}

		if recorded, ok := snap.versionsByID[d.VersionID]; ok {
			rec := recorded
			ds.Recorded = &rec
			res.Fallback = append(res.Fallback, recorded)
		} else {
			ds.Reason = ReasonNoRecord
			res.Live = false
			res.Dependencies = append(res.Dependencies, ds)
			continue
		}

		if _, ok := snap.projects[d.ParentProjectID]; !ok {
			ds.Reason = ReasonProjectNotFound
			res.Live = false
			res.Dependencies = append(res.Dependencies, ds)
			continue
		}

		constraint, err := semver.ParseConstraint(d.VersionRange)
		if err != nil {
			ds.Reason = ReasonInvalidRange
			res.Dependencies = append(res.Dependencies, ds)
			continue
		}

		q := candidateQuery{
			projectID:     d.ParentProjectID,
			gameVersionID: gameVersionID,
			platform:      v.Platform,
			statuses:      statuses,
			constraint:    &constraint,
		}
		if best := snap.latest(q); best != nil {
			ds.Available = true
			ds.NewerDependencyID = best.ID
		} else {
			q.statuses = nil
			if snap.latest(q) != nil {
				ds.Reason = ReasonStatusExcluded
			} else {
				ds.Reason = ReasonNoLiveCandidates
			}
		}
		res.Dependencies = append(res.Dependencies, ds)
	}

	if res.Live {
		res.Fallback = nil
		dependencyResolutionsTotal.WithLabelValues("live").Inc()
	} else {
		dependencyResolutionsTotal.WithLabelValues("fallback").Inc()
		e.log.Warnw("Dependency resolution fell back to recorded versions",
			zap.Uint("version", v.ID),
			zap.Uint("gameVersion", gameVersionID),
		)
	}
	return res, nil
}

// GetLatestVersion returns the newest version of a project for a game
// version and platform whose status is in statuses (Verified and Unverified
// when empty). An empty platform matches any.
func (e *Engine) GetLatestVersion(ctx context.Context, projectID, gameVersionID uint, platform db.Platform, statuses []db.Status) (*db.Version, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.projects[projectID]; !ok {
		return nil, apperr.NotFound("project %d not found", projectID)
	}
	best := snap.latest(candidateQuery{
		projectID:     projectID,
		gameVersionID: gameVersionID,
		platform:      platform,
		statuses:      normalizeStatuses(statuses),
	})
	if best == nil {
		return nil, apperr.NotFound("no matching version of project %d for game version %d", projectID, gameVersionID)
	}
	return best, nil
}

// IsValidDependencySuccessor reports whether candidate can stand in for
// original on a game version: it must support the game version and satisfy
// the caret range of original's version.
func (e *Engine) IsValidDependencySuccessor(ctx context.Context, original, candidate db.Version, gameVersionID uint) (bool, error) {
	ov, err := semver.ParseVersion(original.ModVersion)
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindValidation, "invalid original version")
	}
	nv, err := semver.ParseVersion(candidate.ModVersion)
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindValidation, "invalid candidate version")
	}
	caret, err := semver.Caret(ov)
	if err != nil {
		return false, apperr.Wrap(err, apperr.KindValidation, "invalid original version")
	}

	snap, err := e.snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap.supports(candidate, gameVersionID) && semver.Satisfies(nv, caret), nil
}
