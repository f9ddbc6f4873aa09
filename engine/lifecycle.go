package engine

import (
	"context"
	"fmt"
	"slices"

	"mod-catalog/apperr"
	"mod-catalog/db"
	"mod-catalog/notify"
	"mod-catalog/permission"

	"go.uber.org/zap"
)

// transition holds the side effects of entering a status.
type transition struct {
	event         notify.EventKind // Empty means no destination-specific event
	stampApprover bool
}

// transitions is the per-kind table of destination side effects. Leaving
// Verified is handled before this table is consulted.
var transitions = map[Kind]map[db.Status]transition{
	KindProject: {
		db.StatusPrivate:    {},
		db.StatusPending:    {event: notify.EventSubmitted},
		db.StatusUnverified: {event: notify.EventRejected},
		db.StatusVerified:   {event: notify.EventApproved, stampApprover: true},
		db.StatusRemoved:    {event: notify.EventRemoved, stampApprover: true},
	},
	KindVersion: {
		db.StatusPrivate:    {},
		db.StatusPending:    {event: notify.EventSubmitted},
		db.StatusUnverified: {event: notify.EventRejected},
		db.StatusVerified:   {event: notify.EventApproved, stampApprover: true},
		db.StatusRemoved:    {event: notify.EventRemoved, stampApprover: true},
	},
}

// SetStatus moves t to status unconditionally, appending to its history.
// The stored row is reloaded under t's lock so the change lands on the latest
// state; on success t is replaced with it. The new state is committed before
// any notification is emitted; on a persistence failure t is left untouched
// and no notification fires.
func (e *Engine) SetStatus(ctx context.Context, t Target, to db.Status, actor *db.User, reason string) error {
	if err := checkTransition(t, to, actor); err != nil {
		return err
	}
	l, unlock, err := e.lockLive(ctx, t)
	if err != nil {
		return err
	}
	defer unlock()
	return e.applyStatus(ctx, t, l, to, actor, reason)
}

func checkTransition(t Target, to db.Status, actor *db.User) error {
	if !t.valid() {
		return apperr.Validation("status target must be exactly one project or version")
	}
	if !to.Valid() {
		return apperr.Validation("unknown status %q", to)
	}
	if actor == nil {
		return apperr.Validation("status changes need an acting user")
	}
	return nil
}

// lockLive takes the per-target lock shared with the edit queue and reloads
// t. The caller must run the returned unlock.
func (e *Engine) lockLive(ctx context.Context, t Target) (live, func(), error) {
	unlock := e.locks.Lock(db.PendingKeyFor(t.table(), t.ID()))
	l, err := e.loadLive(ctx, t.table(), t.ID())
	if err != nil {
		unlock()
		return live{}, nil, fmt.Errorf("load %s %d: %w", t.Kind(), t.ID(), err)
	}
	return l, unlock, nil
}

// applyStatus writes the transition onto the freshly loaded l and copies the
// result into the caller's t. The lock for t must be held.
func (e *Engine) applyStatus(ctx context.Context, t Target, l live, to db.Status, actor *db.User, reason string) error {
	rule := transitions[t.Kind()][to]
	from := l.target().Status()
	revoked := from == db.StatusVerified && to != db.StatusVerified
	stamp := revoked || rule.stampApprover

	entry := db.StatusEntry{Status: to, Reason: normalizeReason(reason), UserID: actor.ID, SetAt: e.now()}
	actorID := actor.ID

	var project *db.Project
	switch t.Kind() {
	case KindProject:
		p := *l.project
		p.StatusHistory = append(slices.Clone(p.StatusHistory), entry)
		p.Status = to
		if stamp {
			p.LastApprovedByID = &actorID
		}
		if err := e.repo.UpdateProject(ctx, &p, db.LifecycleColumns); err != nil {
			return fmt.Errorf("set status of project %d: %w", p.ID, err)
		}
		*t.Project = p
		project = t.Project
	case KindVersion:
		v := *l.version
		v.StatusHistory = append(slices.Clone(v.StatusHistory), entry)
		v.Status = to
		if stamp {
			v.LastApprovedByID = &actorID
		}
		if err := e.repo.UpdateVersion(ctx, &v, db.LifecycleColumns); err != nil {
			return fmt.Errorf("set status of version %d: %w", v.ID, err)
		}
		*t.Version = v
		project = l.project
	}

	statusTransitionsTotal.WithLabelValues(string(t.Kind()), string(to)).Inc()
	e.log.Infow("Status changed", append(t.logFields(),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Uint("actor", actor.ID),
	)...)
	e.refresh(ctx, t.cacheKind())

	e.emit(ctx, notify.EventStatusChanged, project, t.Version, nil, actor, entry.Reason)
	switch {
	case revoked:
		e.emit(ctx, notify.EventVerificationRevoked, project, t.Version, nil, actor, entry.Reason)
	case rule.event != "":
		e.emit(ctx, rule.event, project, t.Version, nil, actor, entry.Reason)
	}
	return nil
}

// subject builds the permission view of t, loading a version's parent.
func (e *Engine) subject(ctx context.Context, t Target) (permission.Subject, error) {
	if t.Kind() == KindProject {
		return permission.ProjectSubject(*t.Project), nil
	}
	parent, err := e.repo.GetProject(ctx, t.Version.ProjectID)
	if err != nil {
		return permission.Subject{}, err
	}
	return permission.VersionSubject(*t.Version, *parent), nil
}

// CanView reports whether actor (nil for anonymous) may see t.
func (e *Engine) CanView(ctx context.Context, actor *db.User, t Target) (bool, error) {
	s, err := e.subject(ctx, t)
	if err != nil {
		return false, err
	}
	return permission.CanView(actor, s), nil
}

// CanEdit reports whether actor may change t's content.
func (e *Engine) CanEdit(ctx context.Context, actor *db.User, t Target) (bool, error) {
	s, err := e.subject(ctx, t)
	if err != nil {
		return false, err
	}
	return permission.CanEdit(actor, s), nil
}

func (e *Engine) requireModerate(ctx context.Context, actor *db.User, t Target, to db.Status) error {
	s, err := e.subject(ctx, t)
	if err != nil {
		return err
	}
	if !permission.CanModerate(actor, s, to) {
		return apperr.Forbidden("not allowed to move %s %d to %s", t.Kind(), t.ID(), to)
	}
	return nil
}

// Moderate is the permission-checked entry point for status changes made by
// moderators. Removed objects can only leave that state through Restore.
func (e *Engine) Moderate(ctx context.Context, t Target, to db.Status, actor *db.User, reason string) error {
	if err := checkTransition(t, to, actor); err != nil {
		return err
	}
	l, unlock, err := e.lockLive(ctx, t)
	if err != nil {
		return err
	}
	defer unlock()

	cur := l.target()
	if cur.Status() == db.StatusRemoved {
		if to == db.StatusRemoved {
			return apperr.Conflict("%s %d is already removed", t.Kind(), t.ID())
		}
		return apperr.Conflict("%s %d is removed; restore it instead", t.Kind(), t.ID())
	}
	if err := e.requireModerate(ctx, actor, cur, to); err != nil {
		return err
	}
	return e.applyStatus(ctx, t, l, to, actor, reason)
}

// SubmitForApproval moves a private object to Pending.
func (e *Engine) SubmitForApproval(ctx context.Context, t Target, actor *db.User) error {
	if err := checkTransition(t, db.StatusPending, actor); err != nil {
		return err
	}
	l, unlock, err := e.lockLive(ctx, t)
	if err != nil {
		return err
	}
	defer unlock()

	cur := l.target()
	if cur.Status() != db.StatusPrivate {
		return apperr.Conflict("%s %d is %s, only private objects can be submitted", t.Kind(), t.ID(), cur.Status())
	}
	if err := e.requireModerate(ctx, actor, cur, db.StatusPending); err != nil {
		return err
	}
	return e.applyStatus(ctx, t, l, db.StatusPending, actor, "Submitted for approval.")
}

// IsRestorable reports whether a removed object can go back to Pending: a
// version needs its archive in the file store and a restorable (or not
// removed) parent project.
func (e *Engine) IsRestorable(ctx context.Context, t Target) (bool, error) {
	if !t.valid() || t.Status() != db.StatusRemoved {
		return false, nil
	}
	if t.Kind() == KindProject {
		return true, nil
	}

	if e.files == nil {
		return false, nil
	}
	exists, err := e.files.Exists(ctx, t.Version.ZipHash)
	if err != nil {
		return false, fmt.Errorf("check archive of version %d: %w", t.Version.ID, err)
	}
	if !exists {
		return false, nil
	}

	parent, err := e.repo.GetProject(ctx, t.Version.ProjectID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	if parent.Status == db.StatusRemoved {
		return e.IsRestorable(ctx, ProjectTarget(parent))
	}
	return true, nil
}

// Restore moves a removed object back to Pending. Restoring a version whose
// project is also removed restores the project first.
func (e *Engine) Restore(ctx context.Context, t Target, actor *db.User, reason string) error {
	if err := checkTransition(t, db.StatusPending, actor); err != nil {
		return err
	}
	l, unlock, err := e.lockLive(ctx, t)
	if err != nil {
		return err
	}
	defer unlock()

	cur := l.target()
	if cur.Status() != db.StatusRemoved {
		return apperr.Conflict("%s %d is not removed", t.Kind(), t.ID())
	}
	if err := e.requireModerate(ctx, actor, cur, db.StatusPending); err != nil {
		return err
	}
	ok, err := e.IsRestorable(ctx, cur)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Conflict("%s %d cannot be restored", t.Kind(), t.ID())
	}

	// Lock order is version then project; nothing takes them the other way.
	if t.Kind() == KindVersion && l.project.Status == db.StatusRemoved {
		if err := e.SetStatus(ctx, ProjectTarget(l.project), db.StatusPending, actor, reason); err != nil {
			return fmt.Errorf("restore parent project %d: %w", l.project.ID, err)
		}
	}
	return e.applyStatus(ctx, t, l, db.StatusPending, actor, reason)
}
