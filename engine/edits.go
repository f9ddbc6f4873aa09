package engine

import (
	"context"
	"fmt"
	"slices"

	"mod-catalog/apperr"
	"mod-catalog/cache"
	"mod-catalog/db"
	"mod-catalog/notify"
	"mod-catalog/permission"

	"go.uber.org/zap"
)

// EditFields is a sparse proposal. Set the pointer matching the target kind.
type EditFields struct {
	Project *db.ProjectEdit
	Version *db.VersionEdit
}

// EditResult reports what SubmitEdit or ResolveEdit did. Queued is true when
// the change waits in the edit queue instead of being applied.
type EditResult struct {
	Queued  bool
	Entry   *db.EditQueue
	Project *db.Project
	Version *db.Version
}

func (f EditFields) empty() bool {
	switch {
	case f.Project != nil:
		p := f.Project
		return p.Name == "" && p.Summary == "" && p.Description == "" && p.Category == "" &&
			p.GitURL == "" && p.IconFileName == "" && len(p.AuthorIDs) == 0
	case f.Version != nil:
		v := f.Version
		return v.ModVersion == "" && v.Platform == "" && len(v.SupportedGameVersionIDs) == 0 && len(v.Dependencies) == 0
	}
	return true
}

// applyProjectEdit copies the non-zero fields of edit onto p.
func applyProjectEdit(p *db.Project, edit db.ProjectEdit) {
	if edit.Name != "" {
		p.Name = edit.Name
	}
	if edit.Summary != "" {
		p.Summary = edit.Summary
	}
	if edit.Description != "" {
		p.Description = edit.Description
	}
	if edit.Category != "" {
		p.Category = edit.Category
	}
	if edit.GitURL != "" {
		p.GitURL = edit.GitURL
	}
	if edit.IconFileName != "" {
		p.IconFileName = edit.IconFileName
	}
	if len(edit.AuthorIDs) > 0 {
		p.AuthorIDs = slices.Clone(edit.AuthorIDs)
	}
}

func applyVersionEdit(v *db.Version, edit db.VersionEdit) {
	if edit.ModVersion != "" {
		v.ModVersion = edit.ModVersion
	}
	if edit.Platform != "" {
		v.Platform = edit.Platform
	}
	if len(edit.SupportedGameVersionIDs) > 0 {
		v.SupportedGameVersionIDs = slices.Clone(edit.SupportedGameVersionIDs)
	}
	if len(edit.Dependencies) > 0 {
		v.Dependencies = slices.Clone(edit.Dependencies)
	}
}

// mergeProjectEdit layers next over prev; zero fields of next keep prev's value.
func mergeProjectEdit(prev *db.ProjectEdit, next db.ProjectEdit) *db.ProjectEdit {
	var merged db.ProjectEdit
	if prev != nil {
		merged = *prev
	}
	if next.Name != "" {
		merged.Name = next.Name
	}
	if next.Summary != "" {
		merged.Summary = next.Summary
	}
	if next.Description != "" {
		merged.Description = next.Description
	}
	if next.Category != "" {
		merged.Category = next.Category
	}
	if next.GitURL != "" {
		merged.GitURL = next.GitURL
	}
	if next.IconFileName != "" {
		merged.IconFileName = next.IconFileName
	}
	if len(next.AuthorIDs) > 0 {
		merged.AuthorIDs = slices.Clone(next.AuthorIDs)
	}
	return &merged
}

func mergeVersionEdit(prev *db.VersionEdit, next db.VersionEdit) *db.VersionEdit {
	var merged db.VersionEdit
	if prev != nil {
		merged = *prev
	}
	if next.ModVersion != "" {
		merged.ModVersion = next.ModVersion
	}
	if next.Platform != "" {
		merged.Platform = next.Platform
	}
	if len(next.SupportedGameVersionIDs) > 0 {
		merged.SupportedGameVersionIDs = slices.Clone(next.SupportedGameVersionIDs)
	}
	if len(next.Dependencies) > 0 {
		merged.Dependencies = slices.Clone(next.Dependencies)
	}
	return &merged
}

func cloneVersionEdit(edit db.VersionEdit) db.VersionEdit {
	edit.SupportedGameVersionIDs = slices.Clone(edit.SupportedGameVersionIDs)
	edit.Dependencies = slices.Clone(edit.Dependencies)
	return edit
}

// live is a freshly loaded target with its parent project.
type live struct {
	project *db.Project
	version *db.Version
}

func (l live) target() Target {
	if l.version != nil {
		return VersionTarget(l.version)
	}
	return ProjectTarget(l.project)
}

func (e *Engine) loadLive(ctx context.Context, table db.EditTable, id uint) (live, error) {
	switch table {
	case db.EditTableProjects:
		p, err := e.repo.GetProject(ctx, id)
		if err != nil {
			return live{}, err
		}
		return live{project: p}, nil
	case db.EditTableVersions:
		v, err := e.repo.GetVersion(ctx, id)
		if err != nil {
			return live{}, err
		}
		p, err := e.repo.GetProject(ctx, v.ProjectID)
		if err != nil {
			return live{}, err
		}
		return live{project: p, version: v}, nil
	}
	return live{}, apperr.Validation("unknown edit table %q", table)
}

// validateFields normalizes fields in place against l.
func (e *Engine) validateFields(ctx context.Context, l live, fields EditFields) error {
	if l.version != nil {
		return e.validateVersionEdit(ctx, l.project, l.version, fields.Version)
	}
	return e.validateProjectEdit(ctx, l.project, fields.Project)
}

// SubmitEdit proposes a change to t. Objects that are not Verified are
// updated in place; Verified objects get a pending edit queue entry, and a
// second submission while one is pending is merged over the first proposal.
func (e *Engine) SubmitEdit(ctx context.Context, t Target, fields EditFields, submitter *db.User) (EditResult, error) {
	if !t.valid() {
		return EditResult{}, apperr.Validation("edit target must be exactly one project or version")
	}
	if submitter == nil {
		return EditResult{}, apperr.Validation("edits need a submitter")
	}
	if (t.Kind() == KindProject) != (fields.Project != nil) || (t.Kind() == KindVersion) != (fields.Version != nil) {
		return EditResult{}, apperr.Validation("edit fields do not match a %s", t.Kind())
	}
	if fields.empty() {
		return EditResult{}, apperr.Validation("edit changes nothing")
	}

	key := db.PendingKeyFor(t.table(), t.ID())
	unlock := e.locks.Lock(key)
	defer unlock()

	l, err := e.loadLive(ctx, t.table(), t.ID())
	if err != nil {
		return EditResult{}, err
	}
	ok, err := e.CanEdit(ctx, submitter, l.target())
	if err != nil {
		return EditResult{}, err
	}
	if !ok {
		return EditResult{}, apperr.Forbidden("not allowed to edit %s %d", t.Kind(), t.ID())
	}

	// Work on copies so the caller's proposal is not rewritten by normalization.
	if fields.Project != nil {
		p := *fields.Project
		p.AuthorIDs = slices.Clone(p.AuthorIDs)
		fields.Project = &p
	}
	if fields.Version != nil {
		v := cloneVersionEdit(*fields.Version)
		fields.Version = &v
	}
	if err := e.validateFields(ctx, l, fields); err != nil {
		return EditResult{}, err
	}

	if l.target().Status() != db.StatusVerified {
		return e.applyDirect(ctx, t, l, fields, submitter)
	}
	return e.enqueue(ctx, t, l, fields, submitter, key)
}

func (e *Engine) applyDirect(ctx context.Context, t Target, l live, fields EditFields, submitter *db.User) (EditResult, error) {
	updater := submitter.ID
	res := EditResult{}
	switch t.Kind() {
	case KindProject:
		p := *l.project
		applyProjectEdit(&p, *fields.Project)
		p.LastUpdatedByID = &updater
		if err := e.repo.UpdateProject(ctx, &p, db.ProjectContentColumns); err != nil {
			return EditResult{}, fmt.Errorf("update project %d: %w", p.ID, err)
		}
		*t.Project = p
		res.Project = t.Project
	case KindVersion:
		v := *l.version
		applyVersionEdit(&v, *fields.Version)
		v.LastUpdatedByID = &updater
		if err := e.repo.UpdateVersion(ctx, &v, db.VersionContentColumns); err != nil {
			return EditResult{}, fmt.Errorf("update version %d: %w", v.ID, err)
		}
		*t.Version = v
		res.Project = l.project
		res.Version = t.Version
	}

	editsTotal.WithLabelValues("applied").Inc()
	e.log.Infow("Edit applied directly", append(t.logFields(), zap.Uint("submitter", submitter.ID))...)
	e.refresh(ctx, t.cacheKind())
	e.emit(ctx, notify.EventUpdated, res.Project, res.Version, nil, submitter, "")
	return res, nil
}

func (e *Engine) enqueue(ctx context.Context, t Target, l live, fields EditFields, submitter *db.User, key string) (EditResult, error) {
	res := EditResult{Queued: true, Project: l.project, Version: l.version}

	existing, err := e.repo.FindPendingEdit(ctx, t.table(), t.ID())
	switch {
	case err == nil:
	case apperr.Is(err, apperr.KindNotFound):
		entry := &db.EditQueue{
			ObjectTableName: t.table(),
			ObjectID:        t.ID(),
			ProjectEdit:     fields.Project,
			VersionEdit:     fields.Version,
			SubmitterID:     submitter.ID,
			PendingKey:      &key,
		}
		err := e.repo.CreateEdit(ctx, entry)
		if err == nil {
			res.Entry = entry
			editsTotal.WithLabelValues("queued").Inc()
			e.log.Infow("Edit queued", append(t.logFields(), zap.Uint("edit", entry.ID), zap.Uint("submitter", submitter.ID))...)
			e.refresh(ctx, cache.KindEditQueue)
			e.emit(ctx, notify.EventEditSubmitted, l.project, l.version, entry, submitter, "")
			return res, nil
		}
		if !apperr.Is(err, apperr.KindConflict) {
			return EditResult{}, fmt.Errorf("queue edit for %s %d: %w", t.Kind(), t.ID(), err)
		}
		// Another process queued one first; merge into it.
		existing, err = e.repo.FindPendingEdit(ctx, t.table(), t.ID())
		if err != nil {
			return EditResult{}, err
		}
	default:
		return EditResult{}, err
	}

	entry := *existing
	if fields.Project != nil {
		entry.ProjectEdit = mergeProjectEdit(entry.ProjectEdit, *fields.Project)
	}
	if fields.Version != nil {
		entry.VersionEdit = mergeVersionEdit(entry.VersionEdit, *fields.Version)
	}
	entry.SubmitterID = submitter.ID
	if err := e.repo.SaveEdit(ctx, &entry); err != nil {
		return EditResult{}, fmt.Errorf("update edit %d: %w", entry.ID, err)
	}
	res.Entry = &entry

	editsTotal.WithLabelValues("merged").Inc()
	e.log.Infow("Pending edit updated", append(t.logFields(), zap.Uint("edit", entry.ID), zap.Uint("submitter", submitter.ID))...)
	e.refresh(ctx, cache.KindEditQueue)
	e.emit(ctx, notify.EventEditUpdated, l.project, l.version, &entry, submitter, "")
	return res, nil
}

// ResolveEdit accepts or denies a pending edit. Accepting merges the proposal
// onto the live object; a resolved entry cannot be resolved again.
func (e *Engine) ResolveEdit(ctx context.Context, editID uint, actor *db.User, accept bool) (EditResult, error) {
	if actor == nil {
		return EditResult{}, apperr.Validation("resolving an edit needs an acting user")
	}
	entry, err := e.repo.GetEdit(ctx, editID)
	if err != nil {
		return EditResult{}, err
	}

	unlock := e.locks.Lock(db.PendingKeyFor(entry.ObjectTableName, entry.ObjectID))
	defer unlock()

	// Reload under the lock; a concurrent resolver may have won.
	entry, err = e.repo.GetEdit(ctx, editID)
	if err != nil {
		return EditResult{}, err
	}
	if entry.Resolved() {
		return EditResult{}, apperr.Conflict("edit %d is already resolved; submit a new edit instead", entry.ID)
	}

	l, err := e.loadLive(ctx, entry.ObjectTableName, entry.ObjectID)
	if err != nil {
		return EditResult{}, err
	}
	s, err := e.subject(ctx, l.target())
	if err != nil {
		return EditResult{}, err
	}
	if !permission.CanView(actor, s) || !permission.HasRole(actor.Roles, s.Game, permission.ModerateRoles...) {
		return EditResult{}, apperr.Forbidden("not allowed to resolve edit %d", entry.ID)
	}

	resolved := *entry
	approverID := actor.ID
	resolved.Approved = &accept
	resolved.ApproverID = &approverID
	resolved.PendingKey = nil

	res := EditResult{Entry: &resolved, Project: l.project, Version: l.version}
	t := l.target()
	if accept {
		// Normalize a copy; the stored proposal stays as submitted.
		var fields EditFields
		if l.version != nil {
			fields.Version = &db.VersionEdit{}
			if entry.VersionEdit != nil {
				*fields.Version = cloneVersionEdit(*entry.VersionEdit)
			}
		} else {
			fields.Project = &db.ProjectEdit{}
			if entry.ProjectEdit != nil {
				*fields.Project = *entry.ProjectEdit
				fields.Project.AuthorIDs = slices.Clone(entry.ProjectEdit.AuthorIDs)
			}
		}
		// The catalog may have moved since submission.
		if err := e.validateFields(ctx, l, fields); err != nil {
			return EditResult{}, err
		}

		updater := entry.SubmitterID
		err := e.repo.Transaction(ctx, func(tx db.Repository) error {
			if l.version != nil {
				v := *l.version
				applyVersionEdit(&v, *fields.Version)
				v.LastUpdatedByID = &updater
				if err := tx.UpdateVersion(ctx, &v, db.VersionContentColumns); err != nil {
					return err
				}
				res.Version = &v
			} else {
				p := *l.project
				applyProjectEdit(&p, *fields.Project)
				p.LastUpdatedByID = &updater
				if err := tx.UpdateProject(ctx, &p, db.ProjectContentColumns); err != nil {
					return err
				}
				res.Project = &p
			}
			return tx.SaveEdit(ctx, &resolved)
		})
		if err != nil {
			return EditResult{}, fmt.Errorf("approve edit %d: %w", entry.ID, err)
		}
	} else if err := e.repo.SaveEdit(ctx, &resolved); err != nil {
		return EditResult{}, fmt.Errorf("deny edit %d: %w", entry.ID, err)
	}

	outcome, kind := "rejected", notify.EventEditRejected
	if accept {
		outcome, kind = "approved", notify.EventEditApproved
	}
	editsTotal.WithLabelValues(outcome).Inc()
	e.log.Infow("Edit resolved", append(t.logFields(),
		zap.Uint("edit", resolved.ID),
		zap.String("outcome", outcome),
		zap.Uint("actor", actor.ID),
	)...)
	e.refresh(ctx, t.cacheKind(), cache.KindEditQueue)
	e.emit(ctx, kind, res.Project, res.Version, &resolved, actor, "")
	return res, nil
}
