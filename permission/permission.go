// Package permission answers who may view or edit catalog objects.
//
// Every check is a pure function of the actor's roles, the object's game,
// its status and whether the actor authored it.
package permission

import (
	"slices"

	"mod-catalog/db"
)

// ViewRoles may see objects that are not public.
var ViewRoles = []db.Role{db.RoleAllPermissions, db.RoleAdmin, db.RoleModerator, db.RoleApprover}

// EditRoles may change content they did not author. Admin and GameManager are
// administrative roles and do not grant content edits.
var EditRoles = []db.Role{db.RoleAllPermissions, db.RoleApprover}

// ModerateRoles may change the status of objects they did not author.
var ModerateRoles = []db.Role{db.RoleAllPermissions, db.RoleAdmin, db.RoleModerator, db.RoleApprover}

// AdminRoles may manage a game's categories and game versions.
var AdminRoles = []db.Role{db.RoleAllPermissions, db.RoleAdmin, db.RoleGameManager}

// HasRole reports whether roles grant any of wanted, sitewide or for game.
func HasRole(roles db.RoleSet, game string, wanted ...db.Role) bool {
	for _, r := range wanted {
		if slices.Contains(roles.Sitewide, r) {
			return true
		}
		if game != "" && slices.Contains(roles.PerGame[game], r) {
			return true
		}
	}
	return false
}

// Visible is the single-object view rule.
func Visible(roles db.RoleSet, signedIn bool, game string, status db.Status, isAuthor bool) bool {
	if status.Public() {
		return true
	}
	if !signedIn {
		return false
	}
	return isAuthor || HasRole(roles, game, ViewRoles...)
}

// Editable is the single-object edit rule; it includes Visible.
func Editable(roles db.RoleSet, signedIn bool, game string, status db.Status, isAuthor bool) bool {
	if !signedIn || !Visible(roles, signedIn, game, status, isAuthor) {
		return false
	}
	return isAuthor || HasRole(roles, game, EditRoles...)
}

// Subject is the permission-relevant view of a project or version.
type Subject struct {
	Game      string
	Status    db.Status
	AuthorIDs []uint
	Parent    *Subject
}

func ProjectSubject(p db.Project) Subject {
	return Subject{Game: p.GameName, Status: p.Status, AuthorIDs: p.AuthorIDs}
}

// VersionSubject treats the version's uploader and the project's authors as authors.
func VersionSubject(v db.Version, parent db.Project) Subject {
	ps := ProjectSubject(parent)
	authors := append([]uint{v.AuthorID}, parent.AuthorIDs...)
	return Subject{Game: parent.GameName, Status: v.Status, AuthorIDs: authors, Parent: &ps}
}

func split(actor *db.User) (db.RoleSet, bool, uint) {
	if actor == nil {
		return db.RoleSet{}, false, 0
	}
	return actor.Roles, true, actor.ID
}

func (s Subject) authoredBy(signedIn bool, id uint) bool {
	return signedIn && slices.Contains(s.AuthorIDs, id)
}

// CanView checks s and, for versions, its parent project.
func CanView(actor *db.User, s Subject) bool {
	roles, signedIn, id := split(actor)
	if !Visible(roles, signedIn, s.Game, s.Status, s.authoredBy(signedIn, id)) {
		return false
	}
	if s.Parent != nil {
		return CanView(actor, *s.Parent)
	}
	return true
}

// CanEdit requires CanView plus authorship or an edit role.
func CanEdit(actor *db.User, s Subject) bool {
	if !CanView(actor, s) {
		return false
	}
	roles, signedIn, id := split(actor)
	return Editable(roles, signedIn, s.Game, s.Status, s.authoredBy(signedIn, id))
}

// CanModerate decides who may move an object between moderation states.
// Authors may only submit their own private objects; everything else needs a
// moderation role.
func CanModerate(actor *db.User, s Subject, to db.Status) bool {
	if !CanView(actor, s) {
		return false
	}
	roles, signedIn, id := split(actor)
	if HasRole(roles, s.Game, ModerateRoles...) {
		return true
	}
	return s.authoredBy(signedIn, id) && s.Status == db.StatusPrivate && to == db.StatusPending
}
