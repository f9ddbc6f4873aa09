package engine

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"mod-catalog/apperr"
	"mod-catalog/cache"
	"mod-catalog/db"
	"mod-catalog/notify"
	"mod-catalog/permission"
	"mod-catalog/semver"

	"go.uber.org/zap"
)

// PermanentCategories exist on every game and cannot be removed.
var PermanentCategories = []string{"Core", "Essentials", "Other"}

func requireAdmin(actor *db.User, game string) error {
	if actor == nil || !permission.HasRole(actor.Roles, game, permission.AdminRoles...) {
		return apperr.Forbidden("not allowed to administer %s", game)
	}
	return nil
}

// CreateGame adds a game with the permanent categories. Only sitewide
// administrators may add games.
func (e *Engine) CreateGame(ctx context.Context, name string, actor *db.User) (*db.Game, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("game name must not be empty")
	}
	if actor == nil || !permission.HasRole(actor.Roles, "", db.RoleAllPermissions, db.RoleAdmin) {
		return nil, apperr.Forbidden("not allowed to add games")
	}
	game := &db.Game{Name: name, Categories: slices.Clone(PermanentCategories)}
	if err := e.repo.CreateGame(ctx, game); err != nil {
		return nil, fmt.Errorf("create game %q: %w", name, err)
	}
	e.log.Infow("Game created", zap.String("game", name), zap.Uint("actor", actor.ID))
	e.refresh(ctx, cache.KindGames)
	return game, nil
}

// CreateGameVersion registers a release of game. The version must be
// semantic and unique for the game.
func (e *Engine) CreateGameVersion(ctx context.Context, game, version string, actor *db.User) (*db.GameVersion, error) {
	if err := requireAdmin(actor, game); err != nil {
		return nil, err
	}
	if _, err := e.repo.GetGame(ctx, game); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Validation("unknown game %q", game)
		}
		return nil, err
	}
	version = strings.TrimSpace(version)
	parsed, err := semver.ParseVersion(version)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, "invalid game version")
	}
	existing, err := e.repo.ListGameVersions(ctx)
	if err != nil {
		return nil, err
	}
	for _, gv := range existing {
		if gv.GameName != game {
			continue
		}
		if other, err := semver.ParseVersion(gv.Version); err == nil && semver.Compare(other, parsed) == 0 {
			return nil, apperr.Conflict("%s %s already exists (id %d)", game, version, gv.ID)
		}
	}

	gv := &db.GameVersion{GameName: game, Version: version}
	if err := e.repo.CreateGameVersion(ctx, gv); err != nil {
		return nil, fmt.Errorf("create game version %s %s: %w", game, version, err)
	}
	e.log.Infow("Game version created", zap.String("game", game), zap.String("version", version), zap.Uint("id", gv.ID))
	e.refresh(ctx, cache.KindGameVersions)
	return gv, nil
}

// AddCategory adds a project category to game. Adding an existing category
// is a no-op.
func (e *Engine) AddCategory(ctx context.Context, game, category string, actor *db.User) (*db.Game, error) {
	if err := requireAdmin(actor, game); err != nil {
		return nil, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, apperr.Validation("category must not be empty")
	}
	g, err := e.repo.GetGame(ctx, game)
	if err != nil {
		return nil, err
	}
	if slices.Contains(g.Categories, category) {
		return g, nil
	}
	updated := *g
	updated.Categories = append(slices.Clone(g.Categories), category)
	if err := e.repo.SaveGame(ctx, &updated); err != nil {
		return nil, fmt.Errorf("add category %q to %s: %w", category, game, err)
	}
	e.log.Infow("Category added", zap.String("game", game), zap.String("category", category))
	e.refresh(ctx, cache.KindGames)
	return &updated, nil
}

// RemoveCategory drops a category from game. Permanent categories and
// categories still used by a project are refused.
func (e *Engine) RemoveCategory(ctx context.Context, game, category string, actor *db.User) (*db.Game, error) {
	if err := requireAdmin(actor, game); err != nil {
		return nil, err
	}
	if slices.Contains(PermanentCategories, category) {
		return nil, apperr.Validation("category %q cannot be removed", category)
	}
	g, err := e.repo.GetGame(ctx, game)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(g.Categories, category) {
		return nil, apperr.NotFound("%s has no category %q", game, category)
	}
	projects, err := e.repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.GameName == game && p.Category == category {
			return nil, apperr.Conflict("category %q is used by project %s", category, p.Name)
		}
	}

	updated := *g
	updated.Categories = slices.DeleteFunc(slices.Clone(g.Categories), func(c string) bool { return c == category })
	if err := e.repo.SaveGame(ctx, &updated); err != nil {
		return nil, fmt.Errorf("remove category %q from %s: %w", category, game, err)
	}
	e.log.Infow("Category removed", zap.String("game", game), zap.String("category", category))
	e.refresh(ctx, cache.KindGames)
	return &updated, nil
}

// loadLinkPair loads two distinct game versions of the same game.
func (e *Engine) loadLinkPair(ctx context.Context, a, b uint, actor *db.User) (*db.GameVersion, *db.GameVersion, error) {
	if a == b {
		return nil, nil, apperr.Validation("a game version cannot be linked to itself")
	}
	first, err := e.repo.GetGameVersion(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	second, err := e.repo.GetGameVersion(ctx, b)
	if err != nil {
		return nil, nil, err
	}
	if first.GameName != second.GameName {
		return nil, nil, apperr.Validation("game versions %d and %d belong to different games", a, b)
	}
	if err := requireAdmin(actor, first.GameName); err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

// LinkGameVersions marks two game versions of one game as compatible, so a
// version supporting either counts as supporting both. Links are symmetric.
func (e *Engine) LinkGameVersions(ctx context.Context, a, b uint, actor *db.User) error {
	first, second, err := e.loadLinkPair(ctx, a, b, actor)
	if err != nil {
		return err
	}
	return e.saveLinks(ctx, first, second, func(ids []uint, id uint) []uint {
		if slices.Contains(ids, id) {
			return ids
		}
		return append(slices.Clone(ids), id)
	})
}

// UnlinkGameVersions removes a link in both directions.
func (e *Engine) UnlinkGameVersions(ctx context.Context, a, b uint, actor *db.User) error {
	first, second, err := e.loadLinkPair(ctx, a, b, actor)
	if err != nil {
		return err
	}
	return e.saveLinks(ctx, first, second, func(ids []uint, id uint) []uint {
		return slices.DeleteFunc(slices.Clone(ids), func(x uint) bool { return x == id })
	})
}

func (e *Engine) saveLinks(ctx context.Context, first, second *db.GameVersion, update func([]uint, uint) []uint) error {
	a, b := *first, *second
	a.LinkedVersionIDs = update(a.LinkedVersionIDs, b.ID)
	b.LinkedVersionIDs = update(b.LinkedVersionIDs, a.ID)
	err := e.repo.Transaction(ctx, func(tx db.Repository) error {
		if err := tx.SaveGameVersion(ctx, &a); err != nil {
			return err
		}
		return tx.SaveGameVersion(ctx, &b)
	})
	if err != nil {
		return fmt.Errorf("link game versions %d and %d: %w", a.ID, b.ID, err)
	}
	e.log.Infow("Game version links updated", zap.Uint("a", a.ID), zap.Uint("b", b.ID), zap.Uints("aLinks", a.LinkedVersionIDs))
	e.refresh(ctx, cache.KindGameVersions)
	return nil
}

// AddWebhook subscribes a URL to game's events. Tags filter by event kind;
// no tags means every event.
func (e *Engine) AddWebhook(ctx context.Context, game, rawURL string, tags []string, actor *db.User) (*db.Game, error) {
	if err := requireAdmin(actor, game); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperr.Validation("webhook url %q must be an absolute http(s) url", rawURL)
	}
	for _, tag := range tags {
		if !notify.KnownKind(notify.EventKind(tag)) {
			return nil, apperr.Validation("unknown event tag %q", tag)
		}
	}
	g, err := e.repo.GetGame(ctx, game)
	if err != nil {
		return nil, err
	}

	updated := *g
	updated.Webhooks = append(slices.Clone(g.Webhooks), db.GameWebhook{GameID: g.ID, URL: u.String(), Tags: tags})
	if err := e.repo.SaveGame(ctx, &updated); err != nil {
		return nil, fmt.Errorf("add webhook to %s: %w", game, err)
	}
	e.log.Infow("Webhook added", zap.String("game", game), zap.String("host", u.Host), zap.Strings("tags", tags))
	e.refresh(ctx, cache.KindGames)
	return &updated, nil
}
