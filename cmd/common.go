package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"mod-catalog/apperr"
	"mod-catalog/cache"
	"mod-catalog/config"
	"mod-catalog/db"
	"mod-catalog/engine"
	"mod-catalog/files"
	"mod-catalog/logger"
	"mod-catalog/notify"

	"go.uber.org/zap"
)

// app is everything a command needs, wired from configuration.
type app struct {
	cfg        config.Config
	store      *db.Store
	cache      *cache.Cache
	files      *files.DiskStore
	dispatcher *notify.Dispatcher
	engine     *engine.Engine
}

// bootstrap handles shared initialization logic for commands.
func bootstrap(path string) *app {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Log.Fatalw("Failed to load configuration", zap.Error(err))
	}
	if cfg.LogFile != logger.DefaultLogFile {
		logger.InitLogger(cfg.LogFile)
	}

	db.InitDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN)
	logger.Log.Infow("Database initialized", zap.String("driver", cfg.DatabaseDriver))

	store := db.NewStore(db.DB)
	c := cache.New(store, logger.Named("cache"))
	fs := files.NewDiskStore(cfg.StorageDir)
	dispatcher := notify.NewDispatcher(logger.Named("notify"), cfg.NotifyQueueSize, cfg.WebhookTimeout,
		notify.LogSender{Log: logger.Named("events")},
		notify.NewWebhookSender(store, cfg.UserAgent, cfg.WebhookTimeout),
	)

	eng := engine.New(engine.Options{
		Repo:     store,
		Catalog:  c,
		Notifier: dispatcher,
		Files:    fs,
		Log:      logger.Named("engine"),
	})

	return &app{cfg: cfg, store: store, cache: c, files: fs, dispatcher: dispatcher, engine: eng}
}

// close waits for queued notifications to go out.
func (a *app) close() {
	a.dispatcher.Close()
	logger.Sync()
}

// actor resolves --as to a user.
func (a *app) actor(ctx context.Context) *db.User {
	if actingUser == "" {
		a.fail("No acting user", fmt.Errorf("pass --as <username|id>"))
	}
	var (
		user *db.User
		err  error
	)
	if id, convErr := strconv.ParseUint(actingUser, 10, 64); convErr == nil {
		user, err = a.store.GetUser(ctx, uint(id))
	} else {
		user, err = a.store.GetUserByName(ctx, actingUser)
	}
	if err != nil {
		a.fail("Unknown acting user", err)
	}
	return user
}

// target loads a project or version by kind name and id.
func (a *app) target(ctx context.Context, kind, rawID string) engine.Target {
	id, err := parseID(rawID)
	if err != nil {
		a.fail("Invalid id", err)
	}
	switch engine.Kind(strings.ToLower(kind)) {
	case engine.KindProject:
		p, err := a.store.GetProject(ctx, id)
		if err != nil {
			a.fail("Failed to load project", err)
		}
		return engine.ProjectTarget(p)
	case engine.KindVersion:
		v, err := a.store.GetVersion(ctx, id)
		if err != nil {
			a.fail("Failed to load version", err)
		}
		return engine.VersionTarget(v)
	}
	a.fail("Invalid target", fmt.Errorf("kind must be project or version, got %q", kind))
	return engine.Target{}
}

// fail reports err, flushes queued notifications and exits.
func (a *app) fail(msg string, err error) {
	report(msg, err)
	a.close()
	os.Exit(1)
}

// exit reports err and exits; for failures before bootstrap.
func exit(msg string, err error) {
	report(msg, err)
	os.Exit(1)
}

func report(msg string, err error) {
	logger.Log.Errorw(msg, zap.String("kind", string(apperr.KindOf(err))), zap.Error(err))
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(id), nil
}

// parseIDs splits a comma-separated id list. Empty input yields nil.
func parseIDs(raw string) ([]uint, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []uint
	for _, part := range strings.Split(raw, ",") {
		id, err := parseID(part)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// parseDependency reads "<projectId>:<range>", e.g. "12:^1.0.0".
func parseDependency(raw string) (db.Dependency, error) {
	idPart, rng, ok := strings.Cut(raw, ":")
	if !ok || strings.TrimSpace(rng) == "" {
		return db.Dependency{}, fmt.Errorf("dependency %q must look like <projectId>:<range>", raw)
	}
	id, err := parseID(idPart)
	if err != nil {
		return db.Dependency{}, err
	}
	return db.Dependency{ParentProjectID: id, VersionRange: strings.TrimSpace(rng)}, nil
}

func parseDependencies(raw []string) ([]db.Dependency, error) {
	out := make([]db.Dependency, 0, len(raw))
	for _, r := range raw {
		d, err := parseDependency(r)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// parseStatuses splits a comma-separated status list. Empty input yields nil.
func parseStatuses(raw string) ([]db.Status, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []db.Status
	for _, part := range strings.Split(raw, ",") {
		s, err := db.ParseStatus(part)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// parseRoles reads "<role>" as a sitewide grant and "<game>:<role>" as a
// grant scoped to one game.
func parseRoles(raw []string) (db.RoleSet, error) {
	var roles db.RoleSet
	for _, r := range raw {
		game, role, scoped := strings.Cut(r, ":")
		if !scoped {
			role, game = game, ""
		}
		parsed := db.Role(strings.ToLower(strings.TrimSpace(role)))
		if !db.ValidRole(parsed) {
			return db.RoleSet{}, fmt.Errorf("unknown role %q", role)
		}
		if game == "" {
			roles.Sitewide = append(roles.Sitewide, parsed)
			continue
		}
		if roles.PerGame == nil {
			roles.PerGame = make(map[string][]db.Role)
		}
		roles.PerGame[game] = append(roles.PerGame[game], parsed)
	}
	return roles, nil
}
