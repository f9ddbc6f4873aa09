package db

import (
	"context"
	"errors"
	"fmt"

	"mod-catalog/apperr"

	"gorm.io/gorm"
)

// Repository is the storage surface the catalog engine depends on.
type Repository interface {
	GetUser(ctx context.Context, id uint) (*User, error)
	GetUserByName(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, user *User) error

	GetGame(ctx context.Context, name string) (*Game, error)
	CreateGame(ctx context.Context, game *Game) error
	SaveGame(ctx context.Context, game *Game) error
	ListGames(ctx context.Context) ([]Game, error)

	GetGameVersion(ctx context.Context, id uint) (*GameVersion, error)
	CreateGameVersion(ctx context.Context, gv *GameVersion) error
	SaveGameVersion(ctx context.Context, gv *GameVersion) error
	ListGameVersions(ctx context.Context) ([]GameVersion, error)

	GetProject(ctx context.Context, id uint) (*Project, error)
	GetProjectByName(ctx context.Context, name string) (*Project, error)
	CreateProject(ctx context.Context, project *Project) error
	UpdateProject(ctx context.Context, project *Project, columns []string) error
	ListProjects(ctx context.Context) ([]Project, error)

	GetVersion(ctx context.Context, id uint) (*Version, error)
	CreateVersion(ctx context.Context, version *Version) error
	UpdateVersion(ctx context.Context, version *Version, columns []string) error
	ListVersions(ctx context.Context) ([]Version, error)
	ListProjectVersions(ctx context.Context, projectID uint) ([]Version, error)

	GetEdit(ctx context.Context, id uint) (*EditQueue, error)
	FindPendingEdit(ctx context.Context, table EditTable, objectID uint) (*EditQueue, error)
	CreateEdit(ctx context.Context, edit *EditQueue) error
	SaveEdit(ctx context.Context, edit *EditQueue) error
	ListEdits(ctx context.Context) ([]EditQueue, error)

	// Transaction runs fn against a repository bound to one database transaction.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}

// Column sets owned by each kind of write. Lifecycle changes and content
// edits touch disjoint columns so neither can roll back the other.
var (
	LifecycleColumns      = []string{"status", "status_history", "last_approved_by_id", "updated_at"}
	ProjectContentColumns = []string{"name", "summary", "description", "category", "author_ids", "git_url", "icon_file_name", "last_updated_by_id", "updated_at"}
	VersionContentColumns = []string{"mod_version", "platform", "supported_game_version_ids", "dependencies", "last_updated_by_id", "updated_at"}
)

// Store is the gorm-backed Repository.
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// Ensure interfaces are satisfied at compile time
var _ Repository = (*Store)(nil)

func translate(err error, what string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(err, apperr.KindConflict, what+" already exists")
	default:
		return apperr.Wrap(err, apperr.KindPersistence, what+" query failed")
	}
}

func first[T any](ctx context.Context, gdb *gorm.DB, what string, query any, args ...any) (*T, error) {
	var out T
	if err := gdb.WithContext(ctx).Where(query, args...).First(&out).Error; err != nil {
		return nil, translate(err, what)
	}
	return &out, nil
}

func create[T any](ctx context.Context, gdb *gorm.DB, what string, obj *T) error {
	if err := gdb.WithContext(ctx).Create(obj).Error; err != nil {
		return translate(err, what)
	}
	return nil
}

func save[T any](ctx context.Context, gdb *gorm.DB, what string, obj *T) error {
	if err := gdb.WithContext(ctx).Save(obj).Error; err != nil {
		return translate(err, what)
	}
	return nil
}

// update writes only columns of obj, which must carry its primary key.
func update[T any](ctx context.Context, gdb *gorm.DB, what string, obj *T, columns []string) error {
	if len(columns) == 0 {
		return apperr.New(apperr.KindValidation, what+": no columns to update")
	}
	res := gdb.WithContext(ctx).Model(obj).Select(columns).Updates(obj)
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("%s not found", what)
	}
	return nil
}

func list[T any](ctx context.Context, gdb *gorm.DB, what string) ([]T, error) {
	var out []T
	if err := gdb.WithContext(ctx).Order("id ASC").Find(&out).Error; err != nil {
		return nil, translate(err, what)
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id uint) (*User, error) {
	return first[User](ctx, s.db, fmt.Sprintf("user %d", id), "id = ?", id)
}

func (s *Store) GetUserByName(ctx context.Context, username string) (*User, error) {
	return first[User](ctx, s.db, fmt.Sprintf("user %q", username), "username = ?", username)
}

func (s *Store) CreateUser(ctx context.Context, user *User) error {
	return create(ctx, s.db, "user", user)
}

func (s *Store) GetGame(ctx context.Context, name string) (*Game, error) {
	var game Game
	err := s.db.WithContext(ctx).Preload("Webhooks").Where("name = ?", name).First(&game).Error
	if err != nil {
		return nil, translate(err, fmt.Sprintf("game %q", name))
	}
	return &game, nil
}

func (s *Store) CreateGame(ctx context.Context, game *Game) error {
	return create(ctx, s.db, "game", game)
}

func (s *Store) SaveGame(ctx context.Context, game *Game) error {
	if err := s.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(game).Error; err != nil {
		return translate(err, "game")
	}
	return nil
}

func (s *Store) ListGames(ctx context.Context) ([]Game, error) {
	var out []Game
	if err := s.db.WithContext(ctx).Preload("Webhooks").Order("id ASC").Find(&out).Error; err != nil {
		return nil, translate(err, "games")
	}
	return out, nil
}

func (s *Store) GetGameVersion(ctx context.Context, id uint) (*GameVersion, error) {
	return first[GameVersion](ctx, s.db, fmt.Sprintf("game version %d", id), "id = ?", id)
}

func (s *Store) CreateGameVersion(ctx context.Context, gv *GameVersion) error {
	return create(ctx, s.db, "game version", gv)
}

func (s *Store) SaveGameVersion(ctx context.Context, gv *GameVersion) error {
	return save(ctx, s.db, "game version", gv)
}

func (s *Store) ListGameVersions(ctx context.Context) ([]GameVersion, error) {
	return list[GameVersion](ctx, s.db, "game versions")
}

func (s *Store) GetProject(ctx context.Context, id uint) (*Project, error) {
	return first[Project](ctx, s.db, fmt.Sprintf("project %d", id), "id = ?", id)
}

func (s *Store) GetProjectByName(ctx context.Context, name string) (*Project, error) {
	return first[Project](ctx, s.db, fmt.Sprintf("project %q", name), "name = ?", name)
}

func (s *Store) CreateProject(ctx context.Context, project *Project) error {
	return create(ctx, s.db, "project", project)
}

func (s *Store) UpdateProject(ctx context.Context, project *Project, columns []string) error {
	return update(ctx, s.db, fmt.Sprintf("project %d", project.ID), project, columns)
}

func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	return list[Project](ctx, s.db, "projects")
}

func (s *Store) GetVersion(ctx context.Context, id uint) (*Version, error) {
	return first[Version](ctx, s.db, fmt.Sprintf("version %d", id), "id = ?", id)
}

func (s *Store) CreateVersion(ctx context.Context, version *Version) error {
	return create(ctx, s.db, "version", version)
}

func (s *Store) UpdateVersion(ctx context.Context, version *Version, columns []string) error {
	return update(ctx, s.db, fmt.Sprintf("version %d", version.ID), version, columns)
}

func (s *Store) ListVersions(ctx context.Context) ([]Version, error) {
	return list[Version](ctx, s.db, "versions")
}

func (s *Store) ListProjectVersions(ctx context.Context, projectID uint) ([]Version, error) {
	var out []Version
	if err := s.db.WithContext(ctx).Where("project_id = ?", projectID).Order("id ASC").Find(&out).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("versions of project %d", projectID))
	}
	return out, nil
}

func (s *Store) GetEdit(ctx context.Context, id uint) (*EditQueue, error) {
	return first[EditQueue](ctx, s.db, fmt.Sprintf("edit %d", id), "id = ?", id)
}

// FindPendingEdit returns the unresolved entry for a target, or a not_found error.
func (s *Store) FindPendingEdit(ctx context.Context, table EditTable, objectID uint) (*EditQueue, error) {
	return first[EditQueue](ctx, s.db, fmt.Sprintf("pending edit for %s %d", table, objectID),
		"object_table_name = ? AND object_id = ? AND approved IS NULL", table, objectID)
}

func (s *Store) CreateEdit(ctx context.Context, edit *EditQueue) error {
	return create(ctx, s.db, "pending edit", edit)
}

func (s *Store) SaveEdit(ctx context.Context, edit *EditQueue) error {
	return save(ctx, s.db, "edit", edit)
}

func (s *Store) ListEdits(ctx context.Context) ([]EditQueue, error) {
	return list[EditQueue](ctx, s.db, "edits")
}

func (s *Store) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}
