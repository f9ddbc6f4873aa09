package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Status is the moderation state shared by projects and versions.
type Status string

const (
	StatusPrivate    Status = "private"    // author-only, not yet submitted
	StatusPending    Status = "pending"    // awaiting moderation
	StatusUnverified Status = "unverified" // public, not approved
	StatusVerified   Status = "verified"   // public, approved
	StatusRemoved    Status = "removed"    // hidden, kept for restoration
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPrivate, StatusPending, StatusUnverified, StatusVerified, StatusRemoved}

// ParseStatus accepts any casing of a known status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Public reports whether anyone may see an object in this status.
func (s Status) Public() bool {
	return s == StatusVerified || s == StatusUnverified
}

// Platform is the build target of a version.
type Platform string

const (
	PlatformUniversalPC    Platform = "universalpc"
	PlatformSteamPC        Platform = "steampc"
	PlatformOculusPC       Platform = "oculuspc"
	PlatformUniversalQuest Platform = "universalquest"
)

func ParsePlatform(raw string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case PlatformUniversalPC, PlatformSteamPC, PlatformOculusPC, PlatformUniversalQuest:
		return p, nil
	}
	return "", fmt.Errorf("unknown platform %q", raw)
}

// Family groups platforms that can share a universal build.
func (p Platform) Family() string {
	switch p {
	case PlatformUniversalPC, PlatformSteamPC, PlatformOculusPC:
		return "pc"
	case PlatformUniversalQuest:
		return "quest"
	}
	return ""
}

func (p Platform) Universal() bool {
	return p == PlatformUniversalPC || p == PlatformUniversalQuest
}

// StatusEntry is one append-only line of a status history.
type StatusEntry struct {
	Status Status    `json:"status"`
	Reason string    `json:"reason"`
	UserID uint      `json:"userId"`
	SetAt  time.Time `json:"setAt"`
}

// Role is a permission grant held sitewide or for a single game.
type Role string

const (
	RoleAllPermissions Role = "allpermissions"
	RoleAdmin          Role = "admin"
	RoleModerator      Role = "moderator"
	RoleApprover       Role = "approver"
	RoleGameManager    Role = "gamemanager"
	RolePoster         Role = "poster"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAllPermissions, RoleAdmin, RoleModerator, RoleApprover, RoleGameManager, RolePoster:
		return true
	}
	return false
}

// RoleSet holds sitewide roles plus roles scoped to a game name.
type RoleSet struct {
	Sitewide []Role            `json:"sitewide"`
	PerGame  map[string][]Role `json:"perGame"`
}

// User is an account that can author, edit or moderate catalog objects.
type User struct {
	gorm.Model
	Username string  `gorm:"uniqueIndex"`
	Roles    RoleSet `gorm:"serializer:json"`
}

// Game is a supported target application.
type Game struct {
	gorm.Model
	Name       string        `gorm:"uniqueIndex"`
	Categories []string      `gorm:"serializer:json"`
	Webhooks   []GameWebhook `gorm:"foreignKey:GameID"`
}

// GameWebhook is a notification sink for one game. An empty tag list receives every event.
type GameWebhook struct {
	gorm.Model
	GameID uint `gorm:"index"`
	URL    string
	Tags   []string `gorm:"serializer:json"`
}

// GameVersion is a release of a game, e.g. "1.29.1".
type GameVersion struct {
	gorm.Model
	GameName         string `gorm:"index"`
	Version          string
	LinkedVersionIDs []uint `gorm:"serializer:json"` // Symmetric compatibility links
}

// Project is a mod listed in the catalog.
type Project struct {
	gorm.Model
	Name             string `gorm:"uniqueIndex"`
	Summary          string
	Description      string
	GameName         string `gorm:"index"`
	Category         string
	AuthorIDs        []uint `gorm:"serializer:json"`
	GitURL           string
	IconFileName     string
	Status           Status        `gorm:"index"`
	StatusHistory    []StatusEntry `gorm:"serializer:json"`
	LastApprovedByID *uint
	LastUpdatedByID  *uint
}

// Dependency is a declared dependency edge. VersionID is the concrete version
// recorded when the dependent version was submitted.
type Dependency struct {
	ParentProjectID uint   `json:"parentId"`
	VersionRange    string `json:"sv"`
	VersionID       uint   `json:"versionId,omitempty"`
}

// ContentHash is the hash of one file inside an uploaded archive.
type ContentHash struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// Version is one release of a project.
type Version struct {
	gorm.Model
	ProjectID               uint `gorm:"index"`
	AuthorID                uint
	ModVersion              string // Raw semver string; parsed only for comparison
	Platform                Platform
	ZipHash                 string        `gorm:"index"`
	ContentHashes           []ContentHash `gorm:"serializer:json"`
	FileSize                int64
	SupportedGameVersionIDs []uint        `gorm:"serializer:json"`
	Dependencies            []Dependency  `gorm:"serializer:json"`
	Status                  Status        `gorm:"index"`
	StatusHistory           []StatusEntry `gorm:"serializer:json"`
	LastApprovedByID        *uint
	LastUpdatedByID         *uint
}

// EditTable names the table an edit queue entry targets.
type EditTable string

const (
	EditTableProjects EditTable = "projects"
	EditTableVersions EditTable = "versions"
)

// ProjectEdit is a sparse proposed change to a project. Zero fields are unchanged.
type ProjectEdit struct {
	Name         string `json:"name,omitempty"`
	Summary      string `json:"summary,omitempty"`
	Description  string `json:"description,omitempty"`
	Category     string `json:"category,omitempty"`
	GitURL       string `json:"gitUrl,omitempty"`
	IconFileName string `json:"iconFileName,omitempty"`
	AuthorIDs    []uint `json:"authorIds,omitempty"`
}

// VersionEdit is a sparse proposed change to a version. Zero fields are unchanged.
type VersionEdit struct {
	ModVersion              string       `json:"modVersion,omitempty"`
	Platform                Platform     `json:"platform,omitempty"`
	SupportedGameVersionIDs []uint       `json:"supportedGameVersionIds,omitempty"`
	Dependencies            []Dependency `json:"dependencies,omitempty"`
}

// EditQueue is a proposed change to a published project or version, pending
// moderation. PendingKey is set only while Approved is nil; its unique index
// keeps one pending entry per target.
type EditQueue struct {
	gorm.Model
	ObjectTableName EditTable    `gorm:"index:idx_edit_target"`
	ObjectID        uint         `gorm:"index:idx_edit_target"`
	ProjectEdit     *ProjectEdit `gorm:"serializer:json"`
	VersionEdit     *VersionEdit `gorm:"serializer:json"`
	SubmitterID     uint
	Approved        *bool
	ApproverID      *uint
	PendingKey      *string `gorm:"uniqueIndex"`
}

// PendingKeyFor builds the unique key held by a pending entry.
func PendingKeyFor(table EditTable, objectID uint) string {
	return fmt.Sprintf("%s:%d", table, objectID)
}

// Resolved reports whether a moderator has accepted or denied the entry.
func (e EditQueue) Resolved() bool { return e.Approved != nil }
