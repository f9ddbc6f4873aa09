package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Models lists every table owned by the catalog, in migration order.
func Models() []any {
	return []any{&User{}, &Game{}, &GameWebhook{}, &GameVersion{}, &Project{}, &Version{}, &EditQueue{}}
}

// Open connects to the configured driver and migrates the schema.
func Open(driver, dsn string) (*gorm.DB, error) {
	newLogger := gormlogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,     // Slow SQL threshold
			LogLevel:                  gormlogger.Warn, // Log level (Warn, Error, Info)
			IgnoreRecordNotFoundError: true,            // Not-found is an expected outcome for lookups
			ParameterizedQueries:      false,
			Colorful:                  true,
		},
	)

	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = gormlite.Open(sqliteDSN(dsn))
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newLogger,
		TranslateError: true, // Surface unique violations as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := gdb.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return gdb, nil
}

// InitDatabase initializes the global connection and migrates models.
func InitDatabase(driver, dsn string) {
	var err error
	DB, err = Open(driver, dsn)
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// sqliteDSN turns a plain path into a URI so the busy timeout pragma applies
// to every pooled connection.
func sqliteDSN(dsn string) string {
	if strings.HasPrefix(dsn, "file:") {
		return dsn
	}
	return "file:" + dsn + "?_pragma=busy_timeout(10000)"
}
