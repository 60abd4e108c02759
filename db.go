package auth

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// Dialect is a supported database backend
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DBConfig holds the database options
type DBConfig interface {
	GetDriver() string
	GetDSN() string
	GetDebug() bool
}

// ParseDialect maps a driver name to a Dialect
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", goerrors.New("unsupported database driver", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"driver": driver})
	}
}

// OpenDB opens the configured database and wraps it with the matching bun
// dialect.
func OpenDB(cfg DBConfig) (*bun.DB, Dialect, error) {
	dialect, err := ParseDialect(cfg.GetDriver())
	if err != nil {
		return nil, "", err
	}

	var db *bun.DB
	switch dialect {
	case DialectSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.GetDSN())
		if err != nil {
			return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
		}
		// database/sql pools connections, an in-memory sqlite db is per connection
		if strings.Contains(cfg.GetDSN(), ":memory:") {
			sqldb.SetMaxOpenConns(1)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
		if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to enable sqlite foreign keys")
		}
	case DialectPostgres:
		sqldb, err := sql.Open("pgx", cfg.GetDSN())
		if err != nil {
			return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres database")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	}

	if cfg.GetDebug() {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return db, dialect, nil
}

var gooseDialects = map[Dialect]string{
	DialectSQLite:   "sqlite3",
	DialectPostgres: "postgres",
}

// goose keeps its base FS and dialect in package globals
var migrateMu sync.Mutex

// Migrate applies the embedded migrations of dialect
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	fsys, err := MigrationsFor(dialect)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load migrations")
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(gooseDialects[dialect]); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set migration dialect")
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations")
	}

	return nil
}
