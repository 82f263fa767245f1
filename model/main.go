package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/Laisky/errors/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/buscafornecedor/vllm-gateway/common/config"
	"github.com/buscafornecedor/vllm-gateway/common/logger"
)

// sqliteBusyTimeout is the busy handler timeout (ms) applied to the SQLite
// fallback database.
const sqliteBusyTimeout = 3000

// Store is the append-only outcome log backed by a pooled *gorm.DB.
type Store struct {
	db        *gorm.DB
	tableName string
}

func chooseDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.SQLDSN
	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		logger.Logger.Info("using PostgreSQL as outcome store")
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true, // disables implicit prepared statement usage
		}), &gorm.Config{
			PrepareStmt: true, // precompile SQL
		})
	case dsn != "":
		logger.Logger.Info("using MySQL as outcome store")
		return gorm.Open(mysql.Open(dsn), &gorm.Config{
			PrepareStmt: true,
		})
	default:
		logger.Logger.Info("POSTGRES_CONNECTION_STRING not set, using SQLite as outcome store")
		sqliteDSN := fmt.Sprintf("%s?_busy_timeout=%d", cfg.SQLitePath, sqliteBusyTimeout)
		return gorm.Open(sqlite.Open(sqliteDSN), &gorm.Config{
			PrepareStmt: true,
		})
	}
}

// InitStore opens the outcome store and migrates the outcome table.
func InitStore(cfg *config.Config) (*Store, error) {
	db, err := chooseDB(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open outcome store")
	}

	store := &Store{
		db:        db,
		tableName: qualifiedTableName(cfg),
	}
	if err := db.Table(store.tableName).AutoMigrate(&Outcome{}); err != nil {
		return nil, errors.Wrapf(err, "migrate outcome table %s", store.tableName)
	}
	return store, nil
}

// qualifiedTableName prefixes the configured schema on PostgreSQL
// deployments; SQLite and MySQL ignore the schema setting.
func qualifiedTableName(cfg *config.Config) string {
	name := cfg.TableName
	if name == "" {
		name = "vllm_outcomes"
	}
	if cfg.TableSchema != "" && strings.HasPrefix(cfg.SQLDSN, "postgres") {
		return cfg.TableSchema + "." + name
	}
	return name
}

// Ping reports whether the store is currently reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "get underlying sql.DB")
	}
	return errors.Wrap(sqlDB.PingContext(ctx), "ping outcome store")
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "get underlying sql.DB")
	}
	return errors.Wrap(sqlDB.Close(), "close outcome store")
}
