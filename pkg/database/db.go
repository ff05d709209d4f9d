package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// DB is the connection surface the repositories are written against. It is
// satisfied by DatabaseInstance, which wraps sqlx.DB. There is deliberately
// no transaction surface here: branch cloning is DDL (MySQL commits
// implicitly) and the merge protocol isolates with LOCK TABLES on a pinned
// autocommit connection.
type DB interface {
	Session
	Connx(ctx context.Context) (*sqlx.Conn, error)
	Close() error
	Ping() error
	PingContext(ctx context.Context) error
	Rebind(query string) string
	Unsafe() *sqlx.DB
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) DB {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
	}
}

// ConnectionInfo describes how to reach one tenant database. Stored as an
// encrypted JSON column on the tenant row in the main Wiser database.
type ConnectionInfo struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
}

// DSN renders the go-sql-driver/mysql connection string for this database.
// multiStatements is required by the branch cloner, which replays multi
// statement trigger bodies verbatim.
func (c ConnectionInfo) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.DatabaseName
	cfg.ParseTime = true
	cfg.MultiStatements = true
	cfg.InterpolateParams = false
	return cfg.FormatDSN()
}

// ConnectConfig holds pool settings for tenant connections.
type ConnectConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens a connection pool to the given tenant database and verifies it
// with a ping before handing it out.
func Connect(ctx context.Context, info ConnectionInfo, cfg ConnectConfig, logger ectologger.Logger) (DB, error) {
	db, err := sqlx.ConnectContext(ctx, "mysql", info.DSN())
	if err != nil {
		logger.WithContext(ctx).WithError(err).WithField("database", info.DatabaseName).Error("Failed to connect to tenant database")
		return nil, fmt.Errorf("failed to connect to database %s: %w", info.DatabaseName, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return NewDatabaseInstance(db, logger), nil
}
