package database

import (
	"os"
	"path/filepath"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// migrationLogger adapts ectologger to golang-migrate's logging interface.
type migrationLogger struct {
	ectologger.Logger
}

func (l migrationLogger) Verbose() bool { return true }

func (l migrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

// MigrationService runs the schema migrations of the main Wiser database. The
// per-tenant databases are never migrated here; their schema is cloned from
// production when a branch is created.
type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

type MigrationConfig struct {
	MigrationFolderPath string
	// Version pins the schema to a specific migration; 0 means migrate up to
	// the latest.
	Version uint
	// AutoRollback forces the schema version back to the pre-migration version
	// when a failed migration leaves the database dirty.
	AutoRollback bool
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{config: config, logger: logger}
}

// Migrate applies pending migrations against the given driver instance.
// Returns an error when the schema could not be brought to the target
// version; the service must not start in that case.
func (ms *MigrationService) Migrate(databaseName string, driver migratedb.Driver) error {
	folder := ms.config.MigrationFolderPath
	if _, err := os.Stat(folder); err != nil {
		wd, _ := os.Getwd()
		folder = filepath.Join(wd, folder)
		if _, err := os.Stat(folder); err != nil {
			return errors.Wrapf(err, "migration folder %s does not exist", folder)
		}
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		return errors.Wrap(err, "failed to create migrate instance")
	}
	m.Log = migrationLogger{Logger: ms.logger}

	previousVersion, _, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		ms.logger.WithError(err).Error("Failed to read current migration version")
		previousVersion = 0
	}

	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}

	switch {
	case err == nil:
		ms.logger.Info("Successfully applied migrations")
		return nil
	case err == migrate.ErrNoChange:
		ms.logger.Info("No new migrations to apply")
		return nil
	default:
		return ms.rollbackIfDirty(m, err, previousVersion)
	}
}

func (ms *MigrationService) rollbackIfDirty(m *migrate.Migrate, migrationErr error, previousVersion uint) error {
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		ms.logger.WithError(err).Error("Failed to read migration version after failure")
		return migrationErr
	}

	if !ms.config.AutoRollback || !dirty {
		ms.logger.WithError(migrationErr).Errorf("Failed to apply migrations, dirty=%t at version %d", dirty, version)
		return migrationErr
	}

	if previousVersion == 0 && version > 0 {
		previousVersion = version - 1
	}
	ms.logger.Warnf("Database is dirty at version %d, reverting to version %d", version, previousVersion)
	if forceErr := m.Force(int(previousVersion)); forceErr != nil {
		ms.logger.WithError(forceErr).Errorf("Failed to force database to version %d", previousVersion)
		return forceErr
	}

	// The original failure still aborts startup after a successful rollback.
	return migrationErr
}
