package database

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
)

// SchemaService performs database- and table-level DDL against a tenant's MySQL
// server. DDL statements cause an implicit commit in MySQL, so callers must use
// a session that is not inside an open transaction.
type SchemaService struct {
	logger ectologger.Logger
}

func NewSchemaService(logger ectologger.Logger) *SchemaService {
	return &SchemaService{logger: logger}
}

// Trigger is one row of INFORMATION_SCHEMA.TRIGGERS, reduced to the fields
// needed to recreate the trigger in another schema.
type Trigger struct {
	Name      string `db:"trigger_name"`
	Event     string `db:"event_manipulation"`
	Table     string `db:"event_object_table"`
	Statement string `db:"action_statement"`
	Timing    string `db:"action_timing"`
}

func (s *SchemaService) DatabaseExists(ctx context.Context, sess Session, name string) (bool, error) {
	var count int
	err := sess.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?", name)
	if err != nil {
		return false, fmt.Errorf("failed to check database existence: %w", err)
	}
	return count > 0, nil
}

func (s *SchemaService) CreateDatabase(ctx context.Context, sess Session, name string) error {
	query := fmt.Sprintf("CREATE DATABASE %s DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", QuoteIdentifier(name))
	if _, err := sess.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

func (s *SchemaService) DropDatabase(ctx context.Context, sess Session, name string) error {
	query := fmt.Sprintf("DROP DATABASE IF EXISTS %s", QuoteIdentifier(name))
	if _, err := sess.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to drop database %s: %w", name, err)
	}
	return nil
}

// ListBaseTables returns the names of all base tables in the given schema,
// excluding names prefixed with an underscore (scratch tables by convention).
func (s *SchemaService) ListBaseTables(ctx context.Context, sess Session, schema string) ([]string, error) {
	var tables []string
	err := sess.SelectContext(ctx, &tables, `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_TYPE = 'BASE TABLE'
		  AND TABLE_NAME NOT LIKE '\_%'
		ORDER BY TABLE_NAME`, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %s: %w", schema, err)
	}
	return tables, nil
}

// ListTriggers returns the triggers defined in the given schema.
func (s *SchemaService) ListTriggers(ctx context.Context, sess Session, schema string) ([]Trigger, error) {
	var triggers []Trigger
	err := sess.SelectContext(ctx, &triggers, `
		SELECT TRIGGER_NAME AS trigger_name,
		       EVENT_MANIPULATION AS event_manipulation,
		       EVENT_OBJECT_TABLE AS event_object_table,
		       ACTION_STATEMENT AS action_statement,
		       ACTION_TIMING AS action_timing
		FROM INFORMATION_SCHEMA.TRIGGERS
		WHERE TRIGGER_SCHEMA = ?
		ORDER BY TRIGGER_NAME`, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list triggers of %s: %w", schema, err)
	}
	return triggers, nil
}

// CreateTrigger recreates a trigger in the target schema.
func (s *SchemaService) CreateTrigger(ctx context.Context, sess Session, schema string, trigger Trigger) error {
	query := fmt.Sprintf("CREATE TRIGGER %s %s %s ON %s FOR EACH ROW %s",
		QuoteQualified(schema, trigger.Name),
		trigger.Timing,
		trigger.Event,
		QuoteQualified(schema, trigger.Table),
		trigger.Statement)
	if _, err := sess.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create trigger %s: %w", trigger.Name, err)
	}
	return nil
}

// EnsureIDMappingsTable creates the wiser_id_mappings table in the branch
// database if it does not exist yet.
func (s *SchemaService) EnsureIDMappingsTable(ctx context.Context, sess Session) error {
	query := `
		CREATE TABLE IF NOT EXISTS wiser_id_mappings (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			table_name VARCHAR(255) NOT NULL,
			our_id BIGINT UNSIGNED NOT NULL,
			production_id BIGINT UNSIGNED NOT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY idx_table_our_id (table_name, our_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
	if _, err := sess.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure wiser_id_mappings table: %w", err)
	}
	return nil
}
