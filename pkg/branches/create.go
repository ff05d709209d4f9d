package branches

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/metrics"
	"github.com/wisercms/wiser-api/pkg/models"
	"github.com/wisercms/wiser-api/pkg/tracing"
)

// CreateBranch clones the caller's production environment into a new branch:
// a tenant row in the main Wiser database plus a fresh database containing
// every production base table, with data filtered by entity type. The copy is
// performed synchronously; the branch is usable when this returns.
//
// Database creation is all-or-nothing: on any failure the branch tenant row is
// removed and the new database is dropped, but only if this call is certain it
// created the database itself.
func (s *Service) CreateBranch(ctx context.Context, settings models.CreateBranchSettings) (*models.Tenant, error) {
	ctx, span := tracing.StartSpan(ctx, "branches.Service.CreateBranch")
	defer span.End()

	started := time.Now()

	branchName := strings.TrimSpace(settings.Name)
	if branchName == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "branch name is required")
	}
	if settings.StartOn != nil && settings.StartOn.Before(time.Now()) {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "start date must not be in the past")
	}

	caller, err := s.currentTenant(ctx)
	if err != nil {
		return nil, err
	}

	production, err := s.tenants.GetRoot(ctx, caller, true)
	if err != nil {
		return nil, err
	}

	databaseName := deriveDatabaseName(production.Database.DatabaseName, branchName)
	subdomain := deriveSubdomain(production.Subdomain, branchName)

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   production.TenantID,
		"branch_name": branchName,
		"database":    databaseName,
	})

	exists, err := s.tenants.NameOrSubdomainExists(ctx, production.TenantID, branchName, subdomain)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "a branch named %q already exists", branchName)
	}

	// DDL runs outside any transaction; MySQL commits implicitly on DDL.
	serverInfo := production.Database
	serverInfo.DatabaseName = ""
	server, err := s.connect(ctx, serverInfo)
	if err != nil {
		return nil, err
	}
	defer server.Close()

	dbExists, err := s.schema.DatabaseExists(ctx, server, databaseName)
	if err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to check database existence: %v", err)
	}
	if dbExists {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "database %s already exists", databaseName)
	}

	branchInfo := production.Database
	branchInfo.DatabaseName = databaseName
	branch := &models.Tenant{
		TenantID:      production.TenantID,
		Name:          branchName,
		Subdomain:     subdomain,
		EncryptionKey: production.EncryptionKey,
		Database:      branchInfo,
		StartOn:       settings.StartOn,
	}

	branchRowID, err := s.tenants.CreateBranchRow(ctx, branch)
	if err != nil {
		return nil, err
	}
	branch.ID = branchRowID

	createdDatabase := false
	cleanup := func(cause error) {
		if createdDatabase {
			if dropErr := s.schema.DropDatabase(ctx, server, databaseName); dropErr != nil {
				log.WithError(dropErr).Error("Failed to drop branch database during cleanup")
			}
		}
		if delErr := s.tenants.DeleteBranchRow(ctx, branchRowID); delErr != nil {
			log.WithError(delErr).Error("Failed to delete branch tenant row during cleanup")
		}
		log.WithError(cause).Error("Branch creation failed, rolled back")
		metrics.BranchesCreatedTotal.WithLabelValues("error").Inc()
	}

	if err := s.schema.CreateDatabase(ctx, server, databaseName); err != nil {
		cleanup(err)
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create branch database: %v", err)
	}
	createdDatabase = true

	copyStarted := time.Now()
	if err := s.copyProductionIntoBranch(ctx, server, production.Database.DatabaseName, databaseName); err != nil {
		cleanup(err)
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to copy production data: %v", err)
	}
	metrics.BranchCopyDuration.Observe(time.Since(copyStarted).Seconds())

	log.WithField("duration", time.Since(started).String()).Info("Branch created")
	metrics.BranchesCreatedTotal.WithLabelValues("success").Inc()

	if s.emitter != nil {
		s.emitter.EmitBranchCreated(ctx, branch)
	}

	result := *branch
	result.Database.Password = ""
	return &result, nil
}

// copyProductionIntoBranch clones schema, filtered data and triggers from the
// production schema into the branch schema over one server connection.
func (s *Service) copyProductionIntoBranch(ctx context.Context, server database.Session, productionSchema, branchSchema string) error {
	ctx, span := tracing.StartSpan(ctx, "branches.Service.copyProductionIntoBranch")
	defer span.End()

	tables, err := s.schema.ListBaseTables(ctx, server, productionSchema)
	if err != nil {
		return err
	}

	for _, tableName := range tables {
		query := fmt.Sprintf("CREATE TABLE %s LIKE %s",
			database.QuoteQualified(branchSchema, tableName),
			database.QuoteQualified(productionSchema, tableName))
		if _, err := server.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
	}

	for _, tableName := range tables {
		err := database.WithRetry(ctx, s.cfg.Retry, s.logger, func(ctx context.Context) error {
			return s.copyTableData(ctx, server, productionSchema, branchSchema, tableName)
		})
		if err != nil {
			return err
		}
	}

	// Triggers are recreated only after the bulk copy so the branch's own
	// wiser_history starts empty and captures only edits made in the branch.
	triggers, err := s.schema.ListTriggers(ctx, server, productionSchema)
	if err != nil {
		return err
	}
	for _, trigger := range triggers {
		if err := s.schema.CreateTrigger(ctx, server, branchSchema, trigger); err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) copyTableData(ctx context.Context, server database.Session, productionSchema, branchSchema, tableName string) error {
	if isSkipCopyTable(tableName, s.cfg.SkipCopyTables) {
		return nil
	}

	source := database.QuoteQualified(productionSchema, tableName)
	target := database.QuoteQualified(branchSchema, tableName)

	prefix, isItemFamily := models.ItemTablePrefix(tableName)
	if !isItemFamily {
		query := fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", target, source)
		if _, err := server.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to copy table %s: %w", tableName, err)
		}
		return nil
	}

	excluded := make([]any, 0, len(s.excluded))
	placeholders := make([]string, 0, len(s.excluded))
	for entityType := range s.excluded {
		excluded = append(excluded, entityType)
		placeholders = append(placeholders, "?")
	}
	notExcluded := strings.Join(placeholders, ", ")
	itemTable := database.QuoteQualified(productionSchema, prefix+models.TableWiserItem)

	var query string
	switch {
	case len(excluded) == 0:
		query = fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", target, source)
		excluded = nil
	case strings.EqualFold(strings.TrimPrefix(tableName, prefix), models.TableWiserItem):
		query = fmt.Sprintf("INSERT INTO %s SELECT * FROM %s WHERE entity_type NOT IN (%s)", target, source, notExcluded)
	case strings.EqualFold(strings.TrimPrefix(tableName, prefix), models.TableWiserItemDetail),
		strings.EqualFold(strings.TrimPrefix(tableName, prefix), models.TableWiserItemFile):
		query = fmt.Sprintf(`INSERT INTO %s SELECT src.* FROM %s AS src JOIN %s AS item ON item.id = src.item_id AND item.entity_type NOT IN (%s)`,
			target, source, itemTable, notExcluded)
	case strings.EqualFold(strings.TrimPrefix(tableName, prefix), models.TableWiserItemLink):
		query = fmt.Sprintf(`INSERT INTO %s
			SELECT src.* FROM %s AS src
			JOIN %s AS item ON item.id = src.item_id AND item.entity_type NOT IN (%s)
			JOIN %s AS destination ON destination.id = src.destination_item_id AND destination.entity_type NOT IN (%s)`,
			target, source, itemTable, notExcluded, itemTable, notExcluded)
		excluded = append(excluded, excluded...)
	case strings.EqualFold(strings.TrimPrefix(tableName, prefix), models.TableWiserItemLinkDetail):
		linkTable := database.QuoteQualified(productionSchema, prefix+models.TableWiserItemLink)
		query = fmt.Sprintf(`INSERT INTO %s
			SELECT src.* FROM %s AS src
			JOIN %s AS link ON link.id = src.itemlink_id
			JOIN %s AS item ON item.id = link.item_id AND item.entity_type NOT IN (%s)`,
			target, source, linkTable, itemTable, notExcluded)
	default:
		query = fmt.Sprintf("INSERT INTO %s SELECT * FROM %s", target, source)
		excluded = nil
	}

	if _, err := server.ExecContext(ctx, query, excluded...); err != nil {
		return fmt.Errorf("failed to copy table %s: %w", tableName, err)
	}
	return nil
}
