package branches

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/metrics"
	"github.com/wisercms/wiser-api/pkg/models"
	"github.com/wisercms/wiser-api/pkg/requestcontext"
	"github.com/wisercms/wiser-api/pkg/tracing"
)

// mergeSession is the dedicated connection a merge run holds on each side.
// LOCK TABLES and session variables are connection-scoped in MySQL, so the
// whole run must stay on one connection per database.
type mergeSession interface {
	database.Session
	Close() error
}

// acquireFunc pins a single connection from a pool. Injectable for tests.
type acquireFunc func(ctx context.Context, db database.DB) (mergeSession, error)

func defaultAcquire(ctx context.Context, db database.DB) (mergeSession, error) {
	return db.Connx(ctx)
}

// mergeRun carries the state of one merge: the two pinned connections, the
// in-memory id mapping and the per-run entity type cache.
type mergeRun struct {
	branch     *models.Tenant
	production *models.Tenant
	branchDB   mergeSession
	prodDB     mergeSession
	ids        *idMap
	cache      entityTypeCache
}

// Merge replays the branch's pending change log into production. Individual
// records that fail are reported in the result and left in the branch log for
// a later attempt; they never abort the batch. Systemic failures (locking,
// connection loss) abort the whole merge with the log intact.
func (s *Service) Merge(ctx context.Context, branchID uint64) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "branches.Service.Merge")
	defer span.End()

	started := time.Now()
	log := s.logger.WithContext(ctx).WithField("branch_id", branchID)

	branch, production, err := s.authorizeBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}

	if s.locker != nil {
		lock, err := s.locker.Acquire(ctx, fmt.Sprintf("branches:merge:%d", branch.ID), s.cfg.MergeLockTTL)
		if err != nil {
			return nil, httperror.NewHTTPError(http.StatusConflict, "a merge for this branch is already in progress")
		}
		defer lock.Release(context.WithoutCancel(ctx))
	}

	branchPool, err := s.connect(ctx, branch.Database)
	if err != nil {
		return nil, err
	}
	defer branchPool.Close()

	prodPool, err := s.connect(ctx, production.Database)
	if err != nil {
		return nil, err
	}
	defer prodPool.Close()

	branchConn, err := s.acquire(ctx, branchPool)
	if err != nil {
		return nil, fmt.Errorf("failed to pin branch connection: %w", err)
	}
	defer branchConn.Close()

	prodConn, err := s.acquire(ctx, prodPool)
	if err != nil {
		return nil, fmt.Errorf("failed to pin production connection: %w", err)
	}
	defer prodConn.Close()

	if err := s.schema.EnsureIDMappingsTable(ctx, branchConn); err != nil {
		return nil, err
	}

	records, err := s.history.GetAllPending(ctx, branchConn)
	if err != nil {
		return nil, err
	}

	// This pre-lock read only plans the lock set. It may go stale while the
	// locks are being acquired; the authoritative load happens below, under
	// the table locks.
	lockPlanRows, err := s.mappings.LoadAll(ctx, branchConn)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 && len(lockPlanRows) == 0 {
		log.Info("Nothing to merge")
		return &models.MergeResult{}, nil
	}

	// Link settings are needed by the equalization step; read them before the
	// lock set is imposed, after which only locked tables are reachable.
	linkTypes, err := s.linkSettings.GetAll(ctx, branchConn)
	if err != nil {
		return nil, err
	}

	// Production audit triggers attribute every replayed mutation to a
	// synthetic sync user. Session variables stick to the pinned connection.
	actor := requestcontext.GetUserName(ctx)
	if _, err := prodConn.ExecContext(ctx, "SET @saveHistory = TRUE"); err != nil {
		return nil, fmt.Errorf("failed to prepare production session: %w", err)
	}
	if _, err := prodConn.ExecContext(ctx, "SET @_username = ?", syncUserName(actor, branch.Name)); err != nil {
		return nil, fmt.Errorf("failed to prepare production session: %w", err)
	}

	set := s.buildLockSet(records, newIDMap(lockPlanRows), linkTypes)
	err = database.WithRetry(ctx, s.cfg.Retry, s.logger, func(ctx context.Context) error {
		return lockTables(ctx, prodConn, set)
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlockTables(context.WithoutCancel(ctx), prodConn); err != nil {
			log.WithError(err).Error("Failed to unlock production tables")
		}
	}()

	err = database.WithRetry(ctx, s.cfg.Retry, s.logger, func(ctx context.Context) error {
		return lockTables(ctx, branchConn, set, models.TableWiserIDMappings)
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := unlockTables(context.WithoutCancel(ctx), branchConn); err != nil {
			log.WithError(err).Error("Failed to unlock branch tables")
		}
	}()

	// wiser_id_mappings is part of the branch lock set, so this read sees
	// every mapping a concurrent merge persisted before the locks landed.
	mappingRows, err := s.mappings.LoadAll(ctx, branchConn)
	if err != nil {
		return nil, err
	}

	run := &mergeRun{
		branch:     branch,
		production: production,
		branchDB:   branchConn,
		prodDB:     prodConn,
		ids:        newIDMap(mappingRows),
		cache:      entityTypeCache{},
	}

	result := &models.MergeResult{}
	completed := make([]uint64, 0, len(records))

	for _, record := range records {
		applied, err := s.applyRecord(ctx, run, record)
		if err != nil {
			log.WithError(err).WithFields(map[string]any{
				"history_id": record.ID,
				"action":     record.Action,
			}).Error("Failed to replay history record")
			result.Errors = append(result.Errors, mergeErrorMessage(record))
			metrics.MergeRecordsTotal.WithLabelValues("error").Inc()
			continue
		}
		// Skipped records (excluded entity types) are deleted from the log
		// but never counted as successful changes.
		completed = append(completed, record.ID)
		if applied {
			result.SuccessfulChanges++
			metrics.MergeRecordsTotal.WithLabelValues("success").Inc()
		} else {
			metrics.MergeRecordsTotal.WithLabelValues("skipped").Inc()
		}
	}

	if err := s.history.DeleteByIDs(ctx, branchConn, completed); err != nil {
		return nil, err
	}

	if err := s.equalize(ctx, run, linkTypes); err != nil {
		return nil, err
	}

	status := "success"
	if len(result.Errors) > 0 {
		status = "partial"
	}
	metrics.MergesTotal.WithLabelValues(status).Inc()
	metrics.MergeDurationSeconds.Observe(time.Since(started).Seconds())

	log.WithFields(map[string]any{
		"successful_changes": result.SuccessfulChanges,
		"errors":             len(result.Errors),
		"duration":           time.Since(started).String(),
	}).Info("Merge completed")

	if s.emitter != nil {
		s.emitter.EmitBranchMerged(ctx, branch, result)
	}
	return result, nil
}

// buildLockSet collects every table the replay or the equalization step can
// touch, on either side.
func (s *Service) buildLockSet(records []models.HistoryRecord, ids *idMap, linkTypes []models.LinkTypeSettings) *lockSet {
	set := newLockSet()
	set.add(models.TableWiserHistory)

	for _, record := range records {
		set.addRecord(record)
	}

	for _, tableName := range ids.Tables() {
		set.add(tableName)
		if prefix, ok := models.ItemTablePrefix(tableName); ok {
			set.add(prefix + models.TableWiserItem)
			set.add(prefix + models.TableWiserItemDetail)
			set.add(prefix + models.TableWiserItemFile)
			set.add(prefix + models.TableWiserItemLink)
			set.add(prefix + models.TableWiserItemLinkDetail)
		}
	}

	// equalization renumbers endpoints inside dedicated link tables as well
	for _, linkType := range linkTypes {
		if linkType.TablePrefix != "" {
			set.add(linkType.TablePrefix + models.TableWiserItemLink)
		}
	}
	return set
}

// applyRecord dispatches one history record to its handler. The bool result
// reports whether production was actually mutated; excluded entity types are
// skipped silently.
func (s *Service) applyRecord(ctx context.Context, run *mergeRun, record models.HistoryRecord) (bool, error) {
	if skip, err := s.shouldSkip(ctx, run, record); err != nil {
		return false, err
	} else if skip {
		return false, nil
	}

	if _, _, kind, ok := record.Action.SettingsAction(); ok {
		return true, s.applySetting(ctx, run, record, kind)
	}

	switch record.Action {
	case models.ActionCreateItem:
		return true, s.applyCreateItem(ctx, run, record)
	case models.ActionUpdateItem:
		return true, s.applyUpdateItem(ctx, run, record)
	case models.ActionDeleteItem:
		return true, s.applyDeleteItem(ctx, run, record)
	case models.ActionUndeleteItem:
		return false, fmt.Errorf("UNDELETE_ITEM is not implemented")
	case models.ActionAddLink:
		return true, s.applyAddLink(ctx, run, record)
	case models.ActionRemoveLink:
		return true, s.applyRemoveLink(ctx, run, record)
	case models.ActionChangeLink:
		return true, s.applyChangeLink(ctx, run, record)
	case models.ActionUpdateItemLinkDetail:
		return true, s.applyUpdateItemLinkDetail(ctx, run, record)
	case models.ActionAddFile:
		return true, s.applyAddFile(ctx, run, record)
	case models.ActionUpdateFile:
		return true, s.applyUpdateFile(ctx, run, record)
	case models.ActionDeleteFile:
		return true, s.applyDeleteFile(ctx, run, record)
	}
	return false, fmt.Errorf("no handler for action %q", record.Action)
}

// shouldSkip applies the excluded-entity-type filter. Settings actions are
// never item-scoped and always pass.
func (s *Service) shouldSkip(ctx context.Context, run *mergeRun, record models.HistoryRecord) (bool, error) {
	if !record.Action.IsItemScoped() || len(s.excluded) == 0 {
		return false, nil
	}

	prefix, _ := models.ItemTablePrefix(record.TableName)

	switch record.Action {
	case models.ActionDeleteItem, models.ActionUndeleteItem:
		if record.Field != "" {
			return s.excluded.Contains(record.Field), nil
		}
		fallthrough
	case models.ActionCreateItem, models.ActionUpdateItem:
		entityType, err := resolveEntityType(ctx, run.branchDB, prefix, record.ItemID, run.cache)
		if err != nil {
			return false, err
		}
		return s.excluded.Contains(entityType), nil

	case models.ActionAddLink, models.ActionRemoveLink, models.ActionChangeLink, models.ActionUpdateItemLinkDetail:
		sourceType, destinationType, err := s.resolveLinkEndpointTypes(ctx, run.branchDB, record, run.cache)
		if err != nil {
			return false, err
		}
		return s.excluded.Contains(sourceType) || s.excluded.Contains(destinationType), nil

	case models.ActionAddFile, models.ActionUpdateFile, models.ActionDeleteFile:
		if fileReferenceColumn(record) != "item_id" {
			return false, nil
		}
		ownerID := record.ItemID
		if record.Action == models.ActionUpdateFile {
			var err error
			ownerID, err = s.fileOwnerItemID(ctx, run, record)
			if err != nil || ownerID == 0 {
				return false, err
			}
		}
		entityType, err := resolveEntityType(ctx, run.branchDB, prefix, ownerID, run.cache)
		if err != nil {
			return false, err
		}
		return s.excluded.Contains(entityType), nil
	}
	return false, nil
}

// newProductionID invents an id that collides with neither environment and
// persists the mapping before it is used, so a crash cannot orphan the new
// production row.
func (s *Service) newProductionID(ctx context.Context, run *mergeRun, tableName string, branchID uint64) (uint64, error) {
	prodMax, err := s.history.MaxID(ctx, run.prodDB, tableName)
	if err != nil {
		return 0, err
	}
	branchMax, err := s.history.MaxID(ctx, run.branchDB, tableName)
	if err != nil {
		return 0, err
	}

	newID := prodMax + 1
	if branchMax >= prodMax {
		newID = branchMax + 1
	}

	rowID, err := s.mappings.Insert(ctx, run.branchDB, tableName, branchID, newID)
	if err != nil {
		return 0, err
	}
	run.ids.Add(rowID, tableName, branchID, newID)
	return newID, nil
}

// execProd runs one mutation against production. The audit session variables
// were set when the connection was pinned.
func (run *mergeRun) execProd(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return run.prodDB.ExecContext(ctx, query, args...)
}

// mergeErrorMessage renders the user-facing (Dutch) description of a failed
// record, matching what the Wiser frontend displays.
func mergeErrorMessage(record models.HistoryRecord) string {
	switch record.Action {
	case models.ActionUndeleteItem:
		return fmt.Sprintf("Het terugzetten van item '%d' wordt nog niet ondersteund.", record.ItemID)
	case models.ActionCreateItem, models.ActionUpdateItem, models.ActionDeleteItem:
		return fmt.Sprintf("Het synchroniseren van item '%d' is mislukt.", record.ItemID)
	case models.ActionAddLink, models.ActionChangeLink, models.ActionRemoveLink, models.ActionUpdateItemLinkDetail:
		return fmt.Sprintf("Het synchroniseren van de koppeling met id '%d' is mislukt.", record.ItemID)
	case models.ActionAddFile, models.ActionUpdateFile, models.ActionDeleteFile:
		return fmt.Sprintf("Het synchroniseren van het bestand van item '%d' is mislukt.", record.ItemID)
	}
	if settingType, _, _, ok := record.Action.SettingsAction(); ok {
		return fmt.Sprintf("Het synchroniseren van instelling '%s' met id '%d' is mislukt.", settingType, record.ItemID)
	}
	return fmt.Sprintf("Het synchroniseren van wijziging '%d' is mislukt.", record.ID)
}
