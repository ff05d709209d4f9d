package branches

import (
	"context"
	"fmt"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
)

// applyCreateItem inserts a stub row with a freshly invented production id.
// The item's fields follow in subsequent UPDATE_ITEM records, which the
// strict replay order guarantees are applied afterwards.
func (s *Service) applyCreateItem(ctx context.Context, run *mergeRun, record models.HistoryRecord) error {
	prefix, _ := models.ItemTablePrefix(record.TableName)
	itemTable := prefix + models.TableWiserItem

	newID, err := s.newProductionID(ctx, run, itemTable, record.ItemID)
	if err != nil {
		return err
	}

	entityType, err := resolveEntityType(ctx, run.branchDB, prefix, record.ItemID, run.cache)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (id, entity_type) VALUES (?, ?)",
		database.QuoteIdentifier(itemTable),
	)
	_, err = run.execProd(ctx, query, newID, entityType)
	return err
}

// applyUpdateItem replays a field change. Depending on the record's table
// this is either an item-detail upsert (an empty new value deletes the
// detail row) or a direct column update on the item table.
func (s *Service) applyUpdateItem(ctx context.Context, run *mergeRun, record models.HistoryRecord) error {
	if prefix, ok := models.TablePrefix(record.TableName, models.TableWiserItemDetail); ok {
		return s.applyItemDetailChange(ctx, run, record, prefix)
	}

	prefix, _ := models.ItemTablePrefix(record.TableName)
	itemTable := prefix + models.TableWiserItem
	productionID := run.ids.Get(itemTable, record.ItemID)

	query := fmt.Sprintf(
		"UPDATE %s SET %s = ? WHERE id = ?",
		database.QuoteIdentifier(itemTable),
		database.QuoteIdentifier(database.SafeIdentifier(record.Field)),
	)
	_, err := run.execProd(ctx, query, record.NewValue, productionID)
	return err
}

// applyItemDetailChange upserts one (item, key, language, group) detail value
// in production, or deletes it when the new value is empty.
func (s *Service) applyItemDetailChange(ctx context.Context, run *mergeRun, record models.HistoryRecord, prefix string) error {
	detailTable := prefix + models.TableWiserItemDetail
	productionItemID := run.ids.Get(prefix+models.TableWiserItem, record.ItemID)

	if record.NewValue == "" {
		query := fmt.Sprintf(
			"DELETE FROM %s WHERE item_id = ? AND `key` = ? AND language_code = ? AND groupname = ?",
			database.QuoteIdentifier(detailTable),
		)
		_, err := run.execProd(ctx, query, productionItemID, record.Field, record.LanguageCode, record.GroupName)
		return err
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (item_id, `key`, language_code, groupname, value) VALUES (?, ?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE value = VALUES(value)",
		database.QuoteIdentifier(detailTable),
	)
	_, err := run.execProd(ctx, query, productionItemID, record.Field, record.LanguageCode, record.GroupName, record.NewValue)
	return err
}

// applyDeleteItem moves the production item and its dependents into the
// archive tables, mirroring what deleting the item in production would do.
func (s *Service) applyDeleteItem(ctx context.Context, run *mergeRun, record models.HistoryRecord) error {
	prefix, _ := models.ItemTablePrefix(record.TableName)
	itemTable := prefix + models.TableWiserItem
	productionID := run.ids.Get(itemTable, record.ItemID)

	steps := []struct {
		table string
		where string
		args  []any
	}{
		{itemTable, "id = ?", []any{productionID}},
		{prefix + models.TableWiserItemDetail, "item_id = ?", []any{productionID}},
		{prefix + models.TableWiserItemFile, "item_id = ?", []any{productionID}},
		{prefix + models.TableWiserItemLink, "item_id = ? OR destination_item_id = ?", []any{productionID, productionID}},
	}

	for _, step := range steps {
		insert := fmt.Sprintf(
			"INSERT IGNORE INTO %s SELECT * FROM %s WHERE %s",
			database.QuoteIdentifier(step.table+models.ArchiveSuffix),
			database.QuoteIdentifier(step.table),
			step.where,
		)
		if _, err := run.execProd(ctx, insert, step.args...); err != nil {
			return fmt.Errorf("failed to archive from %s: %w", step.table, err)
		}

		remove := fmt.Sprintf("DELETE FROM %s WHERE %s", database.QuoteIdentifier(step.table), step.where)
		if _, err := run.execProd(ctx, remove, step.args...); err != nil {
			return fmt.Errorf("failed to remove archived rows from %s: %w", step.table, err)
		}
	}
	return nil
}
