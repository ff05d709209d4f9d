package branches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
)

// applyAddLink recreates a branch link in production with a freshly invented
// link id and both endpoints remapped.
func (s *Service) applyAddLink(ctx context.Context, run *mergeRun, record models.HistoryRecord) error {
	link, err := parseAddLinkRecord(record)
	if err != nil {
		return err
	}

	prefix, _ := models.ItemTablePrefix(record.TableName)
	itemTable := prefix + models.TableWiserItem
	linkTable := prefix + models.TableWiserItemLink

	branchLinkID, err := findBranchLinkID(ctx, run.branchDB, linkTable, link.SourceItemID, link.DestinationItemID, link.LinkType)
	if err != nil {
		return err
	}

	newID, err := s.newProductionID(ctx, run, linkTable, branchLinkID)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		"INSERT IGNORE INTO %s (id, item_id, destination_item_id, ordering, type) VALUES (?, ?, ?, ?, ?)",
		database.QuoteIdentifier(linkTable),
	)
	_, err = run.execProd(ctx, query,
		newID,
		run.ids.Get(itemTable, link.SourceItemID),
		run.ids.Get(itemTable, link.DestinationItemID),
		link.Ordering,
		link.LinkType,
	)
	return err
}

// applyRemoveLink deletes the production link matching both remapped
// endpoints and the link type.
func (s *Service) applyRemoveLink(ctx context.Context, run *mergeRun, record models.HistoryRecord) error {
	link, err := parseRemoveLinkRecord(record)
	if err != nil {
		return err
	}

	prefix, _ := models.ItemTablePrefix(record.TableName)
	itemTable := prefix + models.TableWiserItem
	linkTable := prefix + models.TableWiserItemLink

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE item_id = ? AND destination_item_id = ? AND type = ?",
		database.QuoteIdentifier(linkTable),
	)
	_, err = run.execProd(ctx, query,
		run.ids.Get(itemTable, link.SourceItemID),
		run.ids.Get(itemTable, link.DestinationItemID),
		link.LinkType,
	)
	return err
}

// applyChangeLink updates one column of a production link row. The record's
// item_id column holds the link's own id; endpoint columns carry item ids in
// oldvalue/newvalue and are remapped through the item table's mapping.
func (s *Service) applyChangeLink(ctx context.Context, run *mergeRun, record models.HistoryRecord) error {
	prefix, _ := models.ItemTablePrefix(record.TableName)
	linkTable := prefix + models.TableWiserItemLink
	productionLinkID := run.ids.Get(linkTable, record.ItemID)

	field := database.SafeIdentifier(record.Field)
	var value any = record.NewValue
	if field == "item_id" || field == "destination_item_id" {
		endpoint, err := strconv.ParseUint(record.NewValue, 10, 64)
		if err != nil {
			return fmt.Errorf("CHANGE_LINK record %d has invalid endpoint id %q", record.ID, record.NewValue)
		}
		value = run.ids.Get(prefix+models.TableWiserItem, endpoint)
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s = ? WHERE id = ?",
		database.QuoteIdentifier(linkTable),
		database.QuoteIdentifier(field),
	)
	_, err := run.execProd(ctx, query, value, productionLinkID)
	return err
}

// applyUpdateItemLinkDetail upserts one link-detail value in production,
// keyed by the remapped link id, or deletes it when the new value is empty.
func (s *Service) applyUpdateItemLinkDetail(ctx context.Context, run *mergeRun, record models.HistoryRecord) error {
	prefix, _ := models.ItemTablePrefix(record.TableName)
	detailTable := prefix + models.TableWiserItemLinkDetail
	productionLinkID := run.ids.Get(prefix+models.TableWiserItemLink, record.ItemID)

	if record.NewValue == "" {
		query := fmt.Sprintf(
			"DELETE FROM %s WHERE itemlink_id = ? AND `key` = ? AND language_code = ? AND groupname = ?",
			database.QuoteIdentifier(detailTable),
		)
		_, err := run.execProd(ctx, query, productionLinkID, record.Field, record.LanguageCode, record.GroupName)
		return err
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (itemlink_id, `key`, language_code, groupname, value) VALUES (?, ?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE value = VALUES(value)",
		database.QuoteIdentifier(detailTable),
	)
	_, err := run.execProd(ctx, query, productionLinkID, record.Field, record.LanguageCode, record.GroupName, record.NewValue)
	return err
}

// findBranchLinkID locates the branch's own id of a link by its endpoints
// and type, checking the archive twin for links removed again later in the
// log.
func findBranchLinkID(ctx context.Context, sess database.Session, linkTable string, sourceID, destinationID uint64, linkType int) (uint64, error) {
	tables := []string{linkTable, linkTable + models.ArchiveSuffix}
	for _, tableName := range tables {
		var id uint64
		query := fmt.Sprintf(
			"SELECT id FROM %s WHERE item_id = ? AND destination_item_id = ? AND type = ? ORDER BY id DESC LIMIT 1",
			database.QuoteIdentifier(tableName),
		)
		err := sess.GetContext(ctx, &id, query, sourceID, destinationID, linkType)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("failed to look up link in %s: %w", tableName, err)
		}
	}
	return 0, fmt.Errorf("link from %d to %d (type %d) does not exist in %s", sourceID, destinationID, linkType, linkTable)
}
