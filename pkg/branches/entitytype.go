package branches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
)

// entityTypeCache memoizes item-id to entity-type lookups for the duration of
// one summary or merge. Items touched by many history rows are resolved once.
type entityTypeCache map[string]string

func entityTypeCacheKey(tablePrefix string, itemID uint64) string {
	return fmt.Sprintf("%s:%d", tablePrefix, itemID)
}

// resolveEntityType looks up an item's entity type in [prefix]wiser_item,
// falling back to the archive table for deleted items. Returns "" when the
// item exists in neither.
func resolveEntityType(ctx context.Context, sess database.Session, tablePrefix string, itemID uint64, cache entityTypeCache) (string, error) {
	key := entityTypeCacheKey(tablePrefix, itemID)
	if entityType, ok := cache[key]; ok {
		return entityType, nil
	}

	tables := []string{
		tablePrefix + models.TableWiserItem,
		tablePrefix + models.TableWiserItem + models.ArchiveSuffix,
	}

	for _, tableName := range tables {
		var entityType string
		query := fmt.Sprintf("SELECT entity_type FROM %s WHERE id = ?", database.QuoteIdentifier(tableName))
		err := sess.GetContext(ctx, &entityType, query, itemID)
		if err == nil {
			cache[key] = entityType
			return entityType, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("failed to resolve entity type of item %d: %w", itemID, err)
		}
	}

	cache[key] = ""
	return "", nil
}

// linkRow is the subset of a wiser_itemlink row the engine needs.
type linkRow struct {
	ID                uint64 `db:"id"`
	ItemID            uint64 `db:"item_id"`
	DestinationItemID uint64 `db:"destination_item_id"`
	Type              int    `db:"type"`
}

// lookupLinkRow fetches a link row by its own id from the given link table,
// falling back to the archive twin.
func lookupLinkRow(ctx context.Context, sess database.Session, linkTable string, linkID uint64) (*linkRow, error) {
	tables := []string{linkTable, linkTable + models.ArchiveSuffix}
	for _, tableName := range tables {
		var row linkRow
		query := fmt.Sprintf("SELECT id, item_id, destination_item_id, type FROM %s WHERE id = ?", database.QuoteIdentifier(tableName))
		err := sess.GetContext(ctx, &row, query, linkID)
		if err == nil {
			return &row, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to look up link %d: %w", linkID, err)
		}
	}
	return nil, fmt.Errorf("link %d does not exist in %s", linkID, linkTable)
}
