package branches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
)

// fileRow mirrors the wiser_itemfile columns the merge engine copies. The
// content blob lives only in the database, never in the change log.
type fileRow struct {
	ID           uint64         `db:"id"`
	ItemID       sql.NullInt64  `db:"item_id"`
	ItemLinkID   sql.NullInt64  `db:"itemlink_id"`
	ContentType  sql.NullString `db:"content_type"`
	Content      []byte         `db:"content"`
	ContentURL   sql.NullString `db:"content_url"`
	FileName     sql.NullString `db:"file_name"`
	Extension    sql.NullString `db:"extension"`
	Title        sql.NullString `db:"title"`
	PropertyName sql.NullString `db:"property_name"`
}

const fileColumns = "id, item_id, itemlink_id, content_type, content, content_url, file_name, extension, title, property_name"

// applyAddFile copies the newest branch file attached to the owning item or
// link into production under a freshly invented id. The oldvalue column names
// which reference column holds the owner.
func (s *Service) applyAddFile(ctx context.Context, run *mergeRun, record models.HistoryRecord) error {
	prefix, _ := models.ItemTablePrefix(record.TableName)
	fileTable := prefix + models.TableWiserItemFile
	refColumn := fileReferenceColumn(record)

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ? AND IFNULL(property_name, '') = ? ORDER BY id DESC LIMIT 1",
		fileColumns,
		database.QuoteIdentifier(fileTable),
		database.QuoteIdentifier(refColumn),
	)
	var file fileRow
	if err := run.branchDB.GetContext(ctx, &file, query, record.ItemID, record.Field); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("file of %s %d (property %q) does not exist in the branch", refColumn, record.ItemID, record.Field)
		}
		return fmt.Errorf("failed to read branch file: %w", err)
	}

	newID, err := s.newProductionID(ctx, run, fileTable, file.ID)
	if err != nil {
		return err
	}

	ownerTable := prefix + models.TableWiserItem
	if refColumn == "itemlink_id" {
		ownerTable = prefix + models.TableWiserItemLink
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		database.QuoteIdentifier(fileTable),
		fileColumns,
	)
	var itemID, itemLinkID any = file.ItemID, file.ItemLinkID
	if refColumn == "itemlink_id" {
		itemLinkID = run.ids.Get(ownerTable, uint64(file.ItemLinkID.Int64))
	} else {
		itemID = run.ids.Get(ownerTable, uint64(file.ItemID.Int64))
	}
	_, err = run.execProd(ctx, insert,
		newID, itemID, itemLinkID,
		file.ContentType, file.Content, file.ContentURL,
		file.FileName, file.Extension, file.Title, file.PropertyName,
	)
	return err
}

// applyUpdateFile updates one column of a production file row. Binary content
// is re-read from the branch instead of being carried in the change log.
func (s *Service) applyUpdateFile(ctx context.Context, run *mergeRun, record models.HistoryRecord) error {
	prefix, _ := models.ItemTablePrefix(record.TableName)
	fileTable := prefix + models.TableWiserItemFile
	productionFileID := run.ids.Get(fileTable, record.ItemID)

	field := database.SafeIdentifier(record.Field)
	var value any = record.NewValue
	if field == "content" {
		var content []byte
		query := fmt.Sprintf("SELECT content FROM %s WHERE id = ?", database.QuoteIdentifier(fileTable))
		if err := run.branchDB.GetContext(ctx, &content, query, record.ItemID); err != nil {
			return fmt.Errorf("failed to read branch file content: %w", err)
		}
		value = content
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s = ? WHERE id = ?",
		database.QuoteIdentifier(fileTable),
		database.QuoteIdentifier(field),
	)
	_, err := run.execProd(ctx, query, value, productionFileID)
	return err
}

// applyDeleteFile removes the production file(s) attached to the owning item
// or link for the given property.
func (s *Service) applyDeleteFile(ctx context.Context, run *mergeRun, record models.HistoryRecord) error {
	prefix, _ := models.ItemTablePrefix(record.TableName)
	fileTable := prefix + models.TableWiserItemFile
	refColumn := fileReferenceColumn(record)

	ownerTable := prefix + models.TableWiserItem
	if refColumn == "itemlink_id" {
		ownerTable = prefix + models.TableWiserItemLink
	}
	ownerID := run.ids.Get(ownerTable, record.ItemID)

	query := fmt.Sprintf(
		"DELETE FROM %s WHERE %s = ? AND IFNULL(property_name, '') = ?",
		database.QuoteIdentifier(fileTable),
		database.QuoteIdentifier(refColumn),
	)
	_, err := run.execProd(ctx, query, ownerID, record.Field)
	return err
}

// fileOwnerItemID resolves the branch item owning a file, for the
// excluded-entity-type check on UPDATE_FILE records. Returns 0 when the file
// belongs to a link rather than an item, or no longer exists.
func (s *Service) fileOwnerItemID(ctx context.Context, run *mergeRun, record models.HistoryRecord) (uint64, error) {
	prefix, _ := models.ItemTablePrefix(record.TableName)
	fileTable := prefix + models.TableWiserItemFile

	var ownerID uint64
	query := fmt.Sprintf("SELECT IFNULL(item_id, 0) FROM %s WHERE id = ?", database.QuoteIdentifier(fileTable))
	err := run.branchDB.GetContext(ctx, &ownerID, query, record.ItemID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve file owner: %w", err)
	}
	return ownerID, nil
}
