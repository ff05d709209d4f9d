package branches

import (
	"context"
	"fmt"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
	"github.com/wisercms/wiser-api/pkg/tracing"
)

// equalize renumbers the branch's own rows from their branch-local ids to the
// production ids invented during merges, most recent mapping first, then
// drops the mapping rows. Once a row is equalized the two environments agree
// on its id and no mapping is needed for it again, which keeps
// wiser_id_mappings bounded to currently divergent ids.
//
// The branch's own audit triggers are silenced for the duration; renumbering
// is bookkeeping, not a user change, and must not re-enter the change log.
func (s *Service) equalize(ctx context.Context, run *mergeRun, linkTypes []models.LinkTypeSettings) error {
	ctx, span := tracing.StartSpan(ctx, "branches.Service.equalize")
	defer span.End()

	rows := run.ids.Rows()
	if len(rows) == 0 {
		return nil
	}

	if _, err := run.branchDB.ExecContext(ctx, "SET @saveHistory = FALSE"); err != nil {
		return fmt.Errorf("failed to silence branch audit triggers: %w", err)
	}

	dedicatedPrefixes := make([]string, 0, len(linkTypes))
	for _, linkType := range linkTypes {
		if linkType.TablePrefix != "" {
			dedicatedPrefixes = append(dedicatedPrefixes, linkType.TablePrefix)
		}
	}

	for _, row := range rows {
		if err := s.equalizeRow(ctx, run, row, dedicatedPrefixes); err != nil {
			return fmt.Errorf("failed to equalize %s id %d: %w", row.TableName, row.OurID, err)
		}
		if err := s.mappings.Delete(ctx, run.branchDB, row.ID); err != nil {
			return err
		}
	}
	return nil
}

// equalizeRow rewrites one id and every column referencing it, in the live
// table and its archive twin.
func (s *Service) equalizeRow(ctx context.Context, run *mergeRun, row models.IDMapping, dedicatedPrefixes []string) error {
	type ref struct {
		table  string
		column string
	}
	refs := []ref{{row.TableName, "id"}}

	if prefix, ok := models.TablePrefix(row.TableName, models.TableWiserItem); ok {
		refs = append(refs,
			ref{prefix + models.TableWiserItem, "original_item_id"},
			ref{prefix + models.TableWiserItemDetail, "item_id"},
			ref{prefix + models.TableWiserItemFile, "item_id"},
			ref{prefix + models.TableWiserItemLink, "item_id"},
			ref{prefix + models.TableWiserItemLink, "destination_item_id"},
		)
		// links between entity types with a dedicated table live outside the
		// module-prefixed family
		for _, dedicated := range dedicatedPrefixes {
			refs = append(refs,
				ref{dedicated + models.TableWiserItemLink, "item_id"},
				ref{dedicated + models.TableWiserItemLink, "destination_item_id"},
			)
		}
	} else if prefix, ok := models.TablePrefix(row.TableName, models.TableWiserItemLink); ok {
		refs = append(refs,
			ref{prefix + models.TableWiserItemLinkDetail, "itemlink_id"},
			ref{prefix + models.TableWiserItemFile, "itemlink_id"},
		)
	}

	for _, r := range refs {
		tables := []string{r.table}
		if models.HasArchiveTwin(r.table) {
			tables = append(tables, r.table+models.ArchiveSuffix)
		}
		for _, tableName := range tables {
			query := fmt.Sprintf(
				"UPDATE IGNORE %s SET %s = ? WHERE %s = ?",
				database.QuoteIdentifier(tableName),
				database.QuoteIdentifier(r.column),
				database.QuoteIdentifier(r.column),
			)
			if _, err := run.branchDB.ExecContext(ctx, query, row.ProductionID, row.OurID); err != nil {
				return fmt.Errorf("updating %s.%s: %w", tableName, r.column, err)
			}
		}
	}
	return nil
}
