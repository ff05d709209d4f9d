package branches

import (
	"context"
	"fmt"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
)

// applySetting replays one generic settings change (entities, queries,
// modules and the rest of the configuration tables). All of them follow the
// same shape: insert a stub row under a new id, update one column, or delete
// by id.
func (s *Service) applySetting(ctx context.Context, run *mergeRun, record models.HistoryRecord, kind models.CrudKind) error {
	_, tableName, _, ok := record.Action.SettingsAction()
	if !ok {
		return fmt.Errorf("action %q is not a settings action", record.Action)
	}

	switch kind {
	case models.CrudCreate:
		newID, err := s.newProductionID(ctx, run, tableName, record.ItemID)
		if err != nil {
			return err
		}
		query := fmt.Sprintf("INSERT INTO %s (id) VALUES (?)", database.QuoteIdentifier(tableName))
		_, err = run.execProd(ctx, query, newID)
		return err

	case models.CrudUpdate:
		productionID := run.ids.Get(tableName, record.ItemID)
		query := fmt.Sprintf(
			"UPDATE %s SET %s = ? WHERE id = ?",
			database.QuoteIdentifier(tableName),
			database.QuoteIdentifier(database.SafeIdentifier(record.Field)),
		)
		_, err := run.execProd(ctx, query, record.NewValue, productionID)
		return err

	case models.CrudDelete:
		productionID := run.ids.Get(tableName, record.ItemID)
		query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", database.QuoteIdentifier(tableName))
		_, err := run.execProd(ctx, query, productionID)
		return err
	}
	return fmt.Errorf("unknown settings action kind %d", kind)
}
