package history

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
	"github.com/wisercms/wiser-api/pkg/tracing"
)

// Repository reads and prunes a branch's wiser_history change log. All methods
// take an explicit Session because branch databases are opened per request.
type Repository struct {
	logger ectologger.Logger
}

func NewRepository(logger ectologger.Logger) *Repository {
	return &Repository{logger: logger}
}

// historyRow is the raw wiser_history row; most text columns are nullable.
type historyRow struct {
	ID           uint64         `db:"id"`
	Action       string         `db:"action"`
	TableName    sql.NullString `db:"tablename"`
	ItemID       uint64         `db:"item_id"`
	ChangedOn    sql.NullTime   `db:"changed_on"`
	ChangedBy    sql.NullString `db:"changed_by"`
	Field        sql.NullString `db:"field"`
	OldValue     sql.NullString `db:"oldvalue"`
	NewValue     sql.NullString `db:"newvalue"`
	LanguageCode sql.NullString `db:"language_code"`
	GroupName    sql.NullString `db:"groupname"`
}

func toRecord(row *historyRow) (models.HistoryRecord, error) {
	action, err := models.ParseAction(row.Action)
	if err != nil {
		return models.HistoryRecord{}, err
	}

	record := models.HistoryRecord{
		ID:           row.ID,
		Action:       action,
		TableName:    row.TableName.String,
		ItemID:       row.ItemID,
		ChangedBy:    row.ChangedBy.String,
		Field:        row.Field.String,
		OldValue:     row.OldValue.String,
		NewValue:     row.NewValue.String,
		LanguageCode: row.LanguageCode.String,
		GroupName:    row.GroupName.String,
	}
	if row.ChangedOn.Valid {
		record.ChangedOn = row.ChangedOn.Time
	} else {
		record.ChangedOn = time.Time{}
	}
	return record, nil
}

// GetAllPending returns the branch's entire change log in ascending id order.
// The order is load-bearing: later records may reference entities created by
// earlier ones, so callers must replay in exactly this order.
func (r *Repository) GetAllPending(ctx context.Context, sess database.Session) ([]models.HistoryRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "history.Repository.GetAllPending")
	defer span.End()

	var rows []historyRow
	query := `
		SELECT id, action, tablename, item_id, changed_on, changed_by,
		       field, oldvalue, newvalue, language_code, groupname
		FROM wiser_history
		ORDER BY id ASC`
	if err := sess.SelectContext(ctx, &rows, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read wiser_history")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to read change log: %v", err)
	}

	records := make([]models.HistoryRecord, 0, len(rows))
	for i := range rows {
		record, err := toRecord(&rows[i])
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithField("history_id", rows[i].ID).Error("Skipping unknown history action")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "corrupt change log: %v", err)
		}
		records = append(records, record)
	}
	return records, nil
}

// DeleteByIDs removes the given replayed rows from the branch's change log.
func (r *Repository) DeleteByIDs(ctx context.Context, sess database.Session, ids []uint64) error {
	ctx, span := tracing.StartSpan(ctx, "history.Repository.DeleteByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM wiser_history WHERE id IN (%s)", strings.Join(placeholders, ", "))
	if _, err := sess.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("count", len(ids)).Error("Failed to delete replayed history rows")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to prune change log: %v", err)
	}
	return nil
}

// MaxID returns the highest id currently used in the given table, or 0 for an
// empty table. The table name passes through the identifier sanitizer before
// interpolation.
func (r *Repository) MaxID(ctx context.Context, sess database.Session, tableName string) (uint64, error) {
	ctx, span := tracing.StartSpan(ctx, "history.Repository.MaxID")
	defer span.End()

	var maxID uint64
	query := fmt.Sprintf("SELECT IFNULL(MAX(id), 0) FROM %s", database.QuoteIdentifier(tableName))
	if err := sess.GetContext(ctx, &maxID, query); err != nil {
		return 0, fmt.Errorf("failed to read max id of %s: %w", tableName, err)
	}
	return maxID, nil
}
