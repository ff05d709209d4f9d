package idmapping

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
	"github.com/wisercms/wiser-api/pkg/tracing"
)

const mappingsTable = "wiser_id_mappings"

// Repository persists branch-to-production id correspondences in a branch
// database. Mappings are written the moment a production id is invented so a
// crash mid-merge cannot lose them.
type Repository struct {
	logger ectologger.Logger
}

func NewRepository(logger ectologger.Logger) *Repository {
	return &Repository{logger: logger}
}

// LoadAll returns every mapping in the branch, most recent first. The merge
// engine loads them into memory once per merge; the equalization step walks
// them in this order.
func (r *Repository) LoadAll(ctx context.Context, sess database.Session) ([]models.IDMapping, error) {
	ctx, span := tracing.StartSpan(ctx, "idmapping.Repository.LoadAll")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "table_name", "our_id", "production_id")
	sb.From(mappingsTable)
	sb.OrderBy("id DESC")

	query, args := sb.Build()
	var mappings []models.IDMapping
	if err := sess.SelectContext(ctx, &mappings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load id mappings")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to load id mappings: %v", err)
	}
	return mappings, nil
}

// Insert records that the branch's ourID in tableName corresponds to
// production's productionID, returning the new mapping row's id.
func (r *Repository) Insert(ctx context.Context, sess database.Session, tableName string, ourID, productionID uint64) (uint64, error) {
	ctx, span := tracing.StartSpan(ctx, "idmapping.Repository.Insert")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(mappingsTable)
	ib.Cols("table_name", "our_id", "production_id")
	ib.Values(tableName, ourID, productionID)

	query, args := ib.Build()
	result, err := sess.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"table_name":    tableName,
			"our_id":        ourID,
			"production_id": productionID,
		}).Error("Failed to persist id mapping")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to persist id mapping: %v", err)
	}
	rowID, err := result.LastInsertId()
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to read id mapping row id: %v", err)
	}
	return uint64(rowID), nil
}

// Delete removes a mapping row once the branch has been renumbered and the
// mapping is redundant.
func (r *Repository) Delete(ctx context.Context, sess database.Session, id uint64) error {
	ctx, span := tracing.StartSpan(ctx, "idmapping.Repository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(mappingsTable)
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	if _, err := sess.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("mapping_id", id).Error("Failed to delete id mapping")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete id mapping: %v", err)
	}
	return nil
}
