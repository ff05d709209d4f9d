package linksettings

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
	"github.com/wisercms/wiser-api/pkg/tracing"
)

// Repository reads link-type configuration from a tenant database. The same
// numeric link type may be configured multiple times with different entity
// type pairs, so lookups always return a slice.
type Repository struct {
	logger ectologger.Logger
}

func NewRepository(logger ectologger.Logger) *Repository {
	return &Repository{logger: logger}
}

// GetAll returns the full link-type configuration of a tenant database. Link
// settings flagged with use_dedicated_table store their rows in a table
// prefixed "{type}_" instead of the shared wiser_itemlink.
func (r *Repository) GetAll(ctx context.Context, sess database.Session) ([]models.LinkTypeSettings, error) {
	ctx, span := tracing.StartSpan(ctx, "linksettings.Repository.GetAll")
	defer span.End()

	var settings []models.LinkTypeSettings
	query := `
		SELECT type,
		       connected_entity_type,
		       destination_entity_type,
		       IF(use_dedicated_table, CONCAT(type, '_'), '') AS table_prefix
		FROM wiser_link
		ORDER BY type`
	if err := sess.SelectContext(ctx, &settings, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load link type settings")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to load link type settings: %v", err)
	}
	return settings, nil
}
