package tenant

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
	"github.com/wisercms/wiser-api/pkg/secrets"
	"github.com/wisercms/wiser-api/pkg/tracing"
)

// Repository resolves tenant environments from the main Wiser database.
type Repository struct {
	db        database.DB
	encryptor *secrets.Encryptor
	logger    ectologger.Logger
}

func NewRepository(db database.DB, encryptor *secrets.Encryptor, logger ectologger.Logger) *Repository {
	return &Repository{
		db:        db,
		encryptor: encryptor,
		logger:    logger,
	}
}

// GetByID returns the tenant environment row with the given id. When
// includeCredentials is set the stored database password is decrypted;
// otherwise it is blanked.
func (r *Repository) GetByID(ctx context.Context, id uint64, includeCredentials bool) (*models.Tenant, error) {
	ctx, span := tracing.StartSpan(ctx, "tenant.Repository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(tenantColumns...)
	sb.From(tenantsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var row TenantRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "tenant %d does not exist", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", id).Error("Failed to get tenant")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get tenant: %v", err)
	}

	tenant := ToTenant(&row)
	if err := r.prepareCredentials(tenant, includeCredentials); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", id).Error("Failed to decrypt tenant credentials")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to decrypt tenant credentials")
	}
	return tenant, nil
}

// GetRoot returns the production environment that owns the given tenant row.
// For a production row this is the row itself.
func (r *Repository) GetRoot(ctx context.Context, tenant *models.Tenant, includeCredentials bool) (*models.Tenant, error) {
	ctx, span := tracing.StartSpan(ctx, "tenant.Repository.GetRoot")
	defer span.End()

	if !tenant.IsBranch() {
		return tenant, nil
	}
	return r.GetByID(ctx, tenant.TenantID, includeCredentials)
}

// NameOrSubdomainExists reports whether another environment of the same root
// tenant already uses the given name or subdomain.
func (r *Repository) NameOrSubdomainExists(ctx context.Context, tenantID uint64, name, subdomain string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "tenant.Repository.NameOrSubdomainExists")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From(tenantsTable)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Or(sb.Equal("name", name), sb.Equal("subdomain", subdomain)),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "name": name}).Error("Failed to check tenant name uniqueness")
		return false, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to check tenant name: %v", err)
	}
	return count > 0, nil
}

// CreateBranchRow inserts the tenant row for a new branch environment and
// returns its id. The stored database password is encrypted at rest.
func (r *Repository) CreateBranchRow(ctx context.Context, branch *models.Tenant) (uint64, error) {
	ctx, span := tracing.StartSpan(ctx, "tenant.Repository.CreateBranchRow")
	defer span.End()

	info := branch.Database
	encrypted, err := r.encryptor.Encrypt(info.Password)
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to encrypt credentials: %v", err)
	}
	info.Password = encrypted

	var startOn any
	if branch.StartOn != nil {
		startOn = branch.StartOn.UTC()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(tenantsTable)
	ib.Cols("tenant_id", "name", "subdomain", "encryption_key", "database_info", "start_on")
	ib.Values(branch.TenantID, branch.Name, branch.Subdomain, branch.EncryptionKey, database.JSON[database.ConnectionInfo]{Data: info}, startOn)

	query, args := ib.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": branch.TenantID, "name": branch.Name}).Error("Failed to insert branch tenant row")
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create branch record: %v", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to read new branch id: %v", err)
	}
	return uint64(id), nil
}

// DeleteBranchRow removes the tenant row of a branch whose creation failed.
func (r *Repository) DeleteBranchRow(ctx context.Context, id uint64) error {
	ctx, span := tracing.StartSpan(ctx, "tenant.Repository.DeleteBranchRow")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(tenantsTable)
	db.Where(db.Equal("id", id))

	query, args := db.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", id).Error("Failed to delete branch tenant row")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete branch record: %v", err)
	}
	return nil
}

// ListBranches returns all branch environments of the given root tenant.
func (r *Repository) ListBranches(ctx context.Context, tenantID uint64) ([]models.Tenant, error) {
	ctx, span := tracing.StartSpan(ctx, "tenant.Repository.ListBranches")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(tenantColumns...)
	sb.From(tenantsTable)
	sb.Where(sb.Equal("tenant_id", tenantID), sb.NotEqual("id", tenantID))
	sb.OrderBy("id")

	query, args := sb.Build()
	var rows []TenantRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("Failed to list branches")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list branches: %v", err)
	}

	branches := make([]models.Tenant, 0, len(rows))
	for i := range rows {
		branch := ToTenant(&rows[i])
		branch.Database.Password = ""
		branches = append(branches, *branch)
	}
	return branches, nil
}

func (r *Repository) prepareCredentials(tenant *models.Tenant, includeCredentials bool) error {
	if !includeCredentials {
		tenant.Database.Password = ""
		return nil
	}
	if tenant.Database.Password == "" {
		return nil
	}
	password, err := r.encryptor.Decrypt(tenant.Database.Password)
	if err != nil {
		return err
	}
	tenant.Database.Password = password
	return nil
}
