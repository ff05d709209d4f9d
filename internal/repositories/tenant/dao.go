package tenant

import (
	"database/sql"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
)

const tenantsTable = "tenants"

// TenantRow represents the database row for a tenant environment
type TenantRow struct {
	ID            sql.NullInt64                          `db:"id"`
	TenantID      sql.NullInt64                          `db:"tenant_id"`
	Name          sql.NullString                         `db:"name"`
	Subdomain     sql.NullString                         `db:"subdomain"`
	EncryptionKey sql.NullString                         `db:"encryption_key"`
	DatabaseInfo  database.JSON[database.ConnectionInfo] `db:"database_info"`
	StartOn       sql.NullTime                           `db:"start_on"`
	CreatedAt     sql.NullTime                           `db:"created_at"`
}

var tenantColumns = []string{"id", "tenant_id", "name", "subdomain", "encryption_key", "database_info", "start_on", "created_at"}

// ToTenant converts a database row to a domain model
func ToTenant(row *TenantRow) *models.Tenant {
	tenant := &models.Tenant{
		ID:            uint64(row.ID.Int64),
		TenantID:      uint64(row.TenantID.Int64),
		Name:          row.Name.String,
		Subdomain:     row.Subdomain.String,
		EncryptionKey: row.EncryptionKey.String,
		Database:      row.DatabaseInfo.Data,
	}
	if row.StartOn.Valid {
		startOn := row.StartOn.Time
		tenant.StartOn = &startOn
	}
	if row.CreatedAt.Valid {
		tenant.CreatedAt = row.CreatedAt.Time.Format("2006-01-02T15:04:05Z07:00")
	}
	return tenant
}
