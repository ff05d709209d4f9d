package models

import (
	"time"

	"github.com/wisercms/wiser-api/pkg/database"
)

// Tenant is one environment row in the main Wiser database. The production
// environment has ID == TenantID; a branch is a tenant row whose ID differs
// from its TenantID and whose database is a filtered clone of production.
type Tenant struct {
	ID            uint64                  `json:"id"`
	TenantID      uint64                  `json:"tenant_id"`
	Name          string                  `json:"name"`
	Subdomain     string                  `json:"subdomain"`
	EncryptionKey string                  `json:"-"`
	Database      database.ConnectionInfo `json:"database"`
	// StartOn records when the branch is supposed to go live. Informational
	// for now; the branch itself is usable as soon as creation returns.
	StartOn   *time.Time `json:"start_on,omitempty"`
	CreatedAt string     `json:"created_at,omitempty"`
}

// IsBranch reports whether this tenant row is a branch environment.
func (t *Tenant) IsBranch() bool {
	return t.ID != t.TenantID
}
