package branches

import (
	"context"

	"github.com/wisercms/wiser-api/pkg/models"
	"github.com/wisercms/wiser-api/pkg/tracing"
)

// ListBranches returns every branch of the caller's tenant, without database
// credentials.
func (s *Service) ListBranches(ctx context.Context) ([]models.Tenant, error) {
	ctx, span := tracing.StartSpan(ctx, "branches.Service.ListBranches")
	defer span.End()

	caller, err := s.currentTenant(ctx)
	if err != nil {
		return nil, err
	}

	production, err := s.tenants.GetRoot(ctx, caller, false)
	if err != nil {
		return nil, err
	}
	return s.tenants.ListBranches(ctx, production.TenantID)
}
