// Package branches implements the branch fork/merge engine: cloning a tenant's
// database into an isolated branch environment and later replaying the
// branch's recorded change log back into production.
package branches

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/events"
	"github.com/wisercms/wiser-api/pkg/models"
	"github.com/wisercms/wiser-api/pkg/redis"
	"github.com/wisercms/wiser-api/pkg/requestcontext"
	"github.com/wisercms/wiser-api/pkg/tracing"
)

// ConnectFunc opens a connection to one tenant database. Injectable so tests
// can substitute fakes.
type ConnectFunc func(ctx context.Context, info database.ConnectionInfo) (database.DB, error)

// The repositories are consumed through narrow interfaces so the engine can
// be exercised against fakes.

type tenantStore interface {
	GetByID(ctx context.Context, id uint64, includeCredentials bool) (*models.Tenant, error)
	GetRoot(ctx context.Context, tenant *models.Tenant, includeCredentials bool) (*models.Tenant, error)
	NameOrSubdomainExists(ctx context.Context, tenantID uint64, name, subdomain string) (bool, error)
	CreateBranchRow(ctx context.Context, branch *models.Tenant) (uint64, error)
	DeleteBranchRow(ctx context.Context, id uint64) error
	ListBranches(ctx context.Context, tenantID uint64) ([]models.Tenant, error)
}

type historyStore interface {
	GetAllPending(ctx context.Context, sess database.Session) ([]models.HistoryRecord, error)
	DeleteByIDs(ctx context.Context, sess database.Session, ids []uint64) error
	MaxID(ctx context.Context, sess database.Session, tableName string) (uint64, error)
}

type mappingStore interface {
	LoadAll(ctx context.Context, sess database.Session) ([]models.IDMapping, error)
	Insert(ctx context.Context, sess database.Session, tableName string, ourID, productionID uint64) (uint64, error)
	Delete(ctx context.Context, sess database.Session, id uint64) error
}

type linkSettingsStore interface {
	GetAll(ctx context.Context, sess database.Session) ([]models.LinkTypeSettings, error)
}

type mergeLock interface {
	Release(ctx context.Context) error
}

// mergeLocker is the per-branch merge mutex. The concrete implementation is
// redis-backed; the engine only needs acquire and release.
type mergeLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (mergeLock, error)
}

// redisLocker adapts *redis.Locker to the mergeLocker interface.
type redisLocker struct {
	locker *redis.Locker
}

func (r redisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (mergeLock, error) {
	return r.locker.Acquire(ctx, name, ttl)
}

type schemaManager interface {
	DatabaseExists(ctx context.Context, sess database.Session, name string) (bool, error)
	CreateDatabase(ctx context.Context, sess database.Session, name string) error
	DropDatabase(ctx context.Context, sess database.Session, name string) error
	ListBaseTables(ctx context.Context, sess database.Session, schema string) ([]string, error)
	ListTriggers(ctx context.Context, sess database.Session, schema string) ([]database.Trigger, error)
	CreateTrigger(ctx context.Context, sess database.Session, schema string, trigger database.Trigger) error
	EnsureIDMappingsTable(ctx context.Context, sess database.Session) error
}

// Config holds the branch engine's tunables.
type Config struct {
	// ExcludedEntityTypes are never copied into a branch and never merged back.
	ExcludedEntityTypes []string
	// SkipCopyTables are cloned schema-only when creating a branch.
	SkipCopyTables []string
	// MergeLockTTL bounds how long the per-branch merge mutex is held.
	MergeLockTTL time.Duration

	Connect database.ConnectConfig
	Retry   database.RetryConfig
}

// Service is the branch lifecycle manager and merge engine.
type Service struct {
	cfg          Config
	tenants      tenantStore
	history      historyStore
	mappings     mappingStore
	linkSettings linkSettingsStore
	schema       schemaManager
	locker       mergeLocker
	emitter      *events.Emitter
	logger       ectologger.Logger
	connect      ConnectFunc
	acquire      acquireFunc

	excluded exclusionSet
}

// NewService creates the branch service. locker and emitter may be nil; merge
// mutexing and event emission are then skipped.
func NewService(
	cfg Config,
	tenants tenantStore,
	historyRepo historyStore,
	mappings mappingStore,
	linkSettings linkSettingsStore,
	schema schemaManager,
	locker *redis.Locker,
	emitter *events.Emitter,
	logger ectologger.Logger,
) *Service {
	svc := &Service{
		cfg:          cfg,
		tenants:      tenants,
		history:      historyRepo,
		mappings:     mappings,
		linkSettings: linkSettings,
		schema:       schema,
		emitter:      emitter,
		logger:       logger,
		excluded:     newExclusionSet(cfg.ExcludedEntityTypes),
	}
	if locker != nil {
		svc.locker = redisLocker{locker: locker}
	}
	svc.connect = func(ctx context.Context, info database.ConnectionInfo) (database.DB, error) {
		return database.Connect(ctx, info, cfg.Connect, logger)
	}
	svc.acquire = defaultAcquire
	return svc
}

// WithAcquireFunc overrides how a dedicated merge connection is pinned.
func (s *Service) WithAcquireFunc(acquire acquireFunc) *Service {
	s.acquire = acquire
	return s
}

// WithConnectFunc overrides how tenant databases are opened.
func (s *Service) WithConnectFunc(connect ConnectFunc) *Service {
	s.connect = connect
	return s
}

// currentTenant resolves the caller's environment from the request context.
func (s *Service) currentTenant(ctx context.Context) (*models.Tenant, error) {
	raw := requestcontext.GetTenantID(ctx)
	if raw == "" {
		return nil, httperror.NewHTTPError(http.StatusUnauthorized, "tenant is required")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusUnauthorized, "invalid tenant id")
	}
	return s.tenants.GetByID(ctx, id, true)
}

// authorizeBranch returns the selected branch and the caller's production
// tenant, verifying both share the same root. A branch may only be inspected
// or merged by users of the tenant that owns it.
func (s *Service) authorizeBranch(ctx context.Context, branchID uint64) (branch *models.Tenant, production *models.Tenant, err error) {
	ctx, span := tracing.StartSpan(ctx, "branches.Service.authorizeBranch")
	defer span.End()

	caller, err := s.currentTenant(ctx)
	if err != nil {
		return nil, nil, err
	}

	branch, err = s.tenants.GetByID(ctx, branchID, true)
	if err != nil {
		return nil, nil, err
	}

	production, err = s.tenants.GetRoot(ctx, caller, true)
	if err != nil {
		return nil, nil, err
	}

	if branch.TenantID != production.TenantID {
		return nil, nil, httperror.NewHTTPError(http.StatusForbidden, "branch does not belong to your tenant")
	}
	return branch, production, nil
}
