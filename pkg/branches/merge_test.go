package branches

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
	"github.com/wisercms/wiser-api/pkg/redis"
	"github.com/wisercms/wiser-api/pkg/requestcontext"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type execCall struct {
	query string
	args  []any
}

type fakeResult struct{ lastID int64 }

func (r fakeResult) LastInsertId() (int64, error) { return r.lastID, nil }
func (r fakeResult) RowsAffected() (int64, error) { return 1, nil }

// fakeSession is a scriptable stand-in for one side's pinned connection. It
// records every statement and serves entity-type and link lookups from maps.
type fakeSession struct {
	execs       []execCall
	failExecOn  string
	entityTypes map[uint64]string
	links       map[uint64]linkRow
}

func (s *fakeSession) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	if s.failExecOn != "" && strings.Contains(query, s.failExecOn) {
		return nil, errors.New("forced failure")
	}
	return fakeResult{lastID: 1}, nil
}

func (s *fakeSession) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	switch d := dest.(type) {
	case *string:
		if strings.Contains(query, "entity_type") {
			if entityType, ok := s.entityTypes[args[0].(uint64)]; ok {
				*d = entityType
				return nil
			}
		}
		return sql.ErrNoRows
	case *linkRow:
		if row, ok := s.links[args[0].(uint64)]; ok {
			*d = row
			return nil
		}
		return sql.ErrNoRows
	}
	return sql.ErrNoRows
}

func (s *fakeSession) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	return nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) hasExec(substring string) bool {
	for _, call := range s.execs {
		if strings.Contains(call.query, substring) {
			return true
		}
	}
	return false
}

func (s *fakeSession) findExec(substring string) (execCall, bool) {
	for _, call := range s.execs {
		if strings.Contains(call.query, substring) {
			return call, true
		}
	}
	return execCall{}, false
}

// insertCount reports how many rows have been inserted into a table so far,
// so MAX(id) lookups can move the way a real table would.
func (s *fakeSession) insertCount(tableName string) int {
	count := 0
	quoted := database.QuoteIdentifier(tableName)
	for _, call := range s.execs {
		if strings.Contains(call.query, "INSERT") && strings.Contains(call.query, quoted) {
			count++
		}
	}
	return count
}

type fakeDB struct {
	*fakeSession
}

func (db *fakeDB) Connx(ctx context.Context) (*sqlx.Conn, error) {
	return nil, errors.New("not supported")
}
func (db *fakeDB) Close() error                          { return nil }
func (db *fakeDB) Ping() error                           { return nil }
func (db *fakeDB) PingContext(ctx context.Context) error { return nil }
func (db *fakeDB) Rebind(query string) string            { return query }
func (db *fakeDB) Unsafe() *sqlx.DB                      { return nil }

type fakeTenants struct {
	production *models.Tenant
	branch     *models.Tenant
	created    *models.Tenant
}

func (f *fakeTenants) GetByID(ctx context.Context, id uint64, includeCredentials bool) (*models.Tenant, error) {
	switch id {
	case f.production.ID:
		copied := *f.production
		return &copied, nil
	case f.branch.ID:
		copied := *f.branch
		return &copied, nil
	}
	return nil, fmt.Errorf("tenant %d not found", id)
}

func (f *fakeTenants) GetRoot(ctx context.Context, tenant *models.Tenant, includeCredentials bool) (*models.Tenant, error) {
	copied := *f.production
	return &copied, nil
}

func (f *fakeTenants) NameOrSubdomainExists(ctx context.Context, tenantID uint64, name, subdomain string) (bool, error) {
	return false, nil
}

func (f *fakeTenants) CreateBranchRow(ctx context.Context, branch *models.Tenant) (uint64, error) {
	copied := *branch
	f.created = &copied
	return 33, nil
}

func (f *fakeTenants) DeleteBranchRow(ctx context.Context, id uint64) error { return nil }

func (f *fakeTenants) ListBranches(ctx context.Context, tenantID uint64) ([]models.Tenant, error) {
	return nil, nil
}

type fakeHistory struct {
	records   []models.HistoryRecord
	maxIDs    map[string]uint64
	deleted   []uint64
	deleteErr error
}

func (f *fakeHistory) GetAllPending(ctx context.Context, sess database.Session) ([]models.HistoryRecord, error) {
	return f.records, nil
}

func (f *fakeHistory) DeleteByIDs(ctx context.Context, sess database.Session, ids []uint64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, ids...)
	return nil
}

func (f *fakeHistory) MaxID(ctx context.Context, sess database.Session, tableName string) (uint64, error) {
	base := f.maxIDs[tableName]
	if fs, ok := sess.(*fakeSession); ok {
		base += uint64(fs.insertCount(tableName))
	}
	return base, nil
}

type fakeMappings struct {
	rows []models.IDMapping
	// lateRows become visible only once the session holds its table locks,
	// like rows persisted by another merge right before the locks landed.
	lateRows  []models.IDMapping
	sawLock   []bool
	inserted  []models.IDMapping
	deleted   []uint64
	nextRowID uint64
}

func (f *fakeMappings) LoadAll(ctx context.Context, sess database.Session) ([]models.IDMapping, error) {
	locked := false
	if fs, ok := sess.(*fakeSession); ok {
		locked = fs.hasExec("LOCK TABLES")
	}
	f.sawLock = append(f.sawLock, locked)

	if locked {
		return append(append([]models.IDMapping{}, f.lateRows...), f.rows...), nil
	}
	return f.rows, nil
}

func (f *fakeMappings) Insert(ctx context.Context, sess database.Session, tableName string, ourID, productionID uint64) (uint64, error) {
	f.nextRowID++
	f.inserted = append(f.inserted, models.IDMapping{
		ID:           f.nextRowID,
		TableName:    tableName,
		OurID:        ourID,
		ProductionID: productionID,
	})
	return f.nextRowID, nil
}

func (f *fakeMappings) Delete(ctx context.Context, sess database.Session, id uint64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeLinkSettings struct {
	settings []models.LinkTypeSettings
}

func (f *fakeLinkSettings) GetAll(ctx context.Context, sess database.Session) ([]models.LinkTypeSettings, error) {
	return f.settings, nil
}

type fakeSchema struct {
	ensured bool
}

func (f *fakeSchema) DatabaseExists(ctx context.Context, sess database.Session, name string) (bool, error) {
	return false, nil
}
func (f *fakeSchema) CreateDatabase(ctx context.Context, sess database.Session, name string) error {
	return nil
}
func (f *fakeSchema) DropDatabase(ctx context.Context, sess database.Session, name string) error {
	return nil
}
func (f *fakeSchema) ListBaseTables(ctx context.Context, sess database.Session, schema string) ([]string, error) {
	return nil, nil
}
func (f *fakeSchema) ListTriggers(ctx context.Context, sess database.Session, schema string) ([]database.Trigger, error) {
	return nil, nil
}
func (f *fakeSchema) CreateTrigger(ctx context.Context, sess database.Session, schema string, trigger database.Trigger) error {
	return nil
}
func (f *fakeSchema) EnsureIDMappingsTable(ctx context.Context, sess database.Session) error {
	f.ensured = true
	return nil
}

// fakeLock records the context it is released with, so tests can verify the
// release survives cancellation of the request context.
type fakeLock struct {
	released   bool
	releaseCtx context.Context
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.released = true
	f.releaseCtx = ctx
	return nil
}

type fakeLocker struct {
	held bool
	name string
	ttl  time.Duration
	lock fakeLock
}

func (f *fakeLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (mergeLock, error) {
	if f.held {
		return nil, redis.ErrLockNotAcquired
	}
	f.name = name
	f.ttl = ttl
	return &f.lock, nil
}

type mergeFixture struct {
	service    *Service
	tenants    *fakeTenants
	history    *fakeHistory
	mappings   *fakeMappings
	branchSess *fakeSession
	prodSess   *fakeSession
	ctx        context.Context
}

func newMergeFixture(t *testing.T, cfg Config, hist *fakeHistory, maps *fakeMappings) *mergeFixture {
	t.Helper()

	production := &models.Tenant{
		ID:       1,
		TenantID: 1,
		Name:     "hoofdomgeving",
		Database: database.ConnectionInfo{DatabaseName: "wiser_main"},
	}
	branch := &models.Tenant{
		ID:       2,
		TenantID: 1,
		Name:     "zomercampagne",
		Database: database.ConnectionInfo{DatabaseName: "wiser_main_zomercampagne"},
	}

	branchSess := &fakeSession{entityTypes: map[uint64]string{}, links: map[uint64]linkRow{}}
	prodSess := &fakeSession{entityTypes: map[uint64]string{}, links: map[uint64]linkRow{}}

	tenants := &fakeTenants{production: production, branch: branch}
	svc := NewService(
		cfg,
		tenants,
		hist,
		maps,
		&fakeLinkSettings{},
		&fakeSchema{},
		nil,
		nil,
		testLogger(),
	)
	svc.WithConnectFunc(func(ctx context.Context, info database.ConnectionInfo) (database.DB, error) {
		if info.DatabaseName == branch.Database.DatabaseName {
			return &fakeDB{fakeSession: branchSess}, nil
		}
		return &fakeDB{fakeSession: prodSess}, nil
	})
	svc.WithAcquireFunc(func(ctx context.Context, db database.DB) (mergeSession, error) {
		return db.(*fakeDB).fakeSession, nil
	})

	return &mergeFixture{
		service:    svc,
		tenants:    tenants,
		history:    hist,
		mappings:   maps,
		branchSess: branchSess,
		prodSess:   prodSess,
		ctx:        requestcontext.SetTenantID(context.Background(), "1"),
	}
}

func TestMergeInventsNewIDForCreatedItem(t *testing.T) {
	hist := &fakeHistory{
		records: []models.HistoryRecord{
			{ID: 1, Action: models.ActionCreateItem, TableName: "wiser_item", ItemID: 0},
		},
		maxIDs: map[string]uint64{"wiser_item": 100},
	}
	maps := &fakeMappings{}
	f := newMergeFixture(t, Config{}, hist, maps)
	f.branchSess.entityTypes[0] = "page"

	result, err := f.service.Merge(f.ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessfulChanges)
	assert.Empty(t, result.Errors)

	require.Len(t, maps.inserted, 1)
	assert.Equal(t, "wiser_item", maps.inserted[0].TableName)
	assert.Equal(t, uint64(0), maps.inserted[0].OurID)
	assert.Equal(t, uint64(101), maps.inserted[0].ProductionID)

	insert, ok := f.prodSess.findExec("INSERT INTO `wiser_item`")
	require.True(t, ok, "expected an insert into production wiser_item")
	assert.Equal(t, uint64(101), insert.args[0])
	assert.Equal(t, "page", insert.args[1])

	// replayed record is removed from the branch log
	assert.Equal(t, []uint64{1}, hist.deleted)

	// equalization renumbered the branch copy and dropped the mapping
	assert.True(t, f.branchSess.hasExec("SET @saveHistory = FALSE"))
	assert.True(t, f.branchSess.hasExec("UPDATE IGNORE `wiser_item` SET `id`"))
	assert.Equal(t, []uint64{maps.inserted[0].ID}, maps.deleted)

	assert.True(t, f.prodSess.hasExec("UNLOCK TABLES"))
	assert.True(t, f.branchSess.hasExec("UNLOCK TABLES"))
}

func TestMergeAppliesUpdateToNewlyCreatedItem(t *testing.T) {
	hist := &fakeHistory{
		records: []models.HistoryRecord{
			{ID: 5, Action: models.ActionCreateItem, TableName: "wiser_item", ItemID: 0},
			{ID: 6, Action: models.ActionUpdateItem, TableName: "wiser_item", ItemID: 0, Field: "title", NewValue: "Hello"},
		},
		maxIDs: map[string]uint64{"wiser_item": 100},
	}
	f := newMergeFixture(t, Config{}, hist, &fakeMappings{})
	f.branchSess.entityTypes[0] = "page"

	result, err := f.service.Merge(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessfulChanges)
	assert.Empty(t, result.Errors)

	// the update must target the id invented by the preceding create
	update, ok := f.prodSess.findExec("UPDATE `wiser_item` SET `title`")
	require.True(t, ok)
	assert.Equal(t, "Hello", update.args[0])
	assert.Equal(t, uint64(101), update.args[1])
}

func TestMergePerRecordIsolation(t *testing.T) {
	hist := &fakeHistory{
		records: []models.HistoryRecord{
			{ID: 1, Action: models.ActionInsertQuery, TableName: "wiser_query", ItemID: 5},
			{ID: 2, Action: models.ActionChangeLink, TableName: "wiser_itemlink", ItemID: 99, Field: "ordering", NewValue: "3"},
			{ID: 3, Action: models.ActionInsertQuery, TableName: "wiser_query", ItemID: 6},
		},
		maxIDs: map[string]uint64{"wiser_query": 50},
	}
	maps := &fakeMappings{}
	f := newMergeFixture(t, Config{}, hist, maps)
	// the link update fails on production, record 2 must not poison 1 and 3
	f.prodSess.failExecOn = "UPDATE `wiser_itemlink`"

	result, err := f.service.Merge(f.ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessfulChanges)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Het synchroniseren van de koppeling met id '99' is mislukt.", result.Errors[0])

	// both valid records got distinct new ids and were deleted from the log
	require.Len(t, maps.inserted, 2)
	assert.Equal(t, uint64(51), maps.inserted[0].ProductionID)
	assert.Equal(t, uint64(52), maps.inserted[1].ProductionID)
	assert.Equal(t, []uint64{1, 3}, hist.deleted)
}

func TestMergeSkipsExcludedEntityTypes(t *testing.T) {
	hist := &fakeHistory{
		records: []models.HistoryRecord{
			{ID: 1, Action: models.ActionAddLink, TableName: "wiser_itemlink", ItemID: 10, NewValue: "20", Field: "1,0"},
		},
		maxIDs: map[string]uint64{"wiser_itemlink": 40},
	}
	maps := &fakeMappings{}
	f := newMergeFixture(t, Config{ExcludedEntityTypes: []string{"klant"}}, hist, maps)
	f.branchSess.entityTypes[20] = "klant"
	f.branchSess.entityTypes[10] = "page"

	result, err := f.service.Merge(f.ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, 0, result.SuccessfulChanges)
	assert.Empty(t, result.Errors)
	assert.False(t, f.prodSess.hasExec("INSERT IGNORE INTO `wiser_itemlink`"))
	assert.Empty(t, maps.inserted)
}

func TestMergeReloadsMappingsUnderTableLocks(t *testing.T) {
	hist := &fakeHistory{
		records: []models.HistoryRecord{
			{ID: 1, Action: models.ActionUpdateItem, TableName: "wiser_item", ItemID: 5, Field: "title", NewValue: "Hallo"},
		},
		maxIDs: map[string]uint64{"wiser_item": 100},
	}
	maps := &fakeMappings{
		lateRows: []models.IDMapping{
			{ID: 7, TableName: "wiser_item", OurID: 5, ProductionID: 500},
		},
	}
	f := newMergeFixture(t, Config{}, hist, maps)

	result, err := f.service.Merge(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulChanges)
	assert.Empty(t, result.Errors)

	// the authoritative mapping view is read only after LOCK TABLES
	assert.Equal(t, []bool{false, true}, maps.sawLock)

	// the update resolves through the mapping that landed before the locks
	update, ok := f.prodSess.findExec("UPDATE `wiser_item` SET `title`")
	require.True(t, ok)
	assert.Equal(t, uint64(500), update.args[1])

	// equalization walks the same view
	assert.True(t, f.branchSess.hasExec("UPDATE IGNORE `wiser_item` SET `id`"))
	assert.Equal(t, []uint64{7}, maps.deleted)
}

func TestMergeUnlocksTablesOnFailure(t *testing.T) {
	hist := &fakeHistory{maxIDs: map[string]uint64{}}
	maps := &fakeMappings{
		rows: []models.IDMapping{
			{ID: 7, TableName: "wiser_query", OurID: 3, ProductionID: 9},
		},
	}
	f := newMergeFixture(t, Config{}, hist, maps)
	f.branchSess.failExecOn = "UPDATE IGNORE"

	_, err := f.service.Merge(f.ctx, 2)
	require.Error(t, err)

	assert.True(t, f.prodSess.hasExec("UNLOCK TABLES"))
	assert.True(t, f.branchSess.hasExec("UNLOCK TABLES"))
}

func TestMergeNothingToDo(t *testing.T) {
	hist := &fakeHistory{maxIDs: map[string]uint64{}}
	f := newMergeFixture(t, Config{}, hist, &fakeMappings{})

	result, err := f.service.Merge(f.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessfulChanges)
	assert.Empty(t, result.Errors)
	assert.False(t, f.prodSess.hasExec("LOCK TABLES"))
}

func TestMergeRejectsForeignBranch(t *testing.T) {
	hist := &fakeHistory{maxIDs: map[string]uint64{}}
	f := newMergeFixture(t, Config{}, hist, &fakeMappings{})

	_, err := f.service.Merge(f.ctx, 42)
	require.Error(t, err)
}

func TestMergeReleasesLockAfterRequestCancel(t *testing.T) {
	hist := &fakeHistory{
		records: []models.HistoryRecord{
			{ID: 1, Action: models.ActionUpdateItem, TableName: "wiser_item", ItemID: 5, Field: "title", NewValue: "Hallo"},
		},
		maxIDs: map[string]uint64{},
	}
	f := newMergeFixture(t, Config{MergeLockTTL: time.Minute}, hist, &fakeMappings{})
	locker := &fakeLocker{}
	f.service.locker = locker

	ctx, cancel := context.WithCancel(f.ctx)
	_, err := f.service.Merge(ctx, 2)
	require.NoError(t, err)
	cancel()

	assert.Equal(t, "branches:merge:2", locker.name)
	assert.Equal(t, time.Minute, locker.ttl)
	require.True(t, locker.lock.released)
	require.NotNil(t, locker.lock.releaseCtx)
	assert.NoError(t, locker.lock.releaseCtx.Err())
}

func TestMergeConflictsWhenLockHeld(t *testing.T) {
	f := newMergeFixture(t, Config{}, &fakeHistory{}, &fakeMappings{})
	f.service.locker = &fakeLocker{held: true}

	_, err := f.service.Merge(f.ctx, 2)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
}
