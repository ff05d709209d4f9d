package branches

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisercms/wiser-api/pkg/models"
)

func newSummaryService(t *testing.T) *Service {
	t.Helper()
	return NewService(Config{}, &fakeTenants{}, &fakeHistory{}, &fakeMappings{}, &fakeLinkSettings{}, &fakeSchema{}, nil, nil, testLogger())
}

func TestSummarizeChangesItems(t *testing.T) {
	svc := newSummaryService(t)
	sess := &fakeSession{entityTypes: map[uint64]string{
		1: "page",
		2: "page",
		3: "product",
	}}

	records := []models.HistoryRecord{
		{ID: 1, Action: models.ActionCreateItem, TableName: "wiser_item", ItemID: 1},
		{ID: 2, Action: models.ActionUpdateItem, TableName: "wiser_item", ItemID: 2},
		{ID: 3, Action: models.ActionUpdateItem, TableName: "wiser_item", ItemID: 2},
		{ID: 4, Action: models.ActionDeleteItem, TableName: "wiser_item", ItemID: 3, Field: "product"},
	}

	summary, err := svc.summarizeChanges(context.Background(), sess, records)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, []models.ChangeCounters{
		{Name: "page", Created: 1, Updated: 2},
		{Name: "product", Deleted: 1},
	}, summary.Entities)
	assert.Empty(t, summary.Settings)
}

func TestSummarizeChangesSettings(t *testing.T) {
	svc := newSummaryService(t)
	sess := &fakeSession{}

	records := []models.HistoryRecord{
		{ID: 1, Action: models.ActionInsertQuery, TableName: "wiser_query", ItemID: 1},
		{ID: 2, Action: models.ActionUpdateQuery, TableName: "wiser_query", ItemID: 1},
		{ID: 3, Action: models.ActionDeleteQuery, TableName: "wiser_query", ItemID: 2},
	}

	summary, err := svc.summarizeChanges(context.Background(), sess, records)
	require.NoError(t, err)

	require.Len(t, summary.Settings, 1)
	counter := summary.Settings[0]
	assert.Equal(t, 1, counter.Created)
	assert.Equal(t, 1, counter.Updated)
	assert.Equal(t, 1, counter.Deleted)
	assert.Empty(t, summary.Entities)
}

func TestSummarizeChangesLinksCountBothEndpoints(t *testing.T) {
	svc := newSummaryService(t)
	sess := &fakeSession{entityTypes: map[uint64]string{
		10: "page",
		20: "product",
	}}

	records := []models.HistoryRecord{
		{ID: 1, Action: models.ActionAddLink, TableName: "wiser_itemlink", ItemID: 10, NewValue: "20", Field: "1,0"},
	}

	summary, err := svc.summarizeChanges(context.Background(), sess, records)
	require.NoError(t, err)

	// link actions register as a deletion-style touch on both endpoints
	assert.Equal(t, []models.ChangeCounters{
		{Name: "page", Deleted: 1},
		{Name: "product", Deleted: 1},
	}, summary.Entities)
}

func TestSummarizeChangesSkipsUnclassifiableRecords(t *testing.T) {
	svc := newSummaryService(t)
	sess := &fakeSession{}

	records := []models.HistoryRecord{
		// the link row does not exist, so endpoint types cannot be resolved
		{ID: 1, Action: models.ActionChangeLink, TableName: "wiser_itemlink", ItemID: 99, Field: "ordering"},
	}

	summary, err := svc.summarizeChanges(context.Background(), sess, records)
	require.NoError(t, err)
	assert.Empty(t, summary.Entities)
	assert.Equal(t, 1, summary.Total)
}
