package branches

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wisercms/wiser-api/pkg/models"
)

func TestLockSetAddIncludesArchiveTwin(t *testing.T) {
	set := newLockSet()
	set.add("wiser_item")
	assert.Contains(t, set.tables, "wiser_item")
	assert.Contains(t, set.tables, "wiser_itemarchive")

	// settings tables have no archive twin
	set = newLockSet()
	set.add("wiser_query")
	assert.Contains(t, set.tables, "wiser_query")
	assert.NotContains(t, set.tables, "wiser_queryarchive")
}

func TestLockSetAddRecordItemScoped(t *testing.T) {
	set := newLockSet()
	set.addRecord(models.HistoryRecord{Action: models.ActionUpdateItem, TableName: "basket_wiser_itemdetail"})

	// every member of the item family shares the record's table prefix
	for _, table := range []string{
		"basket_wiser_item",
		"basket_wiser_itemdetail",
		"basket_wiser_itemfile",
		"basket_wiser_itemlink",
		"basket_wiser_itemlinkdetail",
	} {
		assert.Contains(t, set.tables, table, "missing %s", table)
		assert.Contains(t, set.tables, table+models.ArchiveSuffix, "missing archive twin of %s", table)
	}
}

func TestLockSetAddRecordSettings(t *testing.T) {
	set := newLockSet()
	set.addRecord(models.HistoryRecord{Action: models.ActionInsertQuery, TableName: "wiser_query"})

	assert.Contains(t, set.tables, "wiser_query")
	assert.NotContains(t, set.tables, "wiser_item")
}

func TestLockSetSortedIsDeterministic(t *testing.T) {
	set := newLockSet()
	set.add("wiser_query")
	set.add("wiser_api_connection")
	set.add("wiser_entity")

	want := []string{"wiser_api_connection", "wiser_entity", "wiser_query"}
	assert.Equal(t, want, set.sorted())
	assert.Equal(t, want, set.sorted())
}

func TestLockStatement(t *testing.T) {
	set := newLockSet()
	set.add("wiser_query")

	assert.Equal(t, "LOCK TABLES `wiser_query` WRITE", set.lockStatement())
	assert.Equal(t,
		"LOCK TABLES `wiser_query` WRITE, `wiser_id_mappings` WRITE",
		set.lockStatement(models.TableWiserIDMappings),
	)
	// extras already in the set are not locked twice
	assert.Equal(t, "LOCK TABLES `wiser_query` WRITE", set.lockStatement("wiser_query"))
}
