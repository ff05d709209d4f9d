package branches

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wisercms/wiser-api/pkg/models"
)

func TestIDMapGet(t *testing.T) {
	m := newIDMap([]models.IDMapping{
		{ID: 1, TableName: "wiser_item", OurID: 5, ProductionID: 105},
		{ID: 2, TableName: "wiser_itemlink", OurID: 5, ProductionID: 205},
	})

	assert.Equal(t, uint64(105), m.Get("wiser_item", 5))
	assert.Equal(t, uint64(205), m.Get("wiser_itemlink", 5))

	// unmapped ids pass through unchanged
	assert.Equal(t, uint64(7), m.Get("wiser_item", 7))

	// lookups never cross tables, even for a matching id
	assert.Equal(t, uint64(5), m.Get("wiser_query", 5))
}

func TestIDMapAddPrependsRow(t *testing.T) {
	m := newIDMap([]models.IDMapping{
		{ID: 1, TableName: "wiser_item", OurID: 5, ProductionID: 105},
	})
	m.Add(2, "wiser_item", 6, 106)

	assert.Equal(t, uint64(106), m.Get("wiser_item", 6))

	// equalization walks rows most recent first
	rows := m.Rows()
	assert.Equal(t, uint64(2), rows[0].ID)
	assert.Equal(t, uint64(1), rows[1].ID)
}

func TestIDMapTables(t *testing.T) {
	m := newIDMap([]models.IDMapping{
		{ID: 1, TableName: "wiser_item", OurID: 5, ProductionID: 105},
		{ID: 2, TableName: "wiser_item", OurID: 6, ProductionID: 106},
		{ID: 3, TableName: "wiser_query", OurID: 1, ProductionID: 2},
	})

	assert.ElementsMatch(t, []string{"wiser_item", "wiser_query"}, m.Tables())
}
