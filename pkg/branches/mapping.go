package branches

import (
	"github.com/wisercms/wiser-api/pkg/models"
)

// idMap is the in-memory view of a branch's wiser_id_mappings, keyed strictly
// by (table name, branch id). An id without a mapping is assumed to be
// identical in both environments, which is how untouched production rows can
// be referenced without ever having been mapped.
//
// Lookups are deliberately scoped to the table: searching other tables'
// mappings for a matching id would invite cross-table collisions whenever two
// tables happen to reuse the same numeric id.
type idMap struct {
	byTable map[string]map[uint64]uint64
	rows    []models.IDMapping // most recent first, for equalization
}

func newIDMap(rows []models.IDMapping) *idMap {
	m := &idMap{
		byTable: make(map[string]map[uint64]uint64),
		rows:    make([]models.IDMapping, 0, len(rows)),
	}
	// rows arrive most recent first; preserve that order
	for _, row := range rows {
		m.rows = append(m.rows, row)
		m.put(row.TableName, row.OurID, row.ProductionID)
	}
	return m
}

func (m *idMap) put(tableName string, ourID, productionID uint64) {
	table, ok := m.byTable[tableName]
	if !ok {
		table = make(map[uint64]uint64)
		m.byTable[tableName] = table
	}
	table[ourID] = productionID
}

// Add records a freshly invented production id. The caller persists the row
// first; rowID is the persisted wiser_id_mappings primary key.
func (m *idMap) Add(rowID uint64, tableName string, ourID, productionID uint64) {
	m.put(tableName, ourID, productionID)
	m.rows = append([]models.IDMapping{{
		ID:           rowID,
		TableName:    tableName,
		OurID:        ourID,
		ProductionID: productionID,
	}}, m.rows...)
}

// Get returns the production id for the branch's id in tableName. Unmapped
// ids pass through unchanged.
func (m *idMap) Get(tableName string, id uint64) uint64 {
	if table, ok := m.byTable[tableName]; ok {
		if productionID, ok := table[id]; ok {
			return productionID
		}
	}
	return id
}

// Tables returns every table name that has at least one pending mapping.
func (m *idMap) Tables() []string {
	tables := make([]string, 0, len(m.byTable))
	for tableName := range m.byTable {
		tables = append(tables, tableName)
	}
	return tables
}

// Rows returns the pending mapping rows, most recent first.
func (m *idMap) Rows() []models.IDMapping {
	return m.rows
}
