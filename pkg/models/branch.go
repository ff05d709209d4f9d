package models

import (
	"sort"
	"time"
)

// CreateBranchSettings is the request payload for creating a branch.
type CreateBranchSettings struct {
	Name    string     `json:"name" validate:"required,max=64"`
	StartOn *time.Time `json:"start_on,omitempty"`
}

// ChangeCounters aggregates created/updated/deleted counts for one entity type
// or setting type.
type ChangeCounters struct {
	Name    string `json:"name"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Deleted int    `json:"deleted"`
}

// ChangesAvailableForMerging is the read-only impact summary of a branch's
// pending change log, shown to the user before a merge.
type ChangesAvailableForMerging struct {
	Entities []ChangeCounters `json:"entities"`
	Settings []ChangeCounters `json:"settings"`
	Total    int              `json:"total"`
}

// CounterSet accumulates counters keyed by name while classifying history
// records, then renders them sorted for the API response.
type CounterSet map[string]*ChangeCounters

func (cs CounterSet) get(name string) *ChangeCounters {
	counter, ok := cs[name]
	if !ok {
		counter = &ChangeCounters{Name: name}
		cs[name] = counter
	}
	return counter
}

func (cs CounterSet) AddCreated(name string) { cs.get(name).Created++ }
func (cs CounterSet) AddUpdated(name string) { cs.get(name).Updated++ }
func (cs CounterSet) AddDeleted(name string) { cs.get(name).Deleted++ }

// Sorted returns the counters ordered by name.
func (cs CounterSet) Sorted() []ChangeCounters {
	names := make([]string, 0, len(cs))
	for name := range cs {
		names = append(names, name)
	}
	sort.Strings(names)

	counters := make([]ChangeCounters, 0, len(names))
	for _, name := range names {
		counters = append(counters, *cs[name])
	}
	return counters
}

// MergeResult reports the outcome of replaying a branch's change log into
// production. A merge can partially succeed: every record that replayed
// cleanly counts toward SuccessfulChanges even when others errored.
type MergeResult struct {
	SuccessfulChanges int      `json:"successful_changes"`
	Errors            []string `json:"errors"`
}

// IDMapping is one row of a branch's wiser_id_mappings table: the branch's
// OurID in TableName corresponds to production's ProductionID.
type IDMapping struct {
	ID           uint64 `db:"id"`
	TableName    string `db:"table_name"`
	OurID        uint64 `db:"our_id"`
	ProductionID uint64 `db:"production_id"`
}

// LinkTypeSettings is one configured meaning of a numeric link type: which
// entity types it connects and which dedicated table prefix its rows live in.
type LinkTypeSettings struct {
	Type                  int    `db:"type"`
	SourceEntityType      string `db:"connected_entity_type"`
	DestinationEntityType string `db:"destination_entity_type"`
	TablePrefix           string `db:"table_prefix"`
}
