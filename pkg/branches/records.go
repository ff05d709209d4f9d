package branches

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wisercms/wiser-api/pkg/models"
)

// Per-action id extraction. The column holding the "real" id varies by action
// type; these helpers are the single place that knows the encoding.

type addLinkRecord struct {
	SourceItemID      uint64
	DestinationItemID uint64
	LinkType          int
	Ordering          int
}

// parseAddLinkRecord decodes an ADD_LINK record: newvalue holds the source
// item id, the original item_id column the destination, and field is a
// comma-joined "linkType,ordering" pair.
func parseAddLinkRecord(record models.HistoryRecord) (*addLinkRecord, error) {
	sourceID, err := strconv.ParseUint(strings.TrimSpace(record.NewValue), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("ADD_LINK record %d has invalid source item id %q", record.ID, record.NewValue)
	}

	link := &addLinkRecord{
		SourceItemID:      sourceID,
		DestinationItemID: record.ItemID,
	}

	parts := strings.Split(record.Field, ",")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		linkType, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("ADD_LINK record %d has invalid link type %q", record.ID, parts[0])
		}
		link.LinkType = linkType
	}
	if len(parts) > 1 {
		ordering, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("ADD_LINK record %d has invalid ordering %q", record.ID, parts[1])
		}
		link.Ordering = ordering
	}
	return link, nil
}

type removeLinkRecord struct {
	SourceItemID      uint64
	DestinationItemID uint64
	LinkType          int
}

// parseRemoveLinkRecord decodes a REMOVE_LINK record: oldvalue holds the
// source item id, the original item_id column the destination, and field the
// link type.
func parseRemoveLinkRecord(record models.HistoryRecord) (*removeLinkRecord, error) {
	sourceID, err := strconv.ParseUint(strings.TrimSpace(record.OldValue), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("REMOVE_LINK record %d has invalid source item id %q", record.ID, record.OldValue)
	}

	link := &removeLinkRecord{
		SourceItemID:      sourceID,
		DestinationItemID: record.ItemID,
	}

	if strings.TrimSpace(record.Field) != "" {
		linkType, err := strconv.Atoi(strings.TrimSpace(record.Field))
		if err != nil {
			return nil, fmt.Errorf("REMOVE_LINK record %d has invalid link type %q", record.ID, record.Field)
		}
		link.LinkType = linkType
	}
	return link, nil
}

// fileReferenceColumn decodes which column of a wiser_itemfile row holds the
// owning reference for ADD_FILE/DELETE_FILE records: oldvalue names either
// item_id or itemlink_id; item_id is the default.
func fileReferenceColumn(record models.HistoryRecord) string {
	if strings.EqualFold(strings.TrimSpace(record.OldValue), "itemlink_id") {
		return "itemlink_id"
	}
	return "item_id"
}

// maxSyncUserNameLength is the size of the changed_by column production's
// audit triggers write into.
const maxSyncUserNameLength = 50

// syncUserName builds the synthetic user label production audit triggers
// attribute replayed changes to, shortened progressively to fit the column.
func syncUserName(actor, branchName string) string {
	if actor == "" {
		actor = "wiser"
	}
	name := fmt.Sprintf("%s (Sync from %s)", actor, branchName)
	if len(name) <= maxSyncUserNameLength {
		return name
	}
	name = fmt.Sprintf("%s (Sync)", actor)
	if len(name) <= maxSyncUserNameLength {
		return name
	}
	return name[:maxSyncUserNameLength]
}
