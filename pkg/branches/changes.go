package branches

import (
	"context"

	"github.com/wisercms/wiser-api/pkg/database"
	"github.com/wisercms/wiser-api/pkg/models"
	"github.com/wisercms/wiser-api/pkg/tracing"
)

// GetChanges computes the impact summary of a branch's pending change log
// without mutating anything: created/updated/deleted counts per entity type
// and per Wiser setting type. Safe to call repeatedly and concurrently with
// merges, since it only reads.
func (s *Service) GetChanges(ctx context.Context, branchID uint64) (*models.ChangesAvailableForMerging, error) {
	ctx, span := tracing.StartSpan(ctx, "branches.Service.GetChanges")
	defer span.End()

	branch, _, err := s.authorizeBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}

	branchDB, err := s.connect(ctx, branch.Database)
	if err != nil {
		return nil, err
	}
	defer branchDB.Close()

	records, err := s.history.GetAllPending(ctx, branchDB)
	if err != nil {
		return nil, err
	}

	return s.summarizeChanges(ctx, branchDB, records)
}

func (s *Service) summarizeChanges(ctx context.Context, branch database.Session, records []models.HistoryRecord) (*models.ChangesAvailableForMerging, error) {
	entities := models.CounterSet{}
	settings := models.CounterSet{}
	cache := entityTypeCache{}

	for _, record := range records {
		if err := s.classifyRecord(ctx, branch, record, entities, settings, cache); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"history_id": record.ID,
				"action":     record.Action,
			}).Warn("Failed to classify history record, skipping in summary")
		}
	}

	summary := &models.ChangesAvailableForMerging{
		Entities: entities.Sorted(),
		Settings: settings.Sorted(),
		Total:    len(records),
	}
	return summary, nil
}

func (s *Service) classifyRecord(ctx context.Context, branch database.Session, record models.HistoryRecord, entities, settings models.CounterSet, cache entityTypeCache) error {
	if settingType, _, kind, ok := record.Action.SettingsAction(); ok {
		switch kind {
		case models.CrudCreate:
			settings.AddCreated(string(settingType))
		case models.CrudUpdate:
			settings.AddUpdated(string(settingType))
		case models.CrudDelete:
			settings.AddDeleted(string(settingType))
		}
		return nil
	}

	prefix, _ := models.ItemTablePrefix(record.TableName)

	switch record.Action {
	case models.ActionCreateItem, models.ActionUpdateItem:
		entityType, err := resolveEntityType(ctx, branch, prefix, record.ItemID, cache)
		if err != nil {
			return err
		}
		if record.Action == models.ActionCreateItem {
			entities.AddCreated(entityType)
		} else {
			entities.AddUpdated(entityType)
		}

	case models.ActionDeleteItem, models.ActionUndeleteItem:
		// at delete time the entity type is stashed in the field column
		entityType := record.Field
		if entityType == "" {
			var err error
			entityType, err = resolveEntityType(ctx, branch, prefix, record.ItemID, cache)
			if err != nil {
				return err
			}
		}
		entities.AddDeleted(entityType)

	case models.ActionAddLink, models.ActionChangeLink, models.ActionUpdateItemLinkDetail, models.ActionRemoveLink:
		// Link actions bump a deleted-style counter for both endpoints,
		// whatever the action was. Kept as the original counts it.
		sourceType, destinationType, err := s.resolveLinkEndpointTypes(ctx, branch, record, cache)
		if err != nil {
			return err
		}
		entities.AddDeleted(sourceType)
		entities.AddDeleted(destinationType)

	case models.ActionAddFile, models.ActionUpdateFile, models.ActionDeleteFile:
		// file changes are not part of the per-entity impact summary
	}

	return nil
}

// resolveLinkEndpointTypes determines the entity types on both ends of the
// link a history record refers to, using the link-type configuration.
func (s *Service) resolveLinkEndpointTypes(ctx context.Context, branch database.Session, record models.HistoryRecord, cache entityTypeCache) (string, string, error) {
	prefix, _ := models.ItemTablePrefix(record.TableName)

	var sourceID, destinationID uint64
	switch record.Action {
	case models.ActionAddLink:
		link, err := parseAddLinkRecord(record)
		if err != nil {
			return "", "", err
		}
		sourceID, destinationID = link.SourceItemID, link.DestinationItemID
	case models.ActionRemoveLink:
		link, err := parseRemoveLinkRecord(record)
		if err != nil {
			return "", "", err
		}
		sourceID, destinationID = link.SourceItemID, link.DestinationItemID
	default:
		// CHANGE_LINK / UPDATE_ITEMLINKDETAIL: item_id holds the link's own id
		row, err := lookupLinkRow(ctx, branch, prefix+models.TableWiserItemLink, record.ItemID)
		if err != nil {
			return "", "", err
		}
		sourceID, destinationID = row.ItemID, row.DestinationItemID
	}

	sourceType, err := resolveEntityType(ctx, branch, prefix, sourceID, cache)
	if err != nil {
		return "", "", err
	}
	destinationType, err := resolveEntityType(ctx, branch, prefix, destinationID, cache)
	if err != nil {
		return "", "", err
	}
	return sourceType, destinationType, nil
}
