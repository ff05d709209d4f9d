package models

import (
	"fmt"
	"time"
)

// Action is the closed vocabulary of change types recorded in wiser_history.
// Dispatch on Action is always done with an exhaustive switch; unknown values
// fail at parse time instead of being silently skipped.
type Action string

const (
	ActionCreateItem   Action = "CREATE_ITEM"
	ActionUpdateItem   Action = "UPDATE_ITEM"
	ActionDeleteItem   Action = "DELETE_ITEM"
	ActionUndeleteItem Action = "UNDELETE_ITEM"

	ActionAddLink              Action = "ADD_LINK"
	ActionChangeLink           Action = "CHANGE_LINK"
	ActionRemoveLink           Action = "REMOVE_LINK"
	ActionUpdateItemLinkDetail Action = "UPDATE_ITEMLINKDETAIL"

	ActionAddFile    Action = "ADD_FILE"
	ActionUpdateFile Action = "UPDATE_FILE"
	ActionDeleteFile Action = "DELETE_FILE"

	ActionInsertEntity Action = "INSERT_ENTITY"
	ActionUpdateEntity Action = "UPDATE_ENTITY"
	ActionDeleteEntity Action = "DELETE_ENTITY"

	ActionInsertEntityProperty Action = "INSERT_ENTITYPROPERTY"
	ActionUpdateEntityProperty Action = "UPDATE_ENTITYPROPERTY"
	ActionDeleteEntityProperty Action = "DELETE_ENTITYPROPERTY"

	ActionInsertQuery Action = "INSERT_QUERY"
	ActionUpdateQuery Action = "UPDATE_QUERY"
	ActionDeleteQuery Action = "DELETE_QUERY"

	ActionInsertModule Action = "INSERT_MODULE"
	ActionUpdateModule Action = "UPDATE_MODULE"
	ActionDeleteModule Action = "DELETE_MODULE"

	ActionInsertDataSelector Action = "INSERT_DATA_SELECTOR"
	ActionUpdateDataSelector Action = "UPDATE_DATA_SELECTOR"
	ActionDeleteDataSelector Action = "DELETE_DATA_SELECTOR"

	ActionInsertPermission Action = "INSERT_PERMISSION"
	ActionUpdatePermission Action = "UPDATE_PERMISSION"
	ActionDeletePermission Action = "DELETE_PERMISSION"

	ActionInsertUserRole Action = "INSERT_USER_ROLE"
	ActionUpdateUserRole Action = "UPDATE_USER_ROLE"
	ActionDeleteUserRole Action = "DELETE_USER_ROLE"

	ActionInsertFieldTemplate Action = "INSERT_FIELD_TEMPLATE"
	ActionUpdateFieldTemplate Action = "UPDATE_FIELD_TEMPLATE"
	ActionDeleteFieldTemplate Action = "DELETE_FIELD_TEMPLATE"

	ActionInsertLinkSetting Action = "INSERT_LINK_SETTING"
	ActionUpdateLinkSetting Action = "UPDATE_LINK_SETTING"
	ActionDeleteLinkSetting Action = "DELETE_LINK_SETTING"

	ActionInsertApiConnection Action = "INSERT_API_CONNECTION"
	ActionUpdateApiConnection Action = "UPDATE_API_CONNECTION"
	ActionDeleteApiConnection Action = "DELETE_API_CONNECTION"
)

// SettingType names a category of Wiser configuration objects that the generic
// settings-CRUD actions operate on.
type SettingType string

const (
	SettingEntity         SettingType = "entity"
	SettingEntityProperty SettingType = "entity_property"
	SettingQuery          SettingType = "query"
	SettingModule         SettingType = "module"
	SettingDataSelector   SettingType = "data_selector"
	SettingPermission     SettingType = "permission"
	SettingUserRole       SettingType = "user_role"
	SettingFieldTemplate  SettingType = "field_template"
	SettingLinkSetting    SettingType = "link_setting"
	SettingApiConnection  SettingType = "api_connection"
)

// CrudKind is the shape of a generic settings action.
type CrudKind int

const (
	CrudCreate CrudKind = iota
	CrudUpdate
	CrudDelete
)

type settingsAction struct {
	setting SettingType
	table   string
	kind    CrudKind
}

var settingsActions = map[Action]settingsAction{
	ActionInsertEntity:         {SettingEntity, TableWiserEntity, CrudCreate},
	ActionUpdateEntity:         {SettingEntity, TableWiserEntity, CrudUpdate},
	ActionDeleteEntity:         {SettingEntity, TableWiserEntity, CrudDelete},
	ActionInsertEntityProperty: {SettingEntityProperty, TableWiserEntityProperty, CrudCreate},
	ActionUpdateEntityProperty: {SettingEntityProperty, TableWiserEntityProperty, CrudUpdate},
	ActionDeleteEntityProperty: {SettingEntityProperty, TableWiserEntityProperty, CrudDelete},
	ActionInsertQuery:          {SettingQuery, TableWiserQuery, CrudCreate},
	ActionUpdateQuery:          {SettingQuery, TableWiserQuery, CrudUpdate},
	ActionDeleteQuery:          {SettingQuery, TableWiserQuery, CrudDelete},
	ActionInsertModule:         {SettingModule, TableWiserModule, CrudCreate},
	ActionUpdateModule:         {SettingModule, TableWiserModule, CrudUpdate},
	ActionDeleteModule:         {SettingModule, TableWiserModule, CrudDelete},
	ActionInsertDataSelector:   {SettingDataSelector, TableWiserDataSelector, CrudCreate},
	ActionUpdateDataSelector:   {SettingDataSelector, TableWiserDataSelector, CrudUpdate},
	ActionDeleteDataSelector:   {SettingDataSelector, TableWiserDataSelector, CrudDelete},
	ActionInsertPermission:     {SettingPermission, TableWiserPermission, CrudCreate},
	ActionUpdatePermission:     {SettingPermission, TableWiserPermission, CrudUpdate},
	ActionDeletePermission:     {SettingPermission, TableWiserPermission, CrudDelete},
	ActionInsertUserRole:       {SettingUserRole, TableWiserUserRoles, CrudCreate},
	ActionUpdateUserRole:       {SettingUserRole, TableWiserUserRoles, CrudUpdate},
	ActionDeleteUserRole:       {SettingUserRole, TableWiserUserRoles, CrudDelete},
	ActionInsertFieldTemplate:  {SettingFieldTemplate, TableWiserFieldTemplates, CrudCreate},
	ActionUpdateFieldTemplate:  {SettingFieldTemplate, TableWiserFieldTemplates, CrudUpdate},
	ActionDeleteFieldTemplate:  {SettingFieldTemplate, TableWiserFieldTemplates, CrudDelete},
	ActionInsertLinkSetting:    {SettingLinkSetting, TableWiserLink, CrudCreate},
	ActionUpdateLinkSetting:    {SettingLinkSetting, TableWiserLink, CrudUpdate},
	ActionDeleteLinkSetting:    {SettingLinkSetting, TableWiserLink, CrudDelete},
	ActionInsertApiConnection:  {SettingApiConnection, TableWiserApiConnection, CrudCreate},
	ActionUpdateApiConnection:  {SettingApiConnection, TableWiserApiConnection, CrudUpdate},
	ActionDeleteApiConnection:  {SettingApiConnection, TableWiserApiConnection, CrudDelete},
}

var knownActions = func() map[Action]struct{} {
	known := map[Action]struct{}{
		ActionCreateItem: {}, ActionUpdateItem: {}, ActionDeleteItem: {}, ActionUndeleteItem: {},
		ActionAddLink: {}, ActionChangeLink: {}, ActionRemoveLink: {}, ActionUpdateItemLinkDetail: {},
		ActionAddFile: {}, ActionUpdateFile: {}, ActionDeleteFile: {},
	}
	for action := range settingsActions {
		known[action] = struct{}{}
	}
	return known
}()

// ParseAction validates a raw wiser_history action value.
func ParseAction(raw string) (Action, error) {
	action := Action(raw)
	if _, ok := knownActions[action]; !ok {
		return "", fmt.Errorf("unknown history action %q", raw)
	}
	return action, nil
}

// SettingsAction returns the setting type, backing table and CRUD kind for a
// generic settings action, or ok=false for item/link/file actions.
func (a Action) SettingsAction() (SettingType, string, CrudKind, bool) {
	sa, ok := settingsActions[a]
	if !ok {
		return "", "", 0, false
	}
	return sa.setting, sa.table, sa.kind, true
}

// IsItemScoped reports whether the action targets a content item (directly or
// through its details, links or files) and is therefore subject to the
// excluded-entity-type filter.
func (a Action) IsItemScoped() bool {
	switch a {
	case ActionCreateItem, ActionUpdateItem, ActionDeleteItem, ActionUndeleteItem,
		ActionAddLink, ActionChangeLink, ActionRemoveLink, ActionUpdateItemLinkDetail,
		ActionAddFile, ActionUpdateFile, ActionDeleteFile:
		return true
	}
	return false
}

// HistoryRecord is one row of a branch's wiser_history table.
type HistoryRecord struct {
	ID           uint64
	Action       Action
	TableName    string
	ItemID       uint64
	ChangedOn    time.Time
	ChangedBy    string
	Field        string
	OldValue     string
	NewValue     string
	LanguageCode string
	GroupName    string
}
