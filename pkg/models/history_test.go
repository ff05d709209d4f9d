package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	action, err := ParseAction("CREATE_ITEM")
	require.NoError(t, err)
	assert.Equal(t, ActionCreateItem, action)

	action, err = ParseAction("INSERT_QUERY")
	require.NoError(t, err)
	assert.Equal(t, ActionInsertQuery, action)

	_, err = ParseAction("create_item")
	require.Error(t, err)

	_, err = ParseAction("DROP_EVERYTHING")
	require.Error(t, err)
}

func TestSettingsAction(t *testing.T) {
	settingType, table, kind, ok := ActionInsertQuery.SettingsAction()
	require.True(t, ok)
	assert.Equal(t, SettingQuery, settingType)
	assert.Equal(t, TableWiserQuery, table)
	assert.Equal(t, CrudCreate, kind)

	settingType, table, kind, ok = ActionDeleteApiConnection.SettingsAction()
	require.True(t, ok)
	assert.Equal(t, SettingApiConnection, settingType)
	assert.Equal(t, TableWiserApiConnection, table)
	assert.Equal(t, CrudDelete, kind)

	_, _, _, ok = ActionCreateItem.SettingsAction()
	assert.False(t, ok)

	_, _, _, ok = ActionAddLink.SettingsAction()
	assert.False(t, ok)
}

func TestIsItemScoped(t *testing.T) {
	assert.True(t, ActionCreateItem.IsItemScoped())
	assert.True(t, ActionUpdateItemLinkDetail.IsItemScoped())
	assert.True(t, ActionDeleteFile.IsItemScoped())

	assert.False(t, ActionInsertQuery.IsItemScoped())
	assert.False(t, ActionUpdateEntityProperty.IsItemScoped())
}
